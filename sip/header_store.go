package sip

import "strings"

// nonCoalescingHeaders lists the headers that must never be joined on commas
// when enumerated or normalized: a comma is ordinary content for these, not a
// list separator (e.g. a Date value, or a WWW-Authenticate challenge list
// where each challenge may itself contain commas inside its params).
var nonCoalescingHeaders = map[string]bool{
	"date":                 true,
	"retry-after":          true,
	"authentication-info":  true,
	"authorization":        true,
	"proxy-authorization":  true,
	"www-authenticate":     true,
	"proxy-authenticate":   true,
}

func isNonCoalescing(name string) bool {
	return nonCoalescingHeaders[HeaderToLower(name)]
}

// HeaderLine is one physical header line, preserving the original name case
// as it appeared (or as the typed header renders it).
type HeaderLine struct {
	Name  string
	Value string
}

// HeaderCount returns the number of occurrences of name after coalescing:
// for a coalescing header this is the number of comma-joined values across
// all physical lines, not the number of physical lines.
func (hs *headers) HeaderCount(name string) int {
	return len(hs.EnumerateHeader(name))
}

// EnumerateHeaderLines yields one entry per physical header line, in
// original order.
func (hs *headers) EnumerateHeaderLines() []HeaderLine {
	lines := make([]HeaderLine, 0, len(hs.headerOrder))
	for _, h := range hs.headerOrder {
		lines = append(lines, HeaderLine{Name: h.Name(), Value: h.Value()})
	}
	return lines
}

// EnumerateHeader returns the values of name. For a coalescing header, each
// physical line's value is further split on top-level commas (commas inside
// a double-quoted run do not split). For a non-coalescing header, each
// physical line contributes its whole value unsplit.
func (hs *headers) EnumerateHeader(name string) []string {
	nonCoalescing := isNonCoalescing(name)

	var values []string
	for _, h := range hs.GetHeaders(name) {
		if nonCoalescing {
			values = append(values, h.Value())
			continue
		}
		values = append(values, splitTopLevelCommas(h.Value())...)
	}
	return values
}

// GetNormalized returns the comma-joined enumeration of a coalescing header.
// Calling it on a non-coalescing header is a programmer error: the joined
// form would be ambiguous (e.g. two WWW-Authenticate challenges cannot be
// reconstructed from a single comma-joined string), so it is refused.
func (hs *headers) GetNormalized(name string) (string, bool) {
	if isNonCoalescing(name) {
		return "", false
	}
	values := hs.EnumerateHeader(name)
	if len(values) == 0 {
		return "", false
	}
	return strings.Join(values, ", "), true
}

// HasHeaderValue reports whether name carries value as one of its enumerated
// values, compared case-insensitively.
func (hs *headers) HasHeaderValue(name, value string) bool {
	valueLower := HeaderToLower(value)
	for _, v := range hs.EnumerateHeader(name) {
		if HeaderToLower(v) == valueLower {
			return true
		}
	}
	return false
}

// AddHeaderLine parses a raw "Name: Value" line with the same parser the
// message parser uses and appends the resulting header(s).
func (hs *headers) AddHeaderLine(line string) error {
	parsed, err := HeadersParser(DefaultHeadersParser()).ParseHeader(nil, []byte(line))
	if err != nil {
		return err
	}
	for _, h := range parsed {
		hs.AppendHeader(h)
	}
	return nil
}

// RemoveHeaders removes every header whose name is in names.
func (hs *headers) RemoveHeaders(names map[string]bool) {
	kept := hs.headerOrder[:0:0]
	for _, h := range hs.headerOrder {
		if names[HeaderToLower(h.Name())] {
			continue
		}
		kept = append(kept, h)
	}
	hs.headerOrder = kept
}

// RemoveHeaderLine removes only the physical line(s) of name whose value is
// an exact (case-sensitive) match for exactValue, leaving other occurrences
// of the same header name untouched.
func (hs *headers) RemoveHeaderLine(name, exactValue string) {
	nameLower := HeaderToLower(name)
	kept := hs.headerOrder[:0:0]
	for _, h := range hs.headerOrder {
		if HeaderToLower(h.Name()) == nameLower && h.Value() == exactValue {
			continue
		}
		kept = append(kept, h)
	}
	hs.headerOrder = kept
}

// updateFrom replaces, for every header name present in other, the first
// occurrence of that name in hs with other's header. Names in other that hs
// does not already carry are ignored: updateFrom only refreshes existing
// headers, it never introduces new ones.
//
// CSeq is a special case, and only for a request target: preserveCSeqMethod
// keeps hs's method name and takes only the sequence number from other,
// since a request's CSeq method must always match the request it is
// attached to. A response has no such constraint, so its CSeq is replaced
// verbatim. Request/Response each call this through their own exported
// Update method with the right value for preserveCSeqMethod.
func (hs *headers) updateFrom(other *headers, preserveCSeqMethod bool) {
	if otherCseq, ok := other.CSeq(); ok {
		if selfCseq, ok := hs.CSeq(); ok {
			if preserveCSeqMethod {
				selfCseq.SeqNo = otherCseq.SeqNo
			} else {
				*selfCseq = *otherCseq
			}
		}
	}

	seen := map[string]bool{}
	for i, h := range hs.headerOrder {
		nameLower := HeaderToLower(h.Name())
		if nameLower == "cseq" || seen[nameLower] {
			continue
		}
		replacement := other.getHeader(nameLower)
		if replacement == nil {
			continue
		}
		hs.headerOrder[i] = replacement
		seen[nameLower] = true
	}
}

// SetViaReceived drops any existing "received" parameter from the topmost
// Via and appends "received=ip", per RFC 3261 §18.2.1.
func (hs *headers) SetViaReceived(ip string) {
	via, ok := hs.Via()
	if !ok {
		return
	}
	if via.Params == nil {
		via.Params = NewParams()
	}
	via.Params.Remove("received")
	via.Params.Add("received", ip)
}

// splitTopLevelCommas splits s on commas that are not inside a double-quoted
// run.
func splitTopLevelCommas(s string) []string {
	var parts []string
	inQuotes := false
	start := 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '"':
			inQuotes = !inQuotes
		case ',':
			if !inQuotes {
				parts = append(parts, strings.TrimSpace(s[start:i]))
				start = i + 1
			}
		}
	}
	parts = append(parts, strings.TrimSpace(s[start:]))
	return parts
}
