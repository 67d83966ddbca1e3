package sip

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestHeaders() *headers {
	return &headers{headerOrder: make([]Header, 0, 4)}
}

func TestHeaderCountCoalescesCommas(t *testing.T) {
	hs := newTestHeaders()
	hs.AppendHeader(NewHeader("Allow", "INVITE, ACK, BYE"))
	hs.AppendHeader(NewHeader("Allow", "CANCEL"))

	assert.Equal(t, 4, hs.HeaderCount("Allow"))
	assert.Equal(t, []string{"INVITE", "ACK", "BYE", "CANCEL"}, hs.EnumerateHeader("allow"))
}

func TestEnumerateHeaderDoesNotSplitQuotedCommas(t *testing.T) {
	hs := newTestHeaders()
	hs.AppendHeader(NewHeader("WWW-Authenticate", `Digest realm="a, b", nonce="n1"`))

	// WWW-Authenticate is non-coalescing: the whole line is one value even
	// though it contains commas.
	values := hs.EnumerateHeader("WWW-Authenticate")
	require.Len(t, values, 1)
	assert.Equal(t, `Digest realm="a, b", nonce="n1"`, values[0])
}

func TestGetNormalizedRefusesNonCoalescing(t *testing.T) {
	hs := newTestHeaders()
	hs.AppendHeader(NewHeader("Date", "Mon, 01 Jan 2024 00:00:00 GMT"))

	_, ok := hs.GetNormalized("Date")
	assert.False(t, ok)
}

func TestGetNormalizedJoinsCoalescing(t *testing.T) {
	hs := newTestHeaders()
	hs.AppendHeader(NewHeader("Allow", "INVITE"))
	hs.AppendHeader(NewHeader("Allow", "ACK"))

	joined, ok := hs.GetNormalized("allow")
	require.True(t, ok)
	assert.Equal(t, "INVITE, ACK", joined)
}

func TestHasHeaderValueCaseInsensitive(t *testing.T) {
	hs := newTestHeaders()
	hs.AppendHeader(NewHeader("Supported", "100rel, timer"))

	assert.True(t, hs.HasHeaderValue("supported", "TIMER"))
	assert.False(t, hs.HasHeaderValue("supported", "path"))
}

func TestAddHeaderLineParsesKnownHeader(t *testing.T) {
	hs := newTestHeaders()
	require.NoError(t, hs.AddHeaderLine("Max-Forwards: 70"))

	mf, ok := hs.GetHeader("Max-Forwards").(*MaxForwards)
	require.True(t, ok)
	assert.Equal(t, MaxForwards(70), *mf)
}

func TestRemoveHeadersRemovesAllNamedOccurrences(t *testing.T) {
	hs := newTestHeaders()
	hs.AppendHeader(NewHeader("X-Foo", "1"))
	hs.AppendHeader(NewHeader("X-Bar", "2"))
	hs.AppendHeader(NewHeader("X-Foo", "3"))

	hs.RemoveHeaders(map[string]bool{"x-foo": true})

	assert.Len(t, hs.GetHeaders("X-Foo"), 0)
	assert.Len(t, hs.GetHeaders("X-Bar"), 1)
}

func TestRemoveHeaderLineRemovesOnlyExactMatch(t *testing.T) {
	hs := newTestHeaders()
	hs.AppendHeader(NewHeader("X-Foo", "1"))
	hs.AppendHeader(NewHeader("X-Foo", "2"))

	hs.RemoveHeaderLine("X-Foo", "1")

	values := hs.EnumerateHeader("X-Foo")
	assert.Equal(t, []string{"2"}, values)
}

func TestRequestUpdatePreservesCSeqMethodFromSelf(t *testing.T) {
	req := NewRequest(INVITE, Uri{User: "bob", Host: "biloxi.com"})
	req.AppendHeader(&CSeq{SeqNo: 1, MethodName: INVITE})

	other := newTestHeaders()
	other.AppendHeader(&CSeq{SeqNo: 2, MethodName: ACK})

	req.Update(other)

	cseq, ok := req.CSeq()
	require.True(t, ok)
	assert.Equal(t, uint32(2), cseq.SeqNo)
	assert.Equal(t, INVITE, cseq.MethodName)
}

func TestResponseUpdateTakesCSeqVerbatim(t *testing.T) {
	res := NewResponse(200, "OK")
	res.AppendHeader(&CSeq{SeqNo: 1, MethodName: INVITE})

	other := newTestHeaders()
	other.AppendHeader(&CSeq{SeqNo: 2, MethodName: ACK})

	res.Update(other)

	cseq, ok := res.CSeq()
	require.True(t, ok)
	assert.Equal(t, uint32(2), cseq.SeqNo)
	assert.Equal(t, ACK, cseq.MethodName)
}

func TestUpdateIgnoresHeadersSelfDoesNotAlreadyHave(t *testing.T) {
	self := newTestHeaders()
	self.AppendHeader(NewHeader("X-Foo", "old"))

	other := newTestHeaders()
	other.AppendHeader(NewHeader("X-Foo", "new"))
	other.AppendHeader(NewHeader("X-Bar", "ignored"))

	self.updateFrom(other, true)

	assert.Equal(t, "new", self.GetHeader("X-Foo").Value())
	assert.Nil(t, self.GetHeader("X-Bar"))
}

func TestSetViaReceivedReplacesExistingParam(t *testing.T) {
	hs := newTestHeaders()
	via := &ViaHeader{ProtocolName: "SIP", ProtocolVersion: "2.0", Transport: "UDP", Host: "biloxi.com"}
	via.Params = NewParams()
	via.Params.Add("received", "10.0.0.1")
	hs.AppendHeader(via)

	hs.SetViaReceived("192.0.2.1")

	gotVia, ok := hs.Via()
	require.True(t, ok)
	received, ok := gotVia.Params.Get("received")
	require.True(t, ok)
	assert.Equal(t, "192.0.2.1", received)
}
