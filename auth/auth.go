// Package auth implements RFC 2617 digest challenge-response automation for
// an outbound SIP request chain: inspecting 401/407 challenges, picking a
// scheme handler, attaching Authorization/Proxy-Authorization headers, and
// retrying with a different scheme when a handler fails permanently.
package auth

import (
	"errors"
	"fmt"

	"github.com/module/sipcore/sip"
)

// Target identifies which side of a transaction issued a challenge.
type Target int

const (
	TargetServer Target = iota
	TargetProxy
)

func (t Target) String() string {
	if t == TargetProxy {
		return "proxy"
	}
	return "server"
}

var (
	// ErrUnexpectedProxyAuth is returned when a proxy challenge (407) arrives
	// in a response after a server challenge (401) has already begun in the
	// same request chain.
	ErrUnexpectedProxyAuth = errors.New("auth: proxy challenge after server challenge in same chain")
	// ErrUnexpectedResponse is returned when the challenge's actual target
	// contradicts the response status code (401 vs 407).
	ErrUnexpectedResponse = errors.New("auth: challenge target does not match response status")
	// ErrInvalidCredentials is returned when a handler rejects the supplied
	// credentials non-permanently (caller may retry with new credentials).
	ErrInvalidCredentials = errors.New("auth: handler rejected supplied credentials")

	// Permanent handler failures. AuthController disables the current scheme
	// and retries with the next best handler when any of these occur.
	ErrMissingCredentials          = errors.New("auth: no credentials available for challenge")
	ErrUnsupportedScheme           = errors.New("auth: no handler registered for challenge scheme")
	ErrMisconfiguredEnvironment    = errors.New("auth: auth handler misconfigured")
	ErrUnexpectedSecurityLibStatus = errors.New("auth: underlying digest library returned an unexpected status")

	// ErrNoChallenge is returned when a response was expected to carry a
	// WWW-Authenticate/Proxy-Authenticate header but did not.
	ErrNoChallenge = errors.New("auth: response carries no recognizable challenge")
)

func isPermanent(err error) bool {
	return errors.Is(err, ErrMissingCredentials) ||
		errors.Is(err, ErrUnsupportedScheme) ||
		errors.Is(err, ErrMisconfiguredEnvironment) ||
		errors.Is(err, ErrUnexpectedSecurityLibStatus)
}

// Origin identifies the destination a set of credentials was issued for:
// the request-URI scheme/host/port the challenge came from. sip: and sips:
// destinations on the same host:port are different origins and never share
// a cache entry.
type Origin struct {
	Scheme string
	Host   string
	Port   int
}

func (o Origin) String() string {
	return fmt.Sprintf("%s:%s:%d", o.Scheme, o.Host, o.Port)
}

// defaultSIPPort and defaultSIPSPort are RFC 3261 §19.1.2's default ports,
// used when a request-URI carries no explicit port.
const (
	defaultSIPPort  = 5060
	defaultSIPSPort = 5061
)

// OriginFromURI derives the AuthCache origin key from a request-URI (the
// outbound request's Recipient, or the URI a response targets), per the
// URI's sip/sips scheme.
func OriginFromURI(uri sip.Uri) Origin {
	scheme := "sip"
	port := defaultSIPPort
	if uri.IsEncrypted() {
		scheme = "sips"
		port = defaultSIPSPort
	}
	if uri.Port != 0 {
		port = uri.Port
	}
	return Origin{Scheme: scheme, Host: uri.Host, Port: port}
}

// Credentials is the identity material an upper core supplies to answer a
// challenge: username/password for Digest, opaque for future schemes.
type Credentials struct {
	Username string
	Password string
}

// ChallengeResult is returned by an AuthHandler when it is offered a new
// challenge for a scheme it already has a session for.
type ChallengeResult int

const (
	// Accept means the handler can keep using its current credentials.
	Accept ChallengeResult = iota
	// Stale means the nonce expired; the handler should keep credentials
	// but must rebuild its internal session state (nonce count, nonce).
	Stale
	// Reject means the handler must be replaced and its cached credentials
	// dropped.
	Reject
	// Invalid means the challenge cannot be understood by this handler at
	// all; replace handler and credentials.
	Invalid
	// DifferentRealm means the challenge names a realm the handler's cached
	// credentials don't apply to; replace handler and credentials.
	DifferentRealm
)

// ChallengeInfo is the prompting surface handed to the upper core when the
// AuthCache has no credentials for a challenge and default credentials have
// already been tried once for this chain.
type ChallengeInfo struct {
	Realm  string
	Scheme string
	Origin Origin
	Proxy  bool
}
