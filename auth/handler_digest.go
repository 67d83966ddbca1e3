package auth

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"sync"

	"github.com/icholy/digest"
	"github.com/module/sipcore/sip"
)

// AuthHandlerDigest implements RFC 2617 Digest authentication (MD5 and
// MD5-sess, qop=auth and qop=auth-int) on top of github.com/icholy/digest,
// which owns the actual HA1/HA2/response math; this handler owns the
// session state a chain of challenges needs: the current nonce, its nonce
// count, and realm/algorithm pinning used to classify re-challenges.
type AuthHandlerDigest struct {
	mu sync.Mutex

	realm     string
	nonce     string
	opaque    string
	algorithm string
	qop       []string

	nc int

	// cnonceFn overrides cnonce generation; nil means generateCnonce (a
	// CSPRNG). Tests set this to a fixed generator to reproduce RFC 2617
	// reference vectors byte-for-byte.
	cnonceFn func() (string, error)
}

// NewAuthHandlerDigest builds a Digest handler from one challenge line
// ("Digest realm=... nonce=..."). It is registered under the "Digest"
// scheme name in init() (see handler.go).
func NewAuthHandlerDigest(challengeLine string) (AuthHandler, error) {
	chal, err := digest.ParseChallenge(challengeLine)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", err.Error(), ErrMisconfiguredEnvironment)
	}

	return &AuthHandlerDigest{
		realm:     chal.Realm,
		nonce:     chal.Nonce,
		opaque:    chal.Opaque,
		algorithm: sip.ASCIIToUpper(chal.Algorithm),
		qop:       chal.Qop,
		nc:        0,
	}, nil
}

// WithCnonceGenerator overrides the cnonce generator GenerateAuthorization
// uses, in place of the default CSPRNG. It returns h so callers can chain
// it onto NewAuthHandlerDigest's result.
func (h *AuthHandlerDigest) WithCnonceGenerator(fn func() (string, error)) *AuthHandlerDigest {
	h.cnonceFn = fn
	return h
}

func (h *AuthHandlerDigest) cnonce() (string, error) {
	if h.cnonceFn != nil {
		return h.cnonceFn()
	}
	return generateCnonce()
}

func (h *AuthHandlerDigest) Scheme() string { return "Digest" }

// Score prefers challenges that offer qop slightly over ones without qop,
// since a chain with qop support is strictly more capable; the algorithm
// (MD5 or MD5-sess) does not affect the score. This is otherwise the only
// registered scheme so the comparison rarely matters.
func (h *AuthHandlerDigest) Score() int {
	if len(h.qop) > 0 {
		return 2
	}
	return 1
}

// HandleAnotherChallenge classifies a second challenge for a handler that
// already has session state, per RFC 3261 §17 / RFC 2617 semantics.
func (h *AuthHandlerDigest) HandleAnotherChallenge(challengeLine string) ChallengeResult {
	chal, err := digest.ParseChallenge(challengeLine)
	if err != nil {
		return Invalid
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if chal.Realm != h.realm {
		return DifferentRealm
	}

	if chal.Stale {
		// Stale nonce: keep credentials, reset nonce count for the new nonce.
		h.nonce = chal.Nonce
		h.opaque = chal.Opaque
		h.qop = chal.Qop
		h.nc = 0
		return Stale
	}

	if chal.Nonce == h.nonce {
		return Accept
	}

	// Same realm, fresh (non-stale) nonce: the server is re-issuing the
	// challenge mid-chain (e.g. after a prior attempt was rejected). Reuse
	// the handler and rebase on the new nonce, same as Accept.
	h.nonce = chal.Nonce
	h.opaque = chal.Opaque
	h.qop = chal.Qop
	h.nc = 0
	return Accept
}

// GenerateAuthorization builds the Authorization/Proxy-Authorization value
// for req using creds, computing HA1/HA2/response via icholy/digest.
func (h *AuthHandlerDigest) GenerateAuthorization(req *sip.Request, creds Credentials) (string, error) {
	h.mu.Lock()
	h.nc++
	nc := h.nc
	chal := &digest.Challenge{
		Realm:     h.realm,
		Nonce:     h.nonce,
		Opaque:    h.opaque,
		Algorithm: h.algorithm,
		Qop:       h.qop,
	}
	h.mu.Unlock()

	cnonce, err := h.cnonce()
	if err != nil {
		return "", fmt.Errorf("%s: %w", err.Error(), ErrUnexpectedSecurityLibStatus)
	}

	opts := digest.Options{
		Username: creds.Username,
		Password: creds.Password,
		Method:   req.Method.String(),
		URI:      req.Recipient.Addr(),
		Cnonce:   cnonce,
		Count:    nc,
	}
	if qopHasAuthInt(chal.Qop) {
		body := req.Body()
		opts.GetBody = func() ([]byte, error) { return body, nil }
	}

	cred, err := digest.Digest(chal, opts)
	if err != nil {
		return "", fmt.Errorf("%s: %w", err.Error(), ErrUnexpectedSecurityLibStatus)
	}
	return cred.String(), nil
}

func qopHasAuthInt(qop []string) bool {
	for _, q := range qop {
		if sip.ASCIIToUpper(q) == "AUTH-INT" {
			return true
		}
	}
	return false
}

// generateCnonce produces 16 lowercase hex characters from a CSPRNG, per
// RFC 2617's cnonce guidance.
func generateCnonce() (string, error) {
	buf := make([]byte, 8)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
