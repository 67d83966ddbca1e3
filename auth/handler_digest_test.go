package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/module/sipcore/sip"
)

func TestAuthHandlerDigestGenerateAuthorization(t *testing.T) {
	h, err := NewAuthHandlerDigest(`Digest realm="asterisk", nonce="dcd98b7102dd2f0e8b11d0f600bfb0c093", qop="auth", algorithm=MD5`)
	require.NoError(t, err)
	assert.Equal(t, "Digest", h.Scheme())
	assert.Equal(t, 2, h.Score())

	req := sip.NewRequest(sip.INVITE, sip.Uri{User: "bob", Host: "biloxi.com"})
	value, err := h.GenerateAuthorization(req, Credentials{Username: "bob", Password: "zanzibar"})
	require.NoError(t, err)
	assert.Contains(t, value, `username="bob"`)
	assert.Contains(t, value, `realm="asterisk"`)
	assert.Contains(t, value, `nc=00000001`)
	assert.Contains(t, value, `qop=auth`)

	// A second call on the same nonce must bump the nonce count.
	value2, err := h.GenerateAuthorization(req, Credentials{Username: "bob", Password: "zanzibar"})
	require.NoError(t, err)
	assert.Contains(t, value2, `nc=00000002`)
}

func TestAuthHandlerDigestNoQop(t *testing.T) {
	h, err := NewAuthHandlerDigest(`Digest realm="asterisk", nonce="dcd98b7102dd2f0e8b11d0f600bfb0c093", algorithm=MD5`)
	require.NoError(t, err)
	assert.Equal(t, 1, h.Score())
}

func TestAuthHandlerDigestHandleAnotherChallengeAccept(t *testing.T) {
	h, err := NewAuthHandlerDigest(`Digest realm="asterisk", nonce="nonce1"`)
	require.NoError(t, err)

	assert.Equal(t, Accept, h.HandleAnotherChallenge(`Digest realm="asterisk", nonce="nonce1"`))
}

func TestAuthHandlerDigestHandleAnotherChallengeStaleResetsNonceCount(t *testing.T) {
	// qop is offered so that the nonce count appears in the credentials.
	h, err := NewAuthHandlerDigest(`Digest realm="asterisk", nonce="nonce1", qop="auth"`)
	require.NoError(t, err)

	req := sip.NewRequest(sip.INVITE, sip.Uri{User: "bob", Host: "biloxi.com"})
	_, err = h.GenerateAuthorization(req, Credentials{Username: "bob", Password: "zanzibar"})
	require.NoError(t, err)
	_, err = h.GenerateAuthorization(req, Credentials{Username: "bob", Password: "zanzibar"})
	require.NoError(t, err)

	result := h.HandleAnotherChallenge(`Digest realm="asterisk", nonce="nonce2", qop="auth", stale=true`)
	assert.Equal(t, Stale, result)

	value, err := h.GenerateAuthorization(req, Credentials{Username: "bob", Password: "zanzibar"})
	require.NoError(t, err)
	assert.Contains(t, value, `nc=00000001`)
	assert.Contains(t, value, `nonce="nonce2"`)
}

func TestAuthHandlerDigestHandleAnotherChallengeDifferentRealm(t *testing.T) {
	h, err := NewAuthHandlerDigest(`Digest realm="asterisk", nonce="nonce1"`)
	require.NoError(t, err)

	assert.Equal(t, DifferentRealm, h.HandleAnotherChallenge(`Digest realm="other", nonce="nonce2"`))
}

func TestAuthHandlerDigestHandleAnotherChallengeInvalid(t *testing.T) {
	h, err := NewAuthHandlerDigest(`Digest realm="asterisk", nonce="nonce1"`)
	require.NoError(t, err)

	assert.Equal(t, Invalid, h.HandleAnotherChallenge("not a challenge"))
}

// TestAuthHandlerDigestReferenceVector pins cnonce, nonce and nc to fixed
// values via WithCnonceGenerator and checks the computed response against
// an independently precomputed RFC 2617 MD5 digest, so a change to the
// underlying digest math would be caught byte-for-byte rather than by a
// loose substring check.
func TestAuthHandlerDigestReferenceVector(t *testing.T) {
	h, err := NewAuthHandlerDigest(`Digest realm="asterisk", nonce="dcd98b7102dd2f0e8b11d0f600bfb0c093", qop="auth", algorithm=MD5`)
	require.NoError(t, err)

	digestHandler, ok := h.(*AuthHandlerDigest)
	require.True(t, ok)
	digestHandler.WithCnonceGenerator(func() (string, error) { return "0a4f113b", nil })

	req := sip.NewRequest(sip.INVITE, sip.Uri{User: "bob", Host: "biloxi.com"})
	value, err := h.GenerateAuthorization(req, Credentials{Username: "bob", Password: "zanzibar"})
	require.NoError(t, err)

	// HA1 = MD5("bob:asterisk:zanzibar")
	// HA2 = MD5("INVITE:sip:bob@biloxi.com")
	// response = MD5(HA1:nonce:00000001:0a4f113b:auth:HA2)
	assert.Contains(t, value, `cnonce="0a4f113b"`)
	assert.Contains(t, value, `nc=00000001`)
	assert.Contains(t, value, `response="e3d959c343acf030809f4713c0f26a03"`)
}

func TestAuthHandlerDigestQopAuthInt(t *testing.T) {
	h, err := NewAuthHandlerDigest(`Digest realm="asterisk", nonce="n1", qop="auth-int"`)
	require.NoError(t, err)

	req := sip.NewRequest(sip.INVITE, sip.Uri{User: "bob", Host: "biloxi.com"})
	req.SetBody([]byte("v=0"))
	value, err := h.GenerateAuthorization(req, Credentials{Username: "bob", Password: "zanzibar"})
	require.NoError(t, err)
	assert.Contains(t, value, `qop=auth-int`)
}
