package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/module/sipcore/sip"
)

func challengeResponse(statusCode int, headerName, value string) *sip.Response {
	res := sip.NewResponse(statusCode, "")
	res.AppendHeader(sip.NewHeader(headerName, value))
	return res
}

func TestControllerHandleChallengeWithDefaultCredentials(t *testing.T) {
	c := NewController(NewCache(), WithDefaultCredentials(func(origin Origin, realm, scheme string) (Credentials, bool) {
		return Credentials{Username: "bob", Password: "zanzibar"}, true
	}))

	res := challengeResponse(401, "WWW-Authenticate", `Digest realm="asterisk", nonce="n1"`)
	require.NoError(t, c.HandleChallenge(res, sip.Uri{Host: "biloxi.com", Port: 5060}))

	_, pending := c.ChallengeInfo()
	assert.False(t, pending)

	req := sip.NewRequest(sip.INVITE, sip.Uri{User: "bob", Host: "biloxi.com"})
	require.NoError(t, c.AddAuthorizationHeaders(req))

	auth := req.GetHeader("Authorization")
	require.NotNil(t, auth)
	assert.Contains(t, auth.Value(), `username="bob"`)
}

func TestControllerHandleChallengeNoDefaultSurfacesChallengeInfo(t *testing.T) {
	c := NewController(NewCache())

	res := challengeResponse(401, "WWW-Authenticate", `Digest realm="asterisk", nonce="n1"`)
	require.NoError(t, c.HandleChallenge(res, sip.Uri{Host: "biloxi.com", Port: 5060}))

	info, pending := c.ChallengeInfo()
	require.True(t, pending)
	assert.Equal(t, "asterisk", info.Realm)
	assert.Equal(t, "Digest", info.Scheme)
	assert.False(t, info.Proxy)

	req := sip.NewRequest(sip.INVITE, sip.Uri{User: "bob", Host: "biloxi.com"})
	assert.ErrorIs(t, c.AddAuthorizationHeaders(req), ErrMissingCredentials)
}

func TestControllerProxyChallengeUsesProxyAuthorizationHeader(t *testing.T) {
	c := NewController(NewCache(), WithDefaultCredentials(func(origin Origin, realm, scheme string) (Credentials, bool) {
		return Credentials{Username: "bob", Password: "zanzibar"}, true
	}))

	res := challengeResponse(407, "Proxy-Authenticate", `Digest realm="asterisk", nonce="n1"`)
	require.NoError(t, c.HandleChallenge(res, sip.Uri{Host: "proxy.biloxi.com", Port: 5060}))

	req := sip.NewRequest(sip.INVITE, sip.Uri{User: "bob", Host: "biloxi.com"})
	require.NoError(t, c.AddAuthorizationHeaders(req))

	assert.Nil(t, req.GetHeader("Authorization"))
	require.NotNil(t, req.GetHeader("Proxy-Authorization"))
}

func TestControllerRejectsProxyChallengeAfterServerChallenge(t *testing.T) {
	c := NewController(NewCache(), WithDefaultCredentials(func(origin Origin, realm, scheme string) (Credentials, bool) {
		return Credentials{Username: "bob", Password: "zanzibar"}, true
	}))

	res401 := challengeResponse(401, "WWW-Authenticate", `Digest realm="asterisk", nonce="n1"`)
	require.NoError(t, c.HandleChallenge(res401, sip.Uri{Host: "biloxi.com", Port: 5060}))

	res407 := challengeResponse(407, "Proxy-Authenticate", `Digest realm="asterisk", nonce="n2"`)
	assert.ErrorIs(t, c.HandleChallenge(res407, sip.Uri{Host: "biloxi.com", Port: 5060}), ErrUnexpectedProxyAuth)
}

func TestControllerDisabledSchemeIsNotChosen(t *testing.T) {
	c := NewController(NewCache(), WithDefaultCredentials(func(origin Origin, realm, scheme string) (Credentials, bool) {
		return Credentials{Username: "bob", Password: "zanzibar"}, true
	}))
	c.DisableScheme("Digest")
	assert.True(t, c.IsSchemeDisabled("digest"))

	res := challengeResponse(401, "WWW-Authenticate", `Digest realm="asterisk", nonce="n1"`)
	err := c.HandleChallenge(res, sip.Uri{Host: "biloxi.com", Port: 5060})
	assert.ErrorIs(t, err, ErrUnsupportedScheme)
}

func TestControllerStaleChallengeKeepsCachedCredentials(t *testing.T) {
	c := NewController(NewCache(), WithDefaultCredentials(func(origin Origin, realm, scheme string) (Credentials, bool) {
		return Credentials{Username: "bob", Password: "zanzibar"}, true
	}))

	res1 := challengeResponse(401, "WWW-Authenticate", `Digest realm="asterisk", nonce="n1"`)
	require.NoError(t, c.HandleChallenge(res1, sip.Uri{Host: "biloxi.com", Port: 5060}))

	req := sip.NewRequest(sip.INVITE, sip.Uri{User: "bob", Host: "biloxi.com"})
	require.NoError(t, c.AddAuthorizationHeaders(req))

	res2 := challengeResponse(401, "WWW-Authenticate", `Digest realm="asterisk", nonce="n2", stale=true`)
	require.NoError(t, c.HandleChallenge(res2, sip.Uri{Host: "biloxi.com", Port: 5060}))

	// Credentials remain cached across the stale re-challenge; no prompt needed.
	_, pending := c.ChallengeInfo()
	assert.False(t, pending)
	require.NoError(t, c.AddAuthorizationHeaders(req))
}
