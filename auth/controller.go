package auth

import (
	"fmt"
	"sync"

	"github.com/module/sipcore/sip"
)

// CredentialsSource supplies identity material for a challenge when the
// cache has no stored credentials yet. It is consulted at most once per
// chain (the "try default credentials exactly once" rule); a second miss
// surfaces a ChallengeInfo to the upper core instead of calling it again.
type CredentialsSource func(origin Origin, realm, scheme string) (Credentials, bool)

// Controller owns the authentication policy for a single outbound request
// chain: which scheme/handler is active, which schemes have been
// permanently disabled in this chain, and the credentials cache shared
// across chains to the same destination.
type Controller struct {
	mu sync.Mutex

	cache     *Cache
	defaultFn CredentialsSource

	target  Target
	started bool

	handler AuthHandler
	origin  Origin
	realm   string

	disabledSchemes map[string]bool
	defaultTried    bool
	pendingInfo     *ChallengeInfo
}

type ControllerOption func(*Controller)

// WithDefaultCredentials installs the fallback credentials source consulted
// on a cache miss, once per chain.
func WithDefaultCredentials(fn CredentialsSource) ControllerOption {
	return func(c *Controller) { c.defaultFn = fn }
}

func NewController(cache *Cache, opts ...ControllerOption) *Controller {
	c := &Controller{
		cache:           cache,
		disabledSchemes: make(map[string]bool),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// DisableScheme marks scheme as unusable for the remainder of this chain.
func (c *Controller) DisableScheme(scheme string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.disabledSchemes[sip.ASCIIToUpper(scheme)] = true
}

func (c *Controller) IsSchemeDisabled(scheme string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.disabledSchemes[sip.ASCIIToUpper(scheme)]
}

// ChallengeInfo returns the prompting surface populated the last time
// HandleChallenge could not resolve credentials from the cache or the
// default-credentials source, if any.
func (c *Controller) ChallengeInfo() (ChallengeInfo, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pendingInfo == nil {
		return ChallengeInfo{}, false
	}
	return *c.pendingInfo, true
}

func challengeTarget(statusCode int) (Target, bool) {
	switch statusCode {
	case 401:
		return TargetServer, true
	case 407:
		return TargetProxy, true
	default:
		return 0, false
	}
}

func challengeHeaderName(target Target) string {
	if target == TargetProxy {
		return "Proxy-Authenticate"
	}
	return "WWW-Authenticate"
}

// HandleChallenge processes a 401/407 response per RFC 3261 §22 /
// RFC 2617: it validates the challenge's target against the response
// status, applies proxy/server ordering rules, reuses or replaces the
// current handler, and resolves the credentials the handler will need.
// recipient is the request-URI of the request that was challenged; it is
// run through OriginFromURI to derive the credentials-cache key.
func (c *Controller) HandleChallenge(res *sip.Response, recipient sip.Uri) error {
	origin := OriginFromURI(recipient)

	target, ok := challengeTarget(res.StatusCode)
	if !ok {
		return fmt.Errorf("status %d: %w", res.StatusCode, ErrUnexpectedResponse)
	}

	headerName := challengeHeaderName(target)
	lines := headerValues(res, headerName)
	if len(lines) == 0 {
		// A challenge carried only in the other target's header contradicts
		// the status code (e.g. a 401 with only Proxy-Authenticate).
		otherName := challengeHeaderName(TargetProxy)
		if target == TargetProxy {
			otherName = challengeHeaderName(TargetServer)
		}
		if len(headerValues(res, otherName)) > 0 {
			return fmt.Errorf("status %d with %s: %w", res.StatusCode, otherName, ErrUnexpectedResponse)
		}
		return fmt.Errorf("%s: %w", headerName, ErrNoChallenge)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	// Target ordering: once server-auth has begun, a later proxy challenge
	// is an error. Proxy -> server transition is allowed and invalidates
	// cached proxy credentials.
	if c.started {
		if c.target == TargetServer && target == TargetProxy {
			return ErrUnexpectedProxyAuth
		}
		if c.target == TargetProxy && target == TargetServer {
			c.cache.Delete(c.origin, c.realm, c.handler.Scheme())
			c.handler = nil
		}
	}
	c.started = true
	c.target = target

	if c.handler != nil {
		switch c.handler.HandleAnotherChallenge(lines[0]) {
		case Accept:
			// keep handler and cached credentials
		case Stale:
			// handler already rebased its nonce; credentials stay cached
		case Reject, DifferentRealm, Invalid:
			c.cache.Delete(c.origin, c.realm, c.handler.Scheme())
			c.handler = nil
		}
	}

	if c.handler == nil {
		handlers := buildHandlers(lines)
		var chosen AuthHandler
		for _, h := range handlers {
			if c.disabledSchemes[sip.ASCIIToUpper(h.Scheme())] {
				continue
			}
			chosen = h
			break
		}
		if chosen == nil {
			return unsupportedSchemeErr(headerValues(res, headerName)[0])
		}
		c.handler = chosen
	}

	c.origin = origin
	realm, ok := digestRealm(lines[0])
	if ok {
		c.realm = realm
	}

	if _, ok := c.cache.Get(c.origin, c.realm, c.handler.Scheme()); ok {
		c.pendingInfo = nil
		return nil
	}

	if !c.defaultTried && c.defaultFn != nil {
		c.defaultTried = true
		if creds, ok := c.defaultFn(c.origin, c.realm, c.handler.Scheme()); ok {
			c.cache.Put(c.origin, c.realm, c.handler.Scheme(), creds)
			c.pendingInfo = nil
			return nil
		}
	}

	c.pendingInfo = &ChallengeInfo{
		Realm:  c.realm,
		Scheme: c.handler.Scheme(),
		Origin: c.origin,
		Proxy:  target == TargetProxy,
	}
	return nil
}

// AddAuthorizationHeaders attaches the Authorization or Proxy-Authorization
// header to req using the current handler and cached credentials. On a
// permanent handler failure it disables the scheme and reports success
// (ErrMissingCredentials/ErrUnsupportedScheme/etc. wrapped errors are
// swallowed into a nil return) so the caller can retry the chain with the
// next best scheme, per spec.
func (c *Controller) AddAuthorizationHeaders(req *sip.Request) error {
	c.mu.Lock()
	handler := c.handler
	origin, realm := c.origin, c.realm
	c.mu.Unlock()

	if handler == nil {
		return ErrMissingCredentials
	}

	creds, ok := c.cache.Get(origin, realm, handler.Scheme())
	if !ok {
		return ErrMissingCredentials
	}

	value, err := handler.GenerateAuthorization(req, creds)
	if err != nil {
		if isPermanent(err) {
			c.DisableScheme(handler.Scheme())
			return nil
		}
		return fmt.Errorf("%s: %w", err.Error(), ErrInvalidCredentials)
	}

	c.mu.Lock()
	target := c.target
	c.mu.Unlock()

	headerName := "Authorization"
	if target == TargetProxy {
		headerName = "Proxy-Authorization"
	}
	req.RemoveHeader(headerName)
	req.AppendHeader(sip.NewHeader(headerName, value))
	return nil
}

func headerValues(res *sip.Response, name string) []string {
	hdrs := res.GetHeaders(name)
	values := make([]string, 0, len(hdrs))
	for _, h := range hdrs {
		values = append(values, h.Value())
	}
	return values
}

// digestRealm pulls realm="..." out of a raw challenge line without a full
// parse, used purely as the cache key before a handler is built.
func digestRealm(line string) (string, bool) {
	const key = "realm=\""
	idx := indexFold(line, key)
	if idx < 0 {
		return "", false
	}
	rest := line[idx+len(key):]
	end := indexByte(rest, '"')
	if end < 0 {
		return "", false
	}
	return rest[:end], true
}

func indexFold(s, substr string) int {
	ls, lsub := len(s), len(substr)
	if lsub == 0 {
		return 0
	}
	for i := 0; i+lsub <= ls; i++ {
		if sip.ASCIIToUpper(s[i:i+lsub]) == sip.ASCIIToUpper(substr) {
			return i
		}
	}
	return -1
}

func indexByte(s string, b byte) int {
	for i := 0; i < len(s); i++ {
		if s[i] == b {
			return i
		}
	}
	return -1
}
