package auth

import (
	"fmt"
	"sort"
	"sync"

	"github.com/module/sipcore/sip"
)

// AuthHandler holds the session state for one scheme across a challenge
// chain: a Digest handler remembers its nonce, nonce count and cnonce
// generator; future scheme handlers keep whatever state their RFC needs.
type AuthHandler interface {
	// Scheme is the auth-scheme token as it appears on the wire ("Digest").
	Scheme() string
	// Score ranks competing handlers built for the same response; the
	// controller picks the highest score among handlers offered by the
	// registered factories.
	Score() int
	// HandleAnotherChallenge inspects a new challenge for a scheme the
	// handler already holds a session for (e.g. a second 401 in the same
	// chain) and reports what the controller should do with the handler.
	HandleAnotherChallenge(challengeLine string) ChallengeResult
	// GenerateAuthorization builds the Authorization/Proxy-Authorization
	// header value for req, using the supplied credentials.
	GenerateAuthorization(req *sip.Request, creds Credentials) (string, error)
}

// HandlerFactory builds an AuthHandler from a single challenge's raw header
// value. It returns an error (typically ErrUnsupportedScheme or
// ErrMisconfiguredEnvironment) when it cannot construct a handler.
type HandlerFactory func(challengeLine string) (AuthHandler, error)

var (
	registryMu sync.Mutex
	registry   = map[string]HandlerFactory{}
)

// RegisterScheme registers a constructor for an auth-scheme name (matched
// case-insensitively against the scheme token prefixing each challenge
// line). Schemes typically register themselves from an init().
func RegisterScheme(scheme string, factory HandlerFactory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[sip.ASCIIToUpper(scheme)] = factory
}

func init() {
	RegisterScheme("Digest", NewAuthHandlerDigest)
}

// buildHandlers walks every registered factory whose scheme name prefixes
// one of the challenge lines in the response and returns the handlers it
// can build, one per matching challenge line, highest Score() first.
func buildHandlers(challengeLines []string) []AuthHandler {
	registryMu.Lock()
	factories := make(map[string]HandlerFactory, len(registry))
	for k, v := range registry {
		factories[k] = v
	}
	registryMu.Unlock()

	var handlers []AuthHandler
	for _, line := range challengeLines {
		scheme := schemeToken(line)
		factory, ok := factories[sip.ASCIIToUpper(scheme)]
		if !ok {
			continue
		}
		h, err := factory(line)
		if err != nil {
			continue
		}
		handlers = append(handlers, h)
	}

	sort.SliceStable(handlers, func(i, j int) bool {
		return handlers[i].Score() > handlers[j].Score()
	})
	return handlers
}

// schemeToken extracts the leading scheme token of a challenge/credentials
// header value, e.g. "Digest realm=..." -> "Digest".
func schemeToken(line string) string {
	for i, r := range line {
		if r == ' ' {
			return line[:i]
		}
	}
	return line
}

func unsupportedSchemeErr(scheme string) error {
	return fmt.Errorf("%s: %w", scheme, ErrUnsupportedScheme)
}
