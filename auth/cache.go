package auth

import "sync"

type cacheKey struct {
	origin Origin
	realm  string
	scheme string
}

// Cache stores credentials keyed by (origin, realm, scheme) so a controller
// handling a later request to the same destination does not need to
// re-prompt the upper core.
type Cache struct {
	mu      sync.Mutex
	entries map[cacheKey]Credentials
}

func NewCache() *Cache {
	return &Cache{entries: make(map[cacheKey]Credentials)}
}

func (c *Cache) Get(origin Origin, realm, scheme string) (Credentials, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	cr, ok := c.entries[cacheKey{origin, realm, scheme}]
	return cr, ok
}

func (c *Cache) Put(origin Origin, realm, scheme string, creds Credentials) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[cacheKey{origin, realm, scheme}] = creds
}

func (c *Cache) Delete(origin Origin, realm, scheme string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, cacheKey{origin, realm, scheme})
}
