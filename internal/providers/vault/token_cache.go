package vault

import (
	"sync"
	"time"
)

// tokenCache holds the AppRole-issued client token in memory only, with
// a small buffer subtracted from its lease so callers refresh slightly
// before Vault actually expires it.
type tokenCache struct {
	mu        sync.RWMutex
	token     string
	expiresAt time.Time
}

func (c *tokenCache) get() (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.token == "" || time.Now().After(c.expiresAt) {
		return "", false
	}
	return c.token, true
}

func (c *tokenCache) set(token string, leaseDuration time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = token
	const buffer = 5 * time.Second
	if leaseDuration > buffer {
		leaseDuration -= buffer
	}
	c.expiresAt = time.Now().Add(leaseDuration)
}

func (c *tokenCache) clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = ""
	c.expiresAt = time.Time{}
}
