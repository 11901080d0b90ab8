package configcache

import (
	"time"

	"github.com/cablehq/actioncable-go/pkg/config"
)

// GetConfig resolves name via config.GetConfig, but serves repeat lookups
// within ttl from cache instead of re-reading the environment on every
// call. Intended for a fallback resolver consulted on every Consumer dial,
// where config.GetConfig alone would mean a syscall per reconnect.
func (c *Cache) GetConfig(name string, ttl time.Duration) (string, bool) {
	if v, ok := c.Get(name); ok {
		return v, true
	}

	v, ok := config.GetConfig(name)
	if !ok {
		return "", false
	}

	c.Set(name, v, ttl)
	c.Wait()
	return v, true
}
