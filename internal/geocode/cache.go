package geocode

import (
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	stderrors "errors"
	"time"

	"github.com/google/uuid"

	"sjsage522/eventworker/internal/event"
	"sjsage522/eventworker/internal/normalize"
	"sjsage522/eventworker/logger"
	"sjsage522/eventworker/pkg/errors"
	"sjsage522/eventworker/services/cache"
)

// DefaultCacheTTL bounds how long an entry may outlive its run in a shared backend.
const DefaultCacheTTL = 12 * time.Hour

type cacheEntry struct {
	Miss bool    `json:"miss,omitempty"`
	Lat  float64 `json:"lat,omitempty"`
	Lon  float64 `json:"lon,omitempty"`
}

// Cache remembers geocoding answers, including failures, for one run.
// Keys are prefixed with a per-run ID so a shared memcache never serves
// results from an earlier run.
type Cache struct {
	backend cache.CacheService
	runID   string
	ttl     time.Duration
}

// NewCache wraps backend with a fresh run namespace.
func NewCache(backend cache.CacheService, ttl time.Duration) *Cache {
	if backend == nil {
		backend = cache.NewMemoryService()
	}
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &Cache{
		backend: backend,
		runID:   uuid.NewString(),
		ttl:     ttl,
	}
}

// RunID identifies the run namespace.
func (c *Cache) RunID() string {
	return c.runID
}

func (c *Cache) key(address string) string {
	sum := sha1.Sum([]byte(normalize.NormalizeAddress(address)))
	return "geocode:" + c.runID + ":" + hex.EncodeToString(sum[:])
}

// Lookup returns the cached answer for address. found is false when the
// address has not been geocoded in this run; coords is nil for a cached miss.
func (c *Cache) Lookup(address string) (coords *event.Coordinates, found bool) {
	key := c.key(address)
	data, err := c.backend.Get(key)
	if err != nil {
		if !stderrors.Is(err, cache.ErrCacheMiss) {
			c.warn(errors.NewCache("geocode", "read failed", err), address)
		}
		return nil, false
	}

	var entry cacheEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		c.warn(errors.NewCache("geocode", "corrupt entry discarded", err), address)
		if derr := c.backend.Delete(key); derr != nil {
			c.warn(errors.NewCache("geocode", "delete failed", derr), address)
		}
		return nil, false
	}
	if entry.Miss {
		return nil, true
	}
	return &event.Coordinates{Lat: entry.Lat, Lon: entry.Lon}, true
}

// Store records coords for address; nil records a miss.
func (c *Cache) Store(address string, coords *event.Coordinates) {
	entry := cacheEntry{Miss: coords == nil}
	if coords != nil {
		entry.Lat, entry.Lon = coords.Lat, coords.Lon
	}

	data, _ := json.Marshal(entry)
	if err := c.backend.Set(c.key(address), data, c.ttl); err != nil {
		c.warn(errors.NewCache("geocode", "write failed", err), address)
	}
}

func (c *Cache) warn(err error, address string) {
	logger.ForCache().Warn().Err(err).Str("address", address).Msg("Geocode cache error")
}
