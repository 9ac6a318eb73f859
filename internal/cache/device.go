package cache

import (
	"context"
	"encoding/json"
	"time"

	log "github.com/sirupsen/logrus"
)

// DefaultDeviceTTL is how long a cached device projection lives
// without being refreshed by an accepted report.
const DefaultDeviceTTL = 24 * time.Hour

// DeviceProjection is the denormalized, possibly-stale view of a
// device kept in the fast path. Coordinates stay nil until the device's
// first accepted report passes through the cache.
type DeviceProjection struct {
	DeviceID   uint      `json:"device_id"`
	Identifier string    `json:"identifier"`
	LastSeen   time.Time `json:"last_seen"`
	MaxOffline string    `json:"max_offline"`
	Lat        *float64  `json:"lat,omitempty"`
	Lon        *float64  `json:"lon,omitempty"`
}

// DeviceCache is the cache-aside store of device projections. Backend
// failures are collapsed to misses at this boundary: callers fall
// through to the repository and the pipeline stays available.
type DeviceCache struct {
	store Store
	ttl   time.Duration
}

// NewDeviceCache builds a DeviceCache over the given store. ttl <= 0
// selects DefaultDeviceTTL.
func NewDeviceCache(store Store, ttl time.Duration) *DeviceCache {
	if ttl <= 0 {
		ttl = DefaultDeviceTTL
	}
	return &DeviceCache{store: store, ttl: ttl}
}

func deviceKey(identifier string) string {
	return "device:" + identifier
}

// Get returns the cached projection for an identifier. The second
// return is false on a miss or any backend failure.
func (c *DeviceCache) Get(ctx context.Context, identifier string) (*DeviceProjection, bool) {
	lookup := c.store.Get(ctx, deviceKey(identifier))
	if lookup.Err != nil {
		log.WithError(lookup.Err).WithField("identifier", identifier).
			Warn("device cache read failed, treating as miss")
		return nil, false
	}
	if !lookup.Found {
		return nil, false
	}

	var proj DeviceProjection
	if err := json.Unmarshal(lookup.Value, &proj); err != nil {
		log.WithError(err).WithField("identifier", identifier).
			Warn("corrupt device cache entry, treating as miss")
		return nil, false
	}
	return &proj, true
}

// Put overwrites the projection for an identifier with a refreshed TTL.
func (c *DeviceCache) Put(ctx context.Context, identifier string, proj *DeviceProjection) error {
	data, err := json.Marshal(proj)
	if err != nil {
		return err
	}
	return c.store.Set(ctx, deviceKey(identifier), data, c.ttl)
}

// Update applies a partial mutation to an existing projection,
// preserving the backend's TTL. It never creates a missing entry;
// absent keys return (false, nil).
func (c *DeviceCache) Update(ctx context.Context, identifier string, apply func(*DeviceProjection)) (bool, error) {
	lookup := c.store.Get(ctx, deviceKey(identifier))
	if lookup.Err != nil {
		return false, lookup.Err
	}
	if !lookup.Found {
		return false, nil
	}

	var proj DeviceProjection
	if err := json.Unmarshal(lookup.Value, &proj); err != nil {
		return false, err
	}
	apply(&proj)

	data, err := json.Marshal(&proj)
	if err != nil {
		return false, err
	}
	return c.store.Update(ctx, deviceKey(identifier), data)
}

// Delete removes a projection.
func (c *DeviceCache) Delete(ctx context.Context, identifier string) error {
	return c.store.Delete(ctx, deviceKey(identifier))
}
