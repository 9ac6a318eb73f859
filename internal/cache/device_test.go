package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// brokenStore simulates an unreachable cache backend.
type brokenStore struct{}

func (brokenStore) Get(context.Context, string) Lookup {
	return Lookup{Err: errors.New("connection refused")}
}
func (brokenStore) Set(context.Context, string, []byte, time.Duration) error {
	return errors.New("connection refused")
}
func (brokenStore) Update(context.Context, string, []byte) (bool, error) {
	return false, errors.New("connection refused")
}
func (brokenStore) Delete(context.Context, string) error {
	return errors.New("connection refused")
}
func (brokenStore) Increment(context.Context, string, time.Duration) (int64, error) {
	return 0, errors.New("connection refused")
}

func TestDeviceCachePutGet(t *testing.T) {
	c := NewDeviceCache(NewMemoryStore("test"), 0)
	ctx := context.Background()

	lat, lon := -34.603722, -58.381592
	proj := &DeviceProjection{
		DeviceID:   7,
		Identifier: "D1",
		LastSeen:   time.Now().UTC().Truncate(time.Second),
		MaxOffline: "00:30:00",
		Lat:        &lat,
		Lon:        &lon,
	}
	require.NoError(t, c.Put(ctx, "D1", proj))

	got, ok := c.Get(ctx, "D1")
	require.True(t, ok)
	assert.Equal(t, proj.DeviceID, got.DeviceID)
	assert.Equal(t, proj.Identifier, got.Identifier)
	require.NotNil(t, got.Lat)
	assert.Equal(t, lat, *got.Lat)
}

func TestDeviceCacheMiss(t *testing.T) {
	c := NewDeviceCache(NewMemoryStore("test"), 0)
	_, ok := c.Get(context.Background(), "unknown")
	assert.False(t, ok)
}

func TestDeviceCacheBackendErrorIsMiss(t *testing.T) {
	c := NewDeviceCache(brokenStore{}, 0)
	_, ok := c.Get(context.Background(), "D1")
	assert.False(t, ok, "backend failure must look like a miss to callers")
}

func TestDeviceCacheUpdateAbsent(t *testing.T) {
	c := NewDeviceCache(NewMemoryStore("test"), 0)
	found, err := c.Update(context.Background(), "D1", func(p *DeviceProjection) {
		p.MaxOffline = "01:00:00"
	})
	require.NoError(t, err)
	assert.False(t, found)

	_, ok := c.Get(context.Background(), "D1")
	assert.False(t, ok, "update must never create an entry")
}

func TestDeviceCacheUpdateMerges(t *testing.T) {
	c := NewDeviceCache(NewMemoryStore("test"), 0)
	ctx := context.Background()

	require.NoError(t, c.Put(ctx, "D1", &DeviceProjection{DeviceID: 7, Identifier: "D1"}))

	found, err := c.Update(ctx, "D1", func(p *DeviceProjection) {
		p.MaxOffline = "01:00:00"
	})
	require.NoError(t, err)
	require.True(t, found)

	got, ok := c.Get(ctx, "D1")
	require.True(t, ok)
	assert.Equal(t, uint(7), got.DeviceID)
	assert.Equal(t, "01:00:00", got.MaxOffline)
}
