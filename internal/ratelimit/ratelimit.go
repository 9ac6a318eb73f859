// Package ratelimit implements admission control for the ingest
// pipeline: a per-key spacing gate and a fixed-window per-minute
// quota, both backed by the cache store. If the store is unreachable
// every gate fails open; keeping ingestion available wins over strict
// admission control.
package ratelimit

import (
	"context"
	"strconv"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/ukydev/telemetry-ingest/internal/cache"
)

const (
	// DefaultMinDelay is the minimum spacing between two requests for
	// the same key.
	DefaultMinDelay = 100 * time.Millisecond
	// DefaultMaxPerMinute is the per-key quota inside one window.
	DefaultMaxPerMinute = 60
	// DefaultWindow is the quota window; counter keys expire with it.
	DefaultWindow = 60 * time.Second
)

// Limiter gates requests per device/client key.
type Limiter struct {
	store cache.Store

	Enabled      bool
	MinDelay     time.Duration
	MaxPerMinute int64
	Window       time.Duration

	now   func() time.Time
	sleep func(time.Duration)
}

// New returns an enabled Limiter with the default thresholds.
func New(store cache.Store) *Limiter {
	return &Limiter{
		store:        store,
		Enabled:      true,
		MinDelay:     DefaultMinDelay,
		MaxPerMinute: DefaultMaxPerMinute,
		Window:       DefaultWindow,
		now:          time.Now,
		sleep:        time.Sleep,
	}
}

func lastKey(key string) string  { return "rate:last:" + key }
func countKey(key string) string { return "rate:count:" + key }

// Allow is the spacing gate. The first request for a key is always
// allowed and seeds the timestamp; later requests pass only when at
// least MinDelay has elapsed, and each allowed request refreshes the
// timestamp. Milliseconds precision.
func (l *Limiter) Allow(ctx context.Context, key string) bool {
	if !l.Enabled {
		return true
	}

	nowMs := l.now().UnixMilli()
	lookup := l.store.Get(ctx, lastKey(key))
	if lookup.Err != nil {
		log.WithError(lookup.Err).WithField("key", key).
			Warn("rate limit store unreachable, failing open")
		return true
	}

	if lookup.Found {
		lastMs, err := strconv.ParseInt(string(lookup.Value), 10, 64)
		if err == nil && nowMs-lastMs < l.MinDelay.Milliseconds() {
			return false
		}
	}

	if err := l.store.Set(ctx, lastKey(key), []byte(strconv.FormatInt(nowMs, 10)), l.Window); err != nil {
		log.WithError(err).WithField("key", key).
			Warn("failed to record request timestamp")
	}
	return true
}

// CheckQuota is the fixed-window quota gate. The first request in a
// window creates the counter at 1 with a fresh TTL; rejected requests
// do not increment, so a key that hits the cap stays rejected until
// the window key expires.
func (l *Limiter) CheckQuota(ctx context.Context, key string) bool {
	if !l.Enabled {
		return true
	}

	lookup := l.store.Get(ctx, countKey(key))
	if lookup.Err != nil {
		log.WithError(lookup.Err).WithField("key", key).
			Warn("rate limit store unreachable, failing open")
		return true
	}

	if lookup.Found {
		n, err := strconv.ParseInt(string(lookup.Value), 10, 64)
		if err == nil && n >= l.MaxPerMinute {
			return false
		}
	}

	if _, err := l.store.Increment(ctx, countKey(key), l.Window); err != nil {
		log.WithError(err).WithField("key", key).
			Warn("failed to increment request counter, failing open")
	}
	return true
}

// ApplyDelay blocks for the configured minimum delay. The consumer
// calls it after each successful ingest to smooth write pressure on
// the repository.
func (l *Limiter) ApplyDelay() {
	if !l.Enabled || l.MinDelay <= 0 {
		return
	}
	l.sleep(l.MinDelay)
}

// TimeUntilNext returns how long until the spacing gate would next
// allow the key; zero when it is currently allowed or limiting is
// disabled.
func (l *Limiter) TimeUntilNext(ctx context.Context, key string) time.Duration {
	if !l.Enabled {
		return 0
	}

	lookup := l.store.Get(ctx, lastKey(key))
	if lookup.Err != nil || !lookup.Found {
		return 0
	}
	lastMs, err := strconv.ParseInt(string(lookup.Value), 10, 64)
	if err != nil {
		return 0
	}

	remaining := l.MinDelay - time.Duration(l.now().UnixMilli()-lastMs)*time.Millisecond
	if remaining < 0 {
		return 0
	}
	return remaining
}
