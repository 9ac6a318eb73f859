package cache

import (
	"context"
	"strconv"
	"sync"
	"time"
)

type memoryEntry struct {
	value     []byte
	expiresAt time.Time // zero means no expiry
}

func (e *memoryEntry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && now.After(e.expiresAt)
}

// MemoryStore is an in-process Store used by tests and single-node
// development setups. Expiry is checked lazily on access.
type MemoryStore struct {
	mu      sync.Mutex
	prefix  string
	entries map[string]*memoryEntry
	now     func() time.Time
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore(prefix string) *MemoryStore {
	return &MemoryStore{
		prefix:  prefix,
		entries: make(map[string]*memoryEntry),
		now:     time.Now,
	}
}

// SetClock overrides the store's time source. Tests use it to step
// through TTL windows without sleeping.
func (s *MemoryStore) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

func (s *MemoryStore) key(k string) string {
	if s.prefix == "" {
		return k
	}
	return s.prefix + ":" + k
}

// Get implements Store.
func (s *MemoryStore) Get(_ context.Context, key string) Lookup {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[s.key(key)]
	if !ok || entry.expired(s.now()) {
		delete(s.entries, s.key(key))
		return Lookup{}
	}
	val := make([]byte, len(entry.value))
	copy(val, entry.value)
	return Lookup{Value: val, Found: true}
}

// Set implements Store.
func (s *MemoryStore) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry := &memoryEntry{value: append([]byte(nil), value...)}
	if ttl > 0 {
		entry.expiresAt = s.now().Add(ttl)
	}
	s.entries[s.key(key)] = entry
	return nil
}

// Update implements Store: set-if-exists with the expiry kept.
func (s *MemoryStore) Update(_ context.Context, key string, value []byte) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[s.key(key)]
	if !ok || entry.expired(s.now()) {
		delete(s.entries, s.key(key))
		return false, nil
	}
	entry.value = append([]byte(nil), value...)
	return true, nil
}

// Delete implements Store.
func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, s.key(key))
	return nil
}

// Increment implements Store.
func (s *MemoryStore) Increment(_ context.Context, key string, ttl time.Duration) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	k := s.key(key)
	entry, ok := s.entries[k]
	if !ok || entry.expired(s.now()) {
		entry = &memoryEntry{value: []byte("1")}
		if ttl > 0 {
			entry.expiresAt = s.now().Add(ttl)
		}
		s.entries[k] = entry
		return 1, nil
	}

	n, err := strconv.ParseInt(string(entry.value), 10, 64)
	if err != nil {
		n = 0
	}
	n++
	entry.value = []byte(strconv.FormatInt(n, 10))
	return n, nil
}
