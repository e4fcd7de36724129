package relay

import (
	"context"
	"strings"
	"sync"
	"time"
)

// MemoryStore keeps the serialized mapping in process memory. It mirrors the
// browser storage contract: one blob, whole-object rewrite on every set.
type MemoryStore struct {
	mu   sync.Mutex
	blob []byte
}

// NewMemoryStore creates an empty in-memory relay.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// SetField merges name=value into the stored mapping.
func (s *MemoryStore) SetField(_ context.Context, name, value string) error {
	if strings.TrimSpace(name) == "" {
		return ErrFieldRequired
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	next, err := merge(s.blob, name, value)
	if err != nil {
		return err
	}
	s.blob = next
	return nil
}

// ReadAll returns a copy of the current mapping.
func (s *MemoryStore) ReadAll(_ context.Context) (map[string]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fields, _ := decode(s.blob)
	return fields, nil
}

// Raw replaces the stored blob. Used to seed state written by other clients.
func (s *MemoryStore) Raw(blob []byte) {
	s.mu.Lock()
	s.blob = append([]byte(nil), blob...)
	s.mu.Unlock()
}

// MemoryFactory keeps one MemoryStore per session. Stores are created by the
// first write only and expire ttl after their last write, like Redis keys with
// an expiry. A zero ttl keeps stores until the process exits.
type MemoryFactory struct {
	ttl time.Duration
	now func() time.Time

	mu      sync.Mutex
	entries map[string]*memoryEntry
}

type memoryEntry struct {
	store   *MemoryStore
	written time.Time
}

// MemoryOption configures a MemoryFactory.
type MemoryOption func(*MemoryFactory)

// WithMemoryTTL expires a session's fields ttl after the last write.
func WithMemoryTTL(ttl time.Duration) MemoryOption {
	return func(f *MemoryFactory) { f.ttl = ttl }
}

// WithMemoryClock overrides the clock used for expiry.
func WithMemoryClock(now func() time.Time) MemoryOption {
	return func(f *MemoryFactory) {
		if now != nil {
			f.now = now
		}
	}
}

// NewMemoryFactory creates an empty session-scoped memory factory.
func NewMemoryFactory(opts ...MemoryOption) *MemoryFactory {
	f := &MemoryFactory{
		now:     time.Now,
		entries: make(map[string]*memoryEntry),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// For returns a handle bound to session. It allocates nothing until written.
func (f *MemoryFactory) For(session string) Store {
	return &memoryHandle{factory: f, key: ScopedKey(session)}
}

// Len returns the number of live session stores.
func (f *MemoryFactory) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.entries)
}

// Evict drops expired stores and returns how many went.
func (f *MemoryFactory) Evict() int {
	if f.ttl <= 0 {
		return 0
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	now := f.now()
	removed := 0
	for key, entry := range f.entries {
		if f.expiredLocked(entry, now) {
			delete(f.entries, key)
			removed++
		}
	}
	return removed
}

// Run evicts expired stores on every interval tick until ctx is done.
func (f *MemoryFactory) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 || f.ttl <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			f.Evict()
		}
	}
}

func (f *MemoryFactory) expiredLocked(entry *memoryEntry, now time.Time) bool {
	return f.ttl > 0 && !entry.written.Add(f.ttl).After(now)
}

func (f *MemoryFactory) set(ctx context.Context, key, name, value string) error {
	if strings.TrimSpace(name) == "" {
		return ErrFieldRequired
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	now := f.now()
	entry, ok := f.entries[key]
	if !ok || f.expiredLocked(entry, now) {
		entry = &memoryEntry{store: NewMemoryStore()}
		f.entries[key] = entry
	}
	if err := entry.store.SetField(ctx, name, value); err != nil {
		return err
	}
	entry.written = now
	return nil
}

func (f *MemoryFactory) read(ctx context.Context, key string) (map[string]string, error) {
	f.mu.Lock()
	entry, ok := f.entries[key]
	if ok && f.expiredLocked(entry, f.now()) {
		delete(f.entries, key)
		ok = false
	}
	f.mu.Unlock()
	if !ok {
		return map[string]string{}, nil
	}
	return entry.store.ReadAll(ctx)
}

// memoryHandle resolves its session store on every call so eviction never
// strands a writer on a detached store.
type memoryHandle struct {
	factory *MemoryFactory
	key     string
}

func (h *memoryHandle) SetField(ctx context.Context, name, value string) error {
	return h.factory.set(ctx, h.key, name, value)
}

func (h *memoryHandle) ReadAll(ctx context.Context) (map[string]string, error) {
	return h.factory.read(ctx, h.key)
}
