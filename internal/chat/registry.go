package chat

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/wolfman30/shinestar-cleaners/internal/chatbot"
	"github.com/wolfman30/shinestar-cleaners/internal/relay"
)

const subscriberBuffer = 32

// SessionGauge tracks registry size.
type SessionGauge interface {
	SetActiveSessions(n int)
	ObserveSwept(n int)
}

// Session is one visitor's chat panel.
type Session struct {
	ID     string
	Engine *chatbot.Engine

	mu       sync.Mutex
	lastSeen time.Time
	subs     map[uint64]chan chatbot.Message
	nextSub  uint64
}

// Subscribe returns a channel receiving every message appended after the call.
// Slow subscribers drop messages rather than block the engine.
func (s *Session) Subscribe() (<-chan chatbot.Message, func()) {
	ch := make(chan chatbot.Message, subscriberBuffer)
	s.mu.Lock()
	s.nextSub++
	id := s.nextSub
	s.subs[id] = ch
	s.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.subs, id)
			s.mu.Unlock()
			close(ch)
		})
	}
}

func (s *Session) publish(msg chatbot.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ch := range s.subs {
		select {
		case ch <- msg:
		default:
		}
	}
}

func (s *Session) touch(now time.Time) {
	s.mu.Lock()
	s.lastSeen = now
	s.mu.Unlock()
}

func (s *Session) idleSince() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSeen
}

// Registry owns the live chat sessions of this process.
type Registry struct {
	script *chatbot.Script
	relays relay.Factory
	opts   []chatbot.Option
	ttl    time.Duration
	now    func() time.Time
	gauge  SessionGauge

	mu       sync.RWMutex
	sessions map[string]*Session
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithEngineOptions applies opts to every engine the registry builds.
func WithEngineOptions(opts ...chatbot.Option) RegistryOption {
	return func(r *Registry) { r.opts = append(r.opts, opts...) }
}

// WithTTL evicts sessions idle for longer than ttl on Sweep.
func WithTTL(ttl time.Duration) RegistryOption {
	return func(r *Registry) { r.ttl = ttl }
}

// WithGauge reports registry size.
func WithGauge(g SessionGauge) RegistryOption {
	return func(r *Registry) { r.gauge = g }
}

// WithNow overrides the clock used for idle tracking.
func WithNow(now func() time.Time) RegistryOption {
	return func(r *Registry) { r.now = now }
}

// NewRegistry creates an empty registry. A nil relays factory disables relaying.
func NewRegistry(script *chatbot.Script, relays relay.Factory, opts ...RegistryOption) *Registry {
	if script == nil {
		script = chatbot.DefaultScript()
	}
	r := &Registry{
		script:   script,
		relays:   relays,
		ttl:      30 * time.Minute,
		now:      time.Now,
		sessions: make(map[string]*Session),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Open returns the session for id, creating it when unknown, and opens its
// panel. An empty id gets a fresh session id.
func (r *Registry) Open(id string) *Session {
	id = strings.TrimSpace(id)
	if id == "" {
		id = generateSessionID()
	}

	r.mu.Lock()
	s, ok := r.sessions[id]
	if !ok {
		s = r.newSession(id)
		r.sessions[id] = s
	}
	n := len(r.sessions)
	r.mu.Unlock()

	if !ok && r.gauge != nil {
		r.gauge.SetActiveSessions(n)
	}
	s.touch(r.now())
	s.Engine.Open()
	return s
}

func (r *Registry) newSession(id string) *Session {
	s := &Session{ID: id, subs: make(map[uint64]chan chatbot.Message)}
	var store relay.Store
	if r.relays != nil {
		store = r.relays.For(id)
	}
	opts := append([]chatbot.Option{}, r.opts...)
	opts = append(opts, chatbot.WithObserver(s.publish))
	s.Engine = chatbot.NewEngine(r.script, store, opts...)
	return s
}

// Get returns a known session.
func (r *Registry) Get(id string) (*Session, bool) {
	r.mu.RLock()
	s, ok := r.sessions[id]
	r.mu.RUnlock()
	if ok {
		s.touch(r.now())
	}
	return s, ok
}

// Close resets the panel for id. Reports whether the session existed.
func (r *Registry) Close(id string) bool {
	s, ok := r.Get(id)
	if !ok {
		return false
	}
	s.Engine.Reset()
	return true
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Sweep drops sessions idle longer than the TTL and returns how many went.
func (r *Registry) Sweep() int {
	if r.ttl <= 0 {
		return 0
	}
	cutoff := r.now().Add(-r.ttl)

	r.mu.Lock()
	removed := 0
	for id, s := range r.sessions {
		if s.idleSince().Before(cutoff) {
			delete(r.sessions, id)
			removed++
		}
	}
	n := len(r.sessions)
	r.mu.Unlock()

	if r.gauge != nil {
		r.gauge.ObserveSwept(removed)
		r.gauge.SetActiveSessions(n)
	}
	return removed
}

// Run sweeps on every interval tick until ctx is done.
func (r *Registry) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.Sweep()
		}
	}
}

// generateSessionID creates a random session identifier.
func generateSessionID() string {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return uuid.New().String()
	}
	return hex.EncodeToString(b)
}
