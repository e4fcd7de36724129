// Package chatbot implements the scripted quote assistant: a declarative step
// script and a generic engine that walks a visitor through it.
package chatbot

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/wolfman30/shinestar-cleaners/internal/relay"
	"github.com/wolfman30/shinestar-cleaners/pkg/logging"
)

// DefaultReplyDelay paces bot replies in the widget.
const DefaultReplyDelay = 500 * time.Millisecond

// ErrNotOpen is returned when a reply arrives before the panel was opened.
var ErrNotOpen = errors.New("chatbot: conversation not open")

// Scheduler runs fn after delay. Implementations may run fn synchronously.
type Scheduler func(delay time.Duration, fn func())

// AfterFunc schedules on a timer goroutine; a non-positive delay runs inline.
func AfterFunc(delay time.Duration, fn func()) {
	if delay <= 0 {
		fn()
		return
	}
	time.AfterFunc(delay, fn)
}

// Immediate runs fn inline, ignoring the delay.
func Immediate(_ time.Duration, fn func()) {
	fn()
}

// TransitionRecorder receives one observation per handled reply.
type TransitionRecorder interface {
	ObserveTransition(step string, outcome string)
}

// Option configures an Engine.
type Option func(*Engine)

// WithDelay sets the bot reply delay.
func WithDelay(d time.Duration) Option {
	return func(e *Engine) { e.delay = d }
}

// WithScheduler replaces the timer used for delayed bot replies.
func WithScheduler(s Scheduler) Option {
	return func(e *Engine) {
		if s != nil {
			e.schedule = s
		}
	}
}

// WithObserver registers a callback invoked for every appended message.
func WithObserver(fn func(Message)) Option {
	return func(e *Engine) { e.observer = fn }
}

// WithClock overrides the message timestamp source.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// WithLogger sets the engine logger.
func WithLogger(l *logging.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithRecorder attaches a transition recorder.
func WithRecorder(r TransitionRecorder) Option {
	return func(e *Engine) { e.recorder = r }
}

// Engine interprets a Script for one conversation. It never references the
// contact form; collected values only leave through the relay.
type Engine struct {
	script   *Script
	relay    relay.Store
	delay    time.Duration
	schedule Scheduler
	observer func(Message)
	now      func() time.Time
	logger   *logging.Logger
	recorder TransitionRecorder

	mu         sync.Mutex
	step       int
	transcript []Message
	opened     bool
	lastID     int64
	generation uint64
}

// NewEngine creates an idle engine at step 0. A nil relay disables relaying.
func NewEngine(script *Script, store relay.Store, opts ...Option) *Engine {
	if script == nil {
		script = DefaultScript()
	}
	e := &Engine{
		script:   script,
		relay:    store,
		delay:    DefaultReplyDelay,
		schedule: AfterFunc,
		now:      time.Now,
		logger:   logging.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Script returns the script being interpreted.
func (e *Engine) Script() *Script {
	return e.script
}

// Open shows the panel. The opening prompt is appended once per lifetime;
// reports whether it was appended by this call.
func (e *Engine) Open() bool {
	e.mu.Lock()
	if e.opened {
		e.mu.Unlock()
		return false
	}
	e.opened = true
	first, _ := e.script.Step(0)
	msg := e.appendLocked(first.Prompt, OriginBot)
	e.mu.Unlock()

	e.notify(msg)
	return true
}

// Reset closes the panel and starts over: transcript cleared, step 0, and any
// bot reply still waiting on its delay is dropped.
func (e *Engine) Reset() {
	e.mu.Lock()
	e.generation++
	e.step = 0
	e.transcript = nil
	e.opened = false
	e.mu.Unlock()
}

// Submit handles one reply, typed or clicked. Clicking an option is the same
// as typing its label. Blank replies are ignored.
func (e *Engine) Submit(ctx context.Context, text string) (Outcome, error) {
	if strings.TrimSpace(text) == "" {
		return OutcomeIgnored, nil
	}

	e.mu.Lock()
	if !e.opened {
		e.mu.Unlock()
		return OutcomeIgnored, ErrNotOpen
	}

	userMsg := e.appendLocked(text, OriginUser)
	from := e.step
	last := e.script.Len() - 1
	lower := strings.ToLower(text)

	var (
		outcome    Outcome
		reply      string
		relayName  string
		relayValue string
	)
	switch {
	case from == 0:
		if strings.Contains(lower, "yes") {
			e.step = 1
			next, _ := e.script.Step(1)
			outcome, reply = OutcomeAdvanced, next.Prompt
		} else {
			outcome, reply = OutcomeDeclined, e.script.DeclineMessage
		}
	case from == last:
		if strings.Contains(lower, "another") || strings.Contains(lower, "question") {
			outcome, reply = OutcomeContact, e.script.ContactMessage
		} else {
			outcome, reply = OutcomeClosed, e.script.ClosingMessage
		}
	default:
		current, _ := e.script.Step(from)
		if current.HasField() && !e.script.IsOptOut(current.Field, text) {
			relayName, relayValue = current.Field, text
		}
		e.step = from + 1
		outcome = OutcomeAdvanced
		if next, ok := e.script.Step(e.step); ok {
			reply = next.Prompt
		}
	}
	gen := e.generation
	e.mu.Unlock()

	if relayName != "" {
		e.relayField(ctx, relayName, relayValue)
	}
	e.notify(userMsg)
	if e.recorder != nil {
		e.recorder.ObserveTransition(strconv.Itoa(from), string(outcome))
	}
	if reply != "" {
		e.schedule(e.delay, func() { e.deliver(gen, reply) })
	}
	return outcome, nil
}

// relayField is best effort: a failed write is logged and the dialogue moves on.
// Called without e.mu held.
func (e *Engine) relayField(ctx context.Context, field, value string) {
	if e.relay == nil {
		return
	}
	if err := e.relay.SetField(ctx, field, value); err != nil {
		e.logger.Warn("chatbot: relay field failed", "field", field, "error", err)
	}
}

func (e *Engine) deliver(gen uint64, text string) {
	e.mu.Lock()
	if gen != e.generation {
		e.mu.Unlock()
		return
	}
	msg := e.appendLocked(text, OriginBot)
	e.mu.Unlock()

	e.notify(msg)
}

func (e *Engine) appendLocked(text string, origin Origin) Message {
	e.lastID++
	msg := Message{
		ID:        e.lastID,
		Text:      text,
		Origin:    origin,
		CreatedAt: e.now().UTC(),
	}
	e.transcript = append(e.transcript, msg)
	return msg
}

func (e *Engine) notify(msg Message) {
	if e.observer != nil {
		e.observer(msg)
	}
}

// CurrentStep returns the step index awaiting a reply.
func (e *Engine) CurrentStep() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.step
}

// Options returns the one-click replies for the current step, if any.
func (e *Engine) Options() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.optionsLocked()
}

func (e *Engine) optionsLocked() []string {
	if !e.opened {
		return nil
	}
	step, ok := e.script.Step(e.step)
	if !ok || len(step.Options) == 0 {
		return nil
	}
	return step.Options
}

// Transcript returns a copy of the messages so far.
func (e *Engine) Transcript() []Message {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]Message(nil), e.transcript...)
}

// State returns a snapshot of the conversation.
func (e *Engine) State() ConversationState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return ConversationState{
		CurrentStep: e.step,
		Transcript:  append([]Message{}, e.transcript...),
		Options:     e.optionsLocked(),
		Opened:      e.opened,
		Terminal:    e.step == e.script.Len()-1,
	}
}
