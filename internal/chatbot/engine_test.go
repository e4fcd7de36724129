package chatbot

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wolfman30/shinestar-cleaners/internal/relay"
	"github.com/wolfman30/shinestar-cleaners/pkg/logging"
)

func newTestEngine(t *testing.T, opts ...Option) (*Engine, *relay.MemoryStore) {
	t.Helper()
	store := relay.NewMemoryStore()
	base := []Option{WithScheduler(Immediate), WithLogger(logging.Discard())}
	e := NewEngine(DefaultScript(), store, append(base, opts...)...)
	require.True(t, e.Open())
	return e, store
}

func lastBot(t *testing.T, e *Engine) string {
	t.Helper()
	msgs := e.Transcript()
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].IsBot() {
			return msgs[i].Text
		}
	}
	t.Fatal("no bot message in transcript")
	return ""
}

func countText(msgs []Message, text string) int {
	n := 0
	for _, m := range msgs {
		if m.Text == text {
			n++
		}
	}
	return n
}

// walk submits replies in order and fails on any error.
func walk(t *testing.T, e *Engine, replies ...string) {
	t.Helper()
	for _, r := range replies {
		_, err := e.Submit(context.Background(), r)
		require.NoError(t, err)
	}
}

func TestOpen_AppendsGreetingOnce(t *testing.T) {
	e, _ := newTestEngine(t)
	assert.False(t, e.Open())
	assert.False(t, e.Open())

	msgs := e.Transcript()
	require.Len(t, msgs, 1)
	assert.Equal(t, OriginBot, msgs[0].Origin)
	assert.Equal(t, DefaultScript().Steps[0].Prompt, msgs[0].Text)
	assert.Equal(t, 0, e.CurrentStep())
}

func TestEntryGate_Affirmative(t *testing.T) {
	step1 := DefaultScript().Steps[1].Prompt
	for _, reply := range []string{"Yes, please help me", "yes", "YES!", "oh yEs sure"} {
		t.Run(reply, func(t *testing.T) {
			e, _ := newTestEngine(t)
			outcome, err := e.Submit(context.Background(), reply)
			require.NoError(t, err)
			assert.Equal(t, OutcomeAdvanced, outcome)
			assert.Equal(t, 1, e.CurrentStep())
			assert.Equal(t, 1, countText(e.Transcript(), step1))
		})
	}
}

func TestEntryGate_Decline(t *testing.T) {
	script := DefaultScript()
	for _, reply := range []string{"No thanks", "nope", "maybe later"} {
		t.Run(reply, func(t *testing.T) {
			e, _ := newTestEngine(t)
			outcome, err := e.Submit(context.Background(), reply)
			require.NoError(t, err)
			assert.Equal(t, OutcomeDeclined, outcome)
			assert.Equal(t, 0, e.CurrentStep())
			assert.Equal(t, script.DeclineMessage, lastBot(t, e))
			assert.Zero(t, countText(e.Transcript(), script.Steps[1].Prompt))
		})
	}
}

func TestEntryGate_DeclineIsSticky(t *testing.T) {
	e, _ := newTestEngine(t)
	walk(t, e, "No thanks", "hello?")
	assert.Equal(t, 0, e.CurrentStep())
	assert.Equal(t, 2, countText(e.Transcript(), DefaultScript().DeclineMessage))
}

func TestFieldSteps_RelayReplies(t *testing.T) {
	e, store := newTestEngine(t)
	walk(t, e, "Yes", "Jane", "jane@x.com", "Deep Cleaning", "Two bedroom flat", "021 555 0100")

	fields, err := store.ReadAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, map[string]string{
		"name":    "Jane",
		"email":   "jane@x.com",
		"service": "Deep Cleaning",
		"message": "Two bedroom flat",
		"phone":   "021 555 0100",
	}, fields)
	assert.Equal(t, 6, e.CurrentStep())
	assert.True(t, e.State().Terminal)
}

func TestPhoneOptOut_DoesNotRelay(t *testing.T) {
	e, store := newTestEngine(t)
	require.NoError(t, store.SetField(context.Background(), "phone", "09 111 2222"))

	walk(t, e, "Yes", "Jane", "jane@x.com", "Other", "Windows", PhoneOptOut)

	fields, _ := store.ReadAll(context.Background())
	assert.Equal(t, "09 111 2222", fields["phone"])
	assert.Equal(t, 6, e.CurrentStep())
	assert.Equal(t, DefaultScript().Steps[6].Prompt, lastBot(t, e))
}

func TestTerminalStep_ContactIsIdempotent(t *testing.T) {
	e, _ := newTestEngine(t)
	walk(t, e, "Yes", "Jane", "jane@x.com", "Other", "Windows", PhoneOptOut)

	contact := DefaultScript().ContactMessage
	for i := 1; i <= 3; i++ {
		outcome, err := e.Submit(context.Background(), "I have another question")
		require.NoError(t, err)
		assert.Equal(t, OutcomeContact, outcome)
		assert.Equal(t, 6, e.CurrentStep())
		assert.Equal(t, contact, lastBot(t, e))
		assert.Equal(t, i, countText(e.Transcript(), contact))
	}

	outcome, err := e.Submit(context.Background(), "Got a QUESTION about pricing")
	require.NoError(t, err)
	assert.Equal(t, OutcomeContact, outcome)
}

func TestTerminalStep_Closing(t *testing.T) {
	e, _ := newTestEngine(t)
	walk(t, e, "Yes", "Jane", "jane@x.com", "Other", "Windows", PhoneOptOut)

	outcome, err := e.Submit(context.Background(), "No, that's all for now")
	require.NoError(t, err)
	assert.Equal(t, OutcomeClosed, outcome)
	assert.Equal(t, 6, e.CurrentStep())
	assert.Equal(t, DefaultScript().ClosingMessage, lastBot(t, e))
}

func TestSubmit_BlankIsIgnored(t *testing.T) {
	e, _ := newTestEngine(t)
	for _, blank := range []string{"", "   ", "\n\t"} {
		outcome, err := e.Submit(context.Background(), blank)
		require.NoError(t, err)
		assert.Equal(t, OutcomeIgnored, outcome)
	}
	assert.Len(t, e.Transcript(), 1)
	assert.Equal(t, 0, e.CurrentStep())
}

func TestSubmit_BeforeOpen(t *testing.T) {
	e := NewEngine(nil, nil, WithScheduler(Immediate))
	_, err := e.Submit(context.Background(), "yes")
	assert.True(t, errors.Is(err, ErrNotOpen))
	assert.Empty(t, e.Transcript())
}

func TestSubmit_UserMessageAppendedBeforeDelayedReply(t *testing.T) {
	var pending []func()
	manual := func(_ time.Duration, fn func()) { pending = append(pending, fn) }
	e, _ := newTestEngine(t, WithScheduler(manual))

	_, err := e.Submit(context.Background(), "yes please")
	require.NoError(t, err)

	msgs := e.Transcript()
	require.Len(t, msgs, 2)
	assert.Equal(t, OriginUser, msgs[1].Origin)
	assert.Equal(t, 1, e.CurrentStep())

	require.Len(t, pending, 1)
	pending[0]()
	assert.Len(t, e.Transcript(), 3)
}

func TestReset_DropsPendingReplies(t *testing.T) {
	var pending []func()
	manual := func(_ time.Duration, fn func()) { pending = append(pending, fn) }
	e, _ := newTestEngine(t, WithScheduler(manual))

	walk(t, e, "yes")
	e.Reset()
	require.Len(t, pending, 1)
	pending[0]()

	assert.Empty(t, e.Transcript())
	assert.Equal(t, 0, e.CurrentStep())
	assert.False(t, e.State().Opened)

	assert.True(t, e.Open())
	assert.Len(t, e.Transcript(), 1)
}

func TestReset_KeepsRelayedFields(t *testing.T) {
	e, store := newTestEngine(t)
	walk(t, e, "yes", "Jane")
	e.Reset()

	fields, _ := store.ReadAll(context.Background())
	assert.Equal(t, "Jane", fields["name"])
}

func TestOptions_FollowCurrentStep(t *testing.T) {
	e, _ := newTestEngine(t)
	assert.Equal(t, []string{"Yes, please help me", "No thanks"}, e.Options())

	walk(t, e, "Yes, please help me")
	assert.Nil(t, e.Options())

	walk(t, e, "Jane", "jane@x.com")
	assert.Contains(t, e.Options(), "Carpet Cleaning")

	// option click is equivalent to typing the label
	walk(t, e, "Carpet Cleaning")
	assert.Nil(t, e.Options())
}

func TestMessageIDsAreMonotonic(t *testing.T) {
	e, _ := newTestEngine(t)
	walk(t, e, "yes", "Jane", "jane@x.com")

	var prev int64
	for _, m := range e.Transcript() {
		assert.Greater(t, m.ID, prev)
		prev = m.ID
	}
}

func TestObserverSeesEveryMessage(t *testing.T) {
	var seen []Message
	e, _ := newTestEngine(t, WithObserver(func(m Message) { seen = append(seen, m) }))
	walk(t, e, "yes", "Jane")

	assert.Equal(t, e.Transcript(), seen)
}

type failingRelay struct{ calls int }

func (f *failingRelay) SetField(context.Context, string, string) error {
	f.calls++
	return errors.New("storage full")
}

func (f *failingRelay) ReadAll(context.Context) (map[string]string, error) {
	return nil, errors.New("storage full")
}

func TestRelayFailureDoesNotBlockDialogue(t *testing.T) {
	fr := &failingRelay{}
	e := NewEngine(DefaultScript(), fr, WithScheduler(Immediate), WithLogger(logging.Discard()))
	e.Open()
	walk(t, e, "yes", "Jane", "jane@x.com")

	assert.Equal(t, 2, fr.calls)
	assert.Equal(t, 3, e.CurrentStep())
}

// readingRelay reads engine state while a write is in flight, as the socket
// pusher does while a slow relay round trip is pending.
type readingRelay struct {
	engine *Engine
	steps  []int
}

func (r *readingRelay) SetField(context.Context, string, string) error {
	r.steps = append(r.steps, r.engine.State().CurrentStep)
	return nil
}

func (r *readingRelay) ReadAll(context.Context) (map[string]string, error) {
	return map[string]string{}, nil
}

func TestRelayWriteDoesNotHoldEngineLock(t *testing.T) {
	rr := &readingRelay{}
	e := NewEngine(DefaultScript(), rr, WithScheduler(Immediate), WithLogger(logging.Discard()))
	rr.engine = e
	e.Open()

	done := make(chan error, 1)
	go func() {
		if _, err := e.Submit(context.Background(), "yes"); err != nil {
			done <- err
			return
		}
		_, err := e.Submit(context.Background(), "Jane")
		done <- err
	}()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("state read during relay write blocked")
	}

	assert.Equal(t, []int{2}, rr.steps)
}

type recordingRecorder struct{ seen []string }

func (r *recordingRecorder) ObserveTransition(step, outcome string) {
	r.seen = append(r.seen, step+":"+outcome)
}

func TestRecorderObservesTransitions(t *testing.T) {
	rec := &recordingRecorder{}
	e, _ := newTestEngine(t, WithRecorder(rec))
	walk(t, e, "no", "yes", "Jane", "  ")

	assert.Equal(t, []string{"0:declined", "0:advanced", "1:advanced"}, rec.seen)
}

func TestClockStampsMessages(t *testing.T) {
	fixed := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	e, _ := newTestEngine(t, WithClock(func() time.Time { return fixed }))
	assert.Equal(t, fixed, e.Transcript()[0].CreatedAt)
}

func TestAfterFunc_DelaysReply(t *testing.T) {
	done := make(chan Message, 4)
	e := NewEngine(DefaultScript(), nil,
		WithDelay(50*time.Millisecond),
		WithLogger(logging.Discard()),
		WithObserver(func(m Message) {
			if m.IsBot() {
				done <- m
			}
		}),
	)
	e.Open()
	<-done

	_, err := e.Submit(context.Background(), "yes")
	require.NoError(t, err)
	assert.Len(t, e.Transcript(), 2)

	select {
	case m := <-done:
		assert.Equal(t, DefaultScript().Steps[1].Prompt, m.Text)
	case <-time.After(2 * time.Second):
		t.Fatal("delayed reply never arrived")
	}
	assert.Len(t, e.Transcript(), 3)
}
