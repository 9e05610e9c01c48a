package responder

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/arshadahsan388/ghartek-support/internal/bus"
	"github.com/arshadahsan388/ghartek-support/internal/domain"
	"github.com/arshadahsan388/ghartek-support/internal/store"
)

// fakeGenerator records its inputs and returns a canned result.
type fakeGenerator struct {
	mu    sync.Mutex
	calls []domain.GenerationInput
	reply string
	err   error
}

func (f *fakeGenerator) Name() string                      { return "fake" }
func (f *fakeGenerator) Healthy(ctx context.Context) error { return nil }
func (f *fakeGenerator) Generate(ctx context.Context, persona domain.Persona, in domain.GenerationInput) (*domain.GenerationResult, error) {
	f.mu.Lock()
	f.calls = append(f.calls, in)
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return &domain.GenerationResult{ResponseText: f.reply}, nil
}

func (f *fakeGenerator) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

// brokenToggleStore simulates an unreadable operator toggle.
type brokenToggleStore struct {
	store.Store
}

func (b *brokenToggleStore) AutoResponderEnabled(ctx context.Context) (bool, error) {
	return false, errors.New("settings unreachable")
}

type triggerFixture struct {
	store   store.Store
	trigger *Trigger
	gen     *fakeGenerator
}

func newTriggerFixture(t *testing.T, st store.Store) *triggerFixture {
	t.Helper()
	logger := testLogger()

	gen := &fakeGenerator{reply: "automated answer"}
	sync := NewSynchronizer(st, logger)
	composer := NewComposer(ComposerConfig{
		Store:     st,
		Sync:      sync,
		Generator: gen,
		Timeout:   5 * time.Second,
		Logger:    logger,
	})

	tr := NewTrigger(TriggerConfig{
		Store:         st,
		Policy:        testPolicy(t),
		Personas:      NewRegistry(logger),
		Composer:      composer,
		Bus:           bus.New(10, logger),
		Events:        bus.NewEventBus(logger),
		Logger:        logger,
		Workers:       2,
		HistoryWindow: 10,
		DedupCapacity: 64,
	})
	tr.now = func() time.Time { return karachiTime(t, 12, 0) } // staffed hours

	return &triggerFixture{store: st, trigger: tr, gen: gen}
}

// send appends a customer message and feeds the resulting event to the
// trigger, the way the fanout would.
func (f *triggerFixture) send(t *testing.T, convID, payload string) domain.Message {
	t.Helper()
	msg, err := f.store.AppendMessage(context.Background(), convID, domain.Message{
		AuthorRole: domain.RoleCustomer,
		Kind:       domain.KindText,
		Payload:    payload,
	})
	if err != nil {
		t.Fatalf("AppendMessage: %v", err)
	}
	f.trigger.handle(context.Background(), domain.MessageCreated{ConversationID: convID, Message: msg})
	return msg
}

func TestTrigger_ComposesReplyWhenToggleOn(t *testing.T) {
	st := store.NewMemoryStore(nil)
	f := newTriggerFixture(t, st)
	ctx := context.Background()

	if err := st.SetAutoResponderEnabled(ctx, true); err != nil {
		t.Fatal(err)
	}
	f.send(t, "conv-1", "what areas do you deliver to?")

	msgs, _ := st.Messages(ctx, "conv-1", 10)
	if len(msgs) != 2 {
		t.Fatalf("expected customer message + reply, got %d messages", len(msgs))
	}
	reply := msgs[1]
	if reply.AuthorRole != domain.RoleStaff {
		t.Errorf("reply authorRole = %q, want staff", reply.AuthorRole)
	}
	if reply.AuthorDisplayName != "GharTek Assistant" {
		t.Errorf("reply display name = %q", reply.AuthorDisplayName)
	}
	if reply.Payload != "automated answer" {
		t.Errorf("reply payload = %q", reply.Payload)
	}

	md, _ := st.Metadata(ctx, "conv-1")
	if md == nil {
		t.Fatal("metadata should exist after reply")
	}
	if !md.UnreadByCustomer {
		t.Error("reply should set unreadByCustomer")
	}
}

func TestTrigger_IgnoresStaffMessages(t *testing.T) {
	st := store.NewMemoryStore(nil)
	f := newTriggerFixture(t, st)
	ctx := context.Background()
	st.SetAutoResponderEnabled(ctx, true)

	msg, _ := st.AppendMessage(ctx, "conv-1", domain.Message{
		AuthorRole: domain.RoleStaff,
		Kind:       domain.KindText,
		Payload:    "manual reply",
	})
	f.trigger.handle(ctx, domain.MessageCreated{ConversationID: "conv-1", Message: msg})

	if f.gen.callCount() != 0 {
		t.Error("staff-authored message must never trigger generation")
	}
	msgs, _ := st.Messages(ctx, "conv-1", 10)
	if len(msgs) != 1 {
		t.Errorf("expected 1 message, got %d", len(msgs))
	}
}

// The loop guard: an automated reply is staff-authored, so its own
// message-created event falls out at the role filter.
func TestTrigger_OwnReplyDoesNotCascade(t *testing.T) {
	st := store.NewMemoryStore(nil)
	f := newTriggerFixture(t, st)
	ctx := context.Background()
	st.SetAutoResponderEnabled(ctx, true)

	f.send(t, "conv-1", "hello")

	msgs, _ := st.Messages(ctx, "conv-1", 10)
	reply := msgs[len(msgs)-1]
	f.trigger.handle(ctx, domain.MessageCreated{ConversationID: "conv-1", Message: reply})

	if f.gen.callCount() != 1 {
		t.Errorf("generation calls = %d, want 1", f.gen.callCount())
	}
}

func TestTrigger_DuplicateEventComposesOnce(t *testing.T) {
	st := store.NewMemoryStore(nil)
	f := newTriggerFixture(t, st)
	ctx := context.Background()
	st.SetAutoResponderEnabled(ctx, true)

	msg := f.send(t, "conv-1", "hello")

	// Redelivery of the same event.
	f.trigger.handle(ctx, domain.MessageCreated{ConversationID: "conv-1", Message: msg})

	if f.gen.callCount() != 1 {
		t.Errorf("generation calls = %d, want 1", f.gen.callCount())
	}
	msgs, _ := st.Messages(ctx, "conv-1", 10)
	if len(msgs) != 2 {
		t.Errorf("expected exactly 1 reply, got %d messages total", len(msgs))
	}
}

func TestTrigger_SkipsDuringStaffedHoursWhenToggleOff(t *testing.T) {
	st := store.NewMemoryStore(nil)
	f := newTriggerFixture(t, st)

	f.send(t, "conv-1", "hello")

	if f.gen.callCount() != 0 {
		t.Error("no generation expected during staffed hours with toggle off")
	}
	msgs, _ := st.Messages(context.Background(), "conv-1", 10)
	if len(msgs) != 1 {
		t.Errorf("expected no reply, got %d messages", len(msgs))
	}
}

func TestTrigger_AfterHoursPersona(t *testing.T) {
	st := store.NewMemoryStore(nil)
	f := newTriggerFixture(t, st)
	f.trigger.now = func() time.Time { return karachiTime(t, 23, 0) }

	f.send(t, "conv-1", "anyone there?")

	msgs, _ := st.Messages(context.Background(), "conv-1", 10)
	if len(msgs) != 2 {
		t.Fatalf("expected after-hours reply, got %d messages", len(msgs))
	}
	if msgs[1].AuthorDisplayName != "GharTek Night Assistant" {
		t.Errorf("display name = %q, want night assistant", msgs[1].AuthorDisplayName)
	}
}

// An unreadable toggle fails closed: a missed automated reply is benign, a
// reply sent against the operator's intent is not.
func TestTrigger_FailsClosedOnToggleError(t *testing.T) {
	st := &brokenToggleStore{Store: store.NewMemoryStore(nil)}
	f := newTriggerFixture(t, st)
	f.trigger.now = func() time.Time { return karachiTime(t, 23, 0) } // would reply if readable

	f.send(t, "conv-1", "hello")

	if f.gen.callCount() != 0 {
		t.Error("unreadable toggle must suppress the reply")
	}
}

func TestTrigger_GenerationFailureLeavesNoTrace(t *testing.T) {
	st := store.NewMemoryStore(nil)
	f := newTriggerFixture(t, st)
	ctx := context.Background()
	st.SetAutoResponderEnabled(ctx, true)
	f.gen.err = errors.New("backend down")

	f.send(t, "conv-1", "hello")

	msgs, _ := st.Messages(ctx, "conv-1", 10)
	if len(msgs) != 1 {
		t.Errorf("failed generation must append nothing, got %d messages", len(msgs))
	}
}

func TestTrigger_EmptyGenerationIsFailure(t *testing.T) {
	st := store.NewMemoryStore(nil)
	f := newTriggerFixture(t, st)
	ctx := context.Background()
	st.SetAutoResponderEnabled(ctx, true)
	f.gen.reply = "   \n"

	f.send(t, "conv-1", "hello")

	msgs, _ := st.Messages(ctx, "conv-1", 10)
	if len(msgs) != 1 {
		t.Errorf("blank completion must append nothing, got %d messages", len(msgs))
	}
}

func TestTrigger_ContextWindow(t *testing.T) {
	st := store.NewMemoryStore(nil)
	f := newTriggerFixture(t, st)
	ctx := context.Background()
	st.SetAutoResponderEnabled(ctx, true)

	// Seed 12 earlier messages; the window holds the last 10 and excludes
	// the triggering message itself.
	for i := 0; i < 11; i++ {
		st.AppendMessage(ctx, "conv-1", domain.Message{
			AuthorRole: domain.RoleCustomer,
			Kind:       domain.KindText,
			Payload:    fmt.Sprintf("older %d", i),
		})
	}
	st.AppendMessage(ctx, "conv-1", domain.Message{
		AuthorRole: domain.RoleCustomer,
		Kind:       domain.KindAttachment,
		Payload:    "https://cdn.example/photo.jpg",
	})

	f.send(t, "conv-1", "latest question")

	f.gen.mu.Lock()
	defer f.gen.mu.Unlock()
	if len(f.gen.calls) != 1 {
		t.Fatalf("generation calls = %d, want 1", len(f.gen.calls))
	}
	in := f.gen.calls[0]

	if in.LatestMessage != "latest question" {
		t.Errorf("latestMessage = %q", in.LatestMessage)
	}
	if len(in.History) != 9 {
		// Window of 10 covers the trigger + 9 predecessors; the trigger is
		// excluded from history.
		t.Fatalf("history length = %d, want 9", len(in.History))
	}
	for _, h := range in.History {
		if h.Text == "latest question" {
			t.Error("history must not contain the triggering message")
		}
	}
	if in.History[0].Text != "older 3" {
		t.Errorf("history should be oldest-first within the window, first = %q", in.History[0].Text)
	}
	if in.History[len(in.History)-1].Text != domain.AttachmentPlaceholder {
		t.Errorf("attachment should appear as placeholder, got %q", in.History[len(in.History)-1].Text)
	}
}
