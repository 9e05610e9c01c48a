package responder

import (
	"context"
	"hash/fnv"
	"log/slog"
	"sync"
	"time"

	"github.com/arshadahsan388/ghartek-support/internal/bus"
	"github.com/arshadahsan388/ghartek-support/internal/domain"
	"github.com/arshadahsan388/ghartek-support/internal/metrics"
	"github.com/arshadahsan388/ghartek-support/internal/store"
)

const (
	defaultHistoryWindow = 10
	defaultShardWorkers  = 4
	shardQueueSize       = 32
)

// Trigger consumes message-created events and drives the reply pipeline:
// filter, policy check, context fetch, dispatch to the composer. Events are
// routed to shard workers by conversation ID, so work for one conversation
// is ordered while distinct conversations proceed fully in parallel.
type Trigger struct {
	store         store.Store
	policy        *Policy
	personas      *Registry
	composer      *Composer
	bus           *bus.MessageBus
	events        *bus.EventBus
	logger        *slog.Logger
	seen          *dedupSet
	workers       int
	historyWindow int

	// now is the clock used for policy evaluation; replaceable in tests.
	now func() time.Time
}

type TriggerConfig struct {
	Store         store.Store
	Policy        *Policy
	Personas      *Registry
	Composer      *Composer
	Bus           *bus.MessageBus
	Events        *bus.EventBus
	Logger        *slog.Logger
	Workers       int
	HistoryWindow int
	DedupCapacity int
}

func NewTrigger(cfg TriggerConfig) *Trigger {
	if cfg.Workers <= 0 {
		cfg.Workers = defaultShardWorkers
	}
	if cfg.HistoryWindow <= 0 {
		cfg.HistoryWindow = defaultHistoryWindow
	}
	return &Trigger{
		store:         cfg.Store,
		policy:        cfg.Policy,
		personas:      cfg.Personas,
		composer:      cfg.Composer,
		bus:           cfg.Bus,
		events:        cfg.Events,
		logger:        cfg.Logger,
		seen:          newDedupSet(cfg.DedupCapacity),
		workers:       cfg.Workers,
		historyWindow: cfg.HistoryWindow,
		now:           time.Now,
	}
}

// Run dispatches events to shard workers until the context is cancelled or
// the bus is closed. It blocks; callers run it in a goroutine.
func (t *Trigger) Run(ctx context.Context) {
	t.logger.Info("ingestion trigger started", "workers", t.workers)

	queues := make([]chan domain.MessageCreated, t.workers)
	var wg sync.WaitGroup
	for i := range queues {
		queues[i] = make(chan domain.MessageCreated, shardQueueSize)
		wg.Add(1)
		go func(q <-chan domain.MessageCreated) {
			defer wg.Done()
			for ev := range q {
				t.handle(ctx, ev)
			}
		}(queues[i])
	}

	inbound := t.bus.Subscribe()
loop:
	for {
		select {
		case <-ctx.Done():
			t.logger.Info("ingestion trigger stopping")
			break loop
		case ev, ok := <-inbound:
			if !ok {
				t.logger.Info("message bus closed, ingestion trigger stopping")
				break loop
			}
			queues[t.shard(ev.ConversationID)] <- ev
		}
	}

	for _, q := range queues {
		close(q)
	}
	wg.Wait()
}

func (t *Trigger) shard(convID string) int {
	h := fnv.New32a()
	h.Write([]byte(convID))
	return int(h.Sum32() % uint32(t.workers))
}

// handle runs the per-event state machine. It must fire the composer at
// most once per customer message, regardless of event redelivery.
func (t *Trigger) handle(ctx context.Context, ev domain.MessageCreated) {
	msg := ev.Message

	// Never reply to staff messages or to our own output; that is the
	// guard against infinite reply loops.
	if msg.AuthorRole != domain.RoleCustomer {
		return
	}

	if !t.seen.Add(msg.ID) {
		t.logger.Warn("discarding redelivered event",
			"conversation", ev.ConversationID, "message", msg.ID)
		metrics.DuplicatesDiscarded.Inc()
		t.emit(bus.EventDuplicateDiscarded, ev, nil)
		return
	}

	metrics.TriggersTotal.Inc()

	// The toggle is read fresh from the store on every evaluation so an
	// operator change takes effect without restart. Unreadable toggle or
	// clock means fail closed: no automated reply.
	enabled, err := t.store.AutoResponderEnabled(ctx)
	if err != nil {
		t.logger.Error("policy evaluation failed, not responding",
			"conversation", ev.ConversationID, "message", msg.ID, "err", err)
		return
	}

	dec := t.policy.Evaluate(enabled, t.now())
	if !dec.Respond {
		metrics.SkipsTotal.Inc()
		t.emit(bus.EventReplySkipped, ev, map[string]any{"preview": store.Preview(msg)})
		return
	}

	persona, err := t.personas.Get(dec.PersonaID)
	if err != nil {
		t.logger.Error("persona lookup failed", "persona", dec.PersonaID, "err", err)
		return
	}

	history := t.contextWindow(ctx, ev)

	if err := t.composer.Compose(ctx, ev.ConversationID, persona, msg.ID, msg.Text(), history); err != nil {
		metrics.GenerationFailures.Inc()
		t.logger.Error("automated reply failed",
			"conversation", ev.ConversationID, "message", msg.ID, "err", err)
		t.emit(bus.EventGenerationFailed, ev, map[string]any{"error": err.Error()})
		return
	}

	metrics.RepliesTotal.Inc()
	t.emit(bus.EventReplyComposed, ev, map[string]any{"persona": persona.ID})
}

// contextWindow reads the bounded recent history, oldest first, excluding
// the triggering message itself (it is passed separately as latestMessage).
// A failed read degrades to no history rather than aborting the reply.
func (t *Trigger) contextWindow(ctx context.Context, ev domain.MessageCreated) []domain.HistoryEntry {
	msgs, err := t.store.Messages(ctx, ev.ConversationID, t.historyWindow)
	if err != nil {
		t.logger.Warn("failed to load history, continuing without it",
			"conversation", ev.ConversationID, "err", err)
		return nil
	}

	history := make([]domain.HistoryEntry, 0, len(msgs))
	for _, m := range msgs {
		if m.ID == ev.Message.ID {
			continue
		}
		history = append(history, domain.HistoryEntry{
			AuthorRole: m.AuthorRole,
			Text:       m.Text(),
		})
	}
	return history
}

func (t *Trigger) emit(eventType string, ev domain.MessageCreated, extra map[string]any) {
	if t.events == nil {
		return
	}
	payload := map[string]any{
		"conversationId": ev.ConversationID,
		"messageId":      ev.Message.ID,
	}
	for k, v := range extra {
		payload[k] = v
	}
	t.events.EmitAsync(bus.Event{Type: eventType, Source: "trigger", Payload: payload})
}
