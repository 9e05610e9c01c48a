package responder

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/arshadahsan388/ghartek-support/internal/bus"
	"github.com/arshadahsan388/ghartek-support/internal/metrics"
	"github.com/arshadahsan388/ghartek-support/internal/store"
)

const defaultPresenceTTL = 90 * time.Second

// Tracker maintains customers' online flags. Each customer's client is the
// only writer of its own status; the tracker additionally registers a
// time-based fallback that marks a customer offline when heartbeats stop
// without a clean disconnect. Presence shares no state with the chat
// pipeline and has no ordering relationship to messages.
type Tracker struct {
	store  store.Store
	events *bus.EventBus
	logger *slog.Logger
	ttl    time.Duration

	mu       sync.Mutex
	lastSeen map[string]time.Time
}

func NewTracker(st store.Store, events *bus.EventBus, logger *slog.Logger, ttl time.Duration) *Tracker {
	if ttl <= 0 {
		ttl = defaultPresenceTTL
	}
	return &Tracker{
		store:    st,
		events:   events,
		logger:   logger,
		ttl:      ttl,
		lastSeen: make(map[string]time.Time),
	}
}

// Connected marks the customer online and starts the disconnect watch.
func (t *Tracker) Connected(ctx context.Context, customerID string) {
	t.mu.Lock()
	_, already := t.lastSeen[customerID]
	t.lastSeen[customerID] = time.Now()
	t.mu.Unlock()

	if !already {
		t.setOnline(ctx, customerID, true)
	}
}

// Heartbeat refreshes the disconnect deadline.
func (t *Tracker) Heartbeat(customerID string) {
	t.mu.Lock()
	if _, ok := t.lastSeen[customerID]; ok {
		t.lastSeen[customerID] = time.Now()
	}
	t.mu.Unlock()
}

// Disconnected marks the customer offline immediately (clean close).
func (t *Tracker) Disconnected(ctx context.Context, customerID string) {
	t.mu.Lock()
	_, tracked := t.lastSeen[customerID]
	delete(t.lastSeen, customerID)
	t.mu.Unlock()

	if tracked {
		t.setOnline(ctx, customerID, false)
	}
}

// Run sweeps for expired heartbeats until the context is cancelled. This
// is the automatic mark-offline fallback for clients that vanish without
// closing their connection.
func (t *Tracker) Run(ctx context.Context) {
	ticker := time.NewTicker(t.ttl / 2)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			t.sweep(ctx)
		}
	}
}

func (t *Tracker) sweep(ctx context.Context) {
	cutoff := time.Now().Add(-t.ttl)

	t.mu.Lock()
	var expired []string
	for id, seen := range t.lastSeen {
		if seen.Before(cutoff) {
			expired = append(expired, id)
		}
	}
	for _, id := range expired {
		delete(t.lastSeen, id)
	}
	t.mu.Unlock()

	for _, id := range expired {
		t.logger.Info("presence expired, marking offline", "customer", id)
		t.setOnline(ctx, id, false)
	}
}

func (t *Tracker) setOnline(ctx context.Context, customerID string, online bool) {
	if err := t.store.SetPresence(ctx, customerID, online); err != nil {
		t.logger.Warn("presence write failed", "customer", customerID, "err", err)
		return
	}
	if online {
		metrics.CustomersOnline.Inc()
	} else {
		metrics.CustomersOnline.Dec()
	}
	if t.events != nil {
		t.events.EmitAsync(bus.Event{
			Type:    bus.EventPresenceChanged,
			Source:  "presence",
			Payload: map[string]any{"customerId": customerID, "online": online},
		})
	}
}
