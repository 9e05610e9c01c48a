package responder

import (
	"context"
	"testing"
	"time"

	"github.com/arshadahsan388/ghartek-support/internal/bus"
	"github.com/arshadahsan388/ghartek-support/internal/store"
)

func TestTracker_ConnectDisconnect(t *testing.T) {
	st := store.NewMemoryStore(nil)
	tr := NewTracker(st, bus.NewEventBus(testLogger()), testLogger(), time.Minute)
	ctx := context.Background()

	tr.Connected(ctx, "cust-1")
	if online, _ := st.Presence(ctx, "cust-1"); !online {
		t.Error("customer should be online after Connected")
	}

	tr.Disconnected(ctx, "cust-1")
	if online, _ := st.Presence(ctx, "cust-1"); online {
		t.Error("customer should be offline after Disconnected")
	}
}

func TestTracker_SweepMarksStaleOffline(t *testing.T) {
	st := store.NewMemoryStore(nil)
	tr := NewTracker(st, nil, testLogger(), time.Minute)
	ctx := context.Background()

	tr.Connected(ctx, "cust-1")
	tr.Connected(ctx, "cust-2")

	// Age cust-1 past the TTL; cust-2 keeps heartbeating.
	tr.mu.Lock()
	tr.lastSeen["cust-1"] = time.Now().Add(-2 * time.Minute)
	tr.mu.Unlock()
	tr.Heartbeat("cust-2")

	tr.sweep(ctx)

	if online, _ := st.Presence(ctx, "cust-1"); online {
		t.Error("stale customer should be swept offline")
	}
	if online, _ := st.Presence(ctx, "cust-2"); !online {
		t.Error("active customer should stay online")
	}
}

func TestTracker_HeartbeatAfterDisconnectIsNoop(t *testing.T) {
	st := store.NewMemoryStore(nil)
	tr := NewTracker(st, nil, testLogger(), time.Minute)
	ctx := context.Background()

	tr.Connected(ctx, "cust-1")
	tr.Disconnected(ctx, "cust-1")
	tr.Heartbeat("cust-1")

	if online, _ := st.Presence(ctx, "cust-1"); online {
		t.Error("heartbeat for an untracked customer must not resurrect presence")
	}
}
