package bus

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/arshadahsan388/ghartek-support/internal/domain"
)

func TestMessageBus_PublishAndReceive(t *testing.T) {
	b := New(10, testEBLogger())
	defer b.Close()

	ev := domain.MessageCreated{
		ConversationID: "conv-1",
		Message:        domain.Message{ID: "msg-1", Payload: "hello"},
	}
	b.Publish(ev)

	select {
	case got := <-b.Subscribe():
		if got.Message.ID != "msg-1" {
			t.Errorf("expected msg-1, got %s", got.Message.ID)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}
}

func TestMessageBus_PublishAfterClose(t *testing.T) {
	b := New(10, testEBLogger())
	b.Close()

	// Must not panic on a closed bus.
	b.Publish(domain.MessageCreated{ConversationID: "conv-1"})
}

func TestMessageBus_CloseIdempotent(t *testing.T) {
	b := New(10, testEBLogger())
	b.Close()
	b.Close()
}

func TestMessageBus_OrderPreserved(t *testing.T) {
	b := New(10, testEBLogger())
	defer b.Close()

	for i := 0; i < 5; i++ {
		b.Publish(domain.MessageCreated{
			ConversationID: "conv-1",
			Message:        domain.Message{Seq: int64(i)},
		})
	}

	ch := b.Subscribe()
	for i := 0; i < 5; i++ {
		ev := <-ch
		if ev.Message.Seq != int64(i) {
			t.Fatalf("expected seq %d, got %d", i, ev.Message.Seq)
		}
	}
}

func TestFanout_DeliversToBothBuses(t *testing.T) {
	mb := New(10, testEBLogger())
	defer mb.Close()
	eb := NewEventBus(testEBLogger())

	var observed int32
	eb.On(EventMessageCreated, func(e Event) {
		if e.Payload["messageId"] != "msg-1" {
			t.Errorf("unexpected messageId: %v", e.Payload["messageId"])
		}
		if _, ok := e.Payload["message"].(domain.Message); !ok {
			t.Error("payload should carry the full message")
		}
		atomic.AddInt32(&observed, 1)
	})

	f := NewFanout(mb, eb)
	f.Publish(domain.MessageCreated{
		ConversationID: "conv-1",
		Message:        domain.Message{ID: "msg-1"},
	})

	select {
	case ev := <-mb.Subscribe():
		if ev.Message.ID != "msg-1" {
			t.Errorf("expected msg-1 on work queue, got %s", ev.Message.ID)
		}
	case <-time.After(time.Second):
		t.Fatal("work queue did not receive the event")
	}

	deadline := time.Now().Add(time.Second)
	for atomic.LoadInt32(&observed) == 0 {
		if time.Now().After(deadline) {
			t.Fatal("event bus did not receive the event")
		}
		time.Sleep(5 * time.Millisecond)
	}
}
