package bus

import (
	"log/slog"
	"sync"
	"time"

	"github.com/arshadahsan388/ghartek-support/internal/domain"
)

const publishTimeout = 10 * time.Second

// MessageBus is the queue of message-created events between the store
// adapter and the ingestion trigger. It is a buffered Go channel; delivery
// to the single subscriber is at-least-once from the trigger's point of
// view (the store may re-publish on reconnect), so the consumer must
// deduplicate by message ID.
type MessageBus struct {
	created chan domain.MessageCreated
	mu      sync.RWMutex
	closed  bool
	logger  *slog.Logger
}

// New creates a MessageBus with the given buffer size.
func New(bufferSize int, logger *slog.Logger) *MessageBus {
	if bufferSize <= 0 {
		bufferSize = 100
	}
	return &MessageBus{
		created: make(chan domain.MessageCreated, bufferSize),
		logger:  logger,
	}
}

// Publish enqueues a message-created event. Blocks up to 10 seconds if the
// bus is full instead of dropping.
func (b *MessageBus) Publish(ev domain.MessageCreated) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		b.logger.Warn("attempted to publish to closed bus")
		return
	}

	select {
	case b.created <- ev:
	default:
		b.logger.Warn("message bus full, waiting...",
			"conversation", ev.ConversationID, "message", ev.Message.ID)
		timer := time.NewTimer(publishTimeout)
		defer timer.Stop()
		select {
		case b.created <- ev:
			b.logger.Info("event delivered after wait", "conversation", ev.ConversationID)
		case <-timer.C:
			b.logger.Error("event dropped: bus full for 10s",
				"conversation", ev.ConversationID,
				"message", ev.Message.ID,
			)
		}
	}
}

// Subscribe returns the event channel. There is one consumer: the trigger's
// shard dispatcher.
func (b *MessageBus) Subscribe() <-chan domain.MessageCreated {
	return b.created
}

func (b *MessageBus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.closed {
		b.closed = true
		close(b.created)
	}
}
