package bus

import "github.com/arshadahsan388/ghartek-support/internal/domain"

// Fanout is the store's publisher: each appended message goes to the work
// queue (exactly one pipeline consumer, the ingestion trigger) and is
// mirrored onto the event bus for the side consumers, websocket push first
// among them.
type Fanout struct {
	Bus    *MessageBus
	Events *EventBus
}

func NewFanout(mb *MessageBus, eb *EventBus) *Fanout {
	return &Fanout{Bus: mb, Events: eb}
}

func (f *Fanout) Publish(ev domain.MessageCreated) {
	if f.Bus != nil {
		f.Bus.Publish(ev)
	}
	if f.Events != nil {
		f.Events.EmitAsync(Event{
			Type:   EventMessageCreated,
			Source: "store",
			Payload: map[string]any{
				"conversationId": ev.ConversationID,
				"messageId":      ev.Message.ID,
				"message":        ev.Message,
			},
		})
	}
}
