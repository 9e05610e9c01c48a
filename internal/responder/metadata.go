package responder

import (
	"context"
	"log/slog"
	"time"

	"github.com/arshadahsan388/ghartek-support/internal/domain"
	"github.com/arshadahsan388/ghartek-support/internal/store"
)

// Synchronizer is the single place that writes conversation metadata. All
// four writer paths (customer send, staff send, staff read acknowledgment,
// automated reply) go through it, and every write is a field-level patch:
// a read acknowledgment touches only the unread flag, so it can never
// erase the preview of a message that lands concurrently.
type Synchronizer struct {
	store  store.Store
	logger *slog.Logger
}

func NewSynchronizer(st store.Store, logger *slog.Logger) *Synchronizer {
	return &Synchronizer{store: st, logger: logger}
}

// CustomerMessage records a message the customer just sent: new preview,
// staff has something unread, the customer has seen their own message.
func (s *Synchronizer) CustomerMessage(ctx context.Context, msg domain.Message) error {
	patch := messagePatch(msg)
	patch.UnreadByStaff = boolPtr(true)
	patch.UnreadByCustomer = boolPtr(false)
	if msg.AuthorDisplayName != "" {
		patch.CustomerDisplayName = strPtr(msg.AuthorDisplayName)
	}
	return s.store.PatchMetadata(ctx, msg.ConversationID, patch)
}

// StaffMessage records a manual staff reply.
func (s *Synchronizer) StaffMessage(ctx context.Context, msg domain.Message) error {
	patch := messagePatch(msg)
	patch.UnreadByStaff = boolPtr(false)
	patch.UnreadByCustomer = boolPtr(true)
	return s.store.PatchMetadata(ctx, msg.ConversationID, patch)
}

// AutomatedReply records a composed reply. unreadByStaff is deliberately
// not touched: an automated answer must not suppress the staff-facing
// unread indicator, a human still audits these conversations.
func (s *Synchronizer) AutomatedReply(ctx context.Context, msg domain.Message) error {
	patch := messagePatch(msg)
	patch.UnreadByCustomer = boolPtr(true)
	return s.store.PatchMetadata(ctx, msg.ConversationID, patch)
}

// AcknowledgeStaffRead marks the conversation as read by staff. Only the
// unread flag is patched; message-derived fields stay untouched.
func (s *Synchronizer) AcknowledgeStaffRead(ctx context.Context, convID string) error {
	return s.store.PatchMetadata(ctx, convID, domain.MetadataPatch{
		UnreadByStaff: boolPtr(false),
	})
}

// messagePatch builds the content-field part shared by all message-send
// paths: preview, kind and activity timestamp.
func messagePatch(msg domain.Message) domain.MetadataPatch {
	at := msg.CreatedAt
	if at.IsZero() {
		at = time.Now().UTC()
	}
	return domain.MetadataPatch{
		LastMessagePreview: strPtr(store.Preview(msg)),
		LastMessageKind:    kindPtr(msg.Kind),
		LastActivityAt:     timePtr(at),
	}
}

func boolPtr(b bool) *bool                             { return &b }
func strPtr(s string) *string                          { return &s }
func timePtr(t time.Time) *time.Time                   { return &t }
func kindPtr(k domain.MessageKind) *domain.MessageKind { return &k }
