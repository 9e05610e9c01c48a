// Package store is the conversation store adapter: a typed read/write/patch
// interface over the keyed data service, with change notification for
// appended messages. Conversations are keyed by the customer's stable
// identity; they come into existence on the first appended message and are
// never deleted here.
package store

import (
	"context"

	"github.com/arshadahsan388/ghartek-support/internal/domain"
)

const (
	// SettingAutoResponder is the settings key for the operator toggle.
	SettingAutoResponder = "autoResponderEnabled"

	// PreviewMaxLen bounds lastMessagePreview in metadata records.
	PreviewMaxLen = 140
)

// Store is the adapter contract. Metadata writes go through PatchMetadata
// only; there is deliberately no whole-record metadata write, so no caller
// can reintroduce the lost-update race between read acknowledgments and
// concurrent message sends.
type Store interface {
	// AppendMessage writes a message to the conversation log, assigning
	// ID, Seq and CreatedAt, and notifies the configured publisher.
	// Returns the stored message.
	AppendMessage(ctx context.Context, convID string, msg domain.Message) (domain.Message, error)

	// Messages returns the most recent messages of a conversation,
	// oldest first, ordered by createdAt with Seq breaking ties.
	Messages(ctx context.Context, convID string, limit int) ([]domain.Message, error)

	// Metadata returns the conversation's summary record, or
	// domain.ErrNotFound if no message has ever been appended.
	Metadata(ctx context.Context, convID string) (*domain.ConversationMetadata, error)

	// PatchMetadata applies a partial update; nil fields stay untouched.
	// lastActivityAt never moves backwards.
	PatchMetadata(ctx context.Context, convID string, patch domain.MetadataPatch) error

	// ListMetadata returns summary records, most recently active first.
	ListMetadata(ctx context.Context, limit int) ([]domain.ConversationMetadata, error)

	// AutoResponderEnabled reads the operator toggle. It is read fresh at
	// every policy evaluation, never cached in-process.
	AutoResponderEnabled(ctx context.Context) (bool, error)
	SetAutoResponderEnabled(ctx context.Context, enabled bool) error

	// SetPresence records a customer's own online/offline flag.
	SetPresence(ctx context.Context, customerID string, online bool) error
	Presence(ctx context.Context, customerID string) (bool, error)

	Close() error
}

// Publisher receives a notification after each successful message append.
// The message bus satisfies this.
type Publisher interface {
	Publish(ev domain.MessageCreated)
}

// Preview derives the metadata preview text for a message: payload for
// text, a placeholder token for attachments, truncated to PreviewMaxLen.
func Preview(msg domain.Message) string {
	text := msg.Text()
	if len(text) > PreviewMaxLen {
		return text[:PreviewMaxLen]
	}
	return text
}
