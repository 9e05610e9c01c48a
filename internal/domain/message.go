package domain

import "time"

// AuthorRole identifies who wrote a message. Automated replies are written
// with RoleStaff and the persona's display name; they are never a third role.
type AuthorRole string

const (
	RoleCustomer AuthorRole = "customer"
	RoleStaff    AuthorRole = "staff"
)

// MessageKind distinguishes plain text from attachments.
type MessageKind string

const (
	KindText       MessageKind = "text"
	KindAttachment MessageKind = "attachment"
)

// AttachmentPlaceholder replaces attachment payloads wherever only text is
// accepted (generation input, metadata previews).
const AttachmentPlaceholder = "[attachment]"

// Message is one entry in a conversation's append-only log. Messages are
// immutable once written. ID, Seq and CreatedAt are assigned by the store
// at write time; Seq is the insertion key and breaks CreatedAt ties, since
// clocks are not monotonic across clients.
type Message struct {
	ID                string      `json:"id"`
	ConversationID    string      `json:"conversationId"`
	AuthorRole        AuthorRole  `json:"authorRole"`
	Kind              MessageKind `json:"kind"`
	Payload           string      `json:"payload"`
	AuthorDisplayName string      `json:"authorDisplayName"`
	CreatedAt         time.Time   `json:"createdAt"`
	Seq               int64       `json:"seq"`
}

// Text returns the payload usable as generation input: attachment payloads
// are normalized to a placeholder token.
func (m Message) Text() string {
	if m.Kind == KindAttachment {
		return AttachmentPlaceholder
	}
	return m.Payload
}

// MessageCreated is the event published by the store when a new message is
// appended. The ingestion trigger consumes these; delivery is at-least-once,
// so consumers deduplicate by Message.ID.
type MessageCreated struct {
	ConversationID string
	Message        Message
}
