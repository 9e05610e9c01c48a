package domain

import "time"

// ConversationMetadata is the denormalized per-conversation summary used to
// render conversation lists without reading the message log. It is updated
// through field-level patches only; see MetadataPatch.
type ConversationMetadata struct {
	ConversationID      string      `json:"conversationId"`
	LastMessagePreview  string      `json:"lastMessagePreview"`
	LastMessageKind     MessageKind `json:"lastMessageKind"`
	LastActivityAt      time.Time   `json:"lastActivityAt"`
	UnreadByStaff       bool        `json:"unreadByStaff"`
	UnreadByCustomer    bool        `json:"unreadByCustomer"`
	CustomerDisplayName string      `json:"customerDisplayName"`
}

// MetadataPatch is a partial update to a metadata record. Nil fields are
// left untouched by the store. Three independent writers (customer client,
// staff client, automated responder) race on the same record; patches keep
// a read acknowledgment from clobbering a concurrent message-send's content
// fields, which a whole-record overwrite cannot guarantee.
type MetadataPatch struct {
	LastMessagePreview  *string
	LastMessageKind     *MessageKind
	LastActivityAt      *time.Time
	UnreadByStaff       *bool
	UnreadByCustomer    *bool
	CustomerDisplayName *string
}

// IsZero reports whether the patch touches no fields.
func (p MetadataPatch) IsZero() bool {
	return p.LastMessagePreview == nil &&
		p.LastMessageKind == nil &&
		p.LastActivityAt == nil &&
		p.UnreadByStaff == nil &&
		p.UnreadByCustomer == nil &&
		p.CustomerDisplayName == nil
}
