package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/arshadahsan388/ghartek-support/internal/domain"
)

// MemoryStore implements Store in process memory. It backs tests and
// `serve --ephemeral` runs; semantics match SQLiteStore, including patch
// merging and the monotone lastActivityAt rule.
type MemoryStore struct {
	mu       sync.RWMutex
	nextSeq  int64
	messages map[string][]domain.Message
	metadata map[string]domain.ConversationMetadata
	settings map[string]string
	presence map[string]bool
	pub      Publisher
}

func NewMemoryStore(pub Publisher) *MemoryStore {
	return &MemoryStore{
		messages: make(map[string][]domain.Message),
		metadata: make(map[string]domain.ConversationMetadata),
		settings: make(map[string]string),
		presence: make(map[string]bool),
		pub:      pub,
	}
}

func (s *MemoryStore) AppendMessage(ctx context.Context, convID string, msg domain.Message) (domain.Message, error) {
	s.mu.Lock()
	msg.ConversationID = convID
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}
	s.nextSeq++
	msg.Seq = s.nextSeq
	s.messages[convID] = append(s.messages[convID], msg)
	pub := s.pub
	s.mu.Unlock()

	if pub != nil {
		pub.Publish(domain.MessageCreated{ConversationID: convID, Message: msg})
	}
	return msg, nil
}

func (s *MemoryStore) Messages(ctx context.Context, convID string, limit int) ([]domain.Message, error) {
	if limit <= 0 {
		limit = 100
	}

	s.mu.RLock()
	all := make([]domain.Message, len(s.messages[convID]))
	copy(all, s.messages[convID])
	s.mu.RUnlock()

	sort.SliceStable(all, func(i, j int) bool {
		if !all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].CreatedAt.Before(all[j].CreatedAt)
		}
		return all[i].Seq < all[j].Seq
	})

	if len(all) > limit {
		all = all[len(all)-limit:]
	}
	return all, nil
}

func (s *MemoryStore) Metadata(ctx context.Context, convID string) (*domain.ConversationMetadata, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	md, ok := s.metadata[convID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &md, nil
}

func (s *MemoryStore) PatchMetadata(ctx context.Context, convID string, patch domain.MetadataPatch) error {
	if patch.IsZero() {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	md, ok := s.metadata[convID]
	if !ok {
		md = domain.ConversationMetadata{ConversationID: convID, LastMessageKind: domain.KindText}
	}
	applyPatch(&md, patch)
	s.metadata[convID] = md
	return nil
}

func (s *MemoryStore) ListMetadata(ctx context.Context, limit int) ([]domain.ConversationMetadata, error) {
	if limit <= 0 {
		limit = 50
	}
	s.mu.RLock()
	mds := make([]domain.ConversationMetadata, 0, len(s.metadata))
	for _, md := range s.metadata {
		mds = append(mds, md)
	}
	s.mu.RUnlock()

	sort.Slice(mds, func(i, j int) bool {
		return mds[i].LastActivityAt.After(mds[j].LastActivityAt)
	})
	if len(mds) > limit {
		mds = mds[:limit]
	}
	return mds, nil
}

func (s *MemoryStore) AutoResponderEnabled(ctx context.Context) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.settings[SettingAutoResponder] == "true", nil
}

func (s *MemoryStore) SetAutoResponderEnabled(ctx context.Context, enabled bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if enabled {
		s.settings[SettingAutoResponder] = "true"
	} else {
		s.settings[SettingAutoResponder] = "false"
	}
	return nil
}

func (s *MemoryStore) SetPresence(ctx context.Context, customerID string, online bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.presence[customerID] = online
	return nil
}

func (s *MemoryStore) Presence(ctx context.Context, customerID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.presence[customerID], nil
}

func (s *MemoryStore) Close() error { return nil }
