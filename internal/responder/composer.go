package responder

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/arshadahsan388/ghartek-support/internal/domain"
	"github.com/arshadahsan388/ghartek-support/internal/store"
)

// ComposeError wraps a failed reply composition with the conversation and
// triggering-message IDs the operator needs to find it in the logs.
type ComposeError struct {
	ConversationID string
	MessageID      string
	Err            error
}

func (e *ComposeError) Error() string {
	return fmt.Sprintf("compose reply for conversation %s (message %s): %v",
		e.ConversationID, e.MessageID, e.Err)
}

func (e *ComposeError) Unwrap() error { return e.Err }

// Composer calls the generation function and lands the automated reply.
// The message append always precedes the metadata patch: under partial
// failure a message with stale metadata is safe (metadata is a derived
// index that self-heals on the next event), the reverse is not.
type Composer struct {
	store   store.Store
	sync    *Synchronizer
	gen     domain.Generator
	limiter *RateLimiter
	timeout time.Duration
	logger  *slog.Logger
}

type ComposerConfig struct {
	Store     store.Store
	Sync      *Synchronizer
	Generator domain.Generator
	Limiter   *RateLimiter
	Timeout   time.Duration
	Logger    *slog.Logger
}

func NewComposer(cfg ComposerConfig) *Composer {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &Composer{
		store:   cfg.Store,
		sync:    cfg.Sync,
		gen:     cfg.Generator,
		limiter: cfg.Limiter,
		timeout: cfg.Timeout,
		logger:  cfg.Logger,
	}
}

// Compose generates a reply for the triggering message and appends it as a
// staff-authored message under the persona's display name. Any generation
// error, timeout, or empty result aborts with no customer-visible effect;
// there is no retry, since a retry after an apparent timeout risks a
// duplicate reply if the original call actually succeeded server-side.
func (c *Composer) Compose(ctx context.Context, convID string, persona domain.Persona, triggerMsgID, latestText string, history []domain.HistoryEntry) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return &ComposeError{ConversationID: convID, MessageID: triggerMsgID, Err: err}
		}
	}

	genCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	res, err := c.gen.Generate(genCtx, persona, domain.GenerationInput{
		LatestMessage: latestText,
		History:       history,
	})
	if err != nil {
		return &ComposeError{ConversationID: convID, MessageID: triggerMsgID, Err: err}
	}

	text := strings.TrimSpace(res.ResponseText)
	if text == "" {
		return &ComposeError{ConversationID: convID, MessageID: triggerMsgID, Err: domain.ErrGenerationEmpty}
	}

	msg, err := c.store.AppendMessage(ctx, convID, domain.Message{
		AuthorRole:        domain.RoleStaff,
		Kind:              domain.KindText,
		Payload:           text,
		AuthorDisplayName: persona.DisplayName,
	})
	if err != nil {
		return &ComposeError{ConversationID: convID, MessageID: triggerMsgID, Err: err}
	}

	if err := c.sync.AutomatedReply(ctx, msg); err != nil {
		// The reply is visible; stale metadata heals on the next message
		// or read acknowledgment.
		c.logger.Warn("metadata patch failed after automated reply",
			"conversation", convID, "reply", msg.ID, "err", err)
	}

	return nil
}
