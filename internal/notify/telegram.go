// Package notify pushes pipeline events to the support staff's out-of-band
// channels. The Telegram notifier is outbound only: it never ingests
// customer messages, it just nudges staff when a conversation needs a human.
package notify

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/arshadahsan388/ghartek-support/internal/bus"
)

const (
	telegramMaxMsgLen      = 4000
	telegramMaxSendRetries = 3
)

// Telegram forwards skip and failure events to a staff group chat.
type Telegram struct {
	chatID int64
	bot    *tgbotapi.BotAPI
	logger *slog.Logger
}

type TelegramConfig struct {
	Token  string
	ChatID int64
	Logger *slog.Logger
}

func NewTelegram(cfg TelegramConfig) (*Telegram, error) {
	bot, err := tgbotapi.NewBotAPI(cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("telegram bot init: %w", err)
	}
	t := &Telegram{chatID: cfg.ChatID, bot: bot, logger: cfg.Logger}
	t.logger.Info("telegram notifier connected", "username", bot.Self.UserName)
	return t, nil
}

// Attach subscribes the notifier to the events that mean a human should
// look at a conversation.
func (t *Telegram) Attach(events *bus.EventBus) {
	events.On(bus.EventReplySkipped, func(ev bus.Event) {
		t.sendMessage(t.chatID, fmt.Sprintf(
			"💬 New customer message in conversation %v needs a reply (auto-responder not active).",
			ev.Payload["conversationId"]))
	})
	events.On(bus.EventGenerationFailed, func(ev bus.Event) {
		t.sendMessage(t.chatID, fmt.Sprintf(
			"⚠️ Automated reply failed for conversation %v. The customer is waiting.",
			ev.Payload["conversationId"]))
	})
}

func (t *Telegram) sendMessage(chatID int64, text string) {
	// Telegram has a 4096 char limit per message.
	const maxLen = telegramMaxMsgLen
	for len(text) > 0 {
		chunk := text
		if len(chunk) > maxLen {
			cutAt := strings.LastIndex(chunk[:maxLen], "\n")
			if cutAt < maxLen/2 {
				cutAt = maxLen
			}
			chunk = text[:cutAt]
			text = text[cutAt:]
		} else {
			text = ""
		}
		t.sendChunk(chatID, chunk)
	}
}

// sendChunk sends one message with retry and rate limit handling.
func (t *Telegram) sendChunk(chatID int64, text string) {
	for attempt := 0; attempt <= telegramMaxSendRetries; attempt++ {
		msg := tgbotapi.NewMessage(chatID, text)

		_, err := t.bot.Send(msg)
		if err == nil {
			return
		}

		errStr := err.Error()

		// Telegram rate limiting (HTTP 429).
		if strings.Contains(errStr, "Too Many Requests") || strings.Contains(errStr, "429") {
			retryAfter := time.Duration(attempt+1) * 3 * time.Second
			t.logger.Warn("telegram rate limited, backing off",
				"retry_after", retryAfter, "attempt", attempt+1)
			time.Sleep(retryAfter)
			continue
		}

		if attempt < telegramMaxSendRetries {
			backoff := time.Duration(attempt+1) * time.Second
			t.logger.Warn("telegram send error, retrying", "err", err, "backoff", backoff)
			time.Sleep(backoff)
			continue
		}

		t.logger.Error("telegram send failed after retries",
			"err", err, "attempts", telegramMaxSendRetries+1)
	}
}
