// Package generate adapts external text-generation backends to the
// domain.Generator contract. The backend is a black box: any transport
// error, non-2xx status, or empty completion surfaces as an error and the
// caller decides what a missing reply means.
package generate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/arshadahsan388/ghartek-support/internal/domain"
)

const defaultHTTPTimeout = 60 * time.Second

// OpenAI implements domain.Generator against OpenAI-compatible
// chat-completion APIs.
type OpenAI struct {
	apiKey  string
	apiBase string
	model   string
	client  *http.Client
	logger  *slog.Logger
}

type OpenAIConfig struct {
	APIKey  string
	APIBase string
	Model   string
	Logger  *slog.Logger
}

func NewOpenAI(cfg OpenAIConfig) *OpenAI {
	if cfg.APIBase == "" {
		cfg.APIBase = "https://api.openai.com/v1"
	}
	if cfg.Model == "" {
		cfg.Model = "gpt-4o-mini"
	}
	return &OpenAI{
		apiKey:  cfg.APIKey,
		apiBase: cfg.APIBase,
		model:   cfg.Model,
		client:  sharedHTTPClient(defaultHTTPTimeout),
		logger:  cfg.Logger,
	}
}

func (o *OpenAI) Name() string { return "openai" }

func (o *OpenAI) Healthy(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, "GET", o.apiBase+"/models", nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+o.apiKey)
	resp, err := o.client.Do(req)
	if err != nil {
		return fmt.Errorf("generation backend not reachable: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusUnauthorized {
		return fmt.Errorf("generation backend: invalid API key")
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("generation backend returned %d", resp.StatusCode)
	}
	return nil
}

type oaiRequest struct {
	Model       string       `json:"model"`
	Messages    []oaiMessage `json:"messages"`
	MaxTokens   int          `json:"max_tokens,omitempty"`
	Temperature float64      `json:"temperature,omitempty"`
}

type oaiMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type oaiResponse struct {
	Choices []oaiChoice `json:"choices"`
}

type oaiChoice struct {
	Message      oaiMessage `json:"message"`
	FinishReason string     `json:"finish_reason"`
}

// Generate renders the persona's prompt plus bounded history into a
// chat-completion call. Customer turns map to the user role, staff and
// automated turns to the assistant role.
func (o *OpenAI) Generate(ctx context.Context, persona domain.Persona, in domain.GenerationInput) (*domain.GenerationResult, error) {
	msgs := make([]oaiMessage, 0, len(in.History)+2)
	msgs = append(msgs, oaiMessage{Role: "system", Content: persona.SystemPrompt})
	for _, h := range in.History {
		role := "assistant"
		if h.AuthorRole == domain.RoleCustomer {
			role = "user"
		}
		msgs = append(msgs, oaiMessage{Role: role, Content: h.Text})
	}
	msgs = append(msgs, oaiMessage{Role: "user", Content: in.LatestMessage})

	body, err := json.Marshal(oaiRequest{
		Model:       o.model,
		Messages:    msgs,
		MaxTokens:   512,
		Temperature: 0.7,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	buildReq := func() (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, "POST", o.apiBase+"/chat/completions", bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+o.apiKey)
		return req, nil
	}

	resp, err := doWithRetry(ctx, o.client, buildReq, o.logger)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("generation backend returned %d: %s", resp.StatusCode, respBody)
	}

	var parsed oaiResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return nil, domain.ErrGenerationEmpty
	}

	return &domain.GenerationResult{ResponseText: parsed.Choices[0].Message.Content}, nil
}
