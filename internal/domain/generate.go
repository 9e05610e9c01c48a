package domain

import "context"

// Persona is a named automated-response behavior: an identity plus the
// prompt template the generator is primed with. Two personas ship built in;
// operators may override them with YAML files.
type Persona struct {
	ID           string `yaml:"id" json:"id"`
	DisplayName  string `yaml:"displayName" json:"displayName"`
	SystemPrompt string `yaml:"systemPrompt" json:"systemPrompt"`
}

// HistoryEntry is one turn of bounded conversation context handed to the
// generator. Attachments are already normalized to placeholder text.
type HistoryEntry struct {
	AuthorRole AuthorRole `json:"authorRole"`
	Text       string     `json:"text"`
}

// GenerationInput is the payload for one generation call.
type GenerationInput struct {
	LatestMessage string
	History       []HistoryEntry
}

// GenerationResult is the structured output contract. ResponseText must be
// non-empty or the call is treated as failed.
type GenerationResult struct {
	ResponseText string
}

// Generator is the external text-generation function. It is a black box
// with unspecified latency; callers impose their own timeout via ctx.
type Generator interface {
	Generate(ctx context.Context, persona Persona, in GenerationInput) (*GenerationResult, error)
	Name() string
	Healthy(ctx context.Context) error
}
