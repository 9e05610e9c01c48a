package generate

import (
	"context"

	"github.com/arshadahsan388/ghartek-support/internal/domain"
)

// Static is a canned-response generator for local runs without an API key.
// It acknowledges the customer in the persona's voice and nothing more.
type Static struct{}

func NewStatic() *Static { return &Static{} }

func (s *Static) Name() string { return "static" }

func (s *Static) Healthy(ctx context.Context) error { return nil }

func (s *Static) Generate(ctx context.Context, persona domain.Persona, in domain.GenerationInput) (*domain.GenerationResult, error) {
	text := "Thanks for your message! A member of the GharTek team will get back to you shortly."
	if persona.ID == "after-hours" {
		text = "Thanks for reaching out! GharTek is closed right now (hours 9:00-21:00). " +
			"We have noted your message and staff will reply as soon as we reopen."
	}
	return &domain.GenerationResult{ResponseText: text}, nil
}
