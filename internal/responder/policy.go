// Package responder implements the automated support-reply pipeline:
// policy evaluation, persona selection, reply composition and the
// per-conversation metadata discipline shared by every writer.
package responder

import (
	"fmt"
	"time"

	"github.com/arshadahsan388/ghartek-support/internal/config"
)

// Built-in persona IDs.
const (
	PersonaAlwaysOn   = "always-on"
	PersonaAfterHours = "after-hours"
)

// Decision is the outcome of one policy evaluation.
type Decision struct {
	Respond   bool
	PersonaID string
}

// Policy computes whether an automated reply is currently warranted. It is
// a pure function of the operator toggle and the clock; the staffed window
// is evaluated in one fixed operating timezone baked in at construction.
type Policy struct {
	loc       *time.Location
	openHour  int
	closeHour int
}

func NewPolicy(cfg config.HoursConfig) (*Policy, error) {
	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return nil, fmt.Errorf("load operating timezone %q: %w", cfg.Timezone, err)
	}
	return &Policy{
		loc:       loc,
		openHour:  cfg.OpenHour,
		closeHour: cfg.CloseHour,
	}, nil
}

// Evaluate decides whether to respond and with which persona.
// Toggle on: the always-on assistant answers regardless of the hour.
// Toggle off outside staffed hours: the after-hours assistant answers.
// Toggle off inside staffed hours: no automated reply, a human answers.
func (p *Policy) Evaluate(autoResponderEnabled bool, now time.Time) Decision {
	if autoResponderEnabled {
		return Decision{Respond: true, PersonaID: PersonaAlwaysOn}
	}
	if p.afterHours(now) {
		return Decision{Respond: true, PersonaID: PersonaAfterHours}
	}
	return Decision{}
}

func (p *Policy) afterHours(now time.Time) bool {
	h := now.In(p.loc).Hour()
	return h < p.openHour || h >= p.closeHour
}
