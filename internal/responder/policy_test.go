package responder

import (
	"testing"
	"time"

	"github.com/arshadahsan388/ghartek-support/internal/config"
)

func testPolicy(t *testing.T) *Policy {
	t.Helper()
	p, err := NewPolicy(config.HoursConfig{
		Timezone:  "Asia/Karachi",
		OpenHour:  9,
		CloseHour: 21,
	})
	if err != nil {
		t.Fatalf("NewPolicy: %v", err)
	}
	return p
}

// karachiTime builds a wall-clock instant in the operating zone.
func karachiTime(t *testing.T, hour, min int) time.Time {
	t.Helper()
	loc, err := time.LoadLocation("Asia/Karachi")
	if err != nil {
		t.Fatalf("LoadLocation: %v", err)
	}
	return time.Date(2026, 3, 14, hour, min, 0, 0, loc)
}

func TestPolicy_Evaluate(t *testing.T) {
	p := testPolicy(t)

	tests := []struct {
		name        string
		enabled     bool
		now         time.Time
		wantRespond bool
		wantPersona string
	}{
		{"toggle on, midday", true, karachiTime(t, 12, 0), true, PersonaAlwaysOn},
		{"toggle on, midnight", true, karachiTime(t, 0, 30), true, PersonaAlwaysOn},
		{"toggle off, midday", false, karachiTime(t, 12, 0), false, ""},
		{"toggle off, midnight", false, karachiTime(t, 0, 30), true, PersonaAfterHours},
		{"toggle off, early morning", false, karachiTime(t, 8, 59), true, PersonaAfterHours},
		{"toggle off, opening minute", false, karachiTime(t, 9, 0), false, ""},
		{"toggle off, last staffed minute", false, karachiTime(t, 20, 59), false, ""},
		{"toggle off, closing minute", false, karachiTime(t, 21, 0), true, PersonaAfterHours},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dec := p.Evaluate(tt.enabled, tt.now)
			if dec.Respond != tt.wantRespond {
				t.Errorf("Respond = %v, want %v", dec.Respond, tt.wantRespond)
			}
			if dec.PersonaID != tt.wantPersona {
				t.Errorf("PersonaID = %q, want %q", dec.PersonaID, tt.wantPersona)
			}
		})
	}
}

// The staffed window is anchored to the operating timezone, not the clock's
// own zone. 18:00 UTC is 23:00 in Karachi: after hours.
func TestPolicy_FixedOperatingZone(t *testing.T) {
	p := testPolicy(t)

	utcEvening := time.Date(2026, 3, 14, 18, 0, 0, 0, time.UTC)
	dec := p.Evaluate(false, utcEvening)
	if !dec.Respond || dec.PersonaID != PersonaAfterHours {
		t.Errorf("18:00 UTC should be after hours in Karachi, got %+v", dec)
	}

	utcMorning := time.Date(2026, 3, 14, 7, 0, 0, 0, time.UTC) // 12:00 in Karachi
	dec = p.Evaluate(false, utcMorning)
	if dec.Respond {
		t.Errorf("07:00 UTC is midday in Karachi, expected no automated reply, got %+v", dec)
	}
}

func TestPolicy_InvalidTimezone(t *testing.T) {
	_, err := NewPolicy(config.HoursConfig{Timezone: "Not/AZone", OpenHour: 9, CloseHour: 21})
	if err == nil {
		t.Fatal("expected error for invalid timezone")
	}
}
