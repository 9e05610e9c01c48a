package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDefaultsValidate(t *testing.T) {
	if err := Validate(Defaults()); err != nil {
		t.Fatalf("defaults must validate: %v", err)
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")

	cfg := Defaults()
	cfg.Hours.CloseHour = 23
	cfg.Web.Port = 9090
	if err := Save(path, cfg); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.Hours.CloseHour != 23 {
		t.Errorf("closeHour = %d", loaded.Hours.CloseHour)
	}
	if loaded.Web.Port != 9090 {
		t.Errorf("port = %d", loaded.Web.Port)
	}
}

func TestLoadExpandsEnvVars(t *testing.T) {
	t.Setenv("SUPPORT_TEST_KEY", "sk-from-env")
	path := filepath.Join(t.TempDir(), "config.json")

	raw := `{"generation":{"apiKey":"${SUPPORT_TEST_KEY}"},"notify":{"telegram":{"token":"${ABSENT_VAR:-fallback}"}}}`
	if err := os.WriteFile(path, []byte(raw), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Generation.APIKey != "sk-from-env" {
		t.Errorf("apiKey = %q", cfg.Generation.APIKey)
	}
	if cfg.Notify.Telegram.Token != "fallback" {
		t.Errorf("token = %q", cfg.Notify.Telegram.Token)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"bad timezone", func(c *Config) { c.Hours.Timezone = "Mars/Olympus" }, "timezone"},
		{"open after close", func(c *Config) { c.Hours.OpenHour = 22 }, "openHour"},
		{"zero workers", func(c *Config) { c.Responder.ShardWorkers = 0 }, "shardWorkers"},
		{"zero history", func(c *Config) { c.Responder.HistoryWindow = 0 }, "historyWindow"},
		{"bad port", func(c *Config) { c.Web.Port = 70000 }, "port"},
		{"telegram without token", func(c *Config) { c.Notify.Telegram.Enabled = true }, "token"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults()
			tt.mutate(cfg)
			err := Validate(cfg)
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q should mention %q", err, tt.want)
			}
		})
	}
}

func TestGetSetByPath(t *testing.T) {
	cfg := Defaults()

	val, err := GetByPath(cfg, "hours.timezone")
	if err != nil {
		t.Fatalf("GetByPath: %v", err)
	}
	if val != "Asia/Karachi" {
		t.Errorf("timezone = %v", val)
	}

	if err := SetByPath(cfg, "hours.closeHour", "22"); err != nil {
		t.Fatalf("SetByPath: %v", err)
	}
	if cfg.Hours.CloseHour != 22 {
		t.Errorf("closeHour = %d", cfg.Hours.CloseHour)
	}

	if err := SetByPath(cfg, "web.enabled", "false"); err != nil {
		t.Fatalf("SetByPath bool: %v", err)
	}
	if cfg.Web.Enabled {
		t.Error("enabled should be false")
	}

	if _, err := GetByPath(cfg, "no.such.key"); err == nil {
		t.Error("expected error for unknown path")
	}
}

func TestSanitizeMasksSecrets(t *testing.T) {
	cfg := Defaults()
	cfg.Generation.APIKey = "sk-verysecretkey12345"
	cfg.Web.AuthToken = "short"

	clean := Sanitize(cfg)
	if strings.Contains(clean.Generation.APIKey, "verysecret") {
		t.Errorf("apiKey not masked: %q", clean.Generation.APIKey)
	}
	if clean.Web.AuthToken != "***" {
		t.Errorf("short token should be fully masked, got %q", clean.Web.AuthToken)
	}
	if cfg.Generation.APIKey != "sk-verysecretkey12345" {
		t.Error("Sanitize must not mutate the original")
	}
}

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home dir")
	}
	got := ExpandPath("~/.ghartek-support/support.db")
	if got != filepath.Join(home, ".ghartek-support/support.db") {
		t.Errorf("ExpandPath = %q", got)
	}
	if ExpandPath("/abs/path") != "/abs/path" {
		t.Error("absolute paths should pass through")
	}
}
