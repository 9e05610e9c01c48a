package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"
)

// Config is the root configuration for the support pipeline daemon.
type Config struct {
	General    GeneralConfig    `json:"general"`
	Hours      HoursConfig      `json:"hours"`
	Responder  ResponderConfig  `json:"responder"`
	Generation GenerationConfig `json:"generation"`
	Store      StoreConfig      `json:"store"`
	Web        WebConfig        `json:"web"`
	Notify     NotifyConfig     `json:"notify"`
	Metrics    MetricsConfig    `json:"metrics"`
}

type GeneralConfig struct {
	LogLevel string `json:"logLevel"`
	LogFile  string `json:"logFile,omitempty"`
}

// HoursConfig fixes the staffed window. The timezone is the service's
// operating zone, never the caller's local clock: customers and staff may
// sit in different zones, and after-hours must mean the same thing to all
// of them.
type HoursConfig struct {
	Timezone  string `json:"timezone"`
	OpenHour  int    `json:"openHour"`
	CloseHour int    `json:"closeHour"`
}

type ResponderConfig struct {
	ShardWorkers      int     `json:"shardWorkers"`
	HistoryWindow     int     `json:"historyWindow"`
	GenerationTimeout int     `json:"generationTimeoutSeconds"`
	DedupCapacity     int     `json:"dedupCapacity"`
	PersonaDir        string  `json:"personaDir,omitempty"`
	RatePerMinute     float64 `json:"ratePerMinute"`
	RateBurst         int     `json:"rateBurst"`
}

type GenerationConfig struct {
	APIBase string `json:"apiBase"`
	APIKey  string `json:"apiKey,omitempty"`
	Model   string `json:"model"`
}

type StoreConfig struct {
	DBPath    string `json:"dbPath"`
	BusBuffer int    `json:"busBuffer"`
}

type WebConfig struct {
	Enabled   bool   `json:"enabled"`
	Host      string `json:"host"`
	Port      int    `json:"port"`
	AuthToken string `json:"authToken,omitempty"`
}

type NotifyConfig struct {
	Telegram TelegramConfig `json:"telegram"`
}

// TelegramConfig configures the outbound-only staff notifier.
type TelegramConfig struct {
	Enabled bool   `json:"enabled"`
	Token   string `json:"token,omitempty"`
	ChatID  int64  `json:"chatId,omitempty"`
}

type MetricsConfig struct {
	Enabled  bool   `json:"enabled"`
	Endpoint string `json:"endpoint"`
}

// DefaultConfigDir returns the default config directory (~/.ghartek-support).
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".ghartek-support"
	}
	return filepath.Join(home, ".ghartek-support")
}

func DefaultConfigPath() string {
	return filepath.Join(DefaultConfigDir(), "config.json")
}

func Load(path string) (*Config, error) {
	path = ExpandPath(path)

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read config file %s: %w", path, err)
	}

	// Substitute environment variables: ${VAR} and ${VAR:-default}
	data = []byte(ExpandEnvVars(string(data)))

	cfg := Defaults()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("cannot parse config file %s: %w", path, err)
	}

	cfg.Store.DBPath = ExpandPath(cfg.Store.DBPath)
	cfg.Responder.PersonaDir = ExpandPath(cfg.Responder.PersonaDir)
	cfg.General.LogFile = ExpandPath(cfg.General.LogFile)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return cfg, nil
}

// envVarPattern matches ${VAR} and ${VAR:-default} patterns in config strings.
var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(?::-(.*?))?\}`)

// ExpandEnvVars replaces ${VAR} with the environment variable value.
// Supports default values: ${VAR:-default} uses "default" when VAR is unset or empty.
func ExpandEnvVars(input string) string {
	return envVarPattern.ReplaceAllStringFunc(input, func(match string) string {
		groups := envVarPattern.FindStringSubmatch(match)
		if len(groups) < 2 {
			return match
		}
		varName := groups[1]
		defaultVal := ""
		hasDefault := len(groups) >= 3 && groups[2] != ""
		if hasDefault {
			defaultVal = groups[2]
		}

		val, exists := os.LookupEnv(varName)
		if !exists || val == "" {
			if hasDefault {
				return defaultVal
			}
			return match // Keep original if no env var and no default
		}
		return val
	})
}

func Save(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("cannot create config directory: %w", err)
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("cannot marshal config: %w", err)
	}

	return os.WriteFile(path, data, 0o644)
}

// Validate checks that the config has valid values.
func Validate(cfg *Config) error {
	var errs []string

	if _, err := time.LoadLocation(cfg.Hours.Timezone); err != nil {
		errs = append(errs, fmt.Sprintf("hours.timezone is not a valid IANA zone: %s", cfg.Hours.Timezone))
	}
	if cfg.Hours.OpenHour < 0 || cfg.Hours.OpenHour > 23 {
		errs = append(errs, "hours.openHour must be between 0 and 23")
	}
	if cfg.Hours.CloseHour < 1 || cfg.Hours.CloseHour > 24 {
		errs = append(errs, "hours.closeHour must be between 1 and 24")
	}
	if cfg.Hours.OpenHour >= cfg.Hours.CloseHour {
		errs = append(errs, "hours.openHour must be before hours.closeHour")
	}

	if cfg.Responder.ShardWorkers < 1 || cfg.Responder.ShardWorkers > 64 {
		errs = append(errs, "responder.shardWorkers must be between 1 and 64")
	}
	if cfg.Responder.HistoryWindow < 1 {
		errs = append(errs, "responder.historyWindow must be >= 1")
	}
	if cfg.Responder.GenerationTimeout < 1 {
		errs = append(errs, "responder.generationTimeoutSeconds must be >= 1")
	}
	if cfg.Responder.DedupCapacity < 1 {
		errs = append(errs, "responder.dedupCapacity must be >= 1")
	}

	if cfg.Web.Port < 0 || cfg.Web.Port > 65535 {
		errs = append(errs, "web.port must be between 0 and 65535")
	}
	if cfg.Store.BusBuffer < 1 {
		errs = append(errs, "store.busBuffer must be >= 1")
	}

	if cfg.Notify.Telegram.Enabled && cfg.Notify.Telegram.Token == "" {
		errs = append(errs, "notify.telegram.token is required when notify.telegram.enabled")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation errors:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// ExpandPath resolves ~/ to the user's home directory.
func ExpandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}
	return path
}
