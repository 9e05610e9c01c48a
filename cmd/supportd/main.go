package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/arshadahsan388/ghartek-support/internal/bus"
	"github.com/arshadahsan388/ghartek-support/internal/channel"
	"github.com/arshadahsan388/ghartek-support/internal/config"
	"github.com/arshadahsan388/ghartek-support/internal/domain"
	"github.com/arshadahsan388/ghartek-support/internal/generate"
	"github.com/arshadahsan388/ghartek-support/internal/notify"
	"github.com/arshadahsan388/ghartek-support/internal/responder"
	"github.com/arshadahsan388/ghartek-support/internal/store"
)

var (
	version    = "0.3.1"
	logger     *slog.Logger
	configPath string // overridable via --config flag
	ephemeral  bool
)

func main() {
	logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))

	root := &cobra.Command{
		Use:   "supportd",
		Short: "GharTek customer support pipeline",
		Long:  "supportd runs the GharTek support chat backend: conversation store, staffed-hours policy, and automated first replies.",
	}

	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to config.json (default: ~/.ghartek-support/config.json)")

	root.AddCommand(initCmd())
	root.AddCommand(serveCmd())
	root.AddCommand(statusCmd())
	root.AddCommand(responderCmd())
	root.AddCommand(configCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

// resolveConfigPath returns the config path from --config flag or default.
func resolveConfigPath() string {
	if configPath != "" {
		return configPath
	}
	return config.DefaultConfigPath()
}

func loadConfig() (*config.Config, error) {
	cfgPath := resolveConfigPath()
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

func initCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Initialize config directory with defaults",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgDir := config.DefaultConfigDir()
			cfgPath := config.DefaultConfigPath()
			if err := os.MkdirAll(cfgDir, 0o755); err != nil {
				return err
			}
			cfg := config.Defaults()
			if err := config.Save(cfgPath, cfg); err != nil {
				return err
			}
			logger.Info("initialized", "config", cfgPath)
			return nil
		},
	}
}

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the support pipeline daemon",
		Long:  "Starts the conversation store, ingestion trigger, presence tracker, chat websocket and admin API. Press Ctrl+C to stop.",
		RunE:  runServe,
	}
	cmd.Flags().BoolVar(&ephemeral, "ephemeral", false, "use an in-memory store (conversations lost on exit)")
	return cmd
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	messageBus := bus.New(cfg.Store.BusBuffer, logger)
	events := bus.NewEventBus(logger)
	fanout := bus.NewFanout(messageBus, events)

	var st store.Store
	if ephemeral {
		logger.Warn("ephemeral mode: conversations are not persisted")
		st = store.NewMemoryStore(fanout)
	} else {
		sqlStore, err := store.NewSQLiteStore(cfg.Store.DBPath, fanout, logger)
		if err != nil {
			return fmt.Errorf("conversation store: %w", err)
		}
		st = sqlStore
	}
	defer st.Close()

	policy, err := responder.NewPolicy(cfg.Hours)
	if err != nil {
		return fmt.Errorf("availability policy: %w", err)
	}

	personas := responder.NewRegistry(logger)
	if cfg.Responder.PersonaDir != "" {
		if err := personas.LoadDirectory(cfg.Responder.PersonaDir); err != nil {
			logger.Warn("persona directory not loaded, using builtins",
				"dir", cfg.Responder.PersonaDir, "err", err)
		}
	}

	gen := buildGenerator(cfg)
	if err := gen.Healthy(ctx); err != nil {
		logger.Warn("generation backend unhealthy at startup", "generator", gen.Name(), "err", err)
	} else {
		logger.Info("generation backend healthy", "generator", gen.Name())
	}

	sync := responder.NewSynchronizer(st, logger)
	limiter := responder.NewRateLimiter(cfg.Responder.RateBurst, cfg.Responder.RatePerMinute)

	composer := responder.NewComposer(responder.ComposerConfig{
		Store:     st,
		Sync:      sync,
		Generator: gen,
		Limiter:   limiter,
		Timeout:   time.Duration(cfg.Responder.GenerationTimeout) * time.Second,
		Logger:    logger,
	})

	trigger := responder.NewTrigger(responder.TriggerConfig{
		Store:         st,
		Policy:        policy,
		Personas:      personas,
		Composer:      composer,
		Bus:           messageBus,
		Events:        events,
		Logger:        logger,
		Workers:       cfg.Responder.ShardWorkers,
		HistoryWindow: cfg.Responder.HistoryWindow,
		DedupCapacity: cfg.Responder.DedupCapacity,
	})
	go trigger.Run(ctx)

	tracker := responder.NewTracker(st, events, logger, 0)
	go tracker.Run(ctx)

	if cfg.Notify.Telegram.Enabled && cfg.Notify.Telegram.Token != "" {
		notifier, err := notify.NewTelegram(notify.TelegramConfig{
			Token:  cfg.Notify.Telegram.Token,
			ChatID: cfg.Notify.Telegram.ChatID,
			Logger: logger,
		})
		if err != nil {
			logger.Error("telegram notifier disabled", "err", err)
		} else {
			notifier.Attach(events)
			logger.Info("telegram notifier enabled")
		}
	}

	var webErr chan error
	if cfg.Web.Enabled {
		metricsEndpoint := ""
		if cfg.Metrics.Enabled {
			metricsEndpoint = cfg.Metrics.Endpoint
		}
		web := channel.NewWeb(channel.WebConfig{
			Host:            cfg.Web.Host,
			Port:            cfg.Web.Port,
			AuthToken:       cfg.Web.AuthToken,
			Store:           st,
			Sync:            sync,
			Presence:        tracker,
			Events:          events,
			Logger:          logger,
			MetricsEndpoint: metricsEndpoint,
		})
		webErr = make(chan error, 1)
		go func() {
			if err := web.Start(ctx); err != nil {
				webErr <- err
			}
		}()
	}

	logger.Info("support pipeline started", "version", version)

	select {
	case <-ctx.Done():
	case err := <-webErr:
		return fmt.Errorf("web channel: %w", err)
	}

	logger.Info("shutting down...")
	messageBus.Close()
	return nil
}

// buildGenerator picks the configured generation backend; without an API
// key it falls back to canned responses so local runs still answer.
func buildGenerator(cfg *config.Config) domain.Generator {
	if cfg.Generation.APIKey == "" {
		logger.Warn("no generation API key configured, using static responses")
		return generate.NewStatic()
	}
	return generate.NewOpenAI(generate.OpenAIConfig{
		APIKey:  cfg.Generation.APIKey,
		APIBase: cfg.Generation.APIBase,
		Model:   cfg.Generation.Model,
		Logger:  logger,
	})
}

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show pipeline status",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgPath := resolveConfigPath()
			cfg, err := config.Load(cfgPath)
			if err != nil {
				logger.Info("config", "path", cfgPath, "loaded", false)
				cfg = config.Defaults()
			} else {
				logger.Info("config", "path", cfgPath, "loaded", true)
			}

			ctx := context.Background()
			gen := buildGenerator(cfg)
			if err := gen.Healthy(ctx); err != nil {
				logger.Info("generation backend", "name", gen.Name(), "healthy", false, "err", err)
			} else {
				logger.Info("generation backend", "name", gen.Name(), "healthy", true)
			}

			st, err := store.NewSQLiteStore(cfg.Store.DBPath, nil, logger)
			if err != nil {
				logger.Info("store", "healthy", false, "err", err)
				return nil
			}
			defer st.Close()
			enabled, err := st.AutoResponderEnabled(ctx)
			if err != nil {
				logger.Info("store", "healthy", false, "err", err)
				return nil
			}
			logger.Info("store", "healthy", true, "autoResponder", enabled)
			return nil
		},
	}
}

// responderCmd controls the operator toggle directly in the store, so it
// takes effect immediately for a running daemon.
func responderCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "responder [on|off|status]",
		Short: "Control the auto-responder toggle",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			st, err := store.NewSQLiteStore(cfg.Store.DBPath, nil, logger)
			if err != nil {
				return fmt.Errorf("conversation store: %w", err)
			}
			defer st.Close()

			ctx := context.Background()
			switch args[0] {
			case "on":
				if err := st.SetAutoResponderEnabled(ctx, true); err != nil {
					return err
				}
				fmt.Println("auto-responder: on")
			case "off":
				if err := st.SetAutoResponderEnabled(ctx, false); err != nil {
					return err
				}
				fmt.Println("auto-responder: off")
			case "status":
				enabled, err := st.AutoResponderEnabled(ctx)
				if err != nil {
					return err
				}
				if enabled {
					fmt.Println("auto-responder: on")
				} else {
					fmt.Println("auto-responder: off")
				}
			default:
				return fmt.Errorf("unknown argument %q (want on, off or status)", args[0])
			}
			return nil
		},
	}
	return cmd
}

func configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "View and modify configuration",
		Long:  "Get, set, and list configuration values. Changes are saved to the config file.",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "get [path]",
		Short: "Get a config value (e.g. hours.openHour)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			val, err := config.GetByPath(cfg, args[0])
			if err != nil {
				return err
			}
			data, _ := json.MarshalIndent(val, "", "  ")
			fmt.Println(string(data))
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "set [path] [value]",
		Short: "Set a config value (e.g. hours.closeHour 22)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgPath := resolveConfigPath()
			cfg, err := config.Load(cfgPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if err := config.SetByPath(cfg, args[0], args[1]); err != nil {
				return fmt.Errorf("set value: %w", err)
			}
			if err := config.Save(cfgPath, cfg); err != nil {
				return fmt.Errorf("save config: %w", err)
			}
			logger.Info("config updated", "path", args[0], "value", args[1], "file", cfgPath)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List all config values",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			sanitized := config.Sanitize(cfg)
			data, _ := json.MarshalIndent(sanitized, "", "  ")
			fmt.Println(string(data))
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Show config file path",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println(resolveConfigPath())
		},
	})

	return cmd
}
