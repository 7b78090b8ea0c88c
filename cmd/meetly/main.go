package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"meetly/internal/bus"
	"meetly/internal/calendar"
	"meetly/internal/channel"
	"meetly/internal/config"
	"meetly/internal/contacts"
	"meetly/internal/domain"
	"meetly/internal/intent"
	"meetly/internal/memory"
	"meetly/internal/notify"
	"meetly/internal/provider"
	"meetly/internal/reminder"
	"meetly/internal/replies"
	"meetly/internal/scheduler"
)

var (
	version    = "0.3.0"
	logger     *slog.Logger
	configPath string // overridable via --config flag
)

func main() {
	logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))

	root := &cobra.Command{
		Use:   "meetly",
		Short: "Meetly: a chat-based meeting scheduler",
		Long:  "Meetly books meetings from natural-language chat, across web, Telegram, and the terminal.",
	}

	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to config.json (default: ~/.meetly/config.json)")

	root.AddCommand(initCmd())
	root.AddCommand(chatCmd())
	root.AddCommand(serveCmd())
	root.AddCommand(statusCmd())
	root.AddCommand(configCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func resolveConfigPath() string {
	if configPath != "" {
		return configPath
	}
	return config.DefaultConfigPath()
}

func initCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Create the default config file",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgDir := config.DefaultConfigDir()
			cfgPath := config.DefaultConfigPath()
			if err := os.MkdirAll(cfgDir, 0o755); err != nil {
				return err
			}
			if _, err := os.Stat(cfgPath); err == nil {
				logger.Info("config already exists", "path", cfgPath)
				return nil
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

// app bundles the wired components behind the channels.
type app struct {
	cfg      *config.Config
	store    domain.Store
	bus      *bus.InMemoryBus
	engine   *scheduler.Engine
	reminder *reminder.Reminder
}

// buildApp wires store, providers, intent chain, contacts, calendar,
// notifier and the scheduling engine from config.
func buildApp(cfg *config.Config) (*app, error) {
	loc := time.Local
	if tz := cfg.General.Timezone; tz != "" && tz != "Local" {
		var err error
		loc, err = time.LoadLocation(tz)
		if err != nil {
			return nil, fmt.Errorf("load timezone: %w", err)
		}
	}

	messageBus := bus.New(100, logger)

	var store domain.Store
	if cfg.Memory.Enabled {
		s, err := memory.NewSQLiteStore(cfg.Memory.DBPath, logger)
		if err != nil {
			return nil, fmt.Errorf("memory store: %w", err)
		}
		store = s
	}

	// Intent parsing: model first, pattern rules as the safety net.
	parsers := []intent.Parser{}
	factory := provider.NewFactory(cfg, logger)
	if completer, err := factory.Chain(); err == nil && completer != nil {
		parsers = append(parsers, intent.NewLLMParser(completer, cfg.Scheduler.DefaultDurationMin))
	} else if err != nil {
		logger.Warn("no language model available, using pattern parsing only", "err", err)
	}
	parsers = append(parsers, intent.NewHeuristicParser(cfg.Scheduler.DefaultDurationMin))
	parserChain := intent.NewChain(logger, parsers...)

	// One pooled client for both Google-style APIs.
	apiClient := provider.SharedHTTPClient(30 * time.Second)

	directory := contacts.NewClient(contacts.ClientConfig{
		APIBase:    cfg.Contacts.APIBase,
		APIKey:     cfg.Contacts.APIKey,
		Warmup:     cfg.Contacts.Warmup,
		HTTPClient: apiClient,
		Logger:     logger,
	})

	cal := calendar.NewClient(calendar.ClientConfig{
		APIBase:    cfg.Calendar.APIBase,
		APIKey:     cfg.Calendar.APIKey,
		CalendarID: cfg.Calendar.CalendarID,
		Timezone:   cfg.General.Timezone,
		HTTPClient: apiClient,
		Logger:     logger,
	})
	checker := calendar.NewChecker(cal, calendar.CheckerConfig{
		WorkdayStart:   cfg.Calendar.WorkdayStart,
		WorkdayEnd:     cfg.Calendar.WorkdayEnd,
		SlotStepMin:    cfg.Calendar.SlotStepMin,
		MaxSuggestions: cfg.Calendar.MaxSuggestions,
	})

	var notifier notify.Notifier
	if cfg.Email.Enabled && cfg.Email.SendGridKey != "" {
		notifier = notify.NewSendGridNotifier(cfg.Email.SendGridKey, cfg.Email.FromName, cfg.Email.FromAddress, logger)
	} else {
		notifier = &notify.LogNotifier{Logger: logger}
	}

	pack, err := replies.LoadDir(filepath.Join(config.DefaultConfigDir(), "replies"), logger)
	if err != nil {
		logger.Warn("cannot load reply packs, using built-ins", "err", err)
		pack = replies.Builtin()
	}

	sessions := scheduler.NewManager(store, logger)
	controller := scheduler.NewController(scheduler.ControllerConfig{
		Parser:    parserChain,
		Directory: directory,
		Checker:   checker,
		Calendar:  cal,
		Store:     store,
		Notifier:  notifier,
		Replies:   pack,
		Sessions:  sessions,
		Logger:    logger,
	})

	engine := scheduler.NewEngine(controller, messageBus, 0, logger)

	a := &app{
		cfg:    cfg,
		store:  store,
		bus:    messageBus,
		engine: engine,
	}

	if cfg.Reminders.Enabled && store != nil {
		a.reminder = reminder.New(store, messageBus, cfg.Reminders.CronExpr, loc, logger)
	}

	return a, nil
}

func (a *app) close() {
	if a.reminder != nil {
		a.reminder.Stop()
	}
	a.bus.Close()
	if a.store != nil {
		a.store.Close()
	}
}

func chatCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "chat",
		Short: "Start interactive chat in the terminal",
		RunE:  runChat,
	}
}

func runChat(cmd *cobra.Command, args []string) error {
	cfgPath := resolveConfigPath()
	cfg, err := config.Load(cfgPath)
	if err != nil {
		logger.Warn("config not found, using defaults", "path", cfgPath, "err", err)
		cfg = config.Defaults()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := buildApp(cfg)
	if err != nil {
		return err
	}
	defer a.close()

	go a.engine.Run(ctx)

	if a.reminder != nil {
		if err := a.reminder.Start(); err != nil {
			logger.Warn("cannot start reminders", "err", err)
		}
	}

	cliCh := channel.NewCLI(channel.CLIConfig{Logger: logger})
	return cliCh.Start(ctx, a.bus)
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the site and all enabled chat channels",
		Long:  "Starts the marketing site with the chat demo plus Telegram when enabled, and the scheduling engine behind them. Press Ctrl+C to stop.",
		RunE:  runServe,
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	cfgPath := resolveConfigPath()
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := buildApp(cfg)
	if err != nil {
		return err
	}

	go a.engine.Run(ctx)

	if a.reminder != nil {
		if err := a.reminder.Start(); err != nil {
			logger.Warn("cannot start reminders", "err", err)
		}
	}

	var telegramCh *channel.Telegram
	if cfg.Channels.Telegram.Enabled && cfg.Channels.Telegram.Token != "" {
		telegramCh = channel.NewTelegram(channel.TelegramConfig{
			Token:     cfg.Channels.Telegram.Token,
			AllowFrom: cfg.Channels.Telegram.AllowFrom,
			ParseMode: cfg.Channels.Telegram.ParseMode,
			Logger:    logger,
		})
		go func() {
			if err := telegramCh.Start(ctx, a.bus); err != nil {
				logger.Error("telegram channel error", "err", err)
			}
		}()
		logger.Info("telegram channel enabled")
	} else {
		logger.Info("telegram channel disabled")
	}

	var webCh *channel.Web
	if cfg.Channels.Web.Enabled {
		webCh = channel.NewWeb(channel.WebConfig{
			Host:       cfg.Channels.Web.Host,
			Port:       cfg.Channels.Web.Port,
			Logger:     logger,
			Store:      a.store,
			Config:     cfg,
			ConfigPath: cfgPath,
			Version:    version,
		})
		go func() {
			if err := webCh.Start(ctx, a.bus); err != nil {
				logger.Error("web channel error", "err", err)
			}
		}()
	}

	var wsCh *channel.WebSocketChannel
	if cfg.Channels.Websocket.Enabled {
		wsCh = channel.NewWebSocketChannel(channel.WSConfig{
			Port:   cfg.Channels.Websocket.Port,
			Path:   cfg.Channels.Websocket.Path,
			Logger: logger,
		})
		go func() {
			if err := wsCh.Start(ctx, a.bus); err != nil {
				logger.Error("websocket channel error", "err", err)
			}
		}()
	}

	logger.Info("meetly started. Press Ctrl+C to stop.")

	<-ctx.Done()
	logger.Info("shutting down...")

	const shutdownTimeout = 10 * time.Second
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		if telegramCh != nil {
			telegramCh.Stop()
		}
		if webCh != nil {
			webCh.Stop()
		}
		if wsCh != nil {
			wsCh.Stop()
		}
		a.close()
	}()

	select {
	case <-done:
		logger.Info("shutdown complete")
		return nil
	case <-shutdownCtx.Done():
		logger.Warn("shutdown timed out, forcing exit")
		return fmt.Errorf("shutdown timed out")
	}
}

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show system status",
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
			factory := provider.NewFactory(cfg, logger)
			if completer := factory.HealthyCompleter(ctx); completer != nil {
				logger.Info("language model", "name", completer.Name(), "healthy", true)
			} else {
				logger.Info("language model", "healthy", false, "note", "pattern parsing still works")
			}

			logger.Info("channels",
				"web", cfg.Channels.Web.Enabled,
				"telegram", cfg.Channels.Telegram.Enabled,
				"cli", cfg.Channels.CLI.Enabled,
			)
			logger.Info("reminders", "enabled", cfg.Reminders.Enabled, "cron", cfg.Reminders.CronExpr)
			return nil
		},
	}
}

func configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "View and modify configuration",
		Long:  "Get, set, and list configuration values. Changes are saved to the config file.",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "get [path]",
		Short: "Get a config value (e.g. calendar.workdayStartHour)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgPath := resolveConfigPath()
			cfg, err := config.Load(cfgPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
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
		Short: "Set a config value (e.g. scheduler.defaultDurationMinutes 45)",
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
			if err := config.Validate(cfg); err != nil {
				return fmt.Errorf("validate: %w", err)
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
			cfgPath := resolveConfigPath()
			cfg, err := config.Load(cfgPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
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
