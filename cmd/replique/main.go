package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"replique/internal/attachment"
	"replique/internal/bus"
	"replique/internal/completion"
	"replique/internal/config"
	"replique/internal/domain"
	"replique/internal/engine"
	"replique/internal/metrics"
	"replique/internal/persona"
	"replique/internal/store"
	"replique/internal/transport"
)

var (
	version    = "0.1.0"
	logger     *slog.Logger
	configPath string // overridable via --config flag
)

func main() {
	logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))

	root := &cobra.Command{
		Use:   "replique",
		Short: "replique: conversational auto-responder",
		Long:  "replique bridges instant-messaging conversations to a generative completion backend and replies on your behalf.",
	}

	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to config.json (default: ~/.replique/config.json)")

	root.AddCommand(initCmd())
	root.AddCommand(runCmd())
	root.AddCommand(statusCmd())
	root.AddCommand(configCmd())
	root.AddCommand(ignoreCmd())

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

func initCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Initialize the config directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgDir := config.DefaultConfigDir()
			cfgPath := config.DefaultConfigPath()
			if err := os.MkdirAll(cfgDir, 0o755); err != nil {
				return err
			}
			if _, err := os.Stat(cfgPath); err == nil {
				return fmt.Errorf("config already exists at %s", cfgPath)
			}
			if err := config.Save(cfgPath, config.Defaults()); err != nil {
				return err
			}
			logger.Info("initialized", "config", cfgPath)
			return nil
		},
	}
}

func runCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Connect the enabled transports and start replying",
		RunE:  run,
	}
}

func run(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(resolveConfigPath())
	if err != nil {
		return err
	}
	logger = buildLogger(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	p, err := loadPersona(cfg)
	if err != nil {
		return err
	}

	db, err := store.NewSQLiteStore(cfg.Store.DBPath, logger)
	if err != nil {
		return err
	}
	defer db.Close()

	completer, err := completion.NewGemini(ctx, completion.GeminiConfig{
		APIKey:          cfg.Completion.APIKey,
		Model:           cfg.Completion.Model,
		MaxOutputTokens: cfg.Completion.MaxOutputTokens,
		TopP:            cfg.Completion.TopP,
		Logger:          logger,
	})
	if err != nil {
		return err
	}

	eventBus := bus.NewEventBus(logger)
	orch := engine.New(engine.Options{
		Prefix:    cfg.General.Prefix,
		Persona:   p,
		MaxTurns:  cfg.Engine.MaxTurns,
		Cooldown:  time.Duration(cfg.Engine.CooldownMs) * time.Millisecond,
		Ignores:   db,
		Settings:  db,
		Resolver:  attachment.NewResolver(logger),
		Completer: completer,
		Bus:       eventBus,
		Logger:    logger,
	})

	transports := buildTransports(cfg)
	if len(transports) == 0 {
		return errors.New("no transport enabled; enable discord or telegram in the config")
	}

	if cfg.Metrics.Enabled {
		go serveMetrics(ctx, cfg)
	}

	logger.Info("replique starting", "version", version, "persona", p.Name, "transports", len(transports))

	errCh := make(chan error, len(transports))
	for _, t := range transports {
		go func(t domain.Transport) {
			errCh <- t.Run(ctx, orch.Handler(t))
		}(t)
	}

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
		return nil
	case err := <-errCh:
		return err
	}
}

func buildLogger(cfg *config.Config) *slog.Logger {
	var level slog.Level
	switch cfg.General.LogLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	out := os.Stderr
	if cfg.General.LogFile != "" {
		if f, err := os.OpenFile(cfg.General.LogFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644); err == nil {
			out = f
		}
	}
	return slog.New(slog.NewTextHandler(out, &slog.HandlerOptions{Level: level}))
}

func loadPersona(cfg *config.Config) (persona.Persona, error) {
	if cfg.General.PersonaFile == "" {
		return persona.Default(), nil
	}
	return persona.LoadFile(cfg.General.PersonaFile)
}

func buildTransports(cfg *config.Config) []domain.Transport {
	var transports []domain.Transport
	if cfg.Transports.Discord.Enabled {
		transports = append(transports, transport.NewDiscord(transport.DiscordConfig{
			Token:   cfg.Transports.Discord.Token,
			Premium: cfg.Transports.Discord.Premium,
			Logger:  logger,
		}))
	}
	if cfg.Transports.Telegram.Enabled {
		transports = append(transports, transport.NewTelegram(transport.TelegramConfig{
			Token:   cfg.Transports.Telegram.Token,
			OwnerID: cfg.Transports.Telegram.OwnerID,
			Logger:  logger,
		}))
	}
	return transports
}

func serveMetrics(ctx context.Context, cfg *config.Config) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Collector.Handler())

	srv := &http.Server{
		Addr:    net.JoinHostPort(cfg.Metrics.Host, strconv.Itoa(cfg.Metrics.Port)),
		Handler: mux,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	logger.Info("metrics endpoint listening", "addr", srv.Addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("metrics endpoint failed", "err", err)
	}
}

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show configuration and store status",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgPath := resolveConfigPath()
			cfg, err := config.Load(cfgPath)
			if err != nil {
				logger.Info("config", "path", cfgPath, "loaded", false, "err", err)
				return nil
			}
			logger.Info("config", "path", cfgPath, "loaded", true)
			logger.Info("transports",
				"discord", cfg.Transports.Discord.Enabled,
				"telegram", cfg.Transports.Telegram.Enabled,
			)

			db, err := store.NewSQLiteStore(cfg.Store.DBPath, logger)
			if err != nil {
				logger.Info("store", "path", cfg.Store.DBPath, "open", false, "err", err)
				return nil
			}
			defer db.Close()

			ctx := context.Background()
			enabled, _ := db.AutoReplyEnabled(ctx)
			ignored, _ := db.ListIgnored(ctx)
			logger.Info("store", "path", cfg.Store.DBPath, "auto_reply", enabled, "ignored_users", len(ignored))
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
		Short: "Get a config value (e.g. general.prefix)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(resolveConfigPath())
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
		Short: "Set a config value (e.g. engine.maxTurns 20)",
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
				return err
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
		Short: "List all config values with secrets masked",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(resolveConfigPath())
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			data, _ := json.MarshalIndent(config.Sanitize(cfg), "", "  ")
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

func ignoreCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ignore",
		Short: "Manage the auto-reply ignore list",
	}

	openStore := func() (*store.SQLiteStore, error) {
		cfg, err := config.Load(resolveConfigPath())
		if err != nil {
			return nil, err
		}
		return store.NewSQLiteStore(cfg.Store.DBPath, logger)
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List ignored author IDs",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := openStore()
			if err != nil {
				return err
			}
			defer db.Close()
			ids, err := db.ListIgnored(context.Background())
			if err != nil {
				return err
			}
			for _, id := range ids {
				fmt.Println(id)
			}
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "add [author-id]",
		Short: "Exclude an author from automatic replies",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := openStore()
			if err != nil {
				return err
			}
			defer db.Close()
			if err := db.AddIgnored(context.Background(), args[0]); err != nil {
				return err
			}
			logger.Info("author ignored", "author", args[0])
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "remove [author-id]",
		Short: "Re-allow automatic replies to an author",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := openStore()
			if err != nil {
				return err
			}
			defer db.Close()
			if err := db.RemoveIgnored(context.Background(), args[0]); err != nil {
				return err
			}
			logger.Info("author re-allowed", "author", args[0])
			return nil
		},
	})

	return cmd
}
