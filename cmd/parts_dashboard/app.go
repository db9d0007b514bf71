package main

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/jonathan/parts-dashboard/internal/assistant"
	"github.com/jonathan/parts-dashboard/internal/config"
	"github.com/jonathan/parts-dashboard/internal/db"
	"github.com/jonathan/parts-dashboard/internal/llm"
	"github.com/jonathan/parts-dashboard/internal/logging"
	"github.com/jonathan/parts-dashboard/internal/syncer"
	"github.com/jonathan/parts-dashboard/internal/zuper"
)

// newLLMClient builds the assistant's model client. Tests replace it.
var newLLMClient = llm.NewClient

// app holds the collaborators shared by every command.
type app struct {
	cfg       *config.Config
	logger    *zap.Logger
	db        *db.DB
	zuper     *zuper.Client
	llm       llm.Client
	assistant *assistant.Assistant
	syncer    *syncer.Manager
}

// loadConfig reads the config file and environment, then applies the global flags.
func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if databaseURL != "" {
		cfg.Database.DSN = databaseURL
		cfg.Database.Driver = "sqlite3"
		if config.IsPostgresURL(databaseURL) {
			cfg.Database.Driver = "postgres"
		}
	}
	if verbose {
		cfg.Logging.Level = "debug"
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// newApp wires the store, the Zuper client and the assistant from the config.
// The Zuper client and the assistant are left nil when their credentials are missing.
func newApp(ctx context.Context) (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		return nil, err
	}

	store, err := db.Open(ctx, cfg.Database, db.ScopeFromConfig(cfg.App), logger)
	if err != nil {
		return nil, err
	}
	a := &app{cfg: cfg, logger: logger, db: store}

	var source syncer.JobSource
	if cfg.Zuper.IsConfigured() {
		client, err := zuper.NewClient(cfg.Zuper, logger, zuper.WithCategory(cfg.App.JobCategory))
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("failed to create Zuper client: %w", err)
		}
		a.zuper = client
		source = client
	} else {
		logger.Debug("Zuper API is not configured, sync is unavailable")
	}
	a.syncer = syncer.NewManager(source, store, logger)

	if cfg.LLM.APIKey != "" {
		client, err := newLLMClient(ctx, llm.FromSettings(cfg.LLM), cfg.LLM.APIKey)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("failed to create LLM client: %w", err)
		}
		a.llm = client
		a.assistant = assistant.New(client, logger)
	}

	return a, nil
}

// requireAssistant reports why the assistant cannot be used, if it cannot.
func (a *app) requireAssistant() error {
	if !a.cfg.App.Features.AIAssistant {
		return errors.New("AI assistant is disabled (app.features.ai_assistant)")
	}
	if a.assistant == nil {
		return fmt.Errorf("%w: set GEMINI_API_KEY or llm.api_key", llm.ErrNotConfigured)
	}
	return nil
}

// Close releases the model client, the store and the logger.
func (a *app) Close() {
	if a.llm != nil {
		_ = a.llm.Close()
	}
	if a.db != nil {
		_ = a.db.Close()
	}
	_ = a.logger.Sync()
}
