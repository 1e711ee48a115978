package main

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/hupe1980/leadflow"
	"github.com/hupe1980/leadflow/config"
	"github.com/hupe1980/leadflow/extract"
	"github.com/hupe1980/leadflow/generation"
	anthropicgen "github.com/hupe1980/leadflow/generation/anthropic"
	openaigen "github.com/hupe1980/leadflow/generation/openai"
	"github.com/hupe1980/leadflow/logging"
	"github.com/hupe1980/leadflow/metric"
	"github.com/hupe1980/leadflow/record"
	redisstore "github.com/hupe1980/leadflow/record/redis"
)

// app bundles the wired services a command needs.
type app struct {
	flow     *leadflow.LeadFlow
	cfg      *config.Config
	logger   logging.Logger
	registry *prometheus.Registry
	close    func()
}

// buildApp loads configuration and wires the engine with the configured
// store and generation provider. A missing provider credential fails here,
// at startup, never mid-conversation.
func buildApp(cmd *cobra.Command) (*app, error) {
	path, _ := cmd.Flags().GetString("config")

	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}

	logger := logging.NewSlogLogger(logging.ParseLevel(cfg.LogLevel), "text", false)

	triggers, err := cfg.TriggerSet()
	if err != nil {
		return nil, err
	}
	keySpecs, err := cfg.KeySpecs()
	if err != nil {
		return nil, err
	}
	corrections := cfg.CorrectionPhrases
	if len(corrections) == 0 {
		corrections = extract.DefaultCorrectionPhrases
	}

	var store record.Store = record.NewInMemoryStore()
	closeStore := func() {}
	if cfg.Redis.Addr != "" {
		rs := redisstore.New(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		store = rs
		closeStore = func() { _ = rs.Close() }
		logger.Info("using redis record store", "addr", cfg.Redis.Addr)
	}

	var generator generation.Generator
	switch cfg.Provider {
	case config.ProviderOpenAI:
		generator = openaigen.New(func(o *openaigen.Options) {
			o.APIKey = cfg.Credential
		})
	case config.ProviderAnthropic:
		generator = anthropicgen.New(func(o *anthropicgen.Options) {
			o.APIKey = cfg.Credential
		})
	case config.ProviderNone, "":
		// Canned replies only.
	default:
		closeStore()
		return nil, fmt.Errorf("unknown generation provider %q", cfg.Provider)
	}

	registry := prometheus.NewRegistry()

	lf := leadflow.New(func(o *leadflow.Options) {
		o.Registry = cfg.Registry()
		o.Store = store
		o.Generator = generator
		o.Triggers = triggers
		o.CorrectionPhrases = corrections
		o.KeySpecs = keySpecs
		o.Logger = logger
		o.Metrics = metric.NewSet(registry)
	})

	return &app{
		flow:     lf,
		cfg:      cfg,
		logger:   logger,
		registry: registry,
		close:    closeStore,
	}, nil
}
