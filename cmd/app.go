package cmd

import (
	"context"
	"os"

	"go.uber.org/zap"

	"github.com/Yates-Labs/folio/internal/agent"
	"github.com/Yates-Labs/folio/internal/config"
	"github.com/Yates-Labs/folio/internal/metrics"
	"github.com/Yates-Labs/folio/internal/pipeline"
	"github.com/Yates-Labs/folio/internal/validate"
)

// app bundles what most commands need.
type app struct {
	cfg       *config.Config
	agents    *agent.Registry
	validator *validate.Validator
	metrics   *metrics.Metrics
	pipeline  *pipeline.Orchestrator
}

// loadStyleGuide reads the configured style guide, falling back to the
// built-in one when the file does not exist.
func loadStyleGuide(cfg *config.Config) (*validate.StyleGuide, error) {
	path := cfg.Project.StyleGuide
	if path == "" {
		return validate.DefaultStyleGuide(), nil
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		logger.Debug("style guide not found, using defaults", zap.String("path", path))
		return validate.DefaultStyleGuide(), nil
	}
	return validate.LoadStyleGuide(path)
}

// newApp loads configuration and, when withAgents is set, connects to the
// configured model provider.
func newApp(ctx context.Context, withAgents bool) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	logger.Debug("configuration loaded",
		zap.String("path", configPath),
		zap.String("provider", cfg.Provider),
		zap.String("model", cfg.Model),
	)

	style, err := loadStyleGuide(cfg)
	if err != nil {
		return nil, err
	}

	a := &app{
		cfg:       cfg,
		validator: validate.New(style, logger),
		metrics:   metrics.New(),
	}

	if withAgents {
		a.agents, err = agent.Connect(ctx, cfg, logger)
		if err != nil {
			return nil, err
		}
	}

	a.pipeline = pipeline.New(cfg, a.agents, a.validator, a.metrics, logger)
	return a, nil
}
