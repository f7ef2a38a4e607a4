package main

import (
	"fmt"

	"github.com/suteetoe/storefront/internal/assets"
	"github.com/suteetoe/storefront/internal/defaults"
	"github.com/suteetoe/storefront/pkg/config"
	"github.com/suteetoe/storefront/pkg/logger"
	"go.uber.org/zap"
)

// app holds what every subcommand needs.
type app struct {
	cfg      *config.Config
	log      *zap.Logger
	layout   assets.Layout
	defaults defaults.Defaults
}

func bootstrap() (*app, error) {
	cfg, err := config.Load(serviceName)
	if err != nil {
		return nil, fmt.Errorf("load configuration: %w", err)
	}

	if err := logger.InitLogger(&logger.LogConfig{
		Level:       cfg.Log.Level,
		Environment: cfg.Server.Env,
		ServiceName: cfg.ServiceName,
	}); err != nil {
		return nil, fmt.Errorf("initialize logger: %w", err)
	}
	log := logger.GetLogger()

	d, err := defaults.Load(cfg.Provisioning.DefaultsFile)
	if err != nil {
		return nil, err
	}

	return &app{
		cfg: cfg,
		log: log,
		layout: assets.Layout{
			AssetsRoot:   cfg.Storage.AssetsRoot,
			PublicPrefix: cfg.Storage.PublicPrefix,
			SourceRoot:   cfg.Storage.SourceRoot,
			TempDir:      cfg.Storage.TempDir,
		},
		defaults: d,
	}, nil
}
