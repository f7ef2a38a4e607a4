package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/spf13/cobra"
	"github.com/suteetoe/storefront/internal/artifact"
	"github.com/suteetoe/storefront/internal/events"
	"github.com/suteetoe/storefront/internal/handler"
	"github.com/suteetoe/storefront/internal/model"
	"github.com/suteetoe/storefront/internal/provisioning"
	"github.com/suteetoe/storefront/pkg/database"
	"github.com/suteetoe/storefront/pkg/jwtutil"
	"github.com/suteetoe/storefront/pkg/logger"
	"github.com/suteetoe/storefront/pkg/metrics"
	"github.com/suteetoe/storefront/pkg/middleware"
	"go.uber.org/zap"
)

func serveCmd() *cobra.Command {
	var autoMigrate bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(autoMigrate)
		},
	}
	cmd.Flags().BoolVar(&autoMigrate, "migrate", true, "Run database migrations on startup")
	return cmd
}

func serve(autoMigrate bool) error {
	a, err := bootstrap()
	if err != nil {
		return err
	}
	log := a.log
	cfg := a.cfg
	log.Info("Starting storefront service...", cfg.LogConfig()...)

	// Initialize database
	db, err := database.InitDB(&cfg.DB, log)
	if err != nil {
		return err
	}
	if autoMigrate {
		if err := database.MigrateModels(model.All()...); err != nil {
			return err
		}
		log.Info("Database migrations applied")
	}

	generator, err := artifact.New(cfg.Provisioning, a.layout, log)
	if err != nil {
		return err
	}

	var publisher events.Publisher = events.NopPublisher{}
	if cfg.Events.NATSURL != "" {
		natsPublisher, err := events.Connect(cfg.Events.NATSURL, cfg.Events.SubjectPrefix, log)
		if err != nil {
			return err
		}
		publisher = natsPublisher
	}
	defer publisher.Close()

	repo := provisioning.NewRepository(db)
	pipeline := provisioning.NewPipeline(provisioning.Dependencies{
		Layout:       a.layout,
		Repository:   repo,
		Intake:       provisioning.NewIntake(a.layout, cfg.Provisioning.MaxFileSize, cfg.Provisioning.MaxUploadFiles),
		Generator:    generator,
		Verifier:     provisioning.NewVerifier(a.layout),
		Reclaimer:    provisioning.NewReclaimer(a.layout, cfg.Provisioning.DedupMaxFiles, cfg.Provisioning.DedupMaxFileBytes),
		Publisher:    publisher,
		Defaults:     a.defaults,
		BorrowImages: cfg.Provisioning.BorrowImages,
	})

	jwtUtil := jwtutil.NewJWTUtil(&jwtutil.JWTConfig{
		SigningKey:      cfg.JWT.SigningKey,
		ExpirationHours: cfg.JWT.ExpirationHours,
	})
	httpMetrics := metrics.NewHTTPMetrics(cfg.ServiceName)

	// Initialize Echo framework
	e := echo.New()
	e.HideBanner = true

	// Apply global middleware - order matters
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.CORS())
	e.Use(echomiddleware.BodyLimit(cfg.Server.BodyLimit))
	e.Use(middleware.RequestIDMiddleware())
	e.Use(logger.Middleware())
	e.Use(httpMetrics.Middleware())

	e.GET("/metrics", echo.WrapHandler(metrics.GetPrometheusHandler()))
	e.Static(a.layout.GlobalPublicPath(""), a.layout.AssetsRoot)
	handler.RegisterRoutes(e, handler.NewStoreHandler(pipeline, repo, generator, publisher, a.layout, jwtUtil), jwtUtil)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		log.Info("Starting server", zap.String("port", cfg.Server.Port))
		if err := e.Start(":" + cfg.Server.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("Shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return e.Shutdown(shutdownCtx)
}
