package main

import (
	"context"
	"errors"
	"log"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	httptransport "github.com/spec-kit/sla-service/internal/api/http"
	"github.com/spec-kit/sla-service/internal/api/http/handlers"
	"github.com/spec-kit/sla-service/internal/app"
	"github.com/spec-kit/sla-service/internal/auth"
	"github.com/spec-kit/sla-service/internal/config"
	"github.com/spec-kit/sla-service/internal/observability"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.App, cfg.Logger, "api")
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	c, err := app.Build(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("failed to build application", zap.Error(err))
	}
	defer c.Close()

	tokens := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTLMinutes)

	deps := map[string]handlers.Pinger{"postgres": c.Postgres}
	if c.Redis != nil {
		deps["redis"] = c.Redis
	}

	fiberApp := fiber.New(fiber.Config{AppName: cfg.App.Name})
	httptransport.RegisterMiddlewares(fiberApp, logger, c.Metrics, cfg.App.RequestTimeout())
	httptransport.RegisterRoutes(fiberApp, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, deps),
		Tickets:        handlers.NewTicketsHandler(c.Tickets, c.SLA),
		StaffTickets:   handlers.NewStaffTicketsHandler(c.Tickets, c.Escalation, c.Assignment),
		SLA:            handlers.NewSLAHandler(c.SLA),
		Admin:          handlers.NewAdminHandler(c.Policies, c.Org),
		Notifications:  handlers.NewNotificationsHandler(c.Notifications),
		AuthMiddleware: auth.NewAuthMiddleware(tokens),
		Gatherer:       c.Registry,
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return fiberApp.Listen(cfg.App.Addr())
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		return fiberApp.Shutdown()
	})
	if cfg.Worker.Embedded || c.LocalQueue {
		logger.Info("running job runner in-process")
		g.Go(func() error {
			return c.Runner.Run(gctx)
		})
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("api stopped", zap.Error(err))
	}
}
