package main

import (
	"context"
	"errors"
	"log"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/spec-kit/sla-service/internal/app"
	"github.com/spec-kit/sla-service/internal/config"
	"github.com/spec-kit/sla-service/internal/observability"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.App, cfg.Logger, "worker")
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

	if c.LocalQueue {
		// A separate process cannot see jobs queued in the API's memory.
		logger.Fatal("worker requires redis; run the API with WORKER_EMBEDDED instead")
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return c.Runner.Run(gctx)
	})
	if cfg.Worker.MetricsAddr != "" {
		probe := fiber.New(fiber.Config{DisableStartupMessage: true})
		probe.Get("/health/live", func(fc *fiber.Ctx) error {
			return fc.JSON(fiber.Map{"status": "alive", "service": cfg.App.Name + "-worker"})
		})
		probe.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(c.Registry, promhttp.HandlerOpts{})))
		g.Go(func() error {
			return probe.Listen(cfg.Worker.MetricsAddr)
		})
		g.Go(func() error {
			<-gctx.Done()
			return probe.Shutdown()
		})
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("worker stopped", zap.Error(err))
	}
}
