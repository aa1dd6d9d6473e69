package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"

	"github.com/allisson/mailpipe/internal/app"
	"github.com/allisson/mailpipe/internal/config"
	deliveryUseCase "github.com/allisson/mailpipe/internal/delivery/usecase"
)

// shutdownTimeout bounds the graceful stop of the HTTP servers.
const shutdownTimeout = 15 * time.Second

// server is a long-running listener stopped with Shutdown.
type server interface {
	Start(ctx context.Context) error
	Shutdown(ctx context.Context) error
}

// RunWorker starts the queue consumer together with the operational HTTP
// server and, when enabled, the metrics server. Blocks until SIGINT/SIGTERM
// or until one of them fails.
func RunWorker(ctx context.Context, version string) error {
	cfg := config.Load()

	gin.SetMode(cfg.GetGinMode())

	container := app.NewContainer(cfg)

	logger := container.Logger()
	logger.Info("starting worker", slog.String("version", version))

	defer closeContainer(container, logger)

	consumer, err := container.ConsumerUseCase()
	if err != nil {
		return fmt.Errorf("failed to initialize consumer: %w", err)
	}

	httpServer, err := container.HTTPServer()
	if err != nil {
		return fmt.Errorf("failed to initialize HTTP server: %w", err)
	}

	servers := []server{httpServer}

	metricsServer, err := container.MetricsServer()
	if err != nil {
		return fmt.Errorf("failed to initialize metrics server: %w", err)
	}
	if metricsServer != nil {
		servers = append(servers, metricsServer)
	}

	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	return runWorker(ctx, logger, consumer, servers, shutdownTimeout)
}

// runWorker runs the consumer and servers until ctx is done or one of them
// fails, then shuts the servers down.
func runWorker(
	ctx context.Context,
	logger *slog.Logger,
	consumer deliveryUseCase.ConsumerUseCase,
	servers []server,
	timeout time.Duration,
) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := consumer.Start(gctx); err != nil {
			return fmt.Errorf("consumer error: %w", err)
		}
		return nil
	})

	for _, srv := range servers {
		g.Go(func() error {
			return srv.Start(gctx)
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutdown signal received")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), timeout)
		defer shutdownCancel()

		var firstErr error
		for _, srv := range servers {
			if err := srv.Shutdown(shutdownCtx); err != nil && firstErr == nil {
				firstErr = fmt.Errorf("server shutdown: %w", err)
			}
		}
		return firstErr
	})

	return g.Wait()
}
