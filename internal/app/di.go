// Package app provides dependency injection container for assembling application components.
package app

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	otelmetric "go.opentelemetry.io/otel/metric"

	"github.com/allisson/mailpipe/internal/broker"
	"github.com/allisson/mailpipe/internal/cache"
	"github.com/allisson/mailpipe/internal/config"
	"github.com/allisson/mailpipe/internal/database"
	deliveryHTTP "github.com/allisson/mailpipe/internal/delivery/http"
	deliveryService "github.com/allisson/mailpipe/internal/delivery/service"
	deliveryUseCase "github.com/allisson/mailpipe/internal/delivery/usecase"
	"github.com/allisson/mailpipe/internal/http"
	"github.com/allisson/mailpipe/internal/metrics"
)

const (
	// connectTimeout bounds the initial ping of the database.
	connectTimeout = 10 * time.Second
	// redisPingTimeout bounds the startup ping of Redis.
	redisPingTimeout = 2 * time.Second
)

// Container holds all application dependencies and provides methods to access them.
// It follows the lazy initialization pattern - components are created on first access.
type Container struct {
	// Configuration
	config *config.Config

	// Infrastructure
	logger          *slog.Logger
	db              *sql.DB
	redisClient     *redis.Client
	cache           *cache.RedisCache
	publisher       *broker.Publisher
	consumer        *broker.Consumer
	metricsProvider *metrics.Provider
	businessMetrics metrics.BusinessMetrics
	gauges          otelmetric.Registration

	// Managers
	txManager database.TxManager

	// Delivery pipeline
	circuitBreaker     deliveryService.CircuitBreaker
	idempotencyGuard   deliveryService.IdempotencyGuard
	templateResolver   deliveryService.TemplateResolver
	mailSender         deliveryUseCase.MailSender
	deliveryLogRepo    deliveryUseCase.DeliveryLogRepository
	statusSink         deliveryUseCase.StatusSink
	deliveryUseCase    deliveryUseCase.DeliveryUseCase
	retryUseCase       deliveryUseCase.RetryUseCase
	consumerUseCase    deliveryUseCase.ConsumerUseCase
	deliveryLogUseCase deliveryUseCase.DeliveryLogUseCase

	// HTTP handlers
	circuitBreakerHandler *deliveryHTTP.CircuitBreakerHandler
	deliveryLogHandler    *deliveryHTTP.DeliveryLogHandler

	// Servers
	httpServer    *http.Server
	metricsServer *http.MetricsServer

	// Initialization flags and mutex for thread-safety
	mu                        sync.Mutex
	loggerInit                sync.Once
	dbInit                    sync.Once
	txManagerInit             sync.Once
	redisInit                 sync.Once
	publisherInit             sync.Once
	consumerInit              sync.Once
	metricsProviderInit       sync.Once
	businessMetricsInit       sync.Once
	circuitBreakerInit        sync.Once
	idempotencyGuardInit      sync.Once
	templateResolverInit      sync.Once
	mailSenderInit            sync.Once
	deliveryLogRepoInit       sync.Once
	statusSinkInit            sync.Once
	deliveryUseCaseInit       sync.Once
	retryUseCaseInit          sync.Once
	consumerUseCaseInit       sync.Once
	deliveryLogUseCaseInit    sync.Once
	circuitBreakerHandlerInit sync.Once
	deliveryLogHandlerInit    sync.Once
	httpServerInit            sync.Once
	metricsServerInit         sync.Once
	initErrors                map[string]error
}

// NewContainer creates a new dependency injection container with the provided configuration.
func NewContainer(cfg *config.Config) *Container {
	return &Container{
		config:     cfg,
		initErrors: make(map[string]error),
	}
}

// Config returns the application configuration.
func (c *Container) Config() *config.Config {
	return c.config
}

// Logger returns the configured logger instance.
// It creates a new logger on first access based on the log level in configuration.
func (c *Container) Logger() *slog.Logger {
	c.loggerInit.Do(func() {
		c.logger = c.initLogger()
	})
	return c.logger
}

// DB returns the database connection.
// It creates and configures the database connection on first access.
func (c *Container) DB() (*sql.DB, error) {
	var err error
	c.dbInit.Do(func() {
		c.db, err = c.initDB()
		if err != nil {
			c.initErrors["db"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["db"]; exists {
		return nil, storedErr
	}
	return c.db, nil
}

// TxManager returns the transaction manager.
// It requires a database connection to be initialized first.
func (c *Container) TxManager() (database.TxManager, error) {
	var err error
	c.txManagerInit.Do(func() {
		c.txManager, err = c.initTxManager()
		if err != nil {
			c.initErrors["txManager"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["txManager"]; exists {
		return nil, storedErr
	}
	return c.txManager, nil
}

// Cache returns the Redis-backed cache shared by the idempotency guard and
// the template resolver. It never fails: Redis outages surface as errors on
// individual calls, which both consumers tolerate.
func (c *Container) Cache() *cache.RedisCache {
	c.redisInit.Do(func() {
		c.redisClient = c.initRedisClient()
		c.cache = cache.NewRedisCache(c.redisClient)
	})
	return c.cache
}

// Publisher returns the Kafka publisher used for re-enqueue, dead letters and status events.
func (c *Container) Publisher() (*broker.Publisher, error) {
	var err error
	c.publisherInit.Do(func() {
		c.publisher, err = broker.NewPublisher(broker.PublisherConfig{
			Brokers: c.config.Brokers(),
		})
		if err != nil {
			err = fmt.Errorf("failed to create kafka publisher: %w", err)
			c.initErrors["publisher"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["publisher"]; exists {
		return nil, storedErr
	}
	return c.publisher, nil
}

// Consumer returns the Kafka consumer of the queue topic.
func (c *Container) Consumer() (*broker.Consumer, error) {
	var err error
	c.consumerInit.Do(func() {
		c.consumer, err = broker.NewConsumer(broker.ConsumerConfig{
			Brokers: c.config.Brokers(),
			Topic:   c.config.KafkaQueueTopic,
			GroupID: c.config.KafkaConsumerGroup,
		})
		if err != nil {
			err = fmt.Errorf("failed to create kafka consumer: %w", err)
			c.initErrors["consumer"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["consumer"]; exists {
		return nil, storedErr
	}
	return c.consumer, nil
}

// MetricsProvider returns the OpenTelemetry metrics provider.
// Returns nil when metrics are disabled.
func (c *Container) MetricsProvider() (*metrics.Provider, error) {
	var err error
	c.metricsProviderInit.Do(func() {
		if !c.config.MetricsEnabled {
			return
		}
		c.metricsProvider, err = metrics.NewProvider(c.config.MetricsNamespace)
		if err != nil {
			err = fmt.Errorf("failed to create metrics provider: %w", err)
			c.initErrors["metricsProvider"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["metricsProvider"]; exists {
		return nil, storedErr
	}
	return c.metricsProvider, nil
}

// BusinessMetrics returns the business metrics recorder.
// Returns a no-op implementation when metrics are disabled.
func (c *Container) BusinessMetrics() (metrics.BusinessMetrics, error) {
	var err error
	c.businessMetricsInit.Do(func() {
		c.businessMetrics, err = c.initBusinessMetrics()
		if err != nil {
			c.initErrors["businessMetrics"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["businessMetrics"]; exists {
		return nil, storedErr
	}
	return c.businessMetrics, nil
}

// HTTPServer returns the operational HTTP server instance.
func (c *Container) HTTPServer() (*http.Server, error) {
	var err error
	c.httpServerInit.Do(func() {
		c.httpServer, err = c.initHTTPServer()
		if err != nil {
			c.initErrors["httpServer"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["httpServer"]; exists {
		return nil, storedErr
	}
	return c.httpServer, nil
}

// MetricsServer returns the Prometheus metrics server. Returns nil when metrics are disabled.
func (c *Container) MetricsServer() (*http.MetricsServer, error) {
	var err error
	c.metricsServerInit.Do(func() {
		c.metricsServer, err = c.initMetricsServer()
		if err != nil {
			c.initErrors["metricsServer"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["metricsServer"]; exists {
		return nil, storedErr
	}
	return c.metricsServer, nil
}

// Shutdown performs cleanup of all initialized resources.
// Pending retries are cancelled before the publisher they would use is closed.
func (c *Container) Shutdown(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var shutdownErrors []error

	if c.httpServer != nil {
		if err := c.httpServer.Shutdown(ctx); err != nil {
			shutdownErrors = append(shutdownErrors, fmt.Errorf("http server shutdown: %w", err))
		}
	}

	if c.metricsServer != nil {
		if err := c.metricsServer.Shutdown(ctx); err != nil {
			shutdownErrors = append(shutdownErrors, fmt.Errorf("metrics server shutdown: %w", err))
		}
	}

	if c.retryUseCase != nil {
		c.retryUseCase.Close()
	}

	if c.circuitBreaker != nil {
		c.circuitBreaker.Close()
	}

	if c.consumer != nil {
		if err := c.consumer.Close(); err != nil {
			shutdownErrors = append(shutdownErrors, fmt.Errorf("kafka consumer close: %w", err))
		}
	}

	if c.publisher != nil {
		if err := c.publisher.Close(); err != nil {
			shutdownErrors = append(shutdownErrors, fmt.Errorf("kafka publisher close: %w", err))
		}
	}

	if c.redisClient != nil {
		if err := c.redisClient.Close(); err != nil {
			shutdownErrors = append(shutdownErrors, fmt.Errorf("redis close: %w", err))
		}
	}

	if c.db != nil {
		if err := c.db.Close(); err != nil {
			shutdownErrors = append(shutdownErrors, fmt.Errorf("database close: %w", err))
		}
	}

	if c.gauges != nil {
		if err := c.gauges.Unregister(); err != nil {
			shutdownErrors = append(shutdownErrors, fmt.Errorf("pipeline gauges unregister: %w", err))
		}
	}

	if c.metricsProvider != nil {
		if err := c.metricsProvider.Shutdown(ctx); err != nil {
			shutdownErrors = append(shutdownErrors, fmt.Errorf("metrics provider shutdown: %w", err))
		}
	}

	if len(shutdownErrors) > 0 {
		return fmt.Errorf("shutdown errors: %v", shutdownErrors)
	}

	return nil
}

// initLogger creates and configures a structured logger based on the log level.
func (c *Container) initLogger() *slog.Logger {
	var logLevel slog.Level
	switch c.config.LogLevel {
	case "debug":
		logLevel = slog.LevelDebug
	case "info":
		logLevel = slog.LevelInfo
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	})

	return slog.New(handler)
}

// initDB creates and configures the database connection.
func (c *Container) initDB() (*sql.DB, error) {
	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()

	db, err := database.Connect(ctx, database.Config{
		Driver:             c.config.DBDriver,
		ConnectionString:   c.config.DBConnectionString,
		MaxOpenConnections: c.config.DBMaxOpenConnections,
		MaxIdleConnections: c.config.DBMaxIdleConnections,
		ConnMaxLifetime:    c.config.DBConnMaxLifetime,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return db, nil
}

// initTxManager creates the transaction manager using the database connection.
func (c *Container) initTxManager() (database.TxManager, error) {
	db, err := c.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database for tx manager: %w", err)
	}
	return database.NewTxManager(db), nil
}

// initRedisClient builds the Redis client. An unreachable server is logged
// and tolerated: the idempotency guard and the template resolver fail open.
func (c *Container) initRedisClient() *redis.Client {
	client := cache.NewClient(cache.Config{
		Addr:     c.config.RedisAddr,
		Password: c.config.RedisPassword,
		DB:       c.config.RedisDB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), redisPingTimeout)
	defer cancel()

	if err := cache.NewRedisCache(client).Ping(ctx); err != nil {
		c.Logger().Warn("redis unavailable at startup, continuing without cache",
			slog.String("addr", c.config.RedisAddr),
			slog.Any("error", err))
	}
	return client
}

// initBusinessMetrics creates business metrics backed by the provider, or a no-op recorder.
func (c *Container) initBusinessMetrics() (metrics.BusinessMetrics, error) {
	provider, err := c.MetricsProvider()
	if err != nil {
		return nil, fmt.Errorf("failed to get metrics provider for business metrics: %w", err)
	}
	if provider == nil {
		return metrics.NewNoOpBusinessMetrics(), nil
	}

	businessMetrics, err := metrics.NewBusinessMetrics(provider.MeterProvider(), c.config.MetricsNamespace)
	if err != nil {
		return nil, fmt.Errorf("failed to create business metrics: %w", err)
	}
	return businessMetrics, nil
}

// initHTTPServer creates the HTTP server with all its dependencies.
func (c *Container) initHTTPServer() (*http.Server, error) {
	logger := c.Logger()

	db, err := c.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database for http server: %w", err)
	}

	breaker, err := c.CircuitBreaker()
	if err != nil {
		return nil, fmt.Errorf("failed to get circuit breaker for http server: %w", err)
	}

	circuitBreakerHandler, err := c.CircuitBreakerHandler()
	if err != nil {
		return nil, fmt.Errorf("failed to get circuit breaker handler for http server: %w", err)
	}

	deliveryLogHandler, err := c.DeliveryLogHandler()
	if err != nil {
		return nil, fmt.Errorf("failed to get delivery log handler for http server: %w", err)
	}

	provider, err := c.MetricsProvider()
	if err != nil {
		return nil, fmt.Errorf("failed to get metrics provider for http server: %w", err)
	}

	server := http.NewServer(db, c.config.ServerHost, c.config.ServerPort, logger)
	server.SetCache(c.Cache())
	server.SetupRouter(
		c.config,
		breaker,
		circuitBreakerHandler,
		deliveryLogHandler,
		provider,
		c.config.MetricsNamespace,
	)

	return server, nil
}

// initMetricsServer creates the metrics server when metrics are enabled.
func (c *Container) initMetricsServer() (*http.MetricsServer, error) {
	provider, err := c.MetricsProvider()
	if err != nil {
		return nil, fmt.Errorf("failed to get metrics provider for metrics server: %w", err)
	}
	if provider == nil {
		return nil, nil
	}

	return http.NewMetricsServer(c.config.ServerHost, c.config.MetricsPort, c.Logger(), provider), nil
}
