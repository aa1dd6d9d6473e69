package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/allisson/mailpipe/internal/config"
	"github.com/allisson/mailpipe/internal/database"
	deliveryDomain "github.com/allisson/mailpipe/internal/delivery/domain"
	deliveryHTTP "github.com/allisson/mailpipe/internal/delivery/http"
	deliveryRepository "github.com/allisson/mailpipe/internal/delivery/repository"
	deliveryService "github.com/allisson/mailpipe/internal/delivery/service"
	deliverySink "github.com/allisson/mailpipe/internal/delivery/sink"
	deliveryUseCase "github.com/allisson/mailpipe/internal/delivery/usecase"
	"github.com/allisson/mailpipe/internal/mail"
	"github.com/allisson/mailpipe/internal/metrics"
)

// CircuitBreaker returns the process-wide dispatch circuit breaker.
func (c *Container) CircuitBreaker() (deliveryService.CircuitBreaker, error) {
	var err error
	c.circuitBreakerInit.Do(func() {
		c.circuitBreaker, err = c.initCircuitBreaker()
		if err != nil {
			c.initErrors["circuitBreaker"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["circuitBreaker"]; exists {
		return nil, storedErr
	}
	return c.circuitBreaker, nil
}

// IdempotencyGuard returns the idempotency guard.
func (c *Container) IdempotencyGuard() deliveryService.IdempotencyGuard {
	c.idempotencyGuardInit.Do(func() {
		c.idempotencyGuard = deliveryService.NewIdempotencyGuard(c.Cache(), c.config.IdempotencyTTL)
	})
	return c.idempotencyGuard
}

// TemplateResolver returns the cache-then-remote-then-defaults template resolver.
func (c *Container) TemplateResolver() deliveryService.TemplateResolver {
	c.templateResolverInit.Do(func() {
		provider := deliveryService.NewHTTPTemplateProvider(
			c.config.TemplateServiceURL,
			c.config.TemplateServiceTimeout,
		)
		c.templateResolver = deliveryService.NewTemplateResolver(c.Cache(), provider, c.config.TemplateCacheTTL)
	})
	return c.templateResolver
}

// MailSender returns the rate-limited SMTP sender.
func (c *Container) MailSender() deliveryUseCase.MailSender {
	c.mailSenderInit.Do(func() {
		c.mailSender = mail.NewSMTPSender(mail.Config{
			Host:          c.config.SMTPHost,
			Port:          c.config.SMTPPort,
			User:          c.config.SMTPUser,
			Password:      c.config.SMTPPassword,
			Secure:        c.config.SMTPSecure,
			From:          c.config.EmailFrom,
			RatePerSecond: c.config.SMTPRateLimitPerSec,
			RateBurst:     c.config.SMTPRateBurst,
		})
	})
	return c.mailSender
}

// RequestPublisher returns the publisher that enqueues delivery requests onto the queue topic.
func (c *Container) RequestPublisher() (deliveryUseCase.RequestPublisher, error) {
	publisher, err := c.Publisher()
	if err != nil {
		return nil, fmt.Errorf("failed to get publisher for request publisher: %w", err)
	}
	return deliverySink.NewKafkaRequestPublisher(publisher, c.config.KafkaQueueTopic), nil
}

// DeliveryLogRepository returns the delivery log repository based on database driver.
func (c *Container) DeliveryLogRepository() (deliveryUseCase.DeliveryLogRepository, error) {
	var err error
	c.deliveryLogRepoInit.Do(func() {
		c.deliveryLogRepo, err = c.initDeliveryLogRepository()
		if err != nil {
			c.initErrors["deliveryLogRepository"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["deliveryLogRepository"]; exists {
		return nil, storedErr
	}
	return c.deliveryLogRepo, nil
}

// StatusSink returns the status sink selected by configuration.
func (c *Container) StatusSink() (deliveryUseCase.StatusSink, error) {
	var err error
	c.statusSinkInit.Do(func() {
		c.statusSink, err = c.initStatusSink()
		if err != nil {
			c.initErrors["statusSink"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["statusSink"]; exists {
		return nil, storedErr
	}
	return c.statusSink, nil
}

// DeliveryUseCase returns the delivery executor.
func (c *Container) DeliveryUseCase() (deliveryUseCase.DeliveryUseCase, error) {
	var err error
	c.deliveryUseCaseInit.Do(func() {
		c.deliveryUseCase, err = c.initDeliveryUseCase()
		if err != nil {
			c.initErrors["deliveryUseCase"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["deliveryUseCase"]; exists {
		return nil, storedErr
	}
	return c.deliveryUseCase, nil
}

// RetryUseCase returns the retry and dead-letter manager.
func (c *Container) RetryUseCase() (deliveryUseCase.RetryUseCase, error) {
	var err error
	c.retryUseCaseInit.Do(func() {
		c.retryUseCase, err = c.initRetryUseCase()
		if err != nil {
			c.initErrors["retryUseCase"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["retryUseCase"]; exists {
		return nil, storedErr
	}
	return c.retryUseCase, nil
}

// ConsumerUseCase returns the queue consumer loop.
func (c *Container) ConsumerUseCase() (deliveryUseCase.ConsumerUseCase, error) {
	var err error
	c.consumerUseCaseInit.Do(func() {
		c.consumerUseCase, err = c.initConsumerUseCase()
		if err != nil {
			c.initErrors["consumerUseCase"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["consumerUseCase"]; exists {
		return nil, storedErr
	}
	return c.consumerUseCase, nil
}

// DeliveryLogUseCase returns the delivery log administration use case.
func (c *Container) DeliveryLogUseCase() (deliveryUseCase.DeliveryLogUseCase, error) {
	var err error
	c.deliveryLogUseCaseInit.Do(func() {
		c.deliveryLogUseCase, err = c.initDeliveryLogUseCase()
		if err != nil {
			c.initErrors["deliveryLogUseCase"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["deliveryLogUseCase"]; exists {
		return nil, storedErr
	}
	return c.deliveryLogUseCase, nil
}

// CircuitBreakerHandler returns the HTTP handler for the breaker admin endpoints.
func (c *Container) CircuitBreakerHandler() (*deliveryHTTP.CircuitBreakerHandler, error) {
	var err error
	c.circuitBreakerHandlerInit.Do(func() {
		var breaker deliveryService.CircuitBreaker
		breaker, err = c.CircuitBreaker()
		if err != nil {
			err = fmt.Errorf("failed to get circuit breaker for circuit breaker handler: %w", err)
			c.initErrors["circuitBreakerHandler"] = err
			return
		}
		c.circuitBreakerHandler = deliveryHTTP.NewCircuitBreakerHandler(breaker, c.Logger())
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["circuitBreakerHandler"]; exists {
		return nil, storedErr
	}
	return c.circuitBreakerHandler, nil
}

// DeliveryLogHandler returns the HTTP handler for delivery log listing.
func (c *Container) DeliveryLogHandler() (*deliveryHTTP.DeliveryLogHandler, error) {
	var err error
	c.deliveryLogHandlerInit.Do(func() {
		var useCase deliveryUseCase.DeliveryLogUseCase
		useCase, err = c.DeliveryLogUseCase()
		if err != nil {
			err = fmt.Errorf("failed to get delivery log use case for delivery log handler: %w", err)
			c.initErrors["deliveryLogHandler"] = err
			return
		}
		c.deliveryLogHandler = deliveryHTTP.NewDeliveryLogHandler(useCase, c.Logger())
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["deliveryLogHandler"]; exists {
		return nil, storedErr
	}
	return c.deliveryLogHandler, nil
}

// initCircuitBreaker creates the breaker. Transitions are logged and, when
// metrics are enabled, counted.
func (c *Container) initCircuitBreaker() (deliveryService.CircuitBreaker, error) {
	logger := c.Logger()

	businessMetrics, err := c.BusinessMetrics()
	if err != nil {
		return nil, fmt.Errorf("failed to get business metrics for circuit breaker: %w", err)
	}

	onStateChange := func(from, to deliveryDomain.CircuitState) {
		logger.Warn("circuit breaker state changed",
			slog.String("from", string(from)),
			slog.String("to", string(to)),
		)
		businessMetrics.RecordOperation(context.Background(), "circuit_breaker", "transition", string(to))
	}

	return deliveryService.NewCircuitBreaker(
		c.config.CircuitBreakerThreshold,
		c.config.CircuitBreakerResetTimeout,
		onStateChange,
	), nil
}

// initDeliveryLogRepository creates the delivery log repository based on the database driver.
func (c *Container) initDeliveryLogRepository() (deliveryUseCase.DeliveryLogRepository, error) {
	db, err := c.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database for delivery log repository: %w", err)
	}

	switch c.config.DBDriver {
	case database.DriverPostgres:
		return deliveryRepository.NewPostgreSQLDeliveryLogRepository(db), nil
	case database.DriverMySQL:
		return deliveryRepository.NewMySQLDeliveryLogRepository(db), nil
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", c.config.DBDriver)
	}
}

// initStatusSink creates the status sink for the configured mode.
func (c *Container) initStatusSink() (deliveryUseCase.StatusSink, error) {
	switch c.config.StatusSink {
	case config.StatusSinkLog, "":
		return deliverySink.NewLogStatusSink(c.Logger()), nil
	case config.StatusSinkKafka:
		publisher, err := c.Publisher()
		if err != nil {
			return nil, fmt.Errorf("failed to get publisher for status sink: %w", err)
		}
		return deliverySink.NewKafkaStatusSink(publisher, c.config.KafkaStatusTopic), nil
	case config.StatusSinkHTTP:
		if c.config.StatusSinkURL == "" {
			return nil, fmt.Errorf("STATUS_SINK_URL is required for the http status sink")
		}
		return deliverySink.NewHTTPStatusSink(c.config.StatusSinkURL, c.config.TemplateServiceTimeout), nil
	default:
		return nil, fmt.Errorf("unsupported status sink: %s", c.config.StatusSink)
	}
}

// initDeliveryUseCase creates the delivery executor with all its collaborators.
func (c *Container) initDeliveryUseCase() (deliveryUseCase.DeliveryUseCase, error) {
	breaker, err := c.CircuitBreaker()
	if err != nil {
		return nil, fmt.Errorf("failed to get circuit breaker for delivery use case: %w", err)
	}

	logRepo, err := c.DeliveryLogRepository()
	if err != nil {
		return nil, fmt.Errorf("failed to get delivery log repository for delivery use case: %w", err)
	}

	statusSink, err := c.StatusSink()
	if err != nil {
		return nil, fmt.Errorf("failed to get status sink for delivery use case: %w", err)
	}

	baseUseCase := deliveryUseCase.NewDeliveryUseCase(
		deliveryUseCase.DeliveryConfig{From: c.config.EmailFrom},
		c.IdempotencyGuard(),
		breaker,
		c.TemplateResolver(),
		deliveryService.NewRenderer(),
		c.MailSender(),
		logRepo,
		statusSink,
		c.Logger(),
	)

	if c.config.MetricsEnabled {
		businessMetrics, err := c.BusinessMetrics()
		if err != nil {
			return nil, fmt.Errorf("failed to get business metrics for delivery use case: %w", err)
		}
		return deliveryUseCase.NewDeliveryUseCaseWithMetrics(baseUseCase, businessMetrics), nil
	}

	return baseUseCase, nil
}

// initRetryUseCase creates the retry manager publishing to the queue and dead-letter topics.
func (c *Container) initRetryUseCase() (deliveryUseCase.RetryUseCase, error) {
	publisher, err := c.Publisher()
	if err != nil {
		return nil, fmt.Errorf("failed to get publisher for retry use case: %w", err)
	}

	requestPublisher, err := c.RequestPublisher()
	if err != nil {
		return nil, fmt.Errorf("failed to get request publisher for retry use case: %w", err)
	}

	baseUseCase := deliveryUseCase.NewRetryUseCase(
		deliveryUseCase.RetryConfig{
			MaxRetries: c.config.RetryMaxAttempts,
			BaseDelay:  c.config.RetryBaseDelay,
		},
		requestPublisher,
		deliverySink.NewKafkaDeadLetterSink(publisher, c.config.KafkaDeadLetterTopic),
		c.Logger(),
	)

	if c.config.MetricsEnabled {
		businessMetrics, err := c.BusinessMetrics()
		if err != nil {
			return nil, fmt.Errorf("failed to get business metrics for retry use case: %w", err)
		}
		return deliveryUseCase.NewRetryUseCaseWithMetrics(baseUseCase, businessMetrics), nil
	}

	return baseUseCase, nil
}

// initConsumerUseCase creates the consumer loop and registers the pipeline gauges.
func (c *Container) initConsumerUseCase() (deliveryUseCase.ConsumerUseCase, error) {
	consumer, err := c.Consumer()
	if err != nil {
		return nil, fmt.Errorf("failed to get consumer for consumer use case: %w", err)
	}

	delivery, err := c.DeliveryUseCase()
	if err != nil {
		return nil, fmt.Errorf("failed to get delivery use case for consumer use case: %w", err)
	}

	retry, err := c.RetryUseCase()
	if err != nil {
		return nil, fmt.Errorf("failed to get retry use case for consumer use case: %w", err)
	}

	if err := c.registerPipelineGauges(retry); err != nil {
		return nil, err
	}

	return deliveryUseCase.NewConsumerUseCase(
		deliveryUseCase.ConsumerConfig{},
		consumer,
		delivery,
		retry,
		c.Logger(),
	), nil
}

// registerPipelineGauges exposes breaker state and pending retries when metrics are enabled.
func (c *Container) registerPipelineGauges(retry deliveryUseCase.RetryUseCase) error {
	provider, err := c.MetricsProvider()
	if err != nil {
		return fmt.Errorf("failed to get metrics provider for pipeline gauges: %w", err)
	}
	if provider == nil {
		return nil
	}

	breaker, err := c.CircuitBreaker()
	if err != nil {
		return fmt.Errorf("failed to get circuit breaker for pipeline gauges: %w", err)
	}

	c.gauges, err = metrics.RegisterPipelineGauges(
		provider.MeterProvider(),
		c.config.MetricsNamespace,
		metrics.PipelineObserver{
			CircuitState: func() (string, int) {
				snapshot := breaker.Snapshot()
				return string(snapshot.State), snapshot.FailureCount
			},
			PendingRetries: retry.Pending,
		},
	)
	if err != nil {
		return fmt.Errorf("failed to register pipeline gauges: %w", err)
	}
	return nil
}

// initDeliveryLogUseCase creates the delivery log administration use case.
func (c *Container) initDeliveryLogUseCase() (deliveryUseCase.DeliveryLogUseCase, error) {
	txManager, err := c.TxManager()
	if err != nil {
		return nil, fmt.Errorf("failed to get tx manager for delivery log use case: %w", err)
	}

	logRepo, err := c.DeliveryLogRepository()
	if err != nil {
		return nil, fmt.Errorf("failed to get delivery log repository for delivery log use case: %w", err)
	}

	return deliveryUseCase.NewDeliveryLogUseCase(txManager, logRepo), nil
}
