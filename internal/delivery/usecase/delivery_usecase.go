package usecase

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	deliveryDomain "github.com/allisson/mailpipe/internal/delivery/domain"
	"github.com/allisson/mailpipe/internal/delivery/service"
	apperrors "github.com/allisson/mailpipe/internal/errors"
)

// auditWriteTimeout bounds a delivery log write that outlives a cancelled context.
const auditWriteTimeout = 5 * time.Second

// DeliveryConfig holds executor settings.
type DeliveryConfig struct {
	// From is the sender address; empty uses the mail transport's default.
	From string
}

// deliveryUseCase is the delivery executor. Steps run strictly in order and
// each failure short-circuits the rest.
type deliveryUseCase struct {
	config   DeliveryConfig
	guard    service.IdempotencyGuard
	breaker  service.CircuitBreaker
	resolver service.TemplateResolver
	renderer service.Renderer
	mailer   MailSender
	logRepo  DeliveryLogRepository
	status   StatusSink
	logger   *slog.Logger
	now      func() time.Time
}

// NewDeliveryUseCase creates the delivery executor.
func NewDeliveryUseCase(
	config DeliveryConfig,
	guard service.IdempotencyGuard,
	breaker service.CircuitBreaker,
	resolver service.TemplateResolver,
	renderer service.Renderer,
	mailer MailSender,
	logRepo DeliveryLogRepository,
	status StatusSink,
	logger *slog.Logger,
) DeliveryUseCase {
	return &deliveryUseCase{
		config:   config,
		guard:    guard,
		breaker:  breaker,
		resolver: resolver,
		renderer: renderer,
		mailer:   mailer,
		logRepo:  logRepo,
		status:   status,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (d *deliveryUseCase) Deliver(ctx context.Context, req *deliveryDomain.DeliveryRequest) error {
	logger := d.logger.With(
		slog.String("request_id", req.RequestID),
		slog.Int("retry_count", req.RetryCount),
	)

	duplicate, outcome := d.guard.CheckAndMark(ctx, req.RequestID, req.RetryCount)
	logOutcome(logger, "idempotency check", outcome)
	if duplicate {
		logger.Info("duplicate request skipped")
		return nil
	}

	if !d.breaker.AllowDispatch() {
		logger.Warn("dispatch refused by circuit breaker")
		return deliveryDomain.ErrServiceUnavailable
	}

	resolution := d.resolver.Resolve(ctx, req.TemplateKey)
	logOutcome(logger, "template resolution", resolution.Outcome,
		slog.String("template_key", req.TemplateKey),
		slog.String("source", string(resolution.Source)),
	)
	rendered := d.renderer.Render(resolution.Template, req.Variables)

	entry := deliveryDomain.NewPendingDeliveryLog(req, rendered.Subject, d.now())
	logOutcome(logger, "delivery log write", d.persist(ctx, entry))

	messageID, err := d.mailer.Send(ctx, &deliveryDomain.OutgoingMail{
		From:        d.config.From,
		To:          req.Recipient,
		Subject:     rendered.Subject,
		Body:        rendered.Body,
		ContentType: rendered.ContentType,
		Headers:     mailHeaders(req),
	})

	var sendErr error
	if err != nil {
		sendErr = apperrors.Mark(err, deliveryDomain.ErrTransportFailure)
		entry.MarkFailed(sendErr, d.now())
		d.breaker.RecordFailure()
		logger.Error("email delivery failed", slog.Any("error", sendErr))
	} else {
		entry.MarkDelivered(messageID, d.now())
		d.breaker.RecordSuccess()
		logger.Info("email delivered",
			slog.String("message_id", messageID),
			slog.String("delivery_log_id", entry.ID.String()),
		)
	}

	logOutcome(logger, "delivery log write", d.persist(ctx, entry))

	event := deliveryDomain.NewStatusEvent(req.RequestID, entry.Status, sendErr, d.now())
	logOutcome(logger, "status notification", d.notify(ctx, event))

	return sendErr
}

// persist writes entry even if ctx was cancelled mid-send, so an attempt
// that reached the transport is always logged.
func (d *deliveryUseCase) persist(ctx context.Context, entry *deliveryDomain.DeliveryLog) deliveryDomain.Outcome {
	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), auditWriteTimeout)
	defer cancel()

	if err := d.logRepo.Save(writeCtx, entry); err != nil {
		return deliveryDomain.Degraded(apperrors.Mark(err, deliveryDomain.ErrPersistenceFailure))
	}
	return deliveryDomain.Succeeded()
}

func (d *deliveryUseCase) notify(ctx context.Context, event *deliveryDomain.StatusEvent) deliveryDomain.Outcome {
	if err := d.status.Notify(ctx, event); err != nil {
		return deliveryDomain.Degraded(apperrors.Mark(err, deliveryDomain.ErrStatusNotificationFailed))
	}
	return deliveryDomain.Succeeded()
}

func mailHeaders(req *deliveryDomain.DeliveryRequest) map[string]string {
	headers := map[string]string{
		deliveryDomain.HeaderRequestID: req.RequestID,
		deliveryDomain.HeaderUserID:    req.UserID,
	}
	if req.Priority > 0 {
		headers[deliveryDomain.HeaderPriority] = strconv.Itoa(req.Priority)
	}
	return headers
}

func logOutcome(logger *slog.Logger, step string, outcome deliveryDomain.Outcome, attrs ...any) {
	if outcome.Kind == deliveryDomain.OutcomeSucceeded {
		return
	}
	attrs = append(attrs, slog.String("step", step), slog.Any("error", outcome.Err))
	if outcome.IsFatal() || apperrors.Is(outcome.Err, deliveryDomain.ErrPersistenceFailure) {
		logger.Error("pipeline step failed", attrs...)
		return
	}
	logger.Warn("pipeline step degraded", attrs...)
}
