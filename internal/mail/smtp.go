// Package mail sends delivery emails through SMTP.
package mail

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/time/rate"
	"gopkg.in/gomail.v2"

	deliveryDomain "github.com/allisson/mailpipe/internal/delivery/domain"
	apperrors "github.com/allisson/mailpipe/internal/errors"
)

// Config holds SMTP settings.
type Config struct {
	Host          string
	Port          int
	User          string
	Password      string
	Secure        bool
	From          string
	RatePerSecond float64
	RateBurst     int
}

// Dialer sends fully built messages. *gomail.Dialer satisfies it.
type Dialer interface {
	DialAndSend(m ...*gomail.Message) error
}

// SMTPSender sends one mail per call, throttled by a token bucket shared
// by all workers of the process.
type SMTPSender struct {
	dialer  Dialer
	limiter *rate.Limiter
	from    string
	domain  string
}

// NewSMTPSender creates an SMTPSender from configuration.
func NewSMTPSender(cfg Config) *SMTPSender {
	dialer := gomail.NewDialer(cfg.Host, cfg.Port, cfg.User, cfg.Password)
	dialer.SSL = cfg.Secure
	return NewSMTPSenderWithDialer(dialer, cfg)
}

// NewSMTPSenderWithDialer creates an SMTPSender using the given dialer.
func NewSMTPSenderWithDialer(dialer Dialer, cfg Config) *SMTPSender {
	limit := rate.Inf
	if cfg.RatePerSecond > 0 {
		limit = rate.Limit(cfg.RatePerSecond)
	}
	burst := cfg.RateBurst
	if burst < 1 {
		burst = 1
	}

	return &SMTPSender{
		dialer:  dialer,
		limiter: rate.NewLimiter(limit, burst),
		from:    cfg.From,
		domain:  messageIDDomain(cfg.From, cfg.Host),
	}
}

// Send transmits mail and returns the Message-ID assigned to it.
func (s *SMTPSender) Send(ctx context.Context, mail *deliveryDomain.OutgoingMail) (string, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return "", apperrors.Wrap(err, "smtp rate limiter")
	}

	from := mail.From
	if from == "" {
		from = s.from
	}
	contentType := mail.ContentType
	if contentType == "" {
		contentType = deliveryDomain.ContentTypeHTML
	}
	messageID := fmt.Sprintf("<%s@%s>", uuid.NewString(), s.domain)

	msg := gomail.NewMessage()
	msg.SetHeader("From", from)
	msg.SetHeader("To", mail.To)
	msg.SetHeader("Subject", mail.Subject)
	msg.SetHeader("Message-ID", messageID)
	for key, value := range mail.Headers {
		msg.SetHeader(key, value)
	}
	msg.SetBody(contentType, mail.Body)

	if err := s.dialer.DialAndSend(msg); err != nil {
		return "", apperrors.Wrap(err, "smtp send failed")
	}

	return messageID, nil
}

func messageIDDomain(from, host string) string {
	if at := strings.LastIndex(from, "@"); at >= 0 && at < len(from)-1 {
		return strings.TrimRight(from[at+1:], ">")
	}
	if host != "" {
		return host
	}
	return "localhost"
}
