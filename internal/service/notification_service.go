package service

import (
	"context"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"github.com/spec-kit/campus-support/internal/config"
	"github.com/spec-kit/campus-support/internal/domain"
	"github.com/spec-kit/campus-support/internal/events"
)

// NotificationService posts resolution notices to an optional outbound
// webhook. Delivery is fire-and-forget: failures are logged and never
// affect the triggering operation.
type NotificationService struct {
	client  *resty.Client
	url     string
	timeout time.Duration
	logger  *zap.Logger
}

// NewNotificationService constructs the webhook sender. An empty webhook
// URL disables delivery entirely.
func NewNotificationService(cfg config.NotificationConfig, logger *zap.Logger) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 8 * time.Second
	}
	svc := &NotificationService{
		url:     cfg.WebhookURL,
		timeout: timeout,
		logger:  logger,
	}
	if cfg.WebhookURL != "" {
		svc.client = resty.New().SetTimeout(timeout)
	}
	return svc
}

// Enabled reports whether a webhook endpoint is configured.
func (s *NotificationService) Enabled() bool {
	return s.client != nil
}

// HandleStatusChange is the dispatcher hook: it fires the webhook when a
// ticket reaches resolved.
func (s *NotificationService) HandleStatusChange(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.TicketStatusChangedPayload)
	if !ok || payload.NewStatus != domain.TicketStatusResolved {
		return nil
	}
	s.NotifyResolved(event.TicketID, payload.Summary)
	return nil
}

// NotifyResolved posts the resolution notice asynchronously.
func (s *NotificationService) NotifyResolved(ticketID, summary string) {
	if s.client == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
		defer cancel()

		resp, err := s.client.R().
			SetContext(ctx).
			SetBody(map[string]string{
				"ticket_id": ticketID,
				"status":    string(domain.TicketStatusResolved),
				"summary":   summary,
			}).
			Post(s.url)
		if err != nil {
			s.logger.Warn("resolution webhook failed",
				zap.String("ticket_id", ticketID),
				zap.Error(err))
			return
		}
		if resp.IsError() {
			s.logger.Warn("resolution webhook rejected",
				zap.String("ticket_id", ticketID),
				zap.Int("status", resp.StatusCode()))
		}
	}()
}
