// Package notify sends appointment confirmation SMS. Delivery is best-effort:
// a failed send is logged and counted but never fails the booking.
package notify

import (
	"context"

	"github.com/afyabook/afyabook/internal/notify/atclient"
	"github.com/afyabook/afyabook/internal/observability/metrics"
	"github.com/afyabook/afyabook/pkg/logging"
)

// Sender abstracts the SMS gateway client.
type Sender interface {
	Send(ctx context.Context, to, message string) (*atclient.Recipient, error)
}

// Service wraps the gateway client with best-effort semantics.
type Service struct {
	sender  Sender
	logger  *logging.Logger
	metrics *metrics.USSDMetrics
}

// NewService creates the notification service. A nil sender disables SMS;
// sends become logged no-ops.
func NewService(sender Sender, logger *logging.Logger, m *metrics.USSDMetrics) *Service {
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{sender: sender, logger: logger, metrics: m}
}

// SendConfirmation delivers the confirmation SMS. It always returns; failures
// are logged so the booking still completes.
func (s *Service) SendConfirmation(ctx context.Context, phone, message string) {
	if s.sender == nil {
		s.logger.Info("sms disabled, skipping confirmation", "phone", phone)
		s.metrics.ObserveSMS("skipped")
		return
	}
	recipient, err := s.sender.Send(ctx, phone, message)
	if err != nil {
		s.logger.Error("confirmation sms failed", "phone", phone, "error", err)
		s.metrics.ObserveSMS("failed")
		return
	}
	s.logger.Info("confirmation sms sent", "phone", phone, "message_id", recipient.MessageID, "cost", recipient.Cost)
	s.metrics.ObserveSMS("sent")
}
