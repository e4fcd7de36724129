package notify

import (
	"context"
	"fmt"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
	"github.com/wolfman30/shinestar-cleaners/pkg/logging"
)

// SendGridSender delivers office emails through the SendGrid v3 API.
type SendGridSender struct {
	client *sendgrid.Client
	from   Mailbox
	logger *logging.Logger
}

// NewSendGridSender returns nil when apiKey is empty.
func NewSendGridSender(apiKey string, from Mailbox, logger *logging.Logger) *SendGridSender {
	if apiKey == "" {
		return nil
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &SendGridSender{
		client: sendgrid.NewSendClient(apiKey),
		from:   from,
		logger: logger,
	}
}

func (s *SendGridSender) message(msg OfficeEmail) *mail.SGMailV3 {
	html := msg.HTML
	if html == "" {
		html = msg.Text
	}
	m := mail.NewSingleEmail(
		mail.NewEmail(s.from.Name, s.from.Address),
		msg.Subject,
		mail.NewEmail(msg.To.Name, msg.To.Address),
		msg.Text,
		html,
	)
	if msg.ReplyTo.Address != "" {
		m.SetReplyTo(mail.NewEmail(msg.ReplyTo.Name, msg.ReplyTo.Address))
	}
	// Customer details must not end up in click-tracking URLs.
	m.SetTrackingSettings(mail.NewTrackingSettings().
		SetClickTracking(mail.NewClickTrackingSetting().SetEnable(false)))
	return m
}

// Send posts msg to SendGrid. Any non-2xx status is an error.
func (s *SendGridSender) Send(ctx context.Context, msg OfficeEmail) error {
	if s.client == nil {
		return fmt.Errorf("notify: sendgrid client not configured")
	}
	resp, err := s.client.SendWithContext(ctx, s.message(msg))
	if err != nil {
		s.logger.Error("office email failed", "provider", "sendgrid", "error", err)
		return fmt.Errorf("notify: sendgrid send: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		s.logger.Error("office email rejected", "provider", "sendgrid", "status", resp.StatusCode)
		return fmt.Errorf("notify: sendgrid status %d", resp.StatusCode)
	}
	s.logger.Info("office email sent", "provider", "sendgrid", "status", resp.StatusCode)
	return nil
}

var _ EmailSender = (*SendGridSender)(nil)
