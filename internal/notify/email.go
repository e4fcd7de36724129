package notify

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"

	"github.com/wolfman30/shinestar-cleaners/pkg/logging"
)

// ErrNoSender is returned when no from address is configured.
var ErrNoSender = errors.New("notify: from address required")

// Mailbox is a display name plus address.
type Mailbox struct {
	Name    string
	Address string
}

// String formats m for a From or Reply-To header, quoting the name if needed.
func (m Mailbox) String() string {
	if m.Name == "" {
		return m.Address
	}
	return (&mail.Address{Name: m.Name, Address: m.Address}).String()
}

// OfficeSender builds the From mailbox for office emails. The display name
// falls back to the site name so inboxes show who the request came through.
func OfficeSender(siteName, fromName, fromEmail string) (Mailbox, error) {
	addr, err := mail.ParseAddress(strings.TrimSpace(fromEmail))
	if err != nil {
		if strings.TrimSpace(fromEmail) == "" {
			return Mailbox{}, ErrNoSender
		}
		return Mailbox{}, fmt.Errorf("notify: invalid from address %q: %w", fromEmail, err)
	}
	name := strings.TrimSpace(fromName)
	if name == "" {
		name = strings.TrimSpace(siteName)
	}
	return Mailbox{Name: name, Address: addr.Address}, nil
}

// OfficeEmail is one notification to the cleaning office. ReplyTo is the
// customer so the office can answer straight from its inbox.
type OfficeEmail struct {
	To      Mailbox
	ReplyTo Mailbox
	Subject string
	Text    string
	HTML    string
}

// EmailSender delivers office emails.
type EmailSender interface {
	Send(ctx context.Context, msg OfficeEmail) error
}

// StubEmailSender logs instead of sending.
type StubEmailSender struct {
	logger *logging.Logger
}

// NewStubEmailSender creates a sender for local development.
func NewStubEmailSender(logger *logging.Logger) *StubEmailSender {
	if logger == nil {
		logger = logging.Default()
	}
	return &StubEmailSender{logger: logger}
}

// Send logs a redacted copy of msg.
func (s *StubEmailSender) Send(_ context.Context, msg OfficeEmail) error {
	s.logger.Info("stub email sender: would send office email",
		"to", msg.To.Address,
		"subject", logging.ScrubPII(msg.Subject),
		"body", logging.ScrubPII(msg.Text),
	)
	return nil
}

var _ EmailSender = (*StubEmailSender)(nil)
