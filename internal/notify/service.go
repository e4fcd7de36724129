package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/wolfman30/shinestar-cleaners/internal/contact"
	"github.com/wolfman30/shinestar-cleaners/pkg/logging"
)

// ErrNoRecipient is returned when a notifier has nowhere to send.
var ErrNoRecipient = errors.New("notify: recipient email required")

// SubmissionNotifier emails the office about accepted contact requests.
type SubmissionNotifier struct {
	email  EmailSender
	to     string
	logger *logging.Logger
}

// NewSubmissionNotifier creates a notifier sending to the given office inbox.
func NewSubmissionNotifier(email EmailSender, to string, logger *logging.Logger) (*SubmissionNotifier, error) {
	if email == nil {
		return nil, errors.New("notify: email sender required")
	}
	if strings.TrimSpace(to) == "" {
		return nil, ErrNoRecipient
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &SubmissionNotifier{email: email, to: to, logger: logger}, nil
}

// NotifySubmission implements contact.Notifier.
func (n *SubmissionNotifier) NotifySubmission(ctx context.Context, sub contact.Submission) error {
	msg := OfficeEmail{
		To:      Mailbox{Address: n.to},
		ReplyTo: Mailbox{Name: sub.Name, Address: sub.Email},
		Subject: submissionSubject(sub),
		Text:    formatSubmission(sub),
	}
	if err := n.email.Send(ctx, msg); err != nil {
		return fmt.Errorf("notify: submission email: %w", err)
	}
	n.logger.Debug("notify: submission email sent", "to", n.to)
	return nil
}

func submissionSubject(sub contact.Submission) string {
	if sub.Service != "" {
		return fmt.Sprintf("New %s request from %s", sub.Service, sub.Name)
	}
	return fmt.Sprintf("New contact request from %s", sub.Name)
}

func formatSubmission(sub contact.Submission) string {
	var b strings.Builder
	fmt.Fprintf(&b, "A new contact request has come in!\n\n")
	fmt.Fprintf(&b, "Name: %s\n", sub.Name)
	fmt.Fprintf(&b, "Email: %s\n", sub.Email)
	fmt.Fprintf(&b, "Phone: %s\n", orNone(sub.Phone))
	if sub.Service != "" {
		fmt.Fprintf(&b, "Service: %s\n", sub.Service)
	}
	if sub.Subject != "" {
		fmt.Fprintf(&b, "Subject: %s\n", sub.Subject)
	}
	fmt.Fprintf(&b, "\nMessage:\n%s\n", sub.Message)
	return b.String()
}

func orNone(s string) string {
	if strings.TrimSpace(s) == "" {
		return "not provided"
	}
	return s
}

var _ contact.Notifier = (*SubmissionNotifier)(nil)
