package bootstrap

import (
	"context"
	"fmt"

	"github.com/wolfman30/shinestar-cleaners/cmd/mainconfig"
	appconfig "github.com/wolfman30/shinestar-cleaners/internal/config"
	"github.com/wolfman30/shinestar-cleaners/internal/contact"
	"github.com/wolfman30/shinestar-cleaners/internal/notify"
	"github.com/wolfman30/shinestar-cleaners/pkg/logging"
)

// BuildNotifier wires the optional office email for accepted contact requests.
// NOTIFY_PROVIDER=none returns a nil notifier and no error.
func BuildNotifier(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger) (contact.Notifier, error) {
	if cfg == nil {
		return nil, fmt.Errorf("bootstrap: config is required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	if ctx == nil {
		ctx = context.Background()
	}

	var sender notify.EmailSender
	switch cfg.NotifyProvider {
	case "", "none":
		return nil, nil
	case "stub":
		sender = notify.NewStubEmailSender(logger)
	case "sendgrid":
		if cfg.SendGridAPIKey == "" {
			logger.Warn("sendgrid notifier requested but SENDGRID_API_KEY empty; disabling")
			return nil, nil
		}
		from, err := officeSender(cfg)
		if err != nil {
			return nil, err
		}
		sender = notify.NewSendGridSender(cfg.SendGridAPIKey, from, logger)
	case "ses":
		from, err := officeSender(cfg)
		if err != nil {
			return nil, err
		}
		awsCfg, err := mainconfig.LoadAWSConfig(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("bootstrap: load aws config: %w", err)
		}
		sender = notify.NewSESSender(mainconfig.NewSESClient(awsCfg, cfg), from, logger)
	default:
		return nil, fmt.Errorf("bootstrap: unknown notify provider %q", cfg.NotifyProvider)
	}

	notifier, err := notify.NewSubmissionNotifier(sender, cfg.NotifyToEmail, logger)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: notifier: %w", err)
	}
	logger.Info("contact notifications enabled", "provider", cfg.NotifyProvider)
	return notifier, nil
}

func officeSender(cfg *appconfig.Config) (notify.Mailbox, error) {
	from, err := notify.OfficeSender(cfg.SiteName, cfg.NotifyFromName, cfg.NotifyFromEmail)
	if err != nil {
		return notify.Mailbox{}, fmt.Errorf("bootstrap: %s notifier: %w", cfg.NotifyProvider, err)
	}
	return from, nil
}
