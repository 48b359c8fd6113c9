package subscribe

import (
	"context"
	"fmt"
	"time"

	"github.com/techknowlogia/core/internal/pkg/mail"
	"github.com/techknowlogia/core/internal/pkg/metrics"
)

// Notifier delivers the two transactional emails of the lifecycle.
type Notifier interface {
	SendConfirmation(ctx context.Context, to string, links ConfirmLinks) error
	SendUnsubscribed(ctx context.Context, to string, resubscribeURL string) error
}

// ConfirmLinks are the URLs embedded in a confirmation email.
type ConfirmLinks struct {
	ConfirmURL string
	ManageURL  string
	ExpiresIn  time.Duration
}

// MailNotifier sends lifecycle emails through a mail.Sender.
type MailNotifier struct {
	sender   *mail.Sender
	siteName string
	metrics  *metrics.Metrics
}

func NewMailNotifier(sender *mail.Sender, siteName string, m *metrics.Metrics) *MailNotifier {
	return &MailNotifier{sender: sender, siteName: siteName, metrics: m}
}

func (n *MailNotifier) SendConfirmation(ctx context.Context, to string, links ConfirmLinks) error {
	err := n.sender.SendConfirmSubscription(ctx, to, mail.ConfirmSubscriptionData{
		SiteName:   n.siteName,
		ConfirmURL: links.ConfirmURL,
		ManageURL:  links.ManageURL,
		ExpiresIn:  humanDuration(links.ExpiresIn),
	})
	n.metrics.RecordMail(mail.TemplateConfirmSubscription, err)
	return err
}

func (n *MailNotifier) SendUnsubscribed(ctx context.Context, to string, resubscribeURL string) error {
	err := n.sender.SendUnsubscribed(ctx, to, mail.UnsubscribedData{
		SiteName:       n.siteName,
		ResubscribeURL: resubscribeURL,
	})
	n.metrics.RecordMail(mail.TemplateUnsubscribed, err)
	return err
}

func humanDuration(d time.Duration) string {
	switch {
	case d <= 0:
		return ""
	case d%time.Hour == 0:
		h := int(d / time.Hour)
		if h == 1 {
			return "1 hour"
		}
		return fmt.Sprintf("%d hours", h)
	case d%time.Minute == 0:
		return fmt.Sprintf("%d minutes", int(d/time.Minute))
	default:
		return d.String()
	}
}
