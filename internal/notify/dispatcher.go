package notify

import (
	"context"
	"fmt"

	"github.com/eventpass/api/internal/platform/jobs"
	"github.com/eventpass/api/internal/services"
)

// SMSSender sends a text message.
type SMSSender interface {
	Send(ctx context.Context, to, text string) error
}

// MailSender sends an email.
type MailSender interface {
	Send(ctx context.Context, to, subject, body string) error
}

// Dispatcher routes notification jobs to the channel's sender.
type Dispatcher struct {
	SMS   SMSSender
	Email MailSender
}

var _ jobs.Deliverer = Dispatcher{}

// Deliver sends the job. Jobs for an unconfigured channel are dropped as permanent failures.
func (d Dispatcher) Deliver(ctx context.Context, job services.NotificationJob) error {
	switch job.Channel {
	case services.NotificationChannelSMS:
		if d.SMS == nil {
			return fmt.Errorf("%w: sms channel not configured", jobs.ErrPermanent)
		}
		return d.SMS.Send(ctx, job.Recipient, job.Body)
	case services.NotificationChannelEmail:
		if d.Email == nil {
			return fmt.Errorf("%w: email channel not configured", jobs.ErrPermanent)
		}
		return d.Email.Send(ctx, job.Recipient, job.Subject, job.Body)
	default:
		return fmt.Errorf("%w: unknown channel %q", jobs.ErrPermanent, job.Channel)
	}
}
