package notify

import (
	"context"
	"fmt"
	"strings"

	"github.com/driveline/driveline-backend/pkg/errors"
	"github.com/driveline/driveline-backend/pkg/logger"
	"github.com/driveline/driveline-backend/pkg/messaging"
	"github.com/driveline/driveline-backend/pkg/ratelimit"
)

// Notifier turns underwriting decisions into driver-facing email,
// rate-limited per recipient so a retried event cannot flood an inbox.
type Notifier struct {
	mailer  Mailer
	limiter ratelimit.Limiter
	logger  *logger.Logger
}

func NewNotifier(mailer Mailer, limiter ratelimit.Limiter, log *logger.Logger) *Notifier {
	return &Notifier{
		mailer:  mailer,
		limiter: limiter,
		logger:  log,
	}
}

// NotifyDecision emails the driver about their underwriting outcome
func (n *Notifier) NotifyDecision(ctx context.Context, event *messaging.RecordDecisionEvent) error {
	if event.DriverEmail == "" {
		n.logger.Debug().
			Str("driver_id", event.DriverID).
			Msg("no driver email on decision event, skipping notification")
		return nil
	}

	if !n.limiter.Allow(event.DriverEmail) {
		n.logger.Warn().
			Str("driver_id", event.DriverID).
			Msg("notification rate limit reached for recipient")
		return errors.RateLimited("too many notifications for recipient")
	}

	msg := &Message{
		To:      event.DriverEmail,
		Subject: decisionSubject(event.Outcome),
		Body:    decisionBody(event),
	}
	return n.mailer.Send(ctx, msg)
}

func decisionSubject(outcome string) string {
	switch outcome {
	case "approved":
		return "Your driving record check has been approved"
	case "referred":
		return "Your driving record check needs a manual review"
	default:
		return "An update on your driving record check"
	}
}

func decisionBody(event *messaging.RecordDecisionEvent) string {
	var sb strings.Builder
	switch event.Outcome {
	case "approved":
		fmt.Fprintf(&sb, "Good news - your driving record check passed.\n\n")
		fmt.Fprintf(&sb, "Risk tier: %s\n", event.RiskTier)
		if event.Excess > 0 {
			fmt.Fprintf(&sb, "Insurance excess: %d\n", event.Excess)
		}
	case "referred":
		sb.WriteString("Your driving record check needs a manual review by our team.\n")
		sb.WriteString("We will be in touch once the review is complete.\n")
	default:
		sb.WriteString("Unfortunately we are unable to continue with your application at this time.\n")
	}
	if len(event.Reasons) > 0 {
		sb.WriteString("\nDetails:\n")
		for _, reason := range event.Reasons {
			fmt.Fprintf(&sb, "- %s\n", reason)
		}
	}
	return sb.String()
}
