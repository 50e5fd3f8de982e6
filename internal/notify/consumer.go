package notify

import (
	"context"

	"github.com/driveline/driveline-backend/pkg/logger"
	"github.com/driveline/driveline-backend/pkg/messaging"
)

// StartConsumer binds a queue to the record decision events and emails
// drivers as decisions land. Blocks until ctx is cancelled.
func StartConsumer(ctx context.Context, rmq *messaging.RabbitMQ, notifier *Notifier, log *logger.Logger) error {
	consumer, err := messaging.NewConsumer(rmq, "notify.decisions", log)
	if err != nil {
		return err
	}
	if err := consumer.Subscribe(messaging.ExchangeRecordEvents, "record.decision.*"); err != nil {
		return err
	}

	handler := func(ctx context.Context, event *messaging.Event) error {
		var decision messaging.RecordDecisionEvent
		if err := event.UnmarshalData(&decision); err != nil {
			return err
		}
		return notifier.NotifyDecision(ctx, &decision)
	}

	consumer.RegisterHandler(messaging.EventRecordApproved, handler)
	consumer.RegisterHandler(messaging.EventRecordReferred, handler)
	consumer.RegisterHandler(messaging.EventRecordDeclined, handler)

	return consumer.Start(ctx)
}
