package main

import (
	"context"

	"github.com/aws/aws-lambda-go/events"
	"go.uber.org/zap"

	"github.com/imrishuroy/pharmacy-orderflow/internal/logger"
	"github.com/imrishuroy/pharmacy-orderflow/internal/notify"
)

// FailureRecorder counts notifications that could not be delivered.
type FailureRecorder interface {
	NotificationFailed(ctx context.Context, kind string)
}

// Processor delivers queued notifications.
type Processor struct {
	notifier notify.Notifier
	failures FailureRecorder
}

// NewProcessor creates a processor delivering through n. failures may be nil.
func NewProcessor(n notify.Notifier, failures FailureRecorder) *Processor {
	return &Processor{notifier: n, failures: failures}
}

// Handle delivers every message of the batch and reports the ones that
// failed, so SQS redrives only those. Undecodable bodies are reported too and
// end up in the dead-letter queue once their receive count runs out.
func (p *Processor) Handle(ctx context.Context, ev events.SQSEvent) (events.SQSEventResponse, error) {
	log := logger.FromContext(ctx)
	log.Info("received SQS messages", zap.Int("count", len(ev.Records)))

	var resp events.SQSEventResponse
	for _, rec := range ev.Records {
		if err := p.processMessage(ctx, rec); err != nil {
			log.Warn("notification delivery failed",
				zap.String("message_id", rec.MessageId),
				zap.Error(err),
			)
			resp.BatchItemFailures = append(resp.BatchItemFailures, events.SQSBatchItemFailure{
				ItemIdentifier: rec.MessageId,
			})
		}
	}
	return resp, nil
}

func (p *Processor) processMessage(ctx context.Context, rec events.SQSMessage) error {
	n, err := notify.Decode(rec.Body)
	if err != nil {
		return err
	}

	if err := p.notifier.Notify(ctx, n); err != nil {
		if p.failures != nil {
			p.failures.NotificationFailed(ctx, n.Kind)
		}
		return err
	}

	logger.FromContext(ctx).Debug("notification delivered",
		zap.String("order_id", n.OrderID),
		zap.String("kind", n.Kind),
		zap.String("channel", n.Channel),
	)
	return nil
}
