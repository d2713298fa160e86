package notify

import (
	"context"
	"encoding/json"
	"fmt"
)

// Publisher is satisfied by aws.Publisher.
type Publisher interface {
	Publish(ctx context.Context, messageBody string, attributes map[string]string) error
}

// QueueNotifier enqueues notifications for the worker to deliver.
type QueueNotifier struct {
	pub Publisher
}

// NewQueueNotifier returns a QueueNotifier publishing through pub.
func NewQueueNotifier(pub Publisher) *QueueNotifier {
	return &QueueNotifier{pub: pub}
}

// Notify serialises n and publishes it with kind/order_id attributes.
func (q *QueueNotifier) Notify(ctx context.Context, n Notification) error {
	raw, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("notify: marshal: %w", err)
	}
	attrs := map[string]string{
		"kind":     n.Kind,
		"order_id": n.OrderID,
		"channel":  n.Channel,
	}
	if err := q.pub.Publish(ctx, string(raw), attrs); err != nil {
		return fmt.Errorf("notify: enqueue: %w", err)
	}
	return nil
}

// Decode parses a queued notification body.
func Decode(body string) (Notification, error) {
	var n Notification
	if err := json.Unmarshal([]byte(body), &n); err != nil {
		return Notification{}, fmt.Errorf("notify: decode: %w", err)
	}
	return n, nil
}
