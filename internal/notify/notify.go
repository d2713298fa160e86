// Package notify delivers order notifications to buyers and delivery staff.
//
// Delivery is best-effort from the point of view of the order lifecycle:
// callers log a failed Notify and carry on. QueueNotifier trades that for
// at-least-once delivery by handing the message to SQS, where the worker
// retries it with an HTTPNotifier.
package notify

import (
	"context"
	"time"
)

// Notification kinds.
const (
	KindOrderCreated     = "order_created"
	KindDeliveryAssigned = "delivery_assigned"
	KindStatusChanged    = "status_changed"
)

// Channels.
const (
	ChannelEmail = "email"
	ChannelPush  = "push"
)

// Notification is the message sent for an order event.
type Notification struct {
	Kind        string    `json:"kind"`
	OrderID     string    `json:"orderId"`
	RecipientID string    `json:"recipientId"`
	Channel     string    `json:"channel"`
	Status      string    `json:"status,omitempty"`
	Title       string    `json:"title"`
	Body        string    `json:"body"`
	CreatedAt   time.Time `json:"createdAt"`
}

// Notifier sends a single notification.
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

// Nop discards every notification.
type Nop struct{}

func (Nop) Notify(context.Context, Notification) error { return nil }
