package metrics

import "context"

// OrderRecorder receives order lifecycle events.
type OrderRecorder interface {
	OrderCreated(ctx context.Context, amount float64)
	StatusChanged(ctx context.Context, from, to string)
	NotificationFailed(ctx context.Context, kind string)
}

// Multi fans order events out to several recorders.
type Multi []OrderRecorder

func (m Multi) OrderCreated(ctx context.Context, amount float64) {
	for _, r := range m {
		r.OrderCreated(ctx, amount)
	}
}

func (m Multi) StatusChanged(ctx context.Context, from, to string) {
	for _, r := range m {
		r.StatusChanged(ctx, from, to)
	}
}

func (m Multi) NotificationFailed(ctx context.Context, kind string) {
	for _, r := range m {
		r.NotificationFailed(ctx, kind)
	}
}
