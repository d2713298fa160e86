package idempotency

import "time"

// Status values for idempotency entries
const (
	StatusDone = "DONE"
)

// Record is the shape persisted in the idempotency DynamoDB table. It is
// written in the same transaction as the order it points at, so a record
// never exists without its order.
type Record struct {
	IdempotencyKey string    `dynamodbav:"idempotency_key"` // PK
	Status         string    `dynamodbav:"status"`
	OrderID        string    `dynamodbav:"order_id"`
	UserID         string    `dynamodbav:"user_id,omitempty"`
	CreatedAt      time.Time `dynamodbav:"created_at"`
	ExpiresAt      int64     `dynamodbav:"expires_at"` // TTL epoch seconds
}

// Expired reports whether the TTL has passed. DynamoDB deletes expired
// items lazily, so readers must check this themselves.
func (r Record) Expired(now time.Time) bool {
	return r.ExpiresAt > 0 && now.Unix() >= r.ExpiresAt
}
