package orders

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/imrishuroy/pharmacy-orderflow/internal/catalog"
	"github.com/imrishuroy/pharmacy-orderflow/internal/idempotency"
	"github.com/imrishuroy/pharmacy-orderflow/internal/logger"
	"github.com/imrishuroy/pharmacy-orderflow/internal/notify"
	"github.com/imrishuroy/pharmacy-orderflow/internal/users"
)

// CatalogReader loads items and builds their stock decrements.
type CatalogReader interface {
	Get(ctx context.Context, itemID string) (*catalog.Item, error)
	DecrementStockUpdate(itemID string, quantity int) types.TransactWriteItem
}

// UserReader loads users.
type UserReader interface {
	Get(ctx context.Context, userID string) (*users.User, error)
}

// IdempotencyStore claims and resolves idempotency keys.
type IdempotencyStore interface {
	PutItem(key, orderID, userID string) (types.TransactWriteItem, error)
	Get(ctx context.Context, key string) (*idempotency.Record, error)
}

// StockInvalidator drops cached stock levels after a sale.
type StockInvalidator interface {
	Invalidate(ctx context.Context)
}

// Metrics receives order events.
type Metrics interface {
	OrderCreated(ctx context.Context, amount float64)
	StatusChanged(ctx context.Context, from, to string)
	NotificationFailed(ctx context.Context, kind string)
}

type nopMetrics struct{}

func (nopMetrics) OrderCreated(context.Context, float64)        {}
func (nopMetrics) StatusChanged(context.Context, string, string) {}
func (nopMetrics) NotificationFailed(context.Context, string)    {}

// TrackerConfig groups dependencies for the Tracker. Idempotency, Notifier,
// Metrics and Invalidator are optional.
type TrackerConfig struct {
	Orders        *Store
	History       *HistoryStore
	Catalog       CatalogReader
	Users         UserReader
	Idempotency   IdempotencyStore
	Notifier      notify.Notifier
	Metrics       Metrics
	Invalidator   StockInvalidator
	NotifyTimeout time.Duration
}

// Tracker runs the order lifecycle: checkout, delivery assignment and status
// progression up to OTP-confirmed delivery.
type Tracker struct {
	orders        *Store
	history       *HistoryStore
	catalog       CatalogReader
	users         UserReader
	idem          IdempotencyStore
	notifier      notify.Notifier
	metrics       Metrics
	invalidator   StockInvalidator
	notifyTimeout time.Duration
	nowFunc       func() time.Time
	otpFunc       func() string
	idFunc        func() string
}

// NewTracker builds a Tracker from cfg.
func NewTracker(cfg TrackerConfig) *Tracker {
	t := &Tracker{
		orders:        cfg.Orders,
		history:       cfg.History,
		catalog:       cfg.Catalog,
		users:         cfg.Users,
		idem:          cfg.Idempotency,
		notifier:      cfg.Notifier,
		metrics:       cfg.Metrics,
		invalidator:   cfg.Invalidator,
		notifyTimeout: cfg.NotifyTimeout,
		nowFunc:       time.Now,
		otpFunc:       NewOTP,
		idFunc:        uuid.NewString,
	}
	if t.notifier == nil {
		t.notifier = notify.Nop{}
	}
	if t.metrics == nil {
		t.metrics = nopMetrics{}
	}
	if t.notifyTimeout <= 0 {
		t.notifyTimeout = 3 * time.Second
	}
	return t
}

// CreateOrder validates the checkout, prices it from the catalog and writes
// the order, its stock reservations, the buyer's history row and the
// idempotency record in one transaction.
//
// When in.IdempotencyKey was already used by the same buyer the original
// order is returned with replayed set and nothing is written.
func (t *Tracker) CreateOrder(ctx context.Context, actor Actor, in CreateOrderInput) (order *Order, replayed bool, err error) {
	lines, err := mergeLines(in.Items)
	if err != nil {
		return nil, false, err
	}
	if err := validateAddress(in.ShippingAddress); err != nil {
		return nil, false, err
	}

	owner := GuestUserID
	if !actor.IsGuest() {
		owner = actor.ID
	}

	if in.IdempotencyKey != "" && t.idem != nil {
		existing, err := t.replay(ctx, in.IdempotencyKey, owner)
		if err != nil || existing != nil {
			return existing, existing != nil, err
		}
	}

	now := t.nowFunc().UTC()
	o := Order{
		OrderID:         t.idFunc(),
		UserID:          owner,
		ShippingAddress: *in.ShippingAddress,
		Status:          StatusPending,
		DeliveryOTP:     t.otpFunc(),
		CreatedAt:       now,
		UpdatedAt:       now,
		History: []StatusChange{{
			To:        StatusPending,
			ActorID:   owner,
			ActorRole: actor.Role,
			At:        now,
		}},
	}

	extra := make([]types.TransactWriteItem, 0, len(lines)+2)
	var total float64
	for _, l := range lines {
		item, err := t.catalog.Get(ctx, l.ItemID)
		if err != nil {
			return nil, false, persistence("load catalog item", err)
		}
		if item == nil {
			return nil, false, &NotFoundError{Kind: "item", ID: l.ItemID}
		}
		if item.StockQuantity < l.Quantity {
			return nil, false, fmt.Errorf("%w: %s has %d left", ErrInsufficientStock, item.Name, item.StockQuantity)
		}
		o.Items = append(o.Items, LineItem{
			ItemID:               item.ID,
			Name:                 item.Name,
			Price:                item.Price,
			Quantity:             l.Quantity,
			RequiresPrescription: item.RequiresPrescription,
		})
		if item.RequiresPrescription {
			o.RequiresPrescription = true
		}
		total += item.Price * float64(l.Quantity)
		extra = append(extra, t.catalog.DecrementStockUpdate(item.ID, l.Quantity))
	}
	o.TotalAmount = math.Round(total*100) / 100

	if !o.IsGuest() && t.history != nil {
		put, err := t.history.PutItem(summarize(o))
		if err != nil {
			return nil, false, persistence("create order", err)
		}
		extra = append(extra, put)
	}
	idemIndex := -1
	if in.IdempotencyKey != "" && t.idem != nil {
		put, err := t.idem.PutItem(in.IdempotencyKey, o.OrderID, owner)
		if err != nil {
			return nil, false, persistence("create order", err)
		}
		extra = append(extra, put)
		// transact index: the order put is item 0
		idemIndex = len(extra)
	}

	if err := t.orders.CreateTransaction(ctx, o, extra...); err != nil {
		var tce *TxCanceledError
		if errors.As(err, &tce) {
			if tce.Failed(idemIndex) {
				existing, rerr := t.replay(ctx, in.IdempotencyKey, owner)
				if rerr != nil {
					return nil, false, rerr
				}
				if existing != nil {
					return existing, true, nil
				}
			}
			for i := 1; i <= len(lines); i++ {
				if tce.Failed(i) {
					return nil, false, fmt.Errorf("%w: %s", ErrInsufficientStock, o.Items[i-1].Name)
				}
			}
		}
		return nil, false, persistence("create order", err)
	}

	t.metrics.OrderCreated(ctx, o.TotalAmount)
	if t.invalidator != nil {
		t.invalidator.Invalidate(ctx)
	}
	logger.FromContext(ctx).Info("order created",
		zap.String("order_id", o.OrderID),
		zap.String("user_id", o.UserID),
		zap.Int("lines", len(o.Items)),
		zap.Float64("total", o.TotalAmount))

	t.notify(ctx, notify.Notification{
		Kind:        notify.KindOrderCreated,
		OrderID:     o.OrderID,
		RecipientID: o.UserID,
		Channel:     notify.ChannelEmail,
		Status:      o.Status,
		Title:       "Order placed",
		Body:        fmt.Sprintf("Your order %s has been placed. Total: %.2f", o.OrderID, o.TotalAmount),
	})
	return &o, false, nil
}

// replay resolves an idempotency key to the order it created. It returns
// (nil, nil) when the key is unused.
func (t *Tracker) replay(ctx context.Context, key, owner string) (*Order, error) {
	rec, err := t.idem.Get(ctx, key)
	if err != nil {
		return nil, persistence("check idempotency key", err)
	}
	if rec == nil {
		return nil, nil
	}
	if rec.UserID != owner {
		return nil, &ValidationError{Field: "Idempotency-Key", Message: "key already used for another order"}
	}
	o, err := t.orders.Get(ctx, rec.OrderID)
	if err != nil {
		return nil, persistence("load order", err)
	}
	if o == nil {
		return nil, &NotFoundError{Kind: "order", ID: rec.OrderID}
	}
	return o, nil
}

// AssignDeliveryPerson assigns personID to the order and moves it to
// Ready for Delivery. Admin only.
func (t *Tracker) AssignDeliveryPerson(ctx context.Context, actor Actor, orderID, personID string) (*Order, error) {
	if !actor.IsAdmin() {
		return nil, ErrForbidden
	}
	if strings.TrimSpace(orderID) == "" {
		return nil, &ValidationError{Field: "orderId", Message: "is required"}
	}
	if strings.TrimSpace(personID) == "" {
		return nil, &ValidationError{Field: "deliveryPersonId", Message: "is required"}
	}

	o, err := t.orders.Get(ctx, orderID)
	if err != nil {
		return nil, persistence("load order", err)
	}
	if o == nil {
		return nil, &NotFoundError{Kind: "order", ID: orderID}
	}
	person, err := t.users.Get(ctx, personID)
	if err != nil {
		return nil, persistence("load user", err)
	}
	if person == nil {
		return nil, &NotFoundError{Kind: "user", ID: personID}
	}
	if person.Role != users.RoleDelivery {
		return nil, &ValidationError{Field: "deliveryPersonId", Message: "user is not a delivery person"}
	}
	if Terminal(o.Status) {
		return nil, &TransitionError{From: o.Status, To: StatusReadyForDelivery}
	}

	updated, err := t.orders.Assign(ctx, orderID, person.UserID, person.DisplayName, t.change(actor, o.Status, StatusReadyForDelivery))
	if err != nil {
		if errors.Is(err, ErrStatusMismatch) {
			return nil, ErrConcurrentUpdate
		}
		return nil, persistence("assign delivery person", err)
	}
	t.afterStatusWrite(ctx, o, updated)

	t.notify(ctx, notify.Notification{
		Kind:        notify.KindDeliveryAssigned,
		OrderID:     orderID,
		RecipientID: person.UserID,
		Channel:     notify.ChannelPush,
		Status:      updated.Status,
		Title:       "New delivery assigned",
		Body:        fmt.Sprintf("Order %s is ready for pickup", orderID),
	})
	r := updated.redacted()
	return &r, nil
}

// UpdateOrderStatus moves the order to newStatus. Delivered requires otp to
// match the order's delivery code; a mismatch returns ErrInvalidOtp and
// leaves the order unchanged.
func (t *Tracker) UpdateOrderStatus(ctx context.Context, actor Actor, orderID, newStatus, otp string) (*Order, error) {
	if !KnownStatus(newStatus) {
		return nil, &ValidationError{Field: "status", Message: fmt.Sprintf("unknown status %q", newStatus)}
	}
	o, err := t.orders.Get(ctx, orderID)
	if err != nil {
		return nil, persistence("load order", err)
	}
	if o == nil {
		return nil, &NotFoundError{Kind: "order", ID: orderID}
	}
	if err := authorizeStatus(actor, o, newStatus); err != nil {
		return nil, err
	}
	if newStatus == StatusDelivered && subtle.ConstantTimeCompare([]byte(otp), []byte(o.DeliveryOTP)) != 1 {
		return nil, ErrInvalidOtp
	}
	if newStatus == o.Status {
		return t.view(actor, o), nil
	}

	updated, err := t.orders.UpdateStatus(ctx, orderID, t.change(actor, o.Status, newStatus))
	if err != nil {
		if errors.Is(err, ErrStatusMismatch) {
			return nil, ErrConcurrentUpdate
		}
		return nil, persistence("update order status", err)
	}
	t.afterStatusWrite(ctx, o, updated)

	t.notify(ctx, notify.Notification{
		Kind:        notify.KindStatusChanged,
		OrderID:     orderID,
		RecipientID: updated.UserID,
		Channel:     notify.ChannelEmail,
		Status:      newStatus,
		Title:       "Order update",
		Body:        fmt.Sprintf("Your order %s is now %s", orderID, newStatus),
	})
	if updated.DeliveryPersonID != "" {
		t.notify(ctx, notify.Notification{
			Kind:        notify.KindStatusChanged,
			OrderID:     orderID,
			RecipientID: updated.DeliveryPersonID,
			Channel:     notify.ChannelPush,
			Status:      newStatus,
			Title:       "Order update",
			Body:        fmt.Sprintf("Order %s is now %s", orderID, newStatus),
		})
	}
	return t.view(actor, updated), nil
}

// GetOrder returns the order if actor may see it. Only the buyer sees the
// delivery OTP.
func (t *Tracker) GetOrder(ctx context.Context, actor Actor, orderID string) (*Order, error) {
	o, err := t.orders.Get(ctx, orderID)
	if err != nil {
		return nil, persistence("load order", err)
	}
	if o == nil {
		return nil, &NotFoundError{Kind: "order", ID: orderID}
	}
	if !actor.canView(o) {
		return nil, ErrForbidden
	}
	return t.view(actor, o), nil
}

// ListForDeliveryPerson returns the orders assigned to personID.
func (t *Tracker) ListForDeliveryPerson(ctx context.Context, actor Actor, personID string) ([]Order, error) {
	if !actor.IsAdmin() && !(actor.Role == users.RoleDelivery && actor.ID == personID) {
		return nil, ErrForbidden
	}
	list, err := t.orders.ListByDeliveryPerson(ctx, personID)
	if err != nil {
		return nil, persistence("list delivery orders", err)
	}
	out := make([]Order, 0, len(list))
	for _, o := range list {
		out = append(out, o.redacted())
	}
	return out, nil
}

// ListForUser returns a registered user's order history.
func (t *Tracker) ListForUser(ctx context.Context, userID string) ([]OrderSummary, error) {
	if t.history == nil || userID == "" || userID == GuestUserID {
		return nil, nil
	}
	list, err := t.history.ListByUser(ctx, userID)
	if err != nil {
		return nil, persistence("list order history", err)
	}
	return list, nil
}

func (t *Tracker) view(actor Actor, o *Order) *Order {
	if actor.owns(o) {
		return o
	}
	r := o.redacted()
	return &r
}

func (t *Tracker) change(actor Actor, from, to string) StatusChange {
	return StatusChange{
		From:      from,
		To:        to,
		ActorID:   actor.ID,
		ActorRole: actor.Role,
		At:        t.nowFunc().UTC(),
	}
}

// afterStatusWrite records the move and mirrors it onto the history row.
// Neither step can fail the operation.
func (t *Tracker) afterStatusWrite(ctx context.Context, before, after *Order) {
	log := logger.FromContext(ctx)
	if before.Status != after.Status {
		t.metrics.StatusChanged(ctx, before.Status, after.Status)
	}
	log.Info("order status changed",
		zap.String("order_id", after.OrderID),
		zap.String("from", before.Status),
		zap.String("to", after.Status))

	if t.history == nil || after.IsGuest() {
		return
	}
	err := t.history.SetStatus(ctx, after.UserID, after.OrderID, after.Status)
	switch {
	case errors.Is(err, ErrSummaryNotFound):
		log.Debug("order has no summary row", zap.String("order_id", after.OrderID))
	case err != nil:
		log.Warn("order summary status not updated",
			zap.String("order_id", after.OrderID),
			zap.Error(err))
	}
}

// notify sends n with its own deadline, detached from ctx cancellation so a
// client disconnect does not drop it. Failures are logged and counted.
func (t *Tracker) notify(ctx context.Context, n notify.Notification) {
	if n.CreatedAt.IsZero() {
		n.CreatedAt = t.nowFunc().UTC()
	}
	nctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), t.notifyTimeout)
	defer cancel()
	if err := t.notifier.Notify(nctx, n); err != nil {
		logger.FromContext(ctx).Warn("notification failed",
			zap.String("kind", n.Kind),
			zap.String("order_id", n.OrderID),
			zap.String("recipient_id", n.RecipientID),
			zap.Error(err))
		t.metrics.NotificationFailed(ctx, n.Kind)
	}
}

// mergeLines validates requested lines and folds duplicates of one item
// into a single line, keeping first-seen order.
func mergeLines(in []OrderLine) ([]OrderLine, error) {
	if len(in) == 0 {
		return nil, &ValidationError{Field: "items", Message: "at least one item is required"}
	}
	index := map[string]int{}
	out := make([]OrderLine, 0, len(in))
	for i, l := range in {
		id := strings.TrimSpace(l.ItemID)
		if id == "" {
			return nil, &ValidationError{Field: fmt.Sprintf("items[%d].id", i), Message: "is required"}
		}
		if l.Quantity < 1 {
			return nil, &ValidationError{Field: fmt.Sprintf("items[%d].quantity", i), Message: "must be at least 1"}
		}
		if j, ok := index[id]; ok {
			out[j].Quantity += l.Quantity
			continue
		}
		index[id] = len(out)
		out = append(out, OrderLine{ItemID: id, Quantity: l.Quantity})
	}
	if len(out) > MaxLineItems {
		return nil, &ValidationError{Field: "items", Message: fmt.Sprintf("at most %d distinct items per order", MaxLineItems)}
	}
	return out, nil
}

func validateAddress(a *ShippingAddress) error {
	if a == nil {
		return &ValidationError{Field: "shippingAddress", Message: "is required"}
	}
	required := []struct{ name, value string }{
		{"fullName", a.FullName},
		{"phone", a.Phone},
		{"line1", a.Line1},
		{"city", a.City},
		{"postalCode", a.PostalCode},
	}
	for _, f := range required {
		if strings.TrimSpace(f.value) == "" {
			return &ValidationError{Field: "shippingAddress." + f.name, Message: "is required"}
		}
	}
	return nil
}
