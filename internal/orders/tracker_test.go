package orders

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	dyn "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imrishuroy/pharmacy-orderflow/internal/aws/dynamotest"
	"github.com/imrishuroy/pharmacy-orderflow/internal/catalog"
	"github.com/imrishuroy/pharmacy-orderflow/internal/idempotency"
	"github.com/imrishuroy/pharmacy-orderflow/internal/notify"
	"github.com/imrishuroy/pharmacy-orderflow/internal/users"
)

type recordingNotifier struct {
	mu   sync.Mutex
	sent []notify.Notification
	err  error
}

func (r *recordingNotifier) Notify(_ context.Context, n notify.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, n)
	return r.err
}

func (r *recordingNotifier) all() []notify.Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]notify.Notification(nil), r.sent...)
}

type recordingMetrics struct {
	mu          sync.Mutex
	created     int
	transitions []string
	failures    []string
}

func (m *recordingMetrics) OrderCreated(context.Context, float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.created++
}

func (m *recordingMetrics) StatusChanged(_ context.Context, from, to string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.transitions = append(m.transitions, from+"->"+to)
}

func (m *recordingMetrics) NotificationFailed(_ context.Context, kind string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures = append(m.failures, kind)
}

type countingInvalidator struct{ calls int }

func (c *countingInvalidator) Invalidate(context.Context) { c.calls++ }

var (
	admin    = Actor{ID: "a1", Role: users.RoleAdmin}
	courier  = Actor{ID: "d1", Role: users.RoleDelivery}
	courier2 = Actor{ID: "d2", Role: users.RoleDelivery}
	buyer    = Actor{ID: "c1", Role: users.RoleCustomer}
	stranger = Actor{ID: "c2", Role: users.RoleCustomer}
	guest    = Actor{}
)

type fixture struct {
	fake     *dynamotest.Fake
	tracker  *Tracker
	notifier *recordingNotifier
	metrics  *recordingMetrics
	inval    *countingInvalidator
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	fake := dynamotest.New()
	fake.CreateTable("orders", "order_id", "")
	fake.CreateTable("catalog", "item_id", "")
	fake.CreateTable("users", "user_id", "")
	fake.CreateTable("user_orders", "user_id", "order_id")
	fake.CreateTable("idempotency", "idempotency_key", "")

	for _, it := range []catalog.Item{
		{ID: "m1", Kind: catalog.KindMedicine, Name: "Paracetamol 500", GenericName: "Paracetamol", Price: 50, StockQuantity: 10},
		{ID: "m2", Kind: catalog.KindMedicine, Name: "Amoxicillin 250", GenericName: "Amoxicillin", Price: 120, StockQuantity: 1, RequiresPrescription: true},
		{ID: "p1", Kind: catalog.KindProduct, Name: "Bandage", Price: 20.5, StockQuantity: 5},
	} {
		require.NoError(t, fake.Seed("catalog", it))
	}
	for _, u := range []users.User{
		{UserID: "a1", DisplayName: "Admin", Role: users.RoleAdmin},
		{UserID: "d1", DisplayName: "Ravi", Role: users.RoleDelivery},
		{UserID: "d2", DisplayName: "Meera", Role: users.RoleDelivery},
		{UserID: "c1", DisplayName: "Asha", Role: users.RoleCustomer},
		{UserID: "c2", DisplayName: "Kiran", Role: users.RoleCustomer},
	} {
		require.NoError(t, fake.Seed("users", u))
	}

	n := &recordingNotifier{}
	m := &recordingMetrics{}
	inval := &countingInvalidator{}
	tr := NewTracker(TrackerConfig{
		Orders:        NewStore(fake, "orders", "delivery_person_id-index"),
		History:       NewHistoryStore(fake, "user_orders"),
		Catalog:       catalog.NewStore(fake, "catalog"),
		Users:         users.NewStore(fake, "users"),
		Idempotency:   idempotency.NewStore(fake, "idempotency", 48*time.Hour),
		Notifier:      n,
		Metrics:       m,
		Invalidator:   inval,
		NotifyTimeout: time.Second,
	})
	tr.otpFunc = func() string { return "123456" }
	return &fixture{fake: fake, tracker: tr, notifier: n, metrics: m, inval: inval}
}

func address() *ShippingAddress {
	return &ShippingAddress{FullName: "Asha Rao", Phone: "9999999999", Line1: "12 MG Road", City: "Pune", PostalCode: "411001"}
}

func (f *fixture) stock(t *testing.T, id string) int {
	t.Helper()
	var it catalog.Item
	ok, err := f.fake.Get("catalog", &it, id)
	require.NoError(t, err)
	require.True(t, ok)
	return it.StockQuantity
}

func (f *fixture) stored(t *testing.T, id string) Order {
	t.Helper()
	var o Order
	ok, err := f.fake.Get("orders", &o, id)
	require.NoError(t, err)
	require.True(t, ok, "order %s not stored", id)
	return o
}

func (f *fixture) placeOrder(t *testing.T) *Order {
	t.Helper()
	o, _, err := f.tracker.CreateOrder(context.Background(), buyer, CreateOrderInput{
		Items:           []OrderLine{{ItemID: "m1", Quantity: 2}},
		ShippingAddress: address(),
	})
	require.NoError(t, err)
	return o
}

func TestCreateOrder_PersistsOrderStockAndHistory(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	o, replayed, err := f.tracker.CreateOrder(ctx, buyer, CreateOrderInput{
		Items: []OrderLine{
			{ItemID: "m1", Quantity: 2},
			{ItemID: "m2", Quantity: 1},
			{ItemID: "m1", Quantity: 1},
		},
		ShippingAddress: address(),
	})
	require.NoError(t, err)
	assert.False(t, replayed)

	assert.Equal(t, StatusPending, o.Status)
	assert.Equal(t, "c1", o.UserID)
	assert.Equal(t, "123456", o.DeliveryOTP)
	assert.True(t, o.RequiresPrescription)
	require.Len(t, o.Items, 2, "duplicate lines are merged")
	assert.Equal(t, 3, o.Items[0].Quantity)
	assert.Equal(t, 50.0, o.Items[0].Price, "price comes from the catalog")
	assert.InDelta(t, 270.0, o.TotalAmount, 0.001)

	stored := f.stored(t, o.OrderID)
	assert.Equal(t, StatusPending, stored.Status)
	require.Len(t, stored.History, 1)
	assert.Equal(t, StatusPending, stored.History[0].To)

	assert.Equal(t, 7, f.stock(t, "m1"))
	assert.Equal(t, 0, f.stock(t, "m2"))

	var summary OrderSummary
	ok, err := f.fake.Get("user_orders", &summary, "c1", o.OrderID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 4, summary.ItemCount)

	assert.Equal(t, 1, f.metrics.created)
	assert.Equal(t, 1, f.inval.calls)
	sent := f.notifier.all()
	require.Len(t, sent, 1)
	assert.Equal(t, notify.KindOrderCreated, sent[0].Kind)
	assert.Equal(t, "c1", sent[0].RecipientID)
}

func TestCreateOrder_GuestSkipsHistory(t *testing.T) {
	f := newFixture(t)
	o, _, err := f.tracker.CreateOrder(context.Background(), guest, CreateOrderInput{
		Items:           []OrderLine{{ItemID: "p1", Quantity: 1}},
		ShippingAddress: address(),
	})
	require.NoError(t, err)
	assert.Equal(t, GuestUserID, o.UserID)
	assert.False(t, o.RequiresPrescription)
	assert.Equal(t, 0, f.fake.Len("user_orders"))
	assert.Equal(t, 4, f.stock(t, "p1"))
}

func TestCreateOrder_ValidationLeavesNoTrace(t *testing.T) {
	cases := []struct {
		name  string
		in    CreateOrderInput
		field string
	}{
		{"empty items", CreateOrderInput{ShippingAddress: address()}, "items"},
		{"zero quantity", CreateOrderInput{Items: []OrderLine{{ItemID: "m1"}}, ShippingAddress: address()}, "items[0].quantity"},
		{"blank id", CreateOrderInput{Items: []OrderLine{{ItemID: " ", Quantity: 1}}, ShippingAddress: address()}, "items[0].id"},
		{"missing address", CreateOrderInput{Items: []OrderLine{{ItemID: "m1", Quantity: 1}}}, "shippingAddress"},
		{"incomplete address", CreateOrderInput{Items: []OrderLine{{ItemID: "m1", Quantity: 1}}, ShippingAddress: &ShippingAddress{FullName: "A"}}, "shippingAddress.phone"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t)
			_, _, err := f.tracker.CreateOrder(context.Background(), buyer, tc.in)
			var ve *ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Equal(t, tc.field, ve.Field)

			assert.Equal(t, 0, f.fake.Len("orders"))
			assert.Equal(t, 10, f.stock(t, "m1"))
			assert.Equal(t, 0, f.fake.Calls("TransactWriteItems"))
		})
	}
}

func TestCreateOrder_UnknownItem(t *testing.T) {
	f := newFixture(t)
	_, _, err := f.tracker.CreateOrder(context.Background(), buyer, CreateOrderInput{
		Items:           []OrderLine{{ItemID: "nope", Quantity: 1}},
		ShippingAddress: address(),
	})
	var nf *NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "item", nf.Kind)
}

func TestCreateOrder_InsufficientStock(t *testing.T) {
	f := newFixture(t)
	_, _, err := f.tracker.CreateOrder(context.Background(), buyer, CreateOrderInput{
		Items:           []OrderLine{{ItemID: "m2", Quantity: 2}},
		ShippingAddress: address(),
	})
	require.ErrorIs(t, err, ErrInsufficientStock)
	assert.Equal(t, 1, f.stock(t, "m2"))
	assert.Equal(t, 0, f.fake.Len("orders"))
}

func TestCreateOrder_ConcurrentBuyersCannotOversell(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	const buyers = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
		refused   int
	)
	for i := 0; i < buyers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, _, err := f.tracker.CreateOrder(ctx, Actor{ID: fmt.Sprintf("u%d", i), Role: users.RoleCustomer}, CreateOrderInput{
				Items:           []OrderLine{{ItemID: "m2", Quantity: 1}},
				ShippingAddress: address(),
			})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				succeeded++
			case errors.Is(err, ErrInsufficientStock):
				refused++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, succeeded)
	assert.Equal(t, buyers-1, refused)
	assert.Equal(t, 0, f.stock(t, "m2"))
	assert.Equal(t, 1, f.fake.Len("orders"))
}

func TestCreateOrder_IdempotentReplay(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	in := CreateOrderInput{
		Items:           []OrderLine{{ItemID: "m1", Quantity: 2}},
		ShippingAddress: address(),
		IdempotencyKey:  "checkout-1",
	}

	first, replayed, err := f.tracker.CreateOrder(ctx, buyer, in)
	require.NoError(t, err)
	require.False(t, replayed)

	second, replayed, err := f.tracker.CreateOrder(ctx, buyer, in)
	require.NoError(t, err)
	assert.True(t, replayed)
	assert.Equal(t, first.OrderID, second.OrderID)

	assert.Equal(t, 8, f.stock(t, "m1"), "replay must not decrement again")
	assert.Equal(t, 1, f.fake.Len("orders"))
	assert.Equal(t, 1, f.metrics.created)

	_, _, err = f.tracker.CreateOrder(ctx, stranger, in)
	var ve *ValidationError
	require.ErrorAs(t, err, &ve, "another buyer cannot reuse the key")
}

func TestCreateOrder_ReusesExpiredKey(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.fake.Seed("idempotency", idempotency.Record{
		IdempotencyKey: "old-key",
		Status:         idempotency.StatusDone,
		OrderID:        "gone",
		UserID:         buyer.ID,
		CreatedAt:      time.Now().Add(-72 * time.Hour),
		ExpiresAt:      time.Now().Add(-24 * time.Hour).Unix(),
	}))

	o, replayed, err := f.tracker.CreateOrder(ctx, buyer, CreateOrderInput{
		Items:           []OrderLine{{ItemID: "m1", Quantity: 1}},
		ShippingAddress: address(),
		IdempotencyKey:  "old-key",
	})
	require.NoError(t, err)
	assert.False(t, replayed)
	assert.NotEqual(t, "gone", o.OrderID)
	assert.Equal(t, 9, f.stock(t, "m1"))

	again, replayed, err := f.tracker.CreateOrder(ctx, buyer, CreateOrderInput{
		Items:           []OrderLine{{ItemID: "m1", Quantity: 1}},
		ShippingAddress: address(),
		IdempotencyKey:  "old-key",
	})
	require.NoError(t, err)
	assert.True(t, replayed, "the reclaimed key now points at the new order")
	assert.Equal(t, o.OrderID, again.OrderID)
}

func TestCreateOrder_ConcurrentReplayCreatesOneOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	in := CreateOrderInput{
		Items:           []OrderLine{{ItemID: "m1", Quantity: 1}},
		ShippingAddress: address(),
		IdempotencyKey:  "double-click",
	}

	ids := make(chan string, 4)
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			o, _, err := f.tracker.CreateOrder(ctx, buyer, in)
			if assert.NoError(t, err) {
				ids <- o.OrderID
			}
		}()
	}
	wg.Wait()
	close(ids)

	seen := map[string]bool{}
	for id := range ids {
		seen[id] = true
	}
	assert.Len(t, seen, 1)
	assert.Equal(t, 9, f.stock(t, "m1"))
}

func TestCreateOrder_NotificationFailureDoesNotFail(t *testing.T) {
	f := newFixture(t)
	f.notifier.err = errors.New("webhook down")

	o := f.placeOrder(t)
	assert.Equal(t, StatusPending, f.stored(t, o.OrderID).Status)
	assert.Equal(t, []string{notify.KindOrderCreated}, f.metrics.failures)
}

func TestCreateOrder_PersistenceError(t *testing.T) {
	f := newFixture(t)
	f.fake.FailOn("TransactWriteItems", errors.New("service unavailable"))
	_, _, err := f.tracker.CreateOrder(context.Background(), buyer, CreateOrderInput{
		Items:           []OrderLine{{ItemID: "m1", Quantity: 1}},
		ShippingAddress: address(),
	})
	var pe *PersistenceError
	require.ErrorAs(t, err, &pe)
	assert.Contains(t, pe.Error(), "service unavailable")
	assert.Empty(t, f.notifier.all())
}

func TestAssignDeliveryPerson(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	o := f.placeOrder(t)

	updated, err := f.tracker.AssignDeliveryPerson(ctx, admin, o.OrderID, "d1")
	require.NoError(t, err)
	assert.Equal(t, StatusReadyForDelivery, updated.Status)
	assert.Equal(t, "d1", updated.DeliveryPersonID)
	assert.Equal(t, "Ravi", updated.DeliveryPersonName)
	assert.Empty(t, updated.DeliveryOTP, "admin does not see the OTP")

	stored := f.stored(t, o.OrderID)
	assert.Equal(t, StatusReadyForDelivery, stored.Status)
	require.Len(t, stored.History, 2)
	assert.Equal(t, StatusPending, stored.History[1].From)
	assert.Equal(t, "a1", stored.History[1].ActorID)

	var summary OrderSummary
	_, err = f.fake.Get("user_orders", &summary, "c1", o.OrderID)
	require.NoError(t, err)
	assert.Equal(t, StatusReadyForDelivery, summary.Status)

	sent := f.notifier.all()
	last := sent[len(sent)-1]
	assert.Equal(t, notify.KindDeliveryAssigned, last.Kind)
	assert.Equal(t, "d1", last.RecipientID)
	assert.Equal(t, notify.ChannelPush, last.Channel)
}

func TestAssignDeliveryPerson_Errors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	o := f.placeOrder(t)

	_, err := f.tracker.AssignDeliveryPerson(ctx, buyer, o.OrderID, "d1")
	assert.ErrorIs(t, err, ErrForbidden)

	var nf *NotFoundError
	_, err = f.tracker.AssignDeliveryPerson(ctx, admin, "missing", "d1")
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "order", nf.Kind)

	_, err = f.tracker.AssignDeliveryPerson(ctx, admin, o.OrderID, "ghost")
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "user", nf.Kind)

	var ve *ValidationError
	_, err = f.tracker.AssignDeliveryPerson(ctx, admin, o.OrderID, "c2")
	require.ErrorAs(t, err, &ve)

	assert.Equal(t, StatusPending, f.stored(t, o.OrderID).Status)
}

func deliverable(t *testing.T, f *fixture) *Order {
	t.Helper()
	ctx := context.Background()
	o := f.placeOrder(t)
	_, err := f.tracker.AssignDeliveryPerson(ctx, admin, o.OrderID, "d1")
	require.NoError(t, err)
	_, err = f.tracker.UpdateOrderStatus(ctx, courier, o.OrderID, StatusPickedUp, "")
	require.NoError(t, err)
	_, err = f.tracker.UpdateOrderStatus(ctx, courier, o.OrderID, StatusOutForDelivery, "")
	require.NoError(t, err)
	return o
}

func TestUpdateOrderStatus_DeliveredWithWrongOtp(t *testing.T) {
	f := newFixture(t)
	o := deliverable(t, f)
	writes := f.fake.Calls("UpdateItem")

	_, err := f.tracker.UpdateOrderStatus(context.Background(), courier, o.OrderID, StatusDelivered, "000000")
	require.ErrorIs(t, err, ErrInvalidOtp)

	_, err = f.tracker.UpdateOrderStatus(context.Background(), courier, o.OrderID, StatusDelivered, "")
	require.ErrorIs(t, err, ErrInvalidOtp)

	assert.Equal(t, StatusOutForDelivery, f.stored(t, o.OrderID).Status)
	assert.Equal(t, writes, f.fake.Calls("UpdateItem"), "no write on OTP mismatch")
}

func TestUpdateOrderStatus_DeliveredWithCorrectOtp(t *testing.T) {
	f := newFixture(t)
	o := deliverable(t, f)

	updated, err := f.tracker.UpdateOrderStatus(context.Background(), courier, o.OrderID, StatusDelivered, "123456")
	require.NoError(t, err)
	assert.Equal(t, StatusDelivered, updated.Status)
	assert.Equal(t, StatusDelivered, f.stored(t, o.OrderID).Status)
	assert.Contains(t, f.metrics.transitions, StatusOutForDelivery+"->"+StatusDelivered)

	sent := f.notifier.all()
	require.GreaterOrEqual(t, len(sent), 2)
	buyerMsg, courierMsg := sent[len(sent)-2], sent[len(sent)-1]
	assert.Equal(t, "c1", buyerMsg.RecipientID)
	assert.Equal(t, "d1", courierMsg.RecipientID)
	assert.Equal(t, notify.ChannelPush, courierMsg.Channel)
}

func TestUpdateOrderStatus_AdminStillNeedsOtp(t *testing.T) {
	f := newFixture(t)
	o := f.placeOrder(t)

	_, err := f.tracker.UpdateOrderStatus(context.Background(), admin, o.OrderID, StatusDelivered, "999999")
	require.ErrorIs(t, err, ErrInvalidOtp)

	updated, err := f.tracker.UpdateOrderStatus(context.Background(), admin, o.OrderID, StatusDelivered, "123456")
	require.NoError(t, err)
	assert.Equal(t, StatusDelivered, updated.Status)
}

func TestUpdateOrderStatus_TransitionTable(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	o := f.placeOrder(t)
	_, err := f.tracker.AssignDeliveryPerson(ctx, admin, o.OrderID, "d1")
	require.NoError(t, err)

	var te *TransitionError
	_, err = f.tracker.UpdateOrderStatus(ctx, courier, o.OrderID, StatusPending, "")
	require.ErrorAs(t, err, &te, "delivery staff cannot move backward")
	assert.Equal(t, StatusReadyForDelivery, te.From)

	_, err = f.tracker.UpdateOrderStatus(ctx, courier, o.OrderID, StatusOutForDelivery, "")
	require.ErrorAs(t, err, &te, "delivery staff cannot skip Picked Up")

	updated, err := f.tracker.UpdateOrderStatus(ctx, admin, o.OrderID, StatusProcessing, "")
	require.NoError(t, err, "admin may override the table")
	assert.Equal(t, StatusProcessing, updated.Status)
}

func TestUpdateOrderStatus_NothingLeavesDelivered(t *testing.T) {
	f := newFixture(t)
	o := deliverable(t, f)
	_, err := f.tracker.UpdateOrderStatus(context.Background(), courier, o.OrderID, StatusDelivered, "123456")
	require.NoError(t, err)

	var te *TransitionError
	_, err = f.tracker.UpdateOrderStatus(context.Background(), admin, o.OrderID, StatusCancelled, "")
	require.ErrorAs(t, err, &te)
	_, err = f.tracker.AssignDeliveryPerson(context.Background(), admin, o.OrderID, "d2")
	require.ErrorAs(t, err, &te)
	assert.Equal(t, StatusDelivered, f.stored(t, o.OrderID).Status)
}

func TestUpdateOrderStatus_Authorization(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	o := f.placeOrder(t)

	_, err := f.tracker.UpdateOrderStatus(ctx, stranger, o.OrderID, StatusCancelled, "")
	assert.ErrorIs(t, err, ErrForbidden)
	_, err = f.tracker.UpdateOrderStatus(ctx, guest, o.OrderID, StatusCancelled, "")
	assert.ErrorIs(t, err, ErrForbidden)
	_, err = f.tracker.UpdateOrderStatus(ctx, courier, o.OrderID, StatusProcessing, "")
	assert.ErrorIs(t, err, ErrForbidden, "unassigned delivery staff")
	_, err = f.tracker.UpdateOrderStatus(ctx, buyer, o.OrderID, StatusApproved, "")
	assert.ErrorIs(t, err, ErrForbidden, "buyers may only cancel")

	updated, err := f.tracker.UpdateOrderStatus(ctx, buyer, o.OrderID, StatusCancelled, "")
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, updated.Status)
	assert.Equal(t, "123456", updated.DeliveryOTP, "the buyer keeps seeing the OTP")
}

func TestUpdateOrderStatus_ValidationAndNotFound(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	var ve *ValidationError
	_, err := f.tracker.UpdateOrderStatus(ctx, admin, "o1", "Teleported", "")
	require.ErrorAs(t, err, &ve)

	var nf *NotFoundError
	_, err = f.tracker.UpdateOrderStatus(ctx, admin, "missing", StatusApproved, "")
	require.ErrorAs(t, err, &nf)
}

// racingClient lets another writer move the order right after the next read.
type racingClient struct {
	*dynamotest.Fake
	afterGet func()
}

func (r *racingClient) GetItem(ctx context.Context, in *dyn.GetItemInput, optFns ...func(*dyn.Options)) (*dyn.GetItemOutput, error) {
	out, err := r.Fake.GetItem(ctx, in, optFns...)
	if r.afterGet != nil {
		hook := r.afterGet
		r.afterGet = nil
		hook()
	}
	return out, err
}

func TestUpdateOrderStatus_ConcurrentWriteDetected(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	o := f.placeOrder(t)

	direct := f.tracker.orders
	f.tracker.orders = NewStore(&racingClient{
		Fake: f.fake,
		afterGet: func() {
			_, err := direct.UpdateStatus(ctx, o.OrderID, StatusChange{From: StatusPending, To: StatusRejected, ActorID: "a1"})
			require.NoError(t, err)
		},
	}, "orders", "delivery_person_id-index")

	_, err := f.tracker.UpdateOrderStatus(ctx, admin, o.OrderID, StatusApproved, "")
	require.ErrorIs(t, err, ErrConcurrentUpdate)
	assert.Equal(t, StatusRejected, f.stored(t, o.OrderID).Status, "the first writer wins")

	_, err = direct.UpdateStatus(ctx, o.OrderID, StatusChange{From: StatusPending, To: StatusApproved})
	assert.ErrorIs(t, err, ErrStatusMismatch)
}

func TestUpdateOrderStatus_NotificationFailureDoesNotFail(t *testing.T) {
	f := newFixture(t)
	o := f.placeOrder(t)
	f.notifier.err = errors.New("push gateway down")

	updated, err := f.tracker.UpdateOrderStatus(context.Background(), admin, o.OrderID, StatusApproved, "")
	require.NoError(t, err)
	assert.Equal(t, StatusApproved, updated.Status)
	assert.Equal(t, StatusApproved, f.stored(t, o.OrderID).Status)
}

func TestGetOrder_Visibility(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	o := f.placeOrder(t)
	_, err := f.tracker.AssignDeliveryPerson(ctx, admin, o.OrderID, "d1")
	require.NoError(t, err)

	got, err := f.tracker.GetOrder(ctx, buyer, o.OrderID)
	require.NoError(t, err)
	assert.Equal(t, "123456", got.DeliveryOTP)

	got, err = f.tracker.GetOrder(ctx, courier, o.OrderID)
	require.NoError(t, err)
	assert.Empty(t, got.DeliveryOTP)

	got, err = f.tracker.GetOrder(ctx, admin, o.OrderID)
	require.NoError(t, err)
	assert.Empty(t, got.DeliveryOTP)

	_, err = f.tracker.GetOrder(ctx, stranger, o.OrderID)
	assert.ErrorIs(t, err, ErrForbidden)
	_, err = f.tracker.GetOrder(ctx, courier2, o.OrderID)
	assert.ErrorIs(t, err, ErrForbidden)

	var nf *NotFoundError
	_, err = f.tracker.GetOrder(ctx, admin, "missing")
	require.ErrorAs(t, err, &nf)
}

func TestListForDeliveryPerson(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	first := f.placeOrder(t)
	second := f.placeOrder(t)
	f.placeOrder(t)
	_, err := f.tracker.AssignDeliveryPerson(ctx, admin, first.OrderID, "d1")
	require.NoError(t, err)
	_, err = f.tracker.AssignDeliveryPerson(ctx, admin, second.OrderID, "d2")
	require.NoError(t, err)

	list, err := f.tracker.ListForDeliveryPerson(ctx, courier, "d1")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, first.OrderID, list[0].OrderID)
	assert.Empty(t, list[0].DeliveryOTP)

	_, err = f.tracker.ListForDeliveryPerson(ctx, courier, "d2")
	assert.ErrorIs(t, err, ErrForbidden)

	list, err = f.tracker.ListForDeliveryPerson(ctx, admin, "d2")
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestListForUser(t *testing.T) {
	f := newFixture(t)
	f.placeOrder(t)
	f.placeOrder(t)

	list, err := f.tracker.ListForUser(context.Background(), "c1")
	require.NoError(t, err)
	assert.Len(t, list, 2)

	list, err = f.tracker.ListForUser(context.Background(), GuestUserID)
	require.NoError(t, err)
	assert.Empty(t, list)
}
