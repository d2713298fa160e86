package orders

import "time"

// Order statuses. The capitalised ones are the labels shown to customers
// and delivery staff and are stored verbatim.
const (
	StatusPending          = "pending"
	StatusProcessing       = "processing"
	StatusApproved         = "Approved"
	StatusReadyForDelivery = "Ready for Delivery"
	StatusPickedUp         = "Picked Up"
	StatusOutForDelivery   = "Out for Delivery"
	StatusDelivered        = "Delivered"
	StatusCancelled        = "cancelled"
	StatusRejected         = "rejected"
)

// GuestUserID is stored as the owner of orders placed without an account.
const GuestUserID = "guest"

// MaxLineItems bounds the distinct items of one order so the create
// transaction stays under DynamoDB's 100 action limit.
const MaxLineItems = 50

// LineItem is one purchased catalog item. Name and Price are copied from the
// catalog at checkout.
type LineItem struct {
	ItemID               string  `dynamodbav:"item_id" json:"id"`
	Name                 string  `dynamodbav:"name" json:"name"`
	Price                float64 `dynamodbav:"price" json:"price"`
	Quantity             int     `dynamodbav:"quantity" json:"quantity"`
	RequiresPrescription bool    `dynamodbav:"requires_prescription" json:"requiresPrescription"`
}

// ShippingAddress is where the order is delivered.
type ShippingAddress struct {
	FullName   string `dynamodbav:"full_name" json:"fullName"`
	Phone      string `dynamodbav:"phone" json:"phone"`
	Line1      string `dynamodbav:"line1" json:"line1"`
	Line2      string `dynamodbav:"line2,omitempty" json:"line2,omitempty"`
	City       string `dynamodbav:"city" json:"city"`
	State      string `dynamodbav:"state,omitempty" json:"state,omitempty"`
	PostalCode string `dynamodbav:"postal_code" json:"postalCode"`
}

// StatusChange records one status write.
type StatusChange struct {
	From      string    `dynamodbav:"from" json:"from"`
	To        string    `dynamodbav:"to" json:"to"`
	ActorID   string    `dynamodbav:"actor_id" json:"actorId"`
	ActorRole string    `dynamodbav:"actor_role" json:"actorRole"`
	At        time.Time `dynamodbav:"at" json:"at"`
}

// Order represents the item stored in the Orders DynamoDB table.
type Order struct {
	OrderID              string          `dynamodbav:"order_id" json:"id"` // PK
	UserID               string          `dynamodbav:"user_id" json:"userId"`
	Items                []LineItem      `dynamodbav:"items" json:"items"`
	ShippingAddress      ShippingAddress `dynamodbav:"shipping_address" json:"shippingAddress"`
	TotalAmount          float64         `dynamodbav:"total_amount" json:"totalAmount"`
	RequiresPrescription bool            `dynamodbav:"requires_prescription" json:"requiresPrescription"`
	Status               string          `dynamodbav:"status" json:"status"`
	DeliveryPersonID     string          `dynamodbav:"delivery_person_id,omitempty" json:"deliveryPersonId,omitempty"` // GSI
	DeliveryPersonName   string          `dynamodbav:"delivery_person_name,omitempty" json:"deliveryPersonName,omitempty"`
	DeliveryOTP          string          `dynamodbav:"delivery_otp" json:"deliveryOtp,omitempty"`
	History              []StatusChange  `dynamodbav:"history" json:"history"`
	CreatedAt            time.Time       `dynamodbav:"created_at" json:"createdAt"`
	UpdatedAt            time.Time       `dynamodbav:"updated_at" json:"updatedAt"`
}

// IsGuest reports whether the order was placed without an account.
func (o *Order) IsGuest() bool {
	return o.UserID == "" || o.UserID == GuestUserID
}

// redacted returns a copy without the delivery OTP.
func (o Order) redacted() Order {
	o.DeliveryOTP = ""
	return o
}

// SummaryItem is the per-item part of an OrderSummary.
type SummaryItem struct {
	ItemID   string `dynamodbav:"item_id" json:"id"`
	Quantity int    `dynamodbav:"quantity" json:"quantity"`
}

// OrderSummary is a row of a registered user's order history.
type OrderSummary struct {
	UserID      string        `dynamodbav:"user_id" json:"userId"`   // PK
	OrderID     string        `dynamodbav:"order_id" json:"orderId"` // SK
	TotalAmount float64       `dynamodbav:"total_amount" json:"totalAmount"`
	ItemCount   int           `dynamodbav:"item_count" json:"itemCount"`
	Items       []SummaryItem `dynamodbav:"items" json:"items"`
	Status      string        `dynamodbav:"status" json:"status"`
	CreatedAt   time.Time     `dynamodbav:"created_at" json:"createdAt"`
}

func summarize(o Order) OrderSummary {
	s := OrderSummary{
		UserID:      o.UserID,
		OrderID:     o.OrderID,
		TotalAmount: o.TotalAmount,
		Status:      o.Status,
		CreatedAt:   o.CreatedAt,
		Items:       make([]SummaryItem, 0, len(o.Items)),
	}
	for _, it := range o.Items {
		s.ItemCount += it.Quantity
		s.Items = append(s.Items, SummaryItem{ItemID: it.ItemID, Quantity: it.Quantity})
	}
	return s
}

// CreateOrderInput is what a buyer submits at checkout. Prices are not
// accepted from the client.
type CreateOrderInput struct {
	Items           []OrderLine
	ShippingAddress *ShippingAddress
	IdempotencyKey  string
}

// OrderLine is a requested item and quantity.
type OrderLine struct {
	ItemID   string
	Quantity int
}
