package validation

import "github.com/imrishuroy/pharmacy-orderflow/internal/orders"

// Item represents a single requested order line. Prices are taken from the
// catalog, never from the client.
type Item struct {
	ID       string `json:"id" validate:"required"`             // catalog item id
	Quantity int    `json:"quantity" validate:"required,min=1"` // must be >= 1
}

// Address is the shipping address of a checkout.
type Address struct {
	FullName   string `json:"fullName" validate:"required"`
	Phone      string `json:"phone" validate:"required,min=7,max=20"`
	Line1      string `json:"line1" validate:"required"`
	Line2      string `json:"line2,omitempty"`
	City       string `json:"city" validate:"required"`
	State      string `json:"state,omitempty"`
	PostalCode string `json:"postalCode" validate:"required"`
}

// CreateOrderRequest is the payload for POST /orders
type CreateOrderRequest struct {
	Items           []Item   `json:"items" validate:"required,min=1,max=50,dive"` // at least one item
	ShippingAddress *Address `json:"shippingAddress" validate:"required"`
}

// Input converts the request into the tracker's checkout input.
func (r CreateOrderRequest) Input(idempotencyKey string) orders.CreateOrderInput {
	in := orders.CreateOrderInput{IdempotencyKey: idempotencyKey}
	for _, it := range r.Items {
		in.Items = append(in.Items, orders.OrderLine{ItemID: it.ID, Quantity: it.Quantity})
	}
	if a := r.ShippingAddress; a != nil {
		in.ShippingAddress = &orders.ShippingAddress{
			FullName:   a.FullName,
			Phone:      a.Phone,
			Line1:      a.Line1,
			Line2:      a.Line2,
			City:       a.City,
			State:      a.State,
			PostalCode: a.PostalCode,
		}
	}
	return in
}

// AssignRequest is the payload for PUT /orders/:id/assign
type AssignRequest struct {
	DeliveryPersonID string `json:"deliveryPersonId" validate:"required"`
}

// UpdateStatusRequest is the payload for PUT /orders/:id/status
type UpdateStatusRequest struct {
	Status string `json:"status" validate:"required,order_status"`
	OTP    string `json:"otp,omitempty" validate:"omitempty,len=6,numeric"` // required for Delivered
}
