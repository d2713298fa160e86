package catalog

import "time"

// Kind tags a catalog item as a medicine or a generic product.
type Kind string

const (
	KindMedicine Kind = "medicine"
	KindProduct  Kind = "product"
)

// Valid reports whether k is a known variant.
func (k Kind) Valid() bool {
	return k == KindMedicine || k == KindProduct
}

// Item is a purchasable medicine or product. Products carry
// RequiresPrescription=false; the variant is always read from Kind.
type Item struct {
	ID                   string     `dynamodbav:"item_id" json:"id"` // PK
	Kind                 Kind       `dynamodbav:"kind" json:"kind"`
	Name                 string     `dynamodbav:"name" json:"name"`
	GenericName          string     `dynamodbav:"generic_name,omitempty" json:"genericName,omitempty"`
	Category             string     `dynamodbav:"category,omitempty" json:"category,omitempty"`
	Manufacturer         string     `dynamodbav:"manufacturer,omitempty" json:"manufacturer,omitempty"`
	Dosage               string     `dynamodbav:"dosage,omitempty" json:"dosage,omitempty"`
	SideEffects          string     `dynamodbav:"side_effects,omitempty" json:"sideEffects,omitempty"`
	Price                float64    `dynamodbav:"price" json:"price"`
	StockQuantity        int        `dynamodbav:"stock_quantity" json:"stockQuantity"`
	RequiresPrescription bool       `dynamodbav:"requires_prescription" json:"requiresPrescription"`
	ExpiryDate           *time.Time `dynamodbav:"expiry_date,omitempty" json:"expiryDate,omitempty"`
	ManufacturingDate    *time.Time `dynamodbav:"manufacturing_date,omitempty" json:"manufacturingDate,omitempty"`
}

// InStock reports whether the item can be purchased.
func (it Item) InStock() bool {
	return it.StockQuantity > 0
}

// Expired reports whether the item is past its expiry date at now.
func (it Item) Expired(now time.Time) bool {
	return it.ExpiryDate != nil && it.ExpiryDate.Before(now)
}
