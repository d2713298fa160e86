package users

// Roles recognised by the lifecycle authorization checks.
const (
	RoleAdmin    = "admin"
	RoleDelivery = "delivery"
	RoleCustomer = "customer"
)

// User is a registered account: a customer, an admin or a delivery person.
type User struct {
	UserID      string `dynamodbav:"user_id" json:"id"` // PK
	DisplayName string `dynamodbav:"display_name" json:"displayName"`
	Email       string `dynamodbav:"email,omitempty" json:"email,omitempty"`
	Phone       string `dynamodbav:"phone,omitempty" json:"phone,omitempty"`
	Role        string `dynamodbav:"role" json:"role"`
	PushToken   string `dynamodbav:"push_token,omitempty" json:"-"`
}
