package profile

import "time"

// Plan is the entitlement a user currently holds
type Plan string

// Defining the two plans a Profile can be on
const (
	PlanFree    Plan = "free"
	PlanPremium Plan = "premium"
)

// Valid reports whether p is one of the defined plans
func (p Plan) Valid() bool {
	return p == PlanFree || p == PlanPremium
}

// Profile describes the billing state of a user. It is provisioned at sign up, outside of this service
type Profile struct {
	UserID            string    `json:"userId" gorm:"primaryKey"`                    // Stable identifier issued by the identity provider
	Name              string    `json:"name"`                                        // Display name, used when creating the billing customer
	BillingCustomerID *string   `json:"billingCustomerId" gorm:"uniqueIndex"`        // Corresponds to Stripe's Customer ID. Set once by Bootstrap
	Plan              Plan      `json:"plan" gorm:"type:text;not null;default:free"` // Only written by the webhook reconciler
	UpdatedAt         time.Time `json:"updatedAt"`
}

// TableName keeps the table name stable regardless of gorm's naming strategy
func (Profile) TableName() string {
	return "profiles"
}

// HasBillingCustomer reports whether a billing customer was already assigned
func (p *Profile) HasBillingCustomer() bool {
	return p.BillingCustomerID != nil && *p.BillingCustomerID != ""
}
