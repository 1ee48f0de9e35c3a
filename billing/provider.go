package billing

import "context"

// Provider is the capability the subscription core needs from the billing provider.
// It is constructed once at start up and passed explicitly to its consumers
type Provider interface {
	// CreateCustomer registers a new billing customer and returns its ID
	CreateCustomer(ctx context.Context, params CustomerParams) (string, error)
	// CreateCheckoutSession starts a hosted subscription purchase and returns its redirect URL
	CreateCheckoutSession(ctx context.Context, params CheckoutParams) (string, error)
	// CreateBillingPortalSession opens the hosted self-service portal and returns its redirect URL
	CreateBillingPortalSession(ctx context.Context, params PortalParams) (string, error)
	// ParseEvent verifies the signature of a webhook payload and decodes it.
	// Errors match ErrInvalidSignature when the payload cannot be authenticated
	ParseEvent(payload []byte, signature string) (Event, error)
}

// CustomerParams describes the customer to create
type CustomerParams struct {
	UserID string
	Email  string
	Name   string // Optional
}

// CheckoutParams describes a single-price subscription checkout
type CheckoutParams struct {
	CustomerID string
	PriceID    string
	SuccessURL string
	CancelURL  string
	UserID     string // Tagged onto the session for correlation
}

// PortalParams describes a billing portal session
type PortalParams struct {
	CustomerID string
	ReturnURL  string
}
