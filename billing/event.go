package billing

import "time"

// Event types delivered by the provider that the reconciler understands
const (
	TypeCheckoutCompleted       = "checkout.session.completed"
	TypeSubscriptionUpdated     = "customer.subscription.updated"
	TypeSubscriptionDeleted     = "customer.subscription.deleted"
	TypeSubscriptionTrialEnding = "customer.subscription.trial_will_end"
	TypeInvoicePaymentSucceeded = "invoice.payment_succeeded"
	TypeInvoicePaymentFailed    = "invoice.payment_failed"
)

// Event is a verified webhook event. The set of implementations is closed:
// CheckoutCompleted, SubscriptionUpdated, SubscriptionDeleted, TrialWillEnd,
// InvoicePaymentSucceeded, InvoicePaymentFailed and Unrecognized
type Event interface {
	EventID() string
	EventType() string
	isEvent()
}

// Envelope carries the fields shared by every event
type Envelope struct {
	ID   string // Provider assigned event ID
	Type string // Raw provider event type
}

func (e Envelope) EventID() string   { return e.ID }
func (e Envelope) EventType() string { return e.Type }
func (Envelope) isEvent()            {}

// CheckoutCompleted is sent when a hosted checkout finished
type CheckoutCompleted struct {
	Envelope
	SessionID  string
	CustomerID string
	Mode       string // "subscription", "payment" or "setup"
	UserID     string // Correlation tag set when the session was created
}

// SubscriptionUpdated is sent on any subscription change, including status transitions
type SubscriptionUpdated struct {
	Envelope
	SubscriptionID string
	CustomerID     string
	Status         string
}

// SubscriptionDeleted is sent when a subscription ended
type SubscriptionDeleted struct {
	Envelope
	SubscriptionID string
	CustomerID     string
}

// TrialWillEnd is sent a few days before a trial ends
type TrialWillEnd struct {
	Envelope
	SubscriptionID string
	CustomerID     string
	TrialEnd       time.Time
}

// InvoicePaymentSucceeded is sent when an invoice was paid
type InvoicePaymentSucceeded struct {
	Envelope
	InvoiceID      string
	CustomerID     string
	SubscriptionID string // Empty for one-off invoices
}

// InvoicePaymentFailed is sent when collecting an invoice failed
type InvoicePaymentFailed struct {
	Envelope
	InvoiceID      string
	CustomerID     string
	SubscriptionID string
}

// Unrecognized is any event type this service does not act upon
type Unrecognized struct {
	Envelope
}
