package billing

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	extErrors "github.com/pkg/errors"
	"github.com/stripe/stripe-go/v72"
	"github.com/stripe/stripe-go/v72/client"
	"github.com/stripe/stripe-go/v72/webhook"
	"go.uber.org/zap"
)

var _ Provider = &StripeProvider{}

// StripeOptions contains the configuration for StripeProvider
type StripeOptions struct {
	SecretKey     string
	WebhookSecret string
	Logger        *zap.Logger
	Backends      *stripe.Backends // Optional, overrides the default API backends
}

// StripeProvider implements Provider on top of the Stripe API
type StripeProvider struct {
	api           *client.API
	webhookSecret string
	logger        *zap.Logger
}

// NewStripeProvider returns a Provider backed by its own Stripe client rather than the package-level key
func NewStripeProvider(option StripeOptions) (*StripeProvider, error) {
	if option.SecretKey == "" {
		return nil, ErrMissingSecretKey
	}
	if option.WebhookSecret == "" {
		return nil, ErrMissingWebhookSecret
	}
	if option.Logger == nil {
		return nil, fmt.Errorf("nil Logger is invalid")
	}
	sc := &client.API{}
	sc.Init(option.SecretKey, option.Backends)
	return &StripeProvider{
		api:           sc,
		webhookSecret: option.WebhookSecret,
		logger:        option.Logger,
	}, nil
}

// CreateCustomer will create a new customer in Stripe tagged with the user ID.
// Requests are idempotent per user for as long as Stripe keeps idempotency keys (24 hours)
func (p *StripeProvider) CreateCustomer(ctx context.Context, req CustomerParams) (string, error) {
	params := &stripe.CustomerParams{
		Params: stripe.Params{
			Context: ctx,
		},
		Email: stripe.String(req.Email),
	}
	if req.Name != "" {
		params.Name = stripe.String(req.Name)
	}
	params.AddMetadata("user_id", req.UserID)
	params.SetIdempotencyKey("customer-" + req.UserID)

	c, err := p.api.Customers.New(params)
	if err != nil {
		p.logger.Error("Stripe returned error",
			zap.String("UserID", req.UserID),
			zap.Error(err),
		)
		return "", extErrors.Wrap(err, "Cannot create a new Customer")
	}
	return c.ID, nil
}

// CreateCheckoutSession starts a subscription checkout for a single price
func (p *StripeProvider) CreateCheckoutSession(ctx context.Context, req CheckoutParams) (string, error) {
	params := &stripe.CheckoutSessionParams{
		Params: stripe.Params{
			Context: ctx,
		},
		Customer: stripe.String(req.CustomerID),
		Mode:     stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Price:    stripe.String(req.PriceID),
				Quantity: stripe.Int64(1),
			},
		},
		SuccessURL:        stripe.String(req.SuccessURL),
		CancelURL:         stripe.String(req.CancelURL),
		ClientReferenceID: stripe.String(req.UserID),
	}
	params.AddMetadata("user_id", req.UserID)

	session, err := p.api.CheckoutSessions.New(params)
	if err != nil {
		p.logger.Error("Stripe returned error",
			zap.String("CustomerID", req.CustomerID),
			zap.Error(err),
		)
		return "", extErrors.Wrap(err, "Cannot create checkout session")
	}
	return session.URL, nil
}

// CreateBillingPortalSession opens the customer portal for an existing subscriber
func (p *StripeProvider) CreateBillingPortalSession(ctx context.Context, req PortalParams) (string, error) {
	params := &stripe.BillingPortalSessionParams{
		Params: stripe.Params{
			Context: ctx,
		},
		Customer:  stripe.String(req.CustomerID),
		ReturnURL: stripe.String(req.ReturnURL),
	}

	session, err := p.api.BillingPortalSessions.New(params)
	if err != nil {
		p.logger.Error("Stripe returned error",
			zap.String("CustomerID", req.CustomerID),
			zap.Error(err),
		)
		return "", extErrors.Wrap(err, "Cannot create billing portal session")
	}
	return session.URL, nil
}

// ParseEvent verifies the Stripe-Signature header against the raw payload and
// decodes the event object into one of the Event variants
func (p *StripeProvider) ParseEvent(payload []byte, signature string) (Event, error) {
	if signature == "" {
		return nil, fmt.Errorf("%w: missing signature", ErrInvalidSignature)
	}
	event, err := webhook.ConstructEvent(payload, signature, p.webhookSecret)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	return decodeStripeEvent(&event)
}

func decodeStripeEvent(event *stripe.Event) (Event, error) {
	env := Envelope{
		ID:   event.ID,
		Type: event.Type,
	}

	var raw json.RawMessage
	if event.Data != nil {
		raw = event.Data.Raw
	}

	switch event.Type {
	case TypeCheckoutCompleted:
		var session stripe.CheckoutSession
		if err := unmarshalObject(raw, &session); err != nil {
			return nil, err
		}
		userID := session.ClientReferenceID
		if userID == "" {
			userID = session.Metadata["user_id"]
		}
		return CheckoutCompleted{
			Envelope:   env,
			SessionID:  session.ID,
			CustomerID: customerID(session.Customer),
			Mode:       string(session.Mode),
			UserID:     userID,
		}, nil

	case TypeSubscriptionUpdated:
		var sub stripe.Subscription
		if err := unmarshalObject(raw, &sub); err != nil {
			return nil, err
		}
		return SubscriptionUpdated{
			Envelope:       env,
			SubscriptionID: sub.ID,
			CustomerID:     customerID(sub.Customer),
			Status:         string(sub.Status),
		}, nil

	case TypeSubscriptionDeleted:
		var sub stripe.Subscription
		if err := unmarshalObject(raw, &sub); err != nil {
			return nil, err
		}
		return SubscriptionDeleted{
			Envelope:       env,
			SubscriptionID: sub.ID,
			CustomerID:     customerID(sub.Customer),
		}, nil

	case TypeSubscriptionTrialEnding:
		var sub stripe.Subscription
		if err := unmarshalObject(raw, &sub); err != nil {
			return nil, err
		}
		var trialEnd time.Time
		if sub.TrialEnd > 0 {
			trialEnd = time.Unix(sub.TrialEnd, 0).UTC()
		}
		return TrialWillEnd{
			Envelope:       env,
			SubscriptionID: sub.ID,
			CustomerID:     customerID(sub.Customer),
			TrialEnd:       trialEnd,
		}, nil

	case TypeInvoicePaymentSucceeded, TypeInvoicePaymentFailed:
		var inv stripe.Invoice
		if err := unmarshalObject(raw, &inv); err != nil {
			return nil, err
		}
		var subID string
		if inv.Subscription != nil {
			subID = inv.Subscription.ID
		}
		if event.Type == TypeInvoicePaymentFailed {
			return InvoicePaymentFailed{
				Envelope:       env,
				InvoiceID:      inv.ID,
				CustomerID:     customerID(inv.Customer),
				SubscriptionID: subID,
			}, nil
		}
		return InvoicePaymentSucceeded{
			Envelope:       env,
			InvoiceID:      inv.ID,
			CustomerID:     customerID(inv.Customer),
			SubscriptionID: subID,
		}, nil

	default:
		return Unrecognized{Envelope: env}, nil
	}
}

func unmarshalObject(raw json.RawMessage, v interface{}) error {
	if len(raw) == 0 {
		return fmt.Errorf("%w: empty data object", ErrMalformedEvent)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	return nil
}

func customerID(c *stripe.Customer) string {
	if c == nil {
		return ""
	}
	return c.ID
}
