package subscription

import (
	"context"
	"fmt"
	"strings"

	"github.com/zllovesuki/subsync/billing"
	"github.com/zllovesuki/subsync/profile"

	"go.uber.org/zap"
)

// DefaultOrigin is used when the caller did not tell where it was served from
const DefaultOrigin = "http://localhost:3000"

// Flow identifies which hosted page a Redirect points to
type Flow string

// Defining the two redirect flows
const (
	FlowCheckout Flow = "checkout"
	FlowPortal   Flow = "portal"
)

// BootstrapOptions contains the dependencies of Bootstrap
type BootstrapOptions struct {
	Provider      billing.Provider
	Store         ProfileStore
	PriceID       string // The single price offered at checkout
	DefaultOrigin string
	Logger        *zap.Logger
	Metrics       *Metrics // Optional
}

// Bootstrap resolves "manage my subscription" requests into a provider redirect
type Bootstrap struct {
	BootstrapOptions
}

// ManageRequest is an authenticated request to manage the subscription of a user
type ManageRequest struct {
	UserID string
	Email  string
	Name   string // Optional display name, the profile name is used otherwise
	Origin string // Base URL the hosted pages return to
}

// Redirect is where the caller should send the user next
type Redirect struct {
	URL        string
	Flow       Flow
	CustomerID string
}

// NewBootstrap returns a Bootstrap. A missing price is a start up misconfiguration
func NewBootstrap(option BootstrapOptions) (*Bootstrap, error) {
	if option.Provider == nil {
		return nil, fmt.Errorf("nil Provider is invalid")
	}
	if option.Store == nil {
		return nil, fmt.Errorf("nil Store is invalid")
	}
	if option.Logger == nil {
		return nil, fmt.Errorf("nil Logger is invalid")
	}
	if option.PriceID == "" {
		return nil, Misconfigured("PriceID")
	}
	if option.DefaultOrigin == "" {
		option.DefaultOrigin = DefaultOrigin
	}
	return &Bootstrap{
		BootstrapOptions: option,
	}, nil
}

// Manage creates the billing customer on first use, then returns a billing portal
// redirect for premium users and a checkout redirect for everyone else.
// Bootstrap never changes the plan; that only happens once the provider confirms via webhook
func (b *Bootstrap) Manage(ctx context.Context, req ManageRequest) (*Redirect, error) {
	redirect, err := b.manage(ctx, req)
	if err != nil {
		b.Metrics.observeManage("", err)
		return nil, err
	}
	b.Metrics.observeManage(redirect.Flow, nil)
	return redirect, nil
}

func (b *Bootstrap) manage(ctx context.Context, req ManageRequest) (*Redirect, error) {
	if req.UserID == "" {
		return nil, newError(KindAuthenticationRequired, "Authentication failed: invalid or missing user", nil)
	}
	if req.Email == "" {
		return nil, newError(KindUnknown, "User email not found", nil)
	}

	logger := b.Logger.With(zap.String("UserID", req.UserID))

	p, err := b.Store.Get(ctx, req.UserID)
	if err != nil {
		return nil, newError(KindStorageFailure, "Failed to fetch profile", err)
	}
	if p == nil {
		return nil, newError(KindProfileNotFound, "User profile not found", nil)
	}

	customerID, err := b.ensureCustomer(ctx, logger, p, req)
	if err != nil {
		return nil, err
	}
	logger = logger.With(zap.String("CustomerID", customerID))

	origin := b.origin(req.Origin)

	if p.Plan == profile.PlanPremium {
		logger.Info("Creating billing portal session")
		url, err := b.Provider.CreateBillingPortalSession(ctx, billing.PortalParams{
			CustomerID: customerID,
			ReturnURL:  origin + "/profile",
		})
		if err != nil {
			return nil, newError(KindProviderUnavailable, "Unable to create billing portal session", err)
		}
		return &Redirect{
			URL:        url,
			Flow:       FlowPortal,
			CustomerID: customerID,
		}, nil
	}

	logger.Info("Creating checkout session")
	url, err := b.Provider.CreateCheckoutSession(ctx, billing.CheckoutParams{
		CustomerID: customerID,
		PriceID:    b.PriceID,
		SuccessURL: origin + "/profile?success=true",
		CancelURL:  origin + "/profile?canceled=true",
		UserID:     req.UserID,
	})
	if err != nil {
		return nil, newError(KindProviderUnavailable, "Unable to create checkout session", err)
	}
	return &Redirect{
		URL:        url,
		Flow:       FlowCheckout,
		CustomerID: customerID,
	}, nil
}

// ensureCustomer returns the billing customer of the profile, creating one if needed.
// Two concurrent first calls may both create a customer; the last persisted ID wins
func (b *Bootstrap) ensureCustomer(ctx context.Context, logger *zap.Logger, p *profile.Profile, req ManageRequest) (string, error) {
	if p.HasBillingCustomer() {
		return *p.BillingCustomerID, nil
	}

	name := req.Name
	if name == "" {
		name = p.Name
	}

	logger.Info("Creating new billing customer")
	customerID, err := b.Provider.CreateCustomer(ctx, billing.CustomerParams{
		UserID: req.UserID,
		Email:  req.Email,
		Name:   name,
	})
	if err != nil {
		return "", newError(KindProviderUnavailable, "Unable to create billing customer", err)
	}

	// the ID is usable for this request either way; a later call retries the persist
	if err := b.Store.SetBillingCustomerID(ctx, req.UserID, customerID); err != nil {
		logger.Error("Failed to update profile with billing customer id",
			zap.String("CustomerID", customerID),
			zap.Error(err),
		)
	}

	return customerID, nil
}

func (b *Bootstrap) origin(requested string) string {
	origin := strings.TrimRight(strings.TrimSpace(requested), "/")
	if origin == "" {
		return strings.TrimRight(b.DefaultOrigin, "/")
	}
	return origin
}
