package subscription

import (
	"context"

	"github.com/zllovesuki/subsync/profile"
)

var _ ProfileStore = &profile.Manager{}

// ProfileStore is the part of the record store used by Bootstrap and Reconciler
type ProfileStore interface {
	// Get returns nil without error when the user has no profile
	Get(ctx context.Context, userID string) (*profile.Profile, error)
	SetBillingCustomerID(ctx context.Context, userID, customerID string) error
	// SetPlanByCustomerID returns how many profiles were updated
	SetPlanByCustomerID(ctx context.Context, customerID string, plan profile.Plan) (int64, error)
}

// EventLedger remembers webhook events that were already applied
type EventLedger interface {
	Seen(ctx context.Context, eventID string) (bool, error)
	Mark(ctx context.Context, eventID string) error
}
