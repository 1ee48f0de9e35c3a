package subscription

import (
	"context"
	"errors"
	"fmt"

	"github.com/zllovesuki/subsync/billing"
	"github.com/zllovesuki/subsync/profile"

	"go.uber.org/zap"
)

// checkoutModeSubscription is the checkout mode of a subscription purchase
const checkoutModeSubscription = "subscription"

// FailurePolicy decides what a storage failure means for the webhook delivery
type FailurePolicy int

// Defining failure policies
const (
	// PolicyAbort fails the delivery so the provider retries it
	PolicyAbort FailurePolicy = iota
	// PolicyAcknowledge accepts the delivery anyway; local state lags until the next event
	PolicyAcknowledge
)

// PlanUpdate is the intent derived from a billing event
type PlanUpdate struct {
	CustomerID string
	Plan       profile.Plan
	OnFailure  FailurePolicy
}

// Outcome describes what happened to a delivered event
type Outcome string

// Defining outcomes, also used as metric labels
const (
	OutcomeApplied   Outcome = "applied"
	OutcomeUnmatched Outcome = "unmatched"
	OutcomeIgnored   Outcome = "ignored"
	OutcomeDuplicate Outcome = "duplicate"
	OutcomeSyncLag   Outcome = "sync_lag"
	OutcomeFailed    Outcome = "failed"
	OutcomeRejected  Outcome = "rejected"
)

// Ack acknowledges a webhook delivery
type Ack struct {
	Received  bool
	EventID   string
	EventType string
	Outcome   Outcome
}

// PlanForStatus maps a provider subscription status to a plan.
// Only active and trialing subscriptions grant premium
func PlanForStatus(status string) profile.Plan {
	switch status {
	case "active", "trialing":
		return profile.PlanPremium
	default:
		return profile.PlanFree
	}
}

// Decide maps a verified event to the plan change it implies, if any.
// It has no side effects
func Decide(event billing.Event) (PlanUpdate, bool) {
	switch e := event.(type) {
	case billing.CheckoutCompleted:
		if e.Mode != checkoutModeSubscription || e.CustomerID == "" {
			return PlanUpdate{}, false
		}
		return PlanUpdate{
			CustomerID: e.CustomerID,
			Plan:       profile.PlanPremium,
			OnFailure:  PolicyAbort,
		}, true

	case billing.SubscriptionUpdated:
		if e.CustomerID == "" {
			return PlanUpdate{}, false
		}
		return PlanUpdate{
			CustomerID: e.CustomerID,
			Plan:       PlanForStatus(e.Status),
			OnFailure:  PolicyAbort,
		}, true

	case billing.SubscriptionDeleted:
		if e.CustomerID == "" {
			return PlanUpdate{}, false
		}
		return PlanUpdate{
			CustomerID: e.CustomerID,
			Plan:       profile.PlanFree,
			OnFailure:  PolicyAbort,
		}, true

	case billing.InvoicePaymentSucceeded:
		if e.SubscriptionID == "" || e.CustomerID == "" {
			return PlanUpdate{}, false
		}
		// the payment itself succeeded; failing to record it must not make the provider redeliver
		return PlanUpdate{
			CustomerID: e.CustomerID,
			Plan:       profile.PlanPremium,
			OnFailure:  PolicyAcknowledge,
		}, true

	default:
		return PlanUpdate{}, false
	}
}

// ReconcilerOptions contains the dependencies of Reconciler
type ReconcilerOptions struct {
	Provider billing.Provider
	Store    ProfileStore
	Ledger   EventLedger // Optional
	Logger   *zap.Logger
	Metrics  *Metrics // Optional
}

// Reconciler applies billing webhook events to the profile store
type Reconciler struct {
	ReconcilerOptions
}

// NewReconciler returns a Reconciler
func NewReconciler(option ReconcilerOptions) (*Reconciler, error) {
	if option.Provider == nil {
		return nil, fmt.Errorf("nil Provider is invalid")
	}
	if option.Store == nil {
		return nil, fmt.Errorf("nil Store is invalid")
	}
	if option.Logger == nil {
		return nil, fmt.Errorf("nil Logger is invalid")
	}
	return &Reconciler{
		ReconcilerOptions: option,
	}, nil
}

// Reconcile verifies a raw webhook delivery and applies it.
// Errors are *Error with KindSignatureInvalid, KindStorageFailure or KindUnknown
func (r *Reconciler) Reconcile(ctx context.Context, payload []byte, signature string) (*Ack, error) {
	event, err := r.Provider.ParseEvent(payload, signature)
	if err != nil {
		r.Metrics.observeEvent("", OutcomeRejected)
		if errors.Is(err, billing.ErrInvalidSignature) {
			r.Logger.Warn("Rejected webhook with invalid signature",
				zap.Error(err),
			)
			return nil, newError(KindSignatureInvalid, "Webhook signature verification failed", err)
		}
		r.Logger.Error("Unable to decode webhook event",
			zap.Error(err),
		)
		return nil, newError(KindUnknown, "Unable to decode webhook event", err)
	}

	logger := r.Logger.With(
		zap.String("EventID", event.EventID()),
		zap.String("EventType", event.EventType()),
	)
	logger.Info("Received event")

	if r.seen(ctx, logger, event) {
		logger.Info("Event already applied, skipping")
		r.Metrics.observeEvent(event.EventType(), OutcomeDuplicate)
		return r.ack(event, OutcomeDuplicate), nil
	}

	outcome, err := r.apply(ctx, logger, event)
	r.Metrics.observeEvent(event.EventType(), outcome)
	if err != nil {
		return nil, err
	}

	if outcome != OutcomeSyncLag {
		r.mark(ctx, logger, event)
	}
	return r.ack(event, outcome), nil
}

func (r *Reconciler) apply(ctx context.Context, logger *zap.Logger, event billing.Event) (Outcome, error) {
	update, ok := Decide(event)
	if !ok {
		r.logIgnored(logger, event)
		return OutcomeIgnored, nil
	}

	logger = logger.With(
		zap.String("CustomerID", update.CustomerID),
		zap.String("Plan", string(update.Plan)),
	)

	n, err := r.Store.SetPlanByCustomerID(ctx, update.CustomerID, update.Plan)
	if err != nil {
		if update.OnFailure == PolicyAcknowledge {
			logger.Error("Unable to sync plan, acknowledging anyway",
				zap.Error(err),
			)
			return OutcomeSyncLag, nil
		}
		logger.Error("Unable to update plan",
			zap.Error(err),
		)
		return OutcomeFailed, newError(KindStorageFailure, "Unable to update plan", err)
	}

	if n == 0 {
		logger.Warn("No profile matches the billing customer")
		return OutcomeUnmatched, nil
	}

	logger.Info("Updated plan")
	return OutcomeApplied, nil
}

func (r *Reconciler) logIgnored(logger *zap.Logger, event billing.Event) {
	switch e := event.(type) {
	case billing.InvoicePaymentFailed:
		logger.Warn("Payment failed",
			zap.String("CustomerID", e.CustomerID),
			zap.String("InvoiceID", e.InvoiceID),
		)
	case billing.TrialWillEnd:
		logger.Info("Trial ending soon",
			zap.String("CustomerID", e.CustomerID),
			zap.String("SubscriptionID", e.SubscriptionID),
			zap.Time("TrialEnd", e.TrialEnd),
		)
	case billing.Unrecognized:
		logger.Info("Unhandled event type")
	default:
		logger.Info("Event has no effect on plan")
	}
}

func (r *Reconciler) seen(ctx context.Context, logger *zap.Logger, event billing.Event) bool {
	if r.Ledger == nil || event.EventID() == "" {
		return false
	}
	seen, err := r.Ledger.Seen(ctx, event.EventID())
	if err != nil {
		logger.Warn("Unable to check event ledger",
			zap.Error(err),
		)
		return false
	}
	return seen
}

func (r *Reconciler) mark(ctx context.Context, logger *zap.Logger, event billing.Event) {
	if r.Ledger == nil || event.EventID() == "" {
		return
	}
	if err := r.Ledger.Mark(ctx, event.EventID()); err != nil {
		logger.Warn("Unable to record event in ledger",
			zap.Error(err),
		)
	}
}

func (r *Reconciler) ack(event billing.Event, outcome Outcome) *Ack {
	return &Ack{
		Received:  true,
		EventID:   event.EventID(),
		EventType: event.EventType(),
		Outcome:   outcome,
	}
}
