package subscription

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/zllovesuki/subsync/billing"
	"github.com/zllovesuki/subsync/profile"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const validSignature = "t=1,v1=valid"

type fakeProvider struct {
	mu sync.Mutex

	customerErr error
	checkoutErr error
	portalErr   error

	event    billing.Event
	parseErr error

	customers []billing.CustomerParams
	checkouts []billing.CheckoutParams
	portals   []billing.PortalParams
}

func (f *fakeProvider) CreateCustomer(ctx context.Context, params billing.CustomerParams) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.customerErr != nil {
		return "", f.customerErr
	}
	f.customers = append(f.customers, params)
	return fmt.Sprintf("cus_%d", len(f.customers)), nil
}

func (f *fakeProvider) CreateCheckoutSession(ctx context.Context, params billing.CheckoutParams) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.checkoutErr != nil {
		return "", f.checkoutErr
	}
	f.checkouts = append(f.checkouts, params)
	return "https://checkout.example/" + params.CustomerID, nil
}

func (f *fakeProvider) CreateBillingPortalSession(ctx context.Context, params billing.PortalParams) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.portalErr != nil {
		return "", f.portalErr
	}
	f.portals = append(f.portals, params)
	return "https://portal.example/" + params.CustomerID, nil
}

func (f *fakeProvider) ParseEvent(payload []byte, signature string) (billing.Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if signature != validSignature {
		return nil, fmt.Errorf("%w: no matching signature", billing.ErrInvalidSignature)
	}
	if f.parseErr != nil {
		return nil, f.parseErr
	}
	return f.event, nil
}

func (f *fakeProvider) customerIDs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	ids := make([]string, len(f.customers))
	for i := range f.customers {
		ids[i] = fmt.Sprintf("cus_%d", i+1)
	}
	return ids
}

type memStore struct {
	mu       sync.Mutex
	profiles map[string]*profile.Profile

	getErr         error
	setCustomerErr error
	setPlanErr     error

	planWrites int
}

func newMemStore(profiles ...profile.Profile) *memStore {
	s := &memStore{
		profiles: make(map[string]*profile.Profile),
	}
	for i := range profiles {
		p := profiles[i]
		s.profiles[p.UserID] = &p
	}
	return s
}

func (s *memStore) Get(ctx context.Context, userID string) (*profile.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.getErr != nil {
		return nil, s.getErr
	}
	p, ok := s.profiles[userID]
	if !ok {
		return nil, nil
	}
	cp := *p
	return &cp, nil
}

func (s *memStore) SetBillingCustomerID(ctx context.Context, userID, customerID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.setCustomerErr != nil {
		return s.setCustomerErr
	}
	p, ok := s.profiles[userID]
	if !ok {
		return fmt.Errorf("no profile for %s", userID)
	}
	id := customerID
	p.BillingCustomerID = &id
	return nil
}

func (s *memStore) SetPlanByCustomerID(ctx context.Context, customerID string, plan profile.Plan) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.setPlanErr != nil {
		return 0, s.setPlanErr
	}
	s.planWrites++
	var n int64
	for _, p := range s.profiles {
		if p.BillingCustomerID != nil && *p.BillingCustomerID == customerID {
			p.Plan = plan
			n++
		}
	}
	return n, nil
}

func (s *memStore) profile(t *testing.T, userID string) profile.Profile {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.profiles[userID]
	require.True(t, ok, "missing profile %s", userID)
	return *p
}

type memLedger struct {
	mu      sync.Mutex
	ids     map[string]bool
	seenErr error
	markErr error
}

func newMemLedger() *memLedger {
	return &memLedger{
		ids: make(map[string]bool),
	}
}

func (l *memLedger) Seen(ctx context.Context, eventID string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.seenErr != nil {
		return false, l.seenErr
	}
	return l.ids[eventID], nil
}

func (l *memLedger) Mark(ctx context.Context, eventID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.markErr != nil {
		return l.markErr
	}
	l.ids[eventID] = true
	return nil
}

func strPtr(s string) *string {
	return &s
}

func newTestBootstrap(t *testing.T, provider billing.Provider, store ProfileStore) *Bootstrap {
	t.Helper()
	b, err := NewBootstrap(BootstrapOptions{
		Provider: provider,
		Store:    store,
		PriceID:  "price_123",
		Logger:   zap.NewNop(),
	})
	require.NoError(t, err)
	return b
}

func newTestReconciler(t *testing.T, provider billing.Provider, store ProfileStore, ledger EventLedger) *Reconciler {
	t.Helper()
	option := ReconcilerOptions{
		Provider: provider,
		Store:    store,
		Logger:   zap.NewNop(),
	}
	if ledger != nil {
		option.Ledger = ledger
	}
	r, err := NewReconciler(option)
	require.NoError(t, err)
	return r
}
