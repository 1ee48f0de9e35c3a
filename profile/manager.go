package profile

import (
	"context"
	"errors"
	"fmt"
	"time"

	extErrors "github.com/pkg/errors"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ManagerOptions contains the dependencies of Manager
type ManagerOptions struct {
	DB     *gorm.DB
	Logger *zap.Logger
	Clock  func() time.Time
}

// Manager handles the database operations relating to Profiles
type Manager struct {
	ManagerOptions
}

// NewManager returns a new Manager for profiles
func NewManager(option ManagerOptions) (*Manager, error) {
	if option.DB == nil {
		return nil, fmt.Errorf("nil DB is invalid")
	}
	if option.Logger == nil {
		return nil, fmt.Errorf("nil Logger is invalid")
	}
	if option.Clock == nil {
		option.Clock = time.Now
	}
	return &Manager{
		ManagerOptions: option,
	}, nil
}

// Migrate creates or updates the profiles table
func (m *Manager) Migrate(ctx context.Context) error {
	if err := m.DB.WithContext(ctx).AutoMigrate(&Profile{}); err != nil {
		return extErrors.Wrap(err, "Cannot initilize profile.Manager")
	}
	return nil
}

// Get will try to return the profile of the user. A nil Profile is returned if none exists
func (m *Manager) Get(ctx context.Context, userID string) (*Profile, error) {
	var p Profile

	result := m.DB.WithContext(ctx).First(&p, "user_id = ?", userID)

	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return nil, nil
	}

	if result.Error != nil {
		m.Logger.Error("Database returned error",
			zap.Error(result.Error),
		)
		return nil, extErrors.Wrap(result.Error, "Cannot get profile by user id")
	}

	return &p, nil
}

// SetBillingCustomerID stores the billing customer assigned to the user. The last write wins
func (m *Manager) SetBillingCustomerID(ctx context.Context, userID, customerID string) error {
	result := m.DB.WithContext(ctx).
		Model(&Profile{}).
		Where("user_id = ?", userID).
		Updates(map[string]interface{}{
			"billing_customer_id": customerID,
			"updated_at":          m.Clock().UTC(),
		})
	if result.Error != nil {
		m.Logger.Error("Database returned error",
			zap.Error(result.Error),
		)
		return extErrors.Wrap(result.Error, "Cannot set billing customer id")
	}
	if result.RowsAffected == 0 {
		return extErrors.Errorf("No profile for user %s", userID)
	}
	return nil
}

// SetPlanByCustomerID changes the plan of the profile owning the billing customer.
// It returns the number of profiles updated, which is 0 when the customer is unknown
func (m *Manager) SetPlanByCustomerID(ctx context.Context, customerID string, plan Plan) (int64, error) {
	if !plan.Valid() {
		return 0, fmt.Errorf("invalid plan %q", plan)
	}
	result := m.DB.WithContext(ctx).
		Model(&Profile{}).
		Where("billing_customer_id = ?", customerID).
		Updates(map[string]interface{}{
			"plan":       string(plan),
			"updated_at": m.Clock().UTC(),
		})
	if result.Error != nil {
		m.Logger.Error("Database returned error",
			zap.Error(result.Error),
		)
		return 0, extErrors.Wrap(result.Error, "Cannot update plan by billing customer id")
	}
	return result.RowsAffected, nil
}
