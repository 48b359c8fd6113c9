package subscribe

import (
	"context"
	"time"

	"github.com/techknowlogia/core/internal/models"
)

// Store persists subscribers. Implementations return ErrNotFound and
// ErrDuplicate instead of driver-specific errors.
type Store interface {
	FindByEmail(ctx context.Context, email string) (*models.SubscriberModel, error)
	FindByID(ctx context.Context, id string) (*models.SubscriberModel, error)
	FindByConfirmTokenHash(ctx context.Context, hash string) (*models.SubscriberModel, error)
	Create(ctx context.Context, sub *models.SubscriberModel) error
	Save(ctx context.Context, sub *models.SubscriberModel) error
	// List returns subscribers newest first.
	List(ctx context.Context, filter ListFilter) ([]models.SubscriberModel, error)
	// Count counts subscribers with status, or all of them when status is empty.
	Count(ctx context.Context, status string) (int64, error)
	Delete(ctx context.Context, id string) error
	// PurgeExpiredTokens clears confirmation tokens of pending subscribers that expired before t.
	PurgeExpiredTokens(ctx context.Context, before time.Time) (int64, error)
}

// ListFilter narrows List. Zero Limit means no limit.
type ListFilter struct {
	Status string
	Offset int
	Limit  int
}
