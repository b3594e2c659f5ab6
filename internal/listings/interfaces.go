package listings

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/cardtrove-backend/pkg/db/models"
	"github.com/angelmondragon/cardtrove-backend/pkg/pagination"
)

// Repository defines persistence operations for listings.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, listing *models.Listing) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Listing, error)
	UpdateActive(ctx context.Context, id uuid.UUID, updates map[string]any) (bool, error)
	Cancel(ctx context.Context, id uuid.UUID, at time.Time) (bool, error)
	ListActive(ctx context.Context, query listQuery) ([]models.Listing, error)
	Decrement(ctx context.Context, id uuid.UUID, qty int) (bool, error)
	Restore(ctx context.Context, id uuid.UUID, qty int) (bool, error)
}

type listQuery struct {
	cardID   *uuid.UUID
	sellerID *uuid.UUID
	cursor   *pagination.Cursor
	limit    int
}
