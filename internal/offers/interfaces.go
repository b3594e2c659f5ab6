package offers

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/cardtrove-backend/pkg/db/models"
	"github.com/angelmondragon/cardtrove-backend/pkg/enums"
	"github.com/angelmondragon/cardtrove-backend/pkg/pagination"
)

// Repository defines persistence operations for offers.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, offer *models.Offer) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Offer, error)
	HasPending(ctx context.Context, listingID, buyerID uuid.UUID) (bool, error)
	TransitionPending(ctx context.Context, id uuid.UUID, now time.Time, to enums.OfferStatus, updates map[string]any) (bool, error)
	ExpireIfDue(ctx context.Context, id uuid.UUID, now time.Time) (bool, error)
	ExpireDue(ctx context.Context, filter expiryFilter, now time.Time) (int64, error)
	List(ctx context.Context, query listQuery) ([]models.Offer, error)
}

type expiryFilter struct {
	listingID *uuid.UUID
	buyerID   *uuid.UUID
}

type listQuery struct {
	listingID *uuid.UUID
	buyerID   *uuid.UUID
	cursor    *pagination.Cursor
	limit     int
}
