package orders

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/cardtrove-backend/pkg/db/models"
	"github.com/angelmondragon/cardtrove-backend/pkg/enums"
	"github.com/angelmondragon/cardtrove-backend/pkg/pagination"
)

// Repository defines persistence operations for orders.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, order *models.Order) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
	FindBySessionID(ctx context.Context, sessionID string) (*models.Order, error)
	List(ctx context.Context, query ListQuery) ([]models.Order, error)
	// Transition applies updates only while the order is in one of from.
	Transition(ctx context.Context, id uuid.UUID, from []enums.OrderStatus, updates map[string]any) (bool, error)
	HasLiveOrderForOffer(ctx context.Context, offerID uuid.UUID) (bool, error)
	// SettleCancelled records a payment that arrived after the order was cancelled unpaid.
	SettleCancelled(ctx context.Context, id uuid.UUID, paymentIntentID string, at time.Time) (bool, error)
}

// ListQuery filters order listings. Exactly one of BuyerID or SellerID is set by the service.
type ListQuery struct {
	BuyerID  *uuid.UUID
	SellerID *uuid.UUID
	Status   *enums.OrderStatus
	Cursor   *pagination.Cursor
	Limit    int
}
