package shipping

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/cardtrove-backend/pkg/db/models"
	"github.com/angelmondragon/cardtrove-backend/pkg/enums"
)

// Repository defines persistence operations for shipments.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, shipment *models.Shipment) error
	FindByOrderID(ctx context.Context, orderID uuid.UUID) (*models.Shipment, error)
	FindByTrackingNumber(ctx context.Context, trackingNumber string) (*models.Shipment, error)
	// Update applies updates only while the shipment is in one of from.
	Update(ctx context.Context, id uuid.UUID, from []enums.ShipmentStatus, updates map[string]any) (bool, error)
}
