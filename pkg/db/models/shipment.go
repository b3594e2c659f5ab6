package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/cardtrove-backend/pkg/enums"
	"github.com/angelmondragon/cardtrove-backend/pkg/types"
)

// Shipment holds the carrier record for an order; one per order.
type Shipment struct {
	ID                   uuid.UUID            `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID              uuid.UUID            `gorm:"column:order_id;type:uuid;not null;uniqueIndex"`
	FromAddress          types.Address        `gorm:"column:from_address;type:jsonb;not null"`
	ToAddress            types.Address        `gorm:"column:to_address;type:jsonb;not null"`
	Parcel               *types.Parcel        `gorm:"column:parcel;type:jsonb"`
	CarrierShipmentID    *string              `gorm:"column:carrier_shipment_id"`
	CarrierRateID        *string              `gorm:"column:carrier_rate_id"`
	CarrierTransactionID *string              `gorm:"column:carrier_transaction_id"`
	Carrier              *string              `gorm:"column:carrier"`
	ServiceLevel         *string              `gorm:"column:service_level"`
	LabelCostCents       *int                 `gorm:"column:label_cost_cents"`
	LabelURL             *string              `gorm:"column:label_url"`
	TrackingNumber       *string              `gorm:"column:tracking_number"`
	TrackingURL          *string              `gorm:"column:tracking_url"`
	Status               enums.ShipmentStatus `gorm:"column:status;type:text;not null;default:'pending'"`
	LastWebhookAt        *time.Time           `gorm:"column:last_webhook_at"`
	CreatedAt            time.Time            `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt            time.Time            `gorm:"column:updated_at;autoUpdateTime"`
}
