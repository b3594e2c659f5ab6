package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/cardtrove-backend/pkg/enums"
	"github.com/angelmondragon/cardtrove-backend/pkg/types"
)

// Order is the authoritative transaction record. Money columns are fixed at creation.
type Order struct {
	ID                uuid.UUID           `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderNumber       string              `gorm:"column:order_number;not null;uniqueIndex"`
	ListingID         uuid.UUID           `gorm:"column:listing_id;type:uuid;not null"`
	OfferID           *uuid.UUID          `gorm:"column:offer_id;type:uuid"`
	BuyerID           uuid.UUID           `gorm:"column:buyer_id;type:uuid;not null"`
	SellerID          uuid.UUID           `gorm:"column:seller_id;type:uuid;not null"`
	Quantity          int                 `gorm:"column:quantity;not null"`
	ItemPriceCents    int                 `gorm:"column:item_price_cents;not null"`
	ItemSubtotalCents int                 `gorm:"column:item_subtotal_cents;not null"`
	ShippingCents     int                 `gorm:"column:shipping_cents;not null"`
	PlatformFeeCents  int                 `gorm:"column:platform_fee_cents;not null"`
	ProcessorFeeCents int                 `gorm:"column:processor_fee_cents;not null"`
	TotalCents        int                 `gorm:"column:total_cents;not null"`
	SellerNetCents    int                 `gorm:"column:seller_net_cents;not null"`
	Currency          string              `gorm:"column:currency;not null;default:'usd'"`
	ShippingAddress   types.Address       `gorm:"column:shipping_address;type:jsonb;not null"`
	PaymentSessionID  *string             `gorm:"column:payment_session_id;uniqueIndex"`
	PaymentIntentID   *string             `gorm:"column:payment_intent_id"`
	Status            enums.OrderStatus   `gorm:"column:status;type:text;not null;default:'payment_pending'"`
	PaymentStatus     enums.PaymentStatus `gorm:"column:payment_status;type:text;not null;default:'pending'"`
	CancelReason      *string             `gorm:"column:cancel_reason"`
	PaidAt            *time.Time          `gorm:"column:paid_at"`
	ShippedAt         *time.Time          `gorm:"column:shipped_at"`
	DeliveredAt       *time.Time          `gorm:"column:delivered_at"`
	CompletedAt       *time.Time          `gorm:"column:completed_at"`
	CancelledAt       *time.Time          `gorm:"column:cancelled_at"`
	CreatedAt         time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}
