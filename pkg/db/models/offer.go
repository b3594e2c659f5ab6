package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/cardtrove-backend/pkg/enums"
)

// Offer is a buyer-proposed unit price against a listing.
type Offer struct {
	ID                 uuid.UUID         `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	ListingID          uuid.UUID         `gorm:"column:listing_id;type:uuid;not null"`
	BuyerID            uuid.UUID         `gorm:"column:buyer_id;type:uuid;not null"`
	SellerID           uuid.UUID         `gorm:"column:seller_id;type:uuid;not null"`
	AmountCents        int               `gorm:"column:amount_cents;not null"`
	Quantity           int               `gorm:"column:quantity;not null;default:1"`
	CounterAmountCents *int              `gorm:"column:counter_amount_cents"`
	Message            *string           `gorm:"column:message"`
	Status             enums.OfferStatus `gorm:"column:status;type:text;not null;default:'pending'"`
	ExpiresAt          time.Time         `gorm:"column:expires_at;not null"`
	RespondedAt        *time.Time        `gorm:"column:responded_at"`
	CreatedAt          time.Time         `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt          time.Time         `gorm:"column:updated_at;autoUpdateTime"`
}
