package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/cardtrove-backend/pkg/enums"
)

// Listing is a seller's priced offer to sell a quantity of one collection item.
type Listing struct {
	ID                uuid.UUID           `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	SellerID          uuid.UUID           `gorm:"column:seller_id;type:uuid;not null"`
	CollectionItemID  uuid.UUID           `gorm:"column:collection_item_id;type:uuid;not null"`
	CardID            uuid.UUID           `gorm:"column:card_id;type:uuid;not null"`
	PriceCents        int                 `gorm:"column:price_cents;not null"`
	Quantity          int                 `gorm:"column:quantity;not null"`
	QuantityAvailable int                 `gorm:"column:quantity_available;not null"`
	AllowOffers       bool                `gorm:"column:allow_offers;not null;default:false"`
	Condition         string              `gorm:"column:condition;not null"`
	Description       *string             `gorm:"column:description"`
	ImageURL          *string             `gorm:"column:image_url"`
	Status            enums.ListingStatus `gorm:"column:status;type:text;not null;default:'active'"`
	CancelledAt       *time.Time          `gorm:"column:cancelled_at"`
	CreatedAt         time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}
