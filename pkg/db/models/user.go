package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/cardtrove-backend/pkg/types"
)

// User is the identity-owned account row; the marketplace owns the seller columns.
type User struct {
	ID                   uuid.UUID       `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	DisplayName          string          `gorm:"column:display_name;not null"`
	Email                string          `gorm:"column:email;type:text;not null;uniqueIndex"`
	MarketplaceEnabled   bool            `gorm:"column:marketplace_enabled;not null;default:false"`
	MarketplaceSuspended bool            `gorm:"column:marketplace_suspended;not null;default:false"`
	SuspendedAt          *time.Time      `gorm:"column:suspended_at"`
	SellerRating         decimal.Decimal `gorm:"column:seller_rating;type:numeric(3,2);not null;default:0"`
	SellerReviewCount    int             `gorm:"column:seller_review_count;not null;default:0"`
	FirstSaleAt          *time.Time      `gorm:"column:first_sale_at"`
	ShipFromAddress      *types.Address  `gorm:"column:ship_from_address;type:jsonb"`
	CreatedAt            time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt            time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}

// CanSell reports whether the user may publish listings.
func (u User) CanSell() bool {
	return u.MarketplaceEnabled && !u.MarketplaceSuspended
}
