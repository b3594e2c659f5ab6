package listings

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/cardtrove-backend/pkg/db/models"
	"github.com/angelmondragon/cardtrove-backend/pkg/enums"
)

// ListingDTO is the API projection of a listing.
type ListingDTO struct {
	ID                uuid.UUID           `json:"id"`
	SellerID          uuid.UUID           `json:"sellerId"`
	CollectionItemID  uuid.UUID           `json:"collectionItemId"`
	CardID            uuid.UUID           `json:"cardId"`
	PriceCents        int                 `json:"priceCents"`
	Quantity          int                 `json:"quantity"`
	QuantityAvailable int                 `json:"quantityAvailable"`
	AllowOffers       bool                `json:"allowOffers"`
	Condition         string              `json:"condition"`
	Description       *string             `json:"description,omitempty"`
	ImageURL          *string             `json:"imageUrl,omitempty"`
	Status            enums.ListingStatus `json:"status"`
	CreatedAt         time.Time           `json:"createdAt"`
	UpdatedAt         time.Time           `json:"updatedAt"`
}

// ListingList wraps a page of listings plus the next page cursor.
type ListingList struct {
	Listings   []ListingDTO `json:"listings"`
	NextCursor string       `json:"nextCursor,omitempty"`
}

// NewListingDTO projects the model.
func NewListingDTO(m *models.Listing) *ListingDTO {
	if m == nil {
		return nil
	}
	return &ListingDTO{
		ID:                m.ID,
		SellerID:          m.SellerID,
		CollectionItemID:  m.CollectionItemID,
		CardID:            m.CardID,
		PriceCents:        m.PriceCents,
		Quantity:          m.Quantity,
		QuantityAvailable: m.QuantityAvailable,
		AllowOffers:       m.AllowOffers,
		Condition:         m.Condition,
		Description:       m.Description,
		ImageURL:          m.ImageURL,
		Status:            m.Status,
		CreatedAt:         m.CreatedAt,
		UpdatedAt:         m.UpdatedAt,
	}
}
