package offers

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/cardtrove-backend/pkg/db/models"
	"github.com/angelmondragon/cardtrove-backend/pkg/enums"
)

// OfferDTO is the API projection of an offer.
type OfferDTO struct {
	ID                 uuid.UUID         `json:"id"`
	ListingID          uuid.UUID         `json:"listingId"`
	BuyerID            uuid.UUID         `json:"buyerId"`
	SellerID           uuid.UUID         `json:"sellerId"`
	AmountCents        int               `json:"amountCents"`
	Quantity           int               `json:"quantity"`
	CounterAmountCents *int              `json:"counterAmountCents,omitempty"`
	Message            *string           `json:"message,omitempty"`
	Status             enums.OfferStatus `json:"status"`
	ExpiresAt          time.Time         `json:"expiresAt"`
	RespondedAt        *time.Time        `json:"respondedAt,omitempty"`
	CreatedAt          time.Time         `json:"createdAt"`
}

// OfferList wraps a page of offers plus the next page cursor.
type OfferList struct {
	Offers     []OfferDTO `json:"offers"`
	NextCursor string     `json:"nextCursor,omitempty"`
}

// NewOfferDTO projects the model.
func NewOfferDTO(m *models.Offer) *OfferDTO {
	if m == nil {
		return nil
	}
	return &OfferDTO{
		ID:                 m.ID,
		ListingID:          m.ListingID,
		BuyerID:            m.BuyerID,
		SellerID:           m.SellerID,
		AmountCents:        m.AmountCents,
		Quantity:           m.Quantity,
		CounterAmountCents: m.CounterAmountCents,
		Message:            m.Message,
		Status:             m.Status,
		ExpiresAt:          m.ExpiresAt,
		RespondedAt:        m.RespondedAt,
		CreatedAt:          m.CreatedAt,
	}
}
