package orders

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/cardtrove-backend/pkg/db/models"
	"github.com/angelmondragon/cardtrove-backend/pkg/enums"
	"github.com/angelmondragon/cardtrove-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/cardtrove-backend/pkg/types"
)

// OrderDTO is the API projection of an order with its frozen money columns.
type OrderDTO struct {
	ID                uuid.UUID           `json:"id"`
	OrderNumber       string              `json:"orderNumber"`
	ListingID         uuid.UUID           `json:"listingId"`
	OfferID           *uuid.UUID          `json:"offerId,omitempty"`
	BuyerID           uuid.UUID           `json:"buyerId"`
	SellerID          uuid.UUID           `json:"sellerId"`
	Quantity          int                 `json:"quantity"`
	ItemPriceCents    int                 `json:"itemPriceCents"`
	ItemSubtotalCents int                 `json:"itemSubtotalCents"`
	ShippingCents     int                 `json:"shippingCents"`
	PlatformFeeCents  int                 `json:"platformFeeCents"`
	ProcessorFeeCents int                 `json:"processorFeeCents"`
	TotalCents        int                 `json:"totalCents"`
	SellerNetCents    int                 `json:"sellerNetCents"`
	Currency          string              `json:"currency"`
	ShippingAddress   types.Address       `json:"shippingAddress"`
	Status            enums.OrderStatus   `json:"status"`
	PaymentStatus     enums.PaymentStatus `json:"paymentStatus"`
	CancelReason      *string             `json:"cancelReason,omitempty"`
	PaidAt            *time.Time          `json:"paidAt,omitempty"`
	ShippedAt         *time.Time          `json:"shippedAt,omitempty"`
	DeliveredAt       *time.Time          `json:"deliveredAt,omitempty"`
	CompletedAt       *time.Time          `json:"completedAt,omitempty"`
	CancelledAt       *time.Time          `json:"cancelledAt,omitempty"`
	CreatedAt         time.Time           `json:"createdAt"`
}

type OrderList struct {
	Orders     []OrderDTO `json:"orders"`
	NextCursor string     `json:"nextCursor,omitempty"`
}

func NewOrderDTO(m *models.Order) *OrderDTO {
	if m == nil {
		return nil
	}
	return &OrderDTO{
		ID:                m.ID,
		OrderNumber:       m.OrderNumber,
		ListingID:         m.ListingID,
		OfferID:           m.OfferID,
		BuyerID:           m.BuyerID,
		SellerID:          m.SellerID,
		Quantity:          m.Quantity,
		ItemPriceCents:    m.ItemPriceCents,
		ItemSubtotalCents: m.ItemSubtotalCents,
		ShippingCents:     m.ShippingCents,
		PlatformFeeCents:  m.PlatformFeeCents,
		ProcessorFeeCents: m.ProcessorFeeCents,
		TotalCents:        m.TotalCents,
		SellerNetCents:    m.SellerNetCents,
		Currency:          m.Currency,
		ShippingAddress:   m.ShippingAddress,
		Status:            m.Status,
		PaymentStatus:     m.PaymentStatus,
		CancelReason:      m.CancelReason,
		PaidAt:            m.PaidAt,
		ShippedAt:         m.ShippedAt,
		DeliveredAt:       m.DeliveredAt,
		CompletedAt:       m.CompletedAt,
		CancelledAt:       m.CancelledAt,
		CreatedAt:         m.CreatedAt,
	}
}

// EventPayload snapshots the order for outbox payloads.
func EventPayload(m *models.Order) payloads.OrderEvent {
	return payloads.OrderEvent{
		OrderID:       m.ID,
		OrderNumber:   m.OrderNumber,
		ListingID:     m.ListingID,
		BuyerID:       m.BuyerID,
		SellerID:      m.SellerID,
		Quantity:      m.Quantity,
		TotalCents:    m.TotalCents,
		Status:        m.Status,
		PaymentStatus: m.PaymentStatus,
		Reason:        m.CancelReason,
	}
}
