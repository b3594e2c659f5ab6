package payloads

import (
	"github.com/angelmondragon/cardtrove-backend/pkg/enums"
	"github.com/google/uuid"
)

// ListingEvent is emitted when a listing is published or cancelled.
type ListingEvent struct {
	ListingID         uuid.UUID           `json:"listing_id"`
	SellerID          uuid.UUID           `json:"seller_id"`
	CardID            uuid.UUID           `json:"card_id"`
	PriceCents        int                 `json:"price_cents"`
	QuantityAvailable int                 `json:"quantity_available"`
	Status            enums.ListingStatus `json:"status"`
}

// OfferEvent is emitted when an offer is created or a party responds to it.
type OfferEvent struct {
	OfferID            uuid.UUID         `json:"offer_id"`
	ListingID          uuid.UUID         `json:"listing_id"`
	BuyerID            uuid.UUID         `json:"buyer_id"`
	SellerID           uuid.UUID         `json:"seller_id"`
	AmountCents        int               `json:"amount_cents"`
	CounterAmountCents *int              `json:"counter_amount_cents,omitempty"`
	Status             enums.OfferStatus `json:"status"`
}

// OrderEvent carries the order snapshot for lifecycle transitions.
type OrderEvent struct {
	OrderID       uuid.UUID           `json:"order_id"`
	OrderNumber   string              `json:"order_number"`
	ListingID     uuid.UUID           `json:"listing_id"`
	BuyerID       uuid.UUID           `json:"buyer_id"`
	SellerID      uuid.UUID           `json:"seller_id"`
	Quantity      int                 `json:"quantity"`
	TotalCents    int                 `json:"total_cents"`
	Status        enums.OrderStatus   `json:"status"`
	PaymentStatus enums.PaymentStatus `json:"payment_status"`
	Reason        *string             `json:"reason,omitempty"`
}

// OrderShipmentEvent is emitted on carrier-driven order transitions.
type OrderShipmentEvent struct {
	OrderID        uuid.UUID            `json:"order_id"`
	BuyerID        uuid.UUID            `json:"buyer_id"`
	SellerID       uuid.UUID            `json:"seller_id"`
	Status         enums.OrderStatus    `json:"status"`
	ShipmentStatus enums.ShipmentStatus `json:"shipment_status"`
	Carrier        *string              `json:"carrier,omitempty"`
	TrackingNumber *string              `json:"tracking_number,omitempty"`
	TrackingURL    *string              `json:"tracking_url,omitempty"`
}

// ReviewCreatedEvent announces a new seller rating.
type ReviewCreatedEvent struct {
	ReviewID     uuid.UUID `json:"review_id"`
	OrderID      uuid.UUID `json:"order_id"`
	ReviewerID   uuid.UUID `json:"reviewer_id"`
	RevieweeID   uuid.UUID `json:"reviewee_id"`
	Rating       int       `json:"rating"`
	SellerRating string    `json:"seller_rating"`
	ReviewCount  int       `json:"review_count"`
}

// ReportCreatedEvent notifies moderation of a new report.
type ReportCreatedEvent struct {
	ReportID     uuid.UUID              `json:"report_id"`
	ReporterID   uuid.UUID              `json:"reporter_id"`
	TargetType   enums.ReportTargetType `json:"target_type"`
	TargetID     uuid.UUID              `json:"target_id"`
	TargetUserID uuid.UUID              `json:"target_user_id"`
	Reason       string                 `json:"reason"`
}

// SellerSuspendedEvent is emitted when the report threshold suspends a user.
type SellerSuspendedEvent struct {
	UserID            uuid.UUID `json:"user_id"`
	DistinctReporters int64     `json:"distinct_reporters"`
	Threshold         int       `json:"threshold"`
}

// SellerFirstSaleEvent marks a seller's first delivered order.
type SellerFirstSaleEvent struct {
	UserID  uuid.UUID `json:"user_id"`
	OrderID uuid.UUID `json:"order_id"`
}
