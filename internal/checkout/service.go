package checkout

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/cardtrove-backend/internal/fees"
	"github.com/angelmondragon/cardtrove-backend/internal/listings"
	"github.com/angelmondragon/cardtrove-backend/internal/orders"
	"github.com/angelmondragon/cardtrove-backend/pkg/db"
	"github.com/angelmondragon/cardtrove-backend/pkg/db/models"
	"github.com/angelmondragon/cardtrove-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/cardtrove-backend/pkg/errors"
	"github.com/angelmondragon/cardtrove-backend/pkg/logger"
	"github.com/angelmondragon/cardtrove-backend/pkg/metrics"
	"github.com/angelmondragon/cardtrove-backend/pkg/outbox"
	pkgstripe "github.com/angelmondragon/cardtrove-backend/pkg/stripe"
	"github.com/angelmondragon/cardtrove-backend/pkg/types"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type offerLoader interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Offer, error)
}

type cardLoader interface {
	FindCard(ctx context.Context, id uuid.UUID) (*models.Card, error)
}

type blockChecker interface {
	IsBlocked(ctx context.Context, a, b uuid.UUID) (bool, error)
}

// SessionProvider opens and closes hosted payment sessions.
type SessionProvider interface {
	CreateCheckoutSession(ctx context.Context, input pkgstripe.CheckoutSessionInput) (*pkgstripe.CheckoutSession, error)
	ExpireCheckoutSession(ctx context.Context, sessionID string) error
}

// Service turns a listing (optionally at an accepted offer price) into a
// payment_pending order with a hosted checkout session.
type Service interface {
	Initiate(ctx context.Context, input InitiateInput) (*Result, error)
}

type InitiateInput struct {
	ListingID       uuid.UUID
	BuyerID         uuid.UUID
	OfferID         *uuid.UUID
	Quantity        int
	ShippingAddress types.Address
	ShippingCents   int
}

type Result struct {
	CheckoutURL string    `json:"checkoutUrl"`
	OrderID     uuid.UUID `json:"orderId"`
	OrderNumber string    `json:"orderNumber"`
}

type ServiceParams struct {
	Orders          orders.Repository
	Listings        listings.Repository
	Offers          offerLoader
	Cards           cardLoader
	Blocks          blockChecker
	Sessions        SessionProvider
	Fees            fees.Schedule
	Currency        string
	Tx              txRunner
	Outbox          outboxPublisher
	Metrics         *metrics.Marketplace
	Logger          *logger.Logger
	ProviderTimeout time.Duration
	Now             func() time.Time
}

type service struct {
	orders   orders.Repository
	listings listings.Repository
	offers   offerLoader
	cards    cardLoader
	blocks   blockChecker
	sessions SessionProvider
	fees     fees.Schedule
	currency string
	tx       txRunner
	outbox   outboxPublisher
	metrics  *metrics.Marketplace
	logg     *logger.Logger
	timeout  time.Duration
	now      func() time.Time
}

// NewService builds the checkout orchestrator.
func NewService(params ServiceParams) (Service, error) {
	if params.Orders == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if params.Listings == nil {
		return nil, fmt.Errorf("listings repository required")
	}
	if params.Offers == nil {
		return nil, fmt.Errorf("offer loader required")
	}
	if params.Blocks == nil {
		return nil, fmt.Errorf("block checker required")
	}
	if params.Sessions == nil {
		return nil, fmt.Errorf("session provider required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	schedule := params.Fees
	if schedule.PlatformPercent.IsZero() && schedule.ProcessorPercent.IsZero() && schedule.ProcessorFixedCents == 0 {
		schedule = fees.DefaultSchedule()
	}
	currency := params.Currency
	if currency == "" {
		currency = "usd"
	}
	timeout := params.ProviderTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	now := params.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &service{
		orders:   params.Orders,
		listings: params.Listings,
		offers:   params.Offers,
		cards:    params.Cards,
		blocks:   params.Blocks,
		sessions: params.Sessions,
		fees:     schedule,
		currency: currency,
		tx:       params.Tx,
		outbox:   params.Outbox,
		metrics:  params.Metrics,
		logg:     params.Logger,
		timeout:  timeout,
		now:      now,
	}, nil
}

func (s *service) Initiate(ctx context.Context, input InitiateInput) (*Result, error) {
	result, err := s.initiate(ctx, input)
	switch {
	case err == nil:
		s.metrics.IncCheckout("created")
	case pkgerrors.IsCode(err, pkgerrors.CodeDependency):
		s.metrics.IncCheckout("provider_error")
	default:
		s.metrics.IncCheckout("rejected")
	}
	return result, err
}

func (s *service) initiate(ctx context.Context, input InitiateInput) (*Result, error) {
	if input.Quantity == 0 {
		input.Quantity = 1
	}
	if input.Quantity < 1 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be at least 1")
	}
	if input.ShippingCents < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "shipping_cents must not be negative")
	}
	address := input.ShippingAddress.Normalized()
	if err := validateAddress(address); err != nil {
		return nil, err
	}

	listing, err := s.listings.FindByID(ctx, input.ListingID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "listing not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load listing")
	}
	if err := checkPurchasable(listing, input.BuyerID, input.Quantity); err != nil {
		return nil, err
	}
	blocked, err := s.blocks.IsBlocked(ctx, listing.SellerID, input.BuyerID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check blocks")
	}
	if blocked {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "seller is not selling to this buyer")
	}

	unitPrice := listing.PriceCents
	if input.OfferID != nil {
		unitPrice, err = s.offerPrice(ctx, *input.OfferID, listing.ID, input.BuyerID, input.Quantity)
		if err != nil {
			return nil, err
		}
	}

	subtotal := unitPrice * input.Quantity
	breakdown, err := s.fees.Compute(subtotal, input.ShippingCents)
	if err != nil {
		return nil, err
	}

	now := s.now()
	orderID := uuid.New()
	order := &models.Order{
		ID:                orderID,
		OrderNumber:       OrderNumber(orderID, now),
		ListingID:         listing.ID,
		OfferID:           input.OfferID,
		BuyerID:           input.BuyerID,
		SellerID:          listing.SellerID,
		Quantity:          input.Quantity,
		ItemPriceCents:    unitPrice,
		ItemSubtotalCents: subtotal,
		ShippingCents:     input.ShippingCents,
		PlatformFeeCents:  breakdown.PlatformFee,
		ProcessorFeeCents: breakdown.ProcessorFee,
		TotalCents:        breakdown.Total,
		SellerNetCents:    breakdown.SellerNet,
		Currency:          s.currency,
		ShippingAddress:   address,
		Status:            enums.OrderStatusPaymentPending,
		PaymentStatus:     enums.PaymentStatusPending,
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	session, err := s.openSession(ctx, order, s.title(ctx, listing))
	if err != nil {
		return nil, err
	}
	order.PaymentSessionID = &session.ID

	if err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		current, err := s.listings.WithTx(tx).FindByID(ctx, listing.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: reload listing")
		}
		if err := checkPurchasable(current, input.BuyerID, input.Quantity); err != nil {
			return err
		}
		orderRepo := s.orders.WithTx(tx)
		if order.OfferID != nil {
			used, err := orderRepo.HasLiveOrderForOffer(ctx, *order.OfferID)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: check offer orders")
			}
			if used {
				return offerUsed()
			}
		}
		if err := orderRepo.Create(ctx, order); err != nil {
			if order.OfferID != nil && offerTaken(err) {
				return offerUsed()
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: insert order")
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderCreated,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Version:       1,
			Actor:         &outbox.ActorRef{UserID: input.BuyerID, Role: string(enums.RoleUser)},
			Data:          orders.EventPayload(order),
		})
	}); err != nil {
		s.expireSession(ctx, order.ID, session.ID)
		return nil, asTyped(err, "persist order")
	}

	if s.logg != nil {
		logCtx := s.logg.WithOrderID(ctx, order.ID.String())
		s.logg.Info(s.logg.WithField(logCtx, "order_number", order.OrderNumber), "checkout session opened")
	}
	return &Result{CheckoutURL: session.URL, OrderID: order.ID, OrderNumber: order.OrderNumber}, nil
}

func checkPurchasable(listing *models.Listing, buyerID uuid.UUID, quantity int) error {
	if listing.SellerID == buyerID {
		return pkgerrors.New(pkgerrors.CodeForbidden, "cannot buy your own listing")
	}
	if listing.Status != enums.ListingStatusActive {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "listing is not active")
	}
	if quantity > listing.QuantityAvailable {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "quantity exceeds available units")
	}
	return nil
}

// offerPrice returns the accepted offer's unit price for this listing and buyer.
func (s *service) offerPrice(ctx context.Context, offerID, listingID, buyerID uuid.UUID, quantity int) (int, error) {
	offer, err := s.offers.FindByID(ctx, offerID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, pkgerrors.New(pkgerrors.CodeNotFound, "offer not found")
		}
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load offer")
	}
	if offer.ListingID != listingID || offer.BuyerID != buyerID {
		return 0, pkgerrors.New(pkgerrors.CodeNotFound, "offer not found")
	}
	if offer.Status != enums.OfferStatusAccepted {
		return 0, pkgerrors.New(pkgerrors.CodeStateConflict, "offer has not been accepted")
	}
	if quantity > offer.Quantity {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "quantity exceeds the accepted offer")
	}
	used, err := s.orders.HasLiveOrderForOffer(ctx, offer.ID)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check offer orders")
	}
	if used {
		return 0, offerUsed()
	}
	return offer.AmountCents, nil
}

func offerUsed() error {
	return pkgerrors.New(pkgerrors.CodeStateConflict, "offer already has an order")
}

// offerTaken matches the live-offer unique index on postgres and its sqlite column message.
func offerTaken(err error) bool {
	return db.IsUniqueViolation(err, "ux_orders_live_offer") || db.IsUniqueViolation(err, "orders.offer_id")
}

func (s *service) openSession(ctx context.Context, order *models.Order, title string) (*pkgstripe.CheckoutSession, error) {
	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	started := time.Now()
	session, err := s.sessions.CreateCheckoutSession(callCtx, pkgstripe.CheckoutSessionInput{
		OrderID:         order.ID.String(),
		Title:           title,
		UnitAmountCents: int64(order.ItemPriceCents),
		Quantity:        int64(order.Quantity),
		ShippingCents:   int64(order.ShippingCents),
		Metadata:        sessionMetadata(order),
	})
	s.metrics.ObserveProviderCall("stripe", "create_session", started, err)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "open checkout session")
	}
	if session == nil || session.ID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "checkout session missing id")
	}
	return session, nil
}

// expireSession closes a session whose order never committed. Best-effort.
func (s *service) expireSession(ctx context.Context, orderID uuid.UUID, sessionID string) {
	callCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.timeout)
	defer cancel()
	started := time.Now()
	err := s.sessions.ExpireCheckoutSession(callCtx, sessionID)
	s.metrics.ObserveProviderCall("stripe", "expire_session", started, err)
	if err != nil && s.logg != nil {
		logCtx := s.logg.WithFields(ctx, map[string]any{"order_id": orderID.String(), "session_id": sessionID})
		s.logg.Error(logCtx, "orphaned checkout session not expired", err)
	}
}

func (s *service) title(ctx context.Context, listing *models.Listing) string {
	if s.cards == nil {
		return "Trading card"
	}
	card, err := s.cards.FindCard(ctx, listing.CardID)
	if err != nil || card == nil || card.Name == "" {
		return "Trading card"
	}
	if listing.Condition != "" {
		return fmt.Sprintf("%s (%s)", card.Name, listing.Condition)
	}
	return card.Name
}

func asTyped(err error, op string) error {
	if pkgerrors.As(err) != nil {
		return err
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, op)
}
