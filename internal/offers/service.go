package offers

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/cardtrove-backend/pkg/db"
	"github.com/angelmondragon/cardtrove-backend/pkg/db/models"
	"github.com/angelmondragon/cardtrove-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/cardtrove-backend/pkg/errors"
	"github.com/angelmondragon/cardtrove-backend/pkg/logger"
	"github.com/angelmondragon/cardtrove-backend/pkg/outbox"
	"github.com/angelmondragon/cardtrove-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/cardtrove-backend/pkg/pagination"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type listingLoader interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Listing, error)
}

type blockChecker interface {
	IsBlocked(ctx context.Context, a, b uuid.UUID) (bool, error)
}

// Service exposes the offer negotiation lifecycle.
type Service interface {
	Create(ctx context.Context, input CreateOfferInput) (*OfferDTO, error)
	Accept(ctx context.Context, sellerID, offerID uuid.UUID) (*OfferDTO, error)
	Decline(ctx context.Context, sellerID, offerID uuid.UUID) (*OfferDTO, error)
	Counter(ctx context.Context, sellerID, offerID uuid.UUID, counterCents int) (*OfferDTO, error)
	Withdraw(ctx context.Context, buyerID, offerID uuid.UUID) (*OfferDTO, error)
	Get(ctx context.Context, viewerID, offerID uuid.UUID) (*OfferDTO, error)
	ListForListing(ctx context.Context, sellerID, listingID uuid.UUID, params pagination.Params) (*OfferList, error)
	ListForBuyer(ctx context.Context, buyerID uuid.UUID, params pagination.Params) (*OfferList, error)
}

// CreateOfferInput holds a buyer's per-unit offer.
type CreateOfferInput struct {
	ListingID   uuid.UUID
	BuyerID     uuid.UUID
	AmountCents int
	Quantity    int
	Message     *string
}

// ServiceParams wires the offer service.
type ServiceParams struct {
	Repo     Repository
	Listings listingLoader
	Blocks   blockChecker
	Tx       txRunner
	Outbox   outboxPublisher
	Logger   *logger.Logger
	TTL      time.Duration
	Now      func() time.Time
}

type service struct {
	repo     Repository
	listings listingLoader
	blocks   blockChecker
	tx       txRunner
	outbox   outboxPublisher
	logg     *logger.Logger
	ttl      time.Duration
	now      func() time.Time
}

// NewService constructs the offer service.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("offers repository required")
	}
	if params.Listings == nil {
		return nil, fmt.Errorf("listings repository required")
	}
	if params.Blocks == nil {
		return nil, fmt.Errorf("block checker required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if params.TTL <= 0 {
		return nil, fmt.Errorf("offer ttl must be positive")
	}
	now := params.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &service{
		repo:     params.Repo,
		listings: params.Listings,
		blocks:   params.Blocks,
		tx:       params.Tx,
		outbox:   params.Outbox,
		logg:     params.Logger,
		ttl:      params.TTL,
		now:      now,
	}, nil
}

func (s *service) Create(ctx context.Context, input CreateOfferInput) (*OfferDTO, error) {
	if input.AmountCents <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "amount_cents must be positive")
	}
	if input.Quantity == 0 {
		input.Quantity = 1
	}
	if input.Quantity < 1 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be at least 1")
	}

	listing, err := s.listings.FindByID(ctx, input.ListingID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "listing not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load listing")
	}
	if listing.SellerID == input.BuyerID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "cannot make an offer on your own listing")
	}
	if listing.Status != enums.ListingStatusActive {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "listing is not active")
	}
	if !listing.AllowOffers {
		return nil, pkgerrors.NewWithReason(pkgerrors.CodeStateConflict, ReasonOffersDisabled, "listing does not accept offers")
	}
	if input.Quantity > listing.QuantityAvailable {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity exceeds available units")
	}
	blocked, err := s.blocks.IsBlocked(ctx, listing.SellerID, input.BuyerID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check blocks")
	}
	if blocked {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "seller is not accepting offers from this buyer")
	}

	now := s.now()
	offer := &models.Offer{
		ID:          uuid.New(),
		ListingID:   listing.ID,
		BuyerID:     input.BuyerID,
		SellerID:    listing.SellerID,
		AmountCents: input.AmountCents,
		Quantity:    input.Quantity,
		Message:     trimmedPtr(input.Message),
		Status:      enums.OfferStatusPending,
		ExpiresAt:   now.Add(s.ttl),
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if _, err := repo.ExpireDue(ctx, expiryFilter{listingID: &listing.ID, buyerID: &input.BuyerID}, now); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: expire offers")
		}
		pending, err := repo.HasPending(ctx, listing.ID, input.BuyerID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: check pending offers")
		}
		if pending {
			return errDuplicatePending()
		}
		if err := repo.Create(ctx, offer); err != nil {
			if db.IsUniqueViolation(err, "") {
				return errDuplicatePending()
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: insert offer")
		}
		return s.emit(ctx, tx, enums.EventOfferCreated, offer, input.BuyerID)
	}); err != nil {
		return nil, asTyped(err, "create offer")
	}
	return NewOfferDTO(offer), nil
}

func (s *service) Accept(ctx context.Context, sellerID, offerID uuid.UUID) (*OfferDTO, error) {
	return s.respond(ctx, offerID, sellerID, false, enums.OfferStatusAccepted, nil)
}

func (s *service) Decline(ctx context.Context, sellerID, offerID uuid.UUID) (*OfferDTO, error) {
	return s.respond(ctx, offerID, sellerID, false, enums.OfferStatusDeclined, nil)
}

// Counter records the seller's counter price. No new offer is created; the buyer may
// submit a fresh offer once this one is no longer pending.
func (s *service) Counter(ctx context.Context, sellerID, offerID uuid.UUID, counterCents int) (*OfferDTO, error) {
	if counterCents <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "counter_amount_cents must be positive")
	}
	return s.respond(ctx, offerID, sellerID, false, enums.OfferStatusCountered, map[string]any{
		"counter_amount_cents": counterCents,
	})
}

func (s *service) Withdraw(ctx context.Context, buyerID, offerID uuid.UUID) (*OfferDTO, error) {
	return s.respond(ctx, offerID, buyerID, true, enums.OfferStatusWithdrawn, nil)
}

func (s *service) respond(ctx context.Context, offerID, actorID uuid.UUID, actorIsBuyer bool, to enums.OfferStatus, updates map[string]any) (*OfferDTO, error) {
	var result *models.Offer
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		offer, err := repo.FindByID(ctx, offerID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "offer not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: load offer")
		}
		if actorIsBuyer && offer.BuyerID != actorID {
			return pkgerrors.New(pkgerrors.CodeForbidden, "only the buyer may withdraw this offer")
		}
		if !actorIsBuyer && offer.SellerID != actorID {
			return pkgerrors.New(pkgerrors.CodeForbidden, "only the seller may respond to this offer")
		}

		now := s.now()
		changed, err := repo.TransitionPending(ctx, offer.ID, now, to, updates)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: update offer")
		}
		if !changed {
			return errOfferNotPending()
		}
		result, err = repo.FindByID(ctx, offer.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: reload offer")
		}
		return s.emit(ctx, tx, enums.EventOfferResponded, result, actorID)
	})
	if err != nil {
		if pkgerrors.ReasonOf(err) == ReasonOfferNotPending {
			// an expired offer is persisted as such even though the action fails
			s.expire(ctx, offerID)
		}
		return nil, asTyped(err, "respond to offer")
	}
	return NewOfferDTO(result), nil
}

func (s *service) Get(ctx context.Context, viewerID, offerID uuid.UUID) (*OfferDTO, error) {
	s.expire(ctx, offerID)
	offer, err := s.repo.FindByID(ctx, offerID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "offer not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load offer")
	}
	if offer.BuyerID != viewerID && offer.SellerID != viewerID {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "offer not found")
	}
	return NewOfferDTO(offer), nil
}

func (s *service) ListForListing(ctx context.Context, sellerID, listingID uuid.UUID, params pagination.Params) (*OfferList, error) {
	listing, err := s.listings.FindByID(ctx, listingID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "listing not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load listing")
	}
	if listing.SellerID != sellerID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "listing belongs to another seller")
	}
	if _, err := s.repo.ExpireDue(ctx, expiryFilter{listingID: &listingID}, s.now()); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "expire offers")
	}
	return s.list(ctx, listQuery{listingID: &listingID}, params)
}

func (s *service) ListForBuyer(ctx context.Context, buyerID uuid.UUID, params pagination.Params) (*OfferList, error) {
	if _, err := s.repo.ExpireDue(ctx, expiryFilter{buyerID: &buyerID}, s.now()); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "expire offers")
	}
	return s.list(ctx, listQuery{buyerID: &buyerID}, params)
}

func (s *service) list(ctx context.Context, query listQuery, params pagination.Params) (*OfferList, error) {
	window, err := params.Resolve()
	if err != nil {
		return nil, err
	}
	query.cursor, query.limit = window.Cursor, window.Fetch()

	rows, err := s.repo.List(ctx, query)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list offers")
	}
	rows, nextCursor := pagination.Trim(rows, window, func(o models.Offer) pagination.Cursor {
		return pagination.Cursor{CreatedAt: o.CreatedAt, ID: o.ID}
	})
	items := make([]OfferDTO, 0, len(rows))
	for i := range rows {
		items = append(items, *NewOfferDTO(&rows[i]))
	}
	return &OfferList{Offers: items, NextCursor: nextCursor}, nil
}

// expire persists the read-time expiry. Failures only delay it to the next read.
func (s *service) expire(ctx context.Context, offerID uuid.UUID) {
	if _, err := s.repo.ExpireIfDue(ctx, offerID, s.now()); err != nil && s.logg != nil {
		logCtx := s.logg.WithFields(ctx, map[string]any{"offer_id": offerID.String(), "error": err.Error()})
		s.logg.Warn(logCtx, "offer expiry not persisted")
	}
}

func (s *service) emit(ctx context.Context, tx *gorm.DB, eventType enums.OutboxEventType, offer *models.Offer, actorID uuid.UUID) error {
	event := outbox.DomainEvent{
		EventType:     eventType,
		AggregateType: enums.AggregateOffer,
		AggregateID:   offer.ID,
		Version:       1,
		Actor:         &outbox.ActorRef{UserID: actorID, Role: string(enums.RoleUser)},
		Data: payloads.OfferEvent{
			OfferID:            offer.ID,
			ListingID:          offer.ListingID,
			BuyerID:            offer.BuyerID,
			SellerID:           offer.SellerID,
			AmountCents:        offer.AmountCents,
			CounterAmountCents: offer.CounterAmountCents,
			Status:             offer.Status,
		},
	}
	if err := s.outbox.Emit(ctx, tx, event); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit "+string(eventType))
	}
	return nil
}

func asTyped(err error, op string) error {
	if pkgerrors.As(err) != nil {
		return err
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, op)
}

func trimmedPtr(value *string) *string {
	if value == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
