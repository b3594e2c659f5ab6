package listings

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/cardtrove-backend/internal/catalog"
	"github.com/angelmondragon/cardtrove-backend/pkg/db/models"
	"github.com/angelmondragon/cardtrove-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/cardtrove-backend/pkg/errors"
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

type userLoader interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

type ownedItemLoader interface {
	FindOwnedItem(ctx context.Context, ownerID, itemID uuid.UUID) (*catalog.OwnedItem, error)
}

// Service exposes listing management and browse operations.
type Service interface {
	Create(ctx context.Context, input CreateListingInput) (*ListingDTO, error)
	Update(ctx context.Context, input UpdateListingInput) (*ListingDTO, error)
	Cancel(ctx context.Context, sellerID, listingID uuid.UUID) (*ListingDTO, error)
	Get(ctx context.Context, listingID uuid.UUID) (*ListingDTO, error)
	ListActive(ctx context.Context, params ListParams) (*ListingList, error)
}

// CreateListingInput holds the validated payload to publish a listing.
type CreateListingInput struct {
	SellerID         uuid.UUID
	CollectionItemID uuid.UUID
	PriceCents       int
	Quantity         int
	AllowOffers      bool
	Description      *string
	ImageURL         *string
}

// UpdateListingInput holds optional mutations. Status may only move to cancelled.
type UpdateListingInput struct {
	SellerID    uuid.UUID
	ListingID   uuid.UUID
	PriceCents  *int
	Description *string
	AllowOffers *bool
	ImageURL    *string
	Status      *enums.ListingStatus
}

// ListParams filters the active listing browse.
type ListParams struct {
	CardID   *uuid.UUID
	SellerID *uuid.UUID
	pagination.Params
}

type service struct {
	repo    Repository
	tx      txRunner
	outbox  outboxPublisher
	users   userLoader
	catalog ownedItemLoader
	now     func() time.Time
}

// NewService constructs the listing service.
func NewService(repo Repository, tx txRunner, outbox outboxPublisher, users userLoader, catalog ownedItemLoader) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("listings repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if outbox == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if users == nil {
		return nil, fmt.Errorf("users repository required")
	}
	if catalog == nil {
		return nil, fmt.Errorf("catalog repository required")
	}
	return &service{
		repo:    repo,
		tx:      tx,
		outbox:  outbox,
		users:   users,
		catalog: catalog,
		now:     func() time.Time { return time.Now().UTC() },
	}, nil
}

func (s *service) Create(ctx context.Context, input CreateListingInput) (*ListingDTO, error) {
	if input.PriceCents <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "price_cents must be positive")
	}
	if input.Quantity < 1 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be at least 1")
	}

	seller, err := s.users.FindByID(ctx, input.SellerID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errSellerIneligible()
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load seller")
	}
	if !seller.CanSell() {
		return nil, errSellerIneligible()
	}

	owned, err := s.catalog.FindOwnedItem(ctx, input.SellerID, input.CollectionItemID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errNotOwned()
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load collection item")
	}

	image := trimmedPtr(input.ImageURL)
	if image == nil {
		image = owned.BestImage()
	}
	if image == nil {
		return nil, errNoImage()
	}

	now := s.now()
	listing := &models.Listing{
		ID:                uuid.New(),
		SellerID:          input.SellerID,
		CollectionItemID:  owned.Item.ID,
		CardID:            owned.Card.ID,
		PriceCents:        input.PriceCents,
		Quantity:          input.Quantity,
		QuantityAvailable: input.Quantity,
		AllowOffers:       input.AllowOffers,
		Condition:         owned.Item.Condition,
		Description:       trimmedPtr(input.Description),
		ImageURL:          image,
		Status:            enums.ListingStatusActive,
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	if err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.repo.WithTx(tx).Create(ctx, listing); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: insert listing")
		}
		return s.emit(ctx, tx, enums.EventListingCreated, listing)
	}); err != nil {
		return nil, asTyped(err, "create listing")
	}
	return NewListingDTO(listing), nil
}

func (s *service) Update(ctx context.Context, input UpdateListingInput) (*ListingDTO, error) {
	if input.Status != nil {
		if *input.Status != enums.ListingStatusCancelled {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "status may only be set to cancelled")
		}
		return s.Cancel(ctx, input.SellerID, input.ListingID)
	}
	if input.PriceCents != nil && *input.PriceCents <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "price_cents must be positive")
	}

	listing, err := s.loadOwned(ctx, input.SellerID, input.ListingID)
	if err != nil {
		return nil, err
	}
	if listing.Status != enums.ListingStatusActive {
		return nil, errNotActive()
	}

	updates := map[string]any{"updated_at": s.now()}
	if input.PriceCents != nil {
		updates["price_cents"] = *input.PriceCents
	}
	if input.Description != nil {
		updates["description"] = trimmedPtr(input.Description)
	}
	if input.AllowOffers != nil {
		updates["allow_offers"] = *input.AllowOffers
	}
	if input.ImageURL != nil {
		image := trimmedPtr(input.ImageURL)
		if image == nil {
			return nil, errNoImage()
		}
		updates["image_url"] = *image
	}

	var updated *models.Listing
	if err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		ok, err := repo.UpdateActive(ctx, listing.ID, updates)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: update listing")
		}
		if !ok {
			return errNotActive()
		}
		updated, err = repo.FindByID(ctx, listing.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: reload listing")
		}
		return nil
	}); err != nil {
		return nil, asTyped(err, "update listing")
	}
	return NewListingDTO(updated), nil
}

// Cancel soft-cancels the listing. Cancelling an already cancelled listing succeeds
// without side effects; orders already placed are untouched.
func (s *service) Cancel(ctx context.Context, sellerID, listingID uuid.UUID) (*ListingDTO, error) {
	listing, err := s.loadOwned(ctx, sellerID, listingID)
	if err != nil {
		return nil, err
	}
	if listing.Status == enums.ListingStatusCancelled {
		return NewListingDTO(listing), nil
	}
	if listing.Status != enums.ListingStatusActive {
		return nil, errNotActive()
	}

	var result *models.Listing
	if err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		changed, err := repo.Cancel(ctx, listing.ID, s.now())
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: cancel listing")
		}
		result, err = repo.FindByID(ctx, listing.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: reload listing")
		}
		if !changed {
			if result.Status == enums.ListingStatusCancelled {
				return nil
			}
			return errNotActive()
		}
		return s.emit(ctx, tx, enums.EventListingCancelled, result)
	}); err != nil {
		return nil, asTyped(err, "cancel listing")
	}
	return NewListingDTO(result), nil
}

func (s *service) Get(ctx context.Context, listingID uuid.UUID) (*ListingDTO, error) {
	listing, err := s.repo.FindByID(ctx, listingID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "listing not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load listing")
	}
	return NewListingDTO(listing), nil
}

func (s *service) ListActive(ctx context.Context, params ListParams) (*ListingList, error) {
	window, err := params.Resolve()
	if err != nil {
		return nil, err
	}
	rows, err := s.repo.ListActive(ctx, listQuery{
		cardID:   params.CardID,
		sellerID: params.SellerID,
		cursor:   window.Cursor,
		limit:    window.Fetch(),
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list listings")
	}
	rows, nextCursor := pagination.Trim(rows, window, func(l models.Listing) pagination.Cursor {
		return pagination.Cursor{CreatedAt: l.CreatedAt, ID: l.ID}
	})

	items := make([]ListingDTO, 0, len(rows))
	for i := range rows {
		items = append(items, *NewListingDTO(&rows[i]))
	}
	return &ListingList{Listings: items, NextCursor: nextCursor}, nil
}

func (s *service) loadOwned(ctx context.Context, sellerID, listingID uuid.UUID) (*models.Listing, error) {
	listing, err := s.repo.FindByID(ctx, listingID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "listing not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load listing")
	}
	if listing.SellerID != sellerID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "listing belongs to another seller")
	}
	return listing, nil
}

func (s *service) emit(ctx context.Context, tx *gorm.DB, eventType enums.OutboxEventType, listing *models.Listing) error {
	event := outbox.DomainEvent{
		EventType:     eventType,
		AggregateType: enums.AggregateListing,
		AggregateID:   listing.ID,
		Version:       1,
		Actor:         &outbox.ActorRef{UserID: listing.SellerID, Role: string(enums.RoleUser)},
		Data: payloads.ListingEvent{
			ListingID:         listing.ID,
			SellerID:          listing.SellerID,
			CardID:            listing.CardID,
			PriceCents:        listing.PriceCents,
			QuantityAvailable: listing.QuantityAvailable,
			Status:            listing.Status,
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
