package listings

import (
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/angelmondragon/cardtrove-backend/api/middleware"
	"github.com/angelmondragon/cardtrove-backend/api/responses"
	"github.com/angelmondragon/cardtrove-backend/api/validators"
	internallistings "github.com/angelmondragon/cardtrove-backend/internal/listings"
	"github.com/angelmondragon/cardtrove-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/cardtrove-backend/pkg/errors"
	"github.com/angelmondragon/cardtrove-backend/pkg/logger"
)

type createListingRequest struct {
	CollectionItemID uuid.UUID `json:"collectionItemId" validate:"required"`
	PriceCents       int       `json:"priceCents" validate:"required,min=1"`
	Quantity         int       `json:"quantity" validate:"required,min=1"`
	AllowOffers      bool      `json:"allowOffers"`
	Description      *string   `json:"description,omitempty" validate:"omitempty,max=2000"`
	ImageURL         *string   `json:"imageUrl,omitempty" validate:"omitempty,url"`
}

type updateListingRequest struct {
	PriceCents  *int    `json:"priceCents,omitempty" validate:"omitempty,min=1"`
	Description *string `json:"description,omitempty" validate:"omitempty,max=2000"`
	AllowOffers *bool   `json:"allowOffers,omitempty"`
	ImageURL    *string `json:"imageUrl,omitempty" validate:"omitempty,url"`
	Status      *string `json:"status,omitempty"`
}

// Create publishes a listing for one of the seller's collection items.
func Create(svc internallistings.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "listings service unavailable"))
			return
		}
		sellerID, err := middleware.RequireUserID(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var req createListingRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		listing, err := svc.Create(r.Context(), internallistings.CreateListingInput{
			SellerID:         sellerID,
			CollectionItemID: req.CollectionItemID,
			PriceCents:       req.PriceCents,
			Quantity:         req.Quantity,
			AllowOffers:      req.AllowOffers,
			Description:      trimmed(req.Description),
			ImageURL:         trimmed(req.ImageURL),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, listing)
	}
}

// List browses active listings, optionally filtered by card or seller.
func List(svc internallistings.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "listings service unavailable"))
			return
		}
		page, err := validators.ParsePagination(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		cardID, err := validators.ParseOptionalUUIDQuery(r, "cardId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		sellerID, err := validators.ParseOptionalUUIDQuery(r, "sellerId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		list, err := svc.ListActive(r.Context(), internallistings.ListParams{
			CardID:   cardID,
			SellerID: sellerID,
			Params:   page,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, list)
	}
}

// Get returns one listing.
func Get(svc internallistings.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "listings service unavailable"))
			return
		}
		listingID, err := validators.ParseUUIDParam(r, "listingId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		listing, err := svc.Get(r.Context(), listingID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, listing)
	}
}

// Update edits price, description, offers flag or image of an owned listing.
func Update(svc internallistings.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "listings service unavailable"))
			return
		}
		sellerID, err := middleware.RequireUserID(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		listingID, err := validators.ParseUUIDParam(r, "listingId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var req updateListingRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		input := internallistings.UpdateListingInput{
			SellerID:    sellerID,
			ListingID:   listingID,
			PriceCents:  req.PriceCents,
			Description: trimmed(req.Description),
			AllowOffers: req.AllowOffers,
			ImageURL:    trimmed(req.ImageURL),
		}
		if req.Status != nil {
			status, err := enums.ParseListingStatus(strings.TrimSpace(*req.Status))
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status"))
				return
			}
			input.Status = &status
		}

		listing, err := svc.Update(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, listing)
	}
}

// Cancel withdraws an owned listing from sale.
func Cancel(svc internallistings.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "listings service unavailable"))
			return
		}
		sellerID, err := middleware.RequireUserID(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		listingID, err := validators.ParseUUIDParam(r, "listingId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		listing, err := svc.Cancel(r.Context(), sellerID, listingID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, listing)
	}
}

func trimmed(v *string) *string {
	if v == nil {
		return nil
	}
	out := strings.TrimSpace(*v)
	return &out
}
