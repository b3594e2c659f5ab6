package offers

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/angelmondragon/cardtrove-backend/api/middleware"
	"github.com/angelmondragon/cardtrove-backend/api/responses"
	"github.com/angelmondragon/cardtrove-backend/api/validators"
	internaloffers "github.com/angelmondragon/cardtrove-backend/internal/offers"
	pkgerrors "github.com/angelmondragon/cardtrove-backend/pkg/errors"
	"github.com/angelmondragon/cardtrove-backend/pkg/logger"
)

type createOfferRequest struct {
	AmountCents int     `json:"amountCents" validate:"required,min=1"`
	Quantity    int     `json:"quantity" validate:"omitempty,min=1"`
	Message     *string `json:"message,omitempty" validate:"omitempty,max=500"`
}

type counterOfferRequest struct {
	CounterAmountCents int `json:"counterAmountCents" validate:"required,min=1"`
}

// Create places a buyer offer on a listing.
func Create(svc internaloffers.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "offers service unavailable"))
			return
		}
		buyerID, err := middleware.RequireUserID(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		listingID, err := validators.ParseUUIDParam(r, "listingId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var req createOfferRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if req.Quantity == 0 {
			req.Quantity = 1
		}
		if req.Message != nil {
			msg := strings.TrimSpace(*req.Message)
			req.Message = &msg
		}

		offer, err := svc.Create(r.Context(), internaloffers.CreateOfferInput{
			ListingID:   listingID,
			BuyerID:     buyerID,
			AmountCents: req.AmountCents,
			Quantity:    req.Quantity,
			Message:     req.Message,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, offer)
	}
}

// ListForListing returns offers on a listing for its seller.
func ListForListing(svc internaloffers.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "offers service unavailable"))
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
		page, err := validators.ParsePagination(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		list, err := svc.ListForListing(r.Context(), sellerID, listingID, page)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, list)
	}
}

// ListMine returns the caller's offers as a buyer.
func ListMine(svc internaloffers.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "offers service unavailable"))
			return
		}
		buyerID, err := middleware.RequireUserID(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		page, err := validators.ParsePagination(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		list, err := svc.ListForBuyer(r.Context(), buyerID, page)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, list)
	}
}

// Get returns an offer to either party.
func Get(svc internaloffers.Service, logg *logger.Logger) http.HandlerFunc {
	return respond(svc, logg, func(ctx context.Context, userID, offerID uuid.UUID, _ *http.Request) (*internaloffers.OfferDTO, error) {
		return svc.Get(ctx, userID, offerID)
	})
}

// Accept locks in the offer amount as the unit price for the buyer's checkout.
func Accept(svc internaloffers.Service, logg *logger.Logger) http.HandlerFunc {
	return respond(svc, logg, func(ctx context.Context, userID, offerID uuid.UUID, _ *http.Request) (*internaloffers.OfferDTO, error) {
		return svc.Accept(ctx, userID, offerID)
	})
}

func Decline(svc internaloffers.Service, logg *logger.Logger) http.HandlerFunc {
	return respond(svc, logg, func(ctx context.Context, userID, offerID uuid.UUID, _ *http.Request) (*internaloffers.OfferDTO, error) {
		return svc.Decline(ctx, userID, offerID)
	})
}

// Counter sets the seller's counter amount and resets the offer expiry.
func Counter(svc internaloffers.Service, logg *logger.Logger) http.HandlerFunc {
	return respond(svc, logg, func(ctx context.Context, userID, offerID uuid.UUID, r *http.Request) (*internaloffers.OfferDTO, error) {
		var req counterOfferRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			return nil, err
		}
		return svc.Counter(ctx, userID, offerID, req.CounterAmountCents)
	})
}

func Withdraw(svc internaloffers.Service, logg *logger.Logger) http.HandlerFunc {
	return respond(svc, logg, func(ctx context.Context, userID, offerID uuid.UUID, _ *http.Request) (*internaloffers.OfferDTO, error) {
		return svc.Withdraw(ctx, userID, offerID)
	})
}

type offerAction func(ctx context.Context, userID, offerID uuid.UUID, r *http.Request) (*internaloffers.OfferDTO, error)

func respond(svc internaloffers.Service, logg *logger.Logger, action offerAction) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "offers service unavailable"))
			return
		}
		userID, err := middleware.RequireUserID(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		offerID, err := validators.ParseUUIDParam(r, "offerId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		offer, err := action(r.Context(), userID, offerID, r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, offer)
	}
}
