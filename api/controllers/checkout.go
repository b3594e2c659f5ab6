package controllers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/angelmondragon/cardtrove-backend/api/middleware"
	"github.com/angelmondragon/cardtrove-backend/api/responses"
	"github.com/angelmondragon/cardtrove-backend/api/validators"
	checkoutsvc "github.com/angelmondragon/cardtrove-backend/internal/checkout"
	pkgerrors "github.com/angelmondragon/cardtrove-backend/pkg/errors"
	"github.com/angelmondragon/cardtrove-backend/pkg/logger"
	"github.com/angelmondragon/cardtrove-backend/pkg/types"
)

type checkoutRequest struct {
	ListingID       uuid.UUID     `json:"listingId" validate:"required"`
	OfferID         *uuid.UUID    `json:"offerId,omitempty"`
	Quantity        int           `json:"quantity" validate:"omitempty,min=1"`
	ShippingAddress types.Address `json:"shippingAddress"`
	ShippingCents   int           `json:"shippingCents" validate:"min=0"`
}

// Checkout opens a hosted payment session for one listing and records the pending order.
func Checkout(svc checkoutsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout service unavailable"))
			return
		}
		buyerID, err := middleware.RequireUserID(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload checkoutRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if payload.Quantity == 0 {
			payload.Quantity = 1
		}

		result, err := svc.Initiate(r.Context(), checkoutsvc.InitiateInput{
			ListingID:       payload.ListingID,
			BuyerID:         buyerID,
			OfferID:         payload.OfferID,
			Quantity:        payload.Quantity,
			ShippingAddress: payload.ShippingAddress.Normalized(),
			ShippingCents:   payload.ShippingCents,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, result)
	}
}
