package offers

import pkgerrors "github.com/angelmondragon/cardtrove-backend/pkg/errors"

const (
	ReasonOfferNotPending  = "offer_not_pending"
	ReasonDuplicatePending = "duplicate_pending_offer"
	ReasonOffersDisabled   = "offers_disabled"
)

func errOfferNotPending() error {
	return pkgerrors.NewWithReason(pkgerrors.CodeStateConflict, ReasonOfferNotPending, "offer is not pending")
}

func errDuplicatePending() error {
	return pkgerrors.NewWithReason(pkgerrors.CodeConflict, ReasonDuplicatePending, "a pending offer already exists for this listing")
}
