package listings

import pkgerrors "github.com/angelmondragon/cardtrove-backend/pkg/errors"

const (
	ReasonNotOwned         = "not_owned"
	ReasonNoImage          = "no_image"
	ReasonSellerIneligible = "seller_ineligible"
	ReasonNotActive        = "listing_not_active"
)

func errNotOwned() error {
	return pkgerrors.NewWithReason(pkgerrors.CodeForbidden, ReasonNotOwned, "collection item is not owned by the seller")
}

func errNoImage() error {
	return pkgerrors.NewWithReason(pkgerrors.CodeValidation, ReasonNoImage, "listing requires an image")
}

func errSellerIneligible() error {
	return pkgerrors.NewWithReason(pkgerrors.CodeForbidden, ReasonSellerIneligible, "seller is not eligible to list")
}

func errNotActive() error {
	return pkgerrors.NewWithReason(pkgerrors.CodeStateConflict, ReasonNotActive, "listing is not active")
}
