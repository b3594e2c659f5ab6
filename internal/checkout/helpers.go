package checkout

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/angelmondragon/cardtrove-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/cardtrove-backend/pkg/errors"
	"github.com/angelmondragon/cardtrove-backend/pkg/types"
)

var validate = validator.New()

// OrderNumber renders CT-YYYYMMDD-XXXXXXXX from the order id and creation date.
func OrderNumber(orderID uuid.UUID, at time.Time) string {
	suffix := strings.ToUpper(strings.ReplaceAll(orderID.String(), "-", "")[:8])
	return fmt.Sprintf("CT-%s-%s", at.UTC().Format("20060102"), suffix)
}

func validateAddress(addr types.Address) error {
	if err := validate.Struct(addr); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) {
			details := map[string]string{}
			for _, fe := range fieldErrs {
				details["shippingAddress."+fe.Field()] = fe.Tag()
			}
			return pkgerrors.New(pkgerrors.CodeValidation, "shipping address is incomplete").WithDetails(details)
		}
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "shipping address is invalid")
	}
	return nil
}

// sessionMetadata mirrors the persisted order so the provider record can be
// reconciled without our database.
func sessionMetadata(order *models.Order) map[string]string {
	return map[string]string{
		"order_id":            order.ID.String(),
		"order_number":        order.OrderNumber,
		"listing_id":          order.ListingID.String(),
		"buyer_id":            order.BuyerID.String(),
		"seller_id":           order.SellerID.String(),
		"quantity":            strconv.Itoa(order.Quantity),
		"item_price_cents":    strconv.Itoa(order.ItemPriceCents),
		"shipping_cents":      strconv.Itoa(order.ShippingCents),
		"platform_fee_cents":  strconv.Itoa(order.PlatformFeeCents),
		"processor_fee_cents": strconv.Itoa(order.ProcessorFeeCents),
		"total_cents":         strconv.Itoa(order.TotalCents),
		"seller_net_cents":    strconv.Itoa(order.SellerNetCents),
	}
}
