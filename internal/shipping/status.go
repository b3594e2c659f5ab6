package shipping

import (
	"strings"

	"github.com/angelmondragon/cardtrove-backend/pkg/enums"
)

// MapCarrierStatus translates a carrier tracking status. ok is false for statuses
// that carry no state change (PRE_TRANSIT, UNKNOWN, anything unrecognised).
func MapCarrierStatus(raw string) (status enums.ShipmentStatus, ok bool) {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case "TRANSIT":
		return enums.ShipmentStatusInTransit, true
	case "DELIVERED":
		return enums.ShipmentStatusDelivered, true
	case "RETURNED", "FAILURE":
		return enums.ShipmentStatusException, true
	default:
		return "", false
	}
}

// shipmentRank orders shipment progress. An exception sits level with a purchased
// label so that later transit or delivery scans still apply.
func shipmentRank(status enums.ShipmentStatus) int {
	switch status {
	case enums.ShipmentStatusPending:
		return 0
	case enums.ShipmentStatusRatesFetched:
		return 1
	case enums.ShipmentStatusLabelPurchased, enums.ShipmentStatusException:
		return 2
	case enums.ShipmentStatusInTransit:
		return 3
	case enums.ShipmentStatusDelivered:
		return 4
	default:
		return -1
	}
}

// isAdvance reports whether moving from current to next is forward progress.
func isAdvance(current, next enums.ShipmentStatus) bool {
	if next == enums.ShipmentStatusException {
		return current != enums.ShipmentStatusException && current != enums.ShipmentStatusDelivered
	}
	return shipmentRank(next) > shipmentRank(current)
}
