package enums

import "fmt"

// ShipmentStatus is the carrier-side sub-state of an order's shipping phase.
type ShipmentStatus string

const (
	ShipmentStatusPending        ShipmentStatus = "pending"
	ShipmentStatusRatesFetched   ShipmentStatus = "rates_fetched"
	ShipmentStatusLabelPurchased ShipmentStatus = "label_purchased"
	ShipmentStatusInTransit      ShipmentStatus = "in_transit"
	ShipmentStatusDelivered      ShipmentStatus = "delivered"
	ShipmentStatusException      ShipmentStatus = "exception"
)

var validShipmentStatuses = []ShipmentStatus{
	ShipmentStatusPending,
	ShipmentStatusRatesFetched,
	ShipmentStatusLabelPurchased,
	ShipmentStatusInTransit,
	ShipmentStatusDelivered,
	ShipmentStatusException,
}

// String implements fmt.Stringer.
func (s ShipmentStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known ShipmentStatus.
func (s ShipmentStatus) IsValid() bool {
	for _, candidate := range validShipmentStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseShipmentStatus converts raw input into a ShipmentStatus.
func ParseShipmentStatus(value string) (ShipmentStatus, error) {
	for _, candidate := range validShipmentStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid shipment status %q", value)
}
