package orders

import "github.com/angelmondragon/cardtrove-backend/pkg/enums"

var transitions = map[enums.OrderStatus][]enums.OrderStatus{
	enums.OrderStatusPaymentPending: {enums.OrderStatusPaid, enums.OrderStatusCancelled},
	enums.OrderStatusPaid:           {enums.OrderStatusNeedsShipping, enums.OrderStatusCancelled},
	enums.OrderStatusNeedsShipping:  {enums.OrderStatusLabelCreated, enums.OrderStatusShipped, enums.OrderStatusCancelled},
	enums.OrderStatusLabelCreated:   {enums.OrderStatusShipped, enums.OrderStatusCancelled},
	enums.OrderStatusShipped:        {enums.OrderStatusInTransit, enums.OrderStatusDelivered},
	enums.OrderStatusInTransit:      {enums.OrderStatusDelivered},
	enums.OrderStatusDelivered:      {enums.OrderStatusComplete},
}

// ranks order the forward path. Cancelled sits outside it.
var ranks = map[enums.OrderStatus]int{
	enums.OrderStatusPaymentPending: 0,
	enums.OrderStatusPaid:           1,
	enums.OrderStatusNeedsShipping:  2,
	enums.OrderStatusLabelCreated:   3,
	enums.OrderStatusShipped:        4,
	enums.OrderStatusInTransit:      5,
	enums.OrderStatusDelivered:      6,
	enums.OrderStatusComplete:       7,
}

// CanTransition reports whether from → to is an allowed edge.
func CanTransition(from, to enums.OrderStatus) bool {
	for _, candidate := range transitions[from] {
		if candidate == to {
			return true
		}
	}
	return false
}

// Rank returns the position of status on the forward path, or -1 for cancelled
// and unknown values.
func Rank(status enums.OrderStatus) int {
	rank, ok := ranks[status]
	if !ok {
		return -1
	}
	return rank
}

func IsTerminal(status enums.OrderStatus) bool {
	return status == enums.OrderStatusComplete || status == enums.OrderStatusCancelled
}

// Cancellable lists the states a seller or admin may still cancel from.
func Cancellable() []enums.OrderStatus {
	return []enums.OrderStatus{
		enums.OrderStatusPaymentPending,
		enums.OrderStatusPaid,
		enums.OrderStatusNeedsShipping,
		enums.OrderStatusLabelCreated,
	}
}
