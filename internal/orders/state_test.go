package orders

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/angelmondragon/cardtrove-backend/pkg/enums"
)

func TestCanTransition(t *testing.T) {
	cases := []struct {
		from, to enums.OrderStatus
		want     bool
	}{
		{enums.OrderStatusPaymentPending, enums.OrderStatusPaid, true},
		{enums.OrderStatusPaid, enums.OrderStatusNeedsShipping, true},
		{enums.OrderStatusNeedsShipping, enums.OrderStatusShipped, true},
		{enums.OrderStatusNeedsShipping, enums.OrderStatusLabelCreated, true},
		{enums.OrderStatusShipped, enums.OrderStatusDelivered, true},
		{enums.OrderStatusInTransit, enums.OrderStatusDelivered, true},
		{enums.OrderStatusDelivered, enums.OrderStatusComplete, true},
		{enums.OrderStatusLabelCreated, enums.OrderStatusCancelled, true},
		{enums.OrderStatusShipped, enums.OrderStatusCancelled, false},
		{enums.OrderStatusDelivered, enums.OrderStatusInTransit, false},
		{enums.OrderStatusPaymentPending, enums.OrderStatusShipped, false},
		{enums.OrderStatusCancelled, enums.OrderStatusPaid, false},
		{enums.OrderStatusComplete, enums.OrderStatusCancelled, false},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, CanTransition(tc.from, tc.to), "%s -> %s", tc.from, tc.to)
	}
}

func TestRankAndTerminal(t *testing.T) {
	assert.Less(t, Rank(enums.OrderStatusInTransit), Rank(enums.OrderStatusDelivered))
	assert.Less(t, Rank(enums.OrderStatusShipped), Rank(enums.OrderStatusInTransit))
	assert.Equal(t, -1, Rank(enums.OrderStatusCancelled))
	assert.Equal(t, -1, Rank(enums.OrderStatus("bogus")))

	assert.True(t, IsTerminal(enums.OrderStatusComplete))
	assert.True(t, IsTerminal(enums.OrderStatusCancelled))
	assert.False(t, IsTerminal(enums.OrderStatusDelivered))

	for _, status := range Cancellable() {
		assert.True(t, CanTransition(status, enums.OrderStatusCancelled), "%s", status)
	}
}
