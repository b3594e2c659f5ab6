package fees

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/cardtrove-backend/pkg/config"
	pkgerrors "github.com/angelmondragon/cardtrove-backend/pkg/errors"
)

func TestComputeTenDollarItemThreeDollarShipping(t *testing.T) {
	got, err := Compute(1000, 300)
	require.NoError(t, err)

	assert.Equal(t, Breakdown{PlatformFee: 60, ProcessorFee: 68, Total: 1300, SellerNet: 872}, got)
}

func TestComputeTable(t *testing.T) {
	tests := []struct {
		name     string
		item     int
		shipping int
		want     Breakdown
	}{
		{name: "zero", item: 0, shipping: 0, want: Breakdown{PlatformFee: 0, ProcessorFee: 30, Total: 0, SellerNet: -30}},
		{name: "one cent", item: 1, shipping: 0, want: Breakdown{PlatformFee: 0, ProcessorFee: 30, Total: 1, SellerNet: -29}},
		{name: "rounds half up", item: 25, shipping: 0, want: Breakdown{PlatformFee: 2, ProcessorFee: 31, Total: 25, SellerNet: -8}},
		{name: "hundred dollars free shipping", item: 10000, shipping: 0, want: Breakdown{PlatformFee: 600, ProcessorFee: 320, Total: 10000, SellerNet: 9080}},
		{name: "odd cents", item: 1999, shipping: 499, want: Breakdown{PlatformFee: 120, ProcessorFee: 102, Total: 2498, SellerNet: 1777}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Compute(tt.item, tt.shipping)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestComputeIsDeterministicAndReconciles(t *testing.T) {
	for item := 0; item <= 50000; item += 137 {
		for _, shipping := range []int{0, 1, 300, 999, 2500} {
			first, err := Compute(item, shipping)
			require.NoError(t, err)
			second, err := Compute(item, shipping)
			require.NoError(t, err)
			require.Equal(t, first, second)

			require.Equal(t, item, first.SellerNet+first.PlatformFee+first.ProcessorFee)
			require.Equal(t, item+shipping, first.Total)
		}
	}
}

func TestShippingNeverChangesPlatformFee(t *testing.T) {
	base, err := Compute(4200, 0)
	require.NoError(t, err)
	withShipping, err := Compute(4200, 1500)
	require.NoError(t, err)

	assert.Equal(t, base.PlatformFee, withShipping.PlatformFee)
	assert.Greater(t, withShipping.ProcessorFee, base.ProcessorFee)
}

func TestComputeRejectsNegativeInputs(t *testing.T) {
	_, err := Compute(-1, 0)
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.As(err).Code())

	_, err = Compute(100, -5)
	require.Error(t, err)
}

func TestScheduleFromConfig(t *testing.T) {
	schedule, err := ScheduleFromConfig(config.MarketplaceConfig{
		PlatformFeePercent:     "10",
		ProcessorFeePercent:    "3",
		ProcessorFeeFixedCents: 0,
	})
	require.NoError(t, err)

	got, err := schedule.Compute(1000, 0)
	require.NoError(t, err)
	assert.Equal(t, Breakdown{PlatformFee: 100, ProcessorFee: 30, Total: 1000, SellerNet: 870}, got)

	_, err = ScheduleFromConfig(config.MarketplaceConfig{PlatformFeePercent: "abc", ProcessorFeePercent: "1"})
	require.Error(t, err)
}
