// Package fees computes the platform and processor fees charged on an order.
package fees

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/cardtrove-backend/pkg/config"
	pkgerrors "github.com/angelmondragon/cardtrove-backend/pkg/errors"
)

var hundred = decimal.NewFromInt(100)

// Schedule holds the percentages and fixed charge applied to every order.
type Schedule struct {
	PlatformPercent     decimal.Decimal
	ProcessorPercent    decimal.Decimal
	ProcessorFixedCents int
}

// Breakdown is the persisted fee result, in cents.
type Breakdown struct {
	PlatformFee  int `json:"platformFeeCents"`
	ProcessorFee int `json:"processorFeeCents"`
	Total        int `json:"totalCents"`
	SellerNet    int `json:"sellerNetCents"`
}

// DefaultSchedule is 6% platform, 2.9% + $0.30 processor.
func DefaultSchedule() Schedule {
	return Schedule{
		PlatformPercent:     decimal.RequireFromString("6"),
		ProcessorPercent:    decimal.RequireFromString("2.9"),
		ProcessorFixedCents: 30,
	}
}

// ScheduleFromConfig parses the configured percentages.
func ScheduleFromConfig(cfg config.MarketplaceConfig) (Schedule, error) {
	platform, err := decimal.NewFromString(cfg.PlatformFeePercent)
	if err != nil {
		return Schedule{}, fmt.Errorf("parse platform fee percent %q: %w", cfg.PlatformFeePercent, err)
	}
	processor, err := decimal.NewFromString(cfg.ProcessorFeePercent)
	if err != nil {
		return Schedule{}, fmt.Errorf("parse processor fee percent %q: %w", cfg.ProcessorFeePercent, err)
	}
	if platform.IsNegative() || processor.IsNegative() {
		return Schedule{}, fmt.Errorf("fee percentages must not be negative")
	}
	return Schedule{
		PlatformPercent:     platform,
		ProcessorPercent:    processor,
		ProcessorFixedCents: cfg.ProcessorFeeFixedCents,
	}, nil
}

// Compute returns the fee breakdown for an item subtotal and shipping charge.
// Shipping only affects the processor fee and the total, never the seller net.
func (s Schedule) Compute(itemSubtotalCents, shippingCents int) (Breakdown, error) {
	if itemSubtotalCents < 0 || shippingCents < 0 {
		return Breakdown{}, pkgerrors.New(pkgerrors.CodeValidation, "item price and shipping must not be negative")
	}

	item := decimal.NewFromInt(int64(itemSubtotalCents))
	gross := item.Add(decimal.NewFromInt(int64(shippingCents)))

	platform := item.Mul(s.PlatformPercent).Div(hundred).Round(0)
	processor := gross.Mul(s.ProcessorPercent).Div(hundred).
		Add(decimal.NewFromInt(int64(s.ProcessorFixedCents))).
		Round(0)

	b := Breakdown{
		PlatformFee:  int(platform.IntPart()),
		ProcessorFee: int(processor.IntPart()),
		Total:        itemSubtotalCents + shippingCents,
	}
	b.SellerNet = itemSubtotalCents - b.PlatformFee - b.ProcessorFee
	return b, nil
}

// Compute applies the default schedule.
func Compute(itemSubtotalCents, shippingCents int) (Breakdown, error) {
	return DefaultSchedule().Compute(itemSubtotalCents, shippingCents)
}
