package stripe

import (
	"context"
	"errors"
	"strings"

	"github.com/stripe/stripe-go/v84"
	"github.com/stripe/stripe-go/v84/checkout/session"
	"github.com/stripe/stripe-go/v84/refund"
)

// CheckoutSessionInput describes a single-listing hosted checkout.
type CheckoutSessionInput struct {
	OrderID         string
	Title           string
	UnitAmountCents int64
	Quantity        int64
	ShippingCents   int64
	Metadata        map[string]string
}

// CheckoutSession is the subset of the Stripe session the marketplace keeps.
type CheckoutSession struct {
	ID  string
	URL string
}

// CreateCheckoutSession opens a payment-mode Checkout Session. The order id is
// the idempotency key so a retried request cannot open a second session.
func (c *Client) CreateCheckoutSession(ctx context.Context, input CheckoutSessionInput) (*CheckoutSession, error) {
	if c == nil {
		return nil, errors.New("stripe client not configured")
	}
	if input.Quantity < 1 || input.UnitAmountCents <= 0 {
		return nil, errors.New("checkout session requires a positive amount and quantity")
	}

	params := &stripe.CheckoutSessionParams{
		Mode:              stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL:        stripe.String(c.successURL),
		CancelURL:         stripe.String(c.cancelURL),
		ClientReferenceID: stripe.String(input.OrderID),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			c.lineItem(input.Title, input.UnitAmountCents, input.Quantity),
		},
		PaymentIntentData: &stripe.CheckoutSessionPaymentIntentDataParams{
			Metadata: input.Metadata,
		},
	}
	if input.ShippingCents > 0 {
		params.LineItems = append(params.LineItems, c.lineItem("Shipping", input.ShippingCents, 1))
	}
	for key, value := range input.Metadata {
		params.AddMetadata(key, value)
	}
	params.Context = ctx
	params.SetIdempotencyKey("checkout-" + input.OrderID)

	sess, err := session.New(params)
	if err != nil {
		return nil, err
	}
	return &CheckoutSession{ID: sess.ID, URL: sess.URL}, nil
}

// ExpireCheckoutSession closes an open session so it can no longer be paid.
func (c *Client) ExpireCheckoutSession(ctx context.Context, sessionID string) error {
	if c == nil {
		return errors.New("stripe client not configured")
	}
	params := &stripe.CheckoutSessionExpireParams{}
	params.Context = ctx
	_, err := session.Expire(sessionID, params)
	return err
}

// RefundPayment refunds a payment intent in full and returns the refund id.
func (c *Client) RefundPayment(ctx context.Context, paymentIntentID, reason string) (string, error) {
	if c == nil {
		return "", errors.New("stripe client not configured")
	}
	if strings.TrimSpace(paymentIntentID) == "" {
		return "", errors.New("payment intent id required")
	}
	params := &stripe.RefundParams{
		PaymentIntent: stripe.String(paymentIntentID),
	}
	if reason != "" {
		params.AddMetadata("reason", reason)
	}
	params.Context = ctx
	params.SetIdempotencyKey("refund-" + paymentIntentID)

	r, err := refund.New(params)
	if err != nil {
		return "", err
	}
	return r.ID, nil
}

func (c *Client) lineItem(name string, unitAmount, quantity int64) *stripe.CheckoutSessionLineItemParams {
	return &stripe.CheckoutSessionLineItemParams{
		PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
			Currency: stripe.String(c.currency),
			ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
				Name: stripe.String(name),
			},
			UnitAmount: stripe.Int64(unitAmount),
		},
		Quantity: stripe.Int64(quantity),
	}
}
