package stripe

import (
	"errors"

	"github.com/stripe/stripe-go/v84"
	"github.com/stripe/stripe-go/v84/webhook"
)

var errSignatureMissing = errors.New("stripe signature missing")

// VerifyEvent checks the Stripe-Signature header against the raw payload before
// anything is decoded. API version drift between the account and the SDK is tolerated.
func (c *Client) VerifyEvent(payload []byte, signatureHeader string) (stripe.Event, error) {
	if signatureHeader == "" {
		return stripe.Event{}, errSignatureMissing
	}
	return webhook.ConstructEventWithOptions(payload, signatureHeader, c.SigningSecret(), webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
}
