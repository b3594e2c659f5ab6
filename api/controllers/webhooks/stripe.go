package webhooks

import (
	"context"
	"io"
	"net/http"

	"github.com/stripe/stripe-go/v84"

	"github.com/angelmondragon/cardtrove-backend/api/responses"
	"github.com/angelmondragon/cardtrove-backend/internal/payments"
	pkgerrors "github.com/angelmondragon/cardtrove-backend/pkg/errors"
	"github.com/angelmondragon/cardtrove-backend/pkg/logger"
	"github.com/angelmondragon/cardtrove-backend/pkg/metrics"
)

const maxWebhookBodyBytes = 1 << 20

type PaymentEventHandler interface {
	HandleEvent(ctx context.Context, event *stripe.Event) (payments.Outcome, error)
}

type EventVerifier interface {
	VerifyEvent(payload []byte, signatureHeader string) (stripe.Event, error)
}

type EventGuard interface {
	Seen(ctx context.Context, eventID string) (bool, error)
	Forget(ctx context.Context, eventID string) error
}

// StripeWebhook applies checkout session events to orders. The signature is
// checked against the raw body before anything is decoded. guard may be nil.
func StripeWebhook(svc PaymentEventHandler, verifier EventVerifier, guard EventGuard, m *metrics.Marketplace, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payments service unavailable"))
			return
		}
		if verifier == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "stripe client unavailable"))
			return
		}

		payload, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBodyBytes))
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read request body"))
			return
		}

		event, err := verifier.VerifyEvent(payload, r.Header.Get("Stripe-Signature"))
		if err != nil {
			m.IncWebhook("stripe", "rejected")
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid stripe signature"))
			return
		}
		if logg != nil {
			ctx = logg.WithFields(ctx, map[string]any{"stripe_event_id": event.ID, "stripe_event_type": string(event.Type)})
		}

		if guard != nil {
			seen, err := guard.Seen(ctx, event.ID)
			if err != nil {
				// Redis is an optimization only; order state still guards replays.
				if logg != nil {
					logg.Warn(ctx, "stripe event guard unavailable: "+err.Error())
				}
			} else if seen {
				m.IncWebhook("stripe", string(payments.OutcomeAlreadyProcessed))
				responses.WriteSuccess(w, map[string]string{"outcome": string(payments.OutcomeAlreadyProcessed)})
				return
			}
		}

		outcome, err := svc.HandleEvent(ctx, &event)
		if err != nil {
			if pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
				// Unknown session: acknowledge so the provider stops retrying.
				if logg != nil {
					logg.Warn(ctx, "stripe event references unknown checkout session")
				}
				m.IncWebhook("stripe", "unknown_session")
				responses.WriteSuccess(w, map[string]string{"outcome": string(payments.OutcomeIgnored)})
				return
			}
			if guard != nil {
				_ = guard.Forget(ctx, event.ID)
			}
			m.IncWebhook("stripe", "error")
			responses.WriteError(ctx, logg, w, err)
			return
		}

		m.IncWebhook("stripe", string(outcome))
		if logg != nil {
			logg.Info(ctx, "stripe event processed: "+string(outcome))
		}
		responses.WriteSuccess(w, map[string]string{"outcome": string(outcome)})
	}
}
