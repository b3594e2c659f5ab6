package webhooks

import (
	"context"
	"io"
	"net/http"

	"github.com/angelmondragon/cardtrove-backend/api/responses"
	pkgerrors "github.com/angelmondragon/cardtrove-backend/pkg/errors"
	"github.com/angelmondragon/cardtrove-backend/pkg/logger"
)

const carrierSignatureHeader = "X-Carrier-Signature"

type TrackingHandler interface {
	OnCarrierWebhook(ctx context.Context, payload []byte, signature string) error
}

// CarrierWebhook forwards raw tracking updates; the shipping service verifies them.
func CarrierWebhook(svc TrackingHandler, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "shipping service unavailable"))
			return
		}

		payload, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBodyBytes))
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read request body"))
			return
		}

		if err := svc.OnCarrierWebhook(ctx, payload, r.Header.Get(carrierSignatureHeader)); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, nil)
	}
}
