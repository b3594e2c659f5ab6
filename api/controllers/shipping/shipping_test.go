package shipping

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/cardtrove-backend/api/middleware"
	internalshipping "github.com/angelmondragon/cardtrove-backend/internal/shipping"
	pkgerrors "github.com/angelmondragon/cardtrove-backend/pkg/errors"
	"github.com/angelmondragon/cardtrove-backend/pkg/types"
)

type stubService struct {
	seller uuid.UUID
	order  uuid.UUID
	parcel types.Parcel
	rateID string
	err    error
}

func (s *stubService) GetRates(_ context.Context, sellerID, orderID uuid.UUID, parcel types.Parcel) ([]internalshipping.Rate, error) {
	s.seller, s.order, s.parcel = sellerID, orderID, parcel
	if s.err != nil {
		return nil, s.err
	}
	return []internalshipping.Rate{
		{RateID: "rate_a", CarrierServiceName: "USPS Ground Advantage", AmountCents: 485, EstimatedDays: 3},
	}, nil
}

func (s *stubService) PurchaseLabel(_ context.Context, sellerID, orderID uuid.UUID, rateID string) (*internalshipping.LabelResult, error) {
	s.seller, s.order, s.rateID = sellerID, orderID, rateID
	if s.err != nil {
		return nil, s.err
	}
	return &internalshipping.LabelResult{LabelURL: "https://labels.test/1.pdf", TrackingNumber: "9400111", TrackingURL: "https://track.test/9400111"}, nil
}

func (s *stubService) OnCarrierWebhook(context.Context, []byte, string) error {
	return nil
}

func newTestRouter(svc internalshipping.Service, sellerID uuid.UUID) http.Handler {
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			next.ServeHTTP(w, req.WithContext(middleware.WithUserID(req.Context(), sellerID.String())))
		})
	})
	r.Post("/orders/{orderId}/shipping/rates", Rates(svc, nil))
	r.Post("/orders/{orderId}/shipping/label", Label(svc, nil))
	return r
}

func post(h http.Handler, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestRates(t *testing.T) {
	seller := uuid.New()
	order := uuid.New()
	svc := &stubService{}

	rec := post(newTestRouter(svc, seller), "/orders/"+order.String()+"/shipping/rates", `{"parcel":{"lengthIn":6,"widthIn":4,"heightIn":0.5,"weightOz":1.5}}`)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, seller, svc.seller)
	assert.Equal(t, order, svc.order)
	assert.Equal(t, 1.5, svc.parcel.WeightOz)
	assert.Contains(t, rec.Body.String(), `"rateId":"rate_a"`)
	assert.Contains(t, rec.Body.String(), `"amountCents":485`)
}

func TestRatesRejectsBadParcel(t *testing.T) {
	svc := &stubService{}
	rec := post(newTestRouter(svc, uuid.New()), "/orders/"+uuid.NewString()+"/shipping/rates", `{"parcel":{"lengthIn":0,"widthIn":4,"heightIn":1,"weightOz":1}}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, uuid.Nil, svc.order)
}

func TestRatesCarrierDown(t *testing.T) {
	svc := &stubService{err: pkgerrors.New(pkgerrors.CodeDependency, "carrier unavailable")}
	rec := post(newTestRouter(svc, uuid.New()), "/orders/"+uuid.NewString()+"/shipping/rates", `{"parcel":{"lengthIn":6,"widthIn":4,"heightIn":1,"weightOz":1}}`)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestLabel(t *testing.T) {
	svc := &stubService{}
	rec := post(newTestRouter(svc, uuid.New()), "/orders/"+uuid.NewString()+"/shipping/label", `{"rateId":" rate_a "}`)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "rate_a", svc.rateID)
	assert.Contains(t, rec.Body.String(), `"trackingNumber":"9400111"`)
}

func TestLabelRequiresRate(t *testing.T) {
	svc := &stubService{}
	rec := post(newTestRouter(svc, uuid.New()), "/orders/"+uuid.NewString()+"/shipping/label", `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestLabelWrongSeller(t *testing.T) {
	svc := &stubService{err: pkgerrors.New(pkgerrors.CodeForbidden, "order belongs to another seller")}
	rec := post(newTestRouter(svc, uuid.New()), "/orders/"+uuid.NewString()+"/shipping/label", `{"rateId":"rate_a"}`)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}
