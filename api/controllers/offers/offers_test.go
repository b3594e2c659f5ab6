package offers

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
	internaloffers "github.com/angelmondragon/cardtrove-backend/internal/offers"
	"github.com/angelmondragon/cardtrove-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/cardtrove-backend/pkg/errors"
	"github.com/angelmondragon/cardtrove-backend/pkg/pagination"
)

type call struct {
	op      string
	userID  uuid.UUID
	offerID uuid.UUID
	cents   int
}

type stubService struct {
	calls   []call
	created *internaloffers.CreateOfferInput
	err     error
}

func (s *stubService) record(op string, userID, offerID uuid.UUID, cents int, status enums.OfferStatus) (*internaloffers.OfferDTO, error) {
	s.calls = append(s.calls, call{op: op, userID: userID, offerID: offerID, cents: cents})
	if s.err != nil {
		return nil, s.err
	}
	return &internaloffers.OfferDTO{ID: offerID, Status: status}, nil
}

func (s *stubService) Create(_ context.Context, input internaloffers.CreateOfferInput) (*internaloffers.OfferDTO, error) {
	s.created = &input
	if s.err != nil {
		return nil, s.err
	}
	return &internaloffers.OfferDTO{ID: uuid.New(), ListingID: input.ListingID, BuyerID: input.BuyerID, Status: enums.OfferStatusPending}, nil
}

func (s *stubService) Accept(_ context.Context, sellerID, offerID uuid.UUID) (*internaloffers.OfferDTO, error) {
	return s.record("accept", sellerID, offerID, 0, enums.OfferStatusAccepted)
}

func (s *stubService) Decline(_ context.Context, sellerID, offerID uuid.UUID) (*internaloffers.OfferDTO, error) {
	return s.record("decline", sellerID, offerID, 0, enums.OfferStatusDeclined)
}

func (s *stubService) Counter(_ context.Context, sellerID, offerID uuid.UUID, cents int) (*internaloffers.OfferDTO, error) {
	return s.record("counter", sellerID, offerID, cents, enums.OfferStatusCountered)
}

func (s *stubService) Withdraw(_ context.Context, buyerID, offerID uuid.UUID) (*internaloffers.OfferDTO, error) {
	return s.record("withdraw", buyerID, offerID, 0, enums.OfferStatusWithdrawn)
}

func (s *stubService) Get(_ context.Context, viewerID, offerID uuid.UUID) (*internaloffers.OfferDTO, error) {
	return s.record("get", viewerID, offerID, 0, enums.OfferStatusPending)
}

func (s *stubService) ListForListing(_ context.Context, sellerID, listingID uuid.UUID, _ pagination.Params) (*internaloffers.OfferList, error) {
	s.calls = append(s.calls, call{op: "list-listing", userID: sellerID, offerID: listingID})
	return &internaloffers.OfferList{Offers: []internaloffers.OfferDTO{}}, s.err
}

func (s *stubService) ListForBuyer(_ context.Context, buyerID uuid.UUID, _ pagination.Params) (*internaloffers.OfferList, error) {
	s.calls = append(s.calls, call{op: "list-buyer", userID: buyerID})
	return &internaloffers.OfferList{Offers: []internaloffers.OfferDTO{}}, s.err
}

func newTestRouter(svc internaloffers.Service, userID uuid.UUID) http.Handler {
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			next.ServeHTTP(w, req.WithContext(middleware.WithUserID(req.Context(), userID.String())))
		})
	})
	r.Post("/listings/{listingId}/offers", Create(svc, nil))
	r.Get("/listings/{listingId}/offers", ListForListing(svc, nil))
	r.Get("/offers", ListMine(svc, nil))
	r.Get("/offers/{offerId}", Get(svc, nil))
	r.Post("/offers/{offerId}/accept", Accept(svc, nil))
	r.Post("/offers/{offerId}/decline", Decline(svc, nil))
	r.Post("/offers/{offerId}/counter", Counter(svc, nil))
	r.Post("/offers/{offerId}/withdraw", Withdraw(svc, nil))
	return r
}

func do(h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestCreateOfferDefaultsQuantity(t *testing.T) {
	buyer := uuid.New()
	listing := uuid.New()
	svc := &stubService{}

	rec := do(newTestRouter(svc, buyer), http.MethodPost, "/listings/"+listing.String()+"/offers", `{"amountCents":800,"message":"  would you take 8?  "}`)

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	require.NotNil(t, svc.created)
	assert.Equal(t, buyer, svc.created.BuyerID)
	assert.Equal(t, listing, svc.created.ListingID)
	assert.Equal(t, 1, svc.created.Quantity)
	assert.Equal(t, "would you take 8?", *svc.created.Message)
}

func TestCreateOfferRejectsNonPositiveAmount(t *testing.T) {
	svc := &stubService{}
	rec := do(newTestRouter(svc, uuid.New()), http.MethodPost, "/listings/"+uuid.NewString()+"/offers", `{"amountCents":0}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Nil(t, svc.created)
}

func TestCreateOfferDuplicatePendingIsConflict(t *testing.T) {
	svc := &stubService{err: pkgerrors.New(pkgerrors.CodeConflict, "pending offer already exists")}
	rec := do(newTestRouter(svc, uuid.New()), http.MethodPost, "/listings/"+uuid.NewString()+"/offers", `{"amountCents":500}`)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestOfferActionsRouteToService(t *testing.T) {
	user := uuid.New()
	offer := uuid.New()

	tests := []struct {
		path   string
		body   string
		op     string
		status string
	}{
		{path: "/accept", op: "accept", status: "accepted"},
		{path: "/decline", op: "decline", status: "declined"},
		{path: "/counter", body: `{"counterAmountCents":900}`, op: "counter", status: "countered"},
		{path: "/withdraw", op: "withdraw", status: "withdrawn"},
	}
	for _, tc := range tests {
		t.Run(tc.op, func(t *testing.T) {
			svc := &stubService{}
			rec := do(newTestRouter(svc, user), http.MethodPost, "/offers/"+offer.String()+tc.path, tc.body)

			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
			require.Len(t, svc.calls, 1)
			assert.Equal(t, tc.op, svc.calls[0].op)
			assert.Equal(t, user, svc.calls[0].userID)
			assert.Equal(t, offer, svc.calls[0].offerID)
			assert.Contains(t, rec.Body.String(), `"status":"`+tc.status+`"`)
		})
	}
}

func TestCounterRequiresAmount(t *testing.T) {
	svc := &stubService{}
	rec := do(newTestRouter(svc, uuid.New()), http.MethodPost, "/offers/"+uuid.NewString()+"/counter", `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, svc.calls)
}

func TestAcceptNotPendingIsStateConflict(t *testing.T) {
	svc := &stubService{err: pkgerrors.New(pkgerrors.CodeStateConflict, "offer is not pending")}
	rec := do(newTestRouter(svc, uuid.New()), http.MethodPost, "/offers/"+uuid.NewString()+"/accept", "")
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestListOffers(t *testing.T) {
	user := uuid.New()
	listing := uuid.New()
	svc := &stubService{}
	h := newTestRouter(svc, user)

	rec := do(h, http.MethodGet, "/offers", "")
	require.Equal(t, http.StatusOK, rec.Code)
	rec = do(h, http.MethodGet, "/listings/"+listing.String()+"/offers", "")
	require.Equal(t, http.StatusOK, rec.Code)

	require.Len(t, svc.calls, 2)
	assert.Equal(t, "list-buyer", svc.calls[0].op)
	assert.Equal(t, "list-listing", svc.calls[1].op)
	assert.Equal(t, listing, svc.calls[1].offerID)
}
