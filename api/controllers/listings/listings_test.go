package listings

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
	internallistings "github.com/angelmondragon/cardtrove-backend/internal/listings"
	"github.com/angelmondragon/cardtrove-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/cardtrove-backend/pkg/errors"
)

type stubService struct {
	created    *internallistings.CreateListingInput
	updated    *internallistings.UpdateListingInput
	listParams *internallistings.ListParams
	err        error
}

func (s *stubService) Create(_ context.Context, input internallistings.CreateListingInput) (*internallistings.ListingDTO, error) {
	s.created = &input
	if s.err != nil {
		return nil, s.err
	}
	return &internallistings.ListingDTO{ID: uuid.New(), SellerID: input.SellerID, PriceCents: input.PriceCents, Status: enums.ListingStatusActive}, nil
}

func (s *stubService) Update(_ context.Context, input internallistings.UpdateListingInput) (*internallistings.ListingDTO, error) {
	s.updated = &input
	if s.err != nil {
		return nil, s.err
	}
	return &internallistings.ListingDTO{ID: input.ListingID, SellerID: input.SellerID}, nil
}

func (s *stubService) Cancel(_ context.Context, sellerID, listingID uuid.UUID) (*internallistings.ListingDTO, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &internallistings.ListingDTO{ID: listingID, SellerID: sellerID, Status: enums.ListingStatusCancelled}, nil
}

func (s *stubService) Get(_ context.Context, listingID uuid.UUID) (*internallistings.ListingDTO, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &internallistings.ListingDTO{ID: listingID}, nil
}

func (s *stubService) ListActive(_ context.Context, params internallistings.ListParams) (*internallistings.ListingList, error) {
	s.listParams = &params
	if s.err != nil {
		return nil, s.err
	}
	return &internallistings.ListingList{Listings: []internallistings.ListingDTO{}}, nil
}

func newTestRouter(svc internallistings.Service, userID uuid.UUID) http.Handler {
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			if userID != uuid.Nil {
				req = req.WithContext(middleware.WithUserID(req.Context(), userID.String()))
			}
			next.ServeHTTP(w, req)
		})
	})
	r.Post("/listings", Create(svc, nil))
	r.Get("/listings", List(svc, nil))
	r.Get("/listings/{listingId}", Get(svc, nil))
	r.Patch("/listings/{listingId}", Update(svc, nil))
	r.Post("/listings/{listingId}/cancel", Cancel(svc, nil))
	return r
}

func do(h http.Handler, method, path string, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestCreateListing(t *testing.T) {
	seller := uuid.New()
	item := uuid.New()
	svc := &stubService{}
	h := newTestRouter(svc, seller)

	rec := do(h, http.MethodPost, "/listings", `{"collectionItemId":"`+item.String()+`","priceCents":1000,"quantity":2,"allowOffers":true,"description":"  near mint  "}`)

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	require.NotNil(t, svc.created)
	assert.Equal(t, seller, svc.created.SellerID)
	assert.Equal(t, item, svc.created.CollectionItemID)
	assert.Equal(t, 2, svc.created.Quantity)
	require.NotNil(t, svc.created.Description)
	assert.Equal(t, "near mint", *svc.created.Description)
}

func TestCreateListingValidation(t *testing.T) {
	svc := &stubService{}
	h := newTestRouter(svc, uuid.New())

	tests := []struct {
		name string
		body string
	}{
		{name: "missing price", body: `{"collectionItemId":"` + uuid.NewString() + `","quantity":1}`},
		{name: "zero quantity", body: `{"collectionItemId":"` + uuid.NewString() + `","priceCents":100,"quantity":0}`},
		{name: "unknown field", body: `{"collectionItemId":"` + uuid.NewString() + `","priceCents":100,"quantity":1,"fee":1}`},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rec := do(h, http.MethodPost, "/listings", tc.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
	assert.Nil(t, svc.created)
}

func TestCreateListingRequiresUser(t *testing.T) {
	rec := do(newTestRouter(&stubService{}, uuid.Nil), http.MethodPost, "/listings", `{}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestCreateListingPropagatesDomainError(t *testing.T) {
	svc := &stubService{err: pkgerrors.New(pkgerrors.CodeForbidden, "collection item not owned")}
	rec := do(newTestRouter(svc, uuid.New()), http.MethodPost, "/listings", `{"collectionItemId":"`+uuid.NewString()+`","priceCents":100,"quantity":1}`)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Contains(t, rec.Body.String(), "collection item not owned")
}

func TestListListingsFilters(t *testing.T) {
	card := uuid.New()
	svc := &stubService{}
	rec := do(newTestRouter(svc, uuid.New()), http.MethodGet, "/listings?cardId="+card.String()+"&limit=10", "")

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.NotNil(t, svc.listParams)
	require.NotNil(t, svc.listParams.CardID)
	assert.Equal(t, card, *svc.listParams.CardID)
	assert.Nil(t, svc.listParams.SellerID)

	rec = do(newTestRouter(svc, uuid.New()), http.MethodGet, "/listings?sellerId=nope", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetListingBadID(t *testing.T) {
	rec := do(newTestRouter(&stubService{}, uuid.New()), http.MethodGet, "/listings/not-a-uuid", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUpdateListingStatus(t *testing.T) {
	svc := &stubService{}
	h := newTestRouter(svc, uuid.New())
	id := uuid.New()

	rec := do(h, http.MethodPatch, "/listings/"+id.String(), `{"status":"bogus"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Nil(t, svc.updated)

	rec = do(h, http.MethodPatch, "/listings/"+id.String(), `{"status":"cancelled","priceCents":900}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.NotNil(t, svc.updated)
	require.NotNil(t, svc.updated.Status)
	assert.Equal(t, enums.ListingStatusCancelled, *svc.updated.Status)
	assert.Equal(t, 900, *svc.updated.PriceCents)
}

func TestCancelListing(t *testing.T) {
	rec := do(newTestRouter(&stubService{}, uuid.New()), http.MethodPost, "/listings/"+uuid.NewString()+"/cancel", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"cancelled"`)
}
