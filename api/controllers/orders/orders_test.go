package orders

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
	internalorders "github.com/angelmondragon/cardtrove-backend/internal/orders"
	"github.com/angelmondragon/cardtrove-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/cardtrove-backend/pkg/errors"
)

type stubService struct {
	lastList   string
	listParams internalorders.ListParams
	actor      internalorders.Actor
	cancel     *internalorders.CancelInput
	err        error
}

func (s *stubService) Get(_ context.Context, actor internalorders.Actor, id uuid.UUID) (*internalorders.OrderDTO, error) {
	s.actor = actor
	if s.err != nil {
		return nil, s.err
	}
	return &internalorders.OrderDTO{ID: id, Status: enums.OrderStatusPaid}, nil
}

func (s *stubService) ListForBuyer(_ context.Context, _ uuid.UUID, params internalorders.ListParams) (*internalorders.OrderList, error) {
	s.lastList = "buyer"
	s.listParams = params
	return &internalorders.OrderList{Orders: []internalorders.OrderDTO{}}, s.err
}

func (s *stubService) ListForSeller(_ context.Context, _ uuid.UUID, params internalorders.ListParams) (*internalorders.OrderList, error) {
	s.lastList = "seller"
	s.listParams = params
	return &internalorders.OrderList{Orders: []internalorders.OrderDTO{}}, s.err
}

func (s *stubService) Cancel(_ context.Context, input internalorders.CancelInput) (*internalorders.OrderDTO, error) {
	s.cancel = &input
	if s.err != nil {
		return nil, s.err
	}
	return &internalorders.OrderDTO{ID: input.OrderID, Status: enums.OrderStatusCancelled}, nil
}

func (s *stubService) Complete(_ context.Context, actor internalorders.Actor, id uuid.UUID) (*internalorders.OrderDTO, error) {
	s.actor = actor
	if s.err != nil {
		return nil, s.err
	}
	return &internalorders.OrderDTO{ID: id, Status: enums.OrderStatusComplete}, nil
}

func newTestRouter(svc internalorders.Service, userID uuid.UUID, role enums.Role) http.Handler {
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			ctx := middleware.WithUserID(req.Context(), userID.String())
			ctx = middleware.WithRole(ctx, string(role))
			next.ServeHTTP(w, req.WithContext(ctx))
		})
	})
	r.Get("/orders", List(svc, nil))
	r.Get("/orders/{orderId}", Detail(svc, nil))
	r.Post("/orders/{orderId}/cancel", Cancel(svc, nil))
	r.Post("/orders/{orderId}/complete", Complete(svc, nil))
	return r
}

func do(h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestListOrdersByRole(t *testing.T) {
	svc := &stubService{}
	h := newTestRouter(svc, uuid.New(), enums.RoleUser)

	rec := do(h, http.MethodGet, "/orders", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "buyer", svc.lastList)

	rec = do(h, http.MethodGet, "/orders?role=seller&status=needs_shipping", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "seller", svc.lastList)
	require.NotNil(t, svc.listParams.Status)
	assert.Equal(t, enums.OrderStatusNeedsShipping, *svc.listParams.Status)

	rec = do(h, http.MethodGet, "/orders?role=admin", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(h, http.MethodGet, "/orders?status=lost", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestOrderDetailCarriesActorRole(t *testing.T) {
	admin := uuid.New()
	svc := &stubService{}

	rec := do(newTestRouter(svc, admin, enums.RoleAdmin), http.MethodGet, "/orders/"+uuid.NewString(), "")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, admin, svc.actor.UserID)
	assert.True(t, svc.actor.IsAdmin())
}

func TestOrderDetailForbidden(t *testing.T) {
	svc := &stubService{err: pkgerrors.New(pkgerrors.CodeForbidden, "not a party to this order")}
	rec := do(newTestRouter(svc, uuid.New(), enums.RoleUser), http.MethodGet, "/orders/"+uuid.NewString(), "")
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestCancelOrderRequiresReason(t *testing.T) {
	svc := &stubService{}
	h := newTestRouter(svc, uuid.New(), enums.RoleUser)
	id := uuid.New()

	rec := do(h, http.MethodPost, "/orders/"+id.String()+"/cancel", `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Nil(t, svc.cancel)

	rec = do(h, http.MethodPost, "/orders/"+id.String()+"/cancel", `{"reason":" out of stock "}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.NotNil(t, svc.cancel)
	assert.Equal(t, id, svc.cancel.OrderID)
	assert.Equal(t, "out of stock", svc.cancel.Reason)
}

func TestCancelShippedOrderIsStateConflict(t *testing.T) {
	svc := &stubService{err: pkgerrors.New(pkgerrors.CodeStateConflict, "order can no longer be cancelled")}
	rec := do(newTestRouter(svc, uuid.New(), enums.RoleUser), http.MethodPost, "/orders/"+uuid.NewString()+"/cancel", `{"reason":"changed my mind"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestCompleteOrder(t *testing.T) {
	buyer := uuid.New()
	svc := &stubService{}
	rec := do(newTestRouter(svc, buyer, enums.RoleUser), http.MethodPost, "/orders/"+uuid.NewString()+"/complete", "")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, buyer, svc.actor.UserID)
	assert.Contains(t, rec.Body.String(), `"status":"complete"`)
}
