package reputation

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
	"gorm.io/gorm"

	"github.com/angelmondragon/cardtrove-backend/api/middleware"
	internalrep "github.com/angelmondragon/cardtrove-backend/internal/reputation"
	"github.com/angelmondragon/cardtrove-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/cardtrove-backend/pkg/errors"
	"github.com/angelmondragon/cardtrove-backend/pkg/pagination"
)

type stubService struct {
	review     *internalrep.SubmitReviewInput
	report     *internalrep.SubmitReportInput
	resolution enums.ReportStatus
	blocked    []uuid.UUID
	unblocked  []uuid.UUID
	seller     uuid.UUID
	err        error
}

func (s *stubService) SubmitReview(_ context.Context, input internalrep.SubmitReviewInput) (*internalrep.ReviewDTO, error) {
	s.review = &input
	if s.err != nil {
		return nil, s.err
	}
	return &internalrep.ReviewDTO{ID: uuid.New(), OrderID: input.OrderID, Rating: input.Rating}, nil
}

func (s *stubService) ListSellerReviews(_ context.Context, sellerID uuid.UUID, _ pagination.Params) (*internalrep.ReviewList, error) {
	s.seller = sellerID
	return &internalrep.ReviewList{Reviews: []internalrep.ReviewDTO{}}, s.err
}

func (s *stubService) SubmitReport(_ context.Context, input internalrep.SubmitReportInput) (*internalrep.ReportDTO, error) {
	s.report = &input
	if s.err != nil {
		return nil, s.err
	}
	return &internalrep.ReportDTO{ID: uuid.New(), TargetType: input.TargetType, Status: enums.ReportStatusOpen}, nil
}

func (s *stubService) ResolveReport(_ context.Context, _, reportID uuid.UUID, resolution enums.ReportStatus) (*internalrep.ReportDTO, error) {
	s.resolution = resolution
	if s.err != nil {
		return nil, s.err
	}
	return &internalrep.ReportDTO{ID: reportID, Status: resolution}, nil
}

func (s *stubService) Block(_ context.Context, _, blockedID uuid.UUID) error {
	s.blocked = append(s.blocked, blockedID)
	return s.err
}

func (s *stubService) Unblock(_ context.Context, _, blockedID uuid.UUID) error {
	s.unblocked = append(s.unblocked, blockedID)
	return s.err
}

func (s *stubService) IsBlocked(context.Context, uuid.UUID, uuid.UUID) (bool, error) {
	return false, nil
}

func (s *stubService) RecordFirstSale(context.Context, *gorm.DB, uuid.UUID, uuid.UUID) error {
	return nil
}

func newTestRouter(svc internalrep.Service, userID uuid.UUID) http.Handler {
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			next.ServeHTTP(w, req.WithContext(middleware.WithUserID(req.Context(), userID.String())))
		})
	})
	r.Post("/orders/{orderId}/review", SubmitReview(svc, nil))
	r.Get("/sellers/{sellerId}/reviews", SellerReviews(svc, nil))
	r.Post("/reports", SubmitReport(svc, nil))
	r.Post("/admin/reports/{reportId}/resolve", ResolveReport(svc, nil))
	r.Post("/blocks", Block(svc, nil))
	r.Delete("/blocks/{userId}", Unblock(svc, nil))
	return r
}

func do(h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestSubmitReview(t *testing.T) {
	reviewer := uuid.New()
	order := uuid.New()
	svc := &stubService{}

	rec := do(newTestRouter(svc, reviewer), http.MethodPost, "/orders/"+order.String()+"/review", `{"rating":5,"comment":"  fast shipping  "}`)

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	require.NotNil(t, svc.review)
	assert.Equal(t, reviewer, svc.review.ReviewerID)
	assert.Equal(t, order, svc.review.OrderID)
	assert.Equal(t, "fast shipping", *svc.review.Comment)
}

func TestSubmitReviewRatingBounds(t *testing.T) {
	for _, body := range []string{`{"rating":0}`, `{"rating":6}`} {
		svc := &stubService{}
		rec := do(newTestRouter(svc, uuid.New()), http.MethodPost, "/orders/"+uuid.NewString()+"/review", body)
		assert.Equal(t, http.StatusBadRequest, rec.Code, body)
		assert.Nil(t, svc.review)
	}
}

func TestSubmitReviewDuplicate(t *testing.T) {
	svc := &stubService{err: pkgerrors.New(pkgerrors.CodeConflict, "order already reviewed")}
	rec := do(newTestRouter(svc, uuid.New()), http.MethodPost, "/orders/"+uuid.NewString()+"/review", `{"rating":4}`)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestSellerReviews(t *testing.T) {
	seller := uuid.New()
	svc := &stubService{}
	rec := do(newTestRouter(svc, uuid.New()), http.MethodGet, "/sellers/"+seller.String()+"/reviews?limit=5", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, seller, svc.seller)
}

func TestSubmitReport(t *testing.T) {
	target := uuid.New()
	svc := &stubService{}

	rec := do(newTestRouter(svc, uuid.New()), http.MethodPost, "/reports", `{"targetType":"listing","targetId":"`+target.String()+`","reason":"counterfeit"}`)

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	require.NotNil(t, svc.report)
	assert.Equal(t, enums.ReportTargetListing, svc.report.TargetType)
	assert.Equal(t, target, svc.report.TargetID)
	assert.Nil(t, svc.report.Details)

	rec = do(newTestRouter(svc, uuid.New()), http.MethodPost, "/reports", `{"targetType":"planet","targetId":"`+target.String()+`","reason":"x"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestResolveReport(t *testing.T) {
	svc := &stubService{}
	h := newTestRouter(svc, uuid.New())

	rec := do(h, http.MethodPost, "/admin/reports/"+uuid.NewString()+"/resolve", `{"status":"dismissed"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, enums.ReportStatusDismissed, svc.resolution)

	rec = do(h, http.MethodPost, "/admin/reports/"+uuid.NewString()+"/resolve", `{"status":"maybe"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestBlockAndUnblock(t *testing.T) {
	other := uuid.New()
	svc := &stubService{}
	h := newTestRouter(svc, uuid.New())

	rec := do(h, http.MethodPost, "/blocks", `{"userId":"`+other.String()+`"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, []uuid.UUID{other}, svc.blocked)

	rec = do(h, http.MethodDelete, "/blocks/"+other.String(), "")
	require.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, []uuid.UUID{other}, svc.unblocked)
}

func TestBlockSelfRejected(t *testing.T) {
	svc := &stubService{err: pkgerrors.New(pkgerrors.CodeValidation, "cannot block yourself")}
	rec := do(newTestRouter(svc, uuid.New()), http.MethodPost, "/blocks", `{"userId":"`+uuid.NewString()+`"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
