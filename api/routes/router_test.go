package routes

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/cardtrove-backend/pkg/auth"
	"github.com/angelmondragon/cardtrove-backend/pkg/config"
	"github.com/angelmondragon/cardtrove-backend/pkg/enums"
	"github.com/angelmondragon/cardtrove-backend/pkg/metrics"
)

type stubPinger struct {
	err error
}

func (s stubPinger) Ping(context.Context) error {
	return s.err
}

type fakeCache struct {
	mu      sync.Mutex
	data    map[string]string
	allow   bool
	pingErr error
}

func newFakeCache(allow bool) *fakeCache {
	return &fakeCache{data: map[string]string{}, allow: allow}
}

func (c *fakeCache) Get(_ context.Context, key string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.data[key], nil
}

func (c *fakeCache) SetNX(_ context.Context, key string, value any, _ time.Duration) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.data[key]; ok {
		return false, nil
	}
	c.data[key] = ""
	if s, ok := value.(string); ok {
		c.data[key] = s
	}
	return true, nil
}

func (c *fakeCache) IdempotencyKey(scope, id string) string {
	return "ct:idempotency:" + scope + ":" + id
}

func (c *fakeCache) Del(_ context.Context, keys ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, k := range keys {
		delete(c.data, k)
	}
	return nil
}

func (c *fakeCache) FixedWindowAllow(context.Context, string, int64, time.Duration) (bool, int64, error) {
	return c.allow, 1, nil
}

func (c *fakeCache) Ping(context.Context) error {
	return c.pingErr
}

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.App.Env = "test"
	cfg.JWT = config.JWTConfig{Secret: "router-secret", Issuer: "cardtrove-test", ExpirationMinutes: 60}
	cfg.Marketplace.OfferRateLimitPerHour = 5
	cfg.Marketplace.ReportRateLimitPerHour = 5
	return cfg
}

func bearer(t *testing.T, cfg *config.Config, role enums.Role) string {
	t.Helper()
	token, err := auth.MintAccessToken(cfg.JWT, time.Now(), auth.AccessTokenPayload{UserID: uuid.New(), Role: role})
	require.NoError(t, err)
	return "Bearer " + token
}

func serve(handler http.Handler, method, path, authz string, body []byte) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	if authz != "" {
		req.Header.Set("Authorization", authz)
	}
	if method == http.MethodPost || method == http.MethodPatch {
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Idempotency-Key", uuid.NewString())
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestHealthRoutes(t *testing.T) {
	cfg := testConfig()
	router := NewRouter(Params{Config: cfg, DB: stubPinger{}, Cache: newFakeCache(true)})

	rec := serve(router, http.MethodGet, "/health/live", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "test", rec.Header().Get("X-CardTrove-Env"))

	rec = serve(router, http.MethodGet, "/health/ready", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"redis":"ok"`)
}

func TestHealthReadyFailsWhenDependencyDown(t *testing.T) {
	router := NewRouter(Params{Config: testConfig(), DB: stubPinger{err: errors.New("connection refused")}})

	rec := serve(router, http.MethodGet, "/health/ready", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.NewMarketplace(reg)
	m.IncCheckout("created")
	router := NewRouter(Params{Config: testConfig(), Gatherer: reg, Metrics: m})

	rec := serve(router, http.MethodGet, "/metrics", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "marketplace_checkout_total")
}

func TestAPIRequiresAuth(t *testing.T) {
	router := NewRouter(Params{Config: testConfig()})

	for _, path := range []string{"/api/v1/listings", "/api/v1/orders", "/api/v1/offers"} {
		rec := serve(router, http.MethodGet, path, "", nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, path)
	}
}

func TestAuthenticatedRoutesReachHandlers(t *testing.T) {
	cfg := testConfig()
	router := NewRouter(Params{Config: cfg})
	token := bearer(t, cfg, enums.RoleUser)

	// No services are wired, so every mounted handler answers with a 500.
	routes := []struct {
		method string
		path   string
	}{
		{http.MethodGet, "/api/v1/listings"},
		{http.MethodGet, "/api/v1/listings/" + uuid.NewString()},
		{http.MethodPost, "/api/v1/listings/" + uuid.NewString() + "/cancel"},
		{http.MethodGet, "/api/v1/offers/" + uuid.NewString()},
		{http.MethodPost, "/api/v1/offers/" + uuid.NewString() + "/accept"},
		{http.MethodGet, "/api/v1/orders/" + uuid.NewString()},
		{http.MethodPost, "/api/v1/orders/" + uuid.NewString() + "/complete"},
		{http.MethodPost, "/api/v1/checkout"},
		{http.MethodGet, "/api/v1/sellers/" + uuid.NewString() + "/reviews"},
		{http.MethodDelete, "/api/v1/blocks/" + uuid.NewString()},
	}
	for _, rt := range routes {
		rec := serve(router, rt.method, rt.path, token, []byte(`{}`))
		assert.Equal(t, http.StatusInternalServerError, rec.Code, "%s %s", rt.method, rt.path)
	}
}

func TestAdminRoutesRequireAdminRole(t *testing.T) {
	cfg := testConfig()
	router := NewRouter(Params{Config: cfg})
	path := "/api/v1/admin/reports/" + uuid.NewString() + "/resolve"

	rec := serve(router, http.MethodPost, path, bearer(t, cfg, enums.RoleUser), []byte(`{"status":"resolved"}`))
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = serve(router, http.MethodPost, path, bearer(t, cfg, enums.RoleAdmin), []byte(`{"status":"resolved"}`))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestWebhooksBypassAuth(t *testing.T) {
	router := NewRouter(Params{Config: testConfig()})

	rec := serve(router, http.MethodPost, "/api/v1/webhooks/stripe", "", []byte(`{}`))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	rec = serve(router, http.MethodPost, "/api/v1/webhooks/carrier", "", []byte(`{}`))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestReportsAreRateLimited(t *testing.T) {
	cfg := testConfig()
	router := NewRouter(Params{Config: cfg, Cache: newFakeCache(false)})

	body := []byte(`{"targetType":"user","targetId":"` + uuid.NewString() + `","reason":"spam"}`)
	rec := serve(router, http.MethodPost, "/api/v1/reports", bearer(t, cfg, enums.RoleUser), body)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
}

func TestOfferCreationIsRateLimited(t *testing.T) {
	cfg := testConfig()
	router := NewRouter(Params{Config: cfg, Cache: newFakeCache(false)})

	rec := serve(router, http.MethodPost, "/api/v1/listings/"+uuid.NewString()+"/offers", bearer(t, cfg, enums.RoleUser), []byte(`{"amountCents":500}`))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
}
