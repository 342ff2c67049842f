package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"esim-payments/internal/auth"
	"esim-payments/internal/cache"
	"esim-payments/internal/domain"
	"esim-payments/internal/events"
	"esim-payments/internal/infrastructure/payment"
	"esim-payments/internal/notify"
	"esim-payments/internal/repo/repotest"
	"esim-payments/internal/service"
	"esim-payments/internal/signature"
)

const (
	webhookSecret = "test-secret"
	adminEmail    = "admin@esim.com.mm"
	adminPassword = "s3cret-pass"
)

type fakeDB struct{ status string }

func (f fakeDB) Health(ctx context.Context) map[string]string {
	return map[string]string{"status": f.status}
}

func (f fakeDB) Close() error { return nil }

type testServer struct {
	handler http.Handler
	store   *repotest.Store
	tokens  *auth.TokenIssuer
}

func newTestServer(t *testing.T, dbStatus string) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	logger, _ := logtest.NewNullLogger()
	store := repotest.New()
	statusCache := cache.NewMemory()
	publisher := events.NewLogPublisher(logger)
	tokens := auth.NewTokenIssuer("jwt-secret", 30*time.Minute)

	configs := service.NewGatewayConfigProvider(store.Configs(), domain.GatewayConfig{
		Environment:    domain.EnvironmentUAT,
		MerchantUserID: "MERCHANT-1",
		AccessKey:      "access-key-uat",
		SecretKey:      webhookSecret,
	})

	hash, err := bcrypt.GenerateFromPassword([]byte(adminPassword), bcrypt.MinCost)
	require.NoError(t, err)

	srv := New(Config{
		Port:           "0",
		AllowedOrigins: []string{"*"},
		DB:             fakeDB{status: dbStatus},
		Orders: service.NewOrderService(store,
			payment.NewPaymentGateway("http://localhost:3000", "https://i.ibb.co/gb53dCHM/MMQR.png"),
			configs, statusCache, time.Minute, logger),
		Webhooks: service.NewWebhookService(store, store, store.Jobs(), configs, statusCache, time.Minute, publisher, logger),
		Provisions: service.NewProvisionService(store.Provisions(), notify.NewLogSender(logger), publisher,
			"rsp-prod.esim.com.mm", "https://i.ibb.co/xtnDfgZy/esim.jpg", logger),
		Admin: service.NewAdminService(service.AdminCredentials{Email: adminEmail, PasswordHash: string(hash)},
			tokens, store, store.Configs(), configs, logger),
		Tokens: tokens,
		Log:    logger,
	})

	return &testServer{handler: srv.RegisterRoutes(), store: store, tokens: tokens}
}

func (ts *testServer) do(t *testing.T, method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case []byte:
		reader = bytes.NewReader(b)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rr := httptest.NewRecorder()
	ts.handler.ServeHTTP(rr, req)
	return rr
}

func decodeBody(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &out), rr.Body.String())
	return out
}

func (ts *testServer) createOrder(t *testing.T, method string) string {
	t.Helper()
	rr := ts.do(t, http.MethodPost, "/api/payments/create", map[string]any{
		"payment_method": method,
		"amount":         15000,
		"esim_plan_id":   "esim_1gb_7days",
		"customer_email": "buyer@example.com",
	}, nil)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	return decodeBody(t, rr)["transaction_id"].(string)
}

func (ts *testServer) webhook(t *testing.T, secret string, payload map[string]any) *httptest.ResponseRecorder {
	t.Helper()
	sig, err := signature.New(secret).Sign(payload)
	require.NoError(t, err)
	body, err := json.Marshal(payload)
	require.NoError(t, err)
	return ts.do(t, http.MethodPost, "/api/webhooks/payment-status", body, map[string]string{"X-Signature": sig})
}

func (ts *testServer) bearer(t *testing.T, role string) map[string]string {
	t.Helper()
	token, err := ts.tokens.Issue(adminEmail, role)
	require.NoError(t, err)
	return map[string]string{"Authorization": "Bearer " + token}
}

func TestRootAndPlans(t *testing.T) {
	ts := newTestServer(t, "up")

	rr := ts.do(t, http.MethodGet, "/", nil, nil)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"message":"eSIM Myanmar Payment Gateway API","status":"active"}`, rr.Body.String())

	rr = ts.do(t, http.MethodGet, "/api/esim-plans", nil, nil)
	assert.Equal(t, http.StatusOK, rr.Code)
	var plans []domain.Plan
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &plans))
	assert.Len(t, plans, 3)
}

func TestHealth(t *testing.T) {
	rr := newTestServer(t, "up").do(t, http.MethodGet, "/health", nil, nil)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "healthy", decodeBody(t, rr)["status"])

	rr = newTestServer(t, "down").do(t, http.MethodGet, "/health", nil, nil)
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
}

func TestCreatePayment(t *testing.T) {
	ts := newTestServer(t, "up")

	rr := ts.do(t, http.MethodPost, "/api/payments/create", map[string]any{
		"payment_method": "MMQR",
		"amount":         15000,
		"esim_plan_id":   "esim_1gb_7days",
	}, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	body := decodeBody(t, rr)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "https://i.ibb.co/gb53dCHM/MMQR.png", body["qr_code_url"])
	assert.Equal(t, 600.0, body["qr_expires_in"])
	assert.NotContains(t, body, "payment_url")
	assert.NotContains(t, body, "redirect_url")

	rr = ts.do(t, http.MethodPost, "/api/payments/create", map[string]any{
		"payment_method": "UABPAY",
		"amount":         "35000",
		"esim_plan_id":   "esim_3gb_15days",
	}, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	body = decodeBody(t, rr)
	assert.Equal(t, "http://localhost:3000/payment/redirect?transaction_id="+body["transaction_id"].(string), body["redirect_url"])
	assert.NotContains(t, body, "qr_code_url")
}

func TestCreatePayment_BadRequests(t *testing.T) {
	ts := newTestServer(t, "up")

	rr := ts.do(t, http.MethodPost, "/api/payments/create", "{not json", nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = ts.do(t, http.MethodPost, "/api/payments/create", map[string]any{
		"payment_method": "BITCOIN",
		"amount":         100,
		"esim_plan_id":   "p",
	}, nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, decodeBody(t, rr)["error"], "payment method")

	rr = ts.do(t, http.MethodPost, "/api/payments/create", map[string]any{
		"payment_method": "MPU",
		"amount":         0,
		"esim_plan_id":   "p",
	}, nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestPaymentStatus(t *testing.T) {
	ts := newTestServer(t, "up")

	rr := ts.do(t, http.MethodGet, "/api/payments/ESIM_0_DEADBEEF/status", nil, nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.JSONEq(t, `{"error":"Transaction not found"}`, rr.Body.String())

	id := ts.createOrder(t, "VISA_MASTERCARD")
	rr = ts.do(t, http.MethodGet, "/api/payments/"+id+"/status", nil, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	body := decodeBody(t, rr)
	assert.Equal(t, id, body["transaction_id"])
	assert.Equal(t, "PENDING", body["status"])
	assert.Equal(t, 15000.0, body["amount"])
	assert.Equal(t, "MMK", body["currency"])
	assert.Equal(t, "VISA_MASTERCARD", body["payment_method"])
	assert.Contains(t, body, "created_at")
	assert.Contains(t, body, "updated_at")
}

func TestWebhookEndpoint(t *testing.T) {
	ts := newTestServer(t, "up")
	id := ts.createOrder(t, "MMQR")

	rr := ts.webhook(t, "wrong", map[string]any{"transaction_id": id, "status": "COMPLETED"})
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	rr = ts.webhook(t, webhookSecret, map[string]any{"transaction_id": id})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Zero(t, ts.store.StatusUpdates(), "rejected webhooks must not touch the record")

	rr = ts.webhook(t, webhookSecret, map[string]any{"transaction_id": "ESIM_0_DEADBEEF", "status": "COMPLETED"})
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Zero(t, ts.store.StatusUpdates())
	assert.Zero(t, ts.store.JobCount())

	rr = ts.do(t, http.MethodGet, "/api/payments/"+id+"/status", nil, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "PENDING", decodeBody(t, rr)["status"])

	rr = ts.webhook(t, webhookSecret, map[string]any{"transaction_id": id, "status": "COMPLETED"})
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"success":true,"message":"Webhook processed"}`, rr.Body.String())
	assert.Equal(t, 1, ts.store.JobCount())

	rr = ts.do(t, http.MethodGet, "/api/payments/"+id+"/status", nil, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "COMPLETED", decodeBody(t, rr)["status"])

	rr = ts.webhook(t, webhookSecret, map[string]any{"transaction_id": id, "status": "PENDING"})
	assert.Equal(t, http.StatusConflict, rr.Code)

	rr = ts.do(t, http.MethodPost, "/api/webhooks/payment-status", "garbage", map[string]string{"X-Signature": "x"})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestWebhookEndpoint_BodyTooLarge(t *testing.T) {
	ts := newTestServer(t, "up")
	big := bytes.Repeat([]byte("a"), maxWebhookBody+1)
	rr := ts.do(t, http.MethodPost, "/api/webhooks/payment-status", big, nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestProvisionEndpoint(t *testing.T) {
	ts := newTestServer(t, "up")

	rr := ts.do(t, http.MethodPost, "/api/esim-mock/provision", map[string]any{"esim_plan_id": "esim_1gb_7days"}, nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	req := map[string]any{
		"transaction_id": "ESIM_1700000000000_ABCDEF12",
		"esim_plan_id":   "esim_1gb_7days",
		"customer_email": "buyer@example.com",
	}
	rr = ts.do(t, http.MethodPost, "/api/esim-mock/provision", req, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	first := decodeBody(t, rr)
	assert.Equal(t, "PROVISIONED", first["status"])
	assert.Len(t, first["iccid"], 20)
	assert.Equal(t, "https://i.ibb.co/xtnDfgZy/esim.jpg", first["qr_code_url"])

	rr = ts.do(t, http.MethodPost, "/api/esim-mock/provision", req, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, first["iccid"], decodeBody(t, rr)["iccid"])
	assert.Equal(t, 1, ts.store.ProvisionCount())
}

func TestAdminLogin(t *testing.T) {
	ts := newTestServer(t, "up")

	rr := ts.do(t, http.MethodPost, "/api/admin/login", map[string]string{"email": adminEmail, "password": adminPassword}, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	body := decodeBody(t, rr)
	assert.Equal(t, "bearer", body["token_type"])
	assert.Equal(t, 1800.0, body["expires_in"])

	token := body["access_token"].(string)
	rr = ts.do(t, http.MethodGet, "/api/admin/dashboard", nil, map[string]string{"Authorization": "Bearer " + token})
	assert.Equal(t, http.StatusOK, rr.Code)

	rr = ts.do(t, http.MethodPost, "/api/admin/login", map[string]string{"email": adminEmail, "password": "nope"}, nil)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.JSONEq(t, `{"error":"Invalid credentials"}`, rr.Body.String())
}

func TestAdminAuthorization(t *testing.T) {
	ts := newTestServer(t, "up")

	rr := ts.do(t, http.MethodGet, "/api/admin/dashboard", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	rr = ts.do(t, http.MethodGet, "/api/admin/dashboard", nil, map[string]string{"Authorization": "Bearer garbage"})
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	rr = ts.do(t, http.MethodGet, "/api/admin/dashboard", nil, map[string]string{"Authorization": "Basic abc"})
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	rr = ts.do(t, http.MethodGet, "/api/admin/dashboard", nil, ts.bearer(t, "customer"))
	assert.Equal(t, http.StatusForbidden, rr.Code)
	assert.JSONEq(t, `{"error":"Admin access required"}`, rr.Body.String())
}

func TestAdminDashboard(t *testing.T) {
	ts := newTestServer(t, "up")
	id := ts.createOrder(t, "MMQR")
	ts.createOrder(t, "MPU")
	rr := ts.webhook(t, webhookSecret, map[string]any{"transaction_id": id, "status": "COMPLETED"})
	require.Equal(t, http.StatusOK, rr.Code)

	rr = ts.do(t, http.MethodGet, "/api/admin/dashboard", nil, ts.bearer(t, auth.RoleAdmin))
	require.Equal(t, http.StatusOK, rr.Code)

	var d domain.Dashboard
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &d))
	assert.Equal(t, int64(2), d.Statistics.TotalPayments)
	assert.Equal(t, int64(1), d.Statistics.CompletedPayments)
	assert.Equal(t, 50.0, d.Statistics.SuccessRate)
	assert.Len(t, d.RecentTransactions, 2)
	assert.Equal(t, "UAT", d.CurrentEnvironment)
}

func TestAdminGatewayConfig(t *testing.T) {
	ts := newTestServer(t, "up")
	headers := ts.bearer(t, auth.RoleAdmin)

	rr := ts.do(t, http.MethodGet, "/api/admin/payment-gateway/config", nil, headers)
	require.Equal(t, http.StatusOK, rr.Code)
	body := decodeBody(t, rr)
	assert.Equal(t, "access-k...", body["access_key_masked"])
	assert.Equal(t, "test-sec...", body["secret_key_masked"])
	assert.NotContains(t, rr.Body.String(), webhookSecret)

	rr = ts.do(t, http.MethodPost, "/api/admin/payment-gateway/config",
		map[string]string{"environment": "STAGING", "access_key": "a", "secret_key": "b"}, headers)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = ts.do(t, http.MethodPost, "/api/admin/payment-gateway/config",
		map[string]string{"environment": "LIVE", "access_key": "live-access-key", "secret_key": "live-secret"}, headers)
	require.Equal(t, http.StatusOK, rr.Code)
	body = decodeBody(t, rr)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "LIVE", body["environment"])

	cfg, err := ts.store.Configs().Latest(context.Background())
	require.NoError(t, err)
	assert.Equal(t, adminEmail, cfg.UpdatedBy)

	// webhooks now verify against the new secret
	id := ts.createOrder(t, "MMQR")
	rr = ts.webhook(t, webhookSecret, map[string]any{"transaction_id": id, "status": "COMPLETED"})
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	rr = ts.webhook(t, "live-secret", map[string]any{"transaction_id": id, "status": "COMPLETED"})
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestCORS(t *testing.T) {
	ts := newTestServer(t, "up")
	req := httptest.NewRequest(http.MethodOptions, "/api/payments/create", nil)
	req.Header.Set("Origin", "https://shop.example")
	req.Header.Set("Access-Control-Request-Method", "POST")
	rr := httptest.NewRecorder()
	ts.handler.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusNoContent, rr.Code)
	assert.Equal(t, "*", rr.Header().Get("Access-Control-Allow-Origin"))
}
