package service

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"esim-payments/internal/auth"
	"esim-payments/internal/cache"
	"esim-payments/internal/domain"
	"esim-payments/internal/infrastructure/payment"
	"esim-payments/internal/repo/repotest"
	"esim-payments/internal/signature"
)

const (
	testSecret        = "test-secret"
	testAdminEmail    = "admin@esim.com.mm"
	testAdminPassword = "s3cret-pass"
)

type sentEmail struct {
	to, subject, html string
}

type recordingSender struct {
	mu   sync.Mutex
	sent []sentEmail
	err  error
}

func (s *recordingSender) Send(ctx context.Context, to, subject, html string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.sent = append(s.sent, sentEmail{to, subject, html})
	return nil
}

type publishedEvent struct {
	topic, key string
	event      any
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []publishedEvent
	err    error
}

func (p *recordingPublisher) Publish(ctx context.Context, topic, key string, event any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, publishedEvent{topic, key, event})
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) topics() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []string
	for _, e := range p.events {
		out = append(out, e.topic)
	}
	return out
}

type fixture struct {
	store      *repotest.Store
	cache      *cache.Memory
	publisher  *recordingPublisher
	sender     *recordingSender
	log        *logrus.Logger
	logHook    *logtest.Hook
	configs    GatewayConfigProvider
	orders     OrderService
	webhooks   WebhookService
	provisions ProvisionService
	admin      AdminService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	logger, hook := logtest.NewNullLogger()
	store := repotest.New()
	statusCache := cache.NewMemory()
	publisher := &recordingPublisher{}
	sender := &recordingSender{}

	configs := NewGatewayConfigProvider(store.Configs(), domain.GatewayConfig{
		Environment:    domain.EnvironmentUAT,
		MerchantUserID: "MERCHANT-1",
		Channel:        "eSIM Myanmar",
		AccessKey:      "access-key-uat",
		SecretKey:      testSecret,
		UpdatedBy:      "environment",
	})

	hash, err := bcrypt.GenerateFromPassword([]byte(testAdminPassword), bcrypt.MinCost)
	require.NoError(t, err)

	return &fixture{
		store:     store,
		cache:     statusCache,
		publisher: publisher,
		sender:    sender,
		log:       logger,
		logHook:   hook,
		configs:   configs,
		orders: NewOrderService(store,
			payment.NewPaymentGateway("http://localhost:3000", "https://img.example/mmqr.png"),
			configs, statusCache, time.Minute, logger),
		webhooks: NewWebhookService(store, store, store.Jobs(), configs, statusCache, time.Minute, publisher, logger),
		provisions: NewProvisionService(store.Provisions(), sender, publisher,
			"rsp-prod.esim.com.mm", "https://img.example/esim.jpg", logger),
		admin: NewAdminService(
			AdminCredentials{Email: testAdminEmail, PasswordHash: string(hash)},
			auth.NewTokenIssuer("jwt-secret", 30*time.Minute),
			store, store.Configs(), configs, logger),
	}
}

// createOrder places a valid order and returns its transaction id.
func (f *fixture) createOrder(t *testing.T, method domain.PaymentMethod) string {
	t.Helper()
	res, err := f.orders.CreateOrder(context.Background(), &domain.CreateOrderRequest{
		PaymentMethod: method,
		Amount:        mustDecimal(t, "15000"),
		EsimPlanID:    "esim_1gb_7days",
		CustomerEmail: "buyer@example.com",
	})
	require.NoError(t, err)
	return res.TransactionID
}

// signedWebhook returns a webhook body and its signature under secret.
func signedWebhook(t *testing.T, secret string, payload map[string]any) ([]byte, string) {
	t.Helper()
	sig, err := signature.New(secret).Sign(payload)
	require.NoError(t, err)
	body, err := json.Marshal(payload)
	require.NoError(t, err)
	return body, sig
}

func (f *fixture) deliver(t *testing.T, transactionID string, status domain.PaymentStatus) (*domain.WebhookAck, error) {
	t.Helper()
	body, sig := signedWebhook(t, testSecret, map[string]any{
		"transaction_id": transactionID,
		"status":         string(status),
	})
	return f.webhooks.Handle(context.Background(), body, sig)
}

var errBoom = errors.New("boom")
