package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"esim-payments/internal/cache"
	"esim-payments/internal/domain"
	"esim-payments/internal/infrastructure/payment"
	"esim-payments/internal/repo"
)

type OrderService interface {
	CreateOrder(ctx context.Context, req *domain.CreateOrderRequest) (*domain.OrderResult, error)
	GetStatus(ctx context.Context, transactionID string) (*domain.StatusView, error)
}

type orderService struct {
	transactionRepo repo.TransactionRepo
	paymentGtw      payment.PaymentGateway
	configs         GatewayConfigProvider
	statusCache     cache.Cache
	cacheTTL        time.Duration
	log             logrus.FieldLogger
	now             func() time.Time
}

func NewOrderService(
	transactionRepo repo.TransactionRepo,
	paymentGtw payment.PaymentGateway,
	configs GatewayConfigProvider,
	statusCache cache.Cache,
	cacheTTL time.Duration,
	log logrus.FieldLogger,
) OrderService {
	return &orderService{
		transactionRepo: transactionRepo,
		paymentGtw:      paymentGtw,
		configs:         configs,
		statusCache:     statusCache,
		cacheTTL:        cacheTTL,
		log:             log,
		now:             utcNow,
	}
}

func utcNow() time.Time { return time.Now().UTC() }

// StatusGenerationKey holds a counter bumped after every committed status
// change. Cached views are keyed by the generation they were read under.
func StatusGenerationKey(transactionID string) string {
	return "payment:status:gen:" + transactionID
}

func StatusCacheKey(transactionID string, generation int64) string {
	return fmt.Sprintf("payment:status:%s:%d", transactionID, generation)
}

// statusGeneration returns the current generation of a transaction's status.
func statusGeneration(ctx context.Context, c cache.Cache, transactionID string) (int64, error) {
	b, found, err := c.Get(ctx, StatusGenerationKey(transactionID))
	if err != nil || !found {
		return 0, err
	}
	gen, err := strconv.ParseInt(string(b), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("status generation of %s: %w", transactionID, err)
	}
	return gen, nil
}

func validateOrder(req *domain.CreateOrderRequest) error {
	if !req.PaymentMethod.Valid() {
		return fmt.Errorf("%w: unsupported payment method %q", domain.ErrValidation, req.PaymentMethod)
	}
	if !req.Amount.IsPositive() {
		return fmt.Errorf("%w: amount must be greater than zero", domain.ErrValidation)
	}
	// amounts are stored as NUMERIC(18, 2); anything finer would be rounded
	if !req.Amount.Equal(req.Amount.Truncate(2)) {
		return fmt.Errorf("%w: amount has more than 2 decimal places", domain.ErrValidation)
	}
	if strings.TrimSpace(req.EsimPlanID) == "" {
		return fmt.Errorf("%w: esim_plan_id is required", domain.ErrValidation)
	}
	return nil
}

func (s *orderService) CreateOrder(ctx context.Context, req *domain.CreateOrderRequest) (*domain.OrderResult, error) {
	if err := validateOrder(req); err != nil {
		return nil, err
	}

	cfg, err := s.configs.Current(ctx)
	if err != nil {
		return nil, err
	}

	currency := req.Currency
	if currency == "" {
		currency = domain.DefaultCurrency
	}

	now := s.now()
	txn := &domain.PaymentTransaction{
		TransactionID:  domain.NewTransactionID(now),
		MerchantUserID: cfg.MerchantUserID,
		Amount:         req.Amount,
		Currency:       currency,
		PaymentMethod:  req.PaymentMethod,
		EsimPlanID:     req.EsimPlanID,
		CustomerEmail:  req.CustomerEmail,
		CustomerPhone:  req.CustomerPhone,
		Status:         domain.StatusPending,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	checkout, err := s.paymentGtw.CreateCheckout(ctx, txn)
	if err != nil {
		return nil, fmt.Errorf("create checkout: %w", err)
	}

	if err := s.transactionRepo.Create(ctx, nil, txn); err != nil {
		return nil, err
	}

	// card numbers and wallet data are never persisted or logged
	details := req.MethodDetails()
	s.log.WithFields(logrus.Fields{
		"transaction_id": txn.TransactionID,
		"payment_method": txn.PaymentMethod,
		"amount":         txn.Amount.String(),
		"currency":       txn.Currency,
		"method_data":    details.Kind,
		"method_data_ok": details.Fields != nil,
	}).Info("payment order created")

	return &domain.OrderResult{
		Success:       true,
		TransactionID: txn.TransactionID,
		Message:       "Payment order created successfully",
		QRCodeURL:     checkout.QRCodeURL,
		QRExpiresIn:   checkout.QRExpiresIn,
		RedirectURL:   checkout.RedirectURL,
		PaymentURL:    checkout.PaymentURL,
	}, nil
}

func (s *orderService) GetStatus(ctx context.Context, transactionID string) (*domain.StatusView, error) {
	entry := s.log.WithField("transaction_id", transactionID)

	// the generation is read before the row; a change committed in between
	// bumps it, which orphans whatever this call caches
	gen, err := statusGeneration(ctx, s.statusCache, transactionID)
	cacheable := err == nil
	if err != nil {
		entry.WithError(err).Warn("status cache read failed")
	}

	key := StatusCacheKey(transactionID, gen)
	if cacheable {
		if b, found, err := s.statusCache.Get(ctx, key); err != nil {
			entry.WithError(err).Warn("status cache read failed")
		} else if found {
			var view domain.StatusView
			if err := json.Unmarshal(b, &view); err == nil {
				return &view, nil
			}
		}
	}

	txn, err := s.transactionRepo.FindByID(ctx, transactionID)
	if err != nil {
		return nil, fmt.Errorf("find transaction %s: %w", transactionID, err)
	}
	if txn == nil {
		return nil, fmt.Errorf("%w: transaction %s", domain.ErrNotFound, transactionID)
	}

	view := txn.StatusView()
	if !cacheable {
		return &view, nil
	}
	if b, err := json.Marshal(view); err == nil {
		if err := s.statusCache.Set(ctx, key, b, s.cacheTTL); err != nil {
			entry.WithError(err).Warn("status cache write failed")
		}
	}
	return &view, nil
}
