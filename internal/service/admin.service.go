package service

import (
	"context"
	"crypto/subtle"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"esim-payments/internal/auth"
	"esim-payments/internal/domain"
	"esim-payments/internal/repo"
)

const recentTransactionsLimit = 10

type AdminService interface {
	Login(ctx context.Context, email, password string) (*domain.LoginResult, error)
	Dashboard(ctx context.Context) (*domain.Dashboard, error)
	GatewayConfig(ctx context.Context) (*domain.MaskedGatewayConfig, error)
	UpdateGatewayConfig(ctx context.Context, update *domain.GatewayConfigUpdate, updatedBy string) (*domain.GatewayConfigUpdated, error)
}

// AdminCredentials is the single admin account, configured by environment.
type AdminCredentials struct {
	Email        string
	PasswordHash string
}

type adminService struct {
	creds           AdminCredentials
	tokens          *auth.TokenIssuer
	transactionRepo repo.TransactionRepo
	configRepo      repo.GatewayConfigRepo
	configs         GatewayConfigProvider
	log             logrus.FieldLogger
	now             func() time.Time
}

func NewAdminService(
	creds AdminCredentials,
	tokens *auth.TokenIssuer,
	transactionRepo repo.TransactionRepo,
	configRepo repo.GatewayConfigRepo,
	configs GatewayConfigProvider,
	log logrus.FieldLogger,
) AdminService {
	return &adminService{
		creds:           creds,
		tokens:          tokens,
		transactionRepo: transactionRepo,
		configRepo:      configRepo,
		configs:         configs,
		log:             log,
		now:             utcNow,
	}
}

func (s *adminService) Login(ctx context.Context, email, password string) (*domain.LoginResult, error) {
	emailOK := s.creds.Email != "" && subtle.ConstantTimeCompare([]byte(email), []byte(s.creds.Email)) == 1
	// always run bcrypt so a wrong email costs the same as a wrong password
	passwordOK := auth.CheckPassword(s.creds.PasswordHash, password)
	if !emailOK || !passwordOK {
		s.log.WithField("email", email).Warn("admin login rejected")
		return nil, fmt.Errorf("%w: invalid credentials", domain.ErrUnauthorized)
	}

	token, err := s.tokens.Issue(email, auth.RoleAdmin)
	if err != nil {
		return nil, err
	}

	s.log.WithField("email", email).Info("admin logged in")
	return &domain.LoginResult{
		AccessToken: token,
		TokenType:   "bearer",
		ExpiresIn:   int64(s.tokens.TTL().Seconds()),
	}, nil
}

func (s *adminService) Dashboard(ctx context.Context) (*domain.Dashboard, error) {
	var stats domain.DashboardStatistics
	counts := []struct {
		status domain.PaymentStatus
		dst    *int64
	}{
		{"", &stats.TotalPayments},
		{domain.StatusCompleted, &stats.CompletedPayments},
		{domain.StatusPending, &stats.PendingPayments},
		{domain.StatusFailed, &stats.FailedPayments},
	}
	for _, c := range counts {
		n, err := s.transactionRepo.Count(ctx, c.status)
		if err != nil {
			return nil, err
		}
		*c.dst = n
	}
	if stats.TotalPayments > 0 {
		stats.SuccessRate = float64(stats.CompletedPayments) / float64(stats.TotalPayments) * 100
	}

	recent, err := s.transactionRepo.FindRecent(ctx, recentTransactionsLimit)
	if err != nil {
		return nil, fmt.Errorf("recent transactions: %w", err)
	}

	cfg, err := s.configs.Current(ctx)
	if err != nil {
		return nil, err
	}

	return &domain.Dashboard{
		Statistics:         stats,
		RecentTransactions: recent,
		CurrentEnvironment: cfg.Environment,
	}, nil
}

func (s *adminService) GatewayConfig(ctx context.Context) (*domain.MaskedGatewayConfig, error) {
	cfg, err := s.configs.Current(ctx)
	if err != nil {
		return nil, err
	}
	masked := cfg.Masked()
	if masked.LastUpdated.IsZero() {
		masked.LastUpdated = s.now()
	}
	return &masked, nil
}

func (s *adminService) UpdateGatewayConfig(ctx context.Context, update *domain.GatewayConfigUpdate, updatedBy string) (*domain.GatewayConfigUpdated, error) {
	env := strings.ToUpper(strings.TrimSpace(update.Environment))
	if !domain.ValidEnvironment(env) {
		return nil, fmt.Errorf("%w: Environment must be UAT or LIVE", domain.ErrValidation)
	}
	if update.AccessKey == "" || update.SecretKey == "" {
		return nil, fmt.Errorf("%w: access_key and secret_key are required", domain.ErrValidation)
	}

	current, err := s.configs.Current(ctx)
	if err != nil {
		return nil, err
	}

	next := &domain.GatewayConfig{
		Environment:    env,
		MerchantUserID: current.MerchantUserID,
		Channel:        current.Channel,
		AccessKey:      update.AccessKey,
		SecretKey:      update.SecretKey,
		UpdatedBy:      updatedBy,
		UpdatedAt:      s.now(),
	}
	if update.MerchantUserID != "" {
		next.MerchantUserID = update.MerchantUserID
	}
	if update.Channel != "" {
		next.Channel = update.Channel
	}

	if err := s.configRepo.Append(ctx, next); err != nil {
		return nil, err
	}

	s.log.WithFields(logrus.Fields{
		"version":     next.Version,
		"environment": next.Environment,
		"updated_by":  updatedBy,
	}).Info("payment gateway configuration updated")

	return &domain.GatewayConfigUpdated{
		Success:     true,
		Message:     "Configuration updated successfully",
		Version:     next.Version,
		Environment: next.Environment,
		UpdatedAt:   next.UpdatedAt,
	}, nil
}
