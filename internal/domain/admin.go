package domain

import "time"

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginResult struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
}

type DashboardStatistics struct {
	TotalPayments     int64   `json:"total_payments"`
	CompletedPayments int64   `json:"completed_payments"`
	PendingPayments   int64   `json:"pending_payments"`
	FailedPayments    int64   `json:"failed_payments"`
	SuccessRate       float64 `json:"success_rate"`
}

type Dashboard struct {
	Statistics         DashboardStatistics  `json:"statistics"`
	RecentTransactions []PaymentTransaction `json:"recent_transactions"`
	CurrentEnvironment string               `json:"current_environment"`
}

type GatewayConfigUpdated struct {
	Success     bool      `json:"success"`
	Message     string    `json:"message"`
	Version     int64     `json:"version"`
	Environment string    `json:"environment"`
	UpdatedAt   time.Time `json:"updated_at"`
}
