package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type PaymentMethod string

const (
	MethodMPU            PaymentMethod = "MPU"
	MethodVisaMastercard PaymentMethod = "VISA_MASTERCARD"
	MethodUPI            PaymentMethod = "UPI"
	MethodUABPay         PaymentMethod = "UABPAY"
	MethodMMQR           PaymentMethod = "MMQR"
)

func (m PaymentMethod) Valid() bool {
	switch m {
	case MethodMPU, MethodVisaMastercard, MethodUPI, MethodUABPay, MethodMMQR:
		return true
	}
	return false
}

const DefaultCurrency = "MMK"

// PaymentTransaction is a single payment attempt, keyed by TransactionID.
type PaymentTransaction struct {
	TransactionID   string          `json:"transaction_id"`
	MerchantUserID  string          `json:"merchant_user_id"`
	Amount          decimal.Decimal `json:"amount"`
	Currency        string          `json:"currency"`
	PaymentMethod   PaymentMethod   `json:"payment_method"`
	EsimPlanID      string          `json:"esim_plan_id"`
	CustomerEmail   string          `json:"customer_email,omitempty"`
	CustomerPhone   string          `json:"customer_phone,omitempty"`
	Status          PaymentStatus   `json:"status"`
	GatewayResponse map[string]any  `json:"gateway_response,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// NewTransactionID returns an id of the form ESIM_<epoch_ms>_<8 uppercase hex>.
func NewTransactionID(now time.Time) string {
	return fmt.Sprintf("ESIM_%d_%s", now.UnixMilli(), strings.ToUpper(shortHex()))
}

func shortHex() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
}

// StatusView is the public projection returned by the status lookup.
type StatusView struct {
	TransactionID string        `json:"transaction_id"`
	Status        PaymentStatus `json:"status"`
	Amount        float64       `json:"amount"`
	Currency      string        `json:"currency"`
	PaymentMethod PaymentMethod `json:"payment_method"`
	CreatedAt     time.Time     `json:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at"`
}

func (t *PaymentTransaction) StatusView() StatusView {
	return StatusView{
		TransactionID: t.TransactionID,
		Status:        t.Status,
		Amount:        t.Amount.InexactFloat64(),
		Currency:      t.Currency,
		PaymentMethod: t.PaymentMethod,
		CreatedAt:     t.CreatedAt,
		UpdatedAt:     t.UpdatedAt,
	}
}
