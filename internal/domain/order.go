package domain

import (
	"github.com/shopspring/decimal"
)

// QRExpiresIn is the lifetime of an MMQR code, in seconds.
const QRExpiresIn = 600

type CreateOrderRequest struct {
	PaymentMethod PaymentMethod   `json:"payment_method"`
	Amount        decimal.Decimal `json:"amount"`
	Currency      string          `json:"currency"`
	EsimPlanID    string          `json:"esim_plan_id"`
	CustomerEmail string          `json:"customer_email"`
	CustomerPhone string          `json:"customer_phone"`

	MPUCard    map[string]string `json:"mpu_card,omitempty"`
	CardData   map[string]string `json:"card_data,omitempty"`
	UABPayData map[string]string `json:"uabpay_data,omitempty"`
	MMQRData   map[string]string `json:"mmqr_data,omitempty"`
}

// MethodDetails is the method-specific sub-payload selected by PaymentMethod.
// Kind names the JSON field it came from; Fields is nil when the client sent none.
type MethodDetails struct {
	Kind   string
	Fields map[string]string
}

func (r *CreateOrderRequest) MethodDetails() MethodDetails {
	switch r.PaymentMethod {
	case MethodMPU:
		return MethodDetails{Kind: "mpu_card", Fields: r.MPUCard}
	case MethodUABPay:
		return MethodDetails{Kind: "uabpay_data", Fields: r.UABPayData}
	case MethodMMQR:
		return MethodDetails{Kind: "mmqr_data", Fields: r.MMQRData}
	default:
		return MethodDetails{Kind: "card_data", Fields: r.CardData}
	}
}

// OrderResult is the create-order response. Exactly one of the method groups is set.
type OrderResult struct {
	Success       bool   `json:"success"`
	TransactionID string `json:"transaction_id"`
	Message       string `json:"message"`

	QRCodeURL   string `json:"qr_code_url,omitempty"`
	QRExpiresIn int    `json:"qr_expires_in,omitempty"`
	RedirectURL string `json:"redirect_url,omitempty"`
	PaymentURL  string `json:"payment_url,omitempty"`
}
