package payment

import (
	"context"
	"fmt"
	"net/url"

	"esim-payments/internal/domain"
)

// Checkout tells the client how to complete a payment with the gateway.
type Checkout struct {
	QRCodeURL   string
	QRExpiresIn int
	RedirectURL string
	PaymentURL  string
}

type PaymentGateway interface {
	CreateCheckout(ctx context.Context, txn *domain.PaymentTransaction) (*Checkout, error)
}

// paymentGateway stands in for the provider: no network call is made and
// nothing is kept, the checkout is derived from the transaction alone.
type paymentGateway struct {
	frontendURL string
	qrImageURL  string
}

func NewPaymentGateway(frontendURL, qrImageURL string) PaymentGateway {
	return &paymentGateway{
		frontendURL: frontendURL,
		qrImageURL:  qrImageURL,
	}
}

func (pg *paymentGateway) CreateCheckout(ctx context.Context, txn *domain.PaymentTransaction) (*Checkout, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	query := url.Values{"transaction_id": {txn.TransactionID}}.Encode()

	var c Checkout
	switch txn.PaymentMethod {
	case domain.MethodMMQR:
		c.QRCodeURL = pg.qrImageURL
		c.QRExpiresIn = domain.QRExpiresIn
	case domain.MethodUABPay:
		c.RedirectURL = fmt.Sprintf("%s/payment/redirect?%s", pg.frontendURL, query)
	default:
		c.PaymentURL = fmt.Sprintf("%s/payment/form?%s", pg.frontendURL, query)
	}
	return &c, nil
}
