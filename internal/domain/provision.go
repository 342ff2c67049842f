package domain

import (
	"fmt"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	ProvisionStatusProvisioned = "PROVISIONED"

	iccidPrefix = "8995"
)

type ESIMProvision struct {
	ProvisioningID string    `json:"provisioning_id"`
	TransactionID  string    `json:"transaction_id"`
	EsimPlanID     string    `json:"esim_plan_id"`
	ICCID          string    `json:"iccid"`
	ActivationCode string    `json:"activation_code"`
	QRCodeURL      string    `json:"qr_code_url"`
	Status         string    `json:"status"`
	ProvisionedAt  time.Time `json:"provisioned_at"`
}

type ProvisionRequest struct {
	TransactionID string          `json:"transaction_id"`
	EsimPlanID    string          `json:"esim_plan_id"`
	CustomerEmail string          `json:"customer_email"`
	AmountPaid    decimal.Decimal `json:"amount_paid"`
	Currency      string          `json:"currency"`
}

// NewProvisioningID returns an id of the form PROV_<epoch_s>_<8 hex>.
func NewProvisioningID(now time.Time) string {
	return fmt.Sprintf("PROV_%d_%s", now.Unix(), shortHex())
}

// NewICCID returns a 20 digit ICCID: the fixed 8995 prefix and 16 random digits.
func NewICCID() string {
	return fmt.Sprintf("%s%d", iccidPrefix, 1_000_000_000_000_000+rand.Int64N(9_000_000_000_000_000))
}

// NewActivationCode returns an LPA activation code pointing at the given SM-DP+ host.
func NewActivationCode(smdpHost string) string {
	return fmt.Sprintf("LPA:1$%s$%s", smdpHost, strings.ReplaceAll(uuid.NewString(), "-", ""))
}
