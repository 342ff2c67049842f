package domain

import "time"

const (
	EnvironmentUAT  = "UAT"
	EnvironmentLIVE = "LIVE"
)

// GatewayConfig is one version of the payment gateway credentials.
// Version 0 is the configuration derived from the process environment.
type GatewayConfig struct {
	Version        int64
	Environment    string
	MerchantUserID string
	Channel        string
	AccessKey      string
	SecretKey      string
	UpdatedBy      string
	UpdatedAt      time.Time
}

func ValidEnvironment(env string) bool {
	return env == EnvironmentUAT || env == EnvironmentLIVE
}

type MaskedGatewayConfig struct {
	Version         int64     `json:"version"`
	Environment     string    `json:"environment"`
	MerchantUserID  string    `json:"merchant_user_id"`
	Channel         string    `json:"channel"`
	AccessKeyMasked string    `json:"access_key_masked"`
	SecretKeyMasked string    `json:"secret_key_masked"`
	LastUpdated     time.Time `json:"last_updated"`
}

func (c GatewayConfig) Masked() MaskedGatewayConfig {
	return MaskedGatewayConfig{
		Version:         c.Version,
		Environment:     c.Environment,
		MerchantUserID:  c.MerchantUserID,
		Channel:         c.Channel,
		AccessKeyMasked: mask(c.AccessKey),
		SecretKeyMasked: mask(c.SecretKey),
		LastUpdated:     c.UpdatedAt,
	}
}

func mask(key string) string {
	if key == "" {
		return ""
	}
	if len(key) > 8 {
		key = key[:8]
	}
	return key + "..."
}

// GatewayConfigUpdate is the admin request for a new configuration version.
// Empty merchant id or channel keep the current values.
type GatewayConfigUpdate struct {
	Environment    string `json:"environment"`
	MerchantUserID string `json:"merchant_user_id"`
	Channel        string `json:"channel"`
	AccessKey      string `json:"access_key"`
	SecretKey      string `json:"secret_key"`
}
