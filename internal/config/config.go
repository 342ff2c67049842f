package config

import (
	"strings"
	"time"

	_ "github.com/joho/godotenv/autoload"
	"github.com/spf13/viper"

	"esim-payments/internal/database"
	"esim-payments/internal/domain"
	"esim-payments/internal/notify"
)

type Config struct {
	Port        string
	LogLevel    string
	DatabaseURL string

	JWTSecret      string
	AccessTokenTTL time.Duration
	AdminEmail     string
	// AdminPasswordHash is a bcrypt hash, see `esimd hash-password`.
	AdminPasswordHash string

	Gateway domain.GatewayConfig
	SMTP    notify.SMTPConfig

	FrontendURL    string
	AllowedOrigins []string

	RedisAddr      string
	RedisPassword  string
	RedisDB        int
	StatusCacheTTL time.Duration

	KafkaBrokers []string

	SMDPHost         string
	ESIMQRCodeURL    string
	MMQRImageURL     string
	WorkerInterval   time.Duration
	WorkerBatchSize  int
	WorkerMaxAttempt int
}

// DefaultJWTSecret signs admin tokens when JWT_SECRET_KEY is unset. It is
// public, so tokens signed with it can be forged.
const DefaultJWTSecret = "your-jwt-secret-key"

func defaults(v *viper.Viper) {
	v.SetDefault("PORT", "8000")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("BLUEPRINT_DB_HOST", "localhost")
	v.SetDefault("BLUEPRINT_DB_PORT", "5432")
	v.SetDefault("BLUEPRINT_DB_DATABASE", "esim")
	v.SetDefault("BLUEPRINT_DB_USERNAME", "postgres")
	v.SetDefault("BLUEPRINT_DB_PASSWORD", "postgres")
	v.SetDefault("BLUEPRINT_DB_SCHEMA", "public")

	v.SetDefault("JWT_SECRET_KEY", DefaultJWTSecret)
	v.SetDefault("ACCESS_TOKEN_EXPIRE_MINUTES", 30)

	v.SetDefault("TRANSACTEASE_ENVIRONMENT", domain.EnvironmentUAT)
	v.SetDefault("TRANSACTEASE_CHANNEL", "eSIM Myanmar")

	v.SetDefault("SMTP_HOST", "smtp.hostinger.com")
	v.SetDefault("SMTP_PORT", 587)
	v.SetDefault("SMTP_FROM_NAME", "eSIM Myanmar")

	v.SetDefault("FRONTEND_URL", "http://localhost:3000")
	v.SetDefault("ALLOWED_ORIGINS", "*")

	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("STATUS_CACHE_TTL", "30s")

	v.SetDefault("SMDP_HOST", "rsp-prod.esim.com.mm")
	v.SetDefault("ESIM_QR_CODE_URL", "https://i.ibb.co/xtnDfgZy/esim.jpg")
	v.SetDefault("MMQR_IMAGE_URL", "https://i.ibb.co/gb53dCHM/MMQR.png")
	v.SetDefault("WORKER_INTERVAL", "2s")
	v.SetDefault("WORKER_BATCH_SIZE", 10)
	v.SetDefault("WORKER_MAX_ATTEMPTS", 5)
}

// Load reads the configuration from the environment (and .env, if present).
func Load() *Config {
	v := viper.New()
	v.AutomaticEnv()
	defaults(v)

	cfg := &Config{
		Port:              v.GetString("PORT"),
		LogLevel:          v.GetString("LOG_LEVEL"),
		DatabaseURL:       v.GetString("DATABASE_URL"),
		JWTSecret:         v.GetString("JWT_SECRET_KEY"),
		AccessTokenTTL:    time.Duration(v.GetInt("ACCESS_TOKEN_EXPIRE_MINUTES")) * time.Minute,
		AdminEmail:        v.GetString("ADMIN_EMAIL"),
		AdminPasswordHash: v.GetString("ADMIN_PASSWORD_HASH"),
		SMTP: notify.SMTPConfig{
			Host:      v.GetString("SMTP_HOST"),
			Port:      v.GetInt("SMTP_PORT"),
			Username:  v.GetString("SMTP_USERNAME"),
			Password:  v.GetString("SMTP_PASSWORD"),
			FromEmail: firstNonEmpty(v.GetString("SMTP_FROM_EMAIL"), v.GetString("SMTP_USERNAME")),
			FromName:  v.GetString("SMTP_FROM_NAME"),
		},
		FrontendURL:      strings.TrimRight(v.GetString("FRONTEND_URL"), "/"),
		AllowedOrigins:   splitList(v.GetString("ALLOWED_ORIGINS")),
		RedisAddr:        v.GetString("REDIS_ADDR"),
		RedisPassword:    v.GetString("REDIS_PASSWORD"),
		RedisDB:          v.GetInt("REDIS_DB"),
		StatusCacheTTL:   v.GetDuration("STATUS_CACHE_TTL"),
		KafkaBrokers:     splitList(v.GetString("KAFKA_BROKERS")),
		SMDPHost:         v.GetString("SMDP_HOST"),
		ESIMQRCodeURL:    v.GetString("ESIM_QR_CODE_URL"),
		MMQRImageURL:     v.GetString("MMQR_IMAGE_URL"),
		WorkerInterval:   v.GetDuration("WORKER_INTERVAL"),
		WorkerBatchSize:  v.GetInt("WORKER_BATCH_SIZE"),
		WorkerMaxAttempt: v.GetInt("WORKER_MAX_ATTEMPTS"),
	}

	if cfg.DatabaseURL == "" {
		cfg.DatabaseURL = database.DSN(
			v.GetString("BLUEPRINT_DB_USERNAME"),
			v.GetString("BLUEPRINT_DB_PASSWORD"),
			v.GetString("BLUEPRINT_DB_HOST"),
			v.GetString("BLUEPRINT_DB_PORT"),
			v.GetString("BLUEPRINT_DB_DATABASE"),
			v.GetString("BLUEPRINT_DB_SCHEMA"),
		)
	}

	// credentials follow the selected environment
	env := strings.ToUpper(v.GetString("TRANSACTEASE_ENVIRONMENT"))
	suffix := "_UAT"
	if env == domain.EnvironmentLIVE {
		suffix = "_LIVE"
	}
	cfg.Gateway = domain.GatewayConfig{
		Environment:    env,
		MerchantUserID: v.GetString("TRANSACTEASE_MERCHANT_USER_ID"),
		Channel:        v.GetString("TRANSACTEASE_CHANNEL"),
		AccessKey:      v.GetString("TRANSACTEASE_ACCESS_KEY" + suffix),
		SecretKey:      v.GetString("TRANSACTEASE_SECRET_KEY" + suffix),
		UpdatedBy:      "environment",
	}

	return cfg
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// SMTPConfigured reports whether credentials for the mail relay are present.
func (c *Config) SMTPConfigured() bool {
	return c.SMTP.Username != "" && c.SMTP.Password != ""
}

func (c *Config) DefaultJWTSecretInUse() bool {
	return c.JWTSecret == "" || c.JWTSecret == DefaultJWTSecret
}
