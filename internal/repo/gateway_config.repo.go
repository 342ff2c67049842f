package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"esim-payments/internal/domain"
)

// GatewayConfigRepo stores gateway credentials as an append-only list of versions.
type GatewayConfigRepo interface {
	// Latest returns nil, nil when no version was ever stored.
	Latest(ctx context.Context) (*domain.GatewayConfig, error)
	// Append stores cfg as the newest version and sets cfg.Version.
	Append(ctx context.Context, cfg *domain.GatewayConfig) error
}

type gatewayConfigRepo struct {
	db *sql.DB
}

func NewGatewayConfigRepo(db *sql.DB) GatewayConfigRepo {
	return &gatewayConfigRepo{db: db}
}

func (r *gatewayConfigRepo) Latest(ctx context.Context) (*domain.GatewayConfig, error) {
	query := `
		SELECT version, environment, merchant_user_id, channel, access_key, secret_key, updated_by, updated_at
		FROM gateway_configs
		ORDER BY version DESC
		LIMIT 1
	`
	var c domain.GatewayConfig
	err := r.db.QueryRowContext(ctx, query).Scan(
		&c.Version,
		&c.Environment,
		&c.MerchantUserID,
		&c.Channel,
		&c.AccessKey,
		&c.SecretKey,
		&c.UpdatedBy,
		&c.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load gateway config: %w", err)
	}
	return &c, nil
}

func (r *gatewayConfigRepo) Append(ctx context.Context, cfg *domain.GatewayConfig) error {
	query := `
		INSERT INTO gateway_configs (environment, merchant_user_id, channel, access_key, secret_key, updated_by, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING version
	`
	err := r.db.QueryRowContext(ctx, query,
		cfg.Environment,
		cfg.MerchantUserID,
		cfg.Channel,
		cfg.AccessKey,
		cfg.SecretKey,
		cfg.UpdatedBy,
		cfg.UpdatedAt,
	).Scan(&cfg.Version)
	if err != nil {
		return fmt.Errorf("append gateway config: %w", err)
	}
	return nil
}
