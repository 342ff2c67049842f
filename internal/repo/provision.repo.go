package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"esim-payments/internal/domain"
)

type ProvisionRepo interface {
	// Create inserts p unless the transaction already has a provision;
	// created is false in that case and nothing is written.
	Create(ctx context.Context, tx *sql.Tx, p *domain.ESIMProvision) (created bool, err error)
	FindByTransactionID(ctx context.Context, transactionID string) (*domain.ESIMProvision, error)
}

type provisionRepo struct {
	db *sql.DB
}

func NewProvisionRepo(db *sql.DB) ProvisionRepo {
	return &provisionRepo{db: db}
}

func (r *provisionRepo) Create(ctx context.Context, tx *sql.Tx, p *domain.ESIMProvision) (bool, error) {
	query := `
		INSERT INTO esim_provisions
			(provisioning_id, transaction_id, esim_plan_id, iccid, activation_code, qr_code_url, status, provisioned_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (transaction_id) DO NOTHING
	`
	res, err := conn(r.db, tx).ExecContext(ctx, query,
		p.ProvisioningID,
		p.TransactionID,
		p.EsimPlanID,
		p.ICCID,
		p.ActivationCode,
		p.QRCodeURL,
		p.Status,
		p.ProvisionedAt,
	)
	if err != nil {
		return false, fmt.Errorf("insert provision for %s: %w", p.TransactionID, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (r *provisionRepo) FindByTransactionID(ctx context.Context, transactionID string) (*domain.ESIMProvision, error) {
	query := `
		SELECT provisioning_id, transaction_id, esim_plan_id, iccid, activation_code, qr_code_url, status, provisioned_at
		FROM esim_provisions
		WHERE transaction_id = $1
	`
	var p domain.ESIMProvision
	err := r.db.QueryRowContext(ctx, query, transactionID).Scan(
		&p.ProvisioningID,
		&p.TransactionID,
		&p.EsimPlanID,
		&p.ICCID,
		&p.ActivationCode,
		&p.QRCodeURL,
		&p.Status,
		&p.ProvisionedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}
