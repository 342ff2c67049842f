package repo

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"esim-payments/internal/domain"
)

type TransactionRepo interface {
	Create(ctx context.Context, tx *sql.Tx, t *domain.PaymentTransaction) error
	// FindByID returns nil, nil when the transaction does not exist.
	FindByID(ctx context.Context, id string) (*domain.PaymentTransaction, error)
	// FindByIDForUpdate row-locks the transaction until tx ends.
	FindByIDForUpdate(ctx context.Context, tx *sql.Tx, id string) (*domain.PaymentTransaction, error)
	UpdateStatus(ctx context.Context, tx *sql.Tx, id string, status domain.PaymentStatus, gatewayResponse map[string]any, updatedAt time.Time) error
	// Count counts transactions in the given status, or all of them when status is empty.
	Count(ctx context.Context, status domain.PaymentStatus) (int64, error)
	FindRecent(ctx context.Context, limit int) ([]domain.PaymentTransaction, error)
}

type transactionRepo struct {
	db *sql.DB
}

func NewTransactionRepo(db *sql.DB) TransactionRepo {
	return &transactionRepo{db: db}
}

const transactionColumns = `transaction_id, merchant_user_id, amount, currency, payment_method, esim_plan_id,
	customer_email, customer_phone, status, gateway_response, created_at, updated_at`

func (r *transactionRepo) Create(ctx context.Context, tx *sql.Tx, t *domain.PaymentTransaction) error {
	query := `INSERT INTO payment_transactions (` + transactionColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`

	gatewayResponse, err := encodeJSON(t.GatewayResponse)
	if err != nil {
		return err
	}

	_, err = conn(r.db, tx).ExecContext(ctx, query,
		t.TransactionID,
		t.MerchantUserID,
		t.Amount,
		t.Currency,
		t.PaymentMethod,
		t.EsimPlanID,
		nullString(t.CustomerEmail),
		nullString(t.CustomerPhone),
		t.Status,
		gatewayResponse,
		t.CreatedAt,
		t.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert transaction %s: %w", t.TransactionID, err)
	}
	return nil
}

func (r *transactionRepo) FindByID(ctx context.Context, id string) (*domain.PaymentTransaction, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+transactionColumns+` FROM payment_transactions WHERE transaction_id = $1`, id)
	return scanTransactionRow(row)
}

func (r *transactionRepo) FindByIDForUpdate(ctx context.Context, tx *sql.Tx, id string) (*domain.PaymentTransaction, error) {
	row := conn(r.db, tx).QueryRowContext(ctx, `SELECT `+transactionColumns+` FROM payment_transactions WHERE transaction_id = $1 FOR UPDATE`, id)
	return scanTransactionRow(row)
}

func scanTransactionRow(row *sql.Row) (*domain.PaymentTransaction, error) {
	t, err := scanTransaction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil // not found
	}
	if err != nil {
		return nil, err
	}
	return t, nil
}

func (r *transactionRepo) UpdateStatus(ctx context.Context, tx *sql.Tx, id string, status domain.PaymentStatus, gatewayResponse map[string]any, updatedAt time.Time) error {
	query := `
		UPDATE payment_transactions
		SET status = $2,
		    gateway_response = $3,
		    updated_at = $4
		WHERE transaction_id = $1
	`
	payload, err := encodeJSON(gatewayResponse)
	if err != nil {
		return err
	}

	if _, err := conn(r.db, tx).ExecContext(ctx, query, id, status, payload, updatedAt); err != nil {
		return fmt.Errorf("update transaction %s: %w", id, err)
	}
	return nil
}

func (r *transactionRepo) Count(ctx context.Context, status domain.PaymentStatus) (int64, error) {
	var n int64
	var err error
	if status == "" {
		err = r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM payment_transactions`).Scan(&n)
	} else {
		err = r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM payment_transactions WHERE status = $1`, status).Scan(&n)
	}
	if err != nil {
		return 0, fmt.Errorf("count transactions: %w", err)
	}
	return n, nil
}

func (r *transactionRepo) FindRecent(ctx context.Context, limit int) ([]domain.PaymentTransaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM payment_transactions ORDER BY created_at DESC LIMIT $1`
	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	transactions := []domain.PaymentTransaction{}
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		transactions = append(transactions, *t)
	}
	return transactions, rows.Err()
}

func scanTransaction(s scanner) (*domain.PaymentTransaction, error) {
	var (
		t               domain.PaymentTransaction
		email, phone    sql.NullString
		gatewayResponse []byte
	)
	err := s.Scan(
		&t.TransactionID,
		&t.MerchantUserID,
		&t.Amount,
		&t.Currency,
		&t.PaymentMethod,
		&t.EsimPlanID,
		&email,
		&phone,
		&t.Status,
		&gatewayResponse,
		&t.CreatedAt,
		&t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	t.CustomerEmail = email.String
	t.CustomerPhone = phone.String

	if len(gatewayResponse) > 0 {
		dec := json.NewDecoder(bytes.NewReader(gatewayResponse))
		dec.UseNumber()
		if err := dec.Decode(&t.GatewayResponse); err != nil {
			return nil, fmt.Errorf("decode gateway_response of %s: %w", t.TransactionID, err)
		}
	}
	return &t, nil
}

func encodeJSON(m map[string]any) (any, error) {
	if m == nil {
		return nil, nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("encode json: %w", err)
	}
	return string(b), nil
}
