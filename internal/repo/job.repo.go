package repo

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"esim-payments/internal/domain"
)

type JobRepo interface {
	// Enqueue adds a pending job for the transaction; a second call for the
	// same transaction is a no-op and reports enqueued == false.
	Enqueue(ctx context.Context, tx *sql.Tx, transactionID string, now time.Time) (enqueued bool, err error)
	// ClaimPending locks up to limit pending jobs for the lifetime of tx,
	// skipping rows another worker already holds.
	ClaimPending(ctx context.Context, tx *sql.Tx, limit int) ([]domain.ProvisioningJob, error)
	MarkDone(ctx context.Context, tx *sql.Tx, transactionID string, now time.Time) error
	// MarkAttemptFailed records the error; the job stays pending until maxAttempts is reached.
	MarkAttemptFailed(ctx context.Context, tx *sql.Tx, transactionID, reason string, maxAttempts int, now time.Time) error
}

type jobRepo struct {
	db *sql.DB
}

func NewJobRepo(db *sql.DB) JobRepo {
	return &jobRepo{db: db}
}

func (r *jobRepo) Enqueue(ctx context.Context, tx *sql.Tx, transactionID string, now time.Time) (bool, error) {
	query := `
		INSERT INTO provisioning_jobs (transaction_id, status, attempts, last_error, created_at, updated_at)
		VALUES ($1, $2, 0, '', $3, $3)
		ON CONFLICT (transaction_id) DO NOTHING
	`
	res, err := conn(r.db, tx).ExecContext(ctx, query, transactionID, domain.JobPending, now)
	if err != nil {
		return false, fmt.Errorf("enqueue provisioning job %s: %w", transactionID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (r *jobRepo) ClaimPending(ctx context.Context, tx *sql.Tx, limit int) ([]domain.ProvisioningJob, error) {
	query := `
		SELECT transaction_id, status, attempts, last_error, created_at, updated_at
		FROM provisioning_jobs
		WHERE status = $1
		ORDER BY created_at
		LIMIT $2
		FOR UPDATE SKIP LOCKED
	`
	rows, err := conn(r.db, tx).QueryContext(ctx, query, domain.JobPending, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var jobs []domain.ProvisioningJob
	for rows.Next() {
		var j domain.ProvisioningJob
		if err := rows.Scan(
			&j.TransactionID,
			&j.Status,
			&j.Attempts,
			&j.LastError,
			&j.CreatedAt,
			&j.UpdatedAt,
		); err != nil {
			return nil, err
		}
		jobs = append(jobs, j)
	}
	return jobs, rows.Err()
}

func (r *jobRepo) MarkDone(ctx context.Context, tx *sql.Tx, transactionID string, now time.Time) error {
	_, err := conn(r.db, tx).ExecContext(ctx,
		`UPDATE provisioning_jobs SET status = $2, attempts = attempts + 1, last_error = '', updated_at = $3 WHERE transaction_id = $1`,
		transactionID, domain.JobDone, now,
	)
	if err != nil {
		return fmt.Errorf("mark job %s done: %w", transactionID, err)
	}
	return nil
}

func (r *jobRepo) MarkAttemptFailed(ctx context.Context, tx *sql.Tx, transactionID, reason string, maxAttempts int, now time.Time) error {
	query := `
		UPDATE provisioning_jobs
		SET attempts = attempts + 1,
		    last_error = $2,
		    status = CASE WHEN attempts + 1 >= $3 THEN $4 ELSE status END,
		    updated_at = $5
		WHERE transaction_id = $1
	`
	_, err := conn(r.db, tx).ExecContext(ctx, query, transactionID, reason, maxAttempts, domain.JobFailed, now)
	if err != nil {
		return fmt.Errorf("mark job %s failed: %w", transactionID, err)
	}
	return nil
}
