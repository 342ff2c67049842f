package worker

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"esim-payments/internal/database"
	"esim-payments/internal/domain"
	"esim-payments/internal/repo"
	"esim-payments/internal/service"
)

// ProvisioningWorker drains the provisioning job queue filled by the webhook
// processor. Jobs are at-least-once; Provision is idempotent per transaction.
type ProvisioningWorker struct {
	tx              database.Transactor
	jobRepo         repo.JobRepo
	transactionRepo repo.TransactionRepo
	provisions      service.ProvisionService
	interval        time.Duration
	batchSize       int
	maxAttempts     int
	log             logrus.FieldLogger
	now             func() time.Time
}

func NewProvisioningWorker(
	tx database.Transactor,
	jobRepo repo.JobRepo,
	transactionRepo repo.TransactionRepo,
	provisions service.ProvisionService,
	interval time.Duration,
	batchSize int,
	maxAttempts int,
	log logrus.FieldLogger,
) *ProvisioningWorker {
	return &ProvisioningWorker{
		tx:              tx,
		jobRepo:         jobRepo,
		transactionRepo: transactionRepo,
		provisions:      provisions,
		interval:        interval,
		batchSize:       batchSize,
		maxAttempts:     maxAttempts,
		log:             log,
		now:             func() time.Time { return time.Now().UTC() },
	}
}

func (w *ProvisioningWorker) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.log.WithField("interval", w.interval.String()).Info("provisioning worker started")

	for {
		select {
		case <-ctx.Done():
			w.log.Info("provisioning worker stopped")
			return
		case <-ticker.C:
			if _, err := w.ProcessBatch(ctx); err != nil {
				w.log.WithError(err).Error("provisioning batch failed")
			}
		}
	}
}

// ProcessBatch claims up to batchSize pending jobs and provisions each one.
// The claim holds row locks until the batch commits, so concurrent workers
// never process the same job.
func (w *ProvisioningWorker) ProcessBatch(ctx context.Context) (int, error) {
	processed := 0
	err := w.tx.WithinTx(ctx, func(tx *sql.Tx) error {
		jobs, err := w.jobRepo.ClaimPending(ctx, tx, w.batchSize)
		if err != nil {
			return fmt.Errorf("claim provisioning jobs: %w", err)
		}
		if len(jobs) == 0 {
			return nil
		}

		w.log.WithField("jobs", len(jobs)).Info("processing provisioning jobs")

		for _, job := range jobs {
			if err := w.process(ctx, tx, job); err != nil {
				return err
			}
			processed++
		}
		return nil
	})
	return processed, err
}

// process returns an error only when the job's own bookkeeping fails.
func (w *ProvisioningWorker) process(ctx context.Context, tx *sql.Tx, job domain.ProvisioningJob) error {
	entry := w.log.WithFields(logrus.Fields{
		"transaction_id": job.TransactionID,
		"attempt":        job.Attempts + 1,
	})

	txn, err := w.transactionRepo.FindByID(ctx, job.TransactionID)
	if err != nil {
		entry.WithError(err).Warn("load transaction for provisioning")
		return w.jobRepo.MarkAttemptFailed(ctx, tx, job.TransactionID, err.Error(), w.maxAttempts, w.now())
	}
	if txn == nil {
		entry.Error("provisioning job without transaction")
		return w.jobRepo.MarkAttemptFailed(ctx, tx, job.TransactionID, "transaction not found", 1, w.now())
	}
	if txn.Status != domain.StatusCompleted {
		reason := fmt.Sprintf("transaction is %s", txn.Status)
		entry.WithField("status", txn.Status).Error("provisioning job for a transaction that is not completed")
		return w.jobRepo.MarkAttemptFailed(ctx, tx, job.TransactionID, reason, 1, w.now())
	}

	p, err := w.provisions.Provision(ctx, &domain.ProvisionRequest{
		TransactionID: txn.TransactionID,
		EsimPlanID:    txn.EsimPlanID,
		CustomerEmail: txn.CustomerEmail,
		AmountPaid:    txn.Amount,
		Currency:      txn.Currency,
	})
	if err != nil {
		entry.WithError(err).Warn("provisioning attempt failed")
		return w.jobRepo.MarkAttemptFailed(ctx, tx, job.TransactionID, err.Error(), w.maxAttempts, w.now())
	}

	entry.WithField("provisioning_id", p.ProvisioningID).Info("provisioning job done")
	return w.jobRepo.MarkDone(ctx, tx, job.TransactionID, w.now())
}
