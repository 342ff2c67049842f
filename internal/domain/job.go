package domain

import "time"

type JobStatus string

const (
	JobPending JobStatus = "PENDING"
	JobDone    JobStatus = "DONE"
	JobFailed  JobStatus = "FAILED"
)

// ProvisioningJob is queued work to provision the eSIM of a completed transaction.
// The transaction id is the idempotency key: one job per transaction.
type ProvisioningJob struct {
	TransactionID string
	Status        JobStatus
	Attempts      int
	LastError     string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}
