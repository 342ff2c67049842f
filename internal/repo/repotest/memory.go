// Package repotest provides an in-memory implementation of the repositories
// for tests that do not need Postgres.
package repotest

import (
	"context"
	"database/sql"
	"maps"
	"sort"
	"sync"
	"time"

	"esim-payments/internal/domain"
)

// Store implements every repo interface plus database.Transactor.
// WithinTx restores the previous state when the unit of work fails.
type Store struct {
	mu            sync.Mutex
	transactions  map[string]domain.PaymentTransaction
	provisions    map[string]domain.ESIMProvision
	jobs          map[string]domain.ProvisioningJob
	configs       []domain.GatewayConfig
	statusUpdates int

	// Errors injected into the next matching call.
	CreateTransactionErr error
	CreateProvisionErr   error
	UpdateStatusErr      error
}

func New() *Store {
	return &Store{
		transactions: make(map[string]domain.PaymentTransaction),
		provisions:   make(map[string]domain.ESIMProvision),
		jobs:         make(map[string]domain.ProvisioningJob),
	}
}

func (s *Store) WithinTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	s.mu.Lock()
	txns, provs, jobs := maps.Clone(s.transactions), maps.Clone(s.provisions), maps.Clone(s.jobs)
	s.mu.Unlock()

	if err := fn(nil); err != nil {
		s.mu.Lock()
		s.transactions, s.provisions, s.jobs = txns, provs, jobs
		s.mu.Unlock()
		return err
	}
	return nil
}

// Transactions

func (s *Store) Create(ctx context.Context, tx *sql.Tx, t *domain.PaymentTransaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.CreateTransactionErr; err != nil {
		s.CreateTransactionErr = nil
		return err
	}
	s.transactions[t.TransactionID] = *t
	return nil
}

func (s *Store) FindByID(ctx context.Context, id string) (*domain.PaymentTransaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.transactions[id]
	if !ok {
		return nil, nil
	}
	return &t, nil
}

func (s *Store) FindByIDForUpdate(ctx context.Context, tx *sql.Tx, id string) (*domain.PaymentTransaction, error) {
	return s.FindByID(ctx, id)
}

func (s *Store) UpdateStatus(ctx context.Context, tx *sql.Tx, id string, status domain.PaymentStatus, gatewayResponse map[string]any, updatedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.UpdateStatusErr; err != nil {
		s.UpdateStatusErr = nil
		return err
	}
	t, ok := s.transactions[id]
	if !ok {
		return nil
	}
	t.Status = status
	t.GatewayResponse = gatewayResponse
	t.UpdatedAt = updatedAt
	s.transactions[id] = t
	s.statusUpdates++
	return nil
}

func (s *Store) Count(ctx context.Context, status domain.PaymentStatus) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, t := range s.transactions {
		if status == "" || t.Status == status {
			n++
		}
	}
	return n, nil
}

func (s *Store) FindRecent(ctx context.Context, limit int) ([]domain.PaymentTransaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	list := make([]domain.PaymentTransaction, 0, len(s.transactions))
	for _, t := range s.transactions {
		list = append(list, t)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].CreatedAt.After(list[j].CreatedAt) })
	if len(list) > limit {
		list = list[:limit]
	}
	return list, nil
}

// StatusUpdates reports how many status writes reached the store.
func (s *Store) StatusUpdates() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.statusUpdates
}

// Provisions

type ProvisionStore struct{ *Store }

func (s *Store) Provisions() ProvisionStore { return ProvisionStore{s} }

func (p ProvisionStore) Create(ctx context.Context, tx *sql.Tx, prov *domain.ESIMProvision) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.CreateProvisionErr; err != nil {
		p.CreateProvisionErr = nil
		return false, err
	}
	if _, ok := p.provisions[prov.TransactionID]; ok {
		return false, nil
	}
	p.provisions[prov.TransactionID] = *prov
	return true, nil
}

func (p ProvisionStore) FindByTransactionID(ctx context.Context, transactionID string) (*domain.ESIMProvision, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	prov, ok := p.provisions[transactionID]
	if !ok {
		return nil, nil
	}
	return &prov, nil
}

func (s *Store) ProvisionCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.provisions)
}

// Jobs

type JobStore struct{ *Store }

func (s *Store) Jobs() JobStore { return JobStore{s} }

func (j JobStore) Enqueue(ctx context.Context, tx *sql.Tx, transactionID string, now time.Time) (bool, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if _, ok := j.jobs[transactionID]; ok {
		return false, nil
	}
	j.jobs[transactionID] = domain.ProvisioningJob{
		TransactionID: transactionID,
		Status:        domain.JobPending,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	return true, nil
}

func (j JobStore) ClaimPending(ctx context.Context, tx *sql.Tx, limit int) ([]domain.ProvisioningJob, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	var pending []domain.ProvisioningJob
	for _, job := range j.jobs {
		if job.Status == domain.JobPending {
			pending = append(pending, job)
		}
	}
	sort.Slice(pending, func(a, b int) bool { return pending[a].CreatedAt.Before(pending[b].CreatedAt) })
	if len(pending) > limit {
		pending = pending[:limit]
	}
	return pending, nil
}

func (j JobStore) MarkDone(ctx context.Context, tx *sql.Tx, transactionID string, now time.Time) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	job := j.jobs[transactionID]
	job.Status = domain.JobDone
	job.Attempts++
	job.LastError = ""
	job.UpdatedAt = now
	j.jobs[transactionID] = job
	return nil
}

func (j JobStore) MarkAttemptFailed(ctx context.Context, tx *sql.Tx, transactionID, reason string, maxAttempts int, now time.Time) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	job := j.jobs[transactionID]
	job.Attempts++
	job.LastError = reason
	if job.Attempts >= maxAttempts {
		job.Status = domain.JobFailed
	}
	job.UpdatedAt = now
	j.jobs[transactionID] = job
	return nil
}

// Job returns a copy of the job for transactionID.
func (s *Store) Job(transactionID string) (domain.ProvisioningJob, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[transactionID]
	return job, ok
}

func (s *Store) JobCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.jobs)
}

// Gateway configs

type ConfigStore struct{ *Store }

func (s *Store) Configs() ConfigStore { return ConfigStore{s} }

func (c ConfigStore) Latest(ctx context.Context) (*domain.GatewayConfig, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.configs) == 0 {
		return nil, nil
	}
	cfg := c.configs[len(c.configs)-1]
	return &cfg, nil
}

func (c ConfigStore) Append(ctx context.Context, cfg *domain.GatewayConfig) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	cfg.Version = int64(len(c.configs) + 1)
	c.configs = append(c.configs, *cfg)
	return nil
}
