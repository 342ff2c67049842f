package service

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"esim-payments/internal/cache"
	"esim-payments/internal/database"
	"esim-payments/internal/domain"
	"esim-payments/internal/events"
	"esim-payments/internal/repo"
	"esim-payments/internal/signature"
)

type WebhookService interface {
	// Handle applies a signed gateway status notification.
	Handle(ctx context.Context, body []byte, sig string) (*domain.WebhookAck, error)
}

type webhookService struct {
	tx              database.Transactor
	transactionRepo repo.TransactionRepo
	jobRepo         repo.JobRepo
	configs         GatewayConfigProvider
	statusCache     cache.Cache
	cacheTTL        time.Duration
	publisher       events.Publisher
	log             logrus.FieldLogger
	now             func() time.Time
}

func NewWebhookService(
	tx database.Transactor,
	transactionRepo repo.TransactionRepo,
	jobRepo repo.JobRepo,
	configs GatewayConfigProvider,
	statusCache cache.Cache,
	cacheTTL time.Duration,
	publisher events.Publisher,
	log logrus.FieldLogger,
) WebhookService {
	return &webhookService{
		tx:              tx,
		transactionRepo: transactionRepo,
		jobRepo:         jobRepo,
		configs:         configs,
		statusCache:     statusCache,
		cacheTTL:        cacheTTL,
		publisher:       publisher,
		log:             log,
		now:             utcNow,
	}
}

func decodePayload(body []byte) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	var payload map[string]any
	if err := dec.Decode(&payload); err != nil || payload == nil {
		return nil, fmt.Errorf("%w: body must be a JSON object", domain.ErrValidation)
	}
	if dec.More() {
		return nil, fmt.Errorf("%w: trailing data after JSON object", domain.ErrValidation)
	}
	return payload, nil
}

func (s *webhookService) Handle(ctx context.Context, body []byte, sig string) (*domain.WebhookAck, error) {
	payload, err := decodePayload(body)
	if err != nil {
		return nil, err
	}

	cfg, err := s.configs.Current(ctx)
	if err != nil {
		return nil, err
	}
	if !signature.New(cfg.SecretKey).Verify(payload, sig) {
		s.log.WithField("config_version", cfg.Version).Warn("webhook rejected: invalid signature")
		return nil, fmt.Errorf("%w: invalid signature", domain.ErrUnauthorized)
	}

	n, err := domain.ParseWebhookNotification(payload)
	if err != nil {
		return nil, err
	}

	var (
		previous domain.PaymentStatus
		enqueued bool
		unknown  bool
		now      = s.now()
	)
	err = s.tx.WithinTx(ctx, func(tx *sql.Tx) error {
		txn, err := s.transactionRepo.FindByIDForUpdate(ctx, tx, n.TransactionID)
		if err != nil {
			return fmt.Errorf("lock transaction %s: %w", n.TransactionID, err)
		}
		if txn == nil {
			unknown = true
			return nil
		}

		previous = txn.Status
		if !domain.CanTransition(previous, n.Status) {
			return fmt.Errorf("%w: %s -> %s", domain.ErrInvalidTransition, previous, n.Status)
		}

		if err := s.transactionRepo.UpdateStatus(ctx, tx, n.TransactionID, n.Status, n.Raw, now); err != nil {
			return err
		}

		if n.Status == domain.StatusCompleted {
			enqueued, err = s.jobRepo.Enqueue(ctx, tx, n.TransactionID, now)
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	ack := &domain.WebhookAck{Success: true, Message: "Webhook processed"}

	// unknown ids are acknowledged and nothing is stored
	if unknown {
		s.log.WithFields(logrus.Fields{
			"transaction_id": n.TransactionID,
			"status":         n.Status,
		}).Warn("webhook for unknown transaction ignored")
		return ack, nil
	}

	entry := s.log.WithFields(logrus.Fields{
		"transaction_id":  n.TransactionID,
		"previous_status": previous,
		"status":          n.Status,
	})

	if _, err := s.statusCache.Incr(ctx, StatusGenerationKey(n.TransactionID), s.cacheTTL); err != nil {
		entry.WithError(err).Warn("status cache invalidation failed")
	}

	if previous != n.Status {
		event := events.PaymentStatusChanged{
			EventType:      events.TopicPaymentStatusChanged,
			TransactionID:  n.TransactionID,
			PreviousStatus: string(previous),
			Status:         string(n.Status),
			OccurredAt:     now,
		}
		if err := s.publisher.Publish(ctx, events.TopicPaymentStatusChanged, n.TransactionID, event); err != nil {
			entry.WithError(err).Warn("status event not published")
		}
	}

	entry.WithField("provisioning_enqueued", enqueued).Info("webhook processed")

	return ack, nil
}
