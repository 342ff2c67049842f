package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"esim-payments/internal/domain"
	"esim-payments/internal/events"
	"esim-payments/internal/notify"
	"esim-payments/internal/repo"
)

type ProvisionService interface {
	// Provision returns the transaction's existing provision, or creates one.
	Provision(ctx context.Context, req *domain.ProvisionRequest) (*domain.ESIMProvision, error)
}

type provisionService struct {
	provisionRepo repo.ProvisionRepo
	sender        notify.Sender
	publisher     events.Publisher
	smdpHost      string
	qrCodeURL     string
	log           logrus.FieldLogger
	now           func() time.Time
}

func NewProvisionService(
	provisionRepo repo.ProvisionRepo,
	sender notify.Sender,
	publisher events.Publisher,
	smdpHost string,
	qrCodeURL string,
	log logrus.FieldLogger,
) ProvisionService {
	return &provisionService{
		provisionRepo: provisionRepo,
		sender:        sender,
		publisher:     publisher,
		smdpHost:      smdpHost,
		qrCodeURL:     qrCodeURL,
		log:           log,
		now:           utcNow,
	}
}

func (s *provisionService) Provision(ctx context.Context, req *domain.ProvisionRequest) (*domain.ESIMProvision, error) {
	if strings.TrimSpace(req.TransactionID) == "" || strings.TrimSpace(req.EsimPlanID) == "" {
		return nil, fmt.Errorf("%w: transaction_id and esim_plan_id are required", domain.ErrValidation)
	}

	existing, err := s.provisionRepo.FindByTransactionID(ctx, req.TransactionID)
	if err != nil {
		return nil, fmt.Errorf("find provision for %s: %w", req.TransactionID, err)
	}
	if existing != nil {
		return existing, nil
	}

	now := s.now()
	p := &domain.ESIMProvision{
		ProvisioningID: domain.NewProvisioningID(now),
		TransactionID:  req.TransactionID,
		EsimPlanID:     req.EsimPlanID,
		ICCID:          domain.NewICCID(),
		ActivationCode: domain.NewActivationCode(s.smdpHost),
		QRCodeURL:      s.qrCodeURL,
		Status:         domain.ProvisionStatusProvisioned,
		ProvisionedAt:  now,
	}

	created, err := s.provisionRepo.Create(ctx, nil, p)
	if err != nil {
		return nil, err
	}
	if !created {
		// lost a race with another caller for the same transaction
		winner, err := s.provisionRepo.FindByTransactionID(ctx, req.TransactionID)
		if err != nil {
			return nil, fmt.Errorf("find provision for %s: %w", req.TransactionID, err)
		}
		if winner == nil {
			return nil, fmt.Errorf("provision for %s vanished after conflict", req.TransactionID)
		}
		return winner, nil
	}

	entry := s.log.WithFields(logrus.Fields{
		"transaction_id":  p.TransactionID,
		"provisioning_id": p.ProvisioningID,
		"esim_plan_id":    p.EsimPlanID,
	})
	entry.Info("esim provisioned")

	if req.CustomerEmail != "" {
		s.sendEmail(ctx, entry, req.CustomerEmail, p)
	}

	event := events.ESIMProvisioned{
		EventType:      events.TopicESIMProvisioned,
		TransactionID:  p.TransactionID,
		ProvisioningID: p.ProvisioningID,
		EsimPlanID:     p.EsimPlanID,
		ICCID:          p.ICCID,
		OccurredAt:     now,
	}
	if err := s.publisher.Publish(ctx, events.TopicESIMProvisioned, p.TransactionID, event); err != nil {
		entry.WithError(err).Warn("provision event not published")
	}

	return p, nil
}

// sendEmail never fails the provision: the record is already stored.
func (s *provisionService) sendEmail(ctx context.Context, entry logrus.FieldLogger, to string, p *domain.ESIMProvision) {
	html, err := notify.ProvisionEmail(p)
	if err != nil {
		entry.WithError(err).Error("render provision email")
		return
	}
	if err := s.sender.Send(ctx, to, notify.ProvisionSubject, html); err != nil {
		entry.WithError(err).Error("provision email not sent")
	}
}
