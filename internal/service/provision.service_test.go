package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"esim-payments/internal/domain"
	"esim-payments/internal/events"
	"esim-payments/internal/notify"
)

func TestProvision_CreatesRecordAndNotifies(t *testing.T) {
	f := newFixture(t)

	p, err := f.provisions.Provision(context.Background(), &domain.ProvisionRequest{
		TransactionID: "ESIM_1700000000000_ABCDEF12",
		EsimPlanID:    "esim_1gb_7days",
		CustomerEmail: "buyer@example.com",
	})
	require.NoError(t, err)

	assert.Regexp(t, `^PROV_\d+_[0-9a-f]{8}$`, p.ProvisioningID)
	assert.Regexp(t, `^8995\d{16}$`, p.ICCID)
	assert.Regexp(t, `^LPA:1\$rsp-prod\.esim\.com\.mm\$[0-9a-f]{32}$`, p.ActivationCode)
	assert.Equal(t, "https://img.example/esim.jpg", p.QRCodeURL)
	assert.Equal(t, domain.ProvisionStatusProvisioned, p.Status)
	assert.Equal(t, 1, f.store.ProvisionCount())

	require.Len(t, f.sender.sent, 1)
	mail := f.sender.sent[0]
	assert.Equal(t, "buyer@example.com", mail.to)
	assert.Equal(t, notify.ProvisionSubject, mail.subject)
	assert.Contains(t, mail.html, p.ICCID)

	assert.Equal(t, []string{events.TopicESIMProvisioned}, f.publisher.topics())
}

func TestProvision_IdempotentPerTransaction(t *testing.T) {
	f := newFixture(t)
	req := &domain.ProvisionRequest{
		TransactionID: "ESIM_1700000000000_ABCDEF12",
		EsimPlanID:    "esim_1gb_7days",
		CustomerEmail: "buyer@example.com",
	}

	first, err := f.provisions.Provision(context.Background(), req)
	require.NoError(t, err)
	second, err := f.provisions.Provision(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, first.ICCID, second.ICCID)
	assert.Equal(t, first.ProvisioningID, second.ProvisioningID)
	assert.Equal(t, 1, f.store.ProvisionCount())
	assert.Len(t, f.sender.sent, 1, "customer is emailed once")
}

func TestProvision_NoEmailWithoutAddress(t *testing.T) {
	f := newFixture(t)
	_, err := f.provisions.Provision(context.Background(), &domain.ProvisionRequest{
		TransactionID: "ESIM_1_ABCDEF12",
		EsimPlanID:    "esim_1gb_7days",
	})
	require.NoError(t, err)
	assert.Empty(t, f.sender.sent)
}

func TestProvision_EmailFailureIsNotFatal(t *testing.T) {
	f := newFixture(t)
	f.sender.err = errBoom

	p, err := f.provisions.Provision(context.Background(), &domain.ProvisionRequest{
		TransactionID: "ESIM_1_ABCDEF12",
		EsimPlanID:    "esim_1gb_7days",
		CustomerEmail: "buyer@example.com",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, p.ICCID)
	assert.Equal(t, 1, f.store.ProvisionCount())
}

func TestProvision_Validation(t *testing.T) {
	f := newFixture(t)
	_, err := f.provisions.Provision(context.Background(), &domain.ProvisionRequest{EsimPlanID: "esim_1gb_7days"})
	assert.ErrorIs(t, err, domain.ErrValidation)
	_, err = f.provisions.Provision(context.Background(), &domain.ProvisionRequest{TransactionID: "ESIM_1_ABCDEF12"})
	assert.ErrorIs(t, err, domain.ErrValidation)
	assert.Zero(t, f.store.ProvisionCount())
}

func TestProvision_StoreError(t *testing.T) {
	f := newFixture(t)
	f.store.CreateProvisionErr = errBoom

	_, err := f.provisions.Provision(context.Background(), &domain.ProvisionRequest{
		TransactionID: "ESIM_1_ABCDEF12",
		EsimPlanID:    "esim_1gb_7days",
		CustomerEmail: "buyer@example.com",
	})
	assert.ErrorIs(t, err, errBoom)
	assert.Empty(t, f.sender.sent)
	assert.Empty(t, f.publisher.events)
}
