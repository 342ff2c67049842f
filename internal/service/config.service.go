package service

import (
	"context"
	"fmt"

	"esim-payments/internal/domain"
	"esim-payments/internal/repo"
)

// GatewayConfigProvider resolves the gateway configuration in effect right now.
type GatewayConfigProvider interface {
	Current(ctx context.Context) (*domain.GatewayConfig, error)
}

type gatewayConfigProvider struct {
	configRepo repo.GatewayConfigRepo
	fallback   domain.GatewayConfig
}

// NewGatewayConfigProvider serves the newest stored version, or fallback
// (the environment configuration) until an admin stores one.
func NewGatewayConfigProvider(configRepo repo.GatewayConfigRepo, fallback domain.GatewayConfig) GatewayConfigProvider {
	return &gatewayConfigProvider{configRepo: configRepo, fallback: fallback}
}

func (p *gatewayConfigProvider) Current(ctx context.Context) (*domain.GatewayConfig, error) {
	cfg, err := p.configRepo.Latest(ctx)
	if err != nil {
		return nil, fmt.Errorf("current gateway config: %w", err)
	}
	if cfg == nil {
		fallback := p.fallback
		return &fallback, nil
	}
	return cfg, nil
}
