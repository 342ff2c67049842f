package main

import (
	"context"
	"database/sql"
	"errors"

	"github.com/sirupsen/logrus"

	"esim-payments/internal/auth"
	"esim-payments/internal/cache"
	"esim-payments/internal/config"
	"esim-payments/internal/database"
	"esim-payments/internal/events"
	"esim-payments/internal/infrastructure/payment"
	"esim-payments/internal/notify"
	"esim-payments/internal/repo"
	"esim-payments/internal/service"
	"esim-payments/internal/worker"
)

func newLogger(level string) *logrus.Logger {
	log := logrus.New()
	log.SetFormatter(&logrus.JSONFormatter{})
	if lvl, err := logrus.ParseLevel(level); err == nil {
		log.SetLevel(lvl)
	}
	return log
}

// app holds the wired services shared by serve and simulate.
type app struct {
	configs      service.GatewayConfigProvider
	transactions repo.TransactionRepo
	provisionsDB repo.ProvisionRepo
	orders       service.OrderService
	webhooks     service.WebhookService
	provisions   service.ProvisionService
	admin        service.AdminService
	tokens       *auth.TokenIssuer
	worker       *worker.ProvisioningWorker

	closers []func() error
}

func newApp(ctx context.Context, cfg *config.Config, db *sql.DB, log *logrus.Logger) (*app, error) {
	a := &app{}

	var statusCache cache.Cache = cache.NewMemory()
	if cfg.RedisAddr != "" {
		client, err := cache.ConnectRedis(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, client.Close)
		statusCache = cache.NewRedisCache(client)
	} else {
		log.Warn("REDIS_ADDR not set, using in-process status cache")
	}

	publisher := events.NewLogPublisher(log)
	if len(cfg.KafkaBrokers) > 0 {
		producer, err := events.NewKafkaProducer(cfg.KafkaBrokers)
		if err != nil {
			a.Close()
			return nil, err
		}
		publisher = events.NewKafkaPublisher(producer)
		a.closers = append(a.closers, publisher.Close)
	} else {
		log.Warn("KAFKA_BROKERS not set, events are only logged")
	}

	sender := notify.NewLogSender(log)
	if cfg.SMTPConfigured() {
		sender = notify.NewSMTPSender(cfg.SMTP)
	} else {
		log.Warn("SMTP credentials not set, emails are only logged")
	}

	tx := database.NewTransactor(db)
	transactionRepo := repo.NewTransactionRepo(db)
	provisionRepo := repo.NewProvisionRepo(db)
	jobRepo := repo.NewJobRepo(db)
	configRepo := repo.NewGatewayConfigRepo(db)

	a.configs = service.NewGatewayConfigProvider(configRepo, cfg.Gateway)
	a.transactions = transactionRepo
	a.provisionsDB = provisionRepo
	a.tokens = auth.NewTokenIssuer(cfg.JWTSecret, cfg.AccessTokenTTL)

	gateway := payment.NewPaymentGateway(cfg.FrontendURL, cfg.MMQRImageURL)
	a.orders = service.NewOrderService(transactionRepo, gateway, a.configs, statusCache, cfg.StatusCacheTTL, log)
	a.webhooks = service.NewWebhookService(tx, transactionRepo, jobRepo, a.configs, statusCache, cfg.StatusCacheTTL, publisher, log)
	a.provisions = service.NewProvisionService(provisionRepo, sender, publisher, cfg.SMDPHost, cfg.ESIMQRCodeURL, log)
	a.admin = service.NewAdminService(
		service.AdminCredentials{Email: cfg.AdminEmail, PasswordHash: cfg.AdminPasswordHash},
		a.tokens, transactionRepo, configRepo, a.configs, log,
	)
	a.worker = worker.NewProvisioningWorker(tx, jobRepo, transactionRepo, a.provisions,
		cfg.WorkerInterval, cfg.WorkerBatchSize, cfg.WorkerMaxAttempt, log)

	return a, nil
}

func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	a.closers = nil
	return errors.Join(errs...)
}
