package server

import (
	"fmt"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"esim-payments/internal/auth"
	"esim-payments/internal/database"
	"esim-payments/internal/service"
)

// maxWebhookBody caps the webhook payload read into memory.
const maxWebhookBody = 1 << 20

type Server struct {
	port           string
	allowedOrigins []string

	db         database.Service
	orders     service.OrderService
	webhooks   service.WebhookService
	provisions service.ProvisionService
	admin      service.AdminService
	tokens     *auth.TokenIssuer
	log        logrus.FieldLogger
	now        func() time.Time
}

type Config struct {
	Port           string
	AllowedOrigins []string

	DB         database.Service
	Orders     service.OrderService
	Webhooks   service.WebhookService
	Provisions service.ProvisionService
	Admin      service.AdminService
	Tokens     *auth.TokenIssuer
	Log        logrus.FieldLogger
}

func New(cfg Config) *Server {
	return &Server{
		port:           cfg.Port,
		allowedOrigins: cfg.AllowedOrigins,
		db:             cfg.DB,
		orders:         cfg.Orders,
		webhooks:       cfg.Webhooks,
		provisions:     cfg.Provisions,
		admin:          cfg.Admin,
		tokens:         cfg.Tokens,
		log:            cfg.Log,
		now:            func() time.Time { return time.Now().UTC() },
	}
}

// HTTPServer declares the http.Server serving the routes on the configured port.
func (s *Server) HTTPServer() *http.Server {
	return &http.Server{
		Addr:         fmt.Sprintf(":%s", s.port),
		Handler:      s.RegisterRoutes(),
		IdleTimeout:  time.Minute,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
}
