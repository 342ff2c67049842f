package server

import (
	"net/http"
	"slices"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

func (s *Server) RegisterRoutes() http.Handler {
	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery())
	r.Use(cors.New(s.corsConfig()))

	r.GET("/", s.rootHandler)
	r.GET("/health", s.healthHandler)

	api := r.Group("/api")
	api.GET("/esim-plans", s.plansHandler)
	api.POST("/payments/create", s.createPaymentHandler)
	api.GET("/payments/:transaction_id/status", s.paymentStatusHandler)
	api.POST("/webhooks/payment-status", s.webhookHandler)
	api.POST("/esim-mock/provision", s.provisionHandler)
	api.POST("/admin/login", s.loginHandler)

	admin := api.Group("/admin", s.requireAdmin())
	admin.GET("/dashboard", s.dashboardHandler)
	admin.GET("/payment-gateway/config", s.gatewayConfigHandler)
	admin.POST("/payment-gateway/config", s.updateGatewayConfigHandler)

	return r
}

func (s *Server) corsConfig() cors.Config {
	cfg := cors.Config{
		AllowMethods:  []string{"GET", "POST", "PUT", "DELETE", "OPTIONS", "PATCH"},
		AllowHeaders:  []string{"Accept", "Authorization", "Content-Type", "X-Signature"},
		ExposeHeaders: []string{"Content-Length"},
		MaxAge:        12 * time.Hour,
	}
	if len(s.allowedOrigins) == 0 || slices.Contains(s.allowedOrigins, "*") {
		cfg.AllowAllOrigins = true
		return cfg
	}
	cfg.AllowOrigins = s.allowedOrigins
	cfg.AllowCredentials = true
	return cfg
}
