package server

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"esim-payments/internal/domain"
)

func (s *Server) rootHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"message": "eSIM Myanmar Payment Gateway API", "status": "active"})
}

func (s *Server) healthHandler(c *gin.Context) {
	db := s.db.Health(c.Request.Context())
	if db["status"] != "up" {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy", "timestamp": s.now(), "database": db})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "healthy", "timestamp": s.now(), "database": db})
}

func (s *Server) plansHandler(c *gin.Context) {
	c.JSON(http.StatusOK, domain.DefaultPlans())
}

func (s *Server) createPaymentHandler(c *gin.Context) {
	var req domain.CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	res, err := s.orders.CreateOrder(c.Request.Context(), &req)
	if err != nil {
		s.writeError(c, err, "Failed to create payment order")
		return
	}
	c.JSON(http.StatusOK, res)
}

func (s *Server) paymentStatusHandler(c *gin.Context) {
	view, err := s.orders.GetStatus(c.Request.Context(), c.Param("transaction_id"))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Transaction not found"})
			return
		}
		s.writeError(c, err, "Failed to get payment status")
		return
	}
	c.JSON(http.StatusOK, view)
}

func (s *Server) webhookHandler(c *gin.Context) {
	body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxWebhookBody))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	ack, err := s.webhooks.Handle(c.Request.Context(), body, c.GetHeader("X-Signature"))
	if err != nil {
		s.writeError(c, err, "Webhook processing failed")
		return
	}
	c.JSON(http.StatusOK, ack)
}

func (s *Server) provisionHandler(c *gin.Context) {
	var req domain.ProvisionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	p, err := s.provisions.Provision(c.Request.Context(), &req)
	if err != nil {
		s.writeError(c, err, "Failed to provision eSIM")
		return
	}
	c.JSON(http.StatusOK, p)
}

func (s *Server) loginHandler(c *gin.Context) {
	var req domain.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	res, err := s.admin.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, domain.ErrUnauthorized) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
			return
		}
		s.writeError(c, err, "Login failed")
		return
	}
	c.JSON(http.StatusOK, res)
}

func (s *Server) dashboardHandler(c *gin.Context) {
	d, err := s.admin.Dashboard(c.Request.Context())
	if err != nil {
		s.writeError(c, err, "Failed to load dashboard data")
		return
	}
	c.JSON(http.StatusOK, d)
}

func (s *Server) gatewayConfigHandler(c *gin.Context) {
	cfg, err := s.admin.GatewayConfig(c.Request.Context())
	if err != nil {
		s.writeError(c, err, "Failed to get configuration")
		return
	}
	c.JSON(http.StatusOK, cfg)
}

func (s *Server) updateGatewayConfigHandler(c *gin.Context) {
	var req domain.GatewayConfigUpdate
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	res, err := s.admin.UpdateGatewayConfig(c.Request.Context(), &req, c.GetString(adminSubjectKey))
	if err != nil {
		if errors.Is(err, domain.ErrValidation) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Environment must be UAT or LIVE, with access_key and secret_key"})
			return
		}
		s.writeError(c, err, "Failed to update configuration")
		return
	}
	c.JSON(http.StatusOK, res)
}
