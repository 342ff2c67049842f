package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"esim-payments/internal/auth"
	"esim-payments/internal/domain"
)

const adminSubjectKey = "admin_subject"

// requireAdmin accepts only unexpired access tokens carrying the admin role.
func (s *Server) requireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		scheme, token, ok := strings.Cut(header, " ")
		if !ok || !strings.EqualFold(scheme, "Bearer") || token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid authentication credentials"})
			return
		}

		claims, err := s.tokens.Parse(token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid authentication credentials"})
			return
		}
		if claims.Role != auth.RoleAdmin || claims.Type != auth.TypeAccessToken {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Admin access required"})
			return
		}

		c.Set(adminSubjectKey, claims.Subject)
		c.Next()
	}
}

// writeError maps domain errors to status codes. Anything unrecognised is
// logged and answered with the generic message.
func (s *Server) writeError(c *gin.Context, err error, message string) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrValidation):
		status = http.StatusBadRequest
	case errors.Is(err, domain.ErrUnauthorized):
		status = http.StatusUnauthorized
	case errors.Is(err, domain.ErrForbidden):
		status = http.StatusForbidden
	case errors.Is(err, domain.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrInvalidTransition):
		status = http.StatusConflict
	}

	if status == http.StatusInternalServerError {
		s.log.WithError(err).WithField("path", c.FullPath()).Error(message)
		c.JSON(status, gin.H{"error": message})
		return
	}
	c.JSON(status, gin.H{"error": err.Error()})
}
