package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// HealthHandler reports service liveness and database reachability.
type HealthHandler struct {
	DB      *gorm.DB
	Service string
}

// NewHealthHandler creates a new HealthHandler.
func NewHealthHandler(db *gorm.DB, service string) *HealthHandler {
	return &HealthHandler{DB: db, Service: service}
}

// Check handles GET /health.
func (h *HealthHandler) Check(c *gin.Context) {
	status, code := "healthy", http.StatusOK

	if h.DB != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		sqlDB, err := h.DB.DB()
		if err == nil {
			err = sqlDB.PingContext(ctx)
		}
		if err != nil {
			status, code = "unhealthy", http.StatusServiceUnavailable
		}
	}

	c.JSON(code, gin.H{
		"status":    status,
		"timestamp": time.Now().UTC(),
		"service":   h.Service,
	})
}
