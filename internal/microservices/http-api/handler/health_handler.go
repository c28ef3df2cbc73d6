package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// HealthHandler serves GET /health
func HealthHandler(cloudUploadEnabled bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":               "healthy",
			"cloud_upload_enabled": cloudUploadEnabled,
		})
	}
}
