package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/gin-gonic/gin"
)

const APIKeyHeader = "X-API-Key"

// RequireAPIKey bảo vệ các endpoint dành cho thiết bị (cảm biến, rào chắn)
// bằng khóa tĩnh. So sánh constant-time để tránh timing attack.
func RequireAPIKey(expectedKey string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if expectedKey == "" {
			// Không cấu hình khóa: chạy mô phỏng, cho qua.
			c.Next()
			return
		}
		provided := c.GetHeader(APIKeyHeader)
		if provided == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Thiếu header " + APIKeyHeader})
			return
		}
		if subtle.ConstantTimeCompare([]byte(provided), []byte(expectedKey)) != 1 {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "API key không hợp lệ"})
			return
		}
		c.Next()
	}
}
