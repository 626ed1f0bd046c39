package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func newAPIKeyRouter(key string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/sensor/update", RequireAPIKey(key), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})
	return r
}

func TestRequireAPIKey(t *testing.T) {
	t.Run("missing header", func(t *testing.T) {
		r := newAPIKeyRouter("bi-mat")
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/sensor/update", nil)
		r.ServeHTTP(w, req)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("wrong key", func(t *testing.T) {
		r := newAPIKeyRouter("bi-mat")
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/sensor/update", nil)
		req.Header.Set(APIKeyHeader, "sai-khoa")
		r.ServeHTTP(w, req)
		assert.Equal(t, http.StatusForbidden, w.Code)
	})

	t.Run("valid key", func(t *testing.T) {
		r := newAPIKeyRouter("bi-mat")
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/sensor/update", nil)
		req.Header.Set(APIKeyHeader, "bi-mat")
		r.ServeHTTP(w, req)
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("empty key passes everything through", func(t *testing.T) {
		r := newAPIKeyRouter("")
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/sensor/update", nil)
		r.ServeHTTP(w, req)
		assert.Equal(t, http.StatusOK, w.Code)
	})
}
