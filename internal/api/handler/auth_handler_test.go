package handler

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/AjcJustin/aero-park/internal/repository/memory"
	"github.com/AjcJustin/aero-park/internal/service"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAuthRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	authService := service.NewAuthService(memory.NewUserRepo(), "test-secret", time.Hour)
	h := NewAuthHandler(authService)
	r := gin.New()
	r.POST("/auth/register", h.Register)
	r.POST("/auth/login", h.Login)
	return r
}

func postJSON(t *testing.T, r *gin.Engine, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	return w
}

func TestAuthEndpoints(t *testing.T) {
	t.Run("register returns profile without password", func(t *testing.T) {
		r := newAuthRouter(t)
		w := postJSON(t, r, "/auth/register", gin.H{"email": "an@example.com", "password": "secret123"})
		require.Equal(t, http.StatusCreated, w.Code)

		var body map[string]interface{}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		assert.Equal(t, "an@example.com", body["email"])
		assert.Equal(t, "user", body["role"])
		assert.NotEmpty(t, body["user_id"])
		assert.NotContains(t, w.Body.String(), "secret123")
		assert.NotContains(t, body, "password")
	})

	t.Run("duplicate email is a conflict", func(t *testing.T) {
		r := newAuthRouter(t)
		w := postJSON(t, r, "/auth/register", gin.H{"email": "an@example.com", "password": "secret123"})
		require.Equal(t, http.StatusCreated, w.Code)
		w = postJSON(t, r, "/auth/register", gin.H{"email": "an@example.com", "password": "secret123"})
		assert.Equal(t, http.StatusConflict, w.Code)
	})

	t.Run("login returns a token", func(t *testing.T) {
		r := newAuthRouter(t)
		w := postJSON(t, r, "/auth/register", gin.H{"email": "an@example.com", "password": "secret123"})
		require.Equal(t, http.StatusCreated, w.Code)

		w = postJSON(t, r, "/auth/login", gin.H{"email": "an@example.com", "password": "secret123"})
		require.Equal(t, http.StatusOK, w.Code)
		var body map[string]interface{}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		assert.NotEmpty(t, body["token"])
		assert.Equal(t, "an@example.com", body["email"])
	})

	t.Run("wrong password is unauthorized", func(t *testing.T) {
		r := newAuthRouter(t)
		w := postJSON(t, r, "/auth/register", gin.H{"email": "an@example.com", "password": "secret123"})
		require.Equal(t, http.StatusCreated, w.Code)

		w = postJSON(t, r, "/auth/login", gin.H{"email": "an@example.com", "password": "sai-mat-khau"})
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("malformed register payload is rejected", func(t *testing.T) {
		r := newAuthRouter(t)
		w := postJSON(t, r, "/auth/register", gin.H{"email": "không-phải-email", "password": "x"})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}
