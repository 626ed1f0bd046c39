package handler

import (
	"errors"
	"log"
	"net/http"

	"github.com/AjcJustin/aero-park/internal/domain"
	"github.com/AjcJustin/aero-park/internal/service"
	"github.com/gin-gonic/gin"
)

// AuthHandler phục vụ đăng ký và đăng nhập. Token JWT trả về từ Login
// được dùng cho mọi endpoint dưới /api/v1.
type AuthHandler struct {
	authService *service.AuthService
}

func NewAuthHandler(authService *service.AuthService) *AuthHandler {
	return &AuthHandler{authService: authService}
}

// POST /auth/register
func (h *AuthHandler) Register(c *gin.Context) {
	var dto domain.RegisterUserDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Dữ liệu đăng ký không hợp lệ", "details": err.Error()})
		return
	}

	user, err := h.authService.Register(c.Request.Context(), dto)
	if err != nil {
		if errors.Is(err, service.ErrUserAlreadyExists) {
			c.JSON(http.StatusConflict, gin.H{"error": "Email đã được đăng ký"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Không thể đăng ký người dùng", "details": err.Error()})
		return
	}

	log.Printf("Đã đăng ký người dùng mới: %s (vai trò %s)", user.Email, user.Role)
	c.JSON(http.StatusCreated, gin.H{
		"message": "Đăng ký thành công",
		"user_id": user.ID,
		"email":   user.Email,
		"role":    user.Role,
	})
}

// POST /auth/login
func (h *AuthHandler) Login(c *gin.Context) {
	var dto domain.LoginUserDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Thiếu email hoặc mật khẩu", "details": err.Error()})
		return
	}

	resp, err := h.authService.Login(c.Request.Context(), dto)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			// Không phân biệt sai email hay sai mật khẩu.
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Email hoặc mật khẩu không đúng"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Lỗi đăng nhập", "details": err.Error()})
		return
	}
	c.JSON(http.StatusOK, resp)
}
