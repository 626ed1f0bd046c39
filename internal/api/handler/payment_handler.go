package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/AjcJustin/aero-park/internal/api/middleware"
	"github.com/AjcJustin/aero-park/internal/domain"
	"github.com/AjcJustin/aero-park/internal/repository"
	"github.com/AjcJustin/aero-park/internal/service"
	"github.com/gin-gonic/gin"
)

type PaymentHandler struct {
	paymentService *service.PaymentService
}

func NewPaymentHandler(ps *service.PaymentService) *PaymentHandler {
	return &PaymentHandler{paymentService: ps}
}

// GET /api/v1/payments/my
func (h *PaymentHandler) MyPayments(c *gin.Context) {
	userID := c.GetString(middleware.UserIDKey)
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	payments, err := h.paymentService.GetUserPayments(c.Request.Context(), userID, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Lỗi lấy lịch sử thanh toán", "details": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"payments": payments, "count": len(payments)})
}

// GET /api/v1/payments/:payment_id
func (h *PaymentHandler) GetPayment(c *gin.Context) {
	payment, err := h.paymentService.GetPayment(c.Request.Context(), c.Param("payment_id"))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Không tìm thấy thanh toán"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Lỗi lấy thanh toán", "details": err.Error()})
		return
	}
	userID := c.GetString(middleware.UserIDKey)
	isAdmin := c.GetString(middleware.UserRoleKey) == domain.RoleAdmin
	if !isAdmin && payment.UserID != userID {
		c.JSON(http.StatusForbidden, gin.H{"error": "Bạn không có quyền xem thanh toán này"})
		return
	}
	c.JSON(http.StatusOK, payment)
}
