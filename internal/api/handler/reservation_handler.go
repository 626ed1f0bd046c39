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

type ReservationHandler struct {
	reservationService *service.ReservationService
}

func NewReservationHandler(rs *service.ReservationService) *ReservationHandler {
	return &ReservationHandler{reservationService: rs}
}

func callerIdentity(c *gin.Context) (userID, userEmail string, isAdmin bool) {
	userID = c.GetString(middleware.UserIDKey)
	userEmail = c.GetString(middleware.UserEmailKey)
	isAdmin = c.GetString(middleware.UserRoleKey) == domain.RoleAdmin
	return
}

// POST /api/v1/reservations
func (h *ReservationHandler) Reserve(c *gin.Context) {
	var req domain.ReservationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	userID, userEmail, _ := callerIdentity(c)
	resp, err := h.reservationService.Reserve(c.Request.Context(), userID, userEmail, req)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidDuration):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		case errors.Is(err, service.ErrUserHasActiveReservation):
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		case errors.Is(err, service.ErrSpotNotAvailable):
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		case errors.Is(err, repository.ErrNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "Không tìm thấy chỗ đỗ '" + req.SpotID + "'"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Lỗi tạo đặt chỗ", "details": err.Error()})
		}
		return
	}
	if !resp.Success {
		// Thanh toán bị từ chối: trả 402 kèm chi tiết.
		c.JSON(http.StatusPaymentRequired, resp)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

// POST /api/v1/reservations/:reservation_id/release
func (h *ReservationHandler) Release(c *gin.Context) {
	var req domain.ReleaseRequest
	// Body là tùy chọn, bỏ qua lỗi bind khi không có body.
	_ = c.ShouldBindJSON(&req)
	userID, _, isAdmin := callerIdentity(c)
	resp, err := h.reservationService.Release(c.Request.Context(), c.Param("reservation_id"), userID, isAdmin, req.Reason)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "Không tìm thấy đặt chỗ"})
		case errors.Is(err, service.ErrNotReservationOwner):
			c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
		case errors.Is(err, repository.ErrConflict):
			c.JSON(http.StatusConflict, gin.H{"error": "Đặt chỗ không còn hiệu lực"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Lỗi trả chỗ đỗ", "details": err.Error()})
		}
		return
	}
	c.JSON(http.StatusOK, resp)
}

// POST /api/v1/reservations/:reservation_id/extend
func (h *ReservationHandler) Extend(c *gin.Context) {
	var req domain.ExtendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	userID, _, _ := callerIdentity(c)
	resp, err := h.reservationService.Extend(c.Request.Context(), c.Param("reservation_id"), userID, req.AdditionalMinutes)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "Không tìm thấy đặt chỗ"})
		case errors.Is(err, service.ErrNotReservationOwner):
			c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
		case errors.Is(err, repository.ErrConflict):
			c.JSON(http.StatusConflict, gin.H{"error": "Đặt chỗ không còn hiệu lực"})
		default:
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		}
		return
	}
	c.JSON(http.StatusOK, resp)
}

// GET /api/v1/reservations/my
func (h *ReservationHandler) MyReservations(c *gin.Context) {
	userID, _, _ := callerIdentity(c)
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	reservations, err := h.reservationService.GetUserReservations(c.Request.Context(), userID, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Lỗi lấy danh sách đặt chỗ", "details": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"reservations": reservations, "count": len(reservations)})
}

// GET /api/v1/reservations/:reservation_id
func (h *ReservationHandler) GetReservation(c *gin.Context) {
	userID, _, isAdmin := callerIdentity(c)
	res, err := h.reservationService.GetReservation(c.Request.Context(), c.Param("reservation_id"))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Không tìm thấy đặt chỗ"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Lỗi lấy đặt chỗ", "details": err.Error()})
		return
	}
	if !isAdmin && res.UserID != userID {
		c.JSON(http.StatusForbidden, gin.H{"error": service.ErrNotReservationOwner.Error()})
		return
	}
	c.JSON(http.StatusOK, res)
}
