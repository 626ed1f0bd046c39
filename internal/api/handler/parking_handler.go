package handler

import (
	"errors"
	"net/http"

	"github.com/AjcJustin/aero-park/internal/domain"
	"github.com/AjcJustin/aero-park/internal/repository"
	"github.com/AjcJustin/aero-park/internal/service"
	"github.com/gin-gonic/gin"
)

type ParkingHandler struct {
	parkingService *service.ParkingService
}

func NewParkingHandler(ps *service.ParkingService) *ParkingHandler {
	return &ParkingHandler{parkingService: ps}
}

// GET /api/v1/parking/status?include_spots=true
func (h *ParkingHandler) GetStatus(c *gin.Context) {
	includeSpots := c.DefaultQuery("include_spots", "true") == "true"
	status, err := h.parkingService.GetStatus(c.Request.Context(), includeSpots)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Lỗi lấy trạng thái bãi đỗ", "details": err.Error()})
		return
	}
	c.JSON(http.StatusOK, status)
}

// GET /api/v1/parking/spots/:spot_id
func (h *ParkingHandler) GetSpot(c *gin.Context) {
	spot, err := h.parkingService.GetSpot(c.Request.Context(), c.Param("spot_id"))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Không tìm thấy chỗ đỗ"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Lỗi lấy chỗ đỗ", "details": err.Error()})
		return
	}
	c.JSON(http.StatusOK, spot)
}

// POST /api/v1/parking/spots (admin)
func (h *ParkingHandler) CreateSpot(c *gin.Context) {
	var dto domain.ParkingSpotDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	spot, err := h.parkingService.CreateSpot(c.Request.Context(), dto)
	if err != nil {
		if errors.Is(err, repository.ErrDuplicateEntry) {
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Không thể tạo chỗ đỗ", "details": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, spot)
}

// DELETE /api/v1/parking/spots/:spot_id (admin)
func (h *ParkingHandler) DeleteSpot(c *gin.Context) {
	err := h.parkingService.DeleteSpot(c.Request.Context(), c.Param("spot_id"))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Không tìm thấy chỗ đỗ"})
			return
		}
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Đã xóa chỗ đỗ"})
}

// POST /sensor/update — endpoint cho cảm biến, bảo vệ bằng X-API-Key.
func (h *ParkingHandler) SensorUpdate(c *gin.Context) {
	var req domain.SensorUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	resp, err := h.parkingService.HandleSensorUpdate(c.Request.Context(), req)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Không tìm thấy chỗ đỗ '" + req.SpotID + "'"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Lỗi xử lý cập nhật cảm biến", "details": err.Error()})
		return
	}
	c.JSON(http.StatusOK, resp)
}
