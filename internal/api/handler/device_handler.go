package handler

import (
	"errors"
	"net/http"

	"github.com/AjcJustin/aero-park/internal/domain"
	"github.com/AjcJustin/aero-park/internal/repository"
	"github.com/AjcJustin/aero-park/internal/service"
	"github.com/gin-gonic/gin"
)

type DeviceHandler struct {
	deviceService *service.DeviceService
}

func NewDeviceHandler(ds *service.DeviceService) *DeviceHandler {
	return &DeviceHandler{deviceService: ds}
}

// POST /api/v1/devices (admin)
func (h *DeviceHandler) RegisterDevice(c *gin.Context) {
	var dto domain.RegisterDeviceDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	device, err := h.deviceService.Register(c.Request.Context(), dto)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Không thể đăng ký thiết bị", "details": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, device)
}

// GET /api/v1/devices (admin)
func (h *DeviceHandler) GetAllDevices(c *gin.Context) {
	devices, err := h.deviceService.GetAll(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Lỗi khi lấy danh sách thiết bị", "details": err.Error()})
		return
	}
	c.JSON(http.StatusOK, devices)
}

// GET /api/v1/devices/:thing_name (admin)
func (h *DeviceHandler) GetDeviceByThingName(c *gin.Context) {
	thingName := c.Param("thing_name")
	if thingName == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Thing name không được để trống"})
		return
	}
	device, err := h.deviceService.GetByThingName(c.Request.Context(), thingName)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Không tìm thấy thiết bị"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Lỗi khi lấy thông tin thiết bị", "details": err.Error()})
		return
	}
	c.JSON(http.StatusOK, device)
}
