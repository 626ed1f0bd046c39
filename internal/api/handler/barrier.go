// File: internal/api/handler/barrier.go
package handler

import (
	"errors"
	"net/http"

	"github.com/AjcJustin/aero-park/internal/domain"
	"github.com/AjcJustin/aero-park/internal/repository"
	"github.com/AjcJustin/aero-park/internal/service"
	"github.com/gin-gonic/gin"
)

type BarrierHandler struct {
	barrierService *service.BarrierService
	codeService    *service.AccessCodeService
}

func NewBarrierHandler(bs *service.BarrierService, cs *service.AccessCodeService) *BarrierHandler {
	return &BarrierHandler{barrierService: bs, codeService: cs}
}

// POST /barrier/entry-check — thiết bị tại barie vào gọi, bảo vệ bằng X-API-Key.
func (h *BarrierHandler) EntryCheck(c *gin.Context) {
	var req domain.EntryCheckRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	decision, err := h.barrierService.CheckEntry(c.Request.Context(), req)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Lỗi xử lý kiểm tra vào", "details": err.Error()})
		return
	}
	c.JSON(http.StatusOK, decision)
}

// POST /barrier/exit — thiết bị tại barie ra gọi, bảo vệ bằng X-API-Key.
func (h *BarrierHandler) Exit(c *gin.Context) {
	var req domain.ExitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	decision, err := h.barrierService.ProcessExit(c.Request.Context(), req)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Lỗi xử lý xe ra", "details": err.Error()})
		return
	}
	c.JSON(http.StatusOK, decision)
}

// POST /barrier/validate-code — kiểm tra mã mà không qua luồng Double-True đầy đủ.
func (h *BarrierHandler) ValidateCode(c *gin.Context) {
	var req domain.ValidateCodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	decision, err := h.codeService.Validate(c.Request.Context(), req)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Lỗi kiểm tra mã", "details": err.Error()})
		return
	}
	c.JSON(http.StatusOK, decision)
}

// POST /api/v1/barriers/open (admin)
func (h *BarrierHandler) Open(c *gin.Context) {
	var req domain.BarrierOpenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	state, err := h.barrierService.Open(c.Request.Context(), req.BarrierID, req.Reason)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Không tìm thấy barie '" + req.BarrierID + "'"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Không thể mở barie", "details": err.Error()})
		return
	}
	c.JSON(http.StatusOK, state)
}

// POST /api/v1/barriers/close (admin)
func (h *BarrierHandler) Close(c *gin.Context) {
	var req domain.BarrierOpenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	state, err := h.barrierService.Close(c.Request.Context(), req.BarrierID, req.Reason)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Không tìm thấy barie '" + req.BarrierID + "'"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Không thể đóng barie", "details": err.Error()})
		return
	}
	c.JSON(http.StatusOK, state)
}

// GET /api/v1/barriers/:barrier_id/status
func (h *BarrierHandler) Status(c *gin.Context) {
	resp, err := h.barrierService.Status(c.Request.Context(), c.Param("barrier_id"))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Không tìm thấy barie"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Lỗi lấy trạng thái barie", "details": err.Error()})
		return
	}
	c.JSON(http.StatusOK, resp)
}
