package handler

import (
	"net/http"
	"strconv"

	"github.com/AjcJustin/aero-park/internal/domain"
	"github.com/AjcJustin/aero-park/internal/service"
	"github.com/gin-gonic/gin"
)

type AuditHandler struct {
	auditService *service.AuditService
}

func NewAuditHandler(as *service.AuditService) *AuditHandler {
	return &AuditHandler{auditService: as}
}

// GET /api/v1/audit-logs?event_type=&decision=&spot_id=&limit= (admin)
func (h *AuditHandler) Query(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "100"))
	if err != nil || limit < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Tham số limit không hợp lệ"})
		return
	}
	q := domain.AuditQuery{
		EventType: c.Query("event_type"),
		Decision:  domain.AuditDecision(c.Query("decision")),
		SpotID:    c.Query("spot_id"),
		Limit:     limit,
	}
	logs, err := h.auditService.Query(c.Request.Context(), q)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Lỗi truy vấn nhật ký", "details": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"logs": logs, "count": len(logs)})
}
