package handlers

import (
	"net/http"
	"time"

	"flowdesk/internal/middleware"
	"flowdesk/internal/services"

	"github.com/gin-gonic/gin"
)

// ScanHandler 定时扫描接口，供外部调度器或手动触发
type ScanHandler struct {
	service *services.ScanService
}

func NewScanHandler(service *services.ScanService) *ScanHandler {
	return &ScanHandler{service: service}
}

// RunScan 立即执行一轮 overdue / due-soon 扫描
func (h *ScanHandler) RunScan(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	filter := &userID
	if c.Query("scope") == "all" {
		// 全量扫描仅限管理员
		role, _ := middleware.UserRole(c)
		if role != "admin" {
			c.JSON(http.StatusForbidden, gin.H{
				"error":   "Forbidden",
				"message": "scope=all requires admin role",
			})
			return
		}
		filter = nil
	}
	summary := h.service.RunScheduledScans(c.Request.Context(), time.Now(), filter)
	c.JSON(http.StatusOK, summary)
}

// RegisterScanRoutes 注册路由
func RegisterScanRoutes(r *gin.RouterGroup, handler *ScanHandler) {
	r.POST("/automations/scan", handler.RunScan)
}
