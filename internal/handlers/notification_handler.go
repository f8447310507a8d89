package handlers

import (
	"net/http"
	"strconv"

	"flowdesk/internal/services"

	"github.com/gin-gonic/gin"
)

// NotificationHandler 通知接口
type NotificationHandler struct {
	service *services.NotificationService
}

func NewNotificationHandler(service *services.NotificationService) *NotificationHandler {
	return &NotificationHandler{service: service}
}

// ListNotifications 当前用户通知列表
func (h *NotificationHandler) ListNotifications(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	notifications, err := h.service.ListNotifications(c.Request.Context(), userID, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "Failed to list notifications", Message: err.Error()})
		return
	}
	c.JSON(http.StatusOK, notifications)
}

// MarkRead 标记已读
func (h *NotificationHandler) MarkRead(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	id, err := parseIDParam(c)
	if err != nil {
		return
	}
	if err := h.service.MarkRead(c.Request.Context(), userID, id); err != nil {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "Failed to mark read", Message: err.Error()})
		return
	}
	c.JSON(http.StatusOK, SuccessResponse{Message: "marked"})
}

// RegisterNotificationRoutes 注册路由
func RegisterNotificationRoutes(r *gin.RouterGroup, handler *NotificationHandler) {
	notifications := r.Group("/notifications")
	{
		notifications.GET("", handler.ListNotifications)
		notifications.POST("/:id/read", handler.MarkRead)
	}
}
