package handlers

import (
	"errors"
	"net/http"

	"flowdesk/internal/services"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// TaskHandler 任务相关接口
type TaskHandler struct {
	service *services.TaskService
}

func NewTaskHandler(service *services.TaskService) *TaskHandler {
	return &TaskHandler{service: service}
}

// CreateTask 创建任务
func (h *TaskHandler) CreateTask(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	var req services.TaskCreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid request", Message: err.Error()})
		return
	}
	task, err := h.service.CreateTask(c.Request.Context(), userID, &req)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Failed to create task", Message: err.Error()})
		return
	}
	c.JSON(http.StatusCreated, task)
}

// ListTasks 任务列表
func (h *TaskHandler) ListTasks(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	var req services.TaskListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid request", Message: err.Error()})
		return
	}
	tasks, total, err := h.service.ListTasks(c.Request.Context(), userID, &req)
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "Failed to list tasks", Message: err.Error()})
		return
	}
	c.JSON(http.StatusOK, PaginatedResponse{
		Data:     tasks,
		Total:    total,
		Page:     req.Page,
		PageSize: req.PageSize,
	})
}

// GetTask 任务详情
func (h *TaskHandler) GetTask(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	id, err := parseIDParam(c)
	if err != nil {
		return
	}
	task, err := h.service.GetTask(c.Request.Context(), userID, id)
	if err != nil {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "Task not found", Message: err.Error()})
		return
	}
	c.JSON(http.StatusOK, task)
}

// UpdateTask 更新任务，状态变化会触发自动化
func (h *TaskHandler) UpdateTask(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	id, err := parseIDParam(c)
	if err != nil {
		return
	}
	var req services.TaskUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid request", Message: err.Error()})
		return
	}
	task, err := h.service.UpdateTask(c.Request.Context(), userID, id, &req)
	if err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, gorm.ErrRecordNotFound) {
			status = http.StatusNotFound
		}
		c.JSON(status, ErrorResponse{Error: "Failed to update task", Message: err.Error()})
		return
	}
	c.JSON(http.StatusOK, task)
}

// CompleteTask 标记完成
func (h *TaskHandler) CompleteTask(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	id, err := parseIDParam(c)
	if err != nil {
		return
	}
	task, err := h.service.CompleteTask(c.Request.Context(), userID, id)
	if err != nil {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "Failed to complete task", Message: err.Error()})
		return
	}
	c.JSON(http.StatusOK, task)
}

// DeleteTask 删除任务
func (h *TaskHandler) DeleteTask(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	id, err := parseIDParam(c)
	if err != nil {
		return
	}
	if err := h.service.DeleteTask(c.Request.Context(), userID, id); err != nil {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "Failed to delete task", Message: err.Error()})
		return
	}
	c.JSON(http.StatusOK, SuccessResponse{Message: "deleted"})
}

// ListSubtasks 子任务列表
func (h *TaskHandler) ListSubtasks(c *gin.Context) {
	if _, ok := currentUserID(c); !ok {
		return
	}
	id, err := parseIDParam(c)
	if err != nil {
		return
	}
	subtasks, err := h.service.ListSubtasks(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "Failed to list subtasks", Message: err.Error()})
		return
	}
	c.JSON(http.StatusOK, subtasks)
}

type trackTimeRequest struct {
	Hours       float64 `json:"hours" binding:"required,gt=0"`
	Description string  `json:"description"`
}

// TrackTime 记录工时，触发 time_tracked 自动化
func (h *TaskHandler) TrackTime(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	id, err := parseIDParam(c)
	if err != nil {
		return
	}
	var req trackTimeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid request", Message: err.Error()})
		return
	}
	entry, err := h.service.TrackTime(c.Request.Context(), userID, id, req.Hours, req.Description)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Failed to track time", Message: err.Error()})
		return
	}
	c.JSON(http.StatusCreated, entry)
}

// RegisterTaskRoutes 注册路由
func RegisterTaskRoutes(r *gin.RouterGroup, handler *TaskHandler) {
	tasks := r.Group("/tasks")
	{
		tasks.GET("", handler.ListTasks)
		tasks.POST("", handler.CreateTask)
		tasks.GET("/:id", handler.GetTask)
		tasks.PUT("/:id", handler.UpdateTask)
		tasks.DELETE("/:id", handler.DeleteTask)
		tasks.POST("/:id/complete", handler.CompleteTask)
		tasks.GET("/:id/subtasks", handler.ListSubtasks)
		tasks.POST("/:id/time", handler.TrackTime)
	}
}
