package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"flowdesk/internal/models"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"
)

// TaskService 任务服务：CRUD、工时、子任务汇总与自动化触发
type TaskService struct {
	db         *gorm.DB
	logger     *logrus.Logger
	tracer     trace.Tracer
	automation *AutomationService
}

func NewTaskService(db *gorm.DB, logger *logrus.Logger) *TaskService {
	if logger == nil {
		logger = logrus.New()
	}
	return &TaskService{
		db:     db,
		logger: logger,
		tracer: otel.Tracer("flowdesk.tasks"),
	}
}

// SetAutomationService wires the automation engine into task lifecycle events.
func (s *TaskService) SetAutomationService(a *AutomationService) {
	s.automation = a
}

// TaskCreateRequest 创建任务请求
type TaskCreateRequest struct {
	Title          string     `json:"title" binding:"required"`
	Description    string     `json:"description"`
	ClientID       *uint      `json:"client_id"`
	ParentTaskID   *uint      `json:"parent_task_id"`
	Priority       string     `json:"priority"`
	Tag            string     `json:"tag"`
	DueDate        *time.Time `json:"due_date"`
	EstimatedHours float64    `json:"estimated_hours"`
}

// TaskUpdateRequest 更新任务请求（nil 字段不更新）
type TaskUpdateRequest struct {
	Title          *string    `json:"title"`
	Description    *string    `json:"description"`
	Status         *string    `json:"status"`
	Priority       *string    `json:"priority"`
	Tag            *string    `json:"tag"`
	DueDate        *time.Time `json:"due_date"`
	EstimatedHours *float64   `json:"estimated_hours"`
}

// TaskListRequest 任务列表请求
type TaskListRequest struct {
	Page     int    `form:"page,default=1"`
	PageSize int    `form:"page_size,default=20"`
	Status   string `form:"status"`
	Priority string `form:"priority"`
	Tag      string `form:"tag"`
	ClientID *uint  `form:"client_id"`
	Overdue  bool   `form:"overdue"`
}

var validTaskStatuses = map[string]bool{
	"pending": true, "in_progress": true, "completed": true, "cancelled": true,
}

// CreateTask 创建任务；子任务创建后重算父任务进度
func (s *TaskService) CreateTask(ctx context.Context, userID uint, req *TaskCreateRequest) (*models.Task, error) {
	if req == nil || req.Title == "" {
		return nil, fmt.Errorf("title required")
	}
	priority := req.Priority
	if priority == "" {
		priority = "medium"
	}
	task := &models.Task{
		UserID:         userID,
		ClientID:       req.ClientID,
		ParentTaskID:   req.ParentTaskID,
		Title:          req.Title,
		Description:    req.Description,
		Status:         "pending",
		Priority:       priority,
		Tag:            req.Tag,
		DueDate:        req.DueDate,
		EstimatedHours: req.EstimatedHours,
		CreatedAt:      time.Now(),
		UpdatedAt:      time.Now(),
	}
	if err := s.db.WithContext(ctx).Create(task).Error; err != nil {
		return nil, err
	}
	if task.ParentTaskID != nil {
		if err := applySubtaskRollup(ctx, s.db, *task.ParentTaskID); err != nil {
			s.logger.Warnf("task: subtask rollup failed for parent %d: %v", *task.ParentTaskID, err)
		}
	}
	return task, nil
}

// GetTask 获取任务
func (s *TaskService) GetTask(ctx context.Context, userID, id uint) (*models.Task, error) {
	var task models.Task
	if err := s.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", id, userID).
		First(&task).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("task not found: %w", err)
		}
		return nil, err
	}
	return &task, nil
}

// ListTasks 任务列表（筛选+分页）
func (s *TaskService) ListTasks(ctx context.Context, userID uint, req *TaskListRequest) ([]models.Task, int64, error) {
	query := s.db.WithContext(ctx).Model(&models.Task{}).Where("user_id = ?", userID)
	if req.Status != "" {
		query = query.Where("status = ?", req.Status)
	}
	if req.Priority != "" {
		query = query.Where("priority = ?", req.Priority)
	}
	if req.Tag != "" {
		query = query.Where("tag = ?", req.Tag)
	}
	if req.ClientID != nil {
		query = query.Where("client_id = ?", *req.ClientID)
	}
	if req.Overdue {
		query = query.Where("status NOT IN ? AND due_date < ?", []string{"completed", "cancelled"}, time.Now())
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	page := req.Page
	if page < 1 {
		page = 1
	}
	pageSize := req.PageSize
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}

	var tasks []models.Task
	if err := query.Order("id DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&tasks).Error; err != nil {
		return nil, 0, err
	}
	return tasks, total, nil
}

// UpdateTask updates the given fields and fires automation triggers for
// status changes and completion.
func (s *TaskService) UpdateTask(ctx context.Context, userID, id uint, req *TaskUpdateRequest) (*models.Task, error) {
	ctx, span := s.tracer.Start(ctx, "tasks.update")
	defer span.End()
	span.SetAttributes(attribute.Int64("task.id", int64(id)))

	task, err := s.GetTask(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	oldStatus := task.Status

	updates := map[string]interface{}{"updated_at": time.Now()}
	if req.Title != nil {
		updates["title"] = *req.Title
		task.Title = *req.Title
	}
	if req.Description != nil {
		updates["description"] = *req.Description
		task.Description = *req.Description
	}
	if req.Priority != nil {
		updates["priority"] = *req.Priority
		task.Priority = *req.Priority
	}
	if req.Tag != nil {
		updates["tag"] = *req.Tag
		task.Tag = *req.Tag
	}
	if req.DueDate != nil {
		updates["due_date"] = *req.DueDate
		task.DueDate = req.DueDate
	}
	if req.EstimatedHours != nil {
		updates["estimated_hours"] = *req.EstimatedHours
		task.EstimatedHours = *req.EstimatedHours
	}
	if req.Status != nil {
		if !validTaskStatuses[*req.Status] {
			return nil, fmt.Errorf("invalid status: %s", *req.Status)
		}
		updates["status"] = *req.Status
		task.Status = *req.Status
		if *req.Status == "completed" && oldStatus != "completed" {
			now := time.Now()
			updates["completed_at"] = now
			task.CompletedAt = &now
		}
	}

	if err := s.db.WithContext(ctx).Model(&models.Task{}).
		Where("id = ?", task.ID).
		Updates(updates).Error; err != nil {
		return nil, err
	}

	// 子任务变更后重算父任务进度
	if task.ParentTaskID != nil {
		if err := applySubtaskRollup(ctx, s.db, *task.ParentTaskID); err != nil {
			s.logger.Warnf("task: subtask rollup failed for parent %d: %v", *task.ParentTaskID, err)
		}
	}

	if s.automation != nil && req.Status != nil && task.Status != oldStatus {
		s.automation.HandleTrigger(ctx, TriggerStatusChanged, task, map[string]interface{}{
			"old_status": oldStatus,
			"new_status": task.Status,
		})
		if task.Status == "completed" {
			s.automation.HandleTrigger(ctx, TriggerTaskCompleted, task, map[string]interface{}{
				"completed_at": task.CompletedAt.Format(time.RFC3339),
			})
		}
	}
	return task, nil
}

// CompleteTask 完成任务的便捷入口
func (s *TaskService) CompleteTask(ctx context.Context, userID, id uint) (*models.Task, error) {
	status := "completed"
	return s.UpdateTask(ctx, userID, id, &TaskUpdateRequest{Status: &status})
}

// DeleteTask 软删除；子任务删除后重算父任务进度
func (s *TaskService) DeleteTask(ctx context.Context, userID, id uint) error {
	task, err := s.GetTask(ctx, userID, id)
	if err != nil {
		return err
	}
	if err := s.db.WithContext(ctx).Delete(&models.Task{}, task.ID).Error; err != nil {
		return err
	}
	if task.ParentTaskID != nil {
		if err := applySubtaskRollup(ctx, s.db, *task.ParentTaskID); err != nil {
			s.logger.Warnf("task: subtask rollup failed for parent %d: %v", *task.ParentTaskID, err)
		}
	}
	return nil
}

// ListSubtasks 返回直接子任务
func (s *TaskService) ListSubtasks(ctx context.Context, parentID uint) ([]models.Task, error) {
	var subtasks []models.Task
	if err := s.db.WithContext(ctx).
		Where("parent_task_id = ?", parentID).
		Order("id ASC").
		Find(&subtasks).Error; err != nil {
		return nil, err
	}
	return subtasks, nil
}

// TrackTime 记录工时并触发 time_tracked 自动化
func (s *TaskService) TrackTime(ctx context.Context, userID, taskID uint, hours float64, description string) (*models.TimeEntry, error) {
	if hours <= 0 {
		return nil, fmt.Errorf("hours must be positive")
	}
	task, err := s.GetTask(ctx, userID, taskID)
	if err != nil {
		return nil, err
	}

	entry := &models.TimeEntry{
		TaskID:      task.ID,
		UserID:      userID,
		Hours:       hours,
		Description: description,
		CreatedAt:   time.Now(),
	}
	if err := s.db.WithContext(ctx).Create(entry).Error; err != nil {
		return nil, err
	}

	total := task.ActualHours + hours
	if err := s.db.WithContext(ctx).Model(&models.Task{}).
		Where("id = ?", task.ID).
		Update("actual_hours", total).Error; err != nil {
		return nil, err
	}
	task.ActualHours = total

	if s.automation != nil {
		s.automation.HandleTrigger(ctx, TriggerTimeTracked, task, map[string]interface{}{
			"hours":       hours,
			"total_hours": total,
		})
	}
	return entry, nil
}

// applySubtaskRollup recomputes a parent's progress_percentage over its direct
// subtasks and promotes its status: all complete forces completed, the first
// completion moves pending to in_progress. A parent is never downgraded when
// a subtask is re-opened.
func applySubtaskRollup(ctx context.Context, db *gorm.DB, parentID uint) error {
	var parent models.Task
	if err := db.WithContext(ctx).First(&parent, parentID).Error; err != nil {
		return err
	}

	var total, completed int64
	if err := db.WithContext(ctx).Model(&models.Task{}).
		Where("parent_task_id = ?", parentID).
		Count(&total).Error; err != nil {
		return err
	}
	if err := db.WithContext(ctx).Model(&models.Task{}).
		Where("parent_task_id = ? AND status = ?", parentID, "completed").
		Count(&completed).Error; err != nil {
		return err
	}

	progress := 0
	if total > 0 {
		progress = int(math.Round(100 * float64(completed) / float64(total)))
	}

	updates := map[string]interface{}{
		"progress_percentage": progress,
		"updated_at":          time.Now(),
	}
	switch {
	case total > 0 && completed == total:
		updates["status"] = "completed"
		if parent.CompletedAt == nil {
			updates["completed_at"] = time.Now()
		}
	case completed > 0 && parent.Status == "pending":
		updates["status"] = "in_progress"
	}

	return db.WithContext(ctx).Model(&models.Task{}).
		Where("id = ?", parentID).
		Updates(updates).Error
}
