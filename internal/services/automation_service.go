package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"flowdesk/internal/metrics"
	"flowdesk/internal/models"
	"flowdesk/pkg/utils"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"
)

// 触发器类型
const (
	TriggerTaskCompleted      = "task_completed"
	TriggerTaskOverdue        = "task_overdue"
	TriggerStatusChanged      = "status_changed"
	TriggerTimeTracked        = "time_tracked"
	TriggerDueDateApproaching = "due_date_approaching"
)

// 动作类型
const (
	ActionCreateTask       = "create_task"
	ActionUpdateStatus     = "update_status"
	ActionUpdatePriority   = "update_priority"
	ActionSendNotification = "send_notification"
	ActionAssignUser       = "assign_user"
	ActionCreateFollowUp   = "create_follow_up"
	ActionReschedule       = "reschedule"
	ActionAddDependency    = "add_dependency"
	ActionCreateSubtasks   = "create_subtasks"
)

// 执行整体状态
const (
	ExecStatusSuccess = "success"
	ExecStatusPartial = "partial"
	ExecStatusFailed  = "failed"
)

// 单个动作结果
const (
	OutcomeOK      = "ok"
	OutcomeSkipped = "skipped"
	OutcomeError   = "error"
)

// AutomationService handles rule authoring, trigger evaluation and action
// execution for task automations.
type AutomationService struct {
	db           *gorm.DB
	logger       *logrus.Logger
	notifier     Notifier
	tracer       trace.Tracer
	aiConfidence float64
}

func NewAutomationService(db *gorm.DB, logger *logrus.Logger) *AutomationService {
	if logger == nil {
		logger = logrus.New()
	}
	return &AutomationService{
		db:           db,
		logger:       logger,
		tracer:       otel.Tracer("flowdesk.automation"),
		aiConfidence: 0.8,
	}
}

// SetNotifier wires the outbound notification collaborator. Without one,
// send_notification actions only log.
func (s *AutomationService) SetNotifier(n Notifier) {
	s.notifier = n
}

// SetAIConfidence 覆盖自动创建任务的置信度
func (s *AutomationService) SetAIConfidence(c float64) {
	if c > 0 && c <= 1 {
		s.aiConfidence = c
	}
}

// RuleAction describes one action entry of a rule.
type RuleAction struct {
	Type       string                 `json:"type"`
	Parameters map[string]interface{} `json:"parameters"`
}

// ActionOutcome is the per-action record appended to the execution log.
type ActionOutcome struct {
	Type    string `json:"type"`
	Outcome string `json:"outcome"` // ok, skipped, error
	Error   string `json:"error,omitempty"`
	Detail  string `json:"detail,omitempty"`
}

// AutomationRuleRequest 创建/更新规则的请求
type AutomationRuleRequest struct {
	Name       string                 `json:"name" binding:"required"`
	Trigger    string                 `json:"trigger" binding:"required"`
	Conditions map[string]interface{} `json:"conditions"`
	Actions    []RuleAction           `json:"actions"`
	Active     *bool                  `json:"active"`
}

func isSupportedTrigger(trigger string) bool {
	switch trigger {
	case TriggerTaskCompleted, TriggerTaskOverdue, TriggerStatusChanged,
		TriggerTimeTracked, TriggerDueDateApproaching:
		return true
	default:
		return false
	}
}

func isSupportedAction(actionType string) bool {
	switch actionType {
	case ActionCreateTask, ActionUpdateStatus, ActionUpdatePriority,
		ActionSendNotification, ActionAssignUser, ActionCreateFollowUp,
		ActionReschedule, ActionAddDependency, ActionCreateSubtasks:
		return true
	default:
		return false
	}
}

func validateRuleRequest(req *AutomationRuleRequest) error {
	if req == nil {
		return fmt.Errorf("request required")
	}
	if !isSupportedTrigger(req.Trigger) {
		return fmt.Errorf("unsupported trigger: %s", req.Trigger)
	}
	if len(req.Actions) == 0 {
		return fmt.Errorf("at least one action required")
	}
	for _, act := range req.Actions {
		if !isSupportedAction(act.Type) {
			return fmt.Errorf("unsupported action type: %s", act.Type)
		}
	}
	return nil
}

// CreateRule 新建规则（作者期校验：未知触发器/空动作在此被拒绝）
func (s *AutomationService) CreateRule(ctx context.Context, userID uint, req *AutomationRuleRequest) (*models.AutomationRule, error) {
	if err := validateRuleRequest(req); err != nil {
		return nil, err
	}

	condJSON, err := json.Marshal(req.Conditions)
	if err != nil {
		return nil, fmt.Errorf("invalid conditions: %w", err)
	}
	actJSON, err := json.Marshal(req.Actions)
	if err != nil {
		return nil, fmt.Errorf("invalid actions: %w", err)
	}

	active := true
	if req.Active != nil {
		active = *req.Active
	}

	rule := &models.AutomationRule{
		UserID:     userID,
		Name:       req.Name,
		Trigger:    req.Trigger,
		Conditions: string(condJSON),
		Actions:    string(actJSON),
		Active:     active,
		CreatedAt:  time.Now(),
		UpdatedAt:  time.Now(),
	}
	if err := s.db.WithContext(ctx).Create(rule).Error; err != nil {
		return nil, err
	}
	return rule, nil
}

// ListRules 返回用户的全部规则
func (s *AutomationService) ListRules(ctx context.Context, userID uint) ([]models.AutomationRule, error) {
	var rules []models.AutomationRule
	if err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("id DESC").
		Find(&rules).Error; err != nil {
		return nil, err
	}
	return rules, nil
}

// GetRule 获取单条规则
func (s *AutomationService) GetRule(ctx context.Context, userID, id uint) (*models.AutomationRule, error) {
	var rule models.AutomationRule
	if err := s.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", id, userID).
		First(&rule).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("rule not found: %w", err)
		}
		return nil, err
	}
	return &rule, nil
}

// UpdateRule 全量更新规则定义
func (s *AutomationService) UpdateRule(ctx context.Context, userID, id uint, req *AutomationRuleRequest) (*models.AutomationRule, error) {
	if err := validateRuleRequest(req); err != nil {
		return nil, err
	}
	rule, err := s.GetRule(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	condJSON, err := json.Marshal(req.Conditions)
	if err != nil {
		return nil, fmt.Errorf("invalid conditions: %w", err)
	}
	actJSON, err := json.Marshal(req.Actions)
	if err != nil {
		return nil, fmt.Errorf("invalid actions: %w", err)
	}

	rule.Name = req.Name
	rule.Trigger = req.Trigger
	rule.Conditions = string(condJSON)
	rule.Actions = string(actJSON)
	if req.Active != nil {
		rule.Active = *req.Active
	}
	rule.UpdatedAt = time.Now()

	if err := s.db.WithContext(ctx).Save(rule).Error; err != nil {
		return nil, err
	}
	return rule, nil
}

// ToggleRule 切换启用状态
func (s *AutomationService) ToggleRule(ctx context.Context, userID, id uint) (*models.AutomationRule, error) {
	rule, err := s.GetRule(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	rule.Active = !rule.Active
	rule.UpdatedAt = time.Now()
	if err := s.db.WithContext(ctx).Save(rule).Error; err != nil {
		return nil, err
	}
	return rule, nil
}

// DeleteRule 删除规则
func (s *AutomationService) DeleteRule(ctx context.Context, userID, id uint) error {
	result := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Delete(&models.AutomationRule{}, id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("rule not found: %w", gorm.ErrRecordNotFound)
	}
	return nil
}

// ExecutionListRequest 执行记录列表请求
type ExecutionListRequest struct {
	Page     int    `form:"page,default=1"`
	PageSize int    `form:"page_size,default=20"`
	RuleID   *uint  `form:"rule_id"`
	TaskID   *uint  `form:"task_id"`
	Status   string `form:"status"`
}

// ListExecutions 按规则/任务/状态过滤执行记录
func (s *AutomationService) ListExecutions(ctx context.Context, userID uint, req *ExecutionListRequest) ([]models.AutomationExecution, int64, error) {
	query := s.db.WithContext(ctx).Model(&models.AutomationExecution{}).
		Joins("JOIN automation_rules ON automation_rules.id = automation_executions.rule_id").
		Where("automation_rules.user_id = ?", userID)

	if req.RuleID != nil {
		query = query.Where("automation_executions.rule_id = ?", *req.RuleID)
	}
	if req.TaskID != nil {
		query = query.Where("automation_executions.task_id = ?", *req.TaskID)
	}
	if req.Status != "" {
		query = query.Where("automation_executions.status = ?", req.Status)
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

	var executions []models.AutomationExecution
	if err := query.
		Order("automation_executions.id DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&executions).Error; err != nil {
		return nil, 0, err
	}
	return executions, total, nil
}

// ListActiveRules 按用户与触发器加载启用的规则
func (s *AutomationService) ListActiveRules(ctx context.Context, userID uint, trigger string) ([]models.AutomationRule, error) {
	var rules []models.AutomationRule
	if err := s.db.WithContext(ctx).
		Where("user_id = ? AND trigger_event = ? AND active = ?", userID, trigger, true).
		Find(&rules).Error; err != nil {
		return nil, err
	}
	return rules, nil
}

// HandleTrigger evaluates and executes all matching active rules for a task
// lifecycle event. Failures are logged, never propagated: a bad rule must not
// break the caller.
func (s *AutomationService) HandleTrigger(ctx context.Context, trigger string, task *models.Task, triggerCtx map[string]interface{}) int {
	if task == nil {
		return 0
	}
	ctx, span := s.tracer.Start(ctx, "automation.handle_trigger")
	defer span.End()
	span.SetAttributes(
		attribute.String("automation.trigger", trigger),
		attribute.Int64("task.id", int64(task.ID)),
	)

	rules, err := s.ListActiveRules(ctx, task.UserID, trigger)
	if err != nil {
		span.RecordError(err)
		s.logger.Warnf("automation: load rules failed: %v", err)
		return 0
	}

	executed := 0
	for i := range rules {
		rule := &rules[i]
		matched, err := s.RuleMatches(rule, task, triggerCtx)
		if err != nil {
			s.logger.Warnf("automation: rule %d conditions invalid: %v", rule.ID, err)
			continue
		}
		if !matched {
			continue
		}
		if _, err := s.ExecuteRule(ctx, rule, task, trigger, triggerCtx); err != nil {
			s.logger.Warnf("automation: rule %d execution error: %v", rule.ID, err)
			continue
		}
		executed++
	}
	span.SetAttributes(attribute.Int("automation.rules_executed", executed))
	return executed
}

// RuleMatches 解码规则条件并对 (task, context) 求值
func (s *AutomationService) RuleMatches(rule *models.AutomationRule, task *models.Task, triggerCtx map[string]interface{}) (bool, error) {
	conditions := map[string]interface{}{}
	if rule.Conditions != "" {
		if err := json.Unmarshal([]byte(rule.Conditions), &conditions); err != nil {
			return false, fmt.Errorf("invalid conditions: %w", err)
		}
	}
	return EvaluateConditions(conditions, task, triggerCtx), nil
}

// ExecuteRule runs a rule's actions sequentially against a task. Per-action
// failures are recorded and do not abort later actions. Exactly one
// AutomationExecution row is appended and execution_count is incremented by
// one regardless of outcome. The caller is responsible for having evaluated
// the rule's conditions.
func (s *AutomationService) ExecuteRule(ctx context.Context, rule *models.AutomationRule, task *models.Task, trigger string, triggerCtx map[string]interface{}) (*models.AutomationExecution, error) {
	ctx, span := s.tracer.Start(ctx, "automation.execute_rule")
	defer span.End()
	span.SetAttributes(
		attribute.Int64("automation.rule_id", int64(rule.ID)),
		attribute.Int64("task.id", int64(task.ID)),
	)

	var (
		outcomes   []ActionOutcome
		errorCount int
		execErr    string
	)

	actions := []RuleAction{}
	if rule.Actions != "" {
		if err := json.Unmarshal([]byte(rule.Actions), &actions); err != nil {
			execErr = fmt.Sprintf("invalid actions: %v", err)
		}
	}

	for _, act := range actions {
		outcome := s.executeAction(ctx, act, rule, task, triggerCtx)
		if outcome.Outcome == OutcomeError {
			errorCount++
		}
		outcomes = append(outcomes, outcome)
	}

	status := ExecStatusSuccess
	switch {
	case execErr != "":
		status = ExecStatusFailed
	case errorCount == len(outcomes) && errorCount > 0:
		status = ExecStatusFailed
	case errorCount > 0:
		status = ExecStatusPartial
	}

	outJSON, _ := json.Marshal(outcomes)
	execution := &models.AutomationExecution{
		RuleID:       rule.ID,
		TaskID:       task.ID,
		TriggerEvent: trigger,
		Actions:      string(outJSON),
		Status:       status,
		ErrorMessage: execErr,
		CreatedAt:    time.Now(),
	}
	if err := s.db.WithContext(ctx).Create(execution).Error; err != nil {
		span.RecordError(err)
		s.logger.Warnf("automation: record execution failed: %v", err)
	}

	// 无论成功/部分/失败，计数恰好 +1
	now := time.Now()
	if err := s.db.WithContext(ctx).Model(&models.AutomationRule{}).
		Where("id = ?", rule.ID).
		UpdateColumns(map[string]interface{}{
			"execution_count": gorm.Expr("execution_count + 1"),
			"last_executed":   now,
		}).Error; err != nil {
		s.logger.Warnf("automation: increment execution count failed: %v", err)
	}
	rule.ExecutionCount++
	rule.LastExecuted = &now

	metrics.IncAutomationExecution(status)
	span.SetAttributes(attribute.String("automation.status", status))
	s.logger.Infof("automation: rule %q executed on task %d, status=%s", rule.Name, task.ID, status)
	return execution, nil
}

func (s *AutomationService) executeAction(ctx context.Context, act RuleAction, rule *models.AutomationRule, task *models.Task, triggerCtx map[string]interface{}) ActionOutcome {
	params := ResolveParameters(act.Parameters, task, triggerCtx)

	var err error
	outcome := OutcomeOK
	detail := ""

	switch act.Type {
	case ActionCreateTask:
		detail, err = s.actionCreateTask(ctx, params, task)
	case ActionUpdateStatus:
		err = s.actionUpdateStatus(ctx, params, task)
	case ActionUpdatePriority:
		err = s.actionUpdatePriority(ctx, params, task)
	case ActionSendNotification:
		outcome, err = s.actionSendNotification(ctx, params, task)
	case ActionAssignUser:
		err = s.actionAssignUser(ctx, params, task)
	case ActionCreateFollowUp:
		detail, err = s.actionCreateFollowUp(ctx, params, task)
	case ActionReschedule:
		err = s.actionReschedule(ctx, params, task)
	case ActionAddDependency:
		err = s.actionAddDependency(ctx, params, task)
	case ActionCreateSubtasks:
		detail, err = s.actionCreateSubtasks(ctx, params, task)
	default:
		err = fmt.Errorf("unsupported action type: %s", act.Type)
	}

	if err != nil {
		s.logger.Warnf("automation: rule %d action %s failed: %v", rule.ID, act.Type, err)
		return ActionOutcome{Type: act.Type, Outcome: OutcomeError, Error: err.Error()}
	}
	return ActionOutcome{Type: act.Type, Outcome: outcome, Detail: detail}
}

func (s *AutomationService) actionCreateTask(ctx context.Context, params map[string]interface{}, task *models.Task) (string, error) {
	title, _ := params["title"].(string)
	if title == "" {
		return "", fmt.Errorf("title param required")
	}
	newTask := &models.Task{
		UserID:      task.UserID,
		ClientID:    task.ClientID,
		Title:       title,
		Status:      "pending",
		Priority:    "medium",
		AIGenerated: true,
		Confidence:  s.aiConfidence,
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
	}
	if desc, ok := params["description"].(string); ok {
		newTask.Description = desc
	}
	if prio, ok := params["priority"].(string); ok && prio != "" {
		newTask.Priority = prio
	}
	if tag, ok := params["tag"].(string); ok {
		newTask.Tag = tag
	}
	if due, ok := params["due_date"].(string); ok && due != "" {
		t, err := utils.ParseDueDate(due, time.Now())
		if err != nil {
			return "", err
		}
		newTask.DueDate = &t
	}
	if hours, ok := toFloat(params["estimated_hours"]); ok {
		newTask.EstimatedHours = hours
	}
	if err := s.db.WithContext(ctx).Create(newTask).Error; err != nil {
		return "", err
	}
	return fmt.Sprintf("created task %d", newTask.ID), nil
}

func (s *AutomationService) actionUpdateStatus(ctx context.Context, params map[string]interface{}, task *models.Task) error {
	status, _ := params["status"].(string)
	if status == "" {
		return fmt.Errorf("status param required")
	}
	updates := map[string]interface{}{"status": status, "updated_at": time.Now()}
	if status == "completed" {
		updates["completed_at"] = time.Now()
	}
	if err := s.db.WithContext(ctx).Model(&models.Task{}).
		Where("id = ?", task.ID).
		Updates(updates).Error; err != nil {
		return err
	}
	task.Status = status
	if task.ParentTaskID != nil {
		if err := applySubtaskRollup(ctx, s.db, *task.ParentTaskID); err != nil {
			s.logger.Warnf("automation: subtask rollup failed for task %d: %v", *task.ParentTaskID, err)
		}
	}
	return nil
}

func (s *AutomationService) actionUpdatePriority(ctx context.Context, params map[string]interface{}, task *models.Task) error {
	priority, _ := params["priority"].(string)
	if priority == "" {
		return fmt.Errorf("priority param required")
	}
	if err := s.db.WithContext(ctx).Model(&models.Task{}).
		Where("id = ?", task.ID).
		Update("priority", priority).Error; err != nil {
		return err
	}
	task.Priority = priority
	return nil
}

// actionSendNotification is best-effort: a failed outward notify is logged
// and the action still counts as ok.
func (s *AutomationService) actionSendNotification(ctx context.Context, params map[string]interface{}, task *models.Task) (string, error) {
	message, _ := params["message"].(string)
	if message == "" {
		return "", fmt.Errorf("message param required")
	}
	kind, _ := params["kind"].(string)
	if kind == "" {
		kind = "automation"
	}
	if s.notifier == nil {
		s.logger.Infof("automation notify (no notifier): %s", message)
		return OutcomeSkipped, nil
	}
	if err := s.notifier.Notify(ctx, task.UserID, message, kind); err != nil {
		s.logger.Warnf("automation: notify failed (ignored): %v", err)
	}
	return OutcomeOK, nil
}

func (s *AutomationService) actionAssignUser(ctx context.Context, params map[string]interface{}, task *models.Task) error {
	assigneeID, ok := toFloat(params["assignee_id"])
	if !ok || assigneeID <= 0 {
		return fmt.Errorf("assignee_id param required")
	}
	assignment := &models.TaskAssignment{
		TaskID:     task.ID,
		AssigneeID: uint(assigneeID),
		AssignedBy: "automation",
		CreatedAt:  time.Now(),
	}
	return s.db.WithContext(ctx).Create(assignment).Error
}

func (s *AutomationService) actionCreateFollowUp(ctx context.Context, params map[string]interface{}, task *models.Task) (string, error) {
	title, _ := params["title"].(string)
	if title == "" {
		title = "Follow up: " + task.Title
	}
	days := 3
	if d, ok := toFloat(params["days"]); ok && d >= 0 {
		days = int(d)
	}
	due := time.Now().AddDate(0, 0, days)
	followUp := &models.Task{
		UserID:      task.UserID,
		ClientID:    task.ClientID,
		Title:       title,
		Tag:         "follow_up",
		Status:      "pending",
		Priority:    task.Priority,
		DueDate:     &due,
		AIGenerated: true,
		Confidence:  s.aiConfidence,
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
	}
	if err := s.db.WithContext(ctx).Create(followUp).Error; err != nil {
		return "", err
	}
	return fmt.Sprintf("created follow-up %d", followUp.ID), nil
}

func (s *AutomationService) actionReschedule(ctx context.Context, params map[string]interface{}, task *models.Task) error {
	spec, _ := params["due_date"].(string)
	if spec == "" {
		if d, ok := toFloat(params["days"]); ok {
			spec = fmt.Sprintf("+%d", int(d))
		}
	}
	if spec == "" {
		return fmt.Errorf("due_date or days param required")
	}
	due, err := utils.ParseDueDate(spec, time.Now())
	if err != nil {
		return err
	}
	if err := s.db.WithContext(ctx).Model(&models.Task{}).
		Where("id = ?", task.ID).
		Update("due_date", due).Error; err != nil {
		return err
	}
	task.DueDate = &due
	return nil
}

func (s *AutomationService) actionAddDependency(ctx context.Context, params map[string]interface{}, task *models.Task) error {
	blockingID, ok := toFloat(params["blocking_task_id"])
	if !ok || blockingID <= 0 {
		return fmt.Errorf("blocking_task_id param required")
	}
	var blocking models.Task
	if err := s.db.WithContext(ctx).First(&blocking, uint(blockingID)).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("blocking task %d not found: %w", uint(blockingID), err)
		}
		return err
	}
	dep := &models.TaskDependency{
		BlockedTaskID:  task.ID,
		BlockingTaskID: blocking.ID,
		CreatedBy:      "automation",
		CreatedAt:      time.Now(),
	}
	return s.db.WithContext(ctx).Create(dep).Error
}

func (s *AutomationService) actionCreateSubtasks(ctx context.Context, params map[string]interface{}, task *models.Task) (string, error) {
	raw, ok := params["subtasks"].([]interface{})
	if !ok || len(raw) == 0 {
		return "", fmt.Errorf("subtasks param required")
	}
	created := 0
	for _, item := range raw {
		title := ""
		switch v := item.(type) {
		case string:
			title = v
		case map[string]interface{}:
			title, _ = v["title"].(string)
		}
		if title == "" {
			continue
		}
		parentID := task.ID
		sub := &models.Task{
			UserID:       task.UserID,
			ClientID:     task.ClientID,
			ParentTaskID: &parentID,
			Title:        title,
			Status:       "pending",
			Priority:     task.Priority,
			AIGenerated:  true,
			Confidence:   s.aiConfidence,
			CreatedAt:    time.Now(),
			UpdatedAt:    time.Now(),
		}
		if err := s.db.WithContext(ctx).Create(sub).Error; err != nil {
			return "", err
		}
		created++
	}
	if created == 0 {
		return "", fmt.Errorf("no valid subtask titles")
	}
	if err := applySubtaskRollup(ctx, s.db, task.ID); err != nil {
		s.logger.Warnf("automation: subtask rollup failed for task %d: %v", task.ID, err)
	}
	return fmt.Sprintf("created %d subtasks", created), nil
}

// AutomationStatsResponse 自动化统计响应
type AutomationStatsResponse struct {
	TotalRules         int64               `json:"total_rules"`
	ActiveRules        int64               `json:"active_rules"`
	TotalExecutions    int64               `json:"total_executions"`
	ExecutionsByStatus map[string]int64    `json:"executions_by_status"`
	TopRules           []RuleExecutionStat `json:"top_rules"`
}

// RuleExecutionStat 规则维度的执行统计
type RuleExecutionStat struct {
	RuleID         uint       `json:"rule_id"`
	Name           string     `json:"name"`
	ExecutionCount int        `json:"execution_count"`
	LastExecuted   *time.Time `json:"last_executed"`
}

// GetStats 统计规则与执行情况
func (s *AutomationService) GetStats(ctx context.Context, userID uint) (*AutomationStatsResponse, error) {
	stats := &AutomationStatsResponse{
		ExecutionsByStatus: map[string]int64{},
	}

	if err := s.db.WithContext(ctx).Model(&models.AutomationRule{}).
		Where("user_id = ?", userID).
		Count(&stats.TotalRules).Error; err != nil {
		return nil, err
	}
	if err := s.db.WithContext(ctx).Model(&models.AutomationRule{}).
		Where("user_id = ? AND active = ?", userID, true).
		Count(&stats.ActiveRules).Error; err != nil {
		return nil, err
	}

	type statusCount struct {
		Status string
		Count  int64
	}
	var rows []statusCount
	if err := s.db.WithContext(ctx).Model(&models.AutomationExecution{}).
		Select("automation_executions.status AS status, COUNT(*) AS count").
		Joins("JOIN automation_rules ON automation_rules.id = automation_executions.rule_id").
		Where("automation_rules.user_id = ?", userID).
		Group("automation_executions.status").
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	for _, row := range rows {
		stats.ExecutionsByStatus[row.Status] = row.Count
		stats.TotalExecutions += row.Count
	}

	var topRules []models.AutomationRule
	if err := s.db.WithContext(ctx).
		Where("user_id = ? AND execution_count > 0", userID).
		Order("execution_count DESC").
		Limit(5).
		Find(&topRules).Error; err != nil {
		return nil, err
	}
	for _, rule := range topRules {
		stats.TopRules = append(stats.TopRules, RuleExecutionStat{
			RuleID:         rule.ID,
			Name:           rule.Name,
			ExecutionCount: rule.ExecutionCount,
			LastExecuted:   rule.LastExecuted,
		})
	}
	return stats, nil
}
