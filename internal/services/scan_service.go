package services

import (
	"context"
	"time"

	"flowdesk/internal/models"
	"flowdesk/pkg/utils"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"
)

// ScanService runs the scheduled overdue / due-soon automation scans. It is
// cron-invoked: every failure is downgraded to a per-user record so one bad
// user or rule never aborts the batch.
type ScanService struct {
	db             *gorm.DB
	logger         *logrus.Logger
	tracer         trace.Tracer
	automation     *AutomationService
	dueSoonDays    int
	firingCooldown time.Duration
}

func NewScanService(db *gorm.DB, logger *logrus.Logger, automation *AutomationService) *ScanService {
	if logger == nil {
		logger = logrus.New()
	}
	return &ScanService{
		db:             db,
		logger:         logger,
		tracer:         otel.Tracer("flowdesk.scan"),
		automation:     automation,
		dueSoonDays:    3,
		firingCooldown: 24 * time.Hour,
	}
}

// SetDueSoonWindow 配置"即将到期"窗口天数
func (s *ScanService) SetDueSoonWindow(days int) {
	if days > 0 {
		s.dueSoonDays = days
	}
}

// SetFiringCooldown 配置同一 (rule, task) 的重复触发冷却时间
func (s *ScanService) SetFiringCooldown(d time.Duration) {
	if d > 0 {
		s.firingCooldown = d
	}
}

// UserScanResult 单个用户的扫描结果
type UserScanResult struct {
	UserID              uint   `json:"user_id"`
	TasksScanned        int    `json:"tasks_scanned"`
	AutomationsExecuted int    `json:"automations_executed"`
	Error               string `json:"error,omitempty"`
}

// ScanSummary 一次定时扫描的汇总
type ScanSummary struct {
	RunID               string           `json:"run_id"`
	StartedAt           time.Time        `json:"started_at"`
	FinishedAt          time.Time        `json:"finished_at"`
	UsersProcessed      int              `json:"users_processed"`
	AutomationsExecuted int              `json:"automations_executed"`
	PerUserResults      []UserScanResult `json:"per_user_results"`
}

// RunScheduledScans runs the overdue and due-soon scans for every user that
// has active scheduled rules, or for a single user when userFilter is set.
func (s *ScanService) RunScheduledScans(ctx context.Context, now time.Time, userFilter *uint) *ScanSummary {
	ctx, span := s.tracer.Start(ctx, "scan.run_scheduled")
	defer span.End()

	summary := &ScanSummary{
		RunID:          uuid.NewString(),
		StartedAt:      now,
		PerUserResults: []UserScanResult{},
	}
	span.SetAttributes(attribute.String("scan.run_id", summary.RunID))

	userIDs, err := s.usersWithScheduledRules(ctx, userFilter)
	if err != nil {
		s.logger.Errorf("scan: list users failed: %v", err)
		summary.FinishedAt = time.Now()
		return summary
	}

	for _, userID := range userIDs {
		result := UserScanResult{UserID: userID}

		scanned, executed, err := s.scanOverdue(ctx, userID, now)
		result.TasksScanned += scanned
		result.AutomationsExecuted += executed
		if err != nil {
			result.Error = err.Error()
			s.logger.Errorf("scan: overdue scan failed for user %d: %v", userID, err)
		}

		scanned, executed, err = s.scanDueSoon(ctx, userID, now)
		result.TasksScanned += scanned
		result.AutomationsExecuted += executed
		if err != nil {
			result.Error = err.Error()
			s.logger.Errorf("scan: due-soon scan failed for user %d: %v", userID, err)
		}

		summary.UsersProcessed++
		summary.AutomationsExecuted += result.AutomationsExecuted
		summary.PerUserResults = append(summary.PerUserResults, result)
	}

	summary.FinishedAt = time.Now()
	span.SetAttributes(
		attribute.Int("scan.users_processed", summary.UsersProcessed),
		attribute.Int("scan.automations_executed", summary.AutomationsExecuted),
	)
	s.logger.Infof("scan %s completed: %d users, %d automations executed",
		summary.RunID, summary.UsersProcessed, summary.AutomationsExecuted)
	return summary
}

func (s *ScanService) usersWithScheduledRules(ctx context.Context, userFilter *uint) ([]uint, error) {
	query := s.db.WithContext(ctx).Model(&models.AutomationRule{}).
		Where("active = ? AND trigger_event IN ?", true,
			[]string{TriggerTaskOverdue, TriggerDueDateApproaching}).
		Distinct("user_id")
	if userFilter != nil {
		query = query.Where("user_id = ?", *userFilter)
	}
	var userIDs []uint
	if err := query.Pluck("user_id", &userIDs).Error; err != nil {
		return nil, err
	}
	return userIDs, nil
}

// scanOverdue 逾期扫描：status 不在 {completed, cancelled} 且 due_date < now
func (s *ScanService) scanOverdue(ctx context.Context, userID uint, now time.Time) (int, int, error) {
	var tasks []models.Task
	if err := s.db.WithContext(ctx).
		Where("user_id = ? AND status NOT IN ? AND due_date IS NOT NULL AND due_date < ?",
			userID, []string{"completed", "cancelled"}, now).
		Find(&tasks).Error; err != nil {
		return 0, 0, err
	}
	if len(tasks) == 0 {
		return 0, 0, nil
	}

	rules, err := s.automation.ListActiveRules(ctx, userID, TriggerTaskOverdue)
	if err != nil {
		return len(tasks), 0, err
	}

	executed := 0
	for i := range tasks {
		task := &tasks[i]
		triggerCtx := map[string]interface{}{
			"days_overdue": utils.DaysBetween(*task.DueDate, now),
			"is_overdue":   true,
		}
		executed += s.runMatchingRules(ctx, rules, task, TriggerTaskOverdue, triggerCtx, now)
	}
	return len(tasks), executed, nil
}

// scanDueSoon 即将到期扫描：due_date 在 [now, now+N 天] 窗口内
func (s *ScanService) scanDueSoon(ctx context.Context, userID uint, now time.Time) (int, int, error) {
	windowEnd := now.AddDate(0, 0, s.dueSoonDays)
	var tasks []models.Task
	if err := s.db.WithContext(ctx).
		Where("user_id = ? AND status NOT IN ? AND due_date >= ? AND due_date <= ?",
			userID, []string{"completed", "cancelled"}, now, windowEnd).
		Find(&tasks).Error; err != nil {
		return 0, 0, err
	}
	if len(tasks) == 0 {
		return 0, 0, nil
	}

	rules, err := s.automation.ListActiveRules(ctx, userID, TriggerDueDateApproaching)
	if err != nil {
		return len(tasks), 0, err
	}

	executed := 0
	for i := range tasks {
		task := &tasks[i]
		triggerCtx := map[string]interface{}{
			"days_until_due": utils.DaysBetween(now, *task.DueDate),
		}
		executed += s.runMatchingRules(ctx, rules, task, TriggerDueDateApproaching, triggerCtx, now)
	}
	return len(tasks), executed, nil
}

func (s *ScanService) runMatchingRules(ctx context.Context, rules []models.AutomationRule, task *models.Task, trigger string, triggerCtx map[string]interface{}, now time.Time) int {
	executed := 0
	for i := range rules {
		rule := &rules[i]
		matched, err := s.automation.RuleMatches(rule, task, triggerCtx)
		if err != nil {
			s.logger.Warnf("scan: rule %d conditions invalid: %v", rule.ID, err)
			continue
		}
		if !matched {
			continue
		}
		if s.firedRecently(ctx, rule.ID, task.ID, now) {
			continue
		}
		if _, err := s.automation.ExecuteRule(ctx, rule, task, trigger, triggerCtx); err != nil {
			s.logger.Warnf("scan: rule %d execution error: %v", rule.ID, err)
			continue
		}
		s.markFired(ctx, rule.ID, task.ID, now)
		executed++
	}
	return executed
}

// firedRecently reports whether the (rule, task) pair fired within the
// cooldown window. Repeated scan runs inside the window are deduplicated here
// instead of re-firing the same rule on the same still-overdue task.
func (s *ScanService) firedRecently(ctx context.Context, ruleID, taskID uint, now time.Time) bool {
	var firing models.AutomationFiring
	err := s.db.WithContext(ctx).
		Where("rule_id = ? AND task_id = ?", ruleID, taskID).
		First(&firing).Error
	if err != nil {
		return false
	}
	return now.Sub(firing.FiredAt) < s.firingCooldown
}

func (s *ScanService) markFired(ctx context.Context, ruleID, taskID uint, now time.Time) {
	result := s.db.WithContext(ctx).Model(&models.AutomationFiring{}).
		Where("rule_id = ? AND task_id = ?", ruleID, taskID).
		Update("fired_at", now)
	if result.Error != nil {
		s.logger.Warnf("scan: update firing watermark failed: %v", result.Error)
		return
	}
	if result.RowsAffected == 0 {
		firing := &models.AutomationFiring{RuleID: ruleID, TaskID: taskID, FiredAt: now}
		if err := s.db.WithContext(ctx).Create(firing).Error; err != nil {
			s.logger.Warnf("scan: create firing watermark failed: %v", err)
		}
	}
}

// StartScanScheduler 启动定时扫描（独立 goroutine 中运行）
func (s *ScanService) StartScanScheduler(ctx context.Context, interval time.Duration) {
	s.logger.Infof("Starting automation scan scheduler, interval=%s", interval)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Automation scan scheduler stopped")
			return
		case <-ticker.C:
			s.RunScheduledScans(ctx, time.Now(), nil)
		}
	}
}
