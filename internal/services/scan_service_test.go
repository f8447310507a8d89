package services

import (
	"context"
	"testing"
	"time"

	"flowdesk/internal/models"

	"github.com/sirupsen/logrus"
)

func newScanFixture(t *testing.T) (*ScanService, *AutomationService) {
	db := newAutomationTestDB(t)
	logger := logrus.New()
	automation := NewAutomationService(db, logger)
	scan := NewScanService(db, logger, automation)
	return scan, automation
}

func TestScanService_OverdueScan(t *testing.T) {
	scan, automation := newScanFixture(t)
	ctx := context.Background()
	now := time.Now()

	// 5 天逾期、仍 pending 的任务
	due := now.AddDate(0, 0, -5)
	task := &models.Task{UserID: 1, Title: "Send contract", Status: "pending", Priority: "medium", DueDate: &due}
	if err := scan.db.Create(task).Error; err != nil {
		t.Fatalf("create task: %v", err)
	}
	// 已完成的逾期任务不在扫描范围
	doneDue := now.AddDate(0, 0, -3)
	done := &models.Task{UserID: 1, Title: "Handled", Status: "completed", DueDate: &doneDue}
	if err := scan.db.Create(done).Error; err != nil {
		t.Fatalf("create task: %v", err)
	}

	rule, err := automation.CreateRule(ctx, 1, &AutomationRuleRequest{
		Name:    "escalate long-overdue",
		Trigger: TriggerTaskOverdue,
		Conditions: map[string]interface{}{
			"context.days_overdue": map[string]interface{}{">": 2},
		},
		Actions: []RuleAction{{Type: ActionUpdatePriority, Parameters: map[string]interface{}{"priority": "high"}}},
	})
	if err != nil {
		t.Fatalf("CreateRule failed: %v", err)
	}

	summary := scan.RunScheduledScans(ctx, now, nil)
	if summary.RunID == "" {
		t.Fatal("run id missing")
	}
	if summary.UsersProcessed != 1 {
		t.Fatalf("users processed = %d, want 1", summary.UsersProcessed)
	}
	if summary.AutomationsExecuted != 1 {
		t.Fatalf("automations executed = %d, want 1", summary.AutomationsExecuted)
	}

	var updated models.Task
	scan.db.First(&updated, task.ID)
	if updated.Priority != "high" {
		t.Fatalf("priority = %q, want high", updated.Priority)
	}

	var exec models.AutomationExecution
	if err := scan.db.Where("rule_id = ? AND task_id = ?", rule.ID, task.ID).First(&exec).Error; err != nil {
		t.Fatalf("expected execution record: %v", err)
	}
	if exec.Status != ExecStatusSuccess {
		t.Fatalf("execution status = %q, want success", exec.Status)
	}
	if exec.TriggerEvent != TriggerTaskOverdue {
		t.Fatalf("trigger = %q", exec.TriggerEvent)
	}

	var stored models.AutomationRule
	scan.db.First(&stored, rule.ID)
	if stored.ExecutionCount != 1 {
		t.Fatalf("execution_count = %d, want 1", stored.ExecutionCount)
	}
}

func TestScanService_FiringCooldownDedup(t *testing.T) {
	scan, automation := newScanFixture(t)
	ctx := context.Background()
	now := time.Now()

	due := now.AddDate(0, 0, -4)
	task := &models.Task{UserID: 1, Title: "Chase payment", Status: "pending", DueDate: &due}
	if err := scan.db.Create(task).Error; err != nil {
		t.Fatalf("create task: %v", err)
	}
	if _, err := automation.CreateRule(ctx, 1, &AutomationRuleRequest{
		Name:    "nag",
		Trigger: TriggerTaskOverdue,
		Actions: []RuleAction{{Type: ActionUpdatePriority, Parameters: map[string]interface{}{"priority": "urgent"}}},
	}); err != nil {
		t.Fatalf("CreateRule failed: %v", err)
	}

	first := scan.RunScheduledScans(ctx, now, nil)
	if first.AutomationsExecuted != 1 {
		t.Fatalf("first run executed = %d, want 1", first.AutomationsExecuted)
	}

	// 冷却窗口内再次扫描：同一 (rule, task) 不重复触发
	second := scan.RunScheduledScans(ctx, now.Add(time.Hour), nil)
	if second.AutomationsExecuted != 0 {
		t.Fatalf("second run executed = %d, want 0 inside cooldown", second.AutomationsExecuted)
	}

	// 冷却过期后重新触发
	third := scan.RunScheduledScans(ctx, now.Add(25*time.Hour), nil)
	if third.AutomationsExecuted != 1 {
		t.Fatalf("third run executed = %d, want 1 after cooldown", third.AutomationsExecuted)
	}

	// 水位线是 UPSERT，不会累积多行
	var firings int64
	scan.db.Model(&models.AutomationFiring{}).Count(&firings)
	if firings != 1 {
		t.Fatalf("firing rows = %d, want 1", firings)
	}
}

func TestScanService_DueSoonScan(t *testing.T) {
	scan, automation := newScanFixture(t)
	ctx := context.Background()
	now := time.Now()

	soon := now.AddDate(0, 0, 2)
	far := now.AddDate(0, 0, 10)
	inWindow := &models.Task{UserID: 1, Title: "Renewal call", Status: "pending", DueDate: &soon}
	outside := &models.Task{UserID: 1, Title: "Annual review", Status: "pending", DueDate: &far}
	if err := scan.db.Create(inWindow).Error; err != nil {
		t.Fatalf("create task: %v", err)
	}
	if err := scan.db.Create(outside).Error; err != nil {
		t.Fatalf("create task: %v", err)
	}

	notifier := NewNotificationService(scan.db, logrus.New())
	automation.SetNotifier(notifier)
	if _, err := automation.CreateRule(ctx, 1, &AutomationRuleRequest{
		Name:    "due soon reminder",
		Trigger: TriggerDueDateApproaching,
		Actions: []RuleAction{{
			Type:       ActionSendNotification,
			Parameters: map[string]interface{}{"message": "{task.title} due in {context.days_until_due} days", "kind": "reminder"},
		}},
	}); err != nil {
		t.Fatalf("CreateRule failed: %v", err)
	}

	summary := scan.RunScheduledScans(ctx, now, nil)
	if summary.AutomationsExecuted != 1 {
		t.Fatalf("executed = %d, want 1 (only task inside window)", summary.AutomationsExecuted)
	}

	var note models.Notification
	if err := scan.db.First(&note).Error; err != nil {
		t.Fatalf("expected notification: %v", err)
	}
	if note.Message != "Renewal call due in 2 days" {
		t.Fatalf("message = %q", note.Message)
	}
	if note.Kind != "reminder" {
		t.Fatalf("kind = %q", note.Kind)
	}
}

func TestScanService_UserFilterAndIsolation(t *testing.T) {
	scan, automation := newScanFixture(t)
	ctx := context.Background()
	now := time.Now()

	for _, userID := range []uint{1, 2} {
		due := now.AddDate(0, 0, -1)
		task := &models.Task{UserID: userID, Title: "Overdue item", Status: "pending", DueDate: &due}
		if err := scan.db.Create(task).Error; err != nil {
			t.Fatalf("create task: %v", err)
		}
		if _, err := automation.CreateRule(ctx, userID, &AutomationRuleRequest{
			Name:    "escalate",
			Trigger: TriggerTaskOverdue,
			Actions: []RuleAction{{Type: ActionUpdatePriority, Parameters: map[string]interface{}{"priority": "high"}}},
		}); err != nil {
			t.Fatalf("CreateRule failed: %v", err)
		}
	}

	userFilter := uint(1)
	summary := scan.RunScheduledScans(ctx, now, &userFilter)
	if summary.UsersProcessed != 1 {
		t.Fatalf("users processed = %d, want 1 with filter", summary.UsersProcessed)
	}
	if summary.PerUserResults[0].UserID != 1 {
		t.Fatalf("scanned user %d, want 1", summary.PerUserResults[0].UserID)
	}

	// 用户 2 的任务未被触碰
	var other models.Task
	scan.db.Where("user_id = ?", 2).First(&other)
	if other.Priority == "high" {
		t.Fatal("filter leaked into other user's tasks")
	}
}

func TestScanService_NoScheduledRulesNoWork(t *testing.T) {
	scan, automation := newScanFixture(t)
	ctx := context.Background()
	now := time.Now()

	due := now.AddDate(0, 0, -2)
	task := &models.Task{UserID: 1, Title: "Ignored", Status: "pending", DueDate: &due}
	if err := scan.db.Create(task).Error; err != nil {
		t.Fatalf("create task: %v", err)
	}
	// 只有生命周期触发器的规则，不参与定时扫描
	if _, err := automation.CreateRule(ctx, 1, &AutomationRuleRequest{
		Name:    "on completion",
		Trigger: TriggerTaskCompleted,
		Actions: []RuleAction{{Type: ActionCreateFollowUp, Parameters: map[string]interface{}{}}},
	}); err != nil {
		t.Fatalf("CreateRule failed: %v", err)
	}

	summary := scan.RunScheduledScans(ctx, now, nil)
	if summary.UsersProcessed != 0 {
		t.Fatalf("users processed = %d, want 0", summary.UsersProcessed)
	}
	if summary.AutomationsExecuted != 0 {
		t.Fatalf("executed = %d, want 0", summary.AutomationsExecuted)
	}
}
