package services

import (
	"context"
	"testing"
	"time"

	"flowdesk/internal/models"
)

func seedSuggestionTasks(t *testing.T, svc *SuggestionService, userID uint, count int, mutate func(*models.Task)) {
	t.Helper()
	for i := 0; i < count; i++ {
		task := &models.Task{UserID: userID, Title: "seed", Status: "pending"}
		mutate(task)
		if err := svc.db.Create(task).Error; err != nil {
			t.Fatalf("seed task: %v", err)
		}
	}
}

func TestSuggestionService_NoDataNoSuggestions(t *testing.T) {
	db := newAutomationTestDB(t)
	svc := NewSuggestionService(db)

	suggestions, err := svc.SuggestRules(context.Background(), 1, 5)
	if err != nil {
		t.Fatalf("SuggestRules failed: %v", err)
	}
	if len(suggestions) != 0 {
		t.Fatalf("suggestions = %d, want 0", len(suggestions))
	}
}

func TestSuggestionService_OverdueCluster(t *testing.T) {
	db := newAutomationTestDB(t)
	svc := NewSuggestionService(db)
	past := time.Now().AddDate(0, 0, -2)

	seedSuggestionTasks(t, svc, 1, 3, func(task *models.Task) {
		task.DueDate = &past
	})

	suggestions, err := svc.SuggestRules(context.Background(), 1, 5)
	if err != nil {
		t.Fatalf("SuggestRules failed: %v", err)
	}
	if len(suggestions) == 0 {
		t.Fatal("expected an overdue escalation suggestion")
	}
	first := suggestions[0]
	if first.Trigger != TriggerTaskOverdue {
		t.Fatalf("trigger = %q, want task_overdue", first.Trigger)
	}
	if len(first.Actions) == 0 {
		t.Fatal("suggestion has no actions")
	}
	if first.Score <= 0 {
		t.Fatalf("score = %v", first.Score)
	}
	// 建议可直接作为创建请求提交
	automation := NewAutomationService(db, nil)
	if _, err := automation.CreateRule(context.Background(), 1, &AutomationRuleRequest{
		Name:       first.Name,
		Trigger:    first.Trigger,
		Conditions: first.Conditions,
		Actions:    first.Actions,
	}); err != nil {
		t.Fatalf("suggestion not submittable as rule: %v", err)
	}
}

func TestSuggestionService_FollowUpHabit(t *testing.T) {
	db := newAutomationTestDB(t)
	svc := NewSuggestionService(db)

	seedSuggestionTasks(t, svc, 1, 6, func(task *models.Task) {
		task.Status = "completed"
	})
	seedSuggestionTasks(t, svc, 1, 3, func(task *models.Task) {
		task.Tag = "follow_up"
	})

	suggestions, err := svc.SuggestRules(context.Background(), 1, 5)
	if err != nil {
		t.Fatalf("SuggestRules failed: %v", err)
	}
	found := false
	for _, sug := range suggestions {
		if sug.Trigger == TriggerTaskCompleted {
			found = true
		}
	}
	if !found {
		t.Fatal("expected a follow-up-on-completion suggestion")
	}
}

func TestSuggestionService_SortedAndLimited(t *testing.T) {
	db := newAutomationTestDB(t)
	svc := NewSuggestionService(db)
	now := time.Now()
	past := now.AddDate(0, 0, -3)
	soon := now.AddDate(0, 0, 1)

	seedSuggestionTasks(t, svc, 1, 5, func(task *models.Task) { task.DueDate = &past })
	seedSuggestionTasks(t, svc, 1, 3, func(task *models.Task) { task.DueDate = &soon })
	seedSuggestionTasks(t, svc, 1, 3, func(task *models.Task) {
		task.EstimatedHours = 1
		task.ActualHours = 2
	})

	suggestions, err := svc.SuggestRules(context.Background(), 1, 2)
	if err != nil {
		t.Fatalf("SuggestRules failed: %v", err)
	}
	if len(suggestions) != 2 {
		t.Fatalf("suggestions = %d, want limit 2", len(suggestions))
	}
	if suggestions[0].Score < suggestions[1].Score {
		t.Fatal("suggestions not sorted by score descending")
	}
}
