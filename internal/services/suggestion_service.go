package services

import (
	"context"
	"fmt"
	"sort"
	"time"

	"flowdesk/internal/models"

	"gorm.io/gorm"
)

// SuggestionService 基于用户任务画像推荐自动化规则
type SuggestionService struct {
	db *gorm.DB
}

func NewSuggestionService(db *gorm.DB) *SuggestionService {
	return &SuggestionService{db: db}
}

// RuleSuggestion 一条规则建议，可直接作为创建请求提交
type RuleSuggestion struct {
	Name       string                 `json:"name"`
	Trigger    string                 `json:"trigger"`
	Conditions map[string]interface{} `json:"conditions"`
	Actions    []RuleAction           `json:"actions"`
	Reason     string                 `json:"reason"`
	Score      float64                `json:"score"`
}

type suggestionStats struct {
	overdueCount      int64
	dueSoonCount      int64
	completedCount    int64
	followUpCount     int64
	overEstimateCount int64
}

// SuggestRules returns up to limit suggestions ordered by score. Heuristics
// look at overdue clusters, follow-up habits and estimate overruns; they are
// deliberately simple and produce only rule definitions — nothing is created.
func (s *SuggestionService) SuggestRules(ctx context.Context, userID uint, limit int) ([]RuleSuggestion, error) {
	if limit <= 0 || limit > 10 {
		limit = 5
	}

	stats, err := s.collectStats(ctx, userID)
	if err != nil {
		return nil, err
	}

	var suggestions []RuleSuggestion

	if stats.overdueCount >= 3 {
		suggestions = append(suggestions, RuleSuggestion{
			Name:    "Escalate overdue tasks",
			Trigger: TriggerTaskOverdue,
			Conditions: map[string]interface{}{
				"context.days_overdue": map[string]interface{}{">": 2},
			},
			Actions: []RuleAction{
				{Type: ActionUpdatePriority, Parameters: map[string]interface{}{"priority": "high"}},
				{Type: ActionSendNotification, Parameters: map[string]interface{}{
					"message": "Task \"{task.title}\" is {context.days_overdue} days overdue",
				}},
			},
			Reason: fmt.Sprintf("%d tasks are currently overdue", stats.overdueCount),
			Score:  0.5 + 0.1*float64(min64(stats.overdueCount, 5)),
		})
	}

	if stats.dueSoonCount >= 2 {
		suggestions = append(suggestions, RuleSuggestion{
			Name:    "Remind before due date",
			Trigger: TriggerDueDateApproaching,
			Conditions: map[string]interface{}{
				"context.days_until_due": map[string]interface{}{"<=": 1},
			},
			Actions: []RuleAction{
				{Type: ActionSendNotification, Parameters: map[string]interface{}{
					"message": "Task \"{task.title}\" is due in {context.days_until_due} days",
					"kind":    "reminder",
				}},
			},
			Reason: fmt.Sprintf("%d tasks are due within the next 3 days", stats.dueSoonCount),
			Score:  0.4 + 0.1*float64(min64(stats.dueSoonCount, 4)),
		})
	}

	if stats.completedCount >= 5 && stats.followUpCount*2 >= stats.completedCount {
		suggestions = append(suggestions, RuleSuggestion{
			Name:    "Create follow-up on completion",
			Trigger: TriggerTaskCompleted,
			Conditions: map[string]interface{}{
				"task.tag": []interface{}{"follow_up", "outreach"},
			},
			Actions: []RuleAction{
				{Type: ActionCreateFollowUp, Parameters: map[string]interface{}{"days": 3}},
			},
			Reason: "you frequently create follow-up tasks by hand after completing one",
			Score:  0.6,
		})
	}

	if stats.overEstimateCount >= 3 {
		suggestions = append(suggestions, RuleSuggestion{
			Name:    "Flag estimate overruns",
			Trigger: TriggerTimeTracked,
			Conditions: map[string]interface{}{
				"task.status": map[string]interface{}{"not_in": []interface{}{"completed", "cancelled"}},
			},
			Actions: []RuleAction{
				{Type: ActionSendNotification, Parameters: map[string]interface{}{
					"message": "Task \"{task.title}\" has logged {context.total_hours}h against an estimate of {task.estimated_hours}h",
				}},
			},
			Reason: fmt.Sprintf("%d tasks have exceeded their estimated hours", stats.overEstimateCount),
			Score:  0.3 + 0.1*float64(min64(stats.overEstimateCount, 5)),
		})
	}

	sort.Slice(suggestions, func(i, j int) bool {
		return suggestions[i].Score > suggestions[j].Score
	})
	if len(suggestions) > limit {
		suggestions = suggestions[:limit]
	}
	return suggestions, nil
}

func (s *SuggestionService) collectStats(ctx context.Context, userID uint) (*suggestionStats, error) {
	now := time.Now()
	stats := &suggestionStats{}
	base := func() *gorm.DB {
		return s.db.WithContext(ctx).Model(&models.Task{}).Where("user_id = ?", userID)
	}

	if err := base().
		Where("status NOT IN ? AND due_date < ?", []string{"completed", "cancelled"}, now).
		Count(&stats.overdueCount).Error; err != nil {
		return nil, err
	}
	if err := base().
		Where("status NOT IN ? AND due_date >= ? AND due_date <= ?",
			[]string{"completed", "cancelled"}, now, now.AddDate(0, 0, 3)).
		Count(&stats.dueSoonCount).Error; err != nil {
		return nil, err
	}
	if err := base().
		Where("status = ?", "completed").
		Count(&stats.completedCount).Error; err != nil {
		return nil, err
	}
	if err := base().
		Where("tag = ?", "follow_up").
		Count(&stats.followUpCount).Error; err != nil {
		return nil, err
	}
	if err := base().
		Where("estimated_hours > 0 AND actual_hours > estimated_hours").
		Count(&stats.overEstimateCount).Error; err != nil {
		return nil, err
	}
	return stats, nil
}

func min64(a, b int64) int64 {
	if a < b {
		return a
	}
	return b
}
