package services

import (
	"testing"

	"flowdesk/internal/models"
)

func TestResolveTemplateString(t *testing.T) {
	task := &models.Task{Title: "Call Acme Corp", Priority: "high"}
	ctx := map[string]interface{}{"days_overdue": 3}

	tests := []struct {
		name string
		in   string
		want string
	}{
		{"task field", "Follow up on {task.title}", "Follow up on Call Acme Corp"},
		{"context field", "Overdue by {context.days_overdue} days", "Overdue by 3 days"},
		{"mixed", "{task.title} ({task.priority})", "Call Acme Corp (high)"},
		{"unresolvable left in place", "Check {task.nonexistent}", "Check {task.nonexistent}"},
		{"unknown root untouched", "{client.name}", "{client.name}"},
		{"no placeholders", "plain text", "plain text"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ResolveTemplateString(tt.in, task, ctx); got != tt.want {
				t.Fatalf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestResolveParameters_NestedWalk(t *testing.T) {
	task := &models.Task{Title: "Prepare proposal"}
	params := map[string]interface{}{
		"title": "Review: {task.title}",
		"subtasks": []interface{}{
			map[string]interface{}{"title": "Draft {task.title}"},
			"Send {task.title}",
		},
		"count": float64(2),
	}

	resolved := ResolveParameters(params, task, nil)

	if resolved["title"] != "Review: Prepare proposal" {
		t.Fatalf("title = %v", resolved["title"])
	}
	list, ok := resolved["subtasks"].([]interface{})
	if !ok || len(list) != 2 {
		t.Fatalf("subtasks = %v", resolved["subtasks"])
	}
	first, _ := list[0].(map[string]interface{})
	if first["title"] != "Draft Prepare proposal" {
		t.Fatalf("nested title = %v", first["title"])
	}
	if list[1] != "Send Prepare proposal" {
		t.Fatalf("nested string = %v", list[1])
	}
	if resolved["count"] != float64(2) {
		t.Fatalf("non-string value changed: %v", resolved["count"])
	}

	// 原 map 不被原地修改
	if params["title"] != "Review: {task.title}" {
		t.Fatal("input params mutated")
	}
}
