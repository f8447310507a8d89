package services

import (
	"fmt"
	"regexp"

	"flowdesk/internal/models"
)

var placeholderRe = regexp.MustCompile(`\{(task|context)\.([A-Za-z0-9_]+)\}`)

// ResolveTemplateString substitutes {task.<field>} and {context.<field>}
// placeholders against the triggering task and trigger context. Unresolvable
// placeholders are left in place so a bad template is visible in the output
// rather than silently blanked.
func ResolveTemplateString(s string, task *models.Task, context map[string]interface{}) string {
	return placeholderRe.ReplaceAllStringFunc(s, func(match string) string {
		groups := placeholderRe.FindStringSubmatch(match)
		var (
			fact interface{}
			ok   bool
		)
		switch groups[1] {
		case "task":
			fact, ok = taskFact(task, groups[2])
		case "context":
			fact, ok = context[groups[2]]
		}
		if !ok || fact == nil {
			return match
		}
		return fmt.Sprintf("%v", fact)
	})
}

// ResolveTemplates walks an action parameter value and resolves placeholders
// in every nested string. Maps and slices are copied, not mutated in place.
func ResolveTemplates(value interface{}, task *models.Task, context map[string]interface{}) interface{} {
	switch v := value.(type) {
	case string:
		return ResolveTemplateString(v, task, context)
	case map[string]interface{}:
		out := make(map[string]interface{}, len(v))
		for k, item := range v {
			out[k] = ResolveTemplates(item, task, context)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(v))
		for i, item := range v {
			out[i] = ResolveTemplates(item, task, context)
		}
		return out
	default:
		return value
	}
}

// ResolveParameters resolves every value of an action parameter map.
func ResolveParameters(params map[string]interface{}, task *models.Task, context map[string]interface{}) map[string]interface{} {
	resolved := ResolveTemplates(params, task, context)
	if m, ok := resolved.(map[string]interface{}); ok {
		return m
	}
	return map[string]interface{}{}
}
