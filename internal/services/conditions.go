package services

import (
	"strconv"
	"strings"

	"flowdesk/internal/models"
)

// CompareOp 条件比较运算符（封闭枚举，避免对 JSON key 的临时探测）
type CompareOp string

const (
	OpGreater      CompareOp = ">"
	OpGreaterEqual CompareOp = ">="
	OpLess         CompareOp = "<"
	OpLessEqual    CompareOp = "<="
	OpNotEqual     CompareOp = "!="
	OpIn           CompareOp = "in"
	OpNotIn        CompareOp = "not_in"
)

func parseCompareOp(key string) (CompareOp, bool) {
	switch CompareOp(key) {
	case OpGreater, OpGreaterEqual, OpLess, OpLessEqual, OpNotEqual, OpIn, OpNotIn:
		return CompareOp(key), true
	default:
		return "", false
	}
}

// EvaluateConditions reports whether every condition entry holds for the given
// task and trigger context (implicit AND). A condition value is one of:
// a literal (equality), a list (membership), or an object with exactly one
// comparison operator key. Paths use dot notation into {task, context},
// e.g. "task.priority" or "context.days_overdue".
//
// Pure and deterministic: no I/O, no hidden state. An unresolvable path
// yields a nil fact, which fails every comparison except "!=" and "not_in"
// against a present value.
func EvaluateConditions(conditions map[string]interface{}, task *models.Task, context map[string]interface{}) bool {
	for path, spec := range conditions {
		fact, ok := resolveFactPath(path, task, context)
		if !ok {
			fact = nil
		}
		if !evaluateSpec(fact, spec) {
			return false
		}
	}
	return true
}

func evaluateSpec(fact interface{}, spec interface{}) bool {
	switch s := spec.(type) {
	case []interface{}:
		// 列表即成员匹配（OR）
		return containsFact(s, fact)
	case map[string]interface{}:
		if len(s) != 1 {
			return false
		}
		for key, operand := range s {
			op, ok := parseCompareOp(key)
			if !ok {
				return false
			}
			return compare(op, fact, operand)
		}
		return false
	default:
		// 字面量即相等
		if fact == nil {
			return false
		}
		return factEquals(fact, spec)
	}
}

func compare(op CompareOp, fact, operand interface{}) bool {
	switch op {
	case OpGreater, OpGreaterEqual, OpLess, OpLessEqual:
		a, aok := toFloat(fact)
		b, bok := toFloat(operand)
		if !aok || !bok {
			return false
		}
		switch op {
		case OpGreater:
			return a > b
		case OpGreaterEqual:
			return a >= b
		case OpLess:
			return a < b
		default:
			return a <= b
		}
	case OpNotEqual:
		if fact == nil {
			return operand != nil
		}
		return !factEquals(fact, operand)
	case OpIn:
		list, ok := operand.([]interface{})
		if !ok || fact == nil {
			return false
		}
		return containsFact(list, fact)
	case OpNotIn:
		list, ok := operand.([]interface{})
		if !ok {
			return false
		}
		if fact == nil {
			return true
		}
		return !containsFact(list, fact)
	default:
		return false
	}
}

func containsFact(list []interface{}, fact interface{}) bool {
	if fact == nil {
		return false
	}
	for _, item := range list {
		if factEquals(fact, item) {
			return true
		}
	}
	return false
}

// factEquals 优先数值相等，否则大小写敏感的字符串相等
func factEquals(a, b interface{}) bool {
	if af, aok := toFloat(a); aok {
		if bf, bok := toFloat(b); bok {
			return af == bf
		}
	}
	as, aok := toComparableString(a)
	bs, bok := toComparableString(b)
	if !aok || !bok {
		return false
	}
	return as == bs
}

func toFloat(v interface{}) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case float32:
		return float64(t), true
	case int:
		return float64(t), true
	case int64:
		return float64(t), true
	case uint:
		return float64(t), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

func toComparableString(v interface{}) (string, bool) {
	switch t := v.(type) {
	case string:
		return t, true
	case bool:
		return strconv.FormatBool(t), true
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), true
	case int:
		return strconv.Itoa(t), true
	case uint:
		return strconv.FormatUint(uint64(t), 10), true
	default:
		return "", false
	}
}

// resolveFactPath resolves "task.<field>" against the task and
// "context.<field>" against the trigger context.
func resolveFactPath(path string, task *models.Task, context map[string]interface{}) (interface{}, bool) {
	root, field, ok := strings.Cut(path, ".")
	if !ok {
		return nil, false
	}
	switch root {
	case "task":
		return taskFact(task, field)
	case "context":
		v, ok := context[field]
		return v, ok
	default:
		return nil, false
	}
}

func taskFact(task *models.Task, field string) (interface{}, bool) {
	if task == nil {
		return nil, false
	}
	switch field {
	case "id":
		return task.ID, true
	case "user_id":
		return task.UserID, true
	case "title":
		return task.Title, true
	case "description":
		return task.Description, true
	case "status":
		return task.Status, true
	case "priority":
		return task.Priority, true
	case "tag":
		return task.Tag, true
	case "client_id":
		if task.ClientID == nil {
			return nil, false
		}
		return *task.ClientID, true
	case "parent_task_id":
		if task.ParentTaskID == nil {
			return nil, false
		}
		return *task.ParentTaskID, true
	case "due_date":
		if task.DueDate == nil {
			return nil, false
		}
		return task.DueDate.Format("2006-01-02"), true
	case "estimated_hours":
		return task.EstimatedHours, true
	case "actual_hours":
		return task.ActualHours, true
	case "progress_percentage":
		return task.ProgressPercentage, true
	case "ai_generated":
		return task.AIGenerated, true
	default:
		return nil, false
	}
}
