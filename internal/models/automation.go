package models

import "time"

// 自动化规则定义
type AutomationRule struct {
	ID             uint       `gorm:"primaryKey" json:"id"`
	UserID         uint       `gorm:"index" json:"user_id"`
	Name           string     `gorm:"not null" json:"name"`
	Trigger        string     `gorm:"column:trigger_event;index;not null" json:"trigger"` // task_completed, task_overdue, status_changed, time_tracked, due_date_approaching
	Conditions     string     `gorm:"type:text" json:"conditions"`   // JSON: {fact_path: literal | list | {op: value}}
	Actions        string     `gorm:"type:text" json:"actions"`      // JSON: [{type,parameters}]
	Active         bool       `gorm:"default:true" json:"active"`
	ExecutionCount int        `gorm:"default:0" json:"execution_count"`
	LastExecuted   *time.Time `json:"last_executed"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// 自动化执行记录（仅追加，不可变）
type AutomationExecution struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	RuleID       uint      `gorm:"index" json:"rule_id"`
	TaskID       uint      `gorm:"index" json:"task_id"`
	TriggerEvent string    `json:"trigger_event"`
	Actions      string    `gorm:"type:text" json:"actions"`           // JSON: [{type,outcome,error}]
	Status       string    `gorm:"index" json:"status"`                // success, partial, failed
	ErrorMessage string    `gorm:"type:text" json:"error_message"`
	CreatedAt    time.Time `json:"created_at"`

	Rule AutomationRule `gorm:"foreignKey:RuleID" json:"rule,omitempty"`
}

// 定时扫描触发水位线：同一 (rule, task) 在冷却窗口内只触发一次
type AutomationFiring struct {
	ID      uint      `gorm:"primaryKey" json:"id"`
	RuleID  uint      `gorm:"index:idx_firing_rule_task,unique" json:"rule_id"`
	TaskID  uint      `gorm:"index:idx_firing_rule_task,unique" json:"task_id"`
	FiredAt time.Time `json:"fired_at"`
}
