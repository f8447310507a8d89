package models

import (
	"time"

	"gorm.io/gorm"
)

// 用户模型
type User struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	Username  string         `gorm:"unique;not null" json:"username"`
	Email     string         `gorm:"unique;not null" json:"email"`
	Name      string         `json:"name"`
	Role      string         `gorm:"default:'member'" json:"role"`   // member, admin
	Status    string         `gorm:"default:'active'" json:"status"` // active, inactive
	LastLogin *time.Time     `json:"last_login"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	// 关联关系
	Tasks   []Task   `gorm:"foreignKey:UserID" json:"tasks,omitempty"`
	Clients []Client `gorm:"foreignKey:UserID" json:"clients,omitempty"`
}

// 客户信息
type Client struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	UserID    uint           `gorm:"index" json:"user_id"`
	Name      string         `gorm:"not null" json:"name"`
	Company   string         `json:"company"`
	Email     string         `json:"email"`
	Phone     string         `json:"phone"`
	Source    string         `json:"source"` // web, referral, marketing
	Tags      string         `json:"tags"`   // 标签，逗号分隔
	Notes     string         `gorm:"type:text" json:"notes"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	User User `gorm:"foreignKey:UserID" json:"user,omitempty"`
}

// 任务模型
type Task struct {
	ID                 uint           `gorm:"primaryKey" json:"id"`
	UserID             uint           `gorm:"index" json:"user_id"`
	ClientID           *uint          `gorm:"index" json:"client_id"`
	ParentTaskID       *uint          `gorm:"index" json:"parent_task_id"`
	Title              string         `gorm:"not null" json:"title"`
	Description        string         `gorm:"type:text" json:"description"`
	Status             string         `gorm:"default:'pending'" json:"status"`  // pending, in_progress, completed, cancelled
	Priority           string         `gorm:"default:'medium'" json:"priority"` // low, medium, high, urgent
	Tag                string         `json:"tag"`                              // follow_up, outreach, admin, ...
	DueDate            *time.Time     `gorm:"index" json:"due_date"`
	EstimatedHours     float64        `gorm:"default:0" json:"estimated_hours"`
	ActualHours        float64        `gorm:"default:0" json:"actual_hours"`
	ProgressPercentage int            `gorm:"default:0" json:"progress_percentage"` // 子任务完成度汇总
	AIGenerated        bool           `gorm:"default:false" json:"ai_generated"`
	Confidence         float64        `gorm:"default:0" json:"confidence"` // ai_generated 时的置信度
	CompletedAt        *time.Time     `json:"completed_at"`
	CreatedAt          time.Time      `json:"created_at"`
	UpdatedAt          time.Time      `json:"updated_at"`
	DeletedAt          gorm.DeletedAt `gorm:"index" json:"-"`

	// 关联关系
	User        User             `gorm:"foreignKey:UserID" json:"user,omitempty"`
	Client      *Client          `gorm:"foreignKey:ClientID" json:"client,omitempty"`
	ParentTask  *Task            `gorm:"foreignKey:ParentTaskID" json:"parent_task,omitempty"`
	Subtasks    []Task           `gorm:"foreignKey:ParentTaskID" json:"subtasks,omitempty"`
	TimeEntries []TimeEntry      `gorm:"foreignKey:TaskID" json:"time_entries,omitempty"`
	Assignments []TaskAssignment `gorm:"foreignKey:TaskID" json:"assignments,omitempty"`
}

// 任务指派
type TaskAssignment struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	TaskID     uint      `gorm:"index" json:"task_id"`
	AssigneeID uint      `gorm:"index" json:"assignee_id"`
	AssignedBy string    `gorm:"default:'user'" json:"assigned_by"` // user, automation
	CreatedAt  time.Time `json:"created_at"`

	Task     Task `gorm:"foreignKey:TaskID" json:"task,omitempty"`
	Assignee User `gorm:"foreignKey:AssigneeID" json:"assignee,omitempty"`
}

// 任务依赖（BlockedTask 在 BlockingTask 完成前不可开始）
type TaskDependency struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	BlockedTaskID  uint      `gorm:"index" json:"blocked_task_id"`
	BlockingTaskID uint      `gorm:"index" json:"blocking_task_id"`
	CreatedBy      string    `gorm:"default:'user'" json:"created_by"` // user, automation
	CreatedAt      time.Time `json:"created_at"`

	BlockedTask  Task `gorm:"foreignKey:BlockedTaskID" json:"blocked_task,omitempty"`
	BlockingTask Task `gorm:"foreignKey:BlockingTaskID" json:"blocking_task,omitempty"`
}

// 工时记录
type TimeEntry struct {
	ID          uint       `gorm:"primaryKey" json:"id"`
	TaskID      uint       `gorm:"index" json:"task_id"`
	UserID      uint       `gorm:"index" json:"user_id"`
	Hours       float64    `gorm:"not null" json:"hours"`
	Description string     `json:"description"`
	StartedAt   *time.Time `json:"started_at"`
	CreatedAt   time.Time  `json:"created_at"`

	Task Task `gorm:"foreignKey:TaskID" json:"task,omitempty"`
	User User `gorm:"foreignKey:UserID" json:"user,omitempty"`
}

// 应用内通知
type Notification struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    uint      `gorm:"index" json:"user_id"`
	Kind      string    `gorm:"default:'info'" json:"kind"` // info, reminder, automation
	Message   string    `gorm:"type:text;not null" json:"message"`
	Read      bool      `gorm:"default:false" json:"read"`
	CreatedAt time.Time `json:"created_at"`

	User User `gorm:"foreignKey:UserID" json:"user,omitempty"`
}
