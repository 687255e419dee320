package models

import (
	"math"
	"time"

	"gorm.io/datatypes"
)

type TaskStatus string

const (
	TaskStatusPending    TaskStatus = "pending"
	TaskStatusInProgress TaskStatus = "in_progress"
	TaskStatusCompleted  TaskStatus = "completed"
	TaskStatusArchived   TaskStatus = "archived"
)

// ValidStatus reports whether s is one of the known task statuses.
func ValidStatus(s TaskStatus) bool {
	switch s {
	case TaskStatusPending, TaskStatusInProgress, TaskStatusCompleted, TaskStatusArchived:
		return true
	}
	return false
}

type TaskPriority string

const (
	TaskPriorityLow    TaskPriority = "low"
	TaskPriorityMedium TaskPriority = "medium"
	TaskPriorityHigh   TaskPriority = "high"
)

// ValidPriority reports whether p is one of the known task priorities.
func ValidPriority(p TaskPriority) bool {
	switch p {
	case TaskPriorityLow, TaskPriorityMedium, TaskPriorityHigh:
		return true
	}
	return false
}

type Task struct {
	ID             uint64                      `gorm:"primarykey" json:"id"`
	Title          string                      `gorm:"not null" json:"title"`
	Description    string                      `gorm:"type:text" json:"description"`
	Status         TaskStatus                  `gorm:"type:varchar(20);not null;default:'pending'" json:"status"`
	Priority       TaskPriority                `gorm:"type:varchar(10);not null;default:'medium'" json:"priority"`
	CreatorID      uint64                      `gorm:"not null;index" json:"creator_id"`
	AssigneeID     *uint64                     `gorm:"index" json:"assignee_id"`
	Deadline       time.Time                   `gorm:"not null;index" json:"deadline"`
	CompletedAt    *time.Time                  `json:"completed_at"`
	LastRemindedAt *time.Time                  `json:"-"`
	Tags           datatypes.JSONSlice[string] `json:"tags"`
	CreatedAt      time.Time                   `gorm:"index" json:"created_at"`
	UpdatedAt      time.Time                   `json:"updated_at"`

	// Relations
	Creator     User         `gorm:"foreignKey:CreatorID" json:"creator,omitempty"`
	Assignee    *User        `gorm:"foreignKey:AssigneeID" json:"assignee,omitempty"`
	Comments    []Comment    `gorm:"foreignKey:TaskID" json:"comments,omitempty"`
	Attachments []Attachment `gorm:"foreignKey:TaskID" json:"attachments,omitempty"`
}

// DaysRemaining returns the number of whole days until the deadline,
// rounded up. Negative once the deadline has passed.
func (t *Task) DaysRemaining(now time.Time) int {
	return int(math.Ceil(t.Deadline.Sub(now).Hours() / 24))
}

// IsOverdue reports whether the deadline has passed without completion.
func (t *Task) IsOverdue(now time.Time) bool {
	return t.Deadline.Before(now) && t.Status != TaskStatusCompleted
}

// IsOpen reports whether the task still needs work.
func (t *Task) IsOpen() bool {
	return t.Status == TaskStatusPending || t.Status == TaskStatusInProgress
}

type Comment struct {
	ID        uint64    `gorm:"primarykey" json:"id"`
	TaskID    uint64    `gorm:"not null;index" json:"task_id"`
	AuthorID  uint64    `gorm:"not null" json:"author_id"`
	Text      string    `gorm:"type:text;not null" json:"text"`
	CreatedAt time.Time `json:"created_at"`

	Author User `gorm:"foreignKey:AuthorID" json:"author,omitempty"`
}

type Attachment struct {
	ID         uint64    `gorm:"primarykey" json:"id"`
	TaskID     uint64    `gorm:"not null;index" json:"task_id"`
	Name       string    `gorm:"not null" json:"name"`
	Path       string    `gorm:"not null" json:"path"`
	UploadedAt time.Time `json:"uploaded_at"`
}
