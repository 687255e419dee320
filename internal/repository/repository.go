package repository

import (
	"time"

	"github.com/taskhub/backend/internal/models"
)

// TaskRepository defines the interface for task data access
type TaskRepository interface {
	// Create creates a new task
	Create(task *models.Task) error

	// FindByID finds a task by ID with optional preloading
	FindByID(id uint64, preload ...string) (*models.Task, error)

	// List retrieves tasks with filtering and pagination
	List(filter TaskFilter) ([]models.Task, int64, error)

	// Update persists all fields of a task
	Update(task *models.Task) error

	// Delete hard deletes a task along with its comments and attachments
	Delete(id uint64) error

	// AddComment appends a comment to a task
	AddComment(comment *models.Comment) error

	// CountByStatus returns task counts per status, optionally scoped to an assignee
	CountByStatus(assigneeID *uint64) (map[models.TaskStatus]int64, error)

	// FindCompletedSince returns completed tasks whose completion time is at or after since
	FindCompletedSince(since time.Time) ([]models.Task, error)

	// FindCreatedSince returns all tasks created at or after since
	FindCreatedSince(since time.Time) ([]models.Task, error)

	// FindOpenAssigned returns pending/in_progress tasks that have an assignee
	FindOpenAssigned() ([]models.Task, error)

	// FindAssigned returns every task that has an assignee
	FindAssigned() ([]models.Task, error)

	// FindCompletedAssigned returns completed tasks that have an assignee
	FindCompletedAssigned() ([]models.Task, error)

	// FindOverdue returns tasks past their deadline that are neither completed nor archived
	FindOverdue(now time.Time) ([]models.Task, error)

	// FindAll returns every task
	FindAll() ([]models.Task, error)

	// FindDueBetween returns open tasks with a deadline inside [from, to)
	FindDueBetween(from, to time.Time) ([]models.Task, error)

	// MarkReminded records when a reminder was last sent for a task
	MarkReminded(taskID uint64, at time.Time) error
}

// TaskFilter holds filtering options for listing tasks
type TaskFilter struct {
	Status       *models.TaskStatus
	Priority     *models.TaskPriority
	AssigneeID   *uint64
	DeadlineFrom *time.Time
	DeadlineTo   *time.Time
	Page         int
	PageSize     int
}

// UserRepository defines the interface for user data access
type UserRepository interface {
	// Create creates a new user
	Create(user *models.User) error

	// FindByID finds an active user by ID
	FindByID(id uint64) (*models.User, error)

	// FindByEmail finds an active user by email
	FindByEmail(email string) (*models.User, error)

	// FindByIDs returns active users for the given IDs, keyed by ID
	FindByIDs(ids []uint64) (map[uint64]models.User, error)

	// List returns all active users
	List() ([]models.User, error)

	// Update persists all fields of a user
	Update(user *models.User) error

	// Deactivate soft deletes a user by clearing the active flag
	Deactivate(id uint64) error

	// Count returns the number of users, active or not
	Count() (int64, error)
}
