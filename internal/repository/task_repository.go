package repository

import (
	"time"

	"gorm.io/gorm"

	"github.com/taskhub/backend/internal/models"
)

// GormTaskRepository is a GORM implementation of TaskRepository
type GormTaskRepository struct {
	db *gorm.DB
}

// NewTaskRepository creates a new TaskRepository
func NewTaskRepository(db *gorm.DB) TaskRepository {
	return &GormTaskRepository{db: db}
}

// Create creates a new task
func (r *GormTaskRepository) Create(task *models.Task) error {
	return r.db.Create(task).Error
}

// FindByID finds a task by ID with optional preloading
func (r *GormTaskRepository) FindByID(id uint64, preload ...string) (*models.Task, error) {
	var task models.Task
	query := r.db

	for _, p := range preload {
		query = query.Preload(p)
	}

	if err := query.First(&task, id).Error; err != nil {
		return nil, err
	}

	return &task, nil
}

// List retrieves tasks with filtering and pagination
func (r *GormTaskRepository) List(filter TaskFilter) ([]models.Task, int64, error) {
	var tasks []models.Task

	query := r.db.Model(&models.Task{})

	if filter.Status != nil {
		query = query.Where("tasks.status = ?", *filter.Status)
	}
	if filter.Priority != nil {
		query = query.Where("tasks.priority = ?", *filter.Priority)
	}
	if filter.AssigneeID != nil {
		query = query.Where("tasks.assignee_id = ?", *filter.AssigneeID)
	}
	if filter.DeadlineFrom != nil {
		query = query.Where("tasks.deadline >= ?", *filter.DeadlineFrom)
	}
	if filter.DeadlineTo != nil {
		query = query.Where("tasks.deadline < ?", *filter.DeadlineTo)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	listQuery := query.Order("tasks.created_at DESC")
	if filter.Page > 0 && filter.PageSize > 0 {
		offset := (filter.Page - 1) * filter.PageSize
		listQuery = listQuery.Offset(offset).Limit(filter.PageSize)
	}

	if err := listQuery.Preload("Creator").Preload("Assignee").Find(&tasks).Error; err != nil {
		return nil, 0, err
	}

	return tasks, total, nil
}

// Update persists all fields of a task
func (r *GormTaskRepository) Update(task *models.Task) error {
	return r.db.Save(task).Error
}

// Delete hard deletes a task along with its comments and attachments
func (r *GormTaskRepository) Delete(id uint64) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("task_id = ?", id).Delete(&models.Comment{}).Error; err != nil {
			return err
		}
		if err := tx.Where("task_id = ?", id).Delete(&models.Attachment{}).Error; err != nil {
			return err
		}
		return tx.Delete(&models.Task{}, id).Error
	})
}

// AddComment appends a comment to a task
func (r *GormTaskRepository) AddComment(comment *models.Comment) error {
	return r.db.Create(comment).Error
}

// CountByStatus returns task counts per status, optionally scoped to an assignee
func (r *GormTaskRepository) CountByStatus(assigneeID *uint64) (map[models.TaskStatus]int64, error) {
	type row struct {
		Status models.TaskStatus
		Count  int64
	}

	query := r.db.Model(&models.Task{}).
		Select("status, COUNT(*) as count").
		Group("status")
	if assigneeID != nil {
		query = query.Where("assignee_id = ?", *assigneeID)
	}

	var rows []row
	if err := query.Scan(&rows).Error; err != nil {
		return nil, err
	}

	counts := make(map[models.TaskStatus]int64, len(rows))
	for _, r := range rows {
		counts[r.Status] = r.Count
	}
	return counts, nil
}

// FindCompletedSince returns completed tasks whose completion time is at or after since
func (r *GormTaskRepository) FindCompletedSince(since time.Time) ([]models.Task, error) {
	var tasks []models.Task
	err := r.db.
		Where("status = ? AND completed_at IS NOT NULL AND completed_at >= ?", models.TaskStatusCompleted, since).
		Find(&tasks).Error
	return tasks, err
}

// FindCreatedSince returns all tasks created at or after since
func (r *GormTaskRepository) FindCreatedSince(since time.Time) ([]models.Task, error) {
	var tasks []models.Task
	err := r.db.Where("created_at >= ?", since).Find(&tasks).Error
	return tasks, err
}

// FindOpenAssigned returns pending/in_progress tasks that have an assignee
func (r *GormTaskRepository) FindOpenAssigned() ([]models.Task, error) {
	var tasks []models.Task
	err := r.db.
		Where("status IN ? AND assignee_id IS NOT NULL", []models.TaskStatus{models.TaskStatusPending, models.TaskStatusInProgress}).
		Find(&tasks).Error
	return tasks, err
}

// FindAssigned returns every task that has an assignee
func (r *GormTaskRepository) FindAssigned() ([]models.Task, error) {
	var tasks []models.Task
	err := r.db.Where("assignee_id IS NOT NULL").Find(&tasks).Error
	return tasks, err
}

// FindCompletedAssigned returns completed tasks that have an assignee
func (r *GormTaskRepository) FindCompletedAssigned() ([]models.Task, error) {
	var tasks []models.Task
	err := r.db.
		Where("status = ? AND assignee_id IS NOT NULL AND completed_at IS NOT NULL", models.TaskStatusCompleted).
		Find(&tasks).Error
	return tasks, err
}

// FindOverdue returns tasks past their deadline that are neither completed nor archived
func (r *GormTaskRepository) FindOverdue(now time.Time) ([]models.Task, error) {
	var tasks []models.Task
	err := r.db.
		Where("status NOT IN ? AND deadline < ?", []models.TaskStatus{models.TaskStatusCompleted, models.TaskStatusArchived}, now).
		Find(&tasks).Error
	return tasks, err
}

// FindAll returns every task
func (r *GormTaskRepository) FindAll() ([]models.Task, error) {
	var tasks []models.Task
	err := r.db.Find(&tasks).Error
	return tasks, err
}

// FindDueBetween returns open tasks with a deadline inside [from, to)
func (r *GormTaskRepository) FindDueBetween(from, to time.Time) ([]models.Task, error) {
	var tasks []models.Task
	err := r.db.
		Where("status IN ? AND deadline >= ? AND deadline < ?",
			[]models.TaskStatus{models.TaskStatusPending, models.TaskStatusInProgress}, from, to).
		Find(&tasks).Error
	return tasks, err
}

// MarkReminded records when a reminder was last sent for a task
func (r *GormTaskRepository) MarkReminded(taskID uint64, at time.Time) error {
	return r.db.Model(&models.Task{}).
		Where("id = ?", taskID).
		Update("last_reminded_at", at).Error
}
