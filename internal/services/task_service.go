package services

import (
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/taskhub/backend/internal/mailer"
	"github.com/taskhub/backend/internal/models"
	"github.com/taskhub/backend/internal/repository"
)

var (
	ErrTaskNotFound     = errors.New("task not found")
	ErrTaskForbidden    = errors.New("no access to this task")
	ErrTitleRequired    = errors.New("title is required")
	ErrDeadlineRequired = errors.New("deadline is required")
	ErrInvalidStatus    = errors.New("invalid task status")
	ErrInvalidPriority  = errors.New("invalid task priority")
	ErrInvalidAssignee  = errors.New("assignee does not exist or is inactive")
	ErrArchiveForbidden = errors.New("only admins can archive tasks")
	ErrCommentRequired  = errors.New("comment text is required")
)

// TaskService handles task business logic and role-based access rules.
type TaskService struct {
	taskRepo repository.TaskRepository
	userRepo repository.UserRepository
	notifier mailer.Notifier
	logger   *zap.Logger
}

// NewTaskService creates a new TaskService. notifier may be nil to disable
// assignment emails.
func NewTaskService(taskRepo repository.TaskRepository, userRepo repository.UserRepository, notifier mailer.Notifier, logger *zap.Logger) *TaskService {
	return &TaskService{
		taskRepo: taskRepo,
		userRepo: userRepo,
		notifier: notifier,
		logger:   logger,
	}
}

// ListTasksInput represents filters for listing tasks
type ListTasksInput struct {
	Status       *models.TaskStatus
	Priority     *models.TaskPriority
	DeadlineFrom *time.Time
	DeadlineTo   *time.Time
	Page         int
	PageSize     int
}

// ListTasks returns the tasks visible to the actor. Team members only ever
// see tasks assigned to them; admins see everything.
func (s *TaskService) ListTasks(actor *models.User, input ListTasksInput) ([]models.Task, int64, error) {
	filter := repository.TaskFilter{
		Status:       input.Status,
		Priority:     input.Priority,
		DeadlineFrom: input.DeadlineFrom,
		DeadlineTo:   input.DeadlineTo,
		Page:         input.Page,
		PageSize:     input.PageSize,
	}
	if !actor.IsAdmin() {
		filter.AssigneeID = &actor.ID
	}

	tasks, total, err := s.taskRepo.List(filter)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list tasks: %w", err)
	}
	return tasks, total, nil
}

// GetTask returns a task with related data, enforcing read access.
func (s *TaskService) GetTask(actor *models.User, taskID uint64) (*models.Task, error) {
	task, err := s.taskRepo.FindByID(taskID, "Creator", "Assignee", "Comments", "Comments.Author", "Attachments")
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTaskNotFound
		}
		return nil, fmt.Errorf("failed to find task: %w", err)
	}

	if !canRead(actor, task) {
		return nil, ErrTaskForbidden
	}
	return task, nil
}

// CreateTaskInput represents input for creating a task
type CreateTaskInput struct {
	Title       string
	Description string
	Status      models.TaskStatus
	Priority    models.TaskPriority
	AssigneeID  *uint64
	Deadline    time.Time
	Tags        []string
}

// CreateTask creates a task on behalf of the actor, who becomes the creator.
// If an assignee is set, a notification is dispatched fire-and-forget.
func (s *TaskService) CreateTask(actor *models.User, input CreateTaskInput) (*models.Task, error) {
	if input.Title == "" {
		return nil, ErrTitleRequired
	}
	if input.Deadline.IsZero() {
		return nil, ErrDeadlineRequired
	}
	if input.Status == "" {
		input.Status = models.TaskStatusPending
	}
	if !models.ValidStatus(input.Status) {
		return nil, ErrInvalidStatus
	}
	if input.Priority == "" {
		input.Priority = models.TaskPriorityMedium
	}
	if !models.ValidPriority(input.Priority) {
		return nil, ErrInvalidPriority
	}

	var assignee *models.User
	if input.AssigneeID != nil {
		var err error
		assignee, err = s.userRepo.FindByID(*input.AssigneeID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, ErrInvalidAssignee
			}
			return nil, fmt.Errorf("failed to verify assignee: %w", err)
		}
	}

	task := &models.Task{
		Title:       input.Title,
		Description: input.Description,
		Status:      input.Status,
		Priority:    input.Priority,
		CreatorID:   actor.ID,
		AssigneeID:  input.AssigneeID,
		Deadline:    input.Deadline,
		Tags:        datatypes.NewJSONSlice(input.Tags),
	}
	if task.Status == models.TaskStatusCompleted {
		now := time.Now()
		task.CompletedAt = &now
	}

	if err := s.taskRepo.Create(task); err != nil {
		return nil, fmt.Errorf("failed to create task: %w", err)
	}

	if assignee != nil {
		s.notifyAssignment(*assignee, *task)
	}

	return s.taskRepo.FindByID(task.ID, "Creator", "Assignee")
}

// TaskPatch represents a partial task update. Nil pointers leave the field
// untouched; ClearAssignee removes the assignee.
type TaskPatch struct {
	Title         *string
	Description   *string
	Status        *models.TaskStatus
	Priority      *models.TaskPriority
	AssigneeID    *uint64
	ClearAssignee bool
	Deadline      *time.Time
	Tags          *[]string
}

// restrictToStatus narrows a patch to the single field a team member may change.
func (p TaskPatch) restrictToStatus() TaskPatch {
	return TaskPatch{Status: p.Status}
}

// UpdateTask applies a patch to a task. Admins may change any field; team
// members may only change the status of a task assigned to them, and may not
// archive. A newly assigned user is notified fire-and-forget.
func (s *TaskService) UpdateTask(actor *models.User, taskID uint64, patch TaskPatch) (*models.Task, error) {
	task, err := s.taskRepo.FindByID(taskID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTaskNotFound
		}
		return nil, fmt.Errorf("failed to find task: %w", err)
	}

	if !actor.IsAdmin() {
		if !isAssignee(actor, task) {
			return nil, ErrTaskForbidden
		}
		patch = patch.restrictToStatus()
		if patch.Status != nil && *patch.Status == models.TaskStatusArchived {
			return nil, ErrArchiveForbidden
		}
	}

	if patch.Status != nil && !models.ValidStatus(*patch.Status) {
		return nil, ErrInvalidStatus
	}
	if patch.Priority != nil && !models.ValidPriority(*patch.Priority) {
		return nil, ErrInvalidPriority
	}

	var newAssignee *models.User
	if patch.AssigneeID != nil {
		changed := task.AssigneeID == nil || *task.AssigneeID != *patch.AssigneeID
		if changed {
			newAssignee, err = s.userRepo.FindByID(*patch.AssigneeID)
			if err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return nil, ErrInvalidAssignee
				}
				return nil, fmt.Errorf("failed to verify assignee: %w", err)
			}
		}
	}

	if patch.Title != nil {
		if *patch.Title == "" {
			return nil, ErrTitleRequired
		}
		task.Title = *patch.Title
	}
	if patch.Description != nil {
		task.Description = *patch.Description
	}
	if patch.Status != nil && *patch.Status != task.Status {
		if *patch.Status == models.TaskStatusCompleted {
			now := time.Now()
			task.CompletedAt = &now
		} else if task.Status == models.TaskStatusCompleted {
			// Leaving completed resets the completion timestamp.
			task.CompletedAt = nil
		}
		task.Status = *patch.Status
	}
	if patch.Priority != nil {
		task.Priority = *patch.Priority
	}
	if patch.ClearAssignee {
		task.AssigneeID = nil
	} else if patch.AssigneeID != nil {
		task.AssigneeID = patch.AssigneeID
	}
	if patch.Deadline != nil {
		task.Deadline = *patch.Deadline
	}
	if patch.Tags != nil {
		task.Tags = datatypes.NewJSONSlice(*patch.Tags)
	}

	if err := s.taskRepo.Update(task); err != nil {
		return nil, fmt.Errorf("failed to update task: %w", err)
	}

	if newAssignee != nil {
		s.notifyAssignment(*newAssignee, *task)
	}

	return s.taskRepo.FindByID(task.ID, "Creator", "Assignee", "Comments", "Comments.Author")
}

// DeleteTask hard deletes a task.
func (s *TaskService) DeleteTask(taskID uint64) error {
	if _, err := s.taskRepo.FindByID(taskID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrTaskNotFound
		}
		return fmt.Errorf("failed to find task: %w", err)
	}

	if err := s.taskRepo.Delete(taskID); err != nil {
		return fmt.Errorf("failed to delete task: %w", err)
	}
	return nil
}

// AddComment appends a comment to a task the actor can read.
func (s *TaskService) AddComment(actor *models.User, taskID uint64, text string) (*models.Comment, error) {
	if text == "" {
		return nil, ErrCommentRequired
	}

	task, err := s.taskRepo.FindByID(taskID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTaskNotFound
		}
		return nil, fmt.Errorf("failed to find task: %w", err)
	}

	if !canRead(actor, task) {
		return nil, ErrTaskForbidden
	}

	comment := &models.Comment{
		TaskID:   task.ID,
		AuthorID: actor.ID,
		Text:     text,
	}
	if err := s.taskRepo.AddComment(comment); err != nil {
		return nil, fmt.Errorf("failed to add comment: %w", err)
	}
	return comment, nil
}

// TaskStats returns per-status task counts scoped to the actor's visibility.
func (s *TaskService) TaskStats(actor *models.User) (map[models.TaskStatus]int64, error) {
	var assigneeID *uint64
	if !actor.IsAdmin() {
		assigneeID = &actor.ID
	}

	counts, err := s.taskRepo.CountByStatus(assigneeID)
	if err != nil {
		return nil, fmt.Errorf("failed to count tasks: %w", err)
	}

	// Always report every status, even at zero.
	for _, status := range []models.TaskStatus{
		models.TaskStatusPending,
		models.TaskStatusInProgress,
		models.TaskStatusCompleted,
		models.TaskStatusArchived,
	} {
		if _, ok := counts[status]; !ok {
			counts[status] = 0
		}
	}
	return counts, nil
}

// CalendarTasks returns the actor's visible tasks with deadlines inside the
// given month.
func (s *TaskService) CalendarTasks(actor *models.User, year int, month time.Month) ([]models.Task, error) {
	from := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 1, 0)

	tasks, _, err := s.ListTasks(actor, ListTasksInput{
		DeadlineFrom: &from,
		DeadlineTo:   &to,
	})
	return tasks, err
}

// notifyAssignment dispatches an assignment email. Failures are logged and
// never propagated; the surrounding write has already succeeded.
func (s *TaskService) notifyAssignment(assignee models.User, task models.Task) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.TaskAssigned(assignee, task); err != nil {
		s.logger.Warn("assignment notification failed",
			zap.Uint64("task_id", task.ID),
			zap.Uint64("assignee_id", assignee.ID),
			zap.Error(err),
		)
	}
}

func canRead(actor *models.User, task *models.Task) bool {
	if actor.IsAdmin() {
		return true
	}
	return isAssignee(actor, task)
}

func isAssignee(actor *models.User, task *models.Task) bool {
	return task.AssigneeID != nil && *task.AssigneeID == actor.ID
}
