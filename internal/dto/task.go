package dto

import (
	"time"

	"github.com/taskhub/backend/internal/models"
	"github.com/taskhub/backend/internal/utils"
)

// CommentDTO represents a task comment in API responses
type CommentDTO struct {
	ID        uint64    `json:"id"`
	Text      string    `json:"text"`
	AuthorID  uint64    `json:"author_id"`
	Author    *UserDTO  `json:"author,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// AttachmentDTO represents a task attachment in API responses
type AttachmentDTO struct {
	ID         uint64    `json:"id"`
	Name       string    `json:"name"`
	Path       string    `json:"path"`
	UploadedAt time.Time `json:"uploaded_at"`
}

// TaskDTO represents a task in API responses
type TaskDTO struct {
	ID            uint64              `json:"id"`
	Title         string              `json:"title"`
	Description   string              `json:"description"`
	Status        models.TaskStatus   `json:"status"`
	Priority      models.TaskPriority `json:"priority"`
	CreatorID     uint64              `json:"creator_id"`
	AssigneeID    *uint64             `json:"assignee_id"`
	Deadline      time.Time           `json:"deadline"`
	CompletedAt   *time.Time          `json:"completed_at"`
	Tags          []string            `json:"tags"`
	DaysRemaining int                 `json:"days_remaining"`
	IsOverdue     bool                `json:"is_overdue"`
	CreatedAt     time.Time           `json:"created_at"`
	UpdatedAt     time.Time           `json:"updated_at"`
	Creator       *UserDTO            `json:"creator,omitempty"`
	Assignee      *UserDTO            `json:"assignee,omitempty"`
	Comments      []CommentDTO        `json:"comments,omitempty"`
	Attachments   []AttachmentDTO     `json:"attachments,omitempty"`
}

// TaskListResponse represents a paginated list of tasks
type TaskListResponse struct {
	Tasks      []TaskDTO                `json:"tasks"`
	Pagination utils.PaginationResponse `json:"pagination"`
}

// ToCommentDTO converts a Comment model to CommentDTO
func ToCommentDTO(comment models.Comment) CommentDTO {
	dto := CommentDTO{
		ID:        comment.ID,
		Text:      comment.Text,
		AuthorID:  comment.AuthorID,
		CreatedAt: comment.CreatedAt,
	}
	if comment.Author.ID != 0 {
		author := ToUserDTO(comment.Author)
		dto.Author = &author
	}
	return dto
}

// ToTaskDTO converts a Task model to TaskDTO, deriving the schedule fields
// from the given reference time.
func ToTaskDTO(task models.Task, now time.Time) TaskDTO {
	dto := TaskDTO{
		ID:            task.ID,
		Title:         task.Title,
		Description:   task.Description,
		Status:        task.Status,
		Priority:      task.Priority,
		CreatorID:     task.CreatorID,
		AssigneeID:    task.AssigneeID,
		Deadline:      task.Deadline,
		CompletedAt:   task.CompletedAt,
		Tags:          task.Tags,
		DaysRemaining: task.DaysRemaining(now),
		IsOverdue:     task.IsOverdue(now),
		CreatedAt:     task.CreatedAt,
		UpdatedAt:     task.UpdatedAt,
	}

	if task.Creator.ID != 0 {
		creator := ToUserDTO(task.Creator)
		dto.Creator = &creator
	}
	if task.Assignee != nil && task.Assignee.ID != 0 {
		assignee := ToUserDTO(*task.Assignee)
		dto.Assignee = &assignee
	}
	if len(task.Comments) > 0 {
		dto.Comments = make([]CommentDTO, len(task.Comments))
		for i, comment := range task.Comments {
			dto.Comments[i] = ToCommentDTO(comment)
		}
	}
	if len(task.Attachments) > 0 {
		dto.Attachments = make([]AttachmentDTO, len(task.Attachments))
		for i, a := range task.Attachments {
			dto.Attachments[i] = AttachmentDTO{
				ID:         a.ID,
				Name:       a.Name,
				Path:       a.Path,
				UploadedAt: a.UploadedAt,
			}
		}
	}

	return dto
}

// ToTaskDTOs converts a slice of Task models
func ToTaskDTOs(tasks []models.Task, now time.Time) []TaskDTO {
	dtos := make([]TaskDTO, len(tasks))
	for i, task := range tasks {
		dtos[i] = ToTaskDTO(task, now)
	}
	return dtos
}
