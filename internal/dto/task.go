package dto

import (
	"encoding/json"
	"time"

	"github.com/yukikurage/content-pipeline/internal/models"
	"github.com/yukikurage/content-pipeline/internal/utils"
)

// UserDTO represents a user in API responses
type UserDTO struct {
	ID       string          `json:"id"`
	Username string          `json:"username"`
	Role     models.UserRole `json:"role"`
}

// TaskDTO represents a task in API responses. Custom field values are
// keyed by field id and carry the bare value.
type TaskDTO struct {
	ID                string         `json:"id"`
	ChannelID         string         `json:"channel_id"`
	ColumnID          string         `json:"column_id"`
	Title             string         `json:"title"`
	Description       string         `json:"description"`
	AssignedTo        *string        `json:"assigned_to"`
	DueDate           *time.Time     `json:"due_date"`
	CustomFieldValues map[string]interface{} `json:"custom_field_values"`
	Notes             string         `json:"notes"`
	Links             []string       `json:"links"`
	CreatedBy         string         `json:"created_by"`
	CreatedAt         time.Time      `json:"created_at"`
	UpdatedAt         time.Time      `json:"updated_at"`
}

// TaskListResponse represents a paginated list of tasks
type TaskListResponse struct {
	Tasks      []TaskDTO                `json:"tasks"`
	Pagination utils.PaginationResponse `json:"pagination"`
}

// CompletedTaskDTO represents an archived task in API responses
type CompletedTaskDTO struct {
	ID                string         `json:"id"`
	TaskID            string         `json:"task_id"`
	Title             string         `json:"title"`
	Description       string         `json:"description"`
	ChannelID         string         `json:"channel_id"`
	ChannelName       string         `json:"channel_name"`
	ColumnID          string         `json:"column_id"`
	ColumnName        string         `json:"column_name"`
	AssignedTo        *string        `json:"assigned_to"`
	Assignees         []string       `json:"assignees"`
	DueDate           *time.Time     `json:"due_date"`
	TaskCreatedAt     time.Time      `json:"task_created_at"`
	CompletedBy       string         `json:"completed_by"`
	CompletedAt       time.Time      `json:"completed_at"`
	CustomFieldValues map[string]interface{} `json:"custom_field_values"`
	Notes             string         `json:"notes"`
	Links             []string       `json:"links"`
	VideoURL          string         `json:"video_url,omitempty"`
	ThumbnailURL      string         `json:"thumbnail_url,omitempty"`
	ScriptURL         string         `json:"script_url,omitempty"`
	AudioURL          string         `json:"audio_url,omitempty"`
	OtherLinks        []string       `json:"other_links,omitempty"`
}

// CompletedTaskListResponse represents a paginated list of archived tasks
type CompletedTaskListResponse struct {
	Tasks      []CompletedTaskDTO       `json:"tasks"`
	Pagination utils.PaginationResponse `json:"pagination"`
}

// CreateTaskRequest is the body of POST /channels/:id/tasks
type CreateTaskRequest struct {
	Title             string                     `json:"title" binding:"required"`
	Description       string                     `json:"description"`
	ColumnID          string                     `json:"column_id"`
	AssignedTo        *string                    `json:"assigned_to"`
	DueDate           *time.Time                 `json:"due_date"`
	Notes             string                     `json:"notes"`
	Links             []string                   `json:"links"`
	CustomFieldValues map[string]json.RawMessage `json:"custom_field_values"`
}

// MoveTaskRequest is the body of POST /tasks/:id/move
type MoveTaskRequest struct {
	ColumnID string `json:"column_id" binding:"required"`
}

// CompleteTaskRequest is the body of POST /tasks/:id/complete
type CompleteTaskRequest struct {
	VideoURL     string   `json:"video_url"`
	ThumbnailURL string   `json:"thumbnail_url"`
	ScriptURL    string   `json:"script_url"`
	AudioURL     string   `json:"audio_url"`
	OtherLinks   []string `json:"other_links"`
}

// GenerateTasksRequest is the body of POST /channels/:id/tasks/generate
type GenerateTasksRequest struct {
	Text string `json:"text" binding:"required"`
}

// Conversion functions

// ToUserDTO converts a User model to UserDTO
func ToUserDTO(user models.User) UserDTO {
	return UserDTO{
		ID:       user.ID,
		Username: user.Username,
		Role:     user.Role,
	}
}

func rawValues(values models.FieldValues) map[string]interface{} {
	out := make(map[string]interface{}, len(values))
	for id, v := range values {
		out[id] = v.Raw()
	}
	return out
}

func stringsOrEmpty(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}

// ToTaskDTO converts a Task model to TaskDTO
func ToTaskDTO(task models.Task) TaskDTO {
	return TaskDTO{
		ID:                task.ID,
		ChannelID:         task.ChannelID,
		ColumnID:          task.ColumnID,
		Title:             task.Title,
		Description:       task.Description,
		AssignedTo:        task.AssignedTo,
		DueDate:           task.DueDate,
		CustomFieldValues: rawValues(task.CustomFieldValues),
		Notes:             task.Notes,
		Links:             stringsOrEmpty(task.Links),
		CreatedBy:         task.CreatedBy,
		CreatedAt:         task.CreatedAt,
		UpdatedAt:         task.UpdatedAt,
	}
}

// ToTaskListResponse converts a slice of tasks to TaskListResponse
func ToTaskListResponse(tasks []models.Task, params utils.PaginationParams, total int64) TaskListResponse {
	items := make([]TaskDTO, len(tasks))
	for i, task := range tasks {
		items[i] = ToTaskDTO(task)
	}

	return TaskListResponse{
		Tasks: items,
		Pagination: utils.PaginationResponse{
			Page:  params.Page,
			Limit: params.Limit,
			Total: total,
		},
	}
}

// ToCompletedTaskDTO converts a CompletedTask model to CompletedTaskDTO
func ToCompletedTaskDTO(c models.CompletedTask) CompletedTaskDTO {
	return CompletedTaskDTO{
		ID:                c.ID,
		TaskID:            c.TaskID,
		Title:             c.Title,
		Description:       c.Description,
		ChannelID:         c.ChannelID,
		ChannelName:       c.ChannelName,
		ColumnID:          c.ColumnID,
		ColumnName:        c.ColumnName,
		AssignedTo:        c.AssignedTo,
		Assignees:         stringsOrEmpty(c.Assignees),
		DueDate:           c.DueDate,
		TaskCreatedAt:     c.TaskCreatedAt,
		CompletedBy:       c.CompletedBy,
		CompletedAt:       c.CompletedAt,
		CustomFieldValues: rawValues(c.CustomFieldValues),
		Notes:             c.Notes,
		Links:             stringsOrEmpty(c.Links),
		VideoURL:          c.VideoURL,
		ThumbnailURL:      c.ThumbnailURL,
		ScriptURL:         c.ScriptURL,
		AudioURL:          c.AudioURL,
		OtherLinks:        c.OtherLinks,
	}
}

// ToCompletedTaskListResponse converts archived tasks to a paginated response
func ToCompletedTaskListResponse(completed []models.CompletedTask, params utils.PaginationParams, total int64) CompletedTaskListResponse {
	items := make([]CompletedTaskDTO, len(completed))
	for i, c := range completed {
		items[i] = ToCompletedTaskDTO(c)
	}

	return CompletedTaskListResponse{
		Tasks: items,
		Pagination: utils.PaginationResponse{
			Page:  params.Page,
			Limit: params.Limit,
			Total: total,
		},
	}
}
