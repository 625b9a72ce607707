package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/yukikurage/content-pipeline/internal/dto"
	apierrors "github.com/yukikurage/content-pipeline/internal/errors"
	"github.com/yukikurage/content-pipeline/internal/middleware"
	"github.com/yukikurage/content-pipeline/internal/models"
	"github.com/yukikurage/content-pipeline/internal/services"
	"github.com/yukikurage/content-pipeline/internal/utils"
	"github.com/yukikurage/content-pipeline/internal/workflow"
)

type TaskHandler struct {
	taskService    *services.TaskService
	channelService *services.ChannelService
}

func NewTaskHandler(taskService *services.TaskService, channelService *services.ChannelService) *TaskHandler {
	return &TaskHandler{
		taskService:    taskService,
		channelService: channelService,
	}
}

// ListTasks returns the active tasks of a channel
// Can filter by column_id and assigned_to
func (h *TaskHandler) ListTasks(c *gin.Context) {
	params := utils.GetPaginationParams(c)

	input := services.ListTasksInput{
		ChannelID: c.Param("id"),
		Page:      params.Page,
		PageSize:  params.Limit,
	}
	if columnID := c.Query("column_id"); columnID != "" {
		input.ColumnID = &columnID
	}
	if assignedTo := c.Query("assigned_to"); assignedTo != "" {
		input.AssignedTo = &assignedTo
	}

	tasks, total, err := h.taskService.ListTasks(input)
	if err != nil {
		respondDomainError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.ToTaskListResponse(tasks, params, total))
}

// GetTask returns a specific task by ID
// Task is already loaded by RequireTaskAccess middleware
func (h *TaskHandler) GetTask(c *gin.Context) {
	task, ok := middleware.GetTask(c)
	if !ok {
		apierrors.InternalError(c, "Task not found in context")
		return
	}

	c.JSON(http.StatusOK, dto.ToTaskDTO(*task))
}

// CreateTask creates a new task in the channel
func (h *TaskHandler) CreateTask(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}

	var req dto.CreateTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.BadRequest(c, "Invalid request body")
		return
	}

	task, err := h.taskService.CreateTask(services.CreateTaskInput{
		ChannelID:         c.Param("id"),
		ColumnID:          req.ColumnID,
		Title:             req.Title,
		Description:       req.Description,
		AssignedTo:        req.AssignedTo,
		DueDate:           req.DueDate,
		Notes:             req.Notes,
		Links:             req.Links,
		CustomFieldValues: req.CustomFieldValues,
		Actor:             user,
	})
	if err != nil {
		respondDomainError(c, err)
		return
	}

	c.JSON(http.StatusCreated, dto.ToTaskDTO(*task))
}

// parseUpdateTask reads a PATCH body. An explicit null clears due_date and
// assigned_to; an omitted key leaves them unchanged.
func parseUpdateTask(raw map[string]json.RawMessage) (services.UpdateTaskInput, error) {
	var input services.UpdateTaskInput

	decode := func(key string, dst interface{}) error {
		if err := json.Unmarshal(raw[key], dst); err != nil {
			return fmt.Errorf("invalid %s", key)
		}
		return nil
	}
	isNull := func(key string) bool {
		return string(raw[key]) == "null"
	}

	if _, ok := raw["title"]; ok {
		if err := decode("title", &input.Title); err != nil {
			return input, err
		}
	}
	if _, ok := raw["description"]; ok {
		if err := decode("description", &input.Description); err != nil {
			return input, err
		}
	}
	if _, ok := raw["notes"]; ok {
		if err := decode("notes", &input.Notes); err != nil {
			return input, err
		}
	}
	if _, ok := raw["due_date"]; ok {
		if isNull("due_date") {
			input.ClearDueDate = true
		} else {
			var due time.Time
			if err := decode("due_date", &due); err != nil {
				return input, err
			}
			input.DueDate = &due
		}
	}
	if _, ok := raw["assigned_to"]; ok {
		if isNull("assigned_to") {
			input.ClearAssignee = true
		} else if err := decode("assigned_to", &input.AssignedTo); err != nil {
			return input, err
		}
	}
	if _, ok := raw["links"]; ok && !isNull("links") {
		input.Links = []string{}
		if err := decode("links", &input.Links); err != nil {
			return input, err
		}
	}
	if _, ok := raw["custom_field_values"]; ok && !isNull("custom_field_values") {
		if err := decode("custom_field_values", &input.CustomFieldValues); err != nil {
			return input, err
		}
	}

	return input, nil
}

// UpdateTask updates task details and custom field values
func (h *TaskHandler) UpdateTask(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}

	var raw map[string]json.RawMessage
	if err := c.ShouldBindJSON(&raw); err != nil {
		apierrors.BadRequest(c, "Invalid request body")
		return
	}

	input, err := parseUpdateTask(raw)
	if err != nil {
		apierrors.BadRequest(c, err.Error())
		return
	}

	task, err := h.taskService.UpdateTask(c.Param("id"), user, input)
	if err != nil {
		respondDomainError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.ToTaskDTO(*task))
}

// DeleteTask deletes a task
// Only the creator or a channel administrator can delete it
func (h *TaskHandler) DeleteTask(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}

	if err := h.taskService.DeleteTask(c.Param("id"), user); err != nil {
		respondDomainError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Task deleted successfully",
	})
}

// AdvanceTask moves a task to the next column
func (h *TaskHandler) AdvanceTask(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}

	task, err := h.taskService.AdvanceTask(c.Param("id"), user)
	if err != nil {
		respondDomainError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.ToTaskDTO(*task))
}

// MoveTask moves a task directly to another column
func (h *TaskHandler) MoveTask(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}

	var req dto.MoveTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.BadRequest(c, "Invalid request body")
		return
	}

	task, err := h.taskService.MoveTaskToColumn(c.Param("id"), req.ColumnID, user)
	if err != nil {
		respondDomainError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.ToTaskDTO(*task))
}

// CompleteTask archives a task from the terminal column
func (h *TaskHandler) CompleteTask(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}

	var req dto.CompleteTaskRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			apierrors.BadRequest(c, "Invalid request body")
			return
		}
	}

	completed, err := h.taskService.CompleteTask(c.Param("id"), user, models.TerminalOutputs{
		VideoURL:     req.VideoURL,
		ThumbnailURL: req.ThumbnailURL,
		ScriptURL:    req.ScriptURL,
		AudioURL:     req.AudioURL,
		OtherLinks:   req.OtherLinks,
	})
	if err != nil {
		respondDomainError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.ToCompletedTaskDTO(*completed))
}

// ListStageEvents returns a task's event history. Archived tasks keep their
// history, so access is checked against the channel the events belong to.
func (h *TaskHandler) ListStageEvents(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}

	taskID := c.Param("id")
	events, err := h.taskService.ListStageEvents(taskID)
	if err != nil {
		respondDomainError(c, err)
		return
	}

	var channelID string
	if len(events) > 0 {
		channelID = events[0].ChannelID
	} else {
		task, err := h.taskService.GetTask(taskID)
		if err != nil {
			respondDomainError(c, err)
			return
		}
		channelID = task.ChannelID
	}

	channel, err := h.channelService.GetChannel(channelID)
	if err != nil || !services.CanAccessChannel(channel, user) {
		if err != nil && !errors.Is(err, workflow.ErrChannelNotFound) {
			respondDomainError(c, err)
			return
		}
		apierrors.NotFound(c, "Task not found")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"events": events,
	})
}

// ListCompletedTasks returns the archive of a channel, newest first
func (h *TaskHandler) ListCompletedTasks(c *gin.Context) {
	params := utils.GetPaginationParams(c)

	completed, total, err := h.taskService.ListCompletedTasks(c.Param("id"), params.Page, params.Limit)
	if err != nil {
		respondDomainError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.ToCompletedTaskListResponse(completed, params, total))
}

// GenerateTasks asks the AI service for task suggestions from a brief.
// Nothing is created; the client submits the tasks it keeps.
func (h *TaskHandler) GenerateTasks(c *gin.Context) {
	var req dto.GenerateTasksRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.BadRequest(c, "Invalid request body")
		return
	}

	tasks, err := h.taskService.GenerateTasks(c.Request.Context(), services.GenerateTasksInput{
		ChannelID: c.Param("id"),
		Text:      req.Text,
	})
	if err != nil {
		respondDomainError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"tasks": tasks,
	})
}
