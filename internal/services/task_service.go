package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/yukikurage/content-pipeline/internal/constants"
	"github.com/yukikurage/content-pipeline/internal/lock"
	"github.com/yukikurage/content-pipeline/internal/logging"
	"github.com/yukikurage/content-pipeline/internal/models"
	"github.com/yukikurage/content-pipeline/internal/repository"
	"github.com/yukikurage/content-pipeline/internal/workflow"
	"gorm.io/gorm"
)

var (
	ErrTitleRequired          = errors.New("title is required")
	ErrTitleEmpty             = errors.New("title cannot be empty")
	ErrChannelArchived        = errors.New("channel is archived")
	ErrInvalidAssignee        = errors.New("assignee is not a member of the channel")
	ErrInvalidLink            = errors.New("links must be absolute URLs")
	ErrNotTaskCreator         = errors.New("only the task creator or a channel manager can delete this task")
	ErrAIServiceNotConfigured = errors.New("AI service is not configured")
	ErrAINoTasksGenerated     = errors.New("AI did not generate any tasks")
	ErrAINoValidTasks         = errors.New("no valid tasks could be created from AI output")
)

// TaskService handles task lifecycle business logic
type TaskService struct {
	taskRepo      repository.TaskRepository
	channelRepo   repository.ChannelRepository
	eventRepo     repository.StageEventRepository
	completedRepo repository.CompletedTaskRepository
	locks         *lock.Registry
	generator     TaskGenerator
	notifier      Notifier
	now           Clock
}

// NewTaskService creates a new TaskService. generator may be nil.
func NewTaskService(
	taskRepo repository.TaskRepository,
	channelRepo repository.ChannelRepository,
	eventRepo repository.StageEventRepository,
	completedRepo repository.CompletedTaskRepository,
	locks *lock.Registry,
	generator TaskGenerator,
) *TaskService {
	return &TaskService{
		taskRepo:      taskRepo,
		channelRepo:   channelRepo,
		eventRepo:     eventRepo,
		completedRepo: completedRepo,
		locks:         locks,
		generator:     generator,
		notifier:      nopNotifier{},
		now:           time.Now,
	}
}

// SetNotifier routes committed task changes to n.
func (s *TaskService) SetNotifier(n Notifier) {
	if n == nil {
		n = nopNotifier{}
	}
	s.notifier = n
}

// SetClock replaces the time source used for events and archival.
func (s *TaskService) SetClock(c Clock) {
	s.now = c
}

// ListTasksInput represents filters for listing tasks
type ListTasksInput struct {
	ChannelID  string
	ColumnID   *string
	AssignedTo *string
	Page       int
	PageSize   int
}

// CreateTaskInput represents input for creating a task. CustomFieldValues
// maps field ids to raw JSON values.
type CreateTaskInput struct {
	ChannelID         string
	ColumnID          string
	Title             string
	Description       string
	AssignedTo        *string
	DueDate           *time.Time
	Notes             string
	Links             []string
	CustomFieldValues map[string]json.RawMessage
	Actor             *models.User
}

// UpdateTaskInput represents input for updating a task
type UpdateTaskInput struct {
	Title             *string
	Description       *string
	DueDate           *time.Time
	ClearDueDate      bool
	AssignedTo        *string
	ClearAssignee     bool
	Notes             *string
	Links             []string
	CustomFieldValues map[string]json.RawMessage
}

// ListTasks returns the active tasks of a channel
func (s *TaskService) ListTasks(input ListTasksInput) ([]models.Task, int64, error) {
	tasks, total, err := s.taskRepo.List(repository.TaskFilter{
		ChannelID:  input.ChannelID,
		ColumnID:   input.ColumnID,
		AssignedTo: input.AssignedTo,
		Page:       input.Page,
		PageSize:   input.PageSize,
	})
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list tasks: %w", err)
	}
	return tasks, total, nil
}

// GetTask returns an active task
func (s *TaskService) GetTask(taskID string) (*models.Task, error) {
	return s.findTask(taskID)
}

// CreateTask creates a task in the requested column, or the first one
func (s *TaskService) CreateTask(input CreateTaskInput) (*models.Task, error) {
	title := strings.TrimSpace(input.Title)
	if title == "" {
		return nil, ErrTitleRequired
	}
	links, err := normalizeLinks(input.Links)
	if err != nil {
		return nil, err
	}

	unlock := s.locks.RLock(channelKey(input.ChannelID))
	defer unlock()

	channel, err := s.findChannel(input.ChannelID)
	if err != nil {
		return nil, err
	}
	if channel.Archived {
		return nil, ErrChannelArchived
	}

	columnID := input.ColumnID
	if columnID == "" {
		columnID = channel.Columns[0].ID
	}
	if workflow.ColumnIndex(channel.Columns, columnID) < 0 {
		return nil, fmt.Errorf("%w: %s", workflow.ErrInvalidColumn, columnID)
	}
	if len(channel.Columns) > 1 && workflow.IsTerminal(channel, columnID) {
		return nil, fmt.Errorf("%w: tasks cannot start in the terminal column", workflow.ErrInvalidColumn)
	}

	task := &models.Task{
		ChannelID:   channel.ID,
		ColumnID:    columnID,
		Title:       title,
		Description: input.Description,
		DueDate:     input.DueDate,
		Notes:       input.Notes,
		Links:       links,
		CreatedBy:   input.Actor.ID,
	}

	if input.AssignedTo != nil {
		if !channel.IsMember(*input.AssignedTo) {
			return nil, ErrInvalidAssignee
		}
		task.AssignedTo = input.AssignedTo
	} else {
		task.AssignedTo = workflow.ResolveAssignee(channel, columnID)
	}

	values, err := workflow.ApplyFieldValues(channel, task, input.Actor, input.CustomFieldValues)
	if err != nil {
		return nil, err
	}
	task.CustomFieldValues = values

	if err := s.taskRepo.Create(task); err != nil {
		return nil, fmt.Errorf("failed to create task: %w", err)
	}

	logging.Logger.WithFields(logrus.Fields{
		"task_id":    task.ID,
		"channel_id": channel.ID,
		"column_id":  columnID,
	}).Info("task created")
	s.notifier.Notify(channel.ID, NotifyTaskCreated, task)

	return task, nil
}

// UpdateTask updates task details and custom field values. Field edits are
// permission checked; any denial rejects the whole update.
func (s *TaskService) UpdateTask(taskID string, actor *models.User, input UpdateTaskInput) (*models.Task, error) {
	task, channel, unlock, err := s.lockTask(taskID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	values, err := workflow.ApplyFieldValues(channel, task, actor, input.CustomFieldValues)
	if err != nil {
		return nil, err
	}

	if input.Title != nil {
		title := strings.TrimSpace(*input.Title)
		if title == "" {
			return nil, ErrTitleEmpty
		}
		task.Title = title
	}
	if input.Description != nil {
		task.Description = *input.Description
	}
	if input.ClearDueDate {
		task.DueDate = nil
	} else if input.DueDate != nil {
		task.DueDate = input.DueDate
	}
	if input.ClearAssignee {
		task.AssignedTo = nil
	} else if input.AssignedTo != nil {
		if !channel.IsMember(*input.AssignedTo) {
			return nil, ErrInvalidAssignee
		}
		task.AssignedTo = input.AssignedTo
	}
	if input.Notes != nil {
		task.Notes = *input.Notes
	}
	if input.Links != nil {
		links, err := normalizeLinks(input.Links)
		if err != nil {
			return nil, err
		}
		task.Links = links
	}
	task.CustomFieldValues = values

	if err := s.taskRepo.Update(task); err != nil {
		return nil, fmt.Errorf("failed to update task: %w", err)
	}
	s.notifier.Notify(channel.ID, NotifyTaskUpdated, task)

	return task, nil
}

// DeleteTask deletes an active task. Its stage events are kept.
func (s *TaskService) DeleteTask(taskID string, actor *models.User) error {
	task, channel, unlock, err := s.lockTask(taskID)
	if err != nil {
		return err
	}
	defer unlock()

	if task.CreatedBy != actor.ID && !CanAdministerChannel(channel, actor) {
		return ErrNotTaskCreator
	}

	if err := s.taskRepo.Delete(taskID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return workflow.ErrTaskNotFound
		}
		return fmt.Errorf("failed to delete task: %w", err)
	}

	logging.Logger.WithFields(logrus.Fields{
		"task_id":    taskID,
		"channel_id": channel.ID,
		"actor":      actor.ID,
	}).Info("task deleted")
	s.notifier.Notify(channel.ID, NotifyTaskDeleted, map[string]string{"id": taskID})

	return nil
}

// AdvanceTask moves a task to the next column. A task in the terminal column
// yields workflow.ErrAlreadyTerminal and is left untouched.
func (s *TaskService) AdvanceTask(taskID string, actor *models.User) (*models.Task, error) {
	task, channel, unlock, err := s.lockTask(taskID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	next, err := workflow.NextColumn(channel, task.ColumnID)
	if err != nil {
		return nil, err
	}
	if err := workflow.CheckRequiredFields(channel, task); err != nil {
		return nil, err
	}

	return s.transition(channel, task, next.ID, actor)
}

// MoveTaskToColumn moves a task straight to columnID. Moving into the column
// the task already occupies returns it unchanged.
func (s *TaskService) MoveTaskToColumn(taskID, columnID string, actor *models.User) (*models.Task, error) {
	task, channel, unlock, err := s.lockTask(taskID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	if workflow.ColumnIndex(channel.Columns, columnID) < 0 {
		return nil, fmt.Errorf("%w: %s", workflow.ErrInvalidColumn, columnID)
	}
	if columnID == task.ColumnID {
		return task, nil
	}
	if err := workflow.CheckRequiredFields(channel, task); err != nil {
		return nil, err
	}

	return s.transition(channel, task, columnID, actor)
}

// CompleteTask archives a task sitting in the terminal column and removes it
// from the active set
func (s *TaskService) CompleteTask(taskID string, actor *models.User, outputs models.TerminalOutputs) (*models.CompletedTask, error) {
	task, channel, unlock, err := s.lockTask(taskID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	terminal, err := workflow.TerminalColumn(channel)
	if err != nil {
		return nil, err
	}
	if task.ColumnID != terminal.ID {
		return nil, workflow.ErrNotInTerminalColumn
	}
	if err := workflow.CheckRequiredFields(channel, task); err != nil {
		return nil, err
	}
	if err := validateOutputs(outputs); err != nil {
		return nil, err
	}

	history, err := s.eventRepo.ListByTask(task.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load task history: %w", err)
	}

	now := s.now()
	completed := &models.CompletedTask{
		TaskID:            task.ID,
		Title:             task.Title,
		Description:       task.Description,
		ChannelID:         channel.ID,
		ChannelName:       channel.Name,
		ColumnID:          terminal.ID,
		ColumnName:        terminal.Name,
		AssignedTo:        task.AssignedTo,
		Assignees:         collectAssignees(task, history),
		DueDate:           task.DueDate,
		TaskCreatedAt:     task.CreatedAt,
		CompletedBy:       actor.ID,
		CompletedAt:       now,
		CustomFieldValues: task.CustomFieldValues.Clone(),
		Notes:             task.Notes,
		Links:             task.Links,
		VideoURL:          outputs.VideoURL,
		ThumbnailURL:      outputs.ThumbnailURL,
		ScriptURL:         outputs.ScriptURL,
		AudioURL:          outputs.AudioURL,
		OtherLinks:        outputs.OtherLinks,
	}
	finalized := &models.StageEvent{
		TaskID:       task.ID,
		ChannelID:    channel.ID,
		ActorUserID:  actor.ID,
		FromColumnID: terminal.ID,
		ToColumnID:   terminal.ID,
		EventType:    models.EventFinalized,
		OccurredAt:   now,
	}

	if err := s.taskRepo.Archive(completed, finalized); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, workflow.ErrTaskNotFound
		}
		return nil, fmt.Errorf("failed to archive task: %w", err)
	}

	logging.Logger.WithFields(logrus.Fields{
		"task_id":    task.ID,
		"channel_id": channel.ID,
		"actor":      actor.ID,
	}).Info("task completed")
	s.notifier.Notify(channel.ID, NotifyTaskCompleted, completed)

	return completed, nil
}

// ListStageEvents returns a task's event history in workflow order. The
// history outlives the task, so archived task ids are accepted too.
func (s *TaskService) ListStageEvents(taskID string) ([]models.StageEvent, error) {
	events, err := s.eventRepo.ListByTask(taskID)
	if err != nil {
		return nil, fmt.Errorf("failed to list stage events: %w", err)
	}
	return events, nil
}

// ListCompletedTasks returns archived tasks of a channel, newest first
func (s *TaskService) ListCompletedTasks(channelID string, page, pageSize int) ([]models.CompletedTask, int64, error) {
	completed, total, err := s.completedRepo.ListByChannel(channelID, page, pageSize)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list completed tasks: %w", err)
	}
	return completed, total, nil
}

// GenerateTasksInput represents input for AI task generation
type GenerateTasksInput struct {
	ChannelID string
	Text      string
}

// GenerateTasks asks the generator for task suggestions for a channel.
// Nothing is stored; callers create the tasks they accept.
func (s *TaskService) GenerateTasks(ctx context.Context, input GenerateTasksInput) ([]GeneratedTask, error) {
	if s.generator == nil {
		return nil, ErrAIServiceNotConfigured
	}

	channel, err := s.findChannel(input.ChannelID)
	if err != nil {
		return nil, err
	}
	columns := make([]string, 0, len(channel.Columns))
	for _, col := range channel.Columns {
		columns = append(columns, col.Name)
	}

	aiTasks, err := s.generator.GenerateTasksFromText(ctx, input.Text, columns)
	if err != nil {
		return nil, fmt.Errorf("failed to generate tasks: %w", err)
	}

	if len(aiTasks) == 0 {
		return nil, ErrAINoTasksGenerated
	}
	if len(aiTasks) > constants.MaxAIGeneratedTasks {
		return nil, fmt.Errorf("AI generated too many tasks (max %d)", constants.MaxAIGeneratedTasks)
	}

	validTasks := make([]GeneratedTask, 0, len(aiTasks))
	cutoff := s.now().Add(-24 * time.Hour)
	for _, aiTask := range aiTasks {
		if strings.TrimSpace(aiTask.Title) == "" {
			continue
		}

		if aiTask.DueDate != nil && aiTask.DueDate.Before(cutoff) {
			aiTask.DueDate = nil
		}

		validTasks = append(validTasks, aiTask)
	}

	if len(validTasks) == 0 {
		return nil, ErrAINoValidTasks
	}

	return validTasks, nil
}

// transition moves task into columnID and records the stage event in the
// same transaction
func (s *TaskService) transition(channel *models.Channel, task *models.Task, columnID string, actor *models.User) (*models.Task, error) {
	from := task.ColumnID
	task.ColumnID = columnID
	task.AssignedTo = workflow.ResolveAssignee(channel, columnID)

	event := &models.StageEvent{
		TaskID:       task.ID,
		ChannelID:    channel.ID,
		ActorUserID:  actor.ID,
		FromColumnID: from,
		ToColumnID:   columnID,
		EventType:    models.EventStageCompleted,
		OccurredAt:   s.now(),
	}
	if err := s.taskRepo.Transition(task, event); err != nil {
		return nil, fmt.Errorf("failed to record transition: %w", err)
	}

	logging.Logger.WithFields(logrus.Fields{
		"task_id":  task.ID,
		"from":     from,
		"to":       columnID,
		"actor":    actor.ID,
		"sequence": event.Sequence,
	}).Info("task moved")
	s.notifier.Notify(channel.ID, NotifyTaskMoved, event)

	return task, nil
}

// lockTask takes the channel lock shared and the task lock exclusive, then
// loads the current task and channel. The caller must call unlock.
func (s *TaskService) lockTask(taskID string) (*models.Task, *models.Channel, func(), error) {
	task, err := s.findTask(taskID)
	if err != nil {
		return nil, nil, nil, err
	}

	unlockChannel := s.locks.RLock(channelKey(task.ChannelID))
	unlockTask := s.locks.Lock(taskKey(taskID))
	unlock := func() {
		unlockTask()
		unlockChannel()
	}

	// Reload under the lock; the task may have moved or been archived.
	task, err = s.findTask(taskID)
	if err != nil {
		unlock()
		return nil, nil, nil, err
	}
	channel, err := s.findChannel(task.ChannelID)
	if err != nil {
		unlock()
		return nil, nil, nil, err
	}
	return task, channel, unlock, nil
}

func (s *TaskService) findTask(taskID string) (*models.Task, error) {
	task, err := s.taskRepo.FindByID(taskID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, workflow.ErrTaskNotFound
		}
		return nil, fmt.Errorf("failed to find task: %w", err)
	}
	return task, nil
}

func (s *TaskService) findChannel(channelID string) (*models.Channel, error) {
	channel, err := s.channelRepo.FindByID(channelID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, workflow.ErrChannelNotFound
		}
		return nil, fmt.Errorf("failed to find channel: %w", err)
	}
	workflow.SortColumns(channel.Columns)
	if len(channel.Columns) == 0 {
		return nil, workflow.ErrNoColumns
	}
	return channel, nil
}

// collectAssignees lists everyone who worked the task: the stage event actors
// in order of first appearance, then the final assignee
func collectAssignees(task *models.Task, history []models.StageEvent) []string {
	ids := make([]string, 0, len(history)+1)
	for _, ev := range history {
		ids = append(ids, ev.ActorUserID)
	}
	ids = append(ids, task.Assignee())
	return uniqueStrings(ids)
}

func normalizeLinks(links []string) ([]string, error) {
	out := make([]string, 0, len(links))
	for _, link := range links {
		link = strings.TrimSpace(link)
		if link == "" {
			continue
		}
		if !workflow.ValidLink(link) {
			return nil, fmt.Errorf("%w: %s", ErrInvalidLink, link)
		}
		out = append(out, link)
	}
	return out, nil
}

func validateOutputs(outputs models.TerminalOutputs) error {
	for _, link := range []string{outputs.VideoURL, outputs.ThumbnailURL, outputs.ScriptURL, outputs.AudioURL} {
		if link != "" && !workflow.ValidLink(link) {
			return fmt.Errorf("%w: %s", ErrInvalidLink, link)
		}
	}
	_, err := normalizeLinks(outputs.OtherLinks)
	return err
}
