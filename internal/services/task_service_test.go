package services

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/yukikurage/content-pipeline/internal/models"
	"github.com/yukikurage/content-pipeline/internal/workflow"
)

func (suite *ServiceTestSuite) TestReviewsScenario() {
	channel, field := suite.createReviews()
	script, edit, upload := channel.Columns[0], channel.Columns[1], channel.Columns[2]

	task := suite.createTask(channel, "T")
	suite.Equal(script.ID, task.ColumnID)

	_, err := suite.tasks.AdvanceTask(task.ID, suite.editor)
	suite.Require().ErrorIs(err, workflow.ErrRequiredFieldsMissing)
	var missing *workflow.RequiredFieldsError
	suite.Require().True(errors.As(err, &missing))
	suite.Equal([]string{"ScriptLink"}, missing.Fields)
	suite.Empty(suite.events(task.ID))

	suite.setField(task, field.ID, "http://x")

	task, err = suite.tasks.AdvanceTask(task.ID, suite.editor)
	suite.Require().NoError(err)
	suite.Equal(edit.ID, task.ColumnID)
	events := suite.events(task.ID)
	suite.Require().Len(events, 1)
	suite.Equal(script.ID, events[0].FromColumnID)
	suite.Equal(edit.ID, events[0].ToColumnID)
	suite.Equal(models.EventStageCompleted, events[0].EventType)

	task, err = suite.tasks.AdvanceTask(task.ID, suite.editor)
	suite.Require().NoError(err)
	suite.Equal(upload.ID, task.ColumnID)
	events = suite.events(task.ID)
	suite.Require().Len(events, 2)
	suite.Equal(edit.ID, events[1].FromColumnID)
	suite.Equal(upload.ID, events[1].ToColumnID)

	_, err = suite.tasks.AdvanceTask(task.ID, suite.editor)
	suite.ErrorIs(err, workflow.ErrAlreadyTerminal)
	suite.Len(suite.events(task.ID), 2)
	stored, err := suite.tasks.GetTask(task.ID)
	suite.Require().NoError(err)
	suite.Equal(upload.ID, stored.ColumnID)

	completed, err := suite.tasks.CompleteTask(task.ID, suite.owner, models.TerminalOutputs{VideoURL: "https://youtu.be/abc"})
	suite.Require().NoError(err)
	suite.Equal(task.ID, completed.TaskID)
	suite.Equal("Upload", completed.ColumnName)
	suite.Equal("Reviews", completed.ChannelName)
	suite.Equal("https://youtu.be/abc", completed.VideoURL)

	_, err = suite.tasks.GetTask(task.ID)
	suite.ErrorIs(err, workflow.ErrTaskNotFound)
	active, total, err := suite.tasks.ListTasks(ListTasksInput{ChannelID: channel.ID})
	suite.Require().NoError(err)
	suite.Empty(active)
	suite.Zero(total)

	archived, total, err := suite.tasks.ListCompletedTasks(channel.ID, 1, 20)
	suite.Require().NoError(err)
	suite.EqualValues(1, total)
	suite.Equal(task.ID, archived[0].TaskID)

	_, err = suite.tasks.CompleteTask(task.ID, suite.owner, models.TerminalOutputs{})
	suite.ErrorIs(err, workflow.ErrTaskNotFound)

	events = suite.events(task.ID)
	suite.Require().Len(events, 3)
	suite.Equal(models.EventFinalized, events[2].EventType)
	suite.Equal(upload.ID, events[2].FromColumnID)
	suite.Equal(upload.ID, events[2].ToColumnID)
	for i := 1; i < len(events); i++ {
		suite.True(events[i].OccurredAt.After(events[i-1].OccurredAt))
		suite.Equal(events[i-1].Sequence+1, events[i].Sequence)
	}

	suite.Contains(suite.notifier.Kinds(), NotifyTaskMoved)
	suite.Contains(suite.notifier.Kinds(), NotifyTaskCompleted)
}

func (suite *ServiceTestSuite) TestCompleteTask_SnapshotsAssignees() {
	channel, field := suite.createReviews()
	task := suite.createTask(channel, "Unboxing")
	suite.setField(task, field.ID, "draft")

	_, err := suite.tasks.AdvanceTask(task.ID, suite.manager)
	suite.Require().NoError(err)
	_, err = suite.tasks.AdvanceTask(task.ID, suite.editor)
	suite.Require().NoError(err)

	completed, err := suite.tasks.CompleteTask(task.ID, suite.manager, models.TerminalOutputs{
		OtherLinks: []string{"https://example.com/cut"},
	})
	suite.Require().NoError(err)
	suite.ElementsMatch([]string{suite.manager.ID, suite.editor.ID}, []string(completed.Assignees))
	suite.Equal(suite.manager.ID, completed.CompletedBy)
	suite.Equal("draft", completed.CustomFieldValues[field.ID].Text)
	suite.Equal(task.CreatedAt.Unix(), completed.TaskCreatedAt.Unix())
}

func (suite *ServiceTestSuite) TestCompleteTask_Rejections() {
	channel, field := suite.createReviews()
	task := suite.createTask(channel, "Teardown")

	_, err := suite.tasks.CompleteTask(task.ID, suite.owner, models.TerminalOutputs{})
	suite.ErrorIs(err, workflow.ErrNotInTerminalColumn)

	suite.setField(task, field.ID, "ok")
	_, err = suite.tasks.MoveTaskToColumn(task.ID, channel.Columns[2].ID, suite.editor)
	suite.Require().NoError(err)

	_, err = suite.tasks.CompleteTask(task.ID, suite.owner, models.TerminalOutputs{VideoURL: "not a url"})
	suite.ErrorIs(err, ErrInvalidLink)

	_, err = suite.tasks.GetTask(task.ID)
	suite.NoError(err, "a rejected completion keeps the task active")
	suite.Len(suite.events(task.ID), 1)
}

func (suite *ServiceTestSuite) TestCompleteTask_RequiresTerminalFields() {
	channel, _ := suite.createReviews()
	upload := channel.Columns[2]
	_, err := suite.channels.AddCustomField(channel.ID, CustomFieldInput{
		Name:              "Published URL",
		Type:              models.FieldTypeLink,
		RequiredInColumns: []string{upload.ID},
	})
	suite.Require().NoError(err)

	task := suite.createTask(channel, "Review")
	suite.Require().NoError(suite.db.Model(&models.Task{}).Where("id = ?", task.ID).Update("column_id", upload.ID).Error)

	_, err = suite.tasks.CompleteTask(task.ID, suite.owner, models.TerminalOutputs{})
	suite.ErrorIs(err, workflow.ErrRequiredFieldsMissing)
}

func (suite *ServiceTestSuite) TestAdvanceTask_AssignsResponsibleUser() {
	channel, field := suite.createReviews()
	task := suite.createTask(channel, "Vlog")
	suite.Nil(task.AssignedTo)

	suite.setField(task, field.ID, "done")
	task, err := suite.tasks.AdvanceTask(task.ID, suite.manager)
	suite.Require().NoError(err)
	suite.Require().NotNil(task.AssignedTo)
	suite.Equal(suite.editor.ID, *task.AssignedTo)

	task, err = suite.tasks.AdvanceTask(task.ID, suite.editor)
	suite.Require().NoError(err)
	suite.Nil(task.AssignedTo)
}

func (suite *ServiceTestSuite) TestMoveTaskToColumn() {
	channel, field := suite.createReviews()
	script, upload := channel.Columns[0], channel.Columns[2]
	task := suite.createTask(channel, "Shorts")

	_, err := suite.tasks.MoveTaskToColumn(task.ID, "nowhere", suite.editor)
	suite.ErrorIs(err, workflow.ErrInvalidColumn)

	same, err := suite.tasks.MoveTaskToColumn(task.ID, script.ID, suite.editor)
	suite.Require().NoError(err)
	suite.Equal(script.ID, same.ColumnID)
	suite.Empty(suite.events(task.ID))

	_, err = suite.tasks.MoveTaskToColumn(task.ID, upload.ID, suite.outsider)
	suite.ErrorIs(err, workflow.ErrRequiredFieldsMissing)
	suite.Empty(suite.events(task.ID))

	suite.setField(task, field.ID, "written")
	moved, err := suite.tasks.MoveTaskToColumn(task.ID, upload.ID, suite.outsider)
	suite.Require().NoError(err)
	suite.Equal(upload.ID, moved.ColumnID)

	events := suite.events(task.ID)
	suite.Require().Len(events, 1)
	suite.Equal(script.ID, events[0].FromColumnID)
	suite.Equal(upload.ID, events[0].ToColumnID)
	suite.Equal(suite.outsider.ID, events[0].ActorUserID)

	back, err := suite.tasks.MoveTaskToColumn(task.ID, script.ID, suite.editor)
	suite.Require().NoError(err)
	suite.Equal(script.ID, back.ColumnID)
	suite.Len(suite.events(task.ID), 2)
	suite.assertTasksInChannelColumns(channel.ID)
}

func (suite *ServiceTestSuite) TestCreateTask_Validation() {
	channel, _ := suite.createReviews()

	_, err := suite.tasks.CreateTask(CreateTaskInput{ChannelID: channel.ID, Title: "  ", Actor: suite.editor})
	suite.ErrorIs(err, ErrTitleRequired)

	_, err = suite.tasks.CreateTask(CreateTaskInput{ChannelID: "missing", Title: "x", Actor: suite.editor})
	suite.ErrorIs(err, workflow.ErrChannelNotFound)

	_, err = suite.tasks.CreateTask(CreateTaskInput{ChannelID: channel.ID, ColumnID: "nowhere", Title: "x", Actor: suite.editor})
	suite.ErrorIs(err, workflow.ErrInvalidColumn)

	_, err = suite.tasks.CreateTask(CreateTaskInput{ChannelID: channel.ID, ColumnID: channel.Columns[2].ID, Title: "x", Actor: suite.editor})
	suite.ErrorIs(err, workflow.ErrInvalidColumn)

	_, err = suite.tasks.CreateTask(CreateTaskInput{ChannelID: channel.ID, Title: "x", AssignedTo: &suite.outsider.ID, Actor: suite.editor})
	suite.ErrorIs(err, ErrInvalidAssignee)

	_, err = suite.tasks.CreateTask(CreateTaskInput{ChannelID: channel.ID, Title: "x", Links: []string{"notalink"}, Actor: suite.editor})
	suite.ErrorIs(err, ErrInvalidLink)

	archived := true
	_, err = suite.channels.UpdateChannel(channel.ID, UpdateChannelInput{Archived: &archived})
	suite.Require().NoError(err)
	_, err = suite.tasks.CreateTask(CreateTaskInput{ChannelID: channel.ID, Title: "x", Actor: suite.editor})
	suite.ErrorIs(err, ErrChannelArchived)
}

func (suite *ServiceTestSuite) TestCreateTask_InEditColumnResolvesAssignee() {
	channel, _ := suite.createReviews()
	due := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)

	task, err := suite.tasks.CreateTask(CreateTaskInput{
		ChannelID: channel.ID,
		ColumnID:  channel.Columns[1].ID,
		Title:     "Interview",
		DueDate:   &due,
		Links:     []string{" https://example.com/brief "},
		Actor:     suite.manager,
	})
	suite.Require().NoError(err)
	suite.Require().NotNil(task.AssignedTo)
	suite.Equal(suite.editor.ID, *task.AssignedTo)
	suite.Equal([]string{"https://example.com/brief"}, []string(task.Links))
	suite.Equal(suite.manager.ID, task.CreatedBy)
}

func (suite *ServiceTestSuite) TestUpdateTask_FieldPermissions() {
	channel, _ := suite.createReviews()
	restricted, err := suite.channels.AddCustomField(channel.ID, CustomFieldInput{
		Name: "Cut notes",
		Type: models.FieldTypeText,
		Permissions: &models.FieldPermissions{
			EditableByColumnResponsibility: true,
		},
	})
	suite.Require().NoError(err)
	task := suite.createTask(channel, "Podcast")

	newTitle := "Renamed"
	_, err = suite.tasks.UpdateTask(task.ID, suite.editor, UpdateTaskInput{
		Title:             &newTitle,
		CustomFieldValues: map[string]json.RawMessage{restricted.ID: json.RawMessage(`"tighten intro"`)},
	})
	suite.ErrorIs(err, workflow.ErrForbidden)
	var denied *workflow.FieldPermissionError
	suite.Require().True(errors.As(err, &denied))
	suite.Equal(restricted.ID, denied.FieldID)

	stored, err := suite.tasks.GetTask(task.ID)
	suite.Require().NoError(err)
	suite.Equal("Podcast", stored.Title)
	suite.NotContains(stored.CustomFieldValues, restricted.ID)

	// Owners bypass field permissions.
	_, err = suite.tasks.UpdateTask(task.ID, suite.owner, UpdateTaskInput{
		CustomFieldValues: map[string]json.RawMessage{restricted.ID: json.RawMessage(`"owner note"`)},
	})
	suite.Require().NoError(err)

	suite.Require().NoError(suite.db.Model(&models.Task{}).Where("id = ?", task.ID).Update("column_id", channel.Columns[1].ID).Error)
	updated, err := suite.tasks.UpdateTask(task.ID, suite.editor, UpdateTaskInput{
		Title:             &newTitle,
		CustomFieldValues: map[string]json.RawMessage{restricted.ID: json.RawMessage(`"tighten intro"`)},
	})
	suite.Require().NoError(err)
	suite.Equal("Renamed", updated.Title)
	suite.Equal("tighten intro", updated.CustomFieldValues[restricted.ID].Text)
}

func (suite *ServiceTestSuite) TestUpdateTask_Details() {
	channel, field := suite.createReviews()
	task := suite.createTask(channel, "Review")
	due := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	notes := "b-roll needed"

	updated, err := suite.tasks.UpdateTask(task.ID, suite.editor, UpdateTaskInput{
		DueDate:    &due,
		AssignedTo: &suite.editor.ID,
		Notes:      &notes,
		Links:      []string{"https://example.com/a"},
	})
	suite.Require().NoError(err)
	suite.Require().NotNil(updated.DueDate)
	suite.True(due.Equal(*updated.DueDate))
	suite.Equal(suite.editor.ID, updated.Assignee())
	suite.Equal(notes, updated.Notes)

	updated, err = suite.tasks.UpdateTask(task.ID, suite.editor, UpdateTaskInput{ClearDueDate: true, ClearAssignee: true})
	suite.Require().NoError(err)
	suite.Nil(updated.DueDate)
	suite.Nil(updated.AssignedTo)

	empty := " "
	_, err = suite.tasks.UpdateTask(task.ID, suite.editor, UpdateTaskInput{Title: &empty})
	suite.ErrorIs(err, ErrTitleEmpty)

	_, err = suite.tasks.UpdateTask(task.ID, suite.editor, UpdateTaskInput{AssignedTo: &suite.outsider.ID})
	suite.ErrorIs(err, ErrInvalidAssignee)

	_, err = suite.tasks.UpdateTask(task.ID, suite.editor, UpdateTaskInput{
		CustomFieldValues: map[string]json.RawMessage{"unknown": json.RawMessage(`"x"`)},
	})
	suite.ErrorIs(err, workflow.ErrUnknownField)

	suite.setField(task, field.ID, "value")
	cleared, err := suite.tasks.UpdateTask(task.ID, suite.editor, UpdateTaskInput{
		CustomFieldValues: map[string]json.RawMessage{field.ID: json.RawMessage(`null`)},
	})
	suite.Require().NoError(err)
	suite.NotContains(cleared.CustomFieldValues, field.ID)

	_, err = suite.tasks.UpdateTask("missing", suite.editor, UpdateTaskInput{})
	suite.ErrorIs(err, workflow.ErrTaskNotFound)
}

func (suite *ServiceTestSuite) TestDeleteTask() {
	channel, field := suite.createReviews()
	task := suite.createTask(channel, "Collab")
	suite.setField(task, field.ID, "x")
	_, err := suite.tasks.AdvanceTask(task.ID, suite.editor)
	suite.Require().NoError(err)

	err = suite.tasks.DeleteTask(task.ID, suite.outsider)
	suite.ErrorIs(err, ErrNotTaskCreator)

	suite.Require().NoError(suite.tasks.DeleteTask(task.ID, suite.manager))
	_, err = suite.tasks.GetTask(task.ID)
	suite.ErrorIs(err, workflow.ErrTaskNotFound)
	suite.Len(suite.events(task.ID), 1, "history outlives the task")

	err = suite.tasks.DeleteTask(task.ID, suite.manager)
	suite.ErrorIs(err, workflow.ErrTaskNotFound)

	own := suite.createTask(channel, "Mine")
	suite.NoError(suite.tasks.DeleteTask(own.ID, suite.editor))
	suite.Contains(suite.notifier.Kinds(), NotifyTaskDeleted)
}

func (suite *ServiceTestSuite) TestListTasks_Filters() {
	channel, field := suite.createReviews()
	first := suite.createTask(channel, "One")
	suite.createTask(channel, "Two")
	suite.setField(first, field.ID, "x")
	_, err := suite.tasks.AdvanceTask(first.ID, suite.editor)
	suite.Require().NoError(err)

	scriptID := channel.Columns[0].ID
	tasks, total, err := suite.tasks.ListTasks(ListTasksInput{ChannelID: channel.ID, ColumnID: &scriptID})
	suite.Require().NoError(err)
	suite.EqualValues(1, total)
	suite.Equal("Two", tasks[0].Title)

	tasks, _, err = suite.tasks.ListTasks(ListTasksInput{ChannelID: channel.ID, AssignedTo: &suite.editor.ID})
	suite.Require().NoError(err)
	suite.Require().Len(tasks, 1)
	suite.Equal("One", tasks[0].Title)

	tasks, total, err = suite.tasks.ListTasks(ListTasksInput{ChannelID: channel.ID, Page: 2, PageSize: 1})
	suite.Require().NoError(err)
	suite.EqualValues(2, total)
	suite.Require().Len(tasks, 1)
	suite.Equal("Two", tasks[0].Title)
}

func (suite *ServiceTestSuite) TestGenerateTasks() {
	channel, _ := suite.createReviews()
	past := suite.now.Add(-72 * time.Hour)
	due := suite.now.Add(72 * time.Hour)
	suite.generator.tasks = []GeneratedTask{
		{Title: "Review the X100", DueDate: &due},
		{Title: "  "},
		{Title: "Old deadline", DueDate: &past},
	}

	tasks, err := suite.tasks.GenerateTasks(context.Background(), GenerateTasksInput{ChannelID: channel.ID, Text: "two reviews"})
	suite.Require().NoError(err)
	suite.Equal([]string{"Script", "Edit", "Upload"}, suite.generator.columns)
	suite.Require().Len(tasks, 2)
	suite.NotNil(tasks[0].DueDate)
	suite.Nil(tasks[1].DueDate)

	active, _, err := suite.tasks.ListTasks(ListTasksInput{ChannelID: channel.ID})
	suite.Require().NoError(err)
	suite.Empty(active, "suggestions are not stored")

	suite.generator.tasks = nil
	_, err = suite.tasks.GenerateTasks(context.Background(), GenerateTasksInput{ChannelID: channel.ID, Text: "nothing"})
	suite.ErrorIs(err, ErrAINoTasksGenerated)

	suite.generator.tasks = []GeneratedTask{{Title: ""}}
	_, err = suite.tasks.GenerateTasks(context.Background(), GenerateTasksInput{ChannelID: channel.ID, Text: "blank"})
	suite.ErrorIs(err, ErrAINoValidTasks)

	suite.generator.err = ErrAIUnavailable
	_, err = suite.tasks.GenerateTasks(context.Background(), GenerateTasksInput{ChannelID: channel.ID, Text: "down"})
	suite.ErrorIs(err, ErrAIUnavailable)

	suite.tasks.generator = nil
	_, err = suite.tasks.GenerateTasks(context.Background(), GenerateTasksInput{ChannelID: channel.ID, Text: "x"})
	suite.ErrorIs(err, ErrAIServiceNotConfigured)
}
