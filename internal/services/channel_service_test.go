package services

import (
	"github.com/yukikurage/content-pipeline/internal/models"
	"github.com/yukikurage/content-pipeline/internal/workflow"
)

func (suite *ServiceTestSuite) TestCreateChannel() {
	channel, err := suite.channels.CreateChannel(CreateChannelInput{
		Name:    "  Shorts ",
		Columns: []ColumnInput{{Name: "Idea"}, {Name: "Film", Assignees: []string{suite.editor.ID}}, {Name: "Post"}},
		Creator: suite.owner,
	})
	suite.Require().NoError(err)
	suite.Equal("Shorts", channel.Name)
	suite.Equal(suite.owner.ID, channel.ManagerID)
	suite.Require().Len(channel.Columns, 3)
	for i, col := range channel.Columns {
		suite.Equal(i, col.Position)
		suite.NotEmpty(col.ID)
	}
	suite.Equal(map[string][]string{channel.Columns[1].ID: {suite.editor.ID}}, channel.ColumnAssignments())
	suite.Contains(suite.notifier.Kinds(), NotifyChannelUpdated)
}

func (suite *ServiceTestSuite) TestCreateChannel_Rejections() {
	columns := []ColumnInput{{Name: "Only"}}

	_, err := suite.channels.CreateChannel(CreateChannelInput{Name: "", Columns: columns, Creator: suite.owner})
	suite.ErrorIs(err, ErrChannelNameRequired)

	_, err = suite.channels.CreateChannel(CreateChannelInput{Name: "x", Columns: columns, Creator: suite.editor})
	suite.ErrorIs(err, ErrCannotCreateChannel)

	_, err = suite.channels.CreateChannel(CreateChannelInput{Name: "x", Creator: suite.owner})
	suite.ErrorIs(err, workflow.ErrNoColumns)

	_, err = suite.channels.CreateChannel(CreateChannelInput{Name: "x", Columns: []ColumnInput{{Name: " "}}, Creator: suite.owner})
	suite.ErrorIs(err, workflow.ErrInvalidColumn)

	_, err = suite.channels.CreateChannel(CreateChannelInput{Name: "x", Columns: columns, MemberIDs: []string{"ghost"}, Creator: suite.owner})
	suite.ErrorIs(err, ErrUnknownUser)

	_, err = suite.channels.CreateChannel(CreateChannelInput{Name: "x", Columns: []ColumnInput{{ID: "made-up", Name: "A"}}, Creator: suite.owner})
	suite.ErrorIs(err, workflow.ErrInvalidColumn)
}

func (suite *ServiceTestSuite) TestListChannels() {
	reviews, _ := suite.createReviews()
	_, err := suite.channels.CreateChannel(CreateChannelInput{
		Name:    "Private",
		Columns: []ColumnInput{{Name: "Only"}},
		Creator: suite.owner,
	})
	suite.Require().NoError(err)

	all, err := suite.channels.ListChannels(suite.owner, false)
	suite.Require().NoError(err)
	suite.Len(all, 2)

	mine, err := suite.channels.ListChannels(suite.editor, false)
	suite.Require().NoError(err)
	suite.Require().Len(mine, 1)
	suite.Equal(reviews.ID, mine[0].ID)

	managed, err := suite.channels.ListChannels(suite.manager, false)
	suite.Require().NoError(err)
	suite.Len(managed, 1)

	none, err := suite.channels.ListChannels(suite.outsider, false)
	suite.Require().NoError(err)
	suite.Empty(none)

	archived := true
	_, err = suite.channels.UpdateChannel(reviews.ID, UpdateChannelInput{Archived: &archived})
	suite.Require().NoError(err)

	mine, err = suite.channels.ListChannels(suite.editor, false)
	suite.Require().NoError(err)
	suite.Empty(mine)
	mine, err = suite.channels.ListChannels(suite.editor, true)
	suite.Require().NoError(err)
	suite.Len(mine, 1)
}

func (suite *ServiceTestSuite) TestUpdateChannel_ReplacesColumns() {
	channel, field := suite.createReviews()
	script, edit, upload := channel.Columns[0], channel.Columns[1], channel.Columns[2]
	task := suite.createTask(channel, "Blocking")

	replacement := []ColumnInput{
		{ID: edit.ID, Name: "Cut"},
		{ID: upload.ID, Name: "Upload"},
		{Name: "Publish"},
	}
	_, err := suite.channels.UpdateChannel(channel.ID, UpdateChannelInput{Columns: replacement})
	suite.ErrorIs(err, workflow.ErrColumnNotEmpty)

	unchanged, err := suite.channels.GetChannel(channel.ID)
	suite.Require().NoError(err)
	suite.Len(unchanged.Columns, 3)

	suite.Require().NoError(suite.tasks.DeleteTask(task.ID, suite.manager))

	updated, err := suite.channels.UpdateChannel(channel.ID, UpdateChannelInput{Columns: replacement})
	suite.Require().NoError(err)
	suite.Require().Len(updated.Columns, 3)
	suite.Equal(edit.ID, updated.Columns[0].ID)
	suite.Equal("Cut", updated.Columns[0].Name)
	suite.Equal("Publish", updated.Columns[2].Name)

	stored, err := suite.channels.GetChannel(channel.ID)
	suite.Require().NoError(err)
	suite.Require().Len(stored.Columns, 3)
	for i, col := range stored.Columns {
		suite.Equal(i, col.Position)
		suite.NotEqual(script.ID, col.ID)
	}
	f, ok := workflow.FindField(stored, field.ID)
	suite.Require().True(ok)
	suite.NotContains([]string(f.RequiredInColumns), script.ID)
	suite.Equal(map[string][]string{edit.ID: {suite.editor.ID}}, stored.ColumnAssignments())

	_, err = suite.channels.UpdateChannel(channel.ID, UpdateChannelInput{Columns: []ColumnInput{{ID: "unknown", Name: "X"}}})
	suite.ErrorIs(err, workflow.ErrInvalidColumn)
}

func (suite *ServiceTestSuite) TestUpdateChannel_FieldsAndAssignments() {
	channel, field := suite.createReviews()
	upload := channel.Columns[2]
	name := "Reviews & Unboxings"

	updated, err := suite.channels.UpdateChannel(channel.ID, UpdateChannelInput{
		Name: &name,
		CustomFields: []CustomFieldInput{
			{ID: field.ID, Name: "Script doc", Type: models.FieldTypeText},
			{Name: "Platform", Type: models.FieldTypeDropdown, Options: []string{"YouTube", "TikTok"}, ShowOnCard: true},
		},
		ColumnAssignments: map[string][]string{upload.ID: {suite.manager.ID, suite.editor.ID}},
	})
	suite.Require().NoError(err)
	suite.Equal(name, updated.Name)

	stored, err := suite.channels.GetChannel(channel.ID)
	suite.Require().NoError(err)
	suite.Require().Len(stored.CustomFields, 2)
	suite.Equal("Script doc", stored.CustomFields[0].Name)
	suite.Empty(stored.CustomFields[0].RequiredInColumns)
	suite.Equal([]string{"YouTube", "TikTok"}, []string(stored.CustomFields[1].Options))
	suite.Equal(map[string][]string{upload.ID: {suite.manager.ID, suite.editor.ID}}, stored.ColumnAssignments())

	_, err = suite.channels.UpdateChannel(channel.ID, UpdateChannelInput{
		CustomFields: []CustomFieldInput{{ID: field.ID, Name: "Script doc", Type: models.FieldTypeNumber}},
	})
	suite.ErrorIs(err, workflow.ErrInvalidFieldValue)

	_, err = suite.channels.UpdateChannel(channel.ID, UpdateChannelInput{
		ColumnAssignments: map[string][]string{"nowhere": {suite.editor.ID}},
	})
	suite.ErrorIs(err, workflow.ErrInvalidColumn)

	_, err = suite.channels.UpdateChannel(channel.ID, UpdateChannelInput{
		ColumnAssignments: map[string][]string{upload.ID: {"ghost"}},
	})
	suite.ErrorIs(err, ErrUnknownUser)

	_, err = suite.channels.UpdateChannel("missing", UpdateChannelInput{Name: &name})
	suite.ErrorIs(err, workflow.ErrChannelNotFound)
}

func (suite *ServiceTestSuite) TestDeleteColumn() {
	channel, field := suite.createReviews()
	script, edit := channel.Columns[0], channel.Columns[1]
	first := suite.createTask(channel, "First")
	second := suite.createTask(channel, "Second")

	_, err := suite.channels.DeleteColumn(channel.ID, script.ID, "")
	suite.ErrorIs(err, workflow.ErrColumnNotEmpty)

	_, err = suite.channels.DeleteColumn(channel.ID, script.ID, script.ID)
	suite.ErrorIs(err, workflow.ErrInvalidColumn)

	_, err = suite.channels.DeleteColumn(channel.ID, script.ID, "nowhere")
	suite.ErrorIs(err, workflow.ErrInvalidColumn)

	_, err = suite.channels.DeleteColumn(channel.ID, "nowhere", edit.ID)
	suite.ErrorIs(err, workflow.ErrInvalidColumn)

	updated, err := suite.channels.DeleteColumn(channel.ID, script.ID, edit.ID)
	suite.Require().NoError(err)
	suite.Require().Len(updated.Columns, 2)
	suite.Equal(edit.ID, updated.Columns[0].ID)
	suite.Equal(0, updated.Columns[0].Position)

	for _, id := range []string{first.ID, second.ID} {
		task, err := suite.tasks.GetTask(id)
		suite.Require().NoError(err)
		suite.Equal(edit.ID, task.ColumnID)
		suite.Empty(suite.events(id), "migrating tasks records no stage events")
	}

	stored, err := suite.channels.GetChannel(channel.ID)
	suite.Require().NoError(err)
	f, ok := workflow.FindField(stored, field.ID)
	suite.Require().True(ok)
	suite.Empty(f.RequiredInColumns)
	suite.assertTasksInChannelColumns(channel.ID)
}

func (suite *ServiceTestSuite) TestDeleteColumn_EmptyWithoutDestination() {
	channel, _ := suite.createReviews()
	edit := channel.Columns[1]

	updated, err := suite.channels.DeleteColumn(channel.ID, edit.ID, "")
	suite.Require().NoError(err)
	suite.Len(updated.Columns, 2)
	suite.Empty(updated.ColumnAssignments(), "assignments of the removed column are dropped")

	only, err := suite.channels.CreateChannel(CreateChannelInput{Name: "Solo", Columns: []ColumnInput{{Name: "Only"}}, Creator: suite.owner})
	suite.Require().NoError(err)
	_, err = suite.channels.DeleteColumn(only.ID, only.Columns[0].ID, "")
	suite.ErrorIs(err, workflow.ErrNoColumns)
}

func (suite *ServiceTestSuite) TestColumnEdits() {
	channel, _ := suite.createReviews()
	script, edit, upload := channel.Columns[0], channel.Columns[1], channel.Columns[2]

	position := 1
	updated, err := suite.channels.AddColumn(channel.ID, AddColumnInput{Name: "Storyboard", Position: &position, Assignees: []string{suite.manager.ID}})
	suite.Require().NoError(err)
	suite.Require().Len(updated.Columns, 4)
	storyboard := updated.Columns[1]
	suite.Equal("Storyboard", storyboard.Name)
	suite.Equal([]string{suite.manager.ID}, updated.ColumnAssignments()[storyboard.ID])

	_, err = suite.channels.AddColumn(channel.ID, AddColumnInput{Name: " "})
	suite.ErrorIs(err, workflow.ErrInvalidColumn)

	updated, err = suite.channels.RenameColumn(channel.ID, edit.ID, "Cut")
	suite.Require().NoError(err)
	c, ok := workflow.FindColumn(updated, edit.ID)
	suite.Require().True(ok)
	suite.Equal("Cut", c.Name)

	_, err = suite.channels.RenameColumn(channel.ID, "nowhere", "x")
	suite.ErrorIs(err, workflow.ErrInvalidColumn)

	updated, err = suite.channels.ReorderColumns(channel.ID, []string{upload.ID, storyboard.ID, script.ID, edit.ID})
	suite.Require().NoError(err)
	stored, err := suite.channels.GetChannel(channel.ID)
	suite.Require().NoError(err)
	suite.Equal(upload.ID, stored.Columns[0].ID)
	suite.Equal(edit.ID, stored.Columns[3].ID)

	_, err = suite.channels.ReorderColumns(channel.ID, []string{upload.ID})
	suite.ErrorIs(err, workflow.ErrInvalidColumn)
}

func (suite *ServiceTestSuite) TestCustomFieldEdits() {
	channel, field := suite.createReviews()
	edit := channel.Columns[1]

	added, err := suite.channels.AddCustomField(channel.ID, CustomFieldInput{
		Name:        "Sponsor",
		Type:        models.FieldTypeCheckbox,
		Permissions: &models.FieldPermissions{EditableByRoles: []models.UserRole{models.RoleManager}},
	})
	suite.Require().NoError(err)
	suite.Equal(1, added.Position)

	_, err = suite.channels.AddCustomField(channel.ID, CustomFieldInput{Name: "Bad", Type: "colour"})
	suite.ErrorIs(err, workflow.ErrInvalidFieldValue)

	_, err = suite.channels.AddCustomField(channel.ID, CustomFieldInput{Name: "Bad", Type: models.FieldTypeText, RequiredInColumns: []string{"nowhere"}})
	suite.ErrorIs(err, workflow.ErrInvalidColumn)

	rename := "Sponsored"
	updated, err := suite.channels.UpdateCustomField(channel.ID, added.ID, UpdateCustomFieldInput{
		Name:              &rename,
		ClearPermissions:  true,
		RequiredInColumns: []string{edit.ID},
	})
	suite.Require().NoError(err)
	suite.Equal("Sponsored", updated.Name)
	suite.Nil(updated.Permissions)
	suite.Equal([]string{edit.ID}, []string(updated.RequiredInColumns))

	_, err = suite.channels.UpdateCustomField(channel.ID, "missing", UpdateCustomFieldInput{Name: &rename})
	suite.ErrorIs(err, workflow.ErrUnknownField)

	after, err := suite.channels.DeleteCustomField(channel.ID, field.ID)
	suite.Require().NoError(err)
	suite.Require().Len(after.CustomFields, 1)
	suite.Equal(0, after.CustomFields[0].Position)

	_, err = suite.channels.DeleteCustomField(channel.ID, field.ID)
	suite.ErrorIs(err, workflow.ErrUnknownField)

	// With the required field gone the task may leave Script immediately.
	task := suite.createTask(channel, "Free")
	_, err = suite.tasks.AdvanceTask(task.ID, suite.editor)
	suite.NoError(err)
}

func (suite *ServiceTestSuite) TestMembers() {
	channel, _ := suite.createReviews()

	suite.Require().NoError(suite.channels.AddMember(channel.ID, suite.outsider.ID))
	suite.ErrorIs(suite.channels.AddMember(channel.ID, suite.outsider.ID), ErrAlreadyMember)
	suite.ErrorIs(suite.channels.AddMember(channel.ID, "ghost"), ErrUnknownUser)

	stored, err := suite.channels.GetChannel(channel.ID)
	suite.Require().NoError(err)
	suite.True(CanAccessChannel(stored, suite.outsider))
	suite.False(CanAdministerChannel(stored, suite.outsider))

	suite.ErrorIs(suite.channels.RemoveMember(channel.ID, suite.manager.ID), ErrCannotRemoveManager)
	suite.Require().NoError(suite.channels.RemoveMember(channel.ID, suite.editor.ID))
	suite.ErrorIs(suite.channels.RemoveMember(channel.ID, suite.editor.ID), ErrNotMember)

	stored, err = suite.channels.GetChannel(channel.ID)
	suite.Require().NoError(err)
	suite.False(stored.IsMember(suite.editor.ID))
	suite.Empty(stored.ColumnAssignments(), "removed members lose their columns")
}

func (suite *ServiceTestSuite) TestDeleteChannel_Cascades() {
	channel, field := suite.createReviews()
	task := suite.createTask(channel, "Gone")
	suite.setField(task, field.ID, "x")
	_, err := suite.tasks.AdvanceTask(task.ID, suite.editor)
	suite.Require().NoError(err)

	suite.Require().NoError(suite.channels.DeleteChannel(channel.ID))

	_, err = suite.channels.GetChannel(channel.ID)
	suite.ErrorIs(err, workflow.ErrChannelNotFound)
	_, err = suite.tasks.GetTask(task.ID)
	suite.ErrorIs(err, workflow.ErrTaskNotFound)
	suite.Empty(suite.events(task.ID))

	suite.ErrorIs(suite.channels.DeleteChannel(channel.ID), workflow.ErrChannelNotFound)
	suite.Contains(suite.notifier.Kinds(), NotifyChannelDeleted)
}
