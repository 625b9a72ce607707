package services

import (
	"time"

	"github.com/yukikurage/content-pipeline/internal/models"
	"github.com/yukikurage/content-pipeline/internal/workflow"
)

// finishTask walks a fresh task through every column and archives it.
func (suite *ServiceTestSuite) finishTask(channel *models.Channel, fieldID, title string, due *time.Time) *models.CompletedTask {
	task, err := suite.tasks.CreateTask(CreateTaskInput{
		ChannelID: channel.ID,
		Title:     title,
		DueDate:   due,
		Actor:     suite.editor,
	})
	suite.Require().NoError(err)
	suite.setField(task, fieldID, "script")

	for i := 0; i < len(channel.Columns)-1; i++ {
		_, err = suite.tasks.AdvanceTask(task.ID, suite.editor)
		suite.Require().NoError(err)
	}

	completed, err := suite.tasks.CompleteTask(task.ID, suite.editor, models.TerminalOutputs{})
	suite.Require().NoError(err)
	return completed
}

func (suite *ServiceTestSuite) TestGetAnalytics() {
	channel, field := suite.createReviews()
	late := suite.now.Add(-time.Hour)
	onTime := suite.now.Add(30 * 24 * time.Hour)
	suite.finishTask(channel, field.ID, "Late review", &late)
	suite.finishTask(channel, field.ID, "On time review", &onTime)
	suite.createTask(channel, "Still scripting")

	report, err := suite.analytics.GetAnalytics(AnalyticsInput{Viewer: suite.owner})
	suite.Require().NoError(err)
	suite.Equal(2, report.CompletedCount)
	suite.Equal(1, report.ActiveCount)
	suite.InDelta(50.0, report.OnTimeRate, 0.01)
	suite.Greater(report.AvgCycleTimeDays, 0.0)
	suite.True(report.Range.To.Sub(report.Range.From) == DefaultAnalyticsDays*24*time.Hour)

	suite.Require().NotEmpty(report.Leaderboard)
	top := report.Leaderboard[0]
	suite.Equal(suite.editor.ID, top.UserID)
	suite.Equal(4, top.StagesCompleted)

	load := map[string]int{}
	for _, l := range report.ColumnLoad {
		load[l.ColumnName] = l.Tasks
	}
	suite.Equal(1, load["Script"])
}

func (suite *ServiceTestSuite) TestGetAnalytics_Scope() {
	channel, field := suite.createReviews()
	suite.finishTask(channel, field.ID, "Review", nil)

	report, err := suite.analytics.GetAnalytics(AnalyticsInput{Viewer: suite.editor, ChannelIDs: []string{channel.ID}})
	suite.Require().NoError(err)
	suite.Equal(1, report.CompletedCount)

	_, err = suite.analytics.GetAnalytics(AnalyticsInput{Viewer: suite.outsider, ChannelIDs: []string{channel.ID}})
	suite.ErrorIs(err, workflow.ErrForbidden)

	report, err = suite.analytics.GetAnalytics(AnalyticsInput{Viewer: suite.outsider})
	suite.Require().NoError(err)
	suite.Zero(report.CompletedCount)

	_, err = suite.analytics.GetAnalytics(AnalyticsInput{ChannelIDs: []string{"missing"}})
	suite.ErrorIs(err, workflow.ErrChannelNotFound)

	report, err = suite.analytics.GetAnalytics(AnalyticsInput{UserIDs: []string{suite.manager.ID}})
	suite.Require().NoError(err)
	suite.Zero(report.CompletedCount, "the manager was never assigned")
}

func (suite *ServiceTestSuite) TestGetAnalytics_Window() {
	channel, field := suite.createReviews()
	suite.finishTask(channel, field.ID, "Review", nil)

	from := suite.now.Add(24 * time.Hour)
	to := from.Add(24 * time.Hour)
	report, err := suite.analytics.GetAnalytics(AnalyticsInput{From: &from, To: &to})
	suite.Require().NoError(err)
	suite.Zero(report.CompletedCount)
	suite.Zero(report.AvgCycleTimeDays)

	_, err = suite.analytics.GetAnalytics(AnalyticsInput{From: &to, To: &from})
	suite.ErrorIs(err, ErrInvalidDateRange)

	report, err = suite.analytics.GetAnalytics(AnalyticsInput{To: &to})
	suite.Require().NoError(err)
	suite.Equal(1, report.CompletedCount)
	suite.True(to.Equal(report.Range.To))
}
