package handlers

import (
	"net/http"

	"github.com/yukikurage/content-pipeline/internal/analytics"
	"github.com/yukikurage/content-pipeline/internal/models"
)

func (suite *HandlerTestSuite) finishTestTask(channel *models.Channel, title string) {
	task := suite.createTestTask(channel, title, suite.editor)
	_, err := suite.tasks.MoveTaskToColumn(task.ID, channel.Columns[2].ID, suite.editor)
	suite.Require().NoError(err)
	_, err = suite.tasks.CompleteTask(task.ID, suite.editor, models.TerminalOutputs{})
	suite.Require().NoError(err)
}

func (suite *HandlerTestSuite) TestGetAnalytics_Success() {
	reviews := suite.createTestChannel("Reviews")
	shorts := suite.createTestChannel("Shorts")
	suite.finishTestTask(reviews, "Camera review")
	suite.finishTestTask(shorts, "Tripod short")
	suite.createTestTask(reviews, "Lens review", suite.editor)

	c, w := suite.createAuthContext(http.MethodGet, "/api/analytics?channel_ids="+reviews.ID, nil, suite.editor)
	suite.analyticsHandler.GetAnalytics(c)

	suite.Equal(http.StatusOK, w.Code)
	var report analytics.Report
	suite.decode(w, &report)
	suite.Equal(1, report.CompletedCount)
	suite.Equal(1, report.ActiveCount)

	c, w = suite.createAuthContext(http.MethodGet, "/api/analytics?channel_ids="+reviews.ID+","+shorts.ID, nil, suite.editor)
	suite.analyticsHandler.GetAnalytics(c)

	suite.Equal(http.StatusOK, w.Code)
	suite.decode(w, &report)
	suite.Equal(2, report.CompletedCount)
}

func (suite *HandlerTestSuite) TestGetAnalytics_Scope() {
	reviews := suite.createTestChannel("Reviews")
	suite.finishTestTask(reviews, "Camera review")

	c, w := suite.createAuthContext(http.MethodGet, "/api/analytics?channel_ids="+reviews.ID, nil, suite.outsider)
	suite.analyticsHandler.GetAnalytics(c)
	suite.Equal(http.StatusForbidden, w.Code)

	c, w = suite.createAuthContext(http.MethodGet, "/api/analytics", nil, suite.outsider)
	suite.analyticsHandler.GetAnalytics(c)
	suite.Equal(http.StatusOK, w.Code)
	var report analytics.Report
	suite.decode(w, &report)
	suite.Zero(report.CompletedCount)

	c, w = suite.createAuthContext(http.MethodGet, "/api/analytics?channel_ids=missing", nil, suite.owner)
	suite.analyticsHandler.GetAnalytics(c)
	suite.Equal(http.StatusNotFound, w.Code)
}

func (suite *HandlerTestSuite) TestGetAnalytics_InvalidRange() {
	c, w := suite.createAuthContext(http.MethodGet, "/api/analytics?from=soon", nil, suite.owner)
	suite.analyticsHandler.GetAnalytics(c)
	suite.Equal(http.StatusBadRequest, w.Code)

	c, w = suite.createAuthContext(http.MethodGet, "/api/analytics?from=2026-03-10&to=2026-03-01", nil, suite.owner)
	suite.analyticsHandler.GetAnalytics(c)
	suite.Equal(http.StatusBadRequest, w.Code)
}
