package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	apierrors "github.com/yukikurage/content-pipeline/internal/errors"
	"github.com/yukikurage/content-pipeline/internal/services"
	"github.com/yukikurage/content-pipeline/internal/utils"
)

type AnalyticsHandler struct {
	analyticsService *services.AnalyticsService
}

func NewAnalyticsHandler(analyticsService *services.AnalyticsService) *AnalyticsHandler {
	return &AnalyticsHandler{
		analyticsService: analyticsService,
	}
}

// queryIDs accepts both repeated keys and comma separated values.
func queryIDs(c *gin.Context, key string) []string {
	var ids []string
	for _, v := range c.QueryArray(key) {
		for _, id := range strings.Split(v, ",") {
			if id = strings.TrimSpace(id); id != "" {
				ids = append(ids, id)
			}
		}
	}
	return ids
}

// GetAnalytics returns the KPI report for the current user's scope
func (h *AnalyticsHandler) GetAnalytics(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}

	from, err := utils.ParseDate(c.Query("from"), false)
	if err != nil {
		apierrors.BadRequest(c, "Invalid from date")
		return
	}
	to, err := utils.ParseDate(c.Query("to"), true)
	if err != nil {
		apierrors.BadRequest(c, "Invalid to date")
		return
	}

	report, err := h.analyticsService.GetAnalytics(services.AnalyticsInput{
		ChannelIDs: queryIDs(c, "channel_ids"),
		UserIDs:    queryIDs(c, "user_ids"),
		From:       from,
		To:         to,
		Viewer:     user,
	})
	if err != nil {
		respondDomainError(c, err)
		return
	}

	c.JSON(http.StatusOK, report)
}
