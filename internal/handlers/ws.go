package handlers

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	apierrors "github.com/yukikurage/content-pipeline/internal/errors"
	"github.com/yukikurage/content-pipeline/internal/logging"
	"github.com/yukikurage/content-pipeline/internal/realtime"
	"github.com/yukikurage/content-pipeline/internal/services"
	"github.com/yukikurage/content-pipeline/internal/workflow"
)

// WSHandler streams a channel's task and stage events over a websocket.
type WSHandler struct {
	hub            *realtime.Hub
	upgrader       *websocket.Upgrader
	channelService *services.ChannelService
}

func NewWSHandler(hub *realtime.Hub, upgrader *websocket.Upgrader, channelService *services.ChannelService) *WSHandler {
	return &WSHandler{
		hub:            hub,
		upgrader:       upgrader,
		channelService: channelService,
	}
}

// Subscribe upgrades GET /ws?channel_id= for a user with channel access
func (h *WSHandler) Subscribe(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}

	channelID := c.Query("channel_id")
	if channelID == "" {
		apierrors.BadRequest(c, "channel_id is required")
		return
	}

	channel, err := h.channelService.GetChannel(channelID)
	if err != nil {
		if errors.Is(err, workflow.ErrChannelNotFound) {
			apierrors.NotFound(c, "Channel not found")
			return
		}
		respondDomainError(c, err)
		return
	}
	if !services.CanAccessChannel(channel, user) {
		apierrors.NotFound(c, "Channel not found")
		return
	}

	// The upgrader writes its own error response on failure.
	if err := h.hub.ServeWS(h.upgrader, c.Writer, c.Request, user.ID, channel.ID); err != nil {
		logging.Logger.WithError(err).WithField("channel_id", channel.ID).Warn("websocket upgrade failed")
	}
}
