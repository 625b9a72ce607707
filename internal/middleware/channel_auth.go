package middleware

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/yukikurage/content-pipeline/internal/constants"
	apierrors "github.com/yukikurage/content-pipeline/internal/errors"
	"github.com/yukikurage/content-pipeline/internal/models"
	"github.com/yukikurage/content-pipeline/internal/services"
	"github.com/yukikurage/content-pipeline/internal/workflow"
)

// RequireChannelAccess checks if the user may see the channel named by the
// :id parameter
func RequireChannelAccess(channelService *services.ChannelService) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := GetCurrentUser(c)
		if !ok {
			apierrors.Unauthorized(c, "")
			c.Abort()
			return
		}

		channel, err := channelService.GetChannel(c.Param("id"))
		if err != nil {
			if errors.Is(err, workflow.ErrChannelNotFound) {
				apierrors.NotFound(c, "Channel not found")
			} else {
				apierrors.InternalError(c, "Failed to load channel")
			}
			c.Abort()
			return
		}

		// Return 404 instead of 403 to avoid leaking channel existence
		if !services.CanAccessChannel(channel, user) {
			apierrors.NotFound(c, "Channel not found")
			c.Abort()
			return
		}

		c.Set(constants.ContextKeyChannel, channel)
		c.Next()
	}
}

// RequireChannelManager checks if the user may change the channel's
// structure. It must run after RequireChannelAccess.
func RequireChannelManager() gin.HandlerFunc {
	return func(c *gin.Context) {
		channel, ok := GetChannel(c)
		if !ok {
			apierrors.Forbidden(c, "Channel access required")
			c.Abort()
			return
		}

		user, _ := GetCurrentUser(c)
		if !services.CanAdministerChannel(channel, user) {
			apierrors.Forbidden(c, "Only the channel manager can perform this action")
			c.Abort()
			return
		}

		c.Next()
	}
}

// GetChannel retrieves the channel loaded by RequireChannelAccess or
// RequireTaskAccess
func GetChannel(c *gin.Context) (*models.Channel, bool) {
	v, exists := c.Get(constants.ContextKeyChannel)
	if !exists {
		return nil, false
	}
	channel, ok := v.(*models.Channel)
	return channel, ok && channel != nil
}
