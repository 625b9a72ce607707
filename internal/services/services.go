package services

import (
	"time"

	"github.com/yukikurage/content-pipeline/internal/models"
)

// Clock returns the current time.
type Clock func() time.Time

// Notification kinds published to live feeds.
const (
	NotifyChannelUpdated = "channel.updated"
	NotifyChannelDeleted = "channel.deleted"
	NotifyTaskCreated    = "task.created"
	NotifyTaskUpdated    = "task.updated"
	NotifyTaskDeleted    = "task.deleted"
	NotifyTaskMoved      = "task.moved"
	NotifyTaskCompleted  = "task.completed"
)

// Notifier receives changes after they are committed.
type Notifier interface {
	Notify(channelID, kind string, payload interface{})
}

type nopNotifier struct{}

func (nopNotifier) Notify(string, string, interface{}) {}

func channelKey(id string) string { return "channel:" + id }
func taskKey(id string) string { return "task:" + id }

// CanAccessChannel reports whether user may read the channel and work its tasks.
func CanAccessChannel(channel *models.Channel, user *models.User) bool {
	if user == nil {
		return false
	}
	return user.IsOwner() || channel.IsMember(user.ID)
}

// CanAdministerChannel reports whether user may change the channel's structure.
func CanAdministerChannel(channel *models.Channel, user *models.User) bool {
	if user == nil {
		return false
	}
	return user.IsOwner() || channel.ManagerID == user.ID
}

func uniqueStrings(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	result := make([]string, 0, len(values))

	for _, v := range values {
		if v == "" {
			continue
		}
		if _, exists := seen[v]; exists {
			continue
		}
		seen[v] = struct{}{}
		result = append(result, v)
	}

	return result
}
