package repository

import (
	"github.com/yukikurage/content-pipeline/internal/analytics"
	"github.com/yukikurage/content-pipeline/internal/models"
)

// ChannelRepository defines the interface for channel data access
type ChannelRepository interface {
	// Create creates a channel together with its columns, fields, members and assignees
	Create(channel *models.Channel) error

	// FindByID finds a channel with columns and fields ordered by position
	FindByID(id string) (*models.Channel, error)

	// List lists channels; an empty userID lists every channel
	List(filter ChannelFilter) ([]models.Channel, error)

	// Update saves the channel row and synchronizes columns, fields and assignees
	Update(channel *models.Channel) error

	// Delete removes a channel and everything recorded for it
	Delete(id string) error

	// DeleteColumn saves the channel without columnID, moving its tasks to
	// destinationID when one is given. Returns the number of moved tasks.
	DeleteColumn(channel *models.Channel, columnID, destinationID string) (int64, error)

	// AddMember adds a member to a channel
	AddMember(member *models.ChannelMember) error

	// RemoveMember removes a member and their column responsibilities
	RemoveMember(channelID, userID string) error

	// FindMember finds a specific channel member
	FindMember(channelID, userID string) (*models.ChannelMember, error)
}

// ChannelFilter holds filtering options for listing channels
type ChannelFilter struct {
	UserID          string
	IncludeArchived bool
}

// TaskRepository defines the interface for active task data access
type TaskRepository interface {
	// Create creates a new task
	Create(task *models.Task) error

	// FindByID finds a task by ID
	FindByID(id string) (*models.Task, error)

	// List retrieves tasks with filtering and pagination
	List(filter TaskFilter) ([]models.Task, int64, error)

	// Update updates a task without recording a stage event
	Update(task *models.Task) error

	// Delete deletes an active task
	Delete(id string) error

	// CountByColumn counts active tasks sitting in a column
	CountByColumn(columnID string) (int64, error)

	// Transition saves the moved task and records its stage event atomically
	Transition(task *models.Task, event *models.StageEvent) error

	// Archive stores the completed snapshot, records the finalized event and
	// removes the active task atomically
	Archive(completed *models.CompletedTask, event *models.StageEvent) error
}

// TaskFilter holds filtering options for listing tasks
type TaskFilter struct {
	ChannelID  string
	ColumnID   *string
	AssignedTo *string
	Page       int
	PageSize   int
}

// StageEventRepository defines read access to the stage event log. Events
// are written only through TaskRepository.Transition and Archive.
type StageEventRepository interface {
	// ListByTask lists the events of a task in workflow order
	ListByTask(taskID string) ([]models.StageEvent, error)

	// ListByChannels lists the events of the given channels in occurrence order
	ListByChannels(channelIDs []string) ([]models.StageEvent, error)
}

// CompletedTaskRepository defines read access to archived tasks
type CompletedTaskRepository interface {
	// FindByTaskID finds the snapshot of an archived task
	FindByTaskID(taskID string) (*models.CompletedTask, error)

	// ListByChannel lists archived tasks of a channel, newest first
	ListByChannel(channelID string, page, pageSize int) ([]models.CompletedTask, int64, error)
}

// SnapshotRepository loads analytics inputs in one consistent read
type SnapshotRepository interface {
	// Load reads channels, tasks, completed tasks, events and users. An empty
	// channelIDs loads every channel.
	Load(channelIDs []string) (*analytics.Dataset, error)
}

// UserRepository defines the interface for user data access
type UserRepository interface {
	// Create creates a new user
	Create(user *models.User) error

	// FindByID finds a user by ID
	FindByID(id string) (*models.User, error)

	// FindByUsername finds a user by username
	FindByUsername(username string) (*models.User, error)

	// CountByIDs counts how many of the given user IDs exist
	CountByIDs(ids []string) (int64, error)

	// Count counts all users
	Count() (int64, error)

	// UpdateRole changes a user's role
	UpdateRole(id string, role models.UserRole) error
}
