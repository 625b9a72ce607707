package constants

const (
	// Session / context keys
	ContextKeyUserID      = "user_id"
	ContextKeyCurrentUser = "current_user"
	ContextKeyChannel     = "channel"
	ContextKeyTask        = "task"
	SessionCookieName     = "pipeline_session"

	// Auth
	MinPasswordLength = 8

	// Pagination
	MinPageSize     = 1
	DefaultPageSize = 20
	MaxPageSize     = 100

	// AI task generation
	MaxAIGeneratedTasks = 20

	// Analytics
	BottleneckThresholdDays = 5.0
	MaxBottlenecks          = 5
)
