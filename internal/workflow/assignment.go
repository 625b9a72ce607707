package workflow

import (
	"fmt"

	"github.com/yukikurage/content-pipeline/internal/models"
)

// ResolveAssignee returns the default assignee for a task entering columnID:
// the first user responsible for that column, or nil when nobody is.
func ResolveAssignee(channel *models.Channel, columnID string) *string {
	users := channel.ColumnAssignments()[columnID]
	if len(users) == 0 {
		return nil
	}
	first := users[0]
	return &first
}

// ResponsibleFor reports whether userID is responsible for columnID.
func ResponsibleFor(channel *models.Channel, columnID, userID string) bool {
	for _, id := range channel.ColumnAssignments()[columnID] {
		if id == userID {
			return true
		}
	}
	return false
}

// ValidateAssignments checks that every key of the map is a column of the channel.
func ValidateAssignments(channel *models.Channel, assignments map[string][]string) error {
	for columnID := range assignments {
		if ColumnIndex(channel.Columns, columnID) < 0 {
			return fmt.Errorf("%w: %s", ErrInvalidColumn, columnID)
		}
	}
	return nil
}
