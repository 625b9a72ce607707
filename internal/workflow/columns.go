package workflow

import (
	"fmt"
	"sort"
	"strings"

	"github.com/yukikurage/content-pipeline/internal/models"
)

// SortColumns orders columns by position in place.
func SortColumns(columns []models.Column) {
	sort.SliceStable(columns, func(i, j int) bool {
		return columns[i].Position < columns[j].Position
	})
}

// Densify rewrites positions to 0..n-1 following the current slice order.
func Densify(columns []models.Column) {
	for i := range columns {
		columns[i].Position = i
	}
}

// ValidateColumns checks a channel's column list: non-empty, named, unique ids.
func ValidateColumns(columns []models.Column) error {
	if len(columns) == 0 {
		return ErrNoColumns
	}
	seen := make(map[string]struct{}, len(columns))
	for _, col := range columns {
		if strings.TrimSpace(col.Name) == "" {
			return fmt.Errorf("%w: column name cannot be empty", ErrInvalidColumn)
		}
		if col.ID == "" {
			continue
		}
		if _, dup := seen[col.ID]; dup {
			return fmt.Errorf("%w: duplicate column id %s", ErrInvalidColumn, col.ID)
		}
		seen[col.ID] = struct{}{}
	}
	return nil
}

// ColumnIndex returns the index of columnID in the ordered column list, or -1.
func ColumnIndex(columns []models.Column, columnID string) int {
	for i, col := range columns {
		if col.ID == columnID {
			return i
		}
	}
	return -1
}

// FindColumn returns the column with the given id.
func FindColumn(channel *models.Channel, columnID string) (*models.Column, bool) {
	i := ColumnIndex(channel.Columns, columnID)
	if i < 0 {
		return nil, false
	}
	return &channel.Columns[i], true
}

// TerminalColumn returns the last column of the channel.
func TerminalColumn(channel *models.Channel) (*models.Column, error) {
	if len(channel.Columns) == 0 {
		return nil, ErrNoColumns
	}
	return &channel.Columns[len(channel.Columns)-1], nil
}

// IsTerminal reports whether columnID is the channel's last column.
func IsTerminal(channel *models.Channel, columnID string) bool {
	last, err := TerminalColumn(channel)
	return err == nil && last.ID == columnID
}

// NextColumn resolves the column after currentID. It returns
// ErrAlreadyTerminal when currentID is the last column and ErrInvalidColumn
// when it is not part of the channel.
func NextColumn(channel *models.Channel, currentID string) (*models.Column, error) {
	i := ColumnIndex(channel.Columns, currentID)
	if i < 0 {
		return nil, ErrInvalidColumn
	}
	if i == len(channel.Columns)-1 {
		return nil, ErrAlreadyTerminal
	}
	return &channel.Columns[i+1], nil
}

// InsertColumn places col at position (clamped to the list bounds; negative
// appends) and densifies.
func InsertColumn(columns []models.Column, col models.Column, position int) []models.Column {
	if position < 0 || position > len(columns) {
		position = len(columns)
	}
	out := make([]models.Column, 0, len(columns)+1)
	out = append(out, columns[:position]...)
	out = append(out, col)
	out = append(out, columns[position:]...)
	Densify(out)
	return out
}

// ReorderColumns applies a full permutation of column ids.
func ReorderColumns(columns []models.Column, orderedIDs []string) ([]models.Column, error) {
	if len(orderedIDs) != len(columns) {
		return nil, fmt.Errorf("%w: expected %d column ids, got %d", ErrInvalidColumn, len(columns), len(orderedIDs))
	}
	byID := make(map[string]models.Column, len(columns))
	for _, col := range columns {
		byID[col.ID] = col
	}

	out := make([]models.Column, 0, len(columns))
	for _, id := range orderedIDs {
		col, ok := byID[id]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrInvalidColumn, id)
		}
		delete(byID, id)
		out = append(out, col)
	}
	Densify(out)
	return out, nil
}

// RemoveColumn drops columnID from the list and densifies the rest.
func RemoveColumn(columns []models.Column, columnID string) ([]models.Column, error) {
	i := ColumnIndex(columns, columnID)
	if i < 0 {
		return nil, ErrInvalidColumn
	}
	if len(columns) == 1 {
		return nil, ErrNoColumns
	}
	out := make([]models.Column, 0, len(columns)-1)
	out = append(out, columns[:i]...)
	out = append(out, columns[i+1:]...)
	Densify(out)
	return out, nil
}
