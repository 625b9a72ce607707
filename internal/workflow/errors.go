package workflow

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrInvalidColumn         = errors.New("invalid column")
	ErrTaskNotFound          = errors.New("task not found")
	ErrChannelNotFound       = errors.New("channel not found")
	ErrColumnNotEmpty        = errors.New("column still contains tasks")
	ErrRequiredFieldsMissing = errors.New("required fields missing")
	ErrForbidden             = errors.New("forbidden")
	ErrAlreadyTerminal       = errors.New("task is in the terminal column and awaits finalization")
	ErrNotInTerminalColumn   = errors.New("task can only be completed from the terminal column")
	ErrNoColumns             = errors.New("a channel needs at least one column")
	ErrInvalidFieldValue     = errors.New("invalid custom field value")
	ErrUnknownField          = errors.New("unknown custom field")
)

// RequiredFieldsError lists the fields that block a task from leaving its
// column. It matches ErrRequiredFieldsMissing with errors.Is.
type RequiredFieldsError struct {
	ColumnID string
	Fields   []string
}

func (e *RequiredFieldsError) Error() string {
	return fmt.Sprintf("required fields missing: %s", strings.Join(e.Fields, ", "))
}

func (e *RequiredFieldsError) Is(target error) bool {
	return target == ErrRequiredFieldsMissing
}

// FieldPermissionError names the field the acting user may not edit. It
// matches ErrForbidden with errors.Is.
type FieldPermissionError struct {
	FieldID   string
	FieldName string
	UserID    string
}

func (e *FieldPermissionError) Error() string {
	return fmt.Sprintf("user %s may not edit field %q", e.UserID, e.FieldName)
}

func (e *FieldPermissionError) Is(target error) bool {
	return target == ErrForbidden
}
