package workflow

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/yukikurage/content-pipeline/internal/models"
)

// CanEditField resolves whether user may change field on task. Owners always
// may. A field without permissions is unrestricted. Otherwise the first
// matching rule wins: role, column responsibility, explicit user list.
func CanEditField(field *models.CustomField, user *models.User, task *models.Task, channel *models.Channel) bool {
	if user == nil {
		return false
	}
	if user.IsOwner() {
		return true
	}

	perms := field.Permissions
	if perms == nil {
		return true
	}

	for _, role := range perms.EditableByRoles {
		if role == user.Role {
			return true
		}
	}
	if perms.EditableByColumnResponsibility && task != nil && ResponsibleFor(channel, task.ColumnID, user.ID) {
		return true
	}
	for _, id := range perms.EditableByUsers {
		if id == user.ID {
			return true
		}
	}
	return false
}

// MissingRequiredFields returns the names of the fields required in
// columnID that have no value, in field order.
func MissingRequiredFields(fields []models.CustomField, values models.FieldValues, columnID string) []string {
	var missing []string
	for _, f := range fields {
		if !f.RequiredIn(columnID) {
			continue
		}
		v, ok := values[f.ID]
		if !ok || v.IsEmpty() {
			missing = append(missing, f.Name)
		}
	}
	return missing
}

// CheckRequiredFields returns a *RequiredFieldsError when the task may not
// leave its current column.
func CheckRequiredFields(channel *models.Channel, task *models.Task) error {
	missing := MissingRequiredFields(channel.CustomFields, task.CustomFieldValues, task.ColumnID)
	if len(missing) > 0 {
		return &RequiredFieldsError{ColumnID: task.ColumnID, Fields: missing}
	}
	return nil
}

// FindField returns the channel field with the given id.
func FindField(channel *models.Channel, fieldID string) (*models.CustomField, bool) {
	for i := range channel.CustomFields {
		if channel.CustomFields[i].ID == fieldID {
			return &channel.CustomFields[i], true
		}
	}
	return nil, false
}

var jsonNull = []byte("null")

// ParseFieldValue decodes raw into a value of the field's declared type.
// A JSON null yields ok=false, meaning the value is cleared.
func ParseFieldValue(field *models.CustomField, raw json.RawMessage) (models.FieldValue, bool, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, jsonNull) {
		return models.FieldValue{}, false, nil
	}

	invalid := func(reason string) error {
		return fmt.Errorf("%w: %s: %s", ErrInvalidFieldValue, field.Name, reason)
	}

	switch field.Type {
	case models.FieldTypeText:
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return models.FieldValue{}, false, invalid("expected a string")
		}
		return models.TextValue(s), true, nil

	case models.FieldTypeLink:
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return models.FieldValue{}, false, invalid("expected a string")
		}
		s = strings.TrimSpace(s)
		if s != "" && !ValidLink(s) {
			return models.FieldValue{}, false, invalid("expected an absolute URL")
		}
		return models.LinkValue(s), true, nil

	case models.FieldTypeNumber:
		var n float64
		if err := json.Unmarshal(raw, &n); err != nil {
			return models.FieldValue{}, false, invalid("expected a number")
		}
		return models.NumberValue(n), true, nil

	case models.FieldTypeDate:
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return models.FieldValue{}, false, invalid("expected a date string")
		}
		if s == "" {
			return models.DateValue(time.Time{}), true, nil
		}
		t, err := parseDate(s)
		if err != nil {
			return models.FieldValue{}, false, invalid("expected RFC3339 or YYYY-MM-DD")
		}
		return models.DateValue(t), true, nil

	case models.FieldTypeDropdown:
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return models.FieldValue{}, false, invalid("expected a string")
		}
		if s != "" && !field.HasOption(s) {
			return models.FieldValue{}, false, invalid(fmt.Sprintf("%q is not an option", s))
		}
		return models.DropdownValue(s), true, nil

	case models.FieldTypeCheckbox:
		var b bool
		if err := json.Unmarshal(raw, &b); err != nil {
			return models.FieldValue{}, false, invalid("expected a boolean")
		}
		return models.CheckboxValue(b), true, nil
	}

	return models.FieldValue{}, false, invalid(fmt.Sprintf("unsupported type %q", field.Type))
}

// ValidLink reports whether s is an absolute URL with a host.
func ValidLink(s string) bool {
	u, err := url.Parse(s)
	return err == nil && u.Scheme != "" && u.Host != ""
}

func parseDate(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", s)
}

// ApplyFieldValues validates changes against the channel's fields and the
// acting user's permissions and returns the merged value map. The task's own
// map is left untouched; on any error nothing is applied.
func ApplyFieldValues(channel *models.Channel, task *models.Task, user *models.User, changes map[string]json.RawMessage) (models.FieldValues, error) {
	merged := task.CustomFieldValues.Clone()
	for fieldID, raw := range changes {
		field, ok := FindField(channel, fieldID)
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownField, fieldID)
		}
		if !CanEditField(field, user, task, channel) {
			return nil, &FieldPermissionError{FieldID: field.ID, FieldName: field.Name, UserID: user.ID}
		}

		value, present, err := ParseFieldValue(field, raw)
		if err != nil {
			return nil, err
		}
		if present {
			merged[fieldID] = value
		} else {
			delete(merged, fieldID)
		}
	}
	return merged, nil
}

// ValidateField checks a field definition against the channel's columns.
func ValidateField(channel *models.Channel, field *models.CustomField) error {
	if strings.TrimSpace(field.Name) == "" {
		return fmt.Errorf("%w: field name cannot be empty", ErrInvalidFieldValue)
	}
	if !field.Type.Valid() {
		return fmt.Errorf("%w: unknown field type %q", ErrInvalidFieldValue, field.Type)
	}
	if field.Type != models.FieldTypeDropdown && len(field.Options) > 0 {
		return fmt.Errorf("%w: only dropdown fields take options", ErrInvalidFieldValue)
	}
	for _, columnID := range field.RequiredInColumns {
		if ColumnIndex(channel.Columns, columnID) < 0 {
			return fmt.Errorf("%w: %s", ErrInvalidColumn, columnID)
		}
	}
	if field.Permissions != nil {
		for _, role := range field.Permissions.EditableByRoles {
			if !role.Valid() {
				return fmt.Errorf("%w: unknown role %q", ErrInvalidFieldValue, role)
			}
		}
	}
	return nil
}

// PruneColumn removes columnID from every field's required list. It returns
// the indexes of the fields that changed.
func PruneColumn(fields []models.CustomField, columnID string) []int {
	var changed []int
	for i := range fields {
		if !fields[i].RequiredIn(columnID) {
			continue
		}
		kept := fields[i].RequiredInColumns[:0:0]
		for _, id := range fields[i].RequiredInColumns {
			if id != columnID {
				kept = append(kept, id)
			}
		}
		fields[i].RequiredInColumns = kept
		changed = append(changed, i)
	}
	return changed
}
