package models

import (
	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type FieldType string

const (
	FieldTypeText     FieldType = "text"
	FieldTypeLink     FieldType = "link"
	FieldTypeNumber   FieldType = "number"
	FieldTypeDate     FieldType = "date"
	FieldTypeDropdown FieldType = "dropdown"
	FieldTypeCheckbox FieldType = "checkbox"
)

func (t FieldType) Valid() bool {
	switch t {
	case FieldTypeText, FieldTypeLink, FieldTypeNumber, FieldTypeDate, FieldTypeDropdown, FieldTypeCheckbox:
		return true
	}
	return false
}

// FieldPermissions restricts who may edit a field's value. A nil
// *FieldPermissions on a field means anyone may edit it.
type FieldPermissions struct {
	EditableByRoles                []UserRole `json:"editable_by_roles"`
	EditableByColumnResponsibility bool       `json:"editable_by_column_responsibility"`
	EditableByUsers                []string   `json:"editable_by_users"`
}

type CustomField struct {
	ID                string                      `gorm:"type:varchar(36);primarykey" json:"id"`
	ChannelID         string                      `gorm:"type:varchar(36);not null;index" json:"channel_id"`
	Name              string                      `gorm:"type:varchar(255);not null" json:"name"`
	Type              FieldType                   `gorm:"type:varchar(20);not null" json:"type"`
	Position          int                         `gorm:"not null" json:"order"`
	ShowOnCard        bool                        `gorm:"not null;default:false" json:"show_on_card"`
	Options           datatypes.JSONSlice[string] `json:"options,omitempty"`
	Permissions       *FieldPermissions           `gorm:"type:text;serializer:json" json:"permissions,omitempty"`
	RequiredInColumns datatypes.JSONSlice[string] `json:"required_in_columns,omitempty"`
}

func (f *CustomField) BeforeCreate(tx *gorm.DB) error {
	if f.ID == "" {
		f.ID = uuid.NewString()
	}
	return nil
}

// RequiredIn reports whether the field must hold a value before a task may
// leave columnID.
func (f *CustomField) RequiredIn(columnID string) bool {
	for _, id := range f.RequiredInColumns {
		if id == columnID {
			return true
		}
	}
	return false
}

// HasOption reports whether value is one of the dropdown options.
func (f *CustomField) HasOption(value string) bool {
	for _, o := range f.Options {
		if o == value {
			return true
		}
	}
	return false
}
