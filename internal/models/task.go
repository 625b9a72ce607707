package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Task is an active unit of work sitting in exactly one column.
type Task struct {
	ID                string                      `gorm:"type:varchar(36);primarykey" json:"id"`
	ChannelID         string                      `gorm:"type:varchar(36);not null;index" json:"channel_id"`
	ColumnID          string                      `gorm:"type:varchar(36);not null;index" json:"column_id"`
	Title             string                      `gorm:"not null" json:"title"`
	Description       string                      `gorm:"type:text" json:"description"`
	AssignedTo        *string                     `gorm:"type:varchar(36);index" json:"assigned_to"`
	DueDate           *time.Time                  `json:"due_date"`
	CustomFieldValues FieldValues                 `gorm:"type:text;serializer:json" json:"custom_field_values"`
	Completed         bool                        `gorm:"not null;default:false" json:"completed"`
	Notes             string                      `gorm:"type:text" json:"notes"`
	Links             datatypes.JSONSlice[string] `json:"links"`
	CreatedBy         string                      `gorm:"type:varchar(36)" json:"created_by"`
	CreatedAt         time.Time                   `json:"created_at"`
	UpdatedAt         time.Time                   `json:"updated_at"`
}

func (t *Task) BeforeCreate(tx *gorm.DB) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	return nil
}

// Assignee returns the assigned user id, or "" when unassigned.
func (t *Task) Assignee() string {
	if t.AssignedTo == nil {
		return ""
	}
	return *t.AssignedTo
}
