package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// TerminalOutputs are the deliverables attached when a task is finalized.
type TerminalOutputs struct {
	VideoURL     string   `json:"video_url"`
	ThumbnailURL string   `json:"thumbnail_url"`
	ScriptURL    string   `json:"script_url"`
	AudioURL     string   `json:"audio_url"`
	OtherLinks   []string `json:"other_links"`
}

// CompletedTask is the archived snapshot of a task taken at finalization.
type CompletedTask struct {
	ID                string                      `gorm:"type:varchar(36);primarykey" json:"id"`
	TaskID            string                      `gorm:"type:varchar(36);not null;uniqueIndex" json:"task_id"`
	Title             string                      `gorm:"not null" json:"title"`
	Description       string                      `gorm:"type:text" json:"description"`
	ChannelID         string                      `gorm:"type:varchar(36);not null;index" json:"channel_id"`
	ChannelName       string                      `gorm:"type:varchar(255)" json:"channel_name"`
	ColumnID          string                      `gorm:"type:varchar(36)" json:"column_id"`
	ColumnName        string                      `gorm:"type:varchar(255)" json:"column_name"`
	AssignedTo        *string                     `gorm:"type:varchar(36);index" json:"assigned_to"`
	Assignees         datatypes.JSONSlice[string] `json:"assignees"`
	DueDate           *time.Time                  `json:"due_date"`
	TaskCreatedAt     time.Time                   `json:"task_created_at"`
	CompletedBy       string                      `gorm:"type:varchar(36);not null" json:"completed_by"`
	CompletedAt       time.Time                   `gorm:"not null;index" json:"completed_at"`
	CustomFieldValues FieldValues                 `gorm:"type:text;serializer:json" json:"custom_field_values"`
	Notes             string                      `gorm:"type:text" json:"notes"`
	Links             datatypes.JSONSlice[string] `json:"links"`
	VideoURL          string                      `gorm:"type:text" json:"video_url"`
	ThumbnailURL      string                      `gorm:"type:text" json:"thumbnail_url"`
	ScriptURL         string                      `gorm:"type:text" json:"script_url"`
	AudioURL          string                      `gorm:"type:text" json:"audio_url"`
	OtherLinks        datatypes.JSONSlice[string] `json:"other_links"`
}

func (c *CompletedTask) BeforeCreate(tx *gorm.DB) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	return nil
}

// BeforeUpdate rejects any attempt to rewrite an archived snapshot.
func (c *CompletedTask) BeforeUpdate(tx *gorm.DB) error {
	return ErrCompletedTaskImmutable
}

// Assignee returns the assigned user id, or "" when unassigned.
func (c *CompletedTask) Assignee() string {
	if c.AssignedTo == nil {
		return ""
	}
	return *c.AssignedTo
}
