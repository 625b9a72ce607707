package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type StageEventType string

const (
	EventStageCompleted StageEventType = "stage_completed"
	EventFinalized      StageEventType = "finalized"
)

// StageEvent records one column transition (or the finalization) of a task.
// Rows are append-only.
type StageEvent struct {
	ID           string         `gorm:"type:varchar(36);primarykey" json:"id"`
	TaskID       string         `gorm:"type:varchar(36);not null;index:idx_stage_events_task_seq,priority:1" json:"task_id"`
	Sequence     int            `gorm:"not null;index:idx_stage_events_task_seq,priority:2" json:"sequence"`
	ChannelID    string         `gorm:"type:varchar(36);not null;index" json:"channel_id"`
	ActorUserID  string         `gorm:"type:varchar(36);not null;index" json:"actor_user_id"`
	FromColumnID string         `gorm:"type:varchar(36);not null" json:"from_column_id"`
	ToColumnID   string         `gorm:"type:varchar(36);not null" json:"to_column_id"`
	EventType    StageEventType `gorm:"type:varchar(32);not null;index" json:"event_type"`
	OccurredAt   time.Time      `gorm:"not null;index" json:"occurred_at"`
}

func (e *StageEvent) BeforeCreate(tx *gorm.DB) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	return nil
}

// BeforeUpdate rejects any attempt to rewrite a recorded event.
func (e *StageEvent) BeforeUpdate(tx *gorm.DB) error {
	return ErrStageEventImmutable
}
