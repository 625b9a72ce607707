package models

import (
	"sort"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Channel is a production pipeline: an ordered list of columns plus the
// custom fields tasks in the channel carry.
type Channel struct {
	ID          string    `gorm:"type:varchar(36);primarykey" json:"id"`
	Name        string    `gorm:"type:varchar(255);not null" json:"name"`
	Description string    `gorm:"type:text" json:"description"`
	Archived    bool      `gorm:"not null;default:false" json:"archived"`
	ManagerID   string    `gorm:"type:varchar(36);index" json:"manager_id"`
	ExternalID  string    `gorm:"type:varchar(255)" json:"external_id,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`

	// Relations
	Columns         []Column         `gorm:"foreignKey:ChannelID" json:"columns"`
	CustomFields    []CustomField    `gorm:"foreignKey:ChannelID" json:"custom_fields"`
	Members         []ChannelMember  `gorm:"foreignKey:ChannelID" json:"members,omitempty"`
	ColumnAssignees []ColumnAssignee `gorm:"foreignKey:ChannelID" json:"-"`
}

func (c *Channel) BeforeCreate(tx *gorm.DB) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	return nil
}

// Column is one stage of a channel's pipeline.
type Column struct {
	ID        string `gorm:"type:varchar(36);primarykey" json:"id"`
	ChannelID string `gorm:"type:varchar(36);not null;index" json:"channel_id"`
	Name      string `gorm:"type:varchar(255);not null" json:"name"`
	Position  int    `gorm:"not null" json:"order"`
}

func (Column) TableName() string {
	return "pipeline_columns"
}

func (c *Column) BeforeCreate(tx *gorm.DB) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	return nil
}

type ChannelMember struct {
	ChannelID string    `gorm:"type:varchar(36);primarykey" json:"channel_id"`
	UserID    string    `gorm:"type:varchar(36);primarykey" json:"user_id"`
	JoinedAt  time.Time `json:"joined_at"`

	User User `gorm:"foreignKey:UserID" json:"user,omitempty"`
}

// ColumnAssignee marks a user as responsible for a column. Position orders
// the responsible users; the first one becomes the default assignee.
type ColumnAssignee struct {
	ChannelID string `gorm:"type:varchar(36);primarykey" json:"channel_id"`
	ColumnID  string `gorm:"type:varchar(36);primarykey" json:"column_id"`
	UserID    string `gorm:"type:varchar(36);primarykey" json:"user_id"`
	Position  int    `gorm:"not null" json:"position"`
}

// ColumnAssignments returns the column id -> responsible user ids map.
func (c *Channel) ColumnAssignments() map[string][]string {
	if len(c.ColumnAssignees) == 0 {
		return nil
	}
	rows := make([]ColumnAssignee, len(c.ColumnAssignees))
	copy(rows, c.ColumnAssignees)
	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].ColumnID != rows[j].ColumnID {
			return rows[i].ColumnID < rows[j].ColumnID
		}
		return rows[i].Position < rows[j].Position
	})

	out := make(map[string][]string)
	for _, r := range rows {
		out[r.ColumnID] = append(out[r.ColumnID], r.UserID)
	}
	return out
}

// SetColumnAssignments replaces the assignee rows from a map.
func (c *Channel) SetColumnAssignments(assignments map[string][]string) {
	c.ColumnAssignees = c.ColumnAssignees[:0]
	for columnID, userIDs := range assignments {
		seen := make(map[string]struct{}, len(userIDs))
		for _, userID := range userIDs {
			if _, dup := seen[userID]; dup || userID == "" {
				continue
			}
			seen[userID] = struct{}{}
			c.ColumnAssignees = append(c.ColumnAssignees, ColumnAssignee{
				ChannelID: c.ID,
				ColumnID:  columnID,
				UserID:    userID,
				Position:  len(seen) - 1,
			})
		}
	}
}

// IsMember reports whether userID belongs to the channel, as manager or member.
func (c *Channel) IsMember(userID string) bool {
	if c.ManagerID == userID {
		return true
	}
	for _, m := range c.Members {
		if m.UserID == userID {
			return true
		}
	}
	return false
}

// MemberIDs returns the ids of the channel members.
func (c *Channel) MemberIDs() []string {
	ids := make([]string, 0, len(c.Members))
	for _, m := range c.Members {
		ids = append(ids, m.UserID)
	}
	return ids
}
