package dto

import (
	"time"

	"github.com/yukikurage/content-pipeline/internal/models"
)

// ColumnDTO represents a pipeline column in API responses
type ColumnDTO struct {
	ID        string   `json:"id"`
	Name      string   `json:"name"`
	Order     int      `json:"order"`
	Assignees []string `json:"assignees"`
}

// CustomFieldDTO represents a custom field definition in API responses
type CustomFieldDTO struct {
	ID                string                   `json:"id"`
	Name              string                   `json:"name"`
	Type              models.FieldType         `json:"type"`
	Order             int                      `json:"order"`
	ShowOnCard        bool                     `json:"show_on_card"`
	Options           []string                 `json:"options,omitempty"`
	Permissions       *models.FieldPermissions `json:"permissions,omitempty"`
	RequiredInColumns []string                 `json:"required_in_columns"`
}

// ChannelDTO represents a channel in API responses
type ChannelDTO struct {
	ID           string           `json:"id"`
	Name         string           `json:"name"`
	Description  string           `json:"description"`
	Archived     bool             `json:"archived"`
	ManagerID    string           `json:"manager_id"`
	ExternalID   string           `json:"external_id,omitempty"`
	Columns      []ColumnDTO      `json:"columns"`
	CustomFields []CustomFieldDTO `json:"custom_fields"`
	MemberIDs    []string         `json:"member_ids"`
	CreatedAt    time.Time        `json:"created_at"`
	UpdatedAt    time.Time        `json:"updated_at"`
}

// ChannelListItemDTO represents a channel in list responses
type ChannelListItemDTO struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Archived    bool      `json:"archived"`
	ManagerID   string    `json:"manager_id"`
	CreatedAt   time.Time `json:"created_at"`
}

// ColumnRequest describes one column of a create or replace request
type ColumnRequest struct {
	ID        string   `json:"id"`
	Name      string   `json:"name" binding:"required"`
	Assignees []string `json:"assignees"`
}

// CustomFieldRequest describes a custom field of a create or replace request
type CustomFieldRequest struct {
	ID                string                   `json:"id"`
	Name              string                   `json:"name" binding:"required"`
	Type              models.FieldType         `json:"type" binding:"required"`
	ShowOnCard        bool                     `json:"show_on_card"`
	Options           []string                 `json:"options"`
	Permissions       *models.FieldPermissions `json:"permissions"`
	RequiredInColumns []string                 `json:"required_in_columns"`
}

// CreateChannelRequest is the body of POST /channels
type CreateChannelRequest struct {
	Name        string          `json:"name" binding:"required"`
	Description string          `json:"description"`
	ExternalID  string          `json:"external_id"`
	ManagerID   string          `json:"manager_id"`
	Columns     []ColumnRequest `json:"columns" binding:"required,min=1,dive"`
	MemberIDs   []string        `json:"member_ids"`
}

// UpdateChannelRequest is the body of PATCH /channels/:id. Omitted fields
// are left unchanged; lists and maps replace the stored value.
type UpdateChannelRequest struct {
	Name              *string              `json:"name"`
	Description       *string              `json:"description"`
	Archived          *bool                `json:"archived"`
	ManagerID         *string              `json:"manager_id"`
	ExternalID        *string              `json:"external_id"`
	Columns           []ColumnRequest      `json:"columns" binding:"omitempty,dive"`
	CustomFields      []CustomFieldRequest `json:"custom_fields" binding:"omitempty,dive"`
	ColumnAssignments map[string][]string  `json:"column_assignments"`
}

// AddColumnRequest is the body of POST /channels/:id/columns
type AddColumnRequest struct {
	Name      string   `json:"name" binding:"required"`
	Position  *int     `json:"position"`
	Assignees []string `json:"assignees"`
}

// RenameColumnRequest is the body of PATCH /channels/:id/columns/:column_id
type RenameColumnRequest struct {
	Name string `json:"name" binding:"required"`
}

// ReorderColumnsRequest is the body of PUT /channels/:id/columns/order
type ReorderColumnsRequest struct {
	ColumnIDs []string `json:"column_ids" binding:"required"`
}

// UpdateCustomFieldRequest is the body of PATCH /channels/:id/fields/:field_id
type UpdateCustomFieldRequest struct {
	Name              *string                  `json:"name"`
	ShowOnCard        *bool                    `json:"show_on_card"`
	Options           []string                 `json:"options"`
	Permissions       *models.FieldPermissions `json:"permissions"`
	ClearPermissions  bool                     `json:"clear_permissions"`
	RequiredInColumns []string                 `json:"required_in_columns"`
}

// ColumnAssignmentsRequest is the body of PUT /channels/:id/assignments
type ColumnAssignmentsRequest struct {
	Assignments map[string][]string `json:"assignments" binding:"required"`
}

// AddMemberRequest is the body of POST /channels/:id/members
type AddMemberRequest struct {
	UserID string `json:"user_id" binding:"required"`
}

// ToCustomFieldDTO converts a CustomField model to CustomFieldDTO
func ToCustomFieldDTO(field models.CustomField) CustomFieldDTO {
	required := []string(field.RequiredInColumns)
	if required == nil {
		required = []string{}
	}
	return CustomFieldDTO{
		ID:                field.ID,
		Name:              field.Name,
		Type:              field.Type,
		Order:             field.Position,
		ShowOnCard:        field.ShowOnCard,
		Options:           field.Options,
		Permissions:       field.Permissions,
		RequiredInColumns: required,
	}
}

// ToChannelDTO converts a Channel model to ChannelDTO. Columns are expected
// in position order.
func ToChannelDTO(channel models.Channel) ChannelDTO {
	assignments := channel.ColumnAssignments()

	columns := make([]ColumnDTO, len(channel.Columns))
	for i, col := range channel.Columns {
		assignees := assignments[col.ID]
		if assignees == nil {
			assignees = []string{}
		}
		columns[i] = ColumnDTO{
			ID:        col.ID,
			Name:      col.Name,
			Order:     col.Position,
			Assignees: assignees,
		}
	}

	fields := make([]CustomFieldDTO, len(channel.CustomFields))
	for i, f := range channel.CustomFields {
		fields[i] = ToCustomFieldDTO(f)
	}

	return ChannelDTO{
		ID:           channel.ID,
		Name:         channel.Name,
		Description:  channel.Description,
		Archived:     channel.Archived,
		ManagerID:    channel.ManagerID,
		ExternalID:   channel.ExternalID,
		Columns:      columns,
		CustomFields: fields,
		MemberIDs:    channel.MemberIDs(),
		CreatedAt:    channel.CreatedAt,
		UpdatedAt:    channel.UpdatedAt,
	}
}

// ToChannelListItemDTO converts a Channel model to ChannelListItemDTO
func ToChannelListItemDTO(channel models.Channel) ChannelListItemDTO {
	return ChannelListItemDTO{
		ID:          channel.ID,
		Name:        channel.Name,
		Description: channel.Description,
		Archived:    channel.Archived,
		ManagerID:   channel.ManagerID,
		CreatedAt:   channel.CreatedAt,
	}
}
