package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/yukikurage/content-pipeline/internal/dto"
	apierrors "github.com/yukikurage/content-pipeline/internal/errors"
	"github.com/yukikurage/content-pipeline/internal/middleware"
	"github.com/yukikurage/content-pipeline/internal/services"
)

// ChannelHandler exposes channel, column and custom field administration.
type ChannelHandler struct {
	channelService *services.ChannelService
}

// NewChannelHandler creates a new ChannelHandler
func NewChannelHandler(channelService *services.ChannelService) *ChannelHandler {
	return &ChannelHandler{
		channelService: channelService,
	}
}

func toColumnInputs(reqs []dto.ColumnRequest) []services.ColumnInput {
	if reqs == nil {
		return nil
	}
	inputs := make([]services.ColumnInput, len(reqs))
	for i, r := range reqs {
		inputs[i] = services.ColumnInput{ID: r.ID, Name: r.Name, Assignees: r.Assignees}
	}
	return inputs
}

func toFieldInputs(reqs []dto.CustomFieldRequest) []services.CustomFieldInput {
	if reqs == nil {
		return nil
	}
	inputs := make([]services.CustomFieldInput, len(reqs))
	for i, r := range reqs {
		inputs[i] = services.CustomFieldInput{
			ID:                r.ID,
			Name:              r.Name,
			Type:              r.Type,
			ShowOnCard:        r.ShowOnCard,
			Options:           r.Options,
			Permissions:       r.Permissions,
			RequiredInColumns: r.RequiredInColumns,
		}
	}
	return inputs
}

// CreateChannel creates a channel with its initial columns
func (h *ChannelHandler) CreateChannel(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}

	var req dto.CreateChannelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.BadRequest(c, "Invalid request body")
		return
	}

	channel, err := h.channelService.CreateChannel(services.CreateChannelInput{
		Name:        req.Name,
		Description: req.Description,
		ExternalID:  req.ExternalID,
		ManagerID:   req.ManagerID,
		Columns:     toColumnInputs(req.Columns),
		MemberIDs:   req.MemberIDs,
		Creator:     user,
	})
	if err != nil {
		respondDomainError(c, err)
		return
	}

	c.JSON(http.StatusCreated, dto.ToChannelDTO(*channel))
}

// ListChannels returns the channels the current user can access
func (h *ChannelHandler) ListChannels(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}

	includeArchived, _ := strconv.ParseBool(c.DefaultQuery("include_archived", "false"))
	channels, err := h.channelService.ListChannels(user, includeArchived)
	if err != nil {
		respondDomainError(c, err)
		return
	}

	items := make([]dto.ChannelListItemDTO, len(channels))
	for i, ch := range channels {
		items[i] = dto.ToChannelListItemDTO(ch)
	}

	c.JSON(http.StatusOK, gin.H{
		"channels": items,
	})
}

// GetChannel returns the channel loaded by RequireChannelAccess
func (h *ChannelHandler) GetChannel(c *gin.Context) {
	channel, ok := middleware.GetChannel(c)
	if !ok {
		apierrors.InternalError(c, "Channel not found in context")
		return
	}

	c.JSON(http.StatusOK, dto.ToChannelDTO(*channel))
}

// UpdateChannel updates channel settings, columns, fields and assignments
func (h *ChannelHandler) UpdateChannel(c *gin.Context) {
	var req dto.UpdateChannelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.BadRequest(c, "Invalid request body")
		return
	}

	channel, err := h.channelService.UpdateChannel(c.Param("id"), services.UpdateChannelInput{
		Name:              req.Name,
		Description:       req.Description,
		Archived:          req.Archived,
		ManagerID:         req.ManagerID,
		ExternalID:        req.ExternalID,
		Columns:           toColumnInputs(req.Columns),
		CustomFields:      toFieldInputs(req.CustomFields),
		ColumnAssignments: req.ColumnAssignments,
	})
	if err != nil {
		respondDomainError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.ToChannelDTO(*channel))
}

// DeleteChannel deletes a channel with its tasks, events and archive
func (h *ChannelHandler) DeleteChannel(c *gin.Context) {
	if err := h.channelService.DeleteChannel(c.Param("id")); err != nil {
		respondDomainError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Channel deleted successfully",
	})
}

// AddColumn inserts a column
func (h *ChannelHandler) AddColumn(c *gin.Context) {
	var req dto.AddColumnRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.BadRequest(c, "Invalid request body")
		return
	}

	channel, err := h.channelService.AddColumn(c.Param("id"), services.AddColumnInput{
		Name:      req.Name,
		Position:  req.Position,
		Assignees: req.Assignees,
	})
	if err != nil {
		respondDomainError(c, err)
		return
	}

	c.JSON(http.StatusCreated, dto.ToChannelDTO(*channel))
}

// RenameColumn renames a column
func (h *ChannelHandler) RenameColumn(c *gin.Context) {
	var req dto.RenameColumnRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.BadRequest(c, "Invalid request body")
		return
	}

	channel, err := h.channelService.RenameColumn(c.Param("id"), c.Param("column_id"), req.Name)
	if err != nil {
		respondDomainError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.ToChannelDTO(*channel))
}

// ReorderColumns sets a new column order
func (h *ChannelHandler) ReorderColumns(c *gin.Context) {
	var req dto.ReorderColumnsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.BadRequest(c, "Invalid request body")
		return
	}

	channel, err := h.channelService.ReorderColumns(c.Param("id"), req.ColumnIDs)
	if err != nil {
		respondDomainError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.ToChannelDTO(*channel))
}

// DeleteColumn removes a column. Tasks in it move to ?destination=.
func (h *ChannelHandler) DeleteColumn(c *gin.Context) {
	channel, err := h.channelService.DeleteColumn(c.Param("id"), c.Param("column_id"), c.Query("destination"))
	if err != nil {
		respondDomainError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.ToChannelDTO(*channel))
}

// AddCustomField defines a new custom field
func (h *ChannelHandler) AddCustomField(c *gin.Context) {
	var req dto.CustomFieldRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.BadRequest(c, "Invalid request body")
		return
	}

	inputs := toFieldInputs([]dto.CustomFieldRequest{req})
	field, err := h.channelService.AddCustomField(c.Param("id"), inputs[0])
	if err != nil {
		respondDomainError(c, err)
		return
	}

	c.JSON(http.StatusCreated, dto.ToCustomFieldDTO(*field))
}

// UpdateCustomField changes a field definition
func (h *ChannelHandler) UpdateCustomField(c *gin.Context) {
	var req dto.UpdateCustomFieldRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.BadRequest(c, "Invalid request body")
		return
	}

	field, err := h.channelService.UpdateCustomField(c.Param("id"), c.Param("field_id"), services.UpdateCustomFieldInput{
		Name:              req.Name,
		ShowOnCard:        req.ShowOnCard,
		Options:           req.Options,
		Permissions:       req.Permissions,
		ClearPermissions:  req.ClearPermissions,
		RequiredInColumns: req.RequiredInColumns,
	})
	if err != nil {
		respondDomainError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.ToCustomFieldDTO(*field))
}

// DeleteCustomField removes a field and its values from every task
func (h *ChannelHandler) DeleteCustomField(c *gin.Context) {
	channel, err := h.channelService.DeleteCustomField(c.Param("id"), c.Param("field_id"))
	if err != nil {
		respondDomainError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.ToChannelDTO(*channel))
}

// SetColumnAssignments replaces the responsible users of every column
func (h *ChannelHandler) SetColumnAssignments(c *gin.Context) {
	var req dto.ColumnAssignmentsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.BadRequest(c, "Invalid request body")
		return
	}

	channel, err := h.channelService.SetColumnAssignments(c.Param("id"), req.Assignments)
	if err != nil {
		respondDomainError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.ToChannelDTO(*channel))
}

// AddMember adds a user to the channel
func (h *ChannelHandler) AddMember(c *gin.Context) {
	var req dto.AddMemberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.BadRequest(c, "Invalid request body")
		return
	}

	if err := h.channelService.AddMember(c.Param("id"), req.UserID); err != nil {
		respondDomainError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message": "Member added successfully",
	})
}

// RemoveMember removes a user from the channel
func (h *ChannelHandler) RemoveMember(c *gin.Context) {
	if err := h.channelService.RemoveMember(c.Param("id"), c.Param("user_id")); err != nil {
		respondDomainError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Member removed successfully",
	})
}
