package services

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/yukikurage/content-pipeline/internal/lock"
	"github.com/yukikurage/content-pipeline/internal/logging"
	"github.com/yukikurage/content-pipeline/internal/models"
	"github.com/yukikurage/content-pipeline/internal/repository"
	"github.com/yukikurage/content-pipeline/internal/workflow"
	"gorm.io/gorm"
)

var (
	ErrChannelNameRequired = errors.New("channel name is required")
	ErrUnknownUser         = errors.New("one or more users do not exist")
	ErrAlreadyMember       = errors.New("user is already a member of the channel")
	ErrNotMember           = errors.New("user is not a member of the channel")
	ErrCannotRemoveManager = errors.New("the channel manager cannot be removed")
	ErrCannotCreateChannel = errors.New("only owners and managers can create channels")
)

// ChannelService handles channel and column business logic
type ChannelService struct {
	channelRepo repository.ChannelRepository
	taskRepo    repository.TaskRepository
	userRepo    repository.UserRepository
	locks       *lock.Registry
	notifier    Notifier
}

// NewChannelService creates a new ChannelService
func NewChannelService(
	channelRepo repository.ChannelRepository,
	taskRepo repository.TaskRepository,
	userRepo repository.UserRepository,
	locks *lock.Registry,
) *ChannelService {
	return &ChannelService{
		channelRepo: channelRepo,
		taskRepo:    taskRepo,
		userRepo:    userRepo,
		locks:       locks,
		notifier:    nopNotifier{},
	}
}

// SetNotifier routes committed channel changes to n.
func (s *ChannelService) SetNotifier(n Notifier) {
	if n == nil {
		n = nopNotifier{}
	}
	s.notifier = n
}

// ColumnInput describes one column. ID is empty for new columns. A non-nil
// Assignees replaces the column's responsible users.
type ColumnInput struct {
	ID        string
	Name      string
	Assignees []string
}

// CustomFieldInput describes a custom field. ID is empty for new fields.
type CustomFieldInput struct {
	ID                string
	Name              string
	Type              models.FieldType
	ShowOnCard        bool
	Options           []string
	Permissions       *models.FieldPermissions
	RequiredInColumns []string
}

// CreateChannelInput represents input for creating a channel
type CreateChannelInput struct {
	Name        string
	Description string
	ExternalID  string
	ManagerID   string
	Columns     []ColumnInput
	MemberIDs   []string
	Creator     *models.User
}

// UpdateChannelInput represents input for updating a channel. Nil fields are
// left unchanged; non-nil slices and maps replace the stored value. Columns
// are applied before ColumnAssignments, which replaces every column's
// responsible users.
type UpdateChannelInput struct {
	Name              *string
	Description       *string
	Archived          *bool
	ManagerID         *string
	ExternalID        *string
	Columns           []ColumnInput
	CustomFields      []CustomFieldInput
	ColumnAssignments map[string][]string
}

// AddColumnInput represents input for adding a column. Position is the
// zero-based insertion index; nil appends.
type AddColumnInput struct {
	Name      string
	Position  *int
	Assignees []string
}

// UpdateCustomFieldInput represents input for changing a field definition.
// The field type cannot change once values may exist.
type UpdateCustomFieldInput struct {
	Name              *string
	ShowOnCard        *bool
	Options           []string
	Permissions       *models.FieldPermissions
	ClearPermissions  bool
	RequiredInColumns []string
}

// CreateChannel creates a channel with its initial columns
func (s *ChannelService) CreateChannel(input CreateChannelInput) (*models.Channel, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, ErrChannelNameRequired
	}
	if input.Creator == nil || (input.Creator.Role != models.RoleOwner && input.Creator.Role != models.RoleManager) {
		return nil, ErrCannotCreateChannel
	}

	channel := &models.Channel{
		ID:          uuid.NewString(),
		Name:        name,
		Description: input.Description,
		ExternalID:  input.ExternalID,
		ManagerID:   input.ManagerID,
	}
	if channel.ManagerID == "" {
		channel.ManagerID = input.Creator.ID
	}

	if err := s.replaceColumns(channel, input.Columns); err != nil {
		return nil, err
	}

	memberIDs := uniqueStrings(input.MemberIDs)
	if err := s.ensureUsersExist(append([]string{channel.ManagerID}, memberIDs...)); err != nil {
		return nil, err
	}
	if err := s.ensureUsersExist(assignedUsers(channel)); err != nil {
		return nil, err
	}

	now := time.Now()
	for _, id := range memberIDs {
		channel.Members = append(channel.Members, models.ChannelMember{ChannelID: channel.ID, UserID: id, JoinedAt: now})
	}

	if err := s.channelRepo.Create(channel); err != nil {
		return nil, fmt.Errorf("failed to create channel: %w", err)
	}

	logging.Logger.WithFields(logrus.Fields{
		"channel_id": channel.ID,
		"columns":    len(channel.Columns),
	}).Info("channel created")
	s.notifier.Notify(channel.ID, NotifyChannelUpdated, channel)

	return channel, nil
}

// GetChannel returns a channel with its columns and fields
func (s *ChannelService) GetChannel(channelID string) (*models.Channel, error) {
	return s.loadChannel(channelID)
}

// ListChannels returns the channels visible to user. Owners see every channel.
func (s *ChannelService) ListChannels(user *models.User, includeArchived bool) ([]models.Channel, error) {
	filter := repository.ChannelFilter{IncludeArchived: includeArchived}
	if !user.IsOwner() {
		filter.UserID = user.ID
	}

	channels, err := s.channelRepo.List(filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list channels: %w", err)
	}
	return channels, nil
}

// UpdateChannel updates channel settings and optionally replaces its columns,
// custom fields and column assignments
func (s *ChannelService) UpdateChannel(channelID string, input UpdateChannelInput) (*models.Channel, error) {
	return s.mutate(channelID, func(channel *models.Channel) error {
		if input.Name != nil {
			name := strings.TrimSpace(*input.Name)
			if name == "" {
				return ErrChannelNameRequired
			}
			channel.Name = name
		}
		if input.Description != nil {
			channel.Description = *input.Description
		}
		if input.Archived != nil {
			channel.Archived = *input.Archived
		}
		if input.ExternalID != nil {
			channel.ExternalID = *input.ExternalID
		}
		if input.ManagerID != nil {
			if err := s.ensureUsersExist([]string{*input.ManagerID}); err != nil {
				return err
			}
			channel.ManagerID = *input.ManagerID
		}

		if input.Columns != nil {
			if err := s.replaceColumns(channel, input.Columns); err != nil {
				return err
			}
		}
		if input.ColumnAssignments != nil {
			if err := workflow.ValidateAssignments(channel, input.ColumnAssignments); err != nil {
				return err
			}
			channel.SetColumnAssignments(input.ColumnAssignments)
		}
		if input.CustomFields != nil {
			if err := replaceFields(channel, input.CustomFields); err != nil {
				return err
			}
		}

		return s.ensureUsersExist(assignedUsers(channel))
	})
}

// DeleteChannel removes a channel with its tasks, completed tasks and events
func (s *ChannelService) DeleteChannel(channelID string) error {
	unlock := s.locks.Lock(channelKey(channelID))
	defer unlock()

	if err := s.channelRepo.Delete(channelID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return workflow.ErrChannelNotFound
		}
		return fmt.Errorf("failed to delete channel: %w", err)
	}

	logging.Logger.WithField("channel_id", channelID).Info("channel deleted")
	s.notifier.Notify(channelID, NotifyChannelDeleted, nil)
	return nil
}

// AddColumn inserts a column at the requested position
func (s *ChannelService) AddColumn(channelID string, input AddColumnInput) (*models.Channel, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, fmt.Errorf("%w: column name cannot be empty", workflow.ErrInvalidColumn)
	}

	return s.mutate(channelID, func(channel *models.Channel) error {
		col := models.Column{ID: uuid.NewString(), ChannelID: channel.ID, Name: name}
		position := -1
		if input.Position != nil {
			position = *input.Position
		}
		channel.Columns = workflow.InsertColumn(channel.Columns, col, position)

		if input.Assignees != nil {
			if err := s.ensureUsersExist(input.Assignees); err != nil {
				return err
			}
			assignments := channel.ColumnAssignments()
			if assignments == nil {
				assignments = make(map[string][]string)
			}
			assignments[col.ID] = input.Assignees
			channel.SetColumnAssignments(assignments)
		}
		return nil
	})
}

// RenameColumn changes a column's name
func (s *ChannelService) RenameColumn(channelID, columnID, name string) (*models.Channel, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: column name cannot be empty", workflow.ErrInvalidColumn)
	}

	return s.mutate(channelID, func(channel *models.Channel) error {
		col, ok := workflow.FindColumn(channel, columnID)
		if !ok {
			return fmt.Errorf("%w: %s", workflow.ErrInvalidColumn, columnID)
		}
		col.Name = name
		return nil
	})
}

// ReorderColumns applies a full permutation of the channel's column ids
func (s *ChannelService) ReorderColumns(channelID string, columnIDs []string) (*models.Channel, error) {
	return s.mutate(channelID, func(channel *models.Channel) error {
		ordered, err := workflow.ReorderColumns(channel.Columns, columnIDs)
		if err != nil {
			return err
		}
		channel.Columns = ordered
		return nil
	})
}

// DeleteColumn removes a column. Tasks still in it are moved to destinationID
// without stage events; without a destination the column must be empty.
func (s *ChannelService) DeleteColumn(channelID, columnID, destinationID string) (*models.Channel, error) {
	unlock := s.locks.Lock(channelKey(channelID))
	defer unlock()

	channel, err := s.loadChannel(channelID)
	if err != nil {
		return nil, err
	}

	remaining, err := workflow.RemoveColumn(channel.Columns, columnID)
	if err != nil {
		if errors.Is(err, workflow.ErrInvalidColumn) {
			return nil, fmt.Errorf("%w: %s", workflow.ErrInvalidColumn, columnID)
		}
		return nil, err
	}

	if destinationID != "" {
		if destinationID == columnID || workflow.ColumnIndex(remaining, destinationID) < 0 {
			return nil, fmt.Errorf("%w: destination %s", workflow.ErrInvalidColumn, destinationID)
		}
	} else {
		count, err := s.taskRepo.CountByColumn(columnID)
		if err != nil {
			return nil, fmt.Errorf("failed to count tasks in column: %w", err)
		}
		if count > 0 {
			return nil, workflow.ErrColumnNotEmpty
		}
	}

	channel.Columns = remaining
	pruneColumn(channel, columnID)

	moved, err := s.channelRepo.DeleteColumn(channel, columnID, destinationID)
	if err != nil {
		return nil, fmt.Errorf("failed to delete column: %w", err)
	}

	logging.Logger.WithFields(logrus.Fields{
		"channel_id":  channel.ID,
		"column_id":   columnID,
		"destination": destinationID,
		"moved_tasks": moved,
	}).Info("column deleted")
	s.notifier.Notify(channel.ID, NotifyChannelUpdated, channel)

	return channel, nil
}

// AddCustomField appends a custom field to the channel
func (s *ChannelService) AddCustomField(channelID string, input CustomFieldInput) (*models.CustomField, error) {
	var added models.CustomField
	_, err := s.mutate(channelID, func(channel *models.Channel) error {
		field := models.CustomField{
			ID:                uuid.NewString(),
			ChannelID:         channel.ID,
			Name:              strings.TrimSpace(input.Name),
			Type:              input.Type,
			Position:          len(channel.CustomFields),
			ShowOnCard:        input.ShowOnCard,
			Options:           uniqueStrings(input.Options),
			Permissions:       input.Permissions,
			RequiredInColumns: uniqueStrings(input.RequiredInColumns),
		}
		if err := workflow.ValidateField(channel, &field); err != nil {
			return err
		}
		channel.CustomFields = append(channel.CustomFields, field)
		added = field
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &added, nil
}

// UpdateCustomField changes a field definition
func (s *ChannelService) UpdateCustomField(channelID, fieldID string, input UpdateCustomFieldInput) (*models.CustomField, error) {
	var updated models.CustomField
	_, err := s.mutate(channelID, func(channel *models.Channel) error {
		found, ok := workflow.FindField(channel, fieldID)
		if !ok {
			return fmt.Errorf("%w: %s", workflow.ErrUnknownField, fieldID)
		}

		field := *found
		if input.Name != nil {
			field.Name = strings.TrimSpace(*input.Name)
		}
		if input.ShowOnCard != nil {
			field.ShowOnCard = *input.ShowOnCard
		}
		if input.Options != nil {
			field.Options = uniqueStrings(input.Options)
		}
		if input.ClearPermissions {
			field.Permissions = nil
		} else if input.Permissions != nil {
			field.Permissions = input.Permissions
		}
		if input.RequiredInColumns != nil {
			field.RequiredInColumns = uniqueStrings(input.RequiredInColumns)
		}

		if err := workflow.ValidateField(channel, &field); err != nil {
			return err
		}
		*found = field
		updated = field
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

// DeleteCustomField removes a field definition. Values already stored on
// tasks are ignored from then on.
func (s *ChannelService) DeleteCustomField(channelID, fieldID string) (*models.Channel, error) {
	return s.mutate(channelID, func(channel *models.Channel) error {
		kept := channel.CustomFields[:0]
		found := false
		for _, f := range channel.CustomFields {
			if f.ID == fieldID {
				found = true
				continue
			}
			kept = append(kept, f)
		}
		if !found {
			return fmt.Errorf("%w: %s", workflow.ErrUnknownField, fieldID)
		}
		for i := range kept {
			kept[i].Position = i
		}
		channel.CustomFields = kept
		return nil
	})
}

// SetColumnAssignments replaces the column responsibility map
func (s *ChannelService) SetColumnAssignments(channelID string, assignments map[string][]string) (*models.Channel, error) {
	return s.mutate(channelID, func(channel *models.Channel) error {
		if err := workflow.ValidateAssignments(channel, assignments); err != nil {
			return err
		}
		channel.SetColumnAssignments(assignments)
		return s.ensureUsersExist(assignedUsers(channel))
	})
}

// AddMember adds a user to the channel
func (s *ChannelService) AddMember(channelID, userID string) error {
	unlock := s.locks.Lock(channelKey(channelID))
	defer unlock()

	channel, err := s.loadChannel(channelID)
	if err != nil {
		return err
	}
	if channel.IsMember(userID) {
		return ErrAlreadyMember
	}
	if err := s.ensureUsersExist([]string{userID}); err != nil {
		return err
	}

	member := &models.ChannelMember{ChannelID: channelID, UserID: userID, JoinedAt: time.Now()}
	if err := s.channelRepo.AddMember(member); err != nil {
		return fmt.Errorf("failed to add member: %w", err)
	}
	return nil
}

// RemoveMember removes a user and their column responsibilities
func (s *ChannelService) RemoveMember(channelID, userID string) error {
	unlock := s.locks.Lock(channelKey(channelID))
	defer unlock()

	channel, err := s.loadChannel(channelID)
	if err != nil {
		return err
	}
	if channel.ManagerID == userID {
		return ErrCannotRemoveManager
	}
	if _, err := s.channelRepo.FindMember(channelID, userID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotMember
		}
		return fmt.Errorf("failed to find member: %w", err)
	}

	if err := s.channelRepo.RemoveMember(channelID, userID); err != nil {
		return fmt.Errorf("failed to remove member: %w", err)
	}
	return nil
}

// mutate runs fn on the locked channel and saves the result
func (s *ChannelService) mutate(channelID string, fn func(channel *models.Channel) error) (*models.Channel, error) {
	unlock := s.locks.Lock(channelKey(channelID))
	defer unlock()

	channel, err := s.loadChannel(channelID)
	if err != nil {
		return nil, err
	}
	if err := fn(channel); err != nil {
		return nil, err
	}

	if err := s.channelRepo.Update(channel); err != nil {
		return nil, fmt.Errorf("failed to update channel: %w", err)
	}
	s.notifier.Notify(channel.ID, NotifyChannelUpdated, channel)

	return channel, nil
}

func (s *ChannelService) loadChannel(channelID string) (*models.Channel, error) {
	channel, err := s.channelRepo.FindByID(channelID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, workflow.ErrChannelNotFound
		}
		return nil, fmt.Errorf("failed to find channel: %w", err)
	}
	workflow.SortColumns(channel.Columns)
	return channel, nil
}

// replaceColumns sets the channel's columns from inputs. Existing columns
// keep their ids; dropped columns must be empty.
func (s *ChannelService) replaceColumns(channel *models.Channel, inputs []ColumnInput) error {
	existing := make(map[string]bool, len(channel.Columns))
	for _, col := range channel.Columns {
		existing[col.ID] = true
	}

	next := make([]models.Column, 0, len(inputs))
	for _, in := range inputs {
		col := models.Column{ID: in.ID, ChannelID: channel.ID, Name: strings.TrimSpace(in.Name)}
		if col.ID == "" {
			col.ID = uuid.NewString()
		} else if !existing[col.ID] {
			return fmt.Errorf("%w: %s", workflow.ErrInvalidColumn, col.ID)
		}
		next = append(next, col)
	}
	if err := workflow.ValidateColumns(next); err != nil {
		return err
	}
	workflow.Densify(next)

	kept := make(map[string]bool, len(next))
	for _, col := range next {
		kept[col.ID] = true
	}
	for id := range existing {
		if kept[id] {
			continue
		}
		count, err := s.taskRepo.CountByColumn(id)
		if err != nil {
			return fmt.Errorf("failed to count tasks in column: %w", err)
		}
		if count > 0 {
			return workflow.ErrColumnNotEmpty
		}
		pruneColumn(channel, id)
	}
	channel.Columns = next

	assignments := channel.ColumnAssignments()
	for i, in := range inputs {
		if in.Assignees == nil {
			continue
		}
		if assignments == nil {
			assignments = make(map[string][]string)
		}
		assignments[next[i].ID] = in.Assignees
	}
	channel.SetColumnAssignments(assignments)
	return nil
}

// replaceFields sets the channel's custom fields from inputs
func replaceFields(channel *models.Channel, inputs []CustomFieldInput) error {
	existing := make(map[string]models.CustomField, len(channel.CustomFields))
	for _, f := range channel.CustomFields {
		existing[f.ID] = f
	}

	next := make([]models.CustomField, 0, len(inputs))
	for i, in := range inputs {
		field := models.CustomField{
			ID:                in.ID,
			ChannelID:         channel.ID,
			Name:              strings.TrimSpace(in.Name),
			Type:              in.Type,
			Position:          i,
			ShowOnCard:        in.ShowOnCard,
			Options:           uniqueStrings(in.Options),
			Permissions:       in.Permissions,
			RequiredInColumns: uniqueStrings(in.RequiredInColumns),
		}
		if field.ID == "" {
			field.ID = uuid.NewString()
		} else if old, ok := existing[field.ID]; !ok {
			return fmt.Errorf("%w: %s", workflow.ErrUnknownField, field.ID)
		} else if old.Type != field.Type {
			return fmt.Errorf("%w: type of field %s cannot change", workflow.ErrInvalidFieldValue, old.Name)
		}

		if err := workflow.ValidateField(channel, &field); err != nil {
			return err
		}
		next = append(next, field)
	}

	channel.CustomFields = next
	return nil
}

// pruneColumn drops every reference to a removed column
func pruneColumn(channel *models.Channel, columnID string) {
	workflow.PruneColumn(channel.CustomFields, columnID)
	assignments := channel.ColumnAssignments()
	if _, ok := assignments[columnID]; ok {
		delete(assignments, columnID)
		channel.SetColumnAssignments(assignments)
	}
}

func assignedUsers(channel *models.Channel) []string {
	ids := make([]string, 0, len(channel.ColumnAssignees))
	for _, a := range channel.ColumnAssignees {
		ids = append(ids, a.UserID)
	}
	return ids
}

func (s *ChannelService) ensureUsersExist(ids []string) error {
	ids = uniqueStrings(ids)
	if len(ids) == 0 {
		return nil
	}
	count, err := s.userRepo.CountByIDs(ids)
	if err != nil {
		return fmt.Errorf("failed to verify users: %w", err)
	}
	if int(count) != len(ids) {
		return ErrUnknownUser
	}
	return nil
}
