package repository

import (
	"github.com/yukikurage/content-pipeline/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormChannelRepository is a GORM implementation of ChannelRepository
type GormChannelRepository struct {
	db *gorm.DB
}

// NewChannelRepository creates a new ChannelRepository
func NewChannelRepository(db *gorm.DB) ChannelRepository {
	return &GormChannelRepository{db: db}
}

func preloadChannel(db *gorm.DB) *gorm.DB {
	return db.
		Preload("Columns", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC") }).
		Preload("CustomFields", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC") }).
		Preload("Members").
		Preload("ColumnAssignees", func(db *gorm.DB) *gorm.DB { return db.Order("column_id ASC, position ASC") })
}

// Create creates a channel together with its columns, fields, members and assignees
func (r *GormChannelRepository) Create(channel *models.Channel) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).Create(channel).Error; err != nil {
			return err
		}
		return syncChildren(tx, channel, true)
	})
}

// FindByID finds a channel with columns and fields ordered by position
func (r *GormChannelRepository) FindByID(id string) (*models.Channel, error) {
	var channel models.Channel
	if err := preloadChannel(r.db).First(&channel, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &channel, nil
}

// List lists channels; an empty userID lists every channel
func (r *GormChannelRepository) List(filter ChannelFilter) ([]models.Channel, error) {
	query := preloadChannel(r.db).Model(&models.Channel{})

	if filter.UserID != "" {
		memberSubQuery := r.db.Model(&models.ChannelMember{}).
			Select("1").
			Where("channel_members.channel_id = channels.id").
			Where("channel_members.user_id = ?", filter.UserID)
		query = query.Where("channels.manager_id = ? OR EXISTS (?)", filter.UserID, memberSubQuery)
	}
	if !filter.IncludeArchived {
		query = query.Where("channels.archived = ?", false)
	}

	var channels []models.Channel
	if err := query.Order("channels.created_at ASC").Find(&channels).Error; err != nil {
		return nil, err
	}
	return channels, nil
}

// Update saves the channel row and synchronizes columns, fields and assignees
func (r *GormChannelRepository) Update(channel *models.Channel) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).Save(channel).Error; err != nil {
			return err
		}
		return syncChildren(tx, channel, false)
	})
}

// syncChildren makes the stored columns, fields and assignees match the
// channel value. Members are written only on create.
func syncChildren(tx *gorm.DB, channel *models.Channel, withMembers bool) error {
	columnIDs := make([]string, 0, len(channel.Columns))
	for i := range channel.Columns {
		channel.Columns[i].ChannelID = channel.ID
		if err := tx.Save(&channel.Columns[i]).Error; err != nil {
			return err
		}
		columnIDs = append(columnIDs, channel.Columns[i].ID)
	}
	stale := tx.Where("channel_id = ?", channel.ID)
	if len(columnIDs) > 0 {
		stale = stale.Where("id NOT IN ?", columnIDs)
	}
	if err := stale.Delete(&models.Column{}).Error; err != nil {
		return err
	}

	fieldIDs := make([]string, 0, len(channel.CustomFields))
	for i := range channel.CustomFields {
		channel.CustomFields[i].ChannelID = channel.ID
		if err := tx.Save(&channel.CustomFields[i]).Error; err != nil {
			return err
		}
		fieldIDs = append(fieldIDs, channel.CustomFields[i].ID)
	}
	staleFields := tx.Where("channel_id = ?", channel.ID)
	if len(fieldIDs) > 0 {
		staleFields = staleFields.Where("id NOT IN ?", fieldIDs)
	}
	if err := staleFields.Delete(&models.CustomField{}).Error; err != nil {
		return err
	}

	if err := tx.Where("channel_id = ?", channel.ID).Delete(&models.ColumnAssignee{}).Error; err != nil {
		return err
	}
	for i := range channel.ColumnAssignees {
		channel.ColumnAssignees[i].ChannelID = channel.ID
	}
	if len(channel.ColumnAssignees) > 0 {
		if err := tx.Create(&channel.ColumnAssignees).Error; err != nil {
			return err
		}
	}

	if withMembers {
		for i := range channel.Members {
			channel.Members[i].ChannelID = channel.ID
		}
		if len(channel.Members) > 0 {
			if err := tx.Omit("User").
				Clauses(clause.OnConflict{DoNothing: true}).
				Create(&channel.Members).Error; err != nil {
				return err
			}
		}
	}
	return nil
}

// Delete removes a channel and everything recorded for it
func (r *GormChannelRepository) Delete(id string) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		cascade := []interface{}{
			&models.StageEvent{},
			&models.CompletedTask{},
			&models.Task{},
			&models.ColumnAssignee{},
			&models.CustomField{},
			&models.Column{},
			&models.ChannelMember{},
		}
		for _, model := range cascade {
			if err := tx.Where("channel_id = ?", id).Delete(model).Error; err != nil {
				return err
			}
		}

		res := tx.Delete(&models.Channel{}, "id = ?", id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
}

// DeleteColumn saves the channel without columnID, moving its tasks to
// destinationID when one is given. Returns the number of moved tasks.
func (r *GormChannelRepository) DeleteColumn(channel *models.Channel, columnID, destinationID string) (int64, error) {
	var moved int64
	err := r.db.Transaction(func(tx *gorm.DB) error {
		if destinationID != "" {
			res := tx.Model(&models.Task{}).
				Where("column_id = ?", columnID).
				Update("column_id", destinationID)
			if res.Error != nil {
				return res.Error
			}
			moved = res.RowsAffected
		}

		if err := tx.Omit(clause.Associations).Save(channel).Error; err != nil {
			return err
		}
		return syncChildren(tx, channel, false)
	})
	return moved, err
}

// AddMember adds a member to a channel
func (r *GormChannelRepository) AddMember(member *models.ChannelMember) error {
	return r.db.Omit("User").Create(member).Error
}

// RemoveMember removes a member and their column responsibilities
func (r *GormChannelRepository) RemoveMember(channelID, userID string) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("channel_id = ? AND user_id = ?", channelID, userID).
			Delete(&models.ColumnAssignee{}).Error; err != nil {
			return err
		}
		return tx.Where("channel_id = ? AND user_id = ?", channelID, userID).
			Delete(&models.ChannelMember{}).Error
	})
}

// FindMember finds a specific channel member
func (r *GormChannelRepository) FindMember(channelID, userID string) (*models.ChannelMember, error) {
	var member models.ChannelMember
	if err := r.db.Where("channel_id = ? AND user_id = ?", channelID, userID).
		First(&member).Error; err != nil {
		return nil, err
	}
	return &member, nil
}
