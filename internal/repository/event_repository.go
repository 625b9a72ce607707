package repository

import (
	"github.com/yukikurage/content-pipeline/internal/analytics"
	"github.com/yukikurage/content-pipeline/internal/database"
	"github.com/yukikurage/content-pipeline/internal/models"
	"github.com/yukikurage/content-pipeline/internal/utils"
	"gorm.io/gorm"
)

// GormStageEventRepository is a GORM implementation of StageEventRepository
type GormStageEventRepository struct {
	db *gorm.DB
}

// NewStageEventRepository creates a new StageEventRepository
func NewStageEventRepository(db *gorm.DB) StageEventRepository {
	return &GormStageEventRepository{db: db}
}

// ListByTask lists the events of a task in workflow order
func (r *GormStageEventRepository) ListByTask(taskID string) ([]models.StageEvent, error) {
	var events []models.StageEvent
	if err := r.db.Where("task_id = ?", taskID).
		Order("sequence ASC").
		Find(&events).Error; err != nil {
		return nil, err
	}
	return events, nil
}

// ListByChannels lists the events of the given channels in occurrence order
func (r *GormStageEventRepository) ListByChannels(channelIDs []string) ([]models.StageEvent, error) {
	var events []models.StageEvent
	if len(channelIDs) == 0 {
		return events, nil
	}
	if err := r.db.Where("channel_id IN ?", channelIDs).
		Order("occurred_at ASC").
		Order("sequence ASC").
		Find(&events).Error; err != nil {
		return nil, err
	}
	return events, nil
}

// GormCompletedTaskRepository is a GORM implementation of CompletedTaskRepository
type GormCompletedTaskRepository struct {
	db *gorm.DB
}

// NewCompletedTaskRepository creates a new CompletedTaskRepository
func NewCompletedTaskRepository(db *gorm.DB) CompletedTaskRepository {
	return &GormCompletedTaskRepository{db: db}
}

// FindByTaskID finds the snapshot of an archived task
func (r *GormCompletedTaskRepository) FindByTaskID(taskID string) (*models.CompletedTask, error) {
	var completed models.CompletedTask
	if err := r.db.Where("task_id = ?", taskID).First(&completed).Error; err != nil {
		return nil, err
	}
	return &completed, nil
}

// ListByChannel lists archived tasks of a channel, newest first
func (r *GormCompletedTaskRepository) ListByChannel(channelID string, page, pageSize int) ([]models.CompletedTask, int64, error) {
	var completed []models.CompletedTask

	query := r.db.Model(&models.CompletedTask{}).Where("channel_id = ?", channelID)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	listQuery := query.Order("completed_at DESC")
	if page > 0 && pageSize > 0 {
		listQuery = listQuery.Scopes(database.Paginate(utils.NewPaginationParams(page, pageSize)))
	}
	if err := listQuery.Find(&completed).Error; err != nil {
		return nil, 0, err
	}
	return completed, total, nil
}

// GormSnapshotRepository is a GORM implementation of SnapshotRepository
type GormSnapshotRepository struct {
	db *gorm.DB
}

// NewSnapshotRepository creates a new SnapshotRepository
func NewSnapshotRepository(db *gorm.DB) SnapshotRepository {
	return &GormSnapshotRepository{db: db}
}

// Load reads channels, tasks, completed tasks, events and users in one
// transaction so the report never mixes states.
func (r *GormSnapshotRepository) Load(channelIDs []string) (*analytics.Dataset, error) {
	ds := &analytics.Dataset{}
	err := r.db.Transaction(func(tx *gorm.DB) error {
		scoped := func(q *gorm.DB, column string) *gorm.DB {
			if len(channelIDs) == 0 {
				return q
			}
			return q.Where(column+" IN ?", channelIDs)
		}

		if err := scoped(preloadChannel(tx), "id").Order("created_at ASC").Find(&ds.Channels).Error; err != nil {
			return err
		}
		if err := scoped(tx, "channel_id").Find(&ds.Tasks).Error; err != nil {
			return err
		}
		if err := scoped(tx, "channel_id").Order("completed_at ASC").Find(&ds.Completed).Error; err != nil {
			return err
		}
		if err := scoped(tx, "channel_id").Order("occurred_at ASC").Find(&ds.Events).Error; err != nil {
			return err
		}
		return tx.Order("username ASC").Find(&ds.Users).Error
	})
	if err != nil {
		return nil, err
	}
	return ds, nil
}
