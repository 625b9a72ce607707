package repository

import (
	"time"

	"github.com/yukikurage/content-pipeline/internal/database"
	"github.com/yukikurage/content-pipeline/internal/models"
	"github.com/yukikurage/content-pipeline/internal/utils"
	"gorm.io/gorm"
)

// GormTaskRepository is a GORM implementation of TaskRepository
type GormTaskRepository struct {
	db *gorm.DB
}

// NewTaskRepository creates a new TaskRepository
func NewTaskRepository(db *gorm.DB) TaskRepository {
	return &GormTaskRepository{db: db}
}

// Create creates a new task
func (r *GormTaskRepository) Create(task *models.Task) error {
	return r.db.Create(task).Error
}

// FindByID finds a task by ID
func (r *GormTaskRepository) FindByID(id string) (*models.Task, error) {
	var task models.Task
	if err := r.db.First(&task, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &task, nil
}

// List retrieves tasks with filtering and pagination
func (r *GormTaskRepository) List(filter TaskFilter) ([]models.Task, int64, error) {
	var tasks []models.Task

	query := r.db.Model(&models.Task{}).Where("tasks.channel_id = ?", filter.ChannelID)

	// Apply filters
	if filter.ColumnID != nil {
		query = query.Where("tasks.column_id = ?", *filter.ColumnID)
	}
	if filter.AssignedTo != nil {
		query = query.Where("tasks.assigned_to = ?", *filter.AssignedTo)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	listQuery := query.Order("tasks.created_at ASC").Order("tasks.id ASC")
	if filter.Page > 0 && filter.PageSize > 0 {
		listQuery = listQuery.Scopes(database.Paginate(utils.NewPaginationParams(filter.Page, filter.PageSize)))
	}

	if err := listQuery.Find(&tasks).Error; err != nil {
		return nil, 0, err
	}

	return tasks, total, nil
}

// Update updates a task without recording a stage event
func (r *GormTaskRepository) Update(task *models.Task) error {
	return r.db.Save(task).Error
}

// Delete deletes an active task. Its stage events stay for analytics.
func (r *GormTaskRepository) Delete(id string) error {
	res := r.db.Delete(&models.Task{}, "id = ?", id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// CountByColumn counts active tasks sitting in a column
func (r *GormTaskRepository) CountByColumn(columnID string) (int64, error) {
	var count int64
	err := r.db.Model(&models.Task{}).Where("column_id = ?", columnID).Count(&count).Error
	return count, err
}

// Transition saves the moved task and records its stage event atomically
func (r *GormTaskRepository) Transition(task *models.Task, event *models.StageEvent) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Save(task).Error; err != nil {
			return err
		}
		return recordStageEvent(tx, event)
	})
}

// Archive stores the completed snapshot, records the finalized event and
// removes the active task atomically
func (r *GormTaskRepository) Archive(completed *models.CompletedTask, event *models.StageEvent) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		res := tx.Delete(&models.Task{}, "id = ?", completed.TaskID)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}

		if err := recordStageEvent(tx, event); err != nil {
			return err
		}
		return tx.Create(completed).Error
	})
}

// recordStageEvent appends event to its task's log. It assigns the next
// sequence number and keeps OccurredAt strictly increasing per task.
func recordStageEvent(tx *gorm.DB, event *models.StageEvent) error {
	var last models.StageEvent
	if err := tx.Where("task_id = ?", event.TaskID).
		Order("sequence DESC").
		Limit(1).
		Find(&last).Error; err != nil {
		return err
	}

	event.Sequence = last.Sequence + 1
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now()
	}
	if !last.OccurredAt.IsZero() && !event.OccurredAt.After(last.OccurredAt) {
		event.OccurredAt = last.OccurredAt.Add(time.Millisecond)
	}
	return tx.Create(event).Error
}
