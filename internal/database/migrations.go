package database

import (
	"fmt"

	"github.com/yukikurage/content-pipeline/internal/logging"
	"github.com/yukikurage/content-pipeline/internal/models"
	"gorm.io/gorm"
)

// AddIndexes adds the composite indexes the hot queries rely on
func AddIndexes(db *gorm.DB) error {
	indexes := []struct {
		model   interface{}
		name    string
		columns string
	}{
		// Board listing by column
		{&models.Task{}, "idx_tasks_channel_column", "channel_id, column_id"},

		// Analytics windows
		{&models.StageEvent{}, "idx_stage_events_channel_occurred", "channel_id, occurred_at"},
		{&models.CompletedTask{}, "idx_completed_tasks_channel_completed", "channel_id, completed_at"},

		// Column ordering
		{&models.Column{}, "idx_pipeline_columns_channel_position", "channel_id, position"},
		{&models.CustomField{}, "idx_custom_fields_channel_position", "channel_id, position"},
	}

	for _, idx := range indexes {
		if db.Migrator().HasIndex(idx.model, idx.name) {
			continue
		}

		stmt := &gorm.Statement{DB: db}
		if err := stmt.Parse(idx.model); err != nil {
			return fmt.Errorf("failed to parse model for index %s: %w", idx.name, err)
		}
		sql := fmt.Sprintf("CREATE INDEX %s ON %s (%s)", idx.name, stmt.Schema.Table, idx.columns)
		if err := db.Exec(sql).Error; err != nil {
			return fmt.Errorf("failed to create index %s: %w", idx.name, err)
		}

		logging.Logger.WithField("index", idx.name).Info("created index")
	}

	return nil
}
