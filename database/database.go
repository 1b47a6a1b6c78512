package database

import (
	"fmt"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"goodturn-api/models"
)

func Initialize(databaseURL string) (*gorm.DB, error) {
	db, err := gorm.Open(mysql.Open(databaseURL), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	return db, nil
}

func Migrate(db *gorm.DB) error {
	err := db.AutoMigrate(
		&models.Event{},
		&models.EventImage{},
	)
	if err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}

	if err := addCustomIndexes(db); err != nil {
		return fmt.Errorf("failed to add custom indexes: %w", err)
	}

	return nil
}

func addCustomIndexes(db *gorm.DB) error {
	// Freshness lookups always filter by coarse bucket plus expiry; cover
	// both columns together.
	if err := db.Exec("CREATE INDEX IF NOT EXISTS idx_events_coarse_expires ON events(geohash_coarse, cache_expires_at)").Error; err != nil {
		fmt.Printf("Warning: Could not create index for events freshness lookup: %v\n", err)
	}

	if err := db.Exec("CREATE INDEX IF NOT EXISTS idx_event_images_event_position ON event_images(event_id, position)").Error; err != nil {
		fmt.Printf("Warning: Could not create index for event_images ordering: %v\n", err)
	}

	return nil
}
