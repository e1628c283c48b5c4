package database

import (
	"gorm.io/gorm"

	"github.com/evanmori/neighborlink/internal/models"
)

// AutoMigrate creates or updates the database schema for all models.
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&models.User{},
		&models.Post{},
		&models.Comment{},
		&models.Assignment{},
		&models.Chat{},
		&models.ChatMessage{},
		&models.Notification{},
	); err != nil {
		return err
	}

	return createActiveAssignmentIndex(db)
}

// createActiveAssignmentIndex enforces the one-active-claim-per-post invariant
// at the storage layer. Concurrent claims race on this index; the loser gets a
// uniqueness violation which the service maps to a Conflict. SQLite and
// Postgres both support partial indexes with identical syntax.
func createActiveAssignmentIndex(db *gorm.DB) error {
	return db.Exec(
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_assignments_one_active_per_post
		 ON assignments (post_id)
		 WHERE status IN ('pending', 'approved', 'in_progress')`,
	).Error
}

// SeedData inserts baseline rows. The board needs no fixed reference data; the
// hook exists so start-up wiring matches between entrypoint and tests.
func SeedData(db *gorm.DB) error {
	return nil
}
