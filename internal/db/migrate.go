package db

import (
	"fmt"

	"github.com/parlane/switchyard/internal/config"
	"github.com/parlane/switchyard/internal/models"
	"github.com/parlane/switchyard/internal/pausegate"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// AllModels returns the list of all GORM models for migration.
func AllModels() []interface{} {
	return []interface{}{
		&models.Agent{},
		&models.AgentCapability{},
		&models.DirectoryState{},
		&models.Message{},
		&models.RateLimitState{},
		&models.RouterSetting{},
		&models.PauseState{},
		&models.EventRecord{},
		&models.Decision{},
		&models.Resource{},
	}
}

// AutoMigrate creates or updates all tables.
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(AllModels()...); err != nil {
		return fmt.Errorf("db: auto-migrate: %w", err)
	}
	return nil
}

// Seed creates the singleton rows a fresh store needs: pause states for
// both domains, the directory aggregate row, and the router setting
// carrying the configured message delay. Existing rows are left alone so
// re-running init never resets a paused domain or a tuned delay.
func Seed(db *gorm.DB, cfg *config.Config) error {
	for _, domain := range []string{pausegate.DomainDirectory, pausegate.DomainRouter} {
		ps := models.PauseState{
			Domain:    domain,
			Paused:    false,
			Authority: cfg.Authority,
		}
		result := db.Clauses(clause.OnConflict{DoNothing: true}).Create(&ps)
		if result.Error != nil {
			return fmt.Errorf("db: seed pause state %q: %w", domain, result.Error)
		}
	}

	ds := models.DirectoryState{ID: 1, ActiveAgents: 0}
	if err := db.Clauses(clause.OnConflict{DoNothing: true}).Create(&ds).Error; err != nil {
		return fmt.Errorf("db: seed directory state: %w", err)
	}

	rs := models.RouterSetting{
		ID:                1,
		MessageDelayNanos: int64(cfg.RateLimit.MessageDelay.Std()),
	}
	if err := db.Clauses(clause.OnConflict{DoNothing: true}).Create(&rs).Error; err != nil {
		return fmt.Errorf("db: seed router setting: %w", err)
	}

	return nil
}

// Reset drops every Switchyard table. Callers are expected to confirm
// before invoking this.
func Reset(db *gorm.DB) error {
	if err := db.Migrator().DropTable(AllModels()...); err != nil {
		return fmt.Errorf("db: drop tables: %w", err)
	}
	return nil
}
