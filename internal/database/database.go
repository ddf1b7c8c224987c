// Package database owns the gorm connection, schema migration and seeding
// of the reserved system accounts.
package database

import (
	"fmt"
	"log/slog"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/84634E1A607A/nova210se-backend/config"
	"github.com/84634E1A607A/nova210se-backend/internal/models"
)

// Connect opens a database connection per the configured driver.
func Connect(cfg config.DBConfig, debug bool) (*gorm.DB, error) {
	gormCfg := &gorm.Config{}
	if !debug {
		gormCfg.Logger = logger.Default.LogMode(logger.Warn)
	}

	var (
		db  *gorm.DB
		err error
	)
	switch cfg.Driver {
	case "postgres":
		db, err = gorm.Open(postgres.Open(cfg.DSN()), gormCfg)
	case "sqlite":
		db, err = gorm.Open(sqlite.Open(cfg.Path), gormCfg)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s database: %w", cfg.Driver, err)
	}

	return db, nil
}

// Migrate applies pending schema changes and seeds the reserved accounts.
// This runs before the server starts listening; a failure aborts startup.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&models.User{},
		&models.FriendGroup{},
		&models.Friend{},
		&models.FriendInvitation{},
		&models.Chat{},
		&models.ChatMember{},
		&models.ChatMessage{},
		&models.MessageRead{},
		&models.ChatInvitation{},
		&models.Session{},
	); err != nil {
		return fmt.Errorf("schema migration failed: %w", err)
	}

	if err := seedReservedUsers(db); err != nil {
		return fmt.Errorf("failed to seed reserved users: %w", err)
	}

	slog.Info("Database migration complete")
	return nil
}

// seedReservedUsers ensures the #SYSTEM and #DELETED accounts exist. Their
// names are outside the username charset, so they can never be registered.
func seedReservedUsers(db *gorm.DB) error {
	for _, name := range []string{models.SystemUsername, models.DeletedUsername} {
		var count int64
		if err := db.Model(&models.User{}).Where("username = ?", name).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			continue
		}
		if err := db.Create(&models.User{Username: name}).Error; err != nil {
			return err
		}
	}
	return nil
}

// ReservedUser fetches one of the seeded accounts by name.
func ReservedUser(db *gorm.DB, name string) (*models.User, error) {
	var user models.User
	if err := db.Where("username = ?", name).First(&user).Error; err != nil {
		return nil, fmt.Errorf("reserved user %s not found: %w", name, err)
	}
	return &user, nil
}
