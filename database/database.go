package database

import (
	"fmt"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"pricetracker/config"
	"pricetracker/logger"
	"pricetracker/models"
)

// Connect opens the MySQL database described by cfg and migrates the
// tracker tables when AutoMigrate is set.
func Connect(cfg config.DatabaseConfig, log *logger.Log) (*gorm.DB, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("database dsn is empty")
	}
	db, err := gorm.Open(mysql.Open(cfg.DSN), &gorm.Config{
		Logger: NewGormLogger(log),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	log.WithComponent("database").Info("database connected")

	if cfg.AutoMigrate {
		if err := Migrate(db); err != nil {
			return nil, err
		}
		log.WithComponent("database").Info("database migrated")
	}
	return db, nil
}

// Migrate creates or updates the tables and indexes the tracker uses.
func Migrate(db *gorm.DB) error {
	err := db.AutoMigrate(&models.Brand{}, &models.Product{}, &models.TrackedPrice{}, &models.User{})
	if err != nil {
		return fmt.Errorf("failed to migrate the database: %w", err)
	}
	return nil
}

// NewGormLogger routes gorm's SQL logging through the service logger.
func NewGormLogger(log *logger.Log) gormlogger.Interface {
	return gormlogger.New(log, gormlogger.Config{
		SlowThreshold:             200 * time.Millisecond,
		LogLevel:                  gormlogger.Warn,
		IgnoreRecordNotFoundError: true,
	})
}
