package db

import (
	"fmt"

	"github.com/ikkim/udonggeum-cartsync/config"
	appLogger "github.com/ikkim/udonggeum-cartsync/pkg/logger"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// DB backs the postgres snapshot store; nil unless SNAPSHOT_STORE=postgres
var DB *gorm.DB

// Initialize opens the postgres connection used for snapshot persistence
func Initialize(cfg *config.DatabaseConfig) error {
	appLogger.Info("Connecting to snapshot database", map[string]interface{}{
		"host":     cfg.Host,
		"port":     cfg.Port,
		"database": cfg.DBName,
		"user":     cfg.User,
	})

	var err error
	DB, err = gorm.Open(postgres.Open(cfg.DSN()), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return fmt.Errorf("failed to connect to snapshot database: %w", err)
	}

	sqlDB, err := DB.DB()
	if err != nil {
		return fmt.Errorf("failed to get snapshot database handle: %w", err)
	}

	// The client writes one snapshot at a time.
	sqlDB.SetMaxIdleConns(2)
	sqlDB.SetMaxOpenConns(5)

	appLogger.Info("Snapshot database ready", map[string]interface{}{
		"max_idle_conns": 2,
		"max_open_conns": 5,
	})
	return nil
}

// Close releases the snapshot store connection. Safe to call when never opened.
func Close() error {
	if DB == nil {
		return nil
	}
	sqlDB, err := DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// GetDB returns the handle the snapshot repository is built on
func GetDB() *gorm.DB {
	return DB
}
