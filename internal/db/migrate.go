package db

import (
	"github.com/ikkim/udonggeum-cartsync/internal/app/model"
	"github.com/ikkim/udonggeum-cartsync/pkg/logger"
	"gorm.io/gorm"
)

// Models lists every table the client owns.
func Models() []interface{} {
	return []interface{}{
		&model.SnapshotLine{},
	}
}

// Migrate creates or updates the snapshot tables on the open connection
func Migrate() error {
	return MigrateDB(DB)
}

func MigrateDB(db *gorm.DB) error {
	logger.Info("Migrating snapshot tables")

	models := Models()
	if err := db.AutoMigrate(models...); err != nil {
		logger.Error("Failed to migrate snapshot tables", err)
		return err
	}

	logger.Info("Snapshot tables migrated", map[string]interface{}{
		"models_count": len(models),
	})
	return nil
}
