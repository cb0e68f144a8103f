package repository

import (
	"github.com/ikkim/udonggeum-cartsync/internal/app/model"
	"github.com/ikkim/udonggeum-cartsync/pkg/logger"
	"gorm.io/gorm"
)

type SnapshotRepository interface {
	Replace(key string, lines []model.SnapshotLine) error
	FindByKey(key string) ([]model.SnapshotLine, error)
	DeleteByKey(key string) error
}

type snapshotRepository struct {
	db *gorm.DB
}

func NewSnapshotRepository(db *gorm.DB) SnapshotRepository {
	return &snapshotRepository{db: db}
}

// Replace swaps every line stored under key for lines, in one transaction.
func (r *snapshotRepository) Replace(key string, lines []model.SnapshotLine) error {
	logger.Debug("Replacing cart snapshot in database", map[string]interface{}{
		"snapshot_key": key,
		"lines":        len(lines),
	})

	err := r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("snapshot_key = ?", key).Delete(&model.SnapshotLine{}).Error; err != nil {
			return err
		}
		if len(lines) == 0 {
			return nil
		}
		for i := range lines {
			lines[i].ID = 0
			lines[i].SnapshotKey = key
			lines[i].Position = i
		}
		return tx.Create(&lines).Error
	})
	if err != nil {
		logger.Error("Failed to replace cart snapshot in database", err, map[string]interface{}{
			"snapshot_key": key,
		})
		return err
	}

	logger.Debug("Cart snapshot replaced in database", map[string]interface{}{
		"snapshot_key": key,
	})
	return nil
}

func (r *snapshotRepository) FindByKey(key string) ([]model.SnapshotLine, error) {
	var lines []model.SnapshotLine
	err := r.db.Where("snapshot_key = ?", key).
		Order("position ASC").
		Find(&lines).Error
	if err != nil {
		logger.Error("Failed to find cart snapshot in database", err, map[string]interface{}{
			"snapshot_key": key,
		})
		return nil, err
	}

	logger.Debug("Cart snapshot found in database", map[string]interface{}{
		"snapshot_key": key,
		"lines":        len(lines),
	})
	return lines, nil
}

func (r *snapshotRepository) DeleteByKey(key string) error {
	if err := r.db.Where("snapshot_key = ?", key).Delete(&model.SnapshotLine{}).Error; err != nil {
		logger.Error("Failed to delete cart snapshot from database", err, map[string]interface{}{
			"snapshot_key": key,
		})
		return err
	}
	return nil
}
