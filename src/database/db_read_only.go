package database

import (
	"fmt"

	"autoexit/src/model"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// ReadOnlyDB serves the per-cycle active rule scan. It points at MainDB unless
// DATABASE_URL_READONLY names a replica.
var ReadOnlyDB *gorm.DB

// InitReadOnlyDB opens the read pool. It runs no migrations.
// InitMainDB must have been called first.
func InitReadOnlyDB() error {
	config := GetConfig()

	if config.DatabaseURLReadOnly == "" {
		ReadOnlyDB = MainDB
		logrus.Info("[ReadOnlyDB] no replica configured, reading through MainDB")
		return nil
	}

	db, err := Open(config.DatabaseURLReadOnly, config.GormLogLevel)
	if err != nil {
		return fmt.Errorf("connect read-only database: %w", err)
	}

	// The replica must already carry the rules table.
	var count int64
	if err := db.Model(&model.ManagementRule{}).Count(&count).Error; err != nil {
		return fmt.Errorf("failed to access management_rules on ReadOnlyDB: %w", err)
	}

	logrus.WithFields(map[string]interface{}{
		"dialect": db.Dialector.Name(),
		"rules":   count,
	}).Info("[ReadOnlyDB] management_rules reachable")

	ReadOnlyDB = db

	return nil
}
