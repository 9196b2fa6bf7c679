package database

import (
	"fmt"

	"autoexit/src/database/migrations"
	"autoexit/src/model"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// MainDB is the primary read/write database connection used by the application.
var MainDB *gorm.DB

// InitMainDB opens the main (read/write) database and runs migrations.
// Call it once at startup before any repository is built.
func InitMainDB() error {
	config := GetConfig()

	db, err := Open(config.DatabaseURL, config.GormLogLevel)
	if err != nil {
		return fmt.Errorf("connect main database: %w", err)
	}

	// Assign to the global variable only after a successful connection.
	MainDB = db

	logrus.WithField("dialect", db.Dialector.Name()).Info("[database] MainDB connection established")

	if err := Migrate(MainDB); err != nil {
		return err
	}

	logrus.Info("[database] MainDB migrations completed")

	return nil
}

// Migrate brings the schema up to date: legacy column fixes, AutoMigrate and
// the recorded data migrations, in that order.
func Migrate(db *gorm.DB) error {
	// Legacy rule tables predate target_profit and is_group_rule.
	if err := migrations.PrepareLegacyRuleColumns(db); err != nil {
		return fmt.Errorf("failed to prepare legacy rule columns: %w", err)
	}

	if err := db.AutoMigrate(
		&model.ManagementRule{},
		&model.BrokerCredential{},
		&model.ExitExecutionLog{},
		&model.Exception{},
		&migrations.DataMigration{},
	); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	if err := migrations.Run(db); err != nil {
		return fmt.Errorf("failed to run data migrations: %w", err)
	}

	return nil
}
