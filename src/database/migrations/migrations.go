package migrations

import (
	"errors"
	"fmt"
	"time"

	logger "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// DataMigration is one row of the applied data migration ledger.
type DataMigration struct {
	ID        string    `gorm:"primaryKey;size:200;column:id"`
	AppliedAt time.Time `gorm:"not null;column:applied_at"`
}

func (DataMigration) TableName() string { return "data_migrations" }

// Migration is a data fix applied once per database, keyed by a stable ID.
type Migration struct {
	ID    string
	Apply func(*gorm.DB) error
}

// registry is applied in order. Never reorder or rename entries.
var registry = []Migration{
	{ID: "00001_backfill_rule_active_flag", Apply: backfillRuleActiveFlag},
	{ID: "00002_backfill_rule_exit_type", Apply: backfillRuleExitType},
}

// RunOnce applies m inside a transaction unless its ID is already in the
// ledger. The ledger row is written in the same transaction, so a failed
// migration is retried on the next start.
func RunOnce(db *gorm.DB, m Migration) (bool, error) {
	if db == nil {
		return false, nil
	}
	if m.ID == "" {
		return false, errors.New("migration id is empty")
	}
	if m.Apply == nil {
		return false, fmt.Errorf("migration %q has no apply func", m.ID)
	}
	if err := db.AutoMigrate(&DataMigration{}); err != nil {
		return false, fmt.Errorf("ensure data migrations table: %w", err)
	}

	applied := false
	err := db.Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&DataMigration{}).Where("id = ?", m.ID).Count(&count).Error; err != nil {
			return fmt.Errorf("check migration %q: %w", m.ID, err)
		}
		if count > 0 {
			return nil
		}

		if err := m.Apply(tx); err != nil {
			return fmt.Errorf("run migration %q: %w", m.ID, err)
		}
		if err := tx.Create(&DataMigration{ID: m.ID, AppliedAt: time.Now().UTC()}).Error; err != nil {
			return fmt.Errorf("record migration %q: %w", m.ID, err)
		}
		applied = true
		return nil
	})
	return applied, err
}

// Run applies every pending registered migration.
func Run(db *gorm.DB) error {
	if db == nil {
		return nil
	}

	for _, m := range registry {
		applied, err := RunOnce(db, m)
		if err != nil {
			return err
		}
		if applied {
			logger.WithField("migration", m.ID).Info("data migration applied")
		}
	}
	return nil
}

// Pending lists the registered migrations missing from the ledger.
func Pending(db *gorm.DB) ([]string, error) {
	if err := db.AutoMigrate(&DataMigration{}); err != nil {
		return nil, fmt.Errorf("ensure data migrations table: %w", err)
	}

	var done []DataMigration
	if err := db.Find(&done).Error; err != nil {
		return nil, fmt.Errorf("list data migrations: %w", err)
	}
	seen := make(map[string]struct{}, len(done))
	for _, d := range done {
		seen[d.ID] = struct{}{}
	}

	var pending []string
	for _, m := range registry {
		if _, ok := seen[m.ID]; !ok {
			pending = append(pending, m.ID)
		}
	}
	return pending, nil
}
