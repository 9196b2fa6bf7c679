package migrations

import (
	"fmt"

	"autoexit/src/model"

	logger "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// legacyRuleColumns were added after the first management_rules schema shipped.
var legacyRuleColumns = []string{"TargetProfit", "IsGroupRule"}

// PrepareLegacyRuleColumns adds columns missing from a management_rules table
// created by an older release. It is a no-op on a fresh database.
func PrepareLegacyRuleColumns(db *gorm.DB) error {
	if db == nil {
		return nil
	}

	migrator := db.Migrator()
	rule := &model.ManagementRule{}

	if !migrator.HasTable(rule) {
		return nil
	}

	for _, field := range legacyRuleColumns {
		if migrator.HasColumn(rule, field) {
			continue
		}

		logger.WithFields(map[string]interface{}{
			"table":  rule.TableName(),
			"column": field,
		}).Info("[migrations] adding missing management_rules column")

		if err := migrator.AddColumn(rule, field); err != nil {
			return fmt.Errorf("add %s to %s: %w", field, rule.TableName(), err)
		}
	}

	return nil
}
