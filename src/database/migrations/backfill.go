package migrations

import (
	"autoexit/src/model"

	"gorm.io/gorm"
)

// backfillRuleActiveFlag treats rules stored before is_active existed as active.
func backfillRuleActiveFlag(db *gorm.DB) error {
	return db.Model(&model.ManagementRule{}).
		Where("is_active IS NULL").
		Update("is_active", true).Error
}

// backfillRuleExitType gives legacy rows the NONE exit type and a false group flag.
func backfillRuleExitType(db *gorm.DB) error {
	if err := db.Model(&model.ManagementRule{}).
		Where("exit_type IS NULL OR exit_type = ''").
		Update("exit_type", model.ExitTypeNone).Error; err != nil {
		return err
	}

	return db.Model(&model.ManagementRule{}).
		Where("is_group_rule IS NULL").
		Update("is_group_rule", false).Error
}
