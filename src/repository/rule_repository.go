package repository

import (
	"context"
	"errors"
	"time"

	logger "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"autoexit/src/database"
	"autoexit/src/model"
)

// RuleRepository reads and writes management rules. Scans go through the
// read pool; writes always go through the main pool.
type RuleRepository struct {
	db     *gorm.DB
	readDB *gorm.DB
	now    func() time.Time
}

// NewRuleRepository creates a repository backed by database.MainDB and database.ReadOnlyDB.
func NewRuleRepository() *RuleRepository {
	logger.WithField("component", "RuleRepository").
		Info("Creating new RuleRepository with MainDB and ReadOnlyDB")

	readDB := database.ReadOnlyDB
	if readDB == nil {
		readDB = database.MainDB
	}

	return &RuleRepository{
		db:     database.MainDB,
		readDB: readDB,
		now:    time.Now,
	}
}

// WithDB points both pools at db. Useful for tests or a specific session.
func (r *RuleRepository) WithDB(db *gorm.DB) *RuleRepository {
	return &RuleRepository{db: db, readDB: db, now: r.clock()}
}

func (r *RuleRepository) clock() func() time.Time {
	if r == nil || r.now == nil {
		return time.Now
	}
	return r.now
}

// Create validates and inserts a new active rule.
func (r *RuleRepository) Create(ctx context.Context, rule *model.ManagementRule) error {
	if err := rule.Validate(); err != nil {
		return err
	}
	rule.IsActive = true

	logger.WithFields(map[string]interface{}{
		"repo":    "RuleRepository",
		"op":      "Create",
		"user_id": rule.UserID,
		"symbol":  rule.Symbol,
		"product": rule.Product,
		"group":   rule.IsGroupRule,
	}).Debug("Creating management rule")

	if err := r.db.WithContext(ctx).Create(rule).Error; err != nil {
		logger.WithFields(map[string]interface{}{
			"repo": "RuleRepository",
			"op":   "Create",
		}).WithError(err).Error("Failed to create management rule")
		return err
	}

	logger.WithFields(map[string]interface{}{
		"repo":    "RuleRepository",
		"op":      "Create",
		"rule_id": rule.ID,
	}).Info("Management rule created")

	return nil
}

// ListActive returns every rule with is_active = true, oldest first.
// The engine calls it once per evaluation cycle.
func (r *RuleRepository) ListActive(ctx context.Context) ([]model.ManagementRule, error) {
	var rules []model.ManagementRule

	err := r.readDB.WithContext(ctx).
		Where("is_active = ?", true).
		Order("id ASC").
		Find(&rules).Error
	if err != nil {
		logger.WithFields(map[string]interface{}{
			"repo": "RuleRepository",
			"op":   "ListActive",
		}).WithError(err).Error("Failed to list active rules")
		return nil, err
	}

	return rules, nil
}

// ListByUser returns all rules owned by userID, active or not, newest first.
func (r *RuleRepository) ListByUser(ctx context.Context, userID string) ([]model.ManagementRule, error) {
	var rules []model.ManagementRule

	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("id DESC").
		Find(&rules).Error
	if err != nil {
		logger.WithFields(map[string]interface{}{
			"repo":    "RuleRepository",
			"op":      "ListByUser",
			"user_id": userID,
		}).WithError(err).Error("Failed to list rules for user")
		return nil, err
	}

	return rules, nil
}

// FindByID returns (nil, nil) if the rule does not exist.
func (r *RuleRepository) FindByID(ctx context.Context, id uint) (*model.ManagementRule, error) {
	var rule model.ManagementRule

	err := r.db.WithContext(ctx).First(&rule, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		logger.WithFields(map[string]interface{}{
			"repo": "RuleRepository",
			"op":   "FindByID",
			"id":   id,
		}).WithError(err).Error("Failed to fetch rule by ID")
		return nil, err
	}

	return &rule, nil
}

// Deactivate flips an active rule to inactive and stamps last_triggered in one
// conditional UPDATE against the current row, not a previously loaded copy.
// It reports false, without error, when the rule is missing or already inactive.
func (r *RuleRepository) Deactivate(ctx context.Context, id uint) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&model.ManagementRule{}).
		Where("id = ? AND is_active = ?", id, true).
		Updates(map[string]interface{}{
			"is_active":      false,
			"last_triggered": r.clock()(),
		})
	if res.Error != nil {
		logger.WithFields(map[string]interface{}{
			"repo":    "RuleRepository",
			"op":      "Deactivate",
			"rule_id": id,
		}).WithError(res.Error).Error("Failed to deactivate rule")
		return false, res.Error
	}

	if res.RowsAffected == 0 {
		logger.WithFields(map[string]interface{}{
			"repo":    "RuleRepository",
			"op":      "Deactivate",
			"rule_id": id,
		}).Debug("Rule already inactive or missing")
		return false, nil
	}

	logger.WithFields(map[string]interface{}{
		"repo":    "RuleRepository",
		"op":      "Deactivate",
		"rule_id": id,
	}).Info("Rule deactivated")

	return true, nil
}

// Delete removes a rule owned by userID. It reports false when no such rule exists.
func (r *RuleRepository) Delete(ctx context.Context, id uint, userID string) (bool, error) {
	res := r.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", id, userID).
		Delete(&model.ManagementRule{})
	if res.Error != nil {
		logger.WithFields(map[string]interface{}{
			"repo":    "RuleRepository",
			"op":      "Delete",
			"rule_id": id,
			"user_id": userID,
		}).WithError(res.Error).Error("Failed to delete rule")
		return false, res.Error
	}

	return res.RowsAffected > 0, nil
}
