package repository

import (
	"context"

	logger "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"autoexit/src/database"
	"autoexit/src/model"
)

// ExitLogRepository records every exit order attempt.
type ExitLogRepository struct {
	db *gorm.DB
}

func NewExitLogRepository() *ExitLogRepository {
	logger.WithField("component", "ExitLogRepository").
		Info("Creating new ExitLogRepository with MainDB")

	return &ExitLogRepository{
		db: database.MainDB,
	}
}

// WithDB allows overriding the underlying *gorm.DB instance.
func (r *ExitLogRepository) WithDB(db *gorm.DB) *ExitLogRepository {
	return &ExitLogRepository{db: db}
}

// CreateExecutionLog inserts one attempt.
func (r *ExitLogRepository) CreateExecutionLog(ctx context.Context, log *model.ExitExecutionLog) error {
	logger.WithFields(map[string]interface{}{
		"repo":    "ExitLogRepository",
		"op":      "CreateExecutionLog",
		"rule_id": log.RuleID,
		"symbol":  log.Symbol,
		"status":  log.Status,
	}).Debug("Creating exit execution log")

	if err := r.db.WithContext(ctx).Create(log).Error; err != nil {
		logger.WithFields(map[string]interface{}{
			"repo":    "ExitLogRepository",
			"op":      "CreateExecutionLog",
			"rule_id": log.RuleID,
		}).WithError(err).Error("Failed to create exit execution log")
		return err
	}

	return nil
}

// FindByRuleID returns the attempts of one rule, newest first.
func (r *ExitLogRepository) FindByRuleID(ctx context.Context, ruleID uint, limit int) ([]model.ExitExecutionLog, error) {
	if limit <= 0 {
		limit = 50
	}

	var logs []model.ExitExecutionLog
	err := r.db.WithContext(ctx).
		Where("rule_id = ?", ruleID).
		Order("id DESC").
		Limit(limit).
		Find(&logs).Error
	if err != nil {
		logger.WithFields(map[string]interface{}{
			"repo":    "ExitLogRepository",
			"op":      "FindByRuleID",
			"rule_id": ruleID,
		}).WithError(err).Error("Failed to fetch exit execution logs")
		return nil, err
	}

	return logs, nil
}
