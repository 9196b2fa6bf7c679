package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"autoexit/src/database"
	"autoexit/src/model"
	"autoexit/src/security"

	logger "github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CredentialRepository stores one encrypted broker API key per user.
type CredentialRepository struct {
	db      *gorm.DB
	encrypt func(string) (string, error)
	decrypt func(string) (string, error)
}

func NewCredentialRepository() *CredentialRepository {
	logger.WithField("component", "CredentialRepository").
		Info("Creating new CredentialRepository with MainDB")

	return &CredentialRepository{
		db:      database.MainDB,
		encrypt: security.EncryptString,
		decrypt: security.DecryptString,
	}
}

// WithDB allows overriding the underlying *gorm.DB instance.
func (r *CredentialRepository) WithDB(db *gorm.DB) *CredentialRepository {
	return &CredentialRepository{db: db, encrypt: r.encrypt, decrypt: r.decrypt}
}

// GetByUser returns (nil, nil) when the user has no stored credential.
func (r *CredentialRepository) GetByUser(ctx context.Context, userID string) (*model.BrokerCredential, error) {
	var cred model.BrokerCredential

	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		First(&cred).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}

	return &cred, nil
}

// Upsert encrypts apiKey and stores it for userID, replacing any previous key.
func (r *CredentialRepository) Upsert(ctx context.Context, userID, broker, apiKey string) error {
	if strings.TrimSpace(userID) == "" || strings.TrimSpace(apiKey) == "" {
		return errors.New("user id and api key are required")
	}

	sealed, err := r.encrypt(apiKey)
	if err != nil {
		return fmt.Errorf("encrypt api key: %w", err)
	}

	cred := &model.BrokerCredential{
		UserID:     userID,
		Broker:     broker,
		APIKeyHash: sealed,
	}

	// OnConflict: match on the unique user_id index.
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "user_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"api_key",
				"broker",
				"updated_at",
			}),
		}).
		Create(cred).Error
}

// APIKeyForUser returns the decrypted API key, or "" when none is stored.
func (r *CredentialRepository) APIKeyForUser(ctx context.Context, userID string) (string, error) {
	cred, err := r.GetByUser(ctx, userID)
	if err != nil {
		return "", err
	}
	if cred == nil || cred.APIKeyHash == "" {
		return "", nil
	}

	apiKey, err := r.decrypt(cred.APIKeyHash)
	if err != nil {
		logger.WithFields(map[string]interface{}{
			"repo":    "CredentialRepository",
			"op":      "APIKeyForUser",
			"user_id": userID,
		}).WithError(err).Error("Failed to decrypt API key")
		return "", fmt.Errorf("decrypt api key for %s: %w", userID, err)
	}

	return apiKey, nil
}
