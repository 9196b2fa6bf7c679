package model

import "time"

// BrokerCredential holds the encrypted broker API key of one user.
type BrokerCredential struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	UserID     string    `gorm:"size:255;not null;uniqueIndex" json:"user_id"`
	Broker     string    `gorm:"size:60" json:"broker"`
	APIKeyHash string    `gorm:"column:api_key;type:text" json:"-"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

func (BrokerCredential) TableName() string {
	return "broker_credentials"
}
