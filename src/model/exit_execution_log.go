package model

import "time"

// Exit attempt outcomes.
const (
	ExitStatusSubmitted = "submitted"
	ExitStatusRejected  = "rejected"
	ExitStatusError     = "error"
)

// ExitExecutionLog stores one attempt to close a position on behalf of a rule.
type ExitExecutionLog struct {
	ID uint `gorm:"primaryKey" json:"id"`

	RuleID uint   `gorm:"index" json:"rule_id"`
	UserID string `gorm:"size:255;index" json:"user_id"`
	// CycleID ties the attempt to the evaluation cycle that triggered it
	CycleID string `gorm:"size:64;index" json:"cycle_id"`

	// Snapshot of the order
	Symbol   string  `gorm:"size:100" json:"symbol"`
	Exchange string  `gorm:"size:50" json:"exchange"`
	Product  string  `gorm:"size:50" json:"product"`
	Side     string  `gorm:"size:20" json:"side"`
	Quantity int     `json:"quantity"`
	Pnl      float64 `json:"pnl"`
	Reason   string  `gorm:"size:255" json:"reason"`

	Status        string  `gorm:"size:50;not null" json:"status"` // see ExitStatus* constants
	BrokerOrderID string  `gorm:"size:255" json:"broker_order_id"`
	ErrorMessage  *string `json:"error_message,omitempty"`
	Deactivated   bool    `json:"deactivated"`

	RequestedAt time.Time `json:"requested_at"`
	CreatedAt   time.Time `json:"created_at"`
}

func (ExitExecutionLog) TableName() string {
	return "exit_execution_logs"
}
