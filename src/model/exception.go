package model

import "time"

// Exception is an engine error persisted for auditing, e.g. a failed exit order.
type Exception struct {
	ID uint `gorm:"primaryKey" json:"id"`

	// Where the error happened
	Service string `gorm:"size:100;index" json:"service"` // e.g. "autoexit"
	Module  string `gorm:"size:100;index" json:"module"`  // e.g. "exit_executor"
	Method  string `gorm:"size:100" json:"method"`        // e.g. "ExecuteExit"

	Message string `gorm:"type:text" json:"message"`
	Stack   string `gorm:"type:text" json:"stack"`

	Level string `gorm:"size:20;index" json:"level"` // warn | error

	// Rule and user the failure belongs to, when known
	RuleID *uint  `gorm:"index" json:"rule_id,omitempty"`
	UserID string `gorm:"size:255" json:"user_id,omitempty"`

	// JSON encoded extra context. Stored as text so sqlite and postgres share the schema.
	Context string `gorm:"type:text" json:"context,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}
