package model

import (
	"errors"
	"fmt"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Exit types a rule can declare.
const (
	ExitTypeNone        = "NONE"
	ExitTypeCandleClose = "CANDLE_CLOSE"
	ExitTypeTotalLoss   = "TOTAL_LOSS"
	ExitTypeBoth        = "BOTH"
)

var ErrInvalidRule = errors.New("invalid management rule")

// ManagementRule is a user-declared exit condition for one position, or for a
// family of positions when IsGroupRule is set and Symbol acts as a prefix.
type ManagementRule struct {
	ID     uint   `gorm:"primaryKey" json:"id"`
	UserID string `gorm:"type:varchar(255);not null;index" json:"user_id"`

	// Target selector
	Symbol      string `gorm:"type:varchar(100);not null" json:"symbol"`
	Exchange    string `gorm:"type:varchar(50);not null" json:"exchange"`
	Product     string `gorm:"type:varchar(50);not null" json:"product"`
	IsGroupRule bool   `gorm:"default:false" json:"is_group_rule"`

	ExitType        string  `gorm:"type:varchar(20);default:NONE" json:"exit_type"`
	CandleCondition *string `gorm:"type:text" json:"candle_condition,omitempty"`

	// Positive magnitudes, nil when not set
	MaxLoss      *float64 `json:"max_loss,omitempty"`
	TargetProfit *float64 `json:"target_profit,omitempty"`

	IsActive      bool       `gorm:"default:true;index" json:"is_active"`
	CreatedAt     time.Time  `json:"created_at"`
	LastTriggered *time.Time `json:"last_triggered,omitempty"`
}

func (ManagementRule) TableName() string {
	return "management_rules"
}

// CandleCondition is the serialized shape of ManagementRule.CandleCondition.
type CandleCondition struct {
	Indicator string `json:"indicator"`
	Period    int    `json:"period"`
	Condition string `json:"condition"`
}

// Key is the symbol_product lookup key used to match rules to positions.
func (r ManagementRule) Key() string {
	return PositionKey(r.Symbol, r.Product)
}

// HasLossExit reports whether the rule's exit type enables the max loss check.
func (r ManagementRule) HasLossExit() bool {
	return r.ExitType == ExitTypeTotalLoss || r.ExitType == ExitTypeBoth
}

// HasCandleExit reports whether the rule's exit type enables candle close checks.
func (r ManagementRule) HasCandleExit() bool {
	return r.ExitType == ExitTypeCandleClose || r.ExitType == ExitTypeBoth
}

// TargetProfitValue returns the configured target profit when it is set and positive.
func (r ManagementRule) TargetProfitValue() (float64, bool) {
	return positive(r.TargetProfit)
}

// MaxLossValue returns the configured max loss magnitude when it is set and positive.
func (r ManagementRule) MaxLossValue() (float64, bool) {
	return positive(r.MaxLoss)
}

// ParseCandleCondition decodes the stored candle condition, nil when empty.
func (r ManagementRule) ParseCandleCondition() (*CandleCondition, error) {
	if r.CandleCondition == nil || strings.TrimSpace(*r.CandleCondition) == "" {
		return nil, nil
	}
	var cc CandleCondition
	if err := json.Unmarshal([]byte(*r.CandleCondition), &cc); err != nil {
		return nil, fmt.Errorf("decode candle condition: %w", err)
	}
	return &cc, nil
}

// Validate checks a rule before it is stored.
func (r ManagementRule) Validate() error {
	if strings.TrimSpace(r.UserID) == "" {
		return fmt.Errorf("%w: user id is required", ErrInvalidRule)
	}
	if strings.TrimSpace(r.Symbol) == "" || strings.TrimSpace(r.Exchange) == "" || strings.TrimSpace(r.Product) == "" {
		return fmt.Errorf("%w: symbol, exchange and product are required", ErrInvalidRule)
	}

	switch r.ExitType {
	case ExitTypeCandleClose, ExitTypeTotalLoss, ExitTypeBoth:
	default:
		return fmt.Errorf("%w: unknown exit type %q", ErrInvalidRule, r.ExitType)
	}

	if r.MaxLoss != nil && *r.MaxLoss <= 0 {
		return fmt.Errorf("%w: max loss must be positive", ErrInvalidRule)
	}
	if r.TargetProfit != nil && *r.TargetProfit <= 0 {
		return fmt.Errorf("%w: target profit must be positive", ErrInvalidRule)
	}

	if _, err := r.ParseCandleCondition(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidRule, err)
	}

	return nil
}

func positive(v *float64) (float64, bool) {
	if v == nil || *v <= 0 {
		return 0, false
	}
	return *v, true
}
