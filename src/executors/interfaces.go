package executors

import (
	"context"

	"autoexit/src/model"
)

// RuleStore is the persistence side of management rules.
type RuleStore interface {
	ListActive(ctx context.Context) ([]model.ManagementRule, error)
	// Deactivate flips an active rule to inactive. It reports false, nil when
	// the rule is missing or already inactive.
	Deactivate(ctx context.Context, id uint) (bool, error)

	Create(ctx context.Context, rule *model.ManagementRule) error
	ListByUser(ctx context.Context, userID string) ([]model.ManagementRule, error)
	Delete(ctx context.Context, id uint, userID string) (bool, error)
}

// PositionGateway returns the current positions of one broker account. A
// non-nil error means no data for this cycle.
type PositionGateway interface {
	GetPositions(ctx context.Context, apiKey string) ([]model.Position, error)
}

type OrderGateway interface {
	PlaceMarketOrder(ctx context.Context, apiKey string, order model.ExitOrder) (model.OrderAck, error)
}

// CredentialResolver maps a rule owner to a broker API key. An empty key
// means the user has no credential and is skipped.
type CredentialResolver interface {
	APIKeyForUser(ctx context.Context, userID string) (string, error)
}

type ExitRecorder interface {
	CreateExecutionLog(ctx context.Context, log *model.ExitExecutionLog) error
}

type ExceptionRecorder interface {
	Create(ctx context.Context, exc *model.Exception) error
}
