package executors

import (
	"context"
	"errors"

	"autoexit/src/model"
)

// ErrCandleExitNotSupported is returned for every candle close check until a
// candle source exists.
var ErrCandleExitNotSupported = errors.New("candle close exit not supported")

// CandleEvaluator decides whether a candle close condition is met.
type CandleEvaluator interface {
	Evaluate(ctx context.Context, rule model.ManagementRule, cond *model.CandleCondition) (bool, error)
}

type unsupportedCandles struct{}

func (unsupportedCandles) Evaluate(context.Context, model.ManagementRule, *model.CandleCondition) (bool, error) {
	return false, ErrCandleExitNotSupported
}
