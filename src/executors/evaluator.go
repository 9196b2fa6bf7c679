package executors

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"autoexit/src/metrics"
	"autoexit/src/model"
	"autoexit/src/pnl"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Trigger reasons.
const (
	ReasonTargetProfit      = "Target Profit Triggered"
	ReasonMaxLoss           = "Max Loss Triggered"
	ReasonGroupTargetProfit = "Group Target Profit Triggered"
	ReasonGroupMaxLoss      = "Group Max Loss Triggered"
)

type cycleIDKey struct{}

// WithCycleID tags ctx with the evaluation cycle it belongs to.
func WithCycleID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, cycleIDKey{}, id)
}

func CycleIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(cycleIDKey{}).(string)
	return id
}

// CycleResult summarizes one evaluation pass over all active rules.
type CycleResult struct {
	ID           string        `json:"id"`
	StartedAt    time.Time     `json:"started_at"`
	Duration     time.Duration `json:"duration"`
	Rules        int           `json:"rules"`
	Users        int           `json:"users"`
	SkippedUsers int           `json:"skipped_users"`
	Triggers     int           `json:"triggers"`
	Exits        int           `json:"exits"`
	ExitFailures int           `json:"exit_failures"`
	RuleErrors   int           `json:"rule_errors"`
}

// Evaluator checks every active rule against fresh broker positions and
// hands triggered ones to the exit executor.
type Evaluator struct {
	log         *logrus.Entry
	rules       RuleStore
	positions   PositionGateway
	credentials CredentialResolver
	prices      pnl.PriceSource
	exits       Exiter
	candles     CandleEvaluator
	newID       func() string
	now         func() time.Time

	mu sync.Mutex
	// badCandles holds rules whose candle condition failed to parse; each
	// is reported once.
	badCandles map[uint]struct{}
}

func NewEvaluator(
	log *logrus.Entry,
	rules RuleStore,
	positions PositionGateway,
	credentials CredentialResolver,
	prices pnl.PriceSource,
	exits Exiter,
) *Evaluator {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Evaluator{
		log:         log.WithField("component", "evaluator"),
		rules:       rules,
		positions:   positions,
		credentials: credentials,
		prices:      prices,
		exits:       exits,
		candles:     unsupportedCandles{},
		newID:       uuid.NewString,
		now:         time.Now,
		badCandles:  make(map[uint]struct{}),
	}
}

// RunCycle evaluates all active rules once. Only a failure to list rules is
// returned; per-user and per-rule problems are logged and skipped.
func (e *Evaluator) RunCycle(ctx context.Context) (result CycleResult, err error) {
	result = CycleResult{ID: e.newID(), StartedAt: e.now()}
	ctx = WithCycleID(ctx, result.ID)
	defer func() {
		result.Duration = e.now().Sub(result.StartedAt)
		metrics.EvaluationDuration.Observe(result.Duration.Seconds())
	}()

	rules, err := e.rules.ListActive(ctx)
	if err != nil {
		return result, fmt.Errorf("list active rules: %w", err)
	}
	result.Rules = len(rules)
	metrics.RulesEvaluated.Add(float64(len(rules)))

	byUser := make(map[string][]model.ManagementRule)
	users := make([]string, 0)
	for _, rule := range rules {
		if _, ok := byUser[rule.UserID]; !ok {
			users = append(users, rule.UserID)
		}
		byUser[rule.UserID] = append(byUser[rule.UserID], rule)
	}
	sort.Strings(users)
	result.Users = len(users)

	for _, userID := range users {
		if ctx.Err() != nil {
			break
		}
		e.evaluateUser(ctx, userID, byUser[userID], &result)
	}

	return result, nil
}

func (e *Evaluator) evaluateUser(ctx context.Context, userID string, rules []model.ManagementRule, result *CycleResult) {
	log := e.log.WithFields(map[string]interface{}{
		"cycle_id": CycleIDFrom(ctx),
		"user_id":  userID,
	})
	defer func() {
		if r := recover(); r != nil {
			result.SkippedUsers++
			log.Errorf("Error processing rules for user: %v", r)
		}
	}()

	apiKey, err := e.credentials.APIKeyForUser(ctx, userID)
	if err != nil {
		result.SkippedUsers++
		log.WithError(err).Warn("failed to resolve broker credential, skipping user")
		return
	}
	if apiKey == "" {
		result.SkippedUsers++
		log.Debug("no broker credential, skipping user")
		return
	}

	positions, err := e.positions.GetPositions(ctx, apiKey)
	if err != nil {
		result.SkippedUsers++
		metrics.PositionFetchErrors.Inc()
		log.WithError(err).Warn("failed to fetch positions, skipping user this cycle")
		return
	}

	book := make(map[string]model.Position, len(positions))
	for _, p := range positions {
		book[p.Key()] = p
	}

	for _, rule := range rules {
		if ctx.Err() != nil {
			return
		}
		if err := e.evaluateRule(ctx, rule, apiKey, positions, book, result); err != nil {
			result.RuleErrors++
			log.WithField("rule_id", rule.ID).WithError(err).Error("error checking rule")
		}
	}
}

func (e *Evaluator) evaluateRule(
	ctx context.Context,
	rule model.ManagementRule,
	apiKey string,
	positions []model.Position,
	book map[string]model.Position,
	result *CycleResult,
) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic evaluating rule %d: %v", rule.ID, r)
		}
	}()

	if rule.IsGroupRule {
		e.evaluateGroup(ctx, rule, apiKey, positions, result)
	} else {
		e.evaluateIndividual(ctx, rule, apiKey, book, result)
	}

	if rule.HasCandleExit() {
		cond, cerr := rule.ParseCandleCondition()
		if cerr != nil {
			if e.firstBadCandle(rule.ID) {
				e.log.WithField("rule_id", rule.ID).WithError(cerr).Warn("unreadable candle condition ignored")
			}
			return nil
		}
		if _, cerr := e.candles.Evaluate(ctx, rule, cond); cerr != nil {
			e.log.WithField("rule_id", rule.ID).WithError(cerr).Debug("candle close check skipped")
		}
	}
	return nil
}

func (e *Evaluator) firstBadCandle(ruleID uint) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, seen := e.badCandles[ruleID]; seen {
		return false
	}
	e.badCandles[ruleID] = struct{}{}
	return true
}

func (e *Evaluator) evaluateIndividual(ctx context.Context, rule model.ManagementRule, apiKey string, book map[string]model.Position, result *CycleResult) {
	pos, ok := book[rule.Key()]
	if !ok || pos.IsFlat() {
		return
	}

	livePnl := pnl.Live(pos, e.prices)
	reason, triggered := Decide(rule, livePnl)
	if !triggered {
		return
	}

	e.trigger(ctx, rule, reason, livePnl, []model.Position{pos}, apiKey, result)
}

func (e *Evaluator) evaluateGroup(ctx context.Context, rule model.ManagementRule, apiKey string, positions []model.Position, result *CycleResult) {
	matched := MatchGroup(rule, positions)
	if len(matched) == 0 {
		return
	}

	groupPnl := pnl.Sum(matched, e.prices)
	reason, triggered := DecideGroup(rule, groupPnl)
	if !triggered {
		return
	}

	e.trigger(ctx, rule, reason, groupPnl, matched, apiKey, result)
}

func (e *Evaluator) trigger(
	ctx context.Context,
	rule model.ManagementRule,
	reason string,
	value float64,
	targets []model.Position,
	apiKey string,
	result *CycleResult,
) {
	result.Triggers++
	metrics.RuleTriggers.WithLabelValues(reason).Inc()
	e.log.WithFields(map[string]interface{}{
		"cycle_id":  CycleIDFrom(ctx),
		"rule_id":   rule.ID,
		"symbol":    rule.Symbol,
		"product":   rule.Product,
		"pnl":       value,
		"positions": len(targets),
	}).Info(reason)

	if rule.IsGroupRule {
		group, err := e.exits.ExecuteGroupExit(ctx, rule, targets, apiKey, reason)
		result.Exits += group.Submitted
		result.ExitFailures += group.Failed
		if err != nil && group.Failed == 0 {
			result.ExitFailures++
		}
		return
	}

	for _, pos := range targets {
		err := e.exits.ExecuteExit(ctx, rule, pos, apiKey, reason)
		switch {
		case err == nil:
			result.Exits++
		case errors.Is(err, ErrExitCoolingDown):
		default:
			result.ExitFailures++
		}
	}
}

// Decide applies the individual rule precedence: target profit first, then
// max loss when the exit type enables it.
func Decide(rule model.ManagementRule, livePnl float64) (string, bool) {
	if target, ok := rule.TargetProfitValue(); ok && livePnl >= target {
		return ReasonTargetProfit, true
	}
	if maxLoss, ok := rule.MaxLossValue(); ok && rule.HasLossExit() && livePnl < 0 && -livePnl >= maxLoss {
		return ReasonMaxLoss, true
	}
	return "", false
}

// DecideGroup applies the same precedence to the aggregate P&L of a group.
// Group max loss fires whenever a max loss is set, whatever the exit type.
func DecideGroup(rule model.ManagementRule, groupPnl float64) (string, bool) {
	if target, ok := rule.TargetProfitValue(); ok && groupPnl >= target {
		return ReasonGroupTargetProfit, true
	}
	if maxLoss, ok := rule.MaxLossValue(); ok && groupPnl < 0 && -groupPnl >= maxLoss {
		return ReasonGroupMaxLoss, true
	}
	return "", false
}

// MatchGroup returns the open positions whose symbol starts with the rule
// symbol and whose product equals the rule product, ordered by symbol.
func MatchGroup(rule model.ManagementRule, positions []model.Position) []model.Position {
	matched := make([]model.Position, 0)
	for _, p := range positions {
		if p.IsFlat() || p.Product != rule.Product {
			continue
		}
		if strings.HasPrefix(p.Symbol, rule.Symbol) {
			matched = append(matched, p)
		}
	}
	sort.SliceStable(matched, func(i, j int) bool { return matched[i].Symbol < matched[j].Symbol })
	return matched
}
