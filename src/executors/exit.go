package executors

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"autoexit/src/broker"
	"autoexit/src/metrics"
	"autoexit/src/model"
	"autoexit/src/pnl"

	"github.com/sirupsen/logrus"
)

// ErrExitCoolingDown is returned when a recent failed attempt for the same
// rule and position is still inside the retry cooldown.
var ErrExitCoolingDown = errors.New("exit retry cooling down")

// ErrNothingToExit is returned for a position whose quantity rounds to zero.
var ErrNothingToExit = errors.New("position has no whole quantity to exit")

// Exiter is what the evaluator needs from the exit executor.
type Exiter interface {
	ExecuteExit(ctx context.Context, rule model.ManagementRule, position model.Position, apiKey string, reason string) error
	ExecuteGroupExit(ctx context.Context, rule model.ManagementRule, positions []model.Position, apiKey string, reason string) (GroupExitResult, error)
}

// ExitExecutor places the closing order for a triggered rule and retires the
// rule once the broker acknowledged it.
type ExitExecutor struct {
	log        *logrus.Entry
	orders     OrderGateway
	rules      RuleStore
	exits      ExitRecorder
	exceptions ExceptionRecorder
	prices     pnl.PriceSource

	cooldown time.Duration
	timeout  time.Duration
	now      func() time.Time

	mu       sync.Mutex
	failures map[string]time.Time
	acked    map[string]time.Time
}

type ExitExecutorOption func(*ExitExecutor)

func WithExitRecorder(r ExitRecorder) ExitExecutorOption {
	return func(e *ExitExecutor) { e.exits = r }
}

func WithExceptionRecorder(r ExceptionRecorder) ExitExecutorOption {
	return func(e *ExitExecutor) { e.exceptions = r }
}

// WithPriceSource lets execution logs carry live P&L instead of broker P&L.
func WithPriceSource(p pnl.PriceSource) ExitExecutorOption {
	return func(e *ExitExecutor) { e.prices = p }
}

func withExitClock(now func() time.Time) ExitExecutorOption {
	return func(e *ExitExecutor) { e.now = now }
}

func NewExitExecutor(log *logrus.Entry, config Config, orders OrderGateway, rules RuleStore, opts ...ExitExecutorOption) *ExitExecutor {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	config = config.withDefaults()

	e := &ExitExecutor{
		log:      log.WithField("component", "exit_executor"),
		orders:   orders,
		rules:    rules,
		cooldown: config.ExitRetryCooldown,
		timeout:  config.ExitOrderTimeout,
		now:      time.Now,
		failures: make(map[string]time.Time),
		acked:    make(map[string]time.Time),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// BuildExitOrder returns the market order that flattens position: SELL for a
// long, BUY for a short, for the whole absolute quantity.
func BuildExitOrder(rule model.ManagementRule, position model.Position) (model.ExitOrder, error) {
	qty := int(math.Abs(position.NetQty))
	if qty == 0 {
		return model.ExitOrder{}, fmt.Errorf("%w: %s net quantity %v", ErrNothingToExit, position.Symbol, position.NetQty)
	}

	action := model.OrderActionSell
	if position.NetQty < 0 {
		action = model.OrderActionBuy
	}

	exchange := position.Exchange
	if exchange == "" {
		exchange = rule.Exchange
	}
	product := position.Product
	if product == "" {
		product = rule.Product
	}

	return model.ExitOrder{
		Symbol:            position.Symbol,
		Exchange:          exchange,
		Product:           product,
		Action:            action,
		Quantity:          qty,
		PriceType:         model.PriceTypeMarket,
		Price:             "0",
		TriggerPrice:      "0",
		DisclosedQuantity: "0",
		Tag:               model.ExitOrderTag,
	}, nil
}

// ExecuteExit submits the exit order for one position and deactivates the
// rule after an acknowledged submission. A failed submission leaves the rule
// active; it is retried on a later cycle once the cooldown has passed.
func (e *ExitExecutor) ExecuteExit(ctx context.Context, rule model.ManagementRule, position model.Position, apiKey string, reason string) error {
	entry, log, err := e.placeExit(ctx, rule, position, apiKey, reason)
	if err != nil {
		return err
	}
	return e.retire(ctx, rule, log, []*model.ExitExecutionLog{entry}, []string{cooldownKey(rule.ID, position)})
}

// GroupExitResult counts what happened to each leg of a group exit.
type GroupExitResult struct {
	Submitted    int
	AlreadyAcked int
	CoolingDown  int
	Failed       int
	Deactivated  bool
}

// ExecuteGroupExit places one order per matched position. The rule is
// deactivated once, and only when every leg is acknowledged, either now or
// inside the cooldown window of an earlier cycle. Otherwise the rule stays
// active and acknowledged legs are not ordered again while their cooldown
// holds.
func (e *ExitExecutor) ExecuteGroupExit(ctx context.Context, rule model.ManagementRule, positions []model.Position, apiKey string, reason string) (GroupExitResult, error) {
	var (
		result  GroupExitResult
		entries []*model.ExitExecutionLog
		keys    []string
		errs    []error
	)

	for _, pos := range positions {
		key := cooldownKey(rule.ID, pos)
		keys = append(keys, key)

		if e.recentlyAcked(key) {
			result.AlreadyAcked++
			continue
		}

		entry, _, err := e.placeExit(ctx, rule, pos, apiKey, reason)
		switch {
		case err == nil:
			result.Submitted++
			entries = append(entries, entry)
			e.markAcked(key)
		case errors.Is(err, ErrExitCoolingDown):
			result.CoolingDown++
		default:
			result.Failed++
			errs = append(errs, err)
		}
	}

	log := e.log.WithFields(map[string]interface{}{
		"rule_id":  rule.ID,
		"user_id":  rule.UserID,
		"cycle_id": CycleIDFrom(ctx),
		"reason":   reason,
	})

	if result.Failed > 0 || result.CoolingDown > 0 {
		for _, entry := range entries {
			e.record(ctx, log, entry)
		}
		log.WithFields(map[string]interface{}{
			"submitted":     result.Submitted,
			"already_acked": result.AlreadyAcked,
			"cooling_down":  result.CoolingDown,
			"failed":        result.Failed,
		}).Warn("group exit incomplete, rule stays active")
		return result, errors.Join(errs...)
	}

	if err := e.retire(ctx, rule, log, entries, keys); err != nil {
		return result, err
	}
	result.Deactivated = true
	for _, key := range keys {
		e.clearAcked(key)
	}
	return result, nil
}

// placeExit submits the order for one position. A failed submission is
// recorded, captured and starts the cooldown; the caller owns deactivation
// and recording of acknowledged entries.
func (e *ExitExecutor) placeExit(ctx context.Context, rule model.ManagementRule, position model.Position, apiKey string, reason string) (*model.ExitExecutionLog, *logrus.Entry, error) {
	key := cooldownKey(rule.ID, position)
	if until, cooling := e.coolingDown(key); cooling {
		e.log.WithFields(map[string]interface{}{
			"rule_id": rule.ID,
			"symbol":  position.Symbol,
			"until":   until,
		}).Debug("exit suppressed, retry cooldown active")
		return nil, nil, ErrExitCoolingDown
	}

	order, err := BuildExitOrder(rule, position)
	if err != nil {
		return nil, nil, err
	}

	log := e.log.WithFields(map[string]interface{}{
		"rule_id":  rule.ID,
		"user_id":  rule.UserID,
		"cycle_id": CycleIDFrom(ctx),
		"symbol":   order.Symbol,
		"action":   order.Action,
		"quantity": order.Quantity,
		"reason":   reason,
	})
	log.Info("executing management exit")

	// The order must not be abandoned halfway when the engine shuts down.
	orderCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), e.timeout)
	defer cancel()

	entry := &model.ExitExecutionLog{
		RuleID:      rule.ID,
		UserID:      rule.UserID,
		CycleID:     CycleIDFrom(ctx),
		Symbol:      order.Symbol,
		Exchange:    order.Exchange,
		Product:     order.Product,
		Side:        order.Action,
		Quantity:    order.Quantity,
		Pnl:         pnl.Live(position, e.prices),
		Reason:      reason,
		RequestedAt: e.now(),
	}

	started := time.Now()
	ack, err := e.orders.PlaceMarketOrder(orderCtx, apiKey, order)
	metrics.ExitOrderLatency.Observe(time.Since(started).Seconds())

	if err != nil {
		e.markFailure(key)

		entry.Status = model.ExitStatusError
		if errors.Is(err, broker.ErrOrderRejected) {
			entry.Status = model.ExitStatusRejected
		}
		msg := err.Error()
		entry.ErrorMessage = &msg
		entry.BrokerOrderID = ack.OrderID
		e.record(orderCtx, log, entry)
		metrics.ExitOrders.WithLabelValues(entry.Status).Inc()

		log.WithError(err).Error("exit order failed, rule stays active")
		Capture(orderCtx, e.exceptions, "exit_executor", "ExecuteExit", LevelError, err, &rule, map[string]interface{}{
			"symbol":   order.Symbol,
			"exchange": order.Exchange,
			"product":  order.Product,
			"action":   order.Action,
			"quantity": order.Quantity,
			"reason":   reason,
		})
		return nil, nil, fmt.Errorf("place exit order for rule %d %s: %w", rule.ID, order.Symbol, err)
	}

	e.clearFailure(key)
	entry.Status = model.ExitStatusSubmitted
	entry.BrokerOrderID = ack.OrderID
	metrics.ExitOrders.WithLabelValues(entry.Status).Inc()
	log.WithField("broker_order_id", ack.OrderID).Info("exit order submitted")
	return entry, log, nil
}

// retire deactivates the rule and records the acknowledged entries. When the
// update fails the legs in keys cool down like a failed submission.
func (e *ExitExecutor) retire(ctx context.Context, rule model.ManagementRule, log *logrus.Entry, entries []*model.ExitExecutionLog, keys []string) error {
	dbCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), e.timeout)
	defer cancel()

	deactivated, derr := e.rules.Deactivate(dbCtx, rule.ID)
	for _, entry := range entries {
		entry.Deactivated = deactivated
		if derr != nil {
			msg := derr.Error()
			entry.ErrorMessage = &msg
		}
		e.record(dbCtx, log, entry)
	}

	if derr != nil {
		// Submitted but still active: hold back resubmission like a failure.
		for _, key := range keys {
			e.markFailure(key)
		}
		log.WithError(derr).Error("exit order submitted but rule deactivation failed")
		brokerIDs := make([]string, 0, len(entries))
		for _, entry := range entries {
			brokerIDs = append(brokerIDs, entry.BrokerOrderID)
		}
		Capture(dbCtx, e.exceptions, "exit_executor", "Deactivate", LevelError, derr, &rule, map[string]interface{}{
			"broker_order_ids": brokerIDs,
		})
		return fmt.Errorf("deactivate rule %d: %w", rule.ID, derr)
	}

	log.WithField("deactivated", deactivated).Info("management rule retired")
	return nil
}

func (e *ExitExecutor) record(ctx context.Context, log *logrus.Entry, entry *model.ExitExecutionLog) {
	if e.exits == nil {
		return
	}
	if err := e.exits.CreateExecutionLog(ctx, entry); err != nil {
		log.WithError(err).Warn("failed to store exit execution log")
	}
}

func (e *ExitExecutor) coolingDown(key string) (time.Time, bool) {
	if e.cooldown <= 0 {
		return time.Time{}, false
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	failedAt, ok := e.failures[key]
	if !ok {
		return time.Time{}, false
	}
	until := failedAt.Add(e.cooldown)
	if !e.now().Before(until) {
		delete(e.failures, key)
		return time.Time{}, false
	}
	return until, true
}

func (e *ExitExecutor) markFailure(key string) {
	e.mu.Lock()
	e.failures[key] = e.now()
	e.mu.Unlock()
}

func (e *ExitExecutor) clearFailure(key string) {
	e.mu.Lock()
	delete(e.failures, key)
	e.mu.Unlock()
}

// recentlyAcked reports whether a group leg was acknowledged inside the
// cooldown window while its rule is still active.
func (e *ExitExecutor) recentlyAcked(key string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	ackedAt, ok := e.acked[key]
	if !ok {
		return false
	}
	if e.cooldown <= 0 || !e.now().Before(ackedAt.Add(e.cooldown)) {
		delete(e.acked, key)
		return false
	}
	return true
}

func (e *ExitExecutor) markAcked(key string) {
	e.mu.Lock()
	e.acked[key] = e.now()
	e.mu.Unlock()
}

func (e *ExitExecutor) clearAcked(key string) {
	e.mu.Lock()
	delete(e.acked, key)
	e.mu.Unlock()
}

func cooldownKey(ruleID uint, position model.Position) string {
	return fmt.Sprintf("%d/%s", ruleID, position.Key())
}
