package executors

import (
	"context"
	"errors"
	"fmt"
	"time"

	"autoexit/src/feed"
	"autoexit/src/metrics"

	"github.com/sirupsen/logrus"
)

// MarketCalendar says whether rules should be evaluated at a given instant.
type MarketCalendar interface {
	IsOpen(now time.Time) bool
}

// FeedPoller is the consuming side of the feed subscriber.
type FeedPoller interface {
	Poll(ctx context.Context, timeout time.Duration, apply bool) feed.PollResult
	DrainPending() int
}

type CycleRunner interface {
	RunCycle(ctx context.Context) (CycleResult, error)
}

// Loop is the supervising worker: it follows the market session, moves feed
// messages into the cache and runs evaluation cycles at a fixed cadence.
type Loop struct {
	log      *logrus.Entry
	config   Config
	calendar MarketCalendar
	feed     FeedPoller
	cycles   CycleRunner
	status   *Status

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) bool
}

type loopState struct {
	started       bool
	marketOpen    bool
	lastCycle     time.Time
	lastHeartbeat time.Time
	ticks         int
}

func NewLoop(log *logrus.Entry, config Config, calendar MarketCalendar, poller FeedPoller, cycles CycleRunner, status *Status) *Loop {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	if status == nil {
		status = NewStatus(nil)
	}
	return &Loop{
		log:      log.WithField("component", "loop"),
		config:   config.withDefaults(),
		calendar: calendar,
		feed:     poller,
		cycles:   cycles,
		status:   status,
		now:      time.Now,
		sleep:    sleepCtx,
	}
}

// StartLoop runs the loop until ctx is cancelled.
func StartLoop(ctx context.Context, loop *Loop) error {
	return loop.Run(ctx)
}

// Run blocks until ctx is done. Errors inside an iteration, panics included,
// are logged and followed by a short back-off; they never stop the loop.
func (l *Loop) Run(ctx context.Context) error {
	l.log.WithFields(map[string]interface{}{
		"rule_check_interval": l.config.RuleCheckInterval.String(),
		"poll_timeout":        l.config.PollTimeout.String(),
	}).Info("management loop started")

	state := &loopState{}
	for {
		if ctx.Err() != nil {
			l.log.Info("management loop stopped")
			return nil
		}

		if err := l.iterate(ctx, state); err != nil {
			if ctx.Err() != nil {
				continue
			}
			metrics.LoopErrors.Inc()
			l.status.RecordError(err, l.now())
			l.log.WithError(err).Error("Error in management loop")
			l.sleep(ctx, l.config.ErrorBackoff)
		}
	}
}

func (l *Loop) iterate(ctx context.Context, state *loopState) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic in management loop: %v", r)
		}
	}()

	now := l.now()
	open := l.calendar.IsOpen(now)
	l.transition(state, open, now)

	if !open {
		drained := 0
		if l.feed.Poll(ctx, l.config.PollTimeout, false) == feed.PollDrained {
			drained++
		}
		drained += l.feed.DrainPending()
		l.status.AddTicks(0, drained)
		l.sleep(ctx, l.config.MarketClosedSleep)
		return nil
	}

	if l.feed.Poll(ctx, l.config.PollTimeout, true) == feed.PollApplied {
		state.ticks++
		l.status.AddTicks(1, 0)
	}

	now = l.now()
	l.heartbeat(state, now)

	if !state.lastCycle.IsZero() && now.Sub(state.lastCycle) < l.config.RuleCheckInterval {
		return nil
	}
	state.lastCycle = now

	result, err := l.cycles.RunCycle(ctx)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	}
	l.status.RecordCycle(result)

	if result.Triggers > 0 || result.ExitFailures > 0 {
		l.log.WithFields(map[string]interface{}{
			"cycle_id":      result.ID,
			"rules":         result.Rules,
			"triggers":      result.Triggers,
			"exits":         result.Exits,
			"exit_failures": result.ExitFailures,
		}).Info("evaluation cycle finished")
	}
	return nil
}

func (l *Loop) transition(state *loopState, open bool, now time.Time) {
	if state.started && open == state.marketOpen {
		return
	}
	wasOpen := state.marketOpen
	state.started = true
	state.marketOpen = open
	l.status.SetMarketOpen(open)

	if open {
		metrics.MarketOpen.Set(1)
		// Anything queued while closed is stale by now.
		if n := l.feed.DrainPending(); n > 0 {
			l.status.AddTicks(0, n)
		}
		state.ticks = 0
		state.lastHeartbeat = now
		l.log.Info("Market is now OPEN. Resuming data processing and rule checks.")
		return
	}

	metrics.MarketOpen.Set(0)
	if wasOpen {
		l.log.Info("Market is now CLOSED. Pausing processing.")
	} else {
		l.log.Info("Market is CLOSED. Waiting for the session to open.")
	}
}

func (l *Loop) heartbeat(state *loopState, now time.Time) {
	if now.Sub(state.lastHeartbeat) < l.config.HeartbeatInterval {
		return
	}
	if state.ticks > 0 {
		l.log.WithField("ticks", state.ticks).Info("Management Service Active: processed market data ticks in the last interval.")
	} else {
		l.log.Info("Management Service Active: no market data received in the last interval (waiting for ticks).")
	}
	state.ticks = 0
	state.lastHeartbeat = now
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
