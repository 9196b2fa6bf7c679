package risk

import (
	"fmt"
	"time"
	// bundled zone database, the engine must not depend on the host's
	_ "time/tzdata"

	"autoexit/src/utils"

	logger "github.com/sirupsen/logrus"
)

// ----- session labels -----

type Session string

const (
	SessionOpen       Session = "open"
	SessionPreOpen    Session = "pre_open"
	SessionPostClose  Session = "post_close"
	SessionWeekend    Session = "weekend"
	SessionUnresolved Session = "unresolved_timezone"
)

// MarketSession is a single daily trading window in one timezone. Holidays
// are not modelled.
type MarketSession struct {
	Timezone        string
	Open            utils.Clock
	Close           utils.Clock
	ExcludeWeekends bool

	loc    *time.Location
	locErr error
}

// DefaultMarketSession is the NSE cash session, 09:15 to 15:30 IST.
func DefaultMarketSession() *MarketSession {
	return NewMarketSession("Asia/Kolkata", utils.Clock{Hour: 9, Minute: 15}, utils.Clock{Hour: 15, Minute: 30}, true)
}

// NewMarketSession resolves timezone once. A timezone that cannot be loaded is
// logged here and makes the session fail open.
func NewMarketSession(timezone string, open, closeAt utils.Clock, excludeWeekends bool) *MarketSession {
	s := &MarketSession{
		Timezone:        timezone,
		Open:            open,
		Close:           closeAt,
		ExcludeWeekends: excludeWeekends,
	}
	s.loc, s.locErr = time.LoadLocation(timezone)
	if s.locErr != nil {
		logger.WithField("timezone", timezone).WithError(s.locErr).
			Error("Market timezone could not be loaded, treating market as always open")
	}
	return s
}

// NewMarketSessionFromConfig parses the configured window.
func NewMarketSessionFromConfig(config Config) (*MarketSession, error) {
	open, err := utils.ParseClock(config.Open)
	if err != nil {
		return nil, fmt.Errorf("MARKET_OPEN: %w", err)
	}
	closeAt, err := utils.ParseClock(config.Close)
	if err != nil {
		return nil, fmt.Errorf("MARKET_CLOSE: %w", err)
	}
	if closeAt.SinceMidnight() < open.SinceMidnight() {
		return nil, fmt.Errorf("market close %s is before open %s", closeAt, open)
	}
	return NewMarketSession(config.Timezone, open, closeAt, config.ExcludeWeekends), nil
}

// IsOpen reports whether now falls inside the session, both bounds inclusive.
func (s *MarketSession) IsOpen(now time.Time) bool {
	sess := s.Detect(now)
	return sess == SessionOpen || sess == SessionUnresolved
}

// Detect labels now relative to the session.
func (s *MarketSession) Detect(now time.Time) Session {
	if s.loc == nil {
		return SessionUnresolved
	}

	local := now.In(s.loc)

	if s.ExcludeWeekends && isWeekend(local) {
		return SessionWeekend
	}

	offset := utils.OffsetInDay(local)
	switch {
	case offset < s.Open.SinceMidnight():
		return SessionPreOpen
	case offset > s.Close.SinceMidnight():
		return SessionPostClose
	default:
		return SessionOpen
	}
}

func isWeekend(t time.Time) bool {
	return t.Weekday() == time.Saturday || t.Weekday() == time.Sunday
}
