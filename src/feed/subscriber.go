package feed

import (
	"context"
	"errors"
	"time"

	"autoexit/src/metrics"
	"autoexit/src/model"

	"github.com/sirupsen/logrus"
)

// PollResult says what one Poll did with the feed.
type PollResult int

const (
	PollIdle      PollResult = iota // no message within the timeout
	PollApplied                     // quote merged into the cache
	PollDrained                     // taken off the feed but not applied, market closed
	PollDropped                     // no resolvable symbol
	PollMalformed                   // payload could not be decoded
)

func (r PollResult) String() string {
	switch r {
	case PollApplied:
		return "applied"
	case PollDrained:
		return "drained"
	case PollDropped:
		return "dropped"
	case PollMalformed:
		return "malformed"
	default:
		return "idle"
	}
}

// QuoteWriter is the cache side the subscriber writes to.
type QuoteWriter interface {
	Update(symbol string, q model.Quote)
	Len() int
}

// Subscriber owns a reader goroutine that keeps a Source connected and
// queues its messages in a bounded buffer. The engine loop consumes the
// buffer through Poll, one message at a time.
type Subscriber struct {
	log            *logrus.Entry
	transport      string
	dial           DialFunc
	cache          QuoteWriter
	buf            chan Message
	reconnectDelay time.Duration
}

func NewSubscriber(log *logrus.Entry, config Config, dial DialFunc, cache QuoteWriter) *Subscriber {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	size := config.BufferSize
	if size <= 0 {
		size = 1024
	}
	delay := config.ReconnectDelay
	if delay <= 0 {
		delay = 2 * time.Second
	}

	return &Subscriber{
		log:            log.WithField("component", "feed"),
		transport:      config.Transport,
		dial:           dial,
		cache:          cache,
		buf:            make(chan Message, size),
		reconnectDelay: delay,
	}
}

// Start launches the reader. It returns immediately; the reader exits when ctx is done.
func (s *Subscriber) Start(ctx context.Context) {
	go s.run(ctx)
}

func (s *Subscriber) run(ctx context.Context) {
	for ctx.Err() == nil {
		src, err := s.dial(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			metrics.FeedSourceErrors.WithLabelValues(s.transport).Inc()
			s.log.WithError(err).Warn("Feed connect failed, retrying")
			if !sleepCtx(ctx, s.reconnectDelay) {
				return
			}
			continue
		}

		s.log.WithField("transport", s.transport).Info("Feed connected")
		err = s.read(ctx, src)
		_ = src.Close()

		if ctx.Err() != nil {
			return
		}
		metrics.FeedSourceErrors.WithLabelValues(s.transport).Inc()
		s.log.WithError(err).Error("Feed connection lost, reconnecting")
		if !sleepCtx(ctx, s.reconnectDelay) {
			return
		}
	}
}

func (s *Subscriber) read(ctx context.Context, src Source) error {
	// Closing the source is the only way to unblock a pending Recv.
	stop := context.AfterFunc(ctx, func() { _ = src.Close() })
	defer stop()

	for {
		msg, err := src.Recv(ctx)
		if err != nil {
			return err
		}
		select {
		case s.buf <- msg:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Poll waits up to timeout for one message. With apply false the message is
// discarded, otherwise it is merged into the cache.
func (s *Subscriber) Poll(ctx context.Context, timeout time.Duration, apply bool) PollResult {
	select {
	case msg := <-s.buf:
		return s.Handle(msg, apply)
	default:
	}

	if timeout <= 0 {
		return PollIdle
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case msg := <-s.buf:
		return s.Handle(msg, apply)
	case <-timer.C:
		return PollIdle
	case <-ctx.Done():
		return PollIdle
	}
}

// DrainPending discards every queued message and returns how many there were.
func (s *Subscriber) DrainPending() int {
	n := 0
	for {
		select {
		case <-s.buf:
			n++
		default:
			if n > 0 {
				metrics.FeedMessages.WithLabelValues(PollDrained.String()).Add(float64(n))
			}
			return n
		}
	}
}

// Handle processes one message. Errors never escape: a bad message is logged
// and dropped so the next one is still processed.
func (s *Subscriber) Handle(msg Message, apply bool) PollResult {
	result := s.handle(msg, apply)
	metrics.FeedMessages.WithLabelValues(result.String()).Inc()
	return result
}

func (s *Subscriber) handle(msg Message, apply bool) PollResult {
	if !apply {
		return PollDrained
	}

	symbol, q, err := Decode(msg)
	if err != nil {
		if errors.Is(err, ErrNoSymbol) {
			return PollDropped
		}
		s.log.WithError(err).WithField("topic", msg.Topic).Error("Error processing market data")
		return PollMalformed
	}

	s.cache.Update(symbol, q)
	metrics.QuotesCached.Set(float64(s.cache.Len()))
	return PollApplied
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
