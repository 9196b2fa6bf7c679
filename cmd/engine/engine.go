package engine

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"autoexit/src/broker"
	"autoexit/src/database"
	"autoexit/src/executors"
	"autoexit/src/feed"
	"autoexit/src/quote"
	"autoexit/src/repository"
	"autoexit/src/risk"
	"autoexit/src/server"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

type Engine struct{}

// Start wires the feed, broker gateway, rule store and status server, then
// runs the supervising loop until SIGINT or SIGTERM.
func (t *Engine) Start() error {
	config := GetConfig()
	log := logrus.WithField("cmd", "engine")

	ctx, stop := signal.NotifyContext(
		context.Background(),
		os.Interrupt,
		syscall.SIGTERM,
	)
	defer stop()

	stopProfiler := startProfiler(config, log)
	defer stopProfiler()

	// Initialize main (read/write) database
	if err := database.InitMainDB(); err != nil {
		log.WithError(err).Error("Failed to connect to main database")
		return err
	}

	// Initialize read-only database
	if err := database.InitReadOnlyDB(); err != nil {
		log.WithError(err).Error("Failed to connect to read-only database")
		return err
	}

	session, err := risk.NewMarketSessionFromConfig(risk.GetConfig())
	if err != nil {
		return fmt.Errorf("market session: %w", err)
	}

	feedConfig := feed.GetConfig()
	dial, err := feed.NewDialFunc(feedConfig)
	if err != nil {
		return err
	}

	cache := quote.NewCache()
	subscriber := feed.NewSubscriber(log, feedConfig, dial, cache)

	brokerConfig := broker.GetConfig()
	client := broker.NewClient(brokerConfig)

	rules := repository.NewRuleRepository()
	credentials := repository.NewCredentialRepository()
	exitLogs := repository.NewExitLogRepository()
	exceptions := repository.NewExceptionRepository()

	loopConfig := executors.GetConfig()
	loopConfig.PollTimeout = feedConfig.PollTimeout

	exits := executors.NewExitExecutor(log, loopConfig, client, rules,
		executors.WithExitRecorder(exitLogs),
		executors.WithExceptionRecorder(exceptions),
		executors.WithPriceSource(cache),
	)
	evaluator := executors.NewEvaluator(log, rules, client, credentials, cache, exits)
	status := executors.NewStatus(cache)
	loop := executors.NewLoop(log, loopConfig, session, subscriber, evaluator, status)
	srv := server.New(server.GetConfig(), status)

	log.WithFields(map[string]interface{}{
		"feed_transport": feedConfig.Transport,
		"broker":         brokerConfig.BaseURL,
		"market":         fmt.Sprintf("%s %s-%s", session.Timezone, session.Open, session.Close),
	}).Info("Starting auto-exit engine")

	subscriber.Start(ctx)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.Run(gctx)
	})
	g.Go(func() error {
		return executors.StartLoop(gctx, loop)
	})

	if err := g.Wait(); err != nil {
		log.WithError(err).Error("engine stopped with error")
		return err
	}

	log.Info("engine stopped")
	return nil
}
