package executors

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	RuleCheckInterval time.Duration `envconfig:"RULE_CHECK_INTERVAL" default:"1s"`
	MarketClosedSleep time.Duration `envconfig:"MARKET_CLOSED_SLEEP" default:"5s"`
	HeartbeatInterval time.Duration `envconfig:"HEARTBEAT_INTERVAL" default:"60s"`
	ErrorBackoff      time.Duration `envconfig:"LOOP_ERROR_BACKOFF" default:"1s"`

	ExitRetryCooldown time.Duration `envconfig:"EXIT_RETRY_COOLDOWN" default:"30s"`
	ExitOrderTimeout  time.Duration `envconfig:"EXIT_ORDER_TIMEOUT" default:"15s"`

	// PollTimeout comes from the feed configuration.
	PollTimeout time.Duration `ignored:"true"`
}

func GetConfig() Config {
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		panic(fmt.Errorf("error processing env config: %w", err))
	}
	return config
}

func (c Config) withDefaults() Config {
	if c.RuleCheckInterval <= 0 {
		c.RuleCheckInterval = time.Second
	}
	if c.MarketClosedSleep <= 0 {
		c.MarketClosedSleep = 5 * time.Second
	}
	if c.HeartbeatInterval <= 0 {
		c.HeartbeatInterval = time.Minute
	}
	if c.ErrorBackoff <= 0 {
		c.ErrorBackoff = time.Second
	}
	if c.ExitOrderTimeout <= 0 {
		c.ExitOrderTimeout = 15 * time.Second
	}
	if c.PollTimeout <= 0 {
		c.PollTimeout = 100 * time.Millisecond
	}
	return c
}
