package broker

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	BaseURL  string        `envconfig:"BROKER_BASE_URL" default:"http://127.0.0.1:5000"`
	Timeout  time.Duration `envconfig:"BROKER_TIMEOUT" default:"10s"`
	Strategy string        `envconfig:"BROKER_STRATEGY" default:"ManagementService"`

	// Retries apply to position reads only, order placement is never retried.
	RetryAttempts  int           `envconfig:"BROKER_RETRY_ATTEMPTS" default:"3"`
	RetryBaseDelay time.Duration `envconfig:"BROKER_RETRY_BASE_DELAY" default:"500ms"`
	RetryMaxDelay  time.Duration `envconfig:"BROKER_RETRY_MAX_DELAY" default:"4s"`
}

func GetConfig() Config {
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		panic(fmt.Errorf("error processing env config: %w", err))
	}
	return config
}
