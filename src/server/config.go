package server

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config of the status server. It only serves health, status and metrics.
type Config struct {
	Port              string        `envconfig:"PORT" default:"9898"`
	ReadHeaderTimeout time.Duration `envconfig:"SERVER_READ_HEADER_TIMEOUT" default:"5s"`
	ShutdownTimeout   time.Duration `envconfig:"SERVER_SHUTDOWN_TIMEOUT" default:"5s"`
}

func GetConfig() *Config {
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		panic(fmt.Errorf("error processing env config: %w", err))
	}
	return &config
}
