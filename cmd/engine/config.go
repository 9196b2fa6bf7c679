package engine

import (
	"fmt"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	AppName string `envconfig:"APP_NAME" default:"autoexit"`
	Env     string `envconfig:"APP_ENV" default:"local"`

	// Continuous profiling is off unless a server address is set.
	PyroscopeServerAddress string `envconfig:"PYROSCOPE_SERVER_ADDRESS" default:""`
}

func GetConfig() *Config {
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		panic(fmt.Errorf("error processing env config: %w", err))
	}
	return &config
}
