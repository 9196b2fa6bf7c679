package utils

import (
	"fmt"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	LogLevel  string `envconfig:"LOG_LEVEL" default:"info"`  // debug | info | warn | error
	LogFormat string `envconfig:"LOG_FORMAT" default:"text"` // text | json
	AppName   string `envconfig:"APP_NAME" default:"autoexit"`
}

func GetConfig() Config {
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		panic(fmt.Errorf("error processing env config: %w", err))
	}
	return config
}
