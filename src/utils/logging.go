package utils

import (
	"strings"

	logger "github.com/sirupsen/logrus"
)

// SetupLogger configures the standard logrus logger from LOG_LEVEL and LOG_FORMAT.
// Unknown levels fall back to info.
func SetupLogger(config Config) {
	level, err := logger.ParseLevel(strings.ToLower(strings.TrimSpace(config.LogLevel)))
	if err != nil {
		level = logger.InfoLevel
	}
	logger.SetLevel(level)

	if strings.EqualFold(config.LogFormat, "json") {
		logger.SetFormatter(&logger.JSONFormatter{})
		return
	}
	logger.SetFormatter(&logger.TextFormatter{
		FullTimestamp: true,
	})
}
