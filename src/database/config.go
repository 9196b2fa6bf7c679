package database

import (
	"fmt"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	// DatabaseURL accepts sqlite://<path>, file:<path> or a postgres:// URL.
	DatabaseURL string `envconfig:"DATABASE_URL" default:"sqlite://database.db"`
	// DatabaseURLReadOnly is optional; when empty the engine reads through the main pool.
	DatabaseURLReadOnly string `envconfig:"DATABASE_URL_READONLY" default:""`
	GormLogLevel        int    `envconfig:"GORM_LOG_LEVEL" default:"2"`
}

func GetConfig() Config {
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		panic(fmt.Errorf("error processing env config: %w", err))
	}
	return config
}
