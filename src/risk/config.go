package risk

import (
	"fmt"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Timezone        string `envconfig:"MARKET_TIMEZONE" default:"Asia/Kolkata"`
	Open            string `envconfig:"MARKET_OPEN" default:"09:15"`
	Close           string `envconfig:"MARKET_CLOSE" default:"15:30"`
	ExcludeWeekends bool   `envconfig:"MARKET_EXCLUDE_WEEKENDS" default:"true"`
}

func GetConfig() Config {
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		panic(fmt.Errorf("error processing env config: %w", err))
	}
	return config
}
