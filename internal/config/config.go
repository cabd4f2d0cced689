package config

import (
	"fmt"

	"github.com/Netflix/go-env"
)

type Config struct {
	DatabaseDSN       string `env:"DATABASE_DSN,required=true"`
	RedisURL          string `env:"REDIS_URL,required=true"`
	RabbitMQURL       string `env:"RABBITMQ_URL,required=true"`
	ReviewChannelURL  string `env:"REVIEW_CHANNEL_URL,required=true"`
	AssetStoreURL     string `env:"ASSET_STORE_URL,required=true"`
	PublishRatePerSec int    `env:"PUBLISH_RATE_PER_SEC,default=20"`
	MonitorTickSec    int    `env:"MONITOR_TICK_SEC,default=30"`
	MonitorMaxTicks   int    `env:"MONITOR_MAX_TICKS,default=120"`
	TrackerRetentionH int    `env:"TRACKER_RETENTION_HOURS,default=24"`
	APIPort           int    `env:"API_PORT,default=8080"`
	LogLevel          string `env:"LOG_LEVEL,default=info"`
}

func Load() (*Config, error) {
	var cfg Config
	_, err := env.UnmarshalFromEnviron(&cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return &cfg, nil
}
