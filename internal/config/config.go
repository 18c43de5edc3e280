package config

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Mode       string        `mapstructure:"mode"`
	Port       int           `mapstructure:"port"`
	StaticPath string        `mapstructure:"static_path"`
	ReadLimit  int64         `mapstructure:"read_limit"`
	PingPeriod time.Duration `mapstructure:"ping_period"`
	Secret     string        `mapstructure:"secret"`

	// DSN is the MySQL connection string for the persistence layer.
	DSN string `mapstructure:"dsn"`

	// RedisAddr enables the cross-instance fanout bridge; empty means
	// single-instance, local fanout only.
	RedisAddr string `mapstructure:"redis_addr"`

	// RingTimeout is how long an initiated call may ring before it
	// degrades to missed.
	RingTimeout time.Duration `mapstructure:"ring_timeout"`

	HistoryLimit int `mapstructure:"history_limit"`
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	env := os.Getenv("CONFIG_ENV")
	if env == "" {
		env = "dev"
	}
	fileName := fmt.Sprintf("config/config.%s.yaml", env)

	v.SetConfigFile(fileName)
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	v.SetDefault("mode", "release")
	v.SetDefault("port", 8080)
	v.SetDefault("static_path", "")
	v.SetDefault("read_limit", 32768)
	v.SetDefault("ping_period", "54s")
	v.SetDefault("dsn", "liveclass:liveclass@tcp(127.0.0.1:3306)/liveclass?charset=utf8mb4&parseTime=True&loc=UTC")
	v.SetDefault("redis_addr", "")
	v.SetDefault("ring_timeout", "45s")
	v.SetDefault("history_limit", 100)

	if err := v.ReadInConfig(); err != nil {
		fmt.Printf("config file not found (%s), using defaults\n", fileName)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return &cfg, nil
}
