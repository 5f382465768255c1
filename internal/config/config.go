package config

import "time"

// Config holds server configuration values.
type Config struct {
	Addr              string        `mapstructure:"addr" yaml:"addr"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout" yaml:"read_header_timeout"`
	ShutdownTimeout   time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
	DatabasePath      string        `mapstructure:"database_path" yaml:"database_path"`
	LogLevel          string        `mapstructure:"log_level" yaml:"log_level"`

	JWTSecret   string `mapstructure:"jwt_secret" yaml:"jwt_secret"`
	JWTIssuer   string `mapstructure:"jwt_issuer" yaml:"jwt_issuer"`
	JWTAudience string `mapstructure:"jwt_audience" yaml:"jwt_audience"`

	TypingDecay  time.Duration `mapstructure:"typing_decay" yaml:"typing_decay"`
	TypingStale  time.Duration `mapstructure:"typing_stale" yaml:"typing_stale"`
	HistoryLimit int           `mapstructure:"history_limit" yaml:"history_limit"`
}

// Default returns configuration with reasonable starter defaults.
func Default() Config {
	return Config{
		Addr:              ":8080",
		ReadHeaderTimeout: 5 * time.Second,
		ShutdownTimeout:   5 * time.Second,
		DatabasePath:      "tripchat.db",
		LogLevel:          "info",
		JWTSecret:         "change-me",
		JWTIssuer:         "tripchat",
		JWTAudience:       "tripchat",
		TypingDecay:       3 * time.Second,
		TypingStale:       5 * time.Second,
		HistoryLimit:      100,
	}
}
