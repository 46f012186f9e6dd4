package config

import (
	"fmt"
	"time"
)

// GenerationConfig holds the default generation-control parameters sent with
// every inference request.
type GenerationConfig struct {
	MaxLength   int     `mapstructure:"max_length"`
	Temperature float64 `mapstructure:"temperature"`
	TopP        float64 `mapstructure:"top_p"`
	DoSample    bool    `mapstructure:"do_sample"`
}

// Config holds the application configuration. It is built once by LoadConfig
// and never modified afterwards.
type Config struct {
	DiscordBotToken  string `mapstructure:"discord_bot_token"`
	HuggingFaceToken string `mapstructure:"hugging_face_token"`

	Port          int    `mapstructure:"port"`
	APIURL        string `mapstructure:"api_url"`
	CommandPrefix string `mapstructure:"command_prefix"`
	Command       string `mapstructure:"command"`
	ListenAll     bool   `mapstructure:"listen_all"`

	MaxRetries        int           `mapstructure:"max_retries"`
	RequestTimeout    time.Duration `mapstructure:"request_timeout"`
	RetryBackoff      time.Duration `mapstructure:"retry_backoff"`
	DefaultRetryAfter time.Duration `mapstructure:"default_retry_after"`
	MaxRetryAfter     time.Duration `mapstructure:"max_retry_after"`

	Workers   int `mapstructure:"workers"`
	QueueSize int `mapstructure:"queue_size"`

	GenerationConfig `mapstructure:",squash"`

	LogLevel  string `mapstructure:"log_level"`
	LogFormat string `mapstructure:"log_format"`
}

// ListenAddress is the address the liveness server binds to.
func (c *Config) ListenAddress() string {
	return fmt.Sprintf("0.0.0.0:%d", c.Port)
}
