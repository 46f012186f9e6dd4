package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// ErrMissingCredential is returned when a required token is not supplied.
var ErrMissingCredential = errors.New("missing credential")

const DefaultAPIURL = "https://api-inference.huggingface.co/models/deepseek-ai/DeepSeek-R1"

var defaults = map[string]any{
	"port":                5000,
	"api_url":             DefaultAPIURL,
	"command_prefix":      "!",
	"command":             "ask",
	"listen_all":          false,
	"max_retries":         3,
	"request_timeout":     30 * time.Second,
	"retry_backoff":       5 * time.Second,
	"default_retry_after": 60 * time.Second,
	"max_retry_after":     60 * time.Second,
	"workers":             4,
	"queue_size":          100,
	"max_length":          100,
	"temperature":         0.7,
	"top_p":               0.95,
	"do_sample":           true,
	"log_level":           "info",
	"log_format":          "text",
}

// Credentials are looked up by their environment variable name.
var credentials = []string{"discord_bot_token", "hugging_face_token"}

// LoadConfig builds the configuration from defaults, the optional dotenv
// file, the optional YAML file and the environment, in increasing order of
// precedence.
func LoadConfig(args CliConfig) (*Config, error) {
	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	if args.EnvFile != "" {
		if _, err := os.Stat(args.EnvFile); err == nil {
			v.SetConfigFile(args.EnvFile)
			v.SetConfigType("env")
			if err := v.ReadInConfig(); err != nil {
				return nil, fmt.Errorf("error reading env file: %w", err)
			}
		} else if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("error reading env file: %w", err)
		}
	}

	if args.ConfigFile != "" {
		v.SetConfigFile(args.ConfigFile)
		v.SetConfigType("yaml")
		if err := v.MergeInConfig(); err != nil {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	// Environment variables are the upper-cased keys.
	for _, key := range credentials {
		if err := v.BindEnv(key); err != nil {
			return nil, err
		}
	}
	for key := range defaults {
		if err := v.BindEnv(key); err != nil {
			return nil, err
		}
	}

	var configuration Config
	if err := v.Unmarshal(&configuration); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	configuration.DiscordBotToken = strings.TrimSpace(configuration.DiscordBotToken)
	configuration.HuggingFaceToken = strings.TrimSpace(configuration.HuggingFaceToken)
	if args.Debug {
		configuration.LogLevel = "debug"
	}

	if err := configuration.Validate(); err != nil {
		return nil, err
	}
	return &configuration, nil
}

// Validate checks required values and ranges.
func (c *Config) Validate() error {
	if c.DiscordBotToken == "" {
		return fmt.Errorf("%w: set DISCORD_BOT_TOKEN", ErrMissingCredential)
	}
	if c.HuggingFaceToken == "" {
		return fmt.Errorf("%w: set HUGGING_FACE_TOKEN", ErrMissingCredential)
	}
	if c.APIURL == "" {
		return errors.New("api_url is required")
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Port)
	}
	if c.MaxRetries < 1 {
		return fmt.Errorf("max_retries must be at least 1, got %d", c.MaxRetries)
	}
	if c.Workers < 1 {
		return fmt.Errorf("workers must be at least 1, got %d", c.Workers)
	}
	if c.QueueSize < 1 {
		return fmt.Errorf("queue_size must be at least 1, got %d", c.QueueSize)
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("request_timeout must be positive, got %s", c.RequestTimeout)
	}
	if strings.TrimSpace(c.Command) == "" && !c.ListenAll {
		return errors.New("command is required unless listen_all is set")
	}
	return nil
}
