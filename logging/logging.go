package logging

import (
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
)

// logger is shared by every package. Packages grab it at init time, so it
// exists before InitLogger configures it.
var logger = logrus.New()

// InitLogger sets the level and output format of the process logger.
func InitLogger(level logrus.Level, format string) error {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "", "text":
		logger.SetFormatter(&logrus.TextFormatter{
			FullTimestamp: true,
		})
	case "json":
		logger.SetFormatter(&logrus.JSONFormatter{})
	default:
		return fmt.Errorf("unknown log format: %s", format)
	}
	logger.SetLevel(level)
	return nil
}

// ParseLevel maps a config value to a logrus level. Empty means info.
func ParseLevel(s string) (logrus.Level, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return logrus.InfoLevel, nil
	}
	return logrus.ParseLevel(s)
}

// GetLogger returns the process logger.
func GetLogger() *logrus.Logger {
	return logger
}
