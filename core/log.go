package core

import (
	"fmt"
	"io"

	log "github.com/sirupsen/logrus"
)

// NewLogger creates a logger writing to out as configured.
func NewLogger(cfg LogConfiguration, out io.Writer) (*log.Logger, error) {
	level, err := log.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("core: log level: %w", err)
	}

	logger := log.New()
	logger.SetOutput(out)
	logger.SetLevel(level)
	switch cfg.Format {
	case "", "text":
		logger.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	case "json":
		logger.SetFormatter(&log.JSONFormatter{})
	default:
		return nil, fmt.Errorf("core: log format %q unknown", cfg.Format)
	}
	return logger, nil
}
