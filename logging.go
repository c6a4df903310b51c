package authclient

import (
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

// NewLogger builds a logrus logger from cfg. An empty level yields a logger that discards
// everything.
func NewLogger(cfg LogConfig) (*logrus.Logger, error) {
	log := logrus.New()
	if cfg.Level == "" {
		log.SetOutput(io.Discard)
		return log, nil
	}

	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("log level: %w", err)
	}
	log.SetOutput(os.Stderr)
	log.SetLevel(level)
	if cfg.Format == "json" {
		log.SetFormatter(&logrus.JSONFormatter{})
	} else {
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	return log, nil
}
