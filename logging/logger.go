package logging

import (
	"github.com/sirupsen/logrus"

	"github.com/PerMoeller/asterisk-ari/config"
)

// Logger represents a logger instance
type Logger = *logrus.Logger

// Fields represents structured logging fields
type Fields = logrus.Fields

// Level represents a log level
type Level = logrus.Level

// Log levels
const (
	DebugLevel = logrus.DebugLevel
	InfoLevel  = logrus.InfoLevel
	WarnLevel  = logrus.WarnLevel
	ErrorLevel = logrus.ErrorLevel
)

// NewLogger creates a new configured logger instance
func NewLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logger.SetLevel(config.GetLogLevel())
	return logger
}

// NewLoggerWithComponent creates a logger with a component field attached to
// every entry, e.g. "transport" or "queue".
func NewLoggerWithComponent(component string) *logrus.Logger {
	logger := NewLogger()

	// Add component name to all log entries
	logger = logger.WithField("component", component).Logger

	return logger
}
