package config

import (
	"io"

	"github.com/sirupsen/logrus"
)

// NewLogger creates an isolated logrus logger. Unknown levels fall back to
// info; any format other than "json" is text.
func NewLogger(levelStr, formatStr string, outW io.Writer) *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(outW)

	level, err := logrus.ParseLevel(levelStr)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	if formatStr == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{
			FullTimestamp: true,
		})
	}
	return logger
}

// Logger builds the logger described by the log block.
func (c *Config) Logger(outW io.Writer) *logrus.Logger {
	return NewLogger(c.Log.Level, c.Log.Format, outW)
}
