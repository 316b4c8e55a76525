package logging

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

// New creates a structured text logger.
// app: application name (e.g., "ticksched")
// level: one of "debug", "info", "warn", "error" (default: "info")
func New(app string, level string) *logrus.Entry {
	return NewWithOutput(os.Stderr, app, level)
}

// NewWithOutput is New writing to w.
func NewWithOutput(w io.Writer, app string, level string) *logrus.Entry {
	logger := logrus.New()
	logger.SetOutput(w)
	logger.SetLevel(parseLevel(level))
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	// Add default fields: app and pid
	return logger.WithFields(logrus.Fields{
		"app": app,
		"pid": os.Getpid(),
	})
}

func parseLevel(level string) logrus.Level {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return logrus.InfoLevel
	}
	return lvl
}
