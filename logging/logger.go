// Package logging configures the logrus loggers handed to every component
// in this module (session, stream, store, migration). It follows the same
// shape the teacher's common package uses: a small Config struct, a
// constructor that applies level/format, and stdout/stderr stream
// separation so container log collectors can treat errors with higher
// priority without scraping message text.
package logging

import (
	"bytes"
	"os"
	"time"

	"github.com/sirupsen/logrus"
)

// Level is one of logrus's standard levels, named the way this module's
// config layer spells them.
type Level string

const (
	LevelDebug Level = "debug"
	LevelInfo  Level = "info"
	LevelWarn  Level = "warn"
	LevelError Level = "error"
)

// Config configures a logger built by New.
type Config struct {
	Level      Level
	Format     string // "json" or "text"
	Component  string // attached to every entry as the "component" field
	TimeFormat string
}

// DefaultConfig returns sensible defaults: info level, text format, RFC3339
// timestamps.
func DefaultConfig(component string) Config {
	return Config{Level: LevelInfo, Format: "text", Component: component, TimeFormat: time.RFC3339}
}

// New builds a *logrus.Entry per cfg, with output routed through
// streamSplitter so error-level entries land on stderr and everything else
// on stdout. The returned entry carries cfg.Component as a permanent
// "component" field on every line it logs — every caller in this module
// (session, stream, store, migration, cmd/faesctl) is handed one of these
// instead of the bare *logrus.Logger, since logrus.Entry.Logger would
// strip the field right back off.
func New(cfg Config) *logrus.Entry {
	logger := logrus.New()

	switch cfg.Level {
	case LevelDebug:
		logger.SetLevel(logrus.DebugLevel)
	case LevelWarn:
		logger.SetLevel(logrus.WarnLevel)
	case LevelError:
		logger.SetLevel(logrus.ErrorLevel)
	default:
		logger.SetLevel(logrus.InfoLevel)
	}

	timeFormat := cfg.TimeFormat
	if timeFormat == "" {
		timeFormat = time.RFC3339
	}
	if cfg.Format == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{TimestampFormat: timeFormat})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{TimestampFormat: timeFormat, FullTimestamp: true})
	}

	logger.SetOutput(&streamSplitter{})
	return logger.WithField("component", cfg.Component)
}

// streamSplitter routes formatted log lines to stderr when they carry
// logrus's "level=error"/"level=fatal" marker and to stdout otherwise,
// so a container's stdout/stderr separation lines up with severity rather
// than requiring a second log-shipping rule keyed on message content.
type streamSplitter struct{}

func (streamSplitter) Write(p []byte) (int, error) {
	if bytes.Contains(p, []byte("level=error")) || bytes.Contains(p, []byte("level=fatal")) {
		return os.Stderr.Write(p)
	}
	return os.Stdout.Write(p)
}
