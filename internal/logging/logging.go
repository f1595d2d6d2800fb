// Package logging configures the application logger.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/backupwatch/backupwatch/internal/fsutil"
)

// Setup creates a logrus logger at the given level, writing to stderr and,
// when logFile is non-empty, appending to that file as well (parent
// directories are created). Log rotation is left to logrotate.
func Setup(level, logFile string) (*logrus.Logger, error) {
	log := logrus.New()

	parsed, err := parseLevel(level)
	if err != nil {
		return nil, err
	}
	log.SetLevel(parsed)

	log.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})

	if logFile != "" {
		full, err := fsutil.ExpandPath(logFile)
		if err != nil {
			return nil, fmt.Errorf("resolve log file path %q: %w", logFile, err)
		}
		if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
			return nil, fmt.Errorf("create log dir: %w", err)
		}
		f, err := os.OpenFile(full, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, fmt.Errorf("open log file: %w", err)
		}
		log.SetOutput(io.MultiWriter(os.Stderr, f))
	} else {
		log.SetOutput(os.Stderr)
	}

	return log, nil
}

// WithComponent returns an entry tagged with the given component name.
func WithComponent(log *logrus.Logger, component string) *logrus.Entry {
	return log.WithFields(logrus.Fields{"component": component})
}

// parseLevel maps the config log level names onto logrus levels.
// "WARNING" is accepted as an alias for logrus's "warn".
func parseLevel(level string) (logrus.Level, error) {
	switch strings.ToUpper(strings.TrimSpace(level)) {
	case "DEBUG":
		return logrus.DebugLevel, nil
	case "INFO", "":
		return logrus.InfoLevel, nil
	case "WARNING", "WARN":
		return logrus.WarnLevel, nil
	case "ERROR":
		return logrus.ErrorLevel, nil
	default:
		return 0, fmt.Errorf("unknown log level %q", level)
	}
}
