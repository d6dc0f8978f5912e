package log

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"

	"firestige.xyz/pktcraft/internal/config"
)

// Init builds a logger from configuration and installs it as the process
// logger. Output always goes to stdout and optionally to a rotating file.
func Init(cfg config.LogConfig) error {
	return initWithOutput(cfg, os.Stdout)
}

func initWithOutput(cfg config.LogConfig, console io.Writer) error {
	level, err := parseLevel(cfg.Level)
	if err != nil {
		return fmt.Errorf("invalid log level: %w", err)
	}

	f, err := newFormatter(cfg)
	if err != nil {
		return err
	}

	out := NewMultiWriter().Add(console)
	if cfg.File.Enabled {
		if cfg.File.Path == "" {
			return fmt.Errorf("file output requires 'path' field")
		}
		out.AddFileAppender(FileAppenderOpt{
			Filename:   cfg.File.Path,
			MaxSize:    cfg.File.MaxSizeMB,
			MaxBackups: cfg.File.MaxBackups,
			MaxAge:     cfg.File.MaxAgeDays,
			Compress:   cfg.File.Compress,
		})
	}

	l := logrus.New()
	l.SetLevel(level)
	l.SetFormatter(f)
	l.SetOutput(out)

	install(l, out)
	return nil
}

// parseLevel converts a configured level name to a logrus level.
func parseLevel(levelStr string) (logrus.Level, error) {
	switch strings.ToLower(levelStr) {
	case "trace":
		return logrus.TraceLevel, nil
	case "debug":
		return logrus.DebugLevel, nil
	case "info":
		return logrus.InfoLevel, nil
	case "warn", "warning":
		return logrus.WarnLevel, nil
	case "error":
		return logrus.ErrorLevel, nil
	default:
		return logrus.InfoLevel, fmt.Errorf("unknown level: %s", levelStr)
	}
}

func newFormatter(cfg config.LogConfig) (logrus.Formatter, error) {
	timeFormat := cfg.TimeFormat
	if timeFormat == "" {
		timeFormat = defaultTimeFormat
	}
	switch strings.ToLower(cfg.Format) {
	case "json":
		return &logrus.JSONFormatter{TimestampFormat: timeFormat}, nil
	case "text":
		return &logrus.TextFormatter{FullTimestamp: true, TimestampFormat: timeFormat, DisableColors: true}, nil
	case "pattern", "":
		pattern := cfg.Pattern
		if pattern == "" {
			pattern = defaultPattern
		}
		return &formatter{pattern: pattern, time: timeFormat}, nil
	default:
		return nil, fmt.Errorf("unsupported log format: %s (must be json, text or pattern)", cfg.Format)
	}
}
