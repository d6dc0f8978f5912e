// Package log configures the process logger on top of logrus.
package log

import (
	"sync"

	"github.com/sirupsen/logrus"
)

type Logger interface {
	Debug(args ...interface{})
	Debugf(format string, args ...interface{})

	Info(args ...interface{})
	Infof(format string, args ...interface{})

	Warn(args ...interface{})
	Warnf(format string, args ...interface{})

	Error(args ...interface{})
	Errorf(format string, args ...interface{})

	WithField(field string, value interface{}) Logger
	WithFields(fields map[string]interface{}) Logger
	WithError(err error) Logger

	IsDebugEnabled() bool
}

var (
	mu     sync.RWMutex
	std    *logrus.Logger
	logger Logger
	output *MultiWriter
)

func init() {
	install(logrus.StandardLogger(), nil)
}

// GetLogger returns the process logger. Before Init it writes through the
// logrus standard logger.
func GetLogger() Logger {
	mu.RLock()
	defer mu.RUnlock()
	return logger
}

// Logrus returns the underlying logrus logger, for components that take a
// logrus.FieldLogger directly.
func Logrus() *logrus.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return std
}

// Close releases files opened by the last Init.
func Close() error {
	mu.Lock()
	defer mu.Unlock()
	if output == nil {
		return nil
	}
	return output.Close()
}

func install(l *logrus.Logger, out *MultiWriter) {
	mu.Lock()
	defer mu.Unlock()
	if output != nil {
		_ = output.Close()
	}
	std = l
	logger = &logrusAdapter{entry: logrus.NewEntry(l)}
	output = out
}
