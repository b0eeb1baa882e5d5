package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/sirupsen/logrus"
)

// Package logger is a thin wrapper around logrus that adds a per-module
// tag convention: the X-variants (InfoX, WarnX, ...) prefix every line
// with the owning module name so the combined log stays greppable.

var (
	mu   sync.Mutex
	log  = logrus.New()
	file *os.File
)

func init() {
	log.SetOutput(os.Stderr)
	log.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05.000",
	})
	log.SetLevel(logrus.InfoLevel)
}

// InitLog routes log output to the given file path in addition to stderr.
// The directory is created if missing.
func InitLog(path string) error {
	mu.Lock()
	defer mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	file = f
	log.SetOutput(io.MultiWriter(os.Stderr, f))
	return nil
}

// FlushLog closes the log file handle, if any.
func FlushLog() {
	mu.Lock()
	defer mu.Unlock()
	if file != nil {
		_ = file.Sync()
		_ = file.Close()
		file = nil
		log.SetOutput(os.Stderr)
	}
}

// SetDebug toggles debug-level output.
func SetDebug(enabled bool) {
	if enabled {
		log.SetLevel(logrus.DebugLevel)
	} else {
		log.SetLevel(logrus.InfoLevel)
	}
}

func Debug(format string, args ...interface{}) { log.Debugf(format, args...) }
func Info(format string, args ...interface{})  { log.Infof(format, args...) }
func Warn(format string, args ...interface{})  { log.Warnf(format, args...) }
func Error(format string, args ...interface{}) { log.Errorf(format, args...) }

// DebugX logs a debug line tagged with the owning module name.
func DebugX(module, format string, args ...interface{}) {
	log.WithField("module", module).Debugf(format, args...)
}

// InfoX logs an info line tagged with the owning module name.
func InfoX(module, format string, args ...interface{}) {
	log.WithField("module", module).Infof(format, args...)
}

// WarnX logs a warning line tagged with the owning module name.
func WarnX(module, format string, args ...interface{}) {
	log.WithField("module", module).Warnf(format, args...)
}

// ErrorX logs an error line tagged with the owning module name.
func ErrorX(module, format string, args ...interface{}) {
	log.WithField("module", module).Errorf(format, args...)
}
