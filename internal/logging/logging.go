// Package logging provides the process-wide debug logger. Logging is opt-in:
// enabled via WIREFRAME_DEBUG=1 or by the presence of ~/.wireframe/debug.
// When enabled, everything goes to a timestamped file under
// ~/.wireframe/logs/; errors are additionally mirrored to stderr.
package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger wraps the zap logger behind the printf-style call sites used
// throughout the backend.
type Logger struct {
	sugar   *zap.SugaredLogger
	enabled bool
}

var (
	defaultLogger *Logger
	once          sync.Once
)

// Get returns the default logger instance.
func Get() *Logger {
	once.Do(func() {
		defaultLogger = &Logger{}
		defaultLogger.init()
	})
	return defaultLogger
}

func (l *Logger) init() {
	l.sugar = zap.NewNop().Sugar()

	debugEnv := os.Getenv("WIREFRAME_DEBUG")

	home, err := os.UserHomeDir()
	if err != nil {
		fmt.Fprintf(os.Stderr, "wireframe log: failed to get home dir: %v\n", err)
		return
	}

	_, markerErr := os.Stat(filepath.Join(home, ".wireframe", "debug"))
	if debugEnv != "1" && markerErr != nil {
		return
	}
	l.enabled = true

	logsDir := filepath.Join(home, ".wireframe", "logs")
	if err := os.MkdirAll(logsDir, 0755); err != nil {
		fmt.Fprintf(os.Stderr, "wireframe log: failed to create logs dir %s: %v\n", logsDir, err)
		return
	}

	logPath := filepath.Join(logsDir, fmt.Sprintf("wireframe-%s.log", time.Now().Format("2006-01-02_15-04-05")))
	file, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		fmt.Fprintf(os.Stderr, "wireframe log: failed to open log file %s: %v\n", logPath, err)
		return
	}

	enc := zap.NewDevelopmentEncoderConfig()
	enc.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05.000")
	fileCore := zapcore.NewCore(zapcore.NewConsoleEncoder(enc), zapcore.Lock(file), zapcore.DebugLevel)
	stderrCore := zapcore.NewCore(zapcore.NewConsoleEncoder(enc), zapcore.Lock(os.Stderr), zapcore.ErrorLevel)
	l.sugar = zap.New(zapcore.NewTee(fileCore, stderrCore)).Sugar()

	if debugEnv == "1" {
		l.sugar.Infof("Logging started (WIREFRAME_DEBUG=1)")
	} else {
		l.sugar.Infof("Logging started (~/.wireframe/debug exists)")
	}
	l.sugar.Infof("Log file: %s", logPath)
}

// Enabled returns whether debug logging is enabled.
func (l *Logger) Enabled() bool {
	return l.enabled
}

// Debug logs a debug message (file only).
func (l *Logger) Debug(format string, args ...any) {
	if !l.enabled {
		return
	}
	l.sugar.Debugf(format, args...)
}

// Info logs an info message (file only).
func (l *Logger) Info(format string, args ...any) {
	if !l.enabled {
		return
	}
	l.sugar.Infof(format, args...)
}

// Error logs an error message (file and stderr).
func (l *Logger) Error(format string, args ...any) {
	if !l.enabled {
		fmt.Fprintf(os.Stderr, "wireframe error: %s\n", fmt.Sprintf(format, args...))
		return
	}
	l.sugar.Errorf(format, args...)
}

// Request logs an incoming frontend request.
func (l *Logger) Request(action string, raw string) {
	if !l.enabled {
		return
	}
	l.sugar.Debugf("REQ [%s] %s", action, truncate(raw, 500))
}

// Response logs an outgoing response.
func (l *Logger) Response(msgType string, raw string) {
	if !l.enabled {
		return
	}
	l.sugar.Debugf("RESP [%s] %s", msgType, truncate(raw, 500))
}

// Stream logs a streaming event.
func (l *Logger) Stream(eventType string, content string) {
	if !l.enabled {
		return
	}
	l.sugar.Debugf("STREAM [%s] %s", eventType, truncate(content, 200))
}

// Close flushes any buffered log output.
func (l *Logger) Close() {
	_ = l.sugar.Sync()
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
