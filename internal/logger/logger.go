// Package logger provides leveled logging with support for debug, info, warn, and error levels.
// It wraps the standard log package to provide level-based filtering and formatted output.
package logger

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"strings"
	"time"
)

// Level represents a logging level
type Level int

const (
	// DebugLevel logs are typically voluminous, and are usually disabled in production.
	DebugLevel Level = iota
	// InfoLevel is the default logging priority.
	InfoLevel
	// WarnLevel logs are more important than Info, but don't need individual human review.
	WarnLevel
	// ErrorLevel logs are high-priority. If an application is running smoothly, it shouldn't generate any error-level logs.
	ErrorLevel
)

var levelNames = map[Level]string{
	DebugLevel: "DEBUG",
	InfoLevel:  "INFO",
	WarnLevel:  "WARN",
	ErrorLevel: "ERROR",
}

// Logger provides leveled logging
type Logger struct {
	level  Level
	json   bool
	logger *log.Logger
}

var (
	// Global logger instance
	defaultLogger *Logger
)

func parseLevel(level string) Level {
	switch strings.ToLower(level) {
	case "debug":
		return DebugLevel
	case "warn":
		return WarnLevel
	case "error":
		return ErrorLevel
	default:
		return InfoLevel
	}
}

// Init initializes the default logger with the specified level and format
func Init(level string, format string) {
	jsonMode := strings.ToLower(format) == "json"

	flags := log.LstdFlags | log.Lmicroseconds
	if jsonMode {
		// Timestamps live inside the JSON record
		flags = 0
	}

	defaultLogger = &Logger{
		level:  parseLevel(level),
		json:   jsonMode,
		logger: log.New(os.Stderr, "", flags),
	}
}

func output(level Level, format string, args ...interface{}) {
	if defaultLogger == nil || defaultLogger.level > level {
		return
	}
	msg := fmt.Sprintf(format, args...)
	if defaultLogger.json {
		record, _ := json.Marshal(map[string]string{
			"ts":    time.Now().UTC().Format(time.RFC3339Nano),
			"level": levelNames[level],
			"msg":   msg,
		})
		_ = defaultLogger.logger.Output(3, string(record))
		return
	}
	_ = defaultLogger.logger.Output(3, "["+levelNames[level]+"] "+msg)
}

// Debug logs a message at DebugLevel
func Debug(format string, args ...interface{}) {
	output(DebugLevel, format, args...)
}

// Info logs a message at InfoLevel
func Info(format string, args ...interface{}) {
	output(InfoLevel, format, args...)
}

// Warn logs a message at WarnLevel
func Warn(format string, args ...interface{}) {
	output(WarnLevel, format, args...)
}

// Error logs a message at ErrorLevel
func Error(format string, args ...interface{}) {
	output(ErrorLevel, format, args...)
}

// Fatal logs a message at ErrorLevel and exits
func Fatal(format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	if defaultLogger != nil {
		_ = defaultLogger.logger.Output(2, "[FATAL] "+msg)
	} else {
		log.Print("[FATAL] " + msg)
	}
	os.Exit(1)
}
