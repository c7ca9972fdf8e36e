package logger

import (
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"sync"
)

// Level is the severity of a log message.
type Level int

const (
	DEBUG Level = iota
	INFO
	WARN
	ERROR
	SILENT
)

var (
	levelNames = map[Level]string{
		DEBUG:  "DEBUG",
		INFO:   "INFO",
		WARN:   "WARN",
		ERROR:  "ERROR",
		SILENT: "SILENT",
	}

	levelColors = map[Level]string{
		DEBUG: "\033[36m",
		INFO:  "\033[32m",
		WARN:  "\033[33m",
		ERROR: "\033[31m",
	}
)

const resetColor = "\033[0m"

// Logger writes leveled messages tagged with a module name, e.g.
//
//	2026/10/18 14:03:11.120456 [INFO] [Pipeline] loop started (feature=object_detection)
type Logger struct {
	mu       sync.Mutex
	level    Level
	useColor bool
	out      *log.Logger
}

var (
	defaultMu     sync.RWMutex
	defaultLogger = New(INFO, os.Stderr, false)
)

// New creates a Logger. A nil output writes to stderr; stdout is left to
// command output and the MCP transport.
func New(level Level, output io.Writer, useColor bool) *Logger {
	if output == nil {
		output = os.Stderr
	}
	return &Logger{
		level:    level,
		useColor: useColor,
		out:      log.New(output, "", log.Ldate|log.Ltime|log.Lmicroseconds),
	}
}

// Init replaces the package-level logger. Call once at startup.
func Init(level Level, output io.Writer, useColor bool) {
	defaultMu.Lock()
	defaultLogger = New(level, output, useColor)
	defaultMu.Unlock()
}

// Default returns the package-level logger.
func Default() *Logger {
	defaultMu.RLock()
	defer defaultMu.RUnlock()
	return defaultLogger
}

func (l *Logger) SetLevel(level Level) {
	l.mu.Lock()
	l.level = level
	l.mu.Unlock()
}

func (l *Logger) Level() Level {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.level
}

func (l *Logger) logf(level Level, module, format string, args ...interface{}) {
	l.mu.Lock()
	current, useColor := l.level, l.useColor
	l.mu.Unlock()

	if level < current || level >= SILENT {
		return
	}

	prefix := "[" + levelNames[level] + "]"
	if useColor {
		prefix = levelColors[level] + prefix + resetColor
	}
	if module != "" {
		prefix += " [" + module + "]"
	}
	l.out.Printf("%s %s", prefix, fmt.Sprintf(format, args...))
}

func (l *Logger) Debug(module, format string, args ...interface{}) {
	l.logf(DEBUG, module, format, args...)
}

func (l *Logger) Info(module, format string, args ...interface{}) {
	l.logf(INFO, module, format, args...)
}

func (l *Logger) Warn(module, format string, args ...interface{}) {
	l.logf(WARN, module, format, args...)
}

func (l *Logger) Error(module, format string, args ...interface{}) {
	l.logf(ERROR, module, format, args...)
}

// Debug logs through the package-level logger.
func Debug(module, format string, args ...interface{}) {
	Default().Debug(module, format, args...)
}

// Info logs through the package-level logger.
func Info(module, format string, args ...interface{}) {
	Default().Info(module, format, args...)
}

// Warn logs through the package-level logger.
func Warn(module, format string, args ...interface{}) {
	Default().Warn(module, format, args...)
}

// Error logs through the package-level logger.
func Error(module, format string, args ...interface{}) {
	Default().Error(module, format, args...)
}

// ParseLevel accepts the level names case-insensitively, plus "warning" and "none".
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return DEBUG, nil
	case "info", "":
		return INFO, nil
	case "warn", "warning":
		return WARN, nil
	case "error":
		return ERROR, nil
	case "silent", "none":
		return SILENT, nil
	default:
		return INFO, fmt.Errorf("invalid log level: %s", s)
	}
}

func (l Level) String() string {
	if name, ok := levelNames[l]; ok {
		return name
	}
	return "UNKNOWN"
}
