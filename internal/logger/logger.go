package logger

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"sync/atomic"
)

// Level is the minimum severity a Logger writes.
type Level int32

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "INFO"
	}
}

// ParseLevel maps a config value to a Level. Unknown values fall back to info.
func ParseLevel(s string) Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	default:
		return LevelInfo
	}
}

const backgroundID = "xxxxxxxx"

var (
	minLevel atomic.Int32
	output   = log.New(os.Stderr, "", log.LstdFlags)
)

func init() {
	minLevel.Store(int32(LevelInfo))
}

// SetLevel changes the global minimum level for every component logger.
func SetLevel(l Level) {
	minLevel.Store(int32(l))
}

// SetOutput redirects all component loggers to w.
func SetOutput(w io.Writer) {
	output.SetOutput(w)
}

// Logger provides structured logging across the application
type Logger struct {
	component string
}

// New creates a new logger for a specific component
func New(component string) *Logger {
	return &Logger{component: component}
}

// Component returns the component name the logger was created with.
func (l *Logger) Component() string {
	return l.component
}

// GenerateID creates a short unique identifier for request/operation tracing
func GenerateID() string {
	bytes := make([]byte, 4)
	if _, err := rand.Read(bytes); err != nil {
		return backgroundID
	}
	return hex.EncodeToString(bytes)
}

// Log writes a structured log message with fixed-width formatting
func (l *Logger) Log(id string, level Level, message string, args ...interface{}) {
	if level < Level(minLevel.Load()) {
		return
	}
	formattedMsg := message
	if len(args) > 0 {
		formattedMsg = fmt.Sprintf(message, args...)
	}
	output.Printf("[%s] [%-5s] [%-8s] %s", id, level, l.component, formattedMsg)
}

// Debug logs debug level messages
func (l *Logger) Debug(id, message string, args ...interface{}) {
	l.Log(id, LevelDebug, message, args...)
}

// Info logs info level messages
func (l *Logger) Info(id, message string, args ...interface{}) {
	l.Log(id, LevelInfo, message, args...)
}

// Warn logs warning level messages
func (l *Logger) Warn(id, message string, args ...interface{}) {
	l.Log(id, LevelWarn, message, args...)
}

// Error logs error level messages
func (l *Logger) Error(id, message string, args ...interface{}) {
	l.Log(id, LevelError, message, args...)
}

// DebugBg logs debug messages for background operations
func (l *Logger) DebugBg(message string, args ...interface{}) {
	l.Log(backgroundID, LevelDebug, message, args...)
}

// InfoBg logs info messages for background operations
func (l *Logger) InfoBg(message string, args ...interface{}) {
	l.Log(backgroundID, LevelInfo, message, args...)
}

// WarnBg logs warning messages for background operations
func (l *Logger) WarnBg(message string, args ...interface{}) {
	l.Log(backgroundID, LevelWarn, message, args...)
}

// ErrorBg logs error messages for background operations
func (l *Logger) ErrorBg(message string, args ...interface{}) {
	l.Log(backgroundID, LevelError, message, args...)
}
