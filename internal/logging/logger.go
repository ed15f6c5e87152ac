package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"
)

// Level represents log severity
type Level int

const (
	DEBUG Level = iota
	INFO
	WARN
	ERROR
)

func (l Level) String() string {
	switch l {
	case DEBUG:
		return "DEBUG"
	case INFO:
		return "INFO"
	case WARN:
		return "WARN"
	case ERROR:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// Logger provides structured logging for one component
type Logger struct {
	level     Level
	component string
	output    io.Writer
	mu        *sync.Mutex
	context   map[string]interface{}
	formatter *LogFormatter
}

// NewLogger creates a logger for a component
func NewLogger(component string, level Level, output io.Writer) *Logger {
	if output == nil {
		output = os.Stdout
	}
	return &Logger{
		level:     level,
		component: component,
		output:    output,
		mu:        &sync.Mutex{},
		formatter: NewLogFormatter(),
	}
}

// Nop returns a logger that discards everything
func Nop() *Logger {
	return NewLogger("nop", ERROR+1, io.Discard)
}

// Named returns a logger for another component sharing this logger's output and level
func (l *Logger) Named(component string) *Logger {
	return &Logger{
		level:     l.level,
		component: component,
		output:    l.output,
		mu:        l.mu,
		context:   l.context,
		formatter: l.formatter,
	}
}

// Debug logs a debug message
func (l *Logger) Debug(format string, args ...interface{}) {
	l.log(DEBUG, format, args...)
}

// Info logs an info message
func (l *Logger) Info(format string, args ...interface{}) {
	l.log(INFO, format, args...)
}

// Warn logs a warning message
func (l *Logger) Warn(format string, args ...interface{}) {
	l.log(WARN, format, args...)
}

// Error logs an error message
func (l *Logger) Error(format string, args ...interface{}) {
	l.log(ERROR, format, args...)
}

// WithContext returns a new Logger with an added context field
func (l *Logger) WithContext(key string, value interface{}) *Logger {
	return l.WithFields(map[string]interface{}{key: value})
}

// WithFields returns a new Logger with multiple context fields
func (l *Logger) WithFields(fields map[string]interface{}) *Logger {
	newContext := make(map[string]interface{}, len(l.context)+len(fields))
	for k, v := range l.context {
		newContext[k] = v
	}
	for k, v := range fields {
		newContext[k] = v
	}

	return &Logger{
		level:     l.level,
		component: l.component,
		output:    l.output,
		mu:        l.mu,
		context:   newContext,
		formatter: l.formatter,
	}
}

// log writes a log entry
func (l *Logger) log(level Level, format string, args ...interface{}) {
	if level < l.level {
		return
	}

	// Skip 2 frames: log() and the calling method (Debug/Info/Warn/Error)
	pc, file, line, ok := runtime.Caller(2)
	funcName := "unknown"
	if ok {
		file = filepath.Base(file)
		if fn := runtime.FuncForPC(pc); fn != nil {
			funcName = filepath.Base(fn.Name())
		}
	} else {
		file = "unknown"
		line = 0
	}

	entry := LogEntry{
		Timestamp: time.Now(),
		Level:     level,
		Component: l.component,
		Source: SourceLocation{
			File:     file,
			Line:     line,
			Function: funcName,
		},
		Message: fmt.Sprintf(format, args...),
		Context: l.context,
	}

	formatted := l.formatter.Format(entry)

	l.mu.Lock()
	defer l.mu.Unlock()
	l.output.Write([]byte(formatted))
}

// ParseLevel converts a string to a Level
func ParseLevel(s string) Level {
	switch strings.ToLower(s) {
	case "debug":
		return DEBUG
	case "info":
		return INFO
	case "warn":
		return WARN
	case "error":
		return ERROR
	default:
		return INFO
	}
}
