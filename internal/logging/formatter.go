package logging

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// SourceLocation captures the source code location of a log call
type SourceLocation struct {
	File     string
	Line     int
	Function string
}

// LogEntry represents a structured log entry
type LogEntry struct {
	Timestamp time.Time
	Level     Level
	Component string
	Source    SourceLocation
	Message   string
	Context   map[string]interface{}
}

// redactedValue replaces the value of any context field that may hold a credential
const redactedValue = "[REDACTED]"

// sensitiveKeys are matched as substrings of lower-cased context keys
var sensitiveKeys = []string{"password", "token", "secret", "hash", "authorization", "cookie"}

// LogFormatter formats log entries into strings
type LogFormatter struct{}

// NewLogFormatter creates a new log formatter
func NewLogFormatter() *LogFormatter {
	return &LogFormatter{}
}

// Format formats a log entry into a string
// Output format: [YYYY-MM-DD HH:MM:SS] LEVEL [component] file.go:line function message key=value
func (f *LogFormatter) Format(entry LogEntry) string {
	var sb strings.Builder

	sb.WriteString("[")
	sb.WriteString(entry.Timestamp.Format("2006-01-02 15:04:05"))
	sb.WriteString("] ")

	sb.WriteString(entry.Level.String())
	sb.WriteString(" ")

	sb.WriteString("[")
	sb.WriteString(entry.Component)
	sb.WriteString("] ")

	sb.WriteString(entry.Source.File)
	sb.WriteString(":")
	sb.WriteString(fmt.Sprintf("%d", entry.Source.Line))
	sb.WriteString(" ")
	sb.WriteString(entry.Source.Function)
	sb.WriteString(" ")

	sb.WriteString(sanitizeMessage(entry.Message))

	// Context fields as key=value pairs, sorted for stable output
	if len(entry.Context) > 0 {
		keys := make([]string, 0, len(entry.Context))
		for key := range entry.Context {
			keys = append(keys, key)
		}
		sort.Strings(keys)

		for _, key := range keys {
			value := fmt.Sprintf("%v", entry.Context[key])
			if isSensitiveKey(key) {
				value = redactedValue
			}
			sb.WriteString(" ")
			sb.WriteString(key)
			sb.WriteString("=")
			sb.WriteString(sanitizeMessage(value))
		}
	}

	sb.WriteString("\n")
	return sb.String()
}

// isSensitiveKey reports whether a context key names a credential
func isSensitiveKey(key string) bool {
	lower := strings.ToLower(key)
	for _, s := range sensitiveKeys {
		if strings.Contains(lower, s) {
			return true
		}
	}
	return false
}

// sanitizeMessage removes control characters except \t to prevent log injection
func sanitizeMessage(msg string) string {
	var sb strings.Builder
	for _, r := range msg {
		if r == '\t' {
			sb.WriteRune(r)
		} else if r < 0x20 || r == 0x7f {
			sb.WriteRune(' ')
		} else {
			sb.WriteRune(r)
		}
	}
	return sb.String()
}
