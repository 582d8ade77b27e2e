package log

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"
)

// JSONFormatter formats log entries as JSON.
type JSONFormatter struct {
	TimestampFormat string
}

// Format formats the entry as JSON.
func (f *JSONFormatter) Format(entry *Entry) ([]byte, error) {
	timestampFormat := time.RFC3339
	if f.TimestampFormat != "" {
		timestampFormat = f.TimestampFormat
	}

	data := make(map[string]interface{}, len(entry.Fields)+3)
	data["timestamp"] = entry.Timestamp.Format(timestampFormat)
	data["level"] = entry.Level.String()
	data["message"] = entry.Message

	for k, v := range entry.Fields {
		if k != "timestamp" && k != "level" && k != "message" {
			data[k] = v
		}
	}

	b, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return append(b, '\n'), nil
}

// TextFormatter formats log entries as human-readable text.
type TextFormatter struct {
	TimestampFormat  string
	DisableColors    bool
	DisableTimestamp bool
}

// NewTextFormatter creates a TextFormatter with sensible defaults.
func NewTextFormatter() *TextFormatter {
	return &TextFormatter{
		TimestampFormat: "2006-01-02T15:04:05.000",
	}
}

// Format formats the entry as text.
func (f *TextFormatter) Format(entry *Entry) ([]byte, error) {
	var b strings.Builder

	if !f.DisableTimestamp {
		format := f.TimestampFormat
		if format == "" {
			format = "2006-01-02T15:04:05.000"
		}
		b.WriteString(entry.Timestamp.Format(format))
		b.WriteByte(' ')
	}

	level := entry.Level.String()
	if !f.DisableColors {
		level = colorizeLevel(entry.Level)
	}
	b.WriteString(fmt.Sprintf("%-5s ", level))

	b.WriteString(entry.Message)

	if len(entry.Fields) > 0 {
		keys := make([]string, 0, len(entry.Fields))
		for k := range entry.Fields {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		b.WriteString("  ")
		parts := make([]string, 0, len(keys))
		for _, k := range keys {
			if !f.DisableColors {
				parts = append(parts, fmt.Sprintf("%s%s%s=%v", colorCyan, k, colorReset, entry.Fields[k]))
			} else {
				parts = append(parts, fmt.Sprintf("%s=%v", k, entry.Fields[k]))
			}
		}
		b.WriteString(strings.Join(parts, " "))
	}

	b.WriteByte('\n')
	return []byte(b.String()), nil
}

const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorCyan   = "\033[36m"
	colorGray   = "\033[90m"
)

func colorizeLevel(level Level) string {
	switch level {
	case DebugLevel:
		return colorGray + level.String() + colorReset
	case InfoLevel:
		return colorGreen + level.String() + colorReset
	case WarnLevel:
		return colorYellow + level.String() + colorReset
	case ErrorLevel, FatalLevel:
		return colorRed + level.String() + colorReset
	default:
		return level.String()
	}
}
