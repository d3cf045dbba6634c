// Testing helpers for structured logging.

package log

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
)

// TestLogger captures log messages in memory as JSON lines for later
// inspection. It is safe for concurrent use.
type TestLogger struct {
	mu     *sync.Mutex
	buffer *bytes.Buffer
	level  *Level
	fields map[string]interface{}
}

// NewTestLogger creates a new TestLogger with the specified minimum level.
//
// Example:
//
//	logger, buffer := log.NewTestLogger(log.LevelDebug)
//	logger.Info("test message", "key", "value")
//	output := buffer.String()
func NewTestLogger(level Level) (*TestLogger, *bytes.Buffer) {
	buffer := &bytes.Buffer{}
	return &TestLogger{
		mu:     &sync.Mutex{},
		buffer: buffer,
		level:  &level,
		fields: make(map[string]interface{}),
	}, buffer
}

// Debug implements Logger.Debug.
func (t *TestLogger) Debug(msg string, fields ...any) { t.log(LevelDebug, msg, fields) }

// Info implements Logger.Info.
func (t *TestLogger) Info(msg string, fields ...any) { t.log(LevelInfo, msg, fields) }

// Warn implements Logger.Warn.
func (t *TestLogger) Warn(msg string, fields ...any) { t.log(LevelWarn, msg, fields) }

// Error implements Logger.Error.
func (t *TestLogger) Error(msg string, fields ...any) { t.log(LevelError, msg, fields) }

// With implements Logger.With.
func (t *TestLogger) With(fields ...any) Logger {
	newFields := make(map[string]interface{}, len(t.fields))
	for k, v := range t.fields {
		newFields[k] = v
	}
	addFields(newFields, fields)

	return &TestLogger{
		mu:     t.mu,
		buffer: t.buffer,
		level:  t.level,
		fields: newFields,
	}
}

// Enabled implements Logger.Enabled.
func (t *TestLogger) Enabled(_ context.Context, level Level) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return *t.level <= level
}

func (t *TestLogger) log(level Level, msg string, fields []any) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if *t.level > level {
		return
	}

	entry := map[string]interface{}{
		"level":   level.String(),
		"message": msg,
	}
	for k, v := range t.fields {
		entry[k] = v
	}
	if len(fields) > 0 {
		if err, ok := fields[0].(error); ok {
			entry[ErrAttrKey] = err.Error()
			fields = fields[1:]
		}
	}
	addFields(entry, fields)

	jsonData, _ := json.Marshal(entry)
	t.buffer.Write(jsonData)
	t.buffer.WriteByte('\n')
}

func addFields(dst map[string]interface{}, fields []any) {
	for i := 0; i+1 < len(fields); i += 2 {
		key := fmt.Sprintf("%v", fields[i])
		if err, ok := fields[i+1].(error); ok {
			dst[key] = err.Error()
		} else {
			dst[key] = fields[i+1]
		}
	}
}

// GetLogEntries parses the captured output into one map per line.
func (t *TestLogger) GetLogEntries() ([]map[string]interface{}, error) {
	t.mu.Lock()
	raw := t.buffer.String()
	t.mu.Unlock()

	var entries []map[string]interface{}
	for _, line := range strings.Split(strings.TrimSpace(raw), "\n") {
		if line == "" {
			continue
		}
		var entry map[string]interface{}
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// ContainsMessage checks if the captured logs contain the given text.
func (t *TestLogger) ContainsMessage(message string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return strings.Contains(t.buffer.String(), message)
}

// ContainsField checks if any entry has key == value. Numbers decode as
// float64.
func (t *TestLogger) ContainsField(key string, value interface{}) bool {
	entries, err := t.GetLogEntries()
	if err != nil {
		return false
	}
	for _, entry := range entries {
		if fieldValue, exists := entry[key]; exists && fieldValue == value {
			return true
		}
	}
	return false
}

// TestLoggerProvider implements LoggerProvider for testing scenarios.
type TestLoggerProvider struct {
	logger *TestLogger
	buffer *bytes.Buffer
}

// NewTestLoggerProvider creates a new test logger provider.
func NewTestLoggerProvider(level Level) (*TestLoggerProvider, *bytes.Buffer) {
	logger, buffer := NewTestLogger(level)
	return &TestLoggerProvider{
		logger: logger,
		buffer: buffer,
	}, buffer
}

// GetLogger implements LoggerProvider.GetLogger.
func (p *TestLoggerProvider) GetLogger() Logger {
	return p.logger
}

// GetLoggerWithName implements LoggerProvider.GetLoggerWithName.
func (p *TestLoggerProvider) GetLoggerWithName(name string) Logger {
	return p.logger.With(ComponentKey, name)
}

// SetLevel implements LoggerProvider.SetLevel.
func (p *TestLoggerProvider) SetLevel(level Level) {
	p.logger.mu.Lock()
	*p.logger.level = level
	p.logger.mu.Unlock()
}

// Logger returns the root TestLogger for assertions.
func (p *TestLoggerProvider) Logger() *TestLogger {
	return p.logger
}
