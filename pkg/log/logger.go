package log

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	mberrors "github.com/YuminosukeSato/modelbench/pkg/errors"
	"github.com/rs/zerolog"
)

// Config controls the process-wide logger built by Setup.
type Config struct {
	Level  string    // "debug", "info", "warn", "error"
	Format string    // "console" or "json"
	Output io.Writer // defaults to os.Stderr
}

// zerologProvider is the default LoggerProvider.
type zerologProvider struct {
	mu   sync.RWMutex
	base zerolog.Logger
}

func (p *zerologProvider) GetLogger() Logger {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return newZerologLogger(p.base)
}

func (p *zerologProvider) GetLoggerWithName(name string) Logger {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return newZerologLogger(p.base.With().Str(ComponentKey, name).Logger())
}

func (p *zerologProvider) SetLevel(level Level) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.base = p.base.Level(toZerologLevel(level))
}

var (
	providerMu sync.RWMutex
	provider   LoggerProvider = newDefaultProvider()
)

func newDefaultProvider() *zerologProvider {
	return &zerologProvider{
		base: zerolog.New(os.Stderr).With().Timestamp().Logger().Level(zerolog.InfoLevel),
	}
}

// Setup builds the process-wide zerolog logger and routes library warnings
// (errors.Warn) into it.
func Setup(cfg Config) error {
	level, err := ToLogLevel(cfg.Level)
	if err != nil {
		return err
	}

	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}

	switch strings.ToLower(cfg.Format) {
	case "", "console":
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	case "json":
	default:
		return mberrors.NewValidationError("log.format", "must be console or json", cfg.Format)
	}

	base := zerolog.New(out).With().Timestamp().Logger().Level(toZerologLevel(level))
	SetProvider(&zerologProvider{base: base})
	return nil
}

// SetProvider replaces the process-wide provider. Tests use it with a
// TestLoggerProvider.
func SetProvider(p LoggerProvider) {
	providerMu.Lock()
	provider = p
	providerMu.Unlock()

	warnLogger := p.GetLoggerWithName("warnings")
	mberrors.SetZerologWarnFunc(func(w error) {
		warnLogger.Warn(w.Error(), "warning", w, ErrorTypeKey, fmt.Sprintf("%T", w))
	})
}

// GetLogger returns a logger from the current provider.
func GetLogger() Logger {
	providerMu.RLock()
	defer providerMu.RUnlock()
	return provider.GetLogger()
}

// GetLoggerWithName returns a component logger from the current provider.
func GetLoggerWithName(name string) Logger {
	providerMu.RLock()
	defer providerMu.RUnlock()
	return provider.GetLoggerWithName(name)
}

// ToLogLevel parses a level name.
func ToLogLevel(level string) (Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return LevelDebug, nil
	case "", "info":
		return LevelInfo, nil
	case "warn", "warning":
		return LevelWarn, nil
	case "error":
		return LevelError, nil
	default:
		return LevelInfo, mberrors.NewValidationError("log.level", "unknown log level", level)
	}
}
