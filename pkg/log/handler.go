package log

import (
	"context"
	"fmt"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"
)

const (
	ErrAttrKey = "error"
)

// zerologLogger adapts a zerolog.Logger to the Logger interface.
type zerologLogger struct {
	zl zerolog.Logger
}

func newZerologLogger(zl zerolog.Logger) *zerologLogger {
	return &zerologLogger{zl: zl}
}

func (l *zerologLogger) Debug(msg string, fields ...any) { emit(l.zl.Debug(), msg, fields) }

func (l *zerologLogger) Info(msg string, fields ...any) { emit(l.zl.Info(), msg, fields) }

func (l *zerologLogger) Warn(msg string, fields ...any) { emit(l.zl.Warn(), msg, fields) }

func (l *zerologLogger) Error(msg string, fields ...any) { emit(l.zl.Error(), msg, fields) }

func (l *zerologLogger) With(fields ...any) Logger {
	ctx := l.zl.With()
	for i := 0; i+1 < len(fields); i += 2 {
		key := fmt.Sprint(fields[i])
		switch v := fields[i+1].(type) {
		case error:
			ctx = ctx.Str(key, v.Error())
		case zerolog.LogObjectMarshaler:
			ctx = ctx.Object(key, v)
		default:
			ctx = ctx.Interface(key, v)
		}
	}
	return &zerologLogger{zl: ctx.Logger()}
}

func (l *zerologLogger) Enabled(_ context.Context, level Level) bool {
	zlevel := toZerologLevel(level)
	return zlevel >= l.zl.GetLevel() && zlevel >= zerolog.GlobalLevel()
}

// emit writes one event. A leading error field is logged under ErrAttrKey
// together with its stack trace.
func emit(ev *zerolog.Event, msg string, fields []any) {
	if ev == nil {
		return
	}
	if len(fields) > 0 {
		if err, ok := fields[0].(error); ok {
			addError(ev, ErrAttrKey, err)
			fields = fields[1:]
		}
	}
	for i := 0; i+1 < len(fields); i += 2 {
		key := fmt.Sprint(fields[i])
		switch v := fields[i+1].(type) {
		case error:
			addError(ev, key, v)
		case zerolog.LogObjectMarshaler:
			ev.Object(key, v)
		default:
			ev.Interface(key, v)
		}
	}
	ev.Msg(msg)
}

func addError(ev *zerolog.Event, key string, err error) {
	ev.Str(key, err.Error())
	var structured zerolog.LogObjectMarshaler
	if errors.As(err, &structured) {
		ev.Object(key+".detail", structured)
	}
	if st := extractStacktrace(err); st != "" {
		ev.Str(StacktraceKey, st)
	}
}

func extractStacktrace(err error) string {
	safeDetails := errors.GetSafeDetails(err).SafeDetails
	if len(safeDetails) > 0 {
		return safeDetails[0]
	}
	return ""
}

func toZerologLevel(level Level) zerolog.Level {
	switch {
	case level <= LevelDebug:
		return zerolog.DebugLevel
	case level <= LevelInfo:
		return zerolog.InfoLevel
	case level <= LevelWarn:
		return zerolog.WarnLevel
	default:
		return zerolog.ErrorLevel
	}
}
