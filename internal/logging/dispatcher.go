package logging

import (
	"io"
	"log/slog"

	"github.com/rs/zerolog"
)

// NewZerolog builds the zerolog logger used by the dispatcher and the
// database and influx helpers, at the same level as the slog setup.
func NewZerolog(w io.Writer, level slog.Level) zerolog.Logger {
	zl := zerolog.InfoLevel
	switch {
	case level <= slog.LevelDebug:
		zl = zerolog.DebugLevel
	case level >= slog.LevelError:
		zl = zerolog.ErrorLevel
	case level >= slog.LevelWarn:
		zl = zerolog.WarnLevel
	}
	return zerolog.New(w).Level(zl).With().Timestamp().Logger()
}

// DispatcherLogger adapts zerolog.Logger to the dispatcher.Logger interface.
type DispatcherLogger struct {
	logger zerolog.Logger
}

// NewDispatcherLogger creates a new DispatcherLogger wrapping a zerolog.Logger.
func NewDispatcherLogger(logger zerolog.Logger) *DispatcherLogger {
	return &DispatcherLogger{logger: logger.With().Str("component", "dispatcher").Logger()}
}

func (l *DispatcherLogger) Debug(msg string, keysAndValues ...any) {
	l.logger.Debug().Fields(toFields(keysAndValues)).Msg(msg)
}

func (l *DispatcherLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Info().Fields(toFields(keysAndValues)).Msg(msg)
}

func (l *DispatcherLogger) Error(msg string, keysAndValues ...any) {
	l.logger.Error().Fields(toFields(keysAndValues)).Msg(msg)
}

// toFields converts key-value pairs to a map for zerolog. A trailing key
// without a value is dropped.
func toFields(keysAndValues []any) map[string]any {
	fields := make(map[string]any, len(keysAndValues)/2)
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		if key, ok := keysAndValues[i].(string); ok {
			fields[key] = keysAndValues[i+1]
		}
	}
	return fields
}
