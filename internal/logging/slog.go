package logging

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/Graylog2/go-gelf/gelf"
	"go.opentelemetry.io/contrib/bridges/otelslog"
	sdklog "go.opentelemetry.io/otel/sdk/log"
)

// InstrumentationName names the otelslog logger and the gelf facility.
const InstrumentationName = "mapscene"

// Options selects where records go. Console defaults to stdout; pass
// io.Discard to silence it.
type Options struct {
	Level    string
	Console  io.Writer
	File     io.Writer
	Graylog  io.Writer
	Provider *sdklog.LoggerProvider
	// Tags are attached to every record.
	Tags *Tags
}

// SlogManager manages slog-based logging with optional OTel integration.
type SlogManager struct {
	logger *slog.Logger
	level  slog.Level

	// OTel provider for flushing
	logProvider *sdklog.LoggerProvider
}

// NewSlogManager creates a new slog-based logging manager.
func NewSlogManager() *SlogManager {
	return &SlogManager{}
}

// parseLevel converts a string log level to slog.Level.
func parseLevel(level string) slog.Level {
	switch strings.ToUpper(level) {
	case "DEBUG":
		return slog.LevelDebug
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func utcTime(_ []string, a slog.Attr) slog.Attr {
	if a.Key == slog.TimeKey {
		if t, ok := a.Value.Any().(time.Time); ok {
			a.Value = slog.StringValue(t.UTC().Format(time.RFC3339))
		}
	}
	return a
}

// Setup (re)builds the logger. Text goes to the console and the session
// file, JSON goes to Graylog, and records are bridged to OTel when a
// provider is given.
func (m *SlogManager) Setup(opts Options) {
	m.level = parseLevel(opts.Level)
	m.logProvider = opts.Provider

	handlerOpts := &slog.HandlerOptions{Level: m.level, ReplaceAttr: utcTime}

	console := opts.Console
	if console == nil {
		console = os.Stdout
	}
	handlers := []slog.Handler{slog.NewTextHandler(console, handlerOpts)}
	if opts.File != nil {
		handlers = append(handlers, slog.NewTextHandler(opts.File, handlerOpts))
	}
	if opts.Graylog != nil {
		handlers = append(handlers, slog.NewJSONHandler(opts.Graylog, &slog.HandlerOptions{Level: m.level}))
	}
	if opts.Provider != nil {
		handlers = append(handlers, otelslog.NewHandler(InstrumentationName, otelslog.WithLoggerProvider(opts.Provider)))
	}

	var h slog.Handler = NewMultiHandler(handlers...)
	if opts.Tags != nil {
		h = NewContextHandler(h, opts.Tags)
	}
	m.logger = slog.New(h)
	m.logger.Info("Logging initialized", "level", m.level.String(), "handlers", len(handlers))
}

// Logger returns the configured slog.Logger, or slog.Default before Setup.
func (m *SlogManager) Logger() *slog.Logger {
	if m.logger == nil {
		return slog.Default()
	}
	return m.logger
}

// Level returns the parsed level from the last Setup.
func (m *SlogManager) Level() slog.Level {
	return m.level
}

// Flush forces a flush of OTel logs if available.
func (m *SlogManager) Flush(ctx context.Context) error {
	if m.logProvider != nil {
		return m.logProvider.ForceFlush(ctx)
	}
	return nil
}

// GraylogWriter sends each written log line as one GELF message over UDP.
type GraylogWriter struct {
	w *gelf.Writer
}

// NewGraylogWriter dials addr ("host:port").
func NewGraylogWriter(addr string) (*GraylogWriter, error) {
	if addr == "" {
		return nil, errors.New("graylog address is empty")
	}
	w, err := gelf.NewWriter(addr)
	if err != nil {
		return nil, fmt.Errorf("graylog writer: %w", err)
	}
	w.Facility = InstrumentationName
	return &GraylogWriter{w: w}, nil
}

func (g *GraylogWriter) Write(p []byte) (int, error) {
	return g.w.Write(p)
}

// Close releases the UDP socket.
func (g *GraylogWriter) Close() error {
	return g.w.Close()
}
