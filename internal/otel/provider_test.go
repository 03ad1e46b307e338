package otel

import (
	"bytes"
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/contrib/bridges/otelslog"

	"github.com/mapscene/animator/internal/config"
)

func TestNew_Disabled(t *testing.T) {
	p, err := New(context.Background(), config.OTelConfig{}, nil)
	require.NoError(t, err)

	assert.Nil(t, p.LoggerProvider())
	assert.NoError(t, p.Flush(context.Background()))
	assert.NoError(t, p.Shutdown(context.Background()))
}

func TestNew_NoExporter(t *testing.T) {
	_, err := New(context.Background(), config.OTelConfig{Enabled: true, ServiceName: "mapscene"}, nil)
	assert.ErrorIs(t, err, ErrNoExporter)
}

func TestNew_WriterExport(t *testing.T) {
	var buf bytes.Buffer
	cfg := config.OTelConfig{Enabled: true, ServiceName: "mapscene-test", BatchTimeout: time.Second}
	p, err := New(context.Background(), cfg, &buf)
	require.NoError(t, err)
	require.NotNil(t, p.LoggerProvider())

	logger := slog.New(otelslog.NewHandler("test", otelslog.WithLoggerProvider(p.LoggerProvider())))
	logger.Info("scene saved", "scene", "s-1")

	require.NoError(t, p.Flush(context.Background()))
	assert.Contains(t, buf.String(), "scene saved")
	assert.Contains(t, buf.String(), "mapscene-test")
	require.NoError(t, p.Shutdown(context.Background()))
}

func TestNew_Endpoint(t *testing.T) {
	cfg := config.OTelConfig{Enabled: true, ServiceName: "mapscene", Endpoint: "127.0.0.1:4318", Insecure: true}
	p, err := New(context.Background(), cfg, nil)
	require.NoError(t, err)
	assert.NotNil(t, p.LoggerProvider())

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	_ = p.Shutdown(ctx)
}
