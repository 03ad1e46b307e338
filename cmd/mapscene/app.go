package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/mapscene/animator/internal/config"
	"github.com/mapscene/animator/internal/logging"
	otelprovider "github.com/mapscene/animator/internal/otel"
)

// AppName names log files and the OTel service.
const AppName = "mapscene"

type rootOptions struct {
	configDir string
	logLevel  string
	logsDir   string
	noLogFile bool
}

// app holds the process-wide logging and telemetry state of one command.
type app struct {
	start    time.Time
	slog     *logging.SlogManager
	logger   *slog.Logger
	dbLogger zerolog.Logger
	tags     *logging.Tags
	otel     *otelprovider.Provider
	closers  []io.Closer
}

// newApp loads configuration and sets up logging for cmd.
func newApp(cmd *cobra.Command, opts *rootOptions) (*app, error) {
	config.SetDefaults()
	if opts.configDir != "" {
		if err := config.Load(opts.configDir); err != nil {
			return nil, err
		}
	}
	if opts.logLevel != "" {
		viper.Set("logLevel", opts.logLevel)
	}
	if opts.logsDir != "" {
		viper.Set("logsDir", opts.logsDir)
	}

	a := &app{
		start: time.Now(),
		slog:  logging.NewSlogManager(),
		tags:  &logging.Tags{},
	}
	logsDir := config.GetString("logsDir")

	var file io.Writer
	if !opts.noLogFile {
		f, err := logging.OpenLogFile(logsDir, AppName, a.start)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, f)
		file = f
	}

	var graylog io.Writer
	if gl := config.GetGraylogConfig(); gl.Enabled {
		w, err := logging.NewGraylogWriter(gl.Address)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("graylog: %w", err)
		}
		a.closers = append(a.closers, w)
		graylog = w
	}

	otelCfg := config.GetOTelConfig()
	var otelWriter io.Writer
	if otelCfg.Enabled && !opts.noLogFile {
		f, err := logging.OpenLogFile(logsDir, AppName+".otel", a.start)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.closers = append(a.closers, f)
		otelWriter = f
	}
	provider, err := otelprovider.New(cmd.Context(), otelCfg, otelWriter)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.otel = provider

	a.slog.Setup(logging.Options{
		Level:    config.GetString("logLevel"),
		Console:  cmd.ErrOrStderr(),
		File:     file,
		Graylog:  graylog,
		Provider: provider.LoggerProvider(),
		Tags:     a.tags,
	})
	a.logger = a.slog.Logger()

	dbOut := io.Writer(cmd.ErrOrStderr())
	if file != nil {
		dbOut = file
	}
	a.dbLogger = logging.NewZerolog(dbOut, a.slog.Level())
	return a, nil
}

// Close flushes telemetry and closes log outputs in reverse order.
func (a *app) Close() error {
	var errs []error
	if a.otel != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		errs = append(errs, a.otel.Shutdown(ctx))
		cancel()
		a.otel = nil
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i].Close())
	}
	a.closers = nil
	return errors.Join(errs...)
}
