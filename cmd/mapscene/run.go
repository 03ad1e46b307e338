package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/mapscene/animator/internal/assets"
	"github.com/mapscene/animator/internal/config"
	"github.com/mapscene/animator/internal/cycle"
	"github.com/mapscene/animator/internal/dispatcher"
	"github.com/mapscene/animator/internal/handlers"
	"github.com/mapscene/animator/internal/influx"
	"github.com/mapscene/animator/internal/logging"
	"github.com/mapscene/animator/internal/loop"
	"github.com/mapscene/animator/internal/monitor"
	"github.com/mapscene/animator/internal/retry"
	"github.com/mapscene/animator/internal/session"
	"github.com/mapscene/animator/internal/storage"
	"github.com/mapscene/animator/pkg/core"
)

type cameraFlags struct {
	lng, lat, zoom, pitch, bearing float64
}

func (f *cameraFlags) register(cmd *cobra.Command) {
	cmd.Flags().Float64Var(&f.lng, "lng", 13.405, "initial camera longitude")
	cmd.Flags().Float64Var(&f.lat, "lat", 52.52, "initial camera latitude")
	cmd.Flags().Float64Var(&f.zoom, "zoom", 14, "initial camera zoom")
	cmd.Flags().Float64Var(&f.pitch, "pitch", 0, "initial camera pitch")
	cmd.Flags().Float64Var(&f.bearing, "bearing", 0, "initial camera bearing")
}

func (f cameraFlags) camera() core.CameraState {
	return core.CameraState{
		Center:  core.GeodeticPoint{Lng: f.lng, Lat: f.lat},
		Zoom:    f.zoom,
		Pitch:   f.pitch,
		Bearing: f.bearing,
	}
}

type runFlags struct {
	virtual     bool
	snapshotDir string
	keepGoing   bool
	camera      cameraFlags
}

func newRunCmd(opts *rootOptions) *cobra.Command {
	flags := &runFlags{}
	cmd := &cobra.Command{
		Use:   "run <script>",
		Short: "Execute a command script against a simulated map host",
		Long: `Execute a command script against a simulated map host.

Each line is a dispatcher command such as ":PLAY: 1", or one of the
directives "wait <duration>" and "snapshot <file.png>". With --virtual the
script drives a virtual clock, so waits return immediately and output is
deterministic.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(a *app) error {
				f, err := os.Open(args[0])
				if err != nil {
					return err
				}
				defer f.Close()
				steps, err := ParseScript(f)
				if err != nil {
					return fmt.Errorf("%s: %w", args[0], err)
				}
				return runScript(cmd.Context(), a, steps, *flags, cmd.OutOrStdout())
			})
		},
	}
	cmd.Flags().BoolVar(&flags.virtual, "virtual", false, "run on a virtual clock")
	cmd.Flags().StringVar(&flags.snapshotDir, "snapshot-dir", "", "directory for relative snapshot paths")
	cmd.Flags().BoolVar(&flags.keepGoing, "keep-going", false, "continue after a failing command")
	flags.camera.register(cmd)
	return cmd
}

func retryPolicy(c config.RetryConfig) retry.Policy {
	return retry.Policy{
		MaxAttempts:  c.MaxAttempts,
		InitialDelay: c.InitialDelay,
		MaxDelay:     c.MaxDelay,
		Multiplier:   c.Multiplier,
	}
}

// assetLoader returns a cached HTTP loader, or nil when no asset server is set.
func assetLoader() assets.Loader {
	base := config.GetString("api.serverUrl")
	if base == "" {
		return nil
	}
	return assets.NewCache(assets.NewHTTPLoader(base, config.GetString("api.apiKey"), config.GetDuration("api.timeout")))
}

func sessionOptions(a *app, camera core.CameraState) session.Options {
	return session.Options{
		Engine: config.GetEngineConfig(),
		Retry:  retryPolicy(config.GetRetryConfig()),
		Camera: camera,
		Loader: assetLoader(),
		Logger: a.logger,
	}
}

// runScript wires storage, the session, the dispatcher and, on the real
// loop, the monitor and palette watcher, then executes steps.
func runScript(ctx context.Context, a *app, steps []Step, flags runFlags, out io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if flags.snapshotDir != "" {
		if err := os.MkdirAll(flags.snapshotDir, 0o755); err != nil {
			return err
		}
	}

	store, err := openStore(a, "")
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			a.logger.Error("Error closing storage", "error", err)
		}
	}()
	publisher, _ := store.(storage.Publisher)

	opts := sessionOptions(a, flags.camera.camera())

	var (
		runner dispatcher.Runner
		s      *session.Session
		wait   func(time.Duration)
	)
	if flags.virtual {
		clock := loop.NewManual(time.Now())
		if s, err = session.New(clock, opts); err != nil {
			return err
		}
		clock.Advance(0)
		runner, wait = clock, clock.Advance
	} else {
		l := loop.New(0)
		go l.Run(ctx)
		defer l.Close()
		var newErr error
		if err := l.Do(ctx, func() { s, newErr = session.New(l, opts) }); err != nil {
			return err
		}
		if newErr != nil {
			return newErr
		}
		runner = l
		wait = func(d time.Duration) {
			select {
			case <-ctx.Done():
			case <-time.After(d):
			}
		}
	}
	defer func() {
		_ = runner.Do(context.Background(), func() {
			if err := s.Close(); err != nil {
				a.logger.Warn("Error closing session", "error", err)
			}
		})
	}()

	d, err := dispatcher.New(logging.NewDispatcherLogger(a.dbLogger))
	if err != nil {
		return err
	}
	if err := runner.Do(ctx, func() {
		svc := handlers.NewService(handlers.Dependencies{
			Session:   s,
			Store:     store,
			Publisher: publisher,
			Logger:    a.logger.With("component", "handlers"),
		})
		svc.RegisterHandlers(d, runner)
	}); err != nil {
		return err
	}

	if !flags.virtual {
		stop, err := startBackground(ctx, a, s, runner, store)
		if err != nil {
			return err
		}
		defer stop()
	}

	r := &scriptRunner{
		d:           d,
		runner:      runner,
		session:     s,
		wait:        wait,
		out:         out,
		snapshotDir: flags.snapshotDir,
		keepGoing:   flags.keepGoing,
	}
	return r.Run(ctx, steps)
}

// startBackground starts the palette watcher, InfluxDB writer and status
// monitor for a real-time run. The returned func stops them.
func startBackground(ctx context.Context, a *app, s *session.Session, runner dispatcher.Runner, store storage.Backend) (func(), error) {
	eng := config.GetEngineConfig()
	sched := s.Sched

	if eng.PalettesFile != "" {
		err := cycle.Watch(ctx, eng.PalettesFile, sched, a.logger, func(lib *cycle.Library) {
			if err := s.Sky.SetLibrary(lib, eng.CycleTable); err != nil {
				a.logger.Warn("Palette reload rejected", "error", err)
				return
			}
			a.logger.Info("Palettes reloaded", "path", eng.PalettesFile)
		})
		if err != nil {
			a.logger.Warn("Palette watcher not started", "error", err)
		}
	}

	var im *influx.Manager
	if influxCfg := config.GetInfluxConfig(); influxCfg.Enabled {
		im = influx.NewManager(influxCfg, a.dbLogger)
		connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		err := im.Connect(connectCtx)
		cancel()
		if err != nil {
			a.logger.Error("InfluxDB not available", "error", err)
			im = nil
		}
	}

	monCfg := config.GetMonitorConfig()
	recorder, _ := store.(storage.Recorder)
	publisher, _ := store.(storage.Publisher)
	mon := monitor.NewService(monitor.Dependencies{
		Session:    s,
		Runner:     runner,
		Interval:   monCfg.Interval,
		StatusFile: monCfg.StatusFile,
		Recorder:   recorder,
		Publisher:  publisher,
		Influx:     im,
		Tags:       a.tags,
		Logger:     a.logger,
	})
	closeInflux := func() {
		if im == nil {
			return
		}
		if err := im.Close(); err != nil {
			a.logger.Error("Error closing InfluxDB writer", "error", err)
		}
	}
	if err := runner.Do(ctx, mon.ObserveFrames); err != nil {
		closeInflux()
		return nil, err
	}
	if err := mon.Start(ctx); err != nil {
		closeInflux()
		return nil, err
	}

	return func() {
		mon.Stop()
		closeInflux()
	}, nil
}
