package main

import (
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/mapscene/animator/internal/config"
	"github.com/mapscene/animator/internal/cycle"
	"github.com/mapscene/animator/internal/loop"
	"github.com/mapscene/animator/internal/scene"
	"github.com/mapscene/animator/internal/session"
	"github.com/mapscene/animator/pkg/core"
)

func newSampleCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sample",
		Short: "Sample scenes and sky cycles offline on a virtual clock",
	}
	cmd.AddCommand(newSampleSceneCmd(opts), newSampleSkyCmd(opts))
	return cmd
}

type sampleSceneFlags struct {
	db     string
	step   float64
	outDir string
	camera cameraFlags
}

func newSampleSceneCmd(opts *rootOptions) *cobra.Command {
	flags := &sampleSceneFlags{}
	cmd := &cobra.Command{
		Use:   "scene <id>",
		Short: "Print the camera at fixed steps through a stored scene",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(a *app) error {
				store, err := openStore(a, flags.db)
				if err != nil {
					return err
				}
				defer store.Close()
				sc, err := store.LoadScene(args[0])
				if err != nil {
					return err
				}
				return sampleScene(a, sc, *flags, cmd.OutOrStdout())
			})
		},
	}
	cmd.Flags().StringVar(&flags.db, "db", "", "read scenes from this SQLite file")
	cmd.Flags().Float64Var(&flags.step, "step", 1, "seconds between samples")
	cmd.Flags().StringVar(&flags.outDir, "out", "", "write a PNG frame per sample into this directory")
	flags.camera.register(cmd)
	return cmd
}

// sampleScene seeks a virtual-clock session through sc and prints the
// applied camera at every step, including the final time.
func sampleScene(a *app, sc core.Scene, flags sampleSceneFlags, out io.Writer) error {
	if flags.step <= 0 {
		return fmt.Errorf("step must be positive, got %v", flags.step)
	}
	if flags.outDir != "" {
		if err := os.MkdirAll(flags.outDir, 0o755); err != nil {
			return err
		}
	}

	clock := loop.NewManual(time.Now())
	s, err := session.New(clock, sessionOptions(a, flags.camera.camera()))
	if err != nil {
		return err
	}
	defer s.Close()
	clock.Advance(0)

	if err := s.Adopt(sc); err != nil {
		return err
	}
	duration := scene.EffectiveDuration(sc)
	steps := int(math.Floor(duration/flags.step + 1e-9))

	fmt.Fprintf(out, "%-8s %-8s %-11s %-11s %-6s %-6s %s\n", "time", "progress", "lng", "lat", "zoom", "pitch", "bearing")
	for i := 0; i <= steps+1; i++ {
		t := float64(i) * flags.step
		if i == steps+1 {
			if duration-float64(steps)*flags.step < 1e-9 {
				break
			}
			t = duration
		}
		if err := s.Keyframe.Seek(sc.ID, t); err != nil {
			return err
		}
		clock.Advance(0)

		cam := s.Map.Camera()
		progress := 0.0
		if duration > 0 {
			progress = t / duration
		}
		fmt.Fprintf(out, "%-8.2f %-8.3f %-11.6f %-11.6f %-6.2f %-6.1f %.1f\n",
			t, progress, cam.Center.Lng, cam.Center.Lat, cam.Zoom, cam.Pitch, cam.Bearing)

		if flags.outDir != "" {
			if err := s.Snapshot(filepath.Join(flags.outDir, fmt.Sprintf("frame_%04d.png", i))); err != nil {
				return err
			}
		}
	}
	return nil
}

type sampleSkyFlags struct {
	table string
	steps int
}

func newSampleSkyCmd(opts *rootOptions) *cobra.Command {
	flags := &sampleSkyFlags{}
	cmd := &cobra.Command{
		Use:   "sky",
		Short: "Print a cycle table at evenly spaced progress values",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(a *app) error {
				lib := cycle.DefaultLibrary()
				if path := config.GetEngineConfig().PalettesFile; path != "" {
					loaded, err := cycle.LoadLibrary(path)
					if err != nil {
						return err
					}
					lib = loaded
				}
				return sampleSky(lib, *flags, cmd.OutOrStdout())
			})
		},
	}
	cmd.Flags().StringVar(&flags.table, "table", "", "cycle table name (default from sky.cycleTable)")
	cmd.Flags().IntVar(&flags.steps, "steps", 8, "number of intervals between progress 0 and 1")
	return cmd
}

func sampleSky(lib *cycle.Library, flags sampleSkyFlags, out io.Writer) error {
	name := flags.table
	if name == "" {
		name = config.GetEngineConfig().CycleTable
	}
	if name == "" {
		name = cycle.DefaultTable
	}
	table, ok := lib.Tables[name]
	if !ok {
		return fmt.Errorf("%w: no cycle table %q", cycle.ErrInvalidTable, name)
	}
	if flags.steps <= 0 {
		return fmt.Errorf("steps must be positive, got %d", flags.steps)
	}

	fmt.Fprintf(out, "%-8s %-6s %-9s %-5s %s\n", "progress", "phase", "bg", "stars", "colors")
	for i := 0; i <= flags.steps; i++ {
		st := cycle.Sample(table, float64(i)/float64(flags.steps))
		fmt.Fprintf(out, "%-8.3f %-6s %-9s %-5t %s\n", st.Progress, st.Phase, st.Background, st.Stars, strings.Join(st.Colors, ","))
	}
	return nil
}
