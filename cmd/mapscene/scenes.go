package main

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/mapscene/animator/internal/config"
	"github.com/mapscene/animator/internal/database"
)

func newScenesCmd(opts *rootOptions) *cobra.Command {
	var db string
	cmd := &cobra.Command{
		Use:   "scenes",
		Short: "Manage stored scenes",
	}
	cmd.PersistentFlags().StringVar(&db, "db", "", "use this SQLite file instead of the configured store")

	list := &cobra.Command{
		Use:   "list",
		Short: "List stored scenes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(a *app) error {
				store, err := openStore(a, db)
				if err != nil {
					return err
				}
				defer store.Close()
				summaries, err := store.ListScenes()
				if err != nil {
					return err
				}
				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(w, "ID\tNAME\tDURATION\tKEYFRAMES\tACTORS")
				for _, s := range summaries {
					fmt.Fprintf(w, "%s\t%s\t%.1f\t%d\t%d\n", s.ID, s.Name, s.Duration, s.Keyframes, s.Actors)
				}
				return w.Flush()
			})
		},
	}

	show := &cobra.Command{
		Use:   "show <id>",
		Short: "Print a stored scene as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(a *app) error {
				store, err := openStore(a, db)
				if err != nil {
					return err
				}
				defer store.Close()
				sc, err := store.LoadScene(args[0])
				if err != nil {
					return err
				}
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(sc)
			})
		},
	}

	del := &cobra.Command{
		Use:   "delete <id>...",
		Short: "Delete stored scenes",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(a *app) error {
				store, err := openStore(a, db)
				if err != nil {
					return err
				}
				defer store.Close()
				for _, id := range args {
					if err := store.DeleteScene(id); err != nil {
						return fmt.Errorf("deleting %s: %w", id, err)
					}
					fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", id)
				}
				return nil
			})
		},
	}

	dumps := &cobra.Command{
		Use:   "dumps [dir]",
		Short: "List SQLite scene dumps",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(a *app) error {
				dir := filepath.Dir(config.GetStorageConfig().SQLite.DumpPath)
				if len(args) == 1 {
					dir = args[0]
				}
				paths, err := database.GetBackupDBPaths(dir)
				if err != nil {
					return err
				}
				for _, p := range paths {
					fmt.Fprintln(cmd.OutOrStdout(), p)
				}
				return nil
			})
		},
	}

	cmd.AddCommand(list, show, del, dumps)
	return cmd
}
