package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/dusk-indust/dreamffi/internal/export"
	"github.com/dusk-indust/dreamffi/internal/graph"
)

func newIndexCmd(flags *globalFlags) *cobra.Command {
	var (
		dbPath     string
		jsonOutput bool
	)

	cmd := &cobra.Command{
		Use:   "index <environment.dme>",
		Short: "Write the type tree of an environment into a graph store",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			env := args[0]
			sess, log, err := flags.openSession(cmd, env)
			if err != nil {
				return err
			}
			defer sess.Close()

			cfg, err := flags.loadConfig(env)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			path := dbPath
			if path == "" {
				path = cfg.ResolveGraphPath("")
			}

			store, err := openStore(path, true)
			if err != nil {
				return err
			}
			defer store.Close()

			ctx := cmd.Context()
			stats, err := graph.BuildIndex(ctx, store, sess)
			if err != nil {
				return err
			}
			log.Info().Str("db", path).Int("types", stats.TypeCount).Int("edges", stats.EdgeCount).Msg("index written")

			if jsonOutput {
				return writeIndexJSON(ctx, cmd, store, env)
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "files: %d\ntypes: %d\nmembers: %d\nmodules: %d\nedges: %d\n",
				stats.FileCount, stats.TypeCount, stats.MemberCount, stats.ModuleCount, stats.EdgeCount)
			return err
		},
	}
	cmd.Flags().StringVar(&dbPath, "db", "", "Graph database directory (default: graphPath from config, else in-memory)")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print the full index as JSON")
	return cmd
}

func writeIndexJSON(ctx context.Context, cmd *cobra.Command, store graph.Store, env string) error {
	data, err := export.ExportIndex(ctx, store, env)
	if err != nil {
		return fmt.Errorf("export failed: %w", err)
	}
	out, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal JSON: %w", err)
	}
	_, err = cmd.OutOrStdout().Write(append(out, '\n'))
	return err
}

func newDiagramCmd(flags *globalFlags) *cobra.Command {
	var dbPath string

	cmd := &cobra.Command{
		Use:   "diagram [environment.dme]",
		Short: "Print the type hierarchy as a Mermaid diagram",
		Long: "Parses the environment and renders its type hierarchy. With --db and no\n" +
			"environment, renders a graph previously written by 'index'.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			var store graph.Store
			switch {
			case len(args) == 1:
				sess, _, err := flags.openSession(cmd, args[0])
				if err != nil {
					return err
				}
				defer sess.Close()

				mem := graph.NewMemStore()
				if _, err := graph.BuildIndex(ctx, mem, sess); err != nil {
					return err
				}
				store = mem
			case dbPath != "":
				if _, err := os.Stat(dbPath); err != nil {
					return fmt.Errorf("no graph found at %s\nRun 'dreamffi index --db %s <environment.dme>' first", dbPath, dbPath)
				}
				s, err := openStore(dbPath, false)
				if err != nil {
					return err
				}
				store = s
			default:
				return fmt.Errorf("an environment or --db is required")
			}
			defer store.Close()

			mermaid, err := export.GenerateMermaid(ctx, store)
			if err != nil {
				return err
			}
			_, err = fmt.Fprint(cmd.OutOrStdout(), mermaid)
			return err
		},
	}
	cmd.Flags().StringVar(&dbPath, "db", "", "Render from a graph database written by 'index'")
	return cmd
}
