package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/dusk-indust/dreamffi/internal/config"
	"github.com/dusk-indust/dreamffi/internal/logging"
	"github.com/dusk-indust/dreamffi/internal/session"
)

// version is set by goreleaser at build time.
var version = "dev"

// globalFlags are shared by every subcommand.
type globalFlags struct {
	ConfigPath string
	LogLevel   string
	Include    []string
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd(os.Stdout, os.Stderr).ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	var flags globalFlags

	rootCmd := &cobra.Command{
		Use:           "dreamffi",
		Short:         "Inspect DreamMaker environments through the parse session API",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.SetOut(stdout)
	rootCmd.SetErr(stderr)

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&flags.ConfigPath, "config", "", "Config file path (default: dreamffi.yml beside the environment)")
	pf.StringVar(&flags.LogLevel, "log-level", "", "Log level: trace, debug, info, warn, error")
	pf.StringSliceVar(&flags.Include, "include", nil, "Extra files pushed before the environment")

	rootCmd.AddCommand(
		newTypeInfoCmd(&flags),
		newFilesCmd(&flags),
		newDocumentCmd(&flags, "diagnostics", "Print warnings, notices and hints", (*session.Session).ExportDiagnostics),
		newDocumentCmd(&flags, "types", "Print every declared type path", (*session.Session).ExportTypeList),
		newDocumentCmd(&flags, "special", "Print map, script and skin files", (*session.Session).ExportSpecialFiles),
		newIndexCmd(&flags),
		newDiagramCmd(&flags),
		newServeMCPCmd(&flags),
	)
	return rootCmd
}

// loadConfig reads --config when set, else the config beside env.
func (f *globalFlags) loadConfig(env string) (*config.ProjectConfig, error) {
	if f.ConfigPath != "" {
		return config.LoadFile(f.ConfigPath)
	}
	if env == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, err
		}
		return config.Load(wd)
	}
	return config.ForEnvironment(env)
}

// logger builds the stderr console logger. --log-level wins over the
// config's logLevel.
func (f *globalFlags) logger(cmd *cobra.Command, cfg *config.ProjectConfig) (zerolog.Logger, error) {
	level := f.LogLevel
	if level == "" && cfg != nil {
		level = cfg.LogLevel
	}
	return logging.New(logging.Config{Level: level, Out: cmd.ErrOrStderr(), Console: true})
}

// openSession parses env with the configured defines and includes.
func (f *globalFlags) openSession(cmd *cobra.Command, env string) (*session.Session, zerolog.Logger, error) {
	cfg, err := f.loadConfig(env)
	if err != nil {
		return nil, zerolog.Nop(), fmt.Errorf("load config: %w", err)
	}
	log, err := f.logger(cmd, cfg)
	if err != nil {
		return nil, zerolog.Nop(), err
	}

	files := cfg.FileList(env, f.Include...)
	log.Debug().Strs("files", files).Msg("parsing environment")
	sess, err := session.Parse(cmd.Context(), files, cfg.Options(&log))
	if err != nil {
		return nil, log, err
	}
	return sess, log, nil
}

func writeDocument(w io.Writer, doc []byte) error {
	_, err := fmt.Fprintf(w, "%s\n", doc)
	return err
}
