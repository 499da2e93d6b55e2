package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/aretw0/promptloom/internal/cli"
	"github.com/aretw0/promptloom/internal/config"
	"github.com/aretw0/promptloom/internal/logging"
)

// errSilent exits with status 1 without printing anything, for commands
// that already reported the failure (e.g. diff --exit-code).
var errSilent = errors.New("silent failure")

// runtimeState is shared by every command of one invocation.
type runtimeState struct {
	configPath string

	cfg    *config.Config
	logger *slog.Logger

	shutdownTracing cli.ShutdownFunc
}

// newRootCmd builds the command tree.
func newRootCmd() *cobra.Command {
	st := &runtimeState{}

	rootCmd := &cobra.Command{
		Use:   "promptloom",
		Short: "Promptloom composes prompt projects into transcripts",
		Long: `Promptloom renders prompt projects (typed nodes with {{variable}}
placeholders) into a single transcript with per-node diagnostics, and
compares transcripts line by line.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return st.init(cmd)
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return st.shutdown(cmd.Context())
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&st.configPath, "config", "", "Config file (default ./promptloom.yaml when present)")
	flags.String("log-level", "info", "Log level: debug, info, warn or error")
	flags.String("log-format", "text", "Log format: text or json")
	flags.String("store", "memory", "Store backend: memory, file, redis or badger")
	flags.String("data-dir", ".promptloom", "Directory of the file and badger stores")
	flags.String("redis-addr", "localhost:6379", "Redis address for the redis store")
	flags.String("badger-path", "", "Badger directory (default <data-dir>/badger)")
	flags.Bool("trace", false, "Print OpenTelemetry spans to stderr")

	rootCmd.AddCommand(
		newRenderCmd(st),
		newDiffCmd(st),
		newGraphCmd(st),
		newValidateCmd(),
		newServeCmd(st),
		newMCPCmd(st),
		newReplayCmd(st),
		newSessionCmd(st),
		newVersionCmd(),
	)
	return rootCmd
}

// Execute runs the CLI and returns the process exit code.
func Execute(args []string) int {
	rootCmd := newRootCmd()
	rootCmd.SetArgs(args)
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		if !errors.Is(err, errSilent) {
			fmt.Fprintln(rootCmd.ErrOrStderr(), "Error:", err)
		}
		return 1
	}
	return 0
}

// init loads the configuration and sets up logging and tracing.
func (st *runtimeState) init(cmd *cobra.Command) error {
	cfg, err := config.Load(st.configPath, cmd.Flags())
	if err != nil {
		return err
	}
	level, err := logging.ParseLevel(cfg.LogLevel)
	if err != nil {
		return err
	}

	st.cfg = cfg
	st.logger = logging.NewFromConfig(cfg.LogFormat, level)
	slog.SetDefault(st.logger)

	st.shutdownTracing, err = cli.SetupTracing(cfg.TraceStdout, cmd.ErrOrStderr())
	return err
}

func (st *runtimeState) shutdown(ctx context.Context) error {
	if st.shutdownTracing == nil {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}
	return st.shutdownTracing(ctx)
}

// app builds the stores and engine. Callers must Close it.
func (st *runtimeState) app() (*cli.App, error) {
	return cli.NewApp(st.cfg, st.logger)
}

// isTerminal reports whether w is an interactive terminal.
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// terminalWidth returns the width of w, or 0 when it is not a terminal.
func terminalWidth(w io.Writer) int {
	f, ok := w.(*os.File)
	if !ok {
		return 0
	}
	width, _, err := term.GetSize(int(f.Fd()))
	if err != nil {
		return 0
	}
	return width
}
