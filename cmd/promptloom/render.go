package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/aretw0/promptloom"
	"github.com/aretw0/promptloom/internal/cli"
	"github.com/aretw0/promptloom/internal/presentation/tui"
	"github.com/aretw0/promptloom/pkg/domain"
	"github.com/aretw0/promptloom/pkg/replay"
)

type renderOptions struct {
	projectID     string
	style         string
	maxMessages   int
	vars          []string
	resolve       bool
	jsonOut       bool
	pretty        bool
	watch         bool
	failOnMissing bool
}

func newRenderCmd(st *runtimeState) *cobra.Command {
	opts := &renderOptions{}
	cmd := &cobra.Command{
		Use:   "render <path>",
		Short: "Render a project into its transcript",
		Long: `Renders a project file (JSON, YAML or a flow editor export) or a directory
of markdown node documents. The transcript goes to stdout; diagnostics go to
stderr unless --json is set.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRender(cmd, st, opts, args[0])
		},
	}

	f := cmd.Flags()
	f.StringVarP(&opts.projectID, "project", "p", "", "Project ID inside a directory (default: the only one, or 'default')")
	f.StringVarP(&opts.style, "style", "s", "plain", "Output style: plain or labeled")
	f.IntVar(&opts.maxMessages, "max-messages", 0, "Cap on chat history pulled in by dynamic variables")
	f.StringArrayVar(&opts.vars, "var", nil, "Override a variable as name=value (repeatable)")
	f.BoolVar(&opts.resolve, "resolve", true, "Resolve dynamic variables before rendering")
	f.BoolVar(&opts.jsonOut, "json", false, "Print the full trace as JSON")
	f.BoolVar(&opts.pretty, "pretty", false, "Print the trace as styled markdown")
	f.BoolVarP(&opts.watch, "watch", "w", false, "Render again whenever the source changes")
	f.BoolVar(&opts.failOnMissing, "fail-on-missing", false, "Exit with status 1 when placeholders stay unresolved")
	cmd.MarkFlagsMutuallyExclusive("json", "pretty")
	return cmd
}

func runRender(cmd *cobra.Command, st *runtimeState, opts *renderOptions, path string) error {
	style, ok := domain.ParseOutputStyle(opts.style)
	if !ok {
		return fmt.Errorf("unknown style %q (want plain or labeled)", opts.style)
	}
	overrides, err := parseVars(opts.vars)
	if err != nil {
		return err
	}

	app, err := st.app()
	if err != nil {
		return err
	}
	defer app.Close()

	renderOpts := []promptloom.RenderOption{promptloom.WithStyle(style)}
	if opts.maxMessages > 0 {
		renderOpts = append(renderOpts, promptloom.WithMaxMessages(opts.maxMessages))
	}

	var prettify func(string) (string, error)
	if opts.pretty {
		prettify, err = tui.NewRenderer(terminalWidth(cmd.OutOrStdout()))
		if err != nil {
			return err
		}
	}

	renderOnce := func(ctx context.Context) error {
		p, err := cli.LoadProject(ctx, path, opts.projectID)
		if err != nil {
			return err
		}
		if len(overrides) > 0 {
			p = replay.ApplyOverrides(p, overrides)
		}

		var run domain.TraceRun
		if opts.resolve {
			run = app.Engine.RenderResolved(ctx, p, renderOpts...)
		} else {
			run = app.Engine.Render(ctx, p, renderOpts...)
		}
		if err := printRun(cmd.OutOrStdout(), cmd.ErrOrStderr(), run, opts, prettify); err != nil {
			return err
		}
		if missing := run.MissingVariables(); opts.failOnMissing && len(missing) > 0 {
			return fmt.Errorf("unresolved placeholders: %s", strings.Join(missing, ", "))
		}
		return nil
	}

	if !opts.watch {
		return renderOnce(cmd.Context())
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	w := &cli.Watcher{Path: path, Logger: st.logger}
	return w.Run(ctx, renderOnce)
}

func printRun(out, errOut io.Writer, run domain.TraceRun, opts *renderOptions, prettify func(string) (string, error)) error {
	switch {
	case opts.jsonOut:
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(run)

	case prettify != nil:
		rendered, err := prettify(tui.RunMarkdown(run))
		if err != nil {
			return err
		}
		_, err = io.WriteString(out, rendered)
		return err
	}

	if _, err := fmt.Fprintln(out, run.Text); err != nil {
		return err
	}
	for _, m := range run.Messages {
		if m.Severity == domain.SeverityInfo {
			continue
		}
		fmt.Fprintf(errOut, "%s: %s: %s\n", m.Severity, m.Code, m.Message)
	}
	return nil
}

// parseVars turns name=value pairs into variable overrides.
func parseVars(pairs []string) (map[string]string, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	out := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		name, value, ok := strings.Cut(pair, "=")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid --var %q (want name=value)", pair)
		}
		out[name] = value
	}
	return out, nil
}
