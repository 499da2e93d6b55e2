package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/aretw0/promptloom"
	"github.com/aretw0/promptloom/internal/cli"
	"github.com/aretw0/promptloom/internal/presentation/tui"
	"github.com/aretw0/promptloom/pkg/diff"
	"github.com/aretw0/promptloom/pkg/domain"
)

type diffOptions struct {
	render    bool
	projectID string
	style     string
	unified   bool
	context   int
	words     bool
	color     string
	jsonOut   bool
	exitCode  bool
}

func newDiffCmd(st *runtimeState) *cobra.Command {
	opts := &diffOptions{}
	cmd := &cobra.Command{
		Use:   "diff <left> <right>",
		Short: "Compare two texts or two rendered projects line by line",
		Long: `Aligns two texts and classifies each row as same, changed, only left or
only right. With --render (implied when an argument is a directory) both
arguments are rendered as projects and their transcripts are compared.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDiff(cmd, st, opts, args[0], args[1])
		},
	}

	f := cmd.Flags()
	f.BoolVarP(&opts.render, "render", "r", false, "Render both arguments as projects before comparing")
	f.StringVarP(&opts.projectID, "project", "p", "", "Project ID inside directories")
	f.StringVarP(&opts.style, "style", "s", "labeled", "Output style of rendered transcripts")
	f.BoolVarP(&opts.unified, "unified", "u", false, "Print a unified diff")
	f.IntVar(&opts.context, "context", diff.DefaultContext, "Context lines of the unified diff")
	f.BoolVar(&opts.words, "words", false, "Highlight changed words inside changed rows")
	f.StringVar(&opts.color, "color", "auto", "Color output: auto, always or never")
	f.BoolVar(&opts.jsonOut, "json", false, "Print rows and summary as JSON")
	f.BoolVar(&opts.exitCode, "exit-code", false, "Exit with status 1 when the inputs differ")
	cmd.MarkFlagsMutuallyExclusive("json", "unified")
	return cmd
}

func runDiff(cmd *cobra.Command, st *runtimeState, opts *diffOptions, leftPath, rightPath string) error {
	if opts.context < 0 {
		return fmt.Errorf("--context must not be negative")
	}
	useColor, err := colorMode(opts.color, cmd.OutOrStdout())
	if err != nil {
		return err
	}

	app, err := st.app()
	if err != nil {
		return err
	}
	defer app.Close()

	ctx := cmd.Context()
	left, right, err := diffInputs(ctx, app.Engine, opts, leftPath, rightPath)
	if err != nil {
		return err
	}

	cmp, err := app.Engine.Compare(ctx, left, right)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	switch {
	case opts.jsonOut:
		payload := struct {
			promptloom.Comparison
			Words map[int][]diff.Span `json:"words,omitempty"`
		}{Comparison: cmp}
		if opts.words {
			payload.Words = diff.WordsForRows(cmp.Lines)
		}
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		err = enc.Encode(payload)

	case opts.unified:
		var text string
		text, err = diff.Unified(leftPath, rightPath, cmp.Lines, opts.context)
		if err == nil {
			_, err = io.WriteString(out, text)
		}

	default:
		p := tui.NewDiffPrinter(out, useColor)
		p.Words = opts.words
		err = p.Print(cmp.Lines)
	}
	if err != nil {
		return err
	}

	if opts.exitCode && !cmp.Summary.Identical() {
		return errSilent
	}
	return nil
}

// diffInputs reads both sides, rendering them when they are projects.
func diffInputs(ctx context.Context, engine *promptloom.Engine, opts *diffOptions, leftPath, rightPath string) (string, string, error) {
	if !opts.render && !isDir(leftPath) && !isDir(rightPath) {
		left, err := os.ReadFile(leftPath)
		if err != nil {
			return "", "", err
		}
		right, err := os.ReadFile(rightPath)
		if err != nil {
			return "", "", err
		}
		return string(left), string(right), nil
	}

	style, ok := domain.ParseOutputStyle(opts.style)
	if !ok {
		return "", "", fmt.Errorf("unknown style %q (want plain or labeled)", opts.style)
	}
	render := func(path string) (string, error) {
		p, err := cli.LoadProject(ctx, path, opts.projectID)
		if err != nil {
			return "", err
		}
		return engine.RenderResolved(ctx, p, promptloom.WithStyle(style)).Text, nil
	}

	left, err := render(leftPath)
	if err != nil {
		return "", "", err
	}
	right, err := render(rightPath)
	if err != nil {
		return "", "", err
	}
	return left, right, nil
}

func colorMode(mode string, out io.Writer) (bool, error) {
	switch mode {
	case "auto":
		return isTerminal(out) && os.Getenv("NO_COLOR") == "", nil
	case "always":
		return true, nil
	case "never":
		return false, nil
	}
	return false, fmt.Errorf("unknown color mode %q (want auto, always or never)", mode)
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
