package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/aretw0/promptloom/internal/cli"
	"github.com/aretw0/promptloom/internal/compiler"
)

func newValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate [path...]",
		Short: "Check projects for consistency",
		Long: `Checks every project found in the given files or directories (default: the
working directory): node IDs must be unique, kinds known and variable names
non-empty.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				args = []string{"."}
			}
			out := cmd.OutOrStdout()

			failed := 0
			for _, path := range args {
				n, err := validatePath(cmd, path)
				failed += n
				if err != nil {
					fmt.Fprintf(out, "✗ %s: %v\n", path, err)
					failed++
				}
			}
			if failed > 0 {
				return fmt.Errorf("%d invalid project(s)", failed)
			}
			return nil
		},
	}
}

// validatePath checks every project under path and reports each one.
// It returns how many projects failed.
func validatePath(cmd *cobra.Command, path string) (int, error) {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	info, err := os.Stat(path)
	if err != nil {
		return 0, err
	}
	if !info.IsDir() {
		// Compiling a file validates it.
		p, err := compiler.CompileFile(path)
		if err != nil {
			return 0, unwrapValidation(err)
		}
		fmt.Fprintf(out, "✓ %s (%d nodes)\n", p.ID, len(p.Nodes))
		return 0, nil
	}

	src, err := cli.OpenSource(path)
	if err != nil {
		return 0, err
	}
	ids, err := src.ListProjects(ctx)
	if err != nil {
		return 0, err
	}
	if len(ids) == 0 {
		return 0, errors.New("no projects found")
	}

	failed := 0
	for _, id := range ids {
		p, err := src.LoadProject(ctx, id)
		if err == nil {
			err = compiler.Validate(p)
		}
		if err != nil {
			fmt.Fprintf(out, "✗ %s: %v\n", id, unwrapValidation(err))
			failed++
			continue
		}
		fmt.Fprintf(out, "✓ %s (%d nodes)\n", id, len(p.Nodes))
	}
	return failed, nil
}

// unwrapValidation strips wrapping so only the issue list is printed.
func unwrapValidation(err error) error {
	var verr *compiler.ValidationError
	if errors.As(err, &verr) {
		return verr
	}
	return err
}
