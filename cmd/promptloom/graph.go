package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/aretw0/promptloom/internal/cli"
	"github.com/aretw0/promptloom/internal/presentation/graph"
)

func newGraphCmd(st *runtimeState) *cobra.Command {
	var (
		projectID string
		overlay   bool
	)
	cmd := &cobra.Command{
		Use:   "graph <path>",
		Short: "Export the project graph as a Mermaid diagram",
		Long: `Outputs a Mermaid flowchart (graph TD) of the project nodes and edges.
With --overlay the project is rendered first and nodes with unresolved
placeholders are highlighted.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			p, err := cli.LoadProject(ctx, args[0], projectID)
			if err != nil {
				return err
			}

			var o *graph.GraphOverlay
			if overlay {
				app, err := st.app()
				if err != nil {
					return err
				}
				defer app.Close()
				o = graph.OverlayFromRun(app.Engine.RenderResolved(ctx, p))
			}

			_, err = fmt.Fprint(cmd.OutOrStdout(), graph.GenerateMermaid(p, o))
			return err
		},
	}
	cmd.Flags().StringVarP(&projectID, "project", "p", "", "Project ID inside a directory")
	cmd.Flags().BoolVar(&overlay, "overlay", false, "Highlight nodes with unresolved placeholders")
	return cmd
}
