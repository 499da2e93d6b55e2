package main

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/aretw0/promptloom/internal/cli"
	"github.com/aretw0/promptloom/pkg/adapters/mcp"
	"github.com/aretw0/promptloom/pkg/ports"
)

func newMCPCmd(st *runtimeState) *cobra.Command {
	var (
		transport string
		addr      string
		baseURL   string
	)
	cmd := &cobra.Command{
		Use:   "mcp [path]",
		Short: "Run the Model Context Protocol (MCP) server",
		Long: `Starts promptloom as an MCP server exposing the render_project, diff_text
and list_projects tools. Projects come from path (a project file or a
directory of node documents) or, without one, from the configured store.

Supported Transports:
- stdio (default): Uses Standard Input/Output. Ideal for local process integration.
- sse: Uses Server-Sent Events over HTTP. Ideal for remote agents or debuggers.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := st.app()
			if err != nil {
				return err
			}
			defer app.Close()

			var loader ports.ProjectLoader
			if len(args) == 1 {
				loader, err = cli.OpenSource(args[0])
				if err != nil {
					return err
				}
			} else {
				loader = cli.StoreLoader(app.Projects)
			}

			srv := mcp.NewServer(app.Engine, loader, st.logger)

			switch transport {
			case "stdio":
				// Ensure logs don't corrupt JSON-RPC on Stdout
				log.SetOutput(os.Stderr)
				st.logger.Info("Starting promptloom MCP server (stdio)")
				return srv.ServeStdio()
			case "sse":
				ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
				defer stop()
				if baseURL == "" {
					baseURL = "http://localhost" + addr
				}
				if err := srv.ServeSSE(ctx, addr, baseURL); err != nil {
					return err
				}
				st.logger.Info("MCP server stopped gracefully")
				return nil
			}
			return fmt.Errorf("unknown transport %q (want stdio or sse)", transport)
		},
	}

	cmd.Flags().StringVar(&transport, "transport", "stdio", "Transport protocol to use: 'stdio' or 'sse'")
	cmd.Flags().StringVar(&addr, "sse-addr", ":8081", "Address to listen on (only for SSE)")
	cmd.Flags().StringVar(&baseURL, "base-url", "", "Public base URL of the SSE endpoints (default http://localhost<sse-addr>)")
	return cmd
}
