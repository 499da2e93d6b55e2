package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/aretw0/promptloom"
	"github.com/aretw0/promptloom/internal/cli"
	"github.com/aretw0/promptloom/internal/compiler"
	"github.com/aretw0/promptloom/internal/presentation/tui"
	httpadapter "github.com/aretw0/promptloom/pkg/adapters/http"
)

const shutdownTimeout = 5 * time.Second

func newServeCmd(st *runtimeState) *cobra.Command {
	var seed []string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		Long: `Serves the JSON API (render, diff, projects, sessions, datasets and runs)
with the store backend selected by the configuration. Projects found in the
--seed paths are saved to the project store on startup.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, st, seed)
		},
	}
	cmd.Flags().String("addr", ":8080", "Address to listen on")
	cmd.Flags().StringArrayVar(&seed, "seed", nil, "Project file or directory to import on startup (repeatable)")
	return cmd
}

func runServe(cmd *cobra.Command, st *runtimeState, seed []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := st.app()
	if err != nil {
		return err
	}
	defer app.Close()

	if err := app.Ping(ctx); err != nil {
		return err
	}
	if err := seedProjects(ctx, app, seed); err != nil {
		return err
	}

	handler, err := httpadapter.NewServer(app.Engine,
		httpadapter.WithProjectStore(app.Projects),
		httpadapter.WithDatasetStore(app.Datasets),
		httpadapter.WithRunStore(app.Runs),
		httpadapter.WithSessionManager(app.Sessions),
		httpadapter.WithReplayer(app.Replayer),
		httpadapter.WithDataSources(app.DataSources),
		httpadapter.WithMetrics(app.Metrics, app.Registry),
		httpadapter.WithLogger(st.logger),
		httpadapter.WithMaxBodyBytes(st.cfg.MaxInputBytes),
	).Handler(ctx)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              st.cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	if isTerminal(cmd.ErrOrStderr()) {
		tui.PrintBanner(cmd.ErrOrStderr(), promptloom.Version)
	}

	// Channel to listen for errors coming from the listener.
	serverErrors := make(chan error, 1)
	go func() {
		st.logger.Info("Starting promptloom server", "addr", srv.Addr, "store", st.cfg.Store)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server error: %w", err)

	case <-ctx.Done():
		st.logger.Info("Shutting down", "timeout", shutdownTimeout)

		// Give outstanding requests a deadline for completion.
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			st.logger.Error("Graceful shutdown did not complete", "err", err)
			if err := srv.Close(); err != nil {
				return fmt.Errorf("could not stop server: %w", err)
			}
		}
		st.logger.Info("Server stopped gracefully")
		return nil
	}
}

// seedProjects validates every project found under paths and saves it.
func seedProjects(ctx context.Context, app *cli.App, paths []string) error {
	for _, path := range paths {
		src, err := cli.OpenSource(path)
		if err != nil {
			return err
		}
		ids, err := src.ListProjects(ctx)
		if err != nil {
			return err
		}
		for _, id := range ids {
			p, err := src.LoadProject(ctx, id)
			if err != nil {
				return err
			}
			if err := compiler.Validate(p); err != nil {
				return fmt.Errorf("seed %s: %w", id, err)
			}
			if p.UpdatedAt.IsZero() {
				p.UpdatedAt = time.Now().UTC()
			}
			if err := app.Projects.Save(ctx, p); err != nil {
				return fmt.Errorf("seed %s: %w", id, err)
			}
			app.Logger.Info("Seeded project", "project", id, "source", path)
		}
	}
	return nil
}
