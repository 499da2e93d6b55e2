package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/aretw0/promptloom"
	"github.com/aretw0/promptloom/internal/compiler"
	"github.com/aretw0/promptloom/pkg/diff"
	"github.com/aretw0/promptloom/pkg/domain"
	"github.com/aretw0/promptloom/pkg/ports"
)

const projectsURI = "promptloom://projects"

// Engine defines the part of promptloom.Engine the MCP server needs.
type Engine interface {
	Render(ctx context.Context, p domain.Project, opts ...promptloom.RenderOption) domain.TraceRun
	RenderResolved(ctx context.Context, p domain.Project, opts ...promptloom.RenderOption) domain.TraceRun
	Compare(ctx context.Context, left, right string) (promptloom.Comparison, error)
}

// RenderArgs are the arguments of the render_project tool.
type RenderArgs struct {
	ProjectID   string `json:"project_id"`
	OutputStyle string `json:"output_style,omitempty"`
	MaxMessages int    `json:"max_messages,omitempty"`
	Resolve     *bool  `json:"resolve,omitempty"`
}

// RenderResult is the structured output of render_project.
type RenderResult struct {
	RunID            string                `json:"run_id" jsonschema_description:"Identifier of the render"`
	Text             string                `json:"text" jsonschema_description:"The composed transcript"`
	MissingVariables []string              `json:"missing_variables" jsonschema_description:"Placeholders left unresolved"`
	Messages         []domain.TraceMessage `json:"messages" jsonschema_description:"Run-level diagnostics"`
	Segments         int                   `json:"segments" jsonschema_description:"Number of rendered nodes"`
}

// DiffArgs are the arguments of the diff_text tool.
type DiffArgs struct {
	Left    string `json:"left"`
	Right   string `json:"right"`
	Unified bool   `json:"unified,omitempty"`
}

// DiffResult is the structured output of diff_text.
type DiffResult struct {
	Lines   []domain.DiffLine `json:"lines" jsonschema_description:"Aligned rows of the comparison"`
	Summary diff.Summary      `json:"summary" jsonschema_description:"Row counts by kind"`
	Unified string            `json:"unified,omitempty" jsonschema_description:"Unified diff, when requested"`
}

// Server wraps the engine and a project source and exposes them as an MCP server.
type Server struct {
	engine    Engine
	loader    ports.ProjectLoader
	logger    *slog.Logger
	mcpServer *server.MCPServer
}

// NewServer creates a new MCP Server instance.
func NewServer(engine Engine, loader ports.ProjectLoader, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		engine:    engine,
		loader:    loader,
		logger:    logger,
		mcpServer: server.NewMCPServer("promptloom-mcp", strings.TrimSpace(promptloom.Version)),
	}
	s.registerTools()
	s.registerResources()
	return s
}

// MCPServer returns the underlying mcp-go server.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcpServer
}

// ServeStdio starts the server on Stdin/Stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}

// ServeSSE serves the SSE transport on addr until ctx is done.
func (s *Server) ServeSSE(ctx context.Context, addr, baseURL string) error {
	sseServer := server.NewSSEServer(s.mcpServer, server.WithBaseURL(baseURL))

	mux := http.NewServeMux()
	mux.Handle("/sse", corsMiddleware(sseServer.SSEHandler()))
	mux.Handle("/message", corsMiddleware(sseServer.MessageHandler()))

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("MCP Server listening (SSE)", "address", addr)
		serverErrors <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("could not stop server gracefully: %w", err)
		}
		return nil
	}
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) registerTools() {
	renderTool := mcp.NewTool("render_project",
		mcp.WithDescription("Render a prompt project into its transcript. Dynamic variables are resolved unless resolve is false."),
		mcp.WithString("project_id", mcp.Required(), mcp.Description("ID of the project to render")),
		mcp.WithString("output_style", mcp.Enum("plain", "labeled"), mcp.Description("Transcript style (default plain)")),
		mcp.WithNumber("max_messages", mcp.Description("Cap on chat history pulled in by dynamic variables")),
		mcp.WithBoolean("resolve", mcp.Description("Resolve dynamic variables before rendering (default true)")),
		mcp.WithOutputSchema[RenderResult](),
	)
	s.mcpServer.AddTool(renderTool, mcp.NewStructuredToolHandler(s.handleRenderProject))

	diffTool := mcp.NewTool("diff_text",
		mcp.WithDescription("Align two texts line by line and classify each row as same, changed, missing-left or missing-right."),
		mcp.WithString("left", mcp.Required(), mcp.Description("Left-hand text")),
		mcp.WithString("right", mcp.Required(), mcp.Description("Right-hand text")),
		mcp.WithBoolean("unified", mcp.Description("Also return a unified diff")),
		mcp.WithOutputSchema[DiffResult](),
	)
	s.mcpServer.AddTool(diffTool, mcp.NewStructuredToolHandler(s.handleDiffText))

	s.mcpServer.AddTool(mcp.NewTool("list_projects",
		mcp.WithDescription("List the IDs of the projects that can be rendered."),
	), func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		ids, err := s.loader.ListProjects(ctx)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("list failed: %v", err)), nil
		}
		jsonBytes, _ := json.Marshal(ids)
		return mcp.NewToolResultText(string(jsonBytes)), nil
	})
}

func (s *Server) handleRenderProject(ctx context.Context, request mcp.CallToolRequest, args RenderArgs) (RenderResult, error) {
	if strings.TrimSpace(args.ProjectID) == "" {
		return RenderResult{}, errors.New("project_id is required")
	}
	style, ok := domain.ParseOutputStyle(args.OutputStyle)
	if !ok {
		return RenderResult{}, fmt.Errorf("unknown output style %q", args.OutputStyle)
	}

	p, err := s.loader.LoadProject(ctx, args.ProjectID)
	if err != nil {
		return RenderResult{}, fmt.Errorf("load failed: %w", err)
	}
	p = compiler.Order(p)

	opts := []promptloom.RenderOption{promptloom.WithStyle(style)}
	if args.MaxMessages > 0 {
		opts = append(opts, promptloom.WithMaxMessages(args.MaxMessages))
	}

	var run domain.TraceRun
	if args.Resolve == nil || *args.Resolve {
		run = s.engine.RenderResolved(ctx, p, opts...)
	} else {
		run = s.engine.Render(ctx, p, opts...)
	}
	s.logger.Debug("MCP render", "project", p.ID, "run_id", run.RunID)

	missing := run.MissingVariables()
	if missing == nil {
		missing = []string{}
	}
	return RenderResult{
		RunID:            run.RunID,
		Text:             run.Text,
		MissingVariables: missing,
		Messages:         run.Messages,
		Segments:         len(run.Segments),
	}, nil
}

func (s *Server) handleDiffText(ctx context.Context, request mcp.CallToolRequest, args DiffArgs) (DiffResult, error) {
	cmp, err := s.engine.Compare(ctx, args.Left, args.Right)
	if err != nil {
		return DiffResult{}, err
	}
	out := DiffResult{Lines: cmp.Lines, Summary: cmp.Summary}
	if args.Unified {
		out.Unified, err = diff.Unified("left", "right", cmp.Lines, diff.DefaultContext)
		if err != nil {
			return DiffResult{}, err
		}
	}
	return out, nil
}

func (s *Server) registerResources() {
	s.mcpServer.AddResource(mcp.NewResource(projectsURI, "Available projects",
		mcp.WithMIMEType("application/json"),
	), func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		ids, err := s.loader.ListProjects(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list projects: %w", err)
		}
		jsonBytes, _ := json.Marshal(ids)

		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      projectsURI,
				MIMEType: "application/json",
				Text:     string(jsonBytes),
			},
		}, nil
	})
}
