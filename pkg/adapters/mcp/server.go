package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/aretw0/flowtalk/internal/logging"
	"github.com/aretw0/flowtalk/internal/presentation/graph"
	"github.com/aretw0/flowtalk/pkg/runner"
	"github.com/aretw0/flowtalk/pkg/session"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// Resource URIs exposed by the server.
const (
	SessionsURI = "flowtalk://sessions"
	FlowsURI    = "flowtalk://flows"
)

// FrameResponse is the structured result of every navigation tool.
type FrameResponse struct {
	SessionID string `json:"session_id" jsonschema_description:"The conversation session"`
	*runner.Frame
}

// Catalog lists the flows that sessions can be started from.
type Catalog interface {
	List(ctx context.Context) ([]string, error)
}

// Server exposes conversation sessions as MCP tools.
type Server struct {
	sessions  *session.Manager
	catalog   Catalog
	logger    *slog.Logger
	mcpServer *server.MCPServer
}

// Option configures the Server.
type Option func(*Server)

// WithCatalog publishes the available flows as a resource.
func WithCatalog(c Catalog) Option {
	return func(s *Server) {
		s.catalog = c
	}
}

// WithLogger sets the server logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// NewServer creates an MCP server over mgr.
func NewServer(mgr *session.Manager, version string, opts ...Option) *Server {
	s := &Server{
		sessions:  mgr,
		logger:    logging.NewNop(),
		mcpServer: server.NewMCPServer("flowtalk-mcp", version),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.registerTools()
	s.registerResources()
	return s
}

// ServeStdio serves on Stdin/Stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}

// ServeSSE serves over SSE on port until ctx is done.
func (s *Server) ServeSSE(ctx context.Context, port int) error {
	addr := fmt.Sprintf(":%d", port)
	sseServer := server.NewSSEServer(s.mcpServer, server.WithBaseURL(fmt.Sprintf("http://localhost:%d", port)))

	mux := http.NewServeMux()
	mux.Handle("/sse", corsMiddleware(sseServer.SSEHandler()))
	mux.Handle("/message", corsMiddleware(sseServer.MessageHandler()))
	httpServer := &http.Server{Addr: addr, Handler: mux}

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("MCP server listening (SSE)", "address", addr)
		serverErrors <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
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
	sessionArg := mcp.WithString("session_id", mcp.Required(), mcp.Description("Session returned by start_conversation"))

	s.mcpServer.AddTool(mcp.NewTool("start_conversation",
		mcp.WithDescription("Start a conversation over a stored flow and render its first step."),
		mcp.WithString("flow", mcp.Required(), mcp.Description("Name of the flow")),
		mcp.WithOutputSchema[FrameResponse](),
	), s.handleStart)

	s.mcpServer.AddTool(mcp.NewTool("render",
		mcp.WithDescription("Render the active step of a conversation without moving."),
		sessionArg,
		mcp.WithOutputSchema[FrameResponse](),
	), s.handleRender)

	s.mcpServer.AddTool(mcp.NewTool("continue",
		mcp.WithDescription("Advance the conversation. With a target, jump along that edge."),
		sessionArg,
		mcp.WithString("target", mcp.Description("Successor step id (optional)")),
		mcp.WithOutputSchema[FrameResponse](),
	), s.handleContinue)

	s.mcpServer.AddTool(mcp.NewTool("answer",
		mcp.WithDescription("Answer the active step and advance."),
		sessionArg,
		mcp.WithString("value", mcp.Description("The answer; empty acknowledges a message")),
		mcp.WithOutputSchema[FrameResponse](),
	), s.handleAnswer)

	s.mcpServer.AddTool(mcp.NewTool("back",
		mcp.WithDescription("Return to the previous step."),
		sessionArg,
		mcp.WithOutputSchema[FrameResponse](),
	), s.handleBack)

	s.mcpServer.AddTool(mcp.NewTool("get_graph",
		mcp.WithDescription("Get the conversation graph as Mermaid, with the walk so far highlighted."),
		sessionArg,
	), s.handleGraph)

	s.mcpServer.AddTool(mcp.NewTool("end_conversation",
		mcp.WithDescription("Discard a conversation session."),
		sessionArg,
	), s.handleEnd)
}

func (s *Server) handleStart(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, err := req.RequireString("flow")
	if err != nil {
		return mcp.NewToolResultError("flow is required"), nil
	}
	sess, err := s.sessions.Create(ctx, name)
	if err != nil {
		return s.toolError("start", err), nil
	}
	return s.navigate(ctx, sess.ID, nil)
}

func (s *Server) handleRender(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("session_id")
	if err != nil {
		return mcp.NewToolResultError("session_id is required"), nil
	}
	return s.navigate(ctx, id, nil)
}

func (s *Server) handleContinue(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("session_id")
	if err != nil {
		return mcp.NewToolResultError("session_id is required"), nil
	}
	return s.navigate(ctx, id, &runner.Move{Target: req.GetString("target", "")})
}

func (s *Server) handleAnswer(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("session_id")
	if err != nil {
		return mcp.NewToolResultError("session_id is required"), nil
	}
	raw, err := answerText(req.GetArguments()["value"])
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid value: %v", err)), nil
	}
	return s.navigate(ctx, id, &runner.Move{Answer: &raw})
}

func (s *Server) handleBack(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("session_id")
	if err != nil {
		return mcp.NewToolResultError("session_id is required"), nil
	}
	return s.navigate(ctx, id, &runner.Move{Back: true})
}

func (s *Server) handleGraph(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("session_id")
	if err != nil {
		return mcp.NewToolResultError("session_id is required"), nil
	}
	var out string
	err = s.sessions.Do(ctx, id, func(_ context.Context, sess *session.Session) error {
		conv := sess.Conversation
		trail := conv.Breadcrumbs()
		if cur := conv.Current(); cur != nil {
			trail = append(trail, cur)
		}
		out = graph.GenerateMermaid(conv.Flow(), graph.OverlayOf(trail))
		return nil
	})
	if err != nil {
		return s.toolError("graph", err), nil
	}
	return mcp.NewToolResultText(out), nil
}

func (s *Server) handleEnd(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("session_id")
	if err != nil {
		return mcp.NewToolResultError("session_id is required"), nil
	}
	if err := s.sessions.Delete(ctx, id); err != nil {
		return s.toolError("end", err), nil
	}
	return mcp.NewToolResultText("ended " + id), nil
}

// navigate applies move (if any) to the session and returns its frame as JSON.
func (s *Server) navigate(ctx context.Context, id string, move *runner.Move) (*mcp.CallToolResult, error) {
	var resp FrameResponse
	err := s.sessions.Do(ctx, id, func(ctx context.Context, sess *session.Session) error {
		var (
			frame *runner.Frame
			err   error
		)
		if move != nil {
			frame, err = runner.NavigateAndRender(ctx, sess.Conversation, *move)
		} else {
			frame, err = runner.Snapshot(ctx, sess.Conversation)
		}
		if err != nil {
			return err
		}
		resp = FrameResponse{SessionID: sess.ID, Frame: frame}
		return nil
	})
	if err != nil {
		return s.toolError("navigate", err), nil
	}
	return marshalResult(resp), nil
}

// toolError reports err to the client. Errors are tool results, not protocol
// failures, so the model can read and recover from them.
func (s *Server) toolError(op string, err error) *mcp.CallToolResult {
	s.logger.Debug("tool call rejected", "op", op, "err", err)
	return mcp.NewToolResultError(err.Error())
}

func marshalResult(v any) *mcp.CallToolResult {
	data, err := json.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal result: %v", err))
	}
	return mcp.NewToolResultStructured(v, string(data))
}

func answerText(v any) (string, error) {
	switch v := v.(type) {
	case nil:
		return "", nil
	case string:
		return v, nil
	default:
		b, err := json.Marshal(v)
		return string(b), err
	}
}

func (s *Server) registerResources() {
	s.mcpServer.AddResource(mcp.NewResource(SessionsURI, "Open conversation sessions",
		mcp.WithMIMEType("application/json"),
	), func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		return jsonResource(SessionsURI, s.sessions.List())
	})

	if s.catalog == nil {
		return
	}
	s.mcpServer.AddResource(mcp.NewResource(FlowsURI, "Available flows",
		mcp.WithMIMEType("application/json"),
	), func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		names, err := s.catalog.List(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list flows: %w", err)
		}
		return jsonResource(FlowsURI, names)
	})
}

func jsonResource(uri string, v any) ([]mcp.ResourceContents, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", uri, err)
	}
	return []mcp.ResourceContents{
		mcp.TextResourceContents{URI: uri, MIMEType: "application/json", Text: string(data)},
	}, nil
}
