package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/aretw0/flowtalk/internal/logging"
	"github.com/aretw0/flowtalk/internal/presentation/graph"
	"github.com/aretw0/flowtalk/pkg/domain"
	"github.com/aretw0/flowtalk/pkg/modules"
	"github.com/aretw0/flowtalk/pkg/runner"
	"github.com/aretw0/flowtalk/pkg/session"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Server exposes conversation sessions over REST.
type Server struct {
	Sessions *session.Manager
	Streams  *StreamManager
	Logger   *slog.Logger
	Version  string
	metrics  http.Handler
}

// Option configures the Server.
type Option func(*Server)

// WithStreams shares a StreamManager whose Observer is wired into the session manager.
func WithStreams(sm *StreamManager) Option {
	return func(s *Server) {
		s.Streams = sm
	}
}

// WithMetrics mounts h (usually promhttp) at /metrics.
func WithMetrics(h http.Handler) Option {
	return func(s *Server) {
		s.metrics = h
	}
}

// WithLogger configures the request logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.Logger = logger
	}
}

// WithVersion sets the version reported by /info.
func WithVersion(v string) Option {
	return func(s *Server) {
		s.Version = v
	}
}

// NewHandler creates the HTTP handler for mgr.
func NewHandler(mgr *session.Manager, opts ...Option) http.Handler {
	s := &Server{
		Sessions: mgr,
		Logger:   logging.NewNop(),
		Version:  "dev",
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.Streams == nil {
		s.Streams = NewStreamManager(s.Logger)
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(enableCORS)

	r.Get("/health", s.GetHealth)
	r.Get("/info", s.GetInfo)
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics)
	}

	r.Post("/flows/{name}/sessions", s.CreateSession)
	r.Route("/sessions", func(r chi.Router) {
		r.Get("/", s.ListSessions)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", s.GetSession)
			r.Delete("/", s.DeleteSession)
			r.Post("/continue", s.Continue)
			r.Post("/back", s.Back)
			r.Post("/answer", s.Answer)
			r.Get("/graph", s.GetGraph)
			r.Get("/events", s.SubscribeEvents)
		})
	})
	return r
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// SessionResponse is a session and its current frame.
type SessionResponse struct {
	ID   string `json:"id"`
	Flow string `json:"flow"`
	*runner.Frame
}

// ContinueRequest is the optional body of POST /sessions/{id}/continue.
type ContinueRequest struct {
	Target string `json:"target,omitempty"`
}

// AnswerRequest is the body of POST /sessions/{id}/answer.
type AnswerRequest struct {
	Value any `json:"value"`
}

// CreateSession handles POST /flows/{name}/sessions.
func (s *Server) CreateSession(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	sess, err := s.Sessions.Create(r.Context(), name)
	if err != nil {
		s.fail(w, "create session", err)
		return
	}
	s.navigate(w, r, sess.ID, http.StatusCreated, nil)
}

// ListSessions handles GET /sessions.
func (s *Server) ListSessions(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string][]string{"sessions": s.Sessions.List()})
}

// GetSession handles GET /sessions/{id}.
func (s *Server) GetSession(w http.ResponseWriter, r *http.Request) {
	s.navigate(w, r, chi.URLParam(r, "id"), http.StatusOK, nil)
}

// DeleteSession handles DELETE /sessions/{id}.
func (s *Server) DeleteSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.Sessions.Delete(r.Context(), id); err != nil {
		s.fail(w, "delete session", err)
		return
	}
	s.Streams.Close(id)
	w.WriteHeader(http.StatusNoContent)
}

// Continue handles POST /sessions/{id}/continue.
func (s *Server) Continue(w http.ResponseWriter, r *http.Request) {
	var body ContinueRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			s.badRequest(w, err)
			return
		}
	}
	s.navigate(w, r, chi.URLParam(r, "id"), http.StatusOK, &runner.Move{Target: body.Target})
}

// Back handles POST /sessions/{id}/back.
func (s *Server) Back(w http.ResponseWriter, r *http.Request) {
	s.navigate(w, r, chi.URLParam(r, "id"), http.StatusOK, &runner.Move{Back: true})
}

// Answer handles POST /sessions/{id}/answer. Non-string values are
// submitted in their JSON form.
func (s *Server) Answer(w http.ResponseWriter, r *http.Request) {
	var body AnswerRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.badRequest(w, err)
		return
	}
	raw, err := answerText(body.Value)
	if err != nil {
		s.badRequest(w, err)
		return
	}
	s.navigate(w, r, chi.URLParam(r, "id"), http.StatusOK, &runner.Move{Answer: &raw})
}

// GetGraph handles GET /sessions/{id}/graph, returning Mermaid source with
// the walk so far highlighted.
func (s *Server) GetGraph(w http.ResponseWriter, r *http.Request) {
	var out string
	err := s.Sessions.Do(r.Context(), chi.URLParam(r, "id"), func(_ context.Context, sess *session.Session) error {
		conv := sess.Conversation
		trail := conv.Breadcrumbs()
		if cur := conv.Current(); cur != nil {
			trail = append(trail, cur)
		}
		out = graph.GenerateMermaid(conv.Flow(), graph.OverlayOf(trail))
		return nil
	})
	if err != nil {
		s.fail(w, "graph", err)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte(out))
}

// GetHealth handles GET /health.
func (s *Server) GetHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// GetInfo handles GET /info.
func (s *Server) GetInfo(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{
		"app":     "flowtalk-http",
		"version": strings.TrimSpace(s.Version),
	})
}

// navigate applies move (if any) to the session and writes its frame.
func (s *Server) navigate(w http.ResponseWriter, r *http.Request, id string, status int, move *runner.Move) {
	var resp SessionResponse
	err := s.Sessions.Do(r.Context(), id, func(ctx context.Context, sess *session.Session) error {
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
		resp = SessionResponse{ID: sess.ID, Flow: sess.Flow, Frame: frame}
		return nil
	})
	if err != nil {
		s.fail(w, "navigate", err)
		return
	}
	s.writeJSON(w, status, resp)
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

func statusOf(err error) int {
	switch {
	case errors.Is(err, domain.ErrSessionNotFound), errors.Is(err, domain.ErrFlowNotFound):
		return http.StatusNotFound
	case errors.Is(err, modules.ErrInvalidAnswer),
		errors.Is(err, modules.ErrNotAnswerable),
		errors.Is(err, runner.ErrUnknownTarget):
		return http.StatusUnprocessableEntity
	case errors.Is(err, runner.ErrInputTooLarge), errors.Is(err, runner.ErrInvalidUTF8):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrNoStartFound), errors.Is(err, domain.ErrGraphTypeMismatch):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) fail(w http.ResponseWriter, op string, err error) {
	status := statusOf(err)
	if status >= http.StatusInternalServerError {
		s.Logger.Error("request failed", "op", op, "err", err)
	} else {
		s.Logger.Debug("request rejected", "op", op, "status", status, "err", err)
	}
	s.writeJSON(w, status, map[string]string{"error": err.Error()})
}

func (s *Server) badRequest(w http.ResponseWriter, err error) {
	s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": fmt.Sprintf("invalid request body: %v", err)})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.Logger.Error("response encode failed", "err", err)
	}
}
