package runtime

import (
	"log/slog"

	"github.com/aretw0/flowtalk/internal/logging"
	"github.com/aretw0/flowtalk/pkg/domain"
	"github.com/aretw0/flowtalk/pkg/ports"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/aretw0/flowtalk"

// config is shared by a conversation and every subroutine it spawns.
type config struct {
	modules   ports.ModuleResolver
	loader    ports.FlowLoader
	logger    *slog.Logger
	tracer    trace.Tracer
	startID   string
	observers []domain.Observer
}

// Option configures a Conversation.
type Option func(*config)

// WithModuleResolver sets how string module references are resolved.
func WithModuleResolver(r ports.ModuleResolver) Option {
	return func(c *config) {
		c.modules = r
	}
}

// WithLoader sets the loader used for subroutine src locators.
func WithLoader(l ports.FlowLoader) Option {
	return func(c *config) {
		c.loader = l
	}
}

// WithLogger sets a custom structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *config) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithTracer sets the tracer used for navigation spans.
func WithTracer(t trace.Tracer) Option {
	return func(c *config) {
		if t != nil {
			c.tracer = t
		}
	}
}

// WithStartID forces the starting vertex, bypassing readiness checks.
func WithStartID(id string) Option {
	return func(c *config) {
		c.startID = id
	}
}

// WithObserver subscribes o before the conversation starts, so it sees "start".
func WithObserver(o domain.Observer) Option {
	return func(c *config) {
		c.observers = append(c.observers, o)
	}
}

func newConfig(opts []Option) *config {
	cfg := &config{
		logger: logging.NewNop(),
		tracer: otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}
