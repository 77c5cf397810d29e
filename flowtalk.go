package flowtalk

import (
	"context"
	_ "embed"
	"fmt"
	"log/slog"

	"github.com/aretw0/flowtalk/internal/runtime"
	"github.com/aretw0/flowtalk/pkg/domain"
	"github.com/aretw0/flowtalk/pkg/modules"
	"github.com/aretw0/flowtalk/pkg/ports"
	"github.com/aretw0/flowtalk/pkg/registry"
	"go.opentelemetry.io/otel/trace"
)

// Version is the release of this module.
//
//go:embed VERSION
var Version string

// Conversation is a live walk through a flow. Nested subroutines are
// Conversations too, reachable through Active and Parent.
type Conversation = runtime.Conversation

// Status is the lifecycle phase of a Conversation.
type Status = runtime.Status

// Conversation lifecycle phases.
const (
	StatusInitializing = runtime.StatusInitializing
	StatusReady        = runtime.StatusReady
	StatusDone         = runtime.StatusDone
)

type config struct {
	resolver ports.ModuleResolver
	board    *modules.Board
	runtime  []runtime.Option
}

// Option configures a Conversation built by New.
type Option func(*config)

// WithRegistry resolves string module references through reg.
func WithRegistry(reg *registry.Registry) Option {
	return WithModuleResolver(reg)
}

// WithModuleResolver resolves string module references through r,
// replacing the built-in modules.
func WithModuleResolver(r ports.ModuleResolver) Option {
	return func(c *config) {
		c.resolver = r
	}
}

// WithBoard shares the answer board of the built-in modules. It has no
// effect when a custom resolver is set.
func WithBoard(b *modules.Board) Option {
	return func(c *config) {
		c.board = b
	}
}

// WithLoader sets the loader used for subroutine src locators.
func WithLoader(l ports.FlowLoader) Option {
	return func(c *config) {
		c.runtime = append(c.runtime, runtime.WithLoader(l))
	}
}

// WithLogger sets a custom structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *config) {
		c.runtime = append(c.runtime, runtime.WithLogger(logger))
	}
}

// WithTracer sets the tracer used for navigation spans.
func WithTracer(t trace.Tracer) Option {
	return func(c *config) {
		c.runtime = append(c.runtime, runtime.WithTracer(t))
	}
}

// WithStartID forces the starting vertex, bypassing readiness checks.
func WithStartID(id string) Option {
	return func(c *config) {
		c.runtime = append(c.runtime, runtime.WithStartID(id))
	}
}

// WithObserver subscribes o before the conversation starts, so it sees "start".
func WithObserver(o domain.Observer) Option {
	return func(c *config) {
		c.runtime = append(c.runtime, runtime.WithObserver(o))
	}
}

// New starts a conversation over flow. Unless WithModuleResolver or
// WithRegistry is given, vertices resolve against the built-in modules.
func New(ctx context.Context, flow *domain.Flow, opts ...Option) (*Conversation, error) {
	cfg := &config{}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.resolver == nil {
		if cfg.board == nil {
			cfg.board = modules.NewBoard()
		}
		cfg.resolver = modules.Builtins(cfg.board)
	}
	return runtime.New(ctx, flow, append([]runtime.Option{runtime.WithModuleResolver(cfg.resolver)}, cfg.runtime...)...)
}

// Open loads the flow name through loader and starts a conversation over it.
// Subroutine src locators resolve through the same loader.
func Open(ctx context.Context, loader ports.FlowLoader, name string, opts ...Option) (*Conversation, error) {
	flow, err := loader.Load(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("load flow %q: %w", name, err)
	}
	return New(ctx, flow, append([]Option{WithLoader(loader)}, opts...)...)
}
