// Package multi routes flow locators to loaders by scheme.
package multi

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/aretw0/flowtalk/pkg/domain"
	"github.com/aretw0/flowtalk/pkg/ports"
)

// Router implements ports.FlowLoader by dispatching "scheme:name" locators,
// such as "redis:onboarding" or "file:support/faq.yaml", to the loader
// registered for the scheme. Locators without a known scheme go to the
// fallback loader unchanged.
type Router struct {
	loaders  map[string]ports.FlowLoader
	fallback ports.FlowLoader
}

type Option func(*Router)

// WithLoader registers l for scheme.
func WithLoader(scheme string, l ports.FlowLoader) Option {
	return func(r *Router) {
		r.loaders[scheme] = l
	}
}

// WithFallback sets the loader for locators without a registered scheme.
func WithFallback(l ports.FlowLoader) Option {
	return func(r *Router) {
		r.fallback = l
	}
}

// New creates a router.
func New(opts ...Option) *Router {
	r := &Router{loaders: make(map[string]ports.FlowLoader)}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Load resolves src with the loader its scheme names.
func (r *Router) Load(ctx context.Context, src string) (*domain.Flow, error) {
	if scheme, rest, ok := strings.Cut(src, ":"); ok {
		if l, found := r.loaders[scheme]; found {
			return l.Load(ctx, rest)
		}
	}
	if r.fallback == nil {
		return nil, fmt.Errorf("%w: no loader for %q", domain.ErrNoLoader, src)
	}
	return r.fallback.Load(ctx, src)
}

// Schemes returns the registered schemes in lexical order.
func (r *Router) Schemes() []string {
	out := make([]string, 0, len(r.loaders))
	for s := range r.loaders {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}
