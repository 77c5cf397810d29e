package runtime

import (
	"context"
	"fmt"
	"maps"

	"github.com/aretw0/flowtalk/pkg/domain"
)

// resolve materializes vertex id as a fresh Step. Steps are never cached:
// a revisited vertex re-instantiates its module.
func (c *Conversation) resolve(ctx context.Context, id string) (*domain.Step, error) {
	v, ok := c.flow.Vertex(id)
	if !ok {
		return nil, &domain.VertexError{VertexID: id, Err: domain.ErrUnknownVertex}
	}

	hook, err := c.instantiate(ctx, v)
	if err != nil {
		return nil, &domain.VertexError{VertexID: id, Err: err}
	}

	return &domain.Step{
		ID:     id,
		Vertex: v,
		Edges:  c.flow.EdgesOf(id),
		Hook:   hook,
	}, nil
}

func (c *Conversation) instantiate(ctx context.Context, v *domain.Vertex) (domain.StepHook, error) {
	if v.IsSubroutine() {
		return c.subroutine(ctx, v)
	}

	factory := v.Props.Factory
	if factory == nil {
		if v.Props.Module == "" {
			return nil, fmt.Errorf("%w: vertex declares no module", domain.ErrModuleResolution)
		}
		if c.cfg.modules == nil {
			return nil, fmt.Errorf("%w: no module resolver for %q", domain.ErrModuleResolution, v.Props.Module)
		}
		var err error
		factory, err = c.cfg.modules.Resolve(ctx, v.Props.Module, v.Props.Key)
		if err != nil {
			return nil, err
		}
	}

	values := make(map[string]any, len(v.Props.Values))
	maps.Copy(values, v.Props.Values)

	hook, err := factory(ctx, domain.StepProps{
		ID:           v.ID,
		Text:         v.Text,
		Values:       values,
		Conversation: c,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrModuleResolution, err)
	}
	if hook == nil {
		return nil, fmt.Errorf("%w: module %q returned no hook", domain.ErrModuleResolution, v.Props.Module)
	}
	return hook, nil
}

// subroutine builds the nested conversation of v. It shares this
// conversation's observers and configuration, and points back to it as parent.
func (c *Conversation) subroutine(ctx context.Context, v *domain.Vertex) (domain.StepHook, error) {
	flow := v.Props.Flow
	if flow == nil {
		if v.Props.Src == "" {
			return nil, domain.ErrMissingSubroutineSource
		}
		if c.cfg.loader == nil {
			return nil, fmt.Errorf("%w: cannot load %q", domain.ErrNoLoader, v.Props.Src)
		}
		var err error
		flow, err = c.cfg.loader.Load(ctx, v.Props.Src)
		if err != nil {
			return nil, fmt.Errorf("loading subroutine %q: %w", v.Props.Src, err)
		}
	}

	child := &config{
		modules: c.cfg.modules,
		loader:  c.cfg.loader,
		logger:  c.cfg.logger.With("subroutine", v.ID),
		tracer:  c.cfg.tracer,
	}
	return newConversation(ctx, flow, child, c, c.observers)
}
