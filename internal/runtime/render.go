package runtime

import (
	"context"

	"github.com/aretw0/flowtalk/pkg/domain"
)

// Render renders the current step. A nested current step renders itself
// (and so applies props to its own current step). When props carries a
// Renderer, it receives the engine-assisted context: the step, the actions
// derived from its outgoing edges and bound Continue/Back helpers.
func (c *Conversation) Render(ctx context.Context, props domain.RenderProps) (any, error) {
	if err := c.ready(); err != nil {
		return nil, err
	}

	cur := c.Current()
	if cur == nil {
		return nil, nil
	}

	if child, ok := cur.Composite(); ok {
		return child.Render(ctx, props)
	}

	if props.Renderer != nil {
		return props.Renderer(ctx, domain.RenderContext{
			Step:     cur,
			Values:   props.Values,
			Actions:  c.actions(cur),
			Continue: c.Continue,
			Back:     c.Back,
		})
	}
	return cur.Hook.Render(ctx, props)
}

// Actions lists the navigation options out of the current step.
func (c *Conversation) Actions() []domain.Action {
	return c.actions(c.Current())
}

func (c *Conversation) actions(step *domain.Step) []domain.Action {
	if step == nil {
		return nil
	}
	actions := make([]domain.Action, 0, len(step.Edges.Outgoing))
	for _, e := range step.Edges.Outgoing {
		label := e.Text
		if label == "" {
			if v, ok := c.flow.Vertex(e.End); ok {
				label = v.Text
			}
		}
		if label == "" {
			label = e.End
		}
		actions = append(actions, domain.Action{
			Target: e.End,
			Label:  label,
			Type:   e.Type,
			Stroke: e.Stroke,
		})
	}
	return actions
}
