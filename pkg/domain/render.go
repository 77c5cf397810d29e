package domain

import "context"

// Renderer replaces a step's own Render when supplied through RenderProps.
type Renderer func(ctx context.Context, rc RenderContext) (any, error)

// RenderProps is forwarded to Render.
type RenderProps struct {
	// Renderer, when set, receives the render context instead of the step.
	Renderer Renderer
	Values   map[string]any
}

// Action is a navigation option derived from an outgoing edge.
type Action struct {
	Target string `json:"target"`
	Label  string `json:"label,omitempty"`
	Type   string `json:"type,omitempty"`
	Stroke string `json:"stroke,omitempty"`
}

// RenderContext is the engine-assisted view handed to a Renderer.
type RenderContext struct {
	Step    *Step
	Values  map[string]any
	Actions []Action

	Continue func(ctx context.Context, id string) (*Step, error)
	Back     func(ctx context.Context) (*Step, error)
}
