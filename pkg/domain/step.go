package domain

import "context"

// StepHook is the capability a behavior module yields for a visited vertex.
type StepHook interface {
	// IsReady reports whether the step may be entered. It may perform
	// external prerequisite checks.
	IsReady(ctx context.Context) (bool, error)

	// IsComplete reports whether the step is done. With throwOnError set,
	// a step may return its validation error instead of just false.
	IsComplete(ctx context.Context, throwOnError bool) (bool, error)

	// Render produces the step's view.
	Render(ctx context.Context, props RenderProps) (any, error)
}

// Controller is the navigation surface a step may call back into.
// It grants capability access only; steps never own the conversation.
type Controller interface {
	Continue(ctx context.Context, id string) (*Step, error)
	Back(ctx context.Context) (*Step, error)
	Get(ctx context.Context, id string) (*Step, error)
}

// Composite is a StepHook that is itself a whole conversation (a subroutine).
// The engine dispatches on this capability set, never on a concrete type.
type Composite interface {
	StepHook
	Controller
	Subscribe(o Observer)
	Unsubscribe(o Observer)
}

// StepProps is what a behavior module is invoked with.
type StepProps struct {
	ID   string
	Text string

	// Values are the vertex's merged free-form properties.
	Values map[string]any

	// Conversation is the conversation visiting the vertex.
	Conversation Controller
}

// Factory instantiates a step hook. It plays the role of a loadable behavior module.
type Factory func(ctx context.Context, props StepProps) (StepHook, error)

// Step is the runtime materialization of a visited vertex.
// A new Step is resolved on every visit.
type Step struct {
	ID     string
	Vertex *Vertex
	Edges  Adjacency
	Hook   StepHook
}

// Composite returns the step's hook as a nested conversation, if it is one.
func (s *Step) Composite() (Composite, bool) {
	if s == nil || s.Hook == nil {
		return nil, false
	}
	c, ok := s.Hook.(Composite)
	return c, ok
}

// StepID returns the id of s, or "" for a nil step.
func StepID(s *Step) string {
	if s == nil {
		return ""
	}
	return s.ID
}
