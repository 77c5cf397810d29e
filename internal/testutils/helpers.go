package testutils

import (
	"context"
	"errors"
	"sync"

	"github.com/aretw0/flowtalk/pkg/domain"
)

// Hook is a scriptable domain.StepHook for engine tests.
type Hook struct {
	mu sync.Mutex

	ready    bool
	complete bool
	// completeAfter makes IsComplete true from the n-th call on (0 disables).
	completeAfter int
	validation    error
	readyErr      error

	readyCalls    int
	completeCalls int
	renders       int
}

// NewHook returns a hook that is ready and not complete.
func NewHook() *Hook {
	return &Hook{ready: true}
}

// Done returns a hook that is ready and complete.
func Done() *Hook {
	return &Hook{ready: true, complete: true}
}

// NotReady returns a hook that refuses to be entered.
func NotReady() *Hook {
	return &Hook{}
}

// SetReady changes readiness.
func (h *Hook) SetReady(v bool) *Hook {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.ready = v
	return h
}

// SetComplete changes completion.
func (h *Hook) SetComplete(v bool) *Hook {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.complete = v
	return h
}

// CompleteAfter makes the hook complete from its n-th IsComplete call on.
func (h *Hook) CompleteAfter(n int) *Hook {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.completeAfter = n
	return h
}

// FailValidation makes IsComplete(throwOnError=true) return err.
func (h *Hook) FailValidation(err error) *Hook {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.validation = err
	return h
}

// FailReady makes IsReady return err.
func (h *Hook) FailReady(err error) *Hook {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.readyErr = err
	return h
}

func (h *Hook) IsReady(context.Context) (bool, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.readyCalls++
	if h.readyErr != nil {
		return false, h.readyErr
	}
	return h.ready, nil
}

func (h *Hook) IsComplete(_ context.Context, throwOnError bool) (bool, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.completeCalls++
	if h.validation != nil {
		if throwOnError {
			return false, h.validation
		}
		return false, nil
	}
	if h.completeAfter > 0 && h.completeCalls >= h.completeAfter {
		return true, nil
	}
	return h.complete, nil
}

func (h *Hook) Render(_ context.Context, props domain.RenderProps) (any, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.renders++
	return props.Values, nil
}

// ReadyCalls returns how many times IsReady ran.
func (h *Hook) ReadyCalls() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.readyCalls
}

// CompleteCalls returns how many times IsComplete ran.
func (h *Hook) CompleteCalls() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.completeCalls
}

// Renders returns how many times Render ran.
func (h *Hook) Renders() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.renders
}

// Factory returns a factory yielding h on every resolution.
func (h *Hook) Factory() domain.Factory {
	return func(context.Context, domain.StepProps) (domain.StepHook, error) {
		return h, nil
	}
}

// ErrValidation is a canned step validation error.
var ErrValidation = errors.New("validation failed")

// FlowBuilder assembles conversation graphs for tests.
type FlowBuilder struct {
	flow *domain.Flow
}

// NewFlow starts an empty conversation graph.
func NewFlow() *FlowBuilder {
	return &FlowBuilder{flow: &domain.Flow{
		Type:     domain.FlowTypeConversation,
		Vertices: make(map[string]*domain.Vertex),
	}}
}

func (b *FlowBuilder) add(id string, kind domain.VertexKind, props domain.Props) *FlowBuilder {
	b.flow.Vertices[id] = &domain.Vertex{ID: id, Kind: kind, Text: id, Props: props}
	b.flow.Order = append(b.flow.Order, id)
	return b
}

// Entry adds an entry vertex backed by h.
func (b *FlowBuilder) Entry(id string, h *Hook) *FlowBuilder {
	return b.add(id, domain.VertexEntry, domain.Props{Factory: h.Factory()})
}

// Step adds a normal vertex backed by h.
func (b *FlowBuilder) Step(id string, h *Hook) *FlowBuilder {
	return b.add(id, domain.VertexNormal, domain.Props{Factory: h.Factory()})
}

// Module adds a normal vertex referencing a registry module.
func (b *FlowBuilder) Module(id, module, key string, values map[string]any) *FlowBuilder {
	return b.add(id, domain.VertexNormal, domain.Props{Module: module, Key: key, Values: values})
}

// Subroutine adds a subroutine vertex with an inline nested flow.
func (b *FlowBuilder) Subroutine(id string, nested *domain.Flow) *FlowBuilder {
	return b.add(id, domain.VertexSubroutine, domain.Props{Flow: nested})
}

// SubroutineSrc adds a subroutine vertex with an external locator.
func (b *FlowBuilder) SubroutineSrc(id, src string) *FlowBuilder {
	return b.add(id, domain.VertexSubroutine, domain.Props{Src: src})
}

// Edge adds a directed edge.
func (b *FlowBuilder) Edge(start, end string) *FlowBuilder {
	b.flow.Edges = append(b.flow.Edges, domain.Edge{Start: start, End: end, Type: "arrow_point", Stroke: "normal"})
	return b
}

// LabeledEdge adds a directed edge with a label.
func (b *FlowBuilder) LabeledEdge(start, end, text string) *FlowBuilder {
	b.flow.Edges = append(b.flow.Edges, domain.Edge{Start: start, End: end, Type: "arrow_point", Stroke: "normal", Text: text})
	return b
}

// Build returns the graph.
func (b *FlowBuilder) Build() *domain.Flow {
	return b.flow
}

// Recorder is an observer that remembers every notification.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

// Event is one recorded notification.
type Event struct {
	Action string
	StepID string
}

func (r *Recorder) Notify(action string, step *domain.Step) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, Event{Action: action, StepID: domain.StepID(step)})
}

// Events returns a copy of the recorded notifications.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

// Last returns the latest notification.
func (r *Recorder) Last() Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.events) == 0 {
		return Event{}
	}
	return r.events[len(r.events)-1]
}
