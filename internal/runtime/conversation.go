package runtime

import (
	"context"
	"errors"
	"fmt"

	"github.com/aretw0/flowtalk/pkg/domain"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Status is the lifecycle phase of a Conversation.
type Status string

const (
	StatusInitializing Status = "initializing"
	StatusReady        Status = "ready"
	StatusDone         Status = "done"
)

// Conversation is a stateful walk over a Flow. It is the Facade over the
// continuation: callers drive it with Continue and Back, and every
// transition is fanned out to the subscribed observers.
//
// A Conversation tolerates one outstanding navigation call at a time;
// concurrent readers see a consistent, possibly stale, position.
type Conversation struct {
	flow      *domain.Flow
	parent    *Conversation
	observers *observerSet
	cfg       *config

	machine  *continuation
	startErr error
}

var _ domain.Composite = (*Conversation)(nil)

// New creates a conversation over flow and selects its start step.
// A flow that is not a conversation graph fails with domain.ErrGraphTypeMismatch.
// Start selection failures (including domain.ErrNoStartFound) do not fail
// construction; they surface from IsReady and every navigation call.
func New(ctx context.Context, flow *domain.Flow, opts ...Option) (*Conversation, error) {
	cfg := newConfig(opts)
	observers := &observerSet{}
	for _, o := range cfg.observers {
		observers.add(o)
	}
	return newConversation(ctx, flow, cfg, nil, observers)
}

func newConversation(ctx context.Context, flow *domain.Flow, cfg *config, parent *Conversation, observers *observerSet) (*Conversation, error) {
	if !flow.IsConversation() {
		typ := "<nil>"
		if flow != nil {
			typ = flow.Type
		}
		return nil, fmt.Errorf("%w: got type %q", domain.ErrGraphTypeMismatch, typ)
	}

	c := &Conversation{
		flow:      flow,
		parent:    parent,
		observers: observers,
		cfg:       cfg,
	}

	if _, err := c.FindStart(ctx, cfg.startID); err != nil {
		c.startErr = err
		c.cfg.logger.DebugContext(ctx, "no start step", "err", err)
	}
	return c, nil
}

// FindStart selects and adopts the start step. An explicit id naming a vertex
// is trusted without a readiness check; otherwise the first ready entry
// candidate wins. Only a root conversation notifies "start".
// It is called once by New and fails with domain.ErrAlreadyStarted afterwards.
func (c *Conversation) FindStart(ctx context.Context, explicitID string) (*domain.Step, error) {
	if c.machine != nil {
		return nil, domain.ErrAlreadyStarted
	}

	ctx, span := c.cfg.tracer.Start(ctx, "conversation.find_start",
		trace.WithAttributes(attribute.String("start.explicit", explicitID)))
	defer span.End()

	start, err := c.selectStart(ctx, explicitID)
	if err != nil {
		recordError(span, err)
		return nil, err
	}

	c.machine = newContinuation(start, c.resolve)
	c.startErr = nil
	span.SetAttributes(attribute.String("start.id", start.ID))
	c.cfg.logger.DebugContext(ctx, "conversation started", "start", start.ID, "nested", c.parent != nil)

	if c.parent == nil {
		c.observers.notify(domain.ActionStart, start)
	}
	return start, nil
}

func (c *Conversation) selectStart(ctx context.Context, explicitID string) (*domain.Step, error) {
	if explicitID != "" {
		step, err := c.resolve(ctx, explicitID)
		if err == nil {
			return step, nil
		}
		if !errors.Is(err, domain.ErrUnknownVertex) {
			return nil, err
		}
		c.cfg.logger.WarnContext(ctx, "explicit start is not in the graph", "start", explicitID)
	}

	for _, id := range c.flow.Entries() {
		step, err := c.resolve(ctx, id)
		if errors.Is(err, domain.ErrUnknownVertex) {
			continue
		}
		if err != nil {
			return nil, err
		}

		ready, err := step.Hook.IsReady(ctx)
		if err != nil {
			return nil, err
		}
		if ready {
			return step, nil
		}
	}
	return nil, domain.ErrNoStartFound
}

// Continue advances the conversation. With a non-empty id it jumps straight
// to that vertex. See continueFrom.
func (c *Conversation) Continue(ctx context.Context, id string) (*domain.Step, error) {
	return c.continueFrom(ctx, id, false)
}

// continueFrom implements Continue. When the current step is a nested
// conversation and the call did not come from it, the child is asked first and
// any step it yields is returned as is. When this walk is exhausted the call
// bubbles to the parent; at the root it notifies "done" and yields nil.
func (c *Conversation) continueFrom(ctx context.Context, target string, fromChild bool) (*domain.Step, error) {
	if err := c.ready(); err != nil {
		return nil, err
	}

	ctx, span := c.cfg.tracer.Start(ctx, "conversation.continue", trace.WithAttributes(
		attribute.String("target", target),
		attribute.Bool("from_child", fromChild),
	))
	defer span.End()

	from, exhaustedBefore := c.machine.position()

	if child, ok := from.Composite(); ok && !fromChild {
		step, err := child.Continue(ctx, target)
		if err != nil {
			recordError(span, err)
			return nil, err
		}
		if step != nil {
			return step, nil
		}
		// The child bubbled up into this walk and it finished there.
		if !exhaustedBefore && c.machine.isExhausted() {
			return nil, nil
		}
	}

	step, err := c.machine.advance(ctx, target)
	if err != nil {
		recordError(span, err)
		return nil, err
	}

	if c.machine.isExhausted() {
		if c.parent != nil {
			c.cfg.logger.DebugContext(ctx, "subroutine exhausted, resuming parent", "from", domain.StepID(from))
			return c.parent.continueFrom(ctx, target, true)
		}
		c.cfg.logger.DebugContext(ctx, "conversation done", "from", domain.StepID(from))
		c.observers.notify(domain.ActionDone, nil)
		return nil, nil
	}

	if step == nil {
		c.cfg.logger.WarnContext(ctx, "continue target is not in the graph", "target", target)
		return nil, nil
	}

	action := domain.ActionContinue
	if target != "" {
		action = target
	}
	span.SetAttributes(attribute.String("step.id", step.ID))
	c.cfg.logger.DebugContext(ctx, "navigated", "action", action, "from", domain.StepID(from), "to", step.ID)
	c.observers.notify(action, step)
	return step, nil
}

// Back steps to the previous step. See backFrom.
func (c *Conversation) Back(ctx context.Context) (*domain.Step, error) {
	return c.backFrom(ctx, false)
}

// backFrom implements Back. A nested current step is asked first; with an
// empty history the call bubbles to the parent, and at the root it is a no-op
// yielding nil.
func (c *Conversation) backFrom(ctx context.Context, fromChild bool) (*domain.Step, error) {
	if err := c.ready(); err != nil {
		return nil, err
	}

	ctx, span := c.cfg.tracer.Start(ctx, "conversation.back",
		trace.WithAttributes(attribute.Bool("from_child", fromChild)))
	defer span.End()

	from, _ := c.machine.position()

	if child, ok := from.Composite(); ok && !fromChild {
		step, err := child.Back(ctx)
		if err != nil {
			recordError(span, err)
			return nil, err
		}
		if step != nil {
			return step, nil
		}
	}

	step, ok := c.machine.pop()
	if !ok {
		if c.parent != nil {
			return c.parent.backFrom(ctx, true)
		}
		return nil, nil
	}

	span.SetAttributes(attribute.String("step.id", step.ID))
	c.cfg.logger.DebugContext(ctx, "navigated", "action", domain.ActionBack, "from", domain.StepID(from), "to", step.ID)
	c.observers.notify(domain.ActionBack, step)
	return step, nil
}

// Get returns the current step for an empty id. Otherwise it resolves id
// afresh without moving; an id outside the graph yields nil.
func (c *Conversation) Get(ctx context.Context, id string) (*domain.Step, error) {
	if id == "" {
		return c.Current(), nil
	}
	step, err := c.resolve(ctx, id)
	if errors.Is(err, domain.ErrUnknownVertex) {
		return nil, nil
	}
	return step, err
}

// IsReady reports whether a current step exists. Start selection failures are
// returned as the error.
func (c *Conversation) IsReady(context.Context) (bool, error) {
	if c.startErr != nil {
		return false, c.startErr
	}
	return c.Current() != nil, nil
}

// IsComplete re-checks the whole history: every breadcrumb and the current
// step are queried live on every call, so a revoked completion is seen.
// With throwOnError, step errors are joined and returned; otherwise they
// count as incomplete.
func (c *Conversation) IsComplete(ctx context.Context, throwOnError bool) (bool, error) {
	if err := c.ready(); err != nil {
		return false, err
	}

	steps := c.machine.history()
	if cur := c.Current(); cur != nil {
		steps = append(steps, cur)
	}

	complete := true
	var errs []error
	for _, s := range steps {
		ok, err := s.Hook.IsComplete(ctx, throwOnError)
		if err != nil {
			complete = false
			if throwOnError {
				errs = append(errs, &domain.VertexError{VertexID: s.ID, Err: err})
			}
			continue
		}
		if !ok {
			complete = false
		}
	}
	if len(errs) > 0 {
		return false, errors.Join(errs...)
	}
	return complete, nil
}

// Subscribe registers o. Registration is mirrored to the parent chain, which
// in practice shares one observer list, so o is held exactly once.
func (c *Conversation) Subscribe(o domain.Observer) {
	c.observers.add(o)
	if c.parent != nil && c.parent.observers != c.observers {
		c.parent.Subscribe(o)
	}
}

// Unsubscribe deregisters o here and up the parent chain.
func (c *Conversation) Unsubscribe(o domain.Observer) {
	c.observers.remove(o)
	if c.parent != nil && c.parent.observers != c.observers {
		c.parent.Unsubscribe(o)
	}
}

// Current returns the step awaiting action, or nil before start and after exhaustion.
func (c *Conversation) Current() *domain.Step {
	if c.machine == nil {
		return nil
	}
	cur, _ := c.machine.position()
	return cur
}

// Active returns the innermost current step, descending through nested
// conversations. It is what a user is actually looking at.
func (c *Conversation) Active(ctx context.Context) *domain.Step {
	step := c.Current()
	for {
		child, ok := step.Composite()
		if !ok {
			return step
		}
		inner, err := child.Get(ctx, "")
		if err != nil || inner == nil {
			return step
		}
		step = inner
	}
}

// Breadcrumbs returns the completed steps, oldest first.
func (c *Conversation) Breadcrumbs() []*domain.Step {
	if c.machine == nil {
		return nil
	}
	return c.machine.history()
}

// Flow returns the graph being walked.
func (c *Conversation) Flow() *domain.Flow { return c.flow }

// Parent returns the enclosing conversation of a subroutine, or nil at the root.
func (c *Conversation) Parent() *Conversation { return c.parent }

// Status reports the lifecycle phase.
func (c *Conversation) Status() Status {
	switch {
	case c.machine == nil:
		return StatusInitializing
	case c.machine.isExhausted():
		return StatusDone
	default:
		return StatusReady
	}
}

// Observers returns how many observers are subscribed.
func (c *Conversation) Observers() int { return c.observers.len() }

func (c *Conversation) ready() error {
	if c.machine == nil {
		if c.startErr != nil {
			return c.startErr
		}
		return domain.ErrNoStartFound
	}
	return nil
}

func recordError(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
