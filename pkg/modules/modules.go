package modules

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/aretw0/flowtalk/pkg/domain"
	"github.com/aretw0/flowtalk/pkg/registry"
	"github.com/aretw0/flowtalk/pkg/schema"
	"github.com/mitchellh/mapstructure"
)

// Module names registered by Builtins.
const (
	Message = "message"
	Prompt  = "prompt"
	Confirm = "confirm"
	Gate    = "gate"
)

var (
	// ErrInvalidAnswer wraps answers rejected by a prompt's type.
	ErrInvalidAnswer = errors.New("invalid answer")
	// ErrNotAnswerable is returned when submitting to a step that takes no input.
	ErrNotAnswerable = errors.New("step does not take answers")
	// ErrUnanswered is returned by IsComplete(throwOnError) on a prompt with no answer yet.
	ErrUnanswered = errors.New("not answered yet")
)

// Answerable is a step accepting raw user input.
type Answerable interface {
	Answer(ctx context.Context, raw string) error
}

// Retractable is a step whose answer can be withdrawn, revoking its completion.
type Retractable interface {
	Retract(ctx context.Context)
}

// View is what the built-in modules render.
type View struct {
	Kind    string   `json:"kind"`
	ID      string   `json:"id"`
	Text    string   `json:"text,omitempty"`
	Type    string   `json:"type,omitempty"`
	Choices []string `json:"choices,omitempty"`
	Answer  any      `json:"answer,omitempty"`
	Error   string   `json:"error,omitempty"`
}

// options are the vertex values understood by the built-ins.
type options struct {
	When     string   `mapstructure:"when"`
	Auto     bool     `mapstructure:"auto"`
	Type     string   `mapstructure:"type"`
	Choices  []string `mapstructure:"choices"`
	Optional bool     `mapstructure:"optional"`
}

// Builtins returns a registry with every built-in module bound to board.
func Builtins(board *Board) *registry.Registry {
	reg := registry.New()
	Register(reg, board, NewEvaluator())
	return reg
}

// Register adds the built-in modules to reg.
func Register(reg *registry.Registry, board *Board, eval *Evaluator) {
	reg.Register(Message, newFactory(board, eval, newMessage))
	reg.Register(Prompt, newFactory(board, eval, newPrompt))
	reg.Register(Confirm, newFactory(board, eval, newConfirm))
	reg.Register(Gate, newFactory(board, eval, newGate))
}

type constructor func(b *base, opts options) (domain.StepHook, error)

func newFactory(board *Board, eval *Evaluator, build constructor) domain.Factory {
	return func(_ context.Context, props domain.StepProps) (domain.StepHook, error) {
		var opts options
		if err := mapstructure.WeakDecode(props.Values, &opts); err != nil {
			return nil, fmt.Errorf("step %q: %w", props.ID, err)
		}
		if opts.When != "" {
			if err := eval.Compile(opts.When); err != nil {
				return nil, fmt.Errorf("step %q: %w", props.ID, err)
			}
		}
		return build(&base{props: props, board: board, eval: eval, when: opts.When}, opts)
	}
}

// base carries what every built-in shares: identity, the board and readiness.
type base struct {
	props domain.StepProps
	board *Board
	eval  *Evaluator
	when  string
}

func (b *base) IsReady(context.Context) (bool, error) {
	if b.when == "" {
		return true, nil
	}
	return b.eval.Holds(b.when, b.board.Snapshot())
}

// text expands ${id} references to collected answers.
func (b *base) text() string {
	return os.Expand(b.props.Text, func(key string) string {
		if v, ok := b.board.Get(key); ok {
			return fmt.Sprint(v)
		}
		return ""
	})
}

func (b *base) view(kind string) View {
	v := View{Kind: kind, ID: b.props.ID, Text: b.text()}
	if answer, ok := b.board.Get(b.props.ID); ok {
		v.Answer = answer
	}
	return v
}

type message struct {
	*base
	auto bool
}

func newMessage(b *base, opts options) (domain.StepHook, error) {
	return &message{base: b, auto: opts.Auto}, nil
}

func (m *message) IsComplete(context.Context, bool) (bool, error) {
	if m.auto {
		return true, nil
	}
	_, acked := m.board.Get(m.props.ID)
	return acked, nil
}

func (m *message) Render(context.Context, domain.RenderProps) (any, error) {
	v := m.view(Message)
	v.Answer = nil
	return v, nil
}

// Answer acknowledges the message; the input itself is ignored.
func (m *message) Answer(context.Context, string) error {
	m.board.Set(m.props.ID, true)
	return nil
}

type prompt struct {
	*base
	kind     string
	typ      schema.Type
	optional bool
	lastErr  error
}

func newPrompt(b *base, opts options) (domain.StepHook, error) {
	typ, err := promptType(opts)
	if err != nil {
		return nil, fmt.Errorf("step %q: %w", b.props.ID, err)
	}
	return &prompt{base: b, kind: Prompt, typ: typ, optional: opts.Optional}, nil
}

func newConfirm(b *base, opts options) (domain.StepHook, error) {
	return &prompt{base: b, kind: Confirm, typ: schema.Bool(), optional: opts.Optional}, nil
}

func promptType(opts options) (schema.Type, error) {
	if len(opts.Choices) > 0 {
		return schema.Enum(opts.Choices...), nil
	}
	return schema.ParseType(opts.Type)
}

// IsComplete re-validates the stored answer on every call, so a retracted or
// externally changed answer revokes completion.
func (p *prompt) IsComplete(_ context.Context, throwOnError bool) (bool, error) {
	value, ok := p.board.Get(p.props.ID)
	if !ok {
		if throwOnError {
			if p.lastErr != nil {
				return false, p.lastErr
			}
			return false, ErrUnanswered
		}
		return false, nil
	}
	if value == nil && p.optional {
		return true, nil
	}
	if err := p.typ.Validate(value); err != nil {
		if throwOnError {
			return false, fmt.Errorf("%w: %w", ErrInvalidAnswer, err)
		}
		return false, nil
	}
	return true, nil
}

func (p *prompt) Render(context.Context, domain.RenderProps) (any, error) {
	v := p.view(p.kind)
	v.Type = p.typ.Name()
	if enum, ok := p.typ.(*schema.EnumType); ok {
		v.Choices = enum.Choices()
	}
	if p.lastErr != nil {
		v.Error = p.lastErr.Error()
	}
	return v, nil
}

// Answer coerces raw into the prompt's type and records it. A rejected answer
// is kept as the prompt's error and leaves any previous answer in place.
func (p *prompt) Answer(_ context.Context, raw string) error {
	if raw == "" && p.optional {
		p.board.Set(p.props.ID, nil)
		p.lastErr = nil
		return nil
	}
	value, err := p.typ.Coerce(raw)
	if err != nil {
		p.lastErr = fmt.Errorf("%w: %w", ErrInvalidAnswer, err)
		return p.lastErr
	}
	p.board.Set(p.props.ID, value)
	p.lastErr = nil
	return nil
}

func (p *prompt) Retract(context.Context) {
	p.board.Delete(p.props.ID)
}

type gate struct {
	*base
}

func newGate(b *base, _ options) (domain.StepHook, error) {
	return &gate{base: b}, nil
}

func (g *gate) IsComplete(context.Context, bool) (bool, error) { return true, nil }

func (g *gate) Render(context.Context, domain.RenderProps) (any, error) {
	return g.view(Gate), nil
}

// Submit hands raw input to the step, if it takes any.
func Submit(ctx context.Context, step *domain.Step, raw string) error {
	if step == nil {
		return ErrNotAnswerable
	}
	a, ok := step.Hook.(Answerable)
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotAnswerable, step.ID)
	}
	return a.Answer(ctx, raw)
}
