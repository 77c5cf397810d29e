package runner

import (
	"context"
	"errors"
	"fmt"

	"github.com/aretw0/flowtalk/internal/runtime"
	"github.com/aretw0/flowtalk/pkg/domain"
	"github.com/aretw0/flowtalk/pkg/modules"
)

// ErrUnknownTarget is returned when a jump names a vertex outside every
// graph of the conversation.
var ErrUnknownTarget = errors.New("unknown target")

// Move is one navigation request from a rich client (Web, MCP, etc).
type Move struct {
	// Target jumps to a vertex instead of following the edges.
	Target string `json:"target,omitempty"`
	// Answer is submitted to the active step before continuing.
	Answer *string `json:"answer,omitempty"`
	// Back steps back instead of continuing.
	Back bool `json:"back,omitempty"`
}

// Snapshot renders the conversation as it stands.
func Snapshot(ctx context.Context, conv *runtime.Conversation) (*Frame, error) {
	if conv.Status() == runtime.StatusDone {
		return &Frame{Done: true, Trail: trail(conv)}, nil
	}

	view, err := conv.Render(ctx, domain.RenderProps{})
	if err != nil {
		return nil, err
	}
	return &Frame{
		Step:    domain.StepID(conv.Active(ctx)),
		View:    view,
		Actions: activeActions(conv),
		Trail:   trail(conv),
	}, nil
}

// NavigateAndRender applies a move and renders the result.
// This ensures that rich clients always receive the view of the step they just entered.
func NavigateAndRender(ctx context.Context, conv *runtime.Conversation, move Move) (*Frame, error) {
	if err := Navigate(ctx, conv, move); err != nil {
		return nil, err
	}
	return Snapshot(ctx, conv)
}

// Navigate applies a move without rendering.
func Navigate(ctx context.Context, conv *runtime.Conversation, move Move) error {
	if move.Back {
		_, err := conv.Back(ctx)
		return err
	}

	if move.Answer != nil {
		clean, err := SanitizeInput(*move.Answer)
		if err != nil {
			return err
		}
		if err := modules.Submit(ctx, conv.Active(ctx), clean); err != nil {
			return err
		}
	}

	step, err := conv.Continue(ctx, move.Target)
	if err != nil {
		return err
	}
	if step == nil && move.Target != "" && conv.Status() != runtime.StatusDone {
		return fmt.Errorf("%w: %s", ErrUnknownTarget, move.Target)
	}
	return nil
}

// activeActions lists the options out of the innermost current step.
func activeActions(conv *runtime.Conversation) []domain.Action {
	inner := conv
	for {
		child, ok := inner.Current().Composite()
		if !ok {
			return inner.Actions()
		}
		next, ok := child.(*runtime.Conversation)
		if !ok || next.Current() == nil {
			return inner.Actions()
		}
		inner = next
	}
}

func trail(conv *runtime.Conversation) []string {
	crumbs := conv.Breadcrumbs()
	ids := make([]string, 0, len(crumbs))
	for _, s := range crumbs {
		ids = append(ids, s.ID)
	}
	return ids
}
