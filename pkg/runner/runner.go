package runner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/aretw0/flowtalk/internal/logging"
	"github.com/aretw0/flowtalk/internal/runtime"
	"github.com/aretw0/flowtalk/pkg/domain"
	"github.com/aretw0/flowtalk/pkg/modules"
)

// ErrInterrupted is returned when a signal stops the loop while waiting for input.
var ErrInterrupted = errors.New("interrupted")

const helpText = "commands: :back, :goto <id>, :quit, :help"

// Runner handles the interaction loop over a Conversation using the
// provided IOHandler. This allows for easy testing and integration with
// different frontends (CLI, TUI, JSON pipes).
type Runner struct {
	Handler IOHandler
	Logger  *slog.Logger
}

// Option defines a functional option for configuring the Runner.
type Option func(*Runner)

// WithInputHandler configures a custom IOHandler.
func WithInputHandler(handler IOHandler) Option {
	return func(r *Runner) {
		r.Handler = handler
	}
}

// WithLogger configures the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Runner) {
		r.Logger = logger
	}
}

// New creates a Runner reading Stdin and writing Stdout unless configured otherwise.
func New(opts ...Option) *Runner {
	r := &Runner{Logger: logging.NewNop()}
	for _, opt := range opts {
		opt(r)
	}
	if r.Handler == nil {
		r.Handler = NewTextHandler(os.Stdin, os.Stdout)
	}
	return r
}

// Run drives conv until it is done, the input ends or the user quits.
func (r *Runner) Run(ctx context.Context, conv *runtime.Conversation) error {
	if ok, err := conv.IsReady(ctx); err != nil || !ok {
		if err == nil {
			err = domain.ErrNoStartFound
		}
		return err
	}

	signals := NewSignalManager(ctx)
	defer signals.Stop()

	var shown *domain.Step
	redraw := true
	for {
		sctx := signals.Context()

		if conv.Status() == runtime.StatusDone {
			frame, err := Snapshot(sctx, conv)
			if err != nil {
				return err
			}
			return r.Handler.Output(sctx, frame)
		}

		active := conv.Active(sctx)
		if redraw || active != shown {
			frame, err := Snapshot(sctx, conv)
			if err != nil {
				return fmt.Errorf("render error: %w", err)
			}
			if err := r.Handler.Output(sctx, frame); err != nil {
				return fmt.Errorf("output error: %w", err)
			}
			shown, redraw = active, false
		}

		passable, err := passable(sctx, active)
		if err != nil {
			return err
		}
		if passable {
			if _, err := conv.Continue(sctx, ""); err != nil {
				return fmt.Errorf("navigation error: %w", err)
			}
			continue
		}

		line, err := r.Handler.Input(sctx)
		if err != nil {
			signals.CheckRace()
			if sctx.Err() != nil {
				r.Logger.Debug("runner input cancelled", "err", sctx.Err())
				return ErrInterrupted
			}
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("input error: %w", err)
		}

		line, err = SanitizeInput(line)
		if err != nil {
			_ = r.Handler.SystemOutput(sctx, err.Error())
			continue
		}

		if name, arg, ok := parseCommand(line); ok {
			quit, err := r.command(sctx, conv, name, arg)
			if err != nil {
				return err
			}
			if quit {
				return nil
			}
			continue
		}

		if err := r.answer(sctx, conv, active, line); err != nil {
			if errors.Is(err, modules.ErrInvalidAnswer) {
				redraw = true
				continue
			}
			return err
		}
	}
}

// answer submits line to the active step and continues. An empty line on a
// complete step keeps the previous answer.
func (r *Runner) answer(ctx context.Context, conv *runtime.Conversation, active *domain.Step, line string) error {
	_, answerable := active.Hook.(modules.Answerable)
	if answerable {
		complete, err := active.Hook.IsComplete(ctx, false)
		if err != nil {
			return err
		}
		if line != "" || !complete {
			if err := modules.Submit(ctx, active, line); err != nil {
				r.Logger.Debug("answer rejected", "step", active.ID, "err", err)
				return err
			}
		}
	}

	if _, err := conv.Continue(ctx, ""); err != nil {
		return fmt.Errorf("navigation error: %w", err)
	}
	return nil
}

func (r *Runner) command(ctx context.Context, conv *runtime.Conversation, name, arg string) (bool, error) {
	switch name {
	case "quit", "exit", "q":
		return true, nil
	case "back", "b":
		step, err := conv.Back(ctx)
		if err != nil {
			return false, fmt.Errorf("navigation error: %w", err)
		}
		if step == nil {
			return false, r.Handler.SystemOutput(ctx, "already at the first step")
		}
		return false, nil
	case "goto", "g":
		if arg == "" {
			return false, r.Handler.SystemOutput(ctx, "usage: :goto <id>")
		}
		err := Navigate(ctx, conv, Move{Target: arg})
		if errors.Is(err, ErrUnknownTarget) {
			return false, r.Handler.SystemOutput(ctx, err.Error())
		}
		if err != nil {
			return false, fmt.Errorf("navigation error: %w", err)
		}
		return false, nil
	case "help", "h", "?":
		return false, r.Handler.SystemOutput(ctx, helpText)
	default:
		return false, r.Handler.SystemOutput(ctx, fmt.Sprintf("unknown command %q; %s", name, helpText))
	}
}

// passable reports whether step can be left without asking the user:
// it takes no input and is already complete.
func passable(ctx context.Context, step *domain.Step) (bool, error) {
	if step == nil {
		return false, nil
	}
	if _, ok := step.Hook.(modules.Answerable); ok {
		return false, nil
	}
	return step.Hook.IsComplete(ctx, false)
}

func parseCommand(line string) (name, arg string, ok bool) {
	rest, ok := strings.CutPrefix(line, ":")
	if !ok || rest == "" {
		return "", "", false
	}
	name, arg, _ = strings.Cut(rest, " ")
	return strings.ToLower(name), strings.TrimSpace(arg), true
}
