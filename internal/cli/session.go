package cli

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/aretw0/flowtalk/internal/presentation/tui"
	"github.com/aretw0/flowtalk/internal/runtime"
	"github.com/aretw0/flowtalk/pkg/domain"
	"github.com/aretw0/flowtalk/pkg/modules"
	"github.com/aretw0/flowtalk/pkg/runner"
	"github.com/aretw0/flowtalk/pkg/schema"
	"github.com/aretw0/flowtalk/pkg/session"
)

// RunOptions configures an interactive run.
type RunOptions struct {
	Flow     string
	Version  string
	Headless bool
	JSON     bool
	In       io.Reader
	Out      io.Writer
}

// RunSession opens a session over the named flow and drives it with the
// terminal runner until it is done, the input ends or the user quits.
func RunSession(ctx context.Context, stack *Stack, opts RunOptions) error {
	quiet := opts.JSON || opts.Headless
	if !quiet {
		tui.PrintBanner(opts.Out, opts.Version)
	}

	sess, err := stack.Sessions.Create(ctx, opts.Flow)
	if err != nil {
		return err
	}
	defer func() {
		if err := stack.Sessions.Delete(context.WithoutCancel(ctx), sess.ID); err != nil {
			stack.Logger.Warn("session cleanup failed", "session_id", sess.ID, "err", err)
		}
	}()
	stack.Logger.Info("session started", "session_id", sess.ID, "flow", opts.Flow)

	var handler runner.IOHandler
	switch {
	case opts.JSON:
		handler = runner.NewJSONHandler(opts.In, opts.Out)
	case opts.Headless:
		handler = runner.NewTextHandler(opts.In, opts.Out, runner.WithTextHandlerRenderer(tui.Plain))
	default:
		handler = runner.NewTextHandler(opts.In, opts.Out, runner.WithTextHandlerRenderer(tui.NewRenderer()))
	}
	r := runner.New(runner.WithInputHandler(handler), runner.WithLogger(stack.Logger))

	var last string
	runErr := stack.Sessions.Do(ctx, sess.ID, func(ctx context.Context, s *session.Session) error {
		defer func() {
			if cur := s.Conversation.Current(); cur != nil {
				last = cur.ID
			}
		}()
		return r.Run(ctx, s.Conversation)
	})

	if !quiet {
		switch {
		case runErr == nil:
			printSystemMessage(opts.Out, "Finished at '%s' step.", last)
		case isInterrupted(runErr):
			printSystemMessage(opts.Out, "Interrupted at '%s' step.", last)
		}
	}
	return handleExecutionError(runErr)
}

// Validate checks that the named flow decodes, is structurally sound and
// has a start whose modules resolve.
func Validate(ctx context.Context, stack *Stack, name string) error {
	flow, err := stack.Loader.Load(ctx, name)
	if err != nil {
		return err
	}
	if err := schema.ValidateFlow(flow); err != nil {
		return err
	}
	conv, err := runtime.New(ctx, flow,
		runtime.WithModuleResolver(modules.Builtins(modules.NewBoard())),
		runtime.WithLoader(stack.Loader),
	)
	if err != nil {
		return err
	}
	ready, err := conv.IsReady(ctx)
	if err != nil {
		return err
	}
	if !ready {
		return domain.ErrNoStartFound
	}
	return nil
}

// ValidateAll validates every flow in the catalog, reporting each failure.
func ValidateAll(ctx context.Context, stack *Stack, w io.Writer) error {
	names, err := stack.Catalog.List(ctx)
	if err != nil {
		return err
	}
	var errs []error
	for _, name := range names {
		if err := Validate(ctx, stack, name); err != nil {
			fmt.Fprintf(w, "✗ %s: %v\n", name, err)
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
			continue
		}
		fmt.Fprintf(w, "✓ %s\n", name)
	}
	return errors.Join(errs...)
}
