package runner

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/aretw0/flowtalk/pkg/modules"
	"golang.org/x/term"
)

// TextHandler implements the standard text-based interface.
type TextHandler struct {
	interactive bool // reading from a terminal, where EOF may just mean an interrupted read
	Reader      *bufio.Reader
	Writer      io.Writer
	Renderer    ContentRenderer

	inputChan chan inputResult
	startOnce sync.Once
}

type inputResult struct {
	text string
	err  error
}

// TextHandlerOption defines configuration for TextHandler.
type TextHandlerOption func(*TextHandler)

// WithTextHandlerRenderer configures the content renderer.
func WithTextHandlerRenderer(renderer ContentRenderer) TextHandlerOption {
	return func(h *TextHandler) {
		h.Renderer = renderer
	}
}

// NewTextHandler creates a handler for standard text IO.
func NewTextHandler(r io.Reader, w io.Writer, opts ...TextHandlerOption) *TextHandler {
	if r == nil {
		r = os.Stdin
	}
	if w == nil {
		w = os.Stdout
	}
	h := &TextHandler{
		interactive: IsTerminal(r),
		Reader:      bufio.NewReader(r),
		Writer:      w,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// IsTerminal reports whether r is attached to a terminal.
func IsTerminal(r any) bool {
	f, ok := r.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

func (h *TextHandler) initPump() {
	h.startOnce.Do(func() {
		h.inputChan = make(chan inputResult)
		go h.pump()
	})
}

// pump reads lines in the background so Input can honor cancellation.
func (h *TextHandler) pump() {
	for {
		text, err := h.Reader.ReadString('\n')
		if text != "" {
			h.inputChan <- inputResult{text: text}
		}
		if err == nil {
			continue
		}
		if err == io.EOF && !h.interactive {
			close(h.inputChan)
			return
		}
		// A terminal read interrupted by a signal reports EOF but stays usable.
		h.inputChan <- inputResult{err: err}
		time.Sleep(50 * time.Millisecond)
	}
}

func (h *TextHandler) Output(_ context.Context, frame *Frame) error {
	if frame.Done {
		_, err := fmt.Fprintln(h.Writer, "Conversation finished.")
		return err
	}

	switch v := frame.View.(type) {
	case modules.View:
		h.writeView(v)
	case string:
		h.writeText(v)
	case nil:
	default:
		fmt.Fprintf(h.Writer, "%v\n", v)
	}

	if len(frame.Actions) > 1 {
		fmt.Fprintln(h.Writer, "Options:")
		for _, a := range frame.Actions {
			fmt.Fprintf(h.Writer, "  - %s (:goto %s)\n", a.Label, a.Target)
		}
	}
	return nil
}

func (h *TextHandler) writeView(v modules.View) {
	h.writeText(v.Text)
	switch {
	case v.Kind == modules.Confirm:
		fmt.Fprintln(h.Writer, "[yes/no]")
	case len(v.Choices) > 0:
		fmt.Fprintf(h.Writer, "[%s]\n", strings.Join(v.Choices, " | "))
	}
	if v.Answer != nil && v.Kind != modules.Message {
		fmt.Fprintf(h.Writer, "(answered: %v, press enter to keep)\n", v.Answer)
	}
	if v.Error != "" {
		fmt.Fprintf(h.Writer, "! %s\n", v.Error)
	}
}

func (h *TextHandler) writeText(text string) {
	if strings.TrimSpace(text) == "" {
		return
	}
	if h.Renderer != nil {
		if rendered, err := h.Renderer(text); err == nil {
			text = rendered
		}
	}
	fmt.Fprintln(h.Writer, strings.TrimSpace(text))
}

func (h *TextHandler) Input(ctx context.Context) (string, error) {
	h.initPump()

	for {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		default:
			fmt.Fprint(h.Writer, "> ")
		}

		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case res, ok := <-h.inputChan:
			if !ok {
				return "", io.EOF
			}
			if res.err != nil {
				return "", res.err
			}
			clean, err := SanitizeInput(strings.TrimSpace(res.text))
			if err != nil {
				fmt.Fprintf(h.Writer, "Error: %v. Please try again.\n", err)
				continue
			}
			return clean, nil
		}
	}
}

func (h *TextHandler) SystemOutput(_ context.Context, msg string) error {
	_, err := fmt.Fprintf(h.Writer, "[system] %s\n", msg)
	return err
}
