package runner

import (
	"context"

	"github.com/aretw0/flowtalk/pkg/domain"
)

// Frame is one rendering of a conversation, as handed to frontends.
type Frame struct {
	// Step is the id of the step the user is looking at.
	Step string `json:"step,omitempty"`
	// View is whatever the step rendered.
	View    any             `json:"view,omitempty"`
	Actions []domain.Action `json:"actions,omitempty"`
	// Trail lists the completed step ids, oldest first.
	Trail []string `json:"trail,omitempty"`
	Done  bool     `json:"done"`
}

// IOHandler defines the strategy for interacting with the user.
// This allows switching between Text (CLI/TUI) and JSON (Structured) modes.
type IOHandler interface {
	// Output presents a frame to the user.
	Output(ctx context.Context, frame *Frame) error

	// Input reads a response from the user.
	Input(ctx context.Context) (string, error)

	// SystemOutput presents a meta-message to the user (errors, status updates).
	// This is distinct from content rendering.
	SystemOutput(ctx context.Context, msg string) error
}

// ContentRenderer transforms step text before it is written.
// This allows for TUI rendering (markdown to ANSI) without coupling the core package.
type ContentRenderer func(string) (string, error)
