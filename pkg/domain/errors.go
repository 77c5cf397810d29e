package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrGraphTypeMismatch is returned when a flow is not a conversation graph.
	ErrGraphTypeMismatch = errors.New("graph is not a conversation")

	// ErrNoStartFound is returned when no entry vertex is ready.
	ErrNoStartFound = errors.New("no start step found")

	// ErrUnknownVertex is returned when a vertex id is absent from the graph.
	ErrUnknownVertex = errors.New("unknown vertex")

	// ErrMissingSubroutineSource is returned for a subroutine vertex with neither a flow nor a src.
	ErrMissingSubroutineSource = errors.New("subroutine has no flow or src")

	// ErrModuleResolution is returned when a behavior module cannot be resolved.
	ErrModuleResolution = errors.New("module resolution failed")

	// ErrNoLoader is returned when a subroutine names a src but no flow loader is configured.
	ErrNoLoader = errors.New("no flow loader configured")

	// ErrAlreadyStarted is returned by FindStart on a conversation that already has a start.
	ErrAlreadyStarted = errors.New("conversation already started")

	// ErrFlowNotFound is returned by flow loaders for an unknown locator.
	ErrFlowNotFound = errors.New("flow not found")

	// ErrSessionNotFound is returned when a session ID cannot be found.
	ErrSessionNotFound = errors.New("session not found")
)

// VertexError ties a resolution failure to the vertex that caused it.
type VertexError struct {
	VertexID string
	Err      error
}

func (e *VertexError) Error() string {
	return fmt.Sprintf("vertex %q: %v", e.VertexID, e.Err)
}

func (e *VertexError) Unwrap() error { return e.Err }
