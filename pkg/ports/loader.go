package ports

import (
	"context"

	"github.com/aretw0/flowtalk/pkg/domain"
)

// FlowLoader defines how the engine retrieves external graphs.
// Implementations return domain.ErrFlowNotFound for unknown locators.
type FlowLoader interface {
	Load(ctx context.Context, src string) (*domain.Flow, error)
}

// FlowStore is a FlowLoader that can also persist flows.
type FlowStore interface {
	FlowLoader

	// Save stores the flow under name, replacing any previous one.
	Save(ctx context.Context, name string, flow *domain.Flow) error

	// List returns the stored flow names in lexical order.
	List(ctx context.Context) ([]string, error)

	// Delete removes the flow. Deleting an unknown name is not an error.
	Delete(ctx context.Context, name string) error
}
