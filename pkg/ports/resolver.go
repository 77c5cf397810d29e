package ports

import (
	"context"

	"github.com/aretw0/flowtalk/pkg/domain"
)

// ModuleResolver maps a module reference to a step factory.
// An empty key selects the module's default export.
// Failures wrap domain.ErrModuleResolution.
type ModuleResolver interface {
	Resolve(ctx context.Context, ref, key string) (domain.Factory, error)
}
