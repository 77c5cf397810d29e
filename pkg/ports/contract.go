package ports

import (
	"context"
	"testing"

	"github.com/aretw0/flowtalk/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// contractFlow is a small but complete graph: an entry, a labeled edge,
// free-form values and an inline subroutine.
func contractFlow() *domain.Flow {
	return &domain.Flow{
		Type: domain.FlowTypeConversation,
		Vertices: map[string]*domain.Vertex{
			"hello": {ID: "hello", Kind: domain.VertexEntry, Text: "Hello", Props: domain.Props{
				Module: "message",
				Values: map[string]any{"auto": true},
			}},
			"survey": {ID: "survey", Kind: domain.VertexSubroutine, Props: domain.Props{
				Flow: &domain.Flow{
					Type: domain.FlowTypeConversation,
					Vertices: map[string]*domain.Vertex{
						"rate": {ID: "rate", Kind: domain.VertexEntry, Props: domain.Props{Module: "prompt"}},
					},
					Order: []string{"rate"},
				},
			}},
		},
		Edges: []domain.Edge{{Start: "hello", End: "survey", Text: "Go"}},
		Order: []string{"hello", "survey"},
	}
}

// RunFlowStoreContract verifies that a FlowStore implementation adheres to
// the interface contract. The store must start empty.
func RunFlowStoreContract(t *testing.T, store FlowStore) {
	ctx := context.Background()

	t.Run("Save and Load", func(t *testing.T) {
		require.NoError(t, store.Save(ctx, "contract", contractFlow()))

		loaded, err := store.Load(ctx, "contract")
		require.NoError(t, err)
		assert.True(t, loaded.IsConversation())
		assert.Equal(t, []string{"hello", "survey"}, loaded.VertexIDs())
		assert.Equal(t, []string{"hello"}, loaded.Entries())
		assert.Equal(t, "Go", loaded.Edges[0].Text)
		assert.Equal(t, "message", loaded.Vertices["hello"].Props.Module)
		assert.Equal(t, true, loaded.Vertices["hello"].Props.Values["auto"])

		nested := loaded.Vertices["survey"].Props.Flow
		require.NotNil(t, nested, "inline subroutines survive persistence")
		assert.Equal(t, []string{"rate"}, nested.Entries())
	})

	t.Run("Load Non-Existent", func(t *testing.T) {
		_, err := store.Load(ctx, "contract-missing")
		assert.ErrorIs(t, err, domain.ErrFlowNotFound)
	})

	t.Run("List", func(t *testing.T) {
		require.NoError(t, store.Save(ctx, "contract-b", contractFlow()))
		require.NoError(t, store.Save(ctx, "contract-a", contractFlow()))

		names, err := store.List(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"contract", "contract-a", "contract-b"}, names)
	})

	t.Run("Delete", func(t *testing.T) {
		require.NoError(t, store.Delete(ctx, "contract-a"))
		require.NoError(t, store.Delete(ctx, "contract-a"), "deleting twice is not an error")

		_, err := store.Load(ctx, "contract-a")
		assert.ErrorIs(t, err, domain.ErrFlowNotFound)

		names, err := store.List(ctx)
		require.NoError(t, err)
		assert.NotContains(t, names, "contract-a")
	})
}
