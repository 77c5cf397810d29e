package loam_test

import (
	"context"
	"testing"

	"github.com/aretw0/flowtalk/internal/testutils"
	adapter "github.com/aretw0/flowtalk/pkg/adapters/loam"
	"github.com/aretw0/flowtalk/pkg/domain"
	"github.com/aretw0/loam"
	"github.com/aretw0/loam/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoader(t *testing.T) {
	ctx := context.Background()
	_, repo := testutils.SetupTestRepo(t)

	require.NoError(t, repo.Save(ctx, core.Document{
		ID: "greeting.md",
		Content: `---
order: [hello, name]
vertices:
  hello:
    kind: entry
    text: Hi!
    props:
      module: message
  name:
    text: Your name?
    props:
      module: prompt
edges:
  - start: hello
    end: name
---
Greets the user and asks for a name.`,
	}))
	require.NoError(t, repo.Save(ctx, core.Document{
		ID:      "notes.md",
		Content: "---\ntitle: not a flow\n---\nJust notes.",
	}))

	loader := adapter.New(loam.NewTypedRepository[adapter.FlowDocument](repo))

	t.Run("Load", func(t *testing.T) {
		flow, err := loader.Load(ctx, "greeting")
		require.NoError(t, err)
		assert.Equal(t, domain.FlowTypeConversation, flow.Type)
		assert.Equal(t, []string{"hello", "name"}, flow.VertexIDs())
		assert.Equal(t, []string{"hello"}, flow.Entries())
		assert.Equal(t, "prompt", flow.Vertices["name"].Props.Module)
	})

	t.Run("Missing", func(t *testing.T) {
		_, err := loader.Load(ctx, "ghost")
		assert.ErrorIs(t, err, domain.ErrFlowNotFound)
	})

	t.Run("List Skips Non Flows", func(t *testing.T) {
		ids, err := loader.List(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"greeting"}, ids)
	})
}
