package flowtalk_test

import (
	"context"
	"strings"
	"testing"

	"github.com/aretw0/flowtalk"
	"github.com/aretw0/flowtalk/internal/testutils"
	"github.com/aretw0/flowtalk/pkg/adapters/memory"
	"github.com/aretw0/flowtalk/pkg/domain"
	"github.com/aretw0/flowtalk/pkg/modules"
	"github.com/aretw0/flowtalk/pkg/registry"
	"github.com/aretw0/flowtalk/pkg/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVersion(t *testing.T) {
	assert.True(t, strings.HasPrefix(strings.TrimSpace(flowtalk.Version), "v"))
}

func TestNew_BuiltinsShareBoard(t *testing.T) {
	ctx := context.Background()
	flow, err := schema.Decode([]byte(greeting), schema.FormatYAML)
	require.NoError(t, err)

	board := modules.NewBoard()
	board.Set("name", "Grace")
	conv, err := flowtalk.New(ctx, flow, flowtalk.WithBoard(board), flowtalk.WithStartID("bye"))
	require.NoError(t, err)

	assert.Equal(t, flowtalk.StatusReady, conv.Status())
	view, err := conv.Render(ctx, domain.RenderProps{})
	require.NoError(t, err)
	assert.Equal(t, "Bye Grace.", view.(modules.View).Text)
}

func TestNew_WithRegistry(t *testing.T) {
	ctx := context.Background()
	hook := testutils.Done()
	reg := registry.New()
	reg.Register("custom", hook.Factory())

	flow := testutils.NewFlow().
		Entry("start", testutils.Done()).
		Module("next", "custom", "", nil).
		Edge("start", "next").
		Build()

	rec := &testutils.Recorder{}
	conv, err := flowtalk.New(ctx, flow, flowtalk.WithRegistry(reg), flowtalk.WithObserver(rec))
	require.NoError(t, err)

	step, err := conv.Continue(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, "next", step.ID)

	step, err = conv.Continue(ctx, "")
	require.NoError(t, err)
	assert.Nil(t, step)
	assert.Equal(t, flowtalk.StatusDone, conv.Status())
	assert.Equal(t, domain.ActionDone, rec.Last().Action)
}

func TestOpen(t *testing.T) {
	ctx := context.Background()
	inner := testutils.NewFlow().Entry("inner", testutils.NewHook()).Build()
	outer := testutils.NewFlow().
		Entry("a", testutils.Done()).
		SubroutineSrc("sub", "inner").
		Edge("a", "sub").
		Build()
	store := memory.NewStore(map[string]*domain.Flow{"outer": outer, "inner": inner})

	conv, err := flowtalk.Open(ctx, store, "outer")
	require.NoError(t, err)
	step, err := conv.Continue(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, "sub", step.ID)
	assert.Equal(t, "inner", conv.Active(ctx).ID, "subroutine src resolves through the same loader")

	_, err = flowtalk.Open(ctx, store, "missing")
	assert.ErrorIs(t, err, domain.ErrFlowNotFound)
}

func TestNew_GraphTypeMismatch(t *testing.T) {
	_, err := flowtalk.New(context.Background(), &domain.Flow{Type: "sequence"})
	assert.ErrorIs(t, err, domain.ErrGraphTypeMismatch)
}
