package multi_test

import (
	"context"
	"testing"

	"github.com/aretw0/flowtalk/pkg/adapters/memory"
	"github.com/aretw0/flowtalk/pkg/adapters/multi"
	"github.com/aretw0/flowtalk/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRouter(t *testing.T) {
	ctx := context.Background()
	a := &domain.Flow{Type: "a"}
	b := &domain.Flow{Type: "b"}
	local := &domain.Flow{Type: "local"}

	r := multi.New(
		multi.WithLoader("mem", memory.NewStore(map[string]*domain.Flow{"x": a})),
		multi.WithLoader("other", memory.NewStore(map[string]*domain.Flow{"x": b})),
		multi.WithFallback(memory.NewStore(map[string]*domain.Flow{"plain": local, "odd:name": local})),
	)

	got, err := r.Load(ctx, "mem:x")
	require.NoError(t, err)
	assert.Same(t, a, got)

	got, err = r.Load(ctx, "other:x")
	require.NoError(t, err)
	assert.Same(t, b, got)

	got, err = r.Load(ctx, "plain")
	require.NoError(t, err)
	assert.Same(t, local, got)

	got, err = r.Load(ctx, "odd:name")
	require.NoError(t, err, "unknown schemes go to the fallback unchanged")
	assert.Same(t, local, got)

	_, err = r.Load(ctx, "mem:ghost")
	assert.ErrorIs(t, err, domain.ErrFlowNotFound)

	assert.Equal(t, []string{"mem", "other"}, r.Schemes())
}

func TestRouter_NoFallback(t *testing.T) {
	_, err := multi.New().Load(context.Background(), "anything")
	assert.ErrorIs(t, err, domain.ErrNoLoader)
}
