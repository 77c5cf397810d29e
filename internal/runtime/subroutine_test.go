package runtime_test

import (
	"context"
	"testing"

	"github.com/aretw0/flowtalk/internal/runtime"
	"github.com/aretw0/flowtalk/internal/testutils"
	"github.com/aretw0/flowtalk/pkg/domain"
	"github.com/aretw0/flowtalk/pkg/registry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mapLoader map[string]*domain.Flow

func (l mapLoader) Load(_ context.Context, src string) (*domain.Flow, error) {
	f, ok := l[src]
	if !ok {
		return nil, domain.ErrFlowNotFound
	}
	return f, nil
}

// nestedFlow builds a -> sub -> b where sub runs a single-step nested flow over x.
func nestedFlow(x *testutils.Hook) *domain.Flow {
	inner := testutils.NewFlow().Entry("x", x).Build()
	return testutils.NewFlow().
		Entry("a", testutils.Done()).
		Subroutine("sub", inner).
		Step("b", testutils.NewHook()).
		Edge("a", "sub").
		Edge("sub", "b").
		Build()
}

func TestSubroutine_BubblesIntoEnclosingGraph(t *testing.T) {
	ctx := context.Background()
	rec := &testutils.Recorder{}
	x := testutils.NewHook()

	conv, err := runtime.New(ctx, nestedFlow(x), runtime.WithObserver(rec))
	require.NoError(t, err)

	step, err := conv.Continue(ctx, "")
	require.NoError(t, err)
	require.Equal(t, "sub", step.ID)

	child, ok := step.Composite()
	require.True(t, ok, "subroutine step must expose the composite capability")
	cur, err := child.Get(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, "x", cur.ID)
	assert.Equal(t, "x", conv.Active(ctx).ID)

	// The nested step is incomplete: the child answers and the parent stays put.
	step, err = conv.Continue(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, "x", step.ID)
	assert.Equal(t, "sub", conv.Current().ID)

	x.SetComplete(true)
	step, err = conv.Continue(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, "b", step.ID)
	assert.Equal(t, "b", conv.Current().ID)
	assert.Equal(t, []string{"a", "sub"}, ids(conv.Breadcrumbs()))

	assert.Equal(t, []testutils.Event{
		{Action: domain.ActionStart, StepID: "a"},
		{Action: domain.ActionContinue, StepID: "sub"},
		{Action: domain.ActionContinue, StepID: "x"},
		{Action: domain.ActionContinue, StepID: "b"},
	}, rec.Events(), "nested start is not notified and nothing is notified twice")
}

func TestSubroutine_BackWalksThroughNestedHistory(t *testing.T) {
	ctx := context.Background()
	rec := &testutils.Recorder{}
	x := testutils.Done()

	conv, err := runtime.New(ctx, nestedFlow(x))
	require.NoError(t, err)

	_, err = conv.Continue(ctx, "") // a -> sub
	require.NoError(t, err)
	_, err = conv.Continue(ctx, "") // x done, bubbles to b
	require.NoError(t, err)
	require.Equal(t, "b", conv.Current().ID)

	conv.Subscribe(rec)

	step, err := conv.Back(ctx)
	require.NoError(t, err)
	assert.Equal(t, "sub", step.ID)

	step, err = conv.Back(ctx)
	require.NoError(t, err)
	assert.Equal(t, "x", step.ID, "back descends into the subroutine history")

	step, err = conv.Back(ctx)
	require.NoError(t, err)
	assert.Equal(t, "a", step.ID, "leaving the subroutine from its earliest point steps back into the parent")
	assert.Empty(t, conv.Breadcrumbs())

	step, err = conv.Back(ctx)
	require.NoError(t, err)
	assert.Nil(t, step)

	assert.Equal(t, []testutils.Event{
		{Action: domain.ActionBack, StepID: "sub"},
		{Action: domain.ActionBack, StepID: "x"},
		{Action: domain.ActionBack, StepID: "a"},
	}, rec.Events())
}

func TestSubroutine_LastVertexFinishesRoot(t *testing.T) {
	ctx := context.Background()
	rec := &testutils.Recorder{}
	inner := testutils.NewFlow().Entry("x", testutils.Done()).Build()
	flow := testutils.NewFlow().
		Entry("a", testutils.Done()).
		Subroutine("sub", inner).
		Edge("a", "sub").
		Build()

	conv, err := runtime.New(ctx, flow, runtime.WithObserver(rec))
	require.NoError(t, err)

	_, err = conv.Continue(ctx, "")
	require.NoError(t, err)

	step, err := conv.Continue(ctx, "")
	require.NoError(t, err)
	assert.Nil(t, step)
	assert.Equal(t, runtime.StatusDone, conv.Status())

	done := 0
	for _, e := range rec.Events() {
		if e.Action == domain.ActionDone {
			done++
		}
	}
	assert.Equal(t, 1, done)
}

func TestSubroutine_ExplicitTargetFallsThroughToParent(t *testing.T) {
	ctx := context.Background()
	rec := &testutils.Recorder{}

	conv, err := runtime.New(ctx, nestedFlow(testutils.NewHook()), runtime.WithObserver(rec))
	require.NoError(t, err)
	_, err = conv.Continue(ctx, "")
	require.NoError(t, err)

	step, err := conv.Continue(ctx, "b")
	require.NoError(t, err)
	assert.Equal(t, "b", step.ID)
	assert.Equal(t, testutils.Event{Action: "b", StepID: "b"}, rec.Last())
}

func TestSubroutine_SharesObservers(t *testing.T) {
	ctx := context.Background()
	x := testutils.NewHook()

	conv, err := runtime.New(ctx, nestedFlow(x))
	require.NoError(t, err)
	step, err := conv.Continue(ctx, "")
	require.NoError(t, err)
	child, ok := step.Composite()
	require.True(t, ok)

	outer := &testutils.Recorder{}
	inner := &testutils.Recorder{}
	conv.Subscribe(outer)
	child.Subscribe(inner)
	assert.Equal(t, 2, conv.Observers(), "a subscription on the child is visible from the root")

	x.SetComplete(true)
	_, err = conv.Continue(ctx, "")
	require.NoError(t, err)

	want := []testutils.Event{{Action: domain.ActionContinue, StepID: "b"}}
	assert.Equal(t, want, outer.Events())
	assert.Equal(t, want, inner.Events())

	child.Unsubscribe(inner)
	assert.Equal(t, 1, conv.Observers())
}

func TestSubroutine_FreshInstancePerVisit(t *testing.T) {
	ctx := context.Background()
	conv, err := runtime.New(ctx, nestedFlow(testutils.Done()))
	require.NoError(t, err)

	first, err := conv.Get(ctx, "sub")
	require.NoError(t, err)
	second, err := conv.Get(ctx, "sub")
	require.NoError(t, err)

	a, _ := first.Composite()
	b, _ := second.Composite()
	assert.NotSame(t, a, b)
}

func TestSubroutine_Sources(t *testing.T) {
	ctx := context.Background()
	inner := testutils.NewFlow().Entry("x", testutils.NewHook()).Build()

	build := func(sub func(*testutils.FlowBuilder) *testutils.FlowBuilder) *domain.Flow {
		b := testutils.NewFlow().Entry("a", testutils.Done())
		return sub(b).Edge("a", "sub").Build()
	}

	t.Run("Loaded By Locator", func(t *testing.T) {
		flow := build(func(b *testutils.FlowBuilder) *testutils.FlowBuilder { return b.SubroutineSrc("sub", "mem:inner") })
		conv, err := runtime.New(ctx, flow, runtime.WithLoader(mapLoader{"mem:inner": inner}))
		require.NoError(t, err)

		step, err := conv.Continue(ctx, "")
		require.NoError(t, err)
		assert.Equal(t, "sub", step.ID)
		assert.Equal(t, "x", conv.Active(ctx).ID)
	})

	t.Run("Locator Without Loader", func(t *testing.T) {
		flow := build(func(b *testutils.FlowBuilder) *testutils.FlowBuilder { return b.SubroutineSrc("sub", "mem:inner") })
		conv, err := runtime.New(ctx, flow)
		require.NoError(t, err)

		_, err = conv.Continue(ctx, "")
		assert.ErrorIs(t, err, domain.ErrNoLoader)
		assert.Equal(t, "a", conv.Current().ID)
	})

	t.Run("Unknown Locator", func(t *testing.T) {
		flow := build(func(b *testutils.FlowBuilder) *testutils.FlowBuilder { return b.SubroutineSrc("sub", "mem:ghost") })
		conv, err := runtime.New(ctx, flow, runtime.WithLoader(mapLoader{}))
		require.NoError(t, err)

		_, err = conv.Continue(ctx, "")
		assert.ErrorIs(t, err, domain.ErrFlowNotFound)
	})

	t.Run("Neither Flow Nor Locator", func(t *testing.T) {
		flow := build(func(b *testutils.FlowBuilder) *testutils.FlowBuilder { return b.SubroutineSrc("sub", "") })
		conv, err := runtime.New(ctx, flow)
		require.NoError(t, err)

		_, err = conv.Continue(ctx, "")
		assert.ErrorIs(t, err, domain.ErrMissingSubroutineSource)

		var vErr *domain.VertexError
		require.ErrorAs(t, err, &vErr)
		assert.Equal(t, "sub", vErr.VertexID)
	})

	t.Run("Nested Graph Of Wrong Type", func(t *testing.T) {
		bad := testutils.NewFlow().Entry("x", testutils.NewHook()).Build()
		bad.Type = "pie"
		flow := build(func(b *testutils.FlowBuilder) *testutils.FlowBuilder { return b.Subroutine("sub", bad) })
		conv, err := runtime.New(ctx, flow)
		require.NoError(t, err)

		_, err = conv.Continue(ctx, "")
		assert.ErrorIs(t, err, domain.ErrGraphTypeMismatch)
	})
}

func TestModuleResolution(t *testing.T) {
	ctx := context.Background()

	t.Run("Named Module And Export", func(t *testing.T) {
		var got domain.StepProps
		reg := registry.New()
		reg.RegisterExport("greeting", "formal", func(_ context.Context, props domain.StepProps) (domain.StepHook, error) {
			got = props
			return testutils.NewHook(), nil
		})

		flow := testutils.NewFlow().
			Module("hello", "greeting", "formal", map[string]any{"name": "Ada"}).
			Build()
		flow.EntryIDs = []string{"hello"}

		conv, err := runtime.New(ctx, flow, runtime.WithModuleResolver(reg))
		require.NoError(t, err)
		assert.Equal(t, "hello", conv.Current().ID)
		assert.Equal(t, "hello", got.ID)
		assert.Equal(t, "Ada", got.Values["name"])
		assert.NotNil(t, got.Conversation, "modules receive the conversation as a controller")

		got.Values["name"] = "mutated"
		assert.Equal(t, "Ada", flow.Vertices["hello"].Props.Values["name"], "the graph stays read-only")
	})

	t.Run("Unknown Module", func(t *testing.T) {
		flow := testutils.NewFlow().
			Entry("a", testutils.Done()).
			Module("b", "missing", "", nil).
			Edge("a", "b").
			Build()

		conv, err := runtime.New(ctx, flow, runtime.WithModuleResolver(registry.New()))
		require.NoError(t, err)

		_, err = conv.Continue(ctx, "")
		assert.ErrorIs(t, err, domain.ErrModuleResolution)
	})

	t.Run("No Resolver", func(t *testing.T) {
		flow := testutils.NewFlow().
			Entry("a", testutils.Done()).
			Module("b", "greeting", "", nil).
			Edge("a", "b").
			Build()

		conv, err := runtime.New(ctx, flow)
		require.NoError(t, err)

		_, err = conv.Continue(ctx, "")
		assert.ErrorIs(t, err, domain.ErrModuleResolution)
	})
}

func ids(steps []*domain.Step) []string {
	out := make([]string, len(steps))
	for i, s := range steps {
		out[i] = s.ID
	}
	return out
}
