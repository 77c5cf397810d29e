package modules_test

import (
	"context"
	"testing"

	"github.com/aretw0/flowtalk/internal/runtime"
	"github.com/aretw0/flowtalk/pkg/domain"
	"github.com/aretw0/flowtalk/pkg/modules"
	"github.com/aretw0/flowtalk/pkg/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func instantiate(t *testing.T, board *modules.Board, module, id, text string, values map[string]any) domain.StepHook {
	t.Helper()
	factory, err := modules.Builtins(board).Resolve(context.Background(), module, "")
	require.NoError(t, err)
	hook, err := factory(context.Background(), domain.StepProps{ID: id, Text: text, Values: values})
	require.NoError(t, err)
	return hook
}

func TestMessage(t *testing.T) {
	ctx := context.Background()
	board := modules.NewBoard()
	board.Set("name", "Ada")

	hook := instantiate(t, board, modules.Message, "hello", "Hi ${name}!", nil)

	ready, err := hook.IsReady(ctx)
	require.NoError(t, err)
	assert.True(t, ready)

	done, err := hook.IsComplete(ctx, false)
	require.NoError(t, err)
	assert.False(t, done)

	out, err := hook.Render(ctx, domain.RenderProps{})
	require.NoError(t, err)
	assert.Equal(t, modules.View{Kind: "message", ID: "hello", Text: "Hi Ada!"}, out)

	require.NoError(t, hook.(modules.Answerable).Answer(ctx, "whatever"))
	done, err = hook.IsComplete(ctx, false)
	require.NoError(t, err)
	assert.True(t, done)

	auto := instantiate(t, board, modules.Message, "note", "", map[string]any{"auto": "true"})
	done, err = auto.IsComplete(ctx, false)
	require.NoError(t, err)
	assert.True(t, done, "auto accepts weakly typed values")
}

func TestPrompt(t *testing.T) {
	ctx := context.Background()
	board := modules.NewBoard()
	hook := instantiate(t, board, modules.Prompt, "age", "How old are you?", map[string]any{"type": "int"})
	answer := hook.(modules.Answerable)

	_, err := hook.IsComplete(ctx, true)
	assert.ErrorIs(t, err, modules.ErrUnanswered)

	err = answer.Answer(ctx, "old")
	assert.ErrorIs(t, err, modules.ErrInvalidAnswer)
	_, err = hook.IsComplete(ctx, true)
	assert.ErrorIs(t, err, modules.ErrInvalidAnswer, "the last validation error is reported")

	out, err := hook.Render(ctx, domain.RenderProps{})
	require.NoError(t, err)
	view := out.(modules.View)
	assert.Equal(t, "int", view.Type)
	assert.NotEmpty(t, view.Error)

	require.NoError(t, answer.Answer(ctx, "36"))
	done, err := hook.IsComplete(ctx, true)
	require.NoError(t, err)
	assert.True(t, done)
	got, _ := board.Get("age")
	assert.Equal(t, 36, got)

	t.Run("Retract Revokes Completion", func(t *testing.T) {
		hook.(modules.Retractable).Retract(ctx)
		done, err := hook.IsComplete(ctx, false)
		require.NoError(t, err)
		assert.False(t, done)
	})

	t.Run("Changed Answer Is Revalidated", func(t *testing.T) {
		board.Set("age", "thirty")
		done, err := hook.IsComplete(ctx, false)
		require.NoError(t, err)
		assert.False(t, done)
	})
}

func TestPrompt_ChoicesAndOptional(t *testing.T) {
	ctx := context.Background()
	board := modules.NewBoard()

	color := instantiate(t, board, modules.Prompt, "color", "", map[string]any{"choices": []any{"Red", "Green"}})
	out, err := color.Render(ctx, domain.RenderProps{})
	require.NoError(t, err)
	assert.Equal(t, []string{"Red", "Green"}, out.(modules.View).Choices)
	require.NoError(t, color.(modules.Answerable).Answer(ctx, "green"))
	got, _ := board.Get("color")
	assert.Equal(t, "Green", got)

	nick := instantiate(t, board, modules.Prompt, "nick", "", map[string]any{"optional": true})
	require.NoError(t, nick.(modules.Answerable).Answer(ctx, ""))
	done, err := nick.IsComplete(ctx, true)
	require.NoError(t, err)
	assert.True(t, done)
}

func TestPrompt_BadType(t *testing.T) {
	factory, err := modules.Builtins(modules.NewBoard()).Resolve(context.Background(), modules.Prompt, "")
	require.NoError(t, err)

	_, err = factory(context.Background(), domain.StepProps{ID: "x", Values: map[string]any{"type": "date"}})
	assert.Error(t, err)
}

func TestConfirm(t *testing.T) {
	ctx := context.Background()
	board := modules.NewBoard()
	hook := instantiate(t, board, modules.Confirm, "agree", "Agree?", nil)

	require.NoError(t, hook.(modules.Answerable).Answer(ctx, "yes"))
	got, _ := board.Get("agree")
	assert.Equal(t, true, got)

	out, err := hook.Render(ctx, domain.RenderProps{})
	require.NoError(t, err)
	assert.Equal(t, "confirm", out.(modules.View).Kind)
}

func TestGate(t *testing.T) {
	ctx := context.Background()
	board := modules.NewBoard()
	hook := instantiate(t, board, modules.Gate, "adult", "", map[string]any{"when": "answers.age >= 18"})

	board.Set("age", 12)
	ready, err := hook.IsReady(ctx)
	require.NoError(t, err)
	assert.False(t, ready)

	board.Set("age", 30)
	ready, err = hook.IsReady(ctx)
	require.NoError(t, err)
	assert.True(t, ready)

	done, err := hook.IsComplete(ctx, true)
	require.NoError(t, err)
	assert.True(t, done)

	t.Run("Undefined Answers Are Not Ready", func(t *testing.T) {
		h := instantiate(t, modules.NewBoard(), modules.Gate, "g", "", map[string]any{"when": "name == 'Ada'"})
		ready, err := h.IsReady(ctx)
		require.NoError(t, err)
		assert.False(t, ready)
	})

	t.Run("Invalid Expression Fails Instantiation", func(t *testing.T) {
		factory, err := modules.Builtins(board).Resolve(ctx, modules.Gate, "")
		require.NoError(t, err)
		_, err = factory(ctx, domain.StepProps{ID: "g", Values: map[string]any{"when": "age >>> 3"}})
		assert.Error(t, err)
	})
}

const ageFlow = `
vertices:
  age:
    kind: entry
    text: How old are you?
    props:
      module: prompt
      type: int
  adult:
    props:
      module: gate
      when: age >= 18
  minor:
    text: Come back later.
    props:
      module: message
      auto: true
  welcome:
    text: Welcome, ${age} year old!
    props:
      module: message
edges:
  - start: age
    end: adult
  - start: age
    end: minor
  - start: adult
    end: welcome
`

func TestBranching(t *testing.T) {
	ctx := context.Background()
	flow, err := schema.Decode([]byte(ageFlow), schema.FormatYAML)
	require.NoError(t, err)
	require.NoError(t, schema.ValidateFlow(flow))

	run := func(t *testing.T, answer string) (*runtime.Conversation, *domain.Step) {
		board := modules.NewBoard()
		conv, err := runtime.New(ctx, flow, runtime.WithModuleResolver(modules.Builtins(board)))
		require.NoError(t, err)

		step, err := conv.Continue(ctx, "")
		require.NoError(t, err)
		require.Equal(t, "age", step.ID, "unanswered prompt holds the walk")

		require.NoError(t, modules.Submit(ctx, conv.Active(ctx), answer))
		step, err = conv.Continue(ctx, "")
		require.NoError(t, err)
		return conv, step
	}

	t.Run("Adult", func(t *testing.T) {
		conv, step := run(t, "40")
		require.Equal(t, "adult", step.ID)

		step, err := conv.Continue(ctx, "")
		require.NoError(t, err)
		require.Equal(t, "welcome", step.ID)

		out, err := conv.Render(ctx, domain.RenderProps{})
		require.NoError(t, err)
		assert.Equal(t, "Welcome, 40 year old!", out.(modules.View).Text)

		assert.ErrorIs(t, modules.Submit(ctx, nil, "x"), modules.ErrNotAnswerable)
	})

	t.Run("Minor", func(t *testing.T) {
		conv, step := run(t, "9")
		require.Equal(t, "minor", step.ID)

		step, err := conv.Continue(ctx, "")
		require.NoError(t, err)
		assert.Nil(t, step)
		assert.Equal(t, runtime.StatusDone, conv.Status())
	})
}
