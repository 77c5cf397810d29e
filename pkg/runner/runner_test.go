package runner_test

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/aretw0/flowtalk/internal/runtime"
	"github.com/aretw0/flowtalk/pkg/domain"
	"github.com/aretw0/flowtalk/pkg/modules"
	"github.com/aretw0/flowtalk/pkg/runner"
	"github.com/aretw0/flowtalk/pkg/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const greeting = `
vertices:
  hello:
    kind: entry
    text: Hello!
    props:
      module: message
      auto: true
  name:
    text: What is your name?
    props:
      module: prompt
  bye:
    text: Bye ${name}.
    props:
      module: message
edges:
  - start: hello
    end: name
  - start: name
    end: bye
`

const ageFlow = `
vertices:
  age:
    kind: entry
    text: How old are you?
    props:
      module: prompt
      type: int
  end:
    text: Noted.
    props:
      module: message
      auto: true
edges:
  - start: age
    end: end
`

func newConv(t *testing.T, doc string) (*runtime.Conversation, *modules.Board) {
	t.Helper()
	flow, err := schema.Decode([]byte(doc), schema.FormatYAML)
	require.NoError(t, err)
	board := modules.NewBoard()
	conv, err := runtime.New(context.Background(), flow, runtime.WithModuleResolver(modules.Builtins(board)))
	require.NoError(t, err)
	return conv, board
}

func TestRunner_BasicFlow(t *testing.T) {
	conv, board := newConv(t, greeting)
	out := &bytes.Buffer{}
	r := runner.New(runner.WithInputHandler(runner.NewTextHandler(strings.NewReader("Ada\n\n"), out)))

	require.NoError(t, r.Run(t.Context(), conv))

	text := out.String()
	assert.Contains(t, text, "Hello!")
	assert.Contains(t, text, "What is your name?")
	assert.Contains(t, text, "Bye Ada.")
	assert.Contains(t, text, "Conversation finished.")
	assert.Less(t, strings.Index(text, "Hello!"), strings.Index(text, "Bye Ada."))

	got, _ := board.Get("name")
	assert.Equal(t, "Ada", got)
	assert.Equal(t, runtime.StatusDone, conv.Status())
}

func TestRunner_CommandsAndValidation(t *testing.T) {
	conv, board := newConv(t, ageFlow)
	out := &bytes.Buffer{}
	input := strings.NewReader(":back\n:help\n:goto nowhere\n:frob\nabc\n7\n")
	r := runner.New(runner.WithInputHandler(runner.NewTextHandler(input, out)))

	require.NoError(t, r.Run(t.Context(), conv))

	text := out.String()
	assert.Contains(t, text, "[system] already at the first step")
	assert.Contains(t, text, "[system] commands: :back, :goto <id>, :quit, :help")
	assert.Contains(t, text, "unknown target: nowhere")
	assert.Contains(t, text, `unknown command "frob"`)
	assert.Contains(t, text, "! invalid answer")
	assert.Contains(t, text, "Noted.")
	assert.Contains(t, text, "Conversation finished.")

	got, _ := board.Get("age")
	assert.Equal(t, 7, got)
}

func TestRunner_Quit(t *testing.T) {
	conv, _ := newConv(t, greeting)
	out := &bytes.Buffer{}
	r := runner.New(runner.WithInputHandler(runner.NewTextHandler(strings.NewReader(":quit\nAda\n"), out)))

	require.NoError(t, r.Run(t.Context(), conv))
	assert.NotContains(t, out.String(), "Bye")
	assert.Equal(t, runtime.StatusReady, conv.Status())
}

func TestRunner_EndOfInput(t *testing.T) {
	conv, _ := newConv(t, greeting)
	r := runner.New(runner.WithInputHandler(runner.NewTextHandler(strings.NewReader(""), &bytes.Buffer{})))

	require.NoError(t, r.Run(t.Context(), conv))
	assert.Equal(t, "name", conv.Current().ID)
}

func TestRunner_Goto(t *testing.T) {
	conv, _ := newConv(t, greeting)
	out := &bytes.Buffer{}
	r := runner.New(runner.WithInputHandler(runner.NewTextHandler(strings.NewReader(":goto bye\n\n"), out)))

	require.NoError(t, r.Run(t.Context(), conv))
	assert.Contains(t, out.String(), "Bye .", "the skipped prompt left no answer")
}

func TestRunner_NoStart(t *testing.T) {
	conv, err := runtime.New(context.Background(), &domain.Flow{
		Type:     domain.FlowTypeConversation,
		Vertices: map[string]*domain.Vertex{"a": {ID: "a", Kind: domain.VertexNormal}},
	})
	require.NoError(t, err)

	r := runner.New(runner.WithInputHandler(runner.NewTextHandler(strings.NewReader(""), &bytes.Buffer{})))
	assert.ErrorIs(t, r.Run(t.Context(), conv), domain.ErrNoStartFound)
}

func TestRunner_JSONHandler(t *testing.T) {
	conv, _ := newConv(t, greeting)
	out := &bytes.Buffer{}
	input := strings.NewReader("\"Ada\"\n\"\"\n")
	r := runner.New(runner.WithInputHandler(runner.NewJSONHandler(input, out)))

	require.NoError(t, r.Run(t.Context(), conv))

	var frames []runner.Frame
	dec := json.NewDecoder(out)
	for dec.More() {
		var f runner.Frame
		require.NoError(t, dec.Decode(&f))
		frames = append(frames, f)
	}
	require.Len(t, frames, 4)
	assert.Equal(t, "hello", frames[0].Step)
	assert.Equal(t, "name", frames[1].Step)
	assert.Equal(t, []string{"hello"}, frames[1].Trail)
	assert.Equal(t, "bye", frames[2].Step)
	assert.True(t, frames[3].Done)
	assert.Equal(t, []string{"hello", "name", "bye"}, frames[3].Trail)
}

func TestRunner_JSONHandlerMoves(t *testing.T) {
	conv, board := newConv(t, greeting)
	out := &bytes.Buffer{}
	input := strings.NewReader(`{"answer":"Ada"}
{"back":true}
{"answer":"Bob"}
{}
`)
	r := runner.New(runner.WithInputHandler(runner.NewJSONHandler(input, out)))

	require.NoError(t, r.Run(t.Context(), conv))

	var last runner.Frame
	dec := json.NewDecoder(out)
	for dec.More() {
		require.NoError(t, dec.Decode(&last))
	}
	assert.True(t, last.Done)
	assert.Equal(t, []string{"hello", "name", "bye"}, last.Trail)
	assert.Contains(t, out.String(), "Bye Bob.")

	name, _ := board.Get("name")
	assert.Equal(t, "Bob", name)
}
