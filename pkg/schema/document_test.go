package schema_test

import (
	"testing"

	"github.com/aretw0/flowtalk/pkg/domain"
	"github.com/aretw0/flowtalk/pkg/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const greetingYAML = `
type: conversation
vertices:
  welcome:
    kind: entry
    text: Welcome!
    props:
      module: message
  name:
    text: What is your name?
    props:
      module: prompt
      type: string
  survey:
    kind: subroutine
    props:
      flow:
        vertices:
          rate:
            kind: entry
            props:
              module: prompt
              type: int
edges:
  - start: welcome
    end: name
    text: Start
  - start: name
    end: survey
`

func TestDecode_YAML(t *testing.T) {
	flow, err := schema.Decode([]byte(greetingYAML), schema.FormatYAML)
	require.NoError(t, err)

	assert.Equal(t, domain.FlowTypeConversation, flow.Type)
	assert.Equal(t, []string{"welcome", "name", "survey"}, flow.Order, "declaration order is kept")
	assert.Equal(t, []string{"welcome"}, flow.Entries())

	name := flow.Vertices["name"]
	require.NotNil(t, name)
	assert.Equal(t, domain.VertexNormal, name.Kind)
	assert.Equal(t, "prompt", name.Props.Module)
	assert.Equal(t, "string", name.Props.Values["type"])
	assert.NotContains(t, name.Props.Values, "module")

	require.Len(t, flow.Edges, 2)
	assert.Equal(t, domain.Edge{Start: "welcome", End: "name", Text: "Start"}, flow.Edges[0])

	survey := flow.Vertices["survey"]
	require.True(t, survey.IsSubroutine())
	require.NotNil(t, survey.Props.Flow)
	assert.Equal(t, []string{"rate"}, survey.Props.Flow.Entries())
	assert.Equal(t, "int", survey.Props.Flow.Vertices["rate"].Props.Values["type"])

	assert.NoError(t, schema.ValidateFlow(flow))
}

func TestDecode_JSON(t *testing.T) {
	data := []byte(`{
		"vertices": {
			"b": {"kind": "entry", "props": {"module": "message", "auto": true}},
			"a": {"props": {"module": "message"}}
		},
		"edges": [{"start": "b", "end": "a", "length": 2}],
		"order": ["b", "a"]
	}`)

	flow, err := schema.Decode(data, schema.FormatJSON)
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "a"}, flow.VertexIDs())
	assert.Equal(t, true, flow.Vertices["b"].Props.Values["auto"])
	assert.Equal(t, 2, flow.Edges[0].Length)
}

func TestDecode_StructuralErrors(t *testing.T) {
	tests := []struct {
		name string
		data string
		key  string
	}{
		{name: "No Vertices", data: `{"edges": []}`, key: "/"},
		{name: "Unknown Kind", data: `{"vertices": {"a": {"kind": "hexagon"}}}`, key: "/vertices/a/kind"},
		{name: "Edge Without End", data: `{"vertices": {"a": {}}, "edges": [{"start": "a"}]}`, key: "/edges/0"},
		{name: "Unknown Field", data: `{"vertices": {"a": {}}, "nodes": {}}`, key: "/"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := schema.Decode([]byte(tt.data), schema.FormatJSON)
			require.Error(t, err)

			findings := schema.ValidationErrors(err)
			require.NotEmpty(t, findings)
			var keys []string
			for _, f := range findings {
				var vErr *schema.ValidationError
				require.ErrorAs(t, f, &vErr)
				keys = append(keys, vErr.Key)
			}
			assert.Contains(t, keys, tt.key)
		})
	}
}

func TestDecode_Malformed(t *testing.T) {
	_, err := schema.Decode([]byte(`{"vertices":`), schema.FormatJSON)
	assert.Error(t, err)

	_, err = schema.Decode([]byte("- just\n- a list\n"), schema.FormatYAML)
	assert.Error(t, err)
}

func TestEncode_RoundTrip(t *testing.T) {
	flow, err := schema.Decode([]byte(greetingYAML), schema.FormatYAML)
	require.NoError(t, err)

	for _, format := range []schema.Format{schema.FormatJSON, schema.FormatYAML} {
		t.Run(string(format), func(t *testing.T) {
			data, err := schema.Encode(flow, format)
			require.NoError(t, err)

			back, err := schema.Decode(data, format)
			require.NoError(t, err)
			assert.Equal(t, flow.VertexIDs(), back.VertexIDs())
			assert.Equal(t, flow.Edges, back.Edges)
			assert.Equal(t, "prompt", back.Vertices["name"].Props.Module)
			assert.Equal(t, "string", back.Vertices["name"].Props.Values["type"])
			require.NotNil(t, back.Vertices["survey"].Props.Flow)
		})
	}
}

func TestFormatOf(t *testing.T) {
	assert.Equal(t, schema.FormatYAML, schema.FormatOf("flows/greeting.yaml"))
	assert.Equal(t, schema.FormatYAML, schema.FormatOf("x.YML"))
	assert.Equal(t, schema.FormatJSON, schema.FormatOf("x.json"))
	assert.Equal(t, schema.FormatJSON, schema.FormatOf("x"))
}
