package schema

import (
	"bytes"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/aretw0/flowtalk/pkg/domain"
	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"
)

// Format is the encoding of a flow document.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// FormatOf guesses the format from a file name. Unknown extensions are JSON.
func FormatOf(name string) Format {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatJSON
	}
}

// reserved props keys; every other key of a vertex's props is a free-form value.
type propsDoc struct {
	Module string         `mapstructure:"module"`
	Key    string         `mapstructure:"key"`
	Src    string         `mapstructure:"src"`
	Flow   map[string]any `mapstructure:"flow"`
	Values map[string]any `mapstructure:",remain"`
}

type vertexDoc struct {
	ID    string         `mapstructure:"id"`
	Kind  string         `mapstructure:"kind"`
	Text  string         `mapstructure:"text"`
	Props map[string]any `mapstructure:"props"`
}

type flowDoc struct {
	Type     string               `mapstructure:"type"`
	Vertices map[string]vertexDoc `mapstructure:"vertices"`
	Edges    []domain.Edge        `mapstructure:"edges"`
	EntryIDs []string             `mapstructure:"entryIds"`
	Order    []string             `mapstructure:"order"`
}

// Decode parses a flow document. The document is first checked against the
// structural JSON schema; vertex declaration order is kept for YAML input
// (JSON input may carry an explicit "order"). An absent type means a
// conversation.
func Decode(data []byte, format Format) (*domain.Flow, error) {
	var (
		raw  map[string]any
		node *yaml.Node
	)
	switch format {
	case FormatYAML:
		var doc yaml.Node
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("parsing yaml: %w", err)
		}
		node = mappingOf(&doc)
		if node == nil {
			return nil, fmt.Errorf("parsing yaml: document is not a mapping")
		}
		if err := node.Decode(&raw); err != nil {
			return nil, fmt.Errorf("parsing yaml: %w", err)
		}
	default:
		dec := json.NewDecoder(bytes.NewReader(data))
		if err := dec.Decode(&raw); err != nil {
			return nil, fmt.Errorf("parsing json: %w", err)
		}
	}

	if err := checkStructure(raw); err != nil {
		return nil, err
	}
	return decodeFlow(raw, node, "")
}

// FromMap builds a flow from an already parsed document, such as the front
// matter of a Markdown file. Vertex order comes only from an explicit "order".
func FromMap(raw map[string]any) (*domain.Flow, error) {
	raw, _ = normalize(raw).(map[string]any)
	if err := checkStructure(raw); err != nil {
		return nil, err
	}
	return decodeFlow(raw, nil, "")
}

func decodeFlow(raw map[string]any, node *yaml.Node, path string) (*domain.Flow, error) {
	var doc flowDoc
	if err := mapstructure.Decode(raw, &doc); err != nil {
		return nil, fmt.Errorf("decoding %sflow: %w", path, err)
	}

	flow := &domain.Flow{
		Type:     doc.Type,
		Vertices: make(map[string]*domain.Vertex, len(doc.Vertices)),
		Edges:    doc.Edges,
		EntryIDs: doc.EntryIDs,
		Order:    doc.Order,
	}
	if flow.Type == "" {
		flow.Type = domain.FlowTypeConversation
	}

	vertices := lookup(node, "vertices")
	if len(flow.Order) == 0 && vertices != nil {
		for i := 0; i+1 < len(vertices.Content); i += 2 {
			flow.Order = append(flow.Order, vertices.Content[i].Value)
		}
	}

	for id, vd := range doc.Vertices {
		var props propsDoc
		if err := mapstructure.Decode(vd.Props, &props); err != nil {
			return nil, fmt.Errorf("decoding %svertices/%s/props: %w", path, id, err)
		}

		v := &domain.Vertex{
			ID:   id,
			Kind: domain.VertexKind(vd.Kind),
			Text: vd.Text,
			Props: domain.Props{
				Module: props.Module,
				Key:    props.Key,
				Src:    props.Src,
				Values: props.Values,
			},
		}
		if v.Kind == "" {
			v.Kind = domain.VertexNormal
		}
		if vd.ID != "" && vd.ID != id {
			// Keep the mismatch visible to ValidateFlow.
			v.ID = vd.ID
		}

		if props.Flow != nil {
			nested, err := decodeFlow(props.Flow, lookup(vertices, id, "props", "flow"), path+"vertices/"+id+"/props/flow/")
			if err != nil {
				return nil, err
			}
			v.Props.Flow = nested
		}
		flow.Vertices[id] = v
	}
	return flow, nil
}

// Encode writes flow as a document Decode reads back. Direct factories are
// not representable and are dropped.
func Encode(flow *domain.Flow, format Format) ([]byte, error) {
	doc := encodeFlow(flow)
	if format == FormatYAML {
		return yaml.Marshal(doc)
	}
	return json.MarshalIndent(doc, "", "  ")
}

func encodeFlow(flow *domain.Flow) map[string]any {
	vertices := make(map[string]any, len(flow.Vertices))
	for id, v := range flow.Vertices {
		props := make(map[string]any, len(v.Props.Values)+4)
		for k, val := range v.Props.Values {
			props[k] = val
		}
		setIf(props, "module", v.Props.Module)
		setIf(props, "key", v.Props.Key)
		setIf(props, "src", v.Props.Src)
		if v.Props.Flow != nil {
			props["flow"] = encodeFlow(v.Props.Flow)
		}

		vertex := map[string]any{"kind": string(v.Kind)}
		setIf(vertex, "text", v.Text)
		if len(props) > 0 {
			vertex["props"] = props
		}
		vertices[id] = vertex
	}

	edges := make([]map[string]any, 0, len(flow.Edges))
	for _, e := range flow.Edges {
		edge := map[string]any{"start": e.Start, "end": e.End}
		setIf(edge, "type", e.Type)
		setIf(edge, "stroke", e.Stroke)
		setIf(edge, "text", e.Text)
		setIf(edge, "labelType", e.LabelType)
		if e.Length > 0 {
			edge["length"] = e.Length
		}
		edges = append(edges, edge)
	}

	doc := map[string]any{
		"type":     flow.Type,
		"vertices": vertices,
		"edges":    edges,
		"order":    flow.VertexIDs(),
	}
	if len(flow.EntryIDs) > 0 {
		doc["entryIds"] = flow.EntryIDs
	}
	return doc
}

// normalize turns map[any]any values, as produced by some YAML decoders,
// into map[string]any so the document can be re-encoded as JSON.
func normalize(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[k] = normalize(val)
		}
		return out
	case map[any]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[fmt.Sprint(k)] = normalize(val)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = normalize(val)
		}
		return out
	default:
		return v
	}
}

func setIf(m map[string]any, key, value string) {
	if value != "" {
		m[key] = value
	}
}

func mappingOf(doc *yaml.Node) *yaml.Node {
	n := doc
	if n.Kind == yaml.DocumentNode && len(n.Content) > 0 {
		n = n.Content[0]
	}
	if n.Kind != yaml.MappingNode {
		return nil
	}
	return n
}

// lookup walks mapping keys from n. It returns nil when any key is absent.
func lookup(n *yaml.Node, keys ...string) *yaml.Node {
	for _, key := range keys {
		if n == nil || n.Kind != yaml.MappingNode {
			return nil
		}
		var next *yaml.Node
		for i := 0; i+1 < len(n.Content); i += 2 {
			if n.Content[i].Value == key {
				next = n.Content[i+1]
				break
			}
		}
		n = next
	}
	return n
}
