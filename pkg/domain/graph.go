package domain

import "sort"

// Graph type markers accepted by the engine.
const (
	FlowTypeConversation = "conversation"
	// FlowTypeFlowchart is emitted by flowchart parsers that do not rename their output.
	FlowTypeFlowchart = "flowchart"
)

// VertexKind classifies how a vertex participates in navigation.
type VertexKind string

const (
	// VertexNormal is a plain step backed by a behavior module.
	VertexNormal VertexKind = "normal"
	// VertexEntry is a candidate conversation start (a stadium shape in the source diagram).
	VertexEntry VertexKind = "entry"
	// VertexSubroutine embeds a nested conversation, either inline (Flow) or by locator (Src).
	VertexSubroutine VertexKind = "subroutine"
)

// Edge is one directed transition between two vertices.
type Edge struct {
	Start     string `json:"start" yaml:"start" mapstructure:"start"`
	End       string `json:"end" yaml:"end" mapstructure:"end"`
	Type      string `json:"type,omitempty" yaml:"type,omitempty" mapstructure:"type"`
	Stroke    string `json:"stroke,omitempty" yaml:"stroke,omitempty" mapstructure:"stroke"`
	Text      string `json:"text,omitempty" yaml:"text,omitempty" mapstructure:"text"`
	LabelType string `json:"labelType,omitempty" yaml:"labelType,omitempty" mapstructure:"labelType"`
	Length    int    `json:"length,omitempty" yaml:"length,omitempty" mapstructure:"length"`
}

// Props describes how a vertex's behavior is obtained.
type Props struct {
	// Module is a registry reference to a behavior module.
	Module string `json:"module,omitempty" yaml:"module,omitempty"`
	// Key selects a named export of Module. Empty means the default export.
	Key string `json:"key,omitempty" yaml:"key,omitempty"`

	// Flow is an inline nested graph (subroutine vertices only).
	Flow *Flow `json:"flow,omitempty" yaml:"flow,omitempty"`
	// Src locates an external nested graph (subroutine vertices only).
	Src string `json:"src,omitempty" yaml:"src,omitempty"`

	// Factory is a direct module reference. It takes precedence over Module.
	Factory Factory `json:"-" yaml:"-"`

	// Values are the free-form properties handed to the module.
	Values map[string]any `json:"values,omitempty" yaml:"values,omitempty"`
}

// Vertex is a node of the conversation graph.
type Vertex struct {
	ID    string     `json:"id" yaml:"id"`
	Kind  VertexKind `json:"kind,omitempty" yaml:"kind,omitempty"`
	Text  string     `json:"text,omitempty" yaml:"text,omitempty"`
	Props Props      `json:"props" yaml:"props"`
}

// IsEntry reports whether the vertex is shaped as a conversation start.
func (v *Vertex) IsEntry() bool { return v.Kind == VertexEntry }

// IsSubroutine reports whether the vertex embeds a nested conversation.
func (v *Vertex) IsSubroutine() bool { return v.Kind == VertexSubroutine }

// Adjacency splits the edges touching a vertex by direction.
type Adjacency struct {
	Incoming []Edge `json:"incoming"`
	Outgoing []Edge `json:"outgoing"`
}

// Flow is a parsed conversation graph. It is read-only once handed to the engine.
type Flow struct {
	Type     string             `json:"type" yaml:"type"`
	Vertices map[string]*Vertex `json:"vertices" yaml:"vertices"`
	Edges    []Edge             `json:"edges" yaml:"edges"`

	// EntryIDs is the parser's precomputed start candidates, in order.
	// When empty, candidates are derived from vertex kinds.
	EntryIDs []string `json:"entryIds,omitempty" yaml:"entryIds,omitempty"`

	// Order is the declaration order of Vertices, when the source preserved it.
	Order []string `json:"order,omitempty" yaml:"order,omitempty"`
}

// IsConversation reports whether the flow is typed as a conversation graph.
func (f *Flow) IsConversation() bool {
	if f == nil {
		return false
	}
	return f.Type == FlowTypeConversation || f.Type == FlowTypeFlowchart
}

// Vertex looks up a vertex by id.
func (f *Flow) Vertex(id string) (*Vertex, bool) {
	v, ok := f.Vertices[id]
	if !ok || v == nil {
		return nil, false
	}
	return v, true
}

// EdgesOf returns the edges ending at (incoming) and starting at (outgoing) id,
// each in declaration order.
func (f *Flow) EdgesOf(id string) Adjacency {
	var adj Adjacency
	for _, e := range f.Edges {
		if e.End == id {
			adj.Incoming = append(adj.Incoming, e)
		}
		if e.Start == id {
			adj.Outgoing = append(adj.Outgoing, e)
		}
	}
	return adj
}

// VertexIDs returns all vertex ids in declaration order, falling back to
// lexical order for ids the source did not order.
func (f *Flow) VertexIDs() []string {
	ids := make([]string, 0, len(f.Vertices))
	seen := make(map[string]bool, len(f.Vertices))
	for _, id := range f.Order {
		if _, ok := f.Vertices[id]; ok && !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	var rest []string
	for id := range f.Vertices {
		if !seen[id] {
			rest = append(rest, id)
		}
	}
	sort.Strings(rest)
	return append(ids, rest...)
}

// Entries returns the start candidates. Precomputed EntryIDs are trusted
// verbatim; otherwise every entry-kind vertex without incoming edges qualifies.
func (f *Flow) Entries() []string {
	if len(f.EntryIDs) > 0 {
		out := make([]string, len(f.EntryIDs))
		copy(out, f.EntryIDs)
		return out
	}

	targets := make(map[string]bool, len(f.Edges))
	for _, e := range f.Edges {
		targets[e.End] = true
	}

	var out []string
	for _, id := range f.VertexIDs() {
		if f.Vertices[id].IsEntry() && !targets[id] {
			out = append(out, id)
		}
	}
	return out
}
