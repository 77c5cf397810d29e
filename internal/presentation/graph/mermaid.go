package graph

import (
	"fmt"
	"strings"

	"github.com/aretw0/flowtalk/pkg/domain"
)

// Overlay contains conversation state to visualize on the graph.
type Overlay struct {
	Visited []string
	Current string
}

// OverlayOf builds an overlay from a breadcrumb trail, whose last step is current.
func OverlayOf(trail []*domain.Step) *Overlay {
	o := &Overlay{}
	for _, s := range trail {
		o.Visited = append(o.Visited, s.ID)
	}
	if n := len(trail); n > 0 {
		o.Current = trail[n-1].ID
	}
	return o
}

// GenerateMermaid produces a Mermaid flowchart for flow.
// Shapes mirror the vertex kinds:
// - Entry: (["Stadium"])
// - Subroutine: [["Subroutine"]]
// - Normal: ["Rectangle"]
// Inline subroutine graphs are not expanded.
func GenerateMermaid(flow *domain.Flow, overlay *Overlay) string {
	var sb strings.Builder
	sb.WriteString("graph TD\n")
	if flow == nil {
		return sb.String()
	}

	for _, id := range flow.VertexIDs() {
		v := flow.Vertices[id]
		opener, closer := "[", "]"
		switch v.Kind {
		case domain.VertexEntry:
			opener, closer = "([", "])"
		case domain.VertexSubroutine:
			opener, closer = "[[", "]]"
		}
		text := v.Text
		if text == "" {
			text = id
		}
		fmt.Fprintf(&sb, "    %s%s\"%s\"%s\n", sanitizeID(id), opener, escape(text), closer)
	}

	for _, e := range flow.Edges {
		fmt.Fprintf(&sb, "    %s %s %s\n", sanitizeID(e.Start), arrow(e), sanitizeID(e.End))
	}

	if overlay != nil {
		sb.WriteString("\n    %% Overlay Styles\n")
		sb.WriteString("    classDef visited fill:#e1f5fe,stroke:#01579b,stroke-width:2px,color:#000;\n")
		sb.WriteString("    classDef current fill:#ffeb3b,stroke:#fbc02d,stroke-width:4px,color:#000;\n")

		seen := make(map[string]bool)
		for _, id := range overlay.Visited {
			safe := sanitizeID(id)
			if safe == "" || seen[safe] {
				continue
			}
			seen[safe] = true
			fmt.Fprintf(&sb, "    class %s visited;\n", safe)
		}
		if overlay.Current != "" {
			fmt.Fprintf(&sb, "    class %s current;\n", sanitizeID(overlay.Current))
		}
	}

	return sb.String()
}

func arrow(e domain.Edge) string {
	open := e.Type == "arrow_open"
	var plain, lead, tail string
	switch e.Stroke {
	case "dotted":
		plain, lead, tail = "-.->", "-.", ".->"
		if open {
			plain, tail = "-.-", ".-"
		}
	case "thick":
		plain, lead, tail = "==>", "==", "==>"
		if open {
			plain, tail = "===", "==="
		}
	default:
		plain, lead, tail = "-->", "--", "-->"
		if open {
			plain, tail = "---", "---"
		}
	}
	if e.Text == "" {
		return plain
	}
	return fmt.Sprintf("%s \"%s\" %s", lead, escape(e.Text), tail)
}

func escape(s string) string {
	return strings.ReplaceAll(s, "\"", "'")
}

func sanitizeID(id string) string {
	return strings.NewReplacer(".", "_", "-", "_", "/", "_", "\\", "_", " ", "_").Replace(id)
}
