package schema

import (
	"fmt"
	"sort"

	"github.com/aretw0/flowtalk/pkg/domain"
)

// Schema maps field names to their expected types.
type Schema map[string]Type

// Validate checks that every field of schema is present in data with the
// right type. Findings are reported in field order.
func Validate(schema Schema, data map[string]any) error {
	keys := make([]string, 0, len(schema))
	for k := range schema {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return ValidateFields(schema, data, keys...)
}

// ValidateFields validates only the named fields.
func ValidateFields(schema Schema, data map[string]any, fields ...string) error {
	var errs []error
	for _, name := range fields {
		typ, ok := schema[name]
		if !ok {
			errs = append(errs, &ValidationError{Key: name, Reason: "not defined in schema"})
			continue
		}
		value, ok := data[name]
		if !ok {
			errs = append(errs, &ValidationError{Key: name, Reason: "required"})
			continue
		}
		if err := typ.Validate(value); err != nil {
			errs = append(errs, &ValidationError{Key: name, Reason: err.Error(), Value: value})
		}
	}
	return aggregate(errs)
}

// ValidateFlow checks the graph invariants the engine relies on: a
// conversation type, known vertex kinds, resolvable behavior, no dangling
// edges and at least one start candidate. Nested flows are checked too.
func ValidateFlow(flow *domain.Flow) error {
	return aggregate(validateFlow(flow, ""))
}

func validateFlow(flow *domain.Flow, prefix string) []error {
	at := func(path string) string { return prefix + path }

	if flow == nil || len(flow.Vertices) == 0 {
		return []error{&ValidationError{Key: at("vertices"), Reason: "graph has no vertices"}}
	}

	var errs []error
	if !flow.IsConversation() {
		errs = append(errs, &ValidationError{Key: at("type"), Reason: fmt.Sprintf("%q is not a conversation graph", flow.Type)})
	}

	for _, id := range flow.VertexIDs() {
		v := flow.Vertices[id]
		path := at("vertices/" + id)
		if v == nil {
			errs = append(errs, &ValidationError{Key: path, Reason: "vertex is empty"})
			continue
		}
		if v.ID != id {
			errs = append(errs, &ValidationError{Key: path + "/id", Reason: fmt.Sprintf("id %q does not match its key", v.ID)})
		}

		switch v.Kind {
		case domain.VertexSubroutine:
			switch {
			case v.Props.Flow != nil:
				errs = append(errs, validateFlow(v.Props.Flow, path+"/props/flow/")...)
			case v.Props.Src == "":
				errs = append(errs, &ValidationError{Key: path + "/props", Reason: "subroutine needs a flow or a src"})
			}
		case domain.VertexNormal, domain.VertexEntry, "":
			if v.Props.Module == "" && v.Props.Factory == nil {
				errs = append(errs, &ValidationError{Key: path + "/props/module", Reason: "required"})
			}
		default:
			errs = append(errs, &ValidationError{Key: path + "/kind", Reason: "unknown vertex kind", Value: string(v.Kind)})
		}
	}

	for i, e := range flow.Edges {
		path := at(fmt.Sprintf("edges/%d", i))
		if _, ok := flow.Vertex(e.Start); !ok {
			errs = append(errs, &ValidationError{Key: path + "/start", Reason: fmt.Sprintf("unknown vertex %q", e.Start)})
		}
		if _, ok := flow.Vertex(e.End); !ok {
			errs = append(errs, &ValidationError{Key: path + "/end", Reason: fmt.Sprintf("unknown vertex %q", e.End)})
		}
	}

	for i, id := range flow.EntryIDs {
		if _, ok := flow.Vertex(id); !ok {
			errs = append(errs, &ValidationError{Key: at(fmt.Sprintf("entryIds/%d", i)), Reason: fmt.Sprintf("unknown vertex %q", id)})
		}
	}
	if len(flow.Entries()) == 0 {
		errs = append(errs, &ValidationError{Key: at("entryIds"), Reason: "no entry vertex without incoming edges"})
	}
	return errs
}
