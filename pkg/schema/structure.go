package schema

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

const documentSchemaURL = "https://flowtalk.dev/schemas/flow.json"

const documentSchemaJSON = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "$ref": "#/$defs/flow",
  "$defs": {
    "flow": {
      "type": "object",
      "required": ["vertices"],
      "properties": {
        "type": {"type": "string"},
        "vertices": {
          "type": "object",
          "minProperties": 1,
          "additionalProperties": {"$ref": "#/$defs/vertex"}
        },
        "edges": {"type": "array", "items": {"$ref": "#/$defs/edge"}},
        "entryIds": {"type": "array", "items": {"type": "string", "minLength": 1}},
        "order": {"type": "array", "items": {"type": "string"}}
      },
      "additionalProperties": false
    },
    "vertex": {
      "type": "object",
      "properties": {
        "id": {"type": "string"},
        "kind": {"enum": ["normal", "entry", "subroutine"]},
        "text": {"type": "string"},
        "props": {"$ref": "#/$defs/props"}
      },
      "additionalProperties": false
    },
    "props": {
      "type": "object",
      "properties": {
        "module": {"type": "string"},
        "key": {"type": "string"},
        "src": {"type": "string"},
        "flow": {"$ref": "#/$defs/flow"}
      }
    },
    "edge": {
      "type": "object",
      "required": ["start", "end"],
      "properties": {
        "start": {"type": "string", "minLength": 1},
        "end": {"type": "string", "minLength": 1},
        "type": {"type": "string"},
        "stroke": {"type": "string"},
        "text": {"type": "string"},
        "labelType": {"type": "string"},
        "length": {"type": "integer", "minimum": 0}
      },
      "additionalProperties": false
    }
  }
}`

var documentSchema = sync.OnceValues(func() (*jsonschema.Schema, error) {
	doc, err := jsonschema.UnmarshalJSON(strings.NewReader(documentSchemaJSON))
	if err != nil {
		return nil, fmt.Errorf("unmarshal flow schema: %w", err)
	}
	c := jsonschema.NewCompiler()
	if err := c.AddResource(documentSchemaURL, doc); err != nil {
		return nil, fmt.Errorf("add flow schema resource: %w", err)
	}
	return c.Compile(documentSchemaURL)
})

// checkStructure validates a decoded document against the flow JSON schema.
// Violations are reported as an AggregateError keyed by instance location.
func checkStructure(raw map[string]any) error {
	sch, err := documentSchema()
	if err != nil {
		return err
	}

	// Round-trip so numbers reach the validator as json.Number.
	b, err := json.Marshal(raw)
	if err != nil {
		return fmt.Errorf("encoding document: %w", err)
	}
	inst, err := jsonschema.UnmarshalJSON(strings.NewReader(string(b)))
	if err != nil {
		return fmt.Errorf("encoding document: %w", err)
	}

	if err := sch.Validate(inst); err != nil {
		verr, ok := err.(*jsonschema.ValidationError)
		if !ok {
			return err
		}
		return aggregate(violations(verr))
	}
	return nil
}

func violations(verr *jsonschema.ValidationError) []error {
	if len(verr.Causes) == 0 {
		loc := "/" + strings.Join(verr.InstanceLocation, "/")
		return []error{&ValidationError{Key: loc, Reason: verr.Error()}}
	}
	var out []error
	for _, cause := range verr.Causes {
		out = append(out, violations(cause)...)
	}
	return out
}
