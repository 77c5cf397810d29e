package schema

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"
)

// Type checks values and converts raw text answers into them.
type Type interface {
	// Name is the type's spelling in flow documents ("string", "[int]").
	Name() string
	// Validate checks that value conforms to the type.
	Validate(value any) error
	// Coerce converts raw user input into a value of the type.
	Coerce(raw string) (any, error)
}

// StringType accepts any string.
type StringType struct{}

func (t *StringType) Name() string { return "string" }

func (t *StringType) Validate(value any) error {
	if _, ok := value.(string); !ok {
		return fmt.Errorf("expected string, got %T", value)
	}
	return nil
}

func (t *StringType) Coerce(raw string) (any, error) { return raw, nil }

// IntType accepts integers, and whole floats as produced by JSON decoding.
type IntType struct{}

func (t *IntType) Name() string { return "int" }

func (t *IntType) Validate(value any) error {
	switch v := value.(type) {
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return nil
	case float64:
		if v == float64(int64(v)) {
			return nil
		}
		return fmt.Errorf("expected int, got fractional number %v", v)
	default:
		return fmt.Errorf("expected int, got %T", value)
	}
}

func (t *IntType) Coerce(raw string) (any, error) {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return nil, fmt.Errorf("%q is not a whole number", raw)
	}
	return n, nil
}

// FloatType accepts any number.
type FloatType struct{}

func (t *FloatType) Name() string { return "float" }

func (t *FloatType) Validate(value any) error {
	switch value.(type) {
	case float32, float64, int, int8, int16, int32, int64:
		return nil
	default:
		return fmt.Errorf("expected float, got %T", value)
	}
}

func (t *FloatType) Coerce(raw string) (any, error) {
	f, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return nil, fmt.Errorf("%q is not a number", raw)
	}
	return f, nil
}

// BoolType accepts booleans. Coerce also understands yes/no answers.
type BoolType struct{}

func (t *BoolType) Name() string { return "bool" }

func (t *BoolType) Validate(value any) error {
	if _, ok := value.(bool); !ok {
		return fmt.Errorf("expected bool, got %T", value)
	}
	return nil
}

func (t *BoolType) Coerce(raw string) (any, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "y", "yes", "true", "1", "ok":
		return true, nil
	case "n", "no", "false", "0":
		return false, nil
	}
	return nil, fmt.Errorf("%q is not a yes/no answer", raw)
}

// SliceType accepts slices whose elements all match elem.
// Coerce splits comma-separated input.
type SliceType struct {
	elem Type
}

func (t *SliceType) Name() string { return "[" + t.elem.Name() + "]" }

func (t *SliceType) Validate(value any) error {
	rv := reflect.ValueOf(value)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return fmt.Errorf("expected slice, got %T", value)
	}
	for i := 0; i < rv.Len(); i++ {
		if err := t.elem.Validate(rv.Index(i).Interface()); err != nil {
			return fmt.Errorf("element %d: %w", i, err)
		}
	}
	return nil
}

func (t *SliceType) Coerce(raw string) (any, error) {
	var out []any
	for i, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		v, err := t.elem.Coerce(part)
		if err != nil {
			return nil, fmt.Errorf("element %d: %w", i, err)
		}
		out = append(out, v)
	}
	return out, nil
}

// EnumType accepts one of a fixed set of strings, matched case-insensitively on input.
type EnumType struct {
	choices []string
}

func (t *EnumType) Name() string { return "enum(" + strings.Join(t.choices, "|") + ")" }

func (t *EnumType) Validate(value any) error {
	s, ok := value.(string)
	if !ok {
		return fmt.Errorf("expected one of %v, got %T", t.choices, value)
	}
	for _, c := range t.choices {
		if c == s {
			return nil
		}
	}
	return fmt.Errorf("expected one of %v, got %q", t.choices, s)
}

func (t *EnumType) Coerce(raw string) (any, error) {
	raw = strings.TrimSpace(raw)
	for _, c := range t.choices {
		if strings.EqualFold(c, raw) {
			return c, nil
		}
	}
	return nil, fmt.Errorf("%q is not one of %v", raw, t.choices)
}

// Choices returns the accepted values.
func (t *EnumType) Choices() []string { return append([]string(nil), t.choices...) }

// CustomType delegates validation to a function. Input is kept as text.
type CustomType struct {
	name     string
	validate func(any) error
}

func (t *CustomType) Name() string { return t.name }

func (t *CustomType) Validate(value any) error { return t.validate(value) }

func (t *CustomType) Coerce(raw string) (any, error) {
	if err := t.validate(raw); err != nil {
		return nil, err
	}
	return raw, nil
}

func String() Type { return &StringType{} }
func Int() Type    { return &IntType{} }
func Float() Type  { return &FloatType{} }
func Bool() Type   { return &BoolType{} }

// Slice returns a slice type over elem.
func Slice(elem Type) Type { return &SliceType{elem: elem} }

// Enum returns a type accepting exactly the given strings.
func Enum(choices ...string) Type { return &EnumType{choices: choices} }

// Custom returns a named type backed by validate.
func Custom(name string, validate func(any) error) Type {
	return &CustomType{name: name, validate: validate}
}

// ParseType reads a type spelling: "string", "int", "float", "bool",
// "[elem]" and "enum(a|b|c)".
func ParseType(spec string) (Type, error) {
	spec = strings.TrimSpace(spec)
	if len(spec) > 2 && spec[0] == '[' && spec[len(spec)-1] == ']' {
		elem, err := ParseType(spec[1 : len(spec)-1])
		if err != nil {
			return nil, err
		}
		return Slice(elem), nil
	}
	if rest, ok := strings.CutPrefix(spec, "enum("); ok && strings.HasSuffix(rest, ")") {
		var choices []string
		for _, c := range strings.Split(strings.TrimSuffix(rest, ")"), "|") {
			if c = strings.TrimSpace(c); c != "" {
				choices = append(choices, c)
			}
		}
		if len(choices) == 0 {
			return nil, fmt.Errorf("enum needs at least one choice: %s", spec)
		}
		return Enum(choices...), nil
	}

	switch spec {
	case "", "string":
		return String(), nil
	case "int":
		return Int(), nil
	case "float", "number":
		return Float(), nil
	case "bool", "boolean":
		return Bool(), nil
	default:
		return nil, fmt.Errorf("unsupported type: %s", spec)
	}
}

// ParseTypeMap converts field names to type spellings into a Schema.
func ParseTypeMap(typeMap map[string]string) (Schema, error) {
	result := make(Schema, len(typeMap))
	for key, spec := range typeMap {
		t, err := ParseType(spec)
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", key, err)
		}
		result[key] = t
	}
	return result, nil
}
