package specialist

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/google/jsonschema-go/jsonschema"
)

// StrictSchema infers the JSON schema of T and applies the strict
// structured-output rules: every object lists all of its properties as
// required and rejects unknown ones.
func StrictSchema[T any]() (*jsonschema.Schema, error) {
	s, err := jsonschema.For[T](nil)
	if err != nil {
		return nil, fmt.Errorf("infer schema: %w", err)
	}
	makeStrict(s)
	return s, nil
}

func makeStrict(s *jsonschema.Schema) {
	if s == nil {
		return
	}
	if len(s.Properties) > 0 {
		s.AdditionalProperties = &jsonschema.Schema{Not: &jsonschema.Schema{}}
		required := make([]string, 0, len(s.Properties))
		for name, prop := range s.Properties {
			required = append(required, name)
			makeStrict(prop)
		}
		sort.Strings(required)
		s.Required = required
	}
	makeStrict(s.Items)
}

// property walks nested object properties.
func property(s *jsonschema.Schema, path ...string) (*jsonschema.Schema, error) {
	cur := s
	for _, p := range path {
		next, ok := cur.Properties[p]
		if !ok {
			return nil, fmt.Errorf("schema has no property %q", p)
		}
		cur = next
	}
	return cur, nil
}

// SetEnum restricts the string property at path to values. A nullable
// property keeps accepting null.
func SetEnum(s *jsonschema.Schema, values []string, path ...string) error {
	p, err := property(s, path...)
	if err != nil {
		return err
	}
	enum := make([]any, 0, len(values)+1)
	for _, v := range values {
		enum = append(enum, v)
	}
	for _, t := range p.Types {
		if t == "null" {
			enum = append(enum, nil)
		}
	}
	p.Enum = enum
	return nil
}

// SetRange bounds the numeric property at path.
func SetRange(s *jsonschema.Schema, lo, hi float64, path ...string) error {
	p, err := property(s, path...)
	if err != nil {
		return err
	}
	p.Minimum = &lo
	p.Maximum = &hi
	return nil
}

// DecodeStrict validates raw against resolved and unmarshals it into out.
func DecodeStrict(raw json.RawMessage, resolved *jsonschema.Resolved, out any) error {
	if len(raw) == 0 {
		return errors.New("response is not valid JSON")
	}
	var instance any
	if err := json.Unmarshal(raw, &instance); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	if err := resolved.Validate(instance); err != nil {
		return fmt.Errorf("validate response: %w", err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
