package content

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

// payloadSchema is a lazily compiled JSON schema for a list endpoint. A
// payload that fails validation is rejected as a whole instead of
// half-decoding into zero-valued questions.
type payloadSchema struct {
	name       string
	definition map[string]any

	once     sync.Once
	compiled *jsonschema.Schema
	err      error
}

var activityListSchema = &payloadSchema{
	name: "activity-list",
	definition: map[string]any{
		"type": "array",
		"items": map[string]any{
			"type":     "object",
			"required": []any{"id", "difficulty"},
			"properties": map[string]any{
				"id":         map[string]any{"type": "integer"},
				"difficulty": map[string]any{"type": "integer"},
			},
		},
	},
}

var questionListSchema = &payloadSchema{
	name: "question-list",
	definition: map[string]any{
		"type": "array",
		"items": map[string]any{
			"type":     "object",
			"required": []any{"id", "activity_id", "kind"},
			"properties": map[string]any{
				"id":          map[string]any{"type": "integer"},
				"activity_id": map[string]any{"type": "integer"},
				"kind":        map[string]any{"type": "string"},
				"xp_reward":   map[string]any{"type": "integer"},
				"sort_order":  map[string]any{"type": "integer"},
			},
		},
	},
}

func (s *payloadSchema) compile() (*jsonschema.Schema, error) {
	s.once.Do(func() {
		c := jsonschema.NewCompiler()
		schemaURL := fmt.Sprintf("schema://%s.json", s.name)
		if err := c.AddResource(schemaURL, s.definition); err != nil {
			s.err = fmt.Errorf("add resource: %w", err)
			return
		}
		s.compiled, s.err = c.Compile(schemaURL)
	})
	return s.compiled, s.err
}

func (s *payloadSchema) validate(raw []byte) error {
	compiled, err := s.compile()
	if err != nil {
		return fmt.Errorf("compile schema %q: %w", s.name, err)
	}
	var parsed any
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return fmt.Errorf("invalid JSON: %w", err)
	}
	if err := compiled.Validate(parsed); err != nil {
		return fmt.Errorf("schema validation failed: %w", err)
	}
	return nil
}
