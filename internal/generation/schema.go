package generation

import (
	"encoding/json"

	"github.com/phrazzld/studbud/internal/domain"
)

// ItemsField is the envelope property that holds the item array.
const ItemsField = "items"

// Field describes one property of a study item in the structured output
// contract.
type Field struct {
	Name        string
	Description string

	// Length is non-zero for fixed-length string arrays.
	Length int
}

// IsArray reports whether the field is a string array.
func (f Field) IsArray() bool { return f.Length > 0 }

// ItemFields returns the ordered item properties for a mode. Every field is
// required.
func ItemFields(mode domain.GenerationMode) []Field {
	if mode == domain.ModeQuiz {
		return []Field{
			{Name: "question", Description: "The question stem."},
			{
				Name:        "options",
				Description: "Exactly four distinct answer options.",
				Length:      domain.QuizOptionCount,
			},
			{Name: "correctAnswer", Description: "The correct option, copied exactly from options."},
		}
	}
	return []Field{
		{Name: "question", Description: "The prompt shown on the front of the card."},
		{Name: "answer", Description: "The answer shown on the back of the card."},
	}
}

// JSONSchema returns the JSON Schema for the response envelope
// {"items": [item, ...]} of the given mode.
func JSONSchema(mode domain.GenerationMode) json.RawMessage {
	fields := ItemFields(mode)

	props := make(map[string]any, len(fields))
	required := make([]string, 0, len(fields))
	for _, f := range fields {
		if f.IsArray() {
			props[f.Name] = map[string]any{
				"type":        "array",
				"description": f.Description,
				"items":       map[string]any{"type": "string"},
				"minItems":    f.Length,
				"maxItems":    f.Length,
			}
		} else {
			props[f.Name] = map[string]any{
				"type":        "string",
				"description": f.Description,
			}
		}
		required = append(required, f.Name)
	}

	schema := map[string]any{
		"type": "object",
		"properties": map[string]any{
			ItemsField: map[string]any{
				"type": "array",
				"items": map[string]any{
					"type":                 "object",
					"properties":           props,
					"required":             required,
					"additionalProperties": false,
				},
			},
		},
		"required":             []string{ItemsField},
		"additionalProperties": false,
	}

	// The schema is built from literals only.
	raw, _ := json.Marshal(schema)
	return raw
}
