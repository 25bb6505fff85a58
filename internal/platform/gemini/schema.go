package gemini

import (
	"github.com/phrazzld/studbud/internal/domain"
	"github.com/phrazzld/studbud/internal/generation"
	"google.golang.org/genai"
)

// responseSchema builds the genai schema for the {"items": [...]} envelope of
// a mode. Gemini's schema dialect has no additionalProperties, so property
// order and required lists carry the contract.
func responseSchema(mode domain.GenerationMode, count int) *genai.Schema {
	fields := generation.ItemFields(mode)

	props := make(map[string]*genai.Schema, len(fields))
	order := make([]string, 0, len(fields))
	for _, f := range fields {
		if f.IsArray() {
			n := int64(f.Length)
			props[f.Name] = &genai.Schema{
				Type:        genai.TypeArray,
				Description: f.Description,
				Items:       &genai.Schema{Type: genai.TypeString},
				MinItems:    &n,
				MaxItems:    &n,
			}
		} else {
			props[f.Name] = &genai.Schema{
				Type:        genai.TypeString,
				Description: f.Description,
			}
		}
		order = append(order, f.Name)
	}

	items := &genai.Schema{
		Type:  genai.TypeArray,
		Items: &genai.Schema{Type: genai.TypeObject, Properties: props, Required: order, PropertyOrdering: order},
	}
	if count > 0 {
		max := int64(count)
		items.MaxItems = &max
	}

	return &genai.Schema{
		Type:       genai.TypeObject,
		Properties: map[string]*genai.Schema{generation.ItemsField: items},
		Required:   []string{generation.ItemsField},
	}
}
