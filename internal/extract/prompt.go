package extract

import (
	"fmt"
	"strings"
)

// SystemPrompt is sent as the system message of every extraction request.
const SystemPrompt = "You turn photographs of restaurant menus into structured data. Reply with JSON only."

// Schema is a named JSON schema a caller may attach as a structured-output
// constraint. Callers that cannot enforce schemas ignore it.
type Schema struct {
	Name string
	Body map[string]any
}

func nullable(kinds ...string) map[string]any {
	return map[string]any{"type": append(kinds, "null")}
}

// BatchSchema describes one batch reply.
var BatchSchema = &Schema{
	Name: "menu_batch",
	Body: map[string]any{
		"type": "object",
		"properties": map[string]any{
			"items": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"name":        map[string]any{"type": "string"},
						"description": nullable("string"),
						"price":       nullable("number", "string"),
						"calories":    nullable("number", "string"),
						"tags":        map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
						"review":      nullable("string"),
						"confidence":  nullable("string"),
					},
					"required":             []string{"name"},
					"additionalProperties": true,
				},
			},
			"has_more":  map[string]any{"type": []string{"boolean", "string"}},
			"truncated": map[string]any{"type": []string{"boolean", "string"}},
		},
		"required":             []string{"items"},
		"additionalProperties": true,
	},
}

// SectionsSchema describes the single-pass sectioned reply.
var SectionsSchema = &Schema{
	Name: "menu_sections",
	Body: map[string]any{
		"type": "object",
		"properties": map[string]any{
			"sections": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"name":        map[string]any{"type": "string"},
						"description": nullable("string"),
						"items": map[string]any{
							"type": "array",
							"items": map[string]any{
								"type": "object",
								"properties": map[string]any{
									"name":        map[string]any{"type": "string"},
									"description": nullable("string"),
									"price":       nullable("number", "string"),
									"tags":        map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
								},
								"required":             []string{"name"},
								"additionalProperties": true,
							},
						},
					},
					"required":             []string{"name", "items"},
					"additionalProperties": true,
				},
			},
		},
		"required":             []string{"sections"},
		"additionalProperties": true,
	},
}

// BatchPrompt builds the instruction text for one batch round. seen is the
// window of names already accepted, oldest first.
func BatchPrompt(round, maxItems int, seen []string) string {
	lines := []string{
		fmt.Sprintf("Menu extraction, batch %d.", round),
		`Answer with one JSON object: {"items":[{"name":string,"description":string,"price":number,"calories":number,"tags":[string],"review":string,"confidence":"high"|"medium"|"low"}],"has_more":boolean}.`,
		fmt.Sprintf("List at most %d dishes from the image that have not been listed yet.", maxItems),
		"Use the dish name exactly as printed. Price is a plain number in the menu currency. Calories is an integer estimate.",
		"Tags are dietary labels printed on the menu or strongly implied by the dish name.",
		`The review is one sentence starting with "Excellent fit", "Good fit", "Caution" or "Avoid", a hyphen, then the evidence it rests on.`,
		`Confidence is "high" when the menu states the value, "medium" for a reasonable inference and "low" for a guess.`,
		"Do not give medical advice. Say \"may contain\" unless an allergen is printed.",
		`Set "has_more" to true only if the image shows dishes beyond this batch.`,
	}
	if len(seen) > 0 {
		lines = append(lines, fmt.Sprintf("Already captured, do not repeat: %s.", strings.Join(seen, "; ")))
	}
	return strings.Join(lines, "\n")
}

// SinglePassPrompt asks for the whole menu grouped by section in one reply.
func SinglePassPrompt() string {
	return strings.Join([]string{
		"Transcribe the restaurant menu in the image.",
		`Group dishes by the sections printed on the menu. Use a single section named "Menu" when there are none.`,
		"Keep sections and dishes in menu order. Give each dish its printed name and its price string as printed.",
		"Include a description or tags only when the menu prints them. Skip dishes whose name or price is unreadable.",
		`Answer with one JSON object: {"sections":[{"name":string,"items":[{"name":string,"price":string,"description":string,"tags":[string]}]}]}.`,
	}, "\n")
}
