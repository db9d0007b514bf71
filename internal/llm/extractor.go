package llm

import (
	"fmt"
	"strings"
)

// ExtractionSchema describes a structured extraction task for the model.
type ExtractionSchema struct {
	Name        string
	Description string
	Fields      []SchemaField
}

// SchemaField is one field of the expected JSON output.
type SchemaField struct {
	Name        string // JSON field name
	Type        string // type hint shown to the model
	Description string
	Required    bool
}

// BuildExtractionPrompt renders schema and the input text into a single prompt.
func BuildExtractionPrompt(schema ExtractionSchema, inputText string) string {
	var sb strings.Builder

	sb.WriteString(schema.Description)
	sb.WriteString("\n\n")

	sb.WriteString("Return ONLY valid JSON matching this exact structure:\n{\n")
	for i, field := range schema.Fields {
		typeHint := field.Type
		if typeHint == "" {
			typeHint = `"string"`
		}
		sb.WriteString(fmt.Sprintf("  %q: %s", field.Name, typeHint))
		if field.Required {
			sb.WriteString(" (required)")
		}
		if field.Description != "" {
			sb.WriteString(" // " + field.Description)
		}
		if i < len(schema.Fields)-1 {
			sb.WriteString(",")
		}
		sb.WriteString("\n")
	}
	sb.WriteString("}\n\n")

	sb.WriteString("IMPORTANT:\n")
	sb.WriteString("- Only report what the text states. Use empty lists when nothing is found.\n")
	sb.WriteString("- Return ONLY the JSON object, no markdown, no explanation.\n\n")

	sb.WriteString("Input text:\n\"\"\"\n")
	sb.WriteString(inputText)
	sb.WriteString("\n\"\"\"\n")

	return sb.String()
}

// PartsInfoSchema extracts the parts a job description asks for.
func PartsInfoSchema() ExtractionSchema {
	return ExtractionSchema{
		Name: "PartsInfo",
		Description: `You read field-service job descriptions for a robotics service shop.
Extract the parts information mentioned in the description.`,
		Fields: []SchemaField{
			{Name: "parts_mentioned", Type: `["string"]`, Description: "part names or types mentioned", Required: true},
			{Name: "part_numbers", Type: `["string"]`, Description: "part numbers such as CR-SM-004112", Required: true},
			{Name: "quantities", Type: `["string"]`, Description: "quantities if mentioned"},
			{Name: "urgency_indicators", Type: `["string"]`, Description: "urgency language found in the text"},
			{Name: "summary", Type: `"string"`, Description: "one sentence on the parts needed", Required: true},
		},
	}
}
