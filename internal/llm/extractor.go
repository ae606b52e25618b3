package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jonathan/resume-evidence/internal/prompts"
	"github.com/jonathan/resume-evidence/internal/types"
)

// ExtractionSchema describes a structured extraction task for the model
type ExtractionSchema struct {
	Name        string        // e.g. "RequirementSet"
	Description string        // system preamble describing the task
	Fields      []SchemaField // expected output fields
}

// SchemaField defines a single field in the extraction output
type SchemaField struct {
	Name        string // JSON field name
	Type        string // type hint rendered verbatim
	Description string
	Required    bool
}

// BuildExtractionPrompt renders the schema and the input text into one prompt
func BuildExtractionPrompt(schema ExtractionSchema, inputText string) string {
	var sb strings.Builder

	sb.WriteString(schema.Description)
	sb.WriteString("\n\nReturn ONLY valid JSON matching this exact structure:\n{\n")
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
	sb.WriteString("Rules:\n")
	sb.WriteString("- Use wording from the text; do not invent requirements.\n")
	sb.WriteString("- Return ONLY the JSON object, no markdown and no explanation.\n\n")
	sb.WriteString("Input text:\n\"\"\"\n")
	sb.WriteString(inputText)
	sb.WriteString("\n\"\"\"\n")

	return sb.String()
}

// RequirementSetSchema is the extraction schema that yields a types.RequirementSet
func RequirementSetSchema() ExtractionSchema {
	return ExtractionSchema{
		Name:        "RequirementSet",
		Description: prompts.MustGet("requirements.json", "extract-requirements"),
		Fields: []SchemaField{
			{Name: "role_title", Type: `"string"`, Description: "job title as written", Required: true},
			{Name: "seniority", Type: `"string"`, Description: "junior, mid, senior, staff, principal or empty"},
			{Name: "must_haves", Type: `["string"]`, Description: "required skills or qualifications, 2-6 words each", Required: true},
			{Name: "nice_to_haves", Type: `["string"]`, Description: "preferred skills, 2-6 words each"},
			{Name: "top_responsibilities", Type: `["string"]`, Description: "at most five core duties"},
			{Name: "hard_constraints", Type: `["string"]`, Description: "location, clearance, citizenship, degree"},
			{Name: "domain", Type: `["string"]`, Description: "industry or product domains"},
			{Name: "concise_summary", Type: `"string"`, Description: "200-350 word summary of the role"},
		},
	}
}

// ExtractRequirements asks the model for a RequirementSet and validates the result
func ExtractRequirements(ctx context.Context, client Client, jobText string) (*types.RequirementSet, error) {
	if strings.TrimSpace(jobText) == "" {
		return nil, fmt.Errorf("job text is empty")
	}

	prompt := BuildExtractionPrompt(RequirementSetSchema(), jobText)
	raw, err := client.GenerateJSON(ctx, prompt, TierLite)
	if err != nil {
		return nil, fmt.Errorf("requirement extraction failed: %w", err)
	}

	var reqs types.RequirementSet
	if err := json.Unmarshal([]byte(CleanJSONBlock(raw)), &reqs); err != nil {
		return nil, fmt.Errorf("failed to parse requirement set: %w", err)
	}
	if err := reqs.Validate(); err != nil {
		return nil, fmt.Errorf("invalid requirement set: %w", err)
	}
	return &reqs, nil
}
