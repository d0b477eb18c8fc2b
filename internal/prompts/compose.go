package prompts

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Section is a titled block of input placed between a stage's
// instructions and its response contract.
type Section struct {
	Title string
	Body  string
}

// JSONSection renders v as indented JSON under title.
func JSONSection(title string, v any) (Section, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return Section{}, fmt.Errorf("serialize %s: %w", strings.ToLower(title), err)
	}
	return Section{Title: title, Body: string(data)}, nil
}

// Compose builds a prompt from the stage instructions, the given input
// sections, and the stage response contract. Sections with an empty body
// are rendered with "None" so the model sees the slot was considered.
func Compose(stage Stage, sections ...Section) (string, error) {
	instructions, err := Instructions(stage)
	if err != nil {
		return "", fmt.Errorf("load instructions for %s: %w", stage, err)
	}

	spec, err := Spec(stage)
	if err != nil {
		return "", fmt.Errorf("load spec for %s: %w", stage, err)
	}

	var sb strings.Builder
	sb.WriteString(instructions)

	for _, s := range sections {
		body := strings.TrimSpace(s.Body)
		if body == "" {
			body = "None"
		}
		sb.WriteString("\n\n")
		sb.WriteString(s.Title)
		sb.WriteString(":\n\n")
		sb.WriteString(body)
	}

	sb.WriteString("\n\n")
	sb.WriteString(spec)

	return sb.String(), nil
}
