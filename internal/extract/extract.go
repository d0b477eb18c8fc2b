// Package extract reads CBC lab values and patient demographics out of
// raw report text with the help of a language model, then enforces the
// unit and plausibility rules in code.
package extract

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"

	"github.com/JaimeStill/hemalyze/internal/llm"
	"github.com/JaimeStill/hemalyze/internal/prompts"
	"github.com/JaimeStill/hemalyze/internal/report"
)

var (
	// ErrNoText indicates there was no report text to extract from.
	ErrNoText = errors.New("no text to extract from")
	// ErrInvalidCatalog indicates a malformed field catalog.
	ErrInvalidCatalog = errors.New("invalid field catalog")
)

// DefaultNote marks every value that came from the model.
const DefaultNote = "Extracted by LLM"

// Extractor turns report text into canonical lab parameters.
type Extractor struct {
	model   llm.Completer
	catalog *Catalog
	logger  *slog.Logger
}

// New creates an Extractor over the embedded CBC catalog.
func New(model llm.Completer, logger *slog.Logger) (*Extractor, error) {
	catalog, err := DefaultCatalog()
	if err != nil {
		return nil, err
	}
	return NewWithCatalog(model, catalog, logger), nil
}

// NewWithCatalog creates an Extractor over a custom catalog.
func NewWithCatalog(model llm.Completer, catalog *Catalog, logger *slog.Logger) *Extractor {
	return &Extractor{
		model:   model,
		catalog: catalog,
		logger:  logger.With("system", "extract"),
	}
}

// response is the raw model output keyed by catalog JSON keys.
type response map[string]any

// Validate rejects values that are neither scalars nor null.
func (r *response) Validate() error {
	for k, v := range *r {
		switch v.(type) {
		case nil, string, float64, bool:
		default:
			return fmt.Errorf("field %s: unexpected %T value", k, v)
		}
	}
	return nil
}

// Extract reads lab parameters and demographics from text. Fields the
// model could not determine are absent from the result. On failure no
// partial result is returned.
func (e *Extractor) Extract(ctx context.Context, text string) (map[string]report.ExtractedParameter, report.PatientInfo, error) {
	if strings.TrimSpace(text) == "" {
		return nil, report.PatientInfo{}, ErrNoText
	}

	prompt, err := prompts.Compose(prompts.StageExtract, prompts.Section{Title: "Report Text", Body: text})
	if err != nil {
		return nil, report.PatientInfo{}, err
	}

	resp, err := llm.CompleteJSON[response](ctx, e.model, prompt)
	if err != nil {
		return nil, report.PatientInfo{}, err
	}

	params := e.parameters(resp)
	patient := e.patient(resp)

	e.logger.DebugContext(ctx, "extraction complete", "parameters", len(params))
	return params, patient, nil
}

func (e *Extractor) parameters(resp response) map[string]report.ExtractedParameter {
	out := make(map[string]report.ExtractedParameter)

	for _, f := range e.catalog.Fields {
		raw, ok := resp[f.Key]
		if !ok || raw == nil {
			continue
		}

		value, ok := ParseNumber(raw)
		if !ok {
			continue
		}

		notes := []string{DefaultNote}

		if scaled, note := applyMagnitude(f, raw, value); note != "" {
			value = scaled
			notes = append(notes, note)
		}

		flag, _ := resp[f.FlagKey].(string)
		if corrected, note := correctDroppedDigit(f, value, flag); note != "" {
			value = corrected
			notes = append(notes, note)
		}

		v := value
		out[f.Name] = report.ExtractedParameter{
			Raw:   raw,
			Value: &v,
			Unit:  f.Unit,
			Note:  strings.Join(notes, "; "),
		}
	}

	return out
}

func (e *Extractor) patient(resp response) report.PatientInfo {
	var p report.PatientInfo

	if name, ok := resp[e.catalog.Patient.Name].(string); ok && strings.TrimSpace(name) != "" {
		n := strings.TrimSpace(name)
		p.Name = &n
	}
	if age, ok := ParseNumber(resp[e.catalog.Patient.Age]); ok && age > 0 && age < 150 {
		a := int(math.Round(age))
		p.Age = &a
	}
	if gender, ok := resp[e.catalog.Patient.Gender].(string); ok && strings.TrimSpace(gender) != "" {
		g := strings.TrimSpace(gender)
		p.Gender = &g
	}

	return p
}
