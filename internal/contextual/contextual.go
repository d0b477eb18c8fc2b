// Package contextual places lab findings in the context of the patient's
// age and gender.
package contextual

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"strings"

	"github.com/JaimeStill/hemalyze/internal/llm"
	"github.com/JaimeStill/hemalyze/internal/prompts"
	"github.com/JaimeStill/hemalyze/internal/report"
)

// GenericGuidance replaces the demographics section when neither age nor
// gender is known.
const GenericGuidance = "Age and gender are unknown. Give general guidance on how age and gender usually influence these findings."

var errEmptyAnalysis = errors.New("analysis is empty")

// Analyzer produces the contextual analysis of a report.
type Analyzer struct {
	model  llm.Completer
	logger *slog.Logger
}

// New creates an Analyzer.
func New(model llm.Completer, logger *slog.Logger) *Analyzer {
	return &Analyzer{
		model:  model,
		logger: logger.With("system", "contextual"),
	}
}

type response struct {
	Analysis         string `json:"analysis"`
	AdjustedConcerns string `json:"adjusted_concerns"`
}

func (r *response) Validate() error {
	if strings.TrimSpace(r.Analysis) == "" {
		return errEmptyAnalysis
	}
	return nil
}

// Analyze returns nil without calling the model when there are no
// interpreted parameters.
func (a *Analyzer) Analyze(
	ctx context.Context,
	patient report.PatientInfo,
	interpreted map[string]report.InterpretedParameter,
	patterns []string,
) (*report.ContextAnalysis, error) {
	if len(interpreted) == 0 {
		return nil, nil
	}

	params, err := prompts.JSONSection("Lab Results", interpreted)
	if err != nil {
		return nil, err
	}

	prompt, err := prompts.Compose(
		prompts.StageContext,
		prompts.Section{Title: "Patient", Body: demographics(patient)},
		params,
		prompts.Section{Title: "Identified Patterns", Body: strings.Join(patterns, "\n")},
	)
	if err != nil {
		return nil, err
	}

	resp, err := llm.CompleteJSON[response](ctx, a.model, prompt)
	if err != nil {
		return nil, err
	}

	a.logger.DebugContext(ctx, "context analysis complete", "demographics", patient.HasDemographics())

	return &report.ContextAnalysis{
		Analysis:         strings.TrimSpace(resp.Analysis),
		AdjustedConcerns: strings.TrimSpace(resp.AdjustedConcerns),
	}, nil
}

func demographics(p report.PatientInfo) string {
	if !p.HasDemographics() {
		return GenericGuidance
	}

	age, gender := "unknown", "unknown"
	if p.Age != nil {
		age = strconv.Itoa(*p.Age)
	}
	if p.Gender != nil {
		gender = *p.Gender
	}
	return "Age: " + age + "\nGender: " + gender
}
