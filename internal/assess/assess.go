// Package assess detects syndrome patterns across interpreted CBC values
// and scores overall risk. The model proposes patterns and a score; the
// syndrome table decides which patterns stand and which band the score
// must fall in.
package assess

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"math"
	"slices"
	"strconv"
	"strings"

	"github.com/JaimeStill/hemalyze/internal/llm"
	"github.com/JaimeStill/hemalyze/internal/prompts"
	"github.com/JaimeStill/hemalyze/internal/report"
)

// ErrInvalidTable indicates a malformed syndrome table.
var ErrInvalidTable = errors.New("invalid syndrome table")

// Assessor combines model judgement with the syndrome table.
type Assessor struct {
	model  llm.Completer
	table  *Table
	logger *slog.Logger
}

// New creates an Assessor over the embedded syndrome table.
func New(model llm.Completer, logger *slog.Logger) (*Assessor, error) {
	table, err := DefaultTable()
	if err != nil {
		return nil, err
	}
	return NewWithTable(model, table, logger), nil
}

// NewWithTable creates an Assessor over a custom syndrome table.
func NewWithTable(model llm.Completer, table *Table, logger *slog.Logger) *Assessor {
	return &Assessor{
		model:  model,
		table:  table,
		logger: logger.With("system", "assess"),
	}
}

type response struct {
	Patterns  []string `json:"patterns"`
	RiskScore float64  `json:"risk_score"`
	Rationale []string `json:"risk_rationale"`
}

// Assess returns the detected patterns and risk assessment. It does
// nothing when there are no interpreted parameters. A model failure
// returns an error and no partial result.
func (a *Assessor) Assess(
	ctx context.Context,
	interpreted map[string]report.InterpretedParameter,
	patient report.PatientInfo,
) ([]string, *report.RiskAssessment, error) {
	if len(interpreted) == 0 {
		return nil, nil, nil
	}

	prompt, err := a.prompt(interpreted, patient)
	if err != nil {
		return nil, nil, err
	}

	resp, err := llm.CompleteJSON[response](ctx, a.model, prompt)
	if err != nil {
		return nil, nil, err
	}

	d := a.table.detect(interpreted)

	for _, name := range resp.Patterns {
		if !d.has(name) {
			a.logger.DebugContext(ctx, "model pattern rejected", "pattern", name)
		}
	}

	names := make([]string, len(d.patterns))
	for i, p := range d.patterns {
		names[i] = p.Name
	}

	low, high := Band(d.patterns)
	risk := &report.RiskAssessment{
		Score:     clamp(int(math.Round(resp.RiskScore)), low, high),
		Rationale: rationale(resp.Rationale, d, interpreted),
	}

	return names, risk, nil
}

func (a *Assessor) prompt(interpreted map[string]report.InterpretedParameter, patient report.PatientInfo) (string, error) {
	params, err := prompts.JSONSection("Interpreted Parameters", interpreted)
	if err != nil {
		return "", err
	}
	demo, err := prompts.JSONSection("Patient", patient)
	if err != nil {
		return "", err
	}

	return prompts.Compose(
		prompts.StagePatterns,
		prompts.Section{Title: "Syndrome Table", Body: a.table.Describe()},
		params,
		demo,
	)
}

func (d detection) has(name string) bool {
	for _, p := range d.patterns {
		if strings.EqualFold(p.Name, strings.TrimSpace(name)) {
			return true
		}
	}
	return false
}

// Band returns the inclusive risk score range implied by the patterns.
func Band(patterns []Pattern) (int, int) {
	severe := false
	for _, p := range patterns {
		switch p.Severity {
		case SeverityCritical:
			return 9, 10
		case SeveritySevere:
			severe = true
		}
	}

	switch {
	case severe || len(patterns) >= 2:
		return 7, 8
	case len(patterns) == 1:
		return 4, 6
	default:
		return 1, 3
	}
}

func clamp(v, low, high int) int {
	return max(low, min(v, high))
}

func rationale(model []string, d detection, interpreted map[string]report.InterpretedParameter) []string {
	var out []string
	for _, line := range model {
		if line = strings.TrimSpace(line); line != "" {
			out = append(out, line)
		}
	}

	out = append(out, d.suppressed...)

	for _, p := range d.patterns {
		out = append(out, evidence(p, interpreted))
	}

	if len(out) == 0 {
		out = append(out, summary(interpreted))
	}
	return out
}

// summary describes the abnormal values when nothing else explains the score.
func summary(interpreted map[string]report.InterpretedParameter) string {
	var parts []string
	for _, name := range slices.Sorted(maps.Keys(interpreted)) {
		ip := interpreted[name]
		if ip.Status.Abnormal() {
			parts = append(parts, fmt.Sprintf("%s %s (%s)", name, formatValue(ip), ip.Status))
		}
	}
	if len(parts) == 0 {
		return "No abnormal values detected"
	}
	return "No syndrome pattern detected: " + strings.Join(parts, ", ")
}

func evidence(p Pattern, interpreted map[string]report.InterpretedParameter) string {
	parts := make([]string, len(p.Requires))
	for i, c := range p.Requires {
		ip := interpreted[c.Param]
		parts[i] = fmt.Sprintf("%s %s (%s)", c.Param, formatValue(ip), ip.Status)
	}
	return fmt.Sprintf("%s: %s", p.Name, strings.Join(parts, ", "))
}

func formatValue(ip report.InterpretedParameter) string {
	if ip.Value == nil {
		return "n/a"
	}
	v := strconv.FormatFloat(*ip.Value, 'f', -1, 64)
	if ip.Unit == "" {
		return v
	}
	return v + " " + ip.Unit
}
