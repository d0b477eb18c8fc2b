// Package synthesis writes the patient-facing narrative report.
package synthesis

import (
	"context"
	"errors"
	"log/slog"
	"maps"
	"regexp"
	"strings"

	"github.com/JaimeStill/hemalyze/internal/llm"
	"github.com/JaimeStill/hemalyze/internal/prompts"
	"github.com/JaimeStill/hemalyze/internal/report"
)

// NoData is returned in place of a report when nothing was interpreted.
const NoData = "No data available to synthesize."

// ErrEmptyReport indicates the model returned no report text.
var ErrEmptyReport = errors.New("empty report")

var (
	headerRe  = regexp.MustCompile(`^\s{0,3}#{1,6}\s+(.+?)\s*#*\s*$`)
	ruleRe    = regexp.MustCompile(`^\s*([-*_])(\s*[-*_]){2,}\s*$`)
	blankRuns = regexp.MustCompile(`\n{3,}`)
)

// Input gathers everything the narrative draws on.
type Input struct {
	Patient     report.PatientInfo
	Interpreted map[string]report.InterpretedParameter
	Patterns    []string
	Risk        *report.RiskAssessment
	Context     *report.ContextAnalysis
}

// Synthesizer turns the analysis into a formatted narrative.
type Synthesizer struct {
	model  llm.Completer
	logger *slog.Logger
}

// New creates a Synthesizer.
func New(model llm.Completer, logger *slog.Logger) *Synthesizer {
	return &Synthesizer{
		model:  model,
		logger: logger.With("system", "synthesis"),
	}
}

// Synthesize returns NoData without calling the model when nothing was
// interpreted. The returned text never contains markdown headers or
// horizontal rules and ends with the signature exactly once.
func (s *Synthesizer) Synthesize(ctx context.Context, in Input) (string, error) {
	if len(in.Interpreted) == 0 {
		return NoData, nil
	}

	prompt, err := s.prompt(in)
	if err != nil {
		return "", err
	}

	content, err := s.model.Complete(ctx, llm.Request{Prompt: prompt})
	if err != nil {
		return "", err
	}

	text := Normalize(content)
	if text == prompts.Signature {
		return "", ErrEmptyReport
	}

	s.logger.DebugContext(ctx, "synthesis complete", "length", len(text))
	return text, nil
}

func (s *Synthesizer) prompt(in Input) (string, error) {
	abnormal := maps.Clone(in.Interpreted)
	maps.DeleteFunc(abnormal, func(_ string, p report.InterpretedParameter) bool {
		return p.Status == report.StatusNormal
	})

	patient, err := prompts.JSONSection("Patient", in.Patient)
	if err != nil {
		return "", err
	}
	findings, err := prompts.JSONSection("Abnormal Findings", abnormal)
	if err != nil {
		return "", err
	}

	sections := []prompts.Section{
		patient,
		findings,
		{Title: "Patterns", Body: strings.Join(in.Patterns, "\n")},
	}

	if in.Risk != nil {
		risk, err := prompts.JSONSection("Risk Assessment", in.Risk)
		if err != nil {
			return "", err
		}
		sections = append(sections, risk)
	} else {
		sections = append(sections, prompts.Section{Title: "Risk Assessment"})
	}

	if in.Context != nil {
		sections = append(sections, prompts.Section{
			Title: "Context",
			Body:  strings.TrimSpace(in.Context.Analysis + "\n\n" + in.Context.AdjustedConcerns),
		})
	} else {
		sections = append(sections, prompts.Section{Title: "Context"})
	}

	return prompts.Compose(prompts.StageSynthesis, sections...)
}

// Normalize rewrites markdown headers as bold titles, drops horizontal
// rules, and ends the text with exactly one signature block.
func Normalize(content string) string {
	lines := strings.Split(strings.ReplaceAll(content, "\r\n", "\n"), "\n")
	out := make([]string, 0, len(lines))

	for _, line := range lines {
		if isSignoff(line) {
			break
		}
		if ruleRe.MatchString(line) {
			continue
		}
		if m := headerRe.FindStringSubmatch(line); m != nil {
			title := strings.Trim(m[1], "* ")
			out = append(out, "**"+title+"**")
			continue
		}
		out = append(out, strings.TrimRight(line, " \t"))
	}

	body := strings.TrimSpace(blankRuns.ReplaceAllString(strings.Join(out, "\n"), "\n\n"))
	if body == "" {
		return prompts.Signature
	}
	return body + "\n\n" + prompts.Signature
}

func isSignoff(line string) bool {
	l := strings.ToLower(strings.Trim(line, " \t*_,"))
	return l == "sincerely"
}
