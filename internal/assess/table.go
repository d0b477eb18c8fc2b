package assess

import (
	_ "embed"
	"fmt"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/JaimeStill/hemalyze/internal/report"
)

//go:embed rules.yaml
var defaultRules []byte

// Severity grades how dangerous a pattern is on its own.
type Severity string

const (
	SeverityModerate Severity = "moderate"
	SeveritySevere   Severity = "severe"
	SeverityCritical Severity = "critical"
)

// Condition matches a parameter whose status is one of Status.
type Condition struct {
	Param  string          `yaml:"param"`
	Status []report.Status `yaml:"status"`
}

func (c Condition) holds(interpreted map[string]report.InterpretedParameter) bool {
	p, ok := interpreted[c.Param]
	return ok && slices.Contains(c.Status, p.Status)
}

// Pattern is a named syndrome and the statuses that establish it.
type Pattern struct {
	Name     string      `yaml:"name"`
	Severity Severity    `yaml:"severity"`
	Requires []Condition `yaml:"requires"`
	Unless   []Condition `yaml:"unless"`
}

// Matches reports whether every requirement holds and no exclusion does.
func (p Pattern) Matches(interpreted map[string]report.InterpretedParameter) bool {
	for _, c := range p.Requires {
		if !c.holds(interpreted) {
			return false
		}
	}
	for _, c := range p.Unless {
		if c.holds(interpreted) {
			return false
		}
	}
	return true
}

func (p Pattern) dependsOn(param string) bool {
	return slices.ContainsFunc(p.Requires, func(c Condition) bool {
		return c.Param == param
	})
}

// Table is the syndrome table used to validate model-proposed patterns.
type Table struct {
	Patterns       []Pattern  `yaml:"patterns"`
	Contradictions [][]string `yaml:"contradictions"`
}

// DefaultTable parses the embedded syndrome table.
func DefaultTable() (*Table, error) {
	return ParseTable(defaultRules)
}

// ParseTable decodes and validates a YAML syndrome table.
func ParseTable(data []byte) (*Table, error) {
	var t Table
	if err := yaml.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidTable, err)
	}
	if err := t.validate(); err != nil {
		return nil, err
	}
	return &t, nil
}

func (t *Table) validate() error {
	if len(t.Patterns) == 0 {
		return fmt.Errorf("%w: no patterns", ErrInvalidTable)
	}

	seen := make(map[string]bool, len(t.Patterns))
	for _, p := range t.Patterns {
		if p.Name == "" {
			return fmt.Errorf("%w: pattern without name", ErrInvalidTable)
		}
		if seen[p.Name] {
			return fmt.Errorf("%w: duplicate pattern %s", ErrInvalidTable, p.Name)
		}
		seen[p.Name] = true

		switch p.Severity {
		case SeverityModerate, SeveritySevere, SeverityCritical:
		default:
			return fmt.Errorf("%w: %s has unknown severity %q", ErrInvalidTable, p.Name, p.Severity)
		}

		if len(p.Requires) == 0 {
			return fmt.Errorf("%w: %s has no requirements", ErrInvalidTable, p.Name)
		}
		for _, c := range slices.Concat(p.Requires, p.Unless) {
			if c.Param == "" || len(c.Status) == 0 {
				return fmt.Errorf("%w: %s has an incomplete condition", ErrInvalidTable, p.Name)
			}
			for _, s := range c.Status {
				if !s.Abnormal() {
					return fmt.Errorf("%w: %s: status %q cannot contribute to a pattern", ErrInvalidTable, p.Name, s)
				}
			}
		}
	}

	for _, pair := range t.Contradictions {
		if len(pair) != 2 {
			return fmt.Errorf("%w: contradictions must be pairs", ErrInvalidTable)
		}
		for _, name := range pair {
			if !seen[name] {
				return fmt.Errorf("%w: contradiction names unknown pattern %s", ErrInvalidTable, name)
			}
		}
	}

	return nil
}

// Pattern looks a pattern up by name, ignoring case.
func (t *Table) Pattern(name string) (Pattern, bool) {
	for _, p := range t.Patterns {
		if strings.EqualFold(p.Name, strings.TrimSpace(name)) {
			return p, true
		}
	}
	return Pattern{}, false
}

// Describe renders the table as prompt text.
func (t *Table) Describe() string {
	var sb strings.Builder
	for i, p := range t.Patterns {
		if i > 0 {
			sb.WriteByte('\n')
		}
		fmt.Fprintf(&sb, "- %s (%s): %s", p.Name, p.Severity, describeConditions(p.Requires, " AND "))
		if len(p.Unless) > 0 {
			fmt.Fprintf(&sb, "; not when %s", describeConditions(p.Unless, " OR "))
		}
	}
	return sb.String()
}

func describeConditions(conds []Condition, sep string) string {
	parts := make([]string, len(conds))
	for i, c := range conds {
		statuses := make([]string, len(c.Status))
		for j, s := range c.Status {
			statuses[j] = strings.ToUpper(string(s))
		}
		parts[i] = fmt.Sprintf("%s %s", c.Param, strings.Join(statuses, "/"))
	}
	return strings.Join(parts, sep)
}

// detection is the outcome of evaluating the table against a report.
type detection struct {
	patterns   []Pattern
	suppressed []string
}

// detect evaluates every pattern and resolves contradictions in favour of
// the pattern that depends on Hemoglobin. When neither or both do, the
// pattern listed first in the table wins.
func (t *Table) detect(interpreted map[string]report.InterpretedParameter) detection {
	matched := make(map[string]bool)
	for _, p := range t.Patterns {
		if p.Matches(interpreted) {
			matched[p.Name] = true
		}
	}

	var suppressed []string
	for _, pair := range t.Contradictions {
		a, b := pair[0], pair[1]
		if !matched[a] || !matched[b] {
			continue
		}

		pa, _ := t.Pattern(a)
		pb, _ := t.Pattern(b)

		keep, drop := pa, pb
		if pb.dependsOn("Hemoglobin") && !pa.dependsOn("Hemoglobin") {
			keep, drop = pb, pa
		}

		delete(matched, drop.Name)
		reason := "which takes precedence"
		if keep.dependsOn("Hemoglobin") {
			reason = "which is supported by Hemoglobin status"
		}
		suppressed = append(suppressed, fmt.Sprintf(
			"%s suppressed: contradicts %s, %s", drop.Name, keep.Name, reason,
		))
	}

	var d detection
	for _, p := range t.Patterns {
		if matched[p.Name] {
			d.patterns = append(d.patterns, p)
		}
	}
	d.suppressed = suppressed
	return d
}
