// Package interpret tags extracted lab values with a reference-range status.
//
// Interpretation is a collaborator of the analysis pipeline: the pipeline
// depends only on the Interpreter interface. RangeTable is a plain
// adult-interval lookup used to wire the service end to end; it is not a
// clinical reference implementation.
package interpret

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/JaimeStill/hemalyze/internal/report"
)

//go:embed ranges.yaml
var defaultRanges []byte

// ErrInvalidTable indicates a malformed range table.
var ErrInvalidTable = errors.New("invalid range table")

// Interpreter tags each parameter with a status against reference bounds.
type Interpreter interface {
	Interpret(
		ctx context.Context,
		params map[string]report.ExtractedParameter,
		patient report.PatientInfo,
	) (map[string]report.InterpretedParameter, error)
}

// Func adapts an ordinary function to the Interpreter interface.
type Func func(context.Context, map[string]report.ExtractedParameter, report.PatientInfo) (map[string]report.InterpretedParameter, error)

func (f Func) Interpret(ctx context.Context, params map[string]report.ExtractedParameter, patient report.PatientInfo) (map[string]report.InterpretedParameter, error) {
	return f(ctx, params, patient)
}

// Interval is a closed reference interval.
type Interval struct {
	Low  float64 `yaml:"low"`
	High float64 `yaml:"high"`
}

// Range holds the default interval and optional gender overrides.
type Range struct {
	Default Interval  `yaml:"default"`
	Male    *Interval `yaml:"male"`
	Female  *Interval `yaml:"female"`
}

// RangeTable interprets values against fixed reference intervals.
// Values outside an interval by less than BorderlineMargin (a fraction of
// the violated bound) are tagged borderline.
type RangeTable struct {
	BorderlineMargin float64          `yaml:"borderline_margin"`
	Ranges           map[string]Range `yaml:"ranges"`
}

// DefaultTable parses the embedded adult range table.
func DefaultTable() (*RangeTable, error) {
	return ParseTable(defaultRanges)
}

// ParseTable decodes and validates a YAML range table.
func ParseTable(data []byte) (*RangeTable, error) {
	var t RangeTable
	if err := yaml.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidTable, err)
	}
	if t.BorderlineMargin < 0 || t.BorderlineMargin >= 1 {
		return nil, fmt.Errorf("%w: borderline_margin out of range", ErrInvalidTable)
	}
	for name, r := range t.Ranges {
		for _, iv := range []*Interval{&r.Default, r.Male, r.Female} {
			if iv != nil && iv.Low > iv.High {
				return nil, fmt.Errorf("%w: %s low exceeds high", ErrInvalidTable, name)
			}
		}
	}
	return &t, nil
}

func (t *RangeTable) Interpret(
	ctx context.Context,
	params map[string]report.ExtractedParameter,
	patient report.PatientInfo,
) (map[string]report.InterpretedParameter, error) {
	out := make(map[string]report.InterpretedParameter, len(params))

	for name, p := range params {
		ip := report.InterpretedParameter{
			Value:  p.Value,
			Unit:   p.Unit,
			Status: report.StatusUnknown,
		}

		r, ok := t.Ranges[name]
		if ok {
			iv := r.interval(patient.Gender)
			low, high := iv.Low, iv.High
			ip.Low, ip.High = &low, &high
			if p.Value != nil {
				ip.Status = t.status(*p.Value, iv)
			}
		}

		out[name] = ip
	}

	return out, nil
}

func (t *RangeTable) status(v float64, iv Interval) report.Status {
	switch {
	case v < iv.Low:
		if v >= iv.Low*(1-t.BorderlineMargin) {
			return report.StatusBorderline
		}
		return report.StatusLow
	case v > iv.High:
		if v <= iv.High*(1+t.BorderlineMargin) {
			return report.StatusBorderline
		}
		return report.StatusHigh
	default:
		return report.StatusNormal
	}
}

func (r Range) interval(gender *string) Interval {
	if gender == nil {
		return r.Default
	}
	g := strings.ToLower(strings.TrimSpace(*gender))
	switch {
	case strings.HasPrefix(g, "f") && r.Female != nil:
		return *r.Female
	case strings.HasPrefix(g, "m") && r.Male != nil:
		return *r.Male
	default:
		return r.Default
	}
}
