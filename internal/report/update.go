package report

import (
	"maps"
	"slices"
)

// Update is the partial result of one stage. Nil fields are left untouched
// by Merge.
type Update struct {
	Parameters      map[string]ExtractedParameter
	Patient         *PatientInfo
	Interpreted     map[string]InterpretedParameter
	Patterns        []string
	Risk            *RiskAssessment
	Context         *ContextAnalysis
	Synthesis       *string
	Recommendations []string
	CollectionID    *string
	Errors          []string
}

// Fail returns an update that only carries error strings.
func Fail(errs ...string) Update {
	return Update{Errors: errs}
}

// Merge folds u into s and returns the new snapshot. Fields already
// populated upstream are kept, and errors are only ever appended.
func Merge(s State, u Update) State {
	next := s.Clone()

	if len(next.Parameters) == 0 && u.Parameters != nil {
		next.Parameters = maps.Clone(u.Parameters)
	}
	if u.Patient != nil && next.Patient == (PatientInfo{}) {
		next.Patient = *u.Patient
	}
	if len(next.Interpreted) == 0 && u.Interpreted != nil {
		next.Interpreted = maps.Clone(u.Interpreted)
	}
	if len(next.Patterns) == 0 && u.Patterns != nil {
		next.Patterns = slices.Clone(u.Patterns)
	}
	if next.Risk == nil && u.Risk != nil {
		r := *u.Risk
		r.Rationale = slices.Clone(u.Risk.Rationale)
		next.Risk = &r
	}
	if next.Context == nil && u.Context != nil {
		c := *u.Context
		next.Context = &c
	}
	if next.Synthesis == "" && u.Synthesis != nil {
		next.Synthesis = *u.Synthesis
	}
	if len(next.Recommendations) == 0 && u.Recommendations != nil {
		next.Recommendations = slices.Clone(u.Recommendations)
	}
	if next.CollectionID == "" && u.CollectionID != nil {
		next.CollectionID = *u.CollectionID
	}

	if next.Errors == nil {
		next.Errors = []string{}
	}
	next.Errors = append(next.Errors, u.Errors...)

	return next
}
