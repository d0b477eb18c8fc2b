// Package report defines the state accumulated by the analysis pipeline
// for a single lab report, and the partial updates stages return.
package report

import (
	"maps"
	"slices"
)

// Status is the reference-range tag assigned to an interpreted value.
type Status string

const (
	StatusNormal     Status = "normal"
	StatusLow        Status = "low"
	StatusHigh       Status = "high"
	StatusBorderline Status = "borderline"
	StatusUnknown    Status = "unknown"
)

var statuses = []Status{
	StatusNormal,
	StatusLow,
	StatusHigh,
	StatusBorderline,
	StatusUnknown,
}

// ParseStatus maps an arbitrary tag onto a known Status, falling back to
// StatusUnknown.
func ParseStatus(s string) Status {
	v := Status(s)
	if slices.Contains(statuses, v) {
		return v
	}
	return StatusUnknown
}

// Abnormal reports whether the status may participate in pattern detection.
func (s Status) Abnormal() bool {
	return s == StatusLow || s == StatusHigh || s == StatusBorderline
}

// ExtractedParameter is a lab value as read from the report. Value is nil
// only when extraction was inconclusive.
type ExtractedParameter struct {
	Raw   any      `json:"raw_value"`
	Value *float64 `json:"value"`
	Unit  string   `json:"unit"`
	Note  string   `json:"note,omitempty"`
}

// PatientInfo carries optional demographics.
type PatientInfo struct {
	Name   *string `json:"name,omitempty"`
	Age    *int    `json:"age,omitempty"`
	Gender *string `json:"gender,omitempty"`
}

// HasDemographics reports whether age or gender is known.
func (p PatientInfo) HasDemographics() bool {
	return p.Age != nil || p.Gender != nil
}

// InterpretedParameter is an extracted value tagged against reference bounds.
type InterpretedParameter struct {
	Value  *float64 `json:"value"`
	Unit   string   `json:"unit"`
	Low    *float64 `json:"ref_low,omitempty"`
	High   *float64 `json:"ref_high,omitempty"`
	Status Status   `json:"status"`
}

// RiskAssessment scores overall clinical risk on a 1-10 scale.
type RiskAssessment struct {
	Score     int      `json:"score"`
	Rationale []string `json:"rationale"`
}

// ContextAnalysis holds the demographic contextualization of findings.
type ContextAnalysis struct {
	Analysis         string `json:"analysis"`
	AdjustedConcerns string `json:"adjusted_concerns"`
}

// State is the accumulator threaded through every pipeline stage.
type State struct {
	RawText         string                          `json:"raw_text"`
	Source          string                          `json:"source"`
	Parameters      map[string]ExtractedParameter   `json:"extracted_params,omitempty"`
	Patient         PatientInfo                     `json:"patient_info"`
	Interpreted     map[string]InterpretedParameter `json:"interpreted_params,omitempty"`
	Patterns        []string                        `json:"patterns,omitempty"`
	Risk            *RiskAssessment                 `json:"risk_assessment,omitempty"`
	Context         *ContextAnalysis                `json:"context_analysis,omitempty"`
	Synthesis       string                          `json:"synthesis_report,omitempty"`
	Recommendations []string                        `json:"recommendations"`
	CollectionID    string                          `json:"collection_id,omitempty"`
	Errors          []string                        `json:"errors"`
}

// New creates a state for a freshly uploaded document with every derived
// field empty.
func New(raw, source string) State {
	return State{
		RawText:         raw,
		Source:          source,
		Recommendations: []string{},
		Errors:          []string{},
	}
}

// Clone returns a deep copy so stages can never mutate the orchestrator's
// snapshot.
func (s State) Clone() State {
	c := s
	c.Parameters = maps.Clone(s.Parameters)
	c.Interpreted = maps.Clone(s.Interpreted)
	c.Patterns = slices.Clone(s.Patterns)
	c.Recommendations = slices.Clone(s.Recommendations)
	c.Errors = slices.Clone(s.Errors)
	if s.Risk != nil {
		r := *s.Risk
		r.Rationale = slices.Clone(s.Risk.Rationale)
		c.Risk = &r
	}
	if s.Context != nil {
		ctx := *s.Context
		c.Context = &ctx
	}
	return c
}

// Abnormal returns the interpreted parameters whose status is not normal,
// keyed by canonical name.
func (s State) Abnormal() map[string]InterpretedParameter {
	out := make(map[string]InterpretedParameter)
	for name, p := range s.Interpreted {
		if p.Status != StatusNormal {
			out[name] = p
		}
	}
	return out
}
