// Package prompts holds the instruction and response-contract text for
// every model-backed stage of report analysis and chat.
package prompts

import (
	"encoding/json"
	"slices"
)

// Stage identifies a model-backed step.
type Stage string

// Valid stages.
const (
	StageExtract   Stage = "extract"
	StagePatterns  Stage = "patterns"
	StageContext   Stage = "context"
	StageSynthesis Stage = "synthesis"
	StageRecommend Stage = "recommend"
	StageChat      Stage = "chat"
)

var stages = []Stage{
	StageExtract,
	StagePatterns,
	StageContext,
	StageSynthesis,
	StageRecommend,
	StageChat,
}

// Stages returns the list of valid stages.
func Stages() []Stage {
	return stages
}

// UnmarshalJSON validates that the decoded string is a known stage value.
func (s *Stage) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	v, err := ParseStage(raw)
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// ParseStage validates a string as a known stage.
func ParseStage(s string) (Stage, error) {
	v := Stage(s)
	if !slices.Contains(stages, v) {
		return "", ErrInvalidStage
	}
	return v, nil
}
