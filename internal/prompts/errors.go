package prompts

import "errors"

// ErrInvalidStage indicates an unknown stage name.
var ErrInvalidStage = errors.New("stage must be extract, patterns, context, synthesis, recommend, or chat")
