package extract

import (
	"encoding/json"
	"fmt"
	"maps"
	"regexp"
	"slices"
	"strconv"
	"strings"
)

var numberToken = regexp.MustCompile(`(\d+(\.\d+)?)`)

// ParseNumber coerces a model-supplied value into a float. Strings have
// thousands separators removed, are parsed strictly, and otherwise yield
// their first decimal or integer token. ok is false when no number exists.
func ParseNumber(v any) (float64, bool) {
	switch n := v.(type) {
	case nil:
		return 0, false
	case float64:
		return n, true
	case int:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case string:
		clean := strings.TrimSpace(strings.ReplaceAll(n, ",", ""))
		if clean == "" {
			return 0, false
		}
		if f, err := strconv.ParseFloat(clean, 64); err == nil {
			return f, true
		}
		m := numberToken.FindString(clean)
		if m == "" {
			return 0, false
		}
		f, err := strconv.ParseFloat(m, 64)
		return f, err == nil
	default:
		return 0, false
	}
}

// applyMagnitude scales the number written directly before one of the
// field's magnitude phrases, so "2.5 lakhs" becomes 250000 while
// "250000 /cumm (2.5 lakhs)" is scaled from its 2.5 token rather than
// the leading absolute value. It returns the scaled value and a note, or
// the original value and an empty note.
func applyMagnitude(f Field, raw any, value float64) (float64, string) {
	s, ok := raw.(string)
	if !ok || len(f.Magnitudes) == 0 {
		return value, ""
	}
	lower := strings.ToLower(strings.ReplaceAll(s, ",", ""))

	phrases := slices.Sorted(maps.Keys(f.Magnitudes))
	for _, phrase := range phrases {
		re := regexp.MustCompile(`(\d+(?:\.\d+)?)\s*` + regexp.QuoteMeta(phrase))
		match := re.FindStringSubmatch(lower)
		if match == nil {
			continue
		}
		n, err := strconv.ParseFloat(match[1], 64)
		if err != nil {
			continue
		}
		m := f.Magnitudes[phrase]
		return n * m, fmt.Sprintf("converted %q using %s multiplier x%s", s, phrase, strconv.FormatFloat(m, 'f', -1, 64))
	}
	return value, ""
}

// correctDroppedDigit applies the plausibility rule for fields with a
// plausible lower bound: a value below the bound, flagged normal on the
// report, that reaches the bound once multiplied by ten is taken to be
// missing a trailing digit.
func correctDroppedDigit(f Field, value float64, flag string) (float64, string) {
	if f.PlausibleLow <= 0 || value <= 0 {
		return value, ""
	}
	if value >= f.PlausibleLow || value*10 < f.PlausibleLow {
		return value, ""
	}
	if !strings.EqualFold(strings.TrimSpace(flag), "normal") {
		return value, ""
	}
	return value * 10, fmt.Sprintf("scaled x10: %s below plausible range but flagged normal",
		strconv.FormatFloat(value, 'f', -1, 64))
}
