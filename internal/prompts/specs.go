package prompts

const extractSpec = `Respond with a JSON object matching this exact structure:

{
  "Hemoglobin": null, "RBC": null, "PCV": null, "MCV": null, "MCH": null,
  "MCHC": null, "RDW": null, "WBC": null, "Neutrophils": null,
  "Lymphocytes": null, "Eosinophils": null, "Monocytes": null,
  "Basophils": null, "Platelets": null, "PlateletsFlag": null,
  "ESR": null, "MPV": null, "PDW": null, "PCT": null,
  "PatientName": null, "Age": null, "Gender": null
}

Field constraints:
- Lab fields: number or string result value, or null when absent.
- RBC is the total RBC count, PCV is packed cell volume (hematocrit),
  WBC is the total WBC count, Platelets is the platelet count.
- PlateletsFlag: the qualifier printed beside the platelet result
  ("Normal", "Low", "High") or null.
- PatientName, Gender: strings or null. Age: number or string or null.

Behavioral constraints:
- Always respond with valid JSON, no markdown fencing
- Include every key, using null for anything not found`

const patternsSpec = `Respond with a JSON object matching this exact structure:

{
  "patterns": ["<pattern name>"],
  "risk_score": 1,
  "risk_rationale": ["<reason>"]
}

Field constraints:
- patterns: pattern names taken verbatim from the syndrome table.
- risk_score: integer from 1 to 10.
- risk_rationale: concise reasons citing the specific abnormal values.

Behavioral constraints:
- Always respond with valid JSON, no markdown fencing`

const contextSpec = `Respond with a JSON object matching this exact structure:

{
  "analysis": "<contextual analysis>",
  "adjusted_concerns": "<concerns amplified or mitigated by context>"
}

Behavioral constraints:
- Always respond with valid JSON, no markdown fencing`

const synthesisSpec = `Respond with the report text only.

End the report with this exact signature:

` + Signature

const recommendSpec = `Respond with a JSON object matching this exact structure:

{
  "recommendations": ["<recommendation>"]
}

Field constraints:
- recommendations: 3 to 5 items; one item must advise consulting a doctor.

Behavioral constraints:
- Always respond with valid JSON, no markdown fencing`

const chatSpec = `Respond with the answer text only.`

// Signature closes every synthesized report.
const Signature = "Sincerely,\n\n**J. Likith Sagar**\nSenior Medical Consultant"

var specs = map[Stage]string{
	StageExtract:   extractSpec,
	StagePatterns:  patternsSpec,
	StageContext:   contextSpec,
	StageSynthesis: synthesisSpec,
	StageRecommend: recommendSpec,
	StageChat:      chatSpec,
}

// Spec returns the response contract for a stage.
// Returns ErrInvalidStage if the stage is not recognized.
func Spec(stage Stage) (string, error) {
	text, ok := specs[stage]
	if !ok {
		return "", ErrInvalidStage
	}
	return text, nil
}
