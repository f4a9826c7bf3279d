package qualification

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"lead_intake_backend/internal/scoring"

	"github.com/kaptinlin/jsonrepair"
)

// Verdict is the reasoning service's structured judgment of one turn.
type Verdict struct {
	Message        string
	Factors        scoring.Factors
	ServiceScore   int
	NextQuestion   string
	Recommendation scoring.Recommendation
}

type wireFactors struct {
	Budget        *json.Number `json:"budget"`
	Timeline      *json.Number `json:"timeline"`
	NeedAlignment *json.Number `json:"needAlignment"`
	Engagement    *json.Number `json:"engagement"`
	Authority     *json.Number `json:"authority"`
}

type wireVerdict struct {
	Message            *string      `json:"message"`
	ScoringFactors     *wireFactors `json:"scoringFactors"`
	QualificationScore *json.Number `json:"qualificationScore"`
	NextQuestion       *string      `json:"nextQuestion"`
	Recommendation     *string      `json:"recommendation"`
}

// parseVerdict turns raw model output into a Verdict. Syntax is repaired
// when possible. Content is never guessed: a missing or out-of-range field is
// an error.
func parseVerdict(raw string) (Verdict, error) {
	text := extractObject(raw)
	if text == "" {
		return Verdict{}, fmt.Errorf("no JSON object in response")
	}
	if !json.Valid([]byte(text)) {
		repaired, err := jsonrepair.JSONRepair(text)
		if err != nil {
			return Verdict{}, fmt.Errorf("repair response json: %w", err)
		}
		text = repaired
	}

	var w wireVerdict
	dec := json.NewDecoder(bytes.NewReader([]byte(text)))
	dec.UseNumber()
	if err := dec.Decode(&w); err != nil {
		return Verdict{}, fmt.Errorf("decode response: %w", err)
	}

	var v Verdict
	if w.Message == nil || strings.TrimSpace(*w.Message) == "" {
		return Verdict{}, fmt.Errorf("message is missing")
	}
	v.Message = strings.TrimSpace(*w.Message)

	if w.ScoringFactors == nil {
		return Verdict{}, fmt.Errorf("scoringFactors is missing")
	}
	factors := []struct {
		name string
		raw  *json.Number
		dst  *int
	}{
		{"budget", w.ScoringFactors.Budget, &v.Factors.Budget},
		{"timeline", w.ScoringFactors.Timeline, &v.Factors.Timeline},
		{"needAlignment", w.ScoringFactors.NeedAlignment, &v.Factors.NeedAlignment},
		{"engagement", w.ScoringFactors.Engagement, &v.Factors.Engagement},
		{"authority", w.ScoringFactors.Authority, &v.Factors.Authority},
	}
	for _, f := range factors {
		n, err := score(f.name, f.raw)
		if err != nil {
			return Verdict{}, err
		}
		*f.dst = n
	}

	serviceScore, err := score("qualificationScore", w.QualificationScore)
	if err != nil {
		return Verdict{}, err
	}
	v.ServiceScore = serviceScore

	if w.NextQuestion != nil {
		v.NextQuestion = strings.TrimSpace(*w.NextQuestion)
	}
	if w.Recommendation != nil {
		rec, err := scoring.ParseRecommendation(strings.TrimSpace(*w.Recommendation))
		if err != nil {
			return Verdict{}, err
		}
		v.Recommendation = rec
	}
	return v, nil
}

// score accepts integral numbers in [0,100]; 80.0 is fine, 80.5 is not.
func score(name string, raw *json.Number) (int, error) {
	if raw == nil {
		return 0, fmt.Errorf("%s is missing", name)
	}
	f, err := raw.Float64()
	if err != nil {
		return 0, fmt.Errorf("%s is not a number", name)
	}
	if f != math.Trunc(f) {
		return 0, fmt.Errorf("%s must be an integer, got %s", name, raw.String())
	}
	if f < scoring.MinFactor || f > scoring.MaxFactor {
		return 0, fmt.Errorf("%s out of range: %s", name, raw.String())
	}
	return int(f), nil
}

// extractObject strips markdown code fences and any prose around the
// outermost JSON object.
func extractObject(raw string) string {
	text := strings.TrimSpace(raw)
	if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```json")
		text = strings.TrimPrefix(text, "```")
		text = strings.TrimSuffix(strings.TrimSpace(text), "```")
		text = strings.TrimSpace(text)
	}
	start := strings.Index(text, "{")
	if start < 0 {
		return ""
	}
	end := strings.LastIndex(text, "}")
	if end < start {
		// Truncated output; let the repair pass close it.
		return text[start:]
	}
	return text[start : end+1]
}
