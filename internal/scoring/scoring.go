// Package scoring folds per-turn qualification factors into a lead score and
// drives the lead status machine. It has no I/O; persistence lives in leads.
package scoring

import (
	"fmt"
	"math"
)

// Factors are the five independent sub-scores produced for every evaluated turn.
type Factors struct {
	Budget        int `json:"budget"`
	Timeline      int `json:"timeline"`
	NeedAlignment int `json:"needAlignment"`
	Engagement    int `json:"engagement"`
	Authority     int `json:"authority"`
}

const (
	MinFactor = 0
	MaxFactor = 100
)

// Validate reports the first factor outside [0,100].
func (f Factors) Validate() error {
	for _, field := range f.fields() {
		if field.value < MinFactor || field.value > MaxFactor {
			return fmt.Errorf("%s must be between %d and %d, got %d", field.name, MinFactor, MaxFactor, field.value)
		}
	}
	return nil
}

type namedFactor struct {
	name  string
	value int
}

func (f Factors) fields() []namedFactor {
	return []namedFactor{
		{"budget", f.Budget},
		{"timeline", f.Timeline},
		{"needAlignment", f.NeedAlignment},
		{"engagement", f.Engagement},
		{"authority", f.Authority},
	}
}

// Aggregate returns the unweighted mean of the five factors rounded to the
// nearest integer, halves rounding away from zero.
func Aggregate(f Factors) int {
	sum := 0
	fields := f.fields()
	for _, field := range fields {
		sum += field.value
	}
	return int(math.Round(float64(sum) / float64(len(fields))))
}

// Recommendation is the reasoning service's verdict for a single turn.
type Recommendation string

const (
	RecommendationNone          Recommendation = ""
	RecommendationQualified     Recommendation = "qualified"
	RecommendationRejected      Recommendation = "rejected"
	RecommendationNeedsMoreInfo Recommendation = "needs_more_info"
)

// ParseRecommendation accepts the known verdicts and the empty value.
func ParseRecommendation(raw string) (Recommendation, error) {
	switch rec := Recommendation(raw); rec {
	case RecommendationNone, RecommendationQualified, RecommendationRejected, RecommendationNeedsMoreInfo:
		return rec, nil
	default:
		return RecommendationNone, fmt.Errorf("unknown recommendation %q", raw)
	}
}

// Status is the lead's position in the qualification funnel.
type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in-progress"
	StatusQualified  Status = "qualified"
	StatusRejected   Status = "rejected"
)

// IsTerminal reports whether s ends a conversation flow.
func (s Status) IsTerminal() bool {
	return s == StatusQualified || s == StatusRejected
}

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusInProgress, StatusQualified, StatusRejected:
		return true
	}
	return false
}

// NextStatus maps the turn's recommendation onto the lead status.
//
// flowTerminal is true when the conversation this turn belongs to has already
// reached an outcome. In that case a terminal lead status is kept: within one
// flow the status only moves forward. A new conversation starts a new flow and
// may move a qualified or rejected lead back to in-progress.
func NextStatus(current Status, flowTerminal bool, rec Recommendation) Status {
	if flowTerminal && current.IsTerminal() {
		return current
	}
	switch rec {
	case RecommendationQualified:
		return StatusQualified
	case RecommendationRejected:
		return StatusRejected
	default:
		return StatusInProgress
	}
}
