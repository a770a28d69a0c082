package diagnosis

import (
	"errors"

	"github.com/gastrodx/gastrodx/internal/domain/catalog"
)

var (
	ErrEmptySelection   = errors.New("no symptoms selected")
	ErrInvalidSelection = errors.New("invalid symptom selection")
)

// MatchResult is the best qualifying rule for a selection, rounded for display.
type MatchResult struct {
	RuleID          int64              `json:"rule_id"`
	RuleCode        string             `json:"rule_code"`
	RuleName        string             `json:"rule_name"`
	Disease         *catalog.Disease   `json:"disease"`
	Confidence      float64            `json:"confidence"`
	Completeness    float64            `json:"completeness"`
	Relevance       float64            `json:"relevance"`
	MatchedCount    int                `json:"matched_count"`
	RequiredCount   int                `json:"required_count"`
	SelectedCount   int                `json:"selected_count"`
	MatchedSymptoms []*catalog.Symptom `json:"matched_symptoms"`
	// Candidates is the number of rules that qualified.
	Candidates int `json:"candidates"`
}

// NormalizeSelection de-duplicates ids, keeping first-seen order.
func NormalizeSelection(ids []int64) ([]int64, error) {
	if len(ids) == 0 {
		return nil, ErrEmptySelection
	}
	out := make([]int64, 0, len(ids))
	seen := make(map[int64]bool, len(ids))
	for _, id := range ids {
		if id <= 0 {
			return nil, ErrInvalidSelection
		}
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out, nil
}

func assemble(best Candidate, disease *catalog.Disease, matched []*catalog.Symptom, qualified int) *MatchResult {
	if matched == nil {
		matched = []*catalog.Symptom{}
	}
	return &MatchResult{
		RuleID:          best.RuleID,
		RuleCode:        best.RuleCode,
		RuleName:        best.RuleName,
		Disease:         disease,
		Confidence:      round1(best.Confidence),
		Completeness:    round1(best.Completeness),
		Relevance:       round1(best.Relevance),
		MatchedCount:    best.Matched(),
		RequiredCount:   best.Required,
		SelectedCount:   best.Selected,
		MatchedSymptoms: matched,
		Candidates:      qualified,
	}
}
