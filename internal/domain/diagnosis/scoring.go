package diagnosis

import (
	"math"
	"sort"
)

// Policy holds the scoring weights and qualification thresholds of the matching engine.
type Policy struct {
	CompletenessWeight float64
	RelevanceWeight    float64
	MinMatched         int
	MinConfidence      float64
}

// DefaultPolicy weights completeness 0.6 and relevance 0.4. A rule qualifies with at
// least two matched symptoms or a confidence of 40 or more.
var DefaultPolicy = Policy{
	CompletenessWeight: 0.6,
	RelevanceWeight:    0.4,
	MinMatched:         2,
	MinConfidence:      40,
}

// Candidate is one rule scored against one selection. Percentages keep full precision.
type Candidate struct {
	RuleID       int64
	RuleCode     string
	RuleName     string
	DiseaseID    int64
	Completeness float64
	Relevance    float64
	Confidence   float64
	MatchedIDs   []int64
	Required     int
	Selected     int
}

// Matched returns |req ∩ sel|.
func (c Candidate) Matched() int { return len(c.MatchedIDs) }

// Score computes completeness, relevance and confidence of required against selected.
// Both inputs are treated as sets. MatchedIDs follows the order of required.
func Score(required, selected []int64, p Policy) Candidate {
	sel := make(map[int64]struct{}, len(selected))
	for _, id := range selected {
		sel[id] = struct{}{}
	}
	req := make(map[int64]struct{}, len(required))
	var matched []int64
	for _, id := range required {
		if _, dup := req[id]; dup {
			continue
		}
		req[id] = struct{}{}
		if _, ok := sel[id]; ok {
			matched = append(matched, id)
		}
	}

	c := Candidate{MatchedIDs: matched, Required: len(req), Selected: len(sel)}
	m := float64(len(matched))
	if c.Required > 0 {
		c.Completeness = 100 * m / float64(c.Required)
	}
	if c.Selected > 0 {
		c.Relevance = 100 * m / float64(c.Selected)
	}
	c.Confidence = p.CompletenessWeight*c.Completeness + p.RelevanceWeight*c.Relevance
	return c
}

// Qualifies reports whether c passes either threshold.
func (p Policy) Qualifies(c Candidate) bool {
	return c.Matched() >= p.MinMatched || c.Confidence >= p.MinConfidence
}

// Rank orders candidates by confidence, then matched count, both descending.
// Candidates equal on both keep their input order.
func Rank(candidates []Candidate) {
	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].Confidence != candidates[j].Confidence {
			return candidates[i].Confidence > candidates[j].Confidence
		}
		return candidates[i].Matched() > candidates[j].Matched()
	})
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
