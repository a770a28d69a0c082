package consultation

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/gastrodx/gastrodx/internal/domain/catalog"
	"github.com/gastrodx/gastrodx/internal/domain/diagnosis"
)

var (
	ErrNotFound      = errors.New("consultation not found")
	ErrInvalidRecord = errors.New("invalid consultation record")
)

const (
	AnonymousUser     = "Anonymous"
	maxUserLabelLen   = 255
	TopStatisticsSize = 5
)

// Record is one logged diagnosis. DiseaseID and RuleCode are historical: the rule may
// have been deleted since.
type Record struct {
	ID           int64            `json:"id"`
	UserLabel    string           `json:"user_label"`
	DiseaseID    *int64           `json:"disease_id"`
	RuleCode     *string          `json:"rule_code"`
	Confidence   float64          `json:"confidence"`
	SymptomCount int              `json:"symptom_count"`
	CreatedAt    time.Time        `json:"created_at"`
	Disease      *catalog.Disease `json:"disease,omitempty"`
}

// Detail is a record with its selected symptoms in selection order.
type Detail struct {
	Record
	Symptoms []*catalog.Symptom `json:"symptoms"`
}

type DiseaseCount struct {
	DiseaseName string `json:"disease_name"`
	Count       int    `json:"count"`
}

type RuleCount struct {
	RuleCode string `json:"rule_code"`
	Count    int    `json:"count"`
}

// Stats aggregates the whole consultation log.
type Stats struct {
	Total          int            `json:"total"`
	MeanConfidence float64        `json:"mean_confidence"`
	TopDiseases    []DiseaseCount `json:"top_diseases"`
	TopRules       []RuleCount    `json:"top_rules"`
}

// NewRecord builds the header for a match and returns the de-duplicated selection
// that becomes its symptom links.
func NewRecord(userLabel string, symptomIDs []int64, result *diagnosis.MatchResult) (*Record, []int64, error) {
	if result == nil {
		return nil, nil, fmt.Errorf("%w: no match result", ErrInvalidRecord)
	}
	selected, err := diagnosis.NormalizeSelection(symptomIDs)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrInvalidRecord, err)
	}

	label := NormalizeUserLabel(userLabel)
	if len(label) > maxUserLabelLen {
		return nil, nil, fmt.Errorf("%w: user label longer than %d characters", ErrInvalidRecord, maxUserLabelLen)
	}

	rec := &Record{
		UserLabel:    label,
		Confidence:   result.Confidence,
		SymptomCount: len(selected),
		Disease:      result.Disease,
	}
	if result.Disease != nil {
		id := result.Disease.ID
		rec.DiseaseID = &id
	}
	if code := strings.TrimSpace(result.RuleCode); code != "" {
		rec.RuleCode = &code
	}
	return rec, selected, nil
}

// NormalizeUserLabel trims the label and falls back to AnonymousUser.
func NormalizeUserLabel(label string) string {
	label = strings.TrimSpace(label)
	if label == "" {
		return AnonymousUser
	}
	return label
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
