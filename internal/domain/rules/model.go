package rules

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// MinSymptoms is the smallest symptom set a new rule may carry.
const MinSymptoms = 2

var (
	ErrInvalidRule     = errors.New("invalid rule")
	ErrDuplicateCode   = errors.New("rule code already exists")
	ErrDiseaseNotFound = errors.New("disease not found")
	ErrSymptomNotFound = errors.New("symptom not found")
	ErrNotFound        = errors.New("rule not found")
)

// Rule maps a set of required symptoms to one disease.
type Rule struct {
	ID         int64     `json:"id"`
	Code       string    `json:"code"`
	Name       string    `json:"name"`
	Citation   *string   `json:"citation,omitempty"`
	DiseaseID  int64     `json:"disease_id"`
	SymptomIDs []int64   `json:"symptom_ids"`
	CreatedAt  time.Time `json:"created_at"`
}

// RuleSymptom is one symptom link of a rule.
type RuleSymptom struct {
	LinkID    int64  `json:"link_id"`
	SymptomID int64  `json:"symptom_id"`
	Code      string `json:"code"`
	Name      string `json:"name"`
}

// RuleDetail is a rule joined with its disease and linked symptoms.
type RuleDetail struct {
	Rule
	DiseaseCode string        `json:"disease_code"`
	DiseaseName string        `json:"disease_name"`
	Symptoms    []RuleSymptom `json:"symptoms"`
}

// NewRule validates the fields of a rule before anything is written. Duplicate
// symptom ids collapse to one, keeping first-seen order.
func NewRule(code string, diseaseID int64, name string, symptomIDs []int64, citation *string) (*Rule, error) {
	code = NormalizeCode(code)
	name = strings.TrimSpace(name)
	if code == "" {
		return nil, fmt.Errorf("%w: code is required", ErrInvalidRule)
	}
	if len(code) > 16 {
		return nil, fmt.Errorf("%w: code %q is longer than 16 characters", ErrInvalidRule, code)
	}
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrInvalidRule)
	}
	if diseaseID <= 0 {
		return nil, fmt.Errorf("%w: disease is required", ErrInvalidRule)
	}

	ids := make([]int64, 0, len(symptomIDs))
	seen := make(map[int64]bool, len(symptomIDs))
	for _, id := range symptomIDs {
		if id <= 0 {
			return nil, fmt.Errorf("%w: invalid symptom id %d", ErrInvalidRule, id)
		}
		if !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	if len(ids) < MinSymptoms {
		return nil, fmt.Errorf("%w: at least %d distinct symptoms are required, got %d", ErrInvalidRule, MinSymptoms, len(ids))
	}

	if citation != nil {
		c := strings.TrimSpace(*citation)
		if c == "" {
			citation = nil
		} else {
			citation = &c
		}
	}

	return &Rule{
		Code:       code,
		Name:       name,
		Citation:   citation,
		DiseaseID:  diseaseID,
		SymptomIDs: ids,
	}, nil
}

// NormalizeCode trims and upper-cases a rule code.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// NextCode returns "R%03d" after the highest numeric suffix among codes of the
// form R<digits>. Other codes are ignored.
func NextCode(codes []string) string {
	highest := 0
	for _, c := range codes {
		c = NormalizeCode(c)
		if len(c) < 2 || c[0] != 'R' {
			continue
		}
		n := 0
		valid := true
		for _, ch := range c[1:] {
			if ch < '0' || ch > '9' {
				valid = false
				break
			}
			n = n*10 + int(ch-'0')
		}
		if valid && n > highest {
			highest = n
		}
	}
	return fmt.Sprintf("R%03d", highest+1)
}
