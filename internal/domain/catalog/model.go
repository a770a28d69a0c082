package catalog

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNotFound       = errors.New("catalog entry not found")
	ErrInvalidSymptom = errors.New("invalid symptom")
	ErrInvalidDisease = errors.New("invalid disease")
	ErrDuplicateCode  = errors.New("catalog code already exists")
)

// Symptom is an observable sign a user may select as present.
type Symptom struct {
	ID   int64  `json:"id"`
	Code string `json:"code"`
	Name string `json:"name"`
}

// Disease is a diagnosable condition with its recommended action.
type Disease struct {
	ID          int64  `json:"id"`
	Code        string `json:"code"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Action      string `json:"action"`
}

func NewSymptom(code, name string) (*Symptom, error) {
	code = normalizeCode(code)
	name = strings.TrimSpace(name)
	if code == "" {
		return nil, fmt.Errorf("%w: code is required", ErrInvalidSymptom)
	}
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrInvalidSymptom)
	}
	return &Symptom{Code: code, Name: name}, nil
}

func NewDisease(code, name, description, action string) (*Disease, error) {
	code = normalizeCode(code)
	name = strings.TrimSpace(name)
	if code == "" {
		return nil, fmt.Errorf("%w: code is required", ErrInvalidDisease)
	}
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrInvalidDisease)
	}
	return &Disease{
		Code:        code,
		Name:        name,
		Description: strings.TrimSpace(description),
		Action:      strings.TrimSpace(action),
	}, nil
}

func normalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// OrderByIDs returns the symptoms in the order of ids, skipping ids with no symptom.
func OrderByIDs(symptoms []*Symptom, ids []int64) []*Symptom {
	byID := make(map[int64]*Symptom, len(symptoms))
	for _, s := range symptoms {
		byID[s.ID] = s
	}
	out := make([]*Symptom, 0, len(ids))
	seen := make(map[int64]bool, len(ids))
	for _, id := range ids {
		if s, ok := byID[id]; ok && !seen[id] {
			out = append(out, s)
			seen[id] = true
		}
	}
	return out
}
