package catalog

import "context"

// Repository reads and writes the symptom and disease reference tables. Lookups by
// id or code return ErrNotFound when nothing matches.
type Repository interface {
	CreateSymptom(ctx context.Context, s *Symptom) error
	CreateDisease(ctx context.Context, d *Disease) error
	ListSymptoms(ctx context.Context) ([]*Symptom, error)
	ListDiseases(ctx context.Context) ([]*Disease, error)
	GetSymptom(ctx context.Context, id int64) (*Symptom, error)
	GetSymptomByCode(ctx context.Context, code string) (*Symptom, error)
	GetDisease(ctx context.Context, id int64) (*Disease, error)
	GetDiseaseByCode(ctx context.Context, code string) (*Disease, error)
	SymptomsByIDs(ctx context.Context, ids []int64) ([]*Symptom, error)
}
