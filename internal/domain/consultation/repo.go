package consultation

import (
	"context"

	"github.com/gastrodx/gastrodx/internal/domain/catalog"
)

// Repository persists consultation headers and their symptom links.
type Repository interface {
	Create(ctx context.Context, rec *Record) error
	AddSymptom(ctx context.Context, consultationID, symptomID int64, position int) error
	// List returns up to limit records, newest first. An empty userLabel lists every user.
	List(ctx context.Context, userLabel string, limit int) ([]*Record, error)
	Get(ctx context.Context, id int64) (*Record, error)
	Symptoms(ctx context.Context, consultationID int64) ([]*catalog.Symptom, error)
	Delete(ctx context.Context, id int64) (bool, error)
	Stats(ctx context.Context, top int) (*Stats, error)
}
