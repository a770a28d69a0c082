package consultation

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/gastrodx/gastrodx/internal/domain/catalog"
	"github.com/gastrodx/gastrodx/internal/domain/diagnosis"
	"github.com/gastrodx/gastrodx/internal/platform/db"
	"github.com/gastrodx/gastrodx/internal/platform/metrics"
)

// MaxHistoryLimit caps a single history query.
const MaxHistoryLimit = 500

// Diagnoser runs the matching engine for Consult.
type Diagnoser interface {
	Diagnose(ctx context.Context, symptomIDs []int64) (*diagnosis.MatchResult, error)
}

// SymptomLookup resolves the selected symptoms before they are linked.
type SymptomLookup interface {
	GetSymptom(ctx context.Context, id int64) (*catalog.Symptom, error)
}

type Service struct {
	repo         Repository
	symptoms     SymptomLookup
	tx           db.TxRunner
	diagnoser    Diagnoser
	defaultLimit int
	log          zerolog.Logger
	metrics      *metrics.ConsultationMetrics
}

func NewService(repo Repository, symptoms SymptomLookup, tx db.TxRunner, diagnoser Diagnoser, defaultLimit int, log zerolog.Logger) *Service {
	if defaultLimit <= 0 {
		defaultLimit = 20
	}
	return &Service{
		repo:         repo,
		symptoms:     symptoms,
		tx:           tx,
		diagnoser:    diagnoser,
		defaultLimit: defaultLimit,
		log:          log.With().Str("component", "consultation").Logger(),
	}
}

func (s *Service) SetMetrics(m *metrics.ConsultationMetrics) { s.metrics = m }

// Record writes the header and one link per selected symptom in a single
// transaction. Every selected symptom must exist in the catalog; an unknown id is
// rejected with ErrInvalidRecord before anything is written. On any failure nothing
// of the consultation remains.
func (s *Service) Record(ctx context.Context, userLabel string, symptomIDs []int64, result *diagnosis.MatchResult) (*Record, error) {
	rec, selected, err := NewRecord(userLabel, symptomIDs, result)
	if err != nil {
		s.metrics.RecordWrite("record", "invalid")
		return nil, err
	}

	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		for _, sid := range selected {
			if _, err := s.symptoms.GetSymptom(ctx, sid); err != nil {
				if errors.Is(err, catalog.ErrNotFound) {
					return fmt.Errorf("%w: unknown symptom %d", ErrInvalidRecord, sid)
				}
				return fmt.Errorf("resolve symptom %d: %w", sid, err)
			}
		}
		if err := s.repo.Create(ctx, rec); err != nil {
			return fmt.Errorf("insert consultation: %w", err)
		}
		for i, sid := range selected {
			if err := s.repo.AddSymptom(ctx, rec.ID, sid, i+1); err != nil {
				return fmt.Errorf("link symptom %d: %w", sid, err)
			}
		}
		return nil
	})
	if errors.Is(err, ErrInvalidRecord) {
		s.metrics.RecordWrite("record", "invalid")
		return nil, err
	}
	if err != nil {
		s.metrics.RecordWrite("record", "error")
		s.log.Error().Err(err).Str("user", rec.UserLabel).Msg("consultation write rolled back")
		return nil, err
	}

	s.metrics.RecordWrite("record", "ok")
	s.log.Info().
		Int64("consultation_id", rec.ID).
		Str("user", rec.UserLabel).
		Str("rule", result.RuleCode).
		Float64("confidence", rec.Confidence).
		Msg("consultation recorded")
	return rec, nil
}

// Consult diagnoses the selection and, on a match, records it. Diagnosis and
// recording are separate units of work. A nil result means no rule qualified.
func (s *Service) Consult(ctx context.Context, userLabel string, symptomIDs []int64) (*diagnosis.MatchResult, *Record, error) {
	result, err := s.diagnoser.Diagnose(ctx, symptomIDs)
	if err != nil || result == nil {
		return nil, nil, err
	}
	rec, err := s.Record(ctx, userLabel, symptomIDs, result)
	if err != nil {
		return result, nil, err
	}
	return result, rec, nil
}

// History returns the newest records for userLabel, or for everyone when it is empty.
func (s *Service) History(ctx context.Context, userLabel string, limit int) ([]*Record, error) {
	if limit <= 0 {
		limit = s.defaultLimit
	}
	if limit > MaxHistoryLimit {
		limit = MaxHistoryLimit
	}
	items, err := s.repo.List(ctx, userLabel, limit)
	if err != nil {
		return nil, fmt.Errorf("list consultations: %w", err)
	}
	if items == nil {
		items = []*Record{}
	}
	return items, nil
}

func (s *Service) Detail(ctx context.Context, id int64) (*Detail, error) {
	var detail *Detail
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		rec, err := s.repo.Get(ctx, id)
		if err != nil {
			return err
		}
		symptoms, err := s.repo.Symptoms(ctx, id)
		if err != nil {
			return fmt.Errorf("load consultation symptoms: %w", err)
		}
		detail = &Detail{Record: *rec, Symptoms: symptoms}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if detail.Symptoms == nil {
		detail.Symptoms = []*catalog.Symptom{}
	}
	return detail, nil
}

// Delete removes a record and its symptom links. An unknown id yields false, nil.
func (s *Service) Delete(ctx context.Context, id int64) (bool, error) {
	var deleted bool
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		var err error
		deleted, err = s.repo.Delete(ctx, id)
		return err
	})
	if err != nil {
		s.metrics.RecordWrite("delete", "error")
		s.log.Error().Err(err).Int64("consultation_id", id).Msg("consultation deletion rolled back")
		return false, fmt.Errorf("delete consultation %d: %w", id, err)
	}
	if !deleted {
		s.metrics.RecordWrite("delete", "not_found")
		return false, nil
	}
	s.metrics.RecordWrite("delete", "ok")
	s.log.Info().Int64("consultation_id", id).Msg("consultation deleted")
	return true, nil
}

func (s *Service) Statistics(ctx context.Context) (*Stats, error) {
	var stats *Stats
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		var err error
		stats, err = s.repo.Stats(ctx, TopStatisticsSize)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("consultation statistics: %w", err)
	}
	return stats, nil
}
