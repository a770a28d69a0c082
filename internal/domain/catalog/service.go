package catalog

import (
	"context"
	"fmt"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/rs/zerolog"
)

const (
	symptomsCacheKey = "symptoms"
	diseasesCacheKey = "diseases"
)

type Service struct {
	repo  Repository
	cache *cache.Cache
	log   zerolog.Logger
}

// NewService wraps repo with a list cache that lives for ttl. A ttl of zero or less
// disables caching.
func NewService(repo Repository, ttl time.Duration, log zerolog.Logger) *Service {
	s := &Service{repo: repo, log: log.With().Str("component", "catalog").Logger()}
	if ttl > 0 {
		s.cache = cache.New(ttl, 2*ttl)
	}
	return s
}

// Repo exposes the underlying repository for callers that need transactional lookups.
func (s *Service) Repo() Repository { return s.repo }

func (s *Service) ListSymptoms(ctx context.Context) ([]*Symptom, error) {
	if s.cache != nil {
		if v, ok := s.cache.Get(symptomsCacheKey); ok {
			return v.([]*Symptom), nil
		}
	}
	items, err := s.repo.ListSymptoms(ctx)
	if err != nil {
		return nil, fmt.Errorf("list symptoms: %w", err)
	}
	if s.cache != nil {
		s.cache.SetDefault(symptomsCacheKey, items)
	}
	return items, nil
}

func (s *Service) ListDiseases(ctx context.Context) ([]*Disease, error) {
	if s.cache != nil {
		if v, ok := s.cache.Get(diseasesCacheKey); ok {
			return v.([]*Disease), nil
		}
	}
	items, err := s.repo.ListDiseases(ctx)
	if err != nil {
		return nil, fmt.Errorf("list diseases: %w", err)
	}
	if s.cache != nil {
		s.cache.SetDefault(diseasesCacheKey, items)
	}
	return items, nil
}

func (s *Service) GetSymptom(ctx context.Context, id int64) (*Symptom, error) {
	return s.repo.GetSymptom(ctx, id)
}

func (s *Service) GetSymptomByCode(ctx context.Context, code string) (*Symptom, error) {
	return s.repo.GetSymptomByCode(ctx, code)
}

func (s *Service) GetDisease(ctx context.Context, id int64) (*Disease, error) {
	return s.repo.GetDisease(ctx, id)
}

func (s *Service) GetDiseaseByCode(ctx context.Context, code string) (*Disease, error) {
	return s.repo.GetDiseaseByCode(ctx, code)
}

func (s *Service) SymptomsByIDs(ctx context.Context, ids []int64) ([]*Symptom, error) {
	return s.repo.SymptomsByIDs(ctx, ids)
}

func (s *Service) CreateSymptom(ctx context.Context, code, name string) (*Symptom, error) {
	sym, err := NewSymptom(code, name)
	if err != nil {
		return nil, err
	}
	if err := s.repo.CreateSymptom(ctx, sym); err != nil {
		return nil, fmt.Errorf("create symptom %s: %w", sym.Code, err)
	}
	s.invalidate()
	s.log.Info().Int64("symptom_id", sym.ID).Str("code", sym.Code).Msg("symptom created")
	return sym, nil
}

func (s *Service) CreateDisease(ctx context.Context, code, name, description, action string) (*Disease, error) {
	d, err := NewDisease(code, name, description, action)
	if err != nil {
		return nil, err
	}
	if err := s.repo.CreateDisease(ctx, d); err != nil {
		return nil, fmt.Errorf("create disease %s: %w", d.Code, err)
	}
	s.invalidate()
	s.log.Info().Int64("disease_id", d.ID).Str("code", d.Code).Msg("disease created")
	return d, nil
}

func (s *Service) invalidate() {
	if s.cache != nil {
		s.cache.Flush()
	}
}
