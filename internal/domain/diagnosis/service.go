package diagnosis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/gastrodx/gastrodx/internal/domain/catalog"
	"github.com/gastrodx/gastrodx/internal/domain/rules"
	"github.com/gastrodx/gastrodx/internal/platform/db"
	"github.com/gastrodx/gastrodx/internal/platform/metrics"
)

// RuleSource loads rule headers and, separately, each rule's required symptoms.
type RuleSource interface {
	List(ctx context.Context) ([]*rules.Rule, error)
	SymptomIDs(ctx context.Context, ruleID int64) ([]int64, error)
}

// CatalogSource resolves the disease and symptoms of the winning rule.
type CatalogSource interface {
	GetDisease(ctx context.Context, id int64) (*catalog.Disease, error)
	SymptomsByIDs(ctx context.Context, ids []int64) ([]*catalog.Symptom, error)
}

type Service struct {
	rules   RuleSource
	catalog CatalogSource
	tx      db.TxRunner
	policy  Policy
	log     zerolog.Logger
	metrics *metrics.DiagnosisMetrics
}

func NewService(ruleSrc RuleSource, catalogSrc CatalogSource, tx db.TxRunner, policy Policy, log zerolog.Logger) *Service {
	return &Service{
		rules:   ruleSrc,
		catalog: catalogSrc,
		tx:      tx,
		policy:  policy,
		log:     log.With().Str("component", "diagnosis").Logger(),
	}
}

func (s *Service) SetMetrics(m *metrics.DiagnosisMetrics) { s.metrics = m }

func (s *Service) Policy() Policy { return s.policy }

// Diagnose scores every rule against the selection and returns the best qualifying
// one. It returns nil, nil when no rule qualifies. Any load failure aborts the run.
func (s *Service) Diagnose(ctx context.Context, symptomIDs []int64) (*MatchResult, error) {
	start := time.Now()
	selected, err := NormalizeSelection(symptomIDs)
	if err != nil {
		s.metrics.RecordOutcome(metrics.OutcomeInvalid, time.Since(start))
		return nil, err
	}

	var result *MatchResult
	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		all, err := s.rules.List(ctx)
		if err != nil {
			return fmt.Errorf("load rules: %w", err)
		}

		candidates := make([]Candidate, 0, len(all))
		for _, r := range all {
			required, err := s.rules.SymptomIDs(ctx, r.ID)
			if err != nil {
				return fmt.Errorf("load symptoms of rule %s: %w", r.Code, err)
			}
			c := Score(required, selected, s.policy)
			if !s.policy.Qualifies(c) {
				continue
			}
			c.RuleID, c.RuleCode, c.RuleName, c.DiseaseID = r.ID, r.Code, r.Name, r.DiseaseID
			candidates = append(candidates, c)
		}
		s.metrics.RecordScoring(len(all), len(candidates))
		if len(candidates) == 0 {
			return nil
		}

		Rank(candidates)
		best := candidates[0]

		disease, err := s.catalog.GetDisease(ctx, best.DiseaseID)
		if err != nil {
			if errors.Is(err, catalog.ErrNotFound) {
				return fmt.Errorf("rule %s references missing disease %d", best.RuleCode, best.DiseaseID)
			}
			return fmt.Errorf("load disease of rule %s: %w", best.RuleCode, err)
		}
		matched, err := s.catalog.SymptomsByIDs(ctx, best.MatchedIDs)
		if err != nil {
			return fmt.Errorf("load matched symptoms: %w", err)
		}
		result = assemble(best, disease, catalog.OrderByIDs(matched, best.MatchedIDs), len(candidates))
		return nil
	})
	if err != nil {
		s.metrics.RecordOutcome(metrics.OutcomeError, time.Since(start))
		s.log.Error().Err(err).Ints64("selected", selected).Msg("diagnosis aborted")
		return nil, err
	}

	if result == nil {
		s.metrics.RecordOutcome(metrics.OutcomeNoMatch, time.Since(start))
		s.log.Debug().Ints64("selected", selected).Msg("no qualifying rule")
		return nil, nil
	}

	s.metrics.RecordOutcome(metrics.OutcomeMatch, time.Since(start))
	s.metrics.RecordConfidence(result.Confidence)
	s.log.Debug().
		Str("rule", result.RuleCode).
		Float64("confidence", result.Confidence).
		Int("candidates", result.Candidates).
		Msg("diagnosis matched")
	return result, nil
}
