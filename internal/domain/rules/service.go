package rules

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/rs/zerolog"

	"github.com/gastrodx/gastrodx/internal/domain/catalog"
	"github.com/gastrodx/gastrodx/internal/platform/db"
	"github.com/gastrodx/gastrodx/internal/platform/metrics"
)

// CatalogLookup resolves the disease and symptom references of a rule.
type CatalogLookup interface {
	GetDisease(ctx context.Context, id int64) (*catalog.Disease, error)
	GetSymptom(ctx context.Context, id int64) (*catalog.Symptom, error)
}

type Service struct {
	repo    Repository
	catalog CatalogLookup
	tx      db.TxRunner
	log     zerolog.Logger
	metrics *metrics.RuleMetrics
}

func NewService(repo Repository, lookup CatalogLookup, tx db.TxRunner, log zerolog.Logger) *Service {
	return &Service{
		repo:    repo,
		catalog: lookup,
		tx:      tx,
		log:     log.With().Str("component", "rules").Logger(),
	}
}

func (s *Service) SetMetrics(m *metrics.RuleMetrics) { s.metrics = m }

// CreateRule validates the rule, then writes the header and every symptom link in
// one transaction. Nothing is persisted unless every reference resolves.
func (s *Service) CreateRule(ctx context.Context, code string, diseaseID int64, name string, symptomIDs []int64, citation *string) (*Rule, error) {
	rule, err := NewRule(code, diseaseID, name, symptomIDs, citation)
	if err != nil {
		s.metrics.RecordChange("create", "invalid")
		return nil, err
	}

	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		exists, err := s.repo.CodeExists(ctx, rule.Code)
		if err != nil {
			return fmt.Errorf("check rule code: %w", err)
		}
		if exists {
			return fmt.Errorf("%w: %s", ErrDuplicateCode, rule.Code)
		}

		if _, err := s.catalog.GetDisease(ctx, rule.DiseaseID); err != nil {
			if errors.Is(err, catalog.ErrNotFound) {
				return fmt.Errorf("%w: id %d", ErrDiseaseNotFound, rule.DiseaseID)
			}
			return fmt.Errorf("load disease: %w", err)
		}

		if err := s.repo.Create(ctx, rule); err != nil {
			return fmt.Errorf("insert rule: %w", err)
		}

		for _, sid := range rule.SymptomIDs {
			if _, err := s.catalog.GetSymptom(ctx, sid); err != nil {
				if errors.Is(err, catalog.ErrNotFound) {
					return fmt.Errorf("%w: id %d", ErrSymptomNotFound, sid)
				}
				return fmt.Errorf("load symptom: %w", err)
			}
			if _, err := s.repo.AddSymptom(ctx, rule.ID, sid); err != nil {
				return fmt.Errorf("link symptom %d: %w", sid, err)
			}
		}
		return nil
	})
	if err != nil {
		rule.ID = 0
		s.recordFailure("create", err)
		if !isBusinessError(err) {
			s.log.Error().Err(err).Str("code", rule.Code).Msg("rule creation rolled back")
		}
		return nil, err
	}

	s.metrics.RecordChange("create", "ok")
	s.log.Info().
		Int64("rule_id", rule.ID).
		Str("code", rule.Code).
		Int64("disease_id", rule.DiseaseID).
		Int("symptoms", len(rule.SymptomIDs)).
		Msg("rule created")
	return rule, nil
}

// DeleteRule removes a rule with all of its symptom links. An unknown id yields
// false with a nil error.
func (s *Service) DeleteRule(ctx context.Context, id int64) (bool, error) {
	var deleted bool
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		var err error
		deleted, err = s.repo.Delete(ctx, id)
		return err
	})
	if err != nil {
		s.metrics.RecordChange("delete", "error")
		s.log.Error().Err(err).Int64("rule_id", id).Msg("rule deletion rolled back")
		return false, fmt.Errorf("delete rule %d: %w", id, err)
	}
	if !deleted {
		s.metrics.RecordChange("delete", "not_found")
		return false, nil
	}
	s.metrics.RecordChange("delete", "ok")
	s.log.Info().Int64("rule_id", id).Msg("rule deleted")
	return true, nil
}

// DeleteSymptomLink removes a single symptom from a rule. The minimum symptom count
// is not re-checked; a rule left below it is reported in the log only.
func (s *Service) DeleteSymptomLink(ctx context.Context, linkID int64) (bool, error) {
	var (
		ruleID    int64
		deleted   bool
		remaining int
	)
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		var err error
		ruleID, deleted, err = s.repo.DeleteLink(ctx, linkID)
		if err != nil || !deleted {
			return err
		}
		remaining, err = s.repo.CountLinks(ctx, ruleID)
		return err
	})
	if err != nil {
		s.metrics.RecordChange("unlink", "error")
		s.log.Error().Err(err).Int64("link_id", linkID).Msg("symptom link deletion rolled back")
		return false, fmt.Errorf("delete rule symptom link %d: %w", linkID, err)
	}
	if !deleted {
		s.metrics.RecordChange("unlink", "not_found")
		return false, nil
	}

	s.metrics.RecordChange("unlink", "ok")
	evt := s.log.Info()
	if remaining < MinSymptoms {
		evt = s.log.Warn().Int("minimum", MinSymptoms)
	}
	evt.Int64("link_id", linkID).
		Int64("rule_id", ruleID).
		Int("remaining_symptoms", remaining).
		Msg("rule symptom link deleted")
	return true, nil
}

func (s *Service) GetRule(ctx context.Context, id int64) (*RuleDetail, error) {
	var detail *RuleDetail
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		rule, err := s.repo.GetByID(ctx, id)
		if err != nil {
			return err
		}
		detail, err = s.detail(ctx, rule, nil)
		return err
	})
	return detail, err
}

func (s *Service) GetRuleByCode(ctx context.Context, code string) (*RuleDetail, error) {
	var detail *RuleDetail
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		rule, err := s.repo.GetByCode(ctx, code)
		if err != nil {
			return err
		}
		detail, err = s.detail(ctx, rule, nil)
		return err
	})
	return detail, err
}

// ListRules returns every rule with its disease and symptoms, ordered by disease
// code and then rule code.
func (s *Service) ListRules(ctx context.Context) ([]*RuleDetail, error) {
	var out []*RuleDetail
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		items, err := s.repo.List(ctx)
		if err != nil {
			return fmt.Errorf("list rules: %w", err)
		}
		diseases := make(map[int64]*catalog.Disease)
		out = make([]*RuleDetail, 0, len(items))
		for _, rule := range items {
			ids, err := s.repo.SymptomIDs(ctx, rule.ID)
			if err != nil {
				return fmt.Errorf("load symptoms of rule %s: %w", rule.Code, err)
			}
			rule.SymptomIDs = ids
			d, err := s.detail(ctx, rule, diseases)
			if err != nil {
				return err
			}
			out = append(out, d)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sortDetails(out)
	return out, nil
}

// NextCode suggests the next free rule code.
func (s *Service) NextCode(ctx context.Context) (string, error) {
	codes, err := s.repo.Codes(ctx)
	if err != nil {
		return "", fmt.Errorf("list rule codes: %w", err)
	}
	return NextCode(codes), nil
}

func (s *Service) detail(ctx context.Context, rule *Rule, diseases map[int64]*catalog.Disease) (*RuleDetail, error) {
	d, ok := diseases[rule.DiseaseID]
	if !ok {
		var err error
		d, err = s.catalog.GetDisease(ctx, rule.DiseaseID)
		if err != nil && !errors.Is(err, catalog.ErrNotFound) {
			return nil, fmt.Errorf("load disease of rule %s: %w", rule.Code, err)
		}
		if diseases != nil {
			diseases[rule.DiseaseID] = d
		}
	}

	links, err := s.repo.Links(ctx, rule.ID)
	if err != nil {
		return nil, fmt.Errorf("load links of rule %s: %w", rule.Code, err)
	}

	detail := &RuleDetail{Rule: *rule, Symptoms: links}
	if detail.Symptoms == nil {
		detail.Symptoms = []RuleSymptom{}
	}
	if d != nil {
		detail.DiseaseCode = d.Code
		detail.DiseaseName = d.Name
	}
	return detail, nil
}

func (s *Service) recordFailure(action string, err error) {
	status := "error"
	switch {
	case errors.Is(err, ErrDuplicateCode):
		status = "duplicate"
	case errors.Is(err, ErrDiseaseNotFound), errors.Is(err, ErrSymptomNotFound):
		status = "invalid"
	}
	s.metrics.RecordChange(action, status)
}

func isBusinessError(err error) bool {
	return errors.Is(err, ErrInvalidRule) ||
		errors.Is(err, ErrDuplicateCode) ||
		errors.Is(err, ErrDiseaseNotFound) ||
		errors.Is(err, ErrSymptomNotFound)
}

func sortDetails(items []*RuleDetail) {
	sort.SliceStable(items, func(i, j int) bool {
		if items[i].DiseaseCode != items[j].DiseaseCode {
			return items[i].DiseaseCode < items[j].DiseaseCode
		}
		return items[i].Code < items[j].Code
	})
}
