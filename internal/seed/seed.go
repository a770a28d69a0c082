// Package seed loads a YAML knowledge base of diseases, symptoms and rules into the
// store. Applying the same file twice changes nothing.
package seed

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"github.com/gastrodx/gastrodx/internal/domain/catalog"
	"github.com/gastrodx/gastrodx/internal/domain/rules"
	"github.com/gastrodx/gastrodx/internal/platform/db"
)

type File struct {
	Diseases []Disease `yaml:"diseases"`
	Symptoms []Symptom `yaml:"symptoms"`
	Rules    []Rule    `yaml:"rules"`
}

type Disease struct {
	Code        string `yaml:"code"`
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	Action      string `yaml:"action"`
}

type Symptom struct {
	Code string `yaml:"code"`
	Name string `yaml:"name"`
}

// Rule references its disease and symptoms by code.
type Rule struct {
	Code     string   `yaml:"code"`
	Name     string   `yaml:"name"`
	Disease  string   `yaml:"disease"`
	Symptoms []string `yaml:"symptoms"`
	Citation string   `yaml:"citation"`
}

// Report counts what Apply created and skipped.
type Report struct {
	Diseases int `json:"diseases"`
	Symptoms int `json:"symptoms"`
	Rules    int `json:"rules"`
	Skipped  int `json:"skipped"`
}

func Parse(data []byte) (*File, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse seed file: %w", err)
	}
	return &f, nil
}

func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seed file: %w", err)
	}
	return Parse(data)
}

// Loader writes a seed file through the catalog and rule services.
type Loader struct {
	catalog *catalog.Service
	rules   *rules.Service
	tx      db.TxRunner
	log     zerolog.Logger
}

func NewLoader(cat *catalog.Service, rs *rules.Service, tx db.TxRunner, log zerolog.Logger) *Loader {
	return &Loader{catalog: cat, rules: rs, tx: tx, log: log.With().Str("component", "seed").Logger()}
}

// Apply creates every entry whose code is not yet present, in one transaction.
func (l *Loader) Apply(ctx context.Context, f *File) (Report, error) {
	var rep Report
	err := l.tx.RunInTx(ctx, func(ctx context.Context) error {
		rep = Report{}
		for _, d := range f.Diseases {
			_, err := l.catalog.GetDiseaseByCode(ctx, d.Code)
			switch {
			case err == nil:
				rep.Skipped++
				continue
			case !errors.Is(err, catalog.ErrNotFound):
				return fmt.Errorf("look up disease %s: %w", d.Code, err)
			}
			if _, err := l.catalog.CreateDisease(ctx, d.Code, d.Name, d.Description, d.Action); err != nil {
				return err
			}
			rep.Diseases++
		}

		for _, s := range f.Symptoms {
			_, err := l.catalog.GetSymptomByCode(ctx, s.Code)
			switch {
			case err == nil:
				rep.Skipped++
				continue
			case !errors.Is(err, catalog.ErrNotFound):
				return fmt.Errorf("look up symptom %s: %w", s.Code, err)
			}
			if _, err := l.catalog.CreateSymptom(ctx, s.Code, s.Name); err != nil {
				return err
			}
			rep.Symptoms++
		}

		for _, r := range f.Rules {
			created, err := l.applyRule(ctx, r)
			if err != nil {
				return err
			}
			if created {
				rep.Rules++
			} else {
				rep.Skipped++
			}
		}
		return nil
	})
	if err != nil {
		return Report{}, err
	}

	l.log.Info().
		Int("diseases", rep.Diseases).
		Int("symptoms", rep.Symptoms).
		Int("rules", rep.Rules).
		Int("skipped", rep.Skipped).
		Msg("seed applied")
	return rep, nil
}

func (l *Loader) applyRule(ctx context.Context, r Rule) (bool, error) {
	_, err := l.rules.GetRuleByCode(ctx, r.Code)
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, rules.ErrNotFound) {
		return false, fmt.Errorf("look up rule %s: %w", r.Code, err)
	}

	disease, err := l.catalog.GetDiseaseByCode(ctx, r.Disease)
	if err != nil {
		return false, fmt.Errorf("rule %s: disease %s: %w", r.Code, r.Disease, err)
	}
	ids := make([]int64, 0, len(r.Symptoms))
	for _, code := range r.Symptoms {
		s, err := l.catalog.GetSymptomByCode(ctx, code)
		if err != nil {
			return false, fmt.Errorf("rule %s: symptom %s: %w", r.Code, code, err)
		}
		ids = append(ids, s.ID)
	}

	var citation *string
	if r.Citation != "" {
		citation = &r.Citation
	}
	if _, err := l.rules.CreateRule(ctx, r.Code, disease.ID, r.Name, ids, citation); err != nil {
		return false, err
	}
	return true, nil
}
