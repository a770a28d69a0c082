package seed

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gastrodx/gastrodx/internal/domain/catalog"
	"github.com/gastrodx/gastrodx/internal/domain/rules"
	"github.com/gastrodx/gastrodx/internal/platform/gormdb"
	seedfiles "github.com/gastrodx/gastrodx/seed"
)

func newLoader(t *testing.T) (*Loader, *rules.Service) {
	t.Helper()
	models := append(catalog.GormModels(), rules.GormModels()...)
	gdb, err := gormdb.Open("sqlite", filepath.Join(t.TempDir(), "seed.db"), zerolog.Nop(), models...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = gormdb.Close(gdb) })

	tx := gormdb.NewTxRunner(gdb)
	cat := catalog.NewService(catalog.NewRepoGorm(gdb), 0, zerolog.Nop())
	rs := rules.NewService(rules.NewRepoGorm(gdb), cat, tx, zerolog.Nop())
	return NewLoader(cat, rs, tx, zerolog.Nop()), rs
}

func TestParse_Default(t *testing.T) {
	f, err := Parse(seedfiles.Default())
	require.NoError(t, err)
	assert.NotEmpty(t, f.Diseases)
	assert.NotEmpty(t, f.Symptoms)
	assert.NotEmpty(t, f.Rules)
	for _, r := range f.Rules {
		assert.GreaterOrEqual(t, len(r.Symptoms), rules.MinSymptoms, "rule %s", r.Code)
	}
}

func TestParse_Invalid(t *testing.T) {
	_, err := Parse([]byte("diseases: [unterminated"))
	assert.Error(t, err)
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kb.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
diseases:
  - {code: P001, name: Gastritis}
symptoms:
  - {code: G01, name: Nyeri}
`), 0o600))

	f, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "P001", f.Diseases[0].Code)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestApply_Idempotent(t *testing.T) {
	loader, rs := newLoader(t)
	ctx := context.Background()
	f, err := Parse(seedfiles.Default())
	require.NoError(t, err)

	first, err := loader.Apply(ctx, f)
	require.NoError(t, err)
	assert.Equal(t, len(f.Diseases), first.Diseases)
	assert.Equal(t, len(f.Symptoms), first.Symptoms)
	assert.Equal(t, len(f.Rules), first.Rules)
	assert.Zero(t, first.Skipped)

	second, err := loader.Apply(ctx, f)
	require.NoError(t, err)
	assert.Zero(t, second.Diseases+second.Symptoms+second.Rules)
	assert.Equal(t, len(f.Diseases)+len(f.Symptoms)+len(f.Rules), second.Skipped)

	r, err := rs.GetRuleByCode(ctx, "R001")
	require.NoError(t, err)
	assert.Len(t, r.SymptomIDs, 3)
}

func TestApply_UnknownReferenceRollsBack(t *testing.T) {
	loader, rs := newLoader(t)
	ctx := context.Background()

	f := &File{
		Diseases: []Disease{{Code: "P001", Name: "Gastritis"}},
		Symptoms: []Symptom{{Code: "G01", Name: "Nyeri"}, {Code: "G02", Name: "Mual"}},
		Rules:    []Rule{{Code: "R001", Name: "x", Disease: "P001", Symptoms: []string{"G01", "G99"}}},
	}
	_, err := loader.Apply(ctx, f)
	require.ErrorIs(t, err, catalog.ErrNotFound)

	items, err := rs.ListRules(ctx)
	require.NoError(t, err)
	assert.Empty(t, items)

	// the catalog entries were rolled back with the rule
	f.Rules = nil
	rep, err := loader.Apply(ctx, f)
	require.NoError(t, err)
	assert.Equal(t, 1, rep.Diseases)
	assert.Equal(t, 2, rep.Symptoms)
}
