package rules

import (
	"bytes"
	"context"
	"errors"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/gastrodx/gastrodx/internal/domain/catalog"
)

// ── Mock Repository ──

type link struct {
	id        int64
	ruleID    int64
	symptomID int64
}

type mockRepo struct {
	rules    map[int64]*Rule
	links    []link
	nextRule int64
	nextLink int64
	failLink int // fail the n-th AddSymptom call (1-based), 0 = never
	linkCall int
}

func newMockRepo() *mockRepo {
	return &mockRepo{rules: map[int64]*Rule{}}
}

type repoState struct {
	rules    map[int64]*Rule
	links    []link
	nextRule int64
	nextLink int64
}

func (m *mockRepo) snapshot() repoState {
	rules := make(map[int64]*Rule, len(m.rules))
	for k, v := range m.rules {
		cp := *v
		rules[k] = &cp
	}
	return repoState{rules: rules, links: append([]link(nil), m.links...), nextRule: m.nextRule, nextLink: m.nextLink}
}

func (m *mockRepo) restore(s repoState) {
	m.rules, m.links, m.nextRule, m.nextLink = s.rules, s.links, s.nextRule, s.nextLink
}

func (m *mockRepo) Create(_ context.Context, r *Rule) error {
	for _, existing := range m.rules {
		if existing.Code == r.Code {
			return ErrDuplicateCode
		}
	}
	m.nextRule++
	r.ID = m.nextRule
	r.CreatedAt = time.Now()
	cp := *r
	cp.SymptomIDs = nil
	m.rules[r.ID] = &cp
	return nil
}
func (m *mockRepo) AddSymptom(_ context.Context, ruleID, symptomID int64) (int64, error) {
	m.linkCall++
	if m.failLink > 0 && m.linkCall == m.failLink {
		return 0, errors.New("connection lost")
	}
	m.nextLink++
	m.links = append(m.links, link{id: m.nextLink, ruleID: ruleID, symptomID: symptomID})
	return m.nextLink, nil
}
func (m *mockRepo) CodeExists(_ context.Context, code string) (bool, error) {
	for _, r := range m.rules {
		if r.Code == NormalizeCode(code) {
			return true, nil
		}
	}
	return false, nil
}
func (m *mockRepo) GetByID(ctx context.Context, id int64) (*Rule, error) {
	r, ok := m.rules[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *r
	cp.SymptomIDs, _ = m.SymptomIDs(ctx, id)
	return &cp, nil
}
func (m *mockRepo) GetByCode(ctx context.Context, code string) (*Rule, error) {
	for id, r := range m.rules {
		if r.Code == NormalizeCode(code) {
			return m.GetByID(ctx, id)
		}
	}
	return nil, ErrNotFound
}
func (m *mockRepo) List(_ context.Context) ([]*Rule, error) {
	var out []*Rule
	for _, r := range m.rules {
		cp := *r
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}
func (m *mockRepo) Codes(_ context.Context) ([]string, error) {
	var out []string
	for _, r := range m.rules {
		out = append(out, r.Code)
	}
	return out, nil
}
func (m *mockRepo) SymptomIDs(_ context.Context, ruleID int64) ([]int64, error) {
	var ids []int64
	for _, l := range m.links {
		if l.ruleID == ruleID {
			ids = append(ids, l.symptomID)
		}
	}
	return ids, nil
}
func (m *mockRepo) Links(_ context.Context, ruleID int64) ([]RuleSymptom, error) {
	var out []RuleSymptom
	for _, l := range m.links {
		if l.ruleID == ruleID {
			out = append(out, RuleSymptom{LinkID: l.id, SymptomID: l.symptomID})
		}
	}
	return out, nil
}
func (m *mockRepo) CountLinks(ctx context.Context, ruleID int64) (int, error) {
	ids, _ := m.SymptomIDs(ctx, ruleID)
	return len(ids), nil
}
func (m *mockRepo) Delete(_ context.Context, id int64) (bool, error) {
	kept := m.links[:0]
	for _, l := range m.links {
		if l.ruleID != id {
			kept = append(kept, l)
		}
	}
	m.links = kept
	if _, ok := m.rules[id]; !ok {
		return false, nil
	}
	delete(m.rules, id)
	return true, nil
}
func (m *mockRepo) DeleteLink(_ context.Context, linkID int64) (int64, bool, error) {
	for i, l := range m.links {
		if l.id == linkID {
			m.links = append(m.links[:i], m.links[i+1:]...)
			return l.ruleID, true, nil
		}
	}
	return 0, false, nil
}

// ── Mock Catalog ──

type mockCatalog struct {
	diseases map[int64]*catalog.Disease
	symptoms map[int64]*catalog.Symptom
}

func newMockCatalog() *mockCatalog {
	c := &mockCatalog{diseases: map[int64]*catalog.Disease{}, symptoms: map[int64]*catalog.Symptom{}}
	c.diseases[1] = &catalog.Disease{ID: 1, Code: "P001", Name: "Gastritis"}
	c.diseases[2] = &catalog.Disease{ID: 2, Code: "P002", Name: "Dispepsia"}
	for i := int64(1); i <= 6; i++ {
		c.symptoms[i] = &catalog.Symptom{ID: i, Code: "G0" + string(rune('0'+i)), Name: "symptom"}
	}
	return c
}

func (c *mockCatalog) GetDisease(_ context.Context, id int64) (*catalog.Disease, error) {
	if d, ok := c.diseases[id]; ok {
		return d, nil
	}
	return nil, catalog.ErrNotFound
}
func (c *mockCatalog) GetSymptom(_ context.Context, id int64) (*catalog.Symptom, error) {
	if s, ok := c.symptoms[id]; ok {
		return s, nil
	}
	return nil, catalog.ErrNotFound
}

// ── Fake transactions ──

type fakeTx struct {
	repo      *mockRepo
	commits   int
	rollbacks int
}

func (f *fakeTx) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	snap := f.repo.snapshot()
	if err := fn(ctx); err != nil {
		f.repo.restore(snap)
		f.rollbacks++
		return err
	}
	f.commits++
	return nil
}

func newTestService() (*Service, *mockRepo, *fakeTx) {
	repo := newMockRepo()
	tx := &fakeTx{repo: repo}
	return NewService(repo, newMockCatalog(), tx, zerolog.Nop()), repo, tx
}

// ── Tests ──

func TestService_CreateRule(t *testing.T) {
	svc, repo, tx := newTestService()
	ctx := context.Background()

	rule, err := svc.CreateRule(ctx, "r001", 1, "Gastritis akut", []int64{1, 2, 3}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rule.ID == 0 || rule.Code != "R001" {
		t.Errorf("unexpected rule: %+v", rule)
	}
	if len(repo.links) != 3 {
		t.Errorf("expected 3 links, got %d", len(repo.links))
	}
	if tx.commits != 1 {
		t.Errorf("expected 1 commit, got %d", tx.commits)
	}
}

func TestService_CreateRule_RoundTrip(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	if _, err := svc.CreateRule(ctx, "R001", 1, "x", []int64{3, 1, 2}, nil); err != nil {
		t.Fatalf("create: %v", err)
	}
	got, err := svc.GetRuleByCode(ctx, "R001")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	ids := append([]int64(nil), got.SymptomIDs...)
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	if len(ids) != 3 || ids[0] != 1 || ids[1] != 2 || ids[2] != 3 {
		t.Errorf("expected {1,2,3}, got %v", got.SymptomIDs)
	}
	if got.DiseaseCode != "P001" || len(got.Symptoms) != 3 {
		t.Errorf("unexpected detail: %+v", got)
	}
}

func TestService_CreateRule_SingleSymptomRejectedBeforeWrite(t *testing.T) {
	svc, repo, tx := newTestService()

	_, err := svc.CreateRule(context.Background(), "R001", 1, "x", []int64{1}, nil)
	if !errors.Is(err, ErrInvalidRule) {
		t.Fatalf("expected ErrInvalidRule, got %v", err)
	}
	if tx.commits+tx.rollbacks != 0 {
		t.Error("expected no transaction to be opened")
	}
	if len(repo.rules) != 0 || len(repo.links) != 0 {
		t.Error("expected no rows written")
	}
}

func TestService_CreateRule_DuplicateCode(t *testing.T) {
	svc, repo, _ := newTestService()
	ctx := context.Background()
	svc.CreateRule(ctx, "R001", 1, "x", []int64{1, 2}, nil)

	_, err := svc.CreateRule(ctx, "r001", 2, "y", []int64{3, 4}, nil)
	if !errors.Is(err, ErrDuplicateCode) {
		t.Fatalf("expected ErrDuplicateCode, got %v", err)
	}
	if len(repo.rules) != 1 || len(repo.links) != 2 {
		t.Errorf("expected the original rule only, got %d rules / %d links", len(repo.rules), len(repo.links))
	}
}

func TestService_CreateRule_UnknownDisease(t *testing.T) {
	svc, repo, _ := newTestService()
	_, err := svc.CreateRule(context.Background(), "R001", 99, "x", []int64{1, 2}, nil)
	if !errors.Is(err, ErrDiseaseNotFound) {
		t.Fatalf("expected ErrDiseaseNotFound, got %v", err)
	}
	if len(repo.rules) != 0 {
		t.Error("expected no rule persisted")
	}
}

func TestService_CreateRule_UnknownSymptomRollsBack(t *testing.T) {
	svc, repo, tx := newTestService()
	_, err := svc.CreateRule(context.Background(), "R001", 1, "x", []int64{1, 2, 42}, nil)
	if !errors.Is(err, ErrSymptomNotFound) {
		t.Fatalf("expected ErrSymptomNotFound, got %v", err)
	}
	if len(repo.rules) != 0 || len(repo.links) != 0 {
		t.Errorf("expected full rollback, got %d rules / %d links", len(repo.rules), len(repo.links))
	}
	if tx.rollbacks != 1 {
		t.Errorf("expected 1 rollback, got %d", tx.rollbacks)
	}
}

func TestService_CreateRule_LinkFailureRollsBack(t *testing.T) {
	svc, repo, _ := newTestService()
	repo.failLink = 2

	_, err := svc.CreateRule(context.Background(), "R001", 1, "x", []int64{1, 2, 3}, nil)
	if err == nil {
		t.Fatal("expected error")
	}
	if len(repo.rules) != 0 || len(repo.links) != 0 {
		t.Errorf("expected full rollback, got %d rules / %d links", len(repo.rules), len(repo.links))
	}
}

func TestService_DeleteRule(t *testing.T) {
	svc, repo, _ := newTestService()
	ctx := context.Background()
	rule, _ := svc.CreateRule(ctx, "R001", 1, "x", []int64{1, 2}, nil)

	ok, err := svc.DeleteRule(ctx, rule.ID)
	if err != nil || !ok {
		t.Fatalf("expected deletion, got %v / %v", ok, err)
	}
	if len(repo.rules) != 0 || len(repo.links) != 0 {
		t.Error("expected rule and links removed")
	}
}

func TestService_DeleteRule_NotFoundIsFalse(t *testing.T) {
	svc, repo, _ := newTestService()
	ctx := context.Background()
	svc.CreateRule(ctx, "R001", 1, "x", []int64{1, 2}, nil)

	ok, err := svc.DeleteRule(ctx, 999)
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if ok {
		t.Error("expected false for unknown rule")
	}
	if len(repo.rules) != 1 || len(repo.links) != 2 {
		t.Error("expected no side effect")
	}
}

func TestService_DeleteSymptomLink_WarnsBelowMinimum(t *testing.T) {
	repo := newMockRepo()
	var buf bytes.Buffer
	svc := NewService(repo, newMockCatalog(), &fakeTx{repo: repo}, zerolog.New(&buf))
	ctx := context.Background()

	rule, _ := svc.CreateRule(ctx, "R001", 1, "x", []int64{1, 2}, nil)
	links, _ := repo.Links(ctx, rule.ID)
	buf.Reset()

	ok, err := svc.DeleteSymptomLink(ctx, links[0].LinkID)
	if err != nil || !ok {
		t.Fatalf("expected deletion, got %v / %v", ok, err)
	}
	if n, _ := repo.CountLinks(ctx, rule.ID); n != 1 {
		t.Errorf("expected 1 remaining link, got %d", n)
	}
	out := buf.String()
	if !strings.Contains(out, `"level":"warn"`) || !strings.Contains(out, `"remaining_symptoms":1`) {
		t.Errorf("expected warning with remaining count, got %s", out)
	}
}

func TestService_DeleteSymptomLink_NotFound(t *testing.T) {
	svc, _, _ := newTestService()
	ok, err := svc.DeleteSymptomLink(context.Background(), 77)
	if err != nil || ok {
		t.Errorf("expected false/nil, got %v / %v", ok, err)
	}
}

func TestService_ListRules_Sorted(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()
	svc.CreateRule(ctx, "R003", 2, "c", []int64{1, 2}, nil)
	svc.CreateRule(ctx, "R002", 1, "b", []int64{3, 4}, nil)
	svc.CreateRule(ctx, "R001", 2, "a", []int64{5, 6}, nil)

	items, err := svc.ListRules(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var codes []string
	for _, d := range items {
		codes = append(codes, d.DiseaseCode+"/"+d.Code)
	}
	want := "P001/R002,P002/R001,P002/R003"
	if strings.Join(codes, ",") != want {
		t.Errorf("expected %s, got %s", want, strings.Join(codes, ","))
	}
}

func TestService_NextCode(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()
	code, _ := svc.NextCode(ctx)
	if code != "R001" {
		t.Errorf("expected R001, got %s", code)
	}
	svc.CreateRule(ctx, "R007", 1, "x", []int64{1, 2}, nil)
	code, _ = svc.NextCode(ctx)
	if code != "R008" {
		t.Errorf("expected R008, got %s", code)
	}
}

func TestService_GetRule_NotFound(t *testing.T) {
	svc, _, _ := newTestService()
	if _, err := svc.GetRule(context.Background(), 5); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}
