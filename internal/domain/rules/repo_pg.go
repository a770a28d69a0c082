package rules

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gastrodx/gastrodx/internal/platform/db"
)

type ruleRepoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository {
	return &ruleRepoPG{pool: pool}
}

func (r *ruleRepoPG) conn(ctx context.Context) db.Queryable {
	return db.Pick(ctx, r.pool)
}

const ruleCols = `id, code, name, citation, disease_id, created_at`

func scanRule(row pgx.Row) (*Rule, error) {
	var rule Rule
	err := row.Scan(&rule.ID, &rule.Code, &rule.Name, &rule.Citation, &rule.DiseaseID, &rule.CreatedAt)
	if err != nil {
		if db.IsNoRows(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &rule, nil
}

func (r *ruleRepoPG) Create(ctx context.Context, rule *Rule) error {
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO rules (code, name, citation, disease_id)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at`,
		rule.Code, rule.Name, rule.Citation, rule.DiseaseID).Scan(&rule.ID, &rule.CreatedAt)
	if db.IsUniqueViolation(err) {
		return fmt.Errorf("%w: %s", ErrDuplicateCode, rule.Code)
	}
	return err
}

func (r *ruleRepoPG) AddSymptom(ctx context.Context, ruleID, symptomID int64) (int64, error) {
	var linkID int64
	err := r.conn(ctx).QueryRow(ctx,
		`INSERT INTO rule_symptoms (rule_id, symptom_id) VALUES ($1, $2) RETURNING id`,
		ruleID, symptomID).Scan(&linkID)
	return linkID, err
}

func (r *ruleRepoPG) CodeExists(ctx context.Context, code string) (bool, error) {
	var exists bool
	err := r.conn(ctx).QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM rules WHERE code = $1)`, NormalizeCode(code)).Scan(&exists)
	return exists, err
}

func (r *ruleRepoPG) GetByID(ctx context.Context, id int64) (*Rule, error) {
	rule, err := scanRule(r.conn(ctx).QueryRow(ctx, `SELECT `+ruleCols+` FROM rules WHERE id = $1`, id))
	if err != nil {
		return nil, err
	}
	return r.withSymptoms(ctx, rule)
}

func (r *ruleRepoPG) GetByCode(ctx context.Context, code string) (*Rule, error) {
	rule, err := scanRule(r.conn(ctx).QueryRow(ctx, `SELECT `+ruleCols+` FROM rules WHERE code = $1`, NormalizeCode(code)))
	if err != nil {
		return nil, err
	}
	return r.withSymptoms(ctx, rule)
}

func (r *ruleRepoPG) withSymptoms(ctx context.Context, rule *Rule) (*Rule, error) {
	ids, err := r.SymptomIDs(ctx, rule.ID)
	if err != nil {
		return nil, err
	}
	rule.SymptomIDs = ids
	return rule, nil
}

func (r *ruleRepoPG) List(ctx context.Context) ([]*Rule, error) {
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+ruleCols+` FROM rules ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []*Rule
	for rows.Next() {
		rule, err := scanRule(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, rule)
	}
	return items, rows.Err()
}

func (r *ruleRepoPG) Codes(ctx context.Context) ([]string, error) {
	rows, err := r.conn(ctx).Query(ctx, `SELECT code FROM rules`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var codes []string
	for rows.Next() {
		var code string
		if err := rows.Scan(&code); err != nil {
			return nil, err
		}
		codes = append(codes, code)
	}
	return codes, rows.Err()
}

func (r *ruleRepoPG) SymptomIDs(ctx context.Context, ruleID int64) ([]int64, error) {
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT symptom_id FROM rule_symptoms WHERE rule_id = $1 ORDER BY id`, ruleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (r *ruleRepoPG) Links(ctx context.Context, ruleID int64) ([]RuleSymptom, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT rs.id, s.id, s.code, s.name
		FROM rule_symptoms rs
		JOIN symptoms s ON s.id = rs.symptom_id
		WHERE rs.rule_id = $1
		ORDER BY s.code`, ruleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var links []RuleSymptom
	for rows.Next() {
		var l RuleSymptom
		if err := rows.Scan(&l.LinkID, &l.SymptomID, &l.Code, &l.Name); err != nil {
			return nil, err
		}
		links = append(links, l)
	}
	return links, rows.Err()
}

func (r *ruleRepoPG) CountLinks(ctx context.Context, ruleID int64) (int, error) {
	var n int
	err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM rule_symptoms WHERE rule_id = $1`, ruleID).Scan(&n)
	return n, err
}

func (r *ruleRepoPG) Delete(ctx context.Context, id int64) (bool, error) {
	if _, err := r.conn(ctx).Exec(ctx, `DELETE FROM rule_symptoms WHERE rule_id = $1`, id); err != nil {
		return false, err
	}
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM rules WHERE id = $1`, id)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (r *ruleRepoPG) DeleteLink(ctx context.Context, linkID int64) (int64, bool, error) {
	var ruleID int64
	err := r.conn(ctx).QueryRow(ctx,
		`DELETE FROM rule_symptoms WHERE id = $1 RETURNING rule_id`, linkID).Scan(&ruleID)
	if err != nil {
		if db.IsNoRows(err) {
			return 0, false, nil
		}
		return 0, false, err
	}
	return ruleID, true, nil
}
