package catalog

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gastrodx/gastrodx/internal/platform/db"
)

type catalogRepoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository {
	return &catalogRepoPG{pool: pool}
}

func (r *catalogRepoPG) conn(ctx context.Context) db.Queryable {
	return db.Pick(ctx, r.pool)
}

const (
	symptomCols = `id, code, name`
	diseaseCols = `id, code, name, description, action`
)

func scanSymptom(row pgx.Row) (*Symptom, error) {
	var s Symptom
	if err := row.Scan(&s.ID, &s.Code, &s.Name); err != nil {
		if db.IsNoRows(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &s, nil
}

func scanDisease(row pgx.Row) (*Disease, error) {
	var d Disease
	if err := row.Scan(&d.ID, &d.Code, &d.Name, &d.Description, &d.Action); err != nil {
		if db.IsNoRows(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &d, nil
}

func (r *catalogRepoPG) CreateSymptom(ctx context.Context, s *Symptom) error {
	err := r.conn(ctx).QueryRow(ctx,
		`INSERT INTO symptoms (code, name) VALUES ($1, $2) RETURNING id`,
		s.Code, s.Name).Scan(&s.ID)
	if db.IsUniqueViolation(err) {
		return fmt.Errorf("%w: %s", ErrDuplicateCode, s.Code)
	}
	return err
}

func (r *catalogRepoPG) CreateDisease(ctx context.Context, d *Disease) error {
	err := r.conn(ctx).QueryRow(ctx,
		`INSERT INTO diseases (code, name, description, action) VALUES ($1, $2, $3, $4) RETURNING id`,
		d.Code, d.Name, d.Description, d.Action).Scan(&d.ID)
	if db.IsUniqueViolation(err) {
		return fmt.Errorf("%w: %s", ErrDuplicateCode, d.Code)
	}
	return err
}

func (r *catalogRepoPG) ListSymptoms(ctx context.Context) ([]*Symptom, error) {
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+symptomCols+` FROM symptoms ORDER BY code`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectSymptoms(rows)
}

func (r *catalogRepoPG) ListDiseases(ctx context.Context) ([]*Disease, error) {
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+diseaseCols+` FROM diseases ORDER BY code`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []*Disease
	for rows.Next() {
		d, err := scanDisease(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, d)
	}
	return items, rows.Err()
}

func (r *catalogRepoPG) GetSymptom(ctx context.Context, id int64) (*Symptom, error) {
	return scanSymptom(r.conn(ctx).QueryRow(ctx, `SELECT `+symptomCols+` FROM symptoms WHERE id = $1`, id))
}

func (r *catalogRepoPG) GetSymptomByCode(ctx context.Context, code string) (*Symptom, error) {
	return scanSymptom(r.conn(ctx).QueryRow(ctx, `SELECT `+symptomCols+` FROM symptoms WHERE code = $1`, normalizeCode(code)))
}

func (r *catalogRepoPG) GetDisease(ctx context.Context, id int64) (*Disease, error) {
	return scanDisease(r.conn(ctx).QueryRow(ctx, `SELECT `+diseaseCols+` FROM diseases WHERE id = $1`, id))
}

func (r *catalogRepoPG) GetDiseaseByCode(ctx context.Context, code string) (*Disease, error) {
	return scanDisease(r.conn(ctx).QueryRow(ctx, `SELECT `+diseaseCols+` FROM diseases WHERE code = $1`, normalizeCode(code)))
}

func (r *catalogRepoPG) SymptomsByIDs(ctx context.Context, ids []int64) ([]*Symptom, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+symptomCols+` FROM symptoms WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items, err := collectSymptoms(rows)
	if err != nil {
		return nil, err
	}
	return OrderByIDs(items, ids), nil
}

func collectSymptoms(rows pgx.Rows) ([]*Symptom, error) {
	var items []*Symptom
	for rows.Next() {
		s, err := scanSymptom(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, s)
	}
	return items, rows.Err()
}
