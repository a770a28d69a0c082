package consultation

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gastrodx/gastrodx/internal/domain/catalog"
	"github.com/gastrodx/gastrodx/internal/platform/db"
)

type consultationRepoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository {
	return &consultationRepoPG{pool: pool}
}

func (r *consultationRepoPG) conn(ctx context.Context) db.Queryable {
	return db.Pick(ctx, r.pool)
}

const recordSelect = `
	SELECT c.id, c.user_label, c.disease_id, c.rule_code, c.confidence::float8,
	       c.symptom_count, c.created_at,
	       d.id, d.code, d.name, d.description, d.action
	FROM consultations c
	LEFT JOIN diseases d ON d.id = c.disease_id`

func scanRecord(row pgx.Row) (*Record, error) {
	var (
		rec                       Record
		dID                       *int64
		dCode, dName, dDesc, dAct *string
	)
	err := row.Scan(&rec.ID, &rec.UserLabel, &rec.DiseaseID, &rec.RuleCode, &rec.Confidence,
		&rec.SymptomCount, &rec.CreatedAt,
		&dID, &dCode, &dName, &dDesc, &dAct)
	if err != nil {
		if db.IsNoRows(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if dID != nil {
		rec.Disease = &catalog.Disease{ID: *dID, Code: deref(dCode), Name: deref(dName), Description: deref(dDesc), Action: deref(dAct)}
	}
	return &rec, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func (r *consultationRepoPG) Create(ctx context.Context, rec *Record) error {
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO consultations (user_label, disease_id, rule_code, confidence, symptom_count)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at`,
		rec.UserLabel, rec.DiseaseID, rec.RuleCode, rec.Confidence, rec.SymptomCount,
	).Scan(&rec.ID, &rec.CreatedAt)
}

func (r *consultationRepoPG) AddSymptom(ctx context.Context, consultationID, symptomID int64, position int) error {
	_, err := r.conn(ctx).Exec(ctx,
		`INSERT INTO consultation_symptoms (consultation_id, symptom_id, position) VALUES ($1, $2, $3)`,
		consultationID, symptomID, position)
	return err
}

func (r *consultationRepoPG) List(ctx context.Context, userLabel string, limit int) ([]*Record, error) {
	var (
		rows pgx.Rows
		err  error
	)
	if userLabel == "" {
		rows, err = r.conn(ctx).Query(ctx, recordSelect+`
			ORDER BY c.created_at DESC, c.id DESC
			LIMIT $1`, limit)
	} else {
		rows, err = r.conn(ctx).Query(ctx, recordSelect+`
			WHERE c.user_label = $1
			ORDER BY c.created_at DESC, c.id DESC
			LIMIT $2`, userLabel, limit)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []*Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, rec)
	}
	return items, rows.Err()
}

func (r *consultationRepoPG) Get(ctx context.Context, id int64) (*Record, error) {
	return scanRecord(r.conn(ctx).QueryRow(ctx, recordSelect+` WHERE c.id = $1`, id))
}

func (r *consultationRepoPG) Symptoms(ctx context.Context, consultationID int64) ([]*catalog.Symptom, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT s.id, s.code, s.name
		FROM consultation_symptoms cs
		JOIN symptoms s ON s.id = cs.symptom_id
		WHERE cs.consultation_id = $1
		ORDER BY cs.position`, consultationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []*catalog.Symptom
	for rows.Next() {
		var s catalog.Symptom
		if err := rows.Scan(&s.ID, &s.Code, &s.Name); err != nil {
			return nil, err
		}
		items = append(items, &s)
	}
	return items, rows.Err()
}

func (r *consultationRepoPG) Delete(ctx context.Context, id int64) (bool, error) {
	if _, err := r.conn(ctx).Exec(ctx, `DELETE FROM consultation_symptoms WHERE consultation_id = $1`, id); err != nil {
		return false, err
	}
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM consultations WHERE id = $1`, id)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (r *consultationRepoPG) Stats(ctx context.Context, top int) (*Stats, error) {
	stats := &Stats{TopDiseases: []DiseaseCount{}, TopRules: []RuleCount{}}
	var mean float64
	err := r.conn(ctx).QueryRow(ctx,
		`SELECT COUNT(*), COALESCE(AVG(confidence), 0)::float8 FROM consultations`,
	).Scan(&stats.Total, &mean)
	if err != nil {
		return nil, err
	}
	stats.MeanConfidence = round2(mean)

	rows, err := r.conn(ctx).Query(ctx, `
		SELECT d.name, COUNT(*) AS n
		FROM consultations c
		JOIN diseases d ON d.id = c.disease_id
		GROUP BY d.id, d.name
		ORDER BY n DESC, d.name
		LIMIT $1`, top)
	if err != nil {
		return nil, err
	}
	for rows.Next() {
		var dc DiseaseCount
		if err := rows.Scan(&dc.DiseaseName, &dc.Count); err != nil {
			rows.Close()
			return nil, err
		}
		stats.TopDiseases = append(stats.TopDiseases, dc)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	rows, err = r.conn(ctx).Query(ctx, `
		SELECT rule_code, COUNT(*) AS n
		FROM consultations
		WHERE rule_code IS NOT NULL AND rule_code <> ''
		GROUP BY rule_code
		ORDER BY n DESC, rule_code
		LIMIT $1`, top)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var rc RuleCount
		if err := rows.Scan(&rc.RuleCode, &rc.Count); err != nil {
			return nil, err
		}
		stats.TopRules = append(stats.TopRules, rc)
	}
	return stats, rows.Err()
}
