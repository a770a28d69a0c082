package consultation

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/gastrodx/gastrodx/internal/domain/catalog"
	"github.com/gastrodx/gastrodx/internal/platform/gormdb"
)

// ConsultationRecord is the gorm row for consultations.
type ConsultationRecord struct {
	ID           int64     `gorm:"primaryKey;autoIncrement"`
	UserLabel    string    `gorm:"size:255;not null;default:Anonymous;index:idx_consultations_user"`
	DiseaseID    *int64    `gorm:"index"`
	RuleCode     *string   `gorm:"size:16"`
	Confidence   float64   `gorm:"type:decimal(5,1);not null"`
	SymptomCount int       `gorm:"not null"`
	CreatedAt    time.Time `gorm:"autoCreateTime;index"`
}

func (ConsultationRecord) TableName() string { return "consultations" }

// ConsultationSymptomRecord is the gorm row for consultation_symptoms.
type ConsultationSymptomRecord struct {
	ID             int64 `gorm:"primaryKey;autoIncrement"`
	ConsultationID int64 `gorm:"not null;index"`
	SymptomID      int64 `gorm:"not null"`
	Position       int   `gorm:"not null"`
}

func (ConsultationSymptomRecord) TableName() string { return "consultation_symptoms" }

// GormModels lists the tables this package owns, in creation order.
func GormModels() []interface{} {
	return []interface{}{&ConsultationRecord{}, &ConsultationSymptomRecord{}}
}

type consultationRepoGorm struct{ gdb *gorm.DB }

func NewRepoGorm(gdb *gorm.DB) Repository {
	return &consultationRepoGorm{gdb: gdb}
}

func (r *consultationRepoGorm) conn(ctx context.Context) *gorm.DB {
	return gormdb.Pick(ctx, r.gdb)
}

// recordRow is a consultation joined with its (possibly deleted) disease.
type recordRow struct {
	ID                 int64
	UserLabel          string
	DiseaseID          *int64
	RuleCode           *string
	Confidence         float64
	SymptomCount       int
	CreatedAt          time.Time
	DiseaseRefID       *int64
	DiseaseCode        *string
	DiseaseName        *string
	DiseaseDescription *string
	DiseaseAction      *string
}

func (row recordRow) toRecord() *Record {
	rec := &Record{
		ID:           row.ID,
		UserLabel:    row.UserLabel,
		DiseaseID:    row.DiseaseID,
		RuleCode:     row.RuleCode,
		Confidence:   row.Confidence,
		SymptomCount: row.SymptomCount,
		CreatedAt:    row.CreatedAt,
	}
	if row.DiseaseRefID != nil {
		rec.Disease = &catalog.Disease{
			ID:          *row.DiseaseRefID,
			Code:        deref(row.DiseaseCode),
			Name:        deref(row.DiseaseName),
			Description: deref(row.DiseaseDescription),
			Action:      deref(row.DiseaseAction),
		}
	}
	return rec
}

func (r *consultationRepoGorm) records(ctx context.Context) *gorm.DB {
	return r.conn(ctx).Table("consultations AS c").
		Select(`c.id, c.user_label, c.disease_id, c.rule_code, c.confidence, c.symptom_count, c.created_at,
			d.id AS disease_ref_id, d.code AS disease_code, d.name AS disease_name,
			d.description AS disease_description, d.action AS disease_action`).
		Joins("LEFT JOIN diseases d ON d.id = c.disease_id")
}

func (r *consultationRepoGorm) Create(ctx context.Context, rec *Record) error {
	row := ConsultationRecord{
		UserLabel:    rec.UserLabel,
		DiseaseID:    rec.DiseaseID,
		RuleCode:     rec.RuleCode,
		Confidence:   rec.Confidence,
		SymptomCount: rec.SymptomCount,
	}
	if err := r.conn(ctx).Create(&row).Error; err != nil {
		return err
	}
	rec.ID = row.ID
	rec.CreatedAt = row.CreatedAt
	return nil
}

func (r *consultationRepoGorm) AddSymptom(ctx context.Context, consultationID, symptomID int64, position int) error {
	return r.conn(ctx).Create(&ConsultationSymptomRecord{
		ConsultationID: consultationID,
		SymptomID:      symptomID,
		Position:       position,
	}).Error
}

func (r *consultationRepoGorm) List(ctx context.Context, userLabel string, limit int) ([]*Record, error) {
	q := r.records(ctx)
	if userLabel != "" {
		q = q.Where("c.user_label = ?", userLabel)
	}
	var rows []recordRow
	if err := q.Order("c.created_at DESC").Order("c.id DESC").Limit(limit).Scan(&rows).Error; err != nil {
		return nil, err
	}
	items := make([]*Record, 0, len(rows))
	for _, row := range rows {
		items = append(items, row.toRecord())
	}
	return items, nil
}

func (r *consultationRepoGorm) Get(ctx context.Context, id int64) (*Record, error) {
	var rows []recordRow
	if err := r.records(ctx).Where("c.id = ?", id).Limit(1).Scan(&rows).Error; err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, ErrNotFound
	}
	return rows[0].toRecord(), nil
}

func (r *consultationRepoGorm) Symptoms(ctx context.Context, consultationID int64) ([]*catalog.Symptom, error) {
	var items []*catalog.Symptom
	err := r.conn(ctx).Table("consultation_symptoms AS cs").
		Select("s.id, s.code, s.name").
		Joins("JOIN symptoms s ON s.id = cs.symptom_id").
		Where("cs.consultation_id = ?", consultationID).
		Order("cs.position").
		Scan(&items).Error
	return items, err
}

func (r *consultationRepoGorm) Delete(ctx context.Context, id int64) (bool, error) {
	if err := r.conn(ctx).Where("consultation_id = ?", id).Delete(&ConsultationSymptomRecord{}).Error; err != nil {
		return false, err
	}
	res := r.conn(ctx).Delete(&ConsultationRecord{}, id)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *consultationRepoGorm) Stats(ctx context.Context, top int) (*Stats, error) {
	stats := &Stats{TopDiseases: []DiseaseCount{}, TopRules: []RuleCount{}}

	var agg struct {
		Total int
		Mean  *float64
	}
	err := r.conn(ctx).Model(&ConsultationRecord{}).
		Select("COUNT(*) AS total, AVG(confidence) AS mean").
		Scan(&agg).Error
	if err != nil {
		return nil, err
	}
	stats.Total = agg.Total
	if agg.Mean != nil {
		stats.MeanConfidence = round2(*agg.Mean)
	}

	err = r.conn(ctx).Table("consultations AS c").
		Select("d.name AS disease_name, COUNT(*) AS count").
		Joins("JOIN diseases d ON d.id = c.disease_id").
		Group("d.id, d.name").
		Order("count DESC, d.name").
		Limit(top).
		Scan(&stats.TopDiseases).Error
	if err != nil {
		return nil, err
	}

	err = r.conn(ctx).Model(&ConsultationRecord{}).
		Select("rule_code, COUNT(*) AS count").
		Where("rule_code IS NOT NULL AND rule_code <> ''").
		Group("rule_code").
		Order("count DESC, rule_code").
		Limit(top).
		Scan(&stats.TopRules).Error
	if err != nil {
		return nil, err
	}
	return stats, nil
}
