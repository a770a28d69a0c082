package catalog

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/gastrodx/gastrodx/internal/platform/gormdb"
)

// SymptomRecord is the gorm row for symptoms.
type SymptomRecord struct {
	ID        int64     `gorm:"primaryKey;autoIncrement"`
	Code      string    `gorm:"size:16;not null;uniqueIndex"`
	Name      string    `gorm:"size:255;not null"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
}

func (SymptomRecord) TableName() string { return "symptoms" }

// DiseaseRecord is the gorm row for diseases.
type DiseaseRecord struct {
	ID          int64     `gorm:"primaryKey;autoIncrement"`
	Code        string    `gorm:"size:16;not null;uniqueIndex"`
	Name        string    `gorm:"size:255;not null"`
	Description string    `gorm:"type:text"`
	Action      string    `gorm:"type:text"`
	CreatedAt   time.Time `gorm:"autoCreateTime"`
}

func (DiseaseRecord) TableName() string { return "diseases" }

// GormModels lists the tables this package owns, in creation order.
func GormModels() []interface{} {
	return []interface{}{&SymptomRecord{}, &DiseaseRecord{}}
}

type catalogRepoGorm struct{ gdb *gorm.DB }

func NewRepoGorm(gdb *gorm.DB) Repository {
	return &catalogRepoGorm{gdb: gdb}
}

func (r *catalogRepoGorm) conn(ctx context.Context) *gorm.DB {
	return gormdb.Pick(ctx, r.gdb)
}

func (rec SymptomRecord) toSymptom() *Symptom {
	return &Symptom{ID: rec.ID, Code: rec.Code, Name: rec.Name}
}

func (rec DiseaseRecord) toDisease() *Disease {
	return &Disease{ID: rec.ID, Code: rec.Code, Name: rec.Name, Description: rec.Description, Action: rec.Action}
}

func notFound(err error) error {
	if gormdb.IsNotFound(err) {
		return ErrNotFound
	}
	return err
}

func (r *catalogRepoGorm) CreateSymptom(ctx context.Context, s *Symptom) error {
	rec := SymptomRecord{Code: s.Code, Name: s.Name}
	if err := r.conn(ctx).Create(&rec).Error; err != nil {
		if gormdb.IsDuplicate(err) {
			return fmt.Errorf("%w: %s", ErrDuplicateCode, s.Code)
		}
		return err
	}
	s.ID = rec.ID
	return nil
}

func (r *catalogRepoGorm) CreateDisease(ctx context.Context, d *Disease) error {
	rec := DiseaseRecord{Code: d.Code, Name: d.Name, Description: d.Description, Action: d.Action}
	if err := r.conn(ctx).Create(&rec).Error; err != nil {
		if gormdb.IsDuplicate(err) {
			return fmt.Errorf("%w: %s", ErrDuplicateCode, d.Code)
		}
		return err
	}
	d.ID = rec.ID
	return nil
}

func (r *catalogRepoGorm) ListSymptoms(ctx context.Context) ([]*Symptom, error) {
	var recs []SymptomRecord
	if err := r.conn(ctx).Order("code").Find(&recs).Error; err != nil {
		return nil, err
	}
	items := make([]*Symptom, 0, len(recs))
	for _, rec := range recs {
		items = append(items, rec.toSymptom())
	}
	return items, nil
}

func (r *catalogRepoGorm) ListDiseases(ctx context.Context) ([]*Disease, error) {
	var recs []DiseaseRecord
	if err := r.conn(ctx).Order("code").Find(&recs).Error; err != nil {
		return nil, err
	}
	items := make([]*Disease, 0, len(recs))
	for _, rec := range recs {
		items = append(items, rec.toDisease())
	}
	return items, nil
}

func (r *catalogRepoGorm) GetSymptom(ctx context.Context, id int64) (*Symptom, error) {
	var rec SymptomRecord
	if err := r.conn(ctx).First(&rec, id).Error; err != nil {
		return nil, notFound(err)
	}
	return rec.toSymptom(), nil
}

func (r *catalogRepoGorm) GetSymptomByCode(ctx context.Context, code string) (*Symptom, error) {
	var rec SymptomRecord
	if err := r.conn(ctx).Where("code = ?", normalizeCode(code)).First(&rec).Error; err != nil {
		return nil, notFound(err)
	}
	return rec.toSymptom(), nil
}

func (r *catalogRepoGorm) GetDisease(ctx context.Context, id int64) (*Disease, error) {
	var rec DiseaseRecord
	if err := r.conn(ctx).First(&rec, id).Error; err != nil {
		return nil, notFound(err)
	}
	return rec.toDisease(), nil
}

func (r *catalogRepoGorm) GetDiseaseByCode(ctx context.Context, code string) (*Disease, error) {
	var rec DiseaseRecord
	if err := r.conn(ctx).Where("code = ?", normalizeCode(code)).First(&rec).Error; err != nil {
		return nil, notFound(err)
	}
	return rec.toDisease(), nil
}

func (r *catalogRepoGorm) SymptomsByIDs(ctx context.Context, ids []int64) ([]*Symptom, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var recs []SymptomRecord
	if err := r.conn(ctx).Where("id IN ?", ids).Find(&recs).Error; err != nil {
		return nil, err
	}
	items := make([]*Symptom, 0, len(recs))
	for _, rec := range recs {
		items = append(items, rec.toSymptom())
	}
	return OrderByIDs(items, ids), nil
}
