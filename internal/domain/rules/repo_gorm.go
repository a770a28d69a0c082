package rules

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/gastrodx/gastrodx/internal/platform/gormdb"
)

// RuleRecord is the gorm row for rules.
type RuleRecord struct {
	ID        int64     `gorm:"primaryKey;autoIncrement"`
	Code      string    `gorm:"size:16;not null;uniqueIndex"`
	Name      string    `gorm:"size:255;not null"`
	Citation  *string   `gorm:"type:text"`
	DiseaseID int64     `gorm:"not null;index"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
}

func (RuleRecord) TableName() string { return "rules" }

// RuleSymptomRecord is the gorm row for rule_symptoms.
type RuleSymptomRecord struct {
	ID        int64 `gorm:"primaryKey;autoIncrement"`
	RuleID    int64 `gorm:"not null;uniqueIndex:idx_rule_symptom"`
	SymptomID int64 `gorm:"not null;uniqueIndex:idx_rule_symptom"`
}

func (RuleSymptomRecord) TableName() string { return "rule_symptoms" }

// GormModels lists the tables this package owns, in creation order.
func GormModels() []interface{} {
	return []interface{}{&RuleRecord{}, &RuleSymptomRecord{}}
}

type ruleRepoGorm struct{ gdb *gorm.DB }

func NewRepoGorm(gdb *gorm.DB) Repository {
	return &ruleRepoGorm{gdb: gdb}
}

func (r *ruleRepoGorm) conn(ctx context.Context) *gorm.DB {
	return gormdb.Pick(ctx, r.gdb)
}

func (rec RuleRecord) toRule() *Rule {
	return &Rule{
		ID:        rec.ID,
		Code:      rec.Code,
		Name:      rec.Name,
		Citation:  rec.Citation,
		DiseaseID: rec.DiseaseID,
		CreatedAt: rec.CreatedAt,
	}
}

func (r *ruleRepoGorm) Create(ctx context.Context, rule *Rule) error {
	rec := RuleRecord{Code: rule.Code, Name: rule.Name, Citation: rule.Citation, DiseaseID: rule.DiseaseID}
	if err := r.conn(ctx).Create(&rec).Error; err != nil {
		if gormdb.IsDuplicate(err) {
			return fmt.Errorf("%w: %s", ErrDuplicateCode, rule.Code)
		}
		return err
	}
	rule.ID = rec.ID
	rule.CreatedAt = rec.CreatedAt
	return nil
}

func (r *ruleRepoGorm) AddSymptom(ctx context.Context, ruleID, symptomID int64) (int64, error) {
	rec := RuleSymptomRecord{RuleID: ruleID, SymptomID: symptomID}
	if err := r.conn(ctx).Create(&rec).Error; err != nil {
		return 0, err
	}
	return rec.ID, nil
}

func (r *ruleRepoGorm) CodeExists(ctx context.Context, code string) (bool, error) {
	var n int64
	err := r.conn(ctx).Model(&RuleRecord{}).Where("code = ?", NormalizeCode(code)).Count(&n).Error
	return n > 0, err
}

func (r *ruleRepoGorm) GetByID(ctx context.Context, id int64) (*Rule, error) {
	var rec RuleRecord
	if err := r.conn(ctx).First(&rec, id).Error; err != nil {
		if gormdb.IsNotFound(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return r.withSymptoms(ctx, rec.toRule())
}

func (r *ruleRepoGorm) GetByCode(ctx context.Context, code string) (*Rule, error) {
	var rec RuleRecord
	if err := r.conn(ctx).Where("code = ?", NormalizeCode(code)).First(&rec).Error; err != nil {
		if gormdb.IsNotFound(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return r.withSymptoms(ctx, rec.toRule())
}

func (r *ruleRepoGorm) withSymptoms(ctx context.Context, rule *Rule) (*Rule, error) {
	ids, err := r.SymptomIDs(ctx, rule.ID)
	if err != nil {
		return nil, err
	}
	rule.SymptomIDs = ids
	return rule, nil
}

func (r *ruleRepoGorm) List(ctx context.Context) ([]*Rule, error) {
	var recs []RuleRecord
	if err := r.conn(ctx).Order("id").Find(&recs).Error; err != nil {
		return nil, err
	}
	items := make([]*Rule, 0, len(recs))
	for _, rec := range recs {
		items = append(items, rec.toRule())
	}
	return items, nil
}

func (r *ruleRepoGorm) Codes(ctx context.Context) ([]string, error) {
	var codes []string
	err := r.conn(ctx).Model(&RuleRecord{}).Pluck("code", &codes).Error
	return codes, err
}

func (r *ruleRepoGorm) SymptomIDs(ctx context.Context, ruleID int64) ([]int64, error) {
	var ids []int64
	err := r.conn(ctx).Model(&RuleSymptomRecord{}).
		Where("rule_id = ?", ruleID).
		Order("id").
		Pluck("symptom_id", &ids).Error
	return ids, err
}

func (r *ruleRepoGorm) Links(ctx context.Context, ruleID int64) ([]RuleSymptom, error) {
	var links []RuleSymptom
	err := r.conn(ctx).Table("rule_symptoms AS rs").
		Select("rs.id AS link_id, s.id AS symptom_id, s.code AS code, s.name AS name").
		Joins("JOIN symptoms s ON s.id = rs.symptom_id").
		Where("rs.rule_id = ?", ruleID).
		Order("s.code").
		Scan(&links).Error
	return links, err
}

func (r *ruleRepoGorm) CountLinks(ctx context.Context, ruleID int64) (int, error) {
	var n int64
	err := r.conn(ctx).Model(&RuleSymptomRecord{}).Where("rule_id = ?", ruleID).Count(&n).Error
	return int(n), err
}

func (r *ruleRepoGorm) Delete(ctx context.Context, id int64) (bool, error) {
	if err := r.conn(ctx).Where("rule_id = ?", id).Delete(&RuleSymptomRecord{}).Error; err != nil {
		return false, err
	}
	res := r.conn(ctx).Delete(&RuleRecord{}, id)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *ruleRepoGorm) DeleteLink(ctx context.Context, linkID int64) (int64, bool, error) {
	var rec RuleSymptomRecord
	if err := r.conn(ctx).First(&rec, linkID).Error; err != nil {
		if gormdb.IsNotFound(err) {
			return 0, false, nil
		}
		return 0, false, err
	}
	res := r.conn(ctx).Delete(&RuleSymptomRecord{}, linkID)
	if res.Error != nil {
		return 0, false, res.Error
	}
	return rec.RuleID, res.RowsAffected > 0, nil
}
