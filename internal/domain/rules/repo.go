package rules

import "context"

// Repository stores rule headers and their symptom links. Get* return ErrNotFound
// when nothing matches; Create returns ErrDuplicateCode on a code clash.
type Repository interface {
	Create(ctx context.Context, r *Rule) error
	AddSymptom(ctx context.Context, ruleID, symptomID int64) (int64, error)
	CodeExists(ctx context.Context, code string) (bool, error)
	GetByID(ctx context.Context, id int64) (*Rule, error)
	GetByCode(ctx context.Context, code string) (*Rule, error)
	List(ctx context.Context) ([]*Rule, error)
	Codes(ctx context.Context) ([]string, error)
	SymptomIDs(ctx context.Context, ruleID int64) ([]int64, error)
	Links(ctx context.Context, ruleID int64) ([]RuleSymptom, error)
	CountLinks(ctx context.Context, ruleID int64) (int, error)
	// Delete removes the links and then the header; false when id is unknown.
	Delete(ctx context.Context, id int64) (bool, error)
	// DeleteLink removes one link and reports the rule it belonged to.
	DeleteLink(ctx context.Context, linkID int64) (ruleID int64, ok bool, err error)
}
