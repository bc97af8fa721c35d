package registry

import (
	"context"

	"github.com/yourorg/calibr8/internal/catalogclient"
	"github.com/yourorg/calibr8/internal/formula"
)

// TagBackend is the part of the catalog client used for subgroup tags.
type TagBackend interface {
	ListSubgroupTags(ctx context.Context, subgroupID int64) ([]catalogclient.SubgroupTag, error)
	SetFormula(ctx context.Context, subgroupTagID int64, formulaID *int64) (catalogclient.SubgroupTag, error)
	TagFormula(ctx context.Context, subgroupTagID int64) (formula.Formula, error)
}

type SubgroupTags struct {
	backend TagBackend
}

func NewSubgroupTags(backend TagBackend) *SubgroupTags {
	return &SubgroupTags{backend: backend}
}

func (r *SubgroupTags) List(ctx context.Context, subgroupID int64) Result[[]catalogclient.SubgroupTag] {
	if subgroupID <= 0 {
		return precondition[[]catalogclient.SubgroupTag]("No subgroup selected")
	}
	tags, err := r.backend.ListSubgroupTags(ctx, subgroupID)
	if err != nil {
		return fromError[[]catalogclient.SubgroupTag](err)
	}
	return OK(tags)
}

// AssignFormula sets the tag's formula; a nil formulaID clears it.
func (r *SubgroupTags) AssignFormula(ctx context.Context, subgroupTagID int64, formulaID *int64) Result[catalogclient.SubgroupTag] {
	if subgroupTagID <= 0 {
		return precondition[catalogclient.SubgroupTag]("No subgroup tag selected")
	}
	st, err := r.backend.SetFormula(ctx, subgroupTagID, formulaID)
	if err != nil {
		return fromError[catalogclient.SubgroupTag](err)
	}
	return OK(st)
}

// Formula returns the tag's formula, or nil when none is assigned or the
// assigned formula no longer exists.
func (r *SubgroupTags) Formula(ctx context.Context, subgroupTagID int64) Result[*formula.Formula] {
	if subgroupTagID <= 0 {
		return precondition[*formula.Formula]("No subgroup tag selected")
	}
	f, err := r.backend.TagFormula(ctx, subgroupTagID)
	if catalogclient.IsNotFound(err) {
		return OK[*formula.Formula](nil)
	}
	if err != nil {
		return fromError[*formula.Formula](err)
	}
	return OK(&f)
}
