package db

import (
	"context"
	"strings"

	"gorm.io/gorm"

	"github.com/yourorg/calibr8/internal/models"
)

// NewSubgroupTag describes a tag to attach. Exactly one of SubgroupID and
// ParentSubgroupTagID is set; children carry no subgroup of their own.
type NewSubgroupTag struct {
	TagID               int64
	SubgroupID          *int64
	ParentSubgroupTagID *int64
	Name                string
	FormulaID           *int64
}

type SubgroupTagRepository interface {
	Add(ctx context.Context, in NewSubgroupTag) (models.SubgroupTag, error)
	Get(ctx context.Context, id int64) (models.SubgroupTag, error)
	// ListBySubgroup returns the root tags of a subgroup.
	ListBySubgroup(ctx context.Context, subgroupID int64) ([]models.SubgroupTag, error)
	Children(ctx context.Context, parentID int64) ([]models.SubgroupTag, error)
	// SetFormula assigns (or with nil, clears) the formula of a subgroup tag.
	SetFormula(ctx context.Context, id int64, formulaID *int64) (models.SubgroupTag, error)
	// Delete removes the tag, its children and every mapping it owns or targets.
	Delete(ctx context.Context, id int64) error
}

func NewSubgroupTagRepo(db *gorm.DB) SubgroupTagRepository { return &subgroupTagRepo{db: db} }

type subgroupTagRepo struct{ db *gorm.DB }

func (r *subgroupTagRepo) Add(ctx context.Context, in NewSubgroupTag) (models.SubgroupTag, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return models.SubgroupTag{}, invalid("subgroup_tag_name is required")
	}
	if err := exists(ctx, r.db, &models.Tag{}, "tag_id = ?", in.TagID, "tag"); err != nil {
		return models.SubgroupTag{}, err
	}
	row := models.SubgroupTag{TagID: in.TagID, SubgroupTagName: name, FormulaID: in.FormulaID}
	switch {
	case in.ParentSubgroupTagID != nil:
		if err := exists(ctx, r.db, &models.SubgroupTag{}, "subgroup_tag_id = ?", *in.ParentSubgroupTagID, "parent subgroup tag"); err != nil {
			return models.SubgroupTag{}, err
		}
		row.ParentSubgroupTagID = in.ParentSubgroupTagID
	case in.SubgroupID != nil:
		if err := exists(ctx, r.db, &models.Subgroup{}, "subgroup_id = ?", *in.SubgroupID, "subgroup"); err != nil {
			return models.SubgroupTag{}, err
		}
		row.SubgroupID = in.SubgroupID
	default:
		return models.SubgroupTag{}, invalid("subgroup_id or parent_subgroup_tag_id is required")
	}
	if in.FormulaID != nil {
		if err := exists(ctx, r.db, &models.Formula{}, "formula_id = ?", *in.FormulaID, "formula"); err != nil {
			return models.SubgroupTag{}, err
		}
	}
	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		return models.SubgroupTag{}, mapGormErr(err, "subgroup tag")
	}
	return row, nil
}

func (r *subgroupTagRepo) Get(ctx context.Context, id int64) (models.SubgroupTag, error) {
	var st models.SubgroupTag
	err := r.db.WithContext(ctx).First(&st, "subgroup_tag_id = ?", id).Error
	return st, mapGormErr(err, "subgroup tag")
}

func (r *subgroupTagRepo) ListBySubgroup(ctx context.Context, subgroupID int64) ([]models.SubgroupTag, error) {
	if err := exists(ctx, r.db, &models.Subgroup{}, "subgroup_id = ?", subgroupID, "subgroup"); err != nil {
		return nil, err
	}
	var out []models.SubgroupTag
	err := r.db.WithContext(ctx).
		Where("subgroup_id = ? AND parent_subgroup_tag_id IS NULL", subgroupID).
		Order("subgroup_tag_id asc").
		Find(&out).Error
	return out, err
}

func (r *subgroupTagRepo) Children(ctx context.Context, parentID int64) ([]models.SubgroupTag, error) {
	if err := exists(ctx, r.db, &models.SubgroupTag{}, "subgroup_tag_id = ?", parentID, "subgroup tag"); err != nil {
		return nil, err
	}
	var out []models.SubgroupTag
	err := r.db.WithContext(ctx).
		Where("parent_subgroup_tag_id = ?", parentID).
		Order("subgroup_tag_id asc").
		Find(&out).Error
	return out, err
}

func (r *subgroupTagRepo) SetFormula(ctx context.Context, id int64, formulaID *int64) (models.SubgroupTag, error) {
	st, err := r.Get(ctx, id)
	if err != nil {
		return models.SubgroupTag{}, err
	}
	if formulaID != nil {
		if err := exists(ctx, r.db, &models.Formula{}, "formula_id = ?", *formulaID, "formula"); err != nil {
			return models.SubgroupTag{}, err
		}
	}
	if err := r.db.WithContext(ctx).Model(&st).Update("formula_id", formulaID).Error; err != nil {
		return models.SubgroupTag{}, mapGormErr(err, "subgroup tag")
	}
	st.FormulaID = formulaID
	return st, nil
}

func (r *subgroupTagRepo) Delete(ctx context.Context, id int64) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		ids, err := subtree(tx, id)
		if err != nil {
			return err
		}
		if err := tx.Where("context_tag_id IN ? OR subgroup_tag_id IN ?", ids, ids).
			Delete(&models.VariableMapping{}).Error; err != nil {
			return err
		}
		return tx.Where("subgroup_tag_id IN ?", ids).Delete(&models.SubgroupTag{}).Error
	})
}

// subtree collects id and all of its descendants, breadth first.
func subtree(tx *gorm.DB, id int64) ([]int64, error) {
	var st models.SubgroupTag
	if err := tx.First(&st, "subgroup_tag_id = ?", id).Error; err != nil {
		return nil, mapGormErr(err, "subgroup tag")
	}
	ids := []int64{id}
	frontier := []int64{id}
	for len(frontier) > 0 {
		var next []int64
		if err := tx.Model(&models.SubgroupTag{}).
			Where("parent_subgroup_tag_id IN ?", frontier).
			Pluck("subgroup_tag_id", &next).Error; err != nil {
			return nil, err
		}
		ids = append(ids, next...)
		frontier = next
	}
	return ids, nil
}
