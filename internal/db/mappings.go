package db

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/yourorg/calibr8/internal/models"
)

// MappingRow is a mapping joined with its target's display name.
type MappingRow struct {
	MappingID     int64  `json:"mapping_id"`
	ContextTagID  int64  `json:"context_tag_id"`
	VariableID    int64  `json:"variable_id"`
	VariableName  string `json:"variable_name,omitempty"`
	SubgroupTagID int64  `json:"subgroup_tag_id"`
	MappedTagName string `json:"mapped_tag_name"`
}

type MappingRepository interface {
	// ListByContext returns every mapping owned by the context tag, including
	// rows whose variable no longer belongs to the tag's current formula.
	ListByContext(ctx context.Context, contextTagID int64) ([]MappingRow, error)
	// Upsert creates the mapping for (contextTagID, variableID), replacing the
	// target of an existing one.
	Upsert(ctx context.Context, contextTagID, variableID, targetTagID int64) (MappingRow, error)
	Delete(ctx context.Context, mappingID int64) error
}

func NewMappingRepo(db *gorm.DB) MappingRepository { return &mappingRepo{db: db} }

type mappingRepo struct{ db *gorm.DB }

func (r *mappingRepo) query(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).
		Table("variable_mappings AS vm").
		Select(`vm.mapping_id, vm.context_tag_id, vm.variable_id, COALESCE(fv.variable_name, '') AS variable_name,
			vm.subgroup_tag_id, COALESCE(st.subgroup_tag_name, '') AS mapped_tag_name`).
		Joins("LEFT JOIN subgroup_tag AS st ON st.subgroup_tag_id = vm.subgroup_tag_id").
		Joins("LEFT JOIN formula_variables AS fv ON fv.variable_id = vm.variable_id")
}

func (r *mappingRepo) ListByContext(ctx context.Context, contextTagID int64) ([]MappingRow, error) {
	if err := exists(ctx, r.db, &models.SubgroupTag{}, "subgroup_tag_id = ?", contextTagID, "subgroup tag"); err != nil {
		return nil, err
	}
	var out []MappingRow
	err := r.query(ctx).Where("vm.context_tag_id = ?", contextTagID).Order("vm.variable_id asc").Scan(&out).Error
	return out, err
}

func (r *mappingRepo) Upsert(ctx context.Context, contextTagID, variableID, targetTagID int64) (MappingRow, error) {
	var owner models.SubgroupTag
	if err := r.db.WithContext(ctx).First(&owner, "subgroup_tag_id = ?", contextTagID).Error; err != nil {
		return MappingRow{}, mapGormErr(err, "context subgroup tag")
	}
	if owner.FormulaID == nil {
		return MappingRow{}, invalid("subgroup tag %d has no formula", contextTagID)
	}
	var v models.FormulaVariable
	if err := r.db.WithContext(ctx).First(&v, "variable_id = ?", variableID).Error; err != nil {
		return MappingRow{}, mapGormErr(err, "variable")
	}
	if v.FormulaID != *owner.FormulaID {
		return MappingRow{}, invalid("variable %d does not belong to formula %d", variableID, *owner.FormulaID)
	}
	if err := exists(ctx, r.db, &models.SubgroupTag{}, "subgroup_tag_id = ?", targetTagID, "target subgroup tag"); err != nil {
		return MappingRow{}, err
	}

	m := models.VariableMapping{ContextTagID: contextTagID, VariableID: variableID, SubgroupTagID: targetTagID}
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "context_tag_id"}, {Name: "variable_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"subgroup_tag_id", "updated_at"}),
	}).Create(&m).Error
	if err != nil {
		return MappingRow{}, mapGormErr(err, "mapping")
	}

	var row MappingRow
	err = r.query(ctx).
		Where("vm.context_tag_id = ? AND vm.variable_id = ?", contextTagID, variableID).
		Take(&row).Error
	return row, mapGormErr(err, "mapping")
}

func (r *mappingRepo) Delete(ctx context.Context, mappingID int64) error {
	res := r.db.WithContext(ctx).Where("mapping_id = ?", mappingID).Delete(&models.VariableMapping{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return notFound("mapping")
	}
	return nil
}
