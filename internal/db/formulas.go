package db

import (
	"context"
	"strings"

	"gorm.io/gorm"

	"github.com/yourorg/calibr8/internal/formula"
	"github.com/yourorg/calibr8/internal/models"
)

// FormulaRepository stores formulas together with their variable sets.
// NumParameters always equals the number of stored variables.
type FormulaRepository interface {
	Create(ctx context.Context, f formula.Formula) (models.Formula, error)
	// Update replaces name, description, expression and the whole variable
	// set. Replaced variables get fresh IDs, so existing mappings against the
	// old IDs no longer match any variable.
	Update(ctx context.Context, id int64, f formula.Formula) (models.Formula, error)
	// Delete removes the formula and its variables. Mappings and subgroup tag
	// assignments that reference it are left untouched.
	Delete(ctx context.Context, id int64) error
	Get(ctx context.Context, id int64) (models.Formula, error)
	List(ctx context.Context) ([]models.Formula, error)
	Variables(ctx context.Context, id int64) ([]models.FormulaVariable, error)
}

func NewFormulaRepo(db *gorm.DB) FormulaRepository { return &formulaRepo{db: db} }

type formulaRepo struct{ db *gorm.DB }

func orderVariables(tx *gorm.DB) *gorm.DB { return tx.Order("variable_id asc") }

func (r *formulaRepo) Create(ctx context.Context, f formula.Formula) (models.Formula, error) {
	if err := checkFormula(f); err != nil {
		return models.Formula{}, err
	}
	row := models.Formula{
		FormulaName:       strings.TrimSpace(f.Name),
		FormulaDesc:       f.Description,
		FormulaExpression: f.Expression,
	}
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		row.Variables = variableRows(f)
		row.NumParameters = len(row.Variables)
		return tx.Create(&row).Error
	})
	if err != nil {
		return models.Formula{}, mapGormErr(err, "formula")
	}
	return r.Get(ctx, row.FormulaID)
}

func (r *formulaRepo) Update(ctx context.Context, id int64, f formula.Formula) (models.Formula, error) {
	if err := checkFormula(f); err != nil {
		return models.Formula{}, err
	}
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var cur models.Formula
		if err := tx.First(&cur, "formula_id = ?", id).Error; err != nil {
			return mapGormErr(err, "formula")
		}
		vars := variableRows(f)
		cur.FormulaName = strings.TrimSpace(f.Name)
		cur.FormulaDesc = f.Description
		cur.FormulaExpression = f.Expression
		cur.NumParameters = len(vars)
		if err := tx.Omit("Variables").Save(&cur).Error; err != nil {
			return err
		}
		if err := tx.Where("formula_id = ?", id).Delete(&models.FormulaVariable{}).Error; err != nil {
			return err
		}
		for i := range vars {
			vars[i].FormulaID = id
		}
		if len(vars) == 0 {
			return nil
		}
		return tx.Create(&vars).Error
	})
	if err != nil {
		return models.Formula{}, mapGormErr(err, "formula")
	}
	return r.Get(ctx, id)
}

func (r *formulaRepo) Delete(ctx context.Context, id int64) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("formula_id = ?", id).Delete(&models.Formula{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return notFound("formula")
		}
		return tx.Where("formula_id = ?", id).Delete(&models.FormulaVariable{}).Error
	})
}

func (r *formulaRepo) Get(ctx context.Context, id int64) (models.Formula, error) {
	var f models.Formula
	err := r.db.WithContext(ctx).Preload("Variables", orderVariables).First(&f, "formula_id = ?", id).Error
	return f, mapGormErr(err, "formula")
}

func (r *formulaRepo) List(ctx context.Context) ([]models.Formula, error) {
	var out []models.Formula
	err := r.db.WithContext(ctx).Preload("Variables", orderVariables).Order("formula_id asc").Find(&out).Error
	return out, err
}

func (r *formulaRepo) Variables(ctx context.Context, id int64) ([]models.FormulaVariable, error) {
	if err := exists(ctx, r.db, &models.Formula{}, "formula_id = ?", id, "formula"); err != nil {
		return nil, err
	}
	var out []models.FormulaVariable
	err := orderVariables(r.db.WithContext(ctx).Where("formula_id = ?", id)).Find(&out).Error
	return out, err
}

// checkFormula validates the request. A client that sends no variables gets
// them extracted from the expression; explicit variables must match it.
func checkFormula(f formula.Formula) error {
	if strings.TrimSpace(f.Name) == "" {
		return invalid("formula_name is required")
	}
	if strings.TrimSpace(f.Expression) == "" {
		return invalid("formula_expression is required")
	}
	if len(f.Variables) == 0 {
		return nil
	}
	want := formula.ExtractVariables(f.Expression)
	if len(want) != len(f.Variables) {
		return invalid("variables do not match expression: expected %d, got %d", len(want), len(f.Variables))
	}
	for i, v := range f.Variables {
		if v.Name != want[i] {
			return invalid("variables do not match expression: %q at position %d, expected %q", v.Name, i, want[i])
		}
	}
	return nil
}

func variableRows(f formula.Formula) []models.FormulaVariable {
	names := formula.ExtractVariables(f.Expression)
	out := make([]models.FormulaVariable, 0, len(names))
	for _, n := range names {
		out = append(out, models.FormulaVariable{VariableName: n})
	}
	return out
}
