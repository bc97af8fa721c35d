package registry

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/yourorg/calibr8/internal/catalogclient"
	"github.com/yourorg/calibr8/internal/formula"
)

// FormulaBackend is the part of the catalog client the formula registry uses.
type FormulaBackend interface {
	CreateFormula(ctx context.Context, f formula.Formula) (formula.Formula, error)
	UpdateFormula(ctx context.Context, id int64, f formula.Formula) (formula.Formula, error)
	DeleteFormula(ctx context.Context, id int64) error
	GetFormula(ctx context.Context, id int64) (formula.Formula, error)
	ListFormulas(ctx context.Context) ([]formula.Formula, error)
	FormulaVariables(ctx context.Context, id int64) ([]formula.Variable, error)
	Evaluate(ctx context.Context, id int64, params map[string]any) (catalogclient.Evaluation, error)
}

type Formulas struct {
	backend FormulaBackend
	log     *zap.Logger
}

func NewFormulas(backend FormulaBackend, log *zap.Logger) *Formulas {
	if log == nil {
		log = zap.NewNop()
	}
	return &Formulas{backend: backend, log: log}
}

// Create derives the variable list from expression and sends it with the
// formula.
func (r *Formulas) Create(ctx context.Context, name, expression, desc string) Result[formula.Formula] {
	f, err := formula.New(name, expression, desc)
	if err != nil {
		return precondition[formula.Formula](formulaMessage(err))
	}
	saved, err := r.backend.CreateFormula(ctx, f)
	if err != nil {
		r.log.Debug("create formula failed", zap.String("name", f.Name), zap.Error(err))
		return fromError[formula.Formula](err)
	}
	return OK(saved)
}

// Update replaces the formula. Mappings bound to its previous variables are
// left as they are.
func (r *Formulas) Update(ctx context.Context, id int64, name, expression, desc string) Result[formula.Formula] {
	if id <= 0 {
		return precondition[formula.Formula]("no formula selected")
	}
	f, err := formula.New(name, expression, desc)
	if err != nil {
		return precondition[formula.Formula](formulaMessage(err))
	}
	f.ID = &id
	saved, err := r.backend.UpdateFormula(ctx, id, f)
	if err != nil {
		return fromError[formula.Formula](err)
	}
	return OK(saved)
}

// Delete removes the formula. Subgroup tags pointing at it are not cleared.
func (r *Formulas) Delete(ctx context.Context, id int64) Result[Empty] {
	if id <= 0 {
		return precondition[Empty]("no formula selected")
	}
	if err := r.backend.DeleteFormula(ctx, id); err != nil {
		return fromError[Empty](err)
	}
	return OK(Empty{})
}

func (r *Formulas) Get(ctx context.Context, id int64) Result[formula.Formula] {
	f, err := r.backend.GetFormula(ctx, id)
	if err != nil {
		return fromError[formula.Formula](err)
	}
	return OK(f)
}

func (r *Formulas) List(ctx context.Context) Result[[]formula.Formula] {
	list, err := r.backend.ListFormulas(ctx)
	if err != nil {
		return fromError[[]formula.Formula](err)
	}
	return OK(list)
}

func (r *Formulas) Variables(ctx context.Context, id int64) Result[[]formula.Variable] {
	vars, err := r.backend.FormulaVariables(ctx, id)
	if err != nil {
		return fromError[[]formula.Variable](err)
	}
	return OK(vars)
}

// Evaluate computes the formula with params. An evaluation the backend
// rejects, such as missing parameters, fails with KindEvaluation and still
// carries the backend's answer in Data.
func (r *Formulas) Evaluate(ctx context.Context, id int64, params map[string]any) Result[catalogclient.Evaluation] {
	if id <= 0 {
		return precondition[catalogclient.Evaluation]("no formula selected")
	}
	ev, err := r.backend.Evaluate(ctx, id, params)
	if err != nil {
		return fromError[catalogclient.Evaluation](err)
	}
	if !ev.OK() {
		res := Fail[catalogclient.Evaluation](KindEvaluation, ev.Error)
		res.Data = ev
		return res
	}
	return OK(ev)
}

func formulaMessage(err error) string {
	switch {
	case errors.Is(err, formula.ErrEmptyName):
		return "Formula name is required"
	case errors.Is(err, formula.ErrEmptyExpression):
		return "Formula expression is required"
	}
	return err.Error()
}
