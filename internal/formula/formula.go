package formula

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrEmptyName indicates a formula without a display name.
	ErrEmptyName = errors.New("formula name is required")
	// ErrEmptyExpression indicates a formula without an expression.
	ErrEmptyExpression = errors.New("formula expression is required")
	// ErrInconsistent indicates the stored variable set no longer matches the expression.
	ErrInconsistent = errors.New("formula variables do not match expression")
)

// Formula is a named arithmetic expression with $name placeholders.
type Formula struct {
	ID            *int64     `json:"formula_id,omitempty"`
	Name          string     `json:"formula_name"`
	Description   string     `json:"formula_desc,omitempty"`
	Expression    string     `json:"formula_expression"`
	NumParameters int        `json:"num_parameters"`
	Variables     []Variable `json:"variables,omitempty"`
}

// Variable is one placeholder declared by a formula.
type Variable struct {
	ID   *int64 `json:"variable_id,omitempty"`
	Name string `json:"variable_name"`
}

// New builds an unsaved formula and derives its variable set from expression.
func New(name, expression, description string) (Formula, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Formula{}, ErrEmptyName
	}
	if strings.TrimSpace(expression) == "" {
		return Formula{}, ErrEmptyExpression
	}
	names := ExtractVariables(expression)
	vars := make([]Variable, 0, len(names))
	for _, n := range names {
		vars = append(vars, Variable{Name: n})
	}
	return Formula{
		Name:          name,
		Description:   strings.TrimSpace(description),
		Expression:    expression,
		NumParameters: len(vars),
		Variables:     vars,
	}, nil
}

// Validate checks that the variable set and parameter count agree with the expression.
func (f Formula) Validate() error {
	if strings.TrimSpace(f.Name) == "" {
		return ErrEmptyName
	}
	if strings.TrimSpace(f.Expression) == "" {
		return ErrEmptyExpression
	}
	want := ExtractVariables(f.Expression)
	if f.NumParameters != len(want) {
		return fmt.Errorf("%w: num_parameters=%d, expression declares %d", ErrInconsistent, f.NumParameters, len(want))
	}
	if len(f.Variables) != len(want) {
		return fmt.Errorf("%w: %d variables stored, expression declares %d", ErrInconsistent, len(f.Variables), len(want))
	}
	declared := make(map[string]struct{}, len(want))
	for _, n := range want {
		declared[n] = struct{}{}
	}
	for _, v := range f.Variables {
		if _, ok := declared[v.Name]; !ok {
			return fmt.Errorf("%w: unknown variable %q", ErrInconsistent, v.Name)
		}
		delete(declared, v.Name)
	}
	return nil
}

// Persisted reports whether the backend has assigned an id.
func (f Formula) Persisted() bool { return f.ID != nil }

// VariableNames returns the names of the formula's variables in stored order.
func (f Formula) VariableNames() []string {
	out := make([]string, 0, len(f.Variables))
	for _, v := range f.Variables {
		out = append(out, v.Name)
	}
	return out
}

// VariableByID finds a persisted variable by id.
func (f Formula) VariableByID(id int64) (Variable, bool) {
	for _, v := range f.Variables {
		if v.ID != nil && *v.ID == id {
			return v, true
		}
	}
	return Variable{}, false
}

// HasVariable reports whether id belongs to this formula's variable set.
func (f Formula) HasVariable(id int64) bool {
	_, ok := f.VariableByID(id)
	return ok
}

// OrderedVariables returns the variables sorted by first occurrence in the
// expression. Variables the expression no longer mentions come last.
func (f Formula) OrderedVariables() []Variable {
	byName := make(map[string]Variable, len(f.Variables))
	for _, v := range f.Variables {
		byName[v.Name] = v
	}
	out := make([]Variable, 0, len(f.Variables))
	for _, n := range ExtractVariables(f.Expression) {
		if v, ok := byName[n]; ok {
			out = append(out, v)
			delete(byName, n)
		}
	}
	for _, v := range f.Variables {
		if _, ok := byName[v.Name]; ok {
			out = append(out, v)
		}
	}
	return out
}
