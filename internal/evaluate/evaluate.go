// Package evaluate computes formula expressions with $name placeholders.
//
// Expressions are compiled with expr-lang/expr with every builtin disabled.
// Placeholders become environment variables holding a number or a bool.
// Number literals are treated as float64, so "/" "%" and "^" ("**") always
// work on floats: "%" is floored modulo and "^" is right-associative power.
package evaluate

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/ast"

	"github.com/yourorg/calibr8/internal/formula"
)

var (
	ErrDivisionByZero = errors.New("division by zero")
	ErrSyntax         = errors.New("syntax error")
	ErrType           = errors.New("type error")
	ErrNotFinite      = errors.New("result is not a finite number")
)

// identPrefix marks rewritten placeholders; bare identifiers using it are
// refused so an expression can only reach its own parameters.
const identPrefix = "__"

// MissingParametersError lists declared variables that had no value.
type MissingParametersError struct {
	Names []string
}

func (e *MissingParametersError) Error() string {
	return "missing parameters: " + strings.Join(e.Names, ", ")
}

// Params maps variable names (with or without the '$' prefix) to values.
// Values may be numbers, booleans, json.Number or numeric strings.
type Params map[string]any

func (p Params) lookup(name string) (any, bool) {
	if v, ok := p[name]; ok {
		return v, true
	}
	v, ok := p["$"+name]
	return v, ok
}

// Evaluate compiles expr and runs it against params. The result is a
// finite float64 or a bool.
func Evaluate(expression string, params Params) (any, error) {
	names := formula.ExtractVariables(expression)
	var missing []string
	env := make(map[string]any, len(names))
	for _, name := range names {
		raw, ok := params.lookup(name)
		if !ok {
			missing = append(missing, name)
			continue
		}
		v, err := toValue(name, raw)
		if err != nil {
			return nil, err
		}
		env[identPrefix+name] = v
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return nil, &MissingParametersError{Names: missing}
	}

	bare := formula.ReplaceVariables(expression, func(string) string { return "" })
	if strings.Contains(bare, identPrefix) {
		return nil, fmt.Errorf("%w: names starting with %q are not allowed", ErrSyntax, identPrefix)
	}
	source := formula.ReplaceVariables(expression, func(name string) string { return identPrefix + name })

	program, err := expr.Compile(source, options(env)...)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrSyntax, readable(err))
	}
	out, err := expr.Run(program, env)
	if err != nil {
		for _, known := range []error{ErrDivisionByZero, ErrNotFinite} {
			if errors.Is(err, known) {
				return nil, known
			}
		}
		return nil, fmt.Errorf("%w: %s", ErrType, readable(err))
	}
	return result(out)
}

func options(env map[string]any) []expr.Option {
	return []expr.Option{
		expr.Env(env),
		expr.DisableAllBuiltins(),
		expr.Patch(floatLiterals{}),
		expr.Function("_mod", floatOp(mod), new(func(float64, float64) float64)),
		expr.Function("_div", floatOp(div), new(func(float64, float64) float64)),
		expr.Function("_pow", floatOp(pow), new(func(float64, float64) float64)),
		expr.Operator("%", "_mod"),
		expr.Operator("/", "_div"),
		expr.Operator("^", "_pow"),
		expr.Operator("**", "_pow"),
	}
}

// floatLiterals turns integer literals into floats so arithmetic never
// falls back to Go integer semantics.
type floatLiterals struct{}

func (floatLiterals) Visit(node *ast.Node) {
	if n, ok := (*node).(*ast.IntegerNode); ok {
		ast.Patch(node, &ast.FloatNode{Value: float64(n.Value)})
	}
}

func floatOp(fn func(a, b float64) (float64, error)) func(params ...any) (any, error) {
	return func(params ...any) (any, error) {
		a, aok := params[0].(float64)
		b, bok := params[1].(float64)
		if !aok || !bok {
			return nil, fmt.Errorf("%w: expected numbers, got %T and %T", ErrType, params[0], params[1])
		}
		return fn(a, b)
	}
}

// mod is floored, so the result takes the divisor's sign.
func mod(a, b float64) (float64, error) {
	if b == 0 {
		return 0, ErrDivisionByZero
	}
	m := math.Mod(a, b)
	if m != 0 && (m < 0) != (b < 0) {
		m += b
	}
	return m, nil
}

func div(a, b float64) (float64, error) {
	if b == 0 {
		return 0, ErrDivisionByZero
	}
	return finite(a / b)
}

func pow(a, b float64) (float64, error) {
	if a == 0 && b < 0 {
		return 0, ErrDivisionByZero
	}
	return finite(math.Pow(a, b))
}

func finite(f float64) (float64, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, ErrNotFinite
	}
	return f, nil
}

func result(out any) (any, error) {
	switch v := out.(type) {
	case bool:
		return v, nil
	case float64:
		return finite(v)
	case int:
		return float64(v), nil
	}
	return nil, fmt.Errorf("%w: result must be a number or a boolean, got %T", ErrType, out)
}

func toValue(name string, raw any) (any, error) {
	var f float64
	switch x := raw.(type) {
	case bool:
		return x, nil
	case float64:
		f = x
	case float32:
		f = float64(x)
	case int:
		f = float64(x)
	case int64:
		f = float64(x)
	case json.Number:
		v, err := x.Float64()
		if err != nil {
			return nil, fmt.Errorf("%w: parameter %s: %v", ErrType, name, err)
		}
		f = v
	case string:
		v, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		if err != nil {
			return nil, fmt.Errorf("%w: parameter %s is not numeric: %q", ErrType, name, x)
		}
		f = v
	case nil:
		return nil, fmt.Errorf("%w: parameter %s is null", ErrType, name)
	default:
		return nil, fmt.Errorf("%w: parameter %s has unsupported type %T", ErrType, name, raw)
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil, fmt.Errorf("%w: parameter %s is not a finite number", ErrType, name)
	}
	return f, nil
}

// readable restores the $ prefix in compiler messages.
func readable(err error) string {
	return strings.ReplaceAll(err.Error(), identPrefix, "$")
}
