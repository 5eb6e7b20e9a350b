// Package querysql compiles journal queries to parameterized SQLite SQL.
package querysql

import (
	"fmt"
	"strings"

	"github.com/roach88/scenesync/internal/ir"
	"github.com/roach88/scenesync/internal/queryir"
)

// SQLCompiler compiles queryir queries for SQLite. Values are always
// passed as parameters, never interpolated. Identifiers are spliced in as
// given, so queries should pass queryir.Validate first.
type SQLCompiler struct {
	// Params holds the values for BoundEquals predicates.
	Params map[string]any
}

// NewSQLCompiler creates a compiler with an empty parameter set.
func NewSQLCompiler() *SQLCompiler {
	return &SQLCompiler{Params: make(map[string]any)}
}

// Bind sets a named parameter and returns the compiler.
func (c *SQLCompiler) Bind(name string, value any) *SQLCompiler {
	c.Params[name] = value
	return c
}

// Compile converts a query to SQL text and its positional parameters.
// Every query carries an ORDER BY.
func (c *SQLCompiler) Compile(q queryir.Query) (string, []any, error) {
	switch query := q.(type) {
	case nil:
		return "", nil, fmt.Errorf("cannot compile nil query")
	case queryir.Select:
		return c.compileSelect(query)
	case *queryir.Select:
		return c.compileSelect(*query)
	default:
		return "", nil, fmt.Errorf("unsupported query type: %T", q)
	}
}

func (c *SQLCompiler) compileSelect(q queryir.Select) (string, []any, error) {
	if len(q.Columns) == 0 {
		return "", nil, fmt.Errorf("select from %s: no columns", q.From)
	}
	if len(q.OrderBy) == 0 {
		return "", nil, fmt.Errorf("select from %s: no ordering", q.From)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "SELECT %s FROM %s", strings.Join(q.Columns, ", "), q.From)

	var params []any
	if q.Filter != nil {
		where, ps, err := c.compilePredicate(q.Filter)
		if err != nil {
			return "", nil, fmt.Errorf("compile filter: %w", err)
		}
		b.WriteString(" WHERE ")
		b.WriteString(where)
		params = ps
	}

	order := make([]string, len(q.OrderBy))
	for i, col := range q.OrderBy {
		order[i] = col + " ASC"
	}
	b.WriteString(" ORDER BY ")
	b.WriteString(strings.Join(order, ", "))

	return b.String(), params, nil
}

func (c *SQLCompiler) compilePredicate(p queryir.Predicate) (string, []any, error) {
	switch pred := p.(type) {
	case nil:
		return "1 = 1", nil, nil
	case queryir.Equals:
		return compareLiteral(pred.Field, "=", pred.Value)
	case *queryir.Equals:
		return compareLiteral(pred.Field, "=", pred.Value)
	case queryir.AtLeast:
		return compareLiteral(pred.Field, ">=", pred.Value)
	case *queryir.AtLeast:
		return compareLiteral(pred.Field, ">=", pred.Value)
	case queryir.AtMost:
		return compareLiteral(pred.Field, "<=", pred.Value)
	case *queryir.AtMost:
		return compareLiteral(pred.Field, "<=", pred.Value)
	case queryir.BoundEquals:
		return c.compileBoundEquals(pred)
	case *queryir.BoundEquals:
		return c.compileBoundEquals(*pred)
	case queryir.And:
		return c.compileAnd(pred)
	case *queryir.And:
		return c.compileAnd(*pred)
	default:
		return "", nil, fmt.Errorf("unsupported predicate type: %T", p)
	}
}

func compareLiteral(field, op string, v ir.Value) (string, []any, error) {
	param, err := irValueToParam(v)
	if err != nil {
		return "", nil, fmt.Errorf("field %s: %w", field, err)
	}
	return fmt.Sprintf("%s %s ?", field, op), []any{param}, nil
}

func (c *SQLCompiler) compileBoundEquals(beq queryir.BoundEquals) (string, []any, error) {
	val, ok := c.Params[beq.Param]
	if !ok {
		return "", nil, fmt.Errorf("field %s: parameter %q not bound", beq.Field, beq.Param)
	}
	return beq.Field + " = ?", []any{val}, nil
}

func (c *SQLCompiler) compileAnd(and queryir.And) (string, []any, error) {
	if len(and.Predicates) == 0 {
		return "1 = 1", nil, nil
	}

	parts := make([]string, 0, len(and.Predicates))
	var params []any
	for _, pred := range and.Predicates {
		sql, ps, err := c.compilePredicate(pred)
		if err != nil {
			return "", nil, err
		}
		parts = append(parts, sql)
		params = append(params, ps...)
	}
	return strings.Join(parts, " AND "), params, nil
}

// irValueToParam converts a scalar ir.Value to a driver parameter.
func irValueToParam(v ir.Value) (any, error) {
	switch val := v.(type) {
	case ir.String:
		return string(val), nil
	case ir.Int:
		return int64(val), nil
	case ir.Float:
		return float64(val), nil
	case ir.Bool:
		return bool(val), nil
	case ir.List:
		return nil, fmt.Errorf("list cannot be used as a SQL parameter")
	case ir.Map:
		return nil, fmt.Errorf("map cannot be used as a SQL parameter")
	case nil, ir.Null:
		return nil, fmt.Errorf("null cannot be used as a SQL parameter")
	default:
		return nil, fmt.Errorf("unsupported value type for SQL parameter: %T", v)
	}
}
