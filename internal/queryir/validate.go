package queryir

import (
	"fmt"

	"github.com/roach88/scenesync/internal/ir"
)

// ValidationResult lists the problems found in a query. A valid query has
// none.
type ValidationResult struct {
	Valid    bool
	Problems []string
}

// Validate checks a query against schema. Every table and column name must
// be declared because backends splice them into query text. Literals must
// be scalars, and range predicates need numbers.
//
// Validate collects all problems rather than stopping at the first.
func Validate(q Query, schema Schema) ValidationResult {
	v := &validator{schema: schema, problems: []string{}}
	v.validateQuery(q)
	return ValidationResult{
		Valid:    len(v.problems) == 0,
		Problems: v.problems,
	}
}

type validator struct {
	schema   Schema
	table    string
	problems []string
}

func (v *validator) addProblem(format string, args ...any) {
	v.problems = append(v.problems, fmt.Sprintf(format, args...))
}

func (v *validator) validateQuery(q Query) {
	switch query := q.(type) {
	case nil:
		v.addProblem("nil query")
	case Select:
		v.validateSelect(query)
	case *Select:
		v.validateSelect(*query)
	default:
		v.addProblem("unknown query type %T", q)
	}
}

func (v *validator) validateSelect(sel Select) {
	if _, ok := v.schema[sel.From]; !ok {
		v.addProblem("unknown table %q", sel.From)
		return
	}
	v.table = sel.From

	if len(sel.Columns) == 0 {
		v.addProblem("no columns selected from %q", sel.From)
	}
	for _, c := range sel.Columns {
		v.checkColumn("column", c)
	}

	if len(sel.OrderBy) == 0 {
		v.addProblem("no ordering for %q", sel.From)
	}
	for _, c := range sel.OrderBy {
		v.checkColumn("order column", c)
	}

	v.validatePredicate(sel.Filter)
}

func (v *validator) checkColumn(what, name string) {
	if !v.schema.Has(v.table, name) {
		v.addProblem("unknown %s %q in %q", what, name, v.table)
	}
}

func (v *validator) validatePredicate(p Predicate) {
	switch pred := p.(type) {
	case nil:
	case Equals:
		v.checkColumn("field", pred.Field)
		v.checkScalar(pred.Field, pred.Value)
	case *Equals:
		v.validatePredicate(*pred)
	case BoundEquals:
		v.checkColumn("field", pred.Field)
		if pred.Param == "" {
			v.addProblem("field %q bound to an unnamed parameter", pred.Field)
		}
	case *BoundEquals:
		v.validatePredicate(*pred)
	case AtLeast:
		v.checkColumn("field", pred.Field)
		v.checkNumber(pred.Field, pred.Value)
	case *AtLeast:
		v.validatePredicate(*pred)
	case AtMost:
		v.checkColumn("field", pred.Field)
		v.checkNumber(pred.Field, pred.Value)
	case *AtMost:
		v.validatePredicate(*pred)
	case And:
		for _, sub := range pred.Predicates {
			v.validatePredicate(sub)
		}
	case *And:
		v.validatePredicate(*pred)
	default:
		v.addProblem("unknown predicate type %T", p)
	}
}

func (v *validator) checkScalar(field string, val ir.Value) {
	switch val.(type) {
	case ir.String, ir.Int, ir.Float, ir.Bool:
	case nil, ir.Null:
		v.addProblem("field %q compared to null", field)
	default:
		v.addProblem("field %q compared to non-scalar %T", field, val)
	}
}

func (v *validator) checkNumber(field string, val ir.Value) {
	switch val.(type) {
	case ir.Int, ir.Float:
	default:
		v.addProblem("field %q range bound is %T, want a number", field, val)
	}
}
