package queryir

import (
	"slices"

	"github.com/roach88/scenesync/internal/ir"
)

// Query is a read against a journal table.
type Query interface {
	queryNode()
}

// Predicate is a row filter inside a Select.
type Predicate interface {
	predicateNode()
}

// Select reads Columns from a single table, keeps the rows that satisfy
// Filter and returns them sorted ascending by OrderBy.
//
//	SELECT <columns> FROM <from> WHERE <filter> ORDER BY <order_by>
//
// Columns and OrderBy are required. A nil Filter keeps every row.
type Select struct {
	From    string
	Columns []string
	Filter  Predicate
	OrderBy []string
}

func (Select) queryNode() {}

// Equals matches rows whose Field equals a literal.
type Equals struct {
	Field string
	Value ir.Value
}

func (Equals) predicateNode() {}

// BoundEquals matches rows whose Field equals a named parameter supplied
// at compile time.
type BoundEquals struct {
	Field string
	Param string
}

func (BoundEquals) predicateNode() {}

// AtLeast matches rows whose Field is greater than or equal to a numeric
// literal.
type AtLeast struct {
	Field string
	Value ir.Value
}

func (AtLeast) predicateNode() {}

// AtMost matches rows whose Field is less than or equal to a numeric
// literal.
type AtMost struct {
	Field string
	Value ir.Value
}

func (AtMost) predicateNode() {}

// And matches rows that satisfy every predicate. An empty And matches
// everything.
type And struct {
	Predicates []Predicate
}

func (And) predicateNode() {}

// Schema lists the columns of each table a query may read.
type Schema map[string][]string

// Has reports whether table declares column.
func (s Schema) Has(table, column string) bool {
	return slices.Contains(s[table], column)
}
