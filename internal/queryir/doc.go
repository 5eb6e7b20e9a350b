// Package queryir is a small query representation for reading the journal.
//
// Readers describe what they want as a Select over one journal table and
// hand it to a backend compiler (see package querysql). Keeping the query
// as data lets the store validate column names against the journal schema
// before anything is spliced into SQL text.
//
// Query and Predicate are sealed: only the types in this package implement
// them, so backends can switch over them exhaustively.
//
//	Select{
//		From:    "calls",
//		Columns: []string{"seq", "op"},
//		Filter: And{Predicates: []Predicate{
//			BoundEquals{Field: "root_id", Param: "root"},
//			Equals{Field: "op", Value: ir.String("delete")},
//			AtLeast{Field: "seq", Value: ir.Int(10)},
//		}},
//		OrderBy: []string{"seq"},
//	}
//
// Literal values are ir.Value scalars. Lists, maps and null never appear in
// a predicate.
package queryir
