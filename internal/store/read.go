package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/roach88/scenesync/internal/gfx"
	"github.com/roach88/scenesync/internal/ir"
	"github.com/roach88/scenesync/internal/queryir"
	"github.com/roach88/scenesync/internal/querysql"
)

// journalSchema lists the columns readers may name in a query.
var journalSchema = queryir.Schema{
	"calls":  {"root_id", "seq", "op", "kind", "handle", "target", "name", "value", "error"},
	"cycles": {"root_id", "seq", "passes", "synced", "renders", "deletions", "error"},
}

// CallFilter narrows ReadCalls. Zero fields match everything. FromSeq and
// ToSeq bound the seq window inclusively.
type CallFilter struct {
	Op      gfx.Op
	Kind    gfx.Kind
	FromSeq int64
	ToSeq   int64
}

// query builds the journal query for f.
func (f CallFilter) query() queryir.Select {
	preds := []queryir.Predicate{queryir.BoundEquals{Field: "root_id", Param: "root"}}
	if f.Op != "" {
		preds = append(preds, queryir.Equals{Field: "op", Value: ir.String(f.Op)})
	}
	if f.Kind != "" {
		preds = append(preds, queryir.Equals{Field: "kind", Value: ir.String(f.Kind)})
	}
	if f.FromSeq > 0 {
		preds = append(preds, queryir.AtLeast{Field: "seq", Value: ir.Int(f.FromSeq)})
	}
	if f.ToSeq > 0 {
		preds = append(preds, queryir.AtMost{Field: "seq", Value: ir.Int(f.ToSeq)})
	}
	return queryir.Select{
		From:    "calls",
		Columns: []string{"seq", "op", "kind", "handle", "target", "name", "value", "error"},
		Filter:  queryir.And{Predicates: preds},
		OrderBy: []string{"seq"},
	}
}

// compileQuery validates q against the journal schema and compiles it with
// root bound to rootID.
func compileQuery(q queryir.Query, rootID string) (string, []any, error) {
	if res := queryir.Validate(q, journalSchema); !res.Valid {
		return "", nil, fmt.Errorf("invalid journal query: %v", res.Problems)
	}
	return querysql.NewSQLCompiler().Bind("root", rootID).Compile(q)
}

// ReadRoot retrieves a single root by ID.
// Returns sql.ErrNoRows if not found.
func (s *Store) ReadRoot(ctx context.Context, id string) (RootRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, scene, spec_hash, engine_version, ir_version
		FROM roots
		WHERE id = ?
	`, id)

	var r RootRecord
	if err := row.Scan(&r.ID, &r.Scene, &r.SpecHash, &r.EngineVersion, &r.IRVersion); err != nil {
		return RootRecord{}, err
	}
	return r, nil
}

// ReadRoots returns every root ordered by ID. UUIDv7 IDs sort by creation
// time.
//
// Returns an empty slice (not nil) if the journal is empty.
func (s *Store) ReadRoots(ctx context.Context) ([]RootRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, scene, spec_hash, engine_version, ir_version
		FROM roots
		ORDER BY id COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query roots: %w", err)
	}
	defer rows.Close()

	roots := []RootRecord{}
	for rows.Next() {
		var r RootRecord
		if err := rows.Scan(&r.ID, &r.Scene, &r.SpecHash, &r.EngineVersion, &r.IRVersion); err != nil {
			return nil, fmt.Errorf("scan root: %w", err)
		}
		roots = append(roots, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate roots: %w", err)
	}
	return roots, nil
}

// ReadCalls returns a root's native calls ordered by seq.
//
// Returns an empty slice (not nil) if nothing matches.
func (s *Store) ReadCalls(ctx context.Context, rootID string, f CallFilter) ([]gfx.Call, error) {
	query, args, err := compileQuery(f.query(), rootID)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query calls: %w", err)
	}
	defer rows.Close()

	calls := []gfx.Call{}
	for rows.Next() {
		c, err := scanCall(rows)
		if err != nil {
			return nil, err
		}
		calls = append(calls, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate calls: %w", err)
	}
	return calls, nil
}

func scanCall(rows *sql.Rows) (gfx.Call, error) {
	var (
		c              gfx.Call
		op, kind       string
		handle, target int64
		value          sql.NullString
	)
	if err := rows.Scan(&c.Seq, &op, &kind, &handle, &target, &c.Name, &value, &c.Err); err != nil {
		return gfx.Call{}, fmt.Errorf("scan call: %w", err)
	}
	c.Op = gfx.Op(op)
	c.Kind = gfx.Kind(kind)
	c.Handle = gfx.Handle(handle)
	c.Target = gfx.Handle(target)
	v, err := unmarshalValue(value)
	if err != nil {
		return gfx.Call{}, fmt.Errorf("call %d: %w", c.Seq, err)
	}
	c.Value = v
	return c, nil
}

// ReadCycles returns a root's settle summaries ordered by seq.
//
// Returns an empty slice (not nil) if none exist.
func (s *Store) ReadCycles(ctx context.Context, rootID string) ([]CycleRecord, error) {
	query, args, err := compileQuery(queryir.Select{
		From:    "cycles",
		Columns: []string{"root_id", "seq", "passes", "synced", "renders", "deletions", "error"},
		Filter:  queryir.BoundEquals{Field: "root_id", Param: "root"},
		OrderBy: []string{"seq"},
	}, rootID)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query cycles: %w", err)
	}
	defer rows.Close()

	cycles := []CycleRecord{}
	for rows.Next() {
		var c CycleRecord
		if err := rows.Scan(&c.RootID, &c.Seq, &c.Passes, &c.Synced, &c.Renders, &c.Deletions, &c.Error); err != nil {
			return nil, fmt.Errorf("scan cycle: %w", err)
		}
		cycles = append(cycles, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate cycles: %w", err)
	}
	return cycles, nil
}

// LastSeq returns the highest seq recorded for a root across calls and
// cycles, or 0 for an empty root. engine.NewClockAt(LastSeq) resumes the
// numbering.
func (s *Store) LastSeq(ctx context.Context, rootID string) (int64, error) {
	var seq int64
	err := s.db.QueryRowContext(ctx, `
		SELECT COALESCE(MAX(seq), 0) FROM (
			SELECT seq FROM calls WHERE root_id = ?
			UNION ALL
			SELECT seq FROM cycles WHERE root_id = ?
		)
	`, rootID, rootID).Scan(&seq)
	if err != nil {
		return 0, fmt.Errorf("last seq: %w", err)
	}
	return seq, nil
}
