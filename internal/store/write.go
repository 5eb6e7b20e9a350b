package store

import (
	"context"
	"fmt"

	"github.com/roach88/scenesync/internal/engine"
	"github.com/roach88/scenesync/internal/gfx"
	"github.com/roach88/scenesync/internal/ir"
)

// RootRecord describes one scene root in the journal.
type RootRecord struct {
	ID            string `json:"id"`
	Scene         string `json:"scene"`
	SpecHash      string `json:"spec_hash"`
	EngineVersion string `json:"engine_version"`
	IRVersion     string `json:"ir_version"`
}

// NewRootRecord builds the record for a root mounting spec, stamped with
// the current runtime versions.
func NewRootRecord(id string, spec ir.SceneSpec) (RootRecord, error) {
	hash, err := ir.SpecHash(spec)
	if err != nil {
		return RootRecord{}, fmt.Errorf("root record: %w", err)
	}
	return RootRecord{
		ID:            id,
		Scene:         spec.Name,
		SpecHash:      hash,
		EngineVersion: ir.EngineVersion,
		IRVersion:     ir.IRVersion,
	}, nil
}

// CycleRecord is the stored summary of one settle step.
type CycleRecord struct {
	RootID    string `json:"root_id"`
	Seq       int64  `json:"seq"`
	Passes    int    `json:"passes"`
	Synced    int    `json:"synced"`
	Renders   int    `json:"renders"`
	Deletions int    `json:"deletions"`
	Error     string `json:"error,omitempty"`
}

// CycleFromReport converts a settle report and its error into a record.
func CycleFromReport(rootID string, r engine.CycleReport, err error) CycleRecord {
	rec := CycleRecord{
		RootID:    rootID,
		Seq:       r.Seq,
		Passes:    r.Passes,
		Synced:    r.Synced,
		Renders:   r.Renders,
		Deletions: r.Deletions,
	}
	if err != nil {
		rec.Error = err.Error()
	}
	return rec
}

// WriteRoot inserts a root record.
// Uses ON CONFLICT(id) DO NOTHING for idempotency - duplicate IDs are silently ignored.
func (s *Store) WriteRoot(ctx context.Context, root RootRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO roots
		(id, scene, spec_hash, engine_version, ir_version)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`,
		root.ID,
		root.Scene,
		root.SpecHash,
		root.EngineVersion,
		root.IRVersion,
	)
	if err != nil {
		return fmt.Errorf("write root: %w", err)
	}
	return nil
}

// WriteCall appends a native call to a root's journal.
// Uses ON CONFLICT DO NOTHING for idempotency - a call is identified by
// (root_id, seq).
//
// Note: The root must exist (foreign key constraint).
func (s *Store) WriteCall(ctx context.Context, rootID string, c gfx.Call) error {
	value, err := marshalValue(c.Value)
	if err != nil {
		return fmt.Errorf("write call %d: %w", c.Seq, err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO calls
		(root_id, seq, op, kind, handle, target, name, value, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT DO NOTHING
	`,
		rootID,
		c.Seq,
		string(c.Op),
		string(c.Kind),
		int64(c.Handle),
		int64(c.Target),
		c.Name,
		value,
		c.Err,
	)
	if err != nil {
		return fmt.Errorf("write call %d: %w", c.Seq, err)
	}
	return nil
}

// WriteCycle appends a settle summary to a root's journal.
// Uses ON CONFLICT DO NOTHING for idempotency.
//
// Note: The root must exist (foreign key constraint).
func (s *Store) WriteCycle(ctx context.Context, c CycleRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO cycles
		(root_id, seq, passes, synced, renders, deletions, error)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT DO NOTHING
	`,
		c.RootID,
		c.Seq,
		c.Passes,
		c.Synced,
		c.Renders,
		c.Deletions,
		c.Error,
	)
	if err != nil {
		return fmt.Errorf("write cycle %d: %w", c.Seq, err)
	}
	return nil
}
