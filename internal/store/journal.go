package store

import (
	"context"

	"github.com/roach88/scenesync/internal/engine"
	"github.com/roach88/scenesync/internal/gfx"
)

// Journal writes one root's native calls and cycles. It implements
// gfx.Sink, so a Recorder built with gfx.WithSink(journal) persists every
// call as it happens.
//
// The root must be written with WriteRoot before the first call is
// recorded.
type Journal struct {
	ctx    context.Context
	store  *Store
	rootID string
}

// Journal returns a journal for rootID writing with ctx.
func (s *Store) Journal(ctx context.Context, rootID string) *Journal {
	return &Journal{ctx: ctx, store: s, rootID: rootID}
}

// RootID returns the root the journal writes for.
func (j *Journal) RootID() string { return j.rootID }

// Record implements gfx.Sink.
func (j *Journal) Record(c gfx.Call) error {
	return j.store.WriteCall(j.ctx, j.rootID, c)
}

// Cycle records the outcome of one Settle.
func (j *Journal) Cycle(report engine.CycleReport, err error) error {
	return j.store.WriteCycle(j.ctx, CycleFromReport(j.rootID, report, err))
}

var _ gfx.Sink = (*Journal)(nil)
