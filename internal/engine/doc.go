// Package engine implements the synchronisation core of scenesync.
//
// The core keeps a retained-mode graphics engine in step with a tree of
// declarative components. It does not render anything itself; it decides
// when native objects are built, mutated, rendered and deleted.
//
// BUILDING BLOCKS:
//
//   - Cache: lazily built native handle, retried after a failed factory
//   - DirtyAccumulator: sticky OR of "something changed" within a pass
//   - Effect: runs an action only when its input differs from the last run
//   - DeletionRegistry: FIFO, deduplicated, cancellable native deletions
//   - Scope: ordered teardown, children always before their parent
//   - RenderScheduler: many render requests, one native render per cycle
//   - Arena: indexed native nodes with referrer/referent links
//
// Root ties them together for one scene root.
//
// UPDATE CYCLE:
//
// The host drives the core with one Root.Settle per update cycle:
//  1. Components changed since the last cycle were queued with Schedule.
//  2. Settle syncs them in passes, parents first; a sync may schedule more.
//  3. Scope.Finish completes any teardown still waiting on children.
//  4. The deletion registry flushes in registration order.
//  5. Each view's dirty flag becomes at most one render.
//
// Everything runs on one goroutine. There is no locking in the core;
// re-entrancy is handled by the scheduler's deferred flag and the
// registry's FIFO queue.
//
// Seq values come from a logical Clock, never from wall-clock time, so a
// recorded run replays to the same journal.
package engine
