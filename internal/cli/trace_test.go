package cli

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/scenesync/internal/engine"
	"github.com/roach88/scenesync/internal/gfx"
	"github.com/roach88/scenesync/internal/ir"
	"github.com/roach88/scenesync/internal/store"
)

// journalledDB runs the shared scene once, publishing the mesh and closing,
// and returns the database path.
func journalledDB(t *testing.T, rootID string) string {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "scenesync.db")
	opts := &RunOptions{
		RootOptions: &RootOptions{Format: "text"},
		Database:    dbPath,
		Publish:     []string{"mesh=mesh-002"},
		Close:       true,
		IDs:         engine.NewFixedGenerator(rootID),
	}
	_, _, err := runWith(t, opts, ctSceneDir)
	require.NoError(t, err)
	return dbPath
}

func executeTrace(t *testing.T, format string, verbose bool, args ...string) (string, error) {
	t.Helper()
	out := &bytes.Buffer{}
	cmd := NewTraceCommand(&RootOptions{Format: format, Verbose: verbose})
	cmd.SetOut(out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

// traceJSON mirrors TraceResult with call values left undecoded.
type traceJSON struct {
	Status string `json:"status"`
	Data   struct {
		Root     store.RootRecord `json:"root"`
		Timeline []struct {
			Seq   int64           `json:"seq"`
			Type  string          `json:"type"`
			Op    gfx.Op          `json:"op"`
			Kind  gfx.Kind        `json:"kind"`
			Value json.RawMessage `json:"value"`
		} `json:"timeline"`
		Stats TraceStats `json:"stats"`
	} `json:"data"`
}

func TestTraceMissingDatabaseFlag(t *testing.T) {
	_, err := executeTrace(t, "text", false, "--root", "r")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "required flag")
}

func TestTraceNonExistentDatabase(t *testing.T) {
	_, err := executeTrace(t, "text", false, "--db", "/nonexistent/path/test.db")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "database not found")
}

func TestTraceListRoots(t *testing.T) {
	dbPath := journalledDB(t, "root-a")

	out, err := executeTrace(t, "text", false, "--db", dbPath)
	require.NoError(t, err)
	assert.Contains(t, out, "=== Roots ===")
	assert.Contains(t, out, "root-a  ct-review")

	out, err = executeTrace(t, "json", false, "--db", dbPath)
	require.NoError(t, err)
	var resp struct {
		Data RootList `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	require.Len(t, resp.Data.Roots, 1)
	assert.Equal(t, "root-a", resp.Data.Roots[0].ID)
}

func TestTraceListRootsEmpty(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "empty.db")
	st, err := store.Open(dbPath)
	require.NoError(t, err)
	require.NoError(t, st.Close())

	out, err := executeTrace(t, "text", false, "--db", dbPath)
	require.NoError(t, err)
	assert.Contains(t, out, "No roots in journal.")
}

func TestTraceUnknownRoot(t *testing.T) {
	dbPath := journalledDB(t, "root-a")

	_, err := executeTrace(t, "text", false, "--db", dbPath, "--root", "root-b")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "root root-b not found")
}

func TestTraceTimelineJSON(t *testing.T) {
	dbPath := journalledDB(t, "root-a")

	out, err := executeTrace(t, "json", false, "--db", dbPath, "--root", "root-a")
	require.NoError(t, err)

	var resp traceJSON
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "ct-review", resp.Data.Root.Scene)

	stats := resp.Data.Stats
	assert.Equal(t, 2, stats.Cycles)
	assert.Equal(t, 3, stats.Renders)
	assert.Zero(t, stats.FailedCalls)
	assert.Len(t, resp.Data.Timeline, stats.Calls+stats.Cycles, "no filter shows everything")

	var prev int64
	cycles := 0
	for _, ev := range resp.Data.Timeline {
		assert.Greater(t, ev.Seq, prev, "timeline is ordered by seq with no duplicates")
		prev = ev.Seq
		if ev.Type == "cycle" {
			cycles++
		}
	}
	assert.Equal(t, 2, cycles)
	assert.Equal(t, prev, stats.LastSeq)
	assert.Equal(t, "cycle", resp.Data.Timeline[0].Type, "a cycle's seq is taken before its calls")
}

func TestTraceFilters(t *testing.T) {
	dbPath := journalledDB(t, "root-a")

	out, err := executeTrace(t, "json", false, "--db", dbPath, "--root", "root-a", "--op", "delete", "--kind", "renderer")
	require.NoError(t, err)

	var resp traceJSON
	require.NoError(t, json.Unmarshal([]byte(out), &resp))

	var calls []gfx.Kind
	for _, ev := range resp.Data.Timeline {
		if ev.Type == "call" {
			assert.Equal(t, gfx.OpDelete, ev.Op)
			calls = append(calls, ev.Kind)
		}
	}
	assert.Equal(t, []gfx.Kind{gfx.KindRenderer, gfx.KindRenderer}, calls)
	assert.Greater(t, resp.Data.Stats.Calls, 2, "stats cover every call")
}

func TestTraceTimelineText(t *testing.T) {
	dbPath := journalledDB(t, "root-a")

	out, err := executeTrace(t, "text", true, "--db", dbPath, "--root", "root-a", "--op", "set")
	require.NoError(t, err)
	assert.Contains(t, out, "Trace for Root: root-a")
	assert.Contains(t, out, "Scene: ct-review")
	assert.Contains(t, out, "Versions: engine ")
	assert.Contains(t, out, "=== Timeline ===")
	assert.Contains(t, out, "] CYCLE passes=")
	assert.Contains(t, out, "] set ")
	assert.Contains(t, out, "Value: ")
	assert.Contains(t, out, "=== Stats ===")
	assert.NotContains(t, out, "] create ")
}

func TestFormatTimelineEvent(t *testing.T) {
	tests := []struct {
		name    string
		event   TraceEvent
		verbose bool
		want    string
	}{
		{
			name:  "connect",
			event: TraceEvent{Seq: 4, Type: "call", Op: gfx.OpConnect, Handle: 2, Target: 5, Name: "mapper"},
			want:  "  [4] connect #2 -> #5 mapper\n",
		},
		{
			name:    "set with value",
			event:   TraceEvent{Seq: 7, Type: "call", Op: gfx.OpSet, Kind: gfx.KindActor, Handle: 3, Name: "color", Value: ir.Floats(1, 0.5, 0)},
			verbose: true,
			want:    "  [7] set actor #3 color\n       Value: [1,0.5,0]\n",
		},
		{
			name:  "failed create",
			event: TraceEvent{Seq: 9, Type: "call", Op: gfx.OpCreate, Kind: gfx.KindActor, Error: "injected"},
			want:  "  [9] create actor\n       Error: injected\n",
		},
		{
			name:  "cycle",
			event: TraceEvent{Seq: 1, Type: "cycle", Passes: 2, Synced: 5, Renders: 1},
			want:  "  [1] CYCLE passes=2 synced=5 renders=1 deletions=0\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := &bytes.Buffer{}
			formatTimelineEvent(buf, tt.event, tt.verbose)
			assert.Equal(t, tt.want, buf.String())
		})
	}
}

func TestFormatValue(t *testing.T) {
	assert.Equal(t, `"Grayscale"`, formatValue(ir.String("Grayscale")))
	assert.Equal(t, `{"a":1,"b":true}`, formatValue(ir.Map{"b": ir.Bool(true), "a": ir.Int(1)}))
}

func TestTraceHelpText(t *testing.T) {
	cmd := NewTraceCommand(&RootOptions{})
	assert.Contains(t, cmd.Long, "--root")
	assert.Contains(t, cmd.Long, "scenesync trace")
}
