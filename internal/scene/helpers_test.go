package scene

import (
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/scenesync/internal/engine"
	"github.com/roach88/scenesync/internal/gfx"
	"github.com/roach88/scenesync/internal/ir"
)

func newTestRoot(t *testing.T, opts ...gfx.RecorderOption) (*engine.Root, *gfx.Recorder) {
	t.Helper()
	rec := gfx.NewRecorder(opts...)
	root := engine.New(rec,
		engine.WithIDGenerator(engine.NewFixedGenerator("root-test")),
		engine.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	)
	return root, rec
}

func settle(t *testing.T, root *engine.Root) engine.CycleReport {
	t.Helper()
	report, err := root.Settle()
	require.NoError(t, err)
	return report
}

func newAttachedView(t *testing.T, root *engine.Root) *View {
	t.Helper()
	v, err := NewView(root, "main", DefaultViewProps("viewport"))
	require.NoError(t, err)
	settle(t, root)
	require.True(t, v.Attached())
	return v
}

func property(t *testing.T, rec *gfx.Recorder, h gfx.Handle, name string) ir.Value {
	t.Helper()
	v, ok := rec.Property(h, name)
	require.True(t, ok, "property %s not set on %s", name, h)
	return v
}

func actorOf(t *testing.T, r Representation) gfx.Handle {
	t.Helper()
	h, ok := r.Actor()
	require.True(t, ok, "actor not built")
	return h
}

func opsSince(rec *gfx.Recorder, from int, op gfx.Op) []gfx.Call {
	var out []gfx.Call
	for _, c := range rec.Calls()[from:] {
		if c.Op == op {
			out = append(out, c)
		}
	}
	return out
}
