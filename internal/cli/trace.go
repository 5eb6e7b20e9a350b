package cli

import (
	"cmp"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"slices"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/scenesync/internal/gfx"
	"github.com/roach88/scenesync/internal/ir"
	"github.com/roach88/scenesync/internal/store"
)

// TraceOptions holds flags for the trace command.
type TraceOptions struct {
	*RootOptions
	Database string
	RootID   string // optional - list roots when empty
	Op       string // optional - filter calls to one op
	Kind     string // optional - filter calls to one kind

	BusyTimeout time.Duration
}

// TraceEvent is one entry of a root's timeline: a native call or a settle
// cycle, ordered by seq.
type TraceEvent struct {
	Seq  int64  `json:"seq"`
	Type string `json:"type"` // "call" or "cycle"

	Op     gfx.Op     `json:"op,omitempty"`
	Kind   gfx.Kind   `json:"kind,omitempty"`
	Handle gfx.Handle `json:"handle,omitempty"`
	Target gfx.Handle `json:"target,omitempty"`
	Name   string     `json:"name,omitempty"`
	Value  ir.Value   `json:"value,omitempty"`

	Passes    int `json:"passes,omitempty"`
	Synced    int `json:"synced,omitempty"`
	Renders   int `json:"renders,omitempty"`
	Deletions int `json:"deletions,omitempty"`

	Error string `json:"error,omitempty"`
}

// TraceStats holds summary statistics for a root.
type TraceStats struct {
	Calls       int   `json:"calls"`
	FailedCalls int   `json:"failed_calls"`
	Cycles      int   `json:"cycles"`
	Renders     int   `json:"renders"`
	Deletions   int   `json:"deletions"`
	LastSeq     int64 `json:"last_seq"`
}

// TraceResult holds the complete trace of one root.
type TraceResult struct {
	Root     store.RootRecord `json:"root"`
	Timeline []TraceEvent     `json:"timeline"`
	Stats    TraceStats       `json:"stats"`
}

// RootList is the trace output when no root is selected.
type RootList struct {
	Roots []store.RootRecord `json:"roots"`
}

// NewTraceCommand creates the trace command.
func NewTraceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TraceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "trace",
		Short: "Inspect the journal of a sync root",
		Long: `Inspect the engine call journal written by run.

Without --root, lists every root in the journal. With --root, shows the
root's timeline: every native call and every settle cycle on one shared
sequence axis, followed by summary statistics. --op and --kind narrow the
calls shown; cycles are always included.

Examples:
  scenesync trace --db ./scenesync.db
  scenesync trace --db ./scenesync.db --root 0190f5c2-...
  scenesync trace --db ./scenesync.db --root 0190f5c2-... --op delete --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrace(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.RootID, "root", "", "root ID to trace (lists roots when empty)")
	cmd.Flags().StringVar(&opts.Op, "op", "", "only show calls with this op")
	cmd.Flags().StringVar(&opts.Kind, "kind", "", "only show calls on objects of this kind")
	cmd.Flags().DurationVar(&opts.BusyTimeout, "busy-timeout", 5*time.Second, "how long to wait on a journal locked by a running scene")

	return cmd
}

func runTrace(opts *TraceOptions, cmd *cobra.Command) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	// Opening would create an empty journal.
	if _, err := os.Stat(opts.Database); err != nil {
		return WrapExitError(ExitCommandError, "database not found", err)
	}

	st, err := store.Open(opts.Database, store.WithBusyTimeout(opts.BusyTimeout))
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer st.Close()

	if opts.RootID == "" {
		roots, err := st.ReadRoots(ctx)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to read roots", err)
		}
		return outputRootList(cmd, opts.Format, RootList{Roots: roots})
	}

	result, err := buildTrace(ctx, st, opts)
	if err != nil {
		return err
	}

	if opts.Format == "json" {
		return outputTraceJSON(cmd.OutOrStdout(), result)
	}
	return outputTraceText(cmd.OutOrStdout(), result, opts.Verbose)
}

func buildTrace(ctx context.Context, st *store.Store, opts *TraceOptions) (TraceResult, error) {
	root, err := st.ReadRoot(ctx, opts.RootID)
	if err != nil {
		return TraceResult{}, WrapExitError(ExitCommandError, fmt.Sprintf("root %s not found", opts.RootID), err)
	}

	all, err := st.ReadCalls(ctx, opts.RootID, store.CallFilter{})
	if err != nil {
		return TraceResult{}, WrapExitError(ExitCommandError, "failed to read calls", err)
	}
	cycles, err := st.ReadCycles(ctx, opts.RootID)
	if err != nil {
		return TraceResult{}, WrapExitError(ExitCommandError, "failed to read cycles", err)
	}

	result := TraceResult{Root: root, Timeline: []TraceEvent{}}
	for _, c := range all {
		result.Stats.Calls++
		if c.Err != "" {
			result.Stats.FailedCalls++
		}
		result.Stats.LastSeq = max(result.Stats.LastSeq, c.Seq)
		if (opts.Op != "" && string(c.Op) != opts.Op) || (opts.Kind != "" && string(c.Kind) != opts.Kind) {
			continue
		}
		result.Timeline = append(result.Timeline, callEvent(c))
	}
	for _, c := range cycles {
		result.Stats.Cycles++
		result.Stats.Renders += c.Renders
		result.Stats.Deletions += c.Deletions
		result.Stats.LastSeq = max(result.Stats.LastSeq, c.Seq)
		result.Timeline = append(result.Timeline, TraceEvent{
			Seq:       c.Seq,
			Type:      "cycle",
			Passes:    c.Passes,
			Synced:    c.Synced,
			Renders:   c.Renders,
			Deletions: c.Deletions,
			Error:     c.Error,
		})
	}
	slices.SortStableFunc(result.Timeline, func(a, b TraceEvent) int {
		return cmp.Compare(a.Seq, b.Seq)
	})
	return result, nil
}

func callEvent(c gfx.Call) TraceEvent {
	return TraceEvent{
		Seq:    c.Seq,
		Type:   "call",
		Op:     c.Op,
		Kind:   c.Kind,
		Handle: c.Handle,
		Target: c.Target,
		Name:   c.Name,
		Value:  c.Value,
		Error:  c.Err,
	}
}

func outputRootList(cmd *cobra.Command, format string, list RootList) error {
	w := cmd.OutOrStdout()
	if format == "json" {
		return outputTraceJSON(w, list)
	}

	if len(list.Roots) == 0 {
		fmt.Fprintln(w, "No roots in journal.")
		return nil
	}
	fmt.Fprintln(w, "=== Roots ===")
	for _, r := range list.Roots {
		fmt.Fprintf(w, "  %s  %s  %s\n", r.ID, r.Scene, shortHash(r.SpecHash))
	}
	return nil
}

func outputTraceJSON(w io.Writer, data any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(CLIResponse{Status: "ok", Data: data})
}

func outputTraceText(w io.Writer, result TraceResult, verbose bool) error {
	fmt.Fprintf(w, "Trace for Root: %s\n", result.Root.ID)
	fmt.Fprintf(w, "Scene: %s (spec %s)\n", result.Root.Scene, shortHash(result.Root.SpecHash))
	if verbose {
		fmt.Fprintf(w, "Versions: engine %s, ir %s\n", result.Root.EngineVersion, result.Root.IRVersion)
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "=== Timeline ===")
	if len(result.Timeline) == 0 {
		fmt.Fprintln(w, "  (no events)")
	}
	for _, event := range result.Timeline {
		formatTimelineEvent(w, event, verbose)
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "=== Stats ===")
	fmt.Fprintf(w, "  Calls:     %d (%d failed)\n", result.Stats.Calls, result.Stats.FailedCalls)
	fmt.Fprintf(w, "  Cycles:    %d\n", result.Stats.Cycles)
	fmt.Fprintf(w, "  Renders:   %d\n", result.Stats.Renders)
	fmt.Fprintf(w, "  Deletions: %d\n", result.Stats.Deletions)
	fmt.Fprintf(w, "  Last Seq:  %d\n", result.Stats.LastSeq)
	return nil
}

func formatTimelineEvent(w io.Writer, event TraceEvent, verbose bool) {
	switch event.Type {
	case "cycle":
		fmt.Fprintf(w, "  [%d] CYCLE passes=%d synced=%d renders=%d deletions=%d\n",
			event.Seq, event.Passes, event.Synced, event.Renders, event.Deletions)
	case "call":
		line := fmt.Sprintf("  [%d] %s", event.Seq, event.Op)
		if event.Kind != "" {
			line += " " + string(event.Kind)
		}
		if event.Handle != 0 {
			line += fmt.Sprintf(" #%d", event.Handle)
		}
		if event.Target != 0 {
			line += fmt.Sprintf(" -> #%d", event.Target)
		}
		if event.Name != "" {
			line += " " + event.Name
		}
		fmt.Fprintln(w, line)
		if verbose && event.Value != nil {
			fmt.Fprintf(w, "       Value: %s\n", formatValue(event.Value))
		}
	}
	if event.Error != "" {
		fmt.Fprintf(w, "       Error: %s\n", event.Error)
	}
}

// formatValue renders a call value as canonical JSON so map keys print in
// a stable order.
func formatValue(v ir.Value) string {
	data, err := ir.MarshalCanonical(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(data)
}
