package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/scenesync/internal/engine"
	"github.com/roach88/scenesync/internal/gfx"
	"github.com/roach88/scenesync/internal/harness"
	"github.com/roach88/scenesync/internal/ir"
	"github.com/roach88/scenesync/internal/scene"
	"github.com/roach88/scenesync/internal/store"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Database string
	Scene    string
	Publish  []string // source=dataset pairs
	Close    bool

	// IDs allows overriding the root ID generator (for testing).
	// If nil, defaults to UUIDv7Generator.
	IDs engine.IDGenerator
}

// RunResult summarises one run.
type RunResult struct {
	RootID   string               `json:"root_id"`
	Scene    string               `json:"scene"`
	SpecHash string               `json:"spec_hash"`
	Database string               `json:"database"`
	Cycles   []engine.CycleReport `json:"cycles"`
	Calls    int                  `json:"calls"`
	Live     int                  `json:"live"`
	Closed   bool                 `json:"closed"`
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run <scene-dir>",
		Short: "Mount a scene on the recording engine and settle it",
		Long: `Mount a compiled scene on the recording graphics engine and settle it.

Every engine call and every settle cycle is journalled to the SQLite
database under a fresh root ID. Datasets published with --publish are
delivered to their sources after the first settle, followed by a second
settle. With --close the scene is torn down at the end.

Example:
  scenesync run ./scenes --db ./scenesync.db
  scenesync run ./scenes --db ./scenesync.db --scene ct-review --publish mesh=skin.vtp --close`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScene(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", ":memory:", "path to SQLite database")
	cmd.Flags().StringVar(&opts.Scene, "scene", "", "scene name (required when the directory declares several)")
	cmd.Flags().StringArrayVar(&opts.Publish, "publish", nil, "publish a dataset to a source (source=dataset, repeatable)")
	cmd.Flags().BoolVar(&opts.Close, "close", false, "tear the scene down after settling")

	return cmd
}

// publication is one parsed --publish flag.
type publication struct {
	source  string
	dataset string
}

func parsePublications(flags []string) ([]publication, error) {
	out := make([]publication, 0, len(flags))
	for _, f := range flags {
		source, dataset, ok := strings.Cut(f, "=")
		if !ok || source == "" || dataset == "" {
			return nil, fmt.Errorf("invalid --publish %q: want source=dataset", f)
		}
		out = append(out, publication{source: source, dataset: dataset})
	}
	return out, nil
}

func runScene(opts *RunOptions, sceneDir string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	logger := formatter.Logger()

	pubs, err := parsePublications(opts.Publish)
	if err != nil {
		return WrapExitError(ExitCommandError, "bad flag", err)
	}

	logger.Info("loading scene", "dir", sceneDir, "scene", opts.Scene)
	spec, err := harness.LoadScene(sceneDir, opts.Scene)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load scene", err)
	}

	logger.Info("opening database", "path", opts.Database)
	st, err := store.Open(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer func() {
		if closeErr := st.Close(); closeErr != nil {
			logger.Error("error closing database", "error", closeErr)
		}
	}()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	ids := opts.IDs
	if ids == nil {
		ids = engine.UUIDv7Generator{}
	}
	rootID := ids.Generate()

	record, err := store.NewRootRecord(rootID, spec)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to hash scene", err)
	}
	if err := st.WriteRoot(ctx, record); err != nil {
		return WrapExitError(ExitCommandError, "failed to write root", err)
	}

	clock := engine.NewClock()
	journal := st.Journal(ctx, rootID)
	rec := gfx.NewRecorder(gfx.WithSeqSource(clock), gfx.WithSink(journal))
	root := engine.New(rec,
		engine.WithClock(clock),
		engine.WithIDGenerator(engine.NewFixedGenerator(rootID)),
		engine.WithLogger(logger),
	)

	sc, err := scene.Mount(root, spec)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to mount scene", err)
	}

	result := &RunResult{
		RootID:   rootID,
		Scene:    spec.Name,
		SpecHash: record.SpecHash,
		Database: opts.Database,
	}

	settle := func() error {
		report, err := sc.Settle()
		if report.Seq > 0 {
			result.Cycles = append(result.Cycles, report)
			if jerr := journal.Cycle(report, err); jerr != nil {
				return jerr
			}
		}
		return err
	}

	var runErr error
	if err := settle(); err != nil {
		runErr = err
	}

	if runErr == nil && len(pubs) > 0 {
		for _, p := range pubs {
			if err := publish(sc, spec, p); err != nil {
				return WrapExitError(ExitCommandError, "failed to publish", err)
			}
			logger.Info("published dataset", "source", p.source, "dataset", p.dataset)
		}
		runErr = settle()
	}

	if opts.Close {
		if err := sc.Close(); err != nil && runErr == nil {
			runErr = err
		}
		result.Closed = true
	}

	if err := rec.Err(); err != nil {
		return WrapExitError(ExitCommandError, "failed to journal calls", err)
	}
	result.Calls = len(rec.Calls())
	result.Live = rec.LiveCount()

	if err := outputRunResult(formatter, result); err != nil {
		return err
	}
	if runErr != nil {
		return WrapExitError(ExitFailure, "settle failed", runErr)
	}
	return nil
}

func publish(sc *scene.Scene, spec ir.SceneSpec, p publication) error {
	src, ok := sc.Source(p.source)
	if !ok {
		return fmt.Errorf("unknown source %q", p.source)
	}
	var bounds gfx.Bounds
	for _, ss := range spec.Sources {
		if ss.Name == p.source {
			bounds = gfx.Bounds(ss.Bounds)
		}
	}
	src.Publish(scene.Dataset{ID: p.dataset, Bounds: bounds})
	return nil
}

func outputRunResult(formatter *OutputFormatter, result *RunResult) error {
	if formatter.JSON() {
		return formatter.Success(result)
	}

	w := formatter.Writer
	fmt.Fprintf(w, "Root %s (scene %s, spec %s)\n", result.RootID, result.Scene, shortHash(result.SpecHash))
	for _, c := range result.Cycles {
		fmt.Fprintf(w, "  cycle seq=%d passes=%d synced=%d renders=%d deletions=%d\n",
			c.Seq, c.Passes, c.Synced, c.Renders, c.Deletions)
	}
	fmt.Fprintf(w, "%d call(s) journalled to %s, %d object(s) live\n", result.Calls, result.Database, result.Live)
	if result.Closed {
		fmt.Fprintln(w, "Scene closed")
	}
	return nil
}
