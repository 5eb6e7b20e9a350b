package harness

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/roach88/scenesync/internal/compiler"
	"github.com/roach88/scenesync/internal/engine"
	"github.com/roach88/scenesync/internal/gfx"
	"github.com/roach88/scenesync/internal/ir"
	"github.com/roach88/scenesync/internal/scene"
	"github.com/roach88/scenesync/internal/store"
	"github.com/roach88/scenesync/internal/testutil"
)

// Harness is the test execution engine.
// It runs one scenario against a recording engine with a deterministic
// clock and a fixed root ID, journalling every call to the store.
type Harness struct {
	ctx     context.Context
	store   *store.Store
	journal *store.Journal
	rec     *gfx.Recorder
	scene   *scene.Scene
	clock   *testutil.DeterministicClock
	logger  *slog.Logger
	result  *Result

	// windows remembers each view's render window so render counts
	// survive the view's teardown.
	windows map[string]gfx.Handle
}

// Run executes a test scenario and returns the result.
//
// Each scenario runs in a fresh in-memory database for isolation.
// Deterministic helpers ensure reproducible results.
//
// Execution flow:
// 1. Load, compile and validate the scene
// 2. Create fresh in-memory database and journal the root
// 3. Mount the scene on a recorder sharing the scenario clock
// 4. Execute steps, checking expect_error
// 5. Evaluate assertions and return the result
func Run(scenario *Scenario) (*Result, error) {
	return RunWithLogger(scenario, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

// RunWithLogger is Run with engine logging sent to logger.
func RunWithLogger(scenario *Scenario, logger *slog.Logger) (*Result, error) {
	spec, err := LoadScene(scenario.Scene, scenario.SceneName)
	if err != nil {
		return nil, err
	}

	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	ctx := context.Background()
	clock := testutil.NewDeterministicClock()
	ids := testutil.NewFixedRootIDGenerator(scenario.RootID)
	rootID := ids.Generate()

	// The root row must exist before the first call is journalled.
	record, err := store.NewRootRecord(rootID, spec)
	if err != nil {
		return nil, err
	}
	if err := st.WriteRoot(ctx, record); err != nil {
		return nil, fmt.Errorf("failed to write root: %w", err)
	}

	journal := st.Journal(ctx, rootID)
	rec := gfx.NewRecorder(gfx.WithSeqSource(clock), gfx.WithSink(journal))
	root := engine.New(rec,
		engine.WithClock(clock),
		engine.WithIDGenerator(ids),
		engine.WithLogger(logger),
	)

	sc, err := scene.Mount(root, spec)
	if err != nil {
		return nil, fmt.Errorf("failed to mount scene %s: %w", spec.Name, err)
	}

	h := &Harness{
		ctx:     ctx,
		store:   st,
		journal: journal,
		rec:     rec,
		scene:   sc,
		clock:   clock,
		logger:  logger,
		result:  NewResult(rootID),
		windows: make(map[string]gfx.Handle),
	}

	for i, step := range scenario.Steps {
		err := h.execute(step)
		h.trackWindows()
		switch {
		case err != nil && !step.ExpectError:
			h.result.AddError(fmt.Sprintf("steps[%d] %s: %v", i, step.Do, err))
		case err == nil && step.ExpectError:
			h.result.AddError(fmt.Sprintf("steps[%d] %s: expected an error, got none", i, step.Do))
		}
		h.logger.Info("step completed", "step", i, "do", step.Do, "error", err)
	}

	if err := rec.Err(); err != nil {
		return nil, fmt.Errorf("failed to journal calls: %w", err)
	}
	h.result.Calls = rec.Calls()

	actx := &AssertionContext{
		Ctx:      ctx,
		Store:    st,
		RootID:   rootID,
		Scene:    sc,
		Recorder: rec,
		Windows:  h.windows,
	}
	for _, errMsg := range EvaluateAssertions(h.result, scenario.Assertions, actx) {
		h.result.AddError(errMsg)
	}

	return h.result, nil
}

// LoadScene compiles the CUE package in dir and returns the scene named
// name, or the only scene when name is empty. The scene must validate.
func LoadScene(dir, name string) (ir.SceneSpec, error) {
	v, err := compiler.LoadInstance(dir)
	if err != nil {
		return ir.SceneSpec{}, fmt.Errorf("failed to load scene: %w", err)
	}
	specs, errs := compiler.CompileScenes(v)
	if len(errs) > 0 {
		return ir.SceneSpec{}, fmt.Errorf("failed to compile scene: %w", errors.Join(errs...))
	}

	var picked *ir.SceneSpec
	switch {
	case name != "":
		for i := range specs {
			if specs[i].Name == name {
				picked = &specs[i]
			}
		}
		if picked == nil {
			return ir.SceneSpec{}, fmt.Errorf("scene %q not found in %s", name, dir)
		}
	case len(specs) == 1:
		picked = &specs[0]
	default:
		return ir.SceneSpec{}, fmt.Errorf("%s declares %d scenes; set scene_name", dir, len(specs))
	}

	if verrs := compiler.Validate(picked); len(verrs) > 0 {
		errs := make([]error, len(verrs))
		for i := range verrs {
			errs[i] = verrs[i]
		}
		return ir.SceneSpec{}, fmt.Errorf("invalid scene %s: %w", picked.Name, errors.Join(errs...))
	}
	return *picked, nil
}

// execute runs one step against the mounted scene.
func (h *Harness) execute(step Step) error {
	switch step.Do {
	case StepSettle:
		report, err := h.scene.Settle()
		if report.Seq > 0 {
			h.result.Cycles = append(h.result.Cycles, report)
			if jerr := h.journal.Cycle(report, err); jerr != nil {
				return fmt.Errorf("journal cycle: %w", jerr)
			}
		}
		return err

	case StepApply:
		spec, err := LoadScene(step.Scene, "")
		if err != nil {
			return err
		}
		return h.scene.Apply(spec)

	case StepPublish:
		src, ok := h.scene.Source(step.Source)
		if !ok {
			return fmt.Errorf("unknown source %q", step.Source)
		}
		var bounds gfx.Bounds
		copy(bounds[:], step.Bounds)
		src.Publish(scene.Dataset{ID: step.Dataset, Bounds: bounds})
		return nil

	case StepWithdraw:
		src, ok := h.scene.Source(step.Source)
		if !ok {
			return fmt.Errorf("unknown source %q", step.Source)
		}
		src.Withdraw()
		return nil

	case StepAvailability:
		r, err := h.representation(step.View, step.Representation)
		if err != nil {
			return err
		}
		r.RegisterDataAvailability(*step.Available)
		return nil

	case StepRequestRender:
		v, ok := h.scene.View(step.View)
		if !ok {
			return fmt.Errorf("unknown view %q", step.View)
		}
		for range max(step.Times, 1) {
			v.RequestRender()
		}
		return nil

	case StepFail:
		h.rec.FailNext(gfx.Kind(step.Kind), step.Count)
		return nil

	case StepUnmount:
		v, ok := h.scene.View(step.View)
		if !ok {
			return fmt.Errorf("unknown view %q", step.View)
		}
		if step.Representation == "" {
			return v.Unmount()
		}
		r, err := h.representation(step.View, step.Representation)
		if err != nil {
			return err
		}
		return r.Unmount()

	case StepClose:
		return h.scene.Close()

	default:
		return fmt.Errorf("unknown step %q", step.Do)
	}
}

func (h *Harness) representation(view, key string) (scene.Representation, error) {
	v, ok := h.scene.View(view)
	if !ok {
		return nil, fmt.Errorf("unknown view %q", view)
	}
	r, ok := v.Representation(key)
	if !ok {
		return nil, fmt.Errorf("unknown representation %s/%s", view, key)
	}
	return r, nil
}

func (h *Harness) trackWindows() {
	for _, v := range h.scene.Views() {
		if w, ok := v.Handles()[gfx.KindRenderWindow]; ok {
			h.windows[v.Key()] = w
		}
	}
}
