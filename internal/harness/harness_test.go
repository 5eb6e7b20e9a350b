package harness

import (
	"os"
	"slices"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/scenesync/internal/gfx"
	"github.com/roach88/scenesync/internal/testutil"
)

func smallScenario(t *testing.T, steps []Step, assertions []Assertion) *Scenario {
	t.Helper()
	return &Scenario{
		Name:        "small",
		Description: "small scene",
		Scene:       createTestScene(t, t.TempDir(), "scene"),
		Steps:       steps,
		Assertions:  assertions,
	}
}

// =============================================================================
// Testdata scenarios
// =============================================================================

func TestRun_TestdataScenarios(t *testing.T) {
	paths, err := filepath.Glob("testdata/scenarios/*.yaml")
	require.NoError(t, err)
	require.NotEmpty(t, paths)

	for _, path := range paths {
		t.Run(filepath.Base(path), func(t *testing.T) {
			scenario, err := LoadScenario(path)
			require.NoError(t, err)

			result, err := Run(scenario)
			require.NoError(t, err)
			assert.True(t, result.Pass, "errors: %v", result.Errors)
		})
	}
}

// =============================================================================
// Execution
// =============================================================================

func TestRun_DefaultRootID(t *testing.T) {
	result, err := Run(smallScenario(t,
		[]Step{{Do: StepSettle}},
		[]Assertion{{Type: AssertCycleCount, Count: 1}},
	))
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
	assert.Equal(t, testutil.DefaultRootID, result.RootID)
}

func TestRun_SharedClock(t *testing.T) {
	result, err := Run(smallScenario(t,
		[]Step{{Do: StepSettle}, {Do: StepSettle}},
		[]Assertion{{Type: AssertCycleCount, Count: 2}},
	))
	require.NoError(t, err)
	require.True(t, result.Pass, "errors: %v", result.Errors)

	require.NotEmpty(t, result.Calls)
	require.Len(t, result.Cycles, 2)
	assert.Equal(t, int64(1), result.Cycles[0].Seq, "a cycle is stamped before its calls")

	var seqs []int64
	for _, c := range result.Calls {
		seqs = append(seqs, c.Seq)
	}
	for _, c := range result.Cycles {
		seqs = append(seqs, c.Seq)
	}
	slices.Sort(seqs)
	for i, seq := range seqs {
		assert.Equal(t, int64(i+1), seq, "calls and cycles share one gapless axis")
	}
}

func TestRun_RequestRender(t *testing.T) {
	result, err := Run(smallScenario(t,
		[]Step{
			{Do: StepSettle},
			{Do: StepRequestRender, View: "main"},
			{Do: StepRequestRender, View: "main"},
			{Do: StepSettle},
			{Do: StepSettle},
		},
		[]Assertion{{Type: AssertRenderCount, View: "main", Count: 2}},
	))
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
}

func TestRun_AvailabilityLatch(t *testing.T) {
	yes, no := true, false
	result, err := Run(smallScenario(t,
		[]Step{
			{Do: StepSettle},
			{Do: StepAvailability, View: "main", Representation: "g", Available: &yes},
			{Do: StepAvailability, View: "main", Representation: "g", Available: &no},
			{Do: StepAvailability, View: "main", Representation: "g", Available: &yes},
			{Do: StepSettle},
		},
		[]Assertion{
			{Type: AssertVisible, View: "main", Representation: "g", Visible: &yes},
			{Type: AssertRenderCount, View: "main", Count: 2},
			{Type: AssertNoErrors},
		},
	))
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
}

func TestRun_UnmountRepresentation(t *testing.T) {
	result, err := Run(smallScenario(t,
		[]Step{
			{Do: StepSettle},
			{Do: StepUnmount, View: "main", Representation: "g"},
			{Do: StepSettle},
		},
		[]Assertion{
			{Type: AssertCallCount, Op: string(gfx.OpDelete), Kind: string(gfx.KindActor), Count: 1},
			{Type: AssertCallCount, Op: string(gfx.OpDelete), Kind: string(gfx.KindRenderer), Count: 0},
		},
	))
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
}

func TestRun_UnmountView(t *testing.T) {
	result, err := Run(smallScenario(t,
		[]Step{
			{Do: StepSettle},
			{Do: StepUnmount, View: "main"},
			{Do: StepSettle},
		},
		[]Assertion{
			{Type: AssertCallOrder, Calls: []string{"delete:actor", "delete:renderer"}},
			{Type: AssertRenderCount, View: "main", Count: 1},
		},
	))
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
}

func TestRun_StepErrors(t *testing.T) {
	result, err := Run(smallScenario(t,
		[]Step{
			{Do: StepSettle},
			{Do: StepRequestRender, View: "missing"},
			{Do: StepSettle, ExpectError: true},
		},
		[]Assertion{{Type: AssertCycleCount, Count: 2}},
	))
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 2)
	assert.Contains(t, result.Errors[0], `steps[1] request_render: unknown view "missing"`)
	assert.Contains(t, result.Errors[1], "steps[2] settle: expected an error")
}

func TestRun_FailingAssertion(t *testing.T) {
	result, err := Run(smallScenario(t,
		[]Step{{Do: StepSettle}},
		[]Assertion{{Type: AssertRenderCount, View: "main", Count: 5}},
	))
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "assertion 0 (render_count) failed")
	assert.Contains(t, result.Errors[0], "5 renders of view main")
}

func TestRun_InvalidScene(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "scene.cue"), []byte(`package scenes

scene: bad: views: {
	a: container: "same"
	b: container: "same"
}
`), 0644))

	_, err := Run(&Scenario{Name: "bad", Description: "d", Scene: dir,
		Steps: []Step{{Do: StepSettle}}, Assertions: []Assertion{{Type: AssertCycleCount}}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "E105")
}

// =============================================================================
// LoadScene
// =============================================================================

func TestLoadScene_SelectsByName(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "scenes.cue"), []byte(`package scenes

scene: {
	first: name: "First"
	second: views: v: container: "c"
}
`), 0644))

	_, err := LoadScene(dir, "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "declares 2 scenes")

	spec, err := LoadScene(dir, "second")
	require.NoError(t, err)
	assert.Equal(t, "second", spec.Name)
	require.Len(t, spec.Views, 1)

	spec, err = LoadScene(dir, "First")
	require.NoError(t, err)
	assert.Empty(t, spec.Views)

	_, err = LoadScene(dir, "third")
	assert.Error(t, err)
}

func TestLoadScene_CompileError(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "scene.cue"), []byte(`package scenes

scene: s: views: v: colour: "red"
`), 0644))

	_, err := LoadScene(dir, "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "scene.s")
}
