package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Scenario defines a conformance test scenario.
// A scenario mounts one compiled scene on a recording engine, drives it
// through a list of steps and asserts on the resulting native call trace.
type Scenario struct {
	// Name uniquely identifies this scenario.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Scene is the CUE package directory holding the scene to mount.
	// Relative paths are resolved against the scenario file location.
	Scene string `yaml:"scene"`

	// SceneName selects one scene when the package declares several.
	SceneName string `yaml:"scene_name,omitempty"`

	// RootID is an optional fixed root ID. If empty, defaults to
	// "test-root-default" so golden traces are reproducible.
	RootID string `yaml:"root_id,omitempty"`

	// Steps drive the mounted scene in order.
	Steps []Step `yaml:"steps"`

	// Assertions validate the final trace and state.
	Assertions []Assertion `yaml:"assertions"`
}

// Step is one operation against the mounted scene.
type Step struct {
	// Do names the operation. See the Step* constants.
	Do string `yaml:"do"`

	// Scene is the CUE package directory to apply (used by apply).
	Scene string `yaml:"scene,omitempty"`

	// Source is the data source name (used by publish, withdraw).
	Source string `yaml:"source,omitempty"`

	// Dataset and Bounds describe the published data (used by publish).
	Dataset string    `yaml:"dataset,omitempty"`
	Bounds  []float64 `yaml:"bounds,omitempty"`

	// View and Representation address a component (used by
	// request_render, unmount, availability).
	View           string `yaml:"view,omitempty"`
	Representation string `yaml:"representation,omitempty"`

	// Available is reported straight to a representation's visibility
	// latch (used by availability).
	Available *bool `yaml:"available,omitempty"`

	// Times repeats the request (used by request_render). Zero means once.
	Times int `yaml:"times,omitempty"`

	// Kind and Count configure injected construction failures (used by fail).
	Kind  string `yaml:"kind,omitempty"`
	Count int    `yaml:"count,omitempty"`

	// ExpectError marks a step that must fail.
	ExpectError bool `yaml:"expect_error,omitempty"`
}

// Step operation constants.
const (
	StepSettle        = "settle"
	StepApply         = "apply"
	StepPublish       = "publish"
	StepWithdraw      = "withdraw"
	StepAvailability  = "availability"
	StepRequestRender = "request_render"
	StepFail          = "fail"
	StepUnmount       = "unmount"
	StepClose         = "close"
)

// Assertion validates trace or final state.
type Assertion struct {
	// Type specifies the assertion type:
	// - "render_count": Check a view's window rendered exactly N times
	// - "call_count": Check N recorded calls match op and kind
	// - "call_order": Check "op" or "op:kind" entries appear in order
	// - "visible": Check a representation's effective visibility
	// - "journal_count": Check N journalled calls match op and kind
	// - "cycle_count": Check N settle cycles were journalled
	// - "deleted_order": Check the exact sequence of deleted kinds
	// - "no_errors": Check no native call failed
	Type string `yaml:"type"`

	// View and Representation address a component (render_count, visible).
	View           string `yaml:"view,omitempty"`
	Representation string `yaml:"representation,omitempty"`

	// Op and Kind filter calls (call_count, journal_count). Empty matches all.
	Op   string `yaml:"op,omitempty"`
	Kind string `yaml:"kind,omitempty"`

	// Count is the expected number of matches.
	Count int `yaml:"count,omitempty"`

	// Calls is the expected call order (call_order).
	Calls []string `yaml:"calls,omitempty"`

	// Kinds is the expected deletion sequence (deleted_order).
	Kinds []string `yaml:"kinds,omitempty"`

	// Visible is the expected visibility (visible).
	Visible *bool `yaml:"visible,omitempty"`
}

// Assertion type constants.
const (
	AssertRenderCount  = "render_count"
	AssertCallCount    = "call_count"
	AssertCallOrder    = "call_order"
	AssertVisible      = "visible"
	AssertJournalCount = "journal_count"
	AssertCycleCount   = "cycle_count"
	AssertDeletedOrder = "deleted_order"
	AssertNoErrors     = "no_errors"
)

// LoadScenario reads and parses a scenario YAML file. Scene paths are
// resolved against the file's directory.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	return LoadScenarioWithBasePath(path, filepath.Dir(path))
}

// LoadScenarioWithBasePath reads and parses a scenario YAML file,
// resolving scene paths relative to the provided base path.
func LoadScenarioWithBasePath(path, basePath string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	// Strict decoding catches typos like "assertion:" vs "assertions:"
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	// Resolve scene paths BEFORE validation
	scenario.Scene = resolve(basePath, scenario.Scene)
	for i := range scenario.Steps {
		scenario.Steps[i].Scene = resolve(basePath, scenario.Steps[i].Scene)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	return &scenario, nil
}

func resolve(base, path string) string {
	if path == "" || filepath.IsAbs(path) || base == "" {
		return path
	}
	return filepath.Join(base, path)
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}

	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	if s.Scene == "" {
		return fmt.Errorf("scene is required")
	}

	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}

	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}

	if err := checkDir(s.Scene); err != nil {
		return err
	}

	for i, step := range s.Steps {
		if err := validateStep(i, &step); err != nil {
			return err
		}
	}

	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion); err != nil {
			return err
		}
	}

	return nil
}

func checkDir(path string) error {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return fmt.Errorf("scene directory not found: %s", path)
	}
	if err != nil {
		return fmt.Errorf("scene directory: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("scene is not a directory: %s", path)
	}
	return nil
}

// validateStep validates a single step based on its operation.
func validateStep(index int, st *Step) error {
	switch st.Do {
	case "":
		return fmt.Errorf("steps[%d]: do is required", index)
	case StepSettle, StepClose:
	case StepApply:
		if st.Scene == "" {
			return fmt.Errorf("steps[%d]: scene is required for apply", index)
		}
		if err := checkDir(st.Scene); err != nil {
			return fmt.Errorf("steps[%d]: %w", index, err)
		}
	case StepPublish:
		if st.Source == "" {
			return fmt.Errorf("steps[%d]: source is required for publish", index)
		}
		if st.Bounds != nil && len(st.Bounds) != 6 {
			return fmt.Errorf("steps[%d]: bounds must have 6 numbers, got %d", index, len(st.Bounds))
		}
	case StepWithdraw:
		if st.Source == "" {
			return fmt.Errorf("steps[%d]: source is required for withdraw", index)
		}
	case StepRequestRender:
		if st.View == "" {
			return fmt.Errorf("steps[%d]: view is required for request_render", index)
		}
		if st.Times < 0 {
			return fmt.Errorf("steps[%d]: times must be non-negative", index)
		}
	case StepAvailability:
		if st.View == "" || st.Representation == "" {
			return fmt.Errorf("steps[%d]: view and representation are required for availability", index)
		}
		if st.Available == nil {
			return fmt.Errorf("steps[%d]: available is required for availability", index)
		}
	case StepUnmount:
		if st.View == "" {
			return fmt.Errorf("steps[%d]: view is required for unmount", index)
		}
	case StepFail:
		if st.Kind == "" {
			return fmt.Errorf("steps[%d]: kind is required for fail", index)
		}
		if st.Count <= 0 {
			return fmt.Errorf("steps[%d]: count must be positive for fail", index)
		}
	default:
		return fmt.Errorf("steps[%d]: unknown step %q", index, st.Do)
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	if a.Count < 0 {
		return fmt.Errorf("assertions[%d]: count must be non-negative", index)
	}

	switch a.Type {
	case AssertRenderCount:
		if a.View == "" {
			return fmt.Errorf("assertions[%d]: view is required for render_count", index)
		}
	case AssertCallCount, AssertJournalCount, AssertCycleCount, AssertNoErrors:
	case AssertDeletedOrder:
		if a.Kinds == nil {
			return fmt.Errorf("assertions[%d]: kinds list is required for deleted_order", index)
		}
	case AssertCallOrder:
		if len(a.Calls) == 0 {
			return fmt.Errorf("assertions[%d]: calls list is required for call_order", index)
		}
	case AssertVisible:
		if a.View == "" || a.Representation == "" {
			return fmt.Errorf("assertions[%d]: view and representation are required for visible", index)
		}
		if a.Visible == nil {
			return fmt.Errorf("assertions[%d]: visible is required for visible", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}

	return nil
}
