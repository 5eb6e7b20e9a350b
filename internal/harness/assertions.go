package harness

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/scenesync/internal/gfx"
	"github.com/roach88/scenesync/internal/scene"
	"github.com/roach88/scenesync/internal/store"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string     // Assertion type for categorization
	Expected string     // Human-readable expected outcome
	Actual   string     // Human-readable actual outcome
	Trace    []gfx.Call // Full trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nFull trace:\n")
		for _, c := range e.Trace {
			fmt.Fprintf(&buf, "  [%d] %s\n", c.Seq, describeCall(c))
		}
	}

	return buf.String()
}

// AssertionContext carries what state assertions inspect besides the trace.
type AssertionContext struct {
	Ctx      context.Context
	Store    *store.Store
	RootID   string
	Scene    *scene.Scene
	Recorder *gfx.Recorder
	Windows  map[string]gfx.Handle
}

// EvaluateAssertions runs every assertion and returns the failure messages
// in declaration order.
func EvaluateAssertions(result *Result, assertions []Assertion, actx *AssertionContext) []string {
	var errs []string
	for i, a := range assertions {
		if err := evaluate(result, a, actx); err != nil {
			errs = append(errs, fmt.Sprintf("assertion %d (%s) failed: %v", i, a.Type, err))
		}
	}
	return errs
}

func evaluate(result *Result, a Assertion, actx *AssertionContext) error {
	switch a.Type {
	case AssertRenderCount:
		return assertRenderCount(result.Calls, a, actx)
	case AssertCallCount:
		return assertCallCount(result.Calls, a)
	case AssertCallOrder:
		return assertCallOrder(result.Calls, a)
	case AssertVisible:
		return assertVisible(a, actx)
	case AssertJournalCount:
		return assertJournalCount(a, actx)
	case AssertCycleCount:
		return assertCycleCount(a, actx)
	case AssertDeletedOrder:
		return assertDeletedOrder(result.Calls, a)
	case AssertNoErrors:
		return assertNoErrors(result.Calls)
	default:
		return fmt.Errorf("unknown assertion type %q", a.Type)
	}
}

// describeCall renders a call as "op:kind" (or "op" when the call has no
// kind), the notation call_order uses.
func describeCall(c gfx.Call) string {
	s := string(c.Op)
	if c.Kind != "" {
		s += ":" + string(c.Kind)
	}
	if c.Name != "" {
		s += " " + c.Name
	}
	if c.Err != "" {
		s += " (" + c.Err + ")"
	}
	return s
}

func matches(c gfx.Call, op, kind string) bool {
	return (op == "" || string(c.Op) == op) && (kind == "" || string(c.Kind) == kind)
}

// assertRenderCount checks how often a view's window rendered successfully.
func assertRenderCount(trace []gfx.Call, a Assertion, actx *AssertionContext) error {
	window, ok := actx.Windows[a.View]
	if !ok {
		return &AssertionError{
			Type:     AssertRenderCount,
			Expected: fmt.Sprintf("view %s to have built a render window", a.View),
			Actual:   "no render window",
			Trace:    trace,
		}
	}

	count := 0
	for _, c := range trace {
		if c.Op == gfx.OpRender && c.Handle == window && c.Err == "" {
			count++
		}
	}
	if count != a.Count {
		return &AssertionError{
			Type:     AssertRenderCount,
			Expected: fmt.Sprintf("%d renders of view %s", a.Count, a.View),
			Actual:   fmt.Sprintf("%d renders", count),
			Trace:    trace,
		}
	}
	return nil
}

// assertCallCount checks the number of recorded calls matching op and kind.
func assertCallCount(trace []gfx.Call, a Assertion) error {
	count := 0
	for _, c := range trace {
		if matches(c, a.Op, a.Kind) {
			count++
		}
	}
	if count != a.Count {
		return &AssertionError{
			Type:     AssertCallCount,
			Expected: fmt.Sprintf("%d calls matching op=%q kind=%q", a.Count, a.Op, a.Kind),
			Actual:   fmt.Sprintf("%d calls", count),
			Trace:    trace,
		}
	}
	return nil
}

// assertCallOrder checks that calls appear in the specified order.
// Calls don't need to be consecutive (intervening calls are allowed). Each
// expected entry matches the first successful call after the previous
// match, so a kind may be listed more than once.
func assertCallOrder(trace []gfx.Call, a Assertion) error {
	pos := 0
	for _, want := range a.Calls {
		op, kind, _ := strings.Cut(want, ":")
		found := false
		for pos < len(trace) {
			c := trace[pos]
			pos++
			if c.Err == "" && matches(c, op, kind) {
				found = true
				break
			}
		}
		if !found {
			return &AssertionError{
				Type:     AssertCallOrder,
				Expected: fmt.Sprintf("calls in order: %v", a.Calls),
				Actual:   fmt.Sprintf("no %s after the preceding calls", want),
				Trace:    trace,
			}
		}
	}
	return nil
}

// assertVisible checks a representation's effective visibility.
func assertVisible(a Assertion, actx *AssertionContext) error {
	v, ok := actx.Scene.View(a.View)
	if !ok {
		return fmt.Errorf("unknown view %q", a.View)
	}
	r, ok := v.Representation(a.Representation)
	if !ok {
		return fmt.Errorf("unknown representation %s/%s", a.View, a.Representation)
	}
	if got := r.Visible(); got != *a.Visible {
		return &AssertionError{
			Type:     AssertVisible,
			Expected: fmt.Sprintf("%s/%s visible=%t", a.View, a.Representation, *a.Visible),
			Actual:   fmt.Sprintf("visible=%t", got),
		}
	}
	return nil
}

// assertJournalCount checks the journalled calls, which must agree with
// the recorder.
func assertJournalCount(a Assertion, actx *AssertionContext) error {
	calls, err := actx.Store.ReadCalls(actx.Ctx, actx.RootID, store.CallFilter{
		Op:   gfx.Op(a.Op),
		Kind: gfx.Kind(a.Kind),
	})
	if err != nil {
		return fmt.Errorf("read journal: %w", err)
	}
	if len(calls) != a.Count {
		return &AssertionError{
			Type:     AssertJournalCount,
			Expected: fmt.Sprintf("%d journalled calls matching op=%q kind=%q", a.Count, a.Op, a.Kind),
			Actual:   fmt.Sprintf("%d calls", len(calls)),
			Trace:    calls,
		}
	}
	return nil
}

// assertCycleCount checks the number of journalled settle cycles.
func assertCycleCount(a Assertion, actx *AssertionContext) error {
	cycles, err := actx.Store.ReadCycles(actx.Ctx, actx.RootID)
	if err != nil {
		return fmt.Errorf("read journal: %w", err)
	}
	if len(cycles) != a.Count {
		return &AssertionError{
			Type:     AssertCycleCount,
			Expected: fmt.Sprintf("%d journalled cycles", a.Count),
			Actual:   fmt.Sprintf("%d cycles", len(cycles)),
		}
	}
	return nil
}

// assertDeletedOrder checks the exact sequence of successfully deleted kinds.
func assertDeletedOrder(trace []gfx.Call, a Assertion) error {
	deleted := []string{}
	for _, c := range trace {
		if c.Op == gfx.OpDelete && c.Err == "" {
			deleted = append(deleted, string(c.Kind))
		}
	}
	if !slices.Equal(deleted, a.Kinds) {
		return &AssertionError{
			Type:     AssertDeletedOrder,
			Expected: fmt.Sprintf("deleted kinds %v", a.Kinds),
			Actual:   fmt.Sprintf("deleted kinds %v", deleted),
			Trace:    trace,
		}
	}
	return nil
}

// assertNoErrors checks that no native call failed.
func assertNoErrors(trace []gfx.Call) error {
	for _, c := range trace {
		if c.Err != "" {
			return &AssertionError{
				Type:     AssertNoErrors,
				Expected: "no failed calls",
				Actual:   fmt.Sprintf("call %d failed: %s", c.Seq, describeCall(c)),
				Trace:    trace,
			}
		}
	}
	return nil
}
