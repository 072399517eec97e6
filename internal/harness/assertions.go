package harness

import (
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/blockdoc/internal/ir"
)

// AssertionError is returned when an assertion fails.
type AssertionError struct {
	Type     string
	Replica  string
	Expected string
	Actual   string
	Trace    []TraceEvent
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s", e.Type)
	if e.Replica != "" {
		fmt.Fprintf(&buf, " on %s", e.Replica)
	}
	buf.WriteByte('\n')
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nSteps:\n")
		for _, ev := range e.Trace {
			fmt.Fprintf(&buf, "  %s\n", ev)
		}
	}
	return buf.String()
}

// EvaluateAssertions checks every assertion against the result's final
// states and returns one message per failure.
func EvaluateAssertions(result *Result, replicas []string, assertions []Assertion) []string {
	var failures []string
	for i, a := range assertions {
		if err := evaluate(result, replicas, a); err != nil {
			failures = append(failures, fmt.Sprintf("assertions[%d]: %v", i, err))
		}
	}
	return failures
}

func evaluate(result *Result, replicas []string, a Assertion) error {
	if a.Type == AssertConverged {
		return assertConverged(result, replicas)
	}

	targets := replicas
	if a.Replica != "" {
		targets = []string{a.Replica}
	}
	for _, name := range targets {
		state, ok := result.States[name]
		if !ok {
			return &AssertionError{
				Type:     a.Type,
				Replica:  name,
				Expected: "a document state",
				Actual:   result.StateErrors[name],
				Trace:    result.Trace,
			}
		}
		if err := check(state, a); err != nil {
			err.Replica = name
			err.Trace = result.Trace
			return err
		}
	}
	return nil
}

func check(state ir.DocumentState, a Assertion) *AssertionError {
	switch a.Type {
	case AssertChildren:
		got := state.Children[a.Parent]
		if !slices.Equal(got, a.Order) {
			return &AssertionError{
				Type:     a.Type,
				Expected: fmt.Sprintf("children of %s: %v", a.Parent, a.Order),
				Actual:   fmt.Sprintf("%v", got),
			}
		}

	case AssertBlockAbsent:
		if _, ok := state.Blocks[a.Block]; ok {
			return &AssertionError{
				Type:     a.Type,
				Expected: fmt.Sprintf("no block %s", a.Block),
				Actual:   "block exists",
			}
		}

	case AssertPrevID, AssertText:
		b, ok := state.Blocks[a.Block]
		if !ok {
			return &AssertionError{
				Type:     a.Type,
				Expected: fmt.Sprintf("block %s", a.Block),
				Actual:   "block not found",
			}
		}
		got := b.PrevID
		if a.Type == AssertText {
			got = b.Delta.PlainText()
		}
		if got != a.Want {
			return &AssertionError{
				Type:     a.Type,
				Expected: fmt.Sprintf("%s of %s = %q", a.Type, a.Block, a.Want),
				Actual:   fmt.Sprintf("%q", got),
			}
		}
	}
	return nil
}

// assertConverged requires every replica to hold a state with the same
// digest as the first replica's.
func assertConverged(result *Result, replicas []string) error {
	var want, first string
	for _, name := range replicas {
		state, ok := result.States[name]
		if !ok {
			return &AssertionError{
				Type:     AssertConverged,
				Replica:  name,
				Expected: "a document state",
				Actual:   result.StateErrors[name],
				Trace:    result.Trace,
			}
		}
		digest, err := ir.StateDigest(state)
		if err != nil {
			return fmt.Errorf("digest of %s: %w", name, err)
		}
		if first == "" {
			want, first = digest, name
			continue
		}
		if digest != want {
			return &AssertionError{
				Type:     AssertConverged,
				Replica:  name,
				Expected: fmt.Sprintf("state digest of %s (%s)", first, short(want)),
				Actual:   short(digest),
				Trace:    result.Trace,
			}
		}
	}
	return nil
}

func short(digest string) string {
	if len(digest) > 12 {
		return digest[:12]
	}
	return digest
}
