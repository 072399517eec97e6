package harness

import (
	"fmt"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/blockdoc/internal/ir"
)

// StateSnapshot is the golden record of a scenario: the final state of its
// first replica.
type StateSnapshot struct {
	ScenarioName string           `json:"scenario_name"`
	Replica      string           `json:"replica"`
	State        ir.DocumentState `json:"state"`
}

// Snapshot renders the canonical JSON golden record of a run.
func Snapshot(scenario *Scenario, result *Result) ([]byte, error) {
	first := scenario.Replicas[0]
	state, ok := result.States[first]
	if !ok {
		return nil, fmt.Errorf("replica %s has no state: %s", first, result.StateErrors[first])
	}
	return ir.MarshalCanonical(StateSnapshot{
		ScenarioName: scenario.Name,
		Replica:      first,
		State:        state,
	})
}

// RunWithGolden runs a scenario and compares its snapshot against
// testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}
	return result, AssertGolden(t, scenario, result)
}

// AssertGolden compares an existing result's snapshot against its golden
// file without re-running the scenario.
func AssertGolden(t *testing.T, scenario *Scenario, result *Result) error {
	t.Helper()

	data, err := Snapshot(scenario, result)
	if err != nil {
		return err
	}
	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenario.Name, data)
	return nil
}
