package harness

import (
	"bytes"
	"fmt"
	"os"
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/roach88/blockdoc/internal/ir"
)

// Scenario is one convergence test.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// DocID is the document id shared by every replica. Default: "scenario".
	DocID string `yaml:"doc_id,omitempty"`

	// Replicas names the replicas, in the order their ids are assigned.
	Replicas []string `yaml:"replicas"`

	// AutoTimestamps stamps inserted blocks that carry no timestamp
	// attribute with the next value of a deterministic clock.
	AutoTimestamps bool `yaml:"auto_timestamps,omitempty"`

	Steps      []Step      `yaml:"steps"`
	Assertions []Assertion `yaml:"assertions"`
}

// Step is one scripted event. Exactly one of Init, Actions, Sync, and
// SyncAll is set.
type Step struct {
	Init string `yaml:"init,omitempty"`

	// Replica applies Actions.
	Replica string           `yaml:"replica,omitempty"`
	Actions []map[string]any `yaml:"actions,omitempty"`

	// ExpectError is the error kind the action batch must fail with.
	ExpectError ir.ErrorKind `yaml:"expect_error,omitempty"`

	Sync    *SyncStep `yaml:"sync,omitempty"`
	SyncAll bool      `yaml:"sync_all,omitempty"`
}

// SyncStep ships From's state to To.
type SyncStep struct {
	From string `yaml:"from"`
	To   string `yaml:"to"`
}

// Assertion checks the final states.
type Assertion struct {
	// Type is one of the Assert* constants.
	Type string `yaml:"type"`

	// Replica restricts the check to one replica. Empty means all.
	Replica string `yaml:"replica,omitempty"`

	// Parent is the group checked by children; "root" for top level.
	Parent string `yaml:"parent,omitempty"`

	// Order is the expected child order (children).
	Order []string `yaml:"order,omitempty"`

	// Block is the checked block (block_absent, prev_id, text).
	Block string `yaml:"block,omitempty"`

	// Want is the expected prevId or text.
	Want string `yaml:"want,omitempty"`
}

// Assertion type constants.
const (
	AssertChildren    = "children"
	AssertConverged   = "converged"
	AssertBlockAbsent = "block_absent"
	AssertPrevID      = "prev_id"
	AssertText        = "text"
)

const defaultDocID = "scenario"

// Kind returns the step's kind for traces and error messages.
func (s Step) Kind() string {
	switch {
	case s.Init != "":
		return "init"
	case s.Sync != nil:
		return "sync"
	case s.SyncAll:
		return "sync_all"
	default:
		return "actions"
	}
}

// LoadScenario reads and parses a scenario YAML file. Unknown fields are
// rejected so that typos fail loudly.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses and validates scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	if scenario.DocID == "" {
		scenario.DocID = defaultDocID
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if len(s.Replicas) == 0 {
		return fmt.Errorf("replicas list is required and must be non-empty")
	}
	seen := make(map[string]bool, len(s.Replicas))
	for _, r := range s.Replicas {
		if r == "" {
			return fmt.Errorf("replica names must be non-empty")
		}
		if seen[r] {
			return fmt.Errorf("duplicate replica %q", r)
		}
		seen[r] = true
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}
	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}

	known := func(name string) bool { return slices.Contains(s.Replicas, name) }
	for i, step := range s.Steps {
		if err := validateStep(step, known); err != nil {
			return fmt.Errorf("steps[%d]: %w", i, err)
		}
	}
	for i, a := range s.Assertions {
		if err := validateAssertion(a, known); err != nil {
			return fmt.Errorf("assertions[%d]: %w", i, err)
		}
	}
	return nil
}

func validateStep(step Step, known func(string) bool) error {
	set := 0
	if step.Init != "" {
		set++
	}
	if step.Replica != "" || step.Actions != nil {
		set++
	}
	if step.Sync != nil {
		set++
	}
	if step.SyncAll {
		set++
	}
	if set != 1 {
		return fmt.Errorf("exactly one of init, actions, sync, sync_all is required")
	}

	switch step.Kind() {
	case "init":
		if !known(step.Init) {
			return fmt.Errorf("unknown replica %q", step.Init)
		}
	case "actions":
		if !known(step.Replica) {
			return fmt.Errorf("unknown replica %q", step.Replica)
		}
		if len(step.Actions) == 0 {
			return fmt.Errorf("actions list is required")
		}
	case "sync":
		if !known(step.Sync.From) || !known(step.Sync.To) {
			return fmt.Errorf("sync between unknown replicas %q and %q", step.Sync.From, step.Sync.To)
		}
	}
	if step.ExpectError != "" && step.Kind() != "actions" {
		return fmt.Errorf("expect_error only applies to actions")
	}
	return nil
}

func validateAssertion(a Assertion, known func(string) bool) error {
	if a.Replica != "" && !known(a.Replica) {
		return fmt.Errorf("unknown replica %q", a.Replica)
	}
	switch a.Type {
	case "":
		return fmt.Errorf("type is required")
	case AssertChildren:
		if a.Parent == "" {
			return fmt.Errorf("parent is required for children")
		}
	case AssertConverged:
	case AssertBlockAbsent, AssertPrevID, AssertText:
		if a.Block == "" {
			return fmt.Errorf("block is required for %s", a.Type)
		}
	default:
		return fmt.Errorf("unknown assertion type %q", a.Type)
	}
	return nil
}
