package harness

import (
	"fmt"

	"github.com/roach88/blockdoc/internal/ir"
)

// TraceEvent records one executed step.
type TraceEvent struct {
	Step    int    `json:"step"`
	Type    string `json:"type"`
	Replica string `json:"replica,omitempty"`
	To      string `json:"to,omitempty"`
	Actions int    `json:"actions,omitempty"`
	Error   string `json:"error,omitempty"`
}

func (e TraceEvent) String() string {
	switch e.Type {
	case "sync":
		return fmt.Sprintf("[%d] sync %s -> %s", e.Step, e.Replica, e.To)
	case "sync_all":
		return fmt.Sprintf("[%d] sync_all", e.Step)
	case "actions":
		s := fmt.Sprintf("[%d] %s: %d action(s)", e.Step, e.Replica, e.Actions)
		if e.Error != "" {
			s += " failed with " + e.Error
		}
		return s
	default:
		return fmt.Sprintf("[%d] %s %s", e.Step, e.Type, e.Replica)
	}
}

// Result is the outcome of a scenario run.
type Result struct {
	// Pass is true when every step behaved as scripted and every
	// assertion held.
	Pass bool `json:"pass"`

	// Trace lists the executed steps in order.
	Trace []TraceEvent `json:"trace"`

	// Errors holds step and assertion failures. Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// States holds each replica's final document state, keyed by replica
	// name. Replicas whose state could not be extracted are absent and
	// have an entry in StateErrors instead.
	States      map[string]ir.DocumentState `json:"states,omitempty"`
	StateErrors map[string]string           `json:"state_errors,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:        true,
		Trace:       []TraceEvent{},
		Errors:      []string{},
		States:      make(map[string]ir.DocumentState),
		StateErrors: make(map[string]string),
	}
}

// AddError adds a failure message and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

func (r *Result) addTrace(e TraceEvent) {
	r.Trace = append(r.Trace, e)
}
