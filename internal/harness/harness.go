package harness

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/roach88/blockdoc/internal/delta"
	"github.com/roach88/blockdoc/internal/engine"
	"github.com/roach88/blockdoc/internal/ir"
	"github.com/roach88/blockdoc/internal/schema"
	"github.com/roach88/blockdoc/internal/testutil"
	"github.com/roach88/blockdoc/internal/textdiff"
)

// Harness executes one scenario.
type Harness struct {
	scenario *Scenario
	replicas map[string]*engine.Engine
	clock    *testutil.TimestampClock
	diff     delta.DiffFunc
}

// Option configures a run.
type Option func(*config)

type config struct {
	logger *slog.Logger
	schema *schema.Schema
}

// WithLogger routes engine logs to l. Default: discarded.
func WithLogger(l *slog.Logger) Option {
	return func(c *config) {
		c.logger = l
	}
}

// WithSchema validates blocks against s. Default: the embedded schema.
func WithSchema(s *schema.Schema) Option {
	return func(c *config) {
		c.schema = s
	}
}

// Run executes a scenario on fresh replicas and returns the result.
//
// Step failures that the scenario did not script and failed assertions
// are reported in the result; the returned error is reserved for runs that
// could not be set up.
func Run(scenario *Scenario, opts ...Option) (*Result, error) {
	cfg := &config{
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.schema == nil {
		s, err := schema.Default()
		if err != nil {
			return nil, fmt.Errorf("failed to load default schema: %w", err)
		}
		cfg.schema = s
	}

	ids := testutil.NewReplicaIDGenerator("replica")
	h := &Harness{
		scenario: scenario,
		replicas: make(map[string]*engine.Engine, len(scenario.Replicas)),
		clock:    testutil.NewTimestampClock(0),
		diff:     textdiff.New().Diff,
	}
	for _, name := range scenario.Replicas {
		h.replicas[name] = engine.New(scenario.DocID,
			engine.WithIDGenerator(ids),
			engine.WithLogger(cfg.logger.With("replica", name)),
			engine.WithSchema(cfg.schema),
		)
	}

	result := NewResult()
	for i, step := range scenario.Steps {
		if err := h.execute(i, step, result); err != nil {
			result.AddError(fmt.Sprintf("steps[%d] (%s): %v", i, step.Kind(), err))
		}
	}

	for _, name := range scenario.Replicas {
		state, err := h.replicas[name].GetDocumentState()
		if err != nil {
			result.StateErrors[name] = err.Error()
			continue
		}
		result.States[name] = state
	}

	for _, msg := range EvaluateAssertions(result, scenario.Replicas, scenario.Assertions) {
		result.AddError(msg)
	}
	return result, nil
}

func (h *Harness) execute(i int, step Step, result *Result) error {
	switch step.Kind() {
	case "init":
		result.addTrace(TraceEvent{Step: i, Type: "init", Replica: step.Init})
		_, err := h.replicas[step.Init].InitEmptyDocument()
		return err

	case "sync":
		result.addTrace(TraceEvent{Step: i, Type: "sync", Replica: step.Sync.From, To: step.Sync.To})
		return h.sync(step.Sync.From, step.Sync.To)

	case "sync_all":
		result.addTrace(TraceEvent{Step: i, Type: "sync_all"})
		return h.syncAll()

	default:
		ev := TraceEvent{Step: i, Type: "actions", Replica: step.Replica, Actions: len(step.Actions)}
		err := h.applyActions(step)
		if err != nil {
			ev.Error = string(ir.KindOf(err))
		}
		result.addTrace(ev)
		return expectOutcome(step.ExpectError, err)
	}
}

func (h *Harness) applyActions(step Step) error {
	actions, err := DecodeActions(step.Actions)
	if err != nil {
		return err
	}
	if h.scenario.AutoTimestamps {
		h.stamp(actions)
	}
	_, err = h.replicas[step.Replica].ApplyActions(actions, h.diff)
	return err
}

// stamp gives inserts without a timestamp the next clock value.
func (h *Harness) stamp(actions []ir.BlockAction) {
	for i := range actions {
		b := &actions[i].Block
		if actions[i].Action != ir.ActionInsert {
			continue
		}
		if _, ok := b.Attributes[ir.AttrTimestamp]; ok {
			continue
		}
		attrs := b.Attributes.Clone()
		if attrs == nil {
			attrs = ir.Object{}
		}
		attrs[ir.AttrTimestamp] = ir.String(h.clock.Next())
		b.Attributes = attrs
	}
}

func expectOutcome(want ir.ErrorKind, err error) error {
	switch {
	case want == "" && err != nil:
		return err
	case want != "" && err == nil:
		return fmt.Errorf("expected %s, actions succeeded", want)
	case want != "" && ir.KindOf(err) != want:
		return fmt.Errorf("expected %s, got %v", want, err)
	}
	return nil
}

func (h *Harness) sync(from, to string) error {
	update, err := h.replicas[from].EncodeState()
	if err != nil {
		return err
	}
	return h.replicas[to].ApplyUpdates([][]byte{update})
}

// syncAll delivers every replica's state to every replica as one batch.
func (h *Harness) syncAll() error {
	updates := make([][]byte, 0, len(h.replicas))
	for _, name := range h.scenario.Replicas {
		u, err := h.replicas[name].EncodeState()
		if err != nil {
			return err
		}
		updates = append(updates, u)
	}
	for _, name := range h.scenario.Replicas {
		if err := h.replicas[name].ApplyUpdates(updates); err != nil {
			return fmt.Errorf("replica %s: %w", name, err)
		}
	}
	return nil
}
