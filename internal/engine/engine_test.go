package engine

import (
	"errors"
	"io"
	"log/slog"
	"maps"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/blockdoc/internal/ir"
	"github.com/roach88/blockdoc/internal/schema"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newReplica(t *testing.T, replica string, opts ...Option) *Engine {
	t.Helper()
	opts = append([]Option{WithReplicaID(replica), WithLogger(quietLogger())}, opts...)
	return New("doc-1", opts...)
}

// hints builds the block payload of an action.
type hints struct {
	parent, prev, next, oldParent string
	device, ts                    string
	text                          string
	attrs                         ir.Object
}

func blockOf(id string, s hints) ir.ActionBlock {
	attrs := ir.Object{}
	for k, v := range s.attrs {
		attrs[k] = v
	}
	if s.device != "" {
		attrs[ir.AttrDevice] = ir.String(s.device)
	}
	if s.ts != "" {
		attrs[ir.AttrTimestamp] = ir.String(s.ts)
	}
	b := ir.ActionBlock{
		ID:          id,
		Type:        "paragraph",
		Attributes:  attrs,
		ParentID:    s.parent,
		PrevID:      s.prev,
		NextID:      s.next,
		OldParentID: s.oldParent,
	}
	if s.text != "" {
		b.Delta = ir.Delta{ir.Insert(s.text, nil)}
	}
	return b
}

func insertAction(id string, s hints) ir.BlockAction {
	return ir.BlockAction{Action: ir.ActionInsert, Block: blockOf(id, s)}
}

func updateAction(id string, s hints) ir.BlockAction {
	b := blockOf(id, s)
	return ir.BlockAction{Action: ir.ActionUpdate, Block: b}
}

func deleteAction(id string) ir.BlockAction {
	return ir.BlockAction{Action: ir.ActionDelete, Block: ir.ActionBlock{ID: id}}
}

func moveAction(id string, s hints) ir.BlockAction {
	return ir.BlockAction{Action: ir.ActionMove, Block: blockOf(id, s)}
}

// replaceAll is a diff collaborator that deletes the current text and
// inserts the proposal.
func replaceAll(current, proposed string) (string, error) {
	cur, err := ir.ParseDelta(current)
	if err != nil {
		return "", err
	}
	prop, err := ir.ParseDelta(proposed)
	if err != nil {
		return "", err
	}
	ops := ir.Delta{}
	if n := ir.UTF16Len(cur.PlainText()); n > 0 {
		ops = append(ops, ir.Delete(n))
	}
	return append(ops, prop...).String(), nil
}

func mustApply(t *testing.T, e *Engine, actions ...ir.BlockAction) []byte {
	t.Helper()
	update, err := e.ApplyActions(actions, replaceAll)
	require.NoError(t, err)
	return update
}

func mustState(t *testing.T, e *Engine) ir.DocumentState {
	t.Helper()
	state, err := e.GetDocumentState()
	require.NoError(t, err)
	return state
}

func mustSync(t *testing.T, to *Engine, updates ...[]byte) {
	t.Helper()
	require.NoError(t, to.ApplyUpdates(updates))
}

func TestInitEmptyDocument(t *testing.T) {
	a := newReplica(t, "r1")
	update, err := a.InitEmptyDocument()
	require.NoError(t, err)
	require.NotEmpty(t, update)

	state := mustState(t, a)
	assert.Equal(t, "doc-1", state.DocID)
	assert.Empty(t, state.Blocks)
	assert.Empty(t, state.Children)
	assert.Equal(t, "", state.RootID)

	b := newReplica(t, "r2")
	mustSync(t, b, update)
	assert.Equal(t, state, mustState(t, b))
}

func TestInitEmptyDocument_Twice(t *testing.T) {
	a := newReplica(t, "r1")
	first, err := a.InitEmptyDocument()
	require.NoError(t, err)
	second, err := a.InitEmptyDocument()
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestGetDocumentState_Uninitialized(t *testing.T) {
	_, err := newReplica(t, "r1").GetDocumentState()
	require.Error(t, err)
	assert.Equal(t, ir.KindStateError, ir.KindOf(err))
}

func TestApplyActions_InitializesImplicitly(t *testing.T) {
	e := newReplica(t, "r1")
	mustApply(t, e, insertAction("a", hints{device: "d1", ts: "1"}))
	assert.Equal(t, []string{"a"}, mustState(t, e).Children[ir.TopLevelGroup])
}

func TestInsert_WritesRecord(t *testing.T) {
	e := newReplica(t, "r1")
	mustApply(t, e,
		insertAction("page", hints{device: "d1", ts: "0"}),
		insertAction("p1", hints{parent: "page", device: "d1", ts: "1", text: "Hello", attrs: ir.Object{"level": ir.Int(2)}}),
	)

	state := mustState(t, e)
	require.Contains(t, state.Blocks, "p1")
	p1 := state.Blocks["p1"]
	assert.Equal(t, "paragraph", p1.Type)
	assert.Equal(t, "page", p1.ParentID)
	assert.Equal(t, "", p1.PrevID)
	assert.Equal(t, ir.Int(2), p1.Attributes["level"])
	assert.Equal(t, ir.Delta{ir.Insert("Hello", nil)}, p1.Delta)

	assert.Nil(t, state.Blocks["page"].Delta, "blocks without text carry no delta")
	assert.Equal(t, []string{"page"}, state.Children[ir.TopLevelGroup])
	assert.Equal(t, []string{"p1"}, state.Children["page"])
}

func TestInsert_DefaultParentIsTopLevel(t *testing.T) {
	e := newReplica(t, "r1")
	mustApply(t, e, insertAction("a", hints{parent: ir.DefaultParent, device: "d1", ts: "1"}))

	state := mustState(t, e)
	assert.Equal(t, "", state.Blocks["a"].ParentID)
	assert.Equal(t, []string{"a"}, state.Children[ir.TopLevelGroup])
}

func TestInsert_BetweenExistingBlocks(t *testing.T) {
	e := newReplica(t, "r1")
	mustApply(t, e,
		insertAction("a", hints{device: "d1", ts: "1"}),
		insertAction("c", hints{prev: "a", device: "d1", ts: "2"}),
	)
	mustApply(t, e, insertAction("b", hints{prev: "a", device: "d1", ts: "3"}))

	state := mustState(t, e)
	assert.Equal(t, "b", state.Blocks["c"].PrevID, "the old follower now follows the new block")
	assert.Equal(t, []string{"a", "b", "c"}, state.Children[ir.TopLevelGroup])
}

func TestInsert_NextIDJoinsNeighborBucket(t *testing.T) {
	e := newReplica(t, "r1")
	mustApply(t, e, insertAction("head", hints{device: "d1", ts: "5"}))
	mustApply(t, e, insertAction("pasted", hints{device: "d9", ts: "9", next: "head"}))

	state := mustState(t, e)
	assert.Equal(t, "pasted", state.Blocks["head"].PrevID)
	assert.Equal(t, "d1", state.Blocks["pasted"].Device())
	assert.Equal(t, []string{"pasted", "head"}, state.Children[ir.TopLevelGroup])
}

func TestInsert_SelfReferenceRejected(t *testing.T) {
	e := newReplica(t, "r1")
	_, err := e.ApplyActions([]ir.BlockAction{insertAction("a", hints{prev: "a"})}, nil)
	assert.True(t, ir.IsInvalidOperation(err))
}

func TestInsert_MissingIDRejected(t *testing.T) {
	e := newReplica(t, "r1")
	_, err := e.ApplyActions([]ir.BlockAction{insertAction("", hints{})}, nil)
	assert.True(t, ir.IsInvalidOperation(err))
}

func TestUpdate_MergesAttributesAndReplacesText(t *testing.T) {
	e := newReplica(t, "r1")
	mustApply(t, e, insertAction("a", hints{device: "d1", ts: "1", text: "cat"}))
	mustApply(t, e, updateAction("a", hints{attrs: ir.Object{"color": ir.String("red")}, text: "bat"}))

	a := mustState(t, e).Blocks["a"]
	assert.Equal(t, ir.Object{
		"device":    ir.String("d1"),
		"timestamp": ir.String("1"),
		"color":     ir.String("red"),
	}, a.Attributes)
	assert.Equal(t, "bat", a.Delta.PlainText())
}

func TestUpdate_WithoutDiffAppliesOps(t *testing.T) {
	e := newReplica(t, "r1")
	mustApply(t, e, insertAction("a", hints{text: "Hello"}))

	action := ir.BlockAction{Action: ir.ActionUpdate, Block: ir.ActionBlock{
		ID:    "a",
		Delta: ir.Delta{ir.Retain(5, ir.Object{"bold": ir.Bool(true)}), ir.Insert("!", nil)},
	}}
	_, err := e.ApplyActions([]ir.BlockAction{action}, nil)
	require.NoError(t, err)

	assert.Equal(t, ir.Delta{
		ir.Insert("Hello", ir.Object{"bold": ir.Bool(true)}),
		ir.Insert("!", nil),
	}, mustState(t, e).Blocks["a"].Delta)
}

func TestUpdate_MissingBlock(t *testing.T) {
	e := newReplica(t, "r1")
	_, err := e.ApplyActions([]ir.BlockAction{updateAction("ghost", hints{text: "x"})}, nil)
	require.Error(t, err)
	assert.True(t, ir.IsBlockNotFound(err))
}

func TestApplyActions_FailedBatchAppliesNothing(t *testing.T) {
	e := newReplica(t, "r1")
	_, err := e.InitEmptyDocument()
	require.NoError(t, err)
	before := mustState(t, e)

	_, err = e.ApplyActions([]ir.BlockAction{
		insertAction("a", hints{device: "d1", ts: "1"}),
		updateAction("ghost", hints{text: "x"}),
	}, replaceAll)
	require.Error(t, err)

	assert.Equal(t, before, mustState(t, e))
}

func TestBoundsRejection_TextUnchanged(t *testing.T) {
	e := newReplica(t, "r1")
	mustApply(t, e, insertAction("a", hints{text: "12345"}))

	action := ir.BlockAction{Action: ir.ActionUpdate, Block: ir.ActionBlock{
		ID:    "a",
		Delta: ir.Delta{ir.Retain(100, nil)},
	}}
	_, err := e.ApplyActions([]ir.BlockAction{action}, nil)
	require.Error(t, err)
	assert.True(t, ir.IsInvalidOperation(err))

	var de *ir.Error
	require.ErrorAs(t, err, &de)
	assert.Equal(t, "a", de.BlockID)
	assert.Equal(t, ir.Delta{ir.Insert("12345", nil)}, mustState(t, e).Blocks["a"].Delta)
}

func TestDelete_CascadesToDescendants(t *testing.T) {
	e := newReplica(t, "r1")
	mustApply(t, e,
		insertAction("x", hints{device: "d1", ts: "1"}),
		insertAction("keep", hints{prev: "x", device: "d1", ts: "2"}),
		insertAction("c1", hints{parent: "x", device: "d1", ts: "3"}),
		insertAction("c2", hints{parent: "x", prev: "c1", device: "d1", ts: "4"}),
		insertAction("g1", hints{parent: "c1", device: "d1", ts: "5"}),
	)
	mustApply(t, e, deleteAction("x"))

	state := mustState(t, e)
	assert.Equal(t, []string{"keep"}, slices.Sorted(maps.Keys(state.Blocks)))
	for parent, children := range state.Children {
		assert.NotEqual(t, "x", parent)
		assert.NotContains(t, children, "x")
	}
	assert.Equal(t, "", state.Blocks["keep"].PrevID)
	assert.Equal(t, "d1", state.Blocks["keep"].Device())
}

func TestDelete_ParentCycleTerminates(t *testing.T) {
	e := newReplica(t, "r1")
	mustApply(t, e,
		insertAction("keep", hints{device: "d1", ts: "0"}),
		insertAction("self", hints{parent: "self", device: "d1", ts: "1"}),
		insertAction("a", hints{parent: "b", device: "d1", ts: "2"}),
		insertAction("b", hints{parent: "a", device: "d1", ts: "3"}),
	)

	mustApply(t, e, deleteAction("self"))
	state := mustState(t, e)
	assert.NotContains(t, state.Blocks, "self")
	assert.Len(t, state.Blocks, 3)

	mustApply(t, e, deleteAction("a"))
	state = mustState(t, e)
	assert.Equal(t, []string{"keep"}, slices.Sorted(maps.Keys(state.Blocks)))
	assert.Equal(t, map[string][]string{ir.TopLevelGroup: {"keep"}}, state.Children)
}

func TestDelete_MissingBlock(t *testing.T) {
	e := newReplica(t, "r1")
	_, err := e.ApplyActions([]ir.BlockAction{deleteAction("ghost")}, nil)
	assert.True(t, ir.IsBlockNotFound(err))
}

func TestDelete_ChainRepair(t *testing.T) {
	e := newReplica(t, "r1")
	mustApply(t, e,
		insertAction("A", hints{device: "d1", ts: "1"}),
		insertAction("B", hints{prev: "A", device: "d1", ts: "2"}),
		insertAction("C", hints{prev: "B", device: "d1", ts: "3"}),
	)
	mustApply(t, e, deleteAction("B"))

	state := mustState(t, e)
	assert.Equal(t, "A", state.Blocks["C"].PrevID)
	assert.Equal(t, []string{"A", "C"}, state.Children[ir.TopLevelGroup])
}

func TestMove_ToAnotherParent(t *testing.T) {
	e := newReplica(t, "r1")
	mustApply(t, e,
		insertAction("p", hints{device: "d1", ts: "0"}),
		insertAction("q", hints{prev: "p", device: "d1", ts: "0a"}),
		insertAction("a", hints{parent: "p", device: "d1", ts: "1"}),
		insertAction("b", hints{parent: "p", prev: "a", device: "d1", ts: "2"}),
		insertAction("c", hints{parent: "p", prev: "b", device: "d1", ts: "3"}),
		insertAction("z", hints{parent: "q", device: "d1", ts: "4"}),
	)
	mustApply(t, e, moveAction("b", hints{parent: "q", oldParent: "p", prev: "z"}))

	state := mustState(t, e)
	assert.Equal(t, "q", state.Blocks["b"].ParentID)
	assert.Equal(t, "z", state.Blocks["b"].PrevID)
	assert.Equal(t, "a", state.Blocks["c"].PrevID)
	assert.Equal(t, []string{"a", "c"}, state.Children["p"])
	assert.Equal(t, []string{"z", "b"}, state.Children["q"])
}

func TestMove_WithinParentToHead(t *testing.T) {
	e := newReplica(t, "r1")
	mustApply(t, e,
		insertAction("a", hints{device: "d1", ts: "1"}),
		insertAction("b", hints{prev: "a", device: "d1", ts: "2"}),
	)
	mustApply(t, e, moveAction("b", hints{parent: ir.DefaultParent, oldParent: ir.DefaultParent, next: "a"}))

	state := mustState(t, e)
	assert.Equal(t, "", state.Blocks["b"].PrevID)
	assert.Equal(t, "b", state.Blocks["a"].PrevID)
	assert.Equal(t, []string{"b", "a"}, state.Children[ir.TopLevelGroup])
}

func TestMove_ToTopLevel(t *testing.T) {
	e := newReplica(t, "r1")
	mustApply(t, e,
		insertAction("p", hints{device: "d1", ts: "1"}),
		insertAction("a", hints{parent: "p", device: "d1", ts: "2"}),
	)
	mustApply(t, e, moveAction("a", hints{parent: ir.DefaultParent, oldParent: "p", prev: "p"}))

	state := mustState(t, e)
	assert.Equal(t, "", state.Blocks["a"].ParentID)
	assert.Equal(t, []string{"p", "a"}, state.Children[ir.TopLevelGroup])
}

func TestMove_RequiresParents(t *testing.T) {
	e := newReplica(t, "r1")
	mustApply(t, e, insertAction("a", hints{}))

	_, err := e.ApplyActions([]ir.BlockAction{moveAction("a", hints{parent: "p"})}, nil)
	assert.True(t, ir.IsInvalidOperation(err))

	_, err = e.ApplyActions([]ir.BlockAction{moveAction("ghost", hints{parent: "p", oldParent: "q"})}, nil)
	assert.True(t, ir.IsBlockNotFound(err))
}

func TestMove_PathIsIgnored(t *testing.T) {
	e := newReplica(t, "r1")
	mustApply(t, e,
		insertAction("a", hints{device: "d1", ts: "1"}),
		insertAction("b", hints{prev: "a", device: "d1", ts: "2"}),
	)
	move := moveAction("a", hints{parent: ir.DefaultParent, oldParent: ir.DefaultParent, prev: "b"})
	move.Path = []uint32{0}
	move.OldPath = []uint32{0}
	mustApply(t, e, move)

	assert.Equal(t, []string{"b", "a"}, mustState(t, e).Children[ir.TopLevelGroup])
}

func TestDevicePriorityOrdering(t *testing.T) {
	d1 := newReplica(t, "r1")
	d2 := newReplica(t, "r2")

	u0, err := d1.InitEmptyDocument()
	require.NoError(t, err)
	u1 := mustApply(t, d1, insertAction("a1", hints{device: "D1", ts: "1"}))
	mustSync(t, d2, u0, u1)

	u2 := mustApply(t, d1, insertAction("a2", hints{parent: ir.DefaultParent, prev: "a1", device: "D1", ts: "2"}))
	u3 := mustApply(t, d2, insertAction("b1", hints{parent: ir.DefaultParent, prev: "a1", device: "D2", ts: "1.5"}))

	mustSync(t, d1, u3)
	mustSync(t, d2, u2)

	want := []string{"a1", "a2", "b1"}
	assert.Equal(t, want, mustState(t, d1).Children[ir.TopLevelGroup])
	assert.Equal(t, want, mustState(t, d2).Children[ir.TopLevelGroup])
}

func TestConvergence_DifferentDeliveryOrders(t *testing.T) {
	a := newReplica(t, "r1")
	b := newReplica(t, "r2")

	u0, err := a.InitEmptyDocument()
	require.NoError(t, err)
	u1 := mustApply(t, a,
		insertAction("page", hints{device: "A", ts: "0"}),
		insertAction("p1", hints{parent: "page", device: "A", ts: "1", text: "hello"}),
		insertAction("p2", hints{parent: "page", prev: "p1", device: "A", ts: "2"}),
	)
	mustSync(t, b, u0, u1)

	// Concurrent edits.
	var fromA, fromB [][]byte
	fromA = append(fromA, mustApply(t, a, updateAction("p1", hints{text: "hello world"})))
	fromA = append(fromA, mustApply(t, a, insertAction("a3", hints{parent: "page", prev: "p1", device: "A", ts: "3"})))
	fromA = append(fromA, mustApply(t, a, moveAction("p2", hints{parent: ir.DefaultParent, oldParent: "page", prev: "page"})))

	fromB = append(fromB, mustApply(t, b, updateAction("p1", hints{attrs: ir.Object{"bold": ir.Bool(true)}})))
	fromB = append(fromB, mustApply(t, b, insertAction("b3", hints{parent: "page", prev: "p1", device: "B", ts: "2.5"})))
	fromB = append(fromB, mustApply(t, b, deleteAction("p2")))

	// A receives B's updates in order; B receives A's reversed, one at a time.
	mustSync(t, a, fromB...)
	for i := len(fromA) - 1; i >= 0; i-- {
		mustSync(t, b, fromA[i])
	}

	stateA, stateB := mustState(t, a), mustState(t, b)
	assert.Equal(t, stateA, stateB)

	digestA, err := ir.StateDigest(stateA)
	require.NoError(t, err)
	digestB, err := ir.StateDigest(stateB)
	require.NoError(t, err)
	assert.Equal(t, digestA, digestB)

	assert.Equal(t, "hello world", stateA.Blocks["p1"].Delta.PlainText())
	assert.Equal(t, ir.Bool(true), stateA.Blocks["p1"].Attributes["bold"])
	assert.NotContains(t, stateA.Blocks, "p2")
}

func TestConvergence_MergedVersusIncremental(t *testing.T) {
	src := newReplica(t, "r1")
	var log [][]byte
	u, err := src.InitEmptyDocument()
	require.NoError(t, err)
	log = append(log, u)
	log = append(log, mustApply(t, src, insertAction("a", hints{device: "d", ts: "1", text: "one"})))
	log = append(log, mustApply(t, src, insertAction("b", hints{prev: "a", device: "d", ts: "2"})))
	log = append(log, mustApply(t, src, updateAction("a", hints{text: "two"})))
	log = append(log, mustApply(t, src, deleteAction("b")))

	incremental := newReplica(t, "r2")
	for _, u := range log {
		mustSync(t, incremental, u)
	}

	merged, err := src.MergeUpdates(log)
	require.NoError(t, err)
	batch := newReplica(t, "r3")
	mustSync(t, batch, merged)

	assert.Equal(t, mustState(t, src), mustState(t, incremental))
	assert.Equal(t, mustState(t, src), mustState(t, batch))
}

func TestIdempotence(t *testing.T) {
	src := newReplica(t, "r1")
	_, err := src.InitEmptyDocument()
	require.NoError(t, err)
	mustApply(t, src,
		insertAction("a", hints{device: "d", ts: "1", text: "abc"}),
		insertAction("b", hints{prev: "a", device: "d", ts: "2"}),
	)
	log, err := src.EncodeState()
	require.NoError(t, err)

	once := newReplica(t, "r2")
	mustSync(t, once, log)

	twice := newReplica(t, "r3")
	doubled, err := twice.MergeUpdates([][]byte{log, log})
	require.NoError(t, err)
	mustSync(t, twice, doubled)
	mustSync(t, twice, log)

	assert.Equal(t, mustState(t, once), mustState(t, twice))
}

func TestRoundTrip(t *testing.T) {
	a := newReplica(t, "r1")
	mustApply(t, a,
		insertAction("page", hints{device: "d", ts: "0"}),
		insertAction("h", hints{parent: "page", device: "d", ts: "1", text: "Title \U0001F600"}),
		insertAction("p", hints{parent: "page", prev: "h", device: "d", ts: "2", text: "body"}),
	)
	_, err := a.SetRootNodeID("page")
	require.NoError(t, err)

	snapshot, err := a.EncodeState()
	require.NoError(t, err)

	b := newReplica(t, "r2")
	_, err = b.InitEmptyDocument()
	require.NoError(t, err)
	mustSync(t, b, snapshot)

	assert.Equal(t, mustState(t, a), mustState(t, b))
	assert.Equal(t, "page", mustState(t, b).RootID)
}

func TestCycleSafety(t *testing.T) {
	e := newReplica(t, "r1")
	mustApply(t, e,
		insertAction("f1", hints{prev: "f2", device: "d", ts: "1"}),
		insertAction("f2", hints{prev: "f1", device: "d", ts: "2"}),
	)

	state := mustState(t, e)
	require.Equal(t, "f2", state.Blocks["f1"].PrevID)
	require.Equal(t, "f1", state.Blocks["f2"].PrevID)
	assert.ElementsMatch(t, []string{"f1", "f2"}, state.Children[ir.TopLevelGroup])
}

func TestApplyUpdates_DecodeFailures(t *testing.T) {
	src := newReplica(t, "r1")
	good := mustApply(t, src, insertAction("a", hints{device: "d", ts: "1"}))

	dst := newReplica(t, "r2")
	_, err := dst.InitEmptyDocument()
	require.NoError(t, err)
	before := mustState(t, dst)

	err = dst.ApplyUpdates([][]byte{good, []byte("garbage"), good, {}})
	require.Error(t, err)
	assert.Equal(t, ir.KindUpdateDecodingFailed, ir.KindOf(err))

	var failures *DecodeFailures
	require.True(t, errors.As(err, &failures))
	assert.Equal(t, []int{1, 3}, failures.Indexes)
	assert.Contains(t, failures.Error(), "update 1")
	assert.Regexp(t, `^2 update\(s\) failed to decode: update 1: .+; update 3: `, failures.Error())

	assert.Equal(t, before, mustState(t, dst), "a rejected batch leaves the replica untouched")
}

func TestMergeUpdates_Failure(t *testing.T) {
	e := newReplica(t, "r1")
	_, err := e.MergeUpdates([][]byte{[]byte("nope")})
	require.Error(t, err)
	assert.Equal(t, ir.KindMergeError, ir.KindOf(err))
}

func TestMergeUpdates_Commutative(t *testing.T) {
	a := newReplica(t, "r1")
	b := newReplica(t, "r2")
	ua := mustApply(t, a, insertAction("a", hints{device: "A", ts: "1"}))
	ub := mustApply(t, b, insertAction("b", hints{device: "B", ts: "1"}))

	ab, err := a.MergeUpdates([][]byte{ua, ub})
	require.NoError(t, err)
	ba, err := b.MergeUpdates([][]byte{ub, ua})
	require.NoError(t, err)
	assert.Equal(t, ab, ba)
}

func TestSetRootNodeID(t *testing.T) {
	a := newReplica(t, "r1")
	update, err := a.SetRootNodeID("page-1")
	require.NoError(t, err)
	assert.Equal(t, "page-1", mustState(t, a).RootID)

	b := newReplica(t, "r2")
	mustSync(t, b, update)
	assert.Equal(t, "page-1", mustState(t, b).RootID)

	_, err = a.SetRootNodeID("")
	assert.True(t, ir.IsInvalidOperation(err))
}

func TestSchemaValidation(t *testing.T) {
	s, err := schema.Default()
	require.NoError(t, err)
	e := newReplica(t, "r1", WithSchema(s))

	heading := insertAction("h", hints{device: "d", ts: "1", attrs: ir.Object{"level": ir.Int(2)}})
	heading.Block.Type = "heading"
	mustApply(t, e, heading)

	_, err = e.ApplyActions([]ir.BlockAction{updateAction("h", hints{attrs: ir.Object{"level": ir.Int(9)}})}, nil)
	require.Error(t, err)
	assert.Equal(t, ir.KindValidationError, ir.KindOf(err))
	assert.Equal(t, ir.Int(2), mustState(t, e).Blocks["h"].Attributes["level"])
}
