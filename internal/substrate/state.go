package substrate

import (
	"fmt"
	"slices"

	"github.com/roach88/blockdoc/internal/ir"
)

// entry is the current winner of a map key. Replay happens in id order,
// so the last write seen is the last-writer-wins result.
type entry struct {
	id      OpID
	value   ir.Value
	child   ContainerID
	kind    ChildKind
	deleted bool
}

type mapState struct {
	entries map[string]*entry
}

func newMapState() *mapState {
	return &mapState{entries: make(map[string]*entry)}
}

// state is the materialized view of a replayed op set.
type state struct {
	maps  map[ContainerID]*mapState
	texts map[ContainerID]*textState
}

func newState() *state {
	return &state{
		maps:  make(map[ContainerID]*mapState),
		texts: make(map[ContainerID]*textState),
	}
}

// rebuild replays ops in id order. Ops whose dependencies are missing are
// skipped; they take effect on a later rebuild once the dependency arrives.
func rebuild(ops []Op) *state {
	sorted := slices.Clone(ops)
	slices.SortFunc(sorted, compareOps)

	st := newState()
	for _, op := range sorted {
		_ = st.apply(op)
	}
	return st
}

func (st *state) mapFor(id ContainerID) (*mapState, bool) {
	if m, ok := st.maps[id]; ok {
		return m, true
	}
	if id.IsRoot() {
		m := newMapState()
		st.maps[id] = m
		return m, true
	}
	return nil, false
}

// errMissingDependency reports an op that references something this replica
// has not seen yet.
type errMissingDependency struct {
	op  OpID
	dep string
}

func (e *errMissingDependency) Error() string {
	return fmt.Sprintf("op %s depends on unknown %s", e.op, e.dep)
}

// apply integrates one op. It must be called in increasing id order.
func (st *state) apply(op Op) error {
	switch op.Kind {
	case OpMapSet, OpMapDelete:
		m, ok := st.mapFor(op.Target)
		if !ok {
			return &errMissingDependency{op: op.ID, dep: "map " + op.Target.String()}
		}
		e := &entry{id: op.ID}
		switch {
		case op.Kind == OpMapDelete:
			e.deleted = true
		case op.Child == ChildMap:
			e.kind = ChildMap
			e.child = ContainerID{Op: op.ID}
			st.maps[e.child] = newMapState()
		case op.Child == ChildText:
			e.kind = ChildText
			e.child = ContainerID{Op: op.ID}
			st.texts[e.child] = newTextState()
		default:
			e.value = op.Value
		}
		m.entries[op.Key] = e
		return nil

	case OpTextInsert:
		t, ok := st.texts[op.Target]
		if !ok {
			return &errMissingDependency{op: op.ID, dep: "text " + op.Target.String()}
		}
		return t.integrateInsert(op)

	case OpTextDelete, OpTextFormat:
		t, ok := st.texts[op.Target]
		if !ok {
			return &errMissingDependency{op: op.ID, dep: "text " + op.Target.String()}
		}
		units, err := t.resolveSpans(op.ID, op.Spans)
		if err != nil {
			return err
		}
		for _, u := range units {
			if op.Kind == OpTextDelete {
				u.deleted = true
			} else {
				u.attrs = mergeFormat(u.attrs, op.Attrs)
			}
		}
		return nil
	}
	return fmt.Errorf("unknown op kind %s", op.Kind)
}

// mergeFormat applies format attributes to a unit's attributes.
// A Null value removes the attribute. The result is nil when empty.
func mergeFormat(current, format ir.Object) ir.Object {
	if len(format) == 0 {
		return current
	}
	out := make(ir.Object, len(current)+len(format))
	for k, v := range current {
		out[k] = v
	}
	for k, v := range format {
		if _, isNull := v.(ir.Null); isNull {
			delete(out, k)
			continue
		}
		out[k] = v
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
