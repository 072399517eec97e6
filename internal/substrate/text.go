package substrate

import (
	"fmt"
	"slices"
	"unicode/utf16"

	"github.com/roach88/blockdoc/internal/ir"
)

// unit is one UTF-16 code unit of a replicated text.
type unit struct {
	id      OpID
	code    uint16
	deleted bool
	attrs   ir.Object
}

// textState is an RGA sequence. Deleted units stay as tombstones so that
// concurrent inserts can still find their origin.
type textState struct {
	units []*unit
	index map[OpID]int
}

func newTextState() *textState {
	return &textState{index: make(map[OpID]int)}
}

// integrateInsert places the run immediately after its origin.
// Ops are integrated in increasing id order, so every unit already present
// has a smaller id and the run belongs directly next to the origin.
func (t *textState) integrateInsert(op Op) error {
	pos := 0
	if !op.Origin.IsZero() {
		i, ok := t.index[op.Origin]
		if !ok {
			return &errMissingDependency{op: op.ID, dep: "text unit " + op.Origin.String()}
		}
		pos = i + 1
	}

	codes := utf16.Encode([]rune(op.Text))
	attrs := mergeFormat(nil, op.Attrs)
	run := make([]*unit, len(codes))
	for i, c := range codes {
		run[i] = &unit{id: op.ID.Offset(i), code: c, attrs: attrs}
	}

	t.units = slices.Insert(t.units, pos, run...)
	t.reindex(pos)
	return nil
}

func (t *textState) reindex(from int) {
	for i := from; i < len(t.units); i++ {
		t.index[t.units[i].id] = i
	}
}

// resolveSpans returns the units named by spans. Every unit must be known.
func (t *textState) resolveSpans(op OpID, spans []Span) ([]*unit, error) {
	var out []*unit
	for _, s := range spans {
		for i := 0; i < s.Len; i++ {
			id := s.Start.Offset(i)
			idx, ok := t.index[id]
			if !ok {
				return nil, &errMissingDependency{op: op, dep: "text unit " + id.String()}
			}
			out = append(out, t.units[idx])
		}
	}
	return out, nil
}

// length returns the number of visible units.
func (t *textState) length() int {
	n := 0
	for _, u := range t.units {
		if !u.deleted {
			n++
		}
	}
	return n
}

// originAt returns the id of the visible unit just before visible position pos.
// Position 0 yields the zero id.
func (t *textState) originAt(pos int) (OpID, error) {
	if pos == 0 {
		return OpID{}, nil
	}
	seen := 0
	for _, u := range t.units {
		if u.deleted {
			continue
		}
		seen++
		if seen == pos {
			return u.id, nil
		}
	}
	return OpID{}, fmt.Errorf("position %d out of range (length %d)", pos, seen)
}

// spansAt returns the ids of n visible units starting at visible position pos,
// compressed into runs.
func (t *textState) spansAt(pos, n int) ([]Span, error) {
	if n == 0 {
		return nil, nil
	}
	var spans []Span
	visible := 0
	taken := 0
	for _, u := range t.units {
		if u.deleted {
			continue
		}
		if visible >= pos && taken < n {
			if last := len(spans) - 1; last >= 0 && spans[last].Start.Offset(spans[last].Len) == u.id {
				spans[last].Len++
			} else {
				spans = append(spans, Span{Start: u.id, Len: 1})
			}
			taken++
		}
		visible++
	}
	if taken < n {
		return nil, fmt.Errorf("range %d+%d out of range (length %d)", pos, n, visible)
	}
	return spans, nil
}

// delta renders the visible text as insert runs grouped by attributes.
func (t *textState) delta() ir.Delta {
	out := ir.Delta{}
	var run []uint16
	var runAttrs ir.Object
	flush := func() {
		if len(run) == 0 {
			return
		}
		out = append(out, ir.Insert(string(utf16.Decode(run)), runAttrs.Clone()))
		run = nil
	}
	for _, u := range t.units {
		if u.deleted {
			continue
		}
		if len(run) > 0 && !ir.ObjectsEqual(runAttrs, u.attrs) {
			flush()
		}
		if len(run) == 0 {
			runAttrs = u.attrs
		}
		run = append(run, u.code)
	}
	flush()
	return out
}
