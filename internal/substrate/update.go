package substrate

import (
	"bytes"
	"errors"
	"fmt"
	"slices"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/roach88/blockdoc/internal/ir"
)

// ErrMalformedUpdate is wrapped by every update decoding failure.
var ErrMalformedUpdate = errors.New("malformed update")

// updateMagic prefixes every encoded update. The trailing byte is the
// layout version.
var updateMagic = []byte{'B', 'D', 'U', '1'}

type wireUpdate struct {
	Ops []wireOp `msgpack:"ops"`
}

// wireOp is the msgpack form of an Op. Values and attributes travel as JSON
// with sorted keys so the same op always encodes to the same bytes.
type wireOp struct {
	ID     OpID        `msgpack:"id"`
	Kind   OpKind      `msgpack:"k"`
	Target ContainerID `msgpack:"t"`
	Key    string      `msgpack:"key,omitempty"`
	Value  []byte      `msgpack:"v,omitempty"`
	Child  ChildKind   `msgpack:"ch,omitempty"`
	Origin OpID        `msgpack:"o"`
	Text   string      `msgpack:"s,omitempty"`
	Spans  []Span      `msgpack:"sp,omitempty"`
	Attrs  []byte      `msgpack:"a,omitempty"`
}

// EncodeUpdate encodes ops, sorted by id, as an update.
func EncodeUpdate(ops []Op) ([]byte, error) {
	sorted := slices.Clone(ops)
	slices.SortFunc(sorted, compareOps)

	wire := wireUpdate{Ops: make([]wireOp, 0, len(sorted))}
	for _, op := range sorted {
		w := wireOp{
			ID:     op.ID,
			Kind:   op.Kind,
			Target: op.Target,
			Key:    op.Key,
			Child:  op.Child,
			Origin: op.Origin,
			Text:   op.Text,
			Spans:  op.Spans,
		}
		if op.Kind == OpMapSet && op.Child == ChildNone {
			v, err := ir.MarshalValue(op.Value)
			if err != nil {
				return nil, fmt.Errorf("encode op %s value: %w", op.ID, err)
			}
			w.Value = v
		}
		if len(op.Attrs) > 0 {
			a, err := op.Attrs.MarshalJSON()
			if err != nil {
				return nil, fmt.Errorf("encode op %s attributes: %w", op.ID, err)
			}
			w.Attrs = a
		}
		wire.Ops = append(wire.Ops, w)
	}

	body, err := msgpack.Marshal(&wire)
	if err != nil {
		return nil, fmt.Errorf("encode update: %w", err)
	}
	return append(slices.Clone(updateMagic), body...), nil
}

// DecodeUpdate decodes an update produced by EncodeUpdate.
func DecodeUpdate(data []byte) ([]Op, error) {
	if !bytes.HasPrefix(data, updateMagic) {
		return nil, fmt.Errorf("%w: missing header", ErrMalformedUpdate)
	}

	var wire wireUpdate
	if err := msgpack.Unmarshal(data[len(updateMagic):], &wire); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedUpdate, err)
	}

	ops := make([]Op, 0, len(wire.Ops))
	for i, w := range wire.Ops {
		op, err := decodeOp(w)
		if err != nil {
			return nil, fmt.Errorf("%w: op %d: %v", ErrMalformedUpdate, i, err)
		}
		ops = append(ops, op)
	}
	return ops, nil
}

func decodeOp(w wireOp) (Op, error) {
	if w.ID.Clock == 0 || w.ID.Replica == "" {
		return Op{}, fmt.Errorf("invalid op id %s", w.ID)
	}
	if !w.Target.IsRoot() && w.Target.Op.IsZero() {
		return Op{}, fmt.Errorf("op %s has no target", w.ID)
	}

	op := Op{
		ID:     w.ID,
		Kind:   w.Kind,
		Target: w.Target,
		Key:    w.Key,
		Child:  w.Child,
		Origin: w.Origin,
		Text:   w.Text,
		Spans:  w.Spans,
	}

	switch w.Kind {
	case OpMapSet:
		switch w.Child {
		case ChildMap, ChildText:
		case ChildNone:
			v, err := ir.UnmarshalValue(w.Value)
			if err != nil {
				return Op{}, fmt.Errorf("op %s value: %w", w.ID, err)
			}
			op.Value = v
		default:
			return Op{}, fmt.Errorf("op %s has unknown child kind %d", w.ID, w.Child)
		}
	case OpMapDelete, OpTextInsert, OpTextDelete, OpTextFormat:
	default:
		return Op{}, fmt.Errorf("op %s has unknown kind %d", w.ID, w.Kind)
	}

	for _, s := range w.Spans {
		if s.Len < 1 {
			return Op{}, fmt.Errorf("op %s has empty span", w.ID)
		}
	}

	if len(w.Attrs) > 0 {
		v, err := ir.UnmarshalValue(w.Attrs)
		if err != nil {
			return Op{}, fmt.Errorf("op %s attributes: %w", w.ID, err)
		}
		attrs, ok := v.(ir.Object)
		if !ok {
			return Op{}, fmt.Errorf("op %s attributes are not an object", w.ID)
		}
		op.Attrs = attrs
	}
	return op, nil
}

// MergeUpdates compacts updates into one. The result holds the union of
// their ops, de-duplicated and sorted, so merging is commutative,
// associative, and idempotent. Any undecodable input fails the whole call.
func MergeUpdates(updates [][]byte) ([]byte, error) {
	seen := make(map[OpID]Op)
	for i, u := range updates {
		ops, err := DecodeUpdate(u)
		if err != nil {
			return nil, fmt.Errorf("update %d: %w", i, err)
		}
		for _, op := range ops {
			seen[op.ID] = op
		}
	}

	all := make([]Op, 0, len(seen))
	for _, op := range seen {
		all = append(all, op)
	}
	return EncodeUpdate(all)
}
