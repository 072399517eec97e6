package substrate

import (
	"fmt"
	"slices"

	"github.com/roach88/blockdoc/internal/ir"
)

// Reader is read access to a document. Both read-only views and write
// transactions implement it; a transaction reads its own writes.
type Reader interface {
	// Keys returns the live keys of a map in sorted order.
	Keys(m ContainerID) []string

	// Value returns the scalar stored under key.
	Value(m ContainerID, key string) (ir.Value, bool)

	// Map returns the nested map stored under key.
	Map(m ContainerID, key string) (ContainerID, bool)

	// Text returns the nested text stored under key.
	Text(m ContainerID, key string) (ContainerID, bool)

	// Delta returns the content of a text as insert runs.
	Delta(t ContainerID) (ir.Delta, error)

	// TextLen returns the length of a text in UTF-16 units.
	TextLen(t ContainerID) (int, error)
}

type reader struct {
	st *state
}

func (r reader) live(m ContainerID, key string) (*entry, bool) {
	ms, ok := r.st.maps[m]
	if !ok {
		return nil, false
	}
	e, ok := ms.entries[key]
	if !ok || e.deleted {
		return nil, false
	}
	return e, true
}

func (r reader) Keys(m ContainerID) []string {
	ms, ok := r.st.maps[m]
	if !ok {
		return nil
	}
	keys := make([]string, 0, len(ms.entries))
	for k, e := range ms.entries {
		if !e.deleted {
			keys = append(keys, k)
		}
	}
	slices.Sort(keys)
	return keys
}

func (r reader) Value(m ContainerID, key string) (ir.Value, bool) {
	e, ok := r.live(m, key)
	if !ok || e.kind != ChildNone {
		return nil, false
	}
	return e.value, true
}

func (r reader) Map(m ContainerID, key string) (ContainerID, bool) {
	e, ok := r.live(m, key)
	if !ok || e.kind != ChildMap {
		return ContainerID{}, false
	}
	return e.child, true
}

func (r reader) Text(m ContainerID, key string) (ContainerID, bool) {
	e, ok := r.live(m, key)
	if !ok || e.kind != ChildText {
		return ContainerID{}, false
	}
	return e.child, true
}

func (r reader) text(t ContainerID) (*textState, error) {
	ts, ok := r.st.texts[t]
	if !ok {
		return nil, fmt.Errorf("text %s does not exist", t)
	}
	return ts, nil
}

func (r reader) Delta(t ContainerID) (ir.Delta, error) {
	ts, err := r.text(t)
	if err != nil {
		return nil, err
	}
	return ts.delta(), nil
}

func (r reader) TextLen(t ContainerID) (int, error) {
	ts, err := r.text(t)
	if err != nil {
		return 0, err
	}
	return ts.length(), nil
}

// Txn is a write transaction. Every mutation is stamped, applied to the live
// state immediately, and recorded so the transaction can be encoded as an
// update or rolled back.
type Txn struct {
	reader
	doc *Doc
	ops []Op
}

func (tx *Txn) emit(op Op) error {
	if err := tx.st.apply(op); err != nil {
		return err
	}
	tx.ops = append(tx.ops, op)
	return nil
}

func (tx *Txn) nextID() OpID {
	return OpID{Clock: tx.doc.clock.Next(), Replica: tx.doc.replica}
}

// Set writes a scalar value under key.
func (tx *Txn) Set(m ContainerID, key string, v ir.Value) error {
	if v == nil {
		v = ir.Null{}
	}
	return tx.emit(Op{ID: tx.nextID(), Kind: OpMapSet, Target: m, Key: key, Value: v})
}

// SetMap creates a new empty map under key, replacing whatever was there.
func (tx *Txn) SetMap(m ContainerID, key string) (ContainerID, error) {
	op := Op{ID: tx.nextID(), Kind: OpMapSet, Target: m, Key: key, Child: ChildMap}
	if err := tx.emit(op); err != nil {
		return ContainerID{}, err
	}
	return ContainerID{Op: op.ID}, nil
}

// SetText creates a new empty text under key, replacing whatever was there.
func (tx *Txn) SetText(m ContainerID, key string) (ContainerID, error) {
	op := Op{ID: tx.nextID(), Kind: OpMapSet, Target: m, Key: key, Child: ChildText}
	if err := tx.emit(op); err != nil {
		return ContainerID{}, err
	}
	return ContainerID{Op: op.ID}, nil
}

// GetOrCreateMap returns the nested map under key, creating it when absent.
func (tx *Txn) GetOrCreateMap(m ContainerID, key string) (ContainerID, error) {
	if id, ok := tx.Map(m, key); ok {
		return id, nil
	}
	return tx.SetMap(m, key)
}

// Delete removes key. Removing an absent key is a no-op.
func (tx *Txn) Delete(m ContainerID, key string) error {
	if _, ok := tx.live(m, key); !ok {
		return nil
	}
	return tx.emit(Op{ID: tx.nextID(), Kind: OpMapDelete, Target: m, Key: key})
}

// InsertText inserts s at UTF-16 position pos with the given formatting.
func (tx *Txn) InsertText(t ContainerID, pos int, s string, attrs ir.Object) error {
	n := ir.UTF16Len(s)
	if n == 0 {
		return nil
	}
	ts, err := tx.text(t)
	if err != nil {
		return err
	}
	origin, err := ts.originAt(pos)
	if err != nil {
		return err
	}
	id := OpID{Clock: tx.doc.clock.Reserve(n), Replica: tx.doc.replica}
	return tx.emit(Op{ID: id, Kind: OpTextInsert, Target: t, Origin: origin, Text: s, Attrs: attrs.Clone()})
}

// DeleteText removes n UTF-16 units starting at pos.
func (tx *Txn) DeleteText(t ContainerID, pos, n int) error {
	return tx.spanOp(t, OpTextDelete, pos, n, nil)
}

// FormatText applies attrs to n UTF-16 units starting at pos.
// A Null attribute value removes that attribute.
func (tx *Txn) FormatText(t ContainerID, pos, n int, attrs ir.Object) error {
	if len(attrs) == 0 {
		return nil
	}
	return tx.spanOp(t, OpTextFormat, pos, n, attrs.Clone())
}

func (tx *Txn) spanOp(t ContainerID, kind OpKind, pos, n int, attrs ir.Object) error {
	if n == 0 {
		return nil
	}
	ts, err := tx.text(t)
	if err != nil {
		return err
	}
	spans, err := ts.spansAt(pos, n)
	if err != nil {
		return err
	}
	return tx.emit(Op{ID: tx.nextID(), Kind: kind, Target: t, Spans: spans, Attrs: attrs})
}

// OpCount returns the number of ops recorded so far.
func (tx *Txn) OpCount() int {
	return len(tx.ops)
}
