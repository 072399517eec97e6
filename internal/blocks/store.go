// Package blocks is the Block Store: the keyed collection of block records
// kept in the replicated "blocks" map.
//
// Each block is a nested map holding id, type, parentId, prevId, an
// attributes map, and an optional text. Attributes live in their own map so
// concurrent writes to different keys merge instead of overwriting each other.
package blocks

import (
	"fmt"

	"github.com/roach88/blockdoc/internal/ir"
	"github.com/roach88/blockdoc/internal/substrate"
)

// Root is the replicated map holding every block.
var Root = substrate.Root(ir.BlocksRoot)

// View is read access to the block store.
type View struct {
	r substrate.Reader
}

// NewView wraps a substrate reader.
func NewView(r substrate.Reader) View {
	return View{r: r}
}

// Store is read-write access to the block store inside one transaction.
type Store struct {
	View
	tx *substrate.Txn
}

// NewStore wraps a write transaction.
func NewStore(tx *substrate.Txn) *Store {
	return &Store{View: View{r: tx}, tx: tx}
}

// Has reports whether a block exists.
func (v View) Has(id string) bool {
	_, ok := v.r.Map(Root, id)
	return ok
}

// AllIDs returns every block id in sorted order.
func (v View) AllIDs() []string {
	return v.r.Keys(Root)
}

// Get reads a block. The second result is false when the block is absent.
func (v View) Get(id string) (ir.Block, bool, error) {
	m, ok := v.r.Map(Root, id)
	if !ok {
		return ir.Block{}, false, nil
	}

	b := ir.Block{
		ID:         id,
		Type:       v.text(m, ir.FieldType),
		ParentID:   v.text(m, ir.FieldParentID),
		PrevID:     v.text(m, ir.FieldPrevID),
		Attributes: v.attributes(m),
	}
	if stored := v.text(m, ir.FieldID); stored != "" {
		b.ID = stored
	}

	if txt, ok := v.r.Text(m, ir.FieldText); ok {
		delta, err := v.r.Delta(txt)
		if err != nil {
			return ir.Block{}, false, &ir.Error{
				Kind:    ir.KindStateEncodingFailed,
				Message: "block text could not be read",
				BlockID: id,
				Err:     err,
			}
		}
		b.Delta = delta
	}
	return b, true, nil
}

// Attributes returns a block's attributes, or nil when the block is absent.
func (v View) Attributes(id string) ir.Object {
	m, ok := v.r.Map(Root, id)
	if !ok {
		return nil
	}
	return v.attributes(m)
}

// PrevID returns a block's prevId, or "" when unset or the block is absent.
func (v View) PrevID(id string) string {
	m, ok := v.r.Map(Root, id)
	if !ok {
		return ""
	}
	return v.text(m, ir.FieldPrevID)
}

// ParentID returns a block's parentId, or "" when unset or the block is absent.
func (v View) ParentID(id string) string {
	m, ok := v.r.Map(Root, id)
	if !ok {
		return ""
	}
	return v.text(m, ir.FieldParentID)
}

// Text returns the text container of a block.
func (v View) Text(id string) (substrate.ContainerID, bool) {
	m, ok := v.r.Map(Root, id)
	if !ok {
		return substrate.ContainerID{}, false
	}
	return v.r.Text(m, ir.FieldText)
}

// Delta returns a block's text as a delta. A block without text yields an
// empty delta.
func (v View) Delta(id string) (ir.Delta, error) {
	txt, ok := v.Text(id)
	if !ok {
		return ir.Delta{}, nil
	}
	return v.r.Delta(txt)
}

// TextLen returns the length of a block's text in UTF-16 units.
func (v View) TextLen(id string) (int, error) {
	txt, ok := v.Text(id)
	if !ok {
		return 0, nil
	}
	return v.r.TextLen(txt)
}

// PointingAt returns the ids of blocks whose prevId equals prev.
func (v View) PointingAt(prev string) []string {
	var out []string
	for _, id := range v.AllIDs() {
		if v.PrevID(id) == prev {
			out = append(out, id)
		}
	}
	return out
}

func (v View) text(m substrate.ContainerID, key string) string {
	val, ok := v.r.Value(m, key)
	if !ok {
		return ""
	}
	if _, isNull := val.(ir.Null); isNull {
		return ""
	}
	return ir.TextOf(val)
}

func (v View) attributes(m substrate.ContainerID) ir.Object {
	attrs := ir.Object{}
	am, ok := v.r.Map(m, ir.FieldAttributes)
	if !ok {
		return attrs
	}
	for _, k := range v.r.Keys(am) {
		if val, ok := v.r.Value(am, k); ok {
			attrs[k] = ir.CloneValue(val)
		}
	}
	return attrs
}

// Create writes a new block record with its id and type. Any existing record
// with the same id is replaced.
func (s *Store) Create(id, typ string) error {
	m, err := s.tx.SetMap(Root, id)
	if err != nil {
		return fmt.Errorf("create block %s: %w", id, err)
	}
	if err := s.tx.Set(m, ir.FieldID, ir.String(id)); err != nil {
		return err
	}
	return s.tx.Set(m, ir.FieldType, ir.String(typ))
}

// Put writes a whole block record, replacing any existing one.
// A non-nil Delta is written as the block's text; only inserts are allowed.
func (s *Store) Put(b ir.Block) error {
	if err := s.Create(b.ID, b.Type); err != nil {
		return err
	}
	if err := s.SetParentID(b.ID, b.ParentID); err != nil {
		return err
	}
	if err := s.SetPrevID(b.ID, b.PrevID); err != nil {
		return err
	}
	if err := s.MergeAttributes(b.ID, b.Attributes); err != nil {
		return err
	}
	if b.Delta == nil {
		return nil
	}
	txt, err := s.EnsureText(b.ID)
	if err != nil {
		return err
	}
	pos := 0
	for _, op := range b.Delta {
		if op.Kind != ir.OpInsert {
			return ir.InvalidOperation("stored text may only contain inserts").WithBlock(b.ID)
		}
		if err := s.tx.InsertText(txt, pos, op.Text, op.Attributes); err != nil {
			return err
		}
		pos += op.Len()
	}
	return nil
}

func (s *Store) block(id string) (substrate.ContainerID, error) {
	m, ok := s.r.Map(Root, id)
	if !ok {
		return substrate.ContainerID{}, ir.BlockNotFound(id)
	}
	return m, nil
}

// SetParentID sets or, with "", clears a block's parentId.
func (s *Store) SetParentID(id, parent string) error {
	return s.setRef(id, ir.FieldParentID, parent)
}

// SetPrevID sets or, with "", clears a block's prevId.
func (s *Store) SetPrevID(id, prev string) error {
	return s.setRef(id, ir.FieldPrevID, prev)
}

func (s *Store) setRef(id, field, ref string) error {
	m, err := s.block(id)
	if err != nil {
		return err
	}
	if ref == "" {
		return s.tx.Delete(m, field)
	}
	return s.tx.Set(m, field, ir.String(ref))
}

// MergeAttributes writes each attribute key, leaving other keys untouched.
func (s *Store) MergeAttributes(id string, attrs ir.Object) error {
	if len(attrs) == 0 {
		return nil
	}
	m, err := s.block(id)
	if err != nil {
		return err
	}
	am, err := s.tx.GetOrCreateMap(m, ir.FieldAttributes)
	if err != nil {
		return err
	}
	for _, k := range attrs.SortedKeys() {
		if err := s.tx.Set(am, k, ir.CloneValue(attrs[k])); err != nil {
			return err
		}
	}
	return nil
}

// EnsureText returns a block's text, creating an empty one when absent.
func (s *Store) EnsureText(id string) (substrate.ContainerID, error) {
	m, err := s.block(id)
	if err != nil {
		return substrate.ContainerID{}, err
	}
	if txt, ok := s.r.Text(m, ir.FieldText); ok {
		return txt, nil
	}
	return s.tx.SetText(m, ir.FieldText)
}

// Remove deletes a block record. It fails with BLOCK_NOT_FOUND when absent.
func (s *Store) Remove(id string) (ir.Block, error) {
	b, ok, err := s.Get(id)
	if err != nil {
		return ir.Block{}, err
	}
	if !ok {
		return ir.Block{}, ir.BlockNotFound(id)
	}
	if err := s.tx.Delete(Root, id); err != nil {
		return ir.Block{}, err
	}
	return b, nil
}

// Txn exposes the underlying transaction for text edits.
func (s *Store) Txn() *substrate.Txn {
	return s.tx
}
