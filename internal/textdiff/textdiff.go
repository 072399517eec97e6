// Package textdiff turns a whole-text replacement into a minimal edit op
// list. It is the diff collaborator the CLI and scenario harness hand to
// the engine; the engine itself never diffs.
package textdiff

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/sergi/go-diff/diffmatchpatch"

	"github.com/roach88/blockdoc/internal/ir"
)

// Differ computes edit ops between two rich texts.
type Differ struct {
	dmp *diffmatchpatch.DiffMatchPatch
}

// New creates a Differ.
func New() *Differ {
	return &Differ{dmp: diffmatchpatch.New()}
}

// Diff has the signature of the engine's diff function: both arguments and
// the result are delta JSON. Both inputs must contain only inserts.
func (d *Differ) Diff(currentDelta, proposed string) (string, error) {
	current, err := ir.ParseDelta(currentDelta)
	if err != nil {
		return "", fmt.Errorf("current text: %w", err)
	}
	next, err := ir.ParseDelta(proposed)
	if err != nil {
		return "", fmt.Errorf("proposed text: %w", err)
	}
	ops, err := d.Ops(current, next)
	if err != nil {
		return "", err
	}
	return ops.String(), nil
}

// Ops returns the ops that turn current into proposed.
//
// Text changes become inserts and deletes. Unchanged text whose formatting
// differs becomes a retain carrying only the changed attributes, with Null
// for removed ones. A trailing unformatted retain is dropped.
func (d *Differ) Ops(current, proposed ir.Delta) (ir.Delta, error) {
	curText, curAttrs, err := flatten(current)
	if err != nil {
		return nil, err
	}
	propText, propAttrs, err := flatten(proposed)
	if err != nil {
		return nil, err
	}

	diffs := d.dmp.DiffMain(curText, propText, false)
	diffs = d.dmp.DiffCleanupSemantic(diffs)

	var b builder
	ci, pi := 0, 0
	for _, df := range diffs {
		n := ir.UTF16Len(df.Text)
		switch df.Type {
		case diffmatchpatch.DiffEqual:
			for k := range n {
				b.retain(attributeChange(curAttrs[ci+k], propAttrs[pi+k]))
			}
			ci += n
			pi += n

		case diffmatchpatch.DiffInsert:
			for _, r := range df.Text {
				b.insert(string(r), propAttrs[pi])
				pi += utf16Width(r)
			}

		case diffmatchpatch.DiffDelete:
			b.delete(n)
			ci += n
		}
	}
	return b.finish(), nil
}

// flatten renders an insert-only delta as plain text plus the attributes of
// every UTF-16 unit.
func flatten(d ir.Delta) (string, []ir.Object, error) {
	var sb strings.Builder
	var attrs []ir.Object
	for i, op := range d {
		if op.Kind != ir.OpInsert {
			return "", nil, ir.InvalidOperation(fmt.Sprintf("op %d: full text may only contain inserts, got %s", i, op.Kind))
		}
		sb.WriteString(op.Text)
		for range ir.UTF16Len(op.Text) {
			attrs = append(attrs, op.Attributes)
		}
	}
	return sb.String(), attrs, nil
}

func utf16Width(r rune) int {
	if r >= 0x10000 && r <= utf8.MaxRune {
		return 2
	}
	return 1
}

// attributeChange returns the format that turns from into to, or nil.
func attributeChange(from, to ir.Object) ir.Object {
	var out ir.Object
	for k, v := range to {
		if old, ok := from[k]; !ok || !ir.Equal(old, v) {
			if out == nil {
				out = ir.Object{}
			}
			out[k] = v
		}
	}
	for k := range from {
		if _, ok := to[k]; !ok {
			if out == nil {
				out = ir.Object{}
			}
			out[k] = ir.Null{}
		}
	}
	return out
}

// builder accumulates ops, merging neighbors of the same kind and format.
type builder struct {
	ops ir.Delta
}

func (b *builder) last() *ir.DeltaOp {
	if len(b.ops) == 0 {
		return nil
	}
	return &b.ops[len(b.ops)-1]
}

func (b *builder) retain(attrs ir.Object) {
	if l := b.last(); l != nil && l.Kind == ir.OpRetain && ir.ObjectsEqual(l.Attributes, attrs) {
		l.Count++
		return
	}
	b.ops = append(b.ops, ir.Retain(1, attrs))
}

func (b *builder) insert(text string, attrs ir.Object) {
	if l := b.last(); l != nil && l.Kind == ir.OpInsert && ir.ObjectsEqual(l.Attributes, attrs) {
		l.Text += text
		return
	}
	b.ops = append(b.ops, ir.Insert(text, attrs))
}

func (b *builder) delete(n int) {
	if n == 0 {
		return
	}
	if l := b.last(); l != nil && l.Kind == ir.OpDelete {
		l.Count += n
		return
	}
	b.ops = append(b.ops, ir.Delete(n))
}

func (b *builder) finish() ir.Delta {
	ops := b.ops
	for len(ops) > 0 {
		l := ops[len(ops)-1]
		if l.Kind != ir.OpRetain || len(l.Attributes) > 0 {
			break
		}
		ops = ops[:len(ops)-1]
	}
	if ops == nil {
		return ir.Delta{}
	}
	return ops
}
