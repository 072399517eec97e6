// Package delta validates and applies rich-text edit operations to a
// block's replicated text.
//
// All lengths and positions are UTF-16 code units.
package delta

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/roach88/blockdoc/internal/ir"
	"github.com/roach88/blockdoc/internal/substrate"
)

// DiffFunc turns a whole-text replacement into an op list.
//
// It receives the current text as delta JSON and the proposed content as
// delta JSON, and returns delta JSON. It is called synchronously inside the
// enclosing transaction and has no cancellation: the transaction cannot
// commit until it returns.
type DiffFunc func(currentDelta, proposed string) (string, error)

// Engine applies deltas inside a transaction.
type Engine struct {
	logger *slog.Logger
}

// New creates an Engine. A nil logger uses slog.Default().
func New(logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{logger: logger}
}

// Validate scans ops left to right against a text of the given length and
// returns them with zero-length ops elided.
//
// Insert grows the text and advances the cursor. Retain(n) fails when n
// exceeds length-cursor. Delete(n) fails when n exceeds length, then shrinks
// the text and moves the cursor back by min(cursor, n).
func Validate(ops ir.Delta, length int) (ir.Delta, error) {
	cursor := 0
	out := make(ir.Delta, 0, len(ops))
	for i, op := range ops {
		switch op.Kind {
		case ir.OpInsert:
			n := ir.UTF16Len(op.Text)
			if n == 0 {
				continue
			}
			length += n
			cursor += n

		case ir.OpRetain:
			if op.Count < 0 || op.Count > length-cursor {
				return nil, ir.InvalidOperation(fmt.Sprintf("op %d: retain %d exceeds text length (%d remaining)", i, op.Count, length-cursor))
			}
			if op.Count == 0 {
				continue
			}
			cursor += op.Count

		case ir.OpDelete:
			if op.Count < 0 || op.Count > length {
				return nil, ir.InvalidOperation(fmt.Sprintf("op %d: delete %d exceeds text length %d", i, op.Count, length))
			}
			if op.Count == 0 {
				continue
			}
			length -= op.Count
			cursor -= min(cursor, op.Count)

		default:
			return nil, ir.InvalidOperation(fmt.Sprintf("op %d: invalid delta operation %q", i, op.Kind))
		}
		out = append(out, op)
	}
	return out, nil
}

// Apply validates ops against the text's current length and applies them.
// Nothing is applied unless the whole list validates; a failure while
// applying aborts the enclosing transaction.
func (e *Engine) Apply(tx *substrate.Txn, text substrate.ContainerID, ops ir.Delta) error {
	length, err := tx.TextLen(text)
	if err != nil {
		return ir.Wrap(ir.KindStateError, "text not found", err)
	}
	valid, err := Validate(ops, length)
	if err != nil {
		return err
	}

	cursor := 0
	for i, op := range valid {
		switch op.Kind {
		case ir.OpInsert:
			err = tx.InsertText(text, cursor, op.Text, op.Attributes)
			cursor += op.Len()
		case ir.OpRetain:
			err = tx.FormatText(text, cursor, op.Count, op.Attributes)
			cursor += op.Count
		case ir.OpDelete:
			err = tx.DeleteText(text, cursor, op.Count)
		}
		if err != nil {
			return ir.Wrap(ir.KindInvalidOperation, fmt.Sprintf("op %d could not be applied", i), err)
		}
	}

	e.logger.Debug("delta applied",
		"ops", len(valid),
		"length_before", length)
	return nil
}

// ApplyProposed replaces the text's content with proposed.
//
// With a diff function the current text and the proposal are handed to it
// and the returned op list is applied. Without one, proposed is applied
// directly as an op list.
func (e *Engine) ApplyProposed(tx *substrate.Txn, text substrate.ContainerID, proposed ir.Delta, diff DiffFunc) error {
	if diff == nil {
		return e.Apply(tx, text, proposed)
	}

	current, err := tx.Delta(text)
	if err != nil {
		return ir.Wrap(ir.KindStateError, "text not found", err)
	}

	e.logger.Debug("computing delta diff", "current_ops", len(current), "proposed_ops", len(proposed))
	result, err := diff(current.String(), proposed.String())
	if err != nil {
		return ir.Wrap(ir.KindInvalidOperation, "text diff failed", err)
	}

	ops, err := ParseOps(result)
	if err != nil {
		return err
	}
	if len(ops) == 0 {
		e.logger.Debug("delta diff is empty, nothing to apply")
		return nil
	}
	return e.Apply(tx, text, ops)
}

// ParseOps decodes an op list. Text that is not JSON fails with
// DECODING_ERROR; malformed ops fail with INVALID_OPERATION.
func ParseOps(text string) (ir.Delta, error) {
	if !json.Valid([]byte(text)) {
		return nil, &ir.Error{Kind: ir.KindDecodingError, Message: "failed to parse delta diff"}
	}
	return ir.ParseDelta(text)
}
