package engine

import (
	"errors"
	"fmt"

	"github.com/roach88/blockdoc/internal/blocks"
	"github.com/roach88/blockdoc/internal/delta"
	"github.com/roach88/blockdoc/internal/ir"
	"github.com/roach88/blockdoc/internal/substrate"
)

// ApplyActions applies a batch of actions in one transaction and returns the
// batch's changes as an update.
//
// diff turns a block's proposed full text into edit ops; with a nil diff
// the proposed delta is applied directly as an op list. The first failing
// action aborts the batch and nothing is applied.
func (e *Engine) ApplyActions(actions []ir.BlockAction, diff delta.DiffFunc) ([]byte, error) {
	update, err := e.doc.Update(func(tx *substrate.Txn) error {
		if err := ensureInitialized(tx); err != nil {
			return err
		}
		s := blocks.NewStore(tx)
		for i, a := range actions {
			if err := e.applyAction(s, a, diff); err != nil {
				e.logger.Error("action failed",
					"index", i,
					"action", a.Action,
					"block_id", a.Block.ID,
					"kind", ir.KindOf(err),
					"error", err)
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, encodingFailure(err)
	}

	e.logger.Info("actions applied",
		"actions", len(actions),
		"bytes", len(update))
	return update, nil
}

func (e *Engine) applyAction(s *blocks.Store, a ir.BlockAction, diff delta.DiffFunc) error {
	b := a.Block
	if b.ID == "" {
		return ir.InvalidOperation(fmt.Sprintf("%s action without block id", a.Action))
	}
	if b.PrevID == b.ID {
		return ir.InvalidOperation("a block cannot follow itself").WithBlock(b.ID)
	}

	e.logger.Debug("applying action",
		"action", a.Action,
		"block_id", b.ID,
		"parent_id", b.ParentID,
		"prev_id", b.PrevID,
		"next_id", b.NextID)

	switch a.Action {
	case ir.ActionInsert:
		return e.insert(s, b, diff)
	case ir.ActionUpdate:
		return e.update(s, b, diff)
	case ir.ActionDelete:
		return e.remove(s, b)
	case ir.ActionMove:
		return e.move(s, b)
	default:
		return ir.InvalidOperation(fmt.Sprintf("unknown action %q", a.Action)).WithBlock(b.ID)
	}
}

// insert creates the block, fills it in, then splices it into the chain.
// The new block's own prevId is written last so the repair sees the chain
// as it was before the insert.
func (e *Engine) insert(s *blocks.Store, b ir.ActionBlock, diff delta.DiffFunc) error {
	if err := s.Create(b.ID, b.Type); err != nil {
		return err
	}
	if b.ParentID != "" && b.ParentID != ir.DefaultParent {
		if err := s.SetParentID(b.ID, b.ParentID); err != nil {
			return err
		}
	}
	if err := s.MergeAttributes(b.ID, b.Attributes); err != nil {
		return err
	}
	if b.Delta != nil {
		if err := e.writeText(s, b.ID, b.Delta, diff); err != nil {
			return err
		}
	}

	if err := e.linker.InsertRepair(s, b.ID, b.PrevID, b.NextID); err != nil {
		return err
	}
	if b.PrevID != "" {
		if err := s.SetPrevID(b.ID, b.PrevID); err != nil {
			return err
		}
	}
	return e.validate(s, b.ID)
}

// update merges attributes and replaces text. It never creates a block.
func (e *Engine) update(s *blocks.Store, b ir.ActionBlock, diff delta.DiffFunc) error {
	if !s.Has(b.ID) {
		return ir.BlockNotFound(b.ID)
	}
	if err := s.MergeAttributes(b.ID, b.Attributes); err != nil {
		return err
	}
	if b.Delta != nil {
		if err := e.writeText(s, b.ID, b.Delta, diff); err != nil {
			return err
		}
	}
	return e.validate(s, b.ID)
}

// remove deletes the block and its whole subtree, bridging the chain over
// each removed block first.
func (e *Engine) remove(s *blocks.Store, b ir.ActionBlock) error {
	if !s.Has(b.ID) {
		return ir.BlockNotFound(b.ID)
	}

	doomed := subtree(s.View, b.ID)
	for _, id := range doomed {
		if err := e.linker.RemovalRepair(s, id); err != nil {
			return err
		}
		if _, err := s.Remove(id); err != nil {
			return err
		}
	}

	e.logger.Debug("block deleted",
		"block_id", b.ID,
		"descendants", len(doomed)-1)
	return nil
}

// move detaches the block from its old position and splices it in at the
// new one. Path hints are ignored; order is derived on read.
func (e *Engine) move(s *blocks.Store, b ir.ActionBlock) error {
	if b.ParentID == "" || b.OldParentID == "" {
		return ir.InvalidOperation("move requires parentId and oldParentId").WithBlock(b.ID)
	}
	if !s.Has(b.ID) {
		return ir.BlockNotFound(b.ID)
	}

	if err := e.linker.RemovalRepair(s, b.ID); err != nil {
		return err
	}
	if err := e.linker.InsertRepair(s, b.ID, b.PrevID, b.NextID); err != nil {
		return err
	}
	if err := s.SetPrevID(b.ID, b.PrevID); err != nil {
		return err
	}

	if b.ParentID != b.OldParentID {
		parent := b.ParentID
		if parent == ir.DefaultParent {
			parent = ""
		}
		if err := s.SetParentID(b.ID, parent); err != nil {
			return err
		}
	}
	return nil
}

// writeText replaces the block's text with the proposed content.
func (e *Engine) writeText(s *blocks.Store, id string, proposed ir.Delta, diff delta.DiffFunc) error {
	txt, err := s.EnsureText(id)
	if err != nil {
		return err
	}
	return scoped(e.text.ApplyProposed(s.Txn(), txt, proposed, diff), id)
}

func (e *Engine) validate(s *blocks.Store, id string) error {
	if e.schema == nil {
		return nil
	}
	b, ok, err := s.Get(id)
	if err != nil {
		return err
	}
	if !ok {
		return ir.BlockNotFound(id)
	}
	return e.schema.Validate(b)
}

// subtree returns root followed by every block transitively parented under
// it. The visited set guards against parent cycles.
func subtree(v blocks.View, root string) []string {
	children := make(map[string][]string)
	for _, id := range v.AllIDs() {
		if p := v.ParentID(id); p != "" {
			children[p] = append(children[p], id)
		}
	}

	out := []string{root}
	visited := map[string]bool{root: true}
	stack := []string{root}
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, child := range children[id] {
			if visited[child] {
				continue
			}
			visited[child] = true
			out = append(out, child)
			stack = append(stack, child)
		}
	}
	return out
}

// scoped attaches a block id to a typed error that lacks one.
func scoped(err error, id string) error {
	var de *ir.Error
	if errors.As(err, &de) && de.BlockID == "" {
		return de.WithBlock(id)
	}
	return err
}
