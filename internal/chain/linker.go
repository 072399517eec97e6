// Package chain maintains the prevId ordering hints between sibling blocks
// as blocks are inserted, removed, and moved.
//
// prevId is a hint, not a total order: several blocks may claim the same
// predecessor after concurrent edits. Both repairs tolerate zero, one, or
// many matches; the sorter resolves fan-out at read time.
package chain

import (
	"log/slog"

	"github.com/roach88/blockdoc/internal/blocks"
	"github.com/roach88/blockdoc/internal/ir"
)

// Linker applies chain repairs inside the active transaction.
type Linker struct {
	logger *slog.Logger
}

// New creates a Linker. A nil logger uses slog.Default().
func New(logger *slog.Logger) *Linker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Linker{logger: logger}
}

// InsertRepair splices newID into the chain.
//
// Every block currently following prevID is repointed to follow newID. When
// nextID names an existing block, that block is repointed to newID as well and
// its device and timestamp attributes are copied onto newID, so an atomic
// multi-block splice stays in the neighbor's device bucket.
func (l *Linker) InsertRepair(s *blocks.Store, newID, prevID, nextID string) error {
	if prevID != "" {
		followers := s.PointingAt(prevID)
		for _, id := range followers {
			if id == newID {
				continue
			}
			if err := s.SetPrevID(id, newID); err != nil {
				return err
			}
		}
		l.logger.Debug("insert repair",
			"block_id", newID,
			"prev_id", prevID,
			"repointed", len(followers))
	}

	if nextID == "" || nextID == newID {
		return nil
	}
	if !s.Has(nextID) {
		l.logger.Debug("insert repair: next block not found",
			"block_id", newID,
			"next_id", nextID)
		return nil
	}
	if err := s.SetPrevID(nextID, newID); err != nil {
		return err
	}
	return s.MergeAttributes(newID, bucketAttributes(s.Attributes(nextID)))
}

// RemovalRepair bridges the chain over removedID before it is removed.
//
// Blocks following removedID are repointed to removedID's own prevId. When
// removedID has no prevId they become chain heads instead, and inherit
// removedID's device and timestamp so their bucket placement is preserved.
func (l *Linker) RemovalRepair(s *blocks.Store, removedID string) error {
	prev := s.PrevID(removedID)
	inherited := bucketAttributes(s.Attributes(removedID))

	followers := s.PointingAt(removedID)
	for _, id := range followers {
		if id == removedID {
			continue
		}
		bridge := prev
		if bridge == id {
			// Two-block cycle: bridging would make the follower its own predecessor.
			bridge = ""
		}
		if err := s.SetPrevID(id, bridge); err != nil {
			return err
		}
		if bridge == "" {
			if err := s.MergeAttributes(id, inherited); err != nil {
				return err
			}
		}
	}

	l.logger.Debug("removal repair",
		"block_id", removedID,
		"bridge_to", prev,
		"repointed", len(followers))
	return nil
}

// bucketAttributes extracts the attributes that decide a block's sort bucket.
func bucketAttributes(attrs ir.Object) ir.Object {
	out := ir.Object{}
	for _, k := range []string{ir.AttrDevice, ir.AttrTimestamp} {
		if v, ok := attrs[k]; ok {
			out[k] = v
		}
	}
	return out
}
