// Package sorter derives a deterministic child order for every parent from
// the prevId, device, and timestamp hints stored on blocks.
//
// Order is never persisted. It is recomputed on every read so that the only
// source of truth for sibling order is the hints themselves.
//
// Algorithm per parent group:
//
//  1. Partition children into device buckets (missing device -> "unknown").
//  2. Inside a bucket, chain each block to its prevId only when prevId names
//     another member of the same bucket.
//  3. Bucket roots (no in-bucket predecessor) are walked in ascending
//     timestamp order; successors of a node are visited in ascending
//     timestamp order, depth first.
//  4. Members the walk never reached are appended in encounter order.
//  5. Buckets are concatenated in ascending device order, so device grouping
//     takes priority over cross-device timestamp interleaving.
//
// Timestamps are compared as plain strings. Ties break on block id.
package sorter

import (
	"cmp"
	"slices"

	"github.com/roach88/blockdoc/internal/ir"
)

// Sort groups blocks by parent and orders every group.
//
// Top-level blocks (empty parentId or the default_parent sentinel) are
// grouped under ir.TopLevelGroup. The result has one entry per non-empty
// group.
func Sort(blocks map[string]ir.Block) map[string][]string {
	ids := make([]string, 0, len(blocks))
	for id := range blocks {
		ids = append(ids, id)
	}
	slices.Sort(ids)

	groups := make(map[string][]string)
	for _, id := range ids {
		parent := GroupKey(blocks[id].ParentID)
		groups[parent] = append(groups[parent], id)
	}

	out := make(map[string][]string, len(groups))
	for parent, children := range groups {
		out[parent] = SortGroup(children, blocks)
	}
	return out
}

// GroupKey maps a block's parentId to its group in the sorted output.
func GroupKey(parentID string) string {
	if parentID == "" || parentID == ir.DefaultParent {
		return ir.TopLevelGroup
	}
	return parentID
}

// SortGroup orders the children of one parent. ids is the encounter order;
// ids absent from blocks are kept and placed last.
func SortGroup(ids []string, blocks map[string]ir.Block) []string {
	buckets := make(map[string][]string)
	for _, id := range ids {
		b, ok := blocks[id]
		if !ok {
			continue
		}
		dev := b.Device()
		buckets[dev] = append(buckets[dev], id)
	}

	devices := make([]string, 0, len(buckets))
	for dev := range buckets {
		devices = append(devices, dev)
	}
	slices.Sort(devices)

	byTimestamp := func(a, b string) int {
		if c := cmp.Compare(blocks[a].Timestamp(), blocks[b].Timestamp()); c != 0 {
			return c
		}
		return cmp.Compare(a, b)
	}

	sorted := make([]string, 0, len(ids))
	visited := make(map[string]bool, len(ids))

	for _, dev := range devices {
		members := buckets[dev]
		inBucket := make(map[string]bool, len(members))
		for _, id := range members {
			inBucket[id] = true
		}

		next := make(map[string][]string)
		var roots []string
		for _, id := range members {
			prev := blocks[id].PrevID
			if prev != "" && prev != id && inBucket[prev] {
				next[prev] = append(next[prev], id)
				continue
			}
			roots = append(roots, id)
		}
		slices.SortStableFunc(roots, byTimestamp)
		for _, succ := range next {
			slices.SortStableFunc(succ, byTimestamp)
		}

		for _, root := range roots {
			stack := []string{root}
			for len(stack) > 0 {
				id := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				if visited[id] {
					continue
				}
				visited[id] = true
				sorted = append(sorted, id)

				succ := next[id]
				for i := len(succ) - 1; i >= 0; i-- {
					if !visited[succ[i]] {
						stack = append(stack, succ[i])
					}
				}
			}
		}

		// Cycles and chains hanging off a cycle have no root.
		for _, id := range members {
			if !visited[id] {
				visited[id] = true
				sorted = append(sorted, id)
			}
		}
	}

	for _, id := range ids {
		if !visited[id] {
			visited[id] = true
			sorted = append(sorted, id)
		}
	}
	return sorted
}
