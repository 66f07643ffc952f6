// Package blockdiff computes per-position patches between two successive
// parses of a growing buffer. It is a positional diff, not a sequence
// alignment: correctness leans on the append-only invariant (only the tail
// block of a stream keeps mutating). If a caller violates that invariant the
// diff still terminates, it just over-invalidates.
package blockdiff

import (
	"streammark/internal/segment"
)

// Op 表示单个位置上的补丁类型。
type Op int

const (
	OpUnchanged Op = iota
	OpReplace
	OpInsert
	OpRemove
)

func (op Op) String() string {
	switch op {
	case OpUnchanged:
		return "unchanged"
	case OpReplace:
		return "replace"
	case OpInsert:
		return "insert"
	case OpRemove:
		return "remove"
	}
	return "unknown"
}

// Patch is one per-position difference. Block is the new block for Replace
// and Insert, the zero value for Unchanged and Remove.
type Patch struct {
	Op    Op
	Index int
	Block segment.Block
}

// Diff walks both lists by position. Equal blocks emit Unchanged, differing
// ones Replace; tail positions beyond the shorter list emit Insert (current
// longer) or Remove (previous longer, meaning the buffer was reset or shrunk).
func Diff(previous, current []segment.Block) []Patch {
	size := len(previous)
	if len(current) > size {
		size = len(current)
	}
	patches := make([]Patch, 0, size)

	common := len(previous)
	if len(current) < common {
		common = len(current)
	}
	for i := 0; i < common; i++ {
		if previous[i].Equal(current[i]) {
			patches = append(patches, Patch{Op: OpUnchanged, Index: i})
			continue
		}
		patches = append(patches, Patch{Op: OpReplace, Index: i, Block: current[i]})
	}
	for i := common; i < len(current); i++ {
		patches = append(patches, Patch{Op: OpInsert, Index: i, Block: current[i]})
	}
	for i := common; i < len(previous); i++ {
		patches = append(patches, Patch{Op: OpRemove, Index: i})
	}
	return patches
}

// Changed counts the patches that require a render dispatch.
func Changed(patches []Patch) int {
	n := 0
	for _, p := range patches {
		if p.Op == OpReplace || p.Op == OpInsert {
			n++
		}
	}
	return n
}
