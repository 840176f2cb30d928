// Package virtual decides, over a balanced partitioned forest, which
// elements must host virtual (hallucinated) children so that every
// numerical neighbor sees the same or a coarser level, and builds the
// index tables that let kernels iterate real and virtual elements by level
// with O(1) offset arithmetic. Its companion, VirtualGhost, records which
// mirror elements require extended payload on their destination ranks.
package virtual

import (
	"fmt"
	"unsafe"

	"github.com/adaptmesh/quadforest/pkg/forest"
	"github.com/adaptmesh/quadforest/pkg/mesh"
)

// NoVirtuals is the sentinel flag value of elements hosting no virtual
// children.
const NoVirtuals int32 = -1

// Augmentation is the virtual-element layer over one rank's forest. It is
// immutable after construction and safe for concurrent reads.
//
// QFlags and GFlags discriminate per element: NoVirtuals means the element
// hosts no virtual children; any other value means it does. For ghosts the
// value is additionally the dense index of the element among all
// virtual-hosting ghosts; for owned elements the token value carries no
// meaning beyond being non-negative.
type Augmentation struct {
	Btype forest.Connectivity

	LocalCount int32
	GhostCount int32

	QFlags []int32
	GFlags []int32

	// Offset arrays and per-level host lists, present only when the
	// augmentation was built with level lists. Offsets address a per-level
	// dense layout interleaving each element's own slot with blocks of
	// 2^D slots for the virtual children of hosts processed before it.
	QRealOffset    []int32
	QVirtualOffset []int32
	GRealOffset    []int32
	GVirtualOffset []int32

	// QLevels[l] lists, in ascending id order, the owned elements hosting
	// virtual children at level l (the host itself lives at l-1).
	QLevels [][]int32
	GLevels [][]int32
}

// New builds the augmentation without level lists.
func New(f *forest.Forest, g *mesh.Ghost, m *mesh.Mesh, btype forest.Connectivity) (*Augmentation, error) {
	return NewExt(f, g, m, btype, false)
}

// NewExt builds the augmentation, optionally materializing the dense
// per-level layout (offset arrays and per-level host lists).
//
// Owned elements are scanned in ascending id order; elements strictly
// interior to the rank take the short-circuiting classification, elements
// on the parallel boundary take the full scan that also marks ghost hosts.
// A second ascending pass over the ghosts rewrites their marks to dense
// indices.
func NewExt(f *forest.Forest, g *mesh.Ghost, m *mesh.Mesh, btype forest.Connectivity, computeLevelLists bool) (*Augmentation, error) {
	if !btype.Valid(f.Dim) || btype > m.Btype {
		return nil, fmt.Errorf("%w: %v over mesh %v in %dD", ErrConnectivity, btype, m.Btype, int(f.Dim))
	}
	// The structure downstream kernels read would be silently wrong on an
	// unbalanced forest, so this is checked up front.
	if err := m.IsBalanced(btype); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnbalanced, err)
	}

	lq, gq := m.LocalCount, m.GhostCount
	a := &Augmentation{
		Btype:      btype,
		LocalCount: lq,
		GhostCount: gq,
		QFlags:     fill(make([]int32, lq), NoVirtuals),
		GFlags:     fill(make([]int32, gq), NoVirtuals),
	}

	levels := int(f.Dim.MaxLevel()) + 1
	if computeLevelLists {
		a.QRealOffset = fill(make([]int32, lq), -1)
		a.QVirtualOffset = fill(make([]int32, lq), -1)
		a.GRealOffset = fill(make([]int32, gq), -1)
		a.GVirtualOffset = fill(make([]int32, gq), -1)
		a.QLevels = make([][]int32, levels)
		a.GLevels = make([][]int32, levels)
	}

	b := &builder{
		aug:         a,
		m:           m,
		dirs:        f.Dim.Directions(btype),
		children:    int32(f.Dim.Children()),
		lqReal:      make([]int32, levels),
		lqVirt:      make([]int32, levels),
		lastVirtual: -1,
	}

	for qid := int32(0); qid < lq; qid++ {
		if m.ParallelBoundary != nil && m.ParallelBoundary[qid] == -1 {
			b.classifyInterior(qid)
		} else {
			b.classifyBoundary(qid)
		}
	}

	gqReal := make([]int32, levels)
	gqVirt := make([]int32, levels)
	next := int32(0)
	for gid := int32(0); gid < gq; gid++ {
		level := g.Quadrants[gid].Level
		if computeLevelLists {
			a.GRealOffset[gid] = gqReal[level] + b.children*gqVirt[level]
			gqReal[level]++
		}
		if a.GFlags[gid] != NoVirtuals {
			a.GFlags[gid] = next
			next++
			if computeLevelLists {
				a.GVirtualOffset[gid] = gqReal[level+1] + b.children*gqVirt[level+1]
				gqVirt[level+1]++
				a.GLevels[level+1] = append(a.GLevels[level+1], gid)
			}
		}
	}

	return a, nil
}

// HasVirtuals reports whether owned element qid hosts virtual children.
func (a *Augmentation) HasVirtuals(qid int32) bool {
	return a.QFlags[qid] != NoVirtuals
}

// GhostVirtualIndex returns the dense index of ghost gid among the
// virtual-hosting ghosts, or false when the ghost hosts none.
func (a *Augmentation) GhostVirtualIndex(gid int32) (int32, bool) {
	if a.GFlags[gid] == NoVirtuals {
		return 0, false
	}
	return a.GFlags[gid], true
}

// HasLevelLists reports whether the dense per-level layout was built.
func (a *Augmentation) HasLevelLists() bool {
	return a.QRealOffset != nil
}

const indexSize = int(unsafe.Sizeof(int32(0)))

// MemoryUsed returns the bytes held by the augmentation: flag arrays, the
// optional offset arrays and per-level list storage, and the header.
func (a *Augmentation) MemoryUsed() int {
	lq, gq := int(a.LocalCount), int(a.GhostCount)
	mem := (lq + gq) * indexSize
	if a.QRealOffset != nil {
		mem += 2 * (lq + gq) * indexSize
		mem += 2 * len(a.QLevels) * int(unsafe.Sizeof([]int32(nil)))
		for l := range a.QLevels {
			mem += cap(a.QLevels[l]) * indexSize
			mem += cap(a.GLevels[l]) * indexSize
		}
	}
	return mem + int(unsafe.Sizeof(*a))
}

// Destroy releases the augmentation's arrays. The augmentation must not be
// used afterwards; inputs may then be mutated or freed.
func (a *Augmentation) Destroy() {
	a.QFlags, a.GFlags = nil, nil
	a.QRealOffset, a.QVirtualOffset = nil, nil
	a.GRealOffset, a.GVirtualOffset = nil, nil
	a.QLevels, a.GLevels = nil, nil
}

func fill(s []int32, v int32) []int32 {
	for i := range s {
		s[i] = v
	}
	return s
}
