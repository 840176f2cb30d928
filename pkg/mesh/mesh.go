// Package mesh builds the neighbor mesh and ghost layer a rank sees over a
// partitioned forest: per-direction neighbor tables, parallel boundary
// flags, ghost ownership, and mirror slots per remote rank.
//
// Neighbor encodings follow one contract the virtual layer depends on: a
// negative encoding marks a half-sized neighbor (the direction touches
// finer partners across a subface). Non-negative values carry the opposite
// direction index for debuggability and are otherwise uninterpreted.
package mesh

import (
	"errors"
	"fmt"

	"github.com/adaptmesh/quadforest/pkg/forest"
)

// ErrUnbalanced indicates two neighboring elements differ by more than one
// refinement level.
var ErrUnbalanced = errors.New("mesh: forest is not 2:1 balanced under the requested connectivity")

// Ghost is the layer of remote leaves replicated on this rank because they
// neighbor an owned leaf. Quadrants are sorted by (owner rank, Morton).
type Ghost struct {
	Quadrants []forest.Quadrant

	// MirrorProcOffsets delimits, per destination rank, the mirror slots
	// this rank sends. Length NumRanks+1.
	MirrorProcOffsets []int32
}

// Count returns the number of ghost leaves.
func (g *Ghost) Count() int32 {
	return int32(len(g.Quadrants))
}

// neighborList holds the parallel sequences returned by GetNeighbors for
// one (element, direction) pair.
type neighborList struct {
	quads []*forest.Quadrant
	encs  []int32
	qids  []int32
}

// Mesh exposes neighborhood information for the owned leaves of one rank.
// Element ids in [0, LocalCount) are owned, ids in
// [LocalCount, LocalCount+GhostCount) address the ghost layer.
type Mesh struct {
	Dim   forest.Dimension
	Btype forest.Connectivity

	LocalCount int32
	GhostCount int32

	// ParallelBoundary is -1 for strictly interior elements, otherwise a
	// rank the element touches. Nil when the information is unavailable.
	ParallelBoundary []int32

	// GhostToProc maps a ghost index to its owner rank.
	GhostToProc []int32

	// MirrorQID maps a mirror slot (see Ghost.MirrorProcOffsets) to the
	// owned element replicated on the slot's destination rank.
	MirrorQID []int32

	locals []forest.Quadrant
	ghosts []forest.Quadrant

	dirs      int
	adjacency []neighborList
}

// New allocates a mesh over the given owned and ghost leaves with empty
// neighbor tables. Callers fill the tables with AddNeighbor; Build does so
// from a partitioned forest.
func New(d forest.Dimension, btype forest.Connectivity, locals, ghosts []forest.Quadrant) *Mesh {
	dirs := d.Directions(btype)
	return &Mesh{
		Dim:        d,
		Btype:      btype,
		LocalCount: int32(len(locals)),
		GhostCount: int32(len(ghosts)),
		locals:     locals,
		ghosts:     ghosts,
		dirs:       dirs,
		adjacency:  make([]neighborList, len(locals)*dirs),
	}
}

// AddNeighbor appends one neighbor to the (qid, dir) table.
func (m *Mesh) AddNeighbor(qid int32, dir int, q *forest.Quadrant, enc, nqid int32) {
	l := &m.adjacency[int(qid)*m.dirs+dir]
	l.quads = append(l.quads, q)
	l.encs = append(l.encs, enc)
	l.qids = append(l.qids, nqid)
}

// GetNeighbors returns the neighbors of owned element qid across direction
// dir as three parallel sequences: element descriptors, encodings and ids.
// The returned slices are views into the mesh and must not be mutated.
func (m *Mesh) GetNeighbors(qid int32, dir int) ([]*forest.Quadrant, []int32, []int32) {
	l := &m.adjacency[int(qid)*m.dirs+dir]
	return l.quads, l.encs, l.qids
}

// Quadrant resolves an owned or ghost element id to its descriptor.
func (m *Mesh) Quadrant(qid int32) *forest.Quadrant {
	if qid < m.LocalCount {
		return &m.locals[qid]
	}
	return &m.ghosts[qid-m.LocalCount]
}

// IsBalanced verifies the 2:1 condition across every direction of btype:
// no enumerated neighbor may differ from its element by more than one
// refinement level. btype must not exceed the connectivity the mesh was
// built with.
func (m *Mesh) IsBalanced(btype forest.Connectivity) error {
	if !btype.Valid(m.Dim) || btype > m.Btype {
		return fmt.Errorf("mesh: cannot check balance at connectivity %v over mesh %v", btype, m.Btype)
	}
	dirs := m.Dim.Directions(btype)
	for qid := int32(0); qid < m.LocalCount; qid++ {
		level := m.Quadrant(qid).Level
		for dir := 0; dir < dirs; dir++ {
			quads, _, _ := m.GetNeighbors(qid, dir)
			for _, n := range quads {
				diff := int(n.Level) - int(level)
				if diff < -1 || diff > 1 {
					return fmt.Errorf("%w: element %d level %d vs neighbor level %d across dir %d",
						ErrUnbalanced, qid, level, n.Level, dir)
				}
			}
		}
	}
	return nil
}
