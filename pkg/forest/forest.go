// Package forest provides the quadtree/octree primitives the mesh and
// virtual layers are built on: Morton-ordered leaves of a unit tree,
// refinement, and contiguous partitioning across ranks.
package forest

// Forest holds the Morton-ordered leaves of a single unit tree, or the
// contiguous slice of them owned by one rank after partitioning.
type Forest struct {
	Dim       Dimension
	Quadrants []Quadrant
	Rank      int
	NumRanks  int

	// GlobalFirst is the global leaf index of Quadrants[0].
	GlobalFirst int32
}

// NewUniform creates a single-rank forest uniformly refined to the given
// level.
func NewUniform(d Dimension, level int8) *Forest {
	n := uint64(1) << uint(int(d)*int(level))
	quads := make([]Quadrant, 0, n)
	for id := uint64(0); id < n; id++ {
		quads = append(quads, SetMorton(d, level, id))
	}
	return &Forest{Dim: d, Quadrants: quads, NumRanks: 1}
}

// LocalCount returns the number of leaves owned by this rank.
func (f *Forest) LocalCount() int32 {
	return int32(len(f.Quadrants))
}

// Refine runs a single refinement pass: every leaf for which fn returns
// true is replaced by its 2^D children. Children are inserted in Morton
// order, so the leaf array stays sorted.
func (f *Forest) Refine(fn func(q Quadrant) bool) {
	out := make([]Quadrant, 0, len(f.Quadrants))
	for _, q := range f.Quadrants {
		if fn(q) && q.Level < f.Dim.MaxLevel() {
			for i := 0; i < f.Dim.Children(); i++ {
				out = append(out, q.Child(f.Dim, i))
			}
		} else {
			out = append(out, q)
		}
	}
	f.Quadrants = out
}

// Partition splits the leaves into n contiguous rank ranges of near-equal
// size and returns the per-rank forests. The receiver is left untouched and
// keeps the global view.
func (f *Forest) Partition(n int) []*Forest {
	total := len(f.Quadrants)
	parts := make([]*Forest, n)
	offset := 0
	for r := 0; r < n; r++ {
		count := total / n
		if r < total%n {
			count++
		}
		parts[r] = &Forest{
			Dim:         f.Dim,
			Quadrants:   f.Quadrants[offset : offset+count],
			Rank:        r,
			NumRanks:    n,
			GlobalFirst: int32(offset),
		}
		offset += count
	}
	return parts
}

// Owner returns the rank owning the given global leaf index under the
// partition described by parts.
func Owner(parts []*Forest, global int32) int {
	for r := len(parts) - 1; r >= 0; r-- {
		if global >= parts[r].GlobalFirst {
			return r
		}
	}
	return 0
}
