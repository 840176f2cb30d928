package mesh

import (
	"fmt"
	"sort"

	"github.com/adaptmesh/quadforest/pkg/forest"
)

// quadKey identifies a cell of the unit tree by level and lower corner.
type quadKey struct {
	level   int8
	x, y, z int32
}

func keyOf(q forest.Quadrant) quadKey {
	return quadKey{level: q.Level, x: q.X, y: q.Y, z: q.Z}
}

// leafIndex is a lookup table from cell position to global leaf index.
type leafIndex struct {
	dim   forest.Dimension
	leafs []forest.Quadrant
	byPos map[quadKey]int32
}

func indexLeaves(f *forest.Forest) *leafIndex {
	idx := &leafIndex{
		dim:   f.Dim,
		leafs: f.Quadrants,
		byPos: make(map[quadKey]int32, len(f.Quadrants)),
	}
	for i, q := range f.Quadrants {
		idx.byPos[keyOf(q)] = int32(i)
	}
	return idx
}

// sign turns a coordinate bit into a direction sign.
func sign(bit int) int32 {
	if bit == 0 {
		return -1
	}
	return 1
}

// dirDelta returns the per-axis step of a direction index. Directions are
// faces first (-x,+x,-y,+y,-z,+z), then edges (3D, grouped by parallel
// axis), then corners (Morton order of the touched corner).
func dirDelta(d forest.Dimension, dir int) (dx, dy, dz int32) {
	faces := d.Faces()
	if dir < faces {
		delta := sign(dir % 2)
		switch dir / 2 {
		case 0:
			return delta, 0, 0
		case 1:
			return 0, delta, 0
		default:
			return 0, 0, delta
		}
	}
	dir -= faces
	if d == forest.Dim3 && dir < d.Edges() {
		group, i := dir/4, dir%4
		a, b := sign(i&1), sign(i>>1)
		switch group {
		case 0:
			return 0, a, b
		case 1:
			return a, 0, b
		default:
			return a, b, 0
		}
	}
	if d == forest.Dim3 {
		dir -= d.Edges()
	}
	dx = sign(dir & 1)
	dy = sign((dir >> 1) & 1)
	if d == forest.Dim3 {
		dz = sign((dir >> 2) & 1)
	}
	return dx, dy, dz
}

// opposite returns the direction index of dir as seen from the neighbor.
func opposite(d forest.Dimension, dir int) int {
	faces := d.Faces()
	if dir < faces {
		return dir ^ 1
	}
	rest := dir - faces
	if d == forest.Dim3 && rest < d.Edges() {
		return faces + ((rest &^ 3) | ((rest & 3) ^ 3))
	}
	if d == forest.Dim3 {
		rest -= d.Edges()
		return faces + d.Edges() + (rest ^ (d.Corners() - 1))
	}
	return faces + (rest ^ (d.Corners() - 1))
}

// neighborsAcross resolves the leaves adjacent to leaf i across direction
// dir: either one same-sized leaf, one coarser leaf, or the half-sized
// children touching the shared face, edge or corner. halfSized reports the
// latter case. An empty result means the direction leaves the unit tree.
func (idx *leafIndex) neighborsAcross(i int32, dir int) (globals []int32, halfSized bool, err error) {
	d := idx.dim
	q := idx.leafs[i]
	length := q.Length(d)
	root := d.RootLength()

	dx, dy, dz := dirDelta(d, dir)
	nx := q.X + dx*length
	ny := q.Y + dy*length
	nz := q.Z + dz*length
	if nx < 0 || nx >= root || ny < 0 || ny >= root || (d == forest.Dim3 && (nz < 0 || nz >= root)) {
		return nil, false, nil
	}

	// Same-sized neighbor.
	if g, ok := idx.byPos[quadKey{level: q.Level, x: nx, y: ny, z: nz}]; ok {
		return []int32{g}, false, nil
	}

	// One level coarser: the leaf containing the candidate cell.
	if q.Level > 0 {
		mask := ^(length<<1 - 1)
		if g, ok := idx.byPos[quadKey{level: q.Level - 1, x: nx & mask, y: ny & mask, z: nz & mask}]; ok {
			return []int32{g}, false, nil
		}
	}

	// Half-sized neighbors: the children of the candidate cell whose
	// position touches q across dir.
	if q.Level < d.MaxLevel() {
		half := length >> 1
		deltas := [3]int32{dx, dy, dz}
		for c := 0; c < d.Children(); c++ {
			bits := [3]int32{int32(c & 1), int32((c >> 1) & 1), int32((c >> 2) & 1)}
			touches := true
			for a := 0; a < int(d); a++ {
				if deltas[a] > 0 && bits[a] != 0 || deltas[a] < 0 && bits[a] != 1 {
					touches = false
					break
				}
			}
			if !touches {
				continue
			}
			ck := quadKey{
				level: q.Level + 1,
				x:     nx + bits[0]*half,
				y:     ny + bits[1]*half,
				z:     nz + bits[2]*half,
			}
			g, ok := idx.byPos[ck]
			if !ok {
				return nil, false, fmt.Errorf("mesh: no leaf covers cell level=%d (%d,%d,%d) across dir %d of leaf %d",
					ck.level, ck.x, ck.y, ck.z, dir, i)
			}
			globals = append(globals, g)
		}
		return globals, true, nil
	}
	return nil, false, fmt.Errorf("mesh: no leaf adjacent to leaf %d across dir %d", i, dir)
}

// Build derives the ghost layer and neighbor mesh one rank sees when the
// global forest is split into parts. The mesh carries neighbor tables for
// every direction of btype, ghost ownership, mirror slots per destination
// rank and the parallel boundary array.
func Build(global *forest.Forest, parts []*forest.Forest, rank int, btype forest.Connectivity) (*Ghost, *Mesh, error) {
	if !btype.Valid(global.Dim) {
		return nil, nil, fmt.Errorf("mesh: connectivity %v not valid in %dD", btype, int(global.Dim))
	}
	idx := indexLeaves(global)
	d := global.Dim
	dirs := d.Directions(btype)
	local := parts[rank]
	start := local.GlobalFirst
	end := start + local.LocalCount()

	owned := func(g int32) bool { return g >= start && g < end }

	// Collect ghost leaves: every remote leaf adjacent to an owned one.
	ghostSet := make(map[int32]bool)
	for qid := int32(0); qid < local.LocalCount(); qid++ {
		for dir := 0; dir < dirs; dir++ {
			globals, _, err := idx.neighborsAcross(start+qid, dir)
			if err != nil {
				return nil, nil, err
			}
			for _, g := range globals {
				if !owned(g) {
					ghostSet[g] = true
				}
			}
		}
	}
	ghostGlobals := make([]int32, 0, len(ghostSet))
	for g := range ghostSet {
		ghostGlobals = append(ghostGlobals, g)
	}
	// Global Morton order doubles as (owner rank, Morton) order because the
	// partition is contiguous.
	sort.Slice(ghostGlobals, func(a, b int) bool { return ghostGlobals[a] < ghostGlobals[b] })

	ghosts := make([]forest.Quadrant, len(ghostGlobals))
	ghostID := make(map[int32]int32, len(ghostGlobals))
	ghostToProc := make([]int32, len(ghostGlobals))
	for i, g := range ghostGlobals {
		ghosts[i] = idx.leafs[g]
		ghostID[g] = int32(i)
		ghostToProc[i] = int32(forest.Owner(parts, g))
	}

	m := New(d, btype, local.Quadrants, ghosts)
	m.GhostToProc = ghostToProc
	m.ParallelBoundary = make([]int32, local.LocalCount())

	for qid := int32(0); qid < local.LocalCount(); qid++ {
		m.ParallelBoundary[qid] = -1
		for dir := 0; dir < dirs; dir++ {
			globals, halfSized, err := idx.neighborsAcross(start+qid, dir)
			if err != nil {
				return nil, nil, err
			}
			enc := int32(opposite(d, dir))
			if halfSized {
				enc = -(int32(opposite(d, dir)) + 1)
			}
			for _, g := range globals {
				var nqid int32
				var quad *forest.Quadrant
				if owned(g) {
					nqid = g - start
					quad = &m.locals[nqid]
				} else {
					gi := ghostID[g]
					nqid = m.LocalCount + gi
					quad = &m.ghosts[gi]
					if m.ParallelBoundary[qid] == -1 {
						m.ParallelBoundary[qid] = ghostToProc[gi]
					}
				}
				m.AddNeighbor(qid, dir, quad, enc, nqid)
			}
		}
	}

	// Mirror slots: for each remote rank, the owned leaves that appear in
	// that rank's neighborhood, ascending.
	nranks := len(parts)
	offsets := make([]int32, nranks+1)
	var mirrorQID []int32
	for p := 0; p < nranks; p++ {
		offsets[p] = int32(len(mirrorQID))
		if p == rank {
			continue
		}
		seen := make(map[int32]bool)
		remote := parts[p]
		for i := int32(0); i < remote.LocalCount(); i++ {
			for dir := 0; dir < dirs; dir++ {
				globals, _, err := idx.neighborsAcross(remote.GlobalFirst+i, dir)
				if err != nil {
					return nil, nil, err
				}
				for _, g := range globals {
					if owned(g) {
						seen[g] = true
					}
				}
			}
		}
		mirrors := make([]int32, 0, len(seen))
		for g := range seen {
			mirrors = append(mirrors, g-start)
		}
		sort.Slice(mirrors, func(a, b int) bool { return mirrors[a] < mirrors[b] })
		mirrorQID = append(mirrorQID, mirrors...)
	}
	offsets[nranks] = int32(len(mirrorQID))
	m.MirrorQID = mirrorQID

	g := &Ghost{Quadrants: ghosts, MirrorProcOffsets: offsets}
	return g, m, nil
}
