package mesh

import (
	"errors"
	"testing"

	"github.com/adaptmesh/quadforest/pkg/forest"
)

func buildSingle(t *testing.T, dim forest.Dimension, level int8, refineCenter bool, btype forest.Connectivity) (*forest.Forest, *Ghost, *Mesh) {
	t.Helper()
	global := forest.NewUniform(dim, level)
	if refineCenter {
		center := dim.RootLength() / 2
		global.Refine(func(q forest.Quadrant) bool {
			return q.X == center && q.Y == center && (dim == forest.Dim2 || q.Z == center)
		})
	}
	parts := global.Partition(1)
	g, m, err := Build(global, parts, 0, btype)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	return global, g, m
}

// TestUniformFaceNeighbors checks neighbor counts and encodings on a
// uniform 4x4 forest: interior cells see one same-sized neighbor per face,
// boundary faces see none.
func TestUniformFaceNeighbors(t *testing.T) {
	global, g, m := buildSingle(t, forest.Dim2, 2, false, forest.ConnectFace)

	if g.Count() != 0 {
		t.Fatalf("single rank has %d ghosts", g.Count())
	}
	for qid := int32(0); qid < m.LocalCount; qid++ {
		q := global.Quadrants[qid]
		length := q.Length(forest.Dim2)
		for dir := 0; dir < 4; dir++ {
			quads, encs, qids := m.GetNeighbors(qid, dir)
			onBoundary := (dir == 0 && q.X == 0) ||
				(dir == 1 && q.X+length == forest.Dim2.RootLength()) ||
				(dir == 2 && q.Y == 0) ||
				(dir == 3 && q.Y+length == forest.Dim2.RootLength())
			if onBoundary {
				if len(quads) != 0 {
					t.Errorf("qid %d dir %d: %d neighbors on domain boundary", qid, dir, len(quads))
				}
				continue
			}
			if len(quads) != 1 || len(encs) != 1 || len(qids) != 1 {
				t.Fatalf("qid %d dir %d: sequences %d/%d/%d", qid, dir, len(quads), len(encs), len(qids))
			}
			if quads[0].Level != q.Level {
				t.Errorf("qid %d dir %d: neighbor level %d", qid, dir, quads[0].Level)
			}
			if encs[0] < 0 {
				t.Errorf("qid %d dir %d: same-sized neighbor has negative encoding %d", qid, dir, encs[0])
			}
		}
	}
}

// TestRefinedNeighborEncodings checks that faces toward the refined cell
// return two half-sized neighbors with negative encodings, and that the
// children see their coarser neighbors with non-negative encodings.
func TestRefinedNeighborEncodings(t *testing.T) {
	global, _, m := buildSingle(t, forest.Dim2, 2, true, forest.ConnectFace)

	for qid := int32(0); qid < m.LocalCount; qid++ {
		q := global.Quadrants[qid]
		for dir := 0; dir < 4; dir++ {
			quads, encs, _ := m.GetNeighbors(qid, dir)
			for j, n := range quads {
				switch {
				case n.Level > q.Level:
					if encs[j] >= 0 {
						t.Errorf("qid %d dir %d: finer neighbor with encoding %d", qid, dir, encs[j])
					}
					if len(quads) != 2 {
						t.Errorf("qid %d dir %d: %d half-sized face neighbors; want 2", qid, dir, len(quads))
					}
				default:
					if encs[j] < 0 {
						t.Errorf("qid %d dir %d: encoding %d for level diff %d", qid, dir, encs[j], n.Level-q.Level)
					}
				}
			}
		}
	}
}

// TestNeighborSymmetry walks every neighbor pair and requires the reverse
// relation to exist: if b is a neighbor of a, then a appears among b's
// neighbors across some direction.
func TestNeighborSymmetry(t *testing.T) {
	for _, tc := range []struct {
		dim    forest.Dimension
		level  int8
		refine bool
		btype  forest.Connectivity
	}{
		{forest.Dim2, 2, true, forest.ConnectFull},
		{forest.Dim3, 1, true, forest.ConnectFull},
	} {
		_, _, m := buildSingle(t, tc.dim, tc.level, tc.refine, tc.btype)
		dirs := tc.dim.Directions(tc.btype)

		appears := func(from, to int32) bool {
			for dir := 0; dir < dirs; dir++ {
				_, _, qids := m.GetNeighbors(from, dir)
				for _, id := range qids {
					if id == to {
						return true
					}
				}
			}
			return false
		}
		for qid := int32(0); qid < m.LocalCount; qid++ {
			for dir := 0; dir < dirs; dir++ {
				_, _, qids := m.GetNeighbors(qid, dir)
				for _, id := range qids {
					if !appears(id, qid) {
						t.Errorf("%dD: neighbor %d of %d has no reverse relation", int(tc.dim), id, qid)
					}
				}
			}
		}
	}
}

// TestIsBalanced accepts the built fixtures and rejects a hand-built mesh
// whose neighbors differ by two levels.
func TestIsBalanced(t *testing.T) {
	_, _, m := buildSingle(t, forest.Dim2, 2, true, forest.ConnectFull)
	if err := m.IsBalanced(forest.ConnectFull); err != nil {
		t.Errorf("refined fixture reported unbalanced: %v", err)
	}
	if err := m.IsBalanced(forest.ConnectFace); err != nil {
		t.Errorf("coarser connectivity reported unbalanced: %v", err)
	}

	locals := []forest.Quadrant{{Level: 2}}
	root := forest.Quadrant{X: forest.Dim2.RootLength() / 4, Level: 0}
	bad := New(forest.Dim2, forest.ConnectFace, locals, nil)
	bad.AddNeighbor(0, 1, &root, 0, 0)
	if err := bad.IsBalanced(forest.ConnectFace); !errors.Is(err, ErrUnbalanced) {
		t.Errorf("two-level jump reported as %v; want ErrUnbalanced", err)
	}

	// Checking at a richer connectivity than the mesh carries is refused.
	if err := bad.IsBalanced(forest.ConnectFull); err == nil {
		t.Error("connectivity above the mesh's must be rejected")
	}
}

// TestTwoRankTables checks the distributed tables of a split forest:
// ghost ownership, mirror slots and parallel boundary flags.
func TestTwoRankTables(t *testing.T) {
	global := forest.NewUniform(forest.Dim2, 2)
	center := forest.Dim2.RootLength() / 2
	global.Refine(func(q forest.Quadrant) bool { return q.X == center && q.Y == center })
	parts := global.Partition(2)

	for rank := 0; rank < 2; rank++ {
		g, m, err := Build(global, parts, rank, forest.ConnectFace)
		if err != nil {
			t.Fatalf("rank %d: %v", rank, err)
		}
		other := int32(1 - rank)

		if g.Count() == 0 {
			t.Fatalf("rank %d: no ghosts across the split", rank)
		}
		if len(m.GhostToProc) != int(g.Count()) {
			t.Fatalf("rank %d: GhostToProc length %d", rank, len(m.GhostToProc))
		}
		for gid, proc := range m.GhostToProc {
			if proc != other {
				t.Errorf("rank %d: ghost %d owned by %d", rank, gid, proc)
			}
		}

		if len(g.MirrorProcOffsets) != 3 {
			t.Fatalf("rank %d: offsets length %d", rank, len(g.MirrorProcOffsets))
		}
		begin, end := g.MirrorProcOffsets[other], g.MirrorProcOffsets[other+1]
		if end <= begin {
			t.Fatalf("rank %d: no mirror slots toward rank %d", rank, other)
		}
		own := g.MirrorProcOffsets[rank+1] - g.MirrorProcOffsets[rank]
		if own != 0 {
			t.Errorf("rank %d: %d mirror slots toward itself", rank, own)
		}
		for s := begin; s < end; s++ {
			qid := m.MirrorQID[s]
			if qid < 0 || qid >= m.LocalCount {
				t.Fatalf("rank %d: mirror slot %d maps to %d", rank, s, qid)
			}
			if m.ParallelBoundary[qid] == -1 {
				t.Errorf("rank %d: mirror %d flagged interior", rank, qid)
			}
			if s > begin && m.MirrorQID[s-1] >= qid {
				t.Errorf("rank %d: mirror slots not ascending at %d", rank, s)
			}
		}

		// Interior flags and ghost neighbors must agree.
		dirs := forest.Dim2.Directions(forest.ConnectFace)
		for qid := int32(0); qid < m.LocalCount; qid++ {
			hasGhost := false
			for dir := 0; dir < dirs; dir++ {
				_, _, qids := m.GetNeighbors(qid, dir)
				for _, id := range qids {
					if id >= m.LocalCount {
						hasGhost = true
					}
				}
			}
			if hasGhost == (m.ParallelBoundary[qid] == -1) {
				t.Errorf("rank %d: qid %d boundary flag %d, hasGhost %v", rank, qid, m.ParallelBoundary[qid], hasGhost)
			}
		}
	}
}

// TestGhostOrdering requires ghosts sorted by owner rank first, Morton
// second, matching the id space the virtual layer assumes.
func TestGhostOrdering(t *testing.T) {
	global := forest.NewUniform(forest.Dim2, 2)
	parts := global.Partition(3)
	g, m, err := Build(global, parts, 1, forest.ConnectFace)
	if err != nil {
		t.Fatal(err)
	}
	if g.Count() == 0 {
		t.Fatal("no ghosts")
	}
	for i := 1; i < int(g.Count()); i++ {
		if m.GhostToProc[i-1] > m.GhostToProc[i] {
			t.Fatalf("ghost %d: owner order violated", i)
		}
		if m.GhostToProc[i-1] == m.GhostToProc[i] {
			a := g.Quadrants[i-1].LinearID(forest.Dim2, forest.Dim2.MaxLevel())
			b := g.Quadrants[i].LinearID(forest.Dim2, forest.Dim2.MaxLevel())
			if a >= b {
				t.Errorf("ghost %d: Morton order violated", i)
			}
		}
	}
}
