package virtual

import (
	"fmt"
	"unsafe"

	"github.com/adaptmesh/quadforest/pkg/forest"
	"github.com/adaptmesh/quadforest/pkg/mesh"
)

// VirtualGhost records, per mirror slot, whether the slot's destination
// rank places virtual children descending from the mirror and therefore
// expects extended payload. Slots are indexed as in
// Ghost.MirrorProcOffsets.
type VirtualGhost struct {
	Btype              forest.Connectivity
	MirrorProcVirtuals []bool
}

// NewGhost resolves the mirror assignment for an already built
// augmentation. btype must not be richer than the augmentation's.
//
// A slot is set when its mirror hosts virtuals and some direction yields a
// neighbor that (a) lies in the ghost layer, (b) is owned by the slot's
// destination rank, and (c) carries a negative encoding, i.e. is half-sized
// relative to the mirror. All three must hold: a local neighbor is no
// remote matter, a ghost of another rank is irrelevant for this slot, and a
// same-or-coarser neighbor spawns no virtuals on the remote side.
func NewGhost(f *forest.Forest, g *mesh.Ghost, m *mesh.Mesh, aug *Augmentation, btype forest.Connectivity) (*VirtualGhost, error) {
	if !btype.Valid(f.Dim) || btype > aug.Btype {
		return nil, fmt.Errorf("%w: mirror connectivity %v over augmentation %v", ErrConnectivity, btype, aug.Btype)
	}

	lq, gq := m.LocalCount, m.GhostCount
	vg := &VirtualGhost{
		Btype:              btype,
		MirrorProcVirtuals: make([]bool, g.MirrorProcOffsets[f.NumRanks]),
	}

	dirs := f.Dim.Directions(btype)
	for proc := 0; proc < f.NumRanks; proc++ {
		for slot := g.MirrorProcOffsets[proc]; slot < g.MirrorProcOffsets[proc+1]; slot++ {
			mirror := m.MirrorQID[slot]
			if aug.QFlags[mirror] == NoVirtuals {
				continue
			}
		scan:
			for dir := 0; dir < dirs; dir++ {
				_, encs, qids := m.GetNeighbors(mirror, dir)
				for n, nqid := range qids {
					if lq <= nqid && nqid < lq+gq &&
						m.GhostToProc[nqid-lq] == int32(proc) && encs[n] < 0 {
						vg.MirrorProcVirtuals[slot] = true
						break scan
					}
				}
			}
		}
	}
	return vg, nil
}

// MemoryUsed returns the bytes held by the mirror assignment.
func (vg *VirtualGhost) MemoryUsed() int {
	return cap(vg.MirrorProcVirtuals) + int(unsafe.Sizeof(*vg))
}

// Destroy releases the assignment's array.
func (vg *VirtualGhost) Destroy() {
	vg.MirrorProcVirtuals = nil
}
