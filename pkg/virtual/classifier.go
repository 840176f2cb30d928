package virtual

import "github.com/adaptmesh/quadforest/pkg/mesh"

// builder carries the per-level rolling counters advanced while scanning
// owned elements in ascending id order. lqReal[l] counts elements of level
// l processed so far, lqVirt[l] counts virtual hosts created at level l.
type builder struct {
	aug      *Augmentation
	m        *mesh.Mesh
	dirs     int
	children int32

	lqReal []int32
	lqVirt []int32

	// lastVirtual is the rolling token distinguishing hosts from the -1
	// sentinel on the owned side. Downstream consumers only test the sign.
	lastVirtual int32
}

// classifyInterior decides whether qid hosts virtual children, for elements
// that cannot border ghosts. It stops at the first strictly finer neighbor;
// ghost flags are never touched here.
func (b *builder) classifyInterior(qid int32) {
	level := b.m.Quadrant(qid).Level
	hasVirtuals := false
	for dir := 0; !hasVirtuals && dir < b.dirs; dir++ {
		quads, _, _ := b.m.GetNeighbors(qid, dir)
		for _, n := range quads {
			if n.Level > level {
				hasVirtuals = true
				break
			}
		}
	}
	b.record(qid, int(level), hasVirtuals)
}

// classifyBoundary decides whether qid hosts virtual children, traversing
// the full direction range: this pass alone has the authority to mark
// ghosts that must host virtuals, so it cannot exit early. A ghost is
// marked whenever it is strictly coarser than the owned element touching
// it; the mark is a placeholder rewritten to a dense index in pass 2.
func (b *builder) classifyBoundary(qid int32) {
	lq, gq := b.aug.LocalCount, b.aug.GhostCount
	level := b.m.Quadrant(qid).Level
	hasVirtuals := false
	for dir := 0; dir < b.dirs; dir++ {
		quads, _, qids := b.m.GetNeighbors(qid, dir)
		for j, n := range quads {
			nqid := qids[j]
			if n.Level > level {
				hasVirtuals = true
			} else if lq <= nqid && nqid < lq+gq && n.Level < level {
				b.aug.GFlags[nqid-lq] = 1
			}
		}
	}
	b.record(qid, int(level), hasVirtuals)
}

// record advances the level counters for qid and, if it hosts virtuals,
// assigns the rolling token and the next-level virtual offset. The
// interleaving real + children*virt lays out a block of 2^D virtual slots
// immediately after each host's own slot at the next level.
func (b *builder) record(qid int32, level int, hasVirtuals bool) {
	a := b.aug
	if a.QRealOffset != nil {
		a.QRealOffset[qid] = b.lqReal[level] + b.children*b.lqVirt[level]
		b.lqReal[level]++
	}
	if hasVirtuals {
		b.lastVirtual++
		a.QFlags[qid] = b.lastVirtual
		if a.QRealOffset != nil {
			a.QVirtualOffset[qid] = b.lqReal[level+1] + b.children*b.lqVirt[level+1]
			b.lqVirt[level+1]++
			a.QLevels[level+1] = append(a.QLevels[level+1], qid)
		}
	}
}
