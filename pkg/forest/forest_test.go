package forest

import "testing"

func TestNewUniformCounts(t *testing.T) {
	cases := []struct {
		dim   Dimension
		level int8
		want  int
	}{
		{Dim2, 0, 1},
		{Dim2, 2, 16},
		{Dim3, 1, 8},
		{Dim3, 2, 64},
	}
	for _, tc := range cases {
		f := NewUniform(tc.dim, tc.level)
		if got := int(f.LocalCount()); got != tc.want {
			t.Errorf("NewUniform(%dD, %d): %d leaves; want %d", int(tc.dim), tc.level, got, tc.want)
		}
	}
}

// TestRefineKeepsMortonOrder refines one leaf and checks the array stays
// sorted by the space-filling curve.
func TestRefineKeepsMortonOrder(t *testing.T) {
	f := NewUniform(Dim2, 2)
	center := Dim2.RootLength() / 2
	f.Refine(func(q Quadrant) bool { return q.X == center && q.Y == center })

	if got := int(f.LocalCount()); got != 19 {
		t.Fatalf("leaf count = %d; want 19", got)
	}
	for i := 1; i < len(f.Quadrants); i++ {
		a := f.Quadrants[i-1]
		b := f.Quadrants[i]
		// Compare along the curve at the finer of the two levels.
		level := a.Level
		if b.Level > level {
			level = b.Level
		}
		if a.LinearID(Dim2, level) >= b.LinearID(Dim2, level) {
			t.Errorf("leaves %d and %d out of Morton order", i-1, i)
		}
	}
}

func TestPartitionContiguous(t *testing.T) {
	f := NewUniform(Dim2, 2)
	parts := f.Partition(3)

	total := 0
	next := int32(0)
	for r, p := range parts {
		if p.Rank != r || p.NumRanks != 3 {
			t.Errorf("rank %d: metadata %d/%d", r, p.Rank, p.NumRanks)
		}
		if p.GlobalFirst != next {
			t.Errorf("rank %d: GlobalFirst = %d; want %d", r, p.GlobalFirst, next)
		}
		next += p.LocalCount()
		total += int(p.LocalCount())
	}
	if total != 16 {
		t.Errorf("partition covers %d leaves; want 16", total)
	}

	if Owner(parts, 0) != 0 || Owner(parts, 15) != 2 {
		t.Errorf("Owner endpoints wrong: %d, %d", Owner(parts, 0), Owner(parts, 15))
	}
}

func TestDirectionsPerConnectivity(t *testing.T) {
	cases := []struct {
		dim   Dimension
		btype Connectivity
		want  int
	}{
		{Dim2, ConnectFace, 4},
		{Dim2, ConnectFull, 8},
		{Dim3, ConnectFace, 6},
		{Dim3, ConnectEdge, 18},
		{Dim3, ConnectFull, 26},
	}
	for _, tc := range cases {
		if got := tc.dim.Directions(tc.btype); got != tc.want {
			t.Errorf("Directions(%dD, %v) = %d; want %d", int(tc.dim), tc.btype, got, tc.want)
		}
	}
}

func TestConnectivityValidity(t *testing.T) {
	if ConnectEdge.Valid(Dim2) {
		t.Error("edge connectivity must be invalid in 2D")
	}
	if !ConnectEdge.Valid(Dim3) {
		t.Error("edge connectivity must be valid in 3D")
	}
	if c, err := ParseConnectivity("full"); err != nil || c != ConnectFull {
		t.Errorf("ParseConnectivity(full) = %v, %v", c, err)
	}
	if _, err := ParseConnectivity("diagonal"); err == nil {
		t.Error("ParseConnectivity must reject unknown names")
	}
}
