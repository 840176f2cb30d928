package forest

import "testing"

// TestLinearIDRoundTrip checks that LinearID and SetMorton are inverse on
// every leaf of a small uniform forest, in both dimensions.
func TestLinearIDRoundTrip(t *testing.T) {
	for _, dim := range []Dimension{Dim2, Dim3} {
		f := NewUniform(dim, 3)
		for i, q := range f.Quadrants {
			id := q.LinearID(dim, q.Level)
			if id != uint64(i) {
				t.Errorf("%dD leaf %d: LinearID = %d", int(dim), i, id)
			}
			r := SetMorton(dim, q.Level, id)
			if !r.Equal(q) {
				t.Errorf("%dD leaf %d: SetMorton(%d) = %+v; want %+v", int(dim), i, id, r, q)
			}
		}
	}
}

// TestLinearIDAtCoarserLevel checks the ancestor id round trip: converting
// a quadrant to its ancestor's id and back must land on the ancestor.
func TestLinearIDAtCoarserLevel(t *testing.T) {
	for _, dim := range []Dimension{Dim2, Dim3} {
		f := NewUniform(dim, 3)
		for _, q := range f.Quadrants {
			level := q.Level - 1
			id1 := q.LinearID(dim, level)
			r := SetMorton(dim, level, id1)
			id2 := r.LinearID(dim, level)
			if id1 != id2 {
				t.Errorf("%dD: ancestor id %d != %d", int(dim), id1, id2)
			}
			if !r.Equal(q.Parent(dim)) {
				t.Errorf("%dD: SetMorton ancestor %+v; want %+v", int(dim), r, q.Parent(dim))
			}
		}
	}
}

// TestParentChild verifies Child and Parent are inverse and ChildID
// reports the Morton position.
func TestParentChild(t *testing.T) {
	for _, dim := range []Dimension{Dim2, Dim3} {
		root := Quadrant{}
		for i := 0; i < dim.Children(); i++ {
			c := root.Child(dim, i)
			if c.Level != 1 {
				t.Errorf("%dD child %d level = %d", int(dim), i, c.Level)
			}
			if got := c.ChildID(dim); got != i {
				t.Errorf("%dD ChildID = %d; want %d", int(dim), got, i)
			}
			if p := c.Parent(dim); !p.Equal(root) {
				t.Errorf("%dD Parent(Child(%d)) = %+v", int(dim), i, p)
			}
		}
	}
}

func TestLength(t *testing.T) {
	q := Quadrant{Level: 2}
	if got := q.Length(Dim2); got != Dim2.RootLength()/4 {
		t.Errorf("Length = %d; want %d", got, Dim2.RootLength()/4)
	}
	if got := q.Length(Dim3); got != Dim3.RootLength()/4 {
		t.Errorf("Length = %d; want %d", got, Dim3.RootLength()/4)
	}
}
