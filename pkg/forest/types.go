package forest

import "fmt"

// Dimension selects between quadtrees (2D) and octrees (3D).
type Dimension int

const (
	Dim2 Dimension = 2
	Dim3 Dimension = 3
)

// Children returns the number of children of a refined element (2^D).
func (d Dimension) Children() int {
	return 1 << uint(d)
}

// Faces returns the number of element faces (2*D).
func (d Dimension) Faces() int {
	return 2 * int(d)
}

// Edges returns the number of element edges. Edges exist only in 3D.
func (d Dimension) Edges() int {
	if d == Dim3 {
		return 12
	}
	return 0
}

// Corners returns the number of element corners (2^D).
func (d Dimension) Corners() int {
	return 1 << uint(d)
}

// MaxLevel returns the deepest refinement level representable in the
// coordinate encoding: 29 for quadtrees, 19 for octrees.
func (d Dimension) MaxLevel() int8 {
	if d == Dim3 {
		return 19
	}
	return 29
}

// RootLength returns the edge length of the unit tree in units of the
// finest representable cell.
func (d Dimension) RootLength() int32 {
	return 1 << uint(d.MaxLevel())
}

// Valid reports whether d is a supported dimension.
func (d Dimension) Valid() bool {
	return d == Dim2 || d == Dim3
}

// Connectivity fixes which neighbor directions count as adjacent.
// The values are ordered: a richer connectivity compares greater.
type Connectivity int

const (
	// ConnectFace considers face neighbors only.
	ConnectFace Connectivity = iota + 1
	// ConnectEdge additionally considers edge neighbors (3D only).
	ConnectEdge
	// ConnectFull considers face, edge (3D) and corner neighbors.
	ConnectFull
)

// String returns the human-readable connectivity name.
func (c Connectivity) String() string {
	switch c {
	case ConnectFace:
		return "face"
	case ConnectEdge:
		return "edge"
	case ConnectFull:
		return "full"
	default:
		return fmt.Sprintf("connectivity(%d)", int(c))
	}
}

// Valid reports whether c is a supported connectivity for dimension d.
// ConnectEdge exists only in 3D.
func (c Connectivity) Valid(d Dimension) bool {
	switch c {
	case ConnectFace, ConnectFull:
		return d.Valid()
	case ConnectEdge:
		return d == Dim3
	default:
		return false
	}
}

// ParseConnectivity maps a configuration string to a Connectivity.
func ParseConnectivity(s string) (Connectivity, error) {
	switch s {
	case "face":
		return ConnectFace, nil
	case "edge":
		return ConnectEdge, nil
	case "full":
		return ConnectFull, nil
	default:
		return 0, fmt.Errorf("forest: unknown connectivity %q", s)
	}
}

// Directions returns the number of neighbor directions inspected under c.
// Directions are indexed faces first, then edges (3D), then corners.
func (d Dimension) Directions(c Connectivity) int {
	n := d.Faces()
	if d == Dim3 && c >= ConnectEdge {
		n += d.Edges()
	}
	if c == ConnectFull {
		n += d.Corners()
	}
	return n
}
