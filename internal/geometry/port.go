// Package geometry holds the pure layout math of the editor: port anchor
// positions, port hit-testing and connection path routing.
package geometry

import "math"

// Port sizes in scene units.
const (
	PortRadius    = 8.0
	CaptureRadius = 12.0
)

// Point is a 2D scene coordinate.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Add returns p+q.
func (p Point) Add(q Point) Point { return Point{X: p.X + q.X, Y: p.Y + q.Y} }

// Sub returns p-q.
func (p Point) Sub(q Point) Point { return Point{X: p.X - q.X, Y: p.Y - q.Y} }

// Dist returns the euclidean distance between p and q.
func (p Point) Dist(q Point) float64 { return math.Hypot(p.X-q.X, p.Y-q.Y) }

// Centroid returns the mean of pts, or the origin for an empty slice.
func Centroid(pts []Point) Point {
	var c Point
	if len(pts) == 0 {
		return c
	}
	for _, p := range pts {
		c = c.Add(p)
	}
	n := float64(len(pts))
	return Point{X: c.X / n, Y: c.Y / n}
}

// Size is a width/height pair.
type Size struct {
	W float64 `json:"w"`
	H float64 `json:"h"`
}

// Direction tells input ports from output ports.
type Direction int

const (
	In Direction = iota
	Out
)

func (d Direction) String() string {
	if d == In {
		return "in"
	}
	return "out"
}

// PortPosition returns the scene position of port index on the dir edge of a
// node centred at center. Ports straddle the node boundary. A count of zero
// or less yields the edge midpoint; an index outside [0,count) is treated as 0.
func PortPosition(center Point, size Size, dir Direction, index, count int) Point {
	x := center.X - size.W/2
	if dir == Out {
		x = center.X + size.W/2
	}
	if count <= 1 {
		return Point{X: x, Y: center.Y}
	}
	if index < 0 || index >= count {
		index = 0
	}
	step := 0.8 * size.H / float64(count-1)
	return Point{X: x, Y: center.Y - 0.4*size.H + float64(index)*step}
}

// InputPortPosition is PortPosition for the left edge.
func InputPortPosition(center Point, size Size, index, count int) Point {
	return PortPosition(center, size, In, index, count)
}

// OutputPortPosition is PortPosition for the right edge.
func OutputPortPosition(center Point, size Size, index, count int) Point {
	return PortPosition(center, size, Out, index, count)
}

// HitTestPort reports the first port on the dir edge whose anchor lies within
// CaptureRadius of p.
func HitTestPort(center Point, size Size, dir Direction, count int, p Point) (int, bool) {
	for i := 0; i < count; i++ {
		if PortPosition(center, size, dir, i, count).Dist(p) <= CaptureRadius {
			return i, true
		}
	}
	return -1, false
}
