package geometry

import "math"

// LineType selects how a connection is routed.
type LineType int

const (
	Bezier LineType = iota
	Straight
	Orthogonal
)

// ParseLineType maps a stored integer to a LineType. Unknown values fall back
// to Bezier.
func ParseLineType(v int) LineType {
	switch LineType(v) {
	case Straight, Orthogonal:
		return LineType(v)
	default:
		return Bezier
	}
}

func (t LineType) String() string {
	switch t {
	case Straight:
		return "straight"
	case Orthogonal:
		return "orthogonal"
	default:
		return "bezier"
	}
}

// SegmentKind distinguishes straight from cubic path segments.
type SegmentKind int

const (
	SegLine SegmentKind = iota
	SegCubic
)

// Segment continues a path from the previous end point to To. C1 and C2 are
// set for cubic segments only.
type Segment struct {
	Kind SegmentKind `json:"kind"`
	C1   Point       `json:"c1,omitempty"`
	C2   Point       `json:"c2,omitempty"`
	To   Point       `json:"to"`
}

// Path is a routed connection curve.
type Path struct {
	Start    Point     `json:"start"`
	Segments []Segment `json:"segments"`
}

// minBezierOffset keeps short or backwards curves visibly bent.
const minBezierOffset = 50.0

// ComputePath routes a connection from an output port at from to an input port
// at to.
func ComputePath(from, to Point, lt LineType) Path {
	p := Path{Start: from}
	switch lt {
	case Straight:
		p.Segments = []Segment{{Kind: SegLine, To: to}}
	case Orthogonal:
		midX := (from.X + to.X) / 2
		p.Segments = []Segment{
			{Kind: SegLine, To: Point{X: midX, Y: from.Y}},
			{Kind: SegLine, To: Point{X: midX, Y: to.Y}},
			{Kind: SegLine, To: to},
		}
	default:
		off := math.Max(math.Abs(to.X-from.X)*0.4, minBezierOffset)
		p.Segments = []Segment{{
			Kind: SegCubic,
			C1:   Point{X: from.X + off, Y: from.Y},
			C2:   Point{X: to.X - off, Y: to.Y},
			To:   to,
		}}
	}
	return p
}

// End returns the last point of the path.
func (p Path) End() Point {
	if len(p.Segments) == 0 {
		return p.Start
	}
	return p.Segments[len(p.Segments)-1].To
}

// Bounds returns the axis-aligned box enclosing every point and control point
// of the path.
func (p Path) Bounds() (min, max Point) {
	min, max = p.Start, p.Start
	grow := func(q Point) {
		min.X = math.Min(min.X, q.X)
		min.Y = math.Min(min.Y, q.Y)
		max.X = math.Max(max.X, q.X)
		max.Y = math.Max(max.Y, q.Y)
	}
	for _, s := range p.Segments {
		if s.Kind == SegCubic {
			grow(s.C1)
			grow(s.C2)
		}
		grow(s.To)
	}
	return min, max
}
