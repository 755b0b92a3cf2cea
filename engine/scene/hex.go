package scene

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// Axial addresses a cell in the hexagonal grid. The implicit third cube
// coordinate is S() = -Q-R.
type Axial struct {
	Q int `json:"q"`
	R int `json:"r"`
}

func (a Axial) S() int { return -a.Q - a.R }

func (a Axial) Add(b Axial) Axial {
	return Axial{Q: a.Q + b.Q, R: a.R + b.R}
}

func (a Axial) Scale(factor int) Axial {
	return Axial{Q: a.Q * factor, R: a.R * factor}
}

// directions walks counter-clockwise around a hexagon.
var directions = [6]Axial{
	{Q: 1, R: 0},
	{Q: 1, R: -1},
	{Q: 0, R: -1},
	{Q: -1, R: 0},
	{Q: -1, R: 1},
	{Q: 0, R: 1},
}

func (a Axial) Neighbor(direction int) Axial {
	return a.Add(directions[direction])
}

// Spiral returns the i-th cell of the outward spiral from the origin, where
// i=0 is the center. Each ring at radius n holds 6n cells.
func Spiral(i int) Axial {
	if i == 0 {
		return Axial{}
	}

	cellsBefore := 1
	radius := 1
	for cellsBefore+radius*6 <= i {
		cellsBefore += radius * 6
		radius++
	}
	posInRing := i - cellsBefore

	// start at the top of the ring and walk its six sides
	hex := directions[4].Scale(radius)
	steps := 0
	for side := 0; side < 6; side++ {
		for step := 0; step < radius; step++ {
			if steps == posInRing {
				return hex
			}
			hex = hex.Neighbor(side)
			steps++
		}
	}
	return hex
}

// Ring returns the cells at exactly the given radius around center, in the
// same walk order Spiral uses. Radius 0 is the center itself.
func Ring(center Axial, radius int) []Axial {
	if radius == 0 {
		return []Axial{center}
	}

	out := make([]Axial, 0, 6*radius)
	hex := center.Add(directions[4].Scale(radius))
	for side := 0; side < 6; side++ {
		for step := 0; step < radius; step++ {
			out = append(out, hex)
			hex = hex.Neighbor(side)
		}
	}
	return out
}

// cellSpacing is the center-to-center half pitch for the grid geometry.
func cellSpacing(tileSize, padding float64) float64 {
	return (tileSize + padding) / 2
}

// WorldXY converts a cell to launcher-plane coordinates (z is always 0; the
// grid lives in the launcher's local XY plane).
func WorldXY(a Axial, tileSize, padding float64) r3.Vec {
	k := cellSpacing(tileSize, padding)
	r, s := float64(a.R), float64(a.S())
	x := 1.5 * k * r
	y := math.Sqrt(3) * k * (r/2 + s)
	return r3.Vec{X: x, Y: y}
}

// FromPoint converts a launcher-plane point to the containing cell using
// cube rounding: round each cube coordinate, then recompute the component
// with the largest rounding error from the other two.
func FromPoint(p r3.Vec, tileSize, padding float64) Axial {
	k := cellSpacing(tileSize, padding)

	// invert WorldXY
	rf := p.X / (1.5 * k)
	qf := -p.Y/(math.Sqrt(3)*k) - rf/2
	sf := -qf - rf

	q := math.Round(qf)
	r := math.Round(rf)
	s := math.Round(sf)

	dq := math.Abs(q - qf)
	dr := math.Abs(r - rf)
	ds := math.Abs(s - sf)

	switch {
	case dq > dr && dq > ds:
		q = -r - s
	case dr > ds:
		r = -q - s
	default:
		// s is implied; q and r stand
	}

	return Axial{Q: int(q), R: int(r)}
}
