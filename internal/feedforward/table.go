package feedforward

import (
	"errors"
	"fmt"
	"math"
)

// Tolerance is the distance within which Set and Move match an existing
// entry. Entries are never inserted.
const Tolerance = 2.0

var (
	ErrNoEntry = errors.New("feedforward: no entry within tolerance")
	ErrOrder   = errors.New("feedforward: entry would break ascending order")
	ErrEmpty   = errors.New("feedforward: table is empty")
	ErrNaN     = errors.New("feedforward: coordinate must be finite")
)

// Point is one calibration pair.
type Point struct {
	X float64 `yaml:"x" json:"x"`
	Y float64 `yaml:"y" json:"y"`
}

// Table is a piecewise-linear lookup over points sorted ascending by X.
// Ordering is a construction-time contract and is not checked on Lookup.
type Table struct {
	name   string
	points []Point
}

func New(name string, points []Point) *Table {
	p := make([]Point, len(points))
	copy(p, points)
	return &Table{name: name, points: p}
}

func (t *Table) Name() string { return t.name }
func (t *Table) Len() int     { return len(t.points) }

// Points returns a copy of the entries.
func (t *Table) Points() []Point {
	p := make([]Point, len(t.points))
	copy(p, t.points)
	return p
}

func (t *Table) Clone() *Table {
	return New(t.name, t.points)
}

// Lookup returns the end values outside the tabulated domain and the linear
// interpolation of the first bracketing pair otherwise.
func (t *Table) Lookup(x float64) float64 {
	n := len(t.points)
	if n == 0 {
		return 0
	}
	if x <= t.points[0].X {
		return t.points[0].Y
	}
	if x >= t.points[n-1].X {
		return t.points[n-1].Y
	}
	for i := 0; i < n-1; i++ {
		a, b := t.points[i], t.points[i+1]
		if x >= a.X && x <= b.X {
			span := b.X - a.X
			if span == 0 {
				return a.Y
			}
			ratio := (x - a.X) / span
			return a.Y + ratio*(b.Y-a.Y)
		}
	}
	return t.points[n-1].Y
}

// Bounds returns the smallest and largest tabulated Y.
func (t *Table) Bounds() (lo, hi float64) {
	if len(t.points) == 0 {
		return 0, 0
	}
	lo, hi = math.Inf(1), math.Inf(-1)
	for _, p := range t.points {
		lo = math.Min(lo, p.Y)
		hi = math.Max(hi, p.Y)
	}
	return lo, hi
}

// Sorted reports whether X is strictly increasing. A non-finite X is never
// ordered.
func (t *Table) Sorted() bool {
	for i := 1; i < len(t.points); i++ {
		if !(t.points[i].X > t.points[i-1].X) {
			return false
		}
	}
	return len(t.points) == 0 || finite(t.points[0].X)
}

// Finite reports whether every coordinate is a finite number.
func (t *Table) Finite() bool {
	for _, p := range t.points {
		if !finite(p.X) || !finite(p.Y) {
			return false
		}
	}
	return true
}

func finite(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }

// nearest returns the index of the entry closest to x, or -1 when none lies
// strictly within Tolerance. Ties go to the earlier entry.
func (t *Table) nearest(x float64) int {
	best, bestDist := -1, Tolerance
	for i, p := range t.points {
		d := math.Abs(p.X - x)
		if d < bestDist {
			best, bestDist = i, d
		}
	}
	return best
}

// Set overwrites the Y of the entry nearest to x.
func (t *Table) Set(x, y float64) (int, error) {
	if len(t.points) == 0 {
		return -1, ErrEmpty
	}
	if !finite(y) {
		return -1, fmt.Errorf("%s y=%v: %w", t.name, y, ErrNaN)
	}
	i := t.nearest(x)
	if i < 0 {
		return -1, fmt.Errorf("%s near %.2f: %w", t.name, x, ErrNoEntry)
	}
	t.points[i].Y = y
	return i, nil
}

// Move overwrites both coordinates of the entry nearest to x. The new X must
// stay strictly between its neighbours.
func (t *Table) Move(x, newX, y float64) (int, error) {
	if len(t.points) == 0 {
		return -1, ErrEmpty
	}
	if !finite(newX) || !finite(y) {
		return -1, fmt.Errorf("%s x=%v y=%v: %w", t.name, newX, y, ErrNaN)
	}
	i := t.nearest(x)
	if i < 0 {
		return -1, fmt.Errorf("%s near %.2f: %w", t.name, x, ErrNoEntry)
	}
	if i > 0 && newX <= t.points[i-1].X {
		return -1, fmt.Errorf("%s x=%.2f: %w", t.name, newX, ErrOrder)
	}
	if i < len(t.points)-1 && newX >= t.points[i+1].X {
		return -1, fmt.Errorf("%s x=%.2f: %w", t.name, newX, ErrOrder)
	}
	t.points[i] = Point{X: newX, Y: y}
	return i, nil
}
