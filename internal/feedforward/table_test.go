package feedforward

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLookupEndpoints(t *testing.T) {
	tbl := DefaultDuty()

	assert.Equal(t, 0.18, tbl.Lookup(-40))
	assert.Equal(t, 0.18, tbl.Lookup(20))
	assert.Equal(t, 0.91, tbl.Lookup(100))
	assert.Equal(t, 0.91, tbl.Lookup(250))
}

func TestLookupInterpolates(t *testing.T) {
	tbl := New("t", []Point{{0, 0}, {10, 1}, {20, 3}})

	assert.InDelta(t, 0.5, tbl.Lookup(5), 1e-9)
	assert.InDelta(t, 2.0, tbl.Lookup(15), 1e-9)
	assert.InDelta(t, 1.0, tbl.Lookup(10), 1e-9)
	assert.InDelta(t, 0.64, DefaultDuty().Lookup(70), 1e-9)
}

func TestLookupStaysWithinBoundsAndIsMonotone(t *testing.T) {
	tbl := DefaultDuty()
	lo, hi := tbl.Bounds()
	rng := rand.New(rand.NewSource(7))

	prev := tbl.Lookup(20)
	for x := 20.0; x <= 100; x += 0.25 {
		y := tbl.Lookup(x)
		assert.GreaterOrEqual(t, y, lo)
		assert.LessOrEqual(t, y, hi)
		assert.GreaterOrEqual(t, y, prev-1e-12, "duty table is ascending, lookup must follow")
		prev = y
	}

	for i := 0; i < 1000; i++ {
		x := rng.Float64()*200 - 50
		y := tbl.Lookup(x)
		assert.GreaterOrEqual(t, y, lo)
		assert.LessOrEqual(t, y, hi)
	}
}

func TestLookupDescendingTable(t *testing.T) {
	tbl := DefaultWarming()
	lo, hi := tbl.Bounds()

	prev := tbl.Lookup(25)
	for x := 25.0; x <= 70; x += 0.5 {
		y := tbl.Lookup(x)
		assert.LessOrEqual(t, y, prev+1e-12)
		assert.GreaterOrEqual(t, y, lo)
		assert.LessOrEqual(t, y, hi)
		prev = y
	}
	assert.InDelta(t, 1.0, tbl.Lookup(40), 1e-9)
}

func TestLookupEmptyAndSingle(t *testing.T) {
	assert.Equal(t, 0.0, New("e", nil).Lookup(10))
	assert.Equal(t, 0.4, New("s", []Point{{30, 0.4}}).Lookup(10))
	assert.Equal(t, 0.4, New("s", []Point{{30, 0.4}}).Lookup(90))
}

func TestSetOverwritesNearestEntry(t *testing.T) {
	tbl := DefaultDuty()
	before := tbl.Points()

	i, err := tbl.Set(40.0, 0.30)
	require.NoError(t, err)

	after := tbl.Points()
	assert.Equal(t, 3, i)
	assert.Equal(t, 0.30, after[i].Y)
	assert.Equal(t, 40.0, after[i].X)
	for j := range before {
		if j != i {
			assert.Equal(t, before[j], after[j])
		}
	}
}

func TestSetWithinTolerance(t *testing.T) {
	tbl := DefaultDuty()

	i, err := tbl.Set(41.5, 0.4)
	require.NoError(t, err)
	assert.Equal(t, 40.0, tbl.Points()[i].X)

	// 22.4 is 2.4 from 20 and 2.6 from 25: nothing within tolerance.
	_, err = tbl.Set(22.4, 0.5)
	assert.ErrorIs(t, err, ErrNoEntry)

	// 23.5 is 1.5 from 25 only.
	i, err = tbl.Set(23.5, 0.2)
	require.NoError(t, err)
	assert.Equal(t, 25.0, tbl.Points()[i].X)
}

func TestSetOutOfRangeLeavesTableUnchanged(t *testing.T) {
	tbl := DefaultDuty()
	before := tbl.Points()

	_, err := tbl.Set(1000, 0.3)
	assert.ErrorIs(t, err, ErrNoEntry)
	assert.Equal(t, before, tbl.Points())
}

func TestMove(t *testing.T) {
	tbl := DefaultDuty()

	i, err := tbl.Move(40, 41, 0.37)
	require.NoError(t, err)
	assert.Equal(t, Point{41, 0.37}, tbl.Points()[i])
	assert.True(t, tbl.Sorted())

	before := tbl.Points()
	_, err = tbl.Move(41, 55, 0.5)
	assert.ErrorIs(t, err, ErrOrder)
	assert.Equal(t, before, tbl.Points())
}

func TestSetAndMoveRejectNonFinite(t *testing.T) {
	tbl := DefaultDuty()
	before := tbl.Points()

	_, err := tbl.Set(70, math.NaN())
	assert.ErrorIs(t, err, ErrNaN)
	_, err = tbl.Set(70, math.Inf(1))
	assert.ErrorIs(t, err, ErrNaN)
	_, err = tbl.Move(40, math.NaN(), 0.4)
	assert.ErrorIs(t, err, ErrNaN)
	_, err = tbl.Move(40, 41, math.Inf(-1))
	assert.ErrorIs(t, err, ErrNaN)

	assert.Equal(t, before, tbl.Points())
	assert.True(t, tbl.Finite())
}

func TestSortedRejectsNaN(t *testing.T) {
	assert.False(t, New("t", []Point{{20, 1}, {math.NaN(), 2}, {40, 3}}).Sorted())
	assert.False(t, New("t", []Point{{math.NaN(), 1}, {30, 2}}).Sorted())
	assert.False(t, New("t", []Point{{math.NaN(), 1}}).Sorted())
	assert.False(t, New("t", []Point{{20, 1}, {30, math.NaN()}}).Finite())
	assert.True(t, New("t", nil).Sorted())
}

func TestCloneIsIndependent(t *testing.T) {
	tbl := DefaultBias()
	c := tbl.Clone()

	_, err := c.Set(40, 99)
	require.NoError(t, err)
	assert.NotEqual(t, c.Lookup(40), tbl.Lookup(40))
	assert.Equal(t, tbl.Name(), c.Name())
}

func TestDefaultsSorted(t *testing.T) {
	for _, tbl := range []*Table{DefaultDuty(), DefaultBias(), DefaultWarming()} {
		assert.True(t, tbl.Sorted(), tbl.Name())
	}
	assert.False(t, New("bad", []Point{{10, 0}, {5, 1}}).Sorted())
}
