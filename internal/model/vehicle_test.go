package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pair(a *Arena, id int, volume int, from, to Location, pw, dw [2]float64, service float64) Handle {
	p, _ := a.AddPair(
		Request{ID: id, Location: from, Volume: volume, WindowStart: pw[0], WindowEnd: pw[1], ServiceTime: service},
		Request{ID: id + 1, Location: to, WindowStart: dw[0], WindowEnd: dw[1], ServiceTime: service},
	)
	return p
}

type state struct {
	seq   []Handle
	times []float64
}

func capture(v *Vehicle) state {
	a := v.Route().Arena()
	s := state{seq: v.Route().Handles()}
	for h := 0; h < a.Len(); h++ {
		s.times = append(s.times, a.Get(Handle(h)).RealizationTime)
	}
	return s
}

func TestInsertIntoEmptyRoute(t *testing.T) {
	a := NewArena()
	p := pair(a, 1, 3, Location{X: 10}, Location{X: 20}, [2]float64{0, 100}, [2]float64{10, 200}, 0)
	v := NewVehicle("v1", 5, Location{}, a, DriveFirst{})

	require.True(t, v.IsInsertionPossible(p, 0, 1))
	v.InsertRequest(p, 0, 1)

	assert.Equal(t, []int{1, 2}, v.Route().IDs())
	assert.Equal(t, 10.0, v.Route().At(0).RealizationTime)
	assert.Equal(t, 20.0, v.Route().At(1).RealizationTime)
	for _, r := range v.Route().Requests() {
		assert.True(t, r.InWindow(), r.String())
	}
}

func TestInsertRejectedOverCapacity(t *testing.T) {
	a := NewArena()
	p1 := pair(a, 1, 3, Location{X: 10}, Location{X: 20}, [2]float64{0, 100}, [2]float64{10, 200}, 0)
	p2 := pair(a, 3, 3, Location{X: 12}, Location{X: 18}, [2]float64{0, 100}, [2]float64{0, 200}, 0)
	v := NewVehicle("v1", 5, Location{}, a, DriveFirst{})
	v.InsertRequest(p1, 0, 1)
	before := capture(v)

	assert.False(t, v.IsInsertionPossible(p2, 1, 2))
	assert.False(t, v.IsInsertionPossible(p2, 0, 3))
	assert.Equal(t, before, capture(v))
	assert.Equal(t, []int{1, 2}, v.Route().IDs())

	// after the first delivery the vehicle is empty again
	assert.True(t, v.IsInsertionPossible(p2, 2, 3))
}

func TestInsertRejectedAheadOfServedRequest(t *testing.T) {
	a := NewArena()
	p1 := pair(a, 1, 1, Location{X: 10}, Location{X: 20}, [2]float64{0, 100}, [2]float64{0, 200}, 0)
	p2 := pair(a, 3, 1, Location{X: 1}, Location{X: 2}, [2]float64{0, 1000}, [2]float64{0, 1000}, 0)
	v := NewVehicle("v1", 5, Location{}, a, DriveFirst{})
	v.InsertRequest(p1, 0, 1)

	// pickup done at 10, delivery pending until 20
	assert.Empty(t, v.RemoveFinishedRequests(15, false))
	require.True(t, v.IsServed(1))
	before := capture(v)

	assert.False(t, v.IsInsertionPossible(p2, 0, 1))
	assert.False(t, v.IsInsertionPossible(p2, 0, 2))
	assert.Equal(t, before, capture(v))
	assert.True(t, v.IsInsertionPossible(p2, 1, 2))
}

func TestRejectedTrialLeavesStateUnchanged(t *testing.T) {
	a := NewArena()
	p1 := pair(a, 1, 2, Location{X: 10}, Location{X: 20}, [2]float64{0, 100}, [2]float64{0, 40}, 5)
	p2 := pair(a, 3, 2, Location{X: 30}, Location{X: 40}, [2]float64{0, 200}, [2]float64{0, 200}, 5)
	late := pair(a, 5, 1, Location{X: 100}, Location{X: 0}, [2]float64{0, 1000}, [2]float64{0, 1000}, 0)
	tight := pair(a, 7, 1, Location{X: 5}, Location{X: 6}, [2]float64{0, 1}, [2]float64{0, 1000}, 0)
	heavy := pair(a, 9, 4, Location{X: 11}, Location{X: 12}, [2]float64{0, 1000}, [2]float64{0, 1000}, 0)
	v := NewVehicle("v1", 5, Location{}, a, DriveFirst{})
	v.InsertRequest(p1, 0, 1)
	v.InsertRequest(p2, 2, 3)
	require.NoError(t, NewSolution(a, []*Vehicle{v}).Validate())

	cases := []struct {
		name     string
		h        Handle
		pickup   int
		delivery int
	}{
		{"detour breaks a later window", late, 1, 2},
		{"pickup window missed", tight, 2, 3},
		{"capacity exceeded between the pair", heavy, 0, 2},
		{"capacity exceeded at the pickup", heavy, 3, 4},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			before := capture(v)
			assert.False(t, v.IsInsertionPossible(tc.h, tc.pickup, tc.delivery))
			assert.Equal(t, before, capture(v))
		})
	}
}

func TestInvalidPositionsPanic(t *testing.T) {
	a := NewArena()
	p := pair(a, 1, 1, Location{X: 1}, Location{X: 2}, [2]float64{0, 100}, [2]float64{0, 100}, 0)
	v := NewVehicle("v1", 5, Location{}, a, DriveFirst{})

	assert.Panics(t, func() { v.IsInsertionPossible(p, 1, 1) })
	assert.Panics(t, func() { v.IsInsertionPossible(p, 0, 2) })
	assert.Panics(t, func() { v.IsInsertionPossible(a.Get(p).Sibling, 0, 1) })
	assert.Panics(t, func() { v.RemoveRequestAt(0, 1) })
}

func TestSameLocationStartsAfterService(t *testing.T) {
	a := NewArena()
	p := pair(a, 1, 1, Location{X: 5}, Location{X: 5}, [2]float64{0, 100}, [2]float64{0, 100}, 2)
	v := NewVehicle("v1", 5, Location{}, a, DriveFirst{})
	v.InsertRequest(p, 0, 1)

	assert.Equal(t, 5.0, v.Route().At(0).RealizationTime)
	assert.Equal(t, 7.0, v.Route().At(1).RealizationTime)
}

func TestRemovalShapes(t *testing.T) {
	build := func() (*Vehicle, Handle, Handle) {
		a := NewArena()
		p1 := pair(a, 1, 1, Location{X: 10}, Location{X: 20}, [2]float64{0, 100}, [2]float64{0, 200}, 0)
		p2 := pair(a, 3, 1, Location{X: 12}, Location{X: 18}, [2]float64{0, 100}, [2]float64{0, 200}, 0)
		v := NewVehicle("v1", 5, Location{}, a, DriveFirst{})
		v.InsertRequest(p1, 0, 1)
		v.InsertRequest(p2, 1, 2) // 1 3 4 2
		require.Equal(t, []int{1, 3, 4, 2}, v.Route().IDs())
		return v, p1, p2
	}

	t.Run("by index pair", func(t *testing.T) {
		v, p1, _ := build()
		assert.Equal(t, p1, v.RemoveRequestAt(0, 3))
		assert.Equal(t, []int{3, 4}, v.Route().IDs())
		assert.Equal(t, 12.0, v.Route().At(0).RealizationTime)
	})
	t.Run("by pickup index", func(t *testing.T) {
		v, _, p2 := build()
		assert.Equal(t, p2, v.RemoveRequestByPickupIndex(1))
		assert.Equal(t, []int{1, 2}, v.Route().IDs())
	})
	t.Run("by identity", func(t *testing.T) {
		v, p1, _ := build()
		pos := v.RemoveRequest(p1)
		assert.Equal(t, RequestPositions{PickupPosition: 0, DeliveryPosition: 3}, pos)
		assert.Equal(t, []int{3, 4}, v.Route().IDs())

		// reinserting at the reported slots restores the route
		v.InsertRequest(p1, pos.PickupPosition, pos.DeliveryPosition)
		assert.Equal(t, []int{1, 3, 4, 2}, v.Route().IDs())
	})
	t.Run("times reset to window start", func(t *testing.T) {
		v, p1, _ := build()
		a := v.Route().Arena()
		a.Get(p1).WindowStart = 3
		v.RemoveRequest(a.Get(p1).Sibling)
		assert.Equal(t, 3.0, a.Get(p1).RealizationTime)
		assert.Equal(t, 0.0, a.Sibling(p1).RealizationTime)
	})
}

func TestRemoveFinishedRequests(t *testing.T) {
	a := NewArena()
	p1 := pair(a, 1, 1, Location{X: 10}, Location{X: 20}, [2]float64{0, 100}, [2]float64{0, 200}, 1)
	p2 := pair(a, 3, 1, Location{X: 30}, Location{X: 40}, [2]float64{0, 200}, [2]float64{0, 200}, 1)
	v := NewVehicle("v1", 5, Location{}, a, DriveFirst{})
	v.InsertRequest(p1, 0, 1)
	v.InsertRequest(p2, 2, 3)
	// 1@10 2@21 3@32 4@43

	removed := v.RemoveFinishedRequests(33, true)
	assert.ElementsMatch(t, []Handle{p1, a.Get(p1).Sibling}, removed)
	assert.Equal(t, []int{3, 4}, v.Route().IDs())
	assert.Equal(t, []int{1, 2, 3}, v.ServedIDs())
	assert.Equal(t, Location{X: 30}, v.Location)
	assert.Equal(t, 32.0, v.Route().At(0).RealizationTime)
	assert.Equal(t, 43.0, v.Route().At(1).RealizationTime)

	before := capture(v)
	assert.Empty(t, v.RemoveFinishedRequests(33, true))
	assert.Equal(t, before, capture(v))
	assert.Equal(t, []int{1, 2, 3}, v.ServedIDs())

	v.RemoveRequest(p2)
	assert.Equal(t, []int{1, 2, 3}, v.ServedIDs())
}

func interleaved(t *testing.T) (*Arena, *Vehicle) {
	t.Helper()
	a := NewArena()
	p1 := pair(a, 1, 1, Location{X: 10}, Location{X: 30, Y: 10}, [2]float64{0, 1000}, [2]float64{0, 1000}, 0)
	p2 := pair(a, 3, 1, Location{X: 20}, Location{X: 40}, [2]float64{0, 1000}, [2]float64{0, 1000}, 0)
	v := NewVehicle("v1", 5, Location{}, a, DriveFirst{})
	v.InsertRequest(p1, 0, 1)
	v.InsertRequest(p2, 1, 3)
	require.Equal(t, []int{1, 3, 2, 4}, v.Route().IDs())
	return a, v
}

func TestRemoveFinishedRequestsKeepsOriginOnInterleavedRoute(t *testing.T) {
	_, v := interleaved(t)
	// 1@10 3@20 2@34.14 4@48.28
	require.Len(t, v.RemoveFinishedRequests(36, false), 2)
	assert.Equal(t, []int{3, 4}, v.Route().IDs())
	loc, dep := v.Origin()
	assert.Equal(t, Location{X: 30, Y: 10}, loc)
	assert.InDelta(t, 34.142, dep, 1e-3)
	assert.InDelta(t, 48.284, v.Route().At(1).RealizationTime, 1e-3)

	before := capture(v)
	assert.Empty(t, v.RemoveFinishedRequests(36, false))
	loc2, dep2 := v.Origin()
	assert.Equal(t, loc, loc2)
	assert.Equal(t, dep, dep2)
	assert.Equal(t, before, capture(v))

	// a later clock with nothing new finished moves nothing either
	assert.Empty(t, v.RemoveFinishedRequests(40, false))
	assert.Equal(t, before, capture(v))

	require.Len(t, v.RemoveFinishedRequests(50, false), 2)
	assert.Zero(t, v.Route().Len())
	loc3, dep3 := v.Origin()
	assert.Equal(t, Location{X: 40}, loc3)
	assert.InDelta(t, 48.284, dep3, 1e-3)
	assert.Equal(t, []int{1, 2, 3, 4}, v.ServedIDs())
}

func TestCurrentRequestAfterPruning(t *testing.T) {
	_, v := interleaved(t)
	v.RemoveFinishedRequests(36, false)
	// the served pickup 3 still heads the route
	require.True(t, v.IsServed(3))
	assert.Equal(t, 3, v.Route().At(0).ID)

	assert.Equal(t, 4, v.CurrentRequest(36).ID)
	assert.Equal(t, 4, v.CurrentRequest(48).ID)
	assert.Equal(t, 4, v.CurrentRequest(500).ID)
	assert.Equal(t, 3, v.CurrentRequest(15).ID)
}

func TestRemoveRequestsByIDsAcceptsEitherSide(t *testing.T) {
	a, v := interleaved(t)
	removed := v.RemoveRequestsByIDs([]int{4, 99})
	h, _ := a.ByID(3)
	assert.Equal(t, []Handle{h}, removed)
	assert.Equal(t, []int{1, 2}, v.Route().IDs())

	removed = v.RemoveRequestsByIDs([]int{1})
	h, _ = a.ByID(1)
	assert.Equal(t, []Handle{h}, removed)
	assert.Zero(t, v.Route().Len())
}

func TestCurrentRequest(t *testing.T) {
	a := NewArena()
	p := pair(a, 1, 1, Location{X: 10}, Location{X: 20}, [2]float64{0, 100}, [2]float64{0, 200}, 0)
	v := NewVehicle("v1", 5, Location{}, a, DriveFirst{})
	assert.Nil(t, v.CurrentRequest(0))

	v.InsertRequest(p, 0, 1)
	assert.Equal(t, 1, v.CurrentRequest(5).ID)
	assert.Equal(t, 2, v.CurrentRequest(15).ID)
	assert.Equal(t, 2, v.CurrentRequest(500).ID)
}

func TestVehicleCopies(t *testing.T) {
	a := NewArena()
	p := pair(a, 1, 1, Location{X: 10}, Location{X: 20}, [2]float64{0, 100}, [2]float64{0, 200}, 0)
	v := NewVehicle("v1", 5, Location{}, a, DriveFirst{})
	v.InsertRequest(p, 0, 1)

	shallow := v.ShallowCopy()
	shallow.Route().At(0).RealizationTime = 42
	assert.Equal(t, 42.0, v.Route().At(0).RealizationTime)
	shallow.RemoveRequest(p)
	assert.Equal(t, 2, v.Route().Len())

	live := v.Route().At(0).RealizationTime
	deep := v.Copy()
	deep.Route().At(0).RealizationTime = live + 7
	assert.Equal(t, live, v.Route().At(0).RealizationTime)
	require.NoError(t, deep.Route().Validate())
	assert.Equal(t, []int{1, 2}, deep.Route().IDs())
}
