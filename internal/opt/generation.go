package opt

import (
	"cmp"
	"fmt"
	"math"
	"slices"

	"pdptw/internal/model"
)

// checkInputs rejects configurations no generation can work with.
func checkInputs(pool *model.Pool, vehicles []*model.Vehicle) (*model.Arena, error) {
	if len(vehicles) == 0 {
		return nil, fmt.Errorf("%w: empty fleet", ErrInvalidArgument)
	}
	arena := vehicles[0].Route().Arena()
	for _, v := range vehicles {
		if v.MaxCapacity <= 0 {
			return nil, fmt.Errorf("%w: vehicle %s has capacity %d", ErrInvalidArgument, v.ID, v.MaxCapacity)
		}
		if v.Route().Arena() != arena {
			return nil, fmt.Errorf("%w: vehicle %s uses a different request arena", ErrInvalidArgument, v.ID)
		}
	}
	for _, h := range pool.Handles() {
		if h < 0 || int(h) >= arena.Len() || arena.Get(h).Kind != model.Pickup {
			return nil, fmt.Errorf("%w: pool entry %d is not a pickup", ErrInvalidArgument, h)
		}
	}
	return arena, nil
}

// byAngle orders pickups by polar angle around origin, then by id.
func byAngle(arena *model.Arena, origin model.Location, hs []model.Handle) []model.Handle {
	slices.SortStableFunc(hs, func(a, b model.Handle) int {
		ra, rb := arena.Get(a), arena.Get(b)
		if c := cmp.Compare(model.Angle(origin, ra.Location), model.Angle(origin, rb.Location)); c != 0 {
			return c
		}
		return cmp.Compare(ra.ID, rb.ID)
	})
	return hs
}

func place(v *model.Vehicle, pool *model.Pool, h model.Handle) bool {
	c := cheapestPosition(v, h)
	if !c.ok {
		return false
	}
	v.InsertRequest(h, c.pickup, c.delivery)
	pool.Remove(h)
	return true
}

// GreedyGeneration takes pickups by window start and puts each at its
// cheapest feasible position among vehicles already in use. A new vehicle is
// opened only when none of them fits.
type GreedyGeneration struct{}

func (GreedyGeneration) Generate(pool *model.Pool, vehicles []*model.Vehicle) (*model.Solution, error) {
	arena, err := checkInputs(pool, vehicles)
	if err != nil {
		return nil, err
	}
	order := pool.Handles()
	slices.SortStableFunc(order, func(a, b model.Handle) int {
		ra, rb := arena.Get(a), arena.Get(b)
		if c := cmp.Compare(ra.WindowStart, rb.WindowStart); c != 0 {
			return c
		}
		return cmp.Compare(ra.ID, rb.ID)
	})
	for _, h := range order {
		best, bestV := candidate{cost: math.Inf(1)}, -1
		for vi, v := range vehicles {
			if v.Route().Len() == 0 {
				continue
			}
			if c := cheapestPosition(v, h); c.ok && c.cost < best.cost {
				best, bestV = c, vi
			}
		}
		if bestV >= 0 {
			vehicles[bestV].InsertRequest(h, best.pickup, best.delivery)
			pool.Remove(h)
			continue
		}
		for _, v := range vehicles {
			if v.Route().Len() == 0 && place(v, pool, h) {
				break
			}
		}
	}
	return model.NewSolution(arena, vehicles), nil
}

// SweepGeneration sweeps pickups by angle around the first vehicle's start
// and fills one vehicle at a time. Whatever does not fit is placed greedily.
type SweepGeneration struct {
	Workers int
}

func (s SweepGeneration) Generate(pool *model.Pool, vehicles []*model.Vehicle) (*model.Solution, error) {
	arena, err := checkInputs(pool, vehicles)
	if err != nil {
		return nil, err
	}
	cur := 0
	for _, h := range byAngle(arena, vehicles[0].StartLocation, pool.Handles()) {
		for cur < len(vehicles) {
			if place(vehicles[cur], pool, h) {
				break
			}
			if vehicles[cur].Route().Len() == 0 {
				break
			}
			cur++
		}
	}
	sol := model.NewSolution(arena, vehicles)
	GreedyInsertion{Workers: s.Workers}.Insert(sol, pool)
	return sol, nil
}

// SectorGeneration splits the plane around the first vehicle's start into
// one equal angular sector per vehicle. Pickups go to their sector's
// vehicle; leftovers are placed greedily anywhere.
type SectorGeneration struct {
	Workers int
}

func (s SectorGeneration) Generate(pool *model.Pool, vehicles []*model.Vehicle) (*model.Solution, error) {
	arena, err := checkInputs(pool, vehicles)
	if err != nil {
		return nil, err
	}
	depot := vehicles[0].StartLocation
	width := 2 * math.Pi / float64(len(vehicles))
	for _, h := range byAngle(arena, depot, pool.Handles()) {
		sector := min(int(model.Angle(depot, arena.Get(h).Location)/width), len(vehicles)-1)
		place(vehicles[sector], pool, h)
	}
	sol := model.NewSolution(arena, vehicles)
	GreedyInsertion{Workers: s.Workers}.Insert(sol, pool)
	return sol, nil
}
