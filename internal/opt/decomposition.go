package opt

import (
	"pdptw/internal/model"
)

// SubProblem is an independent slice of the problem. Its vehicles and pool
// live in their own copy of the request arena, sharing the handle space of
// the original so results merge back by handle.
type SubProblem struct {
	Index    int
	Arena    *model.Arena
	Pool     *model.Pool
	Vehicles []*model.Vehicle
	// Fleet maps sub-problem vehicles to their index in the full fleet.
	Fleet []int
}

// Decomposition partitions a pool and fleet. Every pickup and every vehicle
// ends up in exactly one sub-problem.
type Decomposition interface {
	Decompose(pool *model.Pool, vehicles []*model.Vehicle) []SubProblem
}

func newSubProblem(index int, arena *model.Arena, hs []model.Handle, vehicles []*model.Vehicle, fleet []int) SubProblem {
	clone := arena.Clone()
	vs := make([]*model.Vehicle, len(fleet))
	for i, vi := range fleet {
		vs[i] = vehicles[vi].CloneInto(clone)
	}
	return SubProblem{Index: index, Arena: clone, Pool: model.NewPool(hs...), Vehicles: vs, Fleet: fleet}
}

// NoDecomposition keeps the problem whole.
type NoDecomposition struct{}

func (NoDecomposition) Decompose(pool *model.Pool, vehicles []*model.Vehicle) []SubProblem {
	if len(vehicles) == 0 {
		return nil
	}
	fleet := make([]int, len(vehicles))
	for i := range fleet {
		fleet[i] = i
	}
	return []SubProblem{newSubProblem(0, vehicles[0].Route().Arena(), pool.Handles(), vehicles, fleet)}
}

// SweepDecomposition orders pickups by angle around the first vehicle's
// start, cuts them into Parts contiguous groups of near equal size and deals
// the vehicles round-robin. Parts is clipped to the fleet size.
type SweepDecomposition struct {
	Parts int
}

func (s SweepDecomposition) Decompose(pool *model.Pool, vehicles []*model.Vehicle) []SubProblem {
	if len(vehicles) == 0 {
		return nil
	}
	k := min(max(s.Parts, 1), len(vehicles))
	arena := vehicles[0].Route().Arena()
	order := byAngle(arena, vehicles[0].StartLocation, pool.Handles())

	fleets := make([][]int, k)
	for vi := range vehicles {
		fleets[vi%k] = append(fleets[vi%k], vi)
	}
	out := make([]SubProblem, k)
	for i := 0; i < k; i++ {
		lo, hi := i*len(order)/k, (i+1)*len(order)/k
		out[i] = newSubProblem(i, arena, order[lo:hi], vehicles, fleets[i])
	}
	return out
}

// Merge writes the sub-problem results back into the full fleet and returns
// the pickups left unassigned by any of them.
func Merge(vehicles []*model.Vehicle, subs []SubProblem) *model.Pool {
	left := model.NewPool()
	for _, sp := range subs {
		for i, vi := range sp.Fleet {
			vehicles[vi].Absorb(sp.Vehicles[i])
		}
		for _, h := range sp.Pool.Handles() {
			left.Add(h)
		}
	}
	return left
}
