package opt

import (
	"cmp"
	"math"
	"slices"

	"golang.org/x/sync/errgroup"

	"pdptw/internal/model"
)

// candidate is the cheapest feasible placement of one pair in one vehicle.
type candidate struct {
	cost     float64
	pickup   int
	delivery int
	ok       bool
}

// cheapestPosition scans every (pickup, delivery) position pair of v and
// returns the feasible one adding the least distance. It only reads v.
func cheapestPosition(v *model.Vehicle, h model.Handle) candidate {
	route := v.Route()
	arena := route.Arena()
	p := arena.Get(h)
	d := arena.Get(p.Sibling)
	best := candidate{cost: math.Inf(1)}
	if p.Volume > v.MaxCapacity {
		return best
	}
	n := route.Len()
	loc := func(i int) model.Location {
		if i < 0 || i >= n {
			return v.StartLocation
		}
		return route.At(i).Location
	}
	for pp := 0; pp <= n; pp++ {
		prev, next := loc(pp-1), loc(pp)
		base := model.Distance(prev, next)
		pickupDelta := model.Distance(prev, p.Location) + model.Distance(p.Location, next) - base
		for dp := pp + 1; dp <= n+1; dp++ {
			var delta float64
			if dp == pp+1 {
				delta = model.Distance(prev, p.Location) + model.Distance(p.Location, d.Location) + model.Distance(d.Location, next) - base
			} else {
				dprev, dnext := loc(dp-2), loc(dp-1)
				delta = pickupDelta + model.Distance(dprev, d.Location) + model.Distance(d.Location, dnext) - model.Distance(dprev, dnext)
			}
			if delta >= best.cost {
				continue
			}
			if v.IsInsertionPossible(h, pp, dp) {
				best = candidate{cost: delta, pickup: pp, delivery: dp, ok: true}
			}
		}
	}
	return best
}

// insertionTable caches the cheapest placement of every pooled pickup in
// every vehicle. Committing into one vehicle only invalidates its column.
type insertionTable struct {
	vehicles []*model.Vehicle
	handles  []model.Handle
	cells    map[model.Handle][]candidate
	workers  int
}

func newInsertionTable(sol *model.Solution, pool *model.Pool, workers int) *insertionTable {
	t := &insertionTable{
		vehicles: sol.Vehicles(),
		handles:  pool.Handles(),
		cells:    make(map[model.Handle][]candidate, pool.Len()),
		workers:  max(workers, 1),
	}
	all := make([]int, len(t.vehicles))
	for i := range all {
		all[i] = i
	}
	for _, h := range t.handles {
		t.cells[h] = make([]candidate, len(t.vehicles))
	}
	t.fill(all...)
	return t
}

// fill recomputes the given vehicle columns. Scans run in parallel and only
// read the routes; every write goes to a distinct cell.
func (t *insertionTable) fill(columns ...int) {
	var g errgroup.Group
	g.SetLimit(t.workers)
	for _, vi := range columns {
		for _, h := range t.handles {
			g.Go(func() error {
				t.cells[h][vi] = cheapestPosition(t.vehicles[vi], h)
				return nil
			})
		}
	}
	_ = g.Wait()
}

func (t *insertionTable) commit(pool *model.Pool, h model.Handle, vi int) {
	c := t.cells[h][vi]
	t.vehicles[vi].InsertRequest(h, c.pickup, c.delivery)
	pool.Remove(h)
	t.handles = slices.DeleteFunc(t.handles, func(x model.Handle) bool { return x == h })
	delete(t.cells, h)
	t.fill(vi)
}

// GreedyInsertion repeatedly commits the globally cheapest placement.
type GreedyInsertion struct {
	Workers int
}

func (g GreedyInsertion) Insert(sol *model.Solution, pool *model.Pool) {
	t := newInsertionTable(sol, pool, g.Workers)
	for {
		bestH, bestV := model.NoHandle, -1
		bestCost := math.Inf(1)
		for _, h := range t.handles {
			for vi, c := range t.cells[h] {
				if c.ok && c.cost < bestCost {
					bestH, bestV, bestCost = h, vi, c.cost
				}
			}
		}
		if bestH == model.NoHandle {
			return
		}
		t.commit(pool, bestH, bestV)
	}
}

// RegretInsertion commits first the pickup that would lose the most by
// waiting: the sum of differences between its best vehicle and the next K-1.
// Pickups feasible in fewer than K vehicles go first.
type RegretInsertion struct {
	K       int
	Workers int
}

type regretKey struct {
	missing int
	regret  float64
	cost    float64
}

func (a regretKey) better(b regretKey) bool {
	if a.missing != b.missing {
		return a.missing > b.missing
	}
	if math.Abs(a.regret-b.regret) > costEpsilon {
		return a.regret > b.regret
	}
	return a.cost < b.cost-costEpsilon
}

func (r RegretInsertion) Insert(sol *model.Solution, pool *model.Pool) {
	k := max(r.K, 2)
	t := newInsertionTable(sol, pool, r.Workers)
	type option struct {
		cost float64
		vi   int
	}
	for {
		chosen, chosenV := model.NoHandle, -1
		var chosenKey regretKey
		for _, h := range t.handles {
			var opts []option
			for vi, c := range t.cells[h] {
				if c.ok {
					opts = append(opts, option{cost: c.cost, vi: vi})
				}
			}
			if len(opts) == 0 {
				continue
			}
			slices.SortStableFunc(opts, func(a, b option) int { return cmp.Compare(a.cost, b.cost) })
			key := regretKey{missing: k - min(k, len(opts)), cost: opts[0].cost}
			for j := 1; j < min(k, len(opts)); j++ {
				key.regret += opts[j].cost - opts[0].cost
			}
			if chosen == model.NoHandle || key.better(chosenKey) {
				chosen, chosenV, chosenKey = h, opts[0].vi, key
			}
		}
		if chosen == model.NoHandle {
			return
		}
		t.commit(pool, chosen, chosenV)
	}
}
