package opt

import (
	"cmp"
	"math"
	"math/rand"
	"slices"

	"pdptw/internal/model"
)

type routed struct {
	h model.Handle
	v *model.Vehicle
}

// removable lists routed pickups whose service has not started yet.
func removable(sol *model.Solution) []routed {
	var out []routed
	arena := sol.Arena()
	for _, v := range sol.Vehicles() {
		for _, h := range v.Route().Handles() {
			r := arena.Get(h)
			if r.Kind == model.Pickup && !v.IsServed(r.ID) {
				out = append(out, routed{h: h, v: v})
			}
		}
	}
	return out
}

// removalCount draws how many of n pairs to evict: uniform in
// [ceil(lo*n), floor(hi*n)], never below one.
func removalCount(rng *rand.Rand, n int, lo, hi float64) int {
	if n == 0 {
		return 0
	}
	a := max(int(math.Ceil(lo*float64(n))), 1)
	b := min(max(int(math.Floor(hi*float64(n))), a), n)
	a = min(a, b)
	return a + rng.Intn(b-a+1)
}

// pickIndex draws floor(u^p * n): p > 1 favours the head of a sorted list.
func pickIndex(rng *rand.Rand, n int, p float64) int {
	if p <= 0 {
		p = 1
	}
	return min(int(math.Pow(rng.Float64(), p)*float64(n)), n-1)
}

func evict(out []model.Handle, c routed) []model.Handle {
	c.v.RemoveRequest(c.h)
	return append(out, c.h)
}

// RandomRemoval evicts uniformly chosen pairs.
type RandomRemoval struct {
	Min, Max float64
}

func (r RandomRemoval) Remove(sol *model.Solution, rng *rand.Rand) []model.Handle {
	cands := removable(sol)
	q := removalCount(rng, len(cands), r.Min, r.Max)
	rng.Shuffle(len(cands), func(i, j int) { cands[i], cands[j] = cands[j], cands[i] })
	var out []model.Handle
	for _, c := range cands[:q] {
		out = evict(out, c)
	}
	return out
}

// WorstRemoval evicts the pairs whose removal shortens their route the most,
// with randomisation exponent P.
type WorstRemoval struct {
	Min, Max float64
	P        float64
}

func (w WorstRemoval) Remove(sol *model.Solution, rng *rand.Rand) []model.Handle {
	cands := removable(sol)
	q := removalCount(rng, len(cands), w.Min, w.Max)
	type scored struct {
		routed
		saving float64
	}
	var out []model.Handle
	for len(out) < q {
		ss := make([]scored, len(cands))
		for i, c := range cands {
			ss[i] = scored{routed: c, saving: removalSaving(c.v, c.h)}
		}
		slices.SortStableFunc(ss, func(a, b scored) int { return cmp.Compare(b.saving, a.saving) })
		pick := ss[pickIndex(rng, len(ss), w.P)].routed
		out = evict(out, pick)
		cands = slices.DeleteFunc(cands, func(c routed) bool { return c.h == pick.h })
	}
	return out
}

// removalSaving is the distance v's route loses when the pair of h leaves.
func removalSaving(v *model.Vehicle, h model.Handle) float64 {
	route := v.Route()
	sibling := route.Arena().Get(h).Sibling
	without := 0.0
	prev := v.StartLocation
	kept := 0
	for _, x := range route.Handles() {
		if x == h || x == sibling {
			continue
		}
		loc := route.Arena().Get(x).Location
		without += model.Distance(prev, loc)
		prev = loc
		kept++
	}
	if kept > 0 {
		without += model.Distance(prev, v.StartLocation)
	}
	return RouteDistance(v) - without
}

// ShawRemoval evicts pairs related to each other by place, time and size.
// Relatedness of pairs i, j is
// Distance*(d(p_i,p_j)+d(d_i,d_j)) + Time*(|t_pi-t_pj|+|t_di-t_dj|) + Load*|q_i-q_j|,
// smaller meaning more related.
type ShawRemoval struct {
	Min, Max float64
	P        float64

	Distance float64
	Time     float64
	Load     float64
}

type shawItem struct {
	p, d   model.Location
	tp, td float64
	q      int
}

func (s ShawRemoval) weights() (float64, float64, float64) {
	if s.Distance == 0 && s.Time == 0 && s.Load == 0 {
		return 9, 3, 2
	}
	return s.Distance, s.Time, s.Load
}

func (s ShawRemoval) Remove(sol *model.Solution, rng *rand.Rand) []model.Handle {
	cands := removable(sol)
	q := removalCount(rng, len(cands), s.Min, s.Max)
	if q == 0 {
		return nil
	}
	arena := sol.Arena()
	// evicted pairs lose their times, so relatedness works on a snapshot
	items := make(map[model.Handle]shawItem, len(cands))
	for _, c := range cands {
		p := arena.Get(c.h)
		d := arena.Get(p.Sibling)
		items[c.h] = shawItem{p: p.Location, d: d.Location, tp: p.RealizationTime, td: d.RealizationTime, q: p.Volume}
	}
	phi, chi, psi := s.weights()
	related := func(a, b shawItem) float64 {
		return phi*(model.Distance(a.p, b.p)+model.Distance(a.d, b.d)) +
			chi*(math.Abs(a.tp-b.tp)+math.Abs(a.td-b.td)) +
			psi*math.Abs(float64(a.q-b.q))
	}

	first := rng.Intn(len(cands))
	out := evict(nil, cands[first])
	cands = slices.Delete(cands, first, first+1)
	for len(out) < q {
		ref := items[out[rng.Intn(len(out))]]
		slices.SortStableFunc(cands, func(a, b routed) int {
			return cmp.Compare(related(ref, items[a.h]), related(ref, items[b.h]))
		})
		i := pickIndex(rng, len(cands), s.P)
		out = evict(out, cands[i])
		cands = slices.Delete(cands, i, i+1)
	}
	return out
}
