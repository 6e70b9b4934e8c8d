package opt

import "pdptw/internal/model"

// Score orders solutions: fewer unassigned requests first, then lower cost.
type Score struct {
	Unassigned int
	Cost       float64
}

const costEpsilon = 1e-9

// Less reports whether s is strictly better than o.
func (s Score) Less(o Score) bool {
	if s.Unassigned != o.Unassigned {
		return s.Unassigned < o.Unassigned
	}
	return s.Cost < o.Cost-costEpsilon
}

func scoreOf(obj Objective, sol *model.Solution, pool *model.Pool) Score {
	sol.ObjectiveValue = obj.Evaluate(sol)
	return Score{Unassigned: pool.Len(), Cost: sol.ObjectiveValue}
}

// TotalDistance sums every route's length, return to the start included.
type TotalDistance struct{}

func (TotalDistance) Evaluate(sol *model.Solution) float64 {
	total := 0.0
	for _, v := range sol.Vehicles() {
		total += RouteDistance(v)
	}
	return total
}

// TotalVehicles counts vehicles that serve at least one request.
type TotalVehicles struct{}

func (TotalVehicles) Evaluate(sol *model.Solution) float64 {
	return float64(sol.UsedVehicles())
}

// RouteDistance is the length of v's route from its start location and back.
// An empty route has length zero.
func RouteDistance(v *model.Vehicle) float64 {
	route := v.Route()
	if route.Len() == 0 {
		return 0
	}
	total := 0.0
	prev := v.StartLocation
	for _, r := range route.Requests() {
		total += model.Distance(prev, r.Location)
		prev = r.Location
	}
	return total + model.Distance(prev, v.StartLocation)
}
