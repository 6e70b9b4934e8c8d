package opt

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"pdptw/internal/model"
)

// Strategy names accepted by Build, per family.
var (
	ValidGenerations    = map[string]bool{"greedy": true, "sweep": true, "sector": true}
	ValidRemovals       = map[string]bool{"random": true, "worst": true, "shaw": true}
	ValidInsertions     = map[string]bool{"greedy": true, "regret": true}
	ValidOptimizations  = map[string]bool{"tabu": true}
	ValidObjectives     = map[string]bool{"total_distance": true, "total_vehicles": true}
	ValidSchedulers     = map[string]bool{"drive_first": true}
	ValidDecompositions = map[string]bool{"none": true, "sweep": true}
)

// DefaultAlgorithms is used for every family left empty.
var DefaultAlgorithms = model.Algorithms{
	Generation:    "greedy",
	Removal:       "shaw",
	Insertion:     "regret",
	Optimization:  "tabu",
	Objective:     "total_distance",
	Scheduler:     "drive_first",
	Decomposition: "none",
}

// InvalidAlgorithmsError lists every family whose strategy name is unknown.
type InvalidAlgorithmsError struct {
	Families []string
}

func (e *InvalidAlgorithmsError) Error() string {
	msgs := make([]string, len(e.Families))
	for i, f := range e.Families {
		msgs[i] = fmt.Sprintf("invalid %s algorithm name", f)
	}
	return strings.Join(msgs, "; ")
}

func (e *InvalidAlgorithmsError) Unwrap() error { return ErrInvalidArgument }

// ApplyDefaults fills empty names from DefaultAlgorithms.
func ApplyDefaults(a model.Algorithms) model.Algorithms {
	d := DefaultAlgorithms
	fill := func(v *string, def string) {
		if *v == "" {
			*v = def
		}
	}
	fill(&a.Generation, d.Generation)
	fill(&a.Removal, d.Removal)
	fill(&a.Insertion, d.Insertion)
	fill(&a.Optimization, d.Optimization)
	fill(&a.Objective, d.Objective)
	fill(&a.Scheduler, d.Scheduler)
	fill(&a.Decomposition, d.Decomposition)
	return a
}

// Validate checks every family before failing, so the error names all
// unknown strategies at once.
func Validate(a model.Algorithms) error {
	checks := []struct {
		family string
		name   string
		valid  map[string]bool
	}{
		{"generation", a.Generation, ValidGenerations},
		{"removal", a.Removal, ValidRemovals},
		{"insertion", a.Insertion, ValidInsertions},
		{"optimization", a.Optimization, ValidOptimizations},
		{"objective", a.Objective, ValidObjectives},
		{"scheduler", a.Scheduler, ValidSchedulers},
		{"decomposition", a.Decomposition, ValidDecompositions},
	}
	var bad []string
	for _, c := range checks {
		if !c.valid[c.name] {
			bad = append(bad, c.family)
		}
	}
	if len(bad) > 0 {
		return &InvalidAlgorithmsError{Families: bad}
	}
	return nil
}

// Names lists the valid names of one family in sorted order.
func Names(valid map[string]bool) []string {
	out := make([]string, 0, len(valid))
	for n := range valid {
		out = append(out, n)
	}
	slices.Sort(out)
	return out
}

// Algorithms is a resolved set of strategies.
type Algorithms struct {
	Names         model.Algorithms
	Generation    Generation
	Removal       Removal
	Insertion     Insertion
	Optimization  Optimization
	Objective     Objective
	Scheduler     model.Scheduler
	Decomposition Decomposition
}

// Build validates names and resolves them into strategies tuned by p.
func Build(names model.Algorithms, p model.SearchParams) (*Algorithms, error) {
	if err := Validate(names); err != nil {
		return nil, err
	}
	p = WithDefaults(p)
	a := &Algorithms{Names: names, Scheduler: model.DriveFirst{}}

	switch names.Generation {
	case "greedy":
		a.Generation = GreedyGeneration{}
	case "sweep":
		a.Generation = SweepGeneration{Workers: p.Workers}
	case "sector":
		a.Generation = SectorGeneration{Workers: p.Workers}
	}
	switch names.Removal {
	case "random":
		a.Removal = RandomRemoval{Min: p.RemovalMin, Max: p.RemovalMax}
	case "worst":
		a.Removal = WorstRemoval{Min: p.RemovalMin, Max: p.RemovalMax, P: p.Randomization}
	case "shaw":
		a.Removal = ShawRemoval{Min: p.RemovalMin, Max: p.RemovalMax, P: p.Randomization}
	}
	switch names.Insertion {
	case "greedy":
		a.Insertion = GreedyInsertion{Workers: p.Workers}
	case "regret":
		a.Insertion = RegretInsertion{K: p.RegretK, Workers: p.Workers}
	}
	switch names.Objective {
	case "total_distance":
		a.Objective = TotalDistance{}
	case "total_vehicles":
		a.Objective = TotalVehicles{}
	}
	switch names.Decomposition {
	case "none":
		a.Decomposition = NoDecomposition{}
	case "sweep":
		a.Decomposition = SweepDecomposition{Parts: p.SubProblems}
	}
	a.Optimization = Tabu{
		Removal:       a.Removal,
		Insertion:     a.Insertion,
		Objective:     a.Objective,
		Iterations:    p.Iterations,
		TimeBudget:    time.Duration(p.TimeBudgetMs) * time.Millisecond,
		Tenure:        p.Tenure,
		Neighbors:     p.Neighbors,
		Seed:          p.Seed,
		SnapshotEvery: p.SnapshotEvery,
		Workers:       p.Workers,
	}
	return a, nil
}
