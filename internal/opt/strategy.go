package opt

import (
	"context"
	"errors"
	"math/rand"
	"runtime"

	"pdptw/internal/model"
)

// ErrInvalidArgument marks malformed configuration or strategy input.
var ErrInvalidArgument = errors.New("invalid argument")

// Generation builds an initial solution. Pickups it cannot place stay in pool.
type Generation interface {
	Generate(pool *model.Pool, vehicles []*model.Vehicle) (*model.Solution, error)
}

// Removal evicts whole request pairs from sol and returns their pickups.
type Removal interface {
	Remove(sol *model.Solution, rng *rand.Rand) []model.Handle
}

// Insertion moves pooled pickups into feasible positions of sol. Pickups with
// no feasible position anywhere stay in pool.
type Insertion interface {
	Insert(sol *model.Solution, pool *model.Pool)
}

// Objective scores a solution; lower is better.
type Objective interface {
	Evaluate(sol *model.Solution) float64
}

// Optimization improves sol in place and leaves the requests it could not
// place in pool. obs may be nil.
type Optimization interface {
	Optimize(ctx context.Context, sol *model.Solution, pool *model.Pool, obs Observer) (Metrics, error)
}

// Progress is reported by an optimization after each iteration.
type Progress struct {
	SubProblem int
	Iteration  int
	Best       Score
	Current    Score
}

// Observer receives progress. It may be called from several goroutines when
// sub-problems are solved concurrently.
type Observer func(Progress)

// Default search parameters.
var DefaultParams = model.SearchParams{
	Iterations:    1000,
	Tenure:        10,
	Neighbors:     4,
	RemovalMin:    0.1,
	RemovalMax:    0.3,
	Randomization: 3,
	RegretK:       2,
	SubProblems:   1,
	SnapshotEvery: 50,
}

// WithDefaults fills zero fields of p from DefaultParams. Workers defaults to
// the number of CPUs.
func WithDefaults(p model.SearchParams) model.SearchParams {
	d := DefaultParams
	if p.Iterations == 0 {
		p.Iterations = d.Iterations
	}
	if p.Tenure == 0 {
		p.Tenure = d.Tenure
	}
	if p.Neighbors == 0 {
		p.Neighbors = d.Neighbors
	}
	if p.RemovalMin == 0 {
		p.RemovalMin = d.RemovalMin
	}
	if p.RemovalMax == 0 {
		p.RemovalMax = d.RemovalMax
	}
	if p.Randomization == 0 {
		p.Randomization = d.Randomization
	}
	if p.RegretK == 0 {
		p.RegretK = d.RegretK
	}
	if p.SubProblems == 0 {
		p.SubProblems = d.SubProblems
	}
	if p.SnapshotEvery == 0 {
		p.SnapshotEvery = d.SnapshotEvery
	}
	if p.Workers == 0 {
		p.Workers = runtime.NumCPU()
	}
	return p
}
