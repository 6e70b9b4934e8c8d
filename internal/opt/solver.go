package opt

import (
	"context"
	"errors"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"pdptw/internal/model"
)

// Result of one solve.
type Result struct {
	Solution   *model.Solution
	Unassigned *model.Pool
	// Metrics holds one entry per sub-problem.
	Metrics   []Metrics
	Objective float64
	Duration  time.Duration
}

// Iterations sums the iterations of every sub-problem.
func (r *Result) Iterations() int {
	n := 0
	for _, m := range r.Metrics {
		n += m.Iterations
	}
	return n
}

// UnassignedIDs lists the ids of the pickups left unplaced.
func (r *Result) UnassignedIDs() []int {
	var out []int
	for _, h := range r.Unassigned.Handles() {
		out = append(out, r.Solution.Arena().Get(h).ID)
	}
	return out
}

// Solver runs decomposition, generation and optimization for an instance.
type Solver struct {
	algs *Algorithms
}

func NewSolver(algs *Algorithms) *Solver {
	return &Solver{algs: algs}
}

// Solve solves in. Sub-problems are solved concurrently and merged; pickups
// they leave unassigned get one more insertion pass over the whole fleet.
// When ctx is cancelled the best solution found so far is returned together
// with the context error.
func (s *Solver) Solve(ctx context.Context, in *model.Instance, obs Observer) (*Result, error) {
	start := time.Now()
	entry := log.WithField("instance", in.Name)
	vehicles := in.Vehicles(s.algs.Scheduler)
	pool := in.Pool()
	if _, err := checkInputs(pool, vehicles); err != nil {
		return nil, err
	}

	subs := s.algs.Decomposition.Decompose(pool, vehicles)
	metrics := make([]Metrics, len(subs))
	g, gctx := errgroup.WithContext(ctx)
	for i := range subs {
		sp := &subs[i]
		g.Go(func() error {
			sol, err := s.algs.Generation.Generate(sp.Pool, sp.Vehicles)
			if err != nil {
				return fmt.Errorf("sub-problem %d: generate: %w", sp.Index, err)
			}
			entry.WithFields(log.Fields{"subproblem": sp.Index, "vehicles": len(sp.Vehicles), "unassigned": sp.Pool.Len()}).Debug("initial solution built")
			var subObs Observer
			if obs != nil {
				subObs = func(p Progress) {
					p.SubProblem = sp.Index
					obs(p)
				}
			}
			metrics[i], err = s.algs.Optimization.Optimize(gctx, sol, sp.Pool, subObs)
			return err
		})
	}
	err := g.Wait()
	if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
		return nil, err
	}

	left := Merge(vehicles, subs)
	sol := model.NewSolution(in.Arena, vehicles)
	if len(subs) > 1 && left.Len() > 0 {
		s.algs.Insertion.Insert(sol, left)
	}
	sol.ObjectiveValue = s.algs.Objective.Evaluate(sol)
	res := &Result{
		Solution:   sol,
		Unassigned: left,
		Metrics:    metrics,
		Objective:  sol.ObjectiveValue,
		Duration:   time.Since(start),
	}
	entry.WithFields(log.Fields{
		"objective":  res.Objective,
		"vehicles":   sol.UsedVehicles(),
		"unassigned": left.Len(),
		"iterations": res.Iterations(),
		"duration":   res.Duration,
	}).Info("solve finished")
	return res, err
}
