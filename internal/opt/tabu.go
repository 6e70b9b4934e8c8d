package opt

import (
	"context"
	"math/rand"
	"slices"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"pdptw/internal/model"
)

// Metrics summarises one optimization run.
type Metrics struct {
	Iterations     int
	Improvements   int
	AcceptedWorse  int
	TabuRejected   int
	BestCost       float64
	BestUnassigned int
	FinalCost      float64
	Snapshots      []CostSnapshot
}

// CostSnapshot is taken every SnapshotEvery iterations.
type CostSnapshot struct {
	Iteration  int
	Best       float64
	Current    float64
	Unassigned int
}

// move records that a request left one vehicle for another. An empty vehicle
// id stands for the request pool.
type move struct {
	request  int
	from, to string
}

type neighbour struct {
	sol   *model.Solution
	pool  *model.Pool
	score Score
	moves []move
}

// Tabu runs destroy and repair iterations. Each iteration builds Neighbors
// trial solutions from the current one and moves to the best of them that
// is not tabu, even when it is worse. Moving a request back to the vehicle
// it just left is tabu for Tenure iterations unless it yields a new best.
type Tabu struct {
	Removal   Removal
	Insertion Insertion
	Objective Objective

	Iterations    int
	TimeBudget    time.Duration
	Tenure        int
	Neighbors     int
	Seed          int64
	SnapshotEvery int
	Workers       int
}

func (t Tabu) Optimize(ctx context.Context, sol *model.Solution, pool *model.Pool, obs Observer) (Metrics, error) {
	seed := t.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewSource(seed))
	var deadline time.Time
	if t.TimeBudget > 0 {
		deadline = time.Now().Add(t.TimeBudget)
	}
	neighbours := max(t.Neighbors, 1)
	entry := log.WithField("seed", seed)

	current := neighbour{sol: sol.Clone(), pool: pool.Clone()}
	current.score = scoreOf(t.Objective, current.sol, current.pool)
	best := neighbour{sol: current.sol.Clone(), pool: current.pool.Clone(), score: current.score}
	m := Metrics{BestCost: best.score.Cost, BestUnassigned: best.score.Unassigned}
	tabu := map[move]int{}

	var err error
	for it := 1; it <= t.Iterations; it++ {
		if err = ctx.Err(); err != nil {
			break
		}
		if !deadline.IsZero() && time.Now().After(deadline) {
			break
		}
		m.Iterations = it

		seeds := make([]int64, neighbours)
		for i := range seeds {
			seeds[i] = rng.Int63()
		}
		trials := make([]neighbour, neighbours)
		var g errgroup.Group
		g.SetLimit(max(t.Workers, 1))
		for i := range trials {
			g.Go(func() error {
				trials[i] = t.trial(current, rand.New(rand.NewSource(seeds[i])))
				return nil
			})
		}
		_ = g.Wait()
		slices.SortStableFunc(trials, func(a, b neighbour) int {
			switch {
			case a.score.Less(b.score):
				return -1
			case b.score.Less(a.score):
				return 1
			}
			return 0
		})

		chosen := -1
		for i, n := range trials {
			if isTabu(tabu, n.moves, it) && !n.score.Less(best.score) {
				m.TabuRejected++
				continue
			}
			chosen = i
			break
		}
		if chosen >= 0 {
			next := trials[chosen]
			for _, mv := range next.moves {
				tabu[move{request: mv.request, from: mv.to, to: mv.from}] = it + t.Tenure
			}
			if current.score.Less(next.score) {
				m.AcceptedWorse++
			}
			current = next
			if current.score.Less(best.score) {
				best = neighbour{sol: current.sol.Clone(), pool: current.pool.Clone(), score: current.score}
				m.Improvements++
				m.BestCost, m.BestUnassigned = best.score.Cost, best.score.Unassigned
				entry.WithField("iteration", it).Debugf("new best %.3f with %d unassigned", best.score.Cost, best.score.Unassigned)
			}
		}
		for mv, until := range tabu {
			if until <= it {
				delete(tabu, mv)
			}
		}
		if t.SnapshotEvery > 0 && it%t.SnapshotEvery == 0 {
			m.Snapshots = append(m.Snapshots, CostSnapshot{Iteration: it, Best: best.score.Cost, Current: current.score.Cost, Unassigned: current.score.Unassigned})
		}
		if obs != nil {
			obs(Progress{Iteration: it, Best: best.score, Current: current.score})
		}
	}
	m.FinalCost = current.score.Cost
	sol.Assign(best.sol)
	pool.Reset(best.pool.Handles())
	return m, err
}

// trial destroys and repairs a copy of from and lists the resulting moves.
func (t Tabu) trial(from neighbour, rng *rand.Rand) neighbour {
	sol := from.sol.Clone()
	pool := from.pool.Clone()
	arena := sol.Arena()

	origin := map[model.Handle]string{}
	for _, h := range pool.Handles() {
		origin[h] = ""
	}
	for _, v := range sol.Vehicles() {
		for _, h := range v.Route().Handles() {
			if arena.Get(h).Kind == model.Pickup {
				origin[h] = v.ID
			}
		}
	}
	for _, h := range t.Removal.Remove(sol, rng) {
		pool.Add(h)
	}
	t.Insertion.Insert(sol, pool)

	var moves []move
	for _, v := range sol.Vehicles() {
		for _, h := range v.Route().Handles() {
			if was, ok := origin[h]; ok && was != v.ID {
				moves = append(moves, move{request: arena.Get(h).ID, from: was, to: v.ID})
			}
		}
	}
	for _, h := range pool.Handles() {
		if was := origin[h]; was != "" {
			moves = append(moves, move{request: arena.Get(h).ID, from: was})
		}
	}
	return neighbour{sol: sol, pool: pool, score: scoreOf(t.Objective, sol, pool), moves: moves}
}

func isTabu(tabu map[move]int, moves []move, it int) bool {
	for _, mv := range moves {
		if until, ok := tabu[mv]; ok && until > it {
			return true
		}
	}
	return false
}
