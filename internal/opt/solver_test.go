package opt

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pdptw/internal/model"
)

func newTabu(iterations int) Tabu {
	return Tabu{
		Removal:       ShawRemoval{Min: 0.1, Max: 0.3, P: 6},
		Insertion:     RegretInsertion{K: 2, Workers: 2},
		Objective:     TotalDistance{},
		Iterations:    iterations,
		Tenure:        5,
		Neighbors:     3,
		Seed:          42,
		SnapshotEvery: 10,
		Workers:       2,
	}
}

func TestTabuNeverWorsensTheSolution(t *testing.T) {
	in := randomInstance(9, 15, 3, 6)
	pool := in.Pool()
	sol, err := SweepGeneration{}.Generate(pool, in.Vehicles(model.DriveFirst{}))
	require.NoError(t, err)
	initial := scoreOf(TotalDistance{}, sol, pool)

	var mu sync.Mutex
	var seen []Progress
	m, err := newTabu(40).Optimize(context.Background(), sol, pool, func(p Progress) {
		mu.Lock()
		seen = append(seen, p)
		mu.Unlock()
	})
	require.NoError(t, err)

	final := scoreOf(TotalDistance{}, sol, pool)
	assert.False(t, initial.Less(final))
	assert.Equal(t, 40, m.Iterations)
	assert.Len(t, m.Snapshots, 4)
	assert.Len(t, seen, 40)
	assert.InDelta(t, m.BestCost, final.Cost, 1e-9)
	requireConsistent(t, sol, pool, 15)
}

func TestTabuIsDeterministicForASeed(t *testing.T) {
	run := func() []int {
		in := randomInstance(4, 10, 3, 5)
		pool := in.Pool()
		sol, err := GreedyGeneration{}.Generate(pool, in.Vehicles(model.DriveFirst{}))
		require.NoError(t, err)
		_, err = newTabu(15).Optimize(context.Background(), sol, pool, nil)
		require.NoError(t, err)
		var ids []int
		for _, v := range sol.Vehicles() {
			ids = append(ids, v.Route().IDs()...)
			ids = append(ids, -1)
		}
		return ids
	}
	assert.Equal(t, run(), run())
}

func TestTabuStopsOnCancelledContext(t *testing.T) {
	in := randomInstance(2, 10, 3, 5)
	pool := in.Pool()
	sol, err := GreedyGeneration{}.Generate(pool, in.Vehicles(model.DriveFirst{}))
	require.NoError(t, err)
	before := scoreOf(TotalDistance{}, sol, pool)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	m, err := newTabu(100).Optimize(ctx, sol, pool, nil)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, m.Iterations)
	assert.Equal(t, before, scoreOf(TotalDistance{}, sol, pool))
	requireConsistent(t, sol, pool, 10)
}

func TestTabuForbidsReverseMoves(t *testing.T) {
	tabu := map[move]int{{request: 1, from: "b", to: "a"}: 5}
	assert.True(t, isTabu(tabu, []move{{request: 1, from: "b", to: "a"}}, 4))
	assert.False(t, isTabu(tabu, []move{{request: 1, from: "b", to: "a"}}, 5))
	assert.False(t, isTabu(tabu, []move{{request: 1, from: "a", to: "b"}}, 4))
}

func TestSweepDecompositionPartitions(t *testing.T) {
	in := randomInstance(8, 21, 5, 6)
	vehicles := in.Vehicles(model.DriveFirst{})
	subs := SweepDecomposition{Parts: 3}.Decompose(in.Pool(), vehicles)
	require.Len(t, subs, 3)

	pickups := map[model.Handle]int{}
	fleet := map[int]int{}
	for _, sp := range subs {
		assert.NotSame(t, in.Arena, sp.Arena)
		for _, h := range sp.Pool.Handles() {
			pickups[h]++
		}
		for i, vi := range sp.Fleet {
			fleet[vi]++
			assert.Equal(t, vehicles[vi].ID, sp.Vehicles[i].ID)
			assert.Same(t, sp.Arena, sp.Vehicles[i].Route().Arena())
		}
		assert.Len(t, sp.Pool.Handles(), 7)
	}
	assert.Len(t, pickups, 21)
	assert.Len(t, fleet, 5)

	assert.Len(t, SweepDecomposition{Parts: 9}.Decompose(in.Pool(), vehicles[:2]), 2)
	assert.Len(t, NoDecomposition{}.Decompose(in.Pool(), vehicles), 1)
}

func TestSolverEndToEnd(t *testing.T) {
	cases := []model.Algorithms{
		{Generation: "greedy", Removal: "random", Insertion: "greedy"},
		{Generation: "sweep", Removal: "worst", Insertion: "regret", Objective: "total_vehicles"},
		{Generation: "sector", Removal: "shaw", Insertion: "regret", Decomposition: "sweep"},
	}
	for _, names := range cases {
		t.Run(names.Generation, func(t *testing.T) {
			algs, err := Build(ApplyDefaults(names), model.SearchParams{Iterations: 20, Seed: 3, SubProblems: 2, Workers: 2})
			require.NoError(t, err)
			in := randomInstance(13, 16, 4, 6)

			var mu sync.Mutex
			subs := map[int]bool{}
			res, err := NewSolver(algs).Solve(context.Background(), in, func(p Progress) {
				mu.Lock()
				subs[p.SubProblem] = true
				mu.Unlock()
			})
			require.NoError(t, err)
			requireConsistent(t, res.Solution, res.Unassigned, 16)
			assert.Equal(t, 0, res.Unassigned.Len())
			assert.Equal(t, res.Solution.ObjectiveValue, res.Objective)
			assert.Same(t, in.Arena, res.Solution.Arena())
			assert.Len(t, subs, len(res.Metrics))
			assert.Positive(t, res.Iterations())
		})
	}
}

func TestSolverRejectsEmptyFleet(t *testing.T) {
	algs, err := Build(DefaultAlgorithms, model.SearchParams{})
	require.NoError(t, err)
	in := randomInstance(1, 2, 0, 5)
	_, err = NewSolver(algs).Solve(context.Background(), in, nil)
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestReplayConsumesThePlan(t *testing.T) {
	in := randomInstance(6, 8, 2, 6)
	pool := in.Pool()
	sol, err := GreedyGeneration{}.Generate(pool, in.Vehicles(model.DriveFirst{}))
	require.NoError(t, err)

	finished := 0
	served := map[string]int{}
	clock, err := Replay(sol, 25, 0, func(_ float64, hs []model.Handle) {
		finished += len(hs)
		for _, v := range sol.Vehicles() {
			assert.GreaterOrEqual(t, len(v.ServedIDs()), served[v.ID])
			served[v.ID] = len(v.ServedIDs())
		}
	})
	require.NoError(t, err)
	assert.Positive(t, clock)
	assert.Equal(t, 16, finished)
	total := 0
	for _, v := range sol.Vehicles() {
		assert.Equal(t, 0, v.Route().Len())
		total += len(v.ServedIDs())
	}
	assert.Equal(t, 16, total)

	_, err = Replay(sol, 0, 10, nil)
	assert.ErrorIs(t, err, ErrInvalidArgument)
}
