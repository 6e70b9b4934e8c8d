package opt

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pdptw/internal/model"
)

func TestValidateReportsEveryFamily(t *testing.T) {
	names := ApplyDefaults(model.Algorithms{Generation: "nope", Removal: "nope"})
	err := Validate(names)
	require.Error(t, err)
	assert.Equal(t, "invalid generation algorithm name; invalid removal algorithm name", err.Error())
	assert.True(t, errors.Is(err, ErrInvalidArgument))

	var invalid *InvalidAlgorithmsError
	require.True(t, errors.As(err, &invalid))
	assert.Equal(t, []string{"generation", "removal"}, invalid.Families)
}

func TestValidateAllFamilies(t *testing.T) {
	err := Validate(model.Algorithms{})
	var invalid *InvalidAlgorithmsError
	require.True(t, errors.As(err, &invalid))
	assert.Len(t, invalid.Families, 7)
}

func TestBuildResolvesStrategies(t *testing.T) {
	names := ApplyDefaults(model.Algorithms{Generation: "sector", Removal: "worst", Insertion: "greedy", Objective: "total_vehicles", Decomposition: "sweep"})
	algs, err := Build(names, model.SearchParams{SubProblems: 3, Workers: 2})
	require.NoError(t, err)
	assert.IsType(t, SectorGeneration{}, algs.Generation)
	assert.IsType(t, WorstRemoval{}, algs.Removal)
	assert.IsType(t, GreedyInsertion{}, algs.Insertion)
	assert.IsType(t, TotalVehicles{}, algs.Objective)
	assert.Equal(t, SweepDecomposition{Parts: 3}, algs.Decomposition)
	assert.IsType(t, model.DriveFirst{}, algs.Scheduler)

	tabu, ok := algs.Optimization.(Tabu)
	require.True(t, ok)
	assert.Equal(t, DefaultParams.Iterations, tabu.Iterations)
	assert.Equal(t, 2, tabu.Workers)

	_, err = Build(model.Algorithms{}, model.SearchParams{})
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestNamesSorted(t *testing.T) {
	assert.Equal(t, []string{"greedy", "sector", "sweep"}, Names(ValidGenerations))
}
