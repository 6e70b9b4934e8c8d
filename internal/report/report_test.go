package report

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pdptw/internal/model"
)

func sampleRun() Run {
	arena := model.NewArena()
	p, _ := arena.AddPair(
		model.Request{ID: 3, Location: model.Location{X: 1}, Volume: 1, WindowEnd: 100},
		model.Request{ID: 4, Location: model.Location{X: 2}, WindowEnd: 100},
	)
	v := model.NewVehicle("7", 5, model.Location{}, arena, model.DriveFirst{})
	idle := model.NewVehicle("8", 5, model.Location{}, arena, model.DriveFirst{})
	v.InsertRequest(p, 0, 1)
	sol := model.NewSolution(arena, []*model.Vehicle{v, idle})
	sol.ObjectiveValue = 4
	return Run{
		Instance:   "lc101",
		Algorithms: model.Algorithms{Generation: "sweep", Removal: "shaw"},
		Search:     model.SearchParams{Iterations: 300},
		Solution:   sol,
	}
}

func TestWriteBothFiles(t *testing.T) {
	dir := t.TempDir()
	w := Writer{Dir: dir, Now: func() time.Time { return time.Date(2024, 3, 9, 12, 0, 0, 0, time.UTC) }}

	paths, err := w.Write(sampleRun())
	require.NoError(t, err)
	require.Equal(t, []string{
		filepath.Join(dir, "lc101_300_sweep_routes.txt"),
		filepath.Join(dir, "lc101_300_sweep_solutionDetails.txt"),
	}, paths)

	routes, err := os.ReadFile(paths[0])
	require.NoError(t, err)
	assert.Equal(t, "Instance name: lc101\nDate: 2024-03-09\nSolution:\n7: 3, 4\n8: \n", string(routes))

	details, err := os.ReadFile(paths[1])
	require.NoError(t, err)
	assert.Contains(t, string(details), "Objective value: 4\n")
	assert.Contains(t, string(details), "Vehicles used: 1\n")
	assert.Contains(t, string(details), "generation: sweep")
	assert.Contains(t, string(details), "id: 7, max capacity: 5")
}

func TestWriteFailureIsReported(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "file")
	require.NoError(t, os.WriteFile(blocker, nil, 0o644))

	paths, err := Writer{Dir: filepath.Join(blocker, "sub")}.Write(sampleRun())
	assert.Error(t, err)
	assert.Empty(t, paths)
}
