package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestRegisterDefaultIsIdempotent(t *testing.T) {
	RegisterDefault()
	require.NotPanics(t, RegisterDefault)

	SolverRuns.WithLabelValues("tabu", "succeeded").Inc()
	require.Equal(t, 1.0, testutil.ToFloat64(SolverRuns.WithLabelValues("tabu", "succeeded")))

	families, err := Registry.Gather()
	require.NoError(t, err)
	names := map[string]bool{}
	for _, f := range families {
		names[f.GetName()] = true
	}
	require.True(t, names["solver_runs_total"])
}
