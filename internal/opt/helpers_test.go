package opt

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"

	"pdptw/internal/model"
)

// randomInstance builds pairs scattered around the origin with wide windows,
// so only capacity limits where they fit.
func randomInstance(seed int64, pairs, fleet, capacity int) *model.Instance {
	rng := rand.New(rand.NewSource(seed))
	arena := model.NewArena()
	pt := func() model.Location {
		return model.Location{X: rng.Float64()*100 - 50, Y: rng.Float64()*100 - 50}
	}
	for i := 0; i < pairs; i++ {
		arena.AddPair(
			model.Request{ID: 2*i + 1, Location: pt(), Volume: 1 + rng.Intn(3), WindowEnd: 1e6, ServiceTime: 1},
			model.Request{ID: 2*i + 2, Location: pt(), WindowEnd: 1e6, ServiceTime: 1},
		)
	}
	in := &model.Instance{Name: fmt.Sprintf("rand%d", seed), Arena: arena}
	for i := 0; i < fleet; i++ {
		in.Fleet = append(in.Fleet, model.VehicleSpec{ID: fmt.Sprintf("v%d", i), Capacity: capacity})
	}
	return in
}

func requireConsistent(t *testing.T, sol *model.Solution, pool *model.Pool, pairs int) {
	t.Helper()
	require.NoError(t, sol.Validate())
	require.Equal(t, pairs, len(sol.Pickups())+pool.Len(), "every pair is either routed or pooled")
	for _, h := range pool.Handles() {
		v, _ := sol.VehicleOf(h)
		require.Nil(t, v, "pooled pickup %d is also routed", h)
	}
}
