package opt

import (
	"fmt"

	"pdptw/internal/model"
)

// ReplayObserver is told which requests finished at each clock step.
type ReplayObserver func(time float64, finished []model.Handle)

// Replay advances a simulated clock over sol in steps of step, pruning
// finished requests from every vehicle, until all routes are empty or the
// clock reaches horizon. A non-positive horizon runs until the last
// scheduled service ends. It returns the final clock value.
func Replay(sol *model.Solution, step, horizon float64, obs ReplayObserver) (float64, error) {
	if step <= 0 {
		return 0, fmt.Errorf("%w: replay step %g", ErrInvalidArgument, step)
	}
	if horizon <= 0 {
		for _, v := range sol.Vehicles() {
			for _, r := range v.Route().Requests() {
				horizon = max(horizon, r.Finish())
			}
		}
	}
	clock := 0.0
	for {
		clock = min(clock+step, horizon)
		var finished []model.Handle
		empty := true
		for _, v := range sol.Vehicles() {
			finished = append(finished, v.RemoveFinishedRequests(clock, true)...)
			if v.Route().Len() > 0 {
				empty = false
			}
		}
		if obs != nil && len(finished) > 0 {
			obs(clock, finished)
		}
		if empty || clock >= horizon {
			return clock, nil
		}
	}
}
