package model

import (
	"errors"
	"fmt"
	"strings"
)

// Solution is a fleet of vehicles whose routes share one arena.
type Solution struct {
	arena    *Arena
	vehicles []*Vehicle

	ObjectiveValue float64
}

// NewSolution wraps vehicles whose routes live in arena.
func NewSolution(arena *Arena, vehicles []*Vehicle) *Solution {
	return &Solution{arena: arena, vehicles: vehicles}
}

func (s *Solution) Arena() *Arena { return s.arena }

// Vehicles returns the fleet. The slice is shared.
func (s *Solution) Vehicles() []*Vehicle { return s.vehicles }

// Vehicle looks a vehicle up by id.
func (s *Solution) Vehicle(id string) *Vehicle {
	for _, v := range s.vehicles {
		if v.ID == id {
			return v
		}
	}
	return nil
}

// Routes lists every vehicle's route in fleet order.
func (s *Solution) Routes() []*Route {
	out := make([]*Route, len(s.vehicles))
	for i, v := range s.vehicles {
		out[i] = v.route
	}
	return out
}

// Requests lists every routed handle.
func (s *Solution) Requests() []Handle {
	var out []Handle
	for _, v := range s.vehicles {
		out = append(out, v.route.seq...)
	}
	return out
}

// Pickups lists every routed pickup.
func (s *Solution) Pickups() []Handle {
	var out []Handle
	for _, v := range s.vehicles {
		for _, h := range v.route.seq {
			if s.arena.Get(h).Kind == Pickup {
				out = append(out, h)
			}
		}
	}
	return out
}

// VehicleOf returns the vehicle serving h and its position, or nil and -1.
func (s *Solution) VehicleOf(h Handle) (*Vehicle, int) {
	for _, v := range s.vehicles {
		if i := v.route.IndexOf(h); i >= 0 {
			return v, i
		}
	}
	return nil, -1
}

// UsedVehicles counts vehicles with a non-empty route.
func (s *Solution) UsedVehicles() int {
	n := 0
	for _, v := range s.vehicles {
		if v.route.Len() > 0 {
			n++
		}
	}
	return n
}

// Clone deep-copies the solution. Handles stay valid across the copy.
func (s *Solution) Clone() *Solution {
	arena := s.arena.Clone()
	vehicles := make([]*Vehicle, len(s.vehicles))
	for i, v := range s.vehicles {
		vehicles[i] = v.CloneInto(arena)
	}
	return &Solution{arena: arena, vehicles: vehicles, ObjectiveValue: s.ObjectiveValue}
}

// Assign overwrites s in place with o. Both must come from the same problem
// and list their vehicles in the same order.
func (s *Solution) Assign(o *Solution) {
	if len(s.vehicles) != len(o.vehicles) || s.arena.Len() != o.arena.Len() {
		panic("model: assigning a solution of a different problem")
	}
	copy(s.arena.requests, o.arena.requests)
	for i, v := range s.vehicles {
		v.assign(o.vehicles[i])
	}
	s.ObjectiveValue = o.ObjectiveValue
}

// Validate checks pairing, capacity and time windows on every route, and
// that no request is routed twice.
func (s *Solution) Validate() error {
	var errs []error
	seen := map[Handle]string{}
	for _, v := range s.vehicles {
		if err := v.route.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("vehicle %s: %w", v.ID, err))
		}
		for i, load := range v.route.Load() {
			r := v.route.At(i)
			if load > v.MaxCapacity {
				errs = append(errs, fmt.Errorf("vehicle %s: load %d exceeds capacity %d at request %d", v.ID, load, v.MaxCapacity, r.ID))
			}
			if r.RealizationTime > r.WindowEnd {
				errs = append(errs, fmt.Errorf("vehicle %s: request %d served at %g after window end %g", v.ID, r.ID, r.RealizationTime, r.WindowEnd))
			}
			h := v.route.Handle(i)
			if other, ok := seen[h]; ok {
				errs = append(errs, fmt.Errorf("request %d routed by both %s and %s", r.ID, other, v.ID))
			}
			seen[h] = v.ID
		}
	}
	return errors.Join(errs...)
}

func (s *Solution) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "objective: %g\n", s.ObjectiveValue)
	for _, v := range s.vehicles {
		b.WriteString(v.String())
		b.WriteByte('\n')
	}
	return b.String()
}
