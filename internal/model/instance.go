package model

// VehicleSpec describes one vehicle of the fleet.
type VehicleSpec struct {
	ID       string   `json:"id" yaml:"id"`
	Capacity int      `json:"capacity" yaml:"capacity"`
	Start    Location `json:"start" yaml:"start"`
}

// Instance is a loaded problem: every request pair plus the fleet.
type Instance struct {
	Name  string
	Arena *Arena
	Depot Location
	Fleet []VehicleSpec
}

// Vehicles builds fresh, empty vehicles over the instance arena.
func (in *Instance) Vehicles(sched Scheduler) []*Vehicle {
	out := make([]*Vehicle, len(in.Fleet))
	for i, spec := range in.Fleet {
		out[i] = NewVehicle(spec.ID, spec.Capacity, spec.Start, in.Arena, sched)
	}
	return out
}

// Pool returns every pickup of the instance.
func (in *Instance) Pool() *Pool {
	return NewPool(in.Arena.Pickups()...)
}

// RequestCount is the number of request pairs.
func (in *Instance) RequestCount() int {
	return in.Arena.Len() / 2
}
