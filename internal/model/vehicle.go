package model

import (
	"fmt"
	"slices"
	"strings"

	log "github.com/sirupsen/logrus"
)

// RequestPositions is where a request pair sat in a route before removal.
type RequestPositions struct {
	PickupPosition   int
	DeliveryPosition int
}

// Vehicle owns one route and keeps its realization times consistent with the
// scheduler after every committed change.
type Vehicle struct {
	ID            string
	MaxCapacity   int
	StartLocation Location
	// Location is where the vehicle departs from next. It starts at
	// StartLocation and moves to the last served stop during replay.
	Location Location

	departure float64
	route     *Route
	served    map[int]struct{}
	sched     Scheduler
}

// NewVehicle returns an idle vehicle with an empty route over arena.
func NewVehicle(id string, capacity int, start Location, arena *Arena, sched Scheduler) *Vehicle {
	if sched == nil {
		sched = DriveFirst{}
	}
	return &Vehicle{
		ID:            id,
		MaxCapacity:   capacity,
		StartLocation: start,
		Location:      start,
		route:         NewRoute(arena),
		served:        map[int]struct{}{},
		sched:         sched,
	}
}

func (v *Vehicle) Route() *Route { return v.route }

func (v *Vehicle) Scheduler() Scheduler { return v.sched }

// Origin is the place and time the unserved part of the route starts from.
func (v *Vehicle) Origin() (Location, float64) { return v.Location, v.departure }

// IsServed reports whether the request with the given id has completed.
func (v *Vehicle) IsServed(id int) bool {
	_, ok := v.served[id]
	return ok
}

// ServedIDs lists served request ids in ascending order.
func (v *Vehicle) ServedIDs() []int {
	out := make([]int, 0, len(v.served))
	for id := range v.served {
		out = append(out, id)
	}
	slices.Sort(out)
	return out
}

// Load is the volume on board after the last stop, i.e. zero for a route
// made only of whole pairs.
func (v *Vehicle) Load() int {
	total := 0
	for _, r := range v.route.Requests() {
		total += r.Volume
	}
	return total
}

// IsInsertionPossible reports whether placing pickup at pickupPosition and
// its delivery at deliveryPosition keeps every window and the capacity
// satisfied. deliveryPosition indexes the route after the pickup is in.
// The route and every realization time are left untouched.
func (v *Vehicle) IsInsertionPossible(pickup Handle, pickupPosition, deliveryPosition int) bool {
	n := v.route.Len()
	if pickupPosition < 0 || pickupPosition >= deliveryPosition || deliveryPosition > n+1 {
		panic(fmt.Sprintf("vehicle %s: invalid insertion positions (%d, %d) on a route of %d", v.ID, pickupPosition, deliveryPosition, n))
	}
	arena := v.route.arena
	p := arena.Get(pickup)
	if p.Kind != Pickup {
		panic(fmt.Sprintf("vehicle %s: request %d is not a pickup", v.ID, p.ID))
	}
	d := arena.Get(p.Sibling)

	if pickupPosition < n && v.IsServed(v.route.At(pickupPosition).ID) {
		return false
	}

	load := 0
	var prev *Request
	var prevTime float64
	for i := 0; i < pickupPosition; i++ {
		r := v.route.At(i)
		load += r.Volume
		if load > v.MaxCapacity {
			return false
		}
		if !v.IsServed(r.ID) {
			prev, prevTime = r, r.RealizationTime
		}
	}

	visit := func(r *Request) bool {
		if prev == nil {
			loc, departure := v.Origin()
			prevTime = v.sched.InitialRealizationTime(r, departure+Distance(loc, r.Location))
		} else {
			prevTime = v.sched.NextRealizationTime(prev, prevTime, r)
		}
		prev = r
		load += r.Volume
		return prevTime <= r.WindowEnd && load <= v.MaxCapacity
	}

	if !visit(p) {
		return false
	}
	i := pickupPosition
	for ; i < deliveryPosition-1; i++ {
		if !visit(v.route.At(i)) {
			return false
		}
	}
	if !visit(d) {
		return false
	}
	for ; i < n; i++ {
		if !visit(v.route.At(i)) {
			return false
		}
	}
	return true
}

// InsertRequest commits the pair at the given positions, with the same
// position convention as IsInsertionPossible, and reschedules the route.
func (v *Vehicle) InsertRequest(pickup Handle, pickupPosition, deliveryPosition int) {
	n := v.route.Len()
	if pickupPosition < 0 || pickupPosition >= deliveryPosition || deliveryPosition > n+1 {
		panic(fmt.Sprintf("vehicle %s: invalid insertion positions (%d, %d) on a route of %d", v.ID, pickupPosition, deliveryPosition, n))
	}
	p := v.route.arena.Get(pickup)
	if p.Kind != Pickup {
		panic(fmt.Sprintf("vehicle %s: request %d is not a pickup", v.ID, p.ID))
	}
	v.route.insert(pickupPosition, pickup)
	v.route.insert(deliveryPosition, p.Sibling)
	v.UpdateRealizationTimes()
}

// UpdateRealizationTimes reschedules the unserved part of the route.
func (v *Vehicle) UpdateRealizationTimes() {
	v.sched.ScheduleRequests(v, v.departure)
}

// RemoveRequestAt removes the pair whose pickup sits at pickupPosition and
// whose delivery sits at deliveryPosition, both indexing the current route.
func (v *Vehicle) RemoveRequestAt(pickupPosition, deliveryPosition int) Handle {
	n := v.route.Len()
	if pickupPosition < 0 || pickupPosition >= deliveryPosition || deliveryPosition >= n {
		panic(fmt.Sprintf("vehicle %s: invalid removal positions (%d, %d) on a route of %d", v.ID, pickupPosition, deliveryPosition, n))
	}
	pickup := v.route.Handle(pickupPosition)
	p := v.route.arena.Get(pickup)
	if p.Kind != Pickup || v.route.Handle(deliveryPosition) != p.Sibling {
		panic(fmt.Sprintf("vehicle %s: positions (%d, %d) do not hold a request pair", v.ID, pickupPosition, deliveryPosition))
	}
	v.route.removeAt(pickupPosition)
	v.route.removeAt(deliveryPosition - 1)
	v.detach(pickup)
	return pickup
}

// RemoveRequestByPickupIndex removes the pair whose pickup sits at
// pickupPosition, looking the delivery up.
func (v *Vehicle) RemoveRequestByPickupIndex(pickupPosition int) Handle {
	n := v.route.Len()
	if pickupPosition < 0 || pickupPosition >= n {
		panic(fmt.Sprintf("vehicle %s: invalid pickup position %d on a route of %d", v.ID, pickupPosition, n))
	}
	pickup := v.route.Handle(pickupPosition)
	p := v.route.arena.Get(pickup)
	if p.Kind != Pickup {
		panic(fmt.Sprintf("vehicle %s: position %d does not hold a pickup", v.ID, pickupPosition))
	}
	return v.RemoveRequestAt(pickupPosition, v.route.IndexOf(p.Sibling))
}

// RemoveRequest removes the pair h belongs to, h being either side, and
// reports where both sides were.
func (v *Vehicle) RemoveRequest(h Handle) RequestPositions {
	r := v.route.arena.Get(h)
	pickup := h
	if r.Kind == Delivery {
		pickup = r.Sibling
	}
	pp := v.route.IndexOf(pickup)
	if pp < 0 {
		panic(fmt.Sprintf("vehicle %s: request %d is not on the route", v.ID, r.ID))
	}
	dp := v.route.IndexOf(v.route.arena.Get(pickup).Sibling)
	v.RemoveRequestAt(pp, dp)
	return RequestPositions{PickupPosition: pp, DeliveryPosition: dp}
}

// detach resets the removed pair's times and reschedules what is left.
func (v *Vehicle) detach(pickup Handle) {
	p := v.route.arena.Get(pickup)
	d := v.route.arena.Get(p.Sibling)
	p.RealizationTime = p.WindowStart
	d.RealizationTime = d.WindowStart
	v.UpdateRealizationTimes()
}

// RemoveFinishedRequests drops every pair whose delivery has finished by
// time, marks every finished stop as served and moves the vehicle origin to
// the newly served stop that finished last. The origin never moves back in
// time, so calling it twice with the same time changes nothing.
func (v *Vehicle) RemoveFinishedRequests(time float64, shouldLog bool) []Handle {
	arena := v.route.arena
	var removed, kept []Handle
	var last *Request
	for _, h := range v.route.seq {
		r := arena.Get(h)
		if r.Finish() <= time && !v.IsServed(r.ID) {
			v.served[r.ID] = struct{}{}
			if r.Finish() >= v.departure && (last == nil || r.Finish() >= last.Finish()) {
				last = r
			}
		}
		d := r
		if r.Kind == Pickup {
			d = arena.Get(r.Sibling)
		}
		if d.Finish() <= time {
			removed = append(removed, h)
		} else {
			kept = append(kept, h)
		}
	}
	if last != nil {
		v.Location = last.Location
		v.departure = last.Finish()
	}
	if len(removed) == 0 {
		if last != nil {
			v.UpdateRealizationTimes()
		}
		return nil
	}
	if shouldLog {
		ids := make([]string, len(removed))
		for i, h := range removed {
			ids[i] = fmt.Sprint(arena.Get(h).ID)
		}
		log.WithField("vehicle", v.ID).Infof("finished realization of requests [%s]", strings.Join(ids, ", "))
	}
	v.route.set(kept)
	v.UpdateRealizationTimes()
	return removed
}

// RemoveRequestsByIDs drops the whole pair of every listed request id,
// pickup or delivery, regardless of its state, and returns the removed
// pickups. Ids not on the route are ignored.
func (v *Vehicle) RemoveRequestsByIDs(ids []int) []Handle {
	var removed []Handle
	for _, id := range ids {
		h, ok := v.route.arena.ByID(id)
		if !ok || v.route.IndexOf(h) < 0 {
			continue
		}
		pickup := h
		if r := v.route.arena.Get(h); r.Kind == Delivery {
			pickup = r.Sibling
		}
		v.RemoveRequest(pickup)
		removed = append(removed, pickup)
	}
	return removed
}

// CurrentRequest is the first stop whose service starts at or after time,
// or the last stop if every stop started earlier. Nil on an empty route.
func (v *Vehicle) CurrentRequest(time float64) *Request {
	reqs := v.route.Requests()
	if len(reqs) == 0 {
		return nil
	}
	for _, r := range reqs {
		if r.RealizationTime >= time {
			return r
		}
	}
	return reqs[len(reqs)-1]
}

// ShallowCopy returns a vehicle sharing v's requests with a private visiting
// order, for what-if changes that are thrown away.
func (v *Vehicle) ShallowCopy() *Vehicle {
	c := v.cloneState()
	c.route = v.route.View()
	return c
}

// Copy returns a vehicle detached from v, owning a fresh arena.
func (v *Vehicle) Copy() *Vehicle {
	c := v.cloneState()
	c.route = v.route.CloneDeep()
	return c
}

// CloneInto returns a copy of v whose route lives in arena, which must share
// v's handle space.
func (v *Vehicle) CloneInto(arena *Arena) *Vehicle {
	c := v.cloneState()
	c.route = NewRoute(arena, v.route.seq...)
	return c
}

func (v *Vehicle) cloneState() *Vehicle {
	served := make(map[int]struct{}, len(v.served))
	for id := range v.served {
		served[id] = struct{}{}
	}
	return &Vehicle{
		ID:            v.ID,
		MaxCapacity:   v.MaxCapacity,
		StartLocation: v.StartLocation,
		Location:      v.Location,
		departure:     v.departure,
		served:        served,
		sched:         v.sched,
	}
}

// assign overwrites v's mutable state with o's. The route arena is kept.
func (v *Vehicle) assign(o *Vehicle) {
	v.Location = o.Location
	v.departure = o.departure
	v.route.set(o.route.Handles())
	v.served = make(map[int]struct{}, len(o.served))
	for id := range o.served {
		v.served[id] = struct{}{}
	}
}

func (v *Vehicle) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "id: %s, max capacity: %d, location: %s, route:\n[\n", v.ID, v.MaxCapacity, v.Location)
	for _, r := range v.route.Requests() {
		fmt.Fprintf(&b, "\t%s\n", r)
	}
	b.WriteString("]")
	return b.String()
}

// Absorb takes over o's route and state. o's arena must share v's handle
// space; the realization times of o's route are copied into v's arena.
func (v *Vehicle) Absorb(o *Vehicle) {
	v.route.arena.CopyTimes(o.route.arena, o.route.seq)
	v.assign(o)
}
