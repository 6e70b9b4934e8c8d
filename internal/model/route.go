package model

import (
	"fmt"
	"slices"
)

// Route is the visiting order of one vehicle. Every pickup precedes its
// delivery and both sit in the same route.
type Route struct {
	arena *Arena
	seq   []Handle
}

// NewRoute returns a route over arena with the given order.
func NewRoute(arena *Arena, hs ...Handle) *Route {
	return &Route{arena: arena, seq: append([]Handle(nil), hs...)}
}

func (r *Route) Arena() *Arena { return r.arena }

func (r *Route) Len() int { return len(r.seq) }

// Handle returns the handle at position i.
func (r *Route) Handle(i int) Handle { return r.seq[i] }

// At returns the request at position i.
func (r *Route) At(i int) *Request { return r.arena.Get(r.seq[i]) }

// Handles returns a copy of the visiting order.
func (r *Route) Handles() []Handle { return append([]Handle(nil), r.seq...) }

// Requests resolves the visiting order to requests.
func (r *Route) Requests() []*Request {
	out := make([]*Request, len(r.seq))
	for i, h := range r.seq {
		out[i] = r.arena.Get(h)
	}
	return out
}

// IndexOf returns the position of h or -1.
func (r *Route) IndexOf(h Handle) int {
	return slices.Index(r.seq, h)
}

// IDs lists the request identifiers in visiting order.
func (r *Route) IDs() []int {
	out := make([]int, len(r.seq))
	for i, h := range r.seq {
		out[i] = r.arena.Get(h).ID
	}
	return out
}

func (r *Route) insert(pos int, h Handle) {
	r.seq = slices.Insert(r.seq, pos, h)
}

func (r *Route) removeAt(pos int) Handle {
	h := r.seq[pos]
	r.seq = slices.Delete(r.seq, pos, pos+1)
	return h
}

func (r *Route) set(hs []Handle) {
	r.seq = hs
}

// View returns a route sharing the arena: request identities, and therefore
// realization times, are shared while the order slice is private.
func (r *Route) View() *Route {
	return &Route{arena: r.arena, seq: r.Handles()}
}

// CloneDeep copies the requests of r into a fresh arena and returns a route
// over it. Requests whose sibling is not on the route keep their sibling
// unlinked (NoHandle).
func (r *Route) CloneDeep() *Route {
	fresh := &Arena{byID: map[int]Handle{}}
	remap := make(map[Handle]Handle, len(r.seq))
	for _, h := range r.seq {
		remap[h] = Handle(len(fresh.requests))
		req := *r.arena.Get(h)
		fresh.byID[req.ID] = remap[h]
		fresh.requests = append(fresh.requests, req)
	}
	seq := make([]Handle, len(r.seq))
	for i, h := range r.seq {
		nh := remap[h]
		seq[i] = nh
		if s, ok := remap[r.arena.Get(h).Sibling]; ok {
			fresh.requests[nh].Sibling = s
		} else {
			fresh.requests[nh].Sibling = NoHandle
		}
	}
	return &Route{arena: fresh, seq: seq}
}

// Load returns the cumulative volume after each position.
func (r *Route) Load() []int {
	out := make([]int, len(r.seq))
	total := 0
	for i, h := range r.seq {
		total += r.arena.Get(h).Volume
		out[i] = total
	}
	return out
}

// Validate checks the pairing invariant: every request's sibling is on the
// route, pickups strictly before their deliveries.
func (r *Route) Validate() error {
	pos := make(map[Handle]int, len(r.seq))
	for i, h := range r.seq {
		pos[h] = i
	}
	for i, h := range r.seq {
		req := r.arena.Get(h)
		j, ok := pos[req.Sibling]
		if !ok {
			return fmt.Errorf("route: request %d has no sibling on the route", req.ID)
		}
		if req.Kind == Pickup && j <= i {
			return fmt.Errorf("route: pickup %d does not precede its delivery", req.ID)
		}
	}
	return nil
}
