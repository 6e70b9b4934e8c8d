package model

import "fmt"

// Kind tells the two sides of a request pair apart.
type Kind uint8

const (
	Pickup Kind = iota
	Delivery
)

func (k Kind) String() string {
	if k == Delivery {
		return "delivery"
	}
	return "pickup"
}

// Handle is a stable index of a Request inside its Arena.
type Handle int

// NoHandle marks an absent request.
const NoHandle Handle = -1

// Request is one side of a pickup/delivery pair.
type Request struct {
	ID              int
	Kind            Kind
	Location        Location
	Volume          int // positive for pickups, the negated pickup volume for deliveries
	WindowStart     float64
	WindowEnd       float64
	ServiceTime     float64
	RealizationTime float64
	Sibling         Handle
}

// Finish is the time service at the request completes.
func (r *Request) Finish() float64 { return r.RealizationTime + r.ServiceTime }

// InWindow reports whether the realization time lies inside the time window.
func (r *Request) InWindow() bool {
	return r.RealizationTime >= r.WindowStart && r.RealizationTime <= r.WindowEnd
}

func (r *Request) String() string {
	return fmt.Sprintf("id: %d, %s, location: %s, volume: %d, window: [%g, %g], service: %g, realization: %g",
		r.ID, r.Kind, r.Location, r.Volume, r.WindowStart, r.WindowEnd, r.ServiceTime, r.RealizationTime)
}

// Arena owns every Request of a problem. Routes refer to requests by Handle,
// so a pickup and its delivery point at each other without a pointer cycle.
type Arena struct {
	requests []Request
	byID     map[int]Handle
}

// NewArena returns an empty arena.
func NewArena() *Arena {
	return &Arena{byID: map[int]Handle{}}
}

// AddPair stores a pickup and its delivery and links them as siblings.
// Kinds are forced, the realization times start at the window starts and the
// delivery volume mirrors the pickup volume.
func (a *Arena) AddPair(pickup, delivery Request) (Handle, Handle) {
	if _, dup := a.byID[pickup.ID]; dup {
		panic(fmt.Sprintf("arena: duplicate request id %d", pickup.ID))
	}
	if _, dup := a.byID[delivery.ID]; dup || delivery.ID == pickup.ID {
		panic(fmt.Sprintf("arena: duplicate request id %d", delivery.ID))
	}
	ph := Handle(len(a.requests))
	dh := ph + 1
	pickup.Kind, delivery.Kind = Pickup, Delivery
	if pickup.Volume < 0 {
		pickup.Volume = -pickup.Volume
	}
	delivery.Volume = -pickup.Volume
	pickup.Sibling, delivery.Sibling = dh, ph
	pickup.RealizationTime = pickup.WindowStart
	delivery.RealizationTime = delivery.WindowStart
	a.requests = append(a.requests, pickup, delivery)
	a.byID[pickup.ID] = ph
	a.byID[delivery.ID] = dh
	return ph, dh
}

// Get returns the request behind h. The pointer stays valid until the next AddPair.
func (a *Arena) Get(h Handle) *Request {
	return &a.requests[h]
}

// Sibling returns the counterpart of the request behind h.
func (a *Arena) Sibling(h Handle) *Request {
	return &a.requests[a.requests[h].Sibling]
}

// ByID looks a request up by its identifier.
func (a *Arena) ByID(id int) (Handle, bool) {
	h, ok := a.byID[id]
	return h, ok
}

// Len is the number of stored requests (pickups and deliveries).
func (a *Arena) Len() int { return len(a.requests) }

// Pickups lists the pickup handles in insertion order.
func (a *Arena) Pickups() []Handle {
	out := make([]Handle, 0, len(a.requests)/2)
	for i := range a.requests {
		if a.requests[i].Kind == Pickup {
			out = append(out, Handle(i))
		}
	}
	return out
}

// Clone duplicates the arena. Handles valid in a are valid in the copy.
func (a *Arena) Clone() *Arena {
	c := &Arena{
		requests: make([]Request, len(a.requests)),
		byID:     make(map[int]Handle, len(a.byID)),
	}
	copy(c.requests, a.requests)
	for id, h := range a.byID {
		c.byID[id] = h
	}
	return c
}

// CopyTimes overwrites the realization times of the given handles with the
// ones stored in src. Both arenas must share the handle space.
func (a *Arena) CopyTimes(src *Arena, hs []Handle) {
	for _, h := range hs {
		a.requests[h].RealizationTime = src.requests[h].RealizationTime
	}
}

// Pool is the ordered set of pickups waiting to be inserted.
type Pool struct {
	order []Handle
	index map[Handle]int
}

// NewPool builds a pool from pickup handles, dropping duplicates.
func NewPool(hs ...Handle) *Pool {
	p := &Pool{index: map[Handle]int{}}
	for _, h := range hs {
		p.Add(h)
	}
	return p
}

// Add appends h unless it is already pooled.
func (p *Pool) Add(h Handle) {
	if _, ok := p.index[h]; ok {
		return
	}
	p.index[h] = len(p.order)
	p.order = append(p.order, h)
}

// Remove drops h from the pool, keeping the order of the rest.
func (p *Pool) Remove(h Handle) bool {
	i, ok := p.index[h]
	if !ok {
		return false
	}
	p.order = append(p.order[:i], p.order[i+1:]...)
	delete(p.index, h)
	for j := i; j < len(p.order); j++ {
		p.index[p.order[j]] = j
	}
	return true
}

// Contains reports whether h is pooled.
func (p *Pool) Contains(h Handle) bool {
	_, ok := p.index[h]
	return ok
}

// Handles returns a copy of the pooled handles in order.
func (p *Pool) Handles() []Handle {
	return append([]Handle(nil), p.order...)
}

func (p *Pool) Len() int { return len(p.order) }

// Clear empties the pool.
func (p *Pool) Clear() {
	p.order = p.order[:0]
	p.index = map[Handle]int{}
}

// Clone copies the pool.
func (p *Pool) Clone() *Pool {
	return NewPool(p.order...)
}

// Reset replaces the content of p with hs.
func (p *Pool) Reset(hs []Handle) {
	p.Clear()
	for _, h := range hs {
		p.Add(h)
	}
}
