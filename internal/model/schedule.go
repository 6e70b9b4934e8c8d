package model

// Scheduler computes realization times along a route. One Scheduler value is
// chosen per run and handed to every Vehicle at construction.
type Scheduler interface {
	// ScheduleRequests recomputes the realization times of every request on
	// the vehicle's route that has not been served yet.
	ScheduleRequests(v *Vehicle, currentTime float64)
	// NextRealizationTime is the time service at next begins when it directly
	// follows prev, which began at prevTime.
	NextRealizationTime(prev *Request, prevTime float64, next *Request) float64
	// InitialRealizationTime is the time service at req begins when it is the
	// first stop, reached after travelTime.
	InitialRealizationTime(req *Request, travelTime float64) float64
}

// UpdateSuccessor writes next's realization time as computed from prev.
func UpdateSuccessor(s Scheduler, prev, next *Request) {
	next.RealizationTime = s.NextRealizationTime(prev, prev.RealizationTime, next)
}

// UpdateRequestRealizationTime seeds req as the first stop of a route.
func UpdateRequestRealizationTime(s Scheduler, req *Request, travelTime float64) {
	req.RealizationTime = s.InitialRealizationTime(req, travelTime)
}

// DriveFirst departs as soon as the previous service ends and drives
// straight to the next stop. Early arrivals wait for the window to open;
// late arrivals are left as they are so feasibility checks can see them.
//
// Drive-first plans are static: currentTime is not consulted.
type DriveFirst struct{}

func (DriveFirst) NextRealizationTime(prev *Request, prevTime float64, next *Request) float64 {
	return max(prevTime+prev.ServiceTime+Distance(prev.Location, next.Location), next.WindowStart)
}

func (DriveFirst) InitialRealizationTime(req *Request, travelTime float64) float64 {
	return max(travelTime, req.WindowStart)
}

func (d DriveFirst) ScheduleRequests(v *Vehicle, currentTime float64) {
	loc, departure := v.Origin()
	var prev *Request
	for _, r := range v.route.Requests() {
		if v.IsServed(r.ID) {
			continue
		}
		if prev == nil {
			UpdateRequestRealizationTime(d, r, departure+Distance(loc, r.Location))
		} else {
			UpdateSuccessor(d, prev, r)
		}
		prev = r
	}
}
