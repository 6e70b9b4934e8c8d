package model

// Wire types shared by the CLI, the HTTP service and the run store.

// Algorithms names the strategy chosen for every family.
type Algorithms struct {
	Generation    string `json:"generation" yaml:"generation"`
	Removal       string `json:"removal" yaml:"removal"`
	Insertion     string `json:"insertion" yaml:"insertion"`
	Optimization  string `json:"optimization" yaml:"optimization"`
	Objective     string `json:"objective" yaml:"objective"`
	Scheduler     string `json:"scheduler" yaml:"scheduler"`
	Decomposition string `json:"decomposition" yaml:"decomposition"`
}

// SearchParams tunes the strategies. Zero values are replaced by defaults.
type SearchParams struct {
	Iterations    int     `json:"iterations" yaml:"iterations"`
	TimeBudgetMs  int     `json:"timeBudgetMs,omitempty" yaml:"timeBudgetMs"`
	Seed          int64   `json:"seed" yaml:"seed"`
	Tenure        int     `json:"tenure" yaml:"tenure"`
	Neighbors     int     `json:"neighbors" yaml:"neighbors"`
	RemovalMin    float64 `json:"removalMin" yaml:"removalMin"`
	RemovalMax    float64 `json:"removalMax" yaml:"removalMax"`
	Randomization float64 `json:"randomization" yaml:"randomization"`
	RegretK       int     `json:"regretK" yaml:"regretK"`
	Workers       int     `json:"workers" yaml:"workers"`
	SubProblems   int     `json:"subProblems" yaml:"subProblems"`
	SnapshotEvery int     `json:"snapshotEvery" yaml:"snapshotEvery"`
}

// Record is one row of a Li & Lim style instance. Pickup rows carry the
// delivery index, delivery rows the pickup index; the depot row has neither.
type Record struct {
	ID       int     `json:"id"`
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	Demand   int     `json:"demand"`
	Ready    float64 `json:"ready"`
	Due      float64 `json:"due"`
	Service  float64 `json:"service"`
	Pickup   int     `json:"pickup"`
	Delivery int     `json:"delivery"`
}

// FleetIn is either a homogeneous fleet (Count, Capacity) or an explicit list.
type FleetIn struct {
	Count    int           `json:"count,omitempty" yaml:"count"`
	Capacity int           `json:"capacity,omitempty" yaml:"capacity"`
	List     []VehicleSpec `json:"list,omitempty" yaml:"list"`
}

type InstanceIn struct {
	Name     string   `json:"name"`
	Vehicles FleetIn  `json:"vehicles"`
	Records  []Record `json:"records,omitempty"`
	// Text holds a whole instance file as an alternative to Records.
	Text string `json:"text,omitempty"`
}

type SolveRequest struct {
	Instance       InstanceIn   `json:"instance"`
	Algorithms     Algorithms   `json:"algorithms"`
	Search         SearchParams `json:"search"`
	CallbackURL    string       `json:"callbackUrl,omitempty"`
	CallbackSecret string       `json:"callbackSecret,omitempty"`
}

type SolveAccepted struct {
	RunID  string `json:"runId"`
	Status string `json:"status"`
}

// Run statuses
const (
	RunQueued    = "queued"
	RunRunning   = "running"
	RunSucceeded = "succeeded"
	RunFailed    = "failed"
	RunCancelled = "cancelled"
)

// Run is the persisted state of one solve.
type Run struct {
	ID           string       `json:"id"`
	Instance     string       `json:"instance"`
	Status       string       `json:"status"`
	Algorithms   Algorithms   `json:"algorithms"`
	Search       SearchParams `json:"search"`
	CreatedAt    string       `json:"createdAt"`
	FinishedAt   string       `json:"finishedAt,omitempty"`
	Objective    float64      `json:"objective"`
	VehiclesUsed int          `json:"vehiclesUsed"`
	Unassigned   []int        `json:"unassigned,omitempty"`
	Iterations   int          `json:"iterations"`
	DurationMs   int64        `json:"durationMs"`
	Routes       []RouteOut   `json:"routes,omitempty"`
	Error        string       `json:"error,omitempty"`

	CallbackURL    string `json:"-"`
	CallbackSecret string `json:"-"`
}

// Terminal reports whether the run can no longer change.
func (r *Run) Terminal() bool {
	return r.Status == RunSucceeded || r.Status == RunFailed || r.Status == RunCancelled
}

type RouteOut struct {
	VehicleID string    `json:"vehicleId"`
	Distance  float64   `json:"distance"`
	Stops     []StopOut `json:"stops"`
}

type StopOut struct {
	RequestID   int     `json:"requestId"`
	Kind        string  `json:"kind"`
	X           float64 `json:"x"`
	Y           float64 `json:"y"`
	Volume      int     `json:"volume"`
	Realization float64 `json:"realization"`
}

// Snapshot records search progress at one iteration.
type Snapshot struct {
	ID          string  `json:"id"`
	RunID       string  `json:"runId"`
	Iteration   int     `json:"iteration"`
	BestCost    float64 `json:"bestCost"`
	CurrentCost float64 `json:"currentCost"`
	Unassigned  int     `json:"unassigned"`
	TS          string  `json:"ts"`
}

// Event is published on a run's progress stream.
type Event struct {
	Type     string    `json:"type"` // progress, status
	RunID    string    `json:"runId"`
	Status   string    `json:"status,omitempty"`
	Snapshot *Snapshot `json:"snapshot,omitempty"`
	TS       string    `json:"ts"`
}

// RouteOutOf renders a vehicle's route, distance including the return to start.
func RouteOutOf(v *Vehicle) RouteOut {
	out := RouteOut{VehicleID: v.ID, Stops: []StopOut{}}
	prev := v.StartLocation
	for _, r := range v.Route().Requests() {
		out.Distance += Distance(prev, r.Location)
		prev = r.Location
		out.Stops = append(out.Stops, StopOut{
			RequestID:   r.ID,
			Kind:        r.Kind.String(),
			X:           r.Location.X,
			Y:           r.Location.Y,
			Volume:      r.Volume,
			Realization: r.RealizationTime,
		})
	}
	if v.Route().Len() > 0 {
		out.Distance += Distance(prev, v.StartLocation)
	}
	return out
}
