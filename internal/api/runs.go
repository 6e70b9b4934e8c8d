package api

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"pdptw/internal/config"
	"pdptw/internal/integrations"
	"pdptw/internal/metrics"
	"pdptw/internal/model"
	"pdptw/internal/opt"
	"pdptw/internal/store"
	"pdptw/internal/webhooks"
)

// Event types published on a run's stream.
const (
	EventStatus   = "status"
	EventProgress = "progress"
)

var (
	errRunFinished = errors.New("run already finished")
	errRunNotLocal = errors.New("run is not executing on this instance")
)

// snapshotBatch is the number of buffered snapshots written in one store call.
const snapshotBatch = 20

// RunManager executes solve runs in the background, at most Concurrency at
// a time, and keeps their cancel functions.
type RunManager struct {
	Store  store.Store
	Broker EventBroker
	Pub    *webhooks.Publisher

	sem    chan struct{}
	mu     sync.Mutex
	cancel map[string]context.CancelFunc
	wg     sync.WaitGroup
}

func NewRunManager(st store.Store, broker EventBroker, pub *webhooks.Publisher, concurrency int) *RunManager {
	if concurrency <= 0 {
		concurrency = runtime.NumCPU()
	}
	return &RunManager{
		Store:  st,
		Broker: broker,
		Pub:    pub,
		sem:    make(chan struct{}, concurrency),
		cancel: map[string]context.CancelFunc{},
	}
}

// Submit validates req, stores a queued run and starts solving it. Problems
// with the submission are reported as opt.ErrInvalidArgument.
func (m *RunManager) Submit(ctx context.Context, req model.SolveRequest) (model.Run, error) {
	cfg := config.Config{Algorithms: req.Algorithms, Search: req.Search}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return model.Run{}, invalid(err)
	}
	in, err := integrations.FromRequest(req.Instance)
	if err != nil {
		return model.Run{}, invalid(err)
	}
	if len(in.Fleet) == 0 {
		return model.Run{}, invalid(errors.New("instance has no vehicles"))
	}
	algs, err := opt.Build(cfg.Algorithms, cfg.Search)
	if err != nil {
		return model.Run{}, invalid(err)
	}

	id, err := uuid.NewV7()
	if err != nil {
		return model.Run{}, err
	}
	run := model.Run{
		ID:             id.String(),
		Instance:       in.Name,
		Status:         model.RunQueued,
		Algorithms:     cfg.Algorithms,
		Search:         cfg.Search,
		CreatedAt:      now(),
		CallbackURL:    req.CallbackURL,
		CallbackSecret: req.CallbackSecret,
	}
	if err := m.Store.CreateRun(ctx, run); err != nil {
		return model.Run{}, fmt.Errorf("storing run: %w", err)
	}

	runCtx, cancel := context.WithCancel(context.Background())
	m.mu.Lock()
	m.cancel[run.ID] = cancel
	m.mu.Unlock()
	metrics.RunsInFlight.Inc()
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		defer metrics.RunsInFlight.Dec()
		defer m.forget(run.ID)
		m.execute(runCtx, run, in, algs)
	}()
	return run, nil
}

// Cancel stops an active run. Finished runs yield errRunFinished, runs
// executed by another process errRunNotLocal and unknown ones
// store.ErrNotFound.
func (m *RunManager) Cancel(ctx context.Context, id string) error {
	m.mu.Lock()
	cancel, ok := m.cancel[id]
	m.mu.Unlock()
	if ok {
		cancel()
		return nil
	}
	run, err := m.Store.GetRun(ctx, id)
	if err != nil {
		return err
	}
	if run.Terminal() {
		return errRunFinished
	}
	return errRunNotLocal
}

// Shutdown cancels every active run and waits for them to be recorded.
func (m *RunManager) Shutdown() {
	m.mu.Lock()
	for _, c := range m.cancel {
		c()
	}
	m.mu.Unlock()
	m.wg.Wait()
}

// Wait blocks until every submitted run has finished.
func (m *RunManager) Wait() { m.wg.Wait() }

func (m *RunManager) forget(id string) {
	m.mu.Lock()
	if c, ok := m.cancel[id]; ok {
		c()
		delete(m.cancel, id)
	}
	m.mu.Unlock()
}

func (m *RunManager) execute(ctx context.Context, run model.Run, in *model.Instance, algs *opt.Algorithms) {
	entry := log.WithField("run", run.ID)
	select {
	case m.sem <- struct{}{}:
		defer func() { <-m.sem }()
	case <-ctx.Done():
		run.Error = ctx.Err().Error()
		m.finish(entry, run, nil, model.RunCancelled)
		return
	}

	run.Status = model.RunRunning
	m.save(entry, run)
	m.Broker.Publish(run.ID, statusEvent(run))
	entry.WithField("instance", run.Instance).Info("run started")

	rec := &progressRecorder{store: m.Store, broker: m.Broker, runID: run.ID, every: run.Search.SnapshotEvery}
	res, err := opt.NewSolver(algs).Solve(ctx, in, rec.observe)
	rec.flush()

	status := model.RunSucceeded
	switch {
	case errors.Is(err, context.Canceled):
		status = model.RunCancelled
	case err != nil:
		status = model.RunFailed
	}
	if err != nil {
		run.Error = err.Error()
	}
	m.finish(entry, run, res, status)
}

func (m *RunManager) finish(entry *log.Entry, run model.Run, res *opt.Result, status string) {
	run.Status = status
	run.FinishedAt = now()
	if res != nil {
		sol := res.Solution
		run.Objective = res.Objective
		run.VehiclesUsed = sol.UsedVehicles()
		run.Unassigned = res.UnassignedIDs()
		run.Iterations = res.Iterations()
		run.DurationMs = res.Duration.Milliseconds()
		run.Routes = nil
		for _, v := range sol.Vehicles() {
			if v.Route().Len() > 0 {
				run.Routes = append(run.Routes, model.RouteOutOf(v))
			}
		}
		opt.RecordMetrics(run.ID, res.Metrics)
		observeSolver(run, res)
	}
	metrics.SolverRuns.WithLabelValues(run.Algorithms.Optimization, status).Inc()
	m.save(entry, run)
	m.Broker.Publish(run.ID, statusEvent(run))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := m.Pub.RunCompleted(ctx, run); err != nil {
		entry.WithError(err).Warn("enqueueing completion webhook")
	}
	entry.WithFields(log.Fields{"status": status, "objective": run.Objective, "unassigned": len(run.Unassigned)}).Info("run finished")
}

func (m *RunManager) save(entry *log.Entry, run model.Run) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := m.Store.UpdateRun(ctx, run); err != nil {
		entry.WithError(err).Error("updating run")
	}
}

func observeSolver(run model.Run, res *opt.Result) {
	metrics.SolverDuration.WithLabelValues(run.Algorithms.Optimization).Observe(res.Duration.Seconds())
	for _, m := range res.Metrics {
		metrics.SolverIterations.WithLabelValues("improved").Add(float64(m.Improvements))
		metrics.SolverIterations.WithLabelValues("worse").Add(float64(m.AcceptedWorse))
		metrics.SolverIterations.WithLabelValues("tabu").Add(float64(m.TabuRejected))
	}
}

// progressRecorder turns solver progress into stored snapshots and stream
// events. The solver calls it from several sub-problem goroutines.
type progressRecorder struct {
	store  store.Store
	broker EventBroker
	runID  string
	every  int

	mu      sync.Mutex
	pending []model.Snapshot
}

func (p *progressRecorder) observe(pr opt.Progress) {
	if p.every <= 0 || pr.Iteration%p.every != 0 {
		return
	}
	snap := model.Snapshot{
		ID:          uuid.NewString(),
		RunID:       p.runID,
		Iteration:   pr.Iteration,
		BestCost:    pr.Best.Cost,
		CurrentCost: pr.Current.Cost,
		Unassigned:  pr.Current.Unassigned,
		TS:          now(),
	}
	p.broker.Publish(p.runID, model.Event{Type: EventProgress, RunID: p.runID, Snapshot: &snap, TS: snap.TS})
	p.mu.Lock()
	p.pending = append(p.pending, snap)
	full := len(p.pending) >= snapshotBatch
	p.mu.Unlock()
	if full {
		p.flush()
	}
}

func (p *progressRecorder) flush() {
	p.mu.Lock()
	batch := p.pending
	p.pending = nil
	p.mu.Unlock()
	if len(batch) == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := p.store.AppendSnapshots(ctx, p.runID, batch); err != nil {
		log.WithError(err).WithField("run", p.runID).Warn("storing snapshots")
	}
}

func statusEvent(run model.Run) model.Event {
	return model.Event{Type: EventStatus, RunID: run.ID, Status: run.Status, TS: now()}
}

func invalid(err error) error {
	return fmt.Errorf("%w: %w", opt.ErrInvalidArgument, err)
}

func now() string { return time.Now().UTC().Format(time.RFC3339Nano) }
