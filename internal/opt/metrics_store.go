package opt

import "sync"

var (
	mu    sync.Mutex
	store = map[string][]Metrics{}
)

// RecordMetrics keeps the search metrics of a run for later inspection.
func RecordMetrics(runID string, m []Metrics) {
	mu.Lock()
	store[runID] = m
	mu.Unlock()
}

func GetMetrics(runID string) ([]Metrics, bool) {
	mu.Lock()
	defer mu.Unlock()
	m, ok := store[runID]
	return m, ok
}

func ForgetMetrics(runID string) {
	mu.Lock()
	delete(store, runID)
	mu.Unlock()
}
