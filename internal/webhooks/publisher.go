package webhooks

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"pdptw/internal/model"
	"pdptw/internal/store"
)

// EventRunCompleted is sent once per run when it reaches a terminal status.
const EventRunCompleted = "run.completed"

type Publisher struct {
	Store store.Store
}

func NewPublisher(s store.Store) *Publisher {
	return &Publisher{Store: s}
}

// RunCompleted enqueues a run.completed delivery to the run's callback URL.
// Runs without a callback are skipped.
func (p *Publisher) RunCompleted(ctx context.Context, run model.Run) (string, error) {
	if run.CallbackURL == "" {
		return "", nil
	}
	payload := map[string]any{
		"id":    fmt.Sprintf("evt_%d", time.Now().UnixNano()),
		"type":  EventRunCompleted,
		"runId": run.ID,
		"ts":    time.Now().UTC().Format(time.RFC3339),
		"data":  run,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}
	return p.Store.EnqueueWebhook(ctx, run.ID, EventRunCompleted, run.CallbackURL, run.CallbackSecret, body)
}
