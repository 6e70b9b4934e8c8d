package store

import (
	"context"
	"errors"
	"time"

	"pdptw/internal/model"
)

// Store is the persistence interface used by the API server.
type Store interface {
	// Runs
	CreateRun(ctx context.Context, run model.Run) error
	GetRun(ctx context.Context, id string) (model.Run, error)
	ListRuns(ctx context.Context, status, cursor string, limit int) ([]model.Run, string, error)
	UpdateRun(ctx context.Context, run model.Run) error
	DeleteRun(ctx context.Context, id string) error

	// Search progress
	AppendSnapshots(ctx context.Context, runID string, snaps []model.Snapshot) error
	ListSnapshots(ctx context.Context, runID string) ([]model.Snapshot, error)

	// Webhook deliveries
	EnqueueWebhook(ctx context.Context, runID, eventType, url, secret string, payload []byte) (string, error)
	FetchDueWebhookDeliveries(ctx context.Context, limit int) ([]WebhookDelivery, error)
	MarkWebhookDelivery(ctx context.Context, id string, success bool, nextAttemptAt *time.Time, lastError string, responseCode int, latencyMs int) error
	FailWebhookDelivery(ctx context.Context, id string, lastError string, responseCode int, latencyMs int) error
	ListWebhookDeliveries(ctx context.Context, runID, status string) ([]WebhookDelivery, error)

	Ping(ctx context.Context) error
}

var ErrNotFound = errors.New("not found")

const maxListLimit = 500

func clampLimit(limit int) int {
	if limit <= 0 || limit > maxListLimit {
		return 100
	}
	return limit
}
