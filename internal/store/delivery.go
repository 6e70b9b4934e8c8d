package store

import "time"

// Delivery statuses
const (
	DeliveryPending   = "pending"
	DeliveryRetry     = "retry"
	DeliveryDelivered = "delivered"
	DeliveryFailed    = "failed"
)

type WebhookDelivery struct {
	ID            string
	RunID         string
	EventType     string
	URL           string
	Secret        string
	Payload       []byte
	Status        string
	Attempts      int
	NextAttemptAt time.Time
	LastError     string
	ResponseCode  int
	LatencyMs     int
}
