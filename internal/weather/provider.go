package weather

import (
	"context"
	"time"
)

// HourlyProvider abstracts the remote weather API the job extracts from.
// Implementations return one Observation per (day, hour) in the window.
type HourlyProvider interface {
	Name() string
	FetchHours(ctx context.Context, location string, start, end time.Time) ([]Observation, error)
}

// Store is the contract the persistent store must satisfy.
type Store interface {
	// UpsertObservations writes the batch atomically; rows whose key already
	// exists have every non-key field overwritten. An empty batch is a no-op.
	UpsertObservations(ctx context.Context, obs []Observation) error
	GetRange(ctx context.Context, location string, from, to time.Time) ([]Observation, error)
	DailySummaries(ctx context.Context, location string, from, to time.Time) ([]DailySummary, error)
}
