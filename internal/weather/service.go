package weather

import (
	"context"
	"fmt"
	"log"
	"time"
)

// Service orchestrates a single extract-load run: fetch a fixed window of
// hourly records from the provider and upsert them into the store.
type Service struct {
	provider HourlyProvider
	store    Store
	logger   *log.Logger
}

// NewService creates a new Service.
func NewService(provider HourlyProvider, store Store, logger *log.Logger) *Service {
	return &Service{
		provider: provider,
		store:    store,
		logger:   logger,
	}
}

// RunOnce fetches the [yesterday, tomorrow] window (UTC relative to now) for
// the given location and upserts the resulting rows. Re-running with an
// overlapping window converges to the latest values.
func (s *Service) RunOnce(ctx context.Context, location string) error {
	now := time.Now().UTC()
	start := now.AddDate(0, 0, -1)
	end := now.AddDate(0, 0, 1)

	obs, err := s.provider.FetchHours(ctx, location, start, end)
	if err != nil {
		return fmt.Errorf("fetch hours for %s: %w", location, err)
	}
	s.logger.Printf("INFO: fetched %d hourly rows for %s", len(obs), location)

	if err := s.store.UpsertObservations(ctx, obs); err != nil {
		return fmt.Errorf("upsert %d rows for %s: %w", len(obs), location, err)
	}
	return nil
}

// GetRange delegates to the underlying store.
func (s *Service) GetRange(ctx context.Context, location string, from, to time.Time) ([]Observation, error) {
	return s.store.GetRange(ctx, location, from, to)
}

// DailySummaries delegates to the underlying store.
func (s *Service) DailySummaries(ctx context.Context, location string, from, to time.Time) ([]DailySummary, error) {
	return s.store.DailySummaries(ctx, location, from, to)
}
