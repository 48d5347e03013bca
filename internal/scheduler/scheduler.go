package scheduler

import (
	"context"
	"log"
	"time"

	"github.com/go-co-op/gocron"

	"github.com/mlindgren/weatherjob/internal/weather"
)

// Scheduler periodically runs the extract-load job for the configured location.
type Scheduler struct {
	scheduler *gocron.Scheduler
	service   *weather.Service
	location  string
	interval  time.Duration
	logger    *log.Logger
}

// New creates a new Scheduler.
func New(location string, interval time.Duration, service *weather.Service, logger *log.Logger) *Scheduler {
	s := gocron.NewScheduler(time.UTC)
	if logger == nil {
		logger = log.Default()
	}
	return &Scheduler{
		scheduler: s,
		service:   service,
		location:  location,
		interval:  interval,
		logger:    logger,
	}
}

// Start schedules the periodic job and starts the underlying scheduler.
func (s *Scheduler) Start() error {
	minutes := int(s.interval.Minutes())
	if minutes <= 0 {
		minutes = 60
	}

	_, err := s.scheduler.Every(minutes).Minutes().Do(func() {
		s.logger.Printf("INFO: scheduler: running weather fetch job for %s", s.location)

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()

		if err := s.service.RunOnce(ctx, s.location); err != nil {
			s.logger.Printf("ERROR: scheduler: run failed for %s: %v", s.location, err)
			return
		}
		s.logger.Printf("INFO: scheduler: completed weather fetch job")
	})
	if err != nil {
		return err
	}

	s.scheduler.StartAsync()
	return nil
}

// Stop stops the scheduler and cancels any future jobs.
func (s *Scheduler) Stop() {
	if s.scheduler != nil {
		s.scheduler.Stop()
	}
}
