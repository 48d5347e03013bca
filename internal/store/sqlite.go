package store

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/rand"
	"strings"
	"time"

	sqlite3 "github.com/mattn/go-sqlite3"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"github.com/mlindgren/weatherjob/internal/weather"
)

var (
	// ErrNotFound is returned when no data is available for a given location.
	ErrNotFound = errors.New("no weather data for location")
)

// observationUpdateColumns is the assignment set of the upsert: every column
// except the two key columns and fetched_at. Excluding fetched_at keeps it a
// first-seen timestamp across repeated upserts of the same hour.
var observationUpdateColumns = []string{
	"timezone_name",
	"temp",
	"feelslike",
	"humidity",
	"precip",
	"precipprob",
	"windspeed",
	"windgust",
	"pressure",
	"cloudcover",
	"conditions",
	"icon",
	"source",
}

// RetryConfig controls the retry schedule for busy/locked database errors.
type RetryConfig struct {
	MaxAttempts     int
	InitialInterval time.Duration
	MaxInterval     time.Duration
	Jitter          time.Duration
}

// DefaultRetry matches the job's contention schedule: five attempts, half a
// second doubling up to five, with up to a quarter second of jitter.
func DefaultRetry() RetryConfig {
	return RetryConfig{
		MaxAttempts:     5,
		InitialInterval: 500 * time.Millisecond,
		MaxInterval:     5 * time.Second,
		Jitter:          250 * time.Millisecond,
	}
}

// SQLiteStore is a weather.Store backed by a SQLite database. The database
// file may be shared with other processes (overlapping scheduled runs, a
// concurrent reader); write contention is handled by retrying busy errors.
type SQLiteStore struct {
	db     *gorm.DB
	retry  RetryConfig
	logger *log.Logger
	sleep  func(ctx context.Context, d time.Duration) error
	now    func() time.Time
}

// Open connects to the database, verifies the connection and creates the
// schema if absent. Errors here indicate a broken environment rather than a
// failed run.
func Open(dsn string, retry RetryConfig, logger *log.Logger) (*SQLiteStore, error) {
	if logger == nil {
		logger = log.Default()
	}

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open database %q: %w", dsn, err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("database handle: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := db.AutoMigrate(&weather.Observation{}); err != nil {
		return nil, fmt.Errorf("migrate weather_hourly: %w", err)
	}

	return &SQLiteStore{
		db:     db,
		retry:  retry,
		logger: logger,
		sleep:  sleepContext,
		now:    time.Now,
	}, nil
}

// Close releases the underlying database connection.
func (s *SQLiteStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// UpsertObservations writes the batch in one transaction. Rows whose
// (location, timestamp_local) already exists have every non-key field
// overwritten; fetched_at keeps its original value. A busy or locked
// database is retried with backoff, any other error propagates.
func (s *SQLiteStore) UpsertObservations(ctx context.Context, obs []weather.Observation) error {
	if len(obs) == 0 {
		s.logger.Printf("INFO: no rows to save")
		return nil
	}

	batch := make([]weather.Observation, len(obs))
	copy(batch, obs)

	fetchedAt := s.now().UTC()
	for i := range batch {
		if batch[i].Source == "" {
			batch[i].Source = weather.SourceVisualCrossing
		}
		if batch[i].FetchedAt.IsZero() {
			batch[i].FetchedAt = fetchedAt
		}
	}

	err := s.withBusyRetry(ctx, func() error {
		return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			return tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "location"}, {Name: "timestamp_local"}},
				DoUpdates: clause.AssignmentColumns(observationUpdateColumns),
			}).Create(&batch).Error
		})
	})
	if err != nil {
		return fmt.Errorf("upsert weather_hourly: %w", err)
	}

	s.logger.Printf("INFO: upsert done (%d rows)", len(batch))
	return nil
}

// withBusyRetry runs op, retrying busy/locked errors on the configured
// schedule. Non-transient errors are returned as-is on the first occurrence.
func (s *SQLiteStore) withBusyRetry(ctx context.Context, op func() error) error {
	backoff := s.retry.InitialInterval
	var lastErr error

	for attempt := 1; attempt <= s.retry.MaxAttempts; attempt++ {
		err := op()
		if err == nil {
			return nil
		}
		if !isBusyError(err) {
			return err
		}

		lastErr = err
		if attempt == s.retry.MaxAttempts {
			break
		}

		delay := backoff + randJitter(s.retry.Jitter)
		s.logger.Printf("WARN: database busy, retrying in %.2fs (attempt %d/%d)",
			delay.Seconds(), attempt, s.retry.MaxAttempts)
		if serr := s.sleep(ctx, delay); serr != nil {
			return serr
		}
		backoff = nextBackoff(backoff, s.retry.MaxInterval)
	}

	return fmt.Errorf("database still busy after %d attempts: %w", s.retry.MaxAttempts, lastErr)
}

// GetRange returns the hourly rows for a location between from and to (inclusive).
func (s *SQLiteStore) GetRange(ctx context.Context, location string, from, to time.Time) ([]weather.Observation, error) {
	var rows []weather.Observation
	err := s.db.WithContext(ctx).
		Where("location = ? AND timestamp_local >= ? AND timestamp_local <= ?", location, from, to).
		Order("timestamp_local").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("query weather_hourly: %w", err)
	}
	if len(rows) == 0 {
		return nil, ErrNotFound
	}
	return rows, nil
}

const dailySummarySQL = `
SELECT
    DATE(timestamp_local)            AS day,
    location,
    MIN(temp)                        AS temp_min,
    AVG(temp)                        AS temp_avg,
    MAX(temp)                        AS temp_max,
    SUM(COALESCE(precip, 0))         AS precip_sum,
    MAX(COALESCE(precipprob, 0))     AS precipprob_max,
    AVG(COALESCE(windspeed, 0))      AS windspeed_avg,
    MAX(COALESCE(windgust, 0))       AS windgust_max,
    AVG(COALESCE(humidity, 0))       AS humidity_avg,
    AVG(COALESCE(pressure, 0))       AS pressure_avg,
    AVG(COALESCE(cloudcover, 0))     AS cloudcover_avg,
    COUNT(*)                         AS hours_count
FROM weather_hourly
WHERE timestamp_local >= ? AND timestamp_local <= ?%s
GROUP BY DATE(timestamp_local), location
ORDER BY day, location`

// DailySummaries aggregates hourly rows into one row per (day, location).
// An empty location matches all locations. An empty result is not an error.
func (s *SQLiteStore) DailySummaries(ctx context.Context, location string, from, to time.Time) ([]weather.DailySummary, error) {
	where := ""
	args := []interface{}{from, to}
	if location != "" {
		where = " AND location = ?"
		args = append(args, location)
	}

	var rows []weather.DailySummary
	err := s.db.WithContext(ctx).
		Raw(fmt.Sprintf(dailySummarySQL, where), args...).
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("aggregate weather_hourly: %w", err)
	}
	return rows, nil
}

// isBusyError reports whether err is SQLite write contention, the one storage
// error worth retrying. Common when another process holds the write lock.
func isBusyError(err error) bool {
	var se sqlite3.Error
	if errors.As(err, &se) {
		return se.Code == sqlite3.ErrBusy || se.Code == sqlite3.ErrLocked
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "database is locked") || strings.Contains(msg, "busy")
}

func nextBackoff(current, max time.Duration) time.Duration {
	next := current * 2
	if max > 0 && next > max {
		next = max
	}
	return next
}

func randJitter(max time.Duration) time.Duration {
	if max <= 0 {
		return 0
	}
	return time.Duration(rand.Int63n(int64(max)))
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
