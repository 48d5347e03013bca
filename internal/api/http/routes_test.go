package httpapi

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/mlindgren/weatherjob/internal/store"
	"github.com/mlindgren/weatherjob/internal/weather"
)

type nopWriter struct{}

func (nopWriter) Write(p []byte) (int, error) { return len(p), nil }

func newTestApp(t *testing.T) (*fiber.App, *store.SQLiteStore) {
	t.Helper()

	dsn := filepath.Join(t.TempDir(), "weather_test.db")
	st, err := store.Open(dsn, store.DefaultRetry(), log.New(nopWriter{}, "", 0))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	svc := weather.NewService(nil, st, log.New(nopWriter{}, "", 0))

	app := fiber.New()
	RegisterRoutes(app, svc)
	return app, st
}

func seedHour(t *testing.T, st *store.SQLiteStore, ts time.Time, temp float64) {
	t.Helper()
	if err := st.UpsertObservations(context.Background(), []weather.Observation{{
		Location:       "Kungsbacka",
		TimestampLocal: ts,
		TimezoneName:   "Europe/Stockholm",
		Temp:           &temp,
		Source:         weather.SourceVisualCrossing,
	}}); err != nil {
		t.Fatalf("seed: %v", err)
	}
}

// TestHourlyQueryValidation verifies that the hourly endpoint rejects
// missing or inverted time ranges.
func TestHourlyQueryValidation(t *testing.T) {
	app, _ := newTestApp(t)

	// Missing from/to should return 400.
	req := httptest.NewRequest(http.MethodGet, "/api/v1/weather/hourly?location=Kungsbacka", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected status %d, got %d", http.StatusBadRequest, resp.StatusCode)
	}

	// to before from should also return 400.
	req = httptest.NewRequest(http.MethodGet,
		"/api/v1/weather/hourly?location=Kungsbacka&from=2025-08-27T12:00:00Z&to=2025-08-27T00:00:00Z", nil)
	resp, err = app.Test(req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected status %d, got %d", http.StatusBadRequest, resp.StatusCode)
	}
}

func TestHourlyReturnsStoredRows(t *testing.T) {
	app, st := newTestApp(t)
	ts := time.Date(2025, 8, 27, 0, 0, 0, 0, time.UTC)
	seedHour(t, st, ts, 12.5)

	req := httptest.NewRequest(http.MethodGet,
		"/api/v1/weather/hourly?location=Kungsbacka&from=2025-08-27T00:00:00Z&to=2025-08-27T01:00:00Z", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	var payload struct {
		Hours []weather.Observation `json:"hours"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if len(payload.Hours) != 1 {
		t.Fatalf("expected 1 row, got %d", len(payload.Hours))
	}
	if payload.Hours[0].Temp == nil || *payload.Hours[0].Temp != 12.5 {
		t.Fatalf("unexpected temp: %+v", payload.Hours[0].Temp)
	}
}

func TestHourlyNotFound(t *testing.T) {
	app, _ := newTestApp(t)

	req := httptest.NewRequest(http.MethodGet,
		"/api/v1/weather/hourly?location=Nowhere&from=2025-08-27T00:00:00Z&to=2025-08-27T01:00:00Z", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected status %d, got %d", http.StatusNotFound, resp.StatusCode)
	}
}

// TestDailyQueryValidation verifies the 1-90 range for the `days` query
// parameter and the required location.
func TestDailyQueryValidation(t *testing.T) {
	app, _ := newTestApp(t)

	// Out-of-range days value should return 400.
	req := httptest.NewRequest(http.MethodGet, "/api/v1/weather/daily?location=Kungsbacka&days=200", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected status %d, got %d", http.StatusBadRequest, resp.StatusCode)
	}

	// Missing location should also return 400.
	req = httptest.NewRequest(http.MethodGet, "/api/v1/weather/daily?days=7", nil)
	resp, err = app.Test(req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected status %d, got %d", http.StatusBadRequest, resp.StatusCode)
	}
}

func TestDailySummariesEndpoint(t *testing.T) {
	app, st := newTestApp(t)
	day := time.Date(2025, 8, 27, 0, 0, 0, 0, time.UTC)
	seedHour(t, st, day, 10)
	seedHour(t, st, day.Add(time.Hour), 14)

	req := httptest.NewRequest(http.MethodGet,
		"/api/v1/weather/daily?location=Kungsbacka&from=2025-08-27T00:00:00Z&to=2025-08-28T00:00:00Z", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	var payload struct {
		Days []weather.DailySummary `json:"days"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if len(payload.Days) != 1 {
		t.Fatalf("expected 1 summary, got %d", len(payload.Days))
	}
	if payload.Days[0].HoursCount != 2 {
		t.Fatalf("expected 2 hours, got %d", payload.Days[0].HoursCount)
	}
	if payload.Days[0].TempAvg == nil || *payload.Days[0].TempAvg != 12 {
		t.Fatalf("unexpected temp_avg: %+v", payload.Days[0].TempAvg)
	}
}
