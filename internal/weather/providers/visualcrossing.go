package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sony/gobreaker"

	"github.com/mlindgren/weatherjob/internal/weather"
)

const visualCrossingBaseURL = "https://weather.visualcrossing.com/VisualCrossingWebServices/rest/services/timeline"

// Requesting only the elements we store keeps the payload small.
const visualCrossingElements = "datetime,temp,feelslike,humidity,precip,precipprob," +
	"windspeed,windgust,pressure,cloudcover,conditions,icon"

// VisualCrossingProvider implements weather.HourlyProvider for the Visual
// Crossing timeline API.
type VisualCrossingProvider struct {
	name      string
	apiKey    string
	unitGroup string
	baseURL   string
	httpCfg   HTTPClientConfig
	circuit   *gobreaker.CircuitBreaker
	logger    *log.Logger
}

func NewVisualCrossingProvider(client *http.Client, apiKey, unitGroup string, backoff BackoffConfig, logger *log.Logger) *VisualCrossingProvider {
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "visualcrossing",
		MaxRequests: 5,
		Interval:    1 * time.Minute,
		Timeout:     2 * time.Minute,
	})

	if logger == nil {
		logger = log.Default()
	}

	return &VisualCrossingProvider{
		name:      "visualcrossing",
		apiKey:    apiKey,
		unitGroup: unitGroup,
		baseURL:   visualCrossingBaseURL,
		httpCfg: HTTPClientConfig{
			Client:  client,
			Backoff: backoff,
			Logger:  logger,
		},
		circuit: cb,
		logger:  logger,
	}
}

func (p *VisualCrossingProvider) Name() string {
	return p.name
}

// FetchHours requests the timeline for [start, end] (dates only) and returns
// one Observation per hour of every returned day.
func (p *VisualCrossingProvider) FetchHours(ctx context.Context, location string, start, end time.Time) ([]weather.Observation, error) {
	buildRequest := func() (*http.Request, error) {
		values := url.Values{}
		values.Set("unitGroup", p.unitGroup)
		values.Set("include", "hours,current")
		values.Set("key", p.apiKey)
		values.Set("contentType", "json")
		values.Set("elements", visualCrossingElements)

		u := fmt.Sprintf("%s/%s/%s/%s?%s",
			p.baseURL,
			url.PathEscape(location),
			start.Format("2006-01-02"),
			end.Format("2006-01-02"),
			values.Encode(),
		)
		return http.NewRequest(http.MethodGet, u, nil)
	}

	p.logger.Printf("INFO: fetching Visual Crossing data for %s (%s..%s)",
		location, start.Format("2006-01-02"), end.Format("2006-01-02"))

	resp, err := doRequestWithResilience(ctx, p.httpCfg, p.circuit, buildRequest)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}

	var payload struct {
		Timezone string `json:"timezone"`
		Days     []struct {
			Datetime string `json:"datetime"` // "YYYY-MM-DD"
			Hours    []struct {
				Datetime   string   `json:"datetime"` // "H:MM:SS" or "HH:MM:SS"
				Temp       *float64 `json:"temp"`
				FeelsLike  *float64 `json:"feelslike"`
				Humidity   *float64 `json:"humidity"`
				Precip     *float64 `json:"precip"`
				PrecipProb *float64 `json:"precipprob"`
				WindSpeed  *float64 `json:"windspeed"`
				WindGust   *float64 `json:"windgust"`
				Pressure   *float64 `json:"pressure"`
				CloudCover *float64 `json:"cloudcover"`
				Conditions *string  `json:"conditions"`
				Icon       *string  `json:"icon"`
			} `json:"hours"`
		} `json:"days"`
	}

	if err := json.Unmarshal(body, &payload); err != nil {
		snippet := string(body)
		if len(snippet) > 500 {
			snippet = snippet[:500]
		}
		p.logger.Printf("ERROR: could not decode JSON; response (truncated): %s", snippet)
		return nil, fmt.Errorf("decode visual crossing response: %w", err)
	}

	var rows []weather.Observation
	for _, d := range payload.Days {
		for _, h := range d.Hours {
			ts, err := combineDateTime(d.Datetime, h.Datetime)
			if err != nil {
				return nil, fmt.Errorf("combine %q %q: %w", d.Datetime, h.Datetime, err)
			}
			rows = append(rows, weather.Observation{
				Location:       location,
				TimestampLocal: ts,
				TimezoneName:   payload.Timezone,
				Temp:           h.Temp,
				FeelsLike:      h.FeelsLike,
				Humidity:       h.Humidity,
				Precip:         h.Precip,
				PrecipProb:     h.PrecipProb,
				WindSpeed:      h.WindSpeed,
				WindGust:       h.WindGust,
				Pressure:       h.Pressure,
				CloudCover:     h.CloudCover,
				Conditions:     h.Conditions,
				Icon:           h.Icon,
				Source:         weather.SourceVisualCrossing,
			})
		}
	}

	p.logger.Printf("INFO: parsed %d hourly rows", len(rows))
	return rows, nil
}

// combineDateTime builds a local timestamp from a day date and an hour
// time-of-day. Visual Crossing sometimes emits a single-digit hour
// ("0:05:00"), which is zero-padded before parsing.
func combineDateTime(dateStr, timeStr string) (time.Time, error) {
	if i := strings.IndexByte(timeStr, ':'); i == 1 {
		timeStr = "0" + timeStr
	}
	return time.Parse("2006-01-02 15:04:05", dateStr+" "+timeStr)
}
