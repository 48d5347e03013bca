// Package export writes daily weather summaries to CSV or JSON files.
package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/mlindgren/weatherjob/internal/weather"
)

// utf8BOM makes spreadsheet tools pick UTF-8, so å/ä/ö render correctly.
var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

var csvHeader = []string{
	"day", "location",
	"temp_min", "temp_avg", "temp_max",
	"precip_sum", "precipprob_max",
	"windspeed_avg", "windgust_max",
	"humidity_avg", "pressure_avg", "cloudcover_avg",
	"hours_count",
}

// WriteCSV writes the summaries as UTF-8 CSV with a byte-order mark,
// creating parent directories as needed.
func WriteCSV(path string, rows []weather.DailySummary) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create export directory: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()

	if _, err := f.Write(utf8BOM); err != nil {
		return fmt.Errorf("write BOM: %w", err)
	}

	w := csv.NewWriter(f)
	if err := w.Write(csvHeader); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, r := range rows {
		record := []string{
			r.Day,
			r.Location,
			formatFloatPtr(r.TempMin),
			formatFloatPtr(r.TempAvg),
			formatFloatPtr(r.TempMax),
			formatFloat(r.PrecipSum),
			formatFloat(r.PrecipProbMax),
			formatFloat(r.WindSpeedAvg),
			formatFloat(r.WindGustMax),
			formatFloat(r.HumidityAvg),
			formatFloat(r.PressureAvg),
			formatFloat(r.CloudCoverAvg),
			strconv.Itoa(r.HoursCount),
		}
		if err := w.Write(record); err != nil {
			return fmt.Errorf("write row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("flush csv: %w", err)
	}
	return f.Close()
}

// WriteJSON writes the summaries as indented UTF-8 JSON.
func WriteJSON(path string, rows []weather.DailySummary) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create export directory: %w", err)
	}

	data, err := json.MarshalIndent(rows, "", "  ")
	if err != nil {
		return fmt.Errorf("encode summaries: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

func formatFloatPtr(v *float64) string {
	if v == nil {
		return ""
	}
	return formatFloat(*v)
}
