// Command weather-export writes daily aggregates from weather_hourly to a
// CSV or JSON file.
//
// Examples:
//
//	weather-export -days 30 -location Kungsbacka -out exports/daily_30d.csv
//	weather-export -from 2025-08-01 -to 2025-08-27 -format json
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mlindgren/weatherjob/internal/config"
	"github.com/mlindgren/weatherjob/internal/export"
	"github.com/mlindgren/weatherjob/internal/store"
)

const (
	exitOK   = 0
	exitRun  = 1
	exitInit = 2
)

func main() {
	os.Exit(run())
}

func run() int {
	cfg := config.LoadExport()

	var (
		days     = flag.Int("days", 0, "export the last N days (including today)")
		fromStr  = flag.String("from", "", "start date, e.g. 2025-08-01")
		toStr    = flag.String("to", "", "end date, e.g. 2025-08-27")
		location = flag.String("location", cfg.Location, "location to export")
		outPath  = flag.String("out", "", "output path (default exports/daily_<location>_<span>.<ext>)")
		format   = flag.String("format", "csv", "export format: csv or json")
	)
	flag.Parse()

	logger := log.New(os.Stderr, "", log.LstdFlags)

	if *format != "csv" && *format != "json" {
		logger.Printf("ERROR: invalid -format %q (want csv or json)", *format)
		return exitInit
	}

	from, to, err := resolveRange(*days, *fromStr, *toStr)
	if err != nil {
		logger.Printf("ERROR: %v", err)
		return exitInit
	}

	st, err := store.Open(cfg.DatabaseDSN, store.DefaultRetry(), logger)
	if err != nil {
		logger.Printf("ERROR: failed to initialize database: %v", err)
		return exitInit
	}
	defer st.Close()

	rows, err := st.DailySummaries(context.Background(), *location, from, to)
	if err != nil {
		logger.Printf("ERROR: aggregation failed: %v", err)
		return exitRun
	}
	if len(rows) == 0 {
		fmt.Println("no rows to export for the selected range/location")
		return exitOK
	}

	path := *outPath
	if path == "" {
		span := fmt.Sprintf("%s-%s", from.Format("20060102"), to.Format("20060102"))
		path = filepath.Join("exports", fmt.Sprintf("daily_%s_%s.%s", *location, span, *format))
	}

	switch *format {
	case "csv":
		err = export.WriteCSV(path, rows)
	case "json":
		err = export.WriteJSON(path, rows)
	}
	if err != nil {
		logger.Printf("ERROR: export failed: %v", err)
		return exitRun
	}

	fmt.Printf("wrote %d rows to %s\n", len(rows), path)
	return exitOK
}

// resolveRange turns either -days or an explicit -from/-to pair into a
// concrete time window. With neither given, the last 7 days are exported.
func resolveRange(days int, fromStr, toStr string) (time.Time, time.Time, error) {
	if fromStr != "" || toStr != "" {
		if fromStr == "" || toStr == "" {
			return time.Time{}, time.Time{}, fmt.Errorf("give both -from and -to, or use -days")
		}
		from, err := parseDate(fromStr)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid -from: %w", err)
		}
		to, err := parseDate(toStr)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid -to: %w", err)
		}
		return from, to, nil
	}

	if days <= 0 {
		days = 7
	}
	now := time.Now()
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	return midnight.AddDate(0, 0, -(days - 1)), now, nil
}

// parseDate accepts "YYYY-MM-DD" or "YYYY-MM-DD HH:MM"/"YYYY-MM-DDTHH:MM".
func parseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(strings.ReplaceAll(s, "T", " "))
	if !strings.Contains(s, " ") {
		s += " 00:00"
	}
	return time.Parse("2006-01-02 15:04", s)
}
