package weather

import (
	"time"
)

// SourceVisualCrossing tags every stored row with the provider that produced it.
const SourceVisualCrossing = "VisualCrossing"

// Observation is one hourly weather record for a location.
//
// The pair (location, timestamp_local) is the identity: a later fetch of the
// same hour overwrites the measurement fields of the existing row instead of
// creating a duplicate. The timestamp is local wall-clock time as reported by
// the provider; TimezoneName carries the IANA zone it belongs to.
//
// Measurement fields are pointers so a value the provider did not report
// stays distinguishable from a measured zero.
type Observation struct {
	Location       string    `gorm:"column:location;primaryKey;size:64" json:"location"`
	TimestampLocal time.Time `gorm:"column:timestamp_local;primaryKey" json:"timestampLocal"`
	TimezoneName   string    `gorm:"column:timezone_name;size:64" json:"timezoneName"`

	Temp       *float64 `gorm:"column:temp" json:"temp,omitempty"`
	FeelsLike  *float64 `gorm:"column:feelslike" json:"feelslike,omitempty"`
	Humidity   *float64 `gorm:"column:humidity" json:"humidity,omitempty"`
	Precip     *float64 `gorm:"column:precip" json:"precip,omitempty"`
	PrecipProb *float64 `gorm:"column:precipprob" json:"precipprob,omitempty"`
	WindSpeed  *float64 `gorm:"column:windspeed" json:"windspeed,omitempty"`
	WindGust   *float64 `gorm:"column:windgust" json:"windgust,omitempty"`
	Pressure   *float64 `gorm:"column:pressure" json:"pressure,omitempty"`
	CloudCover *float64 `gorm:"column:cloudcover" json:"cloudcover,omitempty"`
	Conditions *string  `gorm:"column:conditions;size:255" json:"conditions,omitempty"`
	Icon       *string  `gorm:"column:icon;size:64" json:"icon,omitempty"`

	Source string `gorm:"column:source;size:32" json:"source"`

	// FetchedAt is set once when the row is first inserted; later upserts of
	// the same hour leave it untouched.
	FetchedAt time.Time `gorm:"column:fetched_at" json:"fetchedAt"`
}

// TableName specifies the table name for Observation.
func (Observation) TableName() string {
	return "weather_hourly"
}

// DailySummary is one calendar day's aggregate over the hourly rows of a
// location, as produced by the export query.
type DailySummary struct {
	Day      string `gorm:"column:day" json:"day"`
	Location string `gorm:"column:location" json:"location"`

	TempMin       *float64 `gorm:"column:temp_min" json:"tempMin"`
	TempAvg       *float64 `gorm:"column:temp_avg" json:"tempAvg"`
	TempMax       *float64 `gorm:"column:temp_max" json:"tempMax"`
	PrecipSum     float64  `gorm:"column:precip_sum" json:"precipSum"`
	PrecipProbMax float64  `gorm:"column:precipprob_max" json:"precipprobMax"`
	WindSpeedAvg  float64  `gorm:"column:windspeed_avg" json:"windspeedAvg"`
	WindGustMax   float64  `gorm:"column:windgust_max" json:"windgustMax"`
	HumidityAvg   float64  `gorm:"column:humidity_avg" json:"humidityAvg"`
	PressureAvg   float64  `gorm:"column:pressure_avg" json:"pressureAvg"`
	CloudCoverAvg float64  `gorm:"column:cloudcover_avg" json:"cloudcoverAvg"`
	HoursCount    int      `gorm:"column:hours_count" json:"hoursCount"`
}
