package models

import (
	"database/sql"
	"time"
)

// Site describes the single location the advisory is computed for.
type Site struct {
	Name      string
	Latitude  float64
	Longitude float64
	Timezone  string

	// Elevated reference point used for the thermic temperature gradient.
	RefLatitude  float64
	RefLongitude float64
	RefElevation float64
}

// HourlyObservation is one forecast hour. Measured fields are nullable:
// an absent value is never the same as zero.
type HourlyObservation struct {
	Time                 time.Time // site local time, truncated to the hour
	Hour                 int
	WindSpeed            sql.NullFloat64 // km/h
	WindDirection        sql.NullFloat64 // degrees, 0-359
	WindGust             sql.NullFloat64 // km/h
	CloudCover           sql.NullFloat64 // percent
	Temperature          sql.NullFloat64 // °C, valley
	ReferenceTemperature sql.NullFloat64 // °C, elevated reference point
	PrecipProbability    sql.NullFloat64 // percent
	UVIndex              sql.NullFloat64
}

// DailySeries holds the hours of one calendar date, sorted by hour.
type DailySeries struct {
	Date             time.Time // midnight in the site zone
	Hours            []HourlyObservation
	UVIndexMax       sql.NullFloat64
	SunshineDuration sql.NullFloat64 // seconds
}

// HourRange is an inclusive range of hours of day.
type HourRange struct {
	From int
	To   int
}

func (r HourRange) Contains(hour int) bool {
	return hour >= r.From && hour <= r.To
}

// FactorStatus tells whether a factor contributed to a day's score.
type FactorStatus string

const (
	FactorScored        FactorStatus = "scored"
	FactorInsufficient  FactorStatus = "insufficient_data"
	FactorNotApplicable FactorStatus = "not_applicable"
)

// FactorResult is one row of a day's breakdown.
type FactorResult struct {
	Name   string          `json:"name"`
	Value  sql.NullFloat64 `json:"-"`
	Points int             `json:"points"`
	Label  string          `json:"label"`
	Status FactorStatus    `json:"status"`
	Reason string          `json:"reason,omitempty"`
}

// DayScore is the advisory for one calendar date.
type DayScore struct {
	Date    time.Time      `json:"date"`
	Offset  int            `json:"offset"`
	Total   int            `json:"total"`
	Tier    Tier           `json:"tier"`
	Factors []FactorResult `json:"factors"`
}

// Factor returns the breakdown row with the given name.
func (d DayScore) Factor(name string) (FactorResult, bool) {
	for _, f := range d.Factors {
		if f.Name == name {
			return f, true
		}
	}
	return FactorResult{}, false
}

// Tier is the ordinal classification of a total score.
type Tier struct {
	Rank  int    `json:"rank"` // higher is better
	Name  string `json:"name"`
	Label string `json:"label"`
}

// Feedback is one user submission about how a day actually rode.
type Feedback struct {
	ID         int64
	CreatedAt  time.Time
	Date       time.Time
	Rating     int // 1-5 wind satisfaction
	KiteSize   sql.NullFloat64
	Board      sql.NullString
	Comment    sql.NullString
	ScoreTotal sql.NullInt64
	ScoreTier  sql.NullString
}
