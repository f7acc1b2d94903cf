package ingest

import (
	"database/sql"

	"github.com/lox/kitecast/internal/models"
)

const (
	FlagWindSpeedUnlikely = "wind_speed_unlikely"
	FlagWindDirInvalid    = "wind_dir_invalid"
	FlagGustUnlikely      = "gust_unlikely"
	FlagCloudInvalid      = "cloud_cover_invalid"
	FlagTempOutOfRange    = "temp_out_of_range"
	FlagRefTempOutOfRange = "ref_temp_out_of_range"
	FlagPrecipInvalid     = "precip_probability_invalid"
	FlagUVInvalid         = "uv_index_invalid"
)

type check struct {
	flag     string
	field    func(h *models.HourlyObservation) *sql.NullFloat64
	min, max float64
}

var hourChecks = []check{
	{FlagWindSpeedUnlikely, func(h *models.HourlyObservation) *sql.NullFloat64 { return &h.WindSpeed }, 0, 200},
	{FlagWindDirInvalid, func(h *models.HourlyObservation) *sql.NullFloat64 { return &h.WindDirection }, 0, 360},
	{FlagGustUnlikely, func(h *models.HourlyObservation) *sql.NullFloat64 { return &h.WindGust }, 0, 250},
	{FlagCloudInvalid, func(h *models.HourlyObservation) *sql.NullFloat64 { return &h.CloudCover }, 0, 100},
	{FlagTempOutOfRange, func(h *models.HourlyObservation) *sql.NullFloat64 { return &h.Temperature }, -50, 50},
	{FlagRefTempOutOfRange, func(h *models.HourlyObservation) *sql.NullFloat64 { return &h.ReferenceTemperature }, -60, 50},
	{FlagPrecipInvalid, func(h *models.HourlyObservation) *sql.NullFloat64 { return &h.PrecipProbability }, 0, 100},
	{FlagUVInvalid, func(h *models.HourlyObservation) *sql.NullFloat64 { return &h.UVIndex }, 0, 20},
}

// ValidateHour returns a flag for every physically implausible value.
func ValidateHour(h *models.HourlyObservation) []string {
	var flags []string
	for _, c := range hourChecks {
		v := c.field(h)
		if v.Valid && (v.Float64 < c.min || v.Float64 > c.max) {
			flags = append(flags, c.flag)
		}
	}
	return flags
}

func checkFor(flag string) (check, bool) {
	for _, c := range hourChecks {
		if c.flag == flag {
			return c, true
		}
	}
	return check{}, false
}

// Scrub clears implausible values so scoring treats them as absent. It
// returns how often each flag was raised.
func Scrub(days []models.DailySeries) map[string]int {
	counts := make(map[string]int)
	for i := range days {
		for j := range days[i].Hours {
			h := &days[i].Hours[j]
			for _, flag := range ValidateHour(h) {
				counts[flag]++
				if c, ok := checkFor(flag); ok {
					*c.field(h) = sql.NullFloat64{}
				}
			}
		}
		if uv := days[i].UVIndexMax; uv.Valid && (uv.Float64 < 0 || uv.Float64 > 20) {
			counts[FlagUVInvalid]++
			days[i].UVIndexMax = sql.NullFloat64{}
		}
	}
	return counts
}
