package forecast

import (
	"database/sql"
	"fmt"
	"sort"
	"time"

	"github.com/lox/kitecast/internal/models"
)

const (
	hourLayout = "2006-01-02T15:04"
	dateLayout = "2006-01-02"
)

type hourKey struct {
	date string
	hour int
}

// Normalize turns a raw payload into one DailySeries per distinct date, in
// date order with hours ascending. Arrays of unequal length are truncated to
// the shortest one present; arrays that are missing leave the field absent.
// Timestamps that fail to parse, or name a wall-clock hour that does not
// exist in loc, are skipped and counted.
func Normalize(p *Payload, loc *time.Location) ([]models.DailySeries, int, error) {
	if p == nil || p.Hourly == nil {
		return nil, 0, fmt.Errorf("normalize: no hourly data: %w", models.ErrDataUnavailable)
	}
	if len(p.Hourly.Time) == 0 {
		return nil, 0, fmt.Errorf("normalize: empty time array: %w", models.ErrDataUnavailable)
	}
	if loc == nil {
		loc = time.UTC
	}

	h := p.Hourly
	n := len(h.Time)
	for _, arr := range [][]*float64{h.WindSpeed, h.WindDirection, h.WindGust, h.CloudCover, h.Temperature, h.PrecipProbability, h.UVIndex, h.UpperTemperature} {
		if len(arr) > 0 && len(arr) < n {
			n = len(arr)
		}
	}

	seen := make(map[hourKey]bool, n)
	byDate := make(map[string]*models.DailySeries)
	var skipped int

	for i := 0; i < n; i++ {
		t, err := time.ParseInLocation(hourLayout, h.Time[i], loc)
		if err != nil {
			skipped++
			continue
		}
		// A time inside the spring-forward gap is shifted by the zone change.
		if t.Format(hourLayout) != h.Time[i] {
			skipped++
			continue
		}
		t = t.Truncate(time.Hour)
		key := hourKey{date: t.Format(dateLayout), hour: t.Hour()}
		if seen[key] {
			continue
		}
		seen[key] = true

		day, ok := byDate[key.date]
		if !ok {
			day = &models.DailySeries{
				Date: time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc),
			}
			byDate[key.date] = day
		}

		day.Hours = append(day.Hours, models.HourlyObservation{
			Time:              t,
			Hour:              t.Hour(),
			WindSpeed:         at(h.WindSpeed, i),
			WindDirection:     at(h.WindDirection, i),
			WindGust:          at(h.WindGust, i),
			CloudCover:        at(h.CloudCover, i),
			Temperature:       at(h.Temperature, i),
			PrecipProbability: at(h.PrecipProbability, i),
			UVIndex:           at(h.UVIndex, i),

			ReferenceTemperature: at(h.UpperTemperature, i),
		})
	}

	if p.Daily != nil {
		for i, raw := range p.Daily.Time {
			day, ok := byDate[raw]
			if !ok {
				continue
			}
			day.UVIndexMax = at(p.Daily.UVIndexMax, i)
			day.SunshineDuration = at(p.Daily.SunshineDuration, i)
		}
	}

	days := make([]models.DailySeries, 0, len(byDate))
	for _, day := range byDate {
		sort.Slice(day.Hours, func(a, b int) bool { return day.Hours[a].Hour < day.Hours[b].Hour })
		days = append(days, *day)
	}
	sort.Slice(days, func(a, b int) bool { return days[a].Date.Before(days[b].Date) })

	if len(days) == 0 {
		return nil, skipped, fmt.Errorf("normalize: no parseable timestamps: %w", models.ErrDataUnavailable)
	}
	return days, skipped, nil
}

// AttachReference copies the elevated-point temperatures into the matching
// (date, hour) of days, replacing the 800 hPa temperature. Hours without a
// point value keep what they had.
func AttachReference(days []models.DailySeries, ref []models.DailySeries) {
	temps := make(map[hourKey]sql.NullFloat64)
	for _, d := range ref {
		date := d.Date.Format(dateLayout)
		for _, h := range d.Hours {
			temps[hourKey{date: date, hour: h.Hour}] = h.Temperature
		}
	}
	for i := range days {
		date := days[i].Date.Format(dateLayout)
		for j := range days[i].Hours {
			hr := &days[i].Hours[j]
			if v, ok := temps[hourKey{date: date, hour: hr.Hour}]; ok && v.Valid {
				hr.ReferenceTemperature = v
			}
		}
	}
}

// Window returns the days starting at today's date, at most n of them.
func Window(days []models.DailySeries, today time.Time, n int) []models.DailySeries {
	start := today.Format(dateLayout)
	var out []models.DailySeries
	for _, d := range days {
		if d.Date.Format(dateLayout) < start {
			continue
		}
		out = append(out, d)
		if len(out) == n {
			break
		}
	}
	return out
}

func at(arr []*float64, i int) sql.NullFloat64 {
	if i >= len(arr) || arr[i] == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *arr[i], Valid: true}
}
