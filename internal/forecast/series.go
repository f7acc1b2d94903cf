package forecast

import (
	"database/sql"
	"math"

	"github.com/lox/kitecast/internal/models"
)

// Aggregates over a DailySeries. Each returns an invalid NullFloat64 when no
// hour in the window carries the field.

func values(day models.DailySeries, window models.HourRange, field func(models.HourlyObservation) sql.NullFloat64) []float64 {
	var out []float64
	for _, h := range day.Hours {
		if !window.Contains(h.Hour) {
			continue
		}
		if v := field(h); v.Valid {
			out = append(out, v.Float64)
		}
	}
	return out
}

func MeanWind(day models.DailySeries, window models.HourRange) sql.NullFloat64 {
	return mean(values(day, window, func(h models.HourlyObservation) sql.NullFloat64 { return h.WindSpeed }))
}

func MaxGust(day models.DailySeries, window models.HourRange) sql.NullFloat64 {
	return maxOf(values(day, window, func(h models.HourlyObservation) sql.NullFloat64 { return h.WindGust }))
}

func MaxPrecipProbability(day models.DailySeries, window models.HourRange) sql.NullFloat64 {
	return maxOf(values(day, window, func(h models.HourlyObservation) sql.NullFloat64 { return h.PrecipProbability }))
}

func MeanCloudCover(day models.DailySeries, window models.HourRange) sql.NullFloat64 {
	return mean(values(day, window, func(h models.HourlyObservation) sql.NullFloat64 { return h.CloudCover }))
}

// MaxUV prefers hourly UV and falls back to the daily maximum.
func MaxUV(day models.DailySeries, window models.HourRange) sql.NullFloat64 {
	if v := maxOf(values(day, window, func(h models.HourlyObservation) sql.NullFloat64 { return h.UVIndex })); v.Valid {
		return v
	}
	return day.UVIndexMax
}

// MeanDirection is the vector mean of the hourly directions, so that 350°
// and 10° average to 0° rather than 180°. Result is in [0, 360).
func MeanDirection(day models.DailySeries, window models.HourRange) sql.NullFloat64 {
	dirs := values(day, window, func(h models.HourlyObservation) sql.NullFloat64 { return h.WindDirection })
	if len(dirs) == 0 {
		return sql.NullFloat64{}
	}
	var x, y float64
	for _, d := range dirs {
		rad := d * math.Pi / 180
		x += math.Cos(rad)
		y += math.Sin(rad)
	}
	if math.Abs(x) < 1e-9 && math.Abs(y) < 1e-9 {
		// opposing winds cancel out; no prevailing direction
		return sql.NullFloat64{}
	}
	deg := math.Atan2(y, x) * 180 / math.Pi
	if deg < 0 {
		deg += 360
	}
	deg = math.Round(deg*10) / 10
	if deg >= 360 {
		deg -= 360
	}
	return sql.NullFloat64{Float64: deg, Valid: true}
}

// TemperatureGradient is valley mean minus reference mean over the window,
// using only hours where both sides are present.
func TemperatureGradient(day models.DailySeries, window models.HourRange) sql.NullFloat64 {
	var valley, ref []float64
	for _, h := range day.Hours {
		if !window.Contains(h.Hour) || !h.Temperature.Valid || !h.ReferenceTemperature.Valid {
			continue
		}
		valley = append(valley, h.Temperature.Float64)
		ref = append(ref, h.ReferenceTemperature.Float64)
	}
	v, r := mean(valley), mean(ref)
	if !v.Valid || !r.Valid {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: v.Float64 - r.Float64, Valid: true}
}

func mean(vals []float64) sql.NullFloat64 {
	if len(vals) == 0 {
		return sql.NullFloat64{}
	}
	var sum float64
	for _, v := range vals {
		sum += v
	}
	return sql.NullFloat64{Float64: sum / float64(len(vals)), Valid: true}
}

func maxOf(vals []float64) sql.NullFloat64 {
	if len(vals) == 0 {
		return sql.NullFloat64{}
	}
	m := vals[0]
	for _, v := range vals[1:] {
		if v > m {
			m = v
		}
	}
	return sql.NullFloat64{Float64: m, Valid: true}
}
