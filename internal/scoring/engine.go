package scoring

import (
	"database/sql"
	"fmt"
	"strconv"

	"github.com/lox/kitecast/internal/forecast"
	"github.com/lox/kitecast/internal/models"
)

// Input is everything one day's score is computed from.
type Input struct {
	Day    models.DailySeries
	Offset int // days from today

	// Live signals describe current conditions and are only passed for today.
	Live   bool
	Foehn  models.FoehnReading
	Webcam models.Signal
}

// ScoreDay applies the policy to one day. It never fails: factors without
// data contribute zero and are flagged in the breakdown.
func ScoreDay(p Policy, in Input) models.DayScore {
	score := models.DayScore{
		Date:   in.Day.Date,
		Offset: in.Offset,
		Total:  p.Base,
	}

	for _, f := range p.Factors {
		res := models.FactorResult{Name: f.Name}

		switch {
		case f.LiveOnly && !in.Live:
			res.Status = models.FactorNotApplicable
			res.Label = "today only"
			res.Reason = "live signal only describes current conditions"
		default:
			v, err := f.Measure(&p, in)
			if err != nil {
				res.Status = models.FactorInsufficient
				res.Label = "insufficient data"
				res.Reason = err.Error()
				break
			}
			res.Status = models.FactorScored
			res.Value = sql.NullFloat64{Float64: v, Valid: true}
			if band, ok := f.Band(v); ok {
				res.Points = band.Points
				res.Label = band.Label
			} else {
				res.Label = "out of range"
			}
		}

		score.Total += res.Points
		score.Factors = append(score.Factors, res)
	}

	score.Tier = p.Tier(score.Total)
	return score
}

// FormatValue renders a factor value with its unit for display.
func FormatValue(p Policy, res models.FactorResult) string {
	if !res.Value.Valid {
		return "–"
	}
	unit := ""
	if f, ok := p.Factor(res.Name); ok {
		unit = f.Unit
	}
	v := strconv.FormatFloat(res.Value.Float64, 'f', 1, 64)
	if res.Name == FactorFoehn {
		v = fmt.Sprintf("%+d", int(res.Value.Float64))
	}
	if unit == "" {
		return v
	}
	if unit == "°" || unit == "%" {
		return v + unit
	}
	return v + " " + unit
}

func insufficient(what string, w models.HourRange) error {
	return fmt.Errorf("no %s between %02d:00 and %02d:59: %w", what, w.From, w.To, models.ErrInsufficientFactorData)
}

func fromNull(v sql.NullFloat64, what string, w models.HourRange) (float64, error) {
	if !v.Valid {
		return 0, insufficient(what, w)
	}
	return v.Float64, nil
}

func measureDirection(p *Policy, in Input) (float64, error) {
	return fromNull(forecast.MeanDirection(in.Day, p.Afternoon), "wind direction", p.Afternoon)
}

func measureSpeed(p *Policy, in Input) (float64, error) {
	return fromNull(forecast.MeanWind(in.Day, p.Afternoon), "wind speed", p.Afternoon)
}

func measureGust(p *Policy, in Input) (float64, error) {
	return fromNull(forecast.MaxGust(in.Day, p.Afternoon), "gusts", p.Afternoon)
}

func measurePrecip(p *Policy, in Input) (float64, error) {
	return fromNull(forecast.MaxPrecipProbability(in.Day, p.Afternoon), "precipitation probability", p.Afternoon)
}

func measureCloud(p *Policy, in Input) (float64, error) {
	return fromNull(forecast.MeanCloudCover(in.Day, p.Morning), "cloud cover", p.Morning)
}

func measureUV(p *Policy, in Input) (float64, error) {
	return fromNull(forecast.MaxUV(in.Day, p.Afternoon), "UV index", p.Afternoon)
}

func measureDailyUV(_ *Policy, in Input) (float64, error) {
	if !in.Day.UVIndexMax.Valid {
		return 0, fmt.Errorf("daily UV index maximum: %w", models.ErrInsufficientFactorData)
	}
	return in.Day.UVIndexMax.Float64, nil
}

func measureThermal(p *Policy, in Input) (float64, error) {
	return fromNull(forecast.TemperatureGradient(in.Day, p.Morning), "valley and reference temperatures", p.Morning)
}

func measureFoehn(_ *Policy, in Input) (float64, error) {
	if !in.Foehn.Valid {
		return 0, fmt.Errorf("foehn: %s: %w", in.Foehn.Reason, models.ErrInsufficientFactorData)
	}
	return float64(in.Foehn.Score), nil
}

func measureWebcam(_ *Policy, in Input) (float64, error) {
	if !in.Webcam.Valid {
		return 0, fmt.Errorf("webcam: %s: %w", in.Webcam.Reason, models.ErrInsufficientFactorData)
	}
	return in.Webcam.Value, nil
}
