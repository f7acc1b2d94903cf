package signals

import (
	"fmt"
	"math"

	"github.com/lox/kitecast/internal/models"
)

// PressureBands are the |differential| thresholds in hPa.
type PressureBands struct {
	Light  float64
	Strong float64
}

func DefaultPressureBands() PressureBands {
	return PressureBands{Light: 4, Strong: 6}
}

// PressureDifferential is south minus north.
func PressureDifferential(south, north float64) float64 {
	return south - north
}

// ClassifyPressure bands the differential: |d| below Light is none, below
// Strong is light, otherwise strong. Positive is south foehn.
func ClassifyPressure(diff float64, b PressureBands) models.FoehnState {
	mag := math.Abs(diff)
	switch {
	case mag < b.Light:
		return models.FoehnNone
	case mag < b.Strong:
		if diff > 0 {
			return models.FoehnLightSouth
		}
		return models.FoehnLightNorth
	default:
		if diff > 0 {
			return models.FoehnStrongSouth
		}
		return models.FoehnStrongNorth
	}
}

// FoehnFromPressure classifies a configured pressure pair. A nil pair is absent.
func FoehnFromPressure(p *models.PressurePair, b PressureBands) models.FoehnReading {
	if p == nil {
		return models.AbsentFoehn("no pressure readings configured")
	}
	diff := PressureDifferential(p.South, p.North)
	state := ClassifyPressure(diff, b)
	return models.FoehnReading{
		Score:  state.Score(),
		State:  state,
		Source: models.FoehnSourcePressure,
		Detail: fmt.Sprintf("Δp %+.1f hPa (%s)", diff, p),
		Valid:  true,
	}
}

// PickFoehn prefers the diagram reading and falls back to the pressure pair.
func PickFoehn(diagram, pressure models.FoehnReading) models.FoehnReading {
	if diagram.Valid {
		return diagram
	}
	if pressure.Valid {
		return pressure
	}
	reason := diagram.Reason
	if pressure.Reason != "" {
		reason = fmt.Sprintf("%s; %s", diagram.Reason, pressure.Reason)
	}
	return models.AbsentFoehn(reason)
}
