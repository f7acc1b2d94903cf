package models

import "fmt"

// Signal is a best-effort scalar reading. When Valid is false, Reason says why.
type Signal struct {
	Value  float64 `json:"value"`
	Valid  bool    `json:"valid"`
	Reason string  `json:"reason,omitempty"`
}

func PresentSignal(v float64) Signal {
	return Signal{Value: v, Valid: true}
}

func AbsentSignal(reason string) Signal {
	return Signal{Reason: reason}
}

// FoehnState is the discrete foehn classification.
type FoehnState string

const (
	FoehnNone        FoehnState = "none"
	FoehnLightNorth  FoehnState = "light_north"
	FoehnStrongNorth FoehnState = "strong_north"
	FoehnLightSouth  FoehnState = "light_south"
	FoehnStrongSouth FoehnState = "strong_south"
)

// Score maps the state onto the signed -2..+2 convention shared with the
// diagram reading: south positive, north negative.
func (s FoehnState) Score() int {
	switch s {
	case FoehnStrongSouth:
		return 2
	case FoehnLightSouth:
		return 1
	case FoehnLightNorth:
		return -1
	case FoehnStrongNorth:
		return -2
	default:
		return 0
	}
}

// FoehnStateForScore is the inverse of Score, clamping out-of-range values.
func FoehnStateForScore(score int) FoehnState {
	switch {
	case score >= 2:
		return FoehnStrongSouth
	case score == 1:
		return FoehnLightSouth
	case score == -1:
		return FoehnLightNorth
	case score <= -2:
		return FoehnStrongNorth
	default:
		return FoehnNone
	}
}

func (s FoehnState) Label() string {
	switch s {
	case FoehnStrongSouth:
		return "strong south foehn"
	case FoehnLightSouth:
		return "light south foehn"
	case FoehnLightNorth:
		return "light north foehn"
	case FoehnStrongNorth:
		return "strong north foehn"
	default:
		return "no foehn"
	}
}

// Foehn sources.
const (
	FoehnSourceDiagram  = "diagram"
	FoehnSourcePressure = "pressure"
)

// FoehnReading is the foehn signal from either the diagram or the pressure pair.
type FoehnReading struct {
	Score  int        `json:"score"`
	State  FoehnState `json:"state"`
	Source string     `json:"source,omitempty"`
	Detail string     `json:"detail,omitempty"`
	Valid  bool       `json:"valid"`
	Reason string     `json:"reason,omitempty"`
}

func (r FoehnReading) Label() string {
	if !r.Valid {
		return "unavailable"
	}
	return r.State.Label()
}

func AbsentFoehn(reason string) FoehnReading {
	return FoehnReading{State: FoehnNone, Reason: reason}
}

// PressurePair holds the two reference station pressures in hPa.
type PressurePair struct {
	South     float64 `json:"south"` // e.g. Bozen
	North     float64 `json:"north"` // e.g. Innsbruck
	SouthName string  `json:"south_name"`
	NorthName string  `json:"north_name"`
}

// Differential is south minus north; positive values push air northwards.
func (p PressurePair) Differential() float64 {
	return p.South - p.North
}

func (p PressurePair) String() string {
	return fmt.Sprintf("%s %.1f hPa / %s %.1f hPa", p.SouthName, p.South, p.NorthName, p.North)
}
