// Package scoring turns a day's forecast and the live signals into a score.
//
// A Policy is a table of factors. Each factor measures one value from the
// day and looks it up in an ordered list of bands; the first band containing
// the value decides the points. A factor whose inputs are absent contributes
// nothing and is reported as insufficient data.
package scoring

import (
	"fmt"
	"math"
	"sort"

	"github.com/lox/kitecast/internal/models"
)

// Factor names, in breakdown order.
const (
	FactorDirection = "wind_direction"
	FactorSpeed     = "wind_speed"
	FactorGust      = "gusts"
	FactorPrecip    = "precipitation"
	FactorCloud     = "cloud_cover"
	FactorUV        = "uv_index"
	FactorThermal   = "thermal_gradient"
	FactorFoehn     = "foehn"
	FactorWebcam    = "webcam"
)

// Band is an inclusive value range. Min > Max wraps around, for compass sectors.
type Band struct {
	Min    float64
	Max    float64
	Points int
	Label  string
}

func (b Band) Contains(v float64) bool {
	if b.Min > b.Max {
		return v >= b.Min || v <= b.Max
	}
	return v >= b.Min && v <= b.Max
}

// Measure extracts a factor's value from the input. It returns an error
// wrapping models.ErrInsufficientFactorData when the inputs are absent.
type Measure func(p *Policy, in Input) (float64, error)

type Factor struct {
	Name     string
	Unit     string
	LiveOnly bool // only scored for the current day
	Measure  Measure
	Bands    []Band
}

// Band returns the first band containing v.
func (f Factor) Band(v float64) (Band, bool) {
	for _, b := range f.Bands {
		if b.Contains(v) {
			return b, true
		}
	}
	return Band{}, false
}

// MaxPoints is the largest contribution any band of the factor can make.
func (f Factor) MaxPoints() int {
	if len(f.Bands) == 0 {
		return 0
	}
	m := f.Bands[0].Points
	for _, b := range f.Bands[1:] {
		if b.Points > m {
			m = b.Points
		}
	}
	return m
}

// TierBreak assigns Tier to totals at or above Min.
type TierBreak struct {
	Min  int
	Tier models.Tier
}

type Policy struct {
	Name string
	Base int

	Afternoon models.HourRange // wind, gusts, precipitation, UV
	Morning   models.HourRange // cloud cover, thermal gradient

	Factors []Factor
	Tiers   []TierBreak // highest Min first; the last entry is the floor
}

// Tier classifies a total. Higher totals never map to a lower tier.
func (p Policy) Tier(total int) models.Tier {
	for _, tb := range p.Tiers {
		if total >= tb.Min {
			return tb.Tier
		}
	}
	if len(p.Tiers) > 0 {
		return p.Tiers[len(p.Tiers)-1].Tier
	}
	return models.Tier{}
}

// MaxTotal is the total of a day where every factor lands in its best band.
func (p Policy) MaxTotal() int {
	total := p.Base
	for _, f := range p.Factors {
		total += f.MaxPoints()
	}
	return total
}

func (p Policy) Factor(name string) (Factor, bool) {
	for _, f := range p.Factors {
		if f.Name == name {
			return f, true
		}
	}
	return Factor{}, false
}

// Validate checks that tiers are ordered and ranked consistently.
func (p Policy) Validate() error {
	if len(p.Tiers) == 0 {
		return fmt.Errorf("policy %s: no tiers", p.Name)
	}
	if !sort.SliceIsSorted(p.Tiers, func(i, j int) bool { return p.Tiers[i].Min > p.Tiers[j].Min }) {
		return fmt.Errorf("policy %s: tiers must be ordered by descending minimum", p.Name)
	}
	for i := 1; i < len(p.Tiers); i++ {
		if p.Tiers[i].Tier.Rank >= p.Tiers[i-1].Tier.Rank {
			return fmt.Errorf("policy %s: tier %s must rank below %s", p.Name, p.Tiers[i].Tier.Name, p.Tiers[i-1].Tier.Name)
		}
	}
	seen := make(map[string]bool)
	for _, f := range p.Factors {
		if seen[f.Name] {
			return fmt.Errorf("policy %s: duplicate factor %s", p.Name, f.Name)
		}
		seen[f.Name] = true
		if f.Measure == nil {
			return fmt.Errorf("policy %s: factor %s has no measure", p.Name, f.Name)
		}
	}
	return nil
}

var (
	TierGo   = models.Tier{Rank: 2, Name: "go", Label: "Kiteable"}
	TierMay  = models.Tier{Rank: 1, Name: "maybe", Label: "Possible"}
	TierNoGo = models.Tier{Rank: 0, Name: "no-go", Label: "Not recommended"}
)

// above and below turn an inclusive bound into a strict one.
func above(v float64) float64 { return math.Nextafter(v, math.Inf(1)) }
func below(v float64) float64 { return math.Nextafter(v, math.Inf(-1)) }

var inf = math.Inf(1)

// CompactPolicy is the canonical scale. A perfect day scores 12.
//
// Both the south sector [135°, 225°] and the north sector [315°, 45°] are
// rideable on the lake; everything else is cross- or offshore.
func CompactPolicy() Policy {
	return Policy{
		Name:      "compact",
		Base:      0,
		Afternoon: models.HourRange{From: 12, To: 17},
		Morning:   models.HourRange{From: 8, To: 11},
		Factors: []Factor{
			{Name: FactorDirection, Unit: "°", Measure: measureDirection, Bands: []Band{
				{Min: 135, Max: 225, Points: 2, Label: "south"},
				{Min: 315, Max: 45, Points: 2, Label: "north"},
				{Min: 0, Max: 360, Points: -2, Label: "unfavourable"},
			}},
			{Name: FactorSpeed, Unit: "km/h", Measure: measureSpeed, Bands: []Band{
				{Min: 12, Max: 25, Points: 2, Label: "ideal"},
				{Min: 8, Max: below(12), Points: 1, Label: "marginal"},
				{Min: above(25), Max: 30, Points: 1, Label: "strong"},
				{Min: above(30), Max: inf, Points: 0, Label: "overpowered"},
				{Min: 0, Max: below(8), Points: -2, Label: "too weak"},
			}},
			{Name: FactorGust, Unit: "km/h", Measure: measureGust, Bands: []Band{
				{Min: 0, Max: 35, Points: 0, Label: "steady"},
				{Min: above(35), Max: inf, Points: -2, Label: "gusty"},
			}},
			{Name: FactorPrecip, Unit: "%", Measure: measurePrecip, Bands: []Band{
				{Min: 0, Max: 20, Points: 1, Label: "dry"},
				{Min: above(20), Max: 40, Points: 0, Label: "showers possible"},
				{Min: above(40), Max: 100, Points: -2, Label: "rain likely"},
			}},
			{Name: FactorCloud, Unit: "%", Measure: measureCloud, Bands: []Band{
				{Min: 0, Max: below(30), Points: 1, Label: "sunny"},
				{Min: 30, Max: 70, Points: 0, Label: "mixed"},
				{Min: above(70), Max: 100, Points: -1, Label: "overcast"},
			}},
			{Name: FactorUV, Measure: measureUV, Bands: []Band{
				{Min: 6, Max: inf, Points: 1, Label: "strong sun"},
				{Min: 0, Max: below(6), Points: 0, Label: "weak sun"},
			}},
			{Name: FactorThermal, Unit: "°C", Measure: measureThermal, Bands: []Band{
				{Min: 6, Max: inf, Points: 2, Label: "strong thermal"},
				{Min: 3, Max: below(6), Points: 1, Label: "thermal"},
				{Min: -inf, Max: below(3), Points: -1, Label: "weak thermal"},
			}},
			{Name: FactorFoehn, LiveOnly: true, Measure: measureFoehn, Bands: []Band{
				{Min: 2, Max: 2, Points: 2, Label: models.FoehnStrongSouth.Label()},
				{Min: 1, Max: 1, Points: 1, Label: models.FoehnLightSouth.Label()},
				{Min: 0, Max: 0, Points: 0, Label: models.FoehnNone.Label()},
				{Min: -1, Max: -1, Points: -1, Label: models.FoehnLightNorth.Label()},
				{Min: -2, Max: -2, Points: -2, Label: models.FoehnStrongNorth.Label()},
			}},
			{Name: FactorWebcam, LiveOnly: true, Measure: measureWebcam, Bands: []Band{
				{Min: 150, Max: 255, Points: 1, Label: "bright"},
				{Min: 90, Max: below(150), Points: 0, Label: "mixed light"},
				{Min: 0, Max: below(90), Points: -1, Label: "dark"},
			}},
		},
		Tiers: []TierBreak{
			{Min: 8, Tier: TierGo},
			{Min: 4, Tier: TierMay},
			{Min: math.MinInt, Tier: TierNoGo},
		},
	}
}

// ClassicPolicy is the older 100-point scale: a base of 50, every hourly
// value read at 14:00, UV from the daily maximum and no thermal or webcam
// factor. Any foehn earns points, north less than south. Unlike the old
// dashboard, foehn only counts for the current day.
func ClassicPolicy() Policy {
	return Policy{
		Name:      "classic",
		Base:      50,
		Afternoon: models.HourRange{From: 14, To: 14},
		Morning:   models.HourRange{From: 14, To: 14},
		Factors: []Factor{
			{Name: FactorDirection, Unit: "°", Measure: measureDirection, Bands: []Band{
				{Min: 140, Max: 220, Points: 10, Label: "south"},
				{Min: 330, Max: 30, Points: 10, Label: "north"},
				{Min: 0, Max: 360, Points: -30, Label: "unfavourable"},
			}},
			{Name: FactorSpeed, Unit: "km/h", Measure: measureSpeed, Bands: []Band{
				{Min: 14, Max: inf, Points: 10, Label: "strong"},
				{Min: 8, Max: below(14), Points: 0, Label: "moderate"},
				{Min: 0, Max: below(8), Points: -15, Label: "too weak"},
			}},
			{Name: FactorGust, Unit: "km/h", Measure: measureGust, Bands: []Band{
				{Min: 0, Max: 35, Points: 0, Label: "steady"},
				{Min: above(35), Max: inf, Points: -5, Label: "gusty"},
			}},
			{Name: FactorPrecip, Unit: "%", Measure: measurePrecip, Bands: []Band{
				{Min: 0, Max: 40, Points: 0, Label: "dry"},
				{Min: above(40), Max: 100, Points: -10, Label: "rain likely"},
			}},
			{Name: FactorUV, Measure: measureDailyUV, Bands: []Band{
				{Min: above(6), Max: inf, Points: 5, Label: "strong sun"},
				{Min: 0, Max: 6, Points: 0, Label: "weak sun"},
			}},
			{Name: FactorCloud, Unit: "%", Measure: measureCloud, Bands: []Band{
				{Min: 0, Max: below(30), Points: 5, Label: "sunny"},
				{Min: 30, Max: 100, Points: 0, Label: "cloudy"},
			}},
			{Name: FactorFoehn, LiveOnly: true, Measure: measureFoehn, Bands: []Band{
				{Min: 1, Max: 2, Points: 10, Label: "south foehn"},
				{Min: 0, Max: 0, Points: 0, Label: models.FoehnNone.Label()},
				{Min: -2, Max: -1, Points: 5, Label: "north foehn"},
			}},
		},
		Tiers: []TierBreak{
			{Min: 75, Tier: TierGo},
			{Min: 50, Tier: TierMay},
			{Min: math.MinInt, Tier: TierNoGo},
		},
	}
}

var presets = map[string]func() Policy{
	"compact": CompactPolicy,
	"classic": ClassicPolicy,
}

// PolicyByName returns a preset policy.
func PolicyByName(name string) (Policy, error) {
	fn, ok := presets[name]
	if !ok {
		return Policy{}, fmt.Errorf("unknown scoring policy %q", name)
	}
	p := fn()
	if err := p.Validate(); err != nil {
		return Policy{}, err
	}
	return p, nil
}

// PolicyNames lists the presets for help text.
func PolicyNames() []string {
	names := make([]string, 0, len(presets))
	for name := range presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
