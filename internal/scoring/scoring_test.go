package scoring

import (
	"database/sql"
	"errors"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/lox/kitecast/internal/models"
	"github.com/lox/kitecast/internal/signals"
)

func nf(v float64) sql.NullFloat64 { return sql.NullFloat64{Float64: v, Valid: true} }

type conditions struct {
	speed, dir, gust, precip, cloud, uv float64
	valley, ref                          float64
}

func makeDay(c conditions) models.DailySeries {
	date := time.Date(2026, 7, 14, 0, 0, 0, 0, time.UTC)
	day := models.DailySeries{Date: date, UVIndexMax: nf(c.uv)}
	for h := 0; h < 24; h++ {
		day.Hours = append(day.Hours, models.HourlyObservation{
			Time:                 date.Add(time.Duration(h) * time.Hour),
			Hour:                 h,
			WindSpeed:            nf(c.speed),
			WindDirection:        nf(c.dir),
			WindGust:             nf(c.gust),
			PrecipProbability:    nf(c.precip),
			CloudCover:           nf(c.cloud),
			UVIndex:              nf(c.uv),
			Temperature:          nf(c.valley),
			ReferenceTemperature: nf(c.ref),
		})
	}
	return day
}

var perfect = conditions{speed: 18, dir: 180, gust: 25, precip: 10, cloud: 10, uv: 7, valley: 20, ref: 13}

func liveInput(day models.DailySeries) Input {
	return Input{
		Day:    day,
		Live:   true,
		Foehn:  models.FoehnReading{Score: 2, State: models.FoehnStrongSouth, Valid: true},
		Webcam: models.PresentSignal(200),
	}
}

func TestCompactPolicy_Valid(t *testing.T) {
	for _, name := range PolicyNames() {
		if _, err := PolicyByName(name); err != nil {
			t.Errorf("PolicyByName(%q): %v", name, err)
		}
	}
	if _, err := PolicyByName("nope"); err == nil {
		t.Error("expected error for unknown policy")
	}
}

func TestScoreDay_StrongSouthFoehnDay(t *testing.T) {
	p := CompactPolicy()
	got := ScoreDay(p, liveInput(makeDay(perfect)))

	if got.Total != 12 {
		t.Errorf("Total = %d, want 12", got.Total)
	}
	if got.Total != p.MaxTotal() {
		t.Errorf("Total = %d, want MaxTotal %d", got.Total, p.MaxTotal())
	}
	if got.Tier != TierGo {
		t.Errorf("Tier = %+v, want go", got.Tier)
	}
	if len(got.Factors) != len(p.Factors) {
		t.Fatalf("got %d factors, want %d", len(got.Factors), len(p.Factors))
	}
	for _, f := range got.Factors {
		if f.Status != models.FactorScored {
			t.Errorf("%s: status %s, want scored", f.Name, f.Status)
		}
	}
}

func TestScoreDay_PoorEastDay(t *testing.T) {
	day := makeDay(conditions{speed: 5, dir: 90, gust: 20, precip: 80, cloud: 90, uv: 2, valley: 15, ref: 14})
	in := Input{
		Day:    day,
		Live:   true,
		Foehn:  models.AbsentFoehn("diagram unreachable"),
		Webcam: models.AbsentSignal("webcam unreachable"),
	}
	got := ScoreDay(CompactPolicy(), in)

	if got.Total != -8 {
		t.Errorf("Total = %d, want -8", got.Total)
	}
	if got.Tier != TierNoGo {
		t.Errorf("Tier = %+v, want no-go", got.Tier)
	}

	penalised := []string{FactorDirection, FactorSpeed, FactorPrecip, FactorCloud}
	for _, name := range penalised {
		f, ok := got.Factor(name)
		if !ok || f.Points >= 0 {
			t.Errorf("%s: %+v, want a penalty", name, f)
		}
	}
	for _, name := range []string{FactorFoehn, FactorWebcam} {
		f, _ := got.Factor(name)
		if f.Status != models.FactorInsufficient || f.Points != 0 {
			t.Errorf("%s: %+v, want insufficient data and 0 points", name, f)
		}
	}
}

func TestScoreDay_RemovingFactorChangesTotalByItsContribution(t *testing.T) {
	in := liveInput(makeDay(conditions{speed: 10, dir: 200, gust: 40, precip: 30, cloud: 50, uv: 4, valley: 18, ref: 14}))
	full := CompactPolicy()
	fullScore := ScoreDay(full, in)

	for i, f := range full.Factors {
		reduced := CompactPolicy()
		reduced.Factors = append(reduced.Factors[:i:i], reduced.Factors[i+1:]...)
		got := ScoreDay(reduced, in)

		contribution, _ := fullScore.Factor(f.Name)
		if fullScore.Total-got.Total != contribution.Points {
			t.Errorf("without %s: total %d, full %d, contribution %d", f.Name, got.Total, fullScore.Total, contribution.Points)
		}
	}
}

func TestScoreDay_AbsentInputChangesTotalByItsContribution(t *testing.T) {
	cond := conditions{speed: 10, dir: 200, gust: 40, precip: 50, cloud: 80, uv: 7, valley: 20, ref: 13}
	full := ScoreDay(CompactPolicy(), liveInput(makeDay(cond)))

	blankHours := func(field func(*models.HourlyObservation) *sql.NullFloat64) func(*Input) {
		return func(in *Input) {
			for i := range in.Day.Hours {
				*field(&in.Day.Hours[i]) = sql.NullFloat64{}
			}
		}
	}
	tests := []struct {
		factor string
		blank  func(*Input)
	}{
		{FactorDirection, blankHours(func(h *models.HourlyObservation) *sql.NullFloat64 { return &h.WindDirection })},
		{FactorSpeed, blankHours(func(h *models.HourlyObservation) *sql.NullFloat64 { return &h.WindSpeed })},
		{FactorPrecip, blankHours(func(h *models.HourlyObservation) *sql.NullFloat64 { return &h.PrecipProbability })},
		{FactorCloud, blankHours(func(h *models.HourlyObservation) *sql.NullFloat64 { return &h.CloudCover })},
		{FactorUV, func(in *Input) {
			blankHours(func(h *models.HourlyObservation) *sql.NullFloat64 { return &h.UVIndex })(in)
			in.Day.UVIndexMax = sql.NullFloat64{}
		}},
		{FactorFoehn, func(in *Input) { in.Foehn = models.AbsentFoehn("diagram unreachable") }},
		{FactorWebcam, func(in *Input) { in.Webcam = models.AbsentSignal("webcam unreachable") }},
	}

	for _, tt := range tests {
		t.Run(tt.factor, func(t *testing.T) {
			contribution, _ := full.Factor(tt.factor)
			if contribution.Points == 0 {
				t.Fatalf("%s contributes nothing in the full day", tt.factor)
			}

			in := liveInput(makeDay(cond))
			tt.blank(&in)
			got := ScoreDay(CompactPolicy(), in)

			f, _ := got.Factor(tt.factor)
			if f.Status != models.FactorInsufficient || f.Points != 0 {
				t.Errorf("%s: %+v, want insufficient data and 0 points", tt.factor, f)
			}
			if full.Total-got.Total != contribution.Points {
				t.Errorf("total %d, full %d, contribution %d", got.Total, full.Total, contribution.Points)
			}
		})
	}
}

func TestScoreDay_MissingDataIsNeutral(t *testing.T) {
	day := makeDay(perfect)
	for i := range day.Hours {
		day.Hours[i].WindGust = sql.NullFloat64{}
		day.Hours[i].ReferenceTemperature = sql.NullFloat64{}
	}
	got := ScoreDay(CompactPolicy(), liveInput(day))

	// gusts contribute 0 either way; the thermal factor loses its +2
	if got.Total != 10 {
		t.Errorf("Total = %d, want 10", got.Total)
	}
	for _, name := range []string{FactorGust, FactorThermal} {
		f, _ := got.Factor(name)
		if f.Status != models.FactorInsufficient {
			t.Errorf("%s status = %s, want insufficient_data", name, f.Status)
		}
		if f.Reason == "" || f.Value.Valid {
			t.Errorf("%s: %+v, want a reason and no value", name, f)
		}
	}
}

func TestScoreDay_EmptyDay(t *testing.T) {
	got := ScoreDay(CompactPolicy(), Input{Day: models.DailySeries{}, Live: true,
		Foehn: models.AbsentFoehn("none"), Webcam: models.AbsentSignal("none")})
	if got.Total != 0 || got.Tier != TierNoGo {
		t.Errorf("got total %d tier %s, want 0 no-go", got.Total, got.Tier.Name)
	}
}

func TestScoreDay_LiveSignalsOnlyToday(t *testing.T) {
	in := liveInput(makeDay(perfect))
	in.Live = false
	in.Offset = 2
	got := ScoreDay(CompactPolicy(), in)

	for _, name := range []string{FactorFoehn, FactorWebcam} {
		f, _ := got.Factor(name)
		if f.Status != models.FactorNotApplicable || f.Points != 0 {
			t.Errorf("%s: %+v, want not applicable", name, f)
		}
	}
	if got.Total != 9 {
		t.Errorf("Total = %d, want 9", got.Total)
	}
	if got.Offset != 2 {
		t.Errorf("Offset = %d, want 2", got.Offset)
	}
}

func TestDirectionBands(t *testing.T) {
	f, _ := CompactPolicy().Factor(FactorDirection)
	tests := []struct {
		deg    float64
		points int
		label  string
	}{
		{deg: 180, points: 2, label: "south"},
		{deg: 135, points: 2, label: "south"},
		{deg: 225, points: 2, label: "south"},
		{deg: 0, points: 2, label: "north"},
		{deg: 350, points: 2, label: "north"},
		{deg: 45, points: 2, label: "north"},
		{deg: 315, points: 2, label: "north"},
		{deg: 90, points: -2, label: "unfavourable"},
		{deg: 270, points: -2, label: "unfavourable"},
		{deg: 46, points: -2, label: "unfavourable"},
	}
	for _, tt := range tests {
		b, ok := f.Band(tt.deg)
		if !ok || b.Points != tt.points || b.Label != tt.label {
			t.Errorf("Band(%v) = %+v, want %d %s", tt.deg, b, tt.points, tt.label)
		}
	}
}

func TestBandEdges(t *testing.T) {
	p := CompactPolicy()
	tests := []struct {
		factor string
		value  float64
		points int
	}{
		{FactorSpeed, 7.9, -2},
		{FactorSpeed, 8, 1},
		{FactorSpeed, 12, 2},
		{FactorSpeed, 25, 2},
		{FactorSpeed, 28, 1},
		{FactorSpeed, 35, 0},
		{FactorGust, 35, 0},
		{FactorGust, 35.1, -2},
		{FactorPrecip, 20, 1},
		{FactorPrecip, 40, 0},
		{FactorPrecip, 40.5, -2},
		{FactorCloud, 29, 1},
		{FactorCloud, 70, 0},
		{FactorCloud, 71, -1},
		{FactorUV, 6, 1},
		{FactorUV, 5.9, 0},
		{FactorThermal, 6, 2},
		{FactorThermal, 3, 1},
		{FactorThermal, -4, -1},
		{FactorWebcam, 150, 1},
		{FactorWebcam, 90, 0},
		{FactorWebcam, 89.9, -1},
		{FactorFoehn, -2, -2},
		{FactorFoehn, 1, 1},
	}
	for _, tt := range tests {
		f, ok := p.Factor(tt.factor)
		if !ok {
			t.Fatalf("no factor %s", tt.factor)
		}
		b, ok := f.Band(tt.value)
		if !ok || b.Points != tt.points {
			t.Errorf("%s(%v) = %+v, want %d points", tt.factor, tt.value, b, tt.points)
		}
	}
}

func TestTierMonotonic(t *testing.T) {
	for _, p := range []Policy{CompactPolicy(), ClassicPolicy()} {
		prev := math.MinInt
		for total := -100; total <= 150; total++ {
			rank := p.Tier(total).Rank
			if rank < prev {
				t.Fatalf("%s: tier rank dropped from %d to %d at total %d", p.Name, prev, rank, total)
			}
			prev = rank
		}
	}
}

func TestTierBreaks(t *testing.T) {
	p := CompactPolicy()
	cases := map[int]string{12: "go", 8: "go", 7: "maybe", 4: "maybe", 3: "no-go", -10: "no-go"}
	for total, want := range cases {
		if got := p.Tier(total).Name; got != want {
			t.Errorf("Tier(%d) = %s, want %s", total, got, want)
		}
	}
}

func TestClassicPolicy(t *testing.T) {
	p := ClassicPolicy()
	got := ScoreDay(p, liveInput(makeDay(perfect)))

	// 50 + direction 10 + speed 10 + uv 5 + cloud 5 + foehn 10
	if got.Total != 90 {
		t.Errorf("Total = %d, want 90", got.Total)
	}
	if got.Tier != TierGo {
		t.Errorf("Tier = %s, want go", got.Tier.Name)
	}
	if _, ok := got.Factor(FactorThermal); ok {
		t.Error("classic policy has no thermal factor")
	}

	east := makeDay(conditions{speed: 5, dir: 90, gust: 40, precip: 60, cloud: 80, uv: 3})
	got = ScoreDay(p, Input{Day: east, Live: true, Foehn: models.AbsentFoehn("none")})
	// 50 - 30 - 15 - 5 - 10
	if got.Total != -10 || got.Tier != TierNoGo {
		t.Errorf("east day: total %d tier %s, want -10 no-go", got.Total, got.Tier.Name)
	}
}

func TestClassicPolicy_PressureFoehn(t *testing.T) {
	p := ClassicPolicy()
	bands := signals.DefaultPressureBands()
	tests := []struct {
		name         string
		south, north float64
		points       int
	}{
		{"light south", 1012.3, 1007.9, 10},
		{"strong south", 1014, 1007, 10},
		{"light north", 1007.9, 1012.3, 5},
		{"strong north", 1005, 1013, 5},
		{"calm", 1010, 1008, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := liveInput(makeDay(perfect))
			in.Foehn = signals.FoehnFromPressure(&models.PressurePair{South: tt.south, North: tt.north}, bands)
			got := ScoreDay(p, in)

			f, _ := got.Factor(FactorFoehn)
			if f.Status != models.FactorScored || f.Points != tt.points {
				t.Errorf("foehn = %+v, want %d points", f, tt.points)
			}
			if got.Total != 80+tt.points {
				t.Errorf("Total = %d, want %d", got.Total, 80+tt.points)
			}
		})
	}
}

func TestClassicPolicy_UVFromDailyMaximum(t *testing.T) {
	day := makeDay(perfect)
	for i := range day.Hours {
		day.Hours[i].UVIndex = nf(3)
	}
	day.UVIndexMax = nf(7)

	classic, _ := ScoreDay(ClassicPolicy(), liveInput(day)).Factor(FactorUV)
	if classic.Points != 5 || classic.Value.Float64 != 7 {
		t.Errorf("classic uv = %+v, want 5 points from the daily maximum 7", classic)
	}
	compact, _ := ScoreDay(CompactPolicy(), liveInput(day)).Factor(FactorUV)
	if compact.Points != 0 || compact.Value.Float64 != 3 {
		t.Errorf("compact uv = %+v, want 0 points from hourly 3", compact)
	}

	day.UVIndexMax = sql.NullFloat64{}
	classic, _ = ScoreDay(ClassicPolicy(), liveInput(day)).Factor(FactorUV)
	if classic.Status != models.FactorInsufficient {
		t.Errorf("classic uv without daily maximum = %s, want insufficient_data", classic.Status)
	}
}

func TestValidate(t *testing.T) {
	p := CompactPolicy()
	p.Tiers[0], p.Tiers[1] = p.Tiers[1], p.Tiers[0]
	if err := p.Validate(); err == nil || !strings.Contains(err.Error(), "descending") {
		t.Errorf("Validate = %v, want ordering error", err)
	}

	p = CompactPolicy()
	p.Factors = append(p.Factors, p.Factors[0])
	if err := p.Validate(); err == nil {
		t.Error("expected duplicate factor error")
	}
}

func TestMeasureErrorsWrapSentinel(t *testing.T) {
	_, err := measureSpeed(&Policy{Afternoon: models.HourRange{From: 12, To: 17}}, Input{})
	if !errors.Is(err, models.ErrInsufficientFactorData) {
		t.Errorf("err = %v, want ErrInsufficientFactorData", err)
	}
}

func TestFormatValue(t *testing.T) {
	p := CompactPolicy()
	tests := []struct {
		res  models.FactorResult
		want string
	}{
		{models.FactorResult{Name: FactorSpeed, Value: nf(18.24)}, "18.2 km/h"},
		{models.FactorResult{Name: FactorDirection, Value: nf(180)}, "180.0°"},
		{models.FactorResult{Name: FactorFoehn, Value: nf(-1)}, "-1"},
		{models.FactorResult{Name: FactorUV, Value: nf(7)}, "7.0"},
		{models.FactorResult{Name: FactorGust}, "–"},
	}
	for _, tt := range tests {
		if got := FormatValue(p, tt.res); got != tt.want {
			t.Errorf("FormatValue(%s) = %q, want %q", tt.res.Name, got, tt.want)
		}
	}
}
