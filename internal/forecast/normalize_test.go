package forecast

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/lox/kitecast/internal/models"
)

func fp(v float64) *float64 { return &v }

func berlin(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("Europe/Berlin")
	if err != nil {
		t.Fatalf("load timezone: %v", err)
	}
	return loc
}

func TestNormalize_GroupsByDateAndSortsHours(t *testing.T) {
	p := &Payload{
		Hourly: &HourlyArray{
			Time:      []string{"2026-07-02T01:00", "2026-07-01T14:00", "2026-07-01T13:00", "2026-07-02T00:00"},
			WindSpeed: []*float64{fp(4), fp(18), fp(16), fp(3)},
		},
	}

	days, skipped, err := Normalize(p, berlin(t))
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if skipped != 0 {
		t.Errorf("skipped = %d, want 0", skipped)
	}
	if len(days) != 2 {
		t.Fatalf("len(days) = %d, want 2", len(days))
	}
	if got := days[0].Date.Format("2006-01-02"); got != "2026-07-01" {
		t.Errorf("days[0].Date = %s, want 2026-07-01", got)
	}
	if days[0].Hours[0].Hour != 13 || days[0].Hours[1].Hour != 14 {
		t.Errorf("hours not sorted: %d, %d", days[0].Hours[0].Hour, days[0].Hours[1].Hour)
	}
	if days[0].Hours[0].WindSpeed.Float64 != 16 {
		t.Errorf("wind at 13h = %v, want 16", days[0].Hours[0].WindSpeed.Float64)
	}
	if days[1].Hours[0].Hour != 0 || days[1].Hours[1].Hour != 1 {
		t.Errorf("day 2 hours not sorted")
	}
}

func TestNormalize_DropsDuplicateHours(t *testing.T) {
	p := &Payload{
		Hourly: &HourlyArray{
			Time:      []string{"2026-07-01T12:00", "2026-07-01T12:00", "2026-07-01T13:00"},
			WindSpeed: []*float64{fp(10), fp(99), fp(11)},
		},
	}

	days, _, err := Normalize(p, time.UTC)
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if len(days) != 1 || len(days[0].Hours) != 2 {
		t.Fatalf("expected 1 day with 2 hours, got %+v", days)
	}
	if days[0].Hours[0].WindSpeed.Float64 != 10 {
		t.Errorf("first occurrence should win, got %v", days[0].Hours[0].WindSpeed.Float64)
	}
}

func TestNormalize_TruncatesToShortestArray(t *testing.T) {
	p := &Payload{
		Hourly: &HourlyArray{
			Time:       []string{"2026-07-01T10:00", "2026-07-01T11:00", "2026-07-01T12:00"},
			WindSpeed:  []*float64{fp(10), fp(11), fp(12)},
			CloudCover: []*float64{fp(20), fp(30)},
		},
	}

	days, _, err := Normalize(p, time.UTC)
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if got := len(days[0].Hours); got != 2 {
		t.Errorf("len(hours) = %d, want 2", got)
	}
}

func TestNormalize_MissingFieldsAreAbsent(t *testing.T) {
	p := &Payload{
		Hourly: &HourlyArray{
			Time:      []string{"2026-07-01T10:00", "2026-07-01T11:00"},
			WindSpeed: []*float64{fp(0), nil},
		},
	}

	days, _, err := Normalize(p, time.UTC)
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	h := days[0].Hours
	if !h[0].WindSpeed.Valid || h[0].WindSpeed.Float64 != 0 {
		t.Errorf("zero wind should be present, got %+v", h[0].WindSpeed)
	}
	if h[1].WindSpeed.Valid {
		t.Errorf("null wind should be absent")
	}
	if h[0].UVIndex.Valid || h[0].CloudCover.Valid {
		t.Errorf("fields without arrays should be absent")
	}
}

func TestNormalize_SkipsBadTimestamps(t *testing.T) {
	p := &Payload{
		Hourly: &HourlyArray{
			Time:      []string{"garbage", "2026-07-01T11:00"},
			WindSpeed: []*float64{fp(1), fp(2)},
		},
	}

	days, skipped, err := Normalize(p, time.UTC)
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if skipped != 1 {
		t.Errorf("skipped = %d, want 1", skipped)
	}
	if len(days[0].Hours) != 1 {
		t.Errorf("len(hours) = %d, want 1", len(days[0].Hours))
	}
}

func TestNormalize_SkipsNonexistentLocalHour(t *testing.T) {
	p := &Payload{
		Hourly: &HourlyArray{
			Time:      []string{"2026-03-29T01:00", "2026-03-29T02:00", "2026-03-29T03:00"},
			WindSpeed: []*float64{fp(1), fp(2), fp(3)},
		},
	}

	days, skipped, err := Normalize(p, berlin(t))
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if skipped != 1 {
		t.Errorf("skipped = %d, want 1", skipped)
	}
	hours := days[0].Hours
	if len(hours) != 2 {
		t.Fatalf("len(hours) = %d, want 2", len(hours))
	}
	if hours[1].Hour != 3 || hours[1].WindSpeed.Float64 != 3 {
		t.Errorf("03:00 = %+v, want the real 03:00 row", hours[1])
	}
}

func TestNormalize_DataUnavailable(t *testing.T) {
	tests := []struct {
		name string
		p    *Payload
	}{
		{name: "nil payload", p: nil},
		{name: "no hourly block", p: &Payload{}},
		{name: "empty time array", p: &Payload{Hourly: &HourlyArray{}}},
		{name: "only bad timestamps", p: &Payload{Hourly: &HourlyArray{Time: []string{"x", "y"}}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := Normalize(tt.p, time.UTC)
			if !errors.Is(err, models.ErrDataUnavailable) {
				t.Errorf("err = %v, want ErrDataUnavailable", err)
			}
		})
	}
}

func TestNormalize_DailyArrays(t *testing.T) {
	raw := `{
		"timezone": "Europe/Berlin",
		"hourly": {
			"time": ["2026-07-01T12:00", "2026-07-02T12:00"],
			"wind_speed_10m": [15.2, null],
			"temperature_2m": [24.1, 22.0]
		},
		"daily": {
			"time": ["2026-07-01", "2026-07-02", "2026-07-03"],
			"uv_index_max": [6.5, null, 4.0],
			"sunshine_duration": [36000, 18000, 0]
		}
	}`
	var p Payload
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	days, _, err := Normalize(&p, berlin(t))
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if len(days) != 2 {
		t.Fatalf("len(days) = %d, want 2", len(days))
	}
	if !days[0].UVIndexMax.Valid || days[0].UVIndexMax.Float64 != 6.5 {
		t.Errorf("day 0 uv max = %+v, want 6.5", days[0].UVIndexMax)
	}
	if days[1].UVIndexMax.Valid {
		t.Errorf("day 1 uv max should be absent")
	}
	if days[1].SunshineDuration.Float64 != 18000 {
		t.Errorf("day 1 sunshine = %v, want 18000", days[1].SunshineDuration.Float64)
	}
}

func TestAttachReference(t *testing.T) {
	days, _, err := Normalize(&Payload{Hourly: &HourlyArray{
		Time:        []string{"2026-07-01T09:00", "2026-07-01T10:00"},
		Temperature: []*float64{fp(20), fp(22)},
	}}, time.UTC)
	if err != nil {
		t.Fatal(err)
	}
	ref, _, err := Normalize(&Payload{Hourly: &HourlyArray{
		Time:        []string{"2026-07-01T09:00"},
		Temperature: []*float64{fp(12)},
	}}, time.UTC)
	if err != nil {
		t.Fatal(err)
	}

	AttachReference(days, ref)

	if got := days[0].Hours[0].ReferenceTemperature; !got.Valid || got.Float64 != 12 {
		t.Errorf("09h reference = %+v, want 12", got)
	}
	if days[0].Hours[1].ReferenceTemperature.Valid {
		t.Errorf("10h reference should be absent")
	}
}

func TestNormalize_UpperAirReference(t *testing.T) {
	days, _, err := Normalize(&Payload{Hourly: &HourlyArray{
		Time:             []string{"2026-07-01T09:00", "2026-07-01T10:00"},
		Temperature:      []*float64{fp(20), fp(22)},
		UpperTemperature: []*float64{fp(15), nil},
	}}, time.UTC)
	if err != nil {
		t.Fatal(err)
	}
	if got := days[0].Hours[0].ReferenceTemperature; !got.Valid || got.Float64 != 15 {
		t.Errorf("09h reference = %+v, want 15", got)
	}
	if days[0].Hours[1].ReferenceTemperature.Valid {
		t.Errorf("10h reference should be absent")
	}

	ref, _, err := Normalize(&Payload{Hourly: &HourlyArray{
		Time:        []string{"2026-07-01T09:00", "2026-07-01T10:00"},
		Temperature: []*float64{nil, fp(11)},
	}}, time.UTC)
	if err != nil {
		t.Fatal(err)
	}
	AttachReference(days, ref)

	if got := days[0].Hours[0].ReferenceTemperature; got.Float64 != 15 {
		t.Errorf("09h reference = %+v, want the 800 hPa value kept", got)
	}
	if got := days[0].Hours[1].ReferenceTemperature; !got.Valid || got.Float64 != 11 {
		t.Errorf("10h reference = %+v, want the point value 11", got)
	}
}

func TestWindow(t *testing.T) {
	var days []models.DailySeries
	for d := 1; d <= 5; d++ {
		days = append(days, models.DailySeries{Date: time.Date(2026, 7, d, 0, 0, 0, 0, time.UTC)})
	}
	today := time.Date(2026, 7, 2, 15, 30, 0, 0, time.UTC)

	got := Window(days, today, 3)
	if len(got) != 3 {
		t.Fatalf("len = %d, want 3", len(got))
	}
	if got[0].Date.Day() != 2 || got[2].Date.Day() != 4 {
		t.Errorf("window = %v..%v, want 2..4", got[0].Date.Day(), got[2].Date.Day())
	}
}
