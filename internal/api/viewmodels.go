package api

import (
	"fmt"
	"time"

	"github.com/lox/kitecast/internal/advisory"
	"github.com/lox/kitecast/internal/models"
	"github.com/lox/kitecast/internal/narrative"
	"github.com/lox/kitecast/internal/scoring"
)

// IndexData is everything the dashboard template renders.
type IndexData struct {
	Site        string
	GeneratedAt time.Time
	Error       string
	Policy      string
	MaxTotal    int
	Today       *DayView
	Days        []DayView
	Foehn       SignalView
	Pressure    SignalView
	Webcam      SignalView
	Narrative   string
	Sources     []SourceView
	Explanation []string
	Feedback    FeedbackForm
}

type DayView struct {
	Date      time.Time
	Label     string
	Total     int
	MaxTotal  int
	Tier      models.Tier
	TierClass string
	Factors   []FactorView
}

type FactorView struct {
	Name   string
	Title  string
	Value  string
	Points string
	Label  string
	Status models.FactorStatus
	Reason string
	Class  string
}

type SignalView struct {
	Title  string
	Value  string
	Detail string
	Valid  bool
	Reason string
}

type SourceView struct {
	Name string
	URL  string
}

type FeedbackForm struct {
	Saved bool
	Error string
	Date  string
}

var factorTitles = map[string]string{
	scoring.FactorDirection: "Wind direction",
	scoring.FactorSpeed:     "Wind speed",
	scoring.FactorGust:      "Gusts",
	scoring.FactorPrecip:    "Rain chance",
	scoring.FactorCloud:     "Morning cloud",
	scoring.FactorUV:        "UV index",
	scoring.FactorThermal:   "Thermal gradient",
	scoring.FactorFoehn:     "Foehn",
	scoring.FactorWebcam:    "Webcam light",
}

func factorTitle(name string) string {
	if t, ok := factorTitles[name]; ok {
		return t
	}
	return name
}

func tierClass(t models.Tier) string {
	switch t.Name {
	case scoring.TierGo.Name:
		return "tier-go"
	case scoring.TierMay.Name:
		return "tier-maybe"
	default:
		return "tier-nogo"
	}
}

func newDayView(p scoring.Policy, d models.DayScore) DayView {
	view := DayView{
		Date:      d.Date,
		Label:     narrative.DayLabel(d.Offset, d.Date),
		Total:     d.Total,
		MaxTotal:  p.MaxTotal(),
		Tier:      d.Tier,
		TierClass: tierClass(d.Tier),
	}
	for _, f := range d.Factors {
		fv := FactorView{
			Name:   f.Name,
			Title:  factorTitle(f.Name),
			Value:  scoring.FormatValue(p, f),
			Points: fmt.Sprintf("%+d", f.Points),
			Label:  f.Label,
			Status: f.Status,
			Reason: f.Reason,
		}
		switch {
		case f.Status != models.FactorScored:
			fv.Class = "factor-absent"
			fv.Points = "–"
		case f.Points > 0:
			fv.Class = "factor-plus"
		case f.Points < 0:
			fv.Class = "factor-minus"
		default:
			fv.Class = "factor-zero"
		}
		view.Factors = append(view.Factors, fv)
	}
	return view
}

func foehnView(title string, r models.FoehnReading) SignalView {
	v := SignalView{Title: title, Valid: r.Valid, Reason: r.Reason, Detail: r.Detail}
	if r.Valid {
		v.Value = fmt.Sprintf("%s (%+d)", r.Label(), r.Score)
	} else {
		v.Value = "unavailable"
	}
	return v
}

func webcamView(s models.Signal) SignalView {
	v := SignalView{Title: "Webcam brightness", Valid: s.Valid, Reason: s.Reason}
	if s.Valid {
		v.Value = fmt.Sprintf("%.0f / 255", s.Value)
	} else {
		v.Value = "unavailable"
	}
	return v
}

func newIndexData(p scoring.Policy, report *advisory.Report) IndexData {
	data := IndexData{
		Site:        report.Site,
		GeneratedAt: report.ComputedAt,
		Policy:      report.Policy,
		MaxTotal:    report.MaxTotal,
		Foehn:       foehnView("Foehn", report.Foehn),
		Pressure:    foehnView("Pressure differential", report.Pressure),
		Webcam:      webcamView(report.Webcam),
	}
	for _, d := range report.Days {
		data.Days = append(data.Days, newDayView(p, d))
	}
	if len(data.Days) > 0 && report.Days[0].Offset == 0 {
		data.Today = &data.Days[0]
	}
	return data
}

// explanation describes the scoring in plain words for the page footer.
func explanation(p scoring.Policy) []string {
	lines := []string{
		fmt.Sprintf("Each day is scored with the %s policy; the best possible total is %d.", p.Name, p.MaxTotal()),
	}
	for _, tb := range p.Tiers[:len(p.Tiers)-1] {
		lines = append(lines, fmt.Sprintf("%s: %d points or more.", tb.Tier.Label, tb.Min))
	}
	lines = append(lines,
		"Wind, gusts, rain and UV are read over the afternoon; cloud and the thermal gradient over the morning.",
		"Foehn and webcam describe current conditions and only count for today.",
		"Missing data never counts against a day; the factor is shown as unavailable instead.",
	)
	return lines
}

// forecastResponse is the JSON shape of /api/forecast.
type forecastResponse struct {
	ID         string              `json:"id"`
	Site       string              `json:"site"`
	ComputedAt time.Time           `json:"computed_at"`
	Policy     string              `json:"policy"`
	MaxTotal   int                 `json:"max_total"`
	Foehn      models.FoehnReading `json:"foehn"`
	Diagram    models.FoehnReading `json:"diagram"`
	Pressure   models.FoehnReading `json:"pressure"`
	Webcam     models.Signal       `json:"webcam"`
	Days       []dayResponse       `json:"days"`
	Narrative  string              `json:"narrative,omitempty"`
}

type dayResponse struct {
	Date    string           `json:"date"`
	Offset  int              `json:"offset"`
	Total   int              `json:"total"`
	Tier    models.Tier      `json:"tier"`
	Factors []factorResponse `json:"factors"`
}

type factorResponse struct {
	Name   string              `json:"name"`
	Value  *float64            `json:"value"`
	Points int                 `json:"points"`
	Label  string              `json:"label"`
	Status models.FactorStatus `json:"status"`
	Reason string              `json:"reason,omitempty"`
}

func newForecastResponse(report *advisory.Report) forecastResponse {
	resp := forecastResponse{
		ID:         report.ID,
		Site:       report.Site,
		ComputedAt: report.ComputedAt,
		Policy:     report.Policy,
		MaxTotal:   report.MaxTotal,
		Foehn:      report.Foehn,
		Diagram:    report.Diagram,
		Pressure:   report.Pressure,
		Webcam:     report.Webcam,
		Days:       []dayResponse{},
	}
	for _, d := range report.Days {
		dr := dayResponse{
			Date:   d.Date.Format("2006-01-02"),
			Offset: d.Offset,
			Total:  d.Total,
			Tier:   d.Tier,
		}
		for _, f := range d.Factors {
			fr := factorResponse{
				Name:   f.Name,
				Points: f.Points,
				Label:  f.Label,
				Status: f.Status,
				Reason: f.Reason,
			}
			if f.Value.Valid {
				v := f.Value.Float64
				fr.Value = &v
			}
			dr.Factors = append(dr.Factors, fr)
		}
		resp.Days = append(resp.Days, dr)
	}
	return resp
}
