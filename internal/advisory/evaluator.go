// Package advisory assembles a multi-day kite advisory from the forecast,
// the live images and the pressure pair.
package advisory

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/errgroup"

	"github.com/lox/kitecast/internal/forecast"
	"github.com/lox/kitecast/internal/ingest"
	"github.com/lox/kitecast/internal/metrics"
	"github.com/lox/kitecast/internal/models"
	"github.com/lox/kitecast/internal/scoring"
	"github.com/lox/kitecast/internal/signals"
	"github.com/lox/kitecast/internal/store"
)

type ForecastSource interface {
	Fetch(ctx context.Context, endpoint string, req ingest.ForecastRequest) (*forecast.Payload, *ingest.FetchResult, error)
}

type ImageSource interface {
	Fetch(ctx context.Context, name, rawURL string) ([]byte, *ingest.FetchResult, error)
}

// ScoreSink receives every computed day score. Optional.
type ScoreSink interface {
	SaveDayScore(evaluationID, policy string, computedAt time.Time, score models.DayScore) error
}

// FetchRecorder keeps an audit row per upstream call. Optional.
type FetchRecorder interface {
	RecordFetchRun(run *store.FetchRun) error
}

const DefaultTimeout = 10 * time.Second

type Config struct {
	Site       models.Site
	Days       int // today plus Days-1 following days
	WebcamURL  string
	DiagramURL string
	Timeout    time.Duration // per source

	Policy        scoring.Policy
	Calibration   signals.DiagramCalibration
	PressureBands signals.PressureBands
	Pressure      *models.PressurePair
}

type Evaluator struct {
	cfg      Config
	loc      *time.Location
	forecast ForecastSource
	images   ImageSource
	clock    clockwork.Clock
	logger   *slog.Logger

	sink     ScoreSink
	recorder FetchRecorder
}

func New(cfg Config, fc ForecastSource, images ImageSource, clock clockwork.Clock, logger *slog.Logger) (*Evaluator, error) {
	loc, err := time.LoadLocation(cfg.Site.Timezone)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", cfg.Site.Timezone, err)
	}
	if cfg.Days <= 0 {
		cfg.Days = 3
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if err := cfg.Policy.Validate(); err != nil {
		return nil, err
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Evaluator{
		cfg:      cfg,
		loc:      loc,
		forecast: fc,
		images:   images,
		clock:    clock,
		logger:   logger.With("component", "advisory"),
	}, nil
}

// SetScoreSink enables storing each day score for feedback correlation.
func (e *Evaluator) SetScoreSink(sink ScoreSink) {
	e.sink = sink
}

// SetFetchRecorder enables the fetch audit trail.
func (e *Evaluator) SetFetchRecorder(r FetchRecorder) {
	e.recorder = r
}

func (e *Evaluator) Config() Config {
	return e.cfg
}

func (e *Evaluator) Location() *time.Location {
	return e.loc
}

// Report is the outcome of one evaluation cycle.
type Report struct {
	ID         string              `json:"id"`
	ComputedAt time.Time           `json:"computed_at"`
	Site       string              `json:"site"`
	Policy     string              `json:"policy"`
	MaxTotal   int                 `json:"max_total"`
	Foehn      models.FoehnReading `json:"foehn"`
	Diagram    models.FoehnReading `json:"diagram"`
	Pressure   models.FoehnReading `json:"pressure"`
	Webcam     models.Signal       `json:"webcam"`
	Days       []models.DayScore   `json:"days"`

	// Hourly timestamps in the forecast that could not be parsed.
	SkippedTimestamps int `json:"skipped_timestamps"`
}

// Today returns the score of the current day, if the forecast covers it.
func (r *Report) Today() (models.DayScore, bool) {
	if len(r.Days) > 0 && r.Days[0].Offset == 0 {
		return r.Days[0], true
	}
	return models.DayScore{}, false
}

// Fingerprint identifies the scored content of the report, ignoring its ID
// and timestamp, so consecutive evaluations with the same outcome match.
func (r *Report) Fingerprint() string {
	h := sha256.New()
	fmt.Fprintf(h, "%s|%s|%d|%s|", r.Site, r.Policy, r.Foehn.Score, r.Foehn.Source)
	for _, d := range r.Days {
		fmt.Fprintf(h, "%s:%d:%s", d.Date.Format("2006-01-02"), d.Total, d.Tier.Name)
		for _, f := range d.Factors {
			fmt.Fprintf(h, ",%s=%d/%s", f.Name, f.Points, f.Status)
		}
		h.Write([]byte{';'})
	}
	return hex.EncodeToString(h.Sum(nil))[:16]
}

type fetched struct {
	payload   *forecast.Payload
	reference *forecast.Payload
	webcam    models.Signal
	diagram   models.FoehnReading
}

// Evaluate runs one cycle. A forecast failure aborts with ErrDataUnavailable;
// every other source failure only makes its signal absent.
func (e *Evaluator) Evaluate(ctx context.Context) (*Report, error) {
	now := e.clock.Now().In(e.loc)
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, e.loc)

	f, err := e.fetchAll(ctx)
	if err != nil {
		metrics.EvaluationsTotal.WithLabelValues("error").Inc()
		if !errors.Is(err, models.ErrDataUnavailable) {
			err = fmt.Errorf("%w: %w", models.ErrDataUnavailable, err)
		}
		return nil, err
	}

	days, skipped, err := forecast.Normalize(f.payload, e.loc)
	if err != nil {
		metrics.EvaluationsTotal.WithLabelValues("error").Inc()
		return nil, err
	}
	if skipped > 0 {
		e.logger.Warn("skipped unparseable forecast timestamps", "count", skipped)
	}

	if f.reference != nil {
		if ref, _, err := forecast.Normalize(f.reference, e.loc); err != nil {
			e.logger.Warn("reference forecast unusable", "error", err)
		} else {
			forecast.AttachReference(days, ref)
		}
	}

	if flags := ingest.Scrub(days); len(flags) > 0 {
		e.logger.Warn("discarded implausible forecast values", "flags", flags)
	}

	window := forecast.Window(days, today, e.cfg.Days)
	if len(window) == 0 {
		metrics.EvaluationsTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("forecast has no days from %s: %w", today.Format("2006-01-02"), models.ErrDataUnavailable)
	}

	pressure := signals.FoehnFromPressure(e.cfg.Pressure, e.cfg.PressureBands)
	foehn := signals.PickFoehn(f.diagram, pressure)

	report := &Report{
		ID:                uuid.NewString(),
		ComputedAt:        now,
		Site:              e.cfg.Site.Name,
		Policy:            e.cfg.Policy.Name,
		MaxTotal:          e.cfg.Policy.MaxTotal(),
		Foehn:             foehn,
		Diagram:           f.diagram,
		Pressure:          pressure,
		Webcam:            f.webcam,
		SkippedTimestamps: skipped,
	}

	for _, d := range window {
		offset := int(math.Round(d.Date.Sub(today).Hours() / 24))
		in := scoring.Input{Day: d, Offset: offset}
		if offset == 0 {
			in.Live = true
			in.Foehn = foehn
			in.Webcam = f.webcam
		}
		score := scoring.ScoreDay(e.cfg.Policy, in)
		report.Days = append(report.Days, score)
		metrics.DayScore.WithLabelValues(strconv.Itoa(offset)).Set(float64(score.Total))

		if e.sink != nil {
			if err := e.sink.SaveDayScore(report.ID, e.cfg.Policy.Name, now, score); err != nil {
				e.logger.Error("store day score", "date", score.Date.Format("2006-01-02"), "error", err)
			}
		}
	}

	setAvailable("webcam", f.webcam.Valid)
	setAvailable("foehn_diagram", f.diagram.Valid)
	setAvailable("foehn_pressure", pressure.Valid)
	metrics.EvaluationsTotal.WithLabelValues("ok").Inc()

	e.logger.Info("evaluation complete",
		"id", report.ID,
		"days", len(report.Days),
		"foehn", foehn.Label(),
		"webcam_valid", f.webcam.Valid,
	)
	return report, nil
}

func setAvailable(signal string, ok bool) {
	v := 0.0
	if ok {
		v = 1
	}
	metrics.SignalAvailable.WithLabelValues(signal).Set(v)
}

// fetchAll queries every source in parallel, each bounded by the configured
// timeout. Only a forecast failure is returned as an error, and only once
// every other fetch has finished on its own.
func (e *Evaluator) fetchAll(ctx context.Context) (*fetched, error) {
	out := &fetched{
		webcam:  models.AbsentSignal("no webcam configured"),
		diagram: models.AbsentFoehn("no foehn diagram configured"),
	}
	site := e.cfg.Site
	var g errgroup.Group

	g.Go(func() error {
		fctx, cancel := context.WithTimeout(ctx, e.cfg.Timeout)
		defer cancel()
		payload, result, err := e.forecast.Fetch(fctx, "forecast", ingest.ForecastRequest{
			Latitude:  site.Latitude,
			Longitude: site.Longitude,
			Hourly:    forecast.HourlyVariables,
			Daily:     forecast.DailyVariables,
			Days:      e.cfg.Days + 1,
			Timezone:  site.Timezone,
		})
		e.record(result)
		if err != nil {
			return fmt.Errorf("forecast: %w", err)
		}
		out.payload = payload
		return nil
	})

	if site.RefLatitude != 0 || site.RefLongitude != 0 {
		g.Go(func() error {
			fctx, cancel := context.WithTimeout(ctx, e.cfg.Timeout)
			defer cancel()
			payload, result, err := e.forecast.Fetch(fctx, "reference", ingest.ForecastRequest{
				Latitude:  site.RefLatitude,
				Longitude: site.RefLongitude,
				Elevation: site.RefElevation,
				Hourly:    forecast.ReferenceHourlyVariables,
				Days:      e.cfg.Days + 1,
				Timezone:  site.Timezone,
			})
			e.record(result)
			if err != nil {
				e.logger.Warn("reference forecast unavailable", "error", err)
				return nil
			}
			out.reference = payload
			return nil
		})
	}

	if e.cfg.WebcamURL != "" {
		g.Go(func() error {
			fctx, cancel := context.WithTimeout(ctx, e.cfg.Timeout)
			defer cancel()
			data, result, err := e.images.Fetch(fctx, "webcam", e.cfg.WebcamURL)
			e.record(result)
			if err != nil {
				e.logger.Warn("webcam unavailable", "error", err)
				out.webcam = models.AbsentSignal(err.Error())
				return nil
			}
			out.webcam = signals.BrightnessSignal(data)
			return nil
		})
	}

	if e.cfg.DiagramURL != "" {
		g.Go(func() error {
			fctx, cancel := context.WithTimeout(ctx, e.cfg.Timeout)
			defer cancel()
			data, result, err := e.images.Fetch(fctx, "diagram", e.cfg.DiagramURL)
			e.record(result)
			if err != nil {
				e.logger.Warn("foehn diagram unavailable", "error", err)
				out.diagram = models.AbsentFoehn(err.Error())
				return nil
			}
			out.diagram = signals.FoehnFromDiagram(data, e.cfg.Calibration)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func (e *Evaluator) record(result *ingest.FetchResult) {
	if e.recorder == nil || result == nil {
		return
	}
	finished := e.clock.Now().UTC()
	run := &store.FetchRun{
		StartedAt:  finished.Add(-result.Duration),
		FinishedAt: sql.NullTime{Time: finished, Valid: true},
		Source:     result.Source,
		Endpoint:   result.Endpoint,
		DurationMS: sql.NullInt64{Int64: result.Duration.Milliseconds(), Valid: true},
		Success:    result.Success(),
	}
	if result.HTTPStatus > 0 {
		run.HTTPStatus = sql.NullInt64{Int64: int64(result.HTTPStatus), Valid: true}
	}
	if result.ResponseSize > 0 {
		run.ResponseSizeBytes = sql.NullInt64{Int64: int64(result.ResponseSize), Valid: true}
	}
	if result.RecordCount > 0 {
		run.RecordsParsed = sql.NullInt64{Int64: int64(result.RecordCount), Valid: true}
	}
	if result.Error != nil {
		run.ErrorMessage = sql.NullString{String: result.Error.Error(), Valid: true}
	}
	if err := e.recorder.RecordFetchRun(run); err != nil {
		e.logger.Error("record fetch run", "source", result.Source, "error", err)
	}
}
