// Package api serves the kite advisory dashboard, its JSON form, the share
// banner and the session feedback endpoints.
package api

import (
	"context"
	"errors"
	"html/template"
	"log/slog"
	"net/http"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/lox/kitecast/internal/advisory"
	"github.com/lox/kitecast/internal/imagegen"
	"github.com/lox/kitecast/internal/narrative"
	"github.com/lox/kitecast/internal/scoring"
	"github.com/lox/kitecast/internal/store"
)

// Evaluator produces a fresh report for every request.
type Evaluator interface {
	Evaluate(ctx context.Context) (*advisory.Report, error)
}

// CircuitReporter exposes the circuit breaker state of the image sources.
type CircuitReporter interface {
	BreakerState(name string) string
}

type Config struct {
	Addr      string
	Location  *time.Location
	Policy    scoring.Policy
	Sources   []SourceView
	BannerTTL time.Duration
	Narrator  *narrative.Narrator
	Clock     clockwork.Clock
	Circuits  CircuitReporter
}

type Server struct {
	store     *store.Store
	evaluator Evaluator
	narrator  *narrative.Narrator
	policy    scoring.Policy
	addr      string
	loc       *time.Location
	tmpl      *template.Template
	banners   *imagegen.BannerCache
	validate  *validator.Validate
	sources   []SourceView
	circuits  CircuitReporter
	clock     clockwork.Clock
	logger    *slog.Logger
}

func NewServer(st *store.Store, ev Evaluator, cfg Config, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	if cfg.BannerTTL <= 0 {
		cfg.BannerTTL = 10 * time.Minute
	}
	if cfg.Narrator == nil {
		cfg.Narrator = narrative.NewNarrator(nil, cfg.Policy, time.Hour, cfg.Clock, logger)
	}

	validate := validator.New(validator.WithRequiredStructEnabled())
	validate.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})

	return &Server{
		store:     st,
		evaluator: ev,
		narrator:  cfg.Narrator,
		policy:    cfg.Policy,
		addr:      cfg.Addr,
		loc:       cfg.Location,
		tmpl:      newTemplates(),
		banners:   imagegen.NewBannerCache(cfg.BannerTTL, cfg.Clock),
		validate:  validate,
		sources:   cfg.Sources,
		circuits:  cfg.Circuits,
		clock:     cfg.Clock,
		logger:    logger.With("component", "api"),
	}
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.HandleFunc("GET /api/forecast", s.handleAPIForecast)
	mux.HandleFunc("POST /feedback", s.handleFeedback)
	mux.HandleFunc("GET /feedback.csv", s.handleFeedbackCSV)
	mux.HandleFunc("GET /banner.png", s.handleBanner)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.Handle("GET /metrics", promhttp.Handler())
	return mux
}

func (s *Server) Run(ctx context.Context) error {
	server := &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("shutdown", "error", err)
		}
	}()

	s.logger.Info("listening", "addr", s.addr)
	if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
