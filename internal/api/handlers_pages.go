package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"sort"
	"time"

	"github.com/lox/kitecast/internal/models"
)

func userMessage(err error) string {
	if errors.Is(err, models.ErrDataUnavailable) {
		return "Forecast data is unavailable right now. Please try again in a few minutes."
	}
	return "Something went wrong while building the forecast."
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	status := http.StatusOK
	var data IndexData

	report, err := s.evaluator.Evaluate(r.Context())
	if err != nil {
		s.logger.Error("evaluate for dashboard", "error", err)
		status = http.StatusServiceUnavailable
		data = IndexData{Error: userMessage(err), GeneratedAt: s.clock.Now().In(s.loc)}
	} else {
		data = newIndexData(s.policy, report)
		data.Narrative = s.narrator.Narrate(r.Context(), report)
		if data.Today != nil {
			data.Feedback.Date = data.Today.Date.Format(dateLayout)
		}
	}
	data.Sources = s.sources
	data.Explanation = explanation(s.policy)
	data.Feedback.Saved = r.URL.Query().Get("feedback") == "saved"

	var buf bytes.Buffer
	if err := s.tmpl.ExecuteTemplate(&buf, "index.html", data); err != nil {
		s.logger.Error("render index", "error", err)
		http.Error(w, "template error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	w.Write(buf.Bytes())
}

type HealthStatus struct {
	Status  string         `json:"status"`
	Sources []SourceHealth `json:"sources"`
	Errors  []string       `json:"errors,omitempty"`
}

type SourceHealth struct {
	Source      string `json:"source"`
	TotalRuns   int    `json:"total_runs"`
	SuccessRuns int    `json:"success_runs"`
	FailedRuns  int    `json:"failed_runs"`
	Circuit     string `json:"circuit,omitempty"`
}

var imageSources = []string{"diagram", "webcam"}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if err := s.store.Ping(); err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(map[string]string{"status": "error", "error": err.Error()})
		return
	}

	health := HealthStatus{Status: "ok", Sources: []SourceHealth{}}

	summaries, err := s.store.GetFetchHealth(1)
	if err != nil {
		health.Errors = append(health.Errors, "fetch health: "+err.Error())
	}
	bySource := make(map[string]*SourceHealth)
	for _, sum := range summaries {
		sh, ok := bySource[sum.Source]
		if !ok {
			sh = &SourceHealth{Source: sum.Source}
			bySource[sum.Source] = sh
		}
		sh.TotalRuns += sum.TotalRuns
		sh.SuccessRuns += sum.SuccessRuns
		sh.FailedRuns += sum.FailedRuns
	}
	if s.circuits != nil {
		for _, name := range imageSources {
			state := s.circuits.BreakerState(name)
			sh, ok := bySource[name]
			if !ok {
				if state == "closed" {
					continue
				}
				sh = &SourceHealth{Source: name}
				bySource[name] = sh
			}
			sh.Circuit = state
			if state == "open" {
				health.Status = "degraded"
			}
		}
	}
	for _, sh := range bySource {
		if sh.TotalRuns > 0 && sh.SuccessRuns == 0 {
			health.Status = "degraded"
		}
		health.Sources = append(health.Sources, *sh)
	}
	sort.Slice(health.Sources, func(i, j int) bool {
		return health.Sources[i].Source < health.Sources[j].Source
	})

	recent, err := s.store.GetRecentFetchErrors(5)
	if err == nil {
		cutoff := s.clock.Now().Add(-time.Hour)
		for _, run := range recent {
			if run.StartedAt.After(cutoff) && run.ErrorMessage.Valid {
				health.Errors = append(health.Errors, run.Source+": "+run.ErrorMessage.String)
			}
		}
	}

	json.NewEncoder(w).Encode(health)
}
