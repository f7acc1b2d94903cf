package api

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/lox/kitecast/internal/metrics"
	"github.com/lox/kitecast/internal/models"
)

const dateLayout = "2006-01-02"

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func (s *Server) handleAPIForecast(w http.ResponseWriter, r *http.Request) {
	report, err := s.evaluator.Evaluate(r.Context())
	if err != nil {
		s.logger.Error("evaluate for api", "error", err)
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": userMessage(err)})
		return
	}
	resp := newForecastResponse(report)
	resp.Narrative = s.narrator.Narrate(r.Context(), report)
	writeJSON(w, http.StatusOK, resp)
}

// feedbackRequest is a post-session rating, from either a form or JSON.
type feedbackRequest struct {
	Date     string   `json:"date" validate:"required,datetime=2006-01-02"`
	Rating   int      `json:"rating" validate:"required,min=1,max=5"`
	KiteSize *float64 `json:"kite_size" validate:"omitempty,gt=0,lte=30"`
	Board    string   `json:"board" validate:"omitempty,max=64"`
	Comment  string   `json:"comment" validate:"omitempty,max=1000"`
}

func isJSON(r *http.Request) bool {
	mt, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return mt == "application/json"
}

func parseFeedbackForm(r *http.Request) (feedbackRequest, error) {
	var req feedbackRequest
	if err := r.ParseForm(); err != nil {
		return req, err
	}
	req.Date = strings.TrimSpace(r.PostForm.Get("date"))
	req.Board = strings.TrimSpace(r.PostForm.Get("board"))
	req.Comment = strings.TrimSpace(r.PostForm.Get("comment"))

	if v := strings.TrimSpace(r.PostForm.Get("rating")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return req, errors.New("rating must be a whole number")
		}
		req.Rating = n
	}
	if v := strings.TrimSpace(r.PostForm.Get("kite_size")); v != "" {
		f, err := strconv.ParseFloat(strings.ReplaceAll(v, ",", "."), 64)
		if err != nil {
			return req, errors.New("kite_size must be a number")
		}
		req.KiteSize = &f
	}
	return req, nil
}

func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		switch fe.Tag() {
		case "required":
			msgs = append(msgs, fe.Field()+" is required")
		case "min", "max", "gt", "lte":
			msgs = append(msgs, fmt.Sprintf("%s is out of range (%s %s)", fe.Field(), fe.Tag(), fe.Param()))
		case "datetime":
			msgs = append(msgs, fe.Field()+" must be a YYYY-MM-DD date")
		default:
			msgs = append(msgs, fe.Field()+" is invalid")
		}
	}
	return strings.Join(msgs, "; ")
}

func (s *Server) handleFeedback(w http.ResponseWriter, r *http.Request) {
	asJSON := isJSON(r)
	fail := func(status int, msg string) {
		if asJSON {
			writeJSON(w, status, map[string]string{"error": msg})
			return
		}
		http.Error(w, msg, status)
	}

	var req feedbackRequest
	var err error
	if asJSON {
		err = json.NewDecoder(http.MaxBytesReader(w, r.Body, 64<<10)).Decode(&req)
	} else {
		r.Body = http.MaxBytesReader(w, r.Body, 64<<10)
		req, err = parseFeedbackForm(r)
	}
	if err != nil {
		fail(http.StatusBadRequest, "invalid feedback: "+err.Error())
		return
	}
	if err := s.validate.Struct(req); err != nil {
		fail(http.StatusBadRequest, validationMessage(err))
		return
	}

	date, err := time.ParseInLocation(dateLayout, req.Date, s.loc)
	if err != nil {
		fail(http.StatusBadRequest, "date must be a YYYY-MM-DD date")
		return
	}

	fb := &models.Feedback{
		CreatedAt: s.clock.Now().UTC(),
		Date:      date,
		Rating:    req.Rating,
	}
	if req.KiteSize != nil {
		fb.KiteSize = sql.NullFloat64{Float64: *req.KiteSize, Valid: true}
	}
	if req.Board != "" {
		fb.Board = sql.NullString{String: req.Board, Valid: true}
	}
	if req.Comment != "" {
		fb.Comment = sql.NullString{String: req.Comment, Valid: true}
	}

	if err := s.store.InsertFeedback(fb); err != nil {
		s.logger.Error("store feedback", "error", err)
		fail(http.StatusInternalServerError, "could not save feedback")
		return
	}
	metrics.FeedbackTotal.Inc()
	s.logger.Info("feedback stored", "id", fb.ID, "date", req.Date, "rating", req.Rating)

	if asJSON {
		writeJSON(w, http.StatusCreated, map[string]any{"id": fb.ID})
		return
	}
	http.Redirect(w, r, "/?feedback=saved#feedback", http.StatusSeeOther)
}

func (s *Server) handleFeedbackCSV(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	if err := s.store.ExportFeedbackCSV(&buf); err != nil {
		s.logger.Error("export feedback", "error", err)
		http.Error(w, "could not export feedback", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="kitecast-feedback.csv"`)
	w.Write(buf.Bytes())
}
