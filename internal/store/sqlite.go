package store

import (
	"database/sql"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/lox/kitecast/internal/models"
)

const dateLayout = "2006-01-02"

type Store struct {
	db  *sql.DB
	loc *time.Location
}

func New(db *sql.DB, loc *time.Location) *Store {
	if loc == nil {
		loc = time.UTC
	}
	return &Store{db: db, loc: loc}
}

func (s *Store) Ping() error {
	return s.db.Ping()
}

// InsertFeedback appends a feedback row. When the submission carries no score
// the stored score of that date, if any, is attached.
func (s *Store) InsertFeedback(fb *models.Feedback) error {
	if fb.CreatedAt.IsZero() {
		fb.CreatedAt = time.Now().UTC()
	}
	date := fb.Date.Format(dateLayout)

	if !fb.ScoreTotal.Valid {
		if err := s.db.QueryRow(`SELECT total, tier FROM day_scores WHERE date = ?`, date).
			Scan(&fb.ScoreTotal, &fb.ScoreTier); err != nil && err != sql.ErrNoRows {
			return fmt.Errorf("lookup day score: %w", err)
		}
	}

	result, err := s.db.Exec(`
		INSERT INTO feedback (created_at, date, rating, kite_size, board, comment, score_total, score_tier)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, fb.CreatedAt, date, fb.Rating, fb.KiteSize, fb.Board, fb.Comment, fb.ScoreTotal, fb.ScoreTier)
	if err != nil {
		return err
	}
	fb.ID, err = result.LastInsertId()
	return err
}

// ListFeedback returns feedback newest first. A limit of zero returns all rows.
func (s *Store) ListFeedback(limit int) ([]models.Feedback, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.Query(`
		SELECT id, created_at, date, rating, kite_size, board, comment, score_total, score_tier
		FROM feedback
		ORDER BY created_at DESC, id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Feedback
	for rows.Next() {
		var fb models.Feedback
		var date string
		if err := rows.Scan(&fb.ID, &fb.CreatedAt, &date, &fb.Rating, &fb.KiteSize, &fb.Board, &fb.Comment, &fb.ScoreTotal, &fb.ScoreTier); err != nil {
			return nil, err
		}
		fb.Date, err = time.ParseInLocation(dateLayout, date, s.loc)
		if err != nil {
			return nil, fmt.Errorf("parse feedback date %q: %w", date, err)
		}
		out = append(out, fb)
	}
	return out, rows.Err()
}

var feedbackCSVHeader = []string{"created_at", "date", "rating", "kite_size", "board", "comment", "score_total", "score_tier"}

// ExportFeedbackCSV writes all feedback, oldest first, as CSV with a header row.
func (s *Store) ExportFeedbackCSV(w io.Writer) error {
	rows, err := s.db.Query(`
		SELECT created_at, date, rating, kite_size, board, comment, score_total, score_tier
		FROM feedback
		ORDER BY created_at, id
	`)
	if err != nil {
		return err
	}
	defer rows.Close()

	cw := csv.NewWriter(w)
	if err := cw.Write(feedbackCSVHeader); err != nil {
		return err
	}
	for rows.Next() {
		var fb models.Feedback
		var date string
		if err := rows.Scan(&fb.CreatedAt, &date, &fb.Rating, &fb.KiteSize, &fb.Board, &fb.Comment, &fb.ScoreTotal, &fb.ScoreTier); err != nil {
			return err
		}
		record := []string{
			fb.CreatedAt.In(s.loc).Format(time.RFC3339),
			date,
			strconv.Itoa(fb.Rating),
			nullFloat(fb.KiteSize),
			fb.Board.String,
			fb.Comment.String,
			nullInt(fb.ScoreTotal),
			fb.ScoreTier.String,
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	if err := rows.Err(); err != nil {
		return err
	}
	cw.Flush()
	return cw.Error()
}

func nullFloat(v sql.NullFloat64) string {
	if !v.Valid {
		return ""
	}
	return strconv.FormatFloat(v.Float64, 'f', -1, 64)
}

func nullInt(v sql.NullInt64) string {
	if !v.Valid {
		return ""
	}
	return strconv.FormatInt(v.Int64, 10)
}
