package store

import (
	"database/sql"
	"time"
)

// FetchRun is one upstream call, kept for auditing source health.
type FetchRun struct {
	ID                int64
	StartedAt         time.Time
	FinishedAt        sql.NullTime
	Source            string // "open-meteo", "webcam", "diagram"
	Endpoint          string
	HTTPStatus        sql.NullInt64
	ResponseSizeBytes sql.NullInt64
	RecordsParsed     sql.NullInt64
	DurationMS        sql.NullInt64
	Success           bool
	ErrorMessage      sql.NullString
}

// RecordFetchRun stores a finished run.
func (s *Store) RecordFetchRun(run *FetchRun) error {
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now().UTC()
	}
	if !run.FinishedAt.Valid {
		run.FinishedAt = sql.NullTime{Time: time.Now().UTC(), Valid: true}
	}

	result, err := s.db.Exec(`
		INSERT INTO fetch_runs (started_at, finished_at, source, endpoint, http_status, response_size_bytes, records_parsed, duration_ms, success, error_message)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, run.StartedAt, run.FinishedAt, run.Source, run.Endpoint, run.HTTPStatus, run.ResponseSizeBytes,
		run.RecordsParsed, run.DurationMS, run.Success, run.ErrorMessage)
	if err != nil {
		return err
	}
	run.ID, err = result.LastInsertId()
	return err
}

// FetchHealthSummary is the per-day success count of one source.
type FetchHealthSummary struct {
	Date        string
	Source      string
	Endpoint    string
	TotalRuns   int
	SuccessRuns int
	FailedRuns  int
}

// GetFetchHealth returns fetch summaries for the last N days.
func (s *Store) GetFetchHealth(days int) ([]FetchHealthSummary, error) {
	rows, err := s.db.Query(`
		SELECT
			DATE(SUBSTR(started_at, 1, 19)) as date,
			source,
			endpoint,
			COUNT(*) as total_runs,
			SUM(CASE WHEN success THEN 1 ELSE 0 END) as success_runs,
			SUM(CASE WHEN NOT success THEN 1 ELSE 0 END) as failed_runs
		FROM fetch_runs
		WHERE SUBSTR(started_at, 1, 19) > datetime('now', '-' || ? || ' days')
		GROUP BY date, source, endpoint
		ORDER BY date DESC, source, endpoint
	`, days)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []FetchHealthSummary
	for rows.Next() {
		var h FetchHealthSummary
		if err := rows.Scan(&h.Date, &h.Source, &h.Endpoint, &h.TotalRuns, &h.SuccessRuns, &h.FailedRuns); err != nil {
			return nil, err
		}
		results = append(results, h)
	}
	return results, rows.Err()
}

// GetRecentFetchErrors returns recent failed runs, newest first.
func (s *Store) GetRecentFetchErrors(limit int) ([]FetchRun, error) {
	rows, err := s.db.Query(`
		SELECT id, started_at, finished_at, source, endpoint, http_status, response_size_bytes,
			   records_parsed, duration_ms, success, error_message
		FROM fetch_runs
		WHERE success = FALSE
		ORDER BY started_at DESC, id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []FetchRun
	for rows.Next() {
		var r FetchRun
		if err := rows.Scan(&r.ID, &r.StartedAt, &r.FinishedAt, &r.Source, &r.Endpoint, &r.HTTPStatus,
			&r.ResponseSizeBytes, &r.RecordsParsed, &r.DurationMS, &r.Success, &r.ErrorMessage); err != nil {
			return nil, err
		}
		results = append(results, r)
	}
	return results, rows.Err()
}
