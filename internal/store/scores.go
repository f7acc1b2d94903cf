package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lox/kitecast/internal/models"
)

// StoredScore is the latest evaluation of one date.
type StoredScore struct {
	Date         time.Time
	EvaluationID string
	ComputedAt   time.Time
	Policy       string
	Total        int
	Tier         string
	Factors      []models.FactorResult
}

// SaveDayScore keeps the latest score per date.
func (s *Store) SaveDayScore(evaluationID, policy string, computedAt time.Time, score models.DayScore) error {
	factors, err := json.Marshal(score.Factors)
	if err != nil {
		return fmt.Errorf("marshal factors: %w", err)
	}
	_, err = s.db.Exec(`
		INSERT INTO day_scores (date, evaluation_id, computed_at, policy, total, tier, factors_json)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(date) DO UPDATE SET
			evaluation_id = excluded.evaluation_id,
			computed_at = excluded.computed_at,
			policy = excluded.policy,
			total = excluded.total,
			tier = excluded.tier,
			factors_json = excluded.factors_json
	`, score.Date.Format(dateLayout), evaluationID, computedAt.UTC(), policy, score.Total, score.Tier.Name, string(factors))
	return err
}

// GetDayScore returns the stored score of a date, or nil when there is none.
func (s *Store) GetDayScore(date time.Time) (*StoredScore, error) {
	var st StoredScore
	var day, factors string
	err := s.db.QueryRow(`
		SELECT date, evaluation_id, computed_at, policy, total, tier, factors_json
		FROM day_scores WHERE date = ?
	`, date.Format(dateLayout)).Scan(&day, &st.EvaluationID, &st.ComputedAt, &st.Policy, &st.Total, &st.Tier, &factors)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if st.Date, err = time.ParseInLocation(dateLayout, day, s.loc); err != nil {
		return nil, fmt.Errorf("parse score date %q: %w", day, err)
	}
	if err := json.Unmarshal([]byte(factors), &st.Factors); err != nil {
		return nil, fmt.Errorf("unmarshal factors: %w", err)
	}
	return &st, nil
}
