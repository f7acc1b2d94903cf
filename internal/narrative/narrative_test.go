package narrative

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lox/kitecast/internal/advisory"
	"github.com/lox/kitecast/internal/models"
	"github.com/lox/kitecast/internal/scoring"
)

type fakeWriter struct {
	text    string
	err     error
	calls   int
	prompts []string
}

func (f *fakeWriter) Write(_ context.Context, _, prompt string) (string, error) {
	f.calls++
	f.prompts = append(f.prompts, prompt)
	return f.text, f.err
}

func testReport() *advisory.Report {
	loc, _ := time.LoadLocation("Europe/Berlin")
	today := time.Date(2026, 7, 14, 0, 0, 0, 0, loc)
	return &advisory.Report{
		ID:       "r1",
		Site:     "Walchensee",
		Policy:   "compact",
		MaxTotal: 12,
		Foehn:    models.FoehnReading{Score: -2, State: models.FoehnStateForScore(-2), Source: models.FoehnSourceDiagram, Valid: true},
		Days: []models.DayScore{
			{
				Date: today, Offset: 0, Total: 6, Tier: scoring.TierMay,
				Factors: []models.FactorResult{
					{Name: scoring.FactorSpeed, Value: sql.NullFloat64{Float64: 18, Valid: true}, Points: 2, Label: "ideal", Status: models.FactorScored},
					{Name: scoring.FactorFoehn, Value: sql.NullFloat64{Float64: -2, Valid: true}, Points: -2, Label: "strong north foehn", Status: models.FactorScored},
					{Name: scoring.FactorGust, Points: 0, Status: models.FactorInsufficient, Reason: "no gusts"},
				},
			},
			{Date: today.AddDate(0, 0, 1), Offset: 1, Total: 9, Tier: scoring.TierGo},
			{Date: today.AddDate(0, 0, 2), Offset: 2, Total: 1, Tier: scoring.TierNoGo},
		},
	}
}

func TestSummary(t *testing.T) {
	got := Summary(testReport())

	assert.Contains(t, got, "Today: Possible (6/12).")
	assert.Contains(t, got, "Helped by wind speed (ideal).")
	assert.Contains(t, got, "Held back by foehn (strong north foehn).")
	assert.Contains(t, got, "Tomorrow: Kiteable (9/12).")
	assert.Contains(t, got, "Thursday: Not recommended (1/12).")
	assert.NotContains(t, got, "gusts")
}

func TestSummary_Empty(t *testing.T) {
	assert.Equal(t, "", Summary(nil))
	assert.Equal(t, "", Summary(&advisory.Report{}))
}

func TestPrompt_OnlyScoredFactors(t *testing.T) {
	got := Prompt(scoring.CompactPolicy(), testReport())

	assert.Contains(t, got, "Spot: Walchensee.")
	assert.Contains(t, got, "wind speed 18.0 km/h: ideal, +2")
	assert.Contains(t, got, "foehn -2: strong north foehn, -2")
	assert.NotContains(t, got, "gusts")
	assert.Contains(t, got, "Foehn now:")
}

func TestNarrator_WithoutWriterUsesSummary(t *testing.T) {
	n := NewNarrator(nil, scoring.CompactPolicy(), time.Hour, nil, nil)
	report := testReport()
	assert.Equal(t, Summary(report), n.Narrate(context.Background(), report))
}

func TestNarrator_CachesByFingerprint(t *testing.T) {
	clock := clockwork.NewFakeClock()
	w := &fakeWriter{text: "Tomorrow looks best."}
	n := NewNarrator(w, scoring.CompactPolicy(), 30*time.Minute, clock, nil)

	first := testReport()
	second := testReport()
	second.ID = "r2"

	require.Equal(t, "Tomorrow looks best.", n.Narrate(context.Background(), first))
	require.Equal(t, "Tomorrow looks best.", n.Narrate(context.Background(), second))
	assert.Equal(t, 1, w.calls, "same content should reuse the cached narrative")

	changed := testReport()
	changed.Days[1].Total = 4
	changed.Days[1].Tier = scoring.TierMay
	n.Narrate(context.Background(), changed)
	assert.Equal(t, 2, w.calls)

	clock.Advance(31 * time.Minute)
	n.Narrate(context.Background(), first)
	assert.Equal(t, 3, w.calls, "expired entry should be regenerated")
}

func TestNarrator_FallsBackOnError(t *testing.T) {
	w := &fakeWriter{err: errors.New("rate limited")}
	n := NewNarrator(w, scoring.CompactPolicy(), time.Hour, nil, nil)
	report := testReport()

	assert.Equal(t, Summary(report), n.Narrate(context.Background(), report))
	assert.Equal(t, 1, w.calls)
}

func TestNewOpenAIWriter_RequiresKey(t *testing.T) {
	_, err := NewOpenAIWriter("", "")
	assert.Error(t, err)

	w, err := NewOpenAIWriter("sk-test", "")
	require.NoError(t, err)
	assert.Equal(t, DefaultModel, w.model)
}
