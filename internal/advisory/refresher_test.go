package advisory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRefresher_RunsImmediately(t *testing.T) {
	fc := &fakeForecast{main: payload(morning, 4, 18, 180, 20)}
	sink := &memorySink{}

	e := newEvaluator(t, testConfig(), fc, &fakeImages{})
	e.SetScoreSink(sink)

	r := NewRefresher(e, time.Hour, nil)
	require.NoError(t, r.Start())
	defer r.Stop()

	require.Eventually(t, func() bool {
		sink.mu.Lock()
		defer sink.mu.Unlock()
		return len(sink.scores) == 3
	}, 5*time.Second, 10*time.Millisecond)
}

func TestReportFingerprint(t *testing.T) {
	fc := &fakeForecast{main: payload(morning, 4, 18, 180, 20)}
	e := newEvaluator(t, testConfig(), fc, &fakeImages{})

	first, err := e.Evaluate(context.Background())
	require.NoError(t, err)
	second, err := e.Evaluate(context.Background())
	require.NoError(t, err)

	assert.NotEqual(t, first.ID, second.ID)
	assert.Equal(t, first.Fingerprint(), second.Fingerprint(), "same inputs should fingerprint the same")
	assert.Len(t, first.Fingerprint(), 16)

	fc.main = payload(morning, 4, 4, 90, 20)
	third, err := e.Evaluate(context.Background())
	require.NoError(t, err)
	assert.NotEqual(t, first.Fingerprint(), third.Fingerprint())
}
