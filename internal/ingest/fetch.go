package ingest

import (
	"strconv"
	"time"

	"github.com/lox/kitecast/internal/metrics"
)

// FetchResult describes one upstream call for auditing.
type FetchResult struct {
	Source       string
	Endpoint     string
	HTTPStatus   int
	ResponseSize int
	RecordCount  int
	Duration     time.Duration
	Error        error
}

func (r *FetchResult) Success() bool {
	return r.Error == nil
}

// observe records the call in the fetch metrics.
func (r *FetchResult) observe() {
	status := "ok"
	switch {
	case r.Error != nil && r.HTTPStatus > 0:
		status = strconv.Itoa(r.HTTPStatus)
	case r.Error != nil:
		status = "error"
	}
	metrics.FetchesTotal.WithLabelValues(r.Source, status).Inc()
	metrics.FetchLatency.WithLabelValues(r.Source).Observe(r.Duration.Seconds())
}
