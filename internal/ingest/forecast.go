package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/lox/kitecast/internal/forecast"
	"github.com/lox/kitecast/internal/httputil"
	"github.com/lox/kitecast/internal/models"
)

const DefaultForecastURL = "https://api.open-meteo.com/v1/forecast"

const maxForecastBody = 8 << 20

// ForecastRequest selects the point and variables of one forecast call.
type ForecastRequest struct {
	Latitude  float64
	Longitude float64
	Elevation float64 // metres; zero lets the provider pick the terrain height
	Hourly    []string
	Daily     []string
	Days      int
	Timezone  string
}

type ForecastClient struct {
	baseURL string
	client  *http.Client

	retries      uint64
	initialDelay time.Duration
}

func NewForecastClient(baseURL string, timeout time.Duration) *ForecastClient {
	if baseURL == "" {
		baseURL = DefaultForecastURL
	}
	return &ForecastClient{
		baseURL:      baseURL,
		client:       httputil.NewClient(timeout),
		initialDelay: 500 * time.Millisecond,
	}
}

// SetRetries enables retrying rate-limited (HTTP 429) responses. Other
// failures are never retried. The default is no retries.
func (f *ForecastClient) SetRetries(n int, initial time.Duration) {
	if n < 0 {
		n = 0
	}
	f.retries = uint64(n)
	if initial > 0 {
		f.initialDelay = initial
	}
}

func (f *ForecastClient) buildURL(req ForecastRequest) string {
	v := url.Values{}
	v.Set("latitude", strconv.FormatFloat(req.Latitude, 'f', -1, 64))
	v.Set("longitude", strconv.FormatFloat(req.Longitude, 'f', -1, 64))
	if req.Elevation != 0 {
		v.Set("elevation", strconv.FormatFloat(req.Elevation, 'f', -1, 64))
	}
	if len(req.Hourly) > 0 {
		v.Set("hourly", strings.Join(req.Hourly, ","))
	}
	if len(req.Daily) > 0 {
		v.Set("daily", strings.Join(req.Daily, ","))
	}
	if req.Days > 0 {
		v.Set("forecast_days", strconv.Itoa(req.Days))
	}
	if req.Timezone != "" {
		v.Set("timezone", req.Timezone)
	}
	return f.baseURL + "?" + v.Encode()
}

var errRateLimited = errors.New("rate limited")

// Fetch requests the forecast. Transport failures wrap ErrFetchFailed; a
// non-2xx status or an unparseable body wraps ErrDataUnavailable.
func (f *ForecastClient) Fetch(ctx context.Context, endpoint string, req ForecastRequest) (*forecast.Payload, *FetchResult, error) {
	result := &FetchResult{Source: "open-meteo", Endpoint: endpoint}
	start := time.Now()
	defer func() {
		result.Duration = time.Since(start)
		result.observe()
	}()

	u := f.buildURL(req)
	var body []byte
	operation := func() error {
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("build request: %w", err))
		}
		httpReq.Header.Set("User-Agent", httputil.UserAgent)
		httpReq.Header.Set("Accept", "application/json")

		resp, err := f.client.Do(httpReq)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("fetch forecast: %v: %w", err, models.ErrFetchFailed))
		}
		defer resp.Body.Close()

		result.HTTPStatus = resp.StatusCode
		if resp.StatusCode == http.StatusTooManyRequests {
			return fmt.Errorf("fetch forecast: status %d: %w: %w", resp.StatusCode, errRateLimited, models.ErrDataUnavailable)
		}
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
			return backoff.Permanent(fmt.Errorf("fetch forecast: status %d: %s: %w", resp.StatusCode, providerReason(b), models.ErrDataUnavailable))
		}

		body, err = io.ReadAll(io.LimitReader(resp.Body, maxForecastBody))
		if err != nil {
			return backoff.Permanent(fmt.Errorf("read body: %v: %w", err, models.ErrFetchFailed))
		}
		return nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = f.initialDelay
	bo.MaxElapsedTime = 0
	if err := backoff.Retry(operation, backoff.WithContext(backoff.WithMaxRetries(bo, f.retries), ctx)); err != nil {
		if ctx.Err() != nil && !errors.Is(err, models.ErrDataUnavailable) && !errors.Is(err, models.ErrFetchFailed) {
			err = fmt.Errorf("fetch forecast: %v: %w", ctx.Err(), models.ErrFetchFailed)
		}
		result.Error = err
		return nil, result, err
	}
	result.ResponseSize = len(body)

	var payload forecast.Payload
	if err := json.Unmarshal(body, &payload); err != nil {
		result.Error = fmt.Errorf("unmarshal forecast: %v: %w", err, models.ErrDataUnavailable)
		return nil, result, result.Error
	}
	if payload.Hourly != nil {
		result.RecordCount = len(payload.Hourly.Time)
	}

	return &payload, result, nil
}

// providerReason extracts Open-Meteo's {"error":true,"reason":"..."} message.
func providerReason(body []byte) string {
	var e struct {
		Reason string `json:"reason"`
	}
	if err := json.Unmarshal(body, &e); err == nil && e.Reason != "" {
		return e.Reason
	}
	if len(body) == 0 {
		return "empty body"
	}
	return strings.TrimSpace(string(body))
}
