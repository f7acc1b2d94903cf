package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/jlaffaye/ftp"
	"github.com/sony/gobreaker"

	"github.com/lox/kitecast/internal/httputil"
	"github.com/lox/kitecast/internal/models"
)

const (
	maxImageBody    = 20 << 20
	breakerCooldown = 30 * time.Second
)

func sourceHealthy(err error) bool {
	return err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

// ImageClient downloads still images over http(s) or ftp. Each named source
// gets its own circuit breaker, so a dead webcam stops being hammered.
// Only failures of the source itself count towards opening it: a fetch
// abandoned by its caller does not.
type ImageClient struct {
	client  *http.Client
	timeout time.Duration

	mu       sync.Mutex
	breakers map[string]*gobreaker.CircuitBreaker
}

func NewImageClient(timeout time.Duration) *ImageClient {
	if timeout <= 0 {
		timeout = httputil.DefaultTimeout
	}
	return &ImageClient{
		client:   httputil.NewClient(timeout),
		timeout:  timeout,
		breakers: make(map[string]*gobreaker.CircuitBreaker),
	}
}

func (c *ImageClient) breaker(name string) *gobreaker.CircuitBreaker {
	c.mu.Lock()
	defer c.mu.Unlock()
	if cb, ok := c.breakers[name]; ok {
		return cb
	}
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Interval:    10 * time.Minute,
		Timeout:     breakerCooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
		IsSuccessful: sourceHealthy,
	})
	c.breakers[name] = cb
	return cb
}

// BreakerState reports the circuit state of a source: closed, half-open or
// open. Sources never fetched report closed.
func (c *ImageClient) BreakerState(name string) string {
	c.mu.Lock()
	cb, ok := c.breakers[name]
	c.mu.Unlock()
	if !ok {
		return gobreaker.StateClosed.String()
	}
	return cb.State().String()
}

// Fetch downloads the image at rawURL. Every failure wraps both
// ErrImageUnavailable and ErrFetchFailed.
func (c *ImageClient) Fetch(ctx context.Context, name, rawURL string) ([]byte, *FetchResult, error) {
	result := &FetchResult{Source: name, Endpoint: rawURL}
	start := time.Now()
	defer func() {
		result.Duration = time.Since(start)
		result.observe()
	}()

	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		result.Error = fmt.Errorf("%s: invalid url %q: %w: %w", name, rawURL, models.ErrImageUnavailable, models.ErrFetchFailed)
		return nil, result, result.Error
	}

	out, err := c.breaker(name).Execute(func() (interface{}, error) {
		switch u.Scheme {
		case "http", "https":
			return c.fetchHTTP(ctx, u, result)
		case "ftp":
			return c.fetchFTP(ctx, u)
		default:
			return nil, fmt.Errorf("unsupported scheme %q", u.Scheme)
		}
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			err = fmt.Errorf("%s: circuit open: %w: %w", name, models.ErrImageUnavailable, models.ErrFetchFailed)
		} else {
			err = fmt.Errorf("%s: %v: %w: %w", name, err, models.ErrImageUnavailable, models.ErrFetchFailed)
		}
		result.Error = err
		return nil, result, err
	}

	data := out.([]byte)
	result.ResponseSize = len(data)
	result.RecordCount = 1
	return data, result, nil
}

func (c *ImageClient) fetchHTTP(ctx context.Context, u *url.URL, result *FetchResult) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", httputil.UserAgent)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	result.HTTPStatus = resp.StatusCode
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("status %d", resp.StatusCode)
	}
	return io.ReadAll(io.LimitReader(resp.Body, maxImageBody))
}

func (c *ImageClient) fetchFTP(ctx context.Context, u *url.URL) ([]byte, error) {
	host := u.Host
	if u.Port() == "" {
		host = net.JoinHostPort(u.Hostname(), "21")
	}

	conn, err := ftp.Dial(host, ftp.DialWithContext(ctx), ftp.DialWithTimeout(c.timeout))
	if err != nil {
		return nil, fmt.Errorf("ftp dial: %w", err)
	}
	defer conn.Quit()

	user, pass := "anonymous", "anonymous"
	if u.User != nil {
		user = u.User.Username()
		if p, ok := u.User.Password(); ok {
			pass = p
		}
	}
	if err := conn.Login(user, pass); err != nil {
		return nil, fmt.Errorf("ftp login: %w", err)
	}

	resp, err := conn.Retr(u.Path)
	if err != nil {
		return nil, fmt.Errorf("ftp retr: %w", err)
	}
	defer resp.Close()

	body, err := io.ReadAll(io.LimitReader(resp, maxImageBody))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	return body, nil
}
