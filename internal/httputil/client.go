package httputil

import (
	"net/http"
	"time"
)

const (
	DefaultTimeout = 10 * time.Second
	UserAgent      = "kitecast/1.0 (+https://github.com/lox/kitecast)"
)

// NewClient returns an HTTP client with the given timeout, or DefaultTimeout
// when timeout is zero.
func NewClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &http.Client{
		Timeout: timeout,
	}
}
