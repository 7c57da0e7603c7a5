// Package httputil has shared plumbing for the external lookup clients.
package httputil

import (
	"fmt"
	"io"
	"net/http"
	"time"
)

// DefaultTimeout bounds every external lookup; upstream failures degrade
// the report instead of hanging the run.
const DefaultTimeout = 15 * time.Second

// NewClient returns an http.Client suitable for the lookup services. A
// zero timeout selects DefaultTimeout.
func NewClient(timeout time.Duration) *http.Client {
	if timeout == 0 {
		timeout = DefaultTimeout
	}
	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			MaxIdleConns:        10,
			IdleConnTimeout:     30 * time.Second,
			TLSHandshakeTimeout: 10 * time.Second,
		},
	}
}

// CheckResponse reports an error unless resp carries one of the wanted
// status codes. The error includes an excerpt of the response body when
// one can be read, since lookup services tend to put the reason there.
func CheckResponse(resp *http.Response, want ...int) error {
	for _, code := range want {
		if resp.StatusCode == code {
			return nil
		}
	}
	excerpt, err := io.ReadAll(io.LimitReader(resp.Body, 128))
	if err != nil || len(excerpt) == 0 {
		return fmt.Errorf("unexpected response: %s", resp.Status)
	}
	return fmt.Errorf("unexpected response: %s (%q)", resp.Status, excerpt)
}
