package httputil

import (
	"io"
	"net/http"
	"strings"
	"testing"
)

func TestCheckResponse(t *testing.T) {
	mk := func(code int, status, body string) *http.Response {
		return &http.Response{
			StatusCode: code,
			Status:     status,
			Body:       io.NopCloser(strings.NewReader(body)),
		}
	}

	if err := CheckResponse(mk(http.StatusOK, "200 OK", ""), http.StatusOK); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if err := CheckResponse(mk(http.StatusNotFound, "404 Not Found", ""), http.StatusOK, http.StatusNotFound); err != nil {
		t.Errorf("unexpected error: %v", err)
	}

	err := CheckResponse(mk(http.StatusServiceUnavailable, "503 Service Unavailable", "rate limited"), http.StatusOK)
	if err == nil {
		t.Fatal("wanted an error")
	}
	if !strings.Contains(err.Error(), "503") || !strings.Contains(err.Error(), "rate limited") {
		t.Errorf("error lacks status or body excerpt: %v", err)
	}

	err = CheckResponse(mk(http.StatusBadGateway, "502 Bad Gateway", ""), http.StatusOK)
	if err == nil {
		t.Fatal("wanted an error")
	}
	if !strings.Contains(err.Error(), "502") {
		t.Errorf("error lacks status: %v", err)
	}
}
