package shodan

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/quay/zlog"
)

func TestClientHost(t *testing.T) {
	ctx := zlog.Test(context.Background(), t)
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if got := r.URL.Query().Get("key"); got != "testkey" {
			t.Errorf("key = %q", got)
		}
		if r.URL.Path != "/shodan/host/198.51.100.7" {
			t.Errorf("path = %q", r.URL.Path)
		}
		w.Write([]byte(`{"ip_str": "198.51.100.7", "data": [{"port": 80, "product": "nginx"}]}`))
	}))
	defer srv.Close()
	root, err := url.Parse(srv.URL + "/")
	if err != nil {
		t.Fatal(err)
	}

	cl, err := NewClient("testkey",
		WithRoot(root),
		WithHTTPClient(srv.Client()),
		WithCache(t.TempDir(), time.Hour))
	if err != nil {
		t.Fatal(err)
	}

	snap, raw, err := cl.Host(ctx, "198.51.100.7")
	if err != nil {
		t.Fatal(err)
	}
	if len(raw) == 0 || snap.IP != "198.51.100.7" || len(snap.Services) != 1 {
		t.Errorf("snap: %+v", snap)
	}

	// Second lookup must come out of the cache.
	if _, _, err := cl.Host(ctx, "198.51.100.7"); err != nil {
		t.Fatal(err)
	}
	if calls != 1 {
		t.Errorf("got %d upstream calls, want 1", calls)
	}
}

func TestClientHostError(t *testing.T) {
	ctx := zlog.Test(context.Background(), t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "no information available", http.StatusNotFound)
	}))
	defer srv.Close()
	root, err := url.Parse(srv.URL + "/")
	if err != nil {
		t.Fatal(err)
	}
	cl, err := NewClient("testkey", WithRoot(root), WithHTTPClient(srv.Client()))
	if err != nil {
		t.Fatal(err)
	}
	if _, _, err := cl.Host(ctx, "198.51.100.7"); err == nil {
		t.Fatal("expected error")
	}
}

func TestNewClientNoKey(t *testing.T) {
	if _, err := NewClient(""); err == nil {
		t.Fatal("expected error")
	}
}
