// Package kev fetches the CISA Known Exploited Vulnerabilities catalogue
// and exposes it as a set of CVE ids.
package kev

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"os"

	"github.com/quay/zlog"

	"github.com/perimetron/surface"
	"github.com/perimetron/surface/internal/httputil"
)

// DefaultFeed is the default place to look for the catalogue.
//
//doc:url feed
const DefaultFeed = `https://www.cisa.gov/sites/default/files/feeds/known_exploited_vulnerabilities.json`

// Set is the membership set of known-exploited CVE ids.
type Set map[string]struct{}

// Has reports whether id (canonicalized) is in the set.
func (s Set) Has(id string) bool {
	id, ok := surface.CanonicalCVE(id)
	if !ok {
		return false
	}
	_, ok = s[id]
	return ok
}

// catalog is the upstream document shape.
type catalog struct {
	Count           int `json:"count"`
	Vulnerabilities []struct {
		CVEID string `json:"cveID"`
	} `json:"vulnerabilities"`
}

// Client fetches the catalogue.
type Client struct {
	c    *http.Client
	feed *url.URL
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(c *http.Client) Option { return func(cl *Client) { cl.c = c } }

// WithFeed replaces the feed URL, e.g. for tests.
func WithFeed(u *url.URL) Option { return func(cl *Client) { cl.feed = u } }

// NewClient returns a Client for the default feed.
func NewClient(opt ...Option) *Client {
	feed, err := url.Parse(DefaultFeed)
	if err != nil {
		panic(fmt.Errorf("programmer error: %w", err))
	}
	cl := &Client{
		c:    httputil.NewClient(0),
		feed: feed,
	}
	for _, o := range opt {
		o(cl)
	}
	return cl
}

// Fetch downloads and parses the catalogue.
func (cl *Client) Fetch(ctx context.Context) (Set, error) {
	ctx = zlog.ContextWithValues(ctx, "component", "enricher/kev/Client.Fetch")
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, cl.feed.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("kev: unable to create request: %w", err)
	}
	res, err := cl.c.Do(req)
	if err != nil {
		return nil, fmt.Errorf("kev: catalogue fetch: %w", err)
	}
	defer res.Body.Close()
	if err := httputil.CheckResponse(res, http.StatusOK); err != nil {
		return nil, fmt.Errorf("kev: catalogue fetch: %w", err)
	}
	s, err := parse(bufio.NewReader(res.Body))
	if err != nil {
		return nil, err
	}
	zlog.Debug(ctx).
		Int("count", len(s)).
		Msg("fetched known-exploited set")
	return s, nil
}

// Load reads a catalogue from a local file, for offline runs and tests.
func Load(path string) (Set, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("kev: unable to open catalogue: %w", err)
	}
	defer f.Close()
	return parse(bufio.NewReader(f))
}

func parse(r *bufio.Reader) (Set, error) {
	var doc catalog
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("kev: malformed catalogue: %w", err)
	}
	s := make(Set, doc.Count)
	for _, v := range doc.Vulnerabilities {
		if id, ok := surface.CanonicalCVE(v.CVEID); ok {
			s[id] = struct{}{}
		}
	}
	return s, nil
}
