// Package nvd is the client for the upstream CVE detail service.
package nvd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/quay/zlog"
	"golang.org/x/time/rate"

	"github.com/perimetron/surface/internal/httputil"
)

// DefaultRoot is the default API root for CVE detail lookups.
//
//doc:url lookup
const DefaultRoot = `https://services.nvd.nist.gov/rest/json/cves/2.0/`

// ErrNotFound is reported when the service has no record for the id.
var ErrNotFound = errors.New("nvd: CVE not found")

// Documented public rate limits: 5 requests per 30s without a key, 50
// with one.
const (
	anonWindow  = 30 * time.Second / 5
	keyedWindow = 30 * time.Second / 50
)

// Client fetches CVE details, respecting the service's rate limits.
type Client struct {
	c       *http.Client
	root    *url.URL
	key     string
	limiter *rate.Limiter
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(c *http.Client) Option { return func(cl *Client) { cl.c = c } }

// WithRoot replaces the API root, e.g. for tests.
func WithRoot(root *url.URL) Option { return func(cl *Client) { cl.root = root } }

// NewClient returns a Client. The key may be empty; lookups then run at
// the stricter anonymous rate limit.
func NewClient(key string, opt ...Option) *Client {
	root, err := url.Parse(DefaultRoot)
	if err != nil {
		panic(fmt.Errorf("programmer error: %w", err))
	}
	every := anonWindow
	if key != "" {
		every = keyedWindow
	}
	cl := &Client{
		c:       httputil.NewClient(0),
		root:    root,
		key:     key,
		limiter: rate.NewLimiter(rate.Every(every), 1),
	}
	for _, o := range opt {
		o(cl)
	}
	return cl
}

// CVE fetches the detail record for the given id. The raw response bytes
// are returned alongside the distilled detail so callers can cache them.
func (cl *Client) CVE(ctx context.Context, id string) (*Detail, []byte, error) {
	ctx = zlog.ContextWithValues(ctx, "component", "enricher/nvd/Client.CVE", "cve", id)
	if err := cl.limiter.Wait(ctx); err != nil {
		return nil, nil, err
	}

	u := *cl.root
	q := u.Query()
	q.Set("cveId", id)
	u.RawQuery = q.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, nil, fmt.Errorf("nvd: unable to create request: %w", err)
	}
	if cl.key != "" {
		req.Header.Set("apiKey", cl.key)
	}

	res, err := cl.c.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("nvd: detail lookup: %w", err)
	}
	defer res.Body.Close()
	if res.StatusCode == http.StatusNotFound {
		return nil, nil, ErrNotFound
	}
	if err := httputil.CheckResponse(res, http.StatusOK); err != nil {
		return nil, nil, fmt.Errorf("nvd: detail lookup: %w", err)
	}
	raw, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, nil, fmt.Errorf("nvd: reading response: %w", err)
	}
	d, err := ParseDetail(raw)
	if err != nil {
		return nil, nil, err
	}
	zlog.Debug(ctx).
		Float64("cvss", d.CVSS).
		Msg("fetched CVE detail")
	return d, raw, nil
}
