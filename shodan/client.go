package shodan

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/quay/zlog"

	"github.com/perimetron/surface"
	"github.com/perimetron/surface/internal/httputil"
	"github.com/perimetron/surface/pkg/tmp"
)

// DefaultRoot is the default API root for host lookups.
//
//doc:url lookup
const DefaultRoot = `https://api.shodan.io/`

// Client performs host lookups.
//
// The zero value is not usable; construct with NewClient.
type Client struct {
	c    *http.Client
	root *url.URL
	key  string
	// cacheDir, when set, holds raw responses keyed by IP. The cache is
	// advisory and single-writer; a torn or stale file is simply refetched.
	cacheDir string
	cacheTTL time.Duration
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(c *http.Client) Option { return func(cl *Client) { cl.c = c } }

// WithRoot replaces the API root, e.g. for tests.
func WithRoot(root *url.URL) Option { return func(cl *Client) { cl.root = root } }

// WithCache enables the on-disk raw-response cache.
func WithCache(dir string, ttl time.Duration) Option {
	return func(cl *Client) { cl.cacheDir, cl.cacheTTL = dir, ttl }
}

// NewClient returns a Client using the provided API key.
func NewClient(key string, opt ...Option) (*Client, error) {
	if key == "" {
		return nil, fmt.Errorf("shodan: missing API key")
	}
	root, err := url.Parse(DefaultRoot)
	if err != nil {
		panic(fmt.Errorf("programmer error: %w", err))
	}
	cl := &Client{
		c:    httputil.NewClient(0),
		root: root,
		key:  key,
	}
	for _, o := range opt {
		o(cl)
	}
	return cl, nil
}

// Host fetches the host record for ip and returns the parsed snapshot
// along with the raw response bytes.
func (cl *Client) Host(ctx context.Context, ip string) (*surface.AssetSnapshot, []byte, error) {
	ctx = zlog.ContextWithValues(ctx, "component", "shodan/Client.Host", "ip", ip)

	if raw, ok := cl.cached(ctx, ip); ok {
		snap, err := Parse(ctx, raw)
		if err == nil {
			zlog.Debug(ctx).Msg("host record served from cache")
			return snap, raw, nil
		}
		zlog.Warn(ctx).Err(err).Msg("ignoring malformed cache entry")
	}

	u, err := cl.root.Parse("shodan/host/" + url.PathEscape(ip))
	if err != nil {
		return nil, nil, fmt.Errorf("shodan: bad URL: %w", err)
	}
	q := u.Query()
	q.Set("key", cl.key)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, nil, fmt.Errorf("shodan: unable to create request: %w", err)
	}
	res, err := cl.c.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("shodan: host lookup: %w", err)
	}
	defer res.Body.Close()
	if err := httputil.CheckResponse(res, http.StatusOK); err != nil {
		return nil, nil, fmt.Errorf("shodan: host lookup: %w", err)
	}
	raw, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, nil, fmt.Errorf("shodan: reading response: %w", err)
	}

	snap, err := Parse(ctx, raw)
	if err != nil {
		return nil, nil, err
	}
	cl.store(ctx, ip, raw)
	return snap, raw, nil
}

func (cl *Client) cachePath(ip string) string {
	return filepath.Join(cl.cacheDir, ip+".json")
}

func (cl *Client) cached(ctx context.Context, ip string) ([]byte, bool) {
	if cl.cacheDir == "" || cl.cacheTTL <= 0 {
		return nil, false
	}
	p := cl.cachePath(ip)
	fi, err := os.Stat(p)
	if err != nil || time.Since(fi.ModTime()) > cl.cacheTTL {
		return nil, false
	}
	raw, err := os.ReadFile(p)
	if err != nil {
		return nil, false
	}
	return raw, true
}

// store writes the raw response into the cache. Failures only cost the
// next run a refetch, so they are logged and swallowed.
func (cl *Client) store(ctx context.Context, ip string, raw []byte) {
	if cl.cacheDir == "" {
		return
	}
	if err := os.MkdirAll(cl.cacheDir, 0o755); err != nil {
		zlog.Warn(ctx).Err(err).Msg("unable to create cache directory")
		return
	}
	f, err := tmp.NewFile(cl.cacheDir, "host.")
	if err != nil {
		zlog.Warn(ctx).Err(err).Msg("unable to spool cache entry")
		return
	}
	defer f.Close()
	if _, err := f.Write(raw); err != nil {
		zlog.Warn(ctx).Err(err).Msg("unable to write cache entry")
		return
	}
	if err := os.Rename(f.Name(), cl.cachePath(ip)); err != nil {
		zlog.Warn(ctx).Err(err).Msg("unable to commit cache entry")
	}
}
