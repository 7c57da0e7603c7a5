// Package enricher turns bare CVE ids into enriched records, combining
// snapshot evidence with cached external lookups.
package enricher

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/quay/zlog"

	"github.com/perimetron/surface"
	"github.com/perimetron/surface/enricher/kev"
	"github.com/perimetron/surface/enricher/nvd"
	"github.com/perimetron/surface/internal/cvecache"
	"github.com/perimetron/surface/pkg/cpe"
)

var (
	cacheCounter = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "surface",
		Subsystem: "enricher",
		Name:      "cache_total",
		Help:      "Detail cache lookups, by outcome.",
	}, []string{"outcome"})
	fetchErrors = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "surface",
		Subsystem: "enricher",
		Name:      "fetch_errors_total",
		Help:      "External detail lookups that failed and degraded to local data.",
	})
)

// SourceLocal, SourceNVD, and SourceKEV are the provenance tags attached
// to enriched records.
const (
	SourceLocal = "local_snapshot"
	SourceNVD   = "nvd"
	SourceKEV   = "kev"
)

// Detailer fetches one CVE detail record. *nvd.Client implements it.
type Detailer interface {
	CVE(ctx context.Context, id string) (*nvd.Detail, []byte, error)
}

// Options control one enrichment pass.
type Options struct {
	// LookupNVD enables external detail lookups. When false, only
	// snapshot evidence and the KEV set are consulted.
	LookupNVD bool
	// CacheTTL is the maximum age of a usable cache entry; zero disables
	// the cache, so every lookup goes upstream.
	CacheTTL time.Duration
	// KEV, when non-nil, marks contained ids as publicly exploited.
	KEV kev.Set
	// Progress, when non-nil, is called once per requested id.
	Progress func(done, total int, id string)
}

// Enricher enriches CVE ids against a snapshot.
type Enricher struct {
	client Detailer
	cache  *cvecache.Cache
}

// New returns an Enricher. Both the client and the cache may be nil;
// enrichment then degrades to snapshot evidence only.
func New(client Detailer, cache *cvecache.Cache) *Enricher {
	return &Enricher{client: client, cache: cache}
}

// localEvidence is what the snapshot itself knows about one CVE.
type localEvidence struct {
	ports   []int
	maxCVSS float64
	cpes    []string
}

// Enrich produces one enriched record per distinct requested id, in input
// order. External failures never remove locally obtained data; the pass
// is idempotent for the cache TTL window.
func (e *Enricher) Enrich(ctx context.Context, ids []string, snap *surface.AssetSnapshot, opts Options) ([]surface.CVE, error) {
	ctx = zlog.ContextWithValues(ctx, "component", "enricher/Enricher.Enrich")

	local := collectLocal(snap)

	// Dedup while preserving input order.
	seen := make(map[string]struct{}, len(ids))
	ordered := make([]string, 0, len(ids))
	for _, raw := range ids {
		id, ok := surface.CanonicalCVE(raw)
		if !ok {
			zlog.Debug(ctx).Str("id", raw).Msg("skipping malformed CVE id")
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		ordered = append(ordered, id)
	}

	out := make([]surface.CVE, 0, len(ordered))
	for i, id := range ordered {
		if opts.Progress != nil {
			opts.Progress(i+1, len(ordered), id)
		}
		rec := surface.CVE{
			ID:      id,
			Sources: []string{SourceLocal},
		}
		if ev, ok := local[id]; ok {
			rec.CVSS = ev.maxCVSS
			rec.Ports = append(rec.Ports, ev.ports...)
			if label, ok := cpe.ServiceLabel(ev.cpes); ok {
				rec.Service = label
				rec.ServiceIndicator = &surface.ServiceIndicator{
					MatchedBy:  "cpe",
					Confidence: "low",
					Label:      label,
				}
			}
		}
		if opts.LookupNVD {
			e.lookup(ctx, &rec, opts.CacheTTL)
		}
		if opts.KEV != nil && opts.KEV.Has(id) {
			rec.ExploitStatus = surface.ExploitPublic
			rec.AddSource(SourceKEV)
		}
		out = append(out, rec)
	}
	return out, nil
}

// lookup merges external detail into rec: summary only if empty, maximum
// CVSS, service label only if still unset. Any failure leaves rec as-is.
func (e *Enricher) lookup(ctx context.Context, rec *surface.CVE, ttl time.Duration) {
	d := e.detail(ctx, rec.ID, ttl)
	if d == nil {
		return
	}
	if rec.Summary == "" {
		rec.Summary = d.Summary
	}
	if d.CVSS > rec.CVSS {
		rec.CVSS = d.CVSS
	}
	if rec.Service == "" {
		if label, ok := cpe.ServiceLabel(d.CPEs); ok {
			rec.Service = label
			rec.ServiceIndicator = &surface.ServiceIndicator{
				MatchedBy:  "cpe",
				Confidence: "low",
				Label:      label,
			}
		}
	}
	rec.AddSource(SourceNVD)
}

// detail returns the CVE detail from cache or upstream, or nil when
// neither is available.
func (e *Enricher) detail(ctx context.Context, id string, ttl time.Duration) *nvd.Detail {
	if e.cache != nil {
		raw, ok, err := e.cache.Get(ctx, id, ttl)
		switch {
		case err != nil:
			zlog.Warn(ctx).Err(err).Str("cve", id).Msg("cache read failed")
		case ok:
			d, err := nvd.ParseDetail(raw)
			if err == nil {
				cacheCounter.WithLabelValues("hit").Inc()
				return d
			}
			zlog.Warn(ctx).Err(err).Str("cve", id).Msg("ignoring malformed cache entry")
		}
		cacheCounter.WithLabelValues("miss").Inc()
	}
	if e.client == nil {
		return nil
	}
	d, raw, err := e.client.CVE(ctx, id)
	if err != nil {
		if !errors.Is(err, nvd.ErrNotFound) {
			fetchErrors.Inc()
		}
		zlog.Warn(ctx).Err(err).Str("cve", id).Msg("detail lookup failed, using local data only")
		return nil
	}
	if e.cache != nil {
		if err := e.cache.Put(ctx, id, raw); err != nil {
			zlog.Warn(ctx).Err(err).Str("cve", id).Msg("cache write failed")
		}
	}
	return d
}

// collectLocal walks the snapshot's services and gathers per-CVE ports,
// maximum CVSS, and candidate CPEs.
func collectLocal(snap *surface.AssetSnapshot) map[string]*localEvidence {
	m := make(map[string]*localEvidence)
	if snap == nil {
		return m
	}
	for i := range snap.Services {
		svc := &snap.Services[i]
		for _, ref := range svc.Vulnerabilities {
			ev := m[ref.ID]
			if ev == nil {
				ev = &localEvidence{}
				m[ref.ID] = ev
			}
			havePort := false
			for _, p := range ev.ports {
				if p == svc.Port {
					havePort = true
					break
				}
			}
			if !havePort {
				ev.ports = append(ev.ports, svc.Port)
			}
			if ref.CVSS > ev.maxCVSS {
				ev.maxCVSS = ref.CVSS
			}
			ev.cpes = append(ev.cpes, svc.CPEs...)
		}
	}
	return m
}
