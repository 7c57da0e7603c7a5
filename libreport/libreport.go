// Package libreport is the composition root: one Runner produces one
// monthly report end to end.
//
// Runs for the same (customer, month, ip) tuple must be serialized by
// the caller; archive versioning races otherwise.
package libreport

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/quay/zlog"

	"github.com/perimetron/surface"
	"github.com/perimetron/surface/archive"
	"github.com/perimetron/surface/enricher"
	"github.com/perimetron/surface/enricher/kev"
	"github.com/perimetron/surface/enricher/nvd"
	"github.com/perimetron/surface/evaluator"
	"github.com/perimetron/surface/internal/cvecache"
	"github.com/perimetron/surface/report"
	"github.com/perimetron/surface/shodan"
	"github.com/perimetron/surface/snapstore"
	"github.com/perimetron/surface/trend"
)

var runCounter = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "surface",
	Subsystem: "runner",
	Name:      "runs_total",
	Help:      "Report runs, by outcome.",
}, []string{"outcome"})

// Request identifies one report run.
type Request struct {
	Customer string
	IP       string
	Month    string
	// CompareMonth forces the trend comparison baseline. When empty, the
	// archive's most recent earlier month is used.
	CompareMonth string
}

// Result is what a run produces. Success is false exactly when Error is
// non-empty; a failed run never propagates a panic or error out of
// Generate except for context cancellation.
type Result struct {
	Success    bool                       `json:"success"`
	Error      string                     `json:"error,omitempty"`
	RunID      string                     `json:"run_id"`
	PDFPath    string                     `json:"pdf_path,omitempty"`
	Entry      *archive.Entry             `json:"archive_entry,omitempty"`
	Evaluation *surface.EvaluationResult  `json:"evaluation,omitempty"`
}

// Runner wires the pipeline together.
type Runner struct {
	opts     *Options
	store    *snapstore.Store
	archiver *archive.Archiver
	lookup   *shodan.Client
	enrich   *enricher.Enricher
	cache    *cvecache.Cache
	kevc     *kev.Client
	engine   *evaluator.Engine
}

// New validates the options and builds a Runner.
func New(ctx context.Context, opts *Options) (*Runner, error) {
	ctx = zlog.ContextWithValues(ctx, "component", "libreport/New")
	if err := opts.parse(); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(opts.OutputDir, 0o755); err != nil {
		return nil, fmt.Errorf("libreport: unable to create output directory: %w", err)
	}
	store, err := snapstore.New(opts.SnapshotRoot)
	if err != nil {
		return nil, err
	}
	archiver, err := archive.New(opts.ArchiveRoot)
	if err != nil {
		return nil, err
	}

	r := &Runner{
		opts:     opts,
		store:    store,
		archiver: archiver,
		engine:   evaluator.NewEngine(nil),
	}
	if opts.ShodanKey != "" {
		sopts := []shodan.Option{shodan.WithCache(filepath.Join(filepath.Dir(opts.CachePath), "hosts"), opts.CacheTTL)}
		if opts.Client != nil {
			sopts = append(sopts, shodan.WithHTTPClient(opts.Client))
		}
		r.lookup, err = shodan.NewClient(opts.ShodanKey, sopts...)
		if err != nil {
			return nil, err
		}
	}
	if opts.NVDLive {
		r.cache, err = cvecache.Open(ctx, opts.CachePath)
		if err != nil {
			// The cache is advisory; run uncached rather than failing.
			zlog.Warn(ctx).Err(err).Msg("detail cache unavailable, lookups go upstream")
			r.cache = nil
		}
		var nopts []nvd.Option
		if opts.Client != nil {
			nopts = append(nopts, nvd.WithHTTPClient(opts.Client))
		}
		r.enrich = enricher.New(nvd.NewClient(opts.NVDKey, nopts...), r.cache)
	} else {
		r.enrich = enricher.New(nil, nil)
	}
	if opts.FetchKEV {
		var kopts []kev.Option
		if opts.Client != nil {
			kopts = append(kopts, kev.WithHTTPClient(opts.Client))
		}
		r.kevc = kev.NewClient(kopts...)
	}
	zlog.Info(ctx).Msg("runner initialized")
	return r, nil
}

// Close releases held resources.
func (r *Runner) Close() error {
	if r.cache != nil {
		return r.cache.Close()
	}
	return nil
}

// Generate produces one report. Everything below the pipeline is caught:
// the returned Result carries the failure text instead. Only context
// cancellation propagates as an error.
func (r *Runner) Generate(ctx context.Context, req Request) (*Result, error) {
	runID := uuid.New().String()
	ctx = zlog.ContextWithValues(ctx,
		"component", "libreport/Runner.Generate",
		"run_id", runID,
		"ip", req.IP,
		"month", req.Month,
	)
	res, err := r.generate(ctx, req, runID)
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		runCounter.WithLabelValues("interrupted").Inc()
		return nil, err
	case err != nil:
		zlog.Error(ctx).Err(err).Msg("report run failed")
		runCounter.WithLabelValues("failure").Inc()
		return &Result{Success: false, Error: err.Error(), RunID: runID}, nil
	}
	runCounter.WithLabelValues("success").Inc()
	return res, nil
}

func (r *Runner) generate(ctx context.Context, req Request, runID string) (*Result, error) {
	if req.Customer == "" {
		return nil, fmt.Errorf("libreport: customer name is required")
	}
	if !archive.ValidMonth(req.Month) {
		return nil, fmt.Errorf("%w: %q", archive.ErrBadMonth, req.Month)
	}
	if req.CompareMonth != "" && !archive.ValidMonth(req.CompareMonth) {
		return nil, fmt.Errorf("%w: %q", archive.ErrBadMonth, req.CompareMonth)
	}
	ip := net.ParseIP(req.IP)
	if ip == nil || ip.To4() == nil {
		return nil, fmt.Errorf("libreport: %q is not an IPv4 address", req.IP)
	}

	snap, err := r.snapshot(ctx, req)
	if err != nil {
		return nil, err
	}

	cves := r.enrichCVEs(ctx, snap)
	eval, services, err := r.engine.Evaluate(ctx, snap)
	if err != nil {
		return nil, err
	}

	tr := r.trend(ctx, req, snap)

	doc := report.Prepare(req.Customer, req.Month, snap, eval, services, cves, tr)
	pdf, err := r.opts.Renderer.Render(ctx, doc)
	if err != nil {
		return nil, fmt.Errorf("libreport: rendering failed: %w", err)
	}
	pdfPath := filepath.Join(r.opts.OutputDir, fmt.Sprintf("%s_%s.pdf", req.Month, snap.IP))
	if err := os.WriteFile(pdfPath, pdf, 0o644); err != nil {
		return nil, fmt.Errorf("libreport: unable to write report: %w", err)
	}
	report.WriteSidecar(ctx, pdfPath, doc, eval)

	res := &Result{
		Success:    true,
		RunID:      runID,
		PDFPath:    pdfPath,
		Evaluation: eval,
	}
	if !r.opts.DisableArchive {
		entry, err := r.archiver.Archive(ctx, pdfPath, req.Customer, req.Month, snap.IP, map[string]string{"run_id": runID})
		if err != nil {
			// The rendered PDF stays in place; only the archive step
			// failed.
			return nil, fmt.Errorf("libreport: archiving failed (report kept at %s): %w", pdfPath, err)
		}
		res.Entry = entry
	}
	return res, nil
}

// snapshot fetches a fresh host record when a lookup client is
// configured, falling back to the stored snapshot; offline runs go
// straight to the store.
func (r *Runner) snapshot(ctx context.Context, req Request) (*surface.AssetSnapshot, error) {
	if r.lookup != nil {
		snap, _, err := r.lookup.Host(ctx, req.IP)
		if err == nil {
			if _, err := r.store.Save(ctx, snap, req.Customer, req.Month); err != nil {
				return nil, err
			}
			return snap, nil
		}
		if errors.Is(err, context.Canceled) {
			return nil, err
		}
		zlog.Warn(ctx).Err(err).Msg("host lookup failed, trying stored snapshot")
	}
	snap, err := r.store.Load(ctx, req.Customer, req.Month)
	if err != nil {
		if errors.Is(err, snapstore.ErrNotFound) {
			return nil, fmt.Errorf("libreport: no host data available for %s in %s", req.IP, req.Month)
		}
		return nil, err
	}
	return snap, nil
}

// enrichCVEs runs the enrichment pass. Failures degrade to whatever the
// snapshot itself provided.
func (r *Runner) enrichCVEs(ctx context.Context, snap *surface.AssetSnapshot) []surface.CVE {
	var ids []string
	for i := range snap.Services {
		for _, ref := range snap.Services[i].Vulnerabilities {
			ids = append(ids, ref.ID)
		}
	}
	if len(ids) == 0 {
		return nil
	}

	var kevSet kev.Set
	if r.kevc != nil {
		var err error
		kevSet, err = r.kevc.Fetch(ctx)
		if err != nil {
			zlog.Warn(ctx).Err(err).Msg("known-exploited catalogue unavailable")
			kevSet = nil
		}
	}

	opts := enricher.Options{
		LookupNVD: r.opts.NVDLive,
		CacheTTL:  r.opts.CacheTTL,
		KEV:       kevSet,
	}
	if r.opts.NVDRefresh {
		opts.CacheTTL = 0
	}
	if r.opts.NVDProgress {
		opts.Progress = func(done, total int, id string) {
			zlog.Info(ctx).
				Int("done", done).
				Int("total", total).
				Str("cve", id).
				Msg("enriching")
		}
	}
	cves, err := r.enrich.Enrich(ctx, ids, snap, opts)
	if err != nil {
		zlog.Warn(ctx).Err(err).Msg("enrichment failed, continuing with local data")
		return nil
	}
	return cves
}

// trend loads the comparison baseline and computes the month-over-month
// report. Absence of a baseline is not an error.
func (r *Runner) trend(ctx context.Context, req Request, cur *surface.AssetSnapshot) *trend.Report {
	month := req.CompareMonth
	if month == "" {
		prev, err := r.archiver.FindPrevious(ctx, req.Customer, req.Month, cur.IP)
		if err != nil {
			zlog.Warn(ctx).Err(err).Msg("previous report lookup failed")
		}
		if prev != nil {
			month = prev.Month
		}
	}
	var prevSnap *surface.AssetSnapshot
	if month != "" {
		var err error
		prevSnap, err = r.store.Load(ctx, req.Customer, month)
		if err != nil && !errors.Is(err, snapstore.ErrNotFound) {
			zlog.Warn(ctx).Err(err).Str("compare", month).Msg("unable to load comparison snapshot")
		}
	}
	return trend.Compare(prevSnap, cur)
}
