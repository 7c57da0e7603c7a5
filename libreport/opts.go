package libreport

import (
	"fmt"
	"net/http"
	"path/filepath"
	"time"

	"github.com/perimetron/surface/report"
)

// DefaultCacheTTL is how long cached CVE details stay equivalent to a
// fresh fetch.
const DefaultCacheTTL = 7 * 24 * time.Hour

// Options configure a Runner. Environment parsing happens at the CLI
// boundary; everything here is explicit.
type Options struct {
	// ShodanKey enables live host lookups. When empty, runs are served
	// from previously stored snapshots only.
	ShodanKey string
	// NVDKey raises the external lookup rate limit. Optional.
	NVDKey string
	// NVDLive enables external CVE detail enrichment.
	NVDLive bool
	// NVDRefresh bypasses the detail cache for this run.
	NVDRefresh bool
	// NVDProgress reports per-CVE enrichment progress to the log.
	NVDProgress bool
	// FetchKEV enables the known-exploited catalogue lookup.
	FetchKEV bool

	// OutputDir receives rendered PDFs and sidecars.
	OutputDir string
	// SnapshotRoot is the snapshot store directory. Defaults to
	// "<OutputDir>/snapshots".
	SnapshotRoot string
	// ArchiveRoot is the report archive directory. Defaults to
	// "<OutputDir>/archive".
	ArchiveRoot string
	// CachePath is the CVE detail cache database. Defaults to
	// "<OutputDir>/cache/cve.db".
	CachePath string
	// CacheTTL overrides DefaultCacheTTL when positive.
	CacheTTL time.Duration

	// DisableArchive skips the archive step after rendering.
	DisableArchive bool

	// Renderer produces the PDF bytes. Required.
	Renderer report.Renderer
	// Client, when set, replaces the default HTTP client of every
	// external lookup.
	Client *http.Client
}

func (o *Options) parse() error {
	if o.Renderer == nil {
		return fmt.Errorf("libreport: an Options.Renderer is required")
	}
	if o.OutputDir == "" {
		o.OutputDir = "."
	}
	if o.SnapshotRoot == "" {
		o.SnapshotRoot = filepath.Join(o.OutputDir, "snapshots")
	}
	if o.ArchiveRoot == "" {
		o.ArchiveRoot = filepath.Join(o.OutputDir, "archive")
	}
	if o.CachePath == "" {
		o.CachePath = filepath.Join(o.OutputDir, "cache", "cve.db")
	}
	if o.CacheTTL <= 0 {
		o.CacheTTL = DefaultCacheTTL
	}
	return nil
}
