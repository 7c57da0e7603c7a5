package report

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/quay/zlog"

	"github.com/perimetron/surface"
)

// sidecarSample bounds the CVE samples embedded in the sidecar.
const sidecarSample = 10

// Sidecar is the debug metadata written next to a rendered PDF.
type Sidecar struct {
	PDF               string       `json:"pdf"`
	CVECount          int          `json:"cve_count"`
	TotalPorts        int          `json:"total_ports"`
	RiskLevel         string       `json:"risk_level"`
	UniqueCVEsSample  []string     `json:"unique_cves_sample"`
	CVEEnrichedSample []CVERow     `json:"cve_enriched_sample"`
	Services          []ServiceRow `json:"services"`
}

// SidecarPath derives the sidecar path from the PDF path:
// "x/report.pdf" -> "x/report.mdata.json".
func SidecarPath(pdfPath string) string {
	stem := strings.TrimSuffix(pdfPath, filepath.Ext(pdfPath))
	return stem + ".mdata.json"
}

// WriteSidecar writes the debug sidecar next to the PDF. It is
// best-effort: failures are logged, never returned, and must not block
// report delivery.
func WriteSidecar(ctx context.Context, pdfPath string, doc *Document, eval *surface.EvaluationResult) {
	ctx = zlog.ContextWithValues(ctx, "component", "report/WriteSidecar")
	sc := Sidecar{
		PDF:        filepath.Base(pdfPath),
		CVECount:   len(doc.Technical.CVEs),
		TotalPorts: len(doc.Technical.Services),
		RiskLevel:  eval.Risk.String(),
		Services:   doc.Technical.Services,
	}
	for _, c := range doc.Technical.CVEs {
		if len(sc.UniqueCVEsSample) == sidecarSample {
			break
		}
		sc.UniqueCVEsSample = append(sc.UniqueCVEsSample, c.ID)
	}
	for i, c := range doc.Technical.CVEs {
		if i == sidecarSample {
			break
		}
		sc.CVEEnrichedSample = append(sc.CVEEnrichedSample, c)
	}

	raw, err := json.MarshalIndent(&sc, "", "  ")
	if err != nil {
		zlog.Warn(ctx).Err(err).Msg("unable to encode sidecar")
		return
	}
	if err := os.WriteFile(SidecarPath(pdfPath), raw, 0o644); err != nil {
		zlog.Warn(ctx).Err(err).Msg("unable to write sidecar")
	}
}
