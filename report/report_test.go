package report

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/quay/zlog"

	"github.com/perimetron/surface"
	"github.com/perimetron/surface/evaluator"
	"github.com/perimetron/surface/trend"
)

func testArtifacts() (*surface.AssetSnapshot, *surface.EvaluationResult, []evaluator.ServiceResult, []surface.CVE) {
	snap := &surface.AssetSnapshot{
		IP:  "198.51.100.7",
		Org: "Example\x00Org",
		Services: []surface.Service{
			{
				Port:    3306,
				Product: "MySQL Community Server",
				Version: "5.7.33",
				Banner:  "220 5.7.33-0ubuntu0.18.04.1",
			},
		},
	}
	snap.DerivePorts()
	eval := &surface.EvaluationResult{
		IP:            "198.51.100.7",
		Risk:          surface.RiskCritical,
		ExposureScore: 2,
		CriticalPoints: []string{
			"Datenbank MySQL offen aus dem Internet erreichbar (Port 3306)",
			"MySQL 5.7.33 ist End-of-Life (keine Sicherheitsupdates mehr)",
		},
		Recommendations: []string{
			"Datenbankzugriff auf interne Netze beschränken und Transportverschlüsselung erzwingen",
		},
	}
	services := []evaluator.ServiceResult{
		{
			Service: &snap.Services[0],
			Risk:    surface.ServiceRisk{Score: 9, Critical: true, Message: "Datenbank MySQL offen erreichbar (Port 3306)"},
		},
	}
	cves := []surface.CVE{
		{ID: "CVE-2021-2144", CVSS: 9.8, Ports: []int{3306}, Service: "MySQL", ExploitStatus: surface.ExploitPublic},
	}
	return snap, eval, services, cves
}

func TestPrepare(t *testing.T) {
	snap, eval, services, cves := testArtifacts()
	tr := trend.Compare(nil, snap)
	doc := Prepare("ACME GmbH", "2026-08", snap, eval, services, cves, tr)

	if doc.Customer != "ACME GmbH" || doc.Month != "2026-08" || doc.IP != "198.51.100.7" {
		t.Errorf("header: %+v", doc)
	}
	m := doc.Management
	if m.Risk != surface.RiskCritical || m.CriticalCount != 2 || m.CVECount != 1 {
		t.Errorf("management: %+v", m)
	}
	if !strings.Contains(m.Summary, "CRITICAL") || !strings.Contains(m.Summary, "2 sicherheitsrelevante Befunde") {
		t.Errorf("summary: %q", m.Summary)
	}
	if len(doc.Trend.Rows) != len(trend.Categories) {
		t.Errorf("trend rows: %d", len(doc.Trend.Rows))
	}
	if doc.Recommendations == nil || len(doc.Recommendations.Items) != 1 {
		t.Errorf("recommendations: %+v", doc.Recommendations)
	}
}

func TestPrepareTechnicalSanitizes(t *testing.T) {
	snap, _, services, cves := testArtifacts()
	tech := PrepareTechnical(snap, services, cves)

	if tech.Host.Org != "Example Org" {
		t.Errorf("org not sanitized: %q", tech.Host.Org)
	}
	row := tech.Services[0]
	if row.Product != "MySQL" {
		t.Errorf("product not labeled: %q", row.Product)
	}
	if strings.HasPrefix(row.Banner, "220 ") {
		t.Errorf("status prefix survived: %q", row.Banner)
	}
	if tech.CVEs[0].ExploitStatus != "public" {
		t.Errorf("exploit status: %q", tech.CVEs[0].ExploitStatus)
	}
}

func TestPrepareManagementCapsFindings(t *testing.T) {
	snap, eval, _, _ := testArtifacts()
	eval.CriticalPoints = nil
	for i := 0; i < 10; i++ {
		eval.CriticalPoints = append(eval.CriticalPoints, strings.Repeat("x", i+1))
	}
	m := PrepareManagement(snap, eval, nil)
	if len(m.KeyFindings) != maxManagementPoints {
		t.Errorf("got %d findings, want %d", len(m.KeyFindings), maxManagementPoints)
	}
	if m.CriticalCount != 10 {
		t.Errorf("critical count = %d, want full 10", m.CriticalCount)
	}
}

func TestPrepareTrendNil(t *testing.T) {
	if got := PrepareTrend(nil); got != nil {
		t.Errorf("got %+v, want nil", got)
	}
}

func TestSidecarPath(t *testing.T) {
	tt := []struct{ In, Want string }{
		{"out/2026-08_198.51.100.7.pdf", "out/2026-08_198.51.100.7.mdata.json"},
		{"report.pdf", "report.mdata.json"},
	}
	for _, tc := range tt {
		if got := SidecarPath(tc.In); got != tc.Want {
			t.Errorf("SidecarPath(%q) = %q, want %q", tc.In, got, tc.Want)
		}
	}
}

func TestWriteSidecar(t *testing.T) {
	ctx := zlog.Test(context.Background(), t)
	snap, eval, services, cves := testArtifacts()
	doc := Prepare("ACME GmbH", "2026-08", snap, eval, services, cves, nil)

	pdf := filepath.Join(t.TempDir(), "2026-08_198.51.100.7.pdf")
	WriteSidecar(ctx, pdf, doc, eval)

	raw, err := os.ReadFile(SidecarPath(pdf))
	if err != nil {
		t.Fatal(err)
	}
	var sc Sidecar
	if err := json.Unmarshal(raw, &sc); err != nil {
		t.Fatal(err)
	}
	if sc.PDF != "2026-08_198.51.100.7.pdf" || sc.RiskLevel != "CRITICAL" || sc.CVECount != 1 {
		t.Errorf("sidecar: %+v", sc)
	}
	if !cmp.Equal(sc.UniqueCVEsSample, []string{"CVE-2021-2144"}) {
		t.Errorf("sample: %v", sc.UniqueCVEsSample)
	}
}
