// Package report shapes evaluation output into the view-models consumed
// by the PDF renderer. All transforms here are pure; rendering itself is
// a collaborator behind the Renderer interface.
package report

import (
	"fmt"
	"strings"

	"github.com/perimetron/surface"
	"github.com/perimetron/surface/evaluator"
	"github.com/perimetron/surface/pkg/sanitize"
	"github.com/perimetron/surface/trend"
)

// maxManagementPoints bounds the summary finding list; the technical
// section carries the full detail.
const maxManagementPoints = 6

// Document is the complete input to a renderer.
type Document struct {
	Customer string `json:"customer"`
	Month    string `json:"month"`
	IP       string `json:"ip"`

	Management      *Management      `json:"management"`
	Technical       *Technical       `json:"technical"`
	Recommendations *Recommendations `json:"recommendations"`
	Trend           *TrendView       `json:"trend,omitempty"`
}

// Management is the leading summary section.
type Management struct {
	Risk          surface.RiskLevel `json:"risk"`
	ExposureScore int               `json:"exposure_score"`
	TotalPorts    int               `json:"total_ports"`
	CriticalCount int               `json:"critical_count"`
	CVECount      int               `json:"cve_count"`
	// KeyFindings are the top deduplicated critical points, sanitized.
	KeyFindings []string `json:"key_findings"`
	Summary     string   `json:"summary"`
}

// ServiceRow is one service in the technical section.
type ServiceRow struct {
	Port      int    `json:"port"`
	Transport string `json:"transport,omitempty"`
	Product   string `json:"product,omitempty"`
	Version   string `json:"version,omitempty"`
	Banner    string `json:"banner,omitempty"`
	Score     int    `json:"risk_score"`
	Critical  bool   `json:"is_critical"`
	Secure    bool   `json:"is_secure"`
	Message   string `json:"message,omitempty"`
}

// CVERow is one enriched CVE in the technical section.
type CVERow struct {
	ID            string  `json:"id"`
	CVSS          float64 `json:"cvss,omitempty"`
	Summary       string  `json:"summary,omitempty"`
	Service       string  `json:"service,omitempty"`
	Ports         []int   `json:"ports,omitempty"`
	ExploitStatus string  `json:"exploit_status"`
}

// Technical is the detail section.
type Technical struct {
	Host     HostInfo     `json:"host"`
	Services []ServiceRow `json:"services"`
	CVEs     []CVERow     `json:"cves,omitempty"`
}

// HostInfo carries the host-level context fields.
type HostInfo struct {
	IP        string   `json:"ip"`
	Hostnames []string `json:"hostnames,omitempty"`
	Org       string   `json:"org,omitempty"`
	ISP       string   `json:"isp,omitempty"`
	OS        string   `json:"os,omitempty"`
	City      string   `json:"city,omitempty"`
	Country   string   `json:"country,omitempty"`
}

// Recommendations is the action section.
type Recommendations struct {
	Items []string `json:"items"`
}

// TrendRow is one rendered trend table line.
type TrendRow struct {
	Category string `json:"category"`
	Previous int    `json:"previous"`
	Current  int    `json:"current"`
	Rating   string `json:"rating"`
}

// TrendView is the month-over-month section.
type TrendView struct {
	Rows           []TrendRow `json:"rows"`
	Interpretation string     `json:"interpretation"`
}

// Prepare assembles the full document from one report run's artifacts.
// tr may be nil when no comparison was requested.
func Prepare(customer, month string, snap *surface.AssetSnapshot, eval *surface.EvaluationResult, services []evaluator.ServiceResult, cves []surface.CVE, tr *trend.Report) *Document {
	return &Document{
		Customer:        sanitize.Text(customer),
		Month:           month,
		IP:              snap.IP,
		Management:      PrepareManagement(snap, eval, cves),
		Technical:       PrepareTechnical(snap, services, cves),
		Recommendations: PrepareRecommendations(eval),
		Trend:           PrepareTrend(tr),
	}
}

// PrepareManagement builds the summary section.
func PrepareManagement(snap *surface.AssetSnapshot, eval *surface.EvaluationResult, cves []surface.CVE) *Management {
	m := &Management{
		Risk:          eval.Risk,
		ExposureScore: eval.ExposureScore,
		TotalPorts:    len(snap.OpenPorts),
		CriticalCount: len(eval.CriticalPoints),
		CVECount:      len(cves),
	}
	for _, p := range eval.CriticalPoints {
		if len(m.KeyFindings) == maxManagementPoints {
			break
		}
		m.KeyFindings = append(m.KeyFindings, sanitize.Text(p))
	}
	m.Summary = managementSummary(m)
	return m
}

func managementSummary(m *Management) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Das Asset exponiert %d Dienste; die Gesamteinstufung ist %s (Exponierungsgrad %d von 5).",
		m.TotalPorts, m.Risk, m.ExposureScore)
	if m.CriticalCount > 0 {
		fmt.Fprintf(&b, " Es wurden %d sicherheitsrelevante Befunde erhoben.", m.CriticalCount)
	} else {
		b.WriteString(" Es wurden keine sicherheitsrelevanten Befunde erhoben.")
	}
	if m.CVECount > 0 {
		fmt.Fprintf(&b, " %d CVE-Referenzen wurden ausgewertet.", m.CVECount)
	}
	return b.String()
}

// PrepareTechnical builds the detail section. Every free-form field
// passes the sanitizer.
func PrepareTechnical(snap *surface.AssetSnapshot, services []evaluator.ServiceResult, cves []surface.CVE) *Technical {
	t := &Technical{
		Host: HostInfo{
			IP:        snap.IP,
			Hostnames: snap.Hostnames,
			Org:       sanitize.Text(snap.Org),
			ISP:       sanitize.Text(snap.ISP),
			OS:        sanitize.Text(snap.OS),
			City:      sanitize.Text(snap.City),
			Country:   sanitize.Text(snap.Country),
		},
	}
	for i := range services {
		sr := &services[i]
		t.Services = append(t.Services, ServiceRow{
			Port:      sr.Service.Port,
			Transport: sr.Service.Transport,
			Product:   sanitize.Product(sr.Service.Product),
			Version:   sanitize.Text(sr.Service.Version),
			Banner:    sanitize.Banner(sr.Service.Banner),
			Score:     sr.Risk.Score,
			Critical:  sr.Risk.Critical,
			Secure:    sr.Secure,
			Message:   sanitize.Text(sr.Risk.Message),
		})
	}
	for i := range cves {
		c := &cves[i]
		t.CVEs = append(t.CVEs, CVERow{
			ID:            c.ID,
			CVSS:          c.CVSS,
			Summary:       sanitize.Truncate(sanitize.Text(c.Summary), sanitize.MaxBanner),
			Service:       sanitize.Text(c.Service),
			Ports:         c.Ports,
			ExploitStatus: c.ExploitStatus.String(),
		})
	}
	return t
}

// PrepareRecommendations builds the action section from the evaluation's
// already-deduplicated recommendations.
func PrepareRecommendations(eval *surface.EvaluationResult) *Recommendations {
	r := &Recommendations{Items: []string{}}
	for _, item := range eval.Recommendations {
		r.Items = append(r.Items, sanitize.Text(item))
	}
	return r
}

// PrepareTrend converts a trend report into render order. A nil input
// yields a nil section.
func PrepareTrend(tr *trend.Report) *TrendView {
	if tr == nil {
		return nil
	}
	v := &TrendView{Interpretation: tr.Interpretation}
	for _, cat := range trend.Categories {
		row := tr.Rows[cat]
		v.Rows = append(v.Rows, TrendRow{
			Category: cat,
			Previous: row.Previous,
			Current:  row.Current,
			Rating:   row.Rating,
		})
	}
	return v
}
