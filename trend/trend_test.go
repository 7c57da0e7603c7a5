package trend

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/perimetron/surface"
)

func snapshotOf(services ...surface.Service) *surface.AssetSnapshot {
	s := &surface.AssetSnapshot{IP: "198.51.100.7", Services: services}
	s.DerivePorts()
	return s
}

func TestCompareFirstSurvey(t *testing.T) {
	cur := snapshotOf(surface.Service{Port: 443})
	r := Compare(nil, cur)
	if r.HasPrevious {
		t.Error("HasPrevious should be false")
	}
	for _, cat := range Categories {
		if got := r.Rows[cat].Rating; got != "erstmalige Erhebung" {
			t.Errorf("%s rating = %q", cat, got)
		}
	}
	if r.Interpretation != "Erste Erhebung für dieses Asset, noch kein Monatsvergleich möglich." {
		t.Errorf("interpretation = %q", r.Interpretation)
	}
}

func TestCompareRatings(t *testing.T) {
	prev := snapshotOf(
		surface.Service{Port: 22},
		surface.Service{Port: 443, SSL: map[string]interface{}{}},
	)
	// One more port, and the new 8443 listener lacks TLS material.
	cur := snapshotOf(
		surface.Service{Port: 22},
		surface.Service{Port: 443, SSL: map[string]interface{}{}},
		surface.Service{Port: 8443},
	)
	r := Compare(prev, cur)
	if !r.HasPrevious {
		t.Fatal("HasPrevious should be true")
	}
	want := map[string]Row{
		CategoryPorts:    {Previous: 2, Current: 3, Rating: "leicht verschlechtert"},
		CategoryCritical: {Previous: 0, Current: 0, Rating: "unverändert"},
		CategoryHighCVE:  {Previous: 0, Current: 0, Rating: "unverändert"},
		CategoryTLS:      {Previous: 0, Current: 1, Rating: "leicht verschlechtert"},
	}
	if !cmp.Equal(r.Rows, want) {
		t.Error(cmp.Diff(r.Rows, want))
	}
	if r.Interpretation != "Die Angriffsfläche hat sich in 2 von 4 Kategorien verschlechtert." {
		t.Errorf("interpretation = %q", r.Interpretation)
	}
}

func TestCompareStable(t *testing.T) {
	snap := snapshotOf(surface.Service{Port: 443, SSL: map[string]interface{}{}})
	r := Compare(snap, snap)
	if r.Rows[CategoryPorts].Rating != "stabil" {
		t.Errorf("ports rating = %q", r.Rows[CategoryPorts].Rating)
	}
	if r.Interpretation != "Die Angriffsfläche ist gegenüber dem Vormonat unverändert." {
		t.Errorf("interpretation = %q", r.Interpretation)
	}
}

func TestCompareImprovement(t *testing.T) {
	prev := snapshotOf(
		surface.Service{Port: 23},
		surface.Service{Port: 3389},
		surface.Service{Port: 5900},
	)
	cur := snapshotOf(surface.Service{Port: 22})
	r := Compare(prev, cur)
	if got := r.Rows[CategoryCritical].Rating; got != "deutlich verbessert" {
		t.Errorf("critical rating = %q", got)
	}
	if got := r.Rows[CategoryPorts].Rating; got != "deutlich verbessert" {
		t.Errorf("ports rating = %q", got)
	}
}

func TestDeriveHighCVEDistinct(t *testing.T) {
	// The same high CVE on two ports counts once.
	snap := snapshotOf(
		surface.Service{Port: 22, Vulnerabilities: []surface.VulnRef{
			{ID: "CVE-2016-6210", CVSS: 7.5},
			{ID: "CVE-2016-0777", CVSS: 4.0},
		}},
		surface.Service{Port: 2222, Vulnerabilities: []surface.VulnRef{
			{ID: "CVE-2016-6210", CVSS: 7.5},
		}},
	)
	if got := derive(CategoryHighCVE, snap); got != 1 {
		t.Errorf("high CVE count = %d, want 1", got)
	}
}

func TestCompareDeterministic(t *testing.T) {
	prev := snapshotOf(surface.Service{Port: 22}, surface.Service{Port: 443})
	cur := snapshotOf(surface.Service{Port: 22}, surface.Service{Port: 3389})
	a, b := Compare(prev, cur), Compare(prev, cur)
	if !cmp.Equal(a, b) {
		t.Error(cmp.Diff(a, b))
	}
}

func TestIsAdminService(t *testing.T) {
	tt := []struct {
		Svc  surface.Service
		Want bool
	}{
		{surface.Service{Port: 3389}, true},
		{surface.Service{Port: 5900}, true},
		{surface.Service{Port: 23}, true},
		{surface.Service{Port: 5901, Product: "VNC Server"}, true},
		{surface.Service{Port: 443, Banner: "telnet gateway"}, true},
		{surface.Service{Port: 22, Product: "OpenSSH"}, false},
	}
	for _, tc := range tt {
		if got := isAdminService(&tc.Svc); got != tc.Want {
			t.Errorf("isAdminService(port %d) = %v, want %v", tc.Svc.Port, got, tc.Want)
		}
	}
}
