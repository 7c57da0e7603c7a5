package surface

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestCanonicalCVE(t *testing.T) {
	tt := []struct {
		In   string
		Want string
		OK   bool
	}{
		{"CVE-2021-44228", "CVE-2021-44228", true},
		{"cve-2021-44228", "CVE-2021-44228", true},
		{"CVE_2021_44228", "CVE-2021-44228", true},
		{" CVE-2016-6210 ", "CVE-2016-6210", true},
		{"CVE-2023-123456", "CVE-2023-123456", true},
		{"CVE-2021-123", "", false},
		{"CVE-21-44228", "", false},
		{"GHSA-xxxx-yyyy", "", false},
		{"", "", false},
	}
	for _, tc := range tt {
		got, ok := CanonicalCVE(tc.In)
		if got != tc.Want || ok != tc.OK {
			t.Errorf("CanonicalCVE(%q) = (%q, %v), want (%q, %v)", tc.In, got, ok, tc.Want, tc.OK)
		}
	}
}

func TestCVEAddPort(t *testing.T) {
	var c CVE
	for _, p := range []int{443, 22, 443, 8080, 22} {
		c.AddPort(p)
	}
	want := []int{22, 443, 8080}
	if !cmp.Equal(c.Ports, want) {
		t.Error(cmp.Diff(c.Ports, want))
	}
}

func TestCVEAddSource(t *testing.T) {
	var c CVE
	c.AddSource("local_snapshot")
	c.AddSource("nvd")
	c.AddSource("local_snapshot")
	want := []string{"local_snapshot", "nvd"}
	if !cmp.Equal(c.Sources, want) {
		t.Error(cmp.Diff(c.Sources, want))
	}
}

func TestExploitStatusText(t *testing.T) {
	for _, e := range []ExploitStatus{ExploitUnknown, ExploitNone, ExploitPrivate, ExploitPublic} {
		b, err := e.MarshalText()
		if err != nil {
			t.Fatal(err)
		}
		var got ExploitStatus
		if err := got.UnmarshalText(b); err != nil {
			t.Fatal(err)
		}
		if got != e {
			t.Errorf("round trip: got %v, want %v", got, e)
		}
	}
	var e ExploitStatus
	if err := e.UnmarshalText([]byte("weaponized")); err == nil {
		t.Error("expected error for unknown status")
	}
}

func TestServiceAddVulnRef(t *testing.T) {
	var s Service
	s.AddVulnRef(VulnRef{ID: "CVE-2021-44228", CVSS: 9.8})
	s.AddVulnRef(VulnRef{ID: "CVE-2021-44228", CVSS: 7.5})
	s.AddVulnRef(VulnRef{ID: "CVE-2016-6210", CVSS: 5.9})
	s.AddVulnRef(VulnRef{ID: "CVE-2016-6210", CVSS: 8.1})
	want := []VulnRef{
		{ID: "CVE-2021-44228", CVSS: 9.8},
		{ID: "CVE-2016-6210", CVSS: 8.1},
	}
	if !cmp.Equal(s.Vulnerabilities, want) {
		t.Error(cmp.Diff(s.Vulnerabilities, want))
	}
}
