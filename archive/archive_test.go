package archive

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/quay/zlog"
)

func writePDF(t *testing.T, dir, name string, content []byte) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, content, 0o644); err != nil {
		t.Fatal(err)
	}
	return p
}

func TestArchiveVersions(t *testing.T) {
	ctx := zlog.Test(context.Background(), t)
	a, err := New(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	src := t.TempDir()

	p1 := writePDF(t, src, "report1.pdf", []byte("%PDF-1.4 first"))
	e1, err := a.Archive(ctx, p1, "ACME GmbH", "2026-08", "198.51.100.7", nil)
	if err != nil {
		t.Fatal(err)
	}
	if e1.Version != 1 {
		t.Errorf("first version = %d, want 1", e1.Version)
	}
	if e1.PDFPath != "acme_gmbh/2026-08/2026-08_198.51.100.7_v1.pdf" {
		t.Errorf("pdf path = %q", e1.PDFPath)
	}

	p2 := writePDF(t, src, "report2.pdf", []byte("%PDF-1.4 corrected"))
	e2, err := a.Archive(ctx, p2, "ACME GmbH", "2026-08", "198.51.100.7", map[string]string{"reason": "correction"})
	if err != nil {
		t.Fatal(err)
	}
	if e2.Version != 2 {
		t.Errorf("second version = %d, want 2", e2.Version)
	}

	// The first version must be untouched.
	v1 := filepath.Join(a.Root(), "acme_gmbh", "2026-08", "2026-08_198.51.100.7_v1.pdf")
	got, err := os.ReadFile(v1)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "%PDF-1.4 first" {
		t.Errorf("v1 content changed: %q", got)
	}

	// Metadata carries both versions and points at the latest.
	raw, err := os.ReadFile(filepath.Join(a.Root(), "acme_gmbh", "2026-08", "2026-08_198.51.100.7.meta.json"))
	if err != nil {
		t.Fatal(err)
	}
	var m meta
	if err := json.Unmarshal(raw, &m); err != nil {
		t.Fatal(err)
	}
	if m.LatestVersion != 2 || len(m.Versions) != 2 {
		t.Errorf("meta: latest %d, %d versions", m.LatestVersion, len(m.Versions))
	}
	if m.Versions["2"].Extra["reason"] != "correction" {
		t.Errorf("extra lost: %+v", m.Versions["2"])
	}
	if m.Versions["1"].SHA256 == m.Versions["2"].SHA256 {
		t.Error("digests should differ")
	}
}

func TestArchiveBadMonth(t *testing.T) {
	ctx := zlog.Test(context.Background(), t)
	a, err := New(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	for _, m := range []string{"2026-13", "2026-1", "202608", "august", ""} {
		if _, err := a.Archive(ctx, "nonexistent.pdf", "ACME", m, "198.51.100.7", nil); !errors.Is(err, ErrBadMonth) {
			t.Errorf("month %q: got %v, want ErrBadMonth", m, err)
		}
	}
}

func TestArchiveSurvivesMalformedMeta(t *testing.T) {
	ctx := zlog.Test(context.Background(), t)
	a, err := New(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	dir := filepath.Join(a.Root(), "acme", "2026-08")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "2026-08_198.51.100.7.meta.json"), []byte("{torn"), 0o644); err != nil {
		t.Fatal(err)
	}
	p := writePDF(t, t.TempDir(), "report.pdf", []byte("%PDF-1.4 data"))
	e, err := a.Archive(ctx, p, "acme", "2026-08", "198.51.100.7", nil)
	if err != nil {
		t.Fatal(err)
	}
	if e.Version != 1 {
		t.Errorf("version = %d, want 1", e.Version)
	}
}

func TestFindPrevious(t *testing.T) {
	ctx := zlog.Test(context.Background(), t)
	a, err := New(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	src := t.TempDir()
	for _, month := range []string{"2026-05", "2026-06"} {
		p := writePDF(t, src, month+".pdf", []byte("%PDF-1.4 "+month))
		if _, err := a.Archive(ctx, p, "ACME GmbH", month, "198.51.100.7", nil); err != nil {
			t.Fatal(err)
		}
	}
	// Second run for June bumps its version.
	p := writePDF(t, src, "june2.pdf", []byte("%PDF-1.4 june again"))
	if _, err := a.Archive(ctx, p, "ACME GmbH", "2026-06", "198.51.100.7", nil); err != nil {
		t.Fatal(err)
	}

	e, err := a.FindPrevious(ctx, "ACME GmbH", "2026-08", "198.51.100.7")
	if err != nil {
		t.Fatal(err)
	}
	if e == nil || e.Month != "2026-06" || e.Version != 2 {
		t.Fatalf("got %+v, want latest June entry", e)
	}

	// No months before the earliest.
	e, err = a.FindPrevious(ctx, "ACME GmbH", "2026-05", "198.51.100.7")
	if err != nil {
		t.Fatal(err)
	}
	if e != nil {
		t.Errorf("got %+v, want nil", e)
	}

	// Unknown customer is not an error.
	e, err = a.FindPrevious(ctx, "Nobody", "2026-08", "198.51.100.7")
	if err != nil || e != nil {
		t.Errorf("got (%+v, %v)", e, err)
	}
}

func TestSlug(t *testing.T) {
	tt := []struct {
		In, Want string
	}{
		{"ACME GmbH", "acme_gmbh"},
		{"Müller & Söhne AG", "m_ller_s_hne_ag"},
		{"  spaced  out  ", "spaced_out"},
		{"___", "unknown"},
		{"", "unknown"},
		{"already_fine", "already_fine"},
	}
	for _, tc := range tt {
		if got := Slug(tc.In); got != tc.Want {
			t.Errorf("Slug(%q) = %q, want %q", tc.In, got, tc.Want)
		}
	}
}
