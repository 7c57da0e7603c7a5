package nvd

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/quay/zlog"
)

const apiResponse = `{
	"vulnerabilities": [{
		"cve": {
			"id": "CVE-2016-6210",
			"descriptions": [
				{"lang": "es", "value": "descripción"},
				{"lang": "en", "value": "sshd in OpenSSH before 7.3 uses BLOWFISH hashing"}
			],
			"metrics": {
				"cvssMetricV31": [{"cvssData": {"baseScore": 5.9}}],
				"cvssMetricV2": [{"cvssData": {"baseScore": 4.3}}]
			},
			"configurations": [{
				"nodes": [{
					"cpeMatch": [{"criteria": "cpe:2.3:a:openbsd:openssh:7.2:*:*:*:*:*:*:*"}]
				}]
			}]
		}
	}]
}`

const legacyResponse = `{
	"CVE_Items": [{
		"cve": {
			"CVE_data_meta": {"ID": "CVE-2016-6210"},
			"description": {"description_data": [
				{"lang": "en", "value": "sshd in OpenSSH before 7.3"}
			]},
			"affects": {"vendor": {"vendor_data": [{
				"product": {"product_data": [{"product_name": "openssh"}]}
			}]}}
		},
		"impact": {
			"baseMetricV3": {"cvssV3": {"baseScore": 5.9, "version": "3.0"}},
			"baseMetricV2": {"cvssV2": {"baseScore": 4.3}}
		}
	}]
}`

func TestParseDetail(t *testing.T) {
	tt := []struct {
		Name string
		Raw  string
		Want *Detail
	}{
		{
			Name: "API",
			Raw:  apiResponse,
			Want: &Detail{
				ID:      "CVE-2016-6210",
				Summary: "sshd in OpenSSH before 7.3 uses BLOWFISH hashing",
				CVSS:    5.9,
				CPEs:    []string{"cpe:2.3:a:openbsd:openssh:7.2:*:*:*:*:*:*:*"},
			},
		},
		{
			Name: "Legacy",
			Raw:  legacyResponse,
			Want: &Detail{
				ID:      "CVE-2016-6210",
				Summary: "sshd in OpenSSH before 7.3",
				CVSS:    5.9,
				CPEs:    []string{"cpe:2.3:a:*:openssh"},
			},
		},
	}
	for _, tc := range tt {
		t.Run(tc.Name, func(t *testing.T) {
			got, err := ParseDetail([]byte(tc.Raw))
			if err != nil {
				t.Fatal(err)
			}
			if !cmp.Equal(got, tc.Want) {
				t.Error(cmp.Diff(got, tc.Want))
			}
		})
	}
}

func TestParseDetailCVSSPreference(t *testing.T) {
	raw := `{"vulnerabilities": [{"cve": {
		"id": "CVE-2000-0001",
		"metrics": {
			"cvssMetricV30": [{"cvssData": {"baseScore": 7.5}}],
			"cvssMetricV2": [{"cvssData": {"baseScore": 9.0}}]
		}
	}}]}`
	got, err := ParseDetail([]byte(raw))
	if err != nil {
		t.Fatal(err)
	}
	if got.CVSS != 7.5 {
		t.Errorf("CVSS = %v, want v3.0 score 7.5", got.CVSS)
	}
}

func TestParseDetailEmpty(t *testing.T) {
	for _, raw := range []string{
		`{"vulnerabilities": []}`,
		`{"CVE_Items": []}`,
	} {
		if _, err := ParseDetail([]byte(raw)); !errors.Is(err, ErrNotFound) {
			t.Errorf("%s: got %v, want ErrNotFound", raw, err)
		}
	}
	if _, err := ParseDetail([]byte(`{"something": "else"}`)); err == nil {
		t.Error("expected error for unrecognized shape")
	}
}

func TestClientCVE(t *testing.T) {
	ctx := zlog.Test(context.Background(), t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("cveId"); got != "CVE-2016-6210" {
			t.Errorf("cveId = %q", got)
		}
		if got := r.Header.Get("apiKey"); got != "testkey" {
			t.Errorf("apiKey = %q", got)
		}
		w.Write([]byte(apiResponse))
	}))
	defer srv.Close()
	root, err := url.Parse(srv.URL + "/")
	if err != nil {
		t.Fatal(err)
	}
	cl := NewClient("testkey", WithRoot(root), WithHTTPClient(srv.Client()))
	d, raw, err := cl.CVE(ctx, "CVE-2016-6210")
	if err != nil {
		t.Fatal(err)
	}
	if len(raw) == 0 || d.CVSS != 5.9 {
		t.Errorf("detail: %+v", d)
	}
}

func TestClientCVENotFound(t *testing.T) {
	ctx := zlog.Test(context.Background(), t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()
	root, err := url.Parse(srv.URL + "/")
	if err != nil {
		t.Fatal(err)
	}
	cl := NewClient("", WithRoot(root), WithHTTPClient(srv.Client()))
	if _, _, err := cl.CVE(ctx, "CVE-1999-0001"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("got %v, want ErrNotFound", err)
	}
}
