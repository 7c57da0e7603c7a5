package sanitize

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestText(t *testing.T) {
	tt := []struct {
		In, Want string
	}{
		{"", ""},
		{"plain text", "plain text"},
		{"tabs\tand\r\nnewlines", "tabs and newlines"},
		{"  leading   and trailing  ", "leading and trailing"},
		{"ctrl\x00\x01\x7fchars", "ctrl chars"},
		{"::ffff:198.51.100.7", "198.51.100.7"},
		{"::FFFF:198.51.100.7", "198.51.100.7"},
	}
	for _, tc := range tt {
		if got := Text(tc.In); got != tc.Want {
			t.Errorf("Text(%q) = %q, want %q", tc.In, got, tc.Want)
		}
	}
}

func TestTextRedactsKeyMaterial(t *testing.T) {
	key := "AAAAB3NzaC1yc2EAAAADAQABAAABgQDYrx8Z1234567890abcdef=="
	got := Text("ssh-rsa " + key + " host")
	if strings.Contains(got, key) {
		t.Fatalf("key material survived: %q", got)
	}
	if !strings.Contains(got, Placeholder) {
		t.Errorf("missing placeholder in %q", got)
	}
}

// A mapped-v6 prefix sitting inside key material must not split the run
// in a way that lets the halves survive the first pass.
func TestTextRedactsJoinedKeyMaterial(t *testing.T) {
	in := strings.Repeat("A", 20) + "::ffff:" + strings.Repeat("B", 25)
	got := Text(in)
	if got != Placeholder {
		t.Fatalf("Text(%q) = %q, want %q", in, got, Placeholder)
	}
	if again := Text(got); again != got {
		t.Errorf("not a fixed point: %q != %q", again, got)
	}
}

func TestProduct(t *testing.T) {
	tt := []struct {
		In, Want string
	}{
		{"OpenSSH_8.9p1 Ubuntu", "SSH"},
		{"nginx/1.22.1", "nginx"},
		{"Microsoft-IIS/10.0", "IIS"},
		{"MySQL Community Server", "MySQL"},
		{"MariaDB Server", "MariaDB"},
		{"some custom daemon", "some custom daemon"},
	}
	for _, tc := range tt {
		if got := Product(tc.In); got != tc.Want {
			t.Errorf("Product(%q) = %q, want %q", tc.In, got, tc.Want)
		}
	}
	long := strings.Repeat("x", 2*MaxProduct)
	if got := Product(long); utf8.RuneCountInString(got) > MaxProduct {
		t.Errorf("Product did not truncate: %d runes", utf8.RuneCountInString(got))
	}
}

func TestBanner(t *testing.T) {
	tt := []struct {
		In, Want string
	}{
		{"220 smtp.example.com ESMTP Postfix", "smtp.example.com ESMTP Postfix"},
		{"220-First line", "First line"},
		{"220 250 stacked codes", "stacked codes"},
		{"no status here", "no status here"},
	}
	for _, tc := range tt {
		if got := Banner(tc.In); got != tc.Want {
			t.Errorf("Banner(%q) = %q, want %q", tc.In, got, tc.Want)
		}
	}
}

func TestTruncate(t *testing.T) {
	if got := Truncate("hello", 5); got != "hello" {
		t.Errorf("got %q", got)
	}
	got := Truncate("hello world", 5)
	if utf8.RuneCountInString(got) > 5 {
		t.Errorf("over limit: %q", got)
	}
	if !strings.HasSuffix(got, "…") {
		t.Errorf("missing ellipsis: %q", got)
	}
	if got := Truncate("abc", 0); got != "" {
		t.Errorf("got %q", got)
	}
}

// Every sanitizer must be a fixed point on its own output.
func TestIdempotence(t *testing.T) {
	inputs := []string{
		"",
		"220 smtp.example.com ESMTP Postfix\r\n250 OK",
		"ssh-rsa AAAAB3NzaC1yc2EAAAADAQABAAABgQDYrx8Z1234567890abcdef== root@host",
		"::ffff:203.0.113.9 connected",
		strings.Repeat("A", 20) + "::ffff:" + strings.Repeat("B", 25),
		strings.Repeat("Ω", 3*MaxBanner),
		"nginx/1.22.1 (Ubuntu)",
	}
	fns := map[string]func(string) string{
		"Text":    Text,
		"Product": Product,
		"Banner":  Banner,
	}
	for name, fn := range fns {
		for _, in := range inputs {
			once := fn(in)
			if twice := fn(once); twice != once {
				t.Errorf("%s not idempotent on %q: %q != %q", name, in, once, twice)
			}
		}
	}
}
