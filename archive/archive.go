// Package archive maintains the revision-safe report archive.
//
// Layout under the archive root:
//
//	<root>/<customer_slug>/<month>/
//	  <month>_<ip>_v<N>.pdf
//	  <month>_<ip>.meta.json
//
// Versions are monotonic per (slug, month, ip). Callers must serialize
// runs for the same tuple; concurrent runs race on the version scan.
package archive

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"time"

	"github.com/quay/zlog"

	"github.com/perimetron/surface"
	"github.com/perimetron/surface/pkg/tmp"
)

// ErrBadMonth is reported when a month argument is not "YYYY-MM".
var ErrBadMonth = errors.New("archive: month must be formatted YYYY-MM")

// generator tags archived metadata with its producing tool.
const generator = "surface"

var monthRE = regexp.MustCompile(`^[0-9]{4}-(0[1-9]|1[0-2])$`)

// ValidMonth reports whether m is an acceptable month string. This is the
// single format authority; every operation taking a month validates
// through it before touching the filesystem.
func ValidMonth(m string) bool { return monthRE.MatchString(m) }

// Archiver owns the archive tree below root; no other component writes
// there.
type Archiver struct {
	root string
}

// New returns an Archiver rooted at dir, creating it if needed.
func New(dir string) (*Archiver, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("archive: unable to create root: %w", err)
	}
	return &Archiver{root: dir}, nil
}

// Root reports the archive root directory.
func (a *Archiver) Root() string { return a.root }

// Archive copies the rendered PDF into the archive under the next free
// version for (customer, month, ip) and merges the version's metadata
// into the month's meta file.
//
// The copy lands via spool-and-rename. If the rename keeps failing after
// retries, a direct copy is the fallback; that branch is not atomic, but
// the recorded sha256 is computed from the archived bytes afterwards, so
// a torn fallback copy is detectable.
func (a *Archiver) Archive(ctx context.Context, pdfPath, customer, month, ip string, extra map[string]string) (*Entry, error) {
	ctx = zlog.ContextWithValues(ctx, "component", "archive/Archiver.Archive")
	if !ValidMonth(month) {
		return nil, fmt.Errorf("%w: %q", ErrBadMonth, month)
	}
	slug := Slug(customer)
	dir := filepath.Join(a.root, slug, month)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("archive: unable to create directory: %w", err)
	}

	version, err := nextVersion(dir, month, ip)
	if err != nil {
		return nil, err
	}
	name := fmt.Sprintf("%s_%s_v%d.pdf", month, ip, version)
	dst := filepath.Join(dir, name)

	if err := a.place(ctx, pdfPath, dst); err != nil {
		return nil, err
	}

	f, err := os.Open(dst)
	if err != nil {
		return nil, fmt.Errorf("archive: unable to reopen archived report: %w", err)
	}
	d, size, err := surface.SHA256Digest(f)
	f.Close()
	if err != nil {
		return nil, fmt.Errorf("archive: unable to digest archived report: %w", err)
	}

	e := &Entry{
		CustomerSlug: slug,
		CustomerName: customer,
		IP:           ip,
		Month:        month,
		PDFPath:      filepath.ToSlash(filepath.Join(slug, month, name)),
		SHA256:       d.Hex(),
		SizeBytes:    size,
		Version:      version,
		Generator:    generator,
		CreatedAt:    time.Now().UTC(),
		Extra:        extra,
	}
	if err := a.mergeMeta(ctx, dir, month, ip, e); err != nil {
		return nil, err
	}
	zlog.Info(ctx).
		Str("path", e.PDFPath).
		Int("version", version).
		Msg("report archived")
	return e, nil
}

// nextVersion scans existing versions of (month, ip) in dir and returns
// max+1, starting at 1.
func nextVersion(dir, month, ip string) (int, error) {
	pat := filepath.Join(dir, fmt.Sprintf("%s_%s_v*.pdf", month, ip))
	matches, err := filepath.Glob(pat)
	if err != nil {
		return 0, fmt.Errorf("archive: bad version glob: %w", err)
	}
	prefix := fmt.Sprintf("%s_%s_v", month, ip)
	max := 0
	for _, m := range matches {
		base := filepath.Base(m)
		numeric := base[len(prefix) : len(base)-len(".pdf")]
		n, err := strconv.Atoi(numeric)
		if err != nil {
			continue
		}
		if n > max {
			max = n
		}
	}
	return max + 1, nil
}

// place copies src to dst atomically, with a bounded retry on rename and
// a direct-copy last resort for filesystems where rename over a locked
// target keeps failing.
func (a *Archiver) place(ctx context.Context, src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("archive: unable to open source report: %w", err)
	}
	defer in.Close()

	dir := filepath.Dir(dst)
	spool := filepath.Join(dir, ".tmp_"+filepath.Base(dst))
	out, err := os.OpenFile(spool, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("archive: unable to create spool: %w", err)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(spool)
		return fmt.Errorf("archive: unable to copy report: %w", err)
	}
	if err := out.Sync(); err != nil {
		out.Close()
		os.Remove(spool)
		return fmt.Errorf("archive: unable to sync spool: %w", err)
	}
	if err := out.Close(); err != nil {
		os.Remove(spool)
		return fmt.Errorf("archive: unable to close spool: %w", err)
	}

	backoff := 100 * time.Millisecond
	for attempt := 1; ; attempt++ {
		err = os.Rename(spool, dst)
		if err == nil {
			return nil
		}
		if attempt >= 3 {
			break
		}
		zlog.Warn(ctx).
			Err(err).
			Int("attempt", attempt).
			Msg("rename failed, retrying")
		select {
		case <-ctx.Done():
			os.Remove(spool)
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
	}
	zlog.Warn(ctx).Err(err).Msg("rename failed, falling back to direct copy")

	// Not atomic. A crash here can leave a torn target; the digest pass
	// after placement catches it.
	sf, err := os.Open(spool)
	if err != nil {
		return fmt.Errorf("archive: fallback open: %w", err)
	}
	defer sf.Close()
	defer os.Remove(spool)
	df, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("archive: fallback create: %w", err)
	}
	if _, err := io.Copy(df, sf); err != nil {
		df.Close()
		return fmt.Errorf("archive: fallback copy: %w", err)
	}
	return df.Close()
}

// mergeMeta loads the month's meta file, adds the entry, and rewrites the
// file atomically. A malformed existing file is replaced wholesale.
func (a *Archiver) mergeMeta(ctx context.Context, dir, month, ip string, e *Entry) error {
	path := filepath.Join(dir, fmt.Sprintf("%s_%s.meta.json", month, ip))
	var m meta
	if raw, err := os.ReadFile(path); err == nil {
		if err := json.Unmarshal(raw, &m); err != nil {
			zlog.Warn(ctx).
				Err(err).
				Str("path", path).
				Msg("existing metadata malformed, starting fresh")
			m = meta{}
		}
	}
	if m.Versions == nil {
		m.Versions = make(map[string]*Entry)
	}
	m.Versions[strconv.Itoa(e.Version)] = e
	if e.Version > m.LatestVersion {
		m.LatestVersion = e.Version
	}
	m.UpdatedAt = time.Now().UTC()

	f, err := tmp.NewFile(dir, "meta.")
	if err != nil {
		return fmt.Errorf("archive: unable to spool metadata: %w", err)
	}
	defer f.Close()
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(&m); err != nil {
		return fmt.Errorf("archive: unable to encode metadata: %w", err)
	}
	if err := f.Sync(); err != nil {
		return fmt.Errorf("archive: unable to flush metadata: %w", err)
	}
	if err := os.Rename(f.Name(), path); err != nil {
		return fmt.Errorf("archive: unable to commit metadata: %w", err)
	}
	return nil
}

// FindPrevious walks the customer's month directories in descending order
// and returns the latest-version entry of the first month before the
// given one. It returns nil without error when there is no previous
// report.
func (a *Archiver) FindPrevious(ctx context.Context, customer, month, ip string) (*Entry, error) {
	ctx = zlog.ContextWithValues(ctx, "component", "archive/Archiver.FindPrevious")
	if !ValidMonth(month) {
		return nil, fmt.Errorf("%w: %q", ErrBadMonth, month)
	}
	dir := filepath.Join(a.root, Slug(customer))
	des, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("archive: unable to list customer directory: %w", err)
	}
	var months []string
	for _, de := range des {
		if de.IsDir() && ValidMonth(de.Name()) {
			months = append(months, de.Name())
		}
	}
	// Validated YYYY-MM strings order correctly lexicographically.
	sort.Sort(sort.Reverse(sort.StringSlice(months)))
	for _, m := range months {
		if m >= month {
			continue
		}
		path := filepath.Join(dir, m, fmt.Sprintf("%s_%s.meta.json", m, ip))
		raw, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		var md meta
		if err := json.Unmarshal(raw, &md); err != nil {
			zlog.Warn(ctx).
				Err(err).
				Str("path", path).
				Msg("skipping malformed metadata")
			continue
		}
		if e, ok := md.Versions[strconv.Itoa(md.LatestVersion)]; ok {
			return e, nil
		}
	}
	return nil, nil
}
