// Package snapstore persists normalized asset snapshots per customer and
// month.
//
// Snapshots are stored as JSON files at
// "<root>/<customer_slug>/<month>_<ip>.json" and are immutable once
// written: a save for an existing (customer, month) pair replaces the
// file wholesale via an atomic rename.
package snapstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/quay/zlog"

	"github.com/perimetron/surface"
	"github.com/perimetron/surface/archive"
	"github.com/perimetron/surface/pkg/tmp"
)

// ErrNotFound is reported by Load when no snapshot exists for the
// requested customer and month.
var ErrNotFound = errors.New("snapstore: snapshot not found")

// Store is a directory-rooted snapshot store.
type Store struct {
	root string
}

// New returns a Store rooted at dir, creating it if needed.
func New(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("snapstore: unable to create root: %w", err)
	}
	return &Store{root: dir}, nil
}

// Save writes the snapshot for (customer, month) and returns the file
// path. The write is atomic: a spool file in the destination directory is
// renamed into place, so no partial JSON is ever observable.
func (s *Store) Save(ctx context.Context, snap *surface.AssetSnapshot, customer, month string) (string, error) {
	ctx = zlog.ContextWithValues(ctx, "component", "snapstore/Store.Save")
	if err := snap.Validate(); err != nil {
		return "", fmt.Errorf("snapstore: refusing to save invalid snapshot: %w", err)
	}
	dir := filepath.Join(s.root, archive.Slug(customer))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("snapstore: unable to create customer directory: %w", err)
	}
	dst := filepath.Join(dir, fmt.Sprintf("%s_%s.json", month, snap.IP))

	f, err := tmp.NewFile(dir, "snapshot.")
	if err != nil {
		return "", fmt.Errorf("snapstore: unable to spool: %w", err)
	}
	defer f.Close()
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(snap); err != nil {
		return "", fmt.Errorf("snapstore: unable to encode snapshot: %w", err)
	}
	if err := f.Sync(); err != nil {
		return "", fmt.Errorf("snapstore: unable to sync spool: %w", err)
	}
	if err := os.Rename(f.Name(), dst); err != nil {
		return "", fmt.Errorf("snapstore: unable to commit snapshot: %w", err)
	}
	zlog.Debug(ctx).
		Str("path", dst).
		Str("ip", snap.IP).
		Msg("snapshot saved")
	return dst, nil
}

// Load returns the snapshot stored for (customer, month), matching the
// first file for the glob "<month>_*.json". ErrNotFound is returned when
// nothing matches.
func (s *Store) Load(ctx context.Context, customer, month string) (*surface.AssetSnapshot, error) {
	ctx = zlog.ContextWithValues(ctx, "component", "snapstore/Store.Load")
	pat := filepath.Join(s.root, archive.Slug(customer), month+"_*.json")
	matches, err := filepath.Glob(pat)
	if err != nil {
		return nil, fmt.Errorf("snapstore: bad glob: %w", err)
	}
	if len(matches) == 0 {
		return nil, ErrNotFound
	}
	sort.Strings(matches)
	raw, err := os.ReadFile(matches[0])
	if err != nil {
		return nil, fmt.Errorf("snapstore: unable to read snapshot: %w", err)
	}
	var snap surface.AssetSnapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return nil, fmt.Errorf("snapstore: malformed snapshot %q: %w", matches[0], err)
	}
	zlog.Debug(ctx).
		Str("path", matches[0]).
		Msg("snapshot loaded")
	return &snap, nil
}

// Diff is the structural difference between two snapshots.
type Diff struct {
	NewPorts        []int    `json:"new_ports"`
	RemovedPorts    []int    `json:"removed_ports"`
	NewServices     []string `json:"new_services"`
	RemovedServices []string `json:"removed_services"`
}

// unknownProduct stands in for services without an identified product.
const unknownProduct = "unknown"

// Compare computes set differences between two snapshots over ports and
// product names. Either argument may be nil.
func Compare(prev, cur *surface.AssetSnapshot) *Diff {
	d := &Diff{}
	pp, pc := portSet(prev), portSet(cur)
	for p := range pc {
		if _, ok := pp[p]; !ok {
			d.NewPorts = append(d.NewPorts, p)
		}
	}
	for p := range pp {
		if _, ok := pc[p]; !ok {
			d.RemovedPorts = append(d.RemovedPorts, p)
		}
	}
	sort.Ints(d.NewPorts)
	sort.Ints(d.RemovedPorts)

	sp, sc := productSet(prev), productSet(cur)
	for n := range sc {
		if _, ok := sp[n]; !ok {
			d.NewServices = append(d.NewServices, n)
		}
	}
	for n := range sp {
		if _, ok := sc[n]; !ok {
			d.RemovedServices = append(d.RemovedServices, n)
		}
	}
	sort.Strings(d.NewServices)
	sort.Strings(d.RemovedServices)
	return d
}

func portSet(s *surface.AssetSnapshot) map[int]struct{} {
	m := make(map[int]struct{})
	if s == nil {
		return m
	}
	for i := range s.Services {
		m[s.Services[i].Port] = struct{}{}
	}
	return m
}

func productSet(s *surface.AssetSnapshot) map[string]struct{} {
	m := make(map[string]struct{})
	if s == nil {
		return m
	}
	for i := range s.Services {
		p := s.Services[i].Product
		if p == "" {
			p = unknownProduct
		}
		m[p] = struct{}{}
	}
	return m
}
