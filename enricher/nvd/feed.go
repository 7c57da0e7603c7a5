package nvd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/klauspost/compress/gzip"
	"github.com/quay/zlog"
)

// ReadFeed reads a gzipped legacy yearly feed ("nvdcve-1.1-<year>.json.gz")
// and calls fn for every item. It is used to seed the detail cache
// offline, avoiding per-CVE lookups for well-known ids.
func ReadFeed(ctx context.Context, r io.Reader, fn func(*Detail) error) error {
	ctx = zlog.ContextWithValues(ctx, "component", "enricher/nvd/ReadFeed")
	gz, err := gzip.NewReader(r)
	if err != nil {
		return fmt.Errorf("nvd: unable to create gzip reader: %w", err)
	}
	defer gz.Close()

	dec := json.NewDecoder(gz)
	// Scan forward to the "CVE_Items" array instead of holding the whole
	// year in memory.
	if err := seekItems(dec); err != nil {
		return err
	}
	count := 0
	for dec.More() {
		var it legacyItem
		if err := dec.Decode(&it); err != nil {
			return fmt.Errorf("nvd: malformed feed item: %w", err)
		}
		if err := fn(distillLegacy(&it)); err != nil {
			return err
		}
		count++
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
	}
	zlog.Debug(ctx).
		Int("count", count).
		Msg("processed feed items")
	return nil
}

func seekItems(dec *json.Decoder) error {
	depth := 0
	for {
		tok, err := dec.Token()
		if err != nil {
			return fmt.Errorf("nvd: feed missing CVE_Items: %w", err)
		}
		switch t := tok.(type) {
		case json.Delim:
			switch t {
			case '{':
				depth++
			case '}':
				depth--
			}
		case string:
			if depth == 1 && t == "CVE_Items" {
				// Consume the opening '['.
				if _, err := dec.Token(); err != nil {
					return fmt.Errorf("nvd: truncated feed: %w", err)
				}
				return nil
			}
		}
	}
}
