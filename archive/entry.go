package archive

import "time"

// Entry is the metadata recorded for one archived report version.
type Entry struct {
	CustomerSlug string `json:"customer_slug"`
	CustomerName string `json:"customer_name"`
	IP           string `json:"ip"`
	Month        string `json:"month"`
	// PDFPath is relative to the archive root.
	PDFPath   string            `json:"pdf_path"`
	SHA256    string            `json:"sha256"`
	SizeBytes int64             `json:"size_bytes"`
	Version   int               `json:"version"`
	Generator string            `json:"generator"`
	CreatedAt time.Time         `json:"created_at"`
	Extra     map[string]string `json:"extra,omitempty"`
}

// meta is the on-disk shape of "<month>_<ip>.meta.json".
//
// The file is rewritten on every archive run but is append-only in
// spirit: versions are only ever added. A malformed existing file is
// replaced by a fresh object; this loses prior metadata and is a
// documented limitation.
type meta struct {
	Versions      map[string]*Entry `json:"versions"`
	LatestVersion int               `json:"latest_version"`
	UpdatedAt     time.Time         `json:"updated_at"`
}
