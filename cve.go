package surface

import (
	"fmt"
	"regexp"
	"strings"
)

// ExploitStatus describes what is known about in-the-wild exploitation of
// a CVE.
type ExploitStatus uint

const (
	ExploitUnknown ExploitStatus = iota
	ExploitNone
	ExploitPrivate
	ExploitPublic
)

var exploitNames = [...]string{
	ExploitUnknown: "unknown",
	ExploitNone:    "none",
	ExploitPrivate: "private",
	ExploitPublic:  "public",
}

func (e ExploitStatus) String() string {
	if int(e) >= len(exploitNames) {
		return "unknown"
	}
	return exploitNames[e]
}

// MarshalText implements encoding.TextMarshaler.
func (e ExploitStatus) MarshalText() ([]byte, error) {
	return []byte(e.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (e *ExploitStatus) UnmarshalText(b []byte) error {
	for i, n := range exploitNames {
		if n == string(b) {
			*e = ExploitStatus(i)
			return nil
		}
	}
	return fmt.Errorf("unknown exploit status %q", string(b))
}

// ServiceIndicator records how a CVE was associated with a service label,
// and with what confidence.
type ServiceIndicator struct {
	MatchedBy  string `json:"matched_by"`
	Confidence string `json:"confidence"`
	Label      string `json:"label"`
}

// CVE is an enriched vulnerability record.
//
// Identical ids collapse to one record; CVSS is the maximum across
// sources, Ports and Sources the union.
type CVE struct {
	ID      string  `json:"id"`
	CVSS    float64 `json:"cvss,omitempty"`
	Summary string  `json:"summary,omitempty"`
	// Ports are the snapshot ports where this CVE was observed.
	Ports   []int  `json:"ports,omitempty"`
	Service string `json:"service,omitempty"`

	ExploitStatus ExploitStatus `json:"exploit_status"`
	// Sources is the provenance trail, e.g. "local_snapshot", "nvd", "kev".
	Sources []string `json:"sources,omitempty"`

	ServiceIndicator *ServiceIndicator `json:"service_indicator,omitempty"`
}

// AddSource appends a provenance tag if not already present.
func (c *CVE) AddSource(tag string) {
	for _, s := range c.Sources {
		if s == tag {
			return
		}
	}
	c.Sources = append(c.Sources, tag)
}

// AddPort records a port in ascending order, ignoring duplicates.
func (c *CVE) AddPort(port int) {
	for i, p := range c.Ports {
		switch {
		case p == port:
			return
		case p > port:
			c.Ports = append(c.Ports[:i], append([]int{port}, c.Ports[i:]...)...)
			return
		}
	}
	c.Ports = append(c.Ports, port)
}

// cveID is a slightly more relaxed version of the validation pattern in
// the NVD JSON schema. It allows for "CVE" to be case insensitive and for
// dashes and underscores between the different segments.
var cveID = regexp.MustCompile(`^(?i:cve)[-_][0-9]{4}[-_][0-9]{4,}$`)

// CanonicalCVE normalizes a CVE id to the form "CVE-YYYY-NNNN…". It
// reports false if the input does not look like a CVE id at all.
func CanonicalCVE(id string) (string, bool) {
	id = strings.TrimSpace(id)
	if !cveID.MatchString(id) {
		return "", false
	}
	id = strings.ToUpper(strings.ReplaceAll(id, "_", "-"))
	return id, true
}
