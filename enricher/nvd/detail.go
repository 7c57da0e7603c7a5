package nvd

import (
	"encoding/json"
	"fmt"
)

// Detail is the distilled outcome of one CVE detail lookup.
type Detail struct {
	ID      string
	Summary string
	// CVSS is the preferred base score: v3.1 over v3.0 over v2. Zero
	// means the response carried none.
	CVSS float64
	// CPEs are platform strings usable as a fallback service label.
	CPEs []string
}

// legacyDoc is the 1.1 feed shape ({"CVE_Items": [...]}).
type legacyDoc struct {
	CVEItems []legacyItem `json:"CVE_Items"`
}

type legacyItem struct {
	CVE struct {
		Meta struct {
			ID string `json:"ID"`
		} `json:"CVE_data_meta"`
		Description struct {
			Data []struct {
				Lang  string `json:"lang"`
				Value string `json:"value"`
			} `json:"description_data"`
		} `json:"description"`
		Affects struct {
			Vendor struct {
				VendorData []struct {
					Product struct {
						ProductData []struct {
							ProductName string `json:"product_name"`
						} `json:"product_data"`
					} `json:"product"`
				} `json:"vendor_data"`
			} `json:"vendor"`
		} `json:"affects"`
	} `json:"cve"`
	Impact struct {
		BaseMetricV3 struct {
			CVSSV3 struct {
				BaseScore float64 `json:"baseScore"`
				Version   string  `json:"version"`
			} `json:"cvssV3"`
		} `json:"baseMetricV3"`
		BaseMetricV2 struct {
			CVSSV2 struct {
				BaseScore float64 `json:"baseScore"`
			} `json:"cvssV2"`
		} `json:"baseMetricV2"`
	} `json:"impact"`
}

// apiDoc is the 2.0 API shape ({"vulnerabilities": [...]}).
type apiDoc struct {
	Vulnerabilities []struct {
		CVE struct {
			ID           string `json:"id"`
			Descriptions []struct {
				Lang  string `json:"lang"`
				Value string `json:"value"`
			} `json:"descriptions"`
			Metrics struct {
				V31 []apiMetric `json:"cvssMetricV31"`
				V30 []apiMetric `json:"cvssMetricV30"`
				V2  []apiMetric `json:"cvssMetricV2"`
			} `json:"metrics"`
			Configurations []struct {
				Nodes []struct {
					CPEMatch []struct {
						Criteria string `json:"criteria"`
					} `json:"cpeMatch"`
				} `json:"nodes"`
			} `json:"configurations"`
		} `json:"cve"`
	} `json:"vulnerabilities"`
}

type apiMetric struct {
	CVSSData struct {
		BaseScore float64 `json:"baseScore"`
	} `json:"cvssData"`
}

// ParseDetail decodes a CVE detail response in either the legacy 1.1 feed
// shape or the 2.0 API shape and distills the first item.
func ParseDetail(raw []byte) (*Detail, error) {
	var probe struct {
		CVEItems        json.RawMessage `json:"CVE_Items"`
		Vulnerabilities json.RawMessage `json:"vulnerabilities"`
	}
	if err := json.Unmarshal(raw, &probe); err != nil {
		return nil, fmt.Errorf("nvd: undecodable detail response: %w", err)
	}
	switch {
	case probe.Vulnerabilities != nil:
		var doc apiDoc
		if err := json.Unmarshal(raw, &doc); err != nil {
			return nil, fmt.Errorf("nvd: malformed 2.0 response: %w", err)
		}
		if len(doc.Vulnerabilities) == 0 {
			return nil, ErrNotFound
		}
		return distillAPI(&doc), nil
	case probe.CVEItems != nil:
		var doc legacyDoc
		if err := json.Unmarshal(raw, &doc); err != nil {
			return nil, fmt.Errorf("nvd: malformed legacy response: %w", err)
		}
		if len(doc.CVEItems) == 0 {
			return nil, ErrNotFound
		}
		return distillLegacy(&doc.CVEItems[0]), nil
	}
	return nil, fmt.Errorf("nvd: unrecognized response shape")
}

func distillAPI(doc *apiDoc) *Detail {
	v := &doc.Vulnerabilities[0]
	d := &Detail{ID: v.CVE.ID}
	for _, ds := range v.CVE.Descriptions {
		if ds.Lang == "en" || d.Summary == "" {
			d.Summary = ds.Value
			if ds.Lang == "en" {
				break
			}
		}
	}
	switch m := v.CVE.Metrics; {
	case len(m.V31) > 0:
		d.CVSS = m.V31[0].CVSSData.BaseScore
	case len(m.V30) > 0:
		d.CVSS = m.V30[0].CVSSData.BaseScore
	case len(m.V2) > 0:
		d.CVSS = m.V2[0].CVSSData.BaseScore
	}
	for _, cfg := range v.CVE.Configurations {
		for _, n := range cfg.Nodes {
			for _, cm := range n.CPEMatch {
				if cm.Criteria != "" {
					d.CPEs = append(d.CPEs, cm.Criteria)
				}
			}
		}
	}
	return d
}

func distillLegacy(it *legacyItem) *Detail {
	d := &Detail{ID: it.CVE.Meta.ID}
	for _, ds := range it.CVE.Description.Data {
		if ds.Lang == "en" || d.Summary == "" {
			d.Summary = ds.Value
			if ds.Lang == "en" {
				break
			}
		}
	}
	switch {
	case it.Impact.BaseMetricV3.CVSSV3.BaseScore > 0:
		d.CVSS = it.Impact.BaseMetricV3.CVSSV3.BaseScore
	case it.Impact.BaseMetricV2.CVSSV2.BaseScore > 0:
		d.CVSS = it.Impact.BaseMetricV2.CVSSV2.BaseScore
	}
	for _, vd := range it.CVE.Affects.Vendor.VendorData {
		for _, pd := range vd.Product.ProductData {
			if pd.ProductName != "" {
				// Synthesize a CPE-ish token so downstream label
				// derivation has one code path.
				d.CPEs = append(d.CPEs, "cpe:2.3:a:*:"+pd.ProductName)
			}
		}
	}
	return d
}
