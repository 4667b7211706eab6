package crawler

import "encoding/json"

// PageRecord is one successfully fetched page and every in-scope link found
// on it, same-host or not. A PageRecord is immutable once built and can be
// read from any goroutine without synchronization.
type PageRecord struct {
	url   CanonicalURL
	links []CanonicalURL
}

// NewPageRecord builds a record for url. Duplicate links are dropped,
// keeping first-seen order.
func NewPageRecord(url CanonicalURL, links []CanonicalURL) PageRecord {
	seen := make(map[CanonicalURL]struct{}, len(links))
	deduped := make([]CanonicalURL, 0, len(links))
	for _, link := range links {
		if _, ok := seen[link]; ok {
			continue
		}
		seen[link] = struct{}{}
		deduped = append(deduped, link)
	}
	return PageRecord{url: url, links: deduped}
}

// URL returns the page's canonical URL.
func (p PageRecord) URL() CanonicalURL {
	return p.url
}

// Links returns a copy of the page's distinct links in first-seen order.
func (p PageRecord) Links() []CanonicalURL {
	out := make([]CanonicalURL, len(p.links))
	copy(out, p.links)
	return out
}

// LinkCount returns the number of distinct links on the page.
func (p PageRecord) LinkCount() int {
	return len(p.links)
}

// HasLink reports whether the page links to target.
func (p PageRecord) HasLink(target CanonicalURL) bool {
	for _, link := range p.links {
		if link == target {
			return true
		}
	}
	return false
}

type pageRecordJSON struct {
	URL      CanonicalURL   `json:"url"`
	Children []CanonicalURL `json:"children"`
}

// MarshalJSON encodes the record as {"url": ..., "children": [...]}.
func (p PageRecord) MarshalJSON() ([]byte, error) {
	children := p.links
	if children == nil {
		children = []CanonicalURL{}
	}
	return json.Marshal(pageRecordJSON{URL: p.url, Children: children})
}

// UnmarshalJSON decodes the form written by MarshalJSON.
func (p *PageRecord) UnmarshalJSON(data []byte) error {
	var raw pageRecordJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*p = NewPageRecord(raw.URL, raw.Children)
	return nil
}

// Parents derives, from a flat set of records, the pages that link to target.
// The result follows the order of pages.
func Parents(pages []PageRecord, target CanonicalURL) []CanonicalURL {
	var parents []CanonicalURL
	for _, page := range pages {
		if page.url != target && page.HasLink(target) {
			parents = append(parents, page.url)
		}
	}
	return parents
}
