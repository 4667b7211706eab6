package crawler

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strings"
)

// LinkFetcher is the PageFetcher used in production. It fetches a page with
// a Fetcher, checks that the response is a document, extracts anchors with a
// Parser and resolves them against the final (post-redirect) URL.
type LinkFetcher struct {
	fetcher Fetcher
	parser  Parser
}

// NewLinkFetcher combines a Fetcher and a Parser into a PageFetcher.
func NewLinkFetcher(fetcher Fetcher, parser Parser) *LinkFetcher {
	return &LinkFetcher{fetcher: fetcher, parser: parser}
}

// FetchLinks implements PageFetcher.
func (f *LinkFetcher) FetchLinks(ctx context.Context, pageURL string) ([]string, error) {
	result, err := f.fetcher.Fetch(ctx, pageURL)
	if err != nil {
		return nil, err
	}

	if !isDocument(result.ContentType) {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedContentType, result.ContentType)
	}

	hrefs, err := f.parser.ExtractLinks(bytes.NewReader(result.Body), result.ContentType)
	if err != nil {
		return nil, fmt.Errorf("parse failed: %w", err)
	}

	// Use FinalURL for base URL resolution after redirects
	finalURL := result.FinalURL
	if finalURL == "" {
		finalURL = pageURL
	}
	base, err := url.Parse(finalURL)
	if err != nil {
		return nil, fmt.Errorf("parse final URL: %w", err)
	}

	links := make([]string, 0, len(hrefs))
	for _, href := range hrefs {
		ref, err := url.Parse(encodeWhitespace(strings.TrimSpace(href)))
		if err != nil {
			continue
		}
		links = append(links, base.ResolveReference(ref).String())
	}
	return links, nil
}

// isDocument reports whether a Content-Type is text, HTML or XML.
// An empty Content-Type is assumed to be HTML.
func isDocument(contentType string) bool {
	if contentType == "" {
		return true
	}
	ct := strings.ToLower(strings.TrimSpace(strings.Split(contentType, ";")[0]))
	return strings.HasPrefix(ct, "text/") ||
		strings.HasSuffix(ct, "/xml") ||
		strings.HasSuffix(ct, "+xml")
}
