package htmlparser

import (
	"errors"
	"fmt"
	"io"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
	"golang.org/x/net/html/charset"
)

// ExtractLinks parses HTML from the reader and returns all href attributes
// found in <a> tags, in document order. Returns raw href strings exactly as
// they appear in the HTML.
//
// contentType is the response Content-Type; its charset parameter (or a
// <meta charset> in the document) is used to decode non-UTF-8 pages.
func ExtractLinks(r io.Reader, contentType string) ([]string, error) {
	decoded, err := charset.NewReader(r, contentType)
	if errors.Is(err, io.EOF) {
		// Empty body: a valid document with no links.
		return []string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("decoding charset: %w", err)
	}

	doc, err := html.Parse(decoded)
	if err != nil {
		return nil, err
	}

	links := []string{}
	goquery.NewDocumentFromNode(doc).Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		if href, ok := s.Attr("href"); ok {
			links = append(links, href)
		}
	})

	return links, nil
}

// Parser adapts ExtractLinks to the crawler.Parser interface.
type Parser struct{}

// ExtractLinks implements crawler.Parser.
func (Parser) ExtractLinks(r io.Reader, contentType string) ([]string, error) {
	return ExtractLinks(r, contentType)
}
