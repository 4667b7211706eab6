package crawler

import (
	"fmt"
	"net"
	"net/url"
	"strings"
	"unicode"

	"golang.org/x/net/idna"
)

// CanonicalURL is the identity of a crawl target.
// It holds the scheme, host and escaped path of a URL with the query,
// fragment, user info and trailing slashes removed. Two hrefs that resolve
// to the same CanonicalURL are the same page for all crawl-state purposes.
//
// CanonicalURL is a comparable value type and can be used as a map key.
type CanonicalURL struct {
	// Scheme is "http" or "https".
	Scheme string
	// Host is the lower-cased, ASCII host with any default port removed.
	Host string
	// Path is the escaped path without trailing slashes ("" for the site root).
	Path string
}

// String returns the URL in its absolute form, e.g. "https://example.com/help".
func (c CanonicalURL) String() string {
	if c.IsZero() {
		return ""
	}
	return c.Scheme + "://" + c.Host + c.Path
}

// IsZero reports whether c is the zero value.
func (c CanonicalURL) IsZero() bool {
	return c == CanonicalURL{}
}

// URL returns c as a *url.URL suitable for reference resolution.
func (c CanonicalURL) URL() *url.URL {
	u, err := url.Parse(c.String())
	if err != nil {
		// Unreachable for values built by Normalize or ParseRoot.
		return &url.URL{Scheme: c.Scheme, Host: c.Host, Path: c.Path}
	}
	return u
}

// SameHost reports whether c and other are on the same host, comparing
// case-insensitively and ignoring a single leading "www." label.
func (c CanonicalURL) SameHost(other CanonicalURL) bool {
	return hostKey(c.Host) == hostKey(other.Host)
}

// MarshalText implements encoding.TextMarshaler.
func (c CanonicalURL) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (c *CanonicalURL) UnmarshalText(text []byte) error {
	parsed, err := ParseRoot(string(text))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// ParseRoot canonicalizes an absolute http or https URL supplied by a caller,
// typically the root of a crawl.
func ParseRoot(raw string) (CanonicalURL, error) {
	return Normalize(CanonicalURL{}, raw)
}

// Normalize turns a raw href found on the page at base into a CanonicalURL.
//
// Normalization rules:
//   - Trim surrounding whitespace, percent-encode whitespace inside the href
//   - Resolve relative, absolute-path, scheme-relative and fragment-only
//     references against base
//   - Require scheme http or https and a non-empty host
//   - Lowercase scheme and host, convert IDN hosts to ASCII
//   - Strip default port (80 for http, 443 for https)
//   - Drop user info, query and fragment
//   - Remove dot segments and trailing slashes from the path
//
// A fragment-only href ("#section") canonicalizes to base itself.
// Any href that cannot be canonicalized yields a *ScopeError.
func Normalize(base CanonicalURL, rawHref string) (CanonicalURL, error) {
	href := encodeWhitespace(strings.TrimSpace(rawHref))

	ref, err := url.Parse(href)
	if err != nil {
		return CanonicalURL{}, &ScopeError{Href: rawHref, Reason: "unparseable", Err: err}
	}

	resolver := &url.URL{}
	if !base.IsZero() {
		resolver = base.URL()
	} else if !ref.IsAbs() {
		return CanonicalURL{}, &ScopeError{Href: rawHref, Reason: "relative reference without base"}
	}

	// ResolveReference also removes dot segments from absolute references.
	abs := resolver.ResolveReference(ref)

	scheme := strings.ToLower(abs.Scheme)
	if scheme != "http" && scheme != "https" {
		return CanonicalURL{}, &ScopeError{Href: rawHref, Reason: fmt.Sprintf("unsupported scheme %q", abs.Scheme)}
	}

	host, err := canonicalHost(scheme, abs)
	if err != nil {
		return CanonicalURL{}, &ScopeError{Href: rawHref, Reason: "invalid host", Err: err}
	}

	return CanonicalURL{
		Scheme: scheme,
		Host:   host,
		Path:   strings.TrimRight(abs.EscapedPath(), "/"),
	}, nil
}

// canonicalHost lowercases the host, converts it to its ASCII form and drops
// the default port for the scheme.
func canonicalHost(scheme string, u *url.URL) (string, error) {
	hostname := strings.ToLower(u.Hostname())
	if hostname == "" {
		return "", fmt.Errorf("empty host")
	}

	ascii, err := idna.Punycode.ToASCII(hostname)
	if err != nil {
		return "", err
	}

	port := u.Port()
	if (scheme == "http" && port == "80") || (scheme == "https" && port == "443") {
		port = ""
	}

	if port != "" {
		return net.JoinHostPort(ascii, port), nil
	}
	if strings.Contains(ascii, ":") {
		// IPv6 literal
		return "[" + ascii + "]", nil
	}
	return ascii, nil
}

// encodeWhitespace percent-encodes every whitespace rune in s.
func encodeWhitespace(s string) string {
	if !strings.ContainsFunc(s, unicode.IsSpace) {
		return s
	}
	var b strings.Builder
	for _, r := range s {
		if !unicode.IsSpace(r) {
			b.WriteRune(r)
			continue
		}
		for _, c := range []byte(string(r)) {
			fmt.Fprintf(&b, "%%%02X", c)
		}
	}
	return b.String()
}

// hostKey is the host form used for same-host comparison.
func hostKey(host string) string {
	return strings.TrimPrefix(strings.ToLower(host), "www.")
}
