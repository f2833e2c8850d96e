// Package naming derives the stable identifiers used for deduplication and
// directory layout. Every function here is pure.
package naming

import (
	"net/url"
	"strconv"
	"strings"
)

// PagePlaceholder is substituted with the page number in a page URL pattern
const PagePlaceholder = "{n}"

// DeriveFilename returns the final path segment of rawURL, percent-decoded and
// stripped of any query remnant. It returns "" when no usable name exists.
//
// Two URLs that share a final segment map to the same name; callers treat
// them as the same resource.
func DeriveFilename(rawURL string) string {
	var p string
	if u, err := url.Parse(rawURL); err == nil {
		// url.Parse has already percent-decoded Path
		p = u.Path
	} else {
		p = lenientPath(rawURL)
	}

	name := p[strings.LastIndex(p, "/")+1:]
	if i := strings.Index(name, "?"); i >= 0 {
		name = name[:i]
	}

	switch name {
	case ".", "..":
		return ""
	}
	return name
}

// lenientPath extracts and decodes the path of a URL that url.Parse rejects,
// typically because of a stray '%'. Segments that do not decode are kept raw.
func lenientPath(rawURL string) string {
	rest := rawURL
	if i := strings.Index(rest, "://"); i >= 0 {
		rest = rest[i+3:]
		if j := strings.Index(rest, "/"); j >= 0 {
			rest = rest[j:]
		} else {
			rest = ""
		}
	}
	if i := strings.IndexAny(rest, "?#"); i >= 0 {
		rest = rest[:i]
	}

	segments := strings.Split(rest, "/")
	for i, seg := range segments {
		if decoded, err := url.PathUnescape(seg); err == nil {
			segments[i] = decoded
		}
	}
	return strings.Join(segments, "/")
}

// DeriveFolderName maps a page URL pattern to "{host}-{path}" with slashes in
// the path replaced by underscores, or just "{host}" when the path is empty.
func DeriveFolderName(urlPattern string) string {
	u, err := url.Parse(urlPattern)
	if err != nil {
		return ""
	}

	p := strings.ReplaceAll(strings.Trim(u.Path, "/"), "/", "_")
	if p == "" {
		return u.Host
	}
	return u.Host + "-" + p
}

// PageURL expands the page placeholder in pattern
func PageURL(pattern string, page int) string {
	return strings.ReplaceAll(pattern, PagePlaceholder, strconv.Itoa(page))
}
